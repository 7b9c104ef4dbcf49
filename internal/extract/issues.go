package extract

import "encoding/json"

// rawActor is the shape of user/assignee/reviewer objects in GitHub payloads.
type rawActor struct {
	Login string `json:"login"`
}

// rawLabel is the shape of label objects in GitHub payloads.
type rawLabel struct {
	Name string `json:"name"`
}

type rawIssue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	Labels    []rawLabel `json:"labels"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
	ClosedAt  string     `json:"closed_at"`
	User      *rawActor  `json:"user"`
	Assignees []rawActor `json:"assignees"`
	Comments  int        `json:"comments"`
	Body      string     `json:"body"`
	HTMLURL   string     `json:"html_url"`
	Milestone *struct {
		Title string `json:"title"`
	} `json:"milestone"`
	PullRequest json.RawMessage `json:"pull_request"`
}

// ParseIssues parses a raw issue-list payload into normalized issues.
// Entries flagged as pull requests are filtered out; any decode failure
// yields an empty slice.
func ParseIssues(raw string) []Issue {
	if raw == "" {
		return nil
	}

	var data []rawIssue
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}

	issues := make([]Issue, 0, len(data))
	for _, in := range data {
		// The issues endpoint also returns PRs; a pull_request field marks them.
		if len(in.PullRequest) > 0 {
			continue
		}

		issue := Issue{
			Number:    in.Number,
			Title:     in.Title,
			State:     in.State,
			Labels:    labelNames(in.Labels),
			CreatedAt: in.CreatedAt,
			UpdatedAt: in.UpdatedAt,
			ClosedAt:  in.ClosedAt,
			Assignees: actorLogins(in.Assignees),
			Comments:  in.Comments,
			Body:      preview(in.Body),
			URL:       in.HTMLURL,
		}
		if in.User != nil {
			issue.Author = in.User.Login
		}
		if in.Milestone != nil {
			issue.Milestone = in.Milestone.Title
		}
		issues = append(issues, issue)
	}
	return issues
}

func labelNames(labels []rawLabel) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		if l.Name != "" {
			names = append(names, l.Name)
		}
	}
	return names
}

func actorLogins(actors []rawActor) []string {
	logins := make([]string, 0, len(actors))
	for _, a := range actors {
		if a.Login != "" {
			logins = append(logins, a.Login)
		}
	}
	return logins
}
