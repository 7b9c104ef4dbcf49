package extract

import "encoding/json"

type rawPull struct {
	Number             int        `json:"number"`
	Title              string     `json:"title"`
	State              string     `json:"state"`
	User               *rawActor  `json:"user"`
	CreatedAt          string     `json:"created_at"`
	UpdatedAt          string     `json:"updated_at"`
	MergedAt           string     `json:"merged_at"`
	ClosedAt           string     `json:"closed_at"`
	Labels             []rawLabel `json:"labels"`
	Draft              bool       `json:"draft"`
	HTMLURL            string     `json:"html_url"`
	Body               string     `json:"body"`
	Assignees          []rawActor `json:"assignees"`
	RequestedReviewers []rawActor `json:"requested_reviewers"`
	Head               *struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base *struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

// ParsePullRequests parses a raw pull-request-list payload into normalized
// pull requests. Any decode failure yields an empty slice.
func ParsePullRequests(raw string) []PullRequest {
	if raw == "" {
		return nil
	}

	var data []rawPull
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}

	prs := make([]PullRequest, 0, len(data))
	for _, in := range data {
		pr := PullRequest{
			Number:             in.Number,
			Title:              in.Title,
			State:              in.State,
			CreatedAt:          in.CreatedAt,
			UpdatedAt:          in.UpdatedAt,
			MergedAt:           in.MergedAt,
			ClosedAt:           in.ClosedAt,
			Labels:             labelNames(in.Labels),
			Draft:              in.Draft,
			URL:                in.HTMLURL,
			Body:               preview(in.Body),
			Assignees:          actorLogins(in.Assignees),
			RequestedReviewers: actorLogins(in.RequestedReviewers),
		}
		if in.User != nil {
			pr.Author = in.User.Login
		}
		if in.Head != nil {
			pr.HeadRef = in.Head.Ref
		}
		if in.Base != nil {
			pr.BaseRef = in.Base.Ref
		}
		prs = append(prs, pr)
	}
	return prs
}

// ParseDirectoryListing parses a directory-listing payload, keeping only
// directory-type entries.
func ParseDirectoryListing(raw string) []DirEntry {
	if raw == "" {
		return nil
	}

	var data []struct {
		Name string `json:"name"`
		Path string `json:"path"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}

	dirs := make([]DirEntry, 0, len(data))
	for _, in := range data {
		if in.Type != "dir" {
			continue
		}
		dirs = append(dirs, DirEntry{Name: in.Name, Path: in.Path})
	}
	return dirs
}

// ParseFileListing parses a directory-listing payload, keeping only
// file-type entries. Used for enumerating CI workflow files.
func ParseFileListing(raw string) []DirEntry {
	if raw == "" {
		return nil
	}

	var data []struct {
		Name string `json:"name"`
		Path string `json:"path"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}

	files := make([]DirEntry, 0, len(data))
	for _, in := range data {
		if in.Type != "file" {
			continue
		}
		files = append(files, DirEntry{Name: in.Name, Path: in.Path})
	}
	return files
}

// ParseSearchResults extracts name/path pairs from a code-search payload.
func ParseSearchResults(raw string) []SearchResult {
	if raw == "" {
		return nil
	}

	var data struct {
		Items []struct {
			Name string `json:"name"`
			Path string `json:"path"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}

	results := make([]SearchResult, 0, len(data.Items))
	for _, item := range data.Items {
		results = append(results, SearchResult{Name: item.Name, Path: item.Path})
	}
	return results
}
