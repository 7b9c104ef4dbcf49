// Package analysis computes metadata, statistics and insights over
// normalized issue and pull-request records. Every function here is a pure,
// deterministic function of its inputs: no network, no randomness, stable
// sorts with ties preserving input order.
package analysis

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/andywolf/repolens/internal/extract"
)

const (
	topLabels    = 20
	topAuthors   = 10
	topRanked    = 10
	discussedMin = 5
)

// NameCount is a ranked name/count pair. Rankings are ordered by count
// descending; ties keep the order in which the name first appeared.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// IssueRef is a compact reference to an issue in a ranking.
type IssueRef struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Comments int    `json:"comments"`
}

// IssueActivity references an issue by its last update time.
type IssueActivity struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updated_at"`
}

// TypeCounts holds coarse issue-type counts derived from label names.
type TypeCounts struct {
	Bugs          int `json:"bugs"`
	Features      int `json:"features"`
	Documentation int `json:"documentation"`
}

// Metadata is the direct (non-LLM) metadata extracted from issues and PRs.
type Metadata struct {
	Labels            []NameCount `json:"labels"`
	TopIssueCreators  []NameCount `json:"top_issue_creators"`
	TopPRCreators     []NameCount `json:"top_pr_creators"`
	TopAssignees      []NameCount `json:"top_assignees"`
	Milestones        []NameCount `json:"milestones"`
	IssueCountsByType TypeCounts  `json:"issue_counts_by_type"`
}

// PRStats summarizes a pull-request set.
type PRStats struct {
	Total         int `json:"total"`
	Open          int `json:"open"`
	Merged        int `json:"merged"`
	Draft         int `json:"draft"`
	WithAssignees int `json:"with_assignees"`
}

// Statistics holds distribution-style aggregations.
type Statistics struct {
	MostDiscussedIssues   []IssueRef  `json:"most_discussed_issues"`
	LabelDistribution     []NameCount `json:"label_distribution"`
	MilestoneDistribution []NameCount `json:"milestone_distribution"`
	PullRequests          PRStats     `json:"pr_statistics"`
}

// Insights holds derived signals over the record sets.
type Insights struct {
	HighlyDiscussedIssues     []IssueRef      `json:"highly_discussed_issues"`
	RecentlyActiveIssues      []IssueActivity `json:"recently_active_issues"`
	UnassignedOpenIssuesCount int             `json:"unassigned_open_issues_count"`
	DraftPRsCount             int             `json:"draft_prs_count"`
	PRsAwaitingReviewCount    int             `json:"prs_awaiting_review_count"`
	MostUsedLabels            []string        `json:"most_used_labels"`
}

// BuildMetadata computes label frequency (top 20), top issue/PR authors
// (top 10 each), top assignees across both sets (top 10), milestone
// frequency, and coarse type counts by label substring.
func BuildMetadata(issues []extract.Issue, prs []extract.PullRequest) Metadata {
	labels := newCounter()
	issueAuthors := newCounter()
	prAuthors := newCounter()
	assignees := newCounter()
	milestones := newCounter()

	for _, issue := range issues {
		for _, label := range issue.Labels {
			labels.add(label)
		}
		if issue.Author != "" {
			issueAuthors.add(issue.Author)
		}
		for _, a := range issue.Assignees {
			assignees.add(a)
		}
		if issue.Milestone != "" {
			milestones.add(issue.Milestone)
		}
	}

	for _, pr := range prs {
		if pr.Author != "" {
			prAuthors.add(pr.Author)
		}
		for _, a := range pr.Assignees {
			assignees.add(a)
		}
	}

	return Metadata{
		Labels:           labels.top(topLabels),
		TopIssueCreators: issueAuthors.top(topAuthors),
		TopPRCreators:    prAuthors.top(topAuthors),
		TopAssignees:     assignees.top(topAuthors),
		Milestones:       milestones.top(0),
		IssueCountsByType: TypeCounts{
			Bugs:          lo.CountBy(issues, hasLabelContaining("bug")),
			Features:      lo.CountBy(issues, hasAnyLabelContaining("feature", "enhancement")),
			Documentation: lo.CountBy(issues, hasLabelContaining("doc")),
		},
	}
}

// BuildStatistics computes the most-discussed ranking (comment_count > 0,
// top 10), the full label and milestone distributions, and PR totals.
func BuildStatistics(issues []extract.Issue, prs []extract.PullRequest) Statistics {
	discussed := lo.Filter(issues, func(i extract.Issue, _ int) bool {
		return i.Comments > 0
	})
	sortByCommentsDesc(discussed)

	labels := newCounter()
	milestones := newCounter()
	for _, issue := range issues {
		for _, label := range issue.Labels {
			labels.add(label)
		}
		if issue.Milestone != "" {
			milestones.add(issue.Milestone)
		}
	}

	return Statistics{
		MostDiscussedIssues:   issueRefs(capIssues(discussed, topRanked)),
		LabelDistribution:     labels.top(0),
		MilestoneDistribution: milestones.top(0),
		PullRequests: PRStats{
			Total:  len(prs),
			Open:   lo.CountBy(prs, func(p extract.PullRequest) bool { return p.State == "open" }),
			Merged: lo.CountBy(prs, func(p extract.PullRequest) bool { return p.MergedAt != "" }),
			Draft:  lo.CountBy(prs, func(p extract.PullRequest) bool { return p.Draft }),
			WithAssignees: lo.CountBy(prs, func(p extract.PullRequest) bool {
				return len(p.Assignees) > 0
			}),
		},
	}
}

// BuildInsights derives discussion, staleness and review-load signals.
// ISO-8601 timestamps sort correctly as strings, so recency ordering is a
// plain lexicographic sort on updated_at.
func BuildInsights(issues []extract.Issue, prs []extract.PullRequest, meta Metadata) Insights {
	highlyDiscussed := lo.Filter(issues, func(i extract.Issue, _ int) bool {
		return i.Comments > discussedMin
	})
	sortByCommentsDesc(highlyDiscussed)

	recent := make([]extract.Issue, len(issues))
	copy(recent, issues)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].UpdatedAt > recent[j].UpdatedAt
	})

	mostUsed := lo.Map(meta.Labels, func(nc NameCount, _ int) string { return nc.Name })
	if len(mostUsed) > topRanked {
		mostUsed = mostUsed[:topRanked]
	}

	return Insights{
		HighlyDiscussedIssues: issueRefs(capIssues(highlyDiscussed, topRanked)),
		RecentlyActiveIssues: lo.Map(capIssues(recent, topRanked), func(i extract.Issue, _ int) IssueActivity {
			return IssueActivity{Number: i.Number, Title: i.Title, UpdatedAt: i.UpdatedAt}
		}),
		UnassignedOpenIssuesCount: lo.CountBy(issues, func(i extract.Issue) bool {
			return i.State == "open" && len(i.Assignees) == 0
		}),
		DraftPRsCount: lo.CountBy(prs, func(p extract.PullRequest) bool { return p.Draft }),
		PRsAwaitingReviewCount: lo.CountBy(prs, func(p extract.PullRequest) bool {
			return p.State == "open" && len(p.RequestedReviewers) == 0
		}),
		MostUsedLabels: mostUsed,
	}
}

func hasLabelContaining(substr string) func(extract.Issue) bool {
	return func(i extract.Issue) bool {
		for _, label := range i.Labels {
			if strings.Contains(strings.ToLower(label), substr) {
				return true
			}
		}
		return false
	}
}

func hasAnyLabelContaining(substrs ...string) func(extract.Issue) bool {
	return func(i extract.Issue) bool {
		for _, label := range i.Labels {
			lower := strings.ToLower(label)
			for _, substr := range substrs {
				if strings.Contains(lower, substr) {
					return true
				}
			}
		}
		return false
	}
}

func sortByCommentsDesc(issues []extract.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Comments > issues[j].Comments
	})
}

func capIssues(issues []extract.Issue, n int) []extract.Issue {
	if len(issues) > n {
		return issues[:n]
	}
	return issues
}

func issueRefs(issues []extract.Issue) []IssueRef {
	return lo.Map(issues, func(i extract.Issue, _ int) IssueRef {
		return IssueRef{Number: i.Number, Title: i.Title, Comments: i.Comments}
	})
}

// counter counts names while remembering first-appearance order so that
// rankings break ties deterministically.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(name string) {
	if _, seen := c.counts[name]; !seen {
		c.order = append(c.order, name)
	}
	c.counts[name]++
}

// top returns the n highest counts, count descending, ties in first-seen
// order. n <= 0 returns the full distribution.
func (c *counter) top(n int) []NameCount {
	ranked := make([]NameCount, 0, len(c.order))
	for _, name := range c.order {
		ranked = append(ranked, NameCount{Name: name, Count: c.counts[name]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
