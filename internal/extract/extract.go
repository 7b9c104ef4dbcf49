// Package extract converts raw GitHub MCP payloads into normalized records.
// Every parser is total: a nil/empty payload or a decode failure yields an
// empty result, never an error. Nothing in this package touches the network.
package extract

import "unicode/utf8"

// PreviewLimit bounds issue/PR body previews to keep downstream prompts and
// reports small.
const PreviewLimit = 500

// Issue is a normalized GitHub issue. Entries carrying a pull_request marker
// in the raw payload are excluded by ParseIssues.
type Issue struct {
	Number    int      `json:"number"`
	Title     string   `json:"title"`
	State     string   `json:"state"`
	Labels    []string `json:"labels"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
	ClosedAt  string   `json:"closed_at,omitempty"`
	Author    string   `json:"user,omitempty"`
	Assignees []string `json:"assignees"`
	Comments  int      `json:"comments"`
	Body      string   `json:"body"`
	URL       string   `json:"url"`
	Milestone string   `json:"milestone,omitempty"`
}

// PullRequest is a normalized GitHub pull request. A PR is merged iff
// MergedAt is non-empty; draft PRs may still be open.
type PullRequest struct {
	Number             int      `json:"number"`
	Title              string   `json:"title"`
	State              string   `json:"state"`
	Author             string   `json:"user,omitempty"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
	MergedAt           string   `json:"merged_at,omitempty"`
	ClosedAt           string   `json:"closed_at,omitempty"`
	Labels             []string `json:"labels"`
	Draft              bool     `json:"draft"`
	URL                string   `json:"url"`
	Body               string   `json:"body"`
	Assignees          []string `json:"assignees"`
	RequestedReviewers []string `json:"requested_reviewers"`
	HeadRef            string   `json:"head,omitempty"`
	BaseRef            string   `json:"base,omitempty"`
}

// DirEntry is a directory-type entry from a repository listing.
type DirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// SearchResult is a name/path pair from a code search response.
type SearchResult struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// preview truncates s to at most PreviewLimit bytes, backing up so a
// multi-byte rune is never split.
func preview(s string) string {
	if len(s) <= PreviewLimit {
		return s
	}
	n := PreviewLimit
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
