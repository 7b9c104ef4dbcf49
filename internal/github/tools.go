// Package github exposes the GitHub MCP server tools consumed by the
// analysis agents, plus GitHub App authentication for minting the token the
// server runs with.
package github

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// ToolCaller issues a single named tool invocation. *mcp.Client implements
// it; tests substitute fakes.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// Tools wraps the four repository operations the agents use. Every call is
// single-shot with no retries: a remote fault surfaces to the caller as
// not-found, logged unless the call was a quiet probe.
type Tools struct {
	caller ToolCaller
	owner  string
	repo   string
	branch string
	logf   func(format string, args ...any)
}

// ToolsOption configures Tools.
type ToolsOption func(*Tools)

// WithBranch pins file fetches to a branch instead of the default branch.
func WithBranch(branch string) ToolsOption {
	return func(t *Tools) { t.branch = branch }
}

// WithLogf overrides the fault logger (useful for testing).
func WithLogf(logf func(format string, args ...any)) ToolsOption {
	return func(t *Tools) { t.logf = logf }
}

// NewTools creates a tool wrapper scoped to one repository.
func NewTools(caller ToolCaller, owner, repo string, opts ...ToolsOption) *Tools {
	t := &Tools{
		caller: caller,
		owner:  owner,
		repo:   repo,
		logf:   log.Printf,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Owner returns the repository owner.
func (t *Tools) Owner() string { return t.owner }

// Repo returns the repository name.
func (t *Tools) Repo() string { return t.repo }

// GetFileContents fetches a file or directory listing. ok=false means
// not-found or a remote fault; expected 404s are not logged.
func (t *Tools) GetFileContents(ctx context.Context, path string) (string, bool) {
	return t.getFile(ctx, path, false)
}

// ProbeFile is GetFileContents in quiet mode: absence is expected, so
// faults are never logged. Used for speculative conventional-path probes.
func (t *Tools) ProbeFile(ctx context.Context, path string) (string, bool) {
	return t.getFile(ctx, path, true)
}

func (t *Tools) getFile(ctx context.Context, path string, quiet bool) (string, bool) {
	args := map[string]any{"owner": t.owner, "repo": t.repo, "path": path}
	if t.branch != "" {
		args["branch"] = t.branch
	}

	text, err := t.caller.CallTool(ctx, "get_file_contents", args)
	if err != nil {
		if !quiet && !strings.Contains(err.Error(), "Not Found") {
			t.logf("error getting %s: %v", path, err)
		}
		return "", false
	}
	return text, true
}

// ListIssues lists issues in the given state ("open", "closed" or "all").
// A single page of at most perPage items is returned; callers must not
// assume completeness beyond that.
func (t *Tools) ListIssues(ctx context.Context, state string, perPage, page int) (string, bool) {
	text, err := t.caller.CallTool(ctx, "list_issues", map[string]any{
		"owner":    t.owner,
		"repo":     t.repo,
		"state":    state,
		"per_page": perPage,
		"page":     page,
	})
	if err != nil {
		t.logf("error listing issues: %v", err)
		return "", false
	}
	return text, true
}

// ListPullRequests lists pull requests in the given state, one page only.
func (t *Tools) ListPullRequests(ctx context.Context, state string, perPage int) (string, bool) {
	text, err := t.caller.CallTool(ctx, "list_pull_requests", map[string]any{
		"owner":    t.owner,
		"repo":     t.repo,
		"state":    state,
		"per_page": perPage,
	})
	if err != nil {
		t.logf("error listing pull requests: %v", err)
		return "", false
	}
	return text, true
}

// SearchCode runs a code search scoped to the repository.
func (t *Tools) SearchCode(ctx context.Context, query string, perPage int) (string, bool) {
	text, err := t.caller.CallTool(ctx, "search_code", map[string]any{
		"q":        fmt.Sprintf("%s repo:%s/%s", query, t.owner, t.repo),
		"per_page": perPage,
	})
	if err != nil {
		t.logf("error searching code: %v", err)
		return "", false
	}
	return text, true
}
