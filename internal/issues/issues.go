// Package issues fetches a repository's issues and pull requests and
// summarizes them through the aggregation layer. The default Analyze path
// is fully deterministic; LLM-backed categorization and pattern discovery
// are available as separate calls.
package issues

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/andywolf/repolens/internal/analysis"
	"github.com/andywolf/repolens/internal/events"
	"github.com/andywolf/repolens/internal/extract"
	"github.com/andywolf/repolens/internal/llm"
	"github.com/andywolf/repolens/internal/observability"
)

// Stage is the pipeline stage name the analyzer reports under.
const Stage = "analyze_issues"

// Fetch sizes. Single page each; completeness beyond one page is not a goal.
const (
	openIssuesPerPage   = 100
	closedIssuesPerPage = 50
	allIssuesPerPage    = 100
	pullsPerPage        = 30
	recentPreviewLimit  = 15
)

// GitHub is the repository access surface the analyzer needs.
type GitHub interface {
	ListIssues(ctx context.Context, state string, perPage, page int) (string, bool)
	ListPullRequests(ctx context.Context, state string, perPage int) (string, bool)
}

// Summary holds the headline counts for the report.
type Summary struct {
	TotalIssues       int `json:"total_issues"`
	TotalOpenIssues   int `json:"total_open_issues"`
	TotalClosedIssues int `json:"total_closed_issues"`
	TotalPRs          int `json:"total_prs"`
	OpenPRs           int `json:"open_prs"`
	MergedPRs         int `json:"merged_prs"`
}

// Result is the analyzer's contribution to the final report.
type Result struct {
	Summary      Summary               `json:"summary"`
	Metadata     analysis.Metadata     `json:"metadata"`
	Statistics   analysis.Statistics   `json:"statistics"`
	Insights     analysis.Insights     `json:"insights"`
	RecentIssues []extract.Issue       `json:"recent_issues"`
	RecentPRs    []extract.PullRequest `json:"recent_prs"`
}

// Agent orchestrates issue analysis.
type Agent struct {
	gh        GitHub
	gen       llm.Generator
	reporter  *events.Reporter
	recordGen func(observability.GenerationInput)
}

// Option customizes an Agent.
type Option func(*Agent)

// WithReporter attaches a progress reporter.
func WithReporter(r *events.Reporter) Option {
	return func(a *Agent) { a.reporter = r }
}

// WithGenerationRecorder attaches a callback invoked after each LLM call.
func WithGenerationRecorder(fn func(observability.GenerationInput)) Option {
	return func(a *Agent) { a.recordGen = fn }
}

// New creates an issues Agent. gen may be nil when only Analyze is used;
// it is required for CategorizeIssues and IdentifyPatterns.
func New(gh GitHub, gen llm.Generator, opts ...Option) *Agent {
	a := &Agent{gh: gh, gen: gen}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze fetches issues and pull requests and aggregates them. It never
// returns an error: a failed fetch degrades to an empty record set.
func (a *Agent) Analyze(ctx context.Context) Result {
	a.reporter.StageStart(Stage)

	openIssues := a.fetchIssues(ctx, "open", openIssuesPerPage)
	closedIssues := a.fetchIssues(ctx, "closed", closedIssuesPerPage)

	// Aggregation runs over the combined set; open/closed are fetched
	// separately only for the summary counts.
	allIssues := a.fetchIssues(ctx, "all", allIssuesPerPage)

	var prs []extract.PullRequest
	if raw, ok := a.gh.ListPullRequests(ctx, "open", pullsPerPage); ok {
		prs = extract.ParsePullRequests(raw)
	} else {
		a.reporter.Fallback(Stage, "pull request fetch failed", "continuing with none")
	}
	a.reporter.Step(Stage, fmt.Sprintf("found %d open PRs", len(prs)))

	metadata := analysis.BuildMetadata(allIssues, prs)
	statistics := analysis.BuildStatistics(allIssues, prs)
	insights := analysis.BuildInsights(allIssues, prs, metadata)

	a.reporter.StageEnd(Stage)

	return Result{
		Summary: Summary{
			TotalIssues:       len(allIssues),
			TotalOpenIssues:   len(openIssues),
			TotalClosedIssues: len(closedIssues),
			TotalPRs:          len(prs),
			OpenPRs:           lo.CountBy(prs, func(pr extract.PullRequest) bool { return pr.State == "open" }),
			MergedPRs:         lo.CountBy(prs, func(pr extract.PullRequest) bool { return pr.MergedAt != "" }),
		},
		Metadata:     metadata,
		Statistics:   statistics,
		Insights:     insights,
		RecentIssues: capIssues(allIssues, recentPreviewLimit),
		RecentPRs:    capPRs(prs, recentPreviewLimit),
	}
}

func (a *Agent) fetchIssues(ctx context.Context, state string, perPage int) []extract.Issue {
	raw, ok := a.gh.ListIssues(ctx, state, perPage, 1)
	if !ok {
		a.reporter.Fallback(Stage, fmt.Sprintf("%s issue fetch failed", state), "continuing with none")
		return nil
	}
	parsed := extract.ParseIssues(raw)
	a.reporter.Step(Stage, fmt.Sprintf("found %d %s issues", len(parsed), state))
	return parsed
}

func capIssues(issues []extract.Issue, n int) []extract.Issue {
	if len(issues) > n {
		return issues[:n]
	}
	return issues
}

func capPRs(prs []extract.PullRequest, n int) []extract.PullRequest {
	if len(prs) > n {
		return prs[:n]
	}
	return prs
}

// generate runs one LLM call and reports it.
func (a *Agent) generate(ctx context.Context, name, system, user string) (string, error) {
	start := time.Now()
	reply, err := a.gen.Generate(ctx, system, user)
	durMs := time.Since(start).Milliseconds()

	status := "completed"
	if err != nil {
		status = "error"
		a.reporter.Emit(Stage, events.EventError, name+" generation failed", err.Error())
	} else {
		a.reporter.Emit(Stage, events.EventLLMCall, name, "")
	}
	if a.recordGen != nil {
		a.recordGen(observability.GenerationInput{
			Name:       name,
			Input:      user,
			Output:     reply,
			Status:     status,
			DurationMs: durMs,
		})
	}
	return reply, err
}
