// Package pipeline sequences the analysis run: explore the repository,
// analyze its issues, then combine both results into the final report.
// State flows through the three nodes by value; each node returns a new
// snapshot rather than mutating shared state.
package pipeline

import (
	"context"
	"time"

	"github.com/andywolf/repolens/internal/events"
	"github.com/andywolf/repolens/internal/explorer"
	"github.com/andywolf/repolens/internal/issues"
	"github.com/andywolf/repolens/internal/version"
)

// Status tracks how far the run has progressed.
type Status string

const (
	StatusInitialized        Status = "initialized"
	StatusRepositoryExplored Status = "repository_explored"
	StatusIssuesAnalyzed     Status = "issues_analyzed"
	StatusCompleted          Status = "completed"
)

// Repository identifies the target repository.
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// AnalysisMetadata describes one run of the analyzer.
type AnalysisMetadata struct {
	AnalyzedAt      string     `json:"analyzed_at"`
	Repository      Repository `json:"repository"`
	AnalyzerVersion string     `json:"analyzer_version"`
	RunID           string     `json:"run_id,omitempty"`
}

// Report is the combined output written at the end of a run.
type Report struct {
	AnalysisMetadata AnalysisMetadata `json:"analysis_metadata"`
	Repository       explorer.Result  `json:"repository"`
	Issues           issues.Result    `json:"issues"`
}

// State is the snapshot threaded through the pipeline nodes. Each node
// reads the prior fields, fills in its own slice, and advances Status.
type State struct {
	Repository         Repository
	RepositoryAnalysis explorer.Result
	IssuesAnalysis     issues.Result
	FinalOutput        Report
	Status             Status
}

// Explorer is the repository exploration operation.
type Explorer interface {
	Explore(ctx context.Context) explorer.Result
}

// IssuesAnalyzer is the issue analysis operation.
type IssuesAnalyzer interface {
	Analyze(ctx context.Context) issues.Result
}

// Pipeline runs the three analysis nodes in order.
type Pipeline struct {
	explorer Explorer
	analyzer IssuesAnalyzer
	reporter *events.Reporter
	runID    string
	now      func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithReporter attaches a progress reporter.
func WithReporter(r *events.Reporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// WithRunID stamps the report's analysis metadata with a run identifier.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(exp Explorer, analyzer IssuesAnalyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		explorer: exp,
		analyzer: analyzer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewState creates the initial pipeline state for a repository.
func NewState(owner, name string) State {
	return State{
		Repository: Repository{Owner: owner, Name: name},
		Status:     StatusInitialized,
	}
}

// Run executes the node sequence to completion and returns the final
// state. Nodes never fail; a degraded stage still advances the pipeline,
// so the returned state always has StatusCompleted.
func (p *Pipeline) Run(ctx context.Context, state State) State {
	state = p.exploreRepository(ctx, state)
	state = p.analyzeIssues(ctx, state)
	state = p.combineResults(state)
	return state
}

func (p *Pipeline) exploreRepository(ctx context.Context, state State) State {
	state.RepositoryAnalysis = p.explorer.Explore(ctx)
	state.Status = StatusRepositoryExplored
	return state
}

// analyzeIssues does not consume the exploration result, but stays
// sequenced after it to keep remote load serial.
func (p *Pipeline) analyzeIssues(ctx context.Context, state State) State {
	state.IssuesAnalysis = p.analyzer.Analyze(ctx)
	state.Status = StatusIssuesAnalyzed
	return state
}

func (p *Pipeline) combineResults(state State) State {
	p.reporter.Step("combine_results", "combining analysis results")

	state.FinalOutput = Report{
		AnalysisMetadata: AnalysisMetadata{
			AnalyzedAt:      p.now().Format(time.RFC3339),
			Repository:      state.Repository,
			AnalyzerVersion: version.AnalyzerVersion,
			RunID:           p.runID,
		},
		Repository: state.RepositoryAnalysis,
		Issues:     state.IssuesAnalysis,
	}
	state.Status = StatusCompleted
	return state
}
