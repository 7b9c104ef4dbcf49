package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/andywolf/repolens/internal/explorer"
	"github.com/andywolf/repolens/internal/issues"
	"github.com/andywolf/repolens/internal/version"
)

type fakeExplorer struct {
	result explorer.Result
	calls  int
	seen   *[]string
}

func (f *fakeExplorer) Explore(context.Context) explorer.Result {
	f.calls++
	*f.seen = append(*f.seen, "explore")
	return f.result
}

type fakeAnalyzer struct {
	result issues.Result
	calls  int
	seen   *[]string
}

func (f *fakeAnalyzer) Analyze(context.Context) issues.Result {
	f.calls++
	*f.seen = append(*f.seen, "analyze")
	return f.result
}

func TestRunSequencesNodesAndCompletes(t *testing.T) {
	var order []string
	exp := &fakeExplorer{
		result: explorer.Result{Overview: "demo overview"},
		seen:   &order,
	}
	ana := &fakeAnalyzer{
		result: issues.Result{Summary: issues.Summary{TotalIssues: 7}},
		seen:   &order,
	}
	fixed := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)

	p := New(exp, ana, WithRunID("run-9"), WithNow(func() time.Time { return fixed }))
	final := p.Run(context.Background(), NewState("octo", "demo"))

	if final.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", final.Status, StatusCompleted)
	}
	if exp.calls != 1 || ana.calls != 1 {
		t.Errorf("calls = %d/%d, want exactly one each", exp.calls, ana.calls)
	}
	if order[0] != "explore" || order[1] != "analyze" {
		t.Errorf("order = %v, want explore before analyze", order)
	}

	meta := final.FinalOutput.AnalysisMetadata
	if meta.AnalyzerVersion != version.AnalyzerVersion {
		t.Errorf("AnalyzerVersion = %q", meta.AnalyzerVersion)
	}
	if meta.AnalyzedAt != fixed.Format(time.RFC3339) {
		t.Errorf("AnalyzedAt = %q", meta.AnalyzedAt)
	}
	if meta.Repository.Owner != "octo" || meta.Repository.Name != "demo" {
		t.Errorf("Repository = %+v", meta.Repository)
	}
	if meta.RunID != "run-9" {
		t.Errorf("RunID = %q", meta.RunID)
	}
	if final.FinalOutput.Repository.Overview != "demo overview" {
		t.Errorf("combined repository analysis = %+v", final.FinalOutput.Repository)
	}
	if final.FinalOutput.Issues.Summary.TotalIssues != 7 {
		t.Errorf("combined issues analysis = %+v", final.FinalOutput.Issues.Summary)
	}
}

func TestNodesReturnNewSnapshots(t *testing.T) {
	var order []string
	exp := &fakeExplorer{result: explorer.Result{Overview: "x"}, seen: &order}
	ana := &fakeAnalyzer{seen: &order}
	p := New(exp, ana)

	initial := NewState("octo", "demo")
	afterExplore := p.exploreRepository(context.Background(), initial)

	if initial.Status != StatusInitialized {
		t.Errorf("initial state mutated: Status = %q", initial.Status)
	}
	if initial.RepositoryAnalysis.Overview != "" {
		t.Error("initial state mutated: RepositoryAnalysis set")
	}
	if afterExplore.Status != StatusRepositoryExplored {
		t.Errorf("Status = %q, want %q", afterExplore.Status, StatusRepositoryExplored)
	}

	afterAnalyze := p.analyzeIssues(context.Background(), afterExplore)
	if afterAnalyze.Status != StatusIssuesAnalyzed {
		t.Errorf("Status = %q, want %q", afterAnalyze.Status, StatusIssuesAnalyzed)
	}
	// Prior slice preserved.
	if afterAnalyze.RepositoryAnalysis.Overview != "x" {
		t.Error("exploration result lost between nodes")
	}

	final := p.combineResults(afterAnalyze)
	if final.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", final.Status, StatusCompleted)
	}
	if afterAnalyze.Status != StatusIssuesAnalyzed {
		t.Error("intermediate state mutated by combine")
	}
}
