package analysis

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/andywolf/repolens/internal/extract"
)

func TestBuildMetadataLabelCountsSum(t *testing.T) {
	issues := []extract.Issue{
		{Number: 1, Labels: []string{"bug", "backend"}},
		{Number: 2, Labels: []string{"bug"}},
		{Number: 3, Labels: []string{"docs", "backend", "bug"}},
		{Number: 4},
	}

	meta := BuildMetadata(issues, nil)

	wantPairs := 0
	for _, issue := range issues {
		wantPairs += len(issue.Labels)
	}

	gotPairs := 0
	for _, nc := range meta.Labels {
		gotPairs += nc.Count
	}
	if gotPairs != wantPairs {
		t.Errorf("sum of label counts = %d, want %d (issue,label) pairs", gotPairs, wantPairs)
	}
}

func TestBuildMetadataScenario(t *testing.T) {
	// Two issues: one open bug with 10 comments and no assignee, one closed
	// bug+docs with an assignee.
	issues := []extract.Issue{
		{Number: 1, Labels: []string{"bug"}, Comments: 10, State: "open", Assignees: []string{}},
		{Number: 2, Labels: []string{"bug", "docs"}, Comments: 3, State: "closed", Assignees: []string{"alice"}},
	}

	meta := BuildMetadata(issues, nil)
	if meta.IssueCountsByType.Bugs != 2 {
		t.Errorf("bugs = %d, want 2", meta.IssueCountsByType.Bugs)
	}
	if meta.IssueCountsByType.Documentation != 1 {
		t.Errorf("documentation = %d, want 1", meta.IssueCountsByType.Documentation)
	}

	insights := BuildInsights(issues, nil, meta)
	if insights.UnassignedOpenIssuesCount != 1 {
		t.Errorf("unassigned open issues = %d, want 1", insights.UnassignedOpenIssuesCount)
	}
}

func TestTypeCountsMatchSubstringsCaseInsensitive(t *testing.T) {
	issues := []extract.Issue{
		{Number: 1, Labels: []string{"Bug: crash"}},
		{Number: 2, Labels: []string{"enhancement"}},
		{Number: 3, Labels: []string{"feature-request"}},
		{Number: 4, Labels: []string{"Documentation"}},
		{Number: 5, Labels: []string{"question"}},
	}

	meta := BuildMetadata(issues, nil)
	want := TypeCounts{Bugs: 1, Features: 2, Documentation: 1}
	if meta.IssueCountsByType != want {
		t.Errorf("IssueCountsByType = %+v, want %+v", meta.IssueCountsByType, want)
	}
}

func TestBuildStatisticsMostDiscussed(t *testing.T) {
	// 12 issues with comments, plus one with zero that must be excluded.
	var issues []extract.Issue
	for i := 1; i <= 12; i++ {
		issues = append(issues, extract.Issue{
			Number:   i,
			Title:    fmt.Sprintf("issue %d", i),
			Comments: i,
		})
	}
	issues = append(issues, extract.Issue{Number: 99, Comments: 0})

	stats := BuildStatistics(issues, nil)

	if len(stats.MostDiscussedIssues) != 10 {
		t.Fatalf("most discussed length = %d, want 10", len(stats.MostDiscussedIssues))
	}
	for i := 1; i < len(stats.MostDiscussedIssues); i++ {
		prev := stats.MostDiscussedIssues[i-1].Comments
		cur := stats.MostDiscussedIssues[i].Comments
		if cur > prev {
			t.Errorf("most discussed not non-increasing at %d: %d then %d", i, prev, cur)
		}
	}
	for _, ref := range stats.MostDiscussedIssues {
		if ref.Number == 99 {
			t.Error("issue with zero comments included in most discussed")
		}
	}
}

func TestBuildStatisticsTiesPreserveInputOrder(t *testing.T) {
	issues := []extract.Issue{
		{Number: 1, Comments: 3},
		{Number: 2, Comments: 5},
		{Number: 3, Comments: 3},
	}

	stats := BuildStatistics(issues, nil)

	gotOrder := []int{}
	for _, ref := range stats.MostDiscussedIssues {
		gotOrder = append(gotOrder, ref.Number)
	}
	if !reflect.DeepEqual(gotOrder, []int{2, 1, 3}) {
		t.Errorf("order = %v, want [2 1 3] (ties keep input order)", gotOrder)
	}
}

func TestLabelRankingTiesKeepFirstAppearance(t *testing.T) {
	issues := []extract.Issue{
		{Number: 1, Labels: []string{"zeta"}},
		{Number: 2, Labels: []string{"alpha"}},
		{Number: 3, Labels: []string{"zeta", "alpha", "top"}},
		{Number: 4, Labels: []string{"top"}},
	}

	stats := BuildStatistics(issues, nil)

	names := []string{}
	for _, nc := range stats.LabelDistribution {
		names = append(names, nc.Name)
	}
	// zeta, alpha, top all have count 2; first appearance order wins.
	if !reflect.DeepEqual(names, []string{"zeta", "alpha", "top"}) {
		t.Errorf("label order = %v, want [zeta alpha top]", names)
	}
}

func TestAggregationIdempotence(t *testing.T) {
	issues := []extract.Issue{
		{Number: 1, State: "open", Labels: []string{"bug"}, Comments: 7, UpdatedAt: "2024-05-01T00:00:00Z"},
		{Number: 2, State: "closed", Labels: []string{"docs"}, Comments: 9, UpdatedAt: "2024-06-01T00:00:00Z"},
	}
	prs := []extract.PullRequest{
		{Number: 3, State: "open", Draft: true, Author: "bob"},
	}

	meta1 := BuildMetadata(issues, prs)
	meta2 := BuildMetadata(issues, prs)
	if !reflect.DeepEqual(meta1, meta2) {
		t.Error("BuildMetadata is not idempotent")
	}

	stats1 := BuildStatistics(issues, prs)
	stats2 := BuildStatistics(issues, prs)
	if !reflect.DeepEqual(stats1, stats2) {
		t.Error("BuildStatistics is not idempotent")
	}

	in1 := BuildInsights(issues, prs, meta1)
	in2 := BuildInsights(issues, prs, meta1)
	if !reflect.DeepEqual(in1, in2) {
		t.Error("BuildInsights is not idempotent")
	}
}

func TestEmptyInputsProduceZeroValues(t *testing.T) {
	meta := BuildMetadata(nil, nil)
	stats := BuildStatistics(nil, nil)
	insights := BuildInsights(nil, nil, meta)

	if len(meta.Labels) != 0 || len(meta.TopAssignees) != 0 || len(meta.Milestones) != 0 {
		t.Errorf("metadata not empty: %+v", meta)
	}
	if meta.IssueCountsByType != (TypeCounts{}) {
		t.Errorf("type counts = %+v, want zero", meta.IssueCountsByType)
	}
	if len(stats.MostDiscussedIssues) != 0 || len(stats.LabelDistribution) != 0 {
		t.Errorf("statistics not empty: %+v", stats)
	}
	if stats.PullRequests != (PRStats{}) {
		t.Errorf("pr stats = %+v, want zero", stats.PullRequests)
	}
	if insights.UnassignedOpenIssuesCount != 0 || insights.DraftPRsCount != 0 ||
		insights.PRsAwaitingReviewCount != 0 {
		t.Errorf("insights counts not zero: %+v", insights)
	}
	if len(insights.HighlyDiscussedIssues) != 0 || len(insights.RecentlyActiveIssues) != 0 {
		t.Errorf("insights rankings not empty: %+v", insights)
	}
}

func TestBuildInsightsRecency(t *testing.T) {
	issues := []extract.Issue{
		{Number: 1, UpdatedAt: "2024-01-15T10:00:00Z"},
		{Number: 2, UpdatedAt: "2024-03-15T10:00:00Z"},
		{Number: 3, UpdatedAt: "2024-02-15T10:00:00Z"},
	}

	insights := BuildInsights(issues, nil, Metadata{})

	gotOrder := []int{}
	for _, a := range insights.RecentlyActiveIssues {
		gotOrder = append(gotOrder, a.Number)
	}
	if !reflect.DeepEqual(gotOrder, []int{2, 3, 1}) {
		t.Errorf("recency order = %v, want [2 3 1]", gotOrder)
	}

	// Input order must be untouched.
	if issues[0].Number != 1 || issues[2].Number != 3 {
		t.Error("BuildInsights mutated its input slice")
	}
}

func TestBuildInsightsReviewSignals(t *testing.T) {
	prs := []extract.PullRequest{
		{Number: 1, State: "open", Draft: true},
		{Number: 2, State: "open", RequestedReviewers: []string{"alice"}},
		{Number: 3, State: "open"},
		{Number: 4, State: "closed"},
	}

	insights := BuildInsights(nil, prs, Metadata{})
	if insights.DraftPRsCount != 1 {
		t.Errorf("draft count = %d, want 1", insights.DraftPRsCount)
	}
	// Open PRs without requested reviewers: #1 and #3.
	if insights.PRsAwaitingReviewCount != 2 {
		t.Errorf("awaiting review = %d, want 2", insights.PRsAwaitingReviewCount)
	}
}

func TestBuildInsightsMostUsedLabelsCap(t *testing.T) {
	var issues []extract.Issue
	for i := 0; i < 15; i++ {
		issues = append(issues, extract.Issue{
			Number: i,
			Labels: []string{fmt.Sprintf("area-%d", i)},
		})
	}

	meta := BuildMetadata(issues, nil)
	insights := BuildInsights(issues, nil, meta)
	if len(insights.MostUsedLabels) != 10 {
		t.Errorf("most used labels = %d entries, want 10", len(insights.MostUsedLabels))
	}
}
