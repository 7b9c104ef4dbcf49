package issues

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/samber/lo"

	"github.com/andywolf/repolens/internal/extract"
	"github.com/andywolf/repolens/internal/llm"
)

// CategorizedIssue is one triaged issue inside a category.
type CategorizedIssue struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Priority string `json:"priority,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Categories groups issues by triage outcome.
type Categories struct {
	Bugs          []CategorizedIssue `json:"bugs"`
	Features      []CategorizedIssue `json:"features"`
	Enhancements  []CategorizedIssue `json:"enhancements"`
	Documentation []CategorizedIssue `json:"documentation"`
	Questions     []CategorizedIssue `json:"questions"`
	Other         []CategorizedIssue `json:"other"`
}

// Patterns summarizes recurring themes across categorized issues.
type Patterns struct {
	CommonBugAreas           []string `json:"common_bug_areas"`
	FrequentFeatureRequests  []string `json:"frequent_feature_requests"`
	PainPoints               []string `json:"pain_points"`
	ImprovementOpportunities []string `json:"improvement_opportunities"`
}

// CategorizeIssues triages issues with the LLM, falling back to label
// matching when the reply cannot be parsed. Not part of the default
// Analyze flow; callable independently.
func (a *Agent) CategorizeIssues(ctx context.Context, openIssues, closedIssues []extract.Issue) Categories {
	// Closed issues are capped to keep the prompt bounded.
	combined := append(append([]extract.Issue{}, openIssues...), capIssues(closedIssues, 20)...)

	sample, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		sample = []byte("[]")
	}
	excerpt := string(sample)
	if len(excerpt) > 4000 {
		excerpt = excerpt[:4000]
	}

	prompt := `Categorize these GitHub issues into: bugs, features, enhancements, documentation, questions, other.

Issues:
` + excerpt + `

Return JSON:
{
  "bugs": [{"number": 123, "title": "...", "priority": "high|medium|low"}],
  "features": [{"number": 124, "title": "...", "status": "proposed|in-progress"}],
  "enhancements": [{"number": 125, "title": "..."}],
  "documentation": [{"number": 126, "title": "..."}],
  "questions": [{"number": 127, "title": "..."}],
  "other": [{"number": 128, "title": "..."}]
}
`

	reply, err := a.generate(ctx, "categorize-issues", "You are an issue triage expert. Return only valid JSON.", prompt)

	var cats Categories
	if err == nil && llm.DecodeJSON(reply, &cats) {
		return cats
	}

	a.reporter.Fallback(Stage, "issue categorization unparseable", "categorizing by labels")
	return categorizeByLabels(combined)
}

// categorizeByLabels assigns each issue to the first category whose label
// set matches exactly (not substring), in priority order.
func categorizeByLabels(issues []extract.Issue) Categories {
	var cats Categories
	for _, issue := range issues {
		labels := lo.Map(issue.Labels, func(l string, _ int) string { return strings.ToLower(l) })
		ref := CategorizedIssue{Number: issue.Number, Title: issue.Title}

		switch {
		case hasAny(labels, "bug", "defect", "error"):
			cats.Bugs = append(cats.Bugs, ref)
		case hasAny(labels, "feature", "enhancement"):
			cats.Features = append(cats.Features, ref)
		case hasAny(labels, "documentation", "docs"):
			cats.Documentation = append(cats.Documentation, ref)
		case hasAny(labels, "question"):
			cats.Questions = append(cats.Questions, ref)
		default:
			cats.Other = append(cats.Other, ref)
		}
	}
	return cats
}

func hasAny(labels []string, candidates ...string) bool {
	for _, c := range candidates {
		if lo.Contains(labels, c) {
			return true
		}
	}
	return false
}

// IdentifyPatterns asks the LLM for recurring themes across categorized
// issues. On parse failure all fields come back empty. Not part of the
// default Analyze flow.
func (a *Agent) IdentifyPatterns(ctx context.Context, categorized Categories, metadata any) Patterns {
	catJSON, err := json.MarshalIndent(categorized, "", "  ")
	if err != nil {
		catJSON = []byte("{}")
	}
	catExcerpt := string(catJSON)
	if len(catExcerpt) > 3000 {
		catExcerpt = catExcerpt[:3000]
	}

	metaJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		metaJSON = []byte("{}")
	}

	prompt := `Analyze these categorized issues to identify patterns:

Categorized Issues:
` + catExcerpt + `

Metadata:
` + string(metaJSON) + `

Identify patterns and return JSON:
{
  "common_bug_areas": ["area1", "area2"],
  "frequent_feature_requests": ["feature type 1", "feature type 2"],
  "pain_points": ["pain point 1", "pain point 2"],
  "improvement_opportunities": ["opportunity 1", "opportunity 2"]
}
`

	reply, err := a.generate(ctx, "identify-patterns", "You are a pattern analysis expert. Return only valid JSON.", prompt)

	var patterns Patterns
	if err == nil && llm.DecodeJSON(reply, &patterns) {
		return patterns
	}

	a.reporter.Fallback(Stage, "pattern identification unparseable", "returning empty patterns")
	return Patterns{
		CommonBugAreas:           []string{},
		FrequentFeatureRequests:  []string{},
		PainPoints:               []string{},
		ImprovementOpportunities: []string{},
	}
}
