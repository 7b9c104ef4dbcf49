// Package explorer discovers a repository's services and architecture.
//
// The agent walks a fixed sequence of steps: fetch the README, list
// directories, search for project files, identify services with the LLM,
// fetch per-service detail, synthesize an architecture overview, and
// probe conventional metadata paths. Every step has a deterministic
// fallback, so Explore always returns a usable result.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andywolf/repolens/internal/events"
	"github.com/andywolf/repolens/internal/extract"
	"github.com/andywolf/repolens/internal/llm"
	"github.com/andywolf/repolens/internal/observability"
)

// Stage is the pipeline stage name the explorer reports under.
const Stage = "explore_repository"

// noReadmeFallback is reported when the repository has no README.
const noReadmeFallback = "No README available"

// serviceKeywords drive the deterministic fallback when the LLM cannot
// produce a service list.
var serviceKeywords = []string{"api", "service", "app", "web", "client"}

// executableKeywords mark service names that likely have an entry point
// worth fetching even when no project file was found.
var executableKeywords = []string{".api", "app", "processor", "client", "web"}

// GitHub is the repository access surface the explorer needs.
type GitHub interface {
	Owner() string
	Repo() string
	GetFileContents(ctx context.Context, path string) (string, bool)
	ProbeFile(ctx context.Context, path string) (string, bool)
	SearchCode(ctx context.Context, query string, perPage int) (string, bool)
}

// Repository identifies the analyzed repository.
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

// Service is a discovered service or application. It is speculative:
// fields come from an LLM classification and may be incomplete.
type Service struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	Dependencies []string `json:"dependencies"`
	Type         string   `json:"type"`
	Port         *string  `json:"port"`
}

// Connection is a detected inter-service link.
type Connection struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Method string `json:"method"`
}

// Patterns summarizes cross-cutting architecture traits.
type Patterns struct {
	SharedTechnologies  []string `json:"shared_technologies,omitempty"`
	CommunicationStyles []string `json:"communication_styles,omitempty"`
	ArchitecturePattern string   `json:"architecture_pattern,omitempty"`
}

// FileProbe records whether a conventional metadata file exists.
type FileProbe struct {
	Exists         bool   `json:"exists"`
	Path           string `json:"path,omitempty"`
	ContentPreview string `json:"content_preview,omitempty"`
}

// Workflow describes one CI workflow file.
type Workflow struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// DockerSupport records container tooling presence.
type DockerSupport struct {
	Dockerfile    bool `json:"dockerfile"`
	DockerCompose bool `json:"docker_compose"`
}

// Metadata holds the deterministic conventional-path probe results.
type Metadata struct {
	License       FileProbe     `json:"license"`
	Contributing  FileProbe     `json:"contributing"`
	CodeOfConduct FileProbe     `json:"code_of_conduct"`
	Security      FileProbe     `json:"security"`
	Changelog     FileProbe     `json:"changelog"`
	CICDWorkflows []Workflow    `json:"ci_cd_workflows"`
	DockerSupport DockerSupport `json:"docker_support"`
	Documentation struct {
		HasDocsFolder bool `json:"has_docs_folder"`
	} `json:"documentation"`
	Testing struct {
		HasTestDirectory bool `json:"has_test_directory"`
	} `json:"testing"`
}

// Result is the explorer's contribution to the final report.
type Result struct {
	Repository  Repository   `json:"repository"`
	Overview    string       `json:"overview"`
	Metadata    Metadata     `json:"metadata"`
	Services    []Service    `json:"services"`
	Connections []Connection `json:"connections"`
	Patterns    Patterns     `json:"patterns"`
	TechStack   []string     `json:"tech_stack"`
}

// Agent orchestrates repository exploration.
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

// New creates an explorer Agent.
func New(gh GitHub, gen llm.Generator, opts ...Option) *Agent {
	a := &Agent{gh: gh, gen: gen}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Explore runs the full discovery sequence. It never returns an error:
// each step degrades to its fallback and the sequence continues.
func (a *Agent) Explore(ctx context.Context) Result {
	a.reporter.StageStart(Stage)

	// Step 1: README.
	readme, ok := a.gh.GetFileContents(ctx, "README.md")
	if !ok || readme == "" {
		a.reporter.Fallback(Stage, "no README found", "using placeholder")
		readme = noReadmeFallback
	} else {
		a.reporter.Step(Stage, fmt.Sprintf("fetched README (%d chars)", len(readme)))
	}

	// Step 2: directory structure, src/ first, root as fallback.
	listing, ok := a.gh.GetFileContents(ctx, "src")
	if !ok {
		a.reporter.Fallback(Stage, "no src/ directory", "listing repository root")
		listing, _ = a.gh.GetFileContents(ctx, "")
	}
	directories := extract.ParseDirectoryListing(listing)
	a.reporter.Step(Stage, fmt.Sprintf("found %d directories", len(directories)))

	// Step 3: project files.
	var projectFiles []extract.SearchResult
	if raw, ok := a.gh.SearchCode(ctx, "extension:csproj", 30); ok {
		projectFiles = extract.ParseSearchResults(raw)
	}
	a.reporter.Step(Stage, fmt.Sprintf("found %d project files", len(projectFiles)))

	// Step 4: identify services.
	services := a.identifyServices(ctx, readme, directories, projectFiles)
	a.reporter.Step(Stage, fmt.Sprintf("identified %d services", len(services)))

	// Step 5: per-service detail, sequential to keep remote load bounded.
	detailed := a.serviceDetails(ctx, services)

	// Step 6: architecture synthesis.
	arch := a.analyzeArchitecture(ctx, readme, detailed)

	// Step 7: conventional-path metadata probes.
	metadata := a.extractMetadata(ctx)

	a.reporter.StageEnd(Stage)

	return Result{
		Repository: Repository{
			Owner: a.gh.Owner(),
			Name:  a.gh.Repo(),
			URL:   fmt.Sprintf("https://github.com/%s/%s", a.gh.Owner(), a.gh.Repo()),
		},
		Overview:    arch.Overview,
		Metadata:    metadata,
		Services:    detailed,
		Connections: arch.Connections,
		Patterns:    arch.Patterns,
		TechStack:   arch.TechStack,
	}
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

func (a *Agent) identifyServices(ctx context.Context, readme string, directories []extract.DirEntry, projectFiles []extract.SearchResult) []string {
	prompt := fmt.Sprintf(`You are analyzing a GitHub repository to identify services/applications.

README Content (first 3000 chars):
%s

Directories found:
%s

Project files found:
%s

Based on this information, identify ALL services/applications in this repository.
Look for:
- API services (e.g., Catalog.API, Basket.API)
- Web applications (e.g., WebApp, ClientApp)
- Background services
- Infrastructure/shared libraries (e.g., EventBus, ServiceDefaults)

Return ONLY a JSON array of service names (directory/folder names):
["Service1", "Service2", "Service3"]
`, head(readme, 3000), indentJSON(capDirs(directories, 20)), indentJSON(capResults(projectFiles, 20)))

	reply, err := a.generate(ctx, "identify-services", "You are a repository analysis expert. Return only valid JSON.", prompt)

	var services []string
	if err == nil && llm.DecodeJSON(reply, &services) {
		return services
	}

	// Fallback: directory names containing a service-ish keyword.
	a.reporter.Fallback(Stage, "service identification unparseable", "filtering directories by keyword")
	var fallback []string
	for _, d := range directories {
		lower := strings.ToLower(d.Name)
		for _, kw := range serviceKeywords {
			if strings.Contains(lower, kw) {
				fallback = append(fallback, d.Name)
				break
			}
		}
	}
	return fallback
}

func (a *Agent) serviceDetails(ctx context.Context, services []string) []Service {
	detailed := make([]Service, 0, len(services))
	for _, name := range services {
		projectPath := fmt.Sprintf("src/%s/%s.csproj", name, name)
		projectFile, _ := a.gh.ProbeFile(ctx, projectPath)

		// Entry point is only worth fetching when a project file exists
		// or the name looks executable.
		var entryPoint string
		if projectFile != "" || looksExecutable(name) {
			entryPoint, _ = a.gh.ProbeFile(ctx, fmt.Sprintf("src/%s/Program.cs", name))
		}

		if projectFile == "" && entryPoint == "" {
			a.reporter.Step(Stage, fmt.Sprintf("analyzing %s (minimal metadata)", name))
		} else {
			a.reporter.Step(Stage, fmt.Sprintf("analyzing %s", name))
		}

		detailed = append(detailed, a.analyzeService(ctx, name, projectFile, entryPoint))
	}
	return detailed
}

func (a *Agent) analyzeService(ctx context.Context, name, projectFile, entryPoint string) Service {
	prompt := fmt.Sprintf(`Analyze this service and extract information:

Service Name: %s

Project File (.csproj):
%s

Program.cs:
%s

Extract and return JSON with:
{
  "name": "service name",
  "description": "what this service does (concrete, specific)",
  "technologies": ["tech1", "tech2"],
  "dependencies": ["dependency1", "dependency2"],
  "type": "api|webapp|library|service",
  "port": "port number if found or null"
}
`, name, orNotAvailable(head(projectFile, 2000)), orNotAvailable(head(entryPoint, 2000)))

	reply, err := a.generate(ctx, "analyze-service "+name, "You are a code analysis expert. Return only valid JSON.", prompt)

	var svc Service
	if err == nil && llm.DecodeJSON(reply, &svc) && svc.Name != "" {
		return svc
	}

	a.reporter.Fallback(Stage, "service classification unparseable", name)
	return Service{
		Name:         name,
		Description:  "Service information not available",
		Technologies: []string{},
		Dependencies: []string{},
		Type:         "unknown",
		Port:         nil,
	}
}

// architecture is the shape of the overview classification reply.
type architecture struct {
	Overview    string       `json:"overview"`
	Connections []Connection `json:"connections"`
	Patterns    Patterns     `json:"patterns"`
	TechStack   []string     `json:"tech_stack"`
}

func (a *Agent) analyzeArchitecture(ctx context.Context, readme string, services []Service) architecture {
	prompt := fmt.Sprintf(`Analyze this repository's architecture:

README:
%s

Services:
%s

Provide JSON with:
{
  "overview": "brief description of the repository",
  "connections": [
    {"from": "ServiceA", "to": "ServiceB", "method": "REST|gRPC|Events"}
  ],
  "patterns": {
    "shared_technologies": ["tech1", "tech2"],
    "communication_styles": ["REST", "Events"],
    "architecture_pattern": "microservices|monolith|modular"
  },
  "tech_stack": ["primary technologies used"]
}
`, head(readme, 4000), indentJSON(services))

	reply, err := a.generate(ctx, "analyze-architecture", "You are an architecture analysis expert. Return only valid JSON.", prompt)

	var arch architecture
	if err == nil && llm.DecodeJSON(reply, &arch) {
		return arch
	}

	a.reporter.Fallback(Stage, "architecture analysis unparseable", "returning empty defaults")
	return architecture{Connections: []Connection{}, TechStack: []string{}}
}

// metadataPaths lists the conventional paths per category; first match wins.
var metadataPaths = []struct {
	set   func(*Metadata, FileProbe)
	paths []string
}{
	{func(m *Metadata, p FileProbe) { m.License = p }, []string{"LICENSE", "LICENSE.md", "LICENSE.txt"}},
	{func(m *Metadata, p FileProbe) { m.Contributing = p }, []string{"CONTRIBUTING.md", "CONTRIBUTING", ".github/CONTRIBUTING.md"}},
	{func(m *Metadata, p FileProbe) { m.CodeOfConduct = p }, []string{"CODE_OF_CONDUCT.md", ".github/CODE_OF_CONDUCT.md"}},
	{func(m *Metadata, p FileProbe) { m.Security = p }, []string{"SECURITY.md", ".github/SECURITY.md"}},
	{func(m *Metadata, p FileProbe) { m.Changelog = p }, []string{"CHANGELOG.md", "CHANGELOG", "HISTORY.md"}},
}

func (a *Agent) extractMetadata(ctx context.Context) Metadata {
	var m Metadata

	for _, category := range metadataPaths {
		probe := FileProbe{}
		for _, path := range category.paths {
			if content, ok := a.gh.ProbeFile(ctx, path); ok {
				probe = FileProbe{Exists: true, Path: path, ContentPreview: head(content, 200)}
				break
			}
		}
		category.set(&m, probe)
	}

	m.CICDWorkflows = []Workflow{}
	if raw, ok := a.gh.ProbeFile(ctx, ".github/workflows"); ok {
		for _, f := range extract.ParseFileListing(raw) {
			m.CICDWorkflows = append(m.CICDWorkflows, Workflow{Name: f.Name, Path: f.Path})
		}
	}

	_, m.DockerSupport.Dockerfile = a.gh.ProbeFile(ctx, "Dockerfile")
	_, m.DockerSupport.DockerCompose = a.gh.ProbeFile(ctx, "docker-compose.yml")

	_, m.Documentation.HasDocsFolder = a.gh.ProbeFile(ctx, "docs")

	for _, dir := range []string{"tests", "test", "Tests", "Test"} {
		if _, ok := a.gh.ProbeFile(ctx, dir); ok {
			m.Testing.HasTestDirectory = true
			break
		}
	}

	a.reporter.Step(Stage, "extracted repository metadata")
	return m
}

func looksExecutable(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range executableKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// head returns at most n bytes of s without splitting a rune at the cut.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func orNotAvailable(s string) string {
	if s == "" {
		return "Not available"
	}
	return s
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

func capDirs(dirs []extract.DirEntry, n int) []extract.DirEntry {
	if len(dirs) > n {
		return dirs[:n]
	}
	return dirs
}

func capResults(results []extract.SearchResult, n int) []extract.SearchResult {
	if len(results) > n {
		return results[:n]
	}
	return results
}
