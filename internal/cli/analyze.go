package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andywolf/repolens/internal/cloud/gcp"
	"github.com/andywolf/repolens/internal/config"
	"github.com/andywolf/repolens/internal/events"
	"github.com/andywolf/repolens/internal/explorer"
	"github.com/andywolf/repolens/internal/github"
	"github.com/andywolf/repolens/internal/issues"
	"github.com/andywolf/repolens/internal/llm"
	"github.com/andywolf/repolens/internal/mcp"
	"github.com/andywolf/repolens/internal/observability"
	"github.com/andywolf/repolens/internal/pipeline"
	"github.com/andywolf/repolens/internal/report"
	"github.com/andywolf/repolens/internal/version"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a GitHub repository",
	Long: `Analyze a GitHub repository and write a combined JSON report.

The analysis runs three stages in sequence: repository exploration
(services, architecture, metadata), issue analysis (labels, authors,
statistics, insights), and result combination.

Example:
  repolens analyze --owner dotnet --repo eShop --output-dir reports`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("owner", "", "Repository owner (user or organization)")
	analyzeCmd.Flags().String("repo", "", "Repository name")
	analyzeCmd.Flags().String("branch", "", "Branch to read files from (default: repository default branch)")
	analyzeCmd.Flags().String("output-dir", "", "Directory for the JSON report")
	analyzeCmd.Flags().Bool("write-events", false, "Also write a JSONL event log next to the report")
	analyzeCmd.Flags().Bool("dry-run", false, "Validate configuration and show the plan without running")

	_ = viper.BindPFlag("repository.owner", analyzeCmd.Flags().Lookup("owner"))
	_ = viper.BindPFlag("repository.name", analyzeCmd.Flags().Lookup("repo"))
	_ = viper.BindPFlag("output.dir", analyzeCmd.Flags().Lookup("output-dir"))
	_ = viper.BindPFlag("output.write_events", analyzeCmd.Flags().Lookup("write-events"))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt signal, cleaning up...")
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateForAnalyze(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runID := fmt.Sprintf("repolens-%s", uuid.New().String()[:8])

	fmt.Printf("Run ID: %s\n", runID)
	fmt.Printf("Repository: %s/%s\n", cfg.Repository.Owner, cfg.Repository.Name)
	fmt.Printf("Output directory: %s\n", cfg.Output.Dir)
	fmt.Println()

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fmt.Println("Dry run - no analysis will be performed")
		return nil
	}

	appKeyPEM, err := resolveSecrets(ctx, cfg)
	if err != nil {
		return err
	}

	githubToken, err := githubToken(cfg, appKeyPEM)
	if err != nil {
		return err
	}

	// Progress reporting, optionally persisted as JSONL.
	reporterOpts := []events.ReporterOption{}
	if cfg.Output.WriteEvents {
		sink, sinkErr := events.NewFileSink(cfg.Output.EventsDir, runID)
		if sinkErr != nil {
			return fmt.Errorf("failed to open event log: %w", sinkErr)
		}
		defer func() { _ = sink.Close() }()
		reporterOpts = append(reporterOpts, events.WithSink(sink))
	}
	reporter := events.NewReporter(runID, reporterOpts...)

	tracer := buildTracer(cfg)
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = tracer.Stop(stopCtx)
	}()

	repoRef := fmt.Sprintf("%s/%s", cfg.Repository.Owner, cfg.Repository.Name)
	trace := tracer.StartTrace(runID, observability.TraceOptions{
		Repository: repoRef,
		RunID:      runID,
	})

	// The MCP server is the one scoped resource of the run: acquired here,
	// torn down on every exit path.
	client, err := mcp.Connect(ctx, mcp.Options{
		Command:       cfg.MCP.Command,
		Args:          cfg.MCP.Args,
		Env:           map[string]string{"GITHUB_PERSONAL_ACCESS_TOKEN": githubToken},
		ClientName:    "repolens",
		ClientVersion: version.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to start GitHub MCP server: %w", err)
	}
	defer func() { _ = client.Close() }()

	toolsOpts := []github.ToolsOption{}
	if branch, _ := cmd.Flags().GetString("branch"); branch != "" {
		toolsOpts = append(toolsOpts, github.WithBranch(branch))
	}
	tools := github.NewTools(client, cfg.Repository.Owner, cfg.Repository.Name, toolsOpts...)

	generator, err := llm.NewClient(llm.Config{
		Endpoint:    cfg.LLM.Endpoint,
		Deployment:  cfg.LLM.Deployment,
		APIVersion:  cfg.LLM.APIVersion,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	exploreSpan := &spanHolder{}
	explorerAgent := explorer.New(tools, generator,
		explorer.WithReporter(reporter),
		explorer.WithGenerationRecorder(recordInto(tracer, cfg.LLM.Deployment, exploreSpan)),
	)

	issuesSpan := &spanHolder{}
	issuesAgent := issues.New(tools, generator,
		issues.WithReporter(reporter),
		issues.WithGenerationRecorder(recordInto(tracer, cfg.LLM.Deployment, issuesSpan)),
	)

	pipe := pipeline.New(
		&tracedExplorer{agent: explorerAgent, tracer: tracer, trace: trace, span: exploreSpan},
		&tracedAnalyzer{agent: issuesAgent, tracer: tracer, trace: trace, span: issuesSpan},
		pipeline.WithReporter(reporter),
		pipeline.WithRunID(runID),
	)

	final := pipe.Run(ctx, pipeline.NewState(cfg.Repository.Owner, cfg.Repository.Name))

	writer := report.NewWriter(cfg.Output.Dir)
	path, err := writer.Write(cfg.Repository.Owner, cfg.Repository.Name, final.FinalOutput)
	if err != nil {
		tracer.CompleteTrace(trace, observability.CompleteOptions{Status: "failed"})
		return fmt.Errorf("failed to write report: %w", err)
	}
	tracer.CompleteTrace(trace, observability.CompleteOptions{Status: "completed", ReportPath: path})

	fmt.Println()
	fmt.Printf("Analysis complete\n")
	fmt.Printf("  Report: %s\n", path)
	fmt.Printf("  Services found: %d\n", len(final.FinalOutput.Repository.Services))
	fmt.Printf("  Open issues: %d\n", final.FinalOutput.Issues.Summary.TotalOpenIssues)
	fmt.Printf("  Connections: %d\n", len(final.FinalOutput.Repository.Connections))

	return nil
}

// resolveSecrets fills in config values referenced through Secret Manager.
// resolveSecrets fills in token and API key config values from Secret
// Manager and returns the GitHub App private key PEM, if one is configured.
func resolveSecrets(ctx context.Context, cfg *config.Config) (string, error) {
	needsResolver := (cfg.GitHub.Token == "" && cfg.GitHub.TokenSecret != "") ||
		(cfg.LLM.APIKey == "" && cfg.LLM.APIKeySecret != "") ||
		cfg.GitHub.UsesApp()
	if !needsResolver {
		return "", nil
	}

	resolver, err := gcp.NewResolver(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create secret resolver: %w", err)
	}
	defer func() { _ = resolver.Close() }()

	if cfg.GitHub.Token == "" && cfg.GitHub.TokenSecret != "" {
		cfg.GitHub.Token, err = resolver.Resolve(ctx, cfg.GitHub.TokenSecret)
		if err != nil {
			return "", fmt.Errorf("failed to resolve GitHub token secret: %w", err)
		}
	}

	if cfg.LLM.APIKey == "" && cfg.LLM.APIKeySecret != "" {
		cfg.LLM.APIKey, err = resolver.Resolve(ctx, cfg.LLM.APIKeySecret)
		if err != nil {
			return "", fmt.Errorf("failed to resolve LLM API key secret: %w", err)
		}
	}

	var appKeyPEM string
	if cfg.GitHub.UsesApp() {
		appKeyPEM, err = resolver.Resolve(ctx, cfg.GitHub.PrivateKeySecret)
		if err != nil {
			return "", fmt.Errorf("failed to resolve GitHub App private key: %w", err)
		}
	}

	return appKeyPEM, nil
}

// githubToken yields the token handed to the MCP server: either the
// configured personal access token or a short-lived installation token.
func githubToken(cfg *config.Config, appKeyPEM string) (string, error) {
	if cfg.GitHub.Token != "" {
		return cfg.GitHub.Token, nil
	}

	auth, err := github.NewAppAuth(
		fmt.Sprintf("%d", cfg.GitHub.AppID),
		cfg.GitHub.InstallationID,
		[]byte(appKeyPEM),
	)
	if err != nil {
		return "", fmt.Errorf("failed to set up GitHub App auth: %w", err)
	}

	token, err := auth.Token()
	if err != nil {
		return "", fmt.Errorf("failed to mint installation token: %w", err)
	}
	return token, nil
}

func buildTracer(cfg *config.Config) observability.Tracer {
	if !cfg.Tracing.Enabled || cfg.Tracing.PublicKey == "" {
		return &observability.NoOpTracer{}
	}
	return observability.NewLangfuseTracer(observability.LangfuseConfig{
		PublicKey: cfg.Tracing.PublicKey,
		SecretKey: cfg.Tracing.SecretKey,
		BaseURL:   cfg.Tracing.Host,
	}, log.Default())
}

// spanHolder lets generation recorders see the span opened for the stage
// they run inside.
type spanHolder struct {
	span observability.SpanContext
}

func recordInto(tracer observability.Tracer, model string, holder *spanHolder) func(observability.GenerationInput) {
	return func(gen observability.GenerationInput) {
		gen.Model = model
		tracer.RecordGeneration(holder.span, gen)
	}
}

// tracedExplorer wraps the explorer agent in a stage span.
type tracedExplorer struct {
	agent  *explorer.Agent
	tracer observability.Tracer
	trace  observability.TraceContext
	span   *spanHolder
}

func (t *tracedExplorer) Explore(ctx context.Context) explorer.Result {
	t.span.span = t.tracer.StartStage(t.trace, explorer.Stage, observability.SpanOptions{})
	start := time.Now()
	result := t.agent.Explore(ctx)
	t.tracer.EndStage(t.span.span, "completed", time.Since(start).Milliseconds())
	return result
}

// tracedAnalyzer wraps the issues agent in a stage span.
type tracedAnalyzer struct {
	agent  *issues.Agent
	tracer observability.Tracer
	trace  observability.TraceContext
	span   *spanHolder
}

func (t *tracedAnalyzer) Analyze(ctx context.Context) issues.Result {
	t.span.span = t.tracer.StartStage(t.trace, issues.Stage, observability.SpanOptions{})
	start := time.Now()
	result := t.agent.Analyze(ctx)
	t.tracer.EndStage(t.span.span, "completed", time.Since(start).Milliseconds())
	return result
}
