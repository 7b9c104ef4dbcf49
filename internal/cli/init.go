package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize project configuration",
	Long: `Initialize Repolens configuration for the current project.

This creates a .repolens.yaml file with sensible defaults that you can customize.

Example:
  repolens init
  repolens init --owner dotnet --repo eShop`,
	RunE: initProject,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("owner", "", "Repository owner")
	initCmd.Flags().String("repo", "", "Repository name")
	initCmd.Flags().String("output-dir", "output", "Directory for JSON reports")
	initCmd.Flags().Bool("force", false, "Overwrite existing config")
}

type projectConfig struct {
	Repository struct {
		Owner string `yaml:"owner"`
		Name  string `yaml:"name"`
	} `yaml:"repository"`
	GitHub struct {
		Token       string `yaml:"token,omitempty"`
		TokenSecret string `yaml:"token_secret,omitempty"`
	} `yaml:"github"`
	LLM struct {
		Endpoint    string  `yaml:"endpoint"`
		Deployment  string  `yaml:"deployment"`
		APIVersion  string  `yaml:"api_version"`
		Temperature float64 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"llm"`
	MCP struct {
		Command string   `yaml:"command"`
		Args    []string `yaml:"args"`
	} `yaml:"mcp"`
	Output struct {
		Dir         string `yaml:"dir"`
		WriteEvents bool   `yaml:"write_events"`
	} `yaml:"output"`
	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
	} `yaml:"tracing"`
}

func initProject(cmd *cobra.Command, args []string) error {
	configPath := filepath.Join(".", ".repolens.yaml")

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := projectConfig{}
	cfg.Repository.Owner, _ = cmd.Flags().GetString("owner")
	cfg.Repository.Name, _ = cmd.Flags().GetString("repo")
	cfg.Output.Dir, _ = cmd.Flags().GetString("output-dir")

	cfg.LLM.APIVersion = "2024-02-01"
	cfg.LLM.Temperature = 0.1
	cfg.LLM.MaxTokens = 2000
	cfg.MCP.Command = "npx"
	cfg.MCP.Args = []string{"-y", "@modelcontextprotocol/server-github"}
	cfg.Tracing.Host = "https://cloud.langfuse.com"

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Repolens configuration\n" +
		"# Credentials are read from the environment (GITHUB_TOKEN,\n" +
		"# AZURE_OPENAI_API_KEY) or from Secret Manager references.\n\n")
	if err := os.WriteFile(configPath, append(header, data...), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("Next steps:")
	fmt.Println("  1. Set repository.owner and repository.name (or use --owner/--repo flags)")
	fmt.Println("  2. Export GITHUB_TOKEN and AZURE_OPENAI_API_KEY")
	fmt.Println("  3. Run: repolens analyze")
	return nil
}
