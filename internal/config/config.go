package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents the full repolens configuration
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository"`
	GitHub     GitHubConfig     `mapstructure:"github"`
	LLM        LLMConfig        `mapstructure:"llm"`
	MCP        MCPConfig        `mapstructure:"mcp"`
	Output     OutputConfig     `mapstructure:"output"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// RepositoryConfig identifies the repository to analyze
type RepositoryConfig struct {
	Owner string `mapstructure:"owner"`
	Name  string `mapstructure:"name"`
}

// GitHubConfig contains GitHub authentication settings.
// Either a personal access token (possibly secret-sourced) or
// GitHub App credentials must be provided.
type GitHubConfig struct {
	Token            string `mapstructure:"token"`
	TokenSecret      string `mapstructure:"token_secret"` // Secret Manager path
	AppID            int64  `mapstructure:"app_id"`
	InstallationID   int64  `mapstructure:"installation_id"`
	PrivateKeySecret string `mapstructure:"private_key_secret"`
}

// LLMConfig contains Azure OpenAI settings
type LLMConfig struct {
	Endpoint     string  `mapstructure:"endpoint"`
	Deployment   string  `mapstructure:"deployment"`
	APIVersion   string  `mapstructure:"api_version"`
	APIKey       string  `mapstructure:"api_key"`
	APIKeySecret string  `mapstructure:"api_key_secret"` // Secret Manager path
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
}

// MCPConfig contains settings for the GitHub MCP server subprocess
type MCPConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// OutputConfig contains report output settings
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	EventsDir   string `mapstructure:"events_dir"`
	WriteEvents bool   `mapstructure:"write_events"`
}

// TracingConfig contains Langfuse tracing settings
type TracingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	PublicKey string `mapstructure:"public_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	cfg := &Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.MCP.Command == "" {
		cfg.MCP.Command = "npx"
	}

	if len(cfg.MCP.Args) == 0 {
		cfg.MCP.Args = []string{"-y", "@modelcontextprotocol/server-github"}
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "output"
	}

	if cfg.Output.EventsDir == "" {
		cfg.Output.EventsDir = cfg.Output.Dir
	}

	if cfg.LLM.APIVersion == "" {
		cfg.LLM.APIVersion = "2024-02-01"
	}

	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.1
	}

	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2000
	}

	if cfg.Tracing.Host == "" {
		cfg.Tracing.Host = "https://cloud.langfuse.com"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MCP.Command == "" {
		return fmt.Errorf("mcp command is required")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("invalid llm temperature: %v (must be between 0 and 2)", c.LLM.Temperature)
	}

	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("invalid llm max_tokens: %d", c.LLM.MaxTokens)
	}

	return nil
}

// ValidateForAnalyze performs additional validation required before running an analysis
func (c *Config) ValidateForAnalyze() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Repository.Owner == "" {
		return fmt.Errorf("repository owner is required")
	}

	if c.Repository.Name == "" {
		return fmt.Errorf("repository name is required")
	}

	if !c.GitHub.HasCredentials() {
		return fmt.Errorf("GitHub credentials are required: set github.token, github.token_secret, or GitHub App credentials")
	}

	if c.GitHub.AppID != 0 || c.GitHub.InstallationID != 0 || c.GitHub.PrivateKeySecret != "" {
		if c.GitHub.AppID == 0 {
			return fmt.Errorf("GitHub App ID is required when using App authentication")
		}
		if c.GitHub.InstallationID == 0 {
			return fmt.Errorf("GitHub App Installation ID is required when using App authentication")
		}
		if c.GitHub.PrivateKeySecret == "" {
			return fmt.Errorf("GitHub App private key secret path is required when using App authentication")
		}
	}

	if c.LLM.Endpoint == "" {
		return fmt.Errorf("llm endpoint is required")
	}

	if c.LLM.Deployment == "" {
		return fmt.Errorf("llm deployment is required")
	}

	if c.LLM.APIKey == "" && c.LLM.APIKeySecret == "" {
		return fmt.Errorf("llm api_key or api_key_secret is required")
	}

	return nil
}

// HasCredentials reports whether any GitHub credential source is configured.
func (g *GitHubConfig) HasCredentials() bool {
	if g.Token != "" || g.TokenSecret != "" {
		return true
	}
	return g.AppID != 0 && g.InstallationID != 0 && g.PrivateKeySecret != ""
}

// UsesApp reports whether GitHub App authentication is configured.
func (g *GitHubConfig) UsesApp() bool {
	return g.Token == "" && g.TokenSecret == "" &&
		g.AppID != 0 && g.InstallationID != 0 && g.PrivateKeySecret != ""
}
