package cli

import (
	"fmt"
	"os"

	"github.com/andywolf/repolens/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "repolens",
	Short: "Repolens - GitHub repository analyzer",
	Long: `Repolens analyzes a GitHub repository end to end: it discovers the
repository's services and architecture, summarizes its issue and
pull-request activity, and combines both into a single JSON report.

Repository access goes through the GitHub MCP server subprocess;
classification steps use an Azure OpenAI deployment.

Example:
  repolens analyze --owner dotnet --repo eShop`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Set version for --version flag
	rootCmd.Version = version.Short()
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .repolens.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error getting working directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".repolens")
	}

	viper.SetEnvPrefix("REPOLENS")
	viper.AutomaticEnv()

	// Accept the conventional environment names alongside REPOLENS_*.
	_ = viper.BindEnv("github.token", "REPOLENS_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = viper.BindEnv("repository.owner", "REPOLENS_REPOSITORY_OWNER", "GITHUB_REPO_OWNER")
	_ = viper.BindEnv("repository.name", "REPOLENS_REPOSITORY_NAME", "GITHUB_REPO_NAME")
	_ = viper.BindEnv("llm.endpoint", "REPOLENS_LLM_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
	_ = viper.BindEnv("llm.deployment", "REPOLENS_LLM_DEPLOYMENT", "AZURE_OPENAI_DEPLOYMENT")
	_ = viper.BindEnv("llm.api_key", "REPOLENS_LLM_API_KEY", "AZURE_OPENAI_API_KEY")
	_ = viper.BindEnv("llm.api_version", "REPOLENS_LLM_API_VERSION", "AZURE_OPENAI_API_VERSION")
	_ = viper.BindEnv("output.dir", "REPOLENS_OUTPUT_DIR", "OUTPUT_DIR")

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
