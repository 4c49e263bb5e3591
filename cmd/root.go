package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/timvw/reel-judge/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	// Global flags.
	flagConfig    string
	flagProvider  string
	flagModel     string
	flagBaseURL   string
	flagAPIKey    string
	flagMaxTokens int64
	flagDBDriver  string
	flagDBDSN     string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "reel-judge",
	Short: "Judge movies against bias tests with an LLM",
	Long: `reel-judge fetches movies from TMDB and asks an LLM to judge each one
against a battery of representation tests (Bechdel, Mako Mori, ...).

For every movie the model is first asked whether it knows the movie at all.
Movies it does not know are skipped and nothing is stored for them. Known
movies get one verdict per test (passed, failed or incomplete), a
justification in English and Spanish, a score and a bilingual summary.

Configuration is loaded from .reel-judge.yaml, ~/.config/reel-judge/config.yaml
or REEL_JUDGE_* environment variables. Flags override both.`,
	SilenceUsage: true,
}

// Execute runs the root command. Cancelling ctx stops in-flight work.
func Execute(ctx context.Context) {
	rootCmd.Version = Version
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: search .reel-judge.yaml, ~/.config/reel-judge/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "LLM provider: anthropic, openai, google")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "LLM model name (default: claude-sonnet-4-5, gpt-4o-mini or gemini-2.5-flash)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "override LLM API base URL")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "override LLM API key")
	rootCmd.PersistentFlags().Int64Var(&flagMaxTokens, "max-tokens", 0, "max completion tokens (default: 4096)")
	rootCmd.PersistentFlags().StringVar(&flagDBDriver, "db-driver", "", "database driver: postgres, sqlite")
	rootCmd.PersistentFlags().StringVar(&flagDBDSN, "db-dsn", "", "database connection string")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig resolves defaults, config file, env vars and flags in that order.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if flagProvider != "" {
		if flagProvider != cfg.LLM.Provider {
			// The configured model and key belong to the other provider.
			cfg.LLM.Model = ""
			if key := config.ProviderAPIKey(flagProvider); key != "" {
				cfg.LLM.APIKey = key
			}
		}
		cfg.LLM.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.LLM.Model = flagModel
	}
	if flagBaseURL != "" {
		cfg.LLM.BaseURL = flagBaseURL
	}
	if flagAPIKey != "" {
		cfg.LLM.APIKey = flagAPIKey
	}
	if flagMaxTokens > 0 {
		cfg.LLM.MaxTokens = flagMaxTokens
	}
	if flagDBDriver != "" {
		cfg.Database.Driver = flagDBDriver
	}
	if flagDBDSN != "" {
		cfg.Database.DSN = flagDBDSN
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
