package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/prdraft/prdraft/internal/cache"
	"github.com/prdraft/prdraft/internal/config"
	"github.com/prdraft/prdraft/internal/engine"
	"github.com/prdraft/prdraft/internal/llm"
	"github.com/prdraft/prdraft/internal/logging"
	"github.com/prdraft/prdraft/internal/output"
	"github.com/prdraft/prdraft/internal/prompt"
	"github.com/prdraft/prdraft/internal/source"
	"github.com/prdraft/prdraft/internal/storage"
	"github.com/prdraft/prdraft/internal/styles"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile   string
	verbose   bool
	logger    *logrus.Logger
	logCloser io.Closer
	cfg       *config.Config
)

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "prdraft",
	Short: "PRDraft - AI-drafted pull request titles and descriptions",
	Long: `PRDraft turns a set of commits into a ready-to-use pull request
message: it classifies the changes, composes a structured prompt, and asks
a generative backend for a title and Markdown body. Results are cached and
recorded so identical requests never pay for a second generation.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logrus.New()
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		closer, err := logging.Initialize(logging.DefaultConfig(verbose))
		if err == nil {
			logCloser = closer
		}

		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.prdraft/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`PRDraft {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(templatesCmd)
}

// buildEngine wires the full pipeline. commitSource overrides the default
// GitHub source when non-nil. The returned cleanup closes the store and
// result cache.
func buildEngine(ctx context.Context, commitSource source.CommitSource) (*engine.Engine, func(), error) {
	resolveCredentials(cfg)

	store, err := storage.NewStore(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	results, err := cache.NewResultCache(cfg.Cache, logger)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("open result cache: %w", err)
	}

	client, err := llm.NewClient(ctx, cfg)
	if err != nil {
		store.Close()
		results.Close()
		return nil, nil, err
	}

	resolver, err := styles.NewResolver(styles.DefaultTemplatesPath())
	if err != nil {
		store.Close()
		results.Close()
		return nil, nil, err
	}

	if commitSource == nil {
		commitSource = source.NewGitHubSource(cfg.GitHub, store, logger)
	}

	eng := engine.New(engine.Deps{
		Source:    commitSource,
		Resolver:  resolver,
		Composer:  prompt.NewComposer(cfg.Prompt),
		Generator: client,
		Formatter: output.NewFormatter(cfg.Output),
		Results:   results,
		Store:     store,
	})

	cleanup := func() {
		results.Close()
		store.Close()
	}
	return eng, cleanup, nil
}

// resolveCredentials fills credentials the config file and environment
// didn't provide, walking the keychain and credentials-file chain.
func resolveCredentials(cfg *config.Config) {
	cm := config.NewCredentialManager()

	if cfg.API.OpenAIKey == "" && cfg.API.Provider == "openai" {
		if key, err := cm.GetOpenAIAPIKey(); err == nil {
			cfg.API.OpenAIKey = key
		}
	}
	if cfg.API.GeminiKey == "" && cfg.API.Provider == "gemini" {
		if key, err := cm.GetGeminiAPIKey(); err == nil {
			cfg.API.GeminiKey = key
		}
	}
	if cfg.GitHub.Token == "" {
		if token, err := cm.GetGitHubToken(); err == nil {
			cfg.GitHub.Token = token
		}
	}
}
