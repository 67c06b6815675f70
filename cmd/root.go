// Package cmd holds the shipmonitor command line.
package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shipmonitor/artifact"
	"shipmonitor/config"
	"shipmonitor/logging"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "shipmonitor",
	Short: "Shipping on-time delivery monitor",
	Long: `shipmonitor serves a dashboard over a reference shipping dataset and a
pre-trained on-time delivery classifier.

Configuration is read from config.yaml, then .env and SHIPMON_* environment
variables, then command line flags.`,
	SilenceUsage: true,
}

// Execute runs the command selected by os.Args.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig resolves the effective configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		cfg.Http.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// newChain builds the artifact chain: the configured local file first, then
// the remote repository.
func newChain(cfg *config.Config, logger *zap.Logger) *artifact.Chain {
	m := cfg.Model
	return artifact.NewChain(logger,
		&artifact.LocalProvider{Path: m.Path},
		&artifact.RemoteProvider{
			BaseURL:        m.BaseURL,
			Repository:     m.Repository,
			Filename:       m.Filename,
			Revision:       m.Revision,
			CacheDir:       m.CacheDir,
			Token:          m.Token,
			MaxAttempts:    m.MaxAttempts,
			InitialBackoff: m.InitialBackoff,
			Logger:         logger,
		},
	)
}
