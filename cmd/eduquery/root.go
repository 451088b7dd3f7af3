package main

import (
	"fmt"
	"os"

	"github.com/eduquery/eduquery/internal/backend"
	"github.com/eduquery/eduquery/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "eduquery",
	Short: "Ask questions about your uploaded PDF notes",
	Long: `EduQuery is a thin client for a PDF question answering service.
It serves a single page where a PDF can be uploaded and questions asked,
and offers the same two operations on the command line.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "base URL of the answering service (overrides backend.api_url)")

	rootCmd.AddCommand(serveCmd, uploadCmd, askCmd)
}

// loadConfig reads configuration and applies command line overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if apiURL, _ := cmd.Flags().GetString("api-url"); apiURL != "" {
		cfg.Backend.APIURL = apiURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// setup loads config, builds the logger and the backend client shared by all commands
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, *backend.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := backend.NewClient(cfg.Backend, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	return cfg, logger, client, nil
}
