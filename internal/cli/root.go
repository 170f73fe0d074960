package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"ragalert/config"
	"ragalert/internal/app"
	"ragalert/internal/logging"
)

var (
	cfgFile   string
	cfg       *config.Config
	rootDir   string
	logLevel  string
	logFormat string
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragalert",
	Short: "Document QA assistant with incident alerting",
	Long: `ragalert answers questions over a directory of PDF manuals, e-mails the
plant manager when an answer describes an incident, and turns chat transcripts
into PDF incident reports.

Example usage:
  ragalert serve --watch                         # HTTP API, rebuild on changes
  ragalert ingest ./pdfs                         # Build the index once
  ragalert ask -q "¿Qué hago ante una fuga?"     # Ask from the terminal
  ragalert report -t chat.json                   # Render an incident report`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			return fmt.Errorf("invalid environment: %w", err)
		}

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		format := cfg.Logging.Format
		if logFormat != "" {
			format = logFormat
		}
		logger, err = logging.New(os.Stderr, level, format)
		if err != nil {
			return err
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ragalert.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default from config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "text or json (default from config)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// openService builds the service for a single command. Callers must Close it.
func openService(opts ...app.Option) (*app.Service, error) {
	svc, err := app.New(GetConfig(), GetRootDir(), logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return svc, nil
}
