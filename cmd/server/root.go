package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"bank_ledger/internal/platform/config"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var rootCmdPersistentFlags struct {
	LogFile    string
	ConfigFile string
	LogLevel   string
}

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogFile, "log-file", "", "File to write logs to (overrides log.file)")
	rootCmd.PersistentFlags().StringVarP(&rootCmdPersistentFlags.ConfigFile, "config", "c", "", "Path to config file (default: search for config.yml in current dir, /etc/bank-ledger)")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogLevel, "log-level", "", "Log level (debug, info, warn, error) - overrides config file setting")
}

var rootCmd = &cobra.Command{
	Use:   "bank-ledger",
	Short: "bank-ledger serves a minimal banking ledger over HTTP",
	Long:  `bank-ledger manages customers with one account each, applies deposits and withdrawals atomically and exposes admin routes to create, list and delete users.`,
	Example: `bank-ledger serve --config config.yml
  bank-ledger migrate --log-level debug`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(rootCmdPersistentFlags.ConfigFile)
		if err != nil {
			log.Error("failed to load config", "error", err)
			return err
		}

		level := rootCmdPersistentFlags.LogLevel
		if level == "" {
			level = cfg.Log.Level
		}
		setLogLevel(level)

		file := rootCmdPersistentFlags.LogFile
		if file == "" {
			file = cfg.Log.File
		}
		logToFile(file)
		return nil
	},
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info", "":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("unknown log level %s, defaulting to info", level)
		log.SetLevel(log.InfoLevel)
	}
}

func logToFile(path string) {
	if path == "" {
		log.Debug("no log file specified, logging to console only")
		return
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Errorf("failed to create log directory: %v", err)
			return
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		log.Errorf("failed to open log file: %v", err)
		return
	}

	// Create a multi-writer that writes to both console and file
	multiWriter := io.MultiWriter(os.Stderr, file)
	log.SetOutput(multiWriter)
	log.Info("logging to both console and file", "file", path)
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}
