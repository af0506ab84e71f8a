package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/maya-1807/finance-manager/internal/core/config"
)

var (
	cfgPath string
	envFile string
	isDebug bool

	// loaded in PersistentPreRunE
	appCfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "fetcher",
	Short: "Bank transaction fetcher",
	Long: `Fetcher logs into each configured bank portal through an external browser
automation command, retries transient failures with exponential backoff, and
writes the transactions to dated JSON snapshots.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file, defaults are used when it does not exist")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with credentials")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

func setup(cmd *cobra.Command, args []string) error {
	if err := loadEnv(envFile, cmd.Flags().Changed("env-file")); err != nil {
		return err
	}

	cfg, err := loadConfig(cfgPath, cmd.Flags().Changed("config"))
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		return err
	}
	appCfg = cfg

	setupLogger(cfg.Logging, isDebug)
	return nil
}

// loadConfig falls back to defaults for a missing file only when the path
// was not given explicitly.
func loadConfig(path string, explicit bool) (*config.AppConfig, error) {
	if explicit {
		return config.Load(path)
	}
	return config.LoadOrDefault(path)
}

// loadEnv loads a dotenv file. A missing file is only an error when the path
// was given explicitly.
func loadEnv(path string, explicit bool) error {
	if err := godotenv.Load(path); err != nil {
		if explicit {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

func setupLogger(cfg config.LoggingConfig, debug bool) {
	level := parseLevel(cfg.Level)
	if debug {
		level = slog.LevelDebug
	}

	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return
	}
	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
