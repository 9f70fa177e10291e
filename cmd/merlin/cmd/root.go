// Package cmd wires merlin's cobra commands: flag/config loading follows
// the teacher's root.go layering (flags > env > project config > user
// config > defaults), delegated to internal/config.Loader.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/merlin/internal/config"
	"github.com/hugo-lorenzo-mato/merlin/internal/core"
	"github.com/hugo-lorenzo-mato/merlin/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	noColor   bool
	quiet     bool

	appVersion string
	appCommit  string
	appDate    string

	cfg    *config.Config
	logger *logging.Logger
	loader *config.Loader
)

var rootCmd = &cobra.Command{
	Use:   "merlin",
	Short: "Agentic code-assistant orchestration core",
	Long: `merlin analyzes a natural-language request into a task graph, routes each
task to a model tier, executes tasks with conflict-aware parallelism, and
validates every change before it lands.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return loadConfig()
	},
}

// Execute runs the root command and returns the process exit code per
// spec.md §6: 0 success, 1 user error, 2 provider/availability failure,
// 3 validation terminal failure, 130 cancelled.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("command failed", "error", err)
		} else {
			fmt.Println(err)
		}
		return exitCodeFor(err)
	}
	return 0
}

// SetVersion injects build-time version info, called from main before Execute.
func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func exitCodeFor(err error) int {
	switch core.KindOf(err) {
	case core.KindInvalidTask, core.KindCyclicDependency:
		return 1
	case core.KindProviderUnavailable, core.KindNoAvailableTier, core.KindRateLimitExceeded:
		return 2
	case core.KindValidationFailed, core.KindMaxRetriesExceeded, core.KindMaxConflictRetries, core.KindNoHigherTierAvailable:
		return 3
	case core.KindCancelled:
		return 130
	default:
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .merlin/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto", "log format (auto, text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
}

func loadConfig() error {
	v := viper.New()
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	loader = config.NewLoaderWithViper(v)
	if cfgFile != "" {
		loader = loader.WithConfigFile(cfgFile)
	}

	loaded, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = loaded

	format := logFormat
	if quiet {
		format = "json"
	}
	logger = logging.New(logging.Config{Level: logLevel, Format: format})
	return nil
}
