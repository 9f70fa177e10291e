package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from flags, environment, project
// config, user config, and defaults, in that precedence order.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
	merlinDir  string // resolved <project>/.merlin or MERLIN_FOLDER override
	mu         sync.Mutex
}

// NewLoader creates a loader with merlin's default environment prefix.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "MERLIN",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance, so a
// CLI front-end can bind its own flags before Load runs.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "MERLIN",
	}
}

// WithConfigFile sets an explicit config file path, bypassing search paths.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
//
// Precedence (highest to lowest):
//  1. CLI flags (bound via viper.BindPFlag before Load is called)
//  2. Environment variables (MERLIN_*, with MERLIN_FOLDER controlling where
//     the project config directory is resolved)
//  3. Project config (<MERLIN_FOLDER or ./.merlin>/config.toml)
//  4. User config (~/.merlin/config.toml)
//  5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	l.merlinDir = resolveMerlinDir()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("toml")
		l.v.AddConfigPath(l.merlinDir)
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".merlin"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Workspace.RootPath == "" {
		cfg.Workspace.RootPath = "."
	}
	if !filepath.IsAbs(cfg.Workspace.RootPath) {
		if abs, err := filepath.Abs(cfg.Workspace.RootPath); err == nil {
			cfg.Workspace.RootPath = abs
		}
	}

	return &cfg, nil
}

// MerlinDir returns the resolved <project>/.merlin directory, honoring
// MERLIN_FOLDER. Available after Load has run.
func (l *Loader) MerlinDir() string {
	return l.merlinDir
}

// ConfigFile returns the config file path that was actually used, if any.
func (l *Loader) ConfigFile() string {
	if l.configFile != "" {
		return l.configFile
	}
	return l.v.ConfigFileUsed()
}

func resolveMerlinDir() string {
	if dir := os.Getenv("MERLIN_FOLDER"); dir != "" {
		return dir
	}
	return filepath.Join(".", ".merlin")
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("tiers.local_enabled", true)
	l.v.SetDefault("tiers.local_model", "qwen2.5-coder:7b")
	l.v.SetDefault("tiers.mid_enabled", true)
	l.v.SetDefault("tiers.mid_model", "llama-3.1-70b-versatile")
	l.v.SetDefault("tiers.premium_enabled", true)
	l.v.SetDefault("tiers.premium_provider", "anthropic")
	l.v.SetDefault("tiers.premium_model", "")
	l.v.SetDefault("tiers.max_retries", 3)
	l.v.SetDefault("tiers.timeout_seconds", 300)

	l.v.SetDefault("validation.enabled", true)
	l.v.SetDefault("validation.early_exit", true)
	l.v.SetDefault("validation.syntax_check", true)
	l.v.SetDefault("validation.build_check", true)
	l.v.SetDefault("validation.test_check", true)
	l.v.SetDefault("validation.lint_check", true)
	l.v.SetDefault("validation.build_timeout_seconds", 60)
	l.v.SetDefault("validation.test_timeout_seconds", 300)
	l.v.SetDefault("validation.threshold", 0.8)
	l.v.SetDefault("validation.max_lint_warnings", 10)

	l.v.SetDefault("execution.max_concurrent_tasks", 4)
	l.v.SetDefault("execution.enable_parallel", true)
	l.v.SetDefault("execution.enable_conflict_detection", true)
	l.v.SetDefault("execution.enable_file_locking", true)
	l.v.SetDefault("execution.max_conflict_retries", 3)

	l.v.SetDefault("workspace.root_path", ".")
	l.v.SetDefault("workspace.enable_snapshots", true)
	l.v.SetDefault("workspace.enable_transactions", true)
}
