// Package config loads taskdash's layered configuration (flags > env >
// config file > defaults), grounded on the teacher's internal/config:
// a single mapstructure-tagged Config tree, a Default() constructor, a
// SetDefaults() that registers the same values with viper, and a Load()
// that unmarshals viper's merged view into the struct (spec §1.1/§6).
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is taskdash's complete configuration tree (spec §6 CLI surface).
type Config struct {
	Tasks  TasksConfig  `mapstructure:"tasks"`
	Hooks  HooksConfig  `mapstructure:"hooks"`
	Events EventsConfig `mapstructure:"events"`
	Watch  WatchConfig  `mapstructure:"watch"`
	Log    LogConfig    `mapstructure:"log"`
}

// TasksConfig locates the plan file parsed and watched by C1/C3 (spec §6:
// "--tasks <PATH> default ./TASKS.md, fallback ./docs/planning/06-tasks.md").
type TasksConfig struct {
	Path         string `mapstructure:"path"`
	FallbackPath string `mapstructure:"fallback_path"`
}

// ResolvedPath returns Path if it exists on fs, else FallbackPath, else Path
// unchanged (so a missing file still produces the expected "no usable
// defaults" fatal error downstream, spec §7).
func (c TasksConfig) ResolvedPath(exists func(string) bool) string {
	if exists(c.Path) {
		return c.Path
	}
	if c.FallbackPath != "" && exists(c.FallbackPath) {
		return c.FallbackPath
	}
	return c.Path
}

// HooksConfig locates the directory the `init` subcommand installs the hook
// producer script into (spec §6: "--hooks <PATH> default .claude/hooks,
// fallback ~/.claude/hooks"). The core watch loop does not read from it.
type HooksConfig struct {
	Path         string `mapstructure:"path"`
	FallbackPath string `mapstructure:"fallback_path"`
}

// EventsConfig locates the directory C2/C4 scan for *.jsonl event files
// (spec §6: "--events <PATH> default ~/.claude/dashboard").
type EventsConfig struct {
	Dir string `mapstructure:"dir"`
}

// WatchConfig tunes the filesystem watcher (C3, spec §4.3).
type WatchConfig struct {
	DebounceMillis         int `mapstructure:"debounce_millis"`
	MaxRetries             int `mapstructure:"max_retries"`
	BackoffBaseMillis      int `mapstructure:"backoff_base_millis"`
	ReconnectCeilingMillis int `mapstructure:"reconnect_ceiling_millis"`
}

// Debounce returns WatchConfig.DebounceMillis as a time.Duration.
func (c WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

// BackoffBase returns WatchConfig.BackoffBaseMillis as a time.Duration.
func (c WatchConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMillis) * time.Millisecond
}

// ReconnectCeiling returns WatchConfig.ReconnectCeilingMillis as a
// time.Duration.
func (c WatchConfig) ReconnectCeiling() time.Duration {
	return time.Duration(c.ReconnectCeilingMillis) * time.Millisecond
}

// LogConfig controls the structured logger (spec ambient stack, §1.2).
type LogConfig struct {
	// Level is one of ValidLogLevels().
	Level string `mapstructure:"level"`
	// Dir is the directory debug.log is written under; empty means stderr.
	Dir string `mapstructure:"dir"`
}

// Default returns a Config with the spec §6 documented defaults.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return &Config{
		Tasks: TasksConfig{
			Path:         "./TASKS.md",
			FallbackPath: "./docs/planning/06-tasks.md",
		},
		Hooks: HooksConfig{
			Path:         ".claude/hooks",
			FallbackPath: filepath.Join(home, ".claude", "hooks"),
		},
		Events: EventsConfig{
			Dir: filepath.Join(home, ".claude", "dashboard"),
		},
		Watch: WatchConfig{
			DebounceMillis:         100,
			MaxRetries:             3,
			BackoffBaseMillis:      250,
			ReconnectCeilingMillis: 2000,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "",
		},
	}
}

// SetDefaults registers Default()'s values with viper so they apply below
// any config file, env var, or flag.
func SetDefaults() {
	d := Default()

	viper.SetDefault("tasks.path", d.Tasks.Path)
	viper.SetDefault("tasks.fallback_path", d.Tasks.FallbackPath)

	viper.SetDefault("hooks.path", d.Hooks.Path)
	viper.SetDefault("hooks.fallback_path", d.Hooks.FallbackPath)

	viper.SetDefault("events.dir", d.Events.Dir)

	viper.SetDefault("watch.debounce_millis", d.Watch.DebounceMillis)
	viper.SetDefault("watch.max_retries", d.Watch.MaxRetries)
	viper.SetDefault("watch.backoff_base_millis", d.Watch.BackoffBaseMillis)
	viper.SetDefault("watch.reconnect_ceiling_millis", d.Watch.ReconnectCeilingMillis)

	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.dir", d.Log.Dir)
}

// Load unmarshals viper's merged view (file, env, flags, defaults) into a
// Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigDir returns the directory taskdash's own config file lives in.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "taskdash")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskdash"
	}
	return filepath.Join(home, ".config", "taskdash")
}

// ConfigFile returns the path to taskdash's config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
