// Package config loads depgraph configuration from file, environment, and
// defaults via viper. Precedence, highest first: environment variables
// (DEPGRAPH_ prefix), the config file, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/planhq/depgraph/internal/types"
)

// Config holds all runtime settings for the dependency graph service.
type Config struct {
	// DatabasePath is the SQLite file backing the edge store.
	DatabasePath string `mapstructure:"database_path"`

	// SpoolDir is the import spool directory watched by `depgraph watch`.
	SpoolDir string `mapstructure:"spool_dir"`

	// DashboardPort is the WebSocket dashboard listen port.
	DashboardPort int `mapstructure:"dashboard_port"`

	// CycleCheckedTypes lists the relation types subject to the
	// acyclicity invariant. Defaults to just "blocks".
	CycleCheckedTypes []string `mapstructure:"cycle_checked_types"`

	// LogFile, when set, sends logs to a rotating file instead of stderr.
	LogFile string `mapstructure:"log_file"`

	// LogMaxSizeMB caps each log file before rotation.
	LogMaxSizeMB int `mapstructure:"log_max_size_mb"`

	// LogMaxBackups caps the number of rotated files kept.
	LogMaxBackups int `mapstructure:"log_max_backups"`
}

// Load reads configuration. A non-empty cfgFile names an explicit config
// file; otherwise depgraph.yaml is searched for in the current directory
// and $HOME/.depgraph. A missing config file is not an error: defaults and
// environment apply.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database_path", ".depgraph/depgraph.db")
	v.SetDefault("spool_dir", ".depgraph/spool")
	v.SetDefault("dashboard_port", 8080)
	v.SetDefault("cycle_checked_types", []string{string(types.DepBlocks)})
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)

	v.SetEnvPrefix("DEPGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("depgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.depgraph")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// DepTypes converts the configured cycle-checked type names.
func (c *Config) DepTypes() []types.DependencyType {
	out := make([]types.DependencyType, 0, len(c.CycleCheckedTypes))
	for _, t := range c.CycleCheckedTypes {
		out = append(out, types.DependencyType(t))
	}
	return out
}

// NewLogger builds the process logger with the given prefix. With LogFile
// set it writes to a size-rotated file; otherwise to stderr.
func (c *Config) NewLogger(prefix string) *log.Logger {
	var w io.Writer = os.Stderr
	if c.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    c.LogMaxSizeMB,
			MaxBackups: c.LogMaxBackups,
		}
	}
	return log.New(w, prefix, log.LstdFlags)
}
