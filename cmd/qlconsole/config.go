package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
)

// envPrefix is the prefix of the environment variables read by loadConfig.
const envPrefix = "qlconsole"

// Config holds flag defaults taken from the environment. Flags given on the
// command line win.
type Config struct {
	LogDir      string        `envconfig:"LOGDIR"`
	BotName     string        `envconfig:"BOT_NAME"`
	Format      string        `envconfig:"FORMAT"`
	Workers     int           `envconfig:"WORKERS"`
	Listen      string        `envconfig:"LISTEN"`
	Patterns    string        `envconfig:"PATTERNS"`
	DedupWindow time.Duration `envconfig:"DEDUP_WINDOW"`
}

func loadConfig() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}

// applyConfig sets every flag of cmd that was not given on the command line
// from cfg. Flags the command does not have are skipped.
func applyConfig(cmd *cobra.Command, cfg *Config) error {
	values := map[string]string{
		"log-dir":  cfg.LogDir,
		"bot-name": cfg.BotName,
		"format":   cfg.Format,
		"listen":   cfg.Listen,
		"patterns": cfg.Patterns,
	}
	if cfg.Workers != 0 {
		values["workers"] = strconv.Itoa(cfg.Workers)
	}
	if cfg.DedupWindow != 0 {
		values["dedup"] = cfg.DedupWindow.String()
	}

	for name, value := range values {
		if value == "" {
			continue
		}
		f := cmd.Flags().Lookup(name)
		if f == nil || f.Changed {
			continue
		}
		if err := f.Value.Set(value); err != nil {
			return fmt.Errorf("environment value for --%s: %w", name, err)
		}
	}
	return nil
}
