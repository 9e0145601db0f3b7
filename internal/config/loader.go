package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if ULTRASTATE_CONFIG is set
//  3. env (prefix ULTRASTATE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("ULTRASTATE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: ULTRASTATE_WATCH_DIR, ULTRASTATE_MAX_HR, ...
	// Keys keep their underscores to match the koanf tags.
	envProvider := env.Provider("ULTRASTATE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "ultrastate_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.WatchDir == "" {
		return fmt.Errorf("%w: watch_dir must not be empty", ErrInvalidConfig)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	}
	if c.MaxHR <= c.RestingHR {
		return fmt.Errorf("%w: max_hr must exceed resting_hr", ErrInvalidConfig)
	}
	if !(c.LoadBase < c.LoadOverload && c.LoadOverload < c.LoadOverreaching) {
		return fmt.Errorf("%w: load cut-points must ascend", ErrInvalidConfig)
	}
	return nil
}
