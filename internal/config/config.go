// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

// Package config loads driver configuration from an optional YAML
// file with flag overrides.
package config

import (
	"errors"
	"io/fs"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds the compile driver's settings.
type Config struct {
	NodeName    string `koanf:"node_name"`
	Environment string `koanf:"environment"`
	Output      string `koanf:"output"`
	LogFormat   string `koanf:"log_format"`
	LogLevel    string `koanf:"log_level"`
	FactsFile   string `koanf:"facts"`
	Validate    bool   `koanf:"validate"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		NodeName:    "localhost",
		Environment: "production",
		LogFormat:   "text",
		LogLevel:    "info",
	}
}

// Load merges defaults, an optional config file, and flag overrides,
// in that order. A missing file at the default path is fine; an
// explicitly named file must exist.
func Load(path string, explicit bool, flags *pflag.FlagSet) (Config, error) {
	cfg := Defaults()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return cfg, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
			}
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return cfg, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.ValidateSettings(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ValidateSettings checks that the configuration is valid.
func (c *Config) ValidateSettings() error {
	if c.NodeName == "" {
		return oops.Code("CONFIG_INVALID").Errorf("node_name cannot be empty")
	}
	if c.Environment == "" {
		return oops.Code("CONFIG_INVALID").Errorf("environment cannot be empty")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	return nil
}

// CandidateNames derives the agent's node name candidates: the full
// name, then progressively shorter prefixes.
func (c *Config) CandidateNames() []string {
	names := []string{c.NodeName}
	name := c.NodeName
	for {
		index := lastDot(name)
		if index < 0 {
			break
		}
		name = name[:index]
		names = append(names, name)
	}
	return names
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
