// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/minervacm/minerva/internal/catalog"
	"github.com/minervacm/minerva/internal/compiler"
	"github.com/minervacm/minerva/internal/config"
	"github.com/minervacm/minerva/internal/logging"
)

// NewCompileCmd creates the compile subcommand.
func NewCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <manifest>",
		Short: "Compile a manifest into a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args[0])
		},
	}
}

// loadConfig merges the config file and the command's flags.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg := config.Defaults()
	k := koanf.New(".")
	path := configFile
	if path == "" {
		path = "minerva.yaml"
	}
	base, err := config.Load(path, configFile != "", nil)
	if err != nil {
		return cfg, err
	}
	cfg = base

	if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
		if !f.Changed {
			return "", nil
		}
		return configKey(f.Name), posflag.FlagVal(flags, f)
	}), nil); err != nil {
		return cfg, err
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.ValidateSettings()
}

func runCompile(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return &exitError{code: 2}
	}

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not open source file %q.\n", path)
		return &exitError{code: 2}
	}

	logger := logging.Setup("minerva", version, cfg.LogFormat, cfg.LogLevel, os.Stderr)
	c := compiler.New(cfg, logger)
	result, err := c.Compile(cmd.Context(), path, string(source))
	if err != nil {
		fmt.Fprint(os.Stderr, compiler.Diagnose(err, path).Format(string(source)))
		return &exitError{code: 1}
	}

	var out io.Writer = cmd.OutOrStdout()
	if cfg.Output != "" {
		file, err := os.Create(cfg.Output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: could not create output file %q.\n", cfg.Output)
			return &exitError{code: 2}
		}
		defer file.Close()
		out = file
	}

	if cfg.Validate {
		if err := writeValidated(result.Catalog, out, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return &exitError{code: 1}
		}
		return nil
	}
	if err := result.Catalog.Write(out, cfg.NodeName, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return &exitError{code: 1}
	}
	return nil
}

// writeValidated renders the catalog once, validates it against the
// schema, then writes it out.
func writeValidated(cat *catalog.Catalog, out io.Writer, cfg config.Config) error {
	var buf bytes.Buffer
	if err := cat.Write(&buf, cfg.NodeName, cfg.Environment); err != nil {
		return err
	}
	if err := catalog.ValidateSchema(buf.Bytes()); err != nil {
		return err
	}
	_, err := out.Write(buf.Bytes())
	return err
}
