// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/minervacm/minerva/internal/compiler"
	"github.com/minervacm/minerva/internal/logging"
)

// NewGraphCmd creates the graph subcommand: compile and dump the
// dependency graph in GraphViz format.
func NewGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph <manifest>",
		Short: "Compile a manifest and dump its dependency graph as DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return &exitError{code: 2}
			}
			source, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: could not open source file %q.\n", args[0])
				return &exitError{code: 2}
			}

			// Graph output goes to stdout; logs stay on stderr.
			logger := logging.Setup("minerva", version, cfg.LogFormat, cfg.LogLevel, os.Stderr)
			c := compiler.New(cfg, logger)
			result, err := c.Compile(cmd.Context(), args[0], string(source))
			if err != nil {
				fmt.Fprint(os.Stderr, compiler.Diagnose(err, args[0]).Format(string(source)))
				return &exitError{code: 1}
			}

			var buf bytes.Buffer
			if err := result.Catalog.Graph().WriteDOT(&buf); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return &exitError{code: 1}
			}
			fmt.Fprint(cmd.OutOrStdout(), buf.String())
			return nil
		},
	}
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "minerva %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}
