// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Minerva CLI. A bare
// manifest argument is shorthand for the compile subcommand.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minerva [manifest]",
		Short: "Minerva - a manifest compiler",
		Long: `Minerva compiles declarative configuration manifests into
catalogs: resource graphs with attributes, relationships, and
containment, emitted as JSON for an agent to apply.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return cmd.Usage()
			}
			return runCompile(cmd, args[0])
		},
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	addCompileFlags(cmd.PersistentFlags())

	// Add subcommands
	cmd.AddCommand(NewCompileCmd())
	cmd.AddCommand(NewParseCmd())
	cmd.AddCommand(NewPrintCmd())
	cmd.AddCommand(NewGraphCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// addCompileFlags registers the driver settings. Flag names map onto
// config keys with dashes replaced by underscores.
func addCompileFlags(flags *pflag.FlagSet) {
	flags.String("node-name", "localhost", "node name the catalog is compiled for")
	flags.String("environment", "production", "environment recorded in the catalog")
	flags.StringP("output", "o", "", "catalog output path (default: stdout)")
	flags.String("log-format", "text", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("facts", "", "YAML facts file bound into the top scope")
	flags.Bool("validate", false, "validate the emitted catalog against its schema")
}

// configKey maps a flag name to its config key.
func configKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}
