// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/compiler"
	"github.com/minervacm/minerva/internal/parser"
)

// NewParseCmd creates the parse subcommand: validate a manifest and
// dump its syntax tree as YAML.
func NewParseCmd() *cobra.Command {
	var template bool
	cmd := &cobra.Command{
		Use:   "parse <manifest>",
		Short: "Parse a manifest and dump its syntax tree as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := parseManifest(args[0], template)
			if err != nil {
				return err
			}
			dump, err := ast.DumpYAML(tree)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return &exitError{code: 1}
			}
			fmt.Fprint(cmd.OutOrStdout(), dump)
			return nil
		},
	}
	cmd.Flags().BoolVar(&template, "template", false, "parse in EPP template mode")
	return cmd
}

// NewPrintCmd creates the print subcommand: parse and pretty-print in
// canonical form.
func NewPrintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print <manifest>",
		Short: "Parse a manifest and print it in canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := parseManifest(args[0], false)
			if err != nil {
				return err
			}
			out := tree.String()
			fmt.Fprint(cmd.OutOrStdout(), out)
			if !strings.HasSuffix(out, "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
	return cmd
}

func parseManifest(path string, template bool) (*ast.SyntaxTree, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not open source file %q.\n", path)
		return nil, &exitError{code: 2}
	}
	parse := parser.Parse
	if template {
		parse = parser.ParseTemplate
	}
	tree, err := parse(path, string(source))
	if err != nil {
		fmt.Fprint(os.Stderr, compiler.Diagnose(err, path).Format(string(source)))
		return nil, &exitError{code: 1}
	}
	return tree, nil
}
