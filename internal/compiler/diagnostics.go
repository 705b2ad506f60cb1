// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package compiler

import (
	"fmt"
	"strings"

	"github.com/minervacm/minerva/internal/catalog"
	"github.com/minervacm/minerva/internal/evaluator"
	"github.com/minervacm/minerva/internal/lexer"
	"github.com/minervacm/minerva/internal/parser"
)

// Diagnostic is a positioned compilation failure ready for printing.
type Diagnostic struct {
	Path    string
	Pos     lexer.Position
	Message string
	Located bool
}

// Diagnose classifies a pipeline error. Lexer errors carry no path of
// their own; the compiling file's path fills it in.
func Diagnose(err error, path string) Diagnostic {
	switch t := err.(type) {
	case *lexer.Error:
		return Diagnostic{Path: path, Pos: t.Pos, Message: t.Message, Located: true}
	case *parser.Error:
		return Diagnostic{Path: path, Pos: t.Pos, Message: t.Message, Located: true}
	case *evaluator.Error:
		return Diagnostic{Path: orPath(t.Path, path), Pos: t.Pos, Message: t.Message, Located: true}
	case *catalog.Error:
		located := t.Pos.Line > 0
		return Diagnostic{Path: orPath(t.Path, path), Pos: t.Pos, Message: t.Message, Located: located}
	}
	return Diagnostic{Path: path, Message: err.Error()}
}

func orPath(path, fallback string) string {
	if path != "" {
		return path
	}
	return fallback
}

// Format renders the diagnostic as
// <file>:<line>:<col>: error: <message>, followed by the offending
// line and a caret when the source is available.
func (d Diagnostic) Format(source string) string {
	var sb strings.Builder
	if !d.Located {
		fmt.Fprintf(&sb, "%s: error: %s\n", d.Path, d.Message)
		return sb.String()
	}

	line, column := lexer.LineAndColumn(source, d.Pos, lexer.TabWidth)
	fmt.Fprintf(&sb, "%s:%d:%d: error: %s\n", d.Path, d.Pos.Line, column, d.Message)
	if line != "" {
		fmt.Fprintf(&sb, "    %s\n", line)
		fmt.Fprintf(&sb, "    %s^\n", strings.Repeat(" ", column-1))
	}
	return sb.String()
}
