// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package evaluator

import (
	"strconv"
	"strings"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/lexer"
	"github.com/minervacm/minerva/internal/parser"
	"github.com/minervacm/minerva/internal/value"
)

// interpolate evaluates a string literal: heredoc margin stripping,
// the permitted escape sequences, and $name / ${expression}
// interpolation for interpolated strings.
func (e *Evaluator) interpolate(n *ast.String) (value.Value, error) {
	text := n.Value
	if n.Quote == lexer.QuoteNone {
		text = stripMargin(text, n.Margin)
	}
	if n.RemoveBreak {
		text = strings.TrimSuffix(text, "\n")
		text = strings.TrimSuffix(text, "\r")
	}

	if !n.Interpolated {
		return value.String(unescape(text, n.Escapes)), nil
	}

	var sb strings.Builder
	base := n.ValueRange.Begin
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\\' && i+1 < len(text):
			consumed, replacement := escapeAt(text, i, n.Escapes)
			sb.WriteString(replacement)
			i += consumed
		case c == '$' && i+1 < len(text) && text[i+1] == '{':
			end := matchBrace(text, i+2)
			if end < 0 {
				return nil, e.errorAt(n.Ctx, "unbalanced '}' in string interpolation.")
			}
			inner := text[i+2 : end]
			pos := advanceText(base, text[:i+2])
			rendered, err := e.interpolateExpression(n.Ctx.Tree, inner, pos)
			if err != nil {
				return nil, err
			}
			sb.WriteString(rendered)
			i = end + 1
		case c == '$' && i+1 < len(text):
			name, length := matchVariableName(text[i+1:])
			if length == 0 {
				sb.WriteByte(c)
				i++
				continue
			}
			v, err := e.interpolateVariable(n, name)
			if err != nil {
				return nil, err
			}
			sb.WriteString(displayString(v))
			i += 1 + length
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return value.String(sb.String()), nil
}

// stripMargin removes the heredoc margin from each line: up to margin
// columns of whitespace, then an optional '|' marker with optional
// '-' and one following space.
func stripMargin(text string, margin int) string {
	if margin <= 0 {
		return text
	}
	lines := strings.SplitAfter(text, "\n")
	var sb strings.Builder
	for _, line := range lines {
		i := 0
		consumed := 0
		for i < len(line) && consumed < margin {
			if line[i] == ' ' {
				consumed++
			} else if line[i] == '\t' {
				consumed += lexer.TabWidth
			} else {
				break
			}
			i++
		}
		if i < len(line) && line[i] == '|' {
			i++
			if i < len(line) && line[i] == '-' {
				i++
			}
			if i < len(line) && line[i] == ' ' {
				i++
			}
		}
		sb.WriteString(line[i:])
	}
	return sb.String()
}

// escapeAt interprets the escape sequence at index i, returning the
// consumed byte count and the replacement. Characters outside the
// permitted set keep their backslash.
func escapeAt(text string, i int, escapes string) (int, string) {
	next := text[i+1]
	if next == '\\' {
		return 2, `\`
	}
	if !strings.ContainsRune(escapes, rune(next)) {
		return 1, `\`
	}
	switch next {
	case 'n':
		return 2, "\n"
	case 'r':
		return 2, "\r"
	case 't':
		return 2, "\t"
	case 's':
		return 2, " "
	case '\'':
		return 2, "'"
	case '"':
		return 2, `"`
	case '$':
		return 2, "$"
	case '\n':
		// Escaped line continuation: the backslash and newline vanish.
		return 2, ""
	case 'u':
		if i+6 <= len(text) {
			if code, err := strconv.ParseUint(text[i+2:i+6], 16, 32); err == nil {
				return 6, string(rune(code))
			}
		}
		return 2, "u"
	}
	return 2, string(next)
}

// unescape processes escapes in a non-interpolated string.
func unescape(text, escapes string) string {
	var sb strings.Builder
	for i := 0; i < len(text); {
		if text[i] == '\\' && i+1 < len(text) {
			consumed, replacement := escapeAt(text, i, escapes)
			sb.WriteString(replacement)
			i += consumed
			continue
		}
		sb.WriteByte(text[i])
		i++
	}
	return sb.String()
}

// matchBrace finds the matching closing brace for a ${ opened just
// before start, tracking nesting. Returns -1 when unbalanced.
func matchBrace(text string, start int) int {
	depth := 1
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// matchVariableName matches the $name form of interpolation: a
// qualified name or a match variable index.
func matchVariableName(text string) (string, int) {
	i := 0
	for i < len(text) {
		c := text[i]
		if c == ':' && i+1 < len(text) && text[i+1] == ':' {
			i += 2
			continue
		}
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			i++
			continue
		}
		break
	}
	return text[:i], i
}

func (e *Evaluator) interpolateVariable(n *ast.String, name string) (value.Value, error) {
	variable := &ast.Variable{Ctx: n.Ctx, Name: name}
	v, err := e.evaluateVariable(variable)
	if err != nil {
		return nil, err
	}
	return value.Deref(v), nil
}

// interpolateExpression sub-parses ${...} contents in interpolation
// mode and evaluates the result, rendering the last statement's
// value.
func (e *Evaluator) interpolateExpression(tree *ast.SyntaxTree, source string, base lexer.Position) (string, error) {
	statements, err := parser.ParseInterpolation(tree, source, base)
	if err != nil {
		if parseErr, ok := err.(*parser.Error); ok {
			return "", &Error{Path: tree.Path, Pos: parseErr.Pos, Message: parseErr.Message}
		}
		return "", err
	}
	// A leading bare name inside ${...} is a variable reference:
	// ${x} and ${facts[os]} resolve x and facts in scope.
	if len(statements) == 1 {
		if name, ok := statements[0].Postfix.Primary.(*ast.Name); ok {
			statements[0].Postfix.Primary = &ast.Variable{Ctx: name.Ctx, Name: name.Value}
		}
	}
	result, err := e.EvaluateBody(statements)
	if err != nil {
		return "", err
	}
	return displayString(result), nil
}

func advanceText(pos lexer.Position, text string) lexer.Position {
	for i := 0; i < len(text); i++ {
		pos.Increment(text[i] == '\n')
	}
	return pos
}
