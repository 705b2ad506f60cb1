// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package parser

import (
	"strings"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/lexer"
)

// ParseTemplate parses source in EPP mode: literal text becomes
// render-string nodes, <%= ... %> becomes render-expression, and
// <% ... %> blocks become render-block nodes. A leading <% |params| %>
// block declares the template's parameters.
func ParseTemplate(path, source string) (*ast.SyntaxTree, error) {
	tree := &ast.SyntaxTree{Path: path, Source: source}

	var statements []ast.Expression
	pos := lexer.Position{Offset: 0, Line: 1}
	first := true

	for pos.Offset < len(source) {
		rest := source[pos.Offset:]
		open := strings.Index(rest, "<%")
		if open < 0 {
			statements = append(statements, renderString(tree, pos, rest))
			break
		}
		if open > 0 {
			text := rest[:open]
			statements = append(statements, renderString(tree, pos, text))
			pos = advanceOver(pos, text)
			rest = source[pos.Offset:]
			if strings.TrimSpace(text) != "" {
				first = false
			}
		}

		// <%% renders a literal <%.
		if strings.HasPrefix(rest, "<%%") {
			statements = append(statements, renderString(tree, pos, "<%"))
			pos = advanceOver(pos, "<%%")
			first = false
			continue
		}

		tagBegin := pos
		kind := "block"
		body := rest[2:]
		pos = advanceOver(pos, "<%")
		switch {
		case strings.HasPrefix(body, "="):
			kind = "expression"
			body = body[1:]
			pos = advanceOver(pos, "=")
		case strings.HasPrefix(body, "#"):
			kind = "comment"
		case strings.HasPrefix(body, "-"):
			body = body[1:]
			pos = advanceOver(pos, "-")
		}

		closing := strings.Index(body, "%>")
		if closing < 0 {
			return nil, &Error{Pos: tagBegin, Message: "expected '%>' to close template tag."}
		}
		inner := body[:closing]
		trimNewline := strings.HasSuffix(inner, "-")
		if trimNewline {
			inner = inner[:len(inner)-1]
		}

		innerBegin := pos
		pos = advanceOver(pos, body[:closing])
		pos = advanceOver(pos, "%>")
		if trimNewline {
			after := source[pos.Offset:]
			if strings.HasPrefix(after, "\r\n") {
				pos = advanceOver(pos, "\r\n")
			} else if strings.HasPrefix(after, "\n") {
				pos = advanceOver(pos, "\n")
			}
		}

		switch kind {
		case "comment":
			// Skipped entirely.
		case "expression":
			exprs, err := ParseInterpolation(tree, inner, innerBegin)
			if err != nil {
				return nil, err
			}
			if len(exprs) != 1 {
				return nil, &Error{Pos: innerBegin, Message: "expected a single expression to render."}
			}
			render := &ast.RenderExpression{
				Ctx:  ast.Context{Range: lexer.Range{Begin: tagBegin, End: pos}, Tree: tree},
				Expr: exprs[0],
			}
			statements = append(statements, wrapPrimary(render))
		default:
			trimmed := strings.TrimSpace(inner)
			if first && strings.HasPrefix(trimmed, "|") {
				params, err := parseTemplateParameters(tree, inner, innerBegin)
				if err != nil {
					return nil, err
				}
				tree.Parameters = params
				first = false
				continue
			}
			exprs, err := ParseInterpolation(tree, inner, innerBegin)
			if err != nil {
				return nil, err
			}
			render := &ast.RenderBlock{
				Ctx:  ast.Context{Range: lexer.Range{Begin: tagBegin, End: pos}, Tree: tree},
				Body: exprs,
			}
			statements = append(statements, wrapPrimary(render))
		}
		first = false
	}

	tree.Statements = statements
	if err := validateTree(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func parseTemplateParameters(tree *ast.SyntaxTree, source string, base lexer.Position) ([]ast.Parameter, error) {
	tokens, err := lexer.New(source).All()
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		tokens[i].Range.Begin = rebase(tokens[i].Range.Begin, base)
		tokens[i].Range.End = rebase(tokens[i].Range.End, base)
	}
	p := &Parser{tokens: tokens, tree: tree}
	params, err := p.parseParameterList()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, expected(p.current(), "end of parameter block")
	}
	return params, nil
}

func renderString(tree *ast.SyntaxTree, pos lexer.Position, text string) ast.Expression {
	end := advanceOver(pos, text)
	node := &ast.RenderString{
		Ctx:   ast.Context{Range: lexer.Range{Begin: pos, End: end}, Tree: tree},
		Value: text,
	}
	return wrapPrimary(node)
}

func wrapPrimary(primary ast.PrimaryExpression) ast.Expression {
	return ast.Expression{Postfix: ast.PostfixExpression{Primary: primary}}
}

func advanceOver(pos lexer.Position, text string) lexer.Position {
	for i := 0; i < len(text); i++ {
		pos.Increment(text[i] == '\n')
	}
	return pos
}
