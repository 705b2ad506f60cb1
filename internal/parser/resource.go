// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package parser

import (
	"strings"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/lexer"
)

// parseResourceExpression parses the @ and @@ declaration forms.
func (p *Parser) parseResourceExpression() (ast.PrimaryExpression, error) {
	prefix := p.advance()
	status := ast.ResourceVirtualized
	if prefix.ID == lexer.TokenAtAt {
		status = ast.ResourceExported
	}

	tok := p.current()
	var typeName string
	switch tok.ID {
	case lexer.TokenName, lexer.TokenBareWord:
		typeName = tok.Text
		p.advance()
	case lexer.TokenKeywordClass:
		typeName = "class"
		p.advance()
	default:
		return nil, expected(tok, "resource type")
	}
	return p.parseResourceBodies(prefix.Range.Begin, status, typeName)
}

// parseResourceBodies parses { title: attr => value, ...; ... } after
// a resource type.
func (p *Parser) parseResourceBodies(begin lexer.Position, status ast.ResourceStatus, typeName string) (ast.PrimaryExpression, error) {
	if _, err := p.expect(lexer.TokenLeftBrace, "'{'"); err != nil {
		return nil, err
	}

	node := &ast.ResourceExpression{Status: status, Type: typeName}
	for p.current().ID != lexer.TokenRightBrace {
		bodyBegin := p.current()
		title, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenColon, "':'"); err != nil {
			return nil, err
		}
		operations, err := p.parseAttributeOperations()
		if err != nil {
			return nil, err
		}
		node.Bodies = append(node.Bodies, ast.ResourceBody{
			Ctx:        p.spanContext(bodyBegin.Range.Begin, p.current().Range.Begin),
			Title:      *title,
			Operations: operations,
		})
		if _, ok := p.accept(lexer.TokenSemicolon); !ok {
			break
		}
	}

	end, err := p.expect(lexer.TokenRightBrace, "'}'")
	if err != nil {
		return nil, err
	}
	node.Ctx = p.spanContext(begin, end.Range.End)
	return node, nil
}

// parseAttributeOperations parses a comma-separated attribute list:
// name => value or name +> value. A trailing comma is allowed.
func (p *Parser) parseAttributeOperations() ([]ast.AttributeOperation, error) {
	var operations []ast.AttributeOperation
	for {
		tok := p.current()
		if tok.ID == lexer.TokenRightBrace || tok.ID == lexer.TokenSemicolon {
			return operations, nil
		}
		nameTok, err := p.expectWord("attribute name")
		if err != nil {
			return nil, err
		}

		var op ast.AttributeOp
		opTok := p.current()
		switch opTok.ID {
		case lexer.TokenFatArrow:
			op = ast.AttributeAssign
		case lexer.TokenPlusArrow:
			op = ast.AttributeAppend
		default:
			return nil, expected(opTok, "'=>' or '+>'")
		}
		p.advance()

		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		operations = append(operations, ast.AttributeOperation{
			Ctx:           p.spanContext(nameTok.Range.Begin, value.Context().Range.End),
			Name:          nameTok.Text,
			NamePosition:  nameTok.Range.Begin,
			Op:            op,
			Value:         *value,
			ValuePosition: value.Context().Range.Begin,
		})
		if _, ok := p.accept(lexer.TokenComma); !ok {
			return operations, nil
		}
	}
}

// parseClass parses a class definition, or a class resource
// declaration when the keyword is immediately followed by a brace.
func (p *Parser) parseClass() (ast.PrimaryExpression, error) {
	begin := p.advance() // class
	if p.current().ID == lexer.TokenLeftBrace {
		return p.parseResourceBodies(begin.Range.Begin, ast.ResourceRealized, "class")
	}

	nameTok, err := p.expect(lexer.TokenName, "class name")
	if err != nil {
		return nil, err
	}
	node := &ast.ClassDefinition{Name: nameTok.Text, NamePosition: nameTok.Range.Begin}

	if p.current().ID == lexer.TokenLeftParen {
		p.advance()
		params, err := p.parseParameters(lexer.TokenRightParen)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRightParen, "')'"); err != nil {
			return nil, err
		}
		node.Parameters = params
	}
	if _, ok := p.accept(lexer.TokenKeywordInherits); ok {
		parentTok, err := p.expect(lexer.TokenName, "parent class name")
		if err != nil {
			return nil, err
		}
		node.Parent = parentTok.Text
	}

	body, end, err := p.parseBracedStatements()
	if err != nil {
		return nil, err
	}
	node.Body = body
	node.Ctx = p.spanContext(begin.Range.Begin, end.Range.End)
	return node, nil
}

func (p *Parser) parseDefine() (ast.PrimaryExpression, error) {
	begin := p.advance() // define
	nameTok, err := p.expect(lexer.TokenName, "defined type name")
	if err != nil {
		return nil, err
	}
	node := &ast.DefinedTypeDefinition{Name: nameTok.Text, NamePosition: nameTok.Range.Begin}

	if p.current().ID == lexer.TokenLeftParen {
		p.advance()
		params, err := p.parseParameters(lexer.TokenRightParen)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRightParen, "')'"); err != nil {
			return nil, err
		}
		node.Parameters = params
	}

	body, end, err := p.parseBracedStatements()
	if err != nil {
		return nil, err
	}
	node.Body = body
	node.Ctx = p.spanContext(begin.Range.Begin, end.Range.End)
	return node, nil
}

// parseNode parses a node definition: node matcher, matcher { body }.
// Matchers are literal hostnames, strings, regexes, dotted
// name/number sequences, or default.
func (p *Parser) parseNode() (ast.PrimaryExpression, error) {
	begin := p.advance() // node
	node := &ast.NodeDefinition{}
	for {
		hostname, err := p.parseHostname()
		if err != nil {
			return nil, err
		}
		node.Names = append(node.Names, hostname)
		if _, ok := p.accept(lexer.TokenComma); !ok {
			break
		}
	}

	body, end, err := p.parseBracedStatements()
	if err != nil {
		return nil, err
	}
	node.Body = body
	node.Ctx = p.spanContext(begin.Range.Begin, end.Range.End)
	return node, nil
}

func (p *Parser) parseHostname() (ast.Hostname, error) {
	tok := p.current()
	switch tok.ID {
	case lexer.TokenKeywordDefault:
		p.advance()
		return ast.Hostname{Ctx: p.context(tok.Range), Default: true}, nil
	case lexer.TokenRegex:
		p.advance()
		return ast.Hostname{
			Ctx:   p.context(tok.Range),
			Value: strings.Trim(tok.Text, "/"),
			Regex: true,
		}, nil
	case lexer.TokenString:
		p.advance()
		return ast.Hostname{Ctx: p.context(tok.Range), Value: tok.String.Text}, nil
	case lexer.TokenName, lexer.TokenBareWord, lexer.TokenNumber:
		return p.parseDottedHostname()
	}
	return ast.Hostname{}, expected(tok, "hostname")
}

// parseDottedHostname joins name and number parts separated by dots
// into one matcher, e.g. web01.example.com or 192.168.0.1.
func (p *Parser) parseDottedHostname() (ast.Hostname, error) {
	var sb strings.Builder
	begin := p.current()
	end := begin
	for {
		tok := p.current()
		switch tok.ID {
		case lexer.TokenName, lexer.TokenBareWord, lexer.TokenNumber:
			sb.WriteString(tok.Text)
			end = tok
			p.advance()
		default:
			return ast.Hostname{}, expected(tok, "hostname part")
		}
		if _, ok := p.accept(lexer.TokenDot); !ok {
			break
		}
		sb.WriteByte('.')
	}
	return ast.Hostname{
		Ctx:   p.spanContext(begin.Range.Begin, end.Range.End),
		Value: sb.String(),
	}, nil
}

func (p *Parser) parseFunctionDefinition() (ast.PrimaryExpression, error) {
	begin := p.advance() // function
	nameTok, err := p.expect(lexer.TokenName, "function name")
	if err != nil {
		// A statement-call name parses so that evaluation reports the
		// clash with the built-in function of that name.
		stmt, ok := p.accept(lexer.TokenStatementCall)
		if !ok {
			return nil, err
		}
		nameTok = stmt
	}
	node := &ast.FunctionDefinition{Name: nameTok.Text}

	if _, err := p.expect(lexer.TokenLeftParen, "'('"); err != nil {
		return nil, err
	}
	params, err := p.parseParameters(lexer.TokenRightParen)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRightParen, "')'"); err != nil {
		return nil, err
	}
	node.Parameters = params

	body, end, err := p.parseBracedStatements()
	if err != nil {
		return nil, err
	}
	node.Body = body
	node.Ctx = p.spanContext(begin.Range.Begin, end.Range.End)
	return node, nil
}

// parseTypeAlias parses: type Alias = <type expression>.
func (p *Parser) parseTypeAlias() (ast.PrimaryExpression, error) {
	begin := p.advance() // type
	nameTok, err := p.expect(lexer.TokenType, "type alias name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenAssign, "'='"); err != nil {
		return nil, err
	}
	value, err := p.parseTypePostfix()
	if err != nil {
		return nil, err
	}
	return &ast.TypeAlias{
		Ctx:   p.spanContext(begin.Range.Begin, value.Context().Range.End),
		Name:  nameTok.Text,
		Value: *value,
	}, nil
}
