// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package parser

import (
	"strings"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/lexer"
)

func (p *Parser) parsePrimary() (ast.PrimaryExpression, error) {
	tok := p.current()
	switch tok.ID {
	case lexer.TokenKeywordUndef:
		p.advance()
		return &ast.Undef{Ctx: p.context(tok.Range)}, nil
	case lexer.TokenKeywordDefault:
		p.advance()
		return &ast.Default{Ctx: p.context(tok.Range)}, nil
	case lexer.TokenKeywordTrue, lexer.TokenKeywordFalse:
		p.advance()
		return &ast.Boolean{Ctx: p.context(tok.Range), Value: tok.ID == lexer.TokenKeywordTrue}, nil
	case lexer.TokenNumber:
		p.advance()
		if tok.Number.IsFloat {
			return &ast.Float{Ctx: p.context(tok.Range), Value: tok.Number.Float}, nil
		}
		return &ast.Integer{Ctx: p.context(tok.Range), Value: tok.Number.Int, Base: tok.Number.Base}, nil
	case lexer.TokenString:
		p.advance()
		s := tok.String
		return &ast.String{
			Ctx:          p.context(tok.Range),
			Value:        s.Text,
			Quote:        s.Quote,
			Escapes:      s.Escapes,
			Interpolated: s.Interpolated,
			Format:       s.Format,
			Margin:       s.Margin,
			RemoveBreak:  s.RemoveBreak,
			ValueRange:   s.TextRange,
		}, nil
	case lexer.TokenRegex:
		p.advance()
		return &ast.Regex{Ctx: p.context(tok.Range), Pattern: strings.Trim(tok.Text, "/")}, nil
	case lexer.TokenVariable:
		p.advance()
		return &ast.Variable{Ctx: p.context(tok.Range), Name: strings.TrimPrefix(tok.Text, "$")}, nil
	case lexer.TokenMinus, lexer.TokenNot, lexer.TokenMultiply:
		return p.parseUnary()
	case lexer.TokenLeftParen:
		return p.parseNested()
	case lexer.TokenLeftBracket, lexer.TokenArrayStart:
		return p.parseArray()
	case lexer.TokenLeftBrace:
		return p.parseHash()
	case lexer.TokenKeywordIf:
		return p.parseIf()
	case lexer.TokenKeywordUnless:
		return p.parseUnless()
	case lexer.TokenKeywordCase:
		return p.parseCase()
	case lexer.TokenKeywordClass:
		return p.parseClass()
	case lexer.TokenKeywordDefine:
		return p.parseDefine()
	case lexer.TokenKeywordNode:
		return p.parseNode()
	case lexer.TokenKeywordFunction:
		return p.parseFunctionDefinition()
	case lexer.TokenKeywordType:
		return p.parseTypeAlias()
	case lexer.TokenAt, lexer.TokenAtAt:
		return p.parseResourceExpression()
	case lexer.TokenStatementCall:
		return p.parseStatementCall()
	case lexer.TokenName:
		return p.parseNameStart()
	case lexer.TokenBareWord:
		p.advance()
		return &ast.BareWord{Ctx: p.context(tok.Range), Value: tok.Text}, nil
	case lexer.TokenType:
		return p.parseTypeStart()
	}
	return nil, expected(tok, "expression")
}

func (p *Parser) parseUnary() (ast.PrimaryExpression, error) {
	tok := p.advance()
	var op ast.UnaryOp
	switch tok.ID {
	case lexer.TokenMinus:
		op = ast.UnaryNegate
	case lexer.TokenNot:
		op = ast.UnaryNot
	default:
		op = ast.UnarySplat
	}
	operand, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	return &ast.Unary{
		Ctx:     p.spanContext(tok.Range.Begin, operand.Context().Range.End),
		Op:      op,
		Operand: *operand,
	}, nil
}

func (p *Parser) parseNested() (ast.PrimaryExpression, error) {
	begin := p.advance() // (
	inner, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(lexer.TokenRightParen, "')'")
	if err != nil {
		return nil, err
	}
	return &ast.Nested{
		Ctx:   p.spanContext(begin.Range.Begin, end.Range.End),
		Inner: *inner,
	}, nil
}

func (p *Parser) parseArray() (ast.PrimaryExpression, error) {
	begin := p.advance() // [ or array start
	array := &ast.Array{}
	for p.current().ID != lexer.TokenRightBracket {
		element, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		array.Elements = append(array.Elements, *element)
		if _, ok := p.accept(lexer.TokenComma); !ok {
			break
		}
	}
	end, err := p.expect(lexer.TokenRightBracket, "']'")
	if err != nil {
		return nil, err
	}
	array.Ctx = p.spanContext(begin.Range.Begin, end.Range.End)
	return array, nil
}

func (p *Parser) parseHash() (ast.PrimaryExpression, error) {
	begin := p.advance() // {
	hash := &ast.Hash{}
	for p.current().ID != lexer.TokenRightBrace {
		key, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenFatArrow, "'=>'"); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		hash.Entries = append(hash.Entries, ast.HashPair{Key: *key, Value: *value})
		if _, ok := p.accept(lexer.TokenComma); !ok {
			break
		}
	}
	end, err := p.expect(lexer.TokenRightBrace, "'}'")
	if err != nil {
		return nil, err
	}
	hash.Ctx = p.spanContext(begin.Range.Begin, end.Range.End)
	return hash, nil
}

// parseBracedStatements parses '{' statements '}' and returns the
// body with the closing token.
func (p *Parser) parseBracedStatements() ([]ast.Expression, lexer.Token, error) {
	if _, err := p.expect(lexer.TokenLeftBrace, "'{'"); err != nil {
		return nil, lexer.Token{}, err
	}
	body, err := p.parseStatements(lexer.TokenRightBrace)
	if err != nil {
		return nil, lexer.Token{}, err
	}
	end, err := p.expect(lexer.TokenRightBrace, "'}'")
	if err != nil {
		return nil, lexer.Token{}, err
	}
	return body, end, nil
}

func (p *Parser) parseIf() (ast.PrimaryExpression, error) {
	begin := p.advance() // if
	conditional, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, end, err := p.parseBracedStatements()
	if err != nil {
		return nil, err
	}
	node := &ast.If{Conditional: *conditional, Body: body}
	endPos := end.Range.End

	for p.current().ID == lexer.TokenKeywordElsif {
		elsifTok := p.advance()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		elsifBody, elsifEnd, err := p.parseBracedStatements()
		if err != nil {
			return nil, err
		}
		node.Elsifs = append(node.Elsifs, ast.Elsif{
			Ctx:         p.spanContext(elsifTok.Range.Begin, elsifEnd.Range.End),
			Conditional: *cond,
			Body:        elsifBody,
		})
		endPos = elsifEnd.Range.End
	}

	elseNode, elseEnd, err := p.parseElse()
	if err != nil {
		return nil, err
	}
	if elseNode != nil {
		node.Else = elseNode
		endPos = elseEnd
	}
	node.Ctx = p.spanContext(begin.Range.Begin, endPos)
	return node, nil
}

func (p *Parser) parseElse() (*ast.Else, lexer.Position, error) {
	tok, ok := p.accept(lexer.TokenKeywordElse)
	if !ok {
		return nil, lexer.Position{}, nil
	}
	body, end, err := p.parseBracedStatements()
	if err != nil {
		return nil, lexer.Position{}, err
	}
	return &ast.Else{
		Ctx:  p.spanContext(tok.Range.Begin, end.Range.End),
		Body: body,
	}, end.Range.End, nil
}

func (p *Parser) parseUnless() (ast.PrimaryExpression, error) {
	begin := p.advance() // unless
	conditional, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, end, err := p.parseBracedStatements()
	if err != nil {
		return nil, err
	}
	node := &ast.Unless{Conditional: *conditional, Body: body}
	endPos := end.Range.End

	elseNode, elseEnd, err := p.parseElse()
	if err != nil {
		return nil, err
	}
	if elseNode != nil {
		node.Else = elseNode
		endPos = elseEnd
	}
	node.Ctx = p.spanContext(begin.Range.Begin, endPos)
	return node, nil
}

func (p *Parser) parseCase() (ast.PrimaryExpression, error) {
	begin := p.advance() // case
	scrutinee, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenLeftBrace, "'{'"); err != nil {
		return nil, err
	}

	node := &ast.Case{Scrutinee: *scrutinee}
	for p.current().ID != lexer.TokenRightBrace {
		propBegin := p.current()
		var options []ast.Expression
		for {
			option, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			options = append(options, *option)
			if _, ok := p.accept(lexer.TokenComma); !ok {
				break
			}
		}
		if _, err := p.expect(lexer.TokenColon, "':'"); err != nil {
			return nil, err
		}
		body, bodyEnd, err := p.parseBracedStatements()
		if err != nil {
			return nil, err
		}
		node.Propositions = append(node.Propositions, ast.CaseProposition{
			Ctx:     p.spanContext(propBegin.Range.Begin, bodyEnd.Range.End),
			Options: options,
			Body:    body,
		})
	}

	end, err := p.expect(lexer.TokenRightBrace, "'}'")
	if err != nil {
		return nil, err
	}
	node.Ctx = p.spanContext(begin.Range.Begin, end.Range.End)
	return node, nil
}

// parseStatementCall parses the paren-less call form: notice 'x', or
// the parenthesized form: notice('x').
func (p *Parser) parseStatementCall() (ast.PrimaryExpression, error) {
	name := p.advance()
	call := &ast.FunctionCall{Name: name.Text}
	end := name.Range.End

	if p.current().ID == lexer.TokenLeftParen {
		p.advance()
		for p.current().ID != lexer.TokenRightParen {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, *arg)
			if _, ok := p.accept(lexer.TokenComma); !ok {
				break
			}
		}
		closing, err := p.expect(lexer.TokenRightParen, "')'")
		if err != nil {
			return nil, err
		}
		end = closing.Range.End
	} else if p.startsExpression() {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, *arg)
			end = arg.Context().Range.End
			if _, ok := p.accept(lexer.TokenComma); !ok {
				break
			}
		}
	}

	if p.current().ID == lexer.TokenPipe {
		lambda, err := p.parseLambda()
		if err != nil {
			return nil, err
		}
		call.Lambda = lambda
		end = lambda.Ctx.Range.End
	}
	call.Ctx = p.spanContext(name.Range.Begin, end)
	return call, nil
}

// startsExpression reports whether the current token can begin an
// expression, for deciding whether a paren-less statement call has
// arguments.
func (p *Parser) startsExpression() bool {
	switch p.current().ID {
	case lexer.TokenKeywordUndef, lexer.TokenKeywordDefault, lexer.TokenKeywordTrue,
		lexer.TokenKeywordFalse, lexer.TokenNumber, lexer.TokenString, lexer.TokenRegex,
		lexer.TokenVariable, lexer.TokenMinus, lexer.TokenNot, lexer.TokenMultiply,
		lexer.TokenLeftParen, lexer.TokenLeftBracket, lexer.TokenArrayStart,
		lexer.TokenLeftBrace, lexer.TokenKeywordIf, lexer.TokenKeywordUnless,
		lexer.TokenKeywordCase, lexer.TokenName, lexer.TokenBareWord, lexer.TokenType,
		lexer.TokenStatementCall:
		return true
	}
	return false
}

// parseNameStart disambiguates a leading name token: a resource
// declaration, a function call, or a plain name.
func (p *Parser) parseNameStart() (ast.PrimaryExpression, error) {
	name := p.advance()
	switch p.current().ID {
	case lexer.TokenLeftBrace:
		return p.parseResourceBodies(name.Range.Begin, ast.ResourceRealized, name.Text)
	case lexer.TokenLeftParen:
		p.advance()
		call := &ast.FunctionCall{Name: name.Text}
		for p.current().ID != lexer.TokenRightParen {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, *arg)
			if _, ok := p.accept(lexer.TokenComma); !ok {
				break
			}
		}
		closing, err := p.expect(lexer.TokenRightParen, "')'")
		if err != nil {
			return nil, err
		}
		end := closing.Range.End
		if p.current().ID == lexer.TokenPipe {
			lambda, err := p.parseLambda()
			if err != nil {
				return nil, err
			}
			call.Lambda = lambda
			end = lambda.Ctx.Range.End
		}
		call.Ctx = p.spanContext(name.Range.Begin, end)
		return call, nil
	}
	return &ast.Name{Ctx: p.context(name.Range), Value: name.Text}, nil
}

// parseTypeStart disambiguates a leading type token: a collector,
// resource defaults, or a plain type reference (a following access
// becomes postfix, possibly rewritten to an override).
func (p *Parser) parseTypeStart() (ast.PrimaryExpression, error) {
	tok := p.advance()
	switch p.current().ID {
	case lexer.TokenLeftCollect, lexer.TokenLeftDoubleCollect:
		return p.parseCollector(tok)
	case lexer.TokenLeftBrace:
		p.advance()
		operations, err := p.parseAttributeOperations()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(lexer.TokenRightBrace, "'}'")
		if err != nil {
			return nil, err
		}
		return &ast.ResourceDefaults{
			Ctx:        p.spanContext(tok.Range.Begin, end.Range.End),
			Type:       tok.Text,
			Operations: operations,
		}, nil
	}
	return &ast.TypeRef{Ctx: p.context(tok.Range), Name: tok.Text}, nil
}

func (p *Parser) parseCollector(typeTok lexer.Token) (ast.PrimaryExpression, error) {
	opening := p.advance()
	exported := opening.ID == lexer.TokenLeftDoubleCollect
	closeID := lexer.TokenRightCollect
	closeWhat := "'|>'"
	if exported {
		closeID = lexer.TokenRightDoubleCollect
		closeWhat = "'|>>'"
	}

	collector := &ast.Collector{Type: typeTok.Text, Exported: exported}
	if p.current().ID != closeID {
		query, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		collector.Query = query
	}
	end, err := p.expect(closeID, closeWhat)
	if err != nil {
		return nil, err
	}
	collector.Ctx = p.spanContext(typeTok.Range.Begin, end.Range.End)
	return collector, nil
}
