// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

// Package parser builds syntax trees from token streams. The grammar
// is hand-written recursive descent; binary operator sequences are
// collected flat and left for the evaluator's precedence climb.
package parser

import (
	"fmt"
	"strings"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/lexer"
)

// Error is a parse or validation failure at a token position.
type Error struct {
	Pos     lexer.Position
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func expected(tok lexer.Token, what string) *Error {
	found := tok.ID.String()
	if tok.ID == lexer.TokenUnclosedQuote {
		return &Error{Pos: tok.Range.Begin, Message: "unclosed quote."}
	}
	if tok.ID == lexer.TokenUnclosedComment {
		return &Error{Pos: tok.Range.Begin, Message: "unclosed comment."}
	}
	return &Error{
		Pos:     tok.Range.Begin,
		Message: fmt.Sprintf("expected %s but found %s.", what, found),
	}
}

// Parser consumes a token stream and produces AST nodes.
type Parser struct {
	tokens []lexer.Token
	pos    int
	tree   *ast.SyntaxTree
}

// Parse lexes and parses a manifest, returning its syntax tree.
func Parse(path, source string) (*ast.SyntaxTree, error) {
	tokens, err := lexer.New(source).All()
	if err != nil {
		return nil, err
	}

	tree := &ast.SyntaxTree{Path: path, Source: source}
	p := &Parser{tokens: tokens, tree: tree}

	if p.current().ID == lexer.TokenPipe {
		params, err := p.parseParameterList()
		if err != nil {
			return nil, err
		}
		tree.Parameters = params
	}

	statements, err := p.parseStatements(lexer.TokenEOF)
	if err != nil {
		return nil, err
	}
	tree.Statements = statements

	if !p.done() {
		return nil, expected(p.current(), "statement")
	}
	if err := validateTree(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// ParseInterpolation parses the contents of a ${...} interpolation.
// The sub-parse shares the outer tree so node contexts keep pointing
// at one source. Positions are rebased onto base.
func ParseInterpolation(tree *ast.SyntaxTree, source string, base lexer.Position) ([]ast.Expression, error) {
	tokens, err := lexer.New(source).All()
	if err != nil {
		var lexErr *lexer.Error
		if ok := asLexerError(err, &lexErr); ok {
			lexErr.Pos = rebase(lexErr.Pos, base)
		}
		return nil, err
	}
	for i := range tokens {
		tokens[i].Range.Begin = rebase(tokens[i].Range.Begin, base)
		tokens[i].Range.End = rebase(tokens[i].Range.End, base)
	}

	p := &Parser{tokens: tokens, tree: tree}
	statements, err := p.parseStatements(lexer.TokenEOF, lexer.TokenRightBrace)
	if err != nil {
		return nil, err
	}
	if !p.done() && p.current().ID != lexer.TokenRightBrace {
		return nil, expected(p.current(), "statement")
	}
	return statements, nil
}

func asLexerError(err error, target **lexer.Error) bool {
	le, ok := err.(*lexer.Error)
	if ok {
		*target = le
	}
	return ok
}

func rebase(pos lexer.Position, base lexer.Position) lexer.Position {
	line := base.Line + pos.Line - 1
	return lexer.Position{Offset: base.Offset + pos.Offset, Line: line}
}

// --- Token plumbing ---

func (p *Parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		end := lexer.Position{}
		if len(p.tokens) > 0 {
			end = p.tokens[len(p.tokens)-1].Range.End
		}
		return lexer.Token{ID: lexer.TokenEOF, Range: lexer.Range{Begin: end, End: end}}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) done() bool {
	return p.current().ID == lexer.TokenEOF
}

func (p *Parser) accept(id lexer.TokenID) (lexer.Token, bool) {
	if p.current().ID == id {
		return p.advance(), true
	}
	return lexer.Token{}, false
}

func (p *Parser) expect(id lexer.TokenID, what string) (lexer.Token, error) {
	if tok, ok := p.accept(id); ok {
		return tok, nil
	}
	return lexer.Token{}, expected(p.current(), what)
}

func (p *Parser) context(r lexer.Range) ast.Context {
	return ast.Context{Range: r, Tree: p.tree}
}

func (p *Parser) spanContext(begin lexer.Position, end lexer.Position) ast.Context {
	return ast.Context{Range: lexer.Range{Begin: begin, End: end}, Tree: p.tree}
}

// --- Statements ---

func isTerminator(id lexer.TokenID, terminators []lexer.TokenID) bool {
	for _, t := range terminators {
		if id == t {
			return true
		}
	}
	return false
}

// parseStatements parses a ';'-separated statement list until one of
// the terminator tokens (which is not consumed).
func (p *Parser) parseStatements(terminators ...lexer.TokenID) ([]ast.Expression, error) {
	var statements []ast.Expression
	for {
		for {
			if _, ok := p.accept(lexer.TokenSemicolon); !ok {
				break
			}
		}
		if isTerminator(p.current().ID, terminators) || p.done() {
			return statements, nil
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		statements = append(statements, *expr)
	}
}

// --- Expressions ---

var binaryOps = map[lexer.TokenID]ast.BinaryOperator{
	lexer.TokenInEdge:        ast.OpInEdge,
	lexer.TokenInEdgeSub:     ast.OpInEdgeSub,
	lexer.TokenOutEdge:       ast.OpOutEdge,
	lexer.TokenOutEdgeSub:    ast.OpOutEdgeSub,
	lexer.TokenAssign:        ast.OpAssign,
	lexer.TokenKeywordOr:     ast.OpOr,
	lexer.TokenKeywordAnd:    ast.OpAnd,
	lexer.TokenGreater:       ast.OpGreater,
	lexer.TokenGreaterEquals: ast.OpGreaterEqual,
	lexer.TokenLess:          ast.OpLess,
	lexer.TokenLessEquals:    ast.OpLessEqual,
	lexer.TokenEquals:        ast.OpEqual,
	lexer.TokenNotEquals:     ast.OpNotEqual,
	lexer.TokenLeftShift:     ast.OpLeftShift,
	lexer.TokenRightShift:    ast.OpRightShift,
	lexer.TokenPlus:          ast.OpPlus,
	lexer.TokenMinus:         ast.OpMinus,
	lexer.TokenMultiply:      ast.OpMultiply,
	lexer.TokenDivide:        ast.OpDivide,
	lexer.TokenModulo:        ast.OpModulo,
	lexer.TokenMatch:         ast.OpMatch,
	lexer.TokenNotMatch:      ast.OpNotMatch,
	lexer.TokenKeywordIn:     ast.OpIn,
}

func (p *Parser) parseExpression() (*ast.Expression, error) {
	postfix, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	expr := &ast.Expression{Postfix: *postfix}
	for {
		op, ok := binaryOps[p.current().ID]
		if !ok {
			return expr, nil
		}
		opTok := p.advance()
		operand, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		expr.Binary = append(expr.Binary, ast.BinaryOperation{
			Pos:     opTok.Range.Begin,
			Op:      op,
			Operand: *operand,
		})
	}
}

func (p *Parser) parsePostfix() (*ast.PostfixExpression, error) {
	primary, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	postfix := &ast.PostfixExpression{Primary: primary}
	for {
		switch p.current().ID {
		case lexer.TokenQuestion:
			op, err := p.parseSelector()
			if err != nil {
				return nil, err
			}
			postfix.Operations = append(postfix.Operations, op)
		case lexer.TokenLeftBracket:
			op, err := p.parseAccess()
			if err != nil {
				return nil, err
			}
			postfix.Operations = append(postfix.Operations, op)
		case lexer.TokenDot:
			op, err := p.parseMethodCall()
			if err != nil {
				return nil, err
			}
			postfix.Operations = append(postfix.Operations, op)
		default:
			return p.maybeResourceOverride(postfix)
		}
	}
}

// maybeResourceOverride rewrites a Type[title] postfix followed by a
// brace into a resource override primary.
func (p *Parser) maybeResourceOverride(postfix *ast.PostfixExpression) (*ast.PostfixExpression, error) {
	if p.current().ID != lexer.TokenLeftBrace {
		return postfix, nil
	}
	if _, ok := postfix.Primary.(*ast.TypeRef); !ok || len(postfix.Operations) == 0 {
		return postfix, nil
	}
	for _, op := range postfix.Operations {
		if _, ok := op.(*ast.Access); !ok {
			return postfix, nil
		}
	}

	p.advance() // {
	operations, err := p.parseAttributeOperations()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(lexer.TokenRightBrace, "'}'")
	if err != nil {
		return nil, err
	}
	override := &ast.ResourceOverride{
		Ctx:        p.spanContext(postfix.Primary.Context().Range.Begin, end.Range.End),
		Reference:  *postfix,
		Operations: operations,
	}
	return &ast.PostfixExpression{Primary: override}, nil
}

func (p *Parser) parseSelector() (*ast.Selector, error) {
	begin := p.advance() // ?
	if _, err := p.expect(lexer.TokenLeftBrace, "'{'"); err != nil {
		return nil, err
	}
	sel := &ast.Selector{}
	for {
		if p.current().ID == lexer.TokenRightBrace {
			break
		}
		condition, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenFatArrow, "'=>'"); err != nil {
			return nil, err
		}
		result, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		sel.Cases = append(sel.Cases, ast.SelectorCase{
			Ctx:       condition.Context(),
			Condition: *condition,
			Result:    *result,
		})
		if _, ok := p.accept(lexer.TokenComma); !ok {
			break
		}
	}
	end, err := p.expect(lexer.TokenRightBrace, "'}'")
	if err != nil {
		return nil, err
	}
	sel.Ctx = p.spanContext(begin.Range.Begin, end.Range.End)
	return sel, nil
}

func (p *Parser) parseAccess() (*ast.Access, error) {
	begin := p.advance() // [
	access := &ast.Access{}
	for p.current().ID != lexer.TokenRightBracket {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		access.Args = append(access.Args, *arg)
		if _, ok := p.accept(lexer.TokenComma); !ok {
			break
		}
	}
	end, err := p.expect(lexer.TokenRightBracket, "']'")
	if err != nil {
		return nil, err
	}
	access.Ctx = p.spanContext(begin.Range.Begin, end.Range.End)
	return access, nil
}

func (p *Parser) parseMethodCall() (*ast.MethodCall, error) {
	begin := p.advance() // .
	name, err := p.expectWord("method name")
	if err != nil {
		return nil, err
	}
	call := &ast.MethodCall{Name: name.Text}
	end := name.Range.End
	if _, ok := p.accept(lexer.TokenLeftParen); ok {
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
	}
	if p.current().ID == lexer.TokenPipe {
		lambda, err := p.parseLambda()
		if err != nil {
			return nil, err
		}
		call.Lambda = lambda
		end = lambda.Ctx.Range.End
	}
	call.Ctx = p.spanContext(begin.Range.Begin, end)
	return call, nil
}

// expectWord accepts any identifier-shaped token: names, bare words,
// statement calls, and word keywords.
func (p *Parser) expectWord(what string) (lexer.Token, error) {
	tok := p.current()
	switch tok.ID {
	case lexer.TokenName, lexer.TokenBareWord, lexer.TokenStatementCall:
		return p.advance(), nil
	}
	if _, ok := keywordWord(tok); ok {
		return p.advance(), nil
	}
	return lexer.Token{}, expected(tok, what)
}

func keywordWord(tok lexer.Token) (string, bool) {
	switch tok.ID {
	case lexer.TokenKeywordCase, lexer.TokenKeywordClass, lexer.TokenKeywordDefault,
		lexer.TokenKeywordDefine, lexer.TokenKeywordIf, lexer.TokenKeywordElsif,
		lexer.TokenKeywordElse, lexer.TokenKeywordInherits, lexer.TokenKeywordNode,
		lexer.TokenKeywordAnd, lexer.TokenKeywordOr, lexer.TokenKeywordUndef,
		lexer.TokenKeywordIn, lexer.TokenKeywordUnless, lexer.TokenKeywordFunction,
		lexer.TokenKeywordType, lexer.TokenKeywordAttr, lexer.TokenKeywordPrivate,
		lexer.TokenKeywordTrue, lexer.TokenKeywordFalse:
		return tok.Text, true
	}
	return "", false
}

func (p *Parser) parseLambda() (*ast.Lambda, error) {
	begin := p.current()
	params, err := p.parseParameterList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenLeftBrace, "'{'"); err != nil {
		return nil, err
	}
	body, err := p.parseStatements(lexer.TokenRightBrace)
	if err != nil {
		return nil, err
	}
	end, err := p.expect(lexer.TokenRightBrace, "'}'")
	if err != nil {
		return nil, err
	}
	return &ast.Lambda{
		Ctx:        p.spanContext(begin.Range.Begin, end.Range.End),
		Parameters: params,
		Body:       body,
	}, nil
}

// parseParameterList parses |param, ...| including the delimiting
// pipes.
func (p *Parser) parseParameterList() ([]ast.Parameter, error) {
	if _, err := p.expect(lexer.TokenPipe, "'|'"); err != nil {
		return nil, err
	}
	params, err := p.parseParameters(lexer.TokenPipe)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenPipe, "'|'"); err != nil {
		return nil, err
	}
	return params, nil
}

// parseParameters parses a comma-separated parameter list up to the
// terminator. Shape: (Type)? (*)? $name (= expression)?.
func (p *Parser) parseParameters(terminator lexer.TokenID) ([]ast.Parameter, error) {
	var params []ast.Parameter
	for p.current().ID != terminator {
		param := ast.Parameter{}
		begin := p.current()

		if p.current().ID == lexer.TokenType {
			typeExpr, err := p.parseTypePostfix()
			if err != nil {
				return nil, err
			}
			param.Type = typeExpr
		}
		if _, ok := p.accept(lexer.TokenMultiply); ok {
			param.Captures = true
		}
		varTok, err := p.expect(lexer.TokenVariable, "parameter name")
		if err != nil {
			return nil, err
		}
		param.Name = strings.TrimPrefix(varTok.Text, "$")
		if _, ok := p.accept(lexer.TokenAssign); ok {
			def, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			param.Default = def
		}

		end := varTok.Range.End
		if param.Default != nil {
			end = param.Default.Context().Range.End
		}
		param.Ctx = p.spanContext(begin.Range.Begin, end)
		params = append(params, param)

		if _, ok := p.accept(lexer.TokenComma); !ok {
			break
		}
	}
	return params, nil
}

// parseTypePostfix parses a type reference with optional access
// arguments, e.g. Integer[0, 10], as a standalone expression.
func (p *Parser) parseTypePostfix() (*ast.Expression, error) {
	tok, err := p.expect(lexer.TokenType, "type name")
	if err != nil {
		return nil, err
	}
	postfix := ast.PostfixExpression{
		Primary: &ast.TypeRef{Ctx: p.context(tok.Range), Name: tok.Text},
	}
	for p.current().ID == lexer.TokenLeftBracket {
		access, err := p.parseAccess()
		if err != nil {
			return nil, err
		}
		postfix.Operations = append(postfix.Operations, access)
	}
	return &ast.Expression{Postfix: postfix}, nil
}

// --- Validation ---

// validateTree enforces the productivity rule and parameter shape
// over every statement block in the tree.
func validateTree(tree *ast.SyntaxTree) error {
	if err := validateParameters(tree.Parameters); err != nil {
		return err
	}
	return validateBlock(tree.Statements)
}

// validateBlock checks that every non-tail expression is productive;
// the trailing expression may be a value, serving as the block's
// result.
func validateBlock(block []ast.Expression) error {
	for i := range block {
		if i+1 < len(block) && !block[i].Productive() {
			return &Error{
				Pos:     block[i].Context().Range.Begin,
				Message: "unproductive expressions may only appear last in a block.",
			}
		}
		if err := validateExpression(&block[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateExpression(e *ast.Expression) error {
	if err := validatePrimary(e.Postfix.Primary); err != nil {
		return err
	}
	for _, op := range e.Postfix.Operations {
		if call, ok := op.(*ast.MethodCall); ok && call.Lambda != nil {
			if err := validateLambda(call.Lambda); err != nil {
				return err
			}
		}
	}
	for i := range e.Binary {
		if err := validatePrimary(e.Binary[i].Operand.Primary); err != nil {
			return err
		}
	}
	return nil
}

func validateLambda(l *ast.Lambda) error {
	if err := validateParameters(l.Parameters); err != nil {
		return err
	}
	return validateBlock(l.Body)
}

func validateParameters(params []ast.Parameter) error {
	for i := range params {
		if params[i].Captures && i+1 != len(params) {
			return &Error{
				Pos:     params[i].Ctx.Range.Begin,
				Message: fmt.Sprintf("parameter $%s \"captures rest\" but is not the last parameter.", params[i].Name),
			}
		}
	}
	return nil
}

func validatePrimary(primary ast.PrimaryExpression) error {
	switch n := primary.(type) {
	case *ast.If:
		if err := validateBlock(n.Body); err != nil {
			return err
		}
		for i := range n.Elsifs {
			if err := validateBlock(n.Elsifs[i].Body); err != nil {
				return err
			}
		}
		if n.Else != nil {
			return validateBlock(n.Else.Body)
		}
	case *ast.Unless:
		if err := validateBlock(n.Body); err != nil {
			return err
		}
		if n.Else != nil {
			return validateBlock(n.Else.Body)
		}
	case *ast.Case:
		for i := range n.Propositions {
			if err := validateBlock(n.Propositions[i].Body); err != nil {
				return err
			}
		}
	case *ast.ClassDefinition:
		if err := validateParameters(n.Parameters); err != nil {
			return err
		}
		return validateBlock(n.Body)
	case *ast.DefinedTypeDefinition:
		if err := validateParameters(n.Parameters); err != nil {
			return err
		}
		return validateBlock(n.Body)
	case *ast.NodeDefinition:
		if err := validateHostnames(n.Names); err != nil {
			return err
		}
		return validateBlock(n.Body)
	case *ast.FunctionDefinition:
		if err := validateParameters(n.Parameters); err != nil {
			return err
		}
		return validateBlock(n.Body)
	case *ast.FunctionCall:
		if n.Lambda != nil {
			return validateLambda(n.Lambda)
		}
	case *ast.Nested:
		return validateExpression(&n.Inner)
	}
	return nil
}

func validateHostnames(names []ast.Hostname) error {
	for i := range names {
		h := names[i]
		if h.Regex || h.Default {
			continue
		}
		for _, r := range h.Value {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') ||
				r == '.' || r == '-' || r == '_' {
				continue
			}
			return &Error{
				Pos:     h.Ctx.Range.Begin,
				Message: fmt.Sprintf("hostname '%s' contains an illegal character.", h.Value),
			}
		}
	}
	return nil
}
