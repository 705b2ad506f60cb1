// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package lexer

import (
	"regexp"
	"strings"
)

// Error is a fatal lexer error with the location where lexing failed.
type Error struct {
	Pos     Position
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	typePattern     = regexp.MustCompile(`^((::)?[A-Z][\w]*)+`)
	namePattern     = regexp.MustCompile(`^((::)?[a-z][\w]*)(::[a-z][\w]*)*`)
	bareWordPattern = regexp.MustCompile(`^[a-z_]([\w\-]*[\w])?`)
	variablePattern = regexp.MustCompile(`^\$(::)?(\w+::)*\w+`)
	// The number rule needs leftmost-longest semantics so an exponent
	// is not cut short at the 'e'.
	numberPattern = func() *regexp.Regexp {
		r := regexp.MustCompile(`^\d\w*(\.\d\w*)?([eE]-?\w*)?`)
		r.Longest()
		return r
	}()
	regexPattern    = regexp.MustCompile(`^(//)|^(/[^*][^/\n]*/)`)
	lineComment     = regexp.MustCompile(`^#[^\n]*`)
	blockComment    = regexp.MustCompile(`^/\*[^*]*\*+([^/*][^*]*\*+)*/`)
)

// Lexer produces tokens for the manifest grammar. It is not safe for
// concurrent use.
type Lexer struct {
	iter       iterator
	forceSlash bool
}

// New creates a lexer over the given source text.
func New(src string) *Lexer {
	return &Lexer{iter: newIterator(src)}
}

// Source returns the full source text the lexer was created over.
func (l *Lexer) Source() string {
	return l.iter.src
}

// All lexes the entire input, returning the token stream without the
// trailing EOF token.
func (l *Lexer) All() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if tok.ID == TokenEOF {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

// Next returns the next token. The whitespace-then-'[' sequence is
// emitted as a distinct array-start token; other whitespace and
// comments are skipped.
func (l *Lexer) Next() (Token, error) {
	tok, err := l.scan()
	if err != nil {
		return Token{}, err
	}
	l.updateSlashState(tok)
	return tok, nil
}

func (l *Lexer) scan() (Token, error) {
	it := &l.iter

	// Skip whitespace and comments, watching for array-start.
	sawSpace := false
	for !it.eof() {
		c := it.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			sawSpace = true
			it.advance()
			continue
		case c == '#':
			m := lineComment.FindString(it.rest())
			it.advanceN(len(m))
			continue
		case c == '/' && strings.HasPrefix(it.rest(), "/*"):
			m := blockComment.FindString(it.rest())
			if m == "" {
				begin := it.pos
				it.advanceN(len(it.rest()))
				return l.token(TokenUnclosedComment, begin, it.pos, "/*"), nil
			}
			it.advanceN(len(m))
			continue
		case c == '[' && sawSpace:
			begin := it.pos
			it.advance()
			return l.token(TokenArrayStart, begin, it.pos, "["), nil
		}
		break
	}

	if it.eof() {
		return Token{ID: TokenEOF, Range: Range{Begin: it.pos, End: it.pos}}, nil
	}

	begin := it.pos
	rest := it.rest()
	c := rest[0]

	// Heredoc tags start with "@(".
	if strings.HasPrefix(rest, "@(") {
		return l.scanHeredoc(begin)
	}

	// Anchored names and types (::foo, ::Foo) must win over the ':'
	// operator.
	if strings.HasPrefix(rest, "::") {
		if tok, ok := l.scanWord(begin, rest); ok {
			return tok, nil
		}
	}

	// Multi-character operators, longest first.
	if id, length := matchOperator(rest); id != TokenNone {
		if id == TokenDivide {
			// A '/' reaches here only in the force-slash state or when
			// the regex rule did not match.
			if !l.forceSlash {
				if m := regexPattern.FindString(rest); m != "" {
					it.advanceN(len(m))
					return l.token(TokenRegex, begin, it.pos, m), nil
				}
			}
		}
		it.advanceN(length)
		return l.token(id, begin, it.pos, rest[:length]), nil
	}

	switch {
	case c == '\'':
		return l.scanSingleQuoted(begin)
	case c == '"':
		return l.scanDoubleQuoted(begin)
	case c == '$':
		if m := variablePattern.FindString(rest); m != "" {
			it.advanceN(len(m))
			return l.token(TokenVariable, begin, it.pos, m), nil
		}
	case c >= '0' && c <= '9':
		m := numberPattern.FindString(rest)
		data, err := parseNumber(m, begin)
		if err != nil {
			return Token{}, err
		}
		it.advanceN(len(m))
		tok := l.token(TokenNumber, begin, it.pos, m)
		tok.Number = data
		return tok, nil
	case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == ':':
		if tok, ok := l.scanWord(begin, rest); ok {
			return tok, nil
		}
	}

	// Anything else is a diagnostic token.
	it.advance()
	return l.token(TokenUnknown, begin, it.pos, rest[:1]), nil
}

// scanWord matches type references, qualified names, keywords,
// statement calls, and bare words, preferring the longest match.
func (l *Lexer) scanWord(begin Position, rest string) (Token, bool) {
	typeMatch := typePattern.FindString(rest)
	nameMatch := namePattern.FindString(rest)
	bareMatch := bareWordPattern.FindString(rest)

	id := TokenNone
	lexeme := ""
	if len(typeMatch) > len(lexeme) {
		id, lexeme = TokenType, typeMatch
	}
	if len(nameMatch) > len(lexeme) {
		id, lexeme = TokenName, nameMatch
	}
	if len(bareMatch) > len(lexeme) {
		id, lexeme = TokenBareWord, bareMatch
	}
	if id == TokenNone {
		return Token{}, false
	}

	if id == TokenName || id == TokenBareWord {
		if kw, ok := keywords[lexeme]; ok {
			id = kw
		} else if statementCalls[lexeme] {
			id = TokenStatementCall
		}
	}

	l.iter.advanceN(len(lexeme))
	return l.token(id, begin, l.iter.pos, lexeme), true
}

func (l *Lexer) scanSingleQuoted(begin Position) (Token, error) {
	it := &l.iter
	it.advance() // opening quote
	textBegin := it.pos
	for !it.eof() {
		c := it.peek()
		if c == '\\' {
			it.advance()
			if !it.eof() {
				it.advance()
			}
			continue
		}
		if c == '\'' {
			textEnd := it.pos
			it.advance() // closing quote
			tok := l.token(TokenString, begin, it.pos, it.src[begin.Offset:it.pos.Offset])
			tok.String = &StringData{
				Text:      it.src[textBegin.Offset:textEnd.Offset],
				Quote:     QuoteSingle,
				Escapes:   `\'`,
				TextRange: Range{Begin: textBegin, End: textEnd},
			}
			return tok, nil
		}
		it.advance()
	}
	return l.token(TokenUnclosedQuote, begin, Position{Offset: begin.Offset + 1, Line: begin.Line}, "'"), nil
}

func (l *Lexer) scanDoubleQuoted(begin Position) (Token, error) {
	it := &l.iter
	it.advance() // opening quote
	textBegin := it.pos
	for !it.eof() {
		c := it.peek()
		if c == '\\' {
			it.advance()
			if !it.eof() {
				it.advance()
			}
			continue
		}
		if c == '"' {
			textEnd := it.pos
			it.advance() // closing quote
			tok := l.token(TokenString, begin, it.pos, it.src[begin.Offset:it.pos.Offset])
			tok.String = &StringData{
				Text:         it.src[textBegin.Offset:textEnd.Offset],
				Quote:        QuoteDouble,
				Escapes:      "\\\"'nrtsu$",
				Interpolated: true,
				TextRange:    Range{Begin: textBegin, End: textEnd},
			}
			return tok, nil
		}
		it.advance()
	}
	return l.token(TokenUnclosedQuote, begin, Position{Offset: begin.Offset + 1, Line: begin.Line}, `"`), nil
}

func (l *Lexer) token(id TokenID, begin, end Position, text string) Token {
	return Token{ID: id, Range: Range{Begin: begin, End: end}, Text: text}
}

// operators in match order: three-character, two-character, then
// single-character punctuation.
var operators = []struct {
	text string
	id   TokenID
}{
	{"<<|", TokenLeftDoubleCollect},
	{"|>>", TokenRightDoubleCollect},
	{"+=", TokenAppend},
	{"-=", TokenRemove},
	{"==", TokenEquals},
	{"!=", TokenNotEquals},
	{"=~", TokenMatch},
	{"!~", TokenNotMatch},
	{">=", TokenGreaterEquals},
	{"<=", TokenLessEquals},
	{"=>", TokenFatArrow},
	{"+>", TokenPlusArrow},
	{"<<", TokenLeftShift},
	{"<|", TokenLeftCollect},
	{">>", TokenRightShift},
	{"@@", TokenAtAt},
	{"->", TokenInEdge},
	{"~>", TokenInEdgeSub},
	{"<-", TokenOutEdge},
	{"<~", TokenOutEdgeSub},
	{"|>", TokenRightCollect},
	{"[", TokenLeftBracket},
	{"]", TokenRightBracket},
	{"{", TokenLeftBrace},
	{"}", TokenRightBrace},
	{"(", TokenLeftParen},
	{")", TokenRightParen},
	{"=", TokenAssign},
	{">", TokenGreater},
	{"<", TokenLess},
	{"+", TokenPlus},
	{"-", TokenMinus},
	{"/", TokenDivide},
	{"*", TokenMultiply},
	{"%", TokenModulo},
	{"!", TokenNot},
	{".", TokenDot},
	{"|", TokenPipe},
	{"@", TokenAt},
	{":", TokenColon},
	{",", TokenComma},
	{";", TokenSemicolon},
	{"?", TokenQuestion},
	{"~", TokenTilde},
}

func matchOperator(rest string) (TokenID, int) {
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			return op.id, len(op.text)
		}
	}
	return TokenNone, 0
}

// noRegexAfter is the fixed set of token kinds after which a '/'
// cannot begin a regex: the lexer instead looks ahead for a division
// operator.
var noRegexAfter = map[TokenID]bool{
	TokenRightParen:         true,
	TokenRightBracket:       true,
	TokenRightCollect:       true,
	TokenRightDoubleCollect: true,
	TokenKeywordTrue:        true,
	TokenKeywordFalse:       true,
	TokenType:               true,
	TokenName:               true,
	TokenBareWord:           true,
	TokenRegex:              true,
	TokenString:             true,
	TokenNumber:             true,
}

// updateSlashState implements the slash-check lookahead: after a
// token that cannot be followed by a regex, match optional comments
// and whitespace, and if a '/' follows, force it to lex as division.
func (l *Lexer) updateSlashState(tok Token) {
	l.forceSlash = false
	if !noRegexAfter[tok.ID] {
		return
	}
	rest := l.iter.rest()
	for {
		trimmed := strings.TrimLeft(rest, " \t\r\n")
		if m := blockComment.FindString(trimmed); m != "" {
			rest = trimmed[len(m):]
			continue
		}
		rest = trimmed
		break
	}
	if strings.HasPrefix(rest, "/") && !strings.HasPrefix(rest, "/*") {
		l.forceSlash = true
	}
}

