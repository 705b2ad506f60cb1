// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package lexer

import (
	"fmt"
	"regexp"
	"strings"
)

// heredocEscapes is the full set of escape characters a heredoc tag
// may enable. 'L' means "escaped line continuation".
const heredocEscapes = "trnsuL$"

// heredocPattern matches the opening tag @(TAG[:FMT][/ESC]) on the
// originating line. The body begins on the next line.
var heredocPattern = regexp.MustCompile(`^@\(\s*([^):/\r\n]+)\s*(:\s*([a-z][a-zA-Z0-9_+]+))?\s*(/\s*([\w|$]*)\s*)?\)`)

// scanHeredoc lexes a heredoc tag and its out-of-sequence body. The
// returned token spans the tag; its string data points at the body
// lines, and the iterator's skip target is set past the end tag.
func (l *Lexer) scanHeredoc(begin Position) (Token, error) {
	it := &l.iter

	m := heredocPattern.FindStringSubmatch(it.rest())
	if m == nil {
		return Token{}, &Error{Pos: begin, Message: "unexpected heredoc format."}
	}

	tag := strings.TrimSpace(m[1])
	interpolated := false
	if strings.HasPrefix(tag, `"`) && strings.HasSuffix(tag, `"`) && len(tag) >= 2 {
		interpolated = true
		tag = strings.Trim(tag, `"`)
	}
	format := m[3]

	var escapes string
	if m[4] != "" {
		escapes = strings.TrimSpace(m[5])
		if escapes == "" {
			escapes = heredocEscapes
		} else {
			for i := 0; i < len(escapes); i++ {
				if !strings.ContainsRune(heredocEscapes, rune(escapes[i])) {
					return Token{}, &Error{
						Pos:     begin,
						Message: fmt.Sprintf("invalid heredoc escapes '%s': only t, r, n, s, u, L, and $ are allowed.", escapes),
					}
				}
			}
		}
		// L escapes a line continuation.
		escapes = strings.ReplaceAll(escapes, "L", "\n")
		escapes += `\`
	}

	// Consume the tag itself.
	it.advanceN(len(m[0]))
	tagEnd := it.pos

	// The body begins on the line after the tag, or where a previous
	// heredoc body on this line ended.
	var bodyBegin Position
	if pending, ok := it.pendingSkip(); ok {
		bodyBegin = pending
	} else {
		next, ok := nextLine(it.src, tagEnd)
		if !ok {
			return Token{}, l.heredocNotFound(begin, tag)
		}
		bodyBegin = next
	}

	hasMargin := false
	removeBreak := false
	margin := 0
	lineStart := bodyBegin
	for {
		if lineStart.Offset >= len(it.src) {
			return Token{}, l.heredocNotFound(begin, tag)
		}

		i := lineStart.Offset
		margin = 0
		for i < len(it.src) && isHeredocSpace(it.src[i]) {
			if it.src[i] == '\t' {
				margin += TabWidth
			} else {
				margin++
			}
			i++
		}
		// The margin and break markers are sticky: a '|' or '-' seen on
		// any scanned line applies to the whole heredoc.
		if i < len(it.src) && it.src[i] == '|' {
			hasMargin = true
			i++
			for i < len(it.src) && isHeredocSpace(it.src[i]) {
				i++
			}
		}
		if i < len(it.src) && it.src[i] == '-' {
			removeBreak = true
			i++
			for i < len(it.src) && isHeredocSpace(it.src[i]) {
				i++
			}
		}

		if strings.HasPrefix(it.src[i:], tag) {
			j := i + len(tag)
			for j < len(it.src) && isHeredocSpace(it.src[j]) {
				j++
			}
			if j < len(it.src) && it.src[j] == '\r' {
				j++
			}
			if j >= len(it.src) || it.src[j] == '\n' {
				break
			}
		}

		next, ok := nextLine(it.src, lineStart)
		if !ok {
			return Token{}, l.heredocNotFound(begin, tag)
		}
		lineStart = next
	}

	bodyEnd := lineStart
	if !hasMargin {
		margin = 0
	}

	// Skip past the end tag's line once the scan consumes the tag
	// line's newline.
	if after, ok := nextLine(it.src, lineStart); ok {
		it.setSkip(after)
	} else {
		it.setSkip(Position{Offset: len(it.src), Line: lineStart.Line})
	}

	tok := l.token(TokenString, begin, tagEnd, it.src[begin.Offset:tagEnd.Offset])
	tok.String = &StringData{
		Text:         it.src[bodyBegin.Offset:bodyEnd.Offset],
		Quote:        QuoteNone,
		Escapes:      escapes,
		Interpolated: interpolated,
		Format:       format,
		Margin:       margin,
		RemoveBreak:  removeBreak,
		TextRange:    Range{Begin: bodyBegin, End: bodyEnd},
	}
	return tok, nil
}

func (l *Lexer) heredocNotFound(begin Position, tag string) error {
	return &Error{
		Pos:     begin,
		Message: fmt.Sprintf("unexpected end of input while looking for heredoc end tag '%s'.", tag),
	}
}

func isHeredocSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

// nextLine returns the position just past the newline that terminates
// the line containing pos.
func nextLine(src string, pos Position) (Position, bool) {
	i := pos.Offset
	line := pos.Line
	for i < len(src) && src[i] != '\n' {
		i++
	}
	if i >= len(src) {
		return Position{}, false
	}
	return Position{Offset: i + 1, Line: line + 1}, true
}
