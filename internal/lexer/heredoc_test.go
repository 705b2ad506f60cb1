// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minervacm/minerva/internal/lexer"
)

func TestScanHeredoc_Basic(t *testing.T) {
	src := "$s = @(END)\nhello\nworld\nEND\n$t = 1\n"
	tokens, err := lexer.New(src).All()
	require.NoError(t, err)

	// $s = <heredoc> $t = 1
	require.Len(t, tokens, 6)
	tok := tokens[2]
	require.Equal(t, lexer.TokenString, tok.ID)
	require.NotNil(t, tok.String)
	assert.Equal(t, "hello\nworld\n", tok.String.Text)
	assert.Equal(t, lexer.QuoteNone, tok.String.Quote)
	assert.False(t, tok.String.Interpolated)
	assert.Equal(t, 0, tok.String.Margin)
	assert.False(t, tok.String.RemoveBreak)

	// The scan resumes after the end tag's line.
	assert.Equal(t, lexer.TokenVariable, tokens[3].ID)
	assert.Equal(t, "$t", tokens[3].Text)
	assert.Equal(t, 5, tokens[3].Range.Begin.Line)
}

func TestScanHeredoc_QuotedTagInterpolates(t *testing.T) {
	src := "@(\"END\")\nvalue ${x}\nEND\n"
	tokens, err := lexer.New(src).All()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.NotNil(t, tokens[0].String)
	assert.True(t, tokens[0].String.Interpolated)
	assert.Equal(t, "value ${x}\n", tokens[0].String.Text)
}

func TestScanHeredoc_FormatAndEscapes(t *testing.T) {
	src := "@(END:json/tn)\n{}\nEND\n"
	tokens, err := lexer.New(src).All()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	s := tokens[0].String
	require.NotNil(t, s)
	assert.Equal(t, "json", s.Format)
	assert.Equal(t, `tn\`, s.Escapes)
}

func TestScanHeredoc_EmptyEscapesEnablesAll(t *testing.T) {
	src := "@(END/)\nx\nEND\n"
	tokens, err := lexer.New(src).All()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.NotNil(t, tokens[0].String)
	// All escapes, with L rewritten to newline and backslash added.
	assert.Equal(t, "trnsu\n$\\", tokens[0].String.Escapes)
}

func TestScanHeredoc_InvalidEscape(t *testing.T) {
	_, err := lexer.New("@(END/q)\nx\nEND\n").All()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid heredoc escapes")
}

func TestScanHeredoc_MarginAndBreak(t *testing.T) {
	src := "$s = @(\"END\"/L)\n  |- hello ${x}\n  | END\nnotice($s)\n"
	tokens, err := lexer.New(src).All()
	require.NoError(t, err)

	tok := tokens[2]
	require.Equal(t, lexer.TokenString, tok.ID)
	s := tok.String
	require.NotNil(t, s)
	assert.Equal(t, "  |- hello ${x}\n", s.Text)
	assert.Equal(t, 2, s.Margin)
	assert.True(t, s.RemoveBreak)
	assert.True(t, s.Interpolated)
	assert.Equal(t, "\n\\", s.Escapes)

	// notice($s) follows the end tag line.
	assert.Equal(t, lexer.TokenStatementCall, tokens[3].ID)
}

func TestScanHeredoc_TwoTagsOneLine(t *testing.T) {
	src := "$a = [@(ONE), @(TWO)]\nfirst\nONE\nsecond\nTWO\n$z = 1\n"
	tokens, err := lexer.New(src).All()
	require.NoError(t, err)

	var bodies []string
	for _, tok := range tokens {
		if tok.ID == lexer.TokenString {
			bodies = append(bodies, tok.String.Text)
		}
	}
	require.Equal(t, []string{"first\n", "second\n"}, bodies)

	// The trailing assignment is still lexed.
	last := tokens[len(tokens)-3]
	assert.Equal(t, lexer.TokenVariable, last.ID)
	assert.Equal(t, "$z", last.Text)
}

func TestScanHeredoc_MissingEndTag(t *testing.T) {
	_, err := lexer.New("$s = @(END)\nnever closed\n").All()
	require.Error(t, err)
	var lexErr *lexer.Error
	require.ErrorAs(t, err, &lexErr)
	assert.Contains(t, lexErr.Message, "heredoc end tag 'END'")
	// The error points at the opening tag.
	assert.Equal(t, 5, lexErr.Pos.Offset)
	assert.Equal(t, 1, lexErr.Pos.Line)
}

func TestScanHeredoc_BodyOutOfSequencePositions(t *testing.T) {
	src := "$s = @(END)\nbody\nEND\n$t = 2\n"
	tokens, err := lexer.New(src).All()
	require.NoError(t, err)

	var heredoc, after lexer.Token
	for i, tok := range tokens {
		if tok.ID == lexer.TokenString {
			heredoc = tok
			after = tokens[i+1]
			break
		}
	}
	require.NotNil(t, heredoc.String)

	// The tag's range sits on its own line; the body range follows it;
	// the next token begins at or after the body's end.
	assert.Less(t, heredoc.Range.End.Offset, heredoc.String.TextRange.Begin.Offset)
	assert.GreaterOrEqual(t, after.Range.Begin.Offset, heredoc.String.TextRange.End.Offset)
}
