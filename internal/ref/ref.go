// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

// Package ref parses resource reference strings such as
// File['/etc/hosts'] or Class[foo], as they appear in string-valued
// relationship metaparameters.
package ref

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/samber/oops"
)

// refLexer defines the token types for reference strings. Order
// matters: the type name rule must win over the raw title rule for
// capitalized words.
var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Type", Pattern: `(::)?[A-Z][a-zA-Z0-9_]*(::[A-Z][a-zA-Z0-9_]*)*`},
	{Name: "String", Pattern: `'[^']*'`},
	{Name: "Punct", Pattern: `[\[\],]`},
	{Name: "Raw", Pattern: `[^\[\],'\s]+`},
	{Name: "whitespace", Pattern: `\s+`},
})

// Reference is a parsed Type[title, ...] reference. Titles is empty
// for a bare type reference.
type Reference struct {
	Type   string   `parser:"@Type"`
	Titles []string `parser:"('[' @(String|Raw) (',' @(String|Raw))* ']')?"`
}

// parser is the singleton participle parser instance.
var parser = participle.MustBuild[Reference](
	participle.Lexer(refLexer),
)

// Parse parses a reference string. Quoted titles lose their quotes;
// the type segment keeps its capitalization.
func Parse(text string) (*Reference, error) {
	reference, err := parser.ParseString("", text)
	if err != nil {
		return nil, oops.With("reference", text).Wrapf(err, "parsing resource reference")
	}
	for i, title := range reference.Titles {
		reference.Titles[i] = strings.Trim(title, "'")
	}
	reference.Type = strings.TrimPrefix(reference.Type, "::")
	return reference, nil
}

// String renders the reference in canonical form.
func (r *Reference) String() string {
	if len(r.Titles) == 0 {
		return r.Type
	}
	return fmt.Sprintf("%s[%s]", r.Type, strings.Join(r.Titles, ", "))
}
