// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/lexer"
	"github.com/minervacm/minerva/internal/parser"
)

func parseOne(t *testing.T, src string) *ast.Expression {
	t.Helper()
	tree, err := parser.Parse("test.pp", src)
	require.NoError(t, err)
	require.Len(t, tree.Statements, 1)
	return &tree.Statements[0]
}

func TestParse_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string // empty means byte-equal to src
	}{
		{"integer", `42`, ""},
		{"float", `3.14`, ""},
		{"booleans", `true`, ""},
		{"undef", `undef`, ""},
		{"single quoted string", `'hello'`, ""},
		{"double quoted string", `"x ${y}"`, ""},
		{"regex", `/a+b/`, ""},
		{"variable", `$x = 1`, ""},
		{"array", `$x = [1, 2, 3]`, ""},
		{"hash", `$x = {a => 1, b => 2}`, ""},
		{"nested", `$x = (1 + 2) * 3`, ""},
		{"binary chain stays flat", `$x = 1 + 2 * 3 - 4`, ""},
		{"unary", `$x = -1`, ""},
		{"not", `$x = !true`, ""},
		{"splat", `$x = *$y`, ""},
		{"access", `$x = $y[1, 2]`, ""},
		{"method call", `$y.each() |$i| { notice($i) }`, ""},
		{"selector", `$x = $y ? { 1 => 'one', default => 'other' }`, ""},
		{"if", `if $x { notice('y') } elsif $z { } else { }`, ""},
		{"unless", `unless $x { notice('y') }`, ""},
		{"case", `case $x { 1: { notice('one') } default: { } }`, ""},
		{"resource", `file { '/tmp/a': ensure => present }`, ""},
		{"virtual resource", `@notify { 'a': }`, "@notify { 'a':  }"},
		{"exported resource", `@@notify { 'a': message => 'm' }`, ""},
		{"resource defaults", `File { mode => '0644' }`, ""},
		{"resource override", `File['/tmp/a'] { mode => '0600' }`, ""},
		{"class definition", `class foo::bar inherits foo { notice('x') }`, ""},
		{"parameterized class", `class foo ($a, String $b = 'x') { }`, "class foo ($a, String $b = 'x') { }"},
		{"defined type", `define d ($n) { notify { "d-$n":  } }`, ""},
		{"node", `node web01.example.com, /^db\d+$/, default { }`, ""},
		{"collector", `File <| |>`, ""},
		{"collector with query", `File <| mode == '0644' |>`, ""},
		{"exported collector", `File <<| |>>`, ""},
		{"relationship", `File['/a'] -> File['/b']`, ""},
		{"statement call", `include foo`, "include(foo)"},
		{"statement call multiple args", `notice 'a', 'b'`, "notice('a', 'b')"},
		{"function definition", `function foo($x) { $x }`, ""},
		{"type alias", `type Port = Integer[0, 65535]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := parser.Parse("test.pp", tt.src)
			require.NoError(t, err)
			require.Len(t, tree.Statements, 1)
			want := tt.want
			if want == "" {
				want = tt.src
			}
			assert.Equal(t, want, tree.Statements[0].String())
		})
	}
}

func TestParse_BinarySequenceIsFlat(t *testing.T) {
	expr := parseOne(t, `$r = 1 + 2 * 3 == 7`)
	// One flat list: = 1, + 2, * 3, == 7 hang off the variable.
	require.Len(t, expr.Binary, 4)
	assert.Equal(t, ast.OpAssign, expr.Binary[0].Op)
	assert.Equal(t, ast.OpPlus, expr.Binary[1].Op)
	assert.Equal(t, ast.OpMultiply, expr.Binary[2].Op)
	assert.Equal(t, ast.OpEqual, expr.Binary[3].Op)
}

func TestParse_PostfixChain(t *testing.T) {
	expr := parseOne(t, `$x = $y[0].map() |$v| { $v }`)
	operand := expr.Binary[0].Operand
	require.Len(t, operand.Operations, 2)
	_, isAccess := operand.Operations[0].(*ast.Access)
	call, isCall := operand.Operations[1].(*ast.MethodCall)
	assert.True(t, isAccess)
	require.True(t, isCall)
	assert.Equal(t, "map", call.Name)
	assert.NotNil(t, call.Lambda)
}

func TestParse_ResourceBodies(t *testing.T) {
	expr := parseOne(t, `file { '/a': ensure => present, mode +> ['0644']; '/b': }`)
	res, ok := expr.Postfix.Primary.(*ast.ResourceExpression)
	require.True(t, ok)
	assert.Equal(t, "file", res.Type)
	assert.Equal(t, ast.ResourceRealized, res.Status)
	require.Len(t, res.Bodies, 2)
	require.Len(t, res.Bodies[0].Operations, 2)
	assert.Equal(t, ast.AttributeAssign, res.Bodies[0].Operations[0].Op)
	assert.Equal(t, ast.AttributeAppend, res.Bodies[0].Operations[1].Op)
	assert.Empty(t, res.Bodies[1].Operations)
}

func TestParse_MetaparameterAttributeNames(t *testing.T) {
	// "require" lexes as a statement call but is valid as an
	// attribute name.
	expr := parseOne(t, `notify { 'a': require => File['/b'] }`)
	res, ok := expr.Postfix.Primary.(*ast.ResourceExpression)
	require.True(t, ok)
	require.Len(t, res.Bodies[0].Operations, 1)
	assert.Equal(t, "require", res.Bodies[0].Operations[0].Name)
}

func TestParse_ClassResourceDeclaration(t *testing.T) {
	expr := parseOne(t, `class { 'foo': param => 1 }`)
	res, ok := expr.Postfix.Primary.(*ast.ResourceExpression)
	require.True(t, ok)
	assert.Equal(t, "class", res.Type)
}

func TestParse_TreeParameters(t *testing.T) {
	tree, err := parser.Parse("test.pp", "|$a, Integer $b = 2|\nnotice($a)")
	require.NoError(t, err)
	require.Len(t, tree.Parameters, 2)
	assert.Equal(t, "a", tree.Parameters[0].Name)
	assert.Equal(t, "b", tree.Parameters[1].Name)
	assert.NotNil(t, tree.Parameters[1].Default)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"missing brace", `if $x notice('y')`, "expected '{'"},
		{"missing colon", `file { '/a' ensure => present }`, "expected ':'"},
		{"unexpected token", `$x = ,`, "expected expression"},
		{"unclosed quote", `$x = 'oops`, "unclosed quote"},
		{"missing attribute operator", `file { '/a': ensure present }`, "expected '=>' or '+>'"},
		{"capture not last", `define d(*$rest, $x) { }`, "captures rest"},
		{"unproductive statement", "1 + 1\nnotice('x')", "unproductive expressions"},
		{"illegal hostname", `node 'web_01!' { }`, "illegal character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse("test.pp", tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParse_ProductivityAllowsTrailingValue(t *testing.T) {
	_, err := parser.Parse("test.pp", "notice('x')\n1 + 1")
	require.NoError(t, err)
}

func TestParseInterpolation(t *testing.T) {
	tree := &ast.SyntaxTree{Path: "test.pp", Source: "$x + 1"}
	exprs, err := parser.ParseInterpolation(tree, "$x + 1", lexer.Position{Offset: 0, Line: 1})
	require.NoError(t, err)
	require.Len(t, exprs, 1)
	assert.Equal(t, "$x + 1", exprs[0].String())
}

func TestParseTemplate(t *testing.T) {
	tree, err := parser.ParseTemplate("test.epp", "Hello <%= $name %>!\n<% notice('side') %>")
	require.NoError(t, err)
	require.Len(t, tree.Statements, 4)

	first, ok := tree.Statements[0].Postfix.Primary.(*ast.RenderString)
	require.True(t, ok)
	assert.Equal(t, "Hello ", first.Value)

	second, ok := tree.Statements[1].Postfix.Primary.(*ast.RenderExpression)
	require.True(t, ok)
	assert.Equal(t, "$name", second.Expr.String())

	fourth, ok := tree.Statements[3].Postfix.Primary.(*ast.RenderBlock)
	require.True(t, ok)
	require.Len(t, fourth.Body, 1)
}

func TestParseTemplate_Parameters(t *testing.T) {
	tree, err := parser.ParseTemplate("test.epp", "<% |$greeting = 'hi'| %>\n<%= $greeting %>")
	require.NoError(t, err)
	require.Len(t, tree.Parameters, 1)
	assert.Equal(t, "greeting", tree.Parameters[0].Name)
}

func FuzzParse(f *testing.F) {
	seeds := []string{
		`file { '/tmp/a': ensure => 'present' }`,
		`$x = 1 + 2 * 3`,
		`if $x { } else { }`,
		`case $v { /(\w+)/: { notice("$1") } default: { } }`,
		`@d { 'x': n => 1 }`,
		`D <| |>`,
		"$s = @(END)\nbody\nEND\n",
		`class a inherits b { include c }`,
	}
	for _, seed := range seeds {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, src string) {
		// Must never panic; errors are fine.
		tree, err := parser.Parse("fuzz.pp", src)
		if err == nil && tree != nil {
			_ = tree.String()
		}
	})
}
