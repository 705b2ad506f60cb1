// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package evaluator_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minervacm/minerva/internal/catalog"
	"github.com/minervacm/minerva/internal/evaluator"
	"github.com/minervacm/minerva/internal/parser"
	"github.com/minervacm/minerva/internal/value"
)

// run parses and evaluates a manifest, returning the evaluator, its
// catalog, and captured log output.
func run(t *testing.T, src string) (*evaluator.Evaluator, *catalog.Catalog, *bytes.Buffer) {
	t.Helper()
	ev, cat, logs, err := tryRun(src)
	require.NoError(t, err)
	return ev, cat, logs
}

func tryRun(src string) (*evaluator.Evaluator, *catalog.Catalog, *bytes.Buffer, error) {
	tree, err := parser.Parse("test.pp", src)
	if err != nil {
		return nil, nil, nil, err
	}
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cat := catalog.New()
	ev := evaluator.New(cat, evaluator.WithLogger(logger))
	if err := ev.RegisterDefinitions(tree); err != nil {
		return ev, cat, logs, err
	}
	if err := ev.EvaluateMain(tree); err != nil {
		return ev, cat, logs, err
	}
	return ev, cat, logs, cat.Finalize(ev)
}

func TestEvaluate_Arithmetic(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"precedence", `$r = 1 + 2 * 3`, "7"},
		{"nested", `$r = (1 + 2) * 3`, "9"},
		{"float division", `$r = 7.0 / 2`, "3.5"},
		{"modulo", `$r = 7 % 3`, "1"},
		{"shift", `$r = 1 << 4`, "16"},
		{"string concat via interpolation", `$a = 'x' $r = "${a}y"`, "xy"},
		{"array concat", `$r = [1] + [2, 3]`, "[1, 2, 3]"},
		{"array append", `$r = [1, 2] << 3`, "[1, 2, 3]"},
		{"comparison", `$r = 2 >= 2`, "true"},
		{"string comparison is case-insensitive", `$r = 'ABC' == 'abc'`, "true"},
		{"and short-circuit", `$r = false and $undefined`, "false"},
		{"or short-circuit", `$r = true or $undefined`, "true"},
		{"in array", `$r = 2 in [1, 2, 3]`, "true"},
		{"in string", `$r = 'ell' in 'Hello'`, "true"},
		{"not", `$r = !false`, "true"},
		{"negate", `$r = -(2 + 3)`, "-5"},
		{"selector", `$x = 2 $r = $x ? { 1 => 'one', 2 => 'two', default => 'many' }`, "two"},
		{"assignment chains right", `$a = $b = 5 $r = $a + $b`, "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, _, _ := run(t, tt.src)
			v, ok := ev.Lookup("r")
			require.True(t, ok)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"divide by zero", `$r = 1 / 0`, "divide by zero"},
		{"modulo floats", `$r = 1.5 % 2`, "expected Integer"},
		{"reassignment", `$x = 1 $x = 2`, "already assigned"},
		{"assign to match variable", `$1 = 2`, "match variable"},
		{"leading zero match variable", `$r = "$01"`, "not a valid match variable"},
		{"compare string with integer", `$r = 'a' < 1`, "cannot compare"},
		{"unknown function", `frobnicate()`, "unknown function"},
		{"fail", `fail 'boom'`, "boom"},
		{"no selector match", `$r = 3 ? { 1 => 'one' }`, "no selector case matched"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := tryRun(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestEvaluate_CaseWithRegexCapture(t *testing.T) {
	_, _, logs := run(t, `
$v = 'abc123'
case $v {
  /(\w+?)(\d+)/: { notice("$1-$2") }
  default:       { notice('none') }
}
$after = "$1"
notice("after=[${after}]")
`)
	output := logs.String()
	assert.Contains(t, output, "abc-123")
	// Captures do not escape the case expression's match scope.
	assert.Contains(t, output, "after=[]")
}

func TestEvaluate_IfElsifElse(t *testing.T) {
	ev, _, _ := run(t, `
$x = 5
$r = if $x > 10 { 'big' } elsif $x > 3 { 'medium' } else { 'small' }
`)
	v, ok := ev.Lookup("r")
	require.True(t, ok)
	assert.Equal(t, "medium", v.String())
}

func TestEvaluate_UnlessInverts(t *testing.T) {
	ev, _, _ := run(t, `$r = unless false { 'yes' }`)
	v, ok := ev.Lookup("r")
	require.True(t, ok)
	assert.Equal(t, "yes", v.String())
}

func TestEvaluate_MatchOperator(t *testing.T) {
	ev, _, _ := run(t, `
$matched = 'hello42' =~ /([a-z]+)(\d+)/
$word = "$1"
`)
	v, ok := ev.Lookup("matched")
	require.True(t, ok)
	assert.Equal(t, "true", v.String())
	word, ok := ev.Lookup("word")
	require.True(t, ok)
	assert.Equal(t, "hello", word.String())
}

func TestEvaluate_HeredocMarginAndInterpolation(t *testing.T) {
	ev, _, logs := run(t, "$x = 1\n$s = @(\"END\"/L)\n  |- hello ${x}\n  | END\nnotice($s)\n")
	v, ok := ev.Lookup("s")
	require.True(t, ok)
	assert.Equal(t, value.String("hello 1"), v)
	assert.Contains(t, logs.String(), "hello 1")
}

func TestEvaluate_TypeAccess(t *testing.T) {
	ev, _, _ := run(t, `
$t = Integer[0, 10]
$a = Array[String]
$r = Resource['file', '/a']
`)
	typ, ok := ev.Lookup("t")
	require.True(t, ok)
	assert.Equal(t, "Integer[0, 10]", typ.String())
	arr, ok := ev.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "Array[String]", arr.String())
	res, ok := ev.Lookup("r")
	require.True(t, ok)
	assert.Equal(t, "File[/a]", res.String())
}

func TestEvaluate_ResourceDeclaration(t *testing.T) {
	_, cat, _ := run(t, `file { '/tmp/a': ensure => 'present', mode => '0644' }`)
	resource := cat.FindResource("File", "/tmp/a")
	require.NotNil(t, resource)
	assert.Equal(t, value.String("present"), resource.Get("ensure").Value)
	assert.False(t, resource.Virtualized())
	assert.False(t, resource.Exported())
}

func TestEvaluate_ResourceArrayTitles(t *testing.T) {
	_, cat, _ := run(t, `notify { ['a', 'b']: message => 'm' }`)
	require.NotNil(t, cat.FindResource("Notify", "a"))
	require.NotNil(t, cat.FindResource("Notify", "b"))
}

func TestEvaluate_DuplicateResourceFails(t *testing.T) {
	_, _, _, err := tryRun(`notify { 'a': } notify { 'a': }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "previously declared")
}

func TestEvaluate_AttributeAppend(t *testing.T) {
	_, cat, _ := run(t, `
notify { 'a': message => ['x'] }
Notify['a'] { message +> ['y'] }
Notify['a'] { message +> [] }
`)
	resource := cat.FindResource("Notify", "a")
	require.NotNil(t, resource)
	assert.Equal(t, "[x, y]", resource.Get("message").Value.String())
}

func TestEvaluate_ResourceDefaults(t *testing.T) {
	_, cat, _ := run(t, `
File { mode => '0644' }
file { '/a': }
file { '/b': mode => '0600' }
`)
	assert.Equal(t, value.String("0644"), cat.FindResource("File", "/a").Get("mode").Value)
	assert.Equal(t, value.String("0600"), cat.FindResource("File", "/b").Get("mode").Value)
}

func TestEvaluate_ClassDeclaredOnce(t *testing.T) {
	_, cat, logs := run(t, `
class greeter { notice('evaluated') }
include greeter
include greeter
class { 'greeter': }
`)
	require.NotNil(t, cat.FindResource("Class", "greeter"))
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("evaluated")))
	assert.Equal(t, []string{"greeter"}, cat.DeclaredClasses())
}

func TestEvaluate_ClassInheritance(t *testing.T) {
	_, cat, _ := run(t, `
class base { $origin = 'base' }
class derived inherits base { notice($origin) }
include derived
`)
	assert.NotNil(t, cat.FindResource("Class", "base"))
	assert.NotNil(t, cat.FindResource("Class", "derived"))
	assert.Equal(t, []string{"base", "derived"}, cat.DeclaredClasses())
}

func TestEvaluate_ClassParameters(t *testing.T) {
	ev, _, _ := run(t, `
class greeter($greeting = 'hello', $target) { $message = "${greeting} ${target}" }
class { 'greeter': target => 'world' }
$r = $greeter::message
`)
	v, ok := ev.Lookup("r")
	require.True(t, ok)
	assert.Equal(t, "hello world", v.String())
}

func TestEvaluate_ClassUnknownParameterFails(t *testing.T) {
	_, _, _, err := tryRun(`
class c($p = 1) { }
class { 'c': nope => 2 }
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid parameter")
}

func TestEvaluate_DefinedTypeDeferred(t *testing.T) {
	_, cat, _ := run(t, `
define d($n) { notify { "d-$n": } }
d { 'x': n => 1 }
`)
	require.NotNil(t, cat.FindResource("D", "x"))
	require.NotNil(t, cat.FindResource("Notify", "d-1"))
}

func TestEvaluate_VirtualRealizedByCollector(t *testing.T) {
	_, cat, _ := run(t, `
define d($n) { notify { "d-$n": } }
@d { 'x': n => 1 }
D <| |>
`)
	d := cat.FindResource("D", "x")
	require.NotNil(t, d)
	assert.False(t, d.Virtualized())
	notify := cat.FindResource("Notify", "d-1")
	require.NotNil(t, notify)
	assert.False(t, notify.Virtualized())
}

func TestEvaluate_VirtualStaysVirtualWithoutCollector(t *testing.T) {
	_, cat, _ := run(t, `
define d($n) { notify { "d-$n": } }
@d { 'x': n => 1 }
`)
	d := cat.FindResource("D", "x")
	require.NotNil(t, d)
	assert.True(t, d.Virtualized())
	// The body still ran, contributing virtual sub-resources.
	notify := cat.FindResource("Notify", "d-1")
	require.NotNil(t, notify)
	assert.True(t, notify.Virtualized())
}

func TestEvaluate_CollectorQuery(t *testing.T) {
	_, cat, _ := run(t, `
@notify { 'a': message => 'keep' }
@notify { 'b': message => 'drop' }
Notify <| message == 'keep' |>
`)
	assert.False(t, cat.FindResource("Notify", "a").Virtualized())
	assert.True(t, cat.FindResource("Notify", "b").Virtualized())
}

func TestEvaluate_RelationshipMetaparameters(t *testing.T) {
	_, cat, _ := run(t, `
notify { 'a': }
notify { 'b': require => Notify['a'] }
`)
	b := cat.FindResource("Notify", "b")
	found := false
	cat.Graph().OutEdges(b.VertexID(), func(target *catalog.Resource, label catalog.Relationship) bool {
		if label == catalog.RelationshipRequire && target.Ref() == "Notify[a]" {
			found = true
		}
		return true
	})
	assert.True(t, found)
}

func TestEvaluate_RelationshipOperators(t *testing.T) {
	_, cat, _ := run(t, `
notify { 'a': }
notify { 'b': }
Notify['a'] -> Notify['b']
`)
	// a -> b flips to b-depends-on-a.
	b := cat.FindResource("Notify", "b")
	depends := false
	cat.Graph().OutEdges(b.VertexID(), func(target *catalog.Resource, label catalog.Relationship) bool {
		if target.Ref() == "Notify[a]" {
			depends = true
		}
		return true
	})
	assert.True(t, depends)
}

func TestEvaluate_StringRelationshipReference(t *testing.T) {
	_, cat, _ := run(t, `
notify { 'a': }
notify { 'b': before => 'Notify[a]' }
`)
	a := cat.FindResource("Notify", "a")
	found := false
	cat.Graph().OutEdges(a.VertexID(), func(target *catalog.Resource, label catalog.Relationship) bool {
		if target.Ref() == "Notify[b]" {
			found = true
		}
		return true
	})
	assert.True(t, found, "before should flip into a-depends-on-b")
}

func TestEvaluate_CycleDetected(t *testing.T) {
	_, _, _, err := tryRun(`
notify { 'a': before => Notify['b'] }
notify { 'b': before => Notify['a'] }
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
	assert.Contains(t, err.Error(), "Notify[a]")
	assert.Contains(t, err.Error(), "Notify[b]")
}

func TestEvaluate_MissingRelationshipTargetFails(t *testing.T) {
	_, _, _, err := tryRun(`notify { 'a': require => Notify['ghost'] }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist in the catalog")
}

func TestEvaluate_SelfRelationshipFails(t *testing.T) {
	_, _, _, err := tryRun(`notify { 'a': require => Notify['a'] }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "self-referencing")
}

func TestEvaluate_IterationFunctions(t *testing.T) {
	ev, _, _ := run(t, `
$doubled = [1, 2, 3].map() |$n| { $n * 2 }
$odd = [1, 2, 3, 4].filter() |$n| { $n % 2 == 1 }
$sum = [1, 2, 3, 4].reduce() |$memo, $n| { $memo + $n }
`)
	doubled, _ := ev.Lookup("doubled")
	assert.Equal(t, "[2, 4, 6]", doubled.String())
	odd, _ := ev.Lookup("odd")
	assert.Equal(t, "[1, 3]", odd.String())
	sum, _ := ev.Lookup("sum")
	assert.Equal(t, "10", sum.String())
}

func TestEvaluate_SupplementalFunctions(t *testing.T) {
	ev, _, _ := run(t, `
$parts = split('a.b.c', /\./)
$older = versioncmp('1.2.3', '1.10.0')
$known = defined(Notify['a'])
notify { 'a': }
$nowKnown = defined(Notify['a'])
`)
	parts, _ := ev.Lookup("parts")
	assert.Equal(t, "[a, b, c]", parts.String())
	older, _ := ev.Lookup("older")
	assert.Equal(t, "-1", older.String())
	known, _ := ev.Lookup("known")
	assert.Equal(t, "false", known.String())
	nowKnown, _ := ev.Lookup("nowKnown")
	assert.Equal(t, "true", nowKnown.String())
}

func TestEvaluate_SplatInArray(t *testing.T) {
	ev, _, _ := run(t, `
$inner = [2, 3]
$r = [1, *$inner, 4]
`)
	v, _ := ev.Lookup("r")
	assert.Equal(t, "[1, 2, 3, 4]", v.String())
}

func TestEvaluate_HashOperations(t *testing.T) {
	ev, _, _ := run(t, `
$h = {b => 2, a => 1}
$merged = $h + {c => 3}
$b = $h[b]
$multi = $merged[a, missing, c]
`)
	merged, _ := ev.Lookup("merged")
	assert.Equal(t, "{b => 2, a => 1, c => 3}", merged.String())
	b, _ := ev.Lookup("b")
	assert.Equal(t, "2", b.String())
	multi, _ := ev.Lookup("multi")
	assert.Equal(t, "[1, 3]", multi.String())
}

func TestEvaluate_UserDefinedFunction(t *testing.T) {
	ev, _, _ := run(t, `
$r = double(21)
function double($n) { $n * 2 }
`)
	v, ok := ev.Lookup("r")
	require.True(t, ok)
	assert.Equal(t, "42", v.String())
}

func TestEvaluate_UserFunctionCannotShadowBuiltin(t *testing.T) {
	_, _, _, err := tryRun(`function notice($m) { $m }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "built-in")
}

func TestEvaluate_TypeAlias(t *testing.T) {
	ev, _, _ := run(t, `
type Port = Integer[0, 65535]
$r = Port
`)
	v, ok := ev.Lookup("r")
	require.True(t, ok)
	assert.Equal(t, "Integer[0, 65535]", v.String())
}
