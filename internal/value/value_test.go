// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minervacm/minerva/internal/value"
)

func TestTruthy(t *testing.T) {
	assert.False(t, value.Truthy(value.Undef{}))
	assert.False(t, value.Truthy(value.Boolean(false)))
	assert.True(t, value.Truthy(value.Boolean(true)))
	assert.True(t, value.Truthy(value.Integer(0)))
	assert.True(t, value.Truthy(value.String("")))
	assert.True(t, value.Truthy(value.Array{}))
}

func TestHash_PreservesInsertionOrder(t *testing.T) {
	h := value.NewHash()
	h.Set(value.String("z"), value.Integer(1))
	h.Set(value.String("a"), value.Integer(2))
	h.Set(value.String("m"), value.Integer(3))

	entries := h.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, value.String("z"), entries[0].Key)
	assert.Equal(t, value.String("a"), entries[1].Key)
	assert.Equal(t, value.String("m"), entries[2].Key)
}

func TestHash_MergeRightWins(t *testing.T) {
	a := value.NewHash()
	a.Set(value.String("x"), value.Integer(1))
	a.Set(value.String("y"), value.Integer(2))
	b := value.NewHash()
	b.Set(value.String("y"), value.Integer(20))
	b.Set(value.String("z"), value.Integer(30))

	merged := a.Merge(b)
	v, ok := merged.Get(value.String("y"))
	require.True(t, ok)
	assert.Equal(t, value.Integer(20), v)
	assert.Equal(t, 3, merged.Len())
}

func TestEquals(t *testing.T) {
	tests := []struct {
		name string
		a, b value.Value
		want bool
	}{
		{"undef equals undef", value.Undef{}, value.Undef{}, true},
		{"integer equals integer", value.Integer(5), value.Integer(5), true},
		{"integer equals double", value.Integer(5), value.Double(5.0), true},
		{"string case-insensitive", value.String("Foo"), value.String("foo"), true},
		{"string mismatch", value.String("foo"), value.String("bar"), false},
		{"array deep", value.Array{value.Integer(1)}, value.Array{value.Integer(1)}, true},
		{"array length mismatch", value.Array{value.Integer(1)}, value.Array{}, false},
		{"string vs integer", value.String("1"), value.Integer(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, value.Equals(tt.a, tt.b))
		})
	}
}

func TestCompare(t *testing.T) {
	result, ok := value.Compare(value.Integer(1), value.Double(2.5))
	require.True(t, ok)
	assert.Negative(t, result)

	result, ok = value.Compare(value.String("ABC"), value.String("abd"))
	require.True(t, ok)
	assert.Negative(t, result)

	_, ok = value.Compare(value.String("a"), value.Integer(1))
	assert.False(t, ok)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, "Integer[42, 42]", value.TypeOf(value.Integer(42)).String())
	assert.Equal(t, "String[3, 3]", value.TypeOf(value.String("abc")).String())
	assert.Equal(t, "Boolean", value.TypeOf(value.Boolean(true)).String())
	assert.Equal(t, "Undef", value.TypeOf(value.Undef{}).String())

	arr := value.TypeOf(value.Array{value.Integer(1), value.String("a")})
	assert.Contains(t, arr.String(), "Array[Variant[")
}

func TestAccess_String(t *testing.T) {
	tests := []struct {
		name string
		args []value.Value
		want string
	}{
		{"single index", []value.Value{value.Integer(1)}, "b"},
		{"negative index", []value.Value{value.Integer(-1)}, "c"},
		{"index and count", []value.Value{value.Integer(0), value.Integer(2)}, "ab"},
		{"negative count is inclusive end", []value.Value{value.Integer(0), value.Integer(-1)}, "abc"},
		{"out of range", []value.Value{value.Integer(10)}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := value.Access(value.String("abc"), tt.args)
			require.NoError(t, err)
			assert.Equal(t, value.String(tt.want), got)
		})
	}
}

func TestAccess_Array(t *testing.T) {
	target := value.Array{value.Integer(10), value.Integer(20), value.Integer(30)}

	got, err := value.Access(target, []value.Value{value.Integer(1)})
	require.NoError(t, err)
	assert.Equal(t, value.Integer(20), got)

	got, err = value.Access(target, []value.Value{value.Integer(5)})
	require.NoError(t, err)
	assert.Equal(t, value.Undef{}, got)

	got, err = value.Access(target, []value.Value{value.Integer(1), value.Integer(2)})
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Integer(20), value.Integer(30)}, got)
}

func TestAccess_Hash(t *testing.T) {
	h := value.NewHash()
	h.Set(value.String("a"), value.Integer(1))
	h.Set(value.String("b"), value.Integer(2))

	got, err := value.Access(h, []value.Value{value.String("a")})
	require.NoError(t, err)
	assert.Equal(t, value.Integer(1), got)

	got, err = value.Access(h, []value.Value{value.String("missing")})
	require.NoError(t, err)
	assert.Equal(t, value.Undef{}, got)

	// Multi-key access skips missing keys.
	got, err = value.Access(h, []value.Value{value.String("b"), value.String("nope"), value.String("a")})
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Integer(2), value.Integer(1)}, got)
}

func TestAccess_TypeParameters(t *testing.T) {
	tests := []struct {
		name   string
		target *value.Type
		args   []value.Value
		want   string
	}{
		{"integer range", value.NewType(value.KindInteger), []value.Value{value.Integer(0), value.Integer(10)}, "Integer[0, 10]"},
		{"integer default min", value.NewType(value.KindInteger), []value.Value{value.Default{}, value.Integer(10)}, "Integer[default, 10]"},
		{"string lengths", value.NewType(value.KindString), []value.Value{value.Integer(1), value.Integer(8)}, "String[1, 8]"},
		{"array of string", value.NewType(value.KindArray), []value.Value{value.NewType(value.KindString)}, "Array[String]"},
		{"array sized", value.NewType(value.KindArray), []value.Value{value.NewType(value.KindString), value.Integer(1), value.Integer(4)}, "Array[String, 1, 4]"},
		{"hash typed", value.NewType(value.KindHash), []value.Value{value.NewType(value.KindString), value.NewType(value.KindInteger)}, "Hash[String, Integer]"},
		{"enum", value.NewType(value.KindEnum), []value.Value{value.String("a"), value.String("b")}, "Enum['a', 'b']"},
		{"optional", value.NewType(value.KindOptional), []value.Value{value.NewType(value.KindString)}, "Optional[String]"},
		{"variant", value.NewType(value.KindVariant), []value.Value{value.NewType(value.KindString), value.NewType(value.KindInteger)}, "Variant[String, Integer]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := value.Access(tt.target, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAccess_ResourceReferences(t *testing.T) {
	// Bare Resource: first argument names the type.
	got, err := value.Access(value.NewType(value.KindResource),
		[]value.Value{value.String("file"), value.String("/a")})
	require.NoError(t, err)
	ref, ok := got.(*value.Type)
	require.True(t, ok)
	assert.Equal(t, "File[/a]", ref.String())

	// Typed resource: arguments are titles; multiple titles give an
	// array of references.
	typed := value.TypeByName("File")
	got, err = value.Access(typed, []value.Value{value.String("/a"), value.String("/b")})
	require.NoError(t, err)
	refs, ok := got.(value.Array)
	require.True(t, ok)
	require.Len(t, refs, 2)
	assert.Equal(t, "File[/b]", refs[1].String())
}

func TestAccess_Errors(t *testing.T) {
	_, err := value.Access(value.NewType(value.KindEnum), []value.Value{value.Integer(1)})
	require.Error(t, err)
	var accessErr *value.AccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, 0, accessErr.ArgIndex)

	_, err = value.Access(value.Integer(1), []value.Value{value.Integer(0)})
	require.Error(t, err)
}

func TestTypeByName(t *testing.T) {
	assert.Equal(t, value.KindString, value.TypeByName("String").Kind)
	assert.Equal(t, value.KindClass, value.TypeByName("Class").Kind)

	// Unknown capitalized names are resource type references.
	file := value.TypeByName("File")
	assert.Equal(t, value.KindResource, file.Kind)
	assert.Equal(t, "File", file.ResourceType)
}
