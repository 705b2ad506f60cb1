// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

// Package value implements the runtime value model: dynamically typed
// values, insertion-ordered hashes, deep equality, and the type
// descriptor family with parametric access.
package value

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value is a runtime value: undef, boolean, integer, double, string,
// regex, array, hash, type descriptor, or resource reference (a
// parameterized Resource type).
type Value interface {
	String() string
	isValue()
}

// Undef is the undef value.
type Undef struct{}

func (Undef) isValue()       {}
func (Undef) String() string { return "undef" }

// Default is the default value, produced by the default literal.
type Default struct{}

func (Default) isValue()       {}
func (Default) String() string { return "default" }

// Boolean is a boolean value.
type Boolean bool

func (Boolean) isValue() {}
func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Integer is a 64-bit integer value.
type Integer int64

func (Integer) isValue()         {}
func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

// Double is an IEEE-754 double value.
type Double float64

func (Double) isValue() {}
func (d Double) String() string {
	s := strconv.FormatFloat(float64(d), 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// String is a string value.
type String string

func (String) isValue()         {}
func (s String) String() string { return string(s) }

// Regex is a compiled regular expression value.
type Regex struct {
	Pattern  string
	Compiled *regexp.Regexp
}

func (*Regex) isValue() {}
func (r *Regex) String() string { return "/" + r.Pattern + "/" }

// NewRegex compiles a pattern into a regex value.
func NewRegex(pattern string) (*Regex, error) {
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Regex{Pattern: pattern, Compiled: compiled}, nil
}

// Array is an array of values.
type Array []Value

func (Array) isValue() {}
func (a Array) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// HashEntry is one key/value pair of a hash.
type HashEntry struct {
	Key   Value
	Value Value
}

// Hash is an insertion-ordered map of value to value. Keys are
// indexed by their canonical string form.
type Hash struct {
	entries *orderedmap.OrderedMap[string, HashEntry]
}

func (*Hash) isValue() {}

// NewHash creates an empty hash.
func NewHash() *Hash {
	return &Hash{entries: orderedmap.New[string, HashEntry]()}
}

func hashKey(key Value) string {
	return fmt.Sprintf("%T\x00%s", key, key.String())
}

// Set stores a key/value pair, keeping the key's original insertion
// position when already present.
func (h *Hash) Set(key, value Value) {
	h.entries.Set(hashKey(key), HashEntry{Key: key, Value: value})
}

// Get looks up the value for a key.
func (h *Hash) Get(key Value) (Value, bool) {
	entry, ok := h.entries.Get(hashKey(key))
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// Len returns the number of entries.
func (h *Hash) Len() int {
	return h.entries.Len()
}

// Entries returns all pairs in insertion order.
func (h *Hash) Entries() []HashEntry {
	out := make([]HashEntry, 0, h.entries.Len())
	for pair := h.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Merge returns a new hash with the receiver's entries plus the
// other's; the other's values win on key collisions.
func (h *Hash) Merge(other *Hash) *Hash {
	merged := NewHash()
	for _, entry := range h.Entries() {
		merged.Set(entry.Key, entry.Value)
	}
	for _, entry := range other.Entries() {
		merged.Set(entry.Key, entry.Value)
	}
	return merged
}

func (h *Hash) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, entry := range h.Entries() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(entry.Key.String())
		sb.WriteString(" => ")
		sb.WriteString(entry.Value.String())
	}
	sb.WriteByte('}')
	return sb.String()
}

// Truthy reports value truthiness: false and undef are false,
// everything else is true.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case Undef:
		return false
	case Boolean:
		return bool(t)
	case nil:
		return false
	}
	return true
}

// IsUndef reports whether the value is undef.
func IsUndef(v Value) bool {
	_, ok := v.(Undef)
	return ok || v == nil
}

// ToArray coerces a value to an array: arrays pass through, undef
// becomes empty, anything else becomes a single-element array.
func ToArray(v Value) Array {
	switch t := v.(type) {
	case Array:
		return t
	case Undef:
		return Array{}
	}
	return Array{v}
}

// Bound wraps a variable lookup result with the variable's name so
// assignment can bind by name while every other use dereferences.
type Bound struct {
	Name  string
	Value Value
	Match bool
}

func (*Bound) isValue() {}
func (b *Bound) String() string {
	if b.Value == nil {
		return Undef{}.String()
	}
	return b.Value.String()
}

// Deref unwraps bound variables to their underlying value.
func Deref(v Value) Value {
	if bound, ok := v.(*Bound); ok {
		if bound.Value == nil {
			return Undef{}
		}
		return bound.Value
	}
	if v == nil {
		return Undef{}
	}
	return v
}
