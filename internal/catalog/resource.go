// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

// Package catalog implements the compiled resource graph: the
// resource registry, definition tables, relationship graph with cycle
// detection, deferred defined-type realization, and JSON output.
package catalog

import (
	"fmt"
	"strings"

	"github.com/minervacm/minerva/internal/lexer"
	"github.com/minervacm/minerva/internal/value"
)

// Attribute is one attribute record of a resource: its name, shared
// value, and the positions of both for diagnostics.
type Attribute struct {
	Name          string
	NamePosition  lexer.Position
	Value         value.Value
	ValuePosition lexer.Position
}

// Resource is a typed, titled record in the catalog.
type Resource struct {
	TypeName string // normalized, e.g. File or Class
	Title    string
	Path     string
	Position lexer.Position

	vertexID          int
	virtualized       bool
	exported          bool
	virtualEvaluation bool

	attributes map[string]*Attribute
	order      []string
}

func newResource(typeName, title, path string, position lexer.Position, virtualized, exported bool) *Resource {
	return &Resource{
		TypeName:    typeName,
		Title:       title,
		Path:        path,
		Position:    position,
		virtualized: virtualized,
		exported:    exported,
		attributes:  map[string]*Attribute{},
	}
}

// Ref returns the reference form Type[title].
func (r *Resource) Ref() string {
	return fmt.Sprintf("%s[%s]", r.TypeName, r.Title)
}

// Virtualized reports whether the resource is virtual and therefore
// excluded from output until realized.
func (r *Resource) Virtualized() bool { return r.virtualized }

// Exported reports whether the resource was declared with @@.
func (r *Resource) Exported() bool { return r.exported }

// Realize clears the virtual status.
func (r *Resource) Realize() { r.virtualized = false }

// VertexID returns the resource's id in the dependency graph.
func (r *Resource) VertexID() int { return r.vertexID }

// Set stores an attribute, replacing any previous record and keeping
// the original insertion position in the emission order.
func (r *Resource) Set(attribute *Attribute) {
	if _, exists := r.attributes[attribute.Name]; !exists {
		r.order = append(r.order, attribute.Name)
	}
	r.attributes[attribute.Name] = attribute
}

// Append implements the +> operation: the attribute's existing value
// is coerced to an array and the new value's elements are added.
// Appending to a missing attribute behaves as assignment.
func (r *Resource) Append(attribute *Attribute) {
	existing, ok := r.attributes[attribute.Name]
	if !ok {
		r.Set(attribute)
		return
	}
	combined := append(value.ToArray(existing.Value), value.ToArray(attribute.Value)...)
	r.Set(&Attribute{
		Name:          attribute.Name,
		NamePosition:  attribute.NamePosition,
		Value:         combined,
		ValuePosition: attribute.ValuePosition,
	})
}

// Get returns the attribute record for a name, or nil.
func (r *Resource) Get(name string) *Attribute {
	return r.attributes[name]
}

// EachAttribute visits attributes in insertion order.
func (r *Resource) EachAttribute(callback func(*Attribute) bool) {
	for _, name := range r.order {
		if !callback(r.attributes[name]) {
			return
		}
	}
}

// metaparameters is the set of attribute names with catalog-level
// meaning rather than provider-level meaning.
var metaparameters = map[string]bool{
	"alias":     true,
	"audit":     true,
	"before":    true,
	"loglevel":  true,
	"noop":      true,
	"notify":    true,
	"require":   true,
	"schedule":  true,
	"stage":     true,
	"subscribe": true,
	"tag":       true,
}

// IsMetaparameter reports whether the attribute name is a
// metaparameter.
func IsMetaparameter(name string) bool {
	return metaparameters[name]
}

// NormalizeType capitalizes each :: segment of a resource type name:
// file -> File, foo::bar -> Foo::Bar.
func NormalizeType(name string) string {
	segments := strings.Split(name, "::")
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		segments[i] = strings.ToUpper(segment[:1]) + segment[1:]
	}
	return strings.Join(segments, "::")
}
