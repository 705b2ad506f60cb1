// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

// Package evaluator walks syntax trees against a catalog, producing
// resources, relationships, and values. Evaluation is a single
// in-place pass: scopes, match frames, and the catalog are mutated as
// the walk proceeds.
package evaluator

import (
	"github.com/minervacm/minerva/internal/catalog"
	"github.com/minervacm/minerva/internal/value"
)

// Scope owns a parent pointer, a variable map, and the resource that
// contains declarations made while the scope is current.
type Scope struct {
	parent    *Scope
	vars      map[string]value.Value
	container *catalog.Resource

	// defaults holds resource default attributes declared in this
	// scope, keyed by lowercase type name.
	defaults map[string][]catalog.Attribute
}

// NewScope creates a scope under parent. A nil container inherits the
// parent's.
func NewScope(parent *Scope, container *catalog.Resource) *Scope {
	if container == nil && parent != nil {
		container = parent.container
	}
	return &Scope{
		parent:    parent,
		vars:      map[string]value.Value{},
		container: container,
	}
}

// Lookup resolves a name through the scope chain.
func (s *Scope) Lookup(name string) (value.Value, bool) {
	for scope := s; scope != nil; scope = scope.parent {
		if v, ok := scope.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Local reports whether the name is bound in this scope itself.
func (s *Scope) Local(name string) bool {
	_, ok := s.vars[name]
	return ok
}

// Bind binds a name in this scope.
func (s *Scope) Bind(name string, v value.Value) {
	s.vars[name] = v
}

// Container returns the resource that contains declarations made in
// this scope.
func (s *Scope) Container() *catalog.Resource {
	return s.container
}

// SetDefaults records default attributes for a resource type.
func (s *Scope) SetDefaults(typeName string, attributes []catalog.Attribute) {
	if s.defaults == nil {
		s.defaults = map[string][]catalog.Attribute{}
	}
	s.defaults[typeName] = append(s.defaults[typeName], attributes...)
}

// DefaultsFor collects default attributes for a type through the
// scope chain, outermost first so inner defaults win.
func (s *Scope) DefaultsFor(typeName string) []catalog.Attribute {
	var out []catalog.Attribute
	if s.parent != nil {
		out = s.parent.DefaultsFor(typeName)
	}
	if s.defaults != nil {
		out = append(out, s.defaults[typeName]...)
	}
	return out
}

// matchFrame is the current set of regex capture groups, numbered
// from zero for the whole match.
type matchFrame []string

// pushMatchScope snapshots the current match frame and returns the
// restoring closure; case, if, unless, and selector evaluation wrap
// themselves in one so capture variables do not escape.
func (e *Evaluator) pushMatchScope() func() {
	saved := e.matches
	return func() {
		e.matches = saved
	}
}

// setMatches installs new capture groups into the current frame.
func (e *Evaluator) setMatches(groups []string) {
	frame := make(matchFrame, len(groups))
	copy(frame, groups)
	e.matches = frame
}

// matchVar returns the match variable at index, or undef when the
// frame is absent or too small.
func (e *Evaluator) matchVar(index int) value.Value {
	if e.matches == nil || index < 0 || index >= len(e.matches) {
		return value.Undef{}
	}
	return value.String(e.matches[index])
}
