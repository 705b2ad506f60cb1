// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/lexer"
)

// Error is a catalog-level failure: definition conflicts, declaration
// failures, unresolved relationships, and cycles.
type Error struct {
	Path    string
	Pos     lexer.Position
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ClassDefinition binds a class name to its parameters and body.
// Definitions are write-once; redefinition is an error naming the
// previous site.
type ClassDefinition struct {
	Name       string
	Parent     string
	Parameters []ast.Parameter
	Body       []ast.Expression
	Path       string
	Position   lexer.Position
}

// DefinedType binds a defined type name to its parameters and body.
type DefinedType struct {
	Name       string
	Parameters []ast.Parameter
	Body       []ast.Expression
	Path       string
	Position   lexer.Position
}

// NodeDefinition binds hostname matchers to a body.
type NodeDefinition struct {
	Names    []ast.Hostname
	Body     []ast.Expression
	Path     string
	Position lexer.Position
}

// DefineClass registers a class definition.
func (c *Catalog) DefineClass(def *ClassDefinition) error {
	name := strings.ToLower(def.Name)
	if existing, ok := c.classes[name]; ok {
		return &Error{
			Path: def.Path,
			Pos:  def.Position,
			Message: fmt.Sprintf("class '%s' was previously defined at %s:%d.",
				existing.Name, existing.Path, existing.Position.Line),
		}
	}
	if _, ok := c.definedTypes[name]; ok {
		return &Error{
			Path:    def.Path,
			Pos:     def.Position,
			Message: fmt.Sprintf("'%s' was previously defined as a defined type.", def.Name),
		}
	}
	c.classes[name] = def
	return nil
}

// FindClass looks up a class definition by name.
func (c *Catalog) FindClass(name string) *ClassDefinition {
	return c.classes[strings.ToLower(name)]
}

// DefineType registers a defined type.
func (c *Catalog) DefineType(def *DefinedType) error {
	name := strings.ToLower(def.Name)
	if existing, ok := c.definedTypes[name]; ok {
		return &Error{
			Path: def.Path,
			Pos:  def.Position,
			Message: fmt.Sprintf("defined type '%s' was previously defined at %s:%d.",
				existing.Name, existing.Path, existing.Position.Line),
		}
	}
	if _, ok := c.classes[name]; ok {
		return &Error{
			Path:    def.Path,
			Pos:     def.Position,
			Message: fmt.Sprintf("'%s' was previously defined as a class.", def.Name),
		}
	}
	c.definedTypes[name] = def
	return nil
}

// FindDefinedType looks up a defined type by name.
func (c *Catalog) FindDefinedType(name string) *DefinedType {
	return c.definedTypes[strings.ToLower(name)]
}

type regexNode struct {
	pattern  string
	compiled *regexp.Regexp
	index    int
}

// DefineNode registers a node definition, indexing each of its
// matchers: a case-insensitive name map, a regex list in definition
// order, and at most one default.
func (c *Catalog) DefineNode(def *NodeDefinition) error {
	c.nodeDefinitions = append(c.nodeDefinitions, def)
	index := len(c.nodeDefinitions) - 1

	for _, name := range def.Names {
		switch {
		case name.Default:
			if c.defaultNode < 0 {
				c.defaultNode = index
				continue
			}
			previous := c.nodeDefinitions[c.defaultNode]
			return &Error{
				Path: def.Path,
				Pos:  name.Ctx.Range.Begin,
				Message: fmt.Sprintf("a default node was previously defined at %s:%d.",
					previous.Path, previous.Position.Line),
			}
		case name.Regex:
			for _, existing := range c.regexNodes {
				if existing.pattern == name.Value {
					previous := c.nodeDefinitions[existing.index]
					return &Error{
						Path: def.Path,
						Pos:  name.Ctx.Range.Begin,
						Message: fmt.Sprintf("node /%s/ was previously defined at %s:%d.",
							name.Value, previous.Path, previous.Position.Line),
					}
				}
			}
			compiled, err := regexp.Compile(name.Value)
			if err != nil {
				return &Error{
					Path:    def.Path,
					Pos:     name.Ctx.Range.Begin,
					Message: fmt.Sprintf("invalid regular expression: %s", err),
				}
			}
			c.regexNodes = append(c.regexNodes, regexNode{pattern: name.Value, compiled: compiled, index: index})
		default:
			lowered := strings.ToLower(name.Value)
			if existing, ok := c.namedNodes[lowered]; ok {
				previous := c.nodeDefinitions[existing]
				return &Error{
					Path: def.Path,
					Pos:  name.Ctx.Range.Begin,
					Message: fmt.Sprintf("node '%s' was previously defined at %s:%d.",
						name.Value, previous.Path, previous.Position.Line),
				}
			}
			c.namedNodes[lowered] = index
		}
	}
	return nil
}

// SelectNode picks the node definition for an agent's candidate name
// list: the name map first, then the regex list in definition order,
// then the default. With no definitions at all it returns nil; with
// definitions but no match it errors with the tried names.
func (c *Catalog) SelectNode(names []string) (*NodeDefinition, string, error) {
	if len(c.nodeDefinitions) == 0 {
		return nil, "", nil
	}

	for _, name := range names {
		if index, ok := c.namedNodes[strings.ToLower(name)]; ok {
			return c.nodeDefinitions[index], strings.ToLower(name), nil
		}
		for _, rn := range c.regexNodes {
			if rn.compiled.MatchString(name) {
				return c.nodeDefinitions[rn.index], "/" + rn.pattern + "/", nil
			}
		}
	}

	if c.defaultNode >= 0 {
		return c.nodeDefinitions[c.defaultNode], "default", nil
	}
	return nil, "", &Error{
		Message: fmt.Sprintf("could not find a default node or a node with the following names: %s.",
			strings.Join(names, ", ")),
	}
}
