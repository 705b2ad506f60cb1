// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package catalog

import (
	"fmt"
	"strings"

	"github.com/minervacm/minerva/internal/lexer"
)

// Evaluator evaluates definition bodies against their declared
// resources. The evaluation package provides the implementation; the
// indirection keeps the catalog free of evaluation concerns.
type Evaluator interface {
	EvaluateClass(def *ClassDefinition, resource *Resource) error
	EvaluateDefinedType(def *DefinedType, resource *Resource) error
	EvaluateNode(def *NodeDefinition, resource *Resource) error
}

type deferredDefined struct {
	def      *DefinedType
	resource *Resource
}

type pendingRelationship struct {
	label     Relationship
	sourceRef string
	targetRef string
	path      string
	pos       lexer.Position
}

// Catalog owns the resource registry, definition tables, declared
// class set, deferred defined-type queue, and dependency graph.
type Catalog struct {
	resources []*Resource
	byRef     map[string]*Resource
	byType    map[string][]*Resource
	graph     *Graph

	classes         map[string]*ClassDefinition
	definedTypes    map[string]*DefinedType
	nodeDefinitions []*NodeDefinition
	namedNodes      map[string]int
	regexNodes      []regexNode
	defaultNode     int

	declared      map[string]*Resource
	declaredOrder []string

	deferred []deferredDefined
	pending  []pendingRelationship

	main *Resource
}

// New creates an empty catalog containing the main stage.
func New() *Catalog {
	c := &Catalog{
		byRef:        map[string]*Resource{},
		byType:       map[string][]*Resource{},
		graph:        NewGraph(),
		classes:      map[string]*ClassDefinition{},
		definedTypes: map[string]*DefinedType{},
		namedNodes:   map[string]int{},
		defaultNode:  -1,
		declared:     map[string]*Resource{},
	}
	stage, _ := c.AddResource("Stage", "main", "main", lexer.Position{Offset: 0, Line: 0}, nil, false, false)
	c.main = stage
	return c
}

// MainStage returns the Stage[main] resource.
func (c *Catalog) MainStage() *Resource {
	return c.main
}

// Graph returns the dependency graph.
func (c *Catalog) Graph() *Graph {
	return c.graph
}

// Resources returns all resources in declaration order.
func (c *Catalog) Resources() []*Resource {
	return c.resources
}

// AddResource creates a resource exactly once, registers it in the
// graph, and records containment under container when given.
func (c *Catalog) AddResource(typeName, title, path string, pos lexer.Position, container *Resource, virtualized, exported bool) (*Resource, error) {
	resource := newResource(typeName, title, path, pos, virtualized, exported)
	ref := resource.Ref()
	if existing, ok := c.byRef[ref]; ok {
		return nil, &Error{
			Path: path,
			Pos:  pos,
			Message: fmt.Sprintf("resource %s was previously declared at %s:%d.",
				ref, existing.Path, existing.Position.Line),
		}
	}

	c.resources = append(c.resources, resource)
	c.byRef[ref] = resource
	c.byType[strings.ToLower(typeName)] = append(c.byType[strings.ToLower(typeName)], resource)
	c.graph.AddVertex(resource)
	if container != nil {
		c.graph.AddRelationship(RelationshipContains, container, resource)
	}
	return resource, nil
}

// FindResource looks up a resource by its Type[title] reference.
func (c *Catalog) FindResource(typeName, title string) *Resource {
	return c.byRef[fmt.Sprintf("%s[%s]", typeName, title)]
}

// ResourcesOfType returns all resources of a type in declaration
// order.
func (c *Catalog) ResourcesOfType(typeName string) []*Resource {
	return c.byType[strings.ToLower(typeName)]
}

// DeclareClass declares a class at most once: repeated declarations
// return the existing resource without re-evaluating the body. The
// class is contained by the given container, or by the main stage
// when container is nil; an inherited parent class is declared first
// under the same container.
func (c *Catalog) DeclareClass(title string, container *Resource, path string, pos lexer.Position, ev Evaluator) (*Resource, error) {
	return c.DeclareClassWithAttributes(title, container, path, pos, nil, ev)
}

// DeclareClassWithAttributes declares a class, letting prepare set
// attributes on the new resource before the body evaluates. A class
// already declared returns its existing resource untouched.
func (c *Catalog) DeclareClassWithAttributes(title string, container *Resource, path string, pos lexer.Position, prepare func(*Resource) error, ev Evaluator) (*Resource, error) {
	lowered := strings.ToLower(title)
	if existing, ok := c.declared[lowered]; ok {
		return existing, nil
	}

	def := c.FindClass(title)
	if def == nil {
		return nil, &Error{
			Path:    path,
			Pos:     pos,
			Message: fmt.Sprintf("cannot declare class '%s': the class has not been defined.", title),
		}
	}

	// Declare the parent chain first so inherited resources exist.
	if def.Parent != "" {
		if strings.EqualFold(def.Parent, title) {
			return nil, &Error{
				Path:    def.Path,
				Pos:     def.Position,
				Message: fmt.Sprintf("class '%s' cannot inherit from itself.", title),
			}
		}
		if _, err := c.DeclareClass(def.Parent, container, def.Path, def.Position, ev); err != nil {
			return nil, err
		}
	}

	if container == nil {
		container = c.main
	}
	resource, err := c.AddResource("Class", lowered, def.Path, def.Position, container, false, false)
	if err != nil {
		return nil, err
	}
	c.declared[lowered] = resource
	c.declaredOrder = append(c.declaredOrder, lowered)

	if prepare != nil {
		if err := prepare(resource); err != nil {
			return nil, err
		}
	}
	if err := ev.EvaluateClass(def, resource); err != nil {
		return nil, err
	}
	return resource, nil
}

// DeclaredClasses returns declared class titles in declaration order.
func (c *Catalog) DeclaredClasses() []string {
	return c.declaredOrder
}

// DeclareDefinedType creates the resource for a defined type
// declaration and queues its body for deferred realization.
func (c *Catalog) DeclareDefinedType(def *DefinedType, title, path string, pos lexer.Position, container *Resource, virtualized, exported bool) (*Resource, error) {
	resource, err := c.AddResource(NormalizeType(def.Name), title, path, pos, container, virtualized, exported)
	if err != nil {
		return nil, err
	}
	c.deferred = append(c.deferred, deferredDefined{def: def, resource: resource})
	return resource, nil
}

// AddPendingRelationship queues a relationship between resource
// references resolved during finalization, as produced by the edge
// operators.
func (c *Catalog) AddPendingRelationship(label Relationship, sourceRef, targetRef, path string, pos lexer.Position) {
	c.pending = append(c.pending, pendingRelationship{
		label:     label,
		sourceRef: sourceRef,
		targetRef: targetRef,
		path:      path,
		pos:       pos,
	})
}

// Realize clears the virtual flag on every resource of a type that
// matches the predicate, returning the realized resources.
func (c *Catalog) Realize(typeName string, matches func(*Resource) bool) []*Resource {
	var realized []*Resource
	for _, resource := range c.ResourcesOfType(typeName) {
		if !resource.Virtualized() {
			continue
		}
		if matches != nil && !matches(resource) {
			continue
		}
		resource.Realize()
		realized = append(realized, resource)
	}
	return realized
}
