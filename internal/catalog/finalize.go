// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package catalog

import (
	"fmt"

	"github.com/minervacm/minerva/internal/ref"
	"github.com/minervacm/minerva/internal/value"
)

// maxDefinedTypeIterations bounds the realization loop so an
// infinitely recursive defined type fails instead of spinning.
const maxDefinedTypeIterations = 1000

// Finalize drains the deferred defined-type queue, populates the
// dependency graph from relationship metaparameters and the queued
// operator edges, and rejects the catalog on any cycle.
func (c *Catalog) Finalize(ev Evaluator) error {
	if err := c.evaluateDefinedTypes(ev); err != nil {
		return err
	}
	if err := c.populateGraph(); err != nil {
		return err
	}
	return c.graph.DetectCycles()
}

// evaluateDefinedTypes realizes queued defined types. Evaluation may
// declare further defined types, so the queue drains in rounds;
// resources still virtual are held back and evaluated once only
// virtual entries remain (their sub-resources stay virtual too).
func (c *Catalog) evaluateDefinedTypes(ev Evaluator) error {
	var virtual []deferredDefined
	iteration := 0
	for {
		if len(c.deferred) == 0 {
			// Collection may have realized held-back resources.
			realized := false
			still := virtual[:0]
			for _, d := range virtual {
				if d.resource.Virtualized() {
					still = append(still, d)
					continue
				}
				c.deferred = append(c.deferred, d)
				realized = true
			}
			virtual = still
			if realized {
				continue
			}
			if len(virtual) == 0 {
				return nil
			}
			// Everything left is virtual: evaluate regardless so the
			// sub-resources reach the graph as virtualized.
			c.deferred = append(c.deferred, virtual...)
			virtual = nil
			for i := range c.deferred {
				c.deferred[i].resource.markVirtualEvaluation()
			}
		}

		batch := c.deferred
		c.deferred = nil
		for _, d := range batch {
			if d.resource.Virtualized() && !d.resource.virtualEvaluation {
				virtual = append(virtual, d)
				continue
			}
			if err := ev.EvaluateDefinedType(d.def, d.resource); err != nil {
				return &Error{
					Path: d.resource.Path,
					Pos:  d.resource.Position,
					Message: fmt.Sprintf("failed to evaluate defined type '%s': %s",
						d.resource.Ref(), err),
				}
			}
		}

		iteration++
		if iteration >= maxDefinedTypeIterations {
			return &Error{
				Message: "maximum defined type evaluations exceeded: a defined type may be infinitely recursive.",
			}
		}
	}
}

func (r *Resource) markVirtualEvaluation() {
	r.virtualEvaluation = true
}

// populateGraph reads the four relationship metaparameters of every
// resource and resolves the operator edges queued during evaluation.
func (c *Catalog) populateGraph() error {
	relationships := []struct {
		name  string
		label Relationship
	}{
		{"before", RelationshipBefore},
		{"notify", RelationshipNotify},
		{"require", RelationshipRequire},
		{"subscribe", RelationshipSubscribe},
	}

	for _, resource := range c.resources {
		for _, relationship := range relationships {
			if err := c.processRelationship(resource, relationship.name, relationship.label); err != nil {
				return err
			}
		}
	}

	for _, pending := range c.pending {
		source := c.byRef[pending.sourceRef]
		target := c.byRef[pending.targetRef]
		if source == nil || target == nil {
			missing := pending.sourceRef
			if source != nil {
				missing = pending.targetRef
			}
			return &Error{
				Path:    pending.path,
				Pos:     pending.pos,
				Message: fmt.Sprintf("cannot form a relationship with resource %s: the resource does not exist in the catalog.", missing),
			}
		}
		if source == target {
			return &Error{
				Path:    pending.path,
				Pos:     pending.pos,
				Message: fmt.Sprintf("resource %s cannot form a relationship with itself.", source.Ref()),
			}
		}
		c.graph.AddRelationship(pending.label, source, target)
	}
	return nil
}

func (c *Catalog) processRelationship(source *Resource, name string, label Relationship) error {
	attribute := source.Get(name)
	if attribute == nil {
		return nil
	}
	return eachResourceRef(attribute.Value, func(typeName, title string) error {
		target := c.FindResource(typeName, title)
		if target == nil {
			return &Error{
				Path: source.Path,
				Pos:  attribute.ValuePosition,
				Message: fmt.Sprintf("resource %s (declared at %s:%d) cannot form a '%s' relationship with resource %s[%s]: the resource does not exist in the catalog.",
					source.Ref(), source.Path, source.Position.Line, name, typeName, title),
			}
		}
		if target == source {
			return &Error{
				Path: source.Path,
				Pos:  attribute.ValuePosition,
				Message: fmt.Sprintf("resource %s (declared at %s:%d) cannot form a '%s' relationship with resource %s: the relationship is self-referencing.",
					source.Ref(), source.Path, source.Position.Line, name, target.Ref()),
			}
		}
		c.graph.AddRelationship(label, source, target)
		return nil
	}, func(v value.Value) error {
		return &Error{
			Path: source.Path,
			Pos:  attribute.ValuePosition,
			Message: fmt.Sprintf("resource %s (declared at %s:%d) cannot form a '%s' relationship: %s is not a resource reference.",
				source.Ref(), source.Path, source.Position.Line, name, value.TypeOf(v)),
		}
	})
}

// eachResourceRef walks a metaparameter value for resource
// references: reference values, reference strings, and arrays of
// either. Anything else goes to the invalid callback.
func eachResourceRef(v value.Value, callback func(typeName, title string) error, invalid func(value.Value) error) error {
	switch t := v.(type) {
	case value.Undef:
		return nil
	case value.Array:
		for _, element := range t {
			if err := eachResourceRef(element, callback, invalid); err != nil {
				return err
			}
		}
		return nil
	case value.String:
		reference, err := ref.Parse(string(t))
		if err != nil || len(reference.Titles) == 0 {
			return invalid(v)
		}
		for _, title := range reference.Titles {
			if err := callback(NormalizeType(reference.Type), title); err != nil {
				return err
			}
		}
		return nil
	case *value.Type:
		if reference, ok := value.IsResourceReference(t); ok {
			typeName := "Class"
			if reference.Kind == value.KindResource {
				typeName = NormalizeType(reference.ResourceType)
			}
			return callback(typeName, reference.Title)
		}
		return invalid(v)
	}
	return invalid(v)
}
