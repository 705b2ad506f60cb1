// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package evaluator

import (
	"strings"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/catalog"
	"github.com/minervacm/minerva/internal/value"
)

// evaluateResourceExpression declares one resource per body title.
// Array titles declare one resource per element. The result is the
// reference (or array of references) to what was declared.
func (e *Evaluator) evaluateResourceExpression(n *ast.ResourceExpression) (value.Value, error) {
	if strings.EqualFold(n.Type, "class") {
		return e.declareClassResources(n)
	}

	virtualized := n.Status == ast.ResourceVirtualized || e.virtualDepth > 0
	exported := n.Status == ast.ResourceExported
	typeName := catalog.NormalizeType(n.Type)
	definedType := e.cat.FindDefinedType(n.Type)

	refs := value.Array{}
	for i := range n.Bodies {
		body := &n.Bodies[i]
		titles, err := e.resourceTitles(body)
		if err != nil {
			return nil, err
		}
		attributes, err := e.attributeOperations(body.Operations)
		if err != nil {
			return nil, err
		}
		for i := range attributes {
			if attributes[i].attribute.Name == "stage" {
				return nil, e.errorAt(attributes[i].ctx, "the 'stage' metaparameter is only valid for classes.")
			}
		}

		for _, title := range titles {
			var resource *catalog.Resource
			var declareErr error
			if definedType != nil {
				resource, declareErr = e.cat.DeclareDefinedType(
					definedType, title, treePath(n), body.Ctx.Range.Begin,
					e.scope.Container(), virtualized, exported)
			} else {
				resource, declareErr = e.cat.AddResource(
					typeName, title, treePath(n), body.Ctx.Range.Begin,
					e.scope.Container(), virtualized, exported)
			}
			if declareErr != nil {
				return nil, e.wrapCatalogError(declareErr, body.Ctx)
			}

			for _, attribute := range e.scope.DefaultsFor(strings.ToLower(n.Type)) {
				attr := attribute
				resource.Set(&attr)
			}
			if err := applyAttributes(resource, attributes); err != nil {
				return nil, err
			}
			refs = append(refs, value.ResourceReference(typeName, title))
		}
	}
	if len(refs) == 1 {
		return refs[0], nil
	}
	return refs, nil
}

func treePath(n ast.Node) string {
	if n.Context().Tree != nil {
		return n.Context().Tree.Path
	}
	return ""
}

// resourceTitles resolves a body's title expression to one or more
// title strings.
func (e *Evaluator) resourceTitles(body *ast.ResourceBody) ([]string, error) {
	v, err := e.evaluate(&body.Title)
	if err != nil {
		return nil, err
	}
	return e.titleStrings(value.Deref(v), body.Title.Context())
}

func (e *Evaluator) titleStrings(v value.Value, ctx ast.Context) ([]string, error) {
	switch t := v.(type) {
	case value.String:
		if t == "" {
			return nil, e.errorAt(ctx, "resource title cannot be empty.")
		}
		return []string{string(t)}, nil
	case value.Array:
		var titles []string
		for _, element := range t {
			sub, err := e.titleStrings(element, ctx)
			if err != nil {
				return nil, err
			}
			titles = append(titles, sub...)
		}
		return titles, nil
	}
	return nil, e.errorAt(ctx, "expected String for resource title but found %s.", value.TypeOf(v))
}

// attributeOperations evaluates an operation list into attribute
// records paired with their operators.
type attributeOperation struct {
	attribute catalog.Attribute
	op        ast.AttributeOp
	ctx       ast.Context
}

func (e *Evaluator) attributeOperations(operations []ast.AttributeOperation) ([]attributeOperation, error) {
	var out []attributeOperation
	seen := map[string]bool{}
	for i := range operations {
		operation := &operations[i]
		if seen[operation.Name] {
			return nil, e.errorAt(operation.Ctx, "attribute '%s' already has a value.", operation.Name)
		}
		seen[operation.Name] = true

		v, err := e.evaluate(&operation.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, attributeOperation{
			attribute: catalog.Attribute{
				Name:          operation.Name,
				NamePosition:  operation.NamePosition,
				Value:         value.Deref(v),
				ValuePosition: operation.ValuePosition,
			},
			op:  operation.Op,
			ctx: operation.Ctx,
		})
	}
	return out, nil
}

func applyAttributes(resource *catalog.Resource, operations []attributeOperation) error {
	for i := range operations {
		attr := operations[i].attribute
		if operations[i].op == ast.AttributeAppend {
			resource.Append(&attr)
			continue
		}
		resource.Set(&attr)
	}
	return nil
}

// declareClassResources implements class { 'name': params }: each
// title declares the class with the body's attributes as parameters.
func (e *Evaluator) declareClassResources(n *ast.ResourceExpression) (value.Value, error) {
	if n.Status != ast.ResourceRealized {
		return nil, e.errorAt(n.Ctx, "classes cannot be virtualized or exported.")
	}

	refs := value.Array{}
	for i := range n.Bodies {
		body := &n.Bodies[i]
		titles, err := e.resourceTitles(body)
		if err != nil {
			return nil, err
		}
		attributes, err := e.attributeOperations(body.Operations)
		if err != nil {
			return nil, err
		}
		for _, title := range titles {
			resource, err := e.declareClass(title, attributes, body.Ctx)
			if err != nil {
				return nil, err
			}
			refs = append(refs, value.ClassReference(resource.Title))
		}
	}
	if len(refs) == 1 {
		return refs[0], nil
	}
	return refs, nil
}

// declareClass declares a class once, resolving its stage from the
// stage metaparameter and applying the given attributes before the
// body evaluates.
func (e *Evaluator) declareClass(title string, attributes []attributeOperation, ctx ast.Context) (*catalog.Resource, error) {
	container := e.cat.MainStage()
	for i := range attributes {
		if attributes[i].attribute.Name != "stage" {
			continue
		}
		stageName, ok := attributes[i].attribute.Value.(value.String)
		if !ok {
			return nil, e.errorAt(attributes[i].ctx, "expected String for 'stage' but found %s.", value.TypeOf(attributes[i].attribute.Value))
		}
		stage := e.cat.FindResource("Stage", string(stageName))
		if stage == nil {
			return nil, e.errorAt(attributes[i].ctx, "stage '%s' does not exist in the catalog.", stageName)
		}
		container = stage
	}

	resource, err := e.cat.DeclareClassWithAttributes(title, container, treePathCtx(ctx), ctx.Range.Begin, func(r *catalog.Resource) error {
		return applyAttributes(r, attributes)
	}, e)
	if err != nil {
		return nil, e.wrapCatalogError(err, ctx)
	}
	return resource, nil
}

func treePathCtx(ctx ast.Context) string {
	if ctx.Tree != nil {
		return ctx.Tree.Path
	}
	return ""
}

func (e *Evaluator) wrapCatalogError(err error, ctx ast.Context) error {
	if catErr, ok := err.(*catalog.Error); ok {
		pos := catErr.Pos
		path := catErr.Path
		if path == "" {
			path = treePathCtx(ctx)
			pos = ctx.Range.Begin
		}
		return &Error{Path: path, Pos: pos, Message: catErr.Message}
	}
	return err
}

// evaluateResourceOverride applies attribute operations to an already
// declared resource, e.g. File['/a'] { mode => '0600' }.
func (e *Evaluator) evaluateResourceOverride(n *ast.ResourceOverride) (value.Value, error) {
	reference, err := e.evaluatePostfix(&n.Reference)
	if err != nil {
		return nil, err
	}
	attributes, err := e.attributeOperations(n.Operations)
	if err != nil {
		return nil, err
	}

	refs, err := overrideTargets(value.Deref(reference))
	if err != nil {
		return nil, e.errorAt(n.Ctx, "%s", err)
	}
	for _, target := range refs {
		typeName := catalog.NormalizeType(target.ResourceType)
		title := target.Title
		if target.Kind == value.KindClass {
			typeName, title = "Class", strings.ToLower(target.Title)
		}
		resource := e.cat.FindResource(typeName, title)
		if resource == nil {
			return nil, e.errorAt(n.Ctx, "cannot override resource %s[%s]: the resource does not exist in the catalog.", typeName, title)
		}
		for i := range attributes {
			attr := attributes[i].attribute
			if attributes[i].op == ast.AttributeAppend {
				resource.Append(&attr)
				continue
			}
			resource.Set(&attr)
		}
	}
	return value.Deref(reference), nil
}

func overrideTargets(v value.Value) ([]*value.Type, error) {
	switch t := v.(type) {
	case value.Array:
		var out []*value.Type
		for _, element := range t {
			sub, err := overrideTargets(element)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case *value.Type:
		if reference, ok := value.IsResourceReference(t); ok {
			return []*value.Type{reference}, nil
		}
	}
	return nil, &Error{Message: "expected a resource reference for override."}
}

// evaluateResourceDefaults records default attributes for a type in
// the current scope, e.g. File { mode => '0644' }.
func (e *Evaluator) evaluateResourceDefaults(n *ast.ResourceDefaults) (value.Value, error) {
	attributes, err := e.attributeOperations(n.Operations)
	if err != nil {
		return nil, err
	}
	records := make([]catalog.Attribute, len(attributes))
	for i := range attributes {
		records[i] = attributes[i].attribute
	}
	e.scope.SetDefaults(strings.ToLower(n.Type), records)
	return value.Undef{}, nil
}

// evaluateCollector realizes virtual resources of a type matching the
// query; an absent query matches every resource of the type.
func (e *Evaluator) evaluateCollector(n *ast.Collector) (value.Value, error) {
	typeName := n.Type
	matches := func(resource *catalog.Resource) bool { return true }
	if n.Query != nil {
		query := n.Query
		matches = func(resource *catalog.Resource) bool {
			ok, err := e.matchesQuery(resource, query)
			return err == nil && ok
		}
	}
	// Exported collectors additionally realize exported resources;
	// without an external store both collect from this catalog.
	realized := e.cat.Realize(typeName, matches)
	refs := value.Array{}
	for _, resource := range realized {
		refs = append(refs, value.ResourceReference(resource.TypeName, resource.Title))
	}
	return refs, nil
}

// matchesQuery evaluates a collector query against one resource's
// attributes: name == value, name != value, and/or combinations, and
// parenthesized groups.
func (e *Evaluator) matchesQuery(resource *catalog.Resource, query *ast.Expression) (bool, error) {
	lhs, err := e.queryOperand(resource, &query.Postfix)
	if err != nil {
		return false, err
	}
	result := value.Truthy(lhs)
	// The flat operator list applies left-to-right: collector queries
	// use a restricted grammar where precedence has no observable
	// effect beyond and/or ordering. A pending and/or combines the
	// result before it with the comparison that follows it.
	pending, before := ast.OpAssign, false
	fold := func() bool {
		switch pending {
		case ast.OpAnd:
			return before && result
		case ast.OpOr:
			return before || result
		}
		return result
	}
	for i := range query.Binary {
		op := &query.Binary[i]
		rhs, err := e.queryOperand(resource, &op.Operand)
		if err != nil {
			return false, err
		}
		switch op.Op {
		case ast.OpAnd, ast.OpOr:
			before, pending = fold(), op.Op
			result = value.Truthy(rhs)
		case ast.OpEqual, ast.OpNotEqual:
			name, ok := lhs.(value.String)
			if !ok {
				return false, e.errorAt(op.Operand.Context(), "expected attribute name in collector query.")
			}
			matched := false
			if attribute := resource.Get(string(name)); attribute != nil {
				matched = value.Equals(attribute.Value, rhs)
			} else if strings.EqualFold(string(name), "title") {
				matched = value.Equals(value.String(resource.Title), rhs)
			}
			if op.Op == ast.OpNotEqual {
				matched = !matched
			}
			result = matched
		default:
			return false, e.errorAt(op.Operand.Context(), "unsupported collector query operator '%s'.", op.Op)
		}
		lhs = rhs
	}
	return fold(), nil
}

func (e *Evaluator) queryOperand(resource *catalog.Resource, postfix *ast.PostfixExpression) (value.Value, error) {
	if nested, ok := postfix.Primary.(*ast.Nested); ok && len(postfix.Operations) == 0 {
		matched, err := e.matchesQuery(resource, &nested.Inner)
		if err != nil {
			return nil, err
		}
		return value.Boolean(matched), nil
	}
	v, err := e.evaluatePostfix(postfix)
	if err != nil {
		return nil, err
	}
	return value.Deref(v), nil
}

// --- catalog.Evaluator implementation ---

// EvaluateClass evaluates a class body in a fresh scope contained by
// the class resource, binding parameters from the resource's
// attributes. The scope is retained for qualified lookup.
func (e *Evaluator) EvaluateClass(def *catalog.ClassDefinition, resource *catalog.Resource) error {
	parent := e.top
	if def.Parent != "" {
		if parentScope, ok := e.classScopes[strings.ToLower(def.Parent)]; ok {
			parent = parentScope
		}
	}
	scope := NewScope(parent, resource)
	e.classScopes[strings.ToLower(def.Name)] = scope
	return e.withScope(scope, func() error {
		if err := e.bindParameters(def.Parameters, resource, def.Path); err != nil {
			return err
		}
		_, err := e.EvaluateBody(def.Body)
		return err
	})
}

// EvaluateDefinedType evaluates a defined type body. $title and $name
// bind to the resource title; declarations inside a virtual resource
// stay virtual.
func (e *Evaluator) EvaluateDefinedType(def *catalog.DefinedType, resource *catalog.Resource) error {
	scope := NewScope(e.top, resource)
	return e.withScope(scope, func() error {
		scope.Bind("title", value.String(resource.Title))
		scope.Bind("name", value.String(resource.Title))
		if err := e.bindParameters(def.Parameters, resource, def.Path); err != nil {
			return err
		}
		if resource.Virtualized() {
			e.virtualDepth++
			defer func() { e.virtualDepth-- }()
		}
		_, err := e.EvaluateBody(def.Body)
		return err
	})
}

// EvaluateNode evaluates a node definition body contained by the node
// resource.
func (e *Evaluator) EvaluateNode(def *catalog.NodeDefinition, resource *catalog.Resource) error {
	scope := NewScope(e.top, resource)
	return e.withScope(scope, func() error {
		_, err := e.EvaluateBody(def.Body)
		return err
	})
}

func (e *Evaluator) withScope(scope *Scope, body func() error) error {
	saved := e.scope
	e.scope = scope
	defer func() { e.scope = saved }()
	return body()
}

// bindParameters binds a definition's parameters from the declared
// resource's attributes, falling back to parameter defaults. An
// attribute that names neither a parameter nor a metaparameter is an
// error.
func (e *Evaluator) bindParameters(parameters []ast.Parameter, resource *catalog.Resource, path string) error {
	names := map[string]bool{}
	for i := range parameters {
		param := &parameters[i]
		names[param.Name] = true
		if attribute := resource.Get(param.Name); attribute != nil {
			e.scope.Bind(param.Name, attribute.Value)
			continue
		}
		if param.Default == nil {
			return &Error{
				Path:    path,
				Pos:     param.Ctx.Range.Begin,
				Message: "expected a value for parameter $" + param.Name + ".",
			}
		}
		v, err := e.evaluate(param.Default)
		if err != nil {
			return err
		}
		bound := value.Deref(v)
		e.scope.Bind(param.Name, bound)
		resource.Set(&catalog.Attribute{
			Name:          param.Name,
			NamePosition:  param.Ctx.Range.Begin,
			Value:         bound,
			ValuePosition: param.Ctx.Range.Begin,
		})
	}

	var attrErr error
	resource.EachAttribute(func(attribute *catalog.Attribute) bool {
		if names[attribute.Name] || catalog.IsMetaparameter(attribute.Name) ||
			attribute.Name == "title" || attribute.Name == "name" {
			return true
		}
		attrErr = &Error{
			Path:    path,
			Pos:     attribute.NamePosition,
			Message: "'" + attribute.Name + "' is not a valid parameter.",
		}
		return false
	})
	return attrErr
}
