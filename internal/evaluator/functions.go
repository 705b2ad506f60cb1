// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package evaluator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/catalog"
	"github.com/minervacm/minerva/internal/value"
)

// builtin is a function implementation. Lambda is nil unless the call
// site attached one.
type builtin func(e *Evaluator, args []value.Value, lambda *ast.Lambda, ctx ast.Context) (value.Value, error)

// builtins is the function registry: the statement call set, the
// iteration functions, and the supplemental library.
var builtins map[string]builtin

// init populates builtins after all package-level declarations are
// resolved, since importFunction indirectly refers back to builtins
// through RegisterDefinitions/defineFunction.
func init() {
	builtins = map[string]builtin{
		"notice":     logFunction(slog.LevelInfo),
		"info":       logFunction(slog.LevelInfo),
		"debug":      logFunction(slog.LevelDebug),
		"warning":    logFunction(slog.LevelWarn),
		"err":        logFunction(slog.LevelError),
		"fail":       failFunction,
		"include":    includeFunction,
		"require":    requireFunction,
		"contain":    containFunction,
		"realize":    realizeFunction,
		"tag":        tagFunction,
		"import":     importFunction,
		"defined":    definedFunction,
		"split":      splitFunction,
		"versioncmp": versioncmpFunction,
		"each":       eachFunction,
		"map":        mapFunction,
		"filter":     filterFunction,
		"reduce":     reduceFunction,
	}
}

// evaluateFunctionCall evaluates a call in primary position.
func (e *Evaluator) evaluateFunctionCall(n *ast.FunctionCall) (value.Value, error) {
	args := make([]value.Value, len(n.Args))
	for i := range n.Args {
		v, err := e.evaluate(&n.Args[i])
		if err != nil {
			return nil, err
		}
		args[i] = value.Deref(v)
	}
	return e.dispatch(n.Name, args, n.Lambda, n.Ctx)
}

func (e *Evaluator) dispatch(name string, args []value.Value, lambda *ast.Lambda, ctx ast.Context) (value.Value, error) {
	if fn, ok := builtins[name]; ok {
		return fn(e, args, lambda, ctx)
	}
	if def, ok := e.userFunctions[name]; ok {
		return e.invokeUserFunction(def, args, ctx)
	}
	return nil, e.errorAt(ctx, "unknown function '%s'.", name)
}

// defineFunction registers a user-defined function. Builtins cannot
// be shadowed.
func (e *Evaluator) defineFunction(n *ast.FunctionDefinition) (value.Value, error) {
	if _, ok := builtins[n.Name]; ok {
		return nil, e.errorAt(n.Ctx, "cannot define function '%s': a built-in function already has that name.", n.Name)
	}
	if existing, ok := e.userFunctions[n.Name]; ok && existing != n {
		return nil, e.errorAt(n.Ctx, "function '%s' was previously defined.", n.Name)
	}
	e.userFunctions[n.Name] = n
	return value.Undef{}, nil
}

// invokeUserFunction runs a user-defined function body in a fresh
// scope under the top scope; the body's last value is the result.
func (e *Evaluator) invokeUserFunction(def *ast.FunctionDefinition, args []value.Value, ctx ast.Context) (value.Value, error) {
	if len(args) > len(def.Parameters) {
		return nil, e.errorAt(ctx, "function '%s' expects at most %d arguments but got %d.", def.Name, len(def.Parameters), len(args))
	}
	scope := NewScope(e.top, nil)
	var result value.Value
	err := e.withScope(scope, func() error {
		for i := range def.Parameters {
			param := &def.Parameters[i]
			if i < len(args) {
				scope.Bind(param.Name, args[i])
				continue
			}
			if param.Default == nil {
				return e.errorAt(ctx, "function '%s' expects a value for parameter $%s.", def.Name, param.Name)
			}
			v, err := e.evaluate(param.Default)
			if err != nil {
				return err
			}
			scope.Bind(param.Name, value.Deref(v))
		}
		v, err := e.EvaluateBody(def.Body)
		result = v
		return err
	})
	return result, err
}

func joinDisplay(args []value.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = displayString(arg)
	}
	return strings.Join(parts, " ")
}

func logFunction(level slog.Level) builtin {
	return func(e *Evaluator, args []value.Value, _ *ast.Lambda, _ ast.Context) (value.Value, error) {
		e.logger.Log(context.Background(), level, joinDisplay(args))
		return value.Undef{}, nil
	}
}

func failFunction(e *Evaluator, args []value.Value, _ *ast.Lambda, ctx ast.Context) (value.Value, error) {
	return nil, e.errorAt(ctx, "%s", joinDisplay(args))
}

// classNames flattens include/require/contain arguments into class
// names: strings, class references, and arrays of either.
func (e *Evaluator) classNames(args []value.Value, ctx ast.Context) ([]string, error) {
	var names []string
	for _, arg := range args {
		switch t := arg.(type) {
		case value.String:
			names = append(names, string(t))
		case value.Array:
			sub, err := e.classNames(t, ctx)
			if err != nil {
				return nil, err
			}
			names = append(names, sub...)
		case *value.Type:
			if t.Kind == value.KindClass && t.Title != "" {
				names = append(names, t.Title)
				continue
			}
			return nil, e.errorAt(ctx, "expected class name but found %s.", t)
		default:
			return nil, e.errorAt(ctx, "expected class name but found %s.", value.TypeOf(arg))
		}
	}
	return names, nil
}

func includeFunction(e *Evaluator, args []value.Value, _ *ast.Lambda, ctx ast.Context) (value.Value, error) {
	names, err := e.classNames(args, ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if _, err := e.cat.DeclareClass(name, nil, treePathCtx(ctx), ctx.Range.Begin, e); err != nil {
			return nil, e.wrapCatalogError(err, ctx)
		}
	}
	return value.Undef{}, nil
}

// requireFunction includes the classes and makes the current
// container depend on them.
func requireFunction(e *Evaluator, args []value.Value, _ *ast.Lambda, ctx ast.Context) (value.Value, error) {
	names, err := e.classNames(args, ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		resource, err := e.cat.DeclareClass(name, nil, treePathCtx(ctx), ctx.Range.Begin, e)
		if err != nil {
			return nil, e.wrapCatalogError(err, ctx)
		}
		if container := e.scope.Container(); container != nil && container != resource {
			e.cat.AddPendingRelationship(catalog.RelationshipRequire,
				container.Ref(), resource.Ref(), treePathCtx(ctx), ctx.Range.Begin)
		}
	}
	return value.Undef{}, nil
}

// containFunction includes the classes and contains them in the
// current container instead of the stage alone.
func containFunction(e *Evaluator, args []value.Value, _ *ast.Lambda, ctx ast.Context) (value.Value, error) {
	names, err := e.classNames(args, ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		resource, err := e.cat.DeclareClass(name, nil, treePathCtx(ctx), ctx.Range.Begin, e)
		if err != nil {
			return nil, e.wrapCatalogError(err, ctx)
		}
		if container := e.scope.Container(); container != nil && container != resource {
			e.cat.Graph().AddRelationship(catalog.RelationshipContains, container, resource)
		}
	}
	return value.Undef{}, nil
}

func realizeFunction(e *Evaluator, args []value.Value, _ *ast.Lambda, ctx ast.Context) (value.Value, error) {
	refs := value.Array{}
	for _, arg := range args {
		for _, element := range value.ToArray(arg) {
			reference, ok := value.IsResourceReference(element)
			if !ok {
				return nil, e.errorAt(ctx, "expected resource reference for realize but found %s.", value.TypeOf(element))
			}
			typeName := catalog.NormalizeType(reference.ResourceType)
			resource := e.cat.FindResource(typeName, reference.Title)
			if resource == nil {
				return nil, e.errorAt(ctx, "cannot realize resource %s[%s]: the resource does not exist in the catalog.", typeName, reference.Title)
			}
			resource.Realize()
			refs = append(refs, element)
		}
	}
	return refs, nil
}

func tagFunction(e *Evaluator, args []value.Value, _ *ast.Lambda, _ ast.Context) (value.Value, error) {
	e.logger.Debug("tag", "tags", joinDisplay(args))
	return value.Undef{}, nil
}

// importFunction loads additional manifests by glob pattern through
// the driver-provided importer, evaluating each exactly once.
func importFunction(e *Evaluator, args []value.Value, _ *ast.Lambda, ctx ast.Context) (value.Value, error) {
	if e.importer == nil {
		return nil, e.errorAt(ctx, "import is not supported in this context.")
	}
	// The importing manifest is already being evaluated.
	if ctx.Tree != nil {
		e.imported[ctx.Tree.Path] = true
	}
	for _, arg := range args {
		pattern, ok := arg.(value.String)
		if !ok {
			return nil, e.errorAt(ctx, "expected String import pattern but found %s.", value.TypeOf(arg))
		}
		trees, err := e.importer.Import(string(pattern))
		if err != nil {
			return nil, e.errorAt(ctx, "cannot import '%s': %s", pattern, err)
		}
		for _, tree := range trees {
			if e.imported[tree.Path] {
				continue
			}
			e.imported[tree.Path] = true
			if err := e.RegisterDefinitions(tree); err != nil {
				return nil, err
			}
			if err := e.EvaluateMain(tree); err != nil {
				return nil, err
			}
		}
	}
	return value.Undef{}, nil
}

// definedFunction reports whether a class, defined type, or declared
// resource is known to the catalog.
func definedFunction(e *Evaluator, args []value.Value, _ *ast.Lambda, ctx ast.Context) (value.Value, error) {
	for _, arg := range args {
		known := false
		switch t := arg.(type) {
		case value.String:
			name := string(t)
			known = e.cat.FindClass(name) != nil || e.cat.FindDefinedType(name) != nil
		case *value.Type:
			if reference, ok := value.IsResourceReference(t); ok {
				typeName := "Class"
				title := strings.ToLower(reference.Title)
				if reference.Kind == value.KindResource {
					typeName = catalog.NormalizeType(reference.ResourceType)
					title = reference.Title
				}
				known = e.cat.FindResource(typeName, title) != nil
			}
		default:
			return nil, e.errorAt(ctx, "expected String or resource reference for defined but found %s.", value.TypeOf(arg))
		}
		if !known {
			return value.Boolean(false), nil
		}
	}
	return value.Boolean(true), nil
}

func splitFunction(e *Evaluator, args []value.Value, _ *ast.Lambda, ctx ast.Context) (value.Value, error) {
	if len(args) != 2 {
		return nil, e.errorAt(ctx, "expected 2 arguments for split but found %d.", len(args))
	}
	subject, ok := args[0].(value.String)
	if !ok {
		return nil, e.errorAt(ctx, "expected String for first argument of split but found %s.", value.TypeOf(args[0]))
	}

	var pattern *value.Regex
	switch t := args[1].(type) {
	case value.String:
		// The string form of a split pattern is itself a regex.
		r, err := value.NewRegex(string(t))
		if err != nil {
			return nil, e.errorAt(ctx, "invalid split pattern: %s", err)
		}
		pattern = r
	case *value.Regex:
		pattern = t
	default:
		return nil, e.errorAt(ctx, "expected String or Regexp for second argument of split but found %s.", value.TypeOf(args[1]))
	}

	parts := pattern.Compiled.Split(string(subject), -1)
	result := make(value.Array, len(parts))
	for i, part := range parts {
		result[i] = value.String(part)
	}
	return result, nil
}

// versioncmpFunction compares two version strings: semantic versions
// compare structurally, anything else falls back to a segment-wise
// numeric/lexicographic comparison.
func versioncmpFunction(e *Evaluator, args []value.Value, _ *ast.Lambda, ctx ast.Context) (value.Value, error) {
	if len(args) != 2 {
		return nil, e.errorAt(ctx, "expected 2 arguments for versioncmp but found %d.", len(args))
	}
	a, aok := args[0].(value.String)
	b, bok := args[1].(value.String)
	if !aok || !bok {
		return nil, e.errorAt(ctx, "expected String arguments for versioncmp.")
	}

	if av, err := semver.NewVersion(string(a)); err == nil {
		if bv, err := semver.NewVersion(string(b)); err == nil {
			return value.Integer(av.Compare(bv)), nil
		}
	}
	return value.Integer(compareVersionSegments(string(a), string(b))), nil
}

func compareVersionSegments(a, b string) int {
	split := func(s string) []string {
		return strings.FieldsFunc(s, func(r rune) bool {
			return r == '.' || r == '-' || r == '_'
		})
	}
	as, bs := split(a), split(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aIsNum := parseDecimal(as[i])
		bn, bIsNum := parseDecimal(bs[i])
		switch {
		case aIsNum && bIsNum:
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}
		case aIsNum != bIsNum:
			// Numeric segments order before alphabetic ones.
			if aIsNum {
				return -1
			}
			return 1
		default:
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func parseDecimal(s string) (int64, bool) {
	var n int64
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int64(s[i]-'0')
	}
	return n, true
}

// --- Iteration functions ---

// yield runs a lambda body with the given arguments bound to its
// parameters in a fresh scope.
func (e *Evaluator) yield(lambda *ast.Lambda, args []value.Value, ctx ast.Context) (value.Value, error) {
	if lambda == nil {
		return nil, e.errorAt(ctx, "expected a lambda for this function.")
	}
	if len(args) > len(lambda.Parameters) {
		// Hash pairs arrive already shaped to the lambda's arity by
		// iterationItems; any excess arguments here are an error.
		return nil, e.errorAt(lambda.Ctx, "expected %d lambda parameters but found %d arguments.", len(lambda.Parameters), len(args))
	}

	scope := NewScope(e.scope, nil)
	for i := range lambda.Parameters {
		param := &lambda.Parameters[i]
		if i < len(args) {
			scope.Bind(param.Name, args[i])
			continue
		}
		if param.Default == nil {
			return nil, e.errorAt(lambda.Ctx, "expected a value for lambda parameter $%s.", param.Name)
		}
		v, err := e.evaluate(param.Default)
		if err != nil {
			return nil, err
		}
		scope.Bind(param.Name, value.Deref(v))
	}

	var result value.Value
	err := e.withScope(scope, func() error {
		v, bodyErr := e.EvaluateBody(lambda.Body)
		result = v
		return bodyErr
	})
	return result, err
}

// iterationItems flattens an iterable into yield argument tuples:
// arrays yield the element (or index, element for two parameters),
// hashes yield key, value.
func iterationItems(v value.Value, arity int) ([][]value.Value, bool) {
	switch t := v.(type) {
	case value.Array:
		items := make([][]value.Value, len(t))
		for i, element := range t {
			if arity >= 2 {
				items[i] = []value.Value{value.Integer(i), element}
			} else {
				items[i] = []value.Value{element}
			}
		}
		return items, true
	case *value.Hash:
		entries := t.Entries()
		items := make([][]value.Value, len(entries))
		for i, entry := range entries {
			if arity >= 2 {
				items[i] = []value.Value{entry.Key, entry.Value}
			} else {
				items[i] = []value.Value{value.Array{entry.Key, entry.Value}}
			}
		}
		return items, true
	}
	return nil, false
}

func iterableArgs(e *Evaluator, name string, args []value.Value, lambda *ast.Lambda, ctx ast.Context) ([][]value.Value, error) {
	if len(args) != 1 {
		return nil, e.errorAt(ctx, "expected 1 argument for %s but found %d.", name, len(args))
	}
	if lambda == nil {
		return nil, e.errorAt(ctx, "expected a lambda for %s.", name)
	}
	items, ok := iterationItems(args[0], len(lambda.Parameters))
	if !ok {
		return nil, e.errorAt(ctx, "expected Array or Hash for %s but found %s.", name, value.TypeOf(args[0]))
	}
	return items, nil
}

func eachFunction(e *Evaluator, args []value.Value, lambda *ast.Lambda, ctx ast.Context) (value.Value, error) {
	items, err := iterableArgs(e, "each", args, lambda, ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if _, err := e.yield(lambda, item, ctx); err != nil {
			return nil, err
		}
	}
	return args[0], nil
}

func mapFunction(e *Evaluator, args []value.Value, lambda *ast.Lambda, ctx ast.Context) (value.Value, error) {
	items, err := iterableArgs(e, "map", args, lambda, ctx)
	if err != nil {
		return nil, err
	}
	result := make(value.Array, 0, len(items))
	for _, item := range items {
		v, err := e.yield(lambda, item, ctx)
		if err != nil {
			return nil, err
		}
		result = append(result, value.Deref(v))
	}
	return result, nil
}

func filterFunction(e *Evaluator, args []value.Value, lambda *ast.Lambda, ctx ast.Context) (value.Value, error) {
	items, err := iterableArgs(e, "filter", args, lambda, ctx)
	if err != nil {
		return nil, err
	}
	if hash, ok := args[0].(*value.Hash); ok {
		result := value.NewHash()
		for i, entry := range hash.Entries() {
			v, err := e.yield(lambda, items[i], ctx)
			if err != nil {
				return nil, err
			}
			if value.Truthy(value.Deref(v)) {
				result.Set(entry.Key, entry.Value)
			}
		}
		return result, nil
	}
	array := args[0].(value.Array)
	result := value.Array{}
	for i, item := range items {
		v, err := e.yield(lambda, item, ctx)
		if err != nil {
			return nil, err
		}
		if value.Truthy(value.Deref(v)) {
			result = append(result, array[i])
		}
	}
	return result, nil
}

func reduceFunction(e *Evaluator, args []value.Value, lambda *ast.Lambda, ctx ast.Context) (value.Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, e.errorAt(ctx, "expected 1 or 2 arguments for reduce but found %d.", len(args))
	}
	if lambda == nil || len(lambda.Parameters) != 2 {
		return nil, e.errorAt(ctx, "expected a 2-parameter lambda for reduce.")
	}
	items, ok := iterationItems(args[0], 1)
	if !ok {
		return nil, e.errorAt(ctx, "expected Array or Hash for reduce but found %s.", value.TypeOf(args[0]))
	}

	var accumulator value.Value
	start := 0
	if len(args) == 2 {
		accumulator = args[1]
	} else {
		if len(items) == 0 {
			return value.Undef{}, nil
		}
		accumulator = items[0][0]
		start = 1
	}
	for _, item := range items[start:] {
		v, err := e.yield(lambda, []value.Value{accumulator, item[0]}, ctx)
		if err != nil {
			return nil, err
		}
		accumulator = value.Deref(v)
	}
	return accumulator, nil
}
