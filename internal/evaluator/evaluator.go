// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package evaluator

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/catalog"
	"github.com/minervacm/minerva/internal/lexer"
	"github.com/minervacm/minerva/internal/value"
)

// Error is an evaluation failure carrying the owning tree's path and
// the offending position.
type Error struct {
	Path    string
	Pos     lexer.Position
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Evaluator) errorAt(ctx ast.Context, format string, a ...any) *Error {
	path := ""
	if ctx.Tree != nil {
		path = ctx.Tree.Path
	}
	return &Error{Path: path, Pos: ctx.Range.Begin, Message: fmt.Sprintf(format, a...)}
}

// Importer resolves an import pattern to additional parsed manifests.
type Importer interface {
	Import(pattern string) ([]*ast.SyntaxTree, error)
}

// Evaluator evaluates syntax trees against a catalog.
type Evaluator struct {
	cat    *catalog.Catalog
	logger *slog.Logger

	top     *Scope
	scope   *Scope
	matches matchFrame

	// classScopes retains each evaluated class's scope for
	// fully-qualified variable lookup.
	classScopes map[string]*Scope

	importer Importer
	imported map[string]bool

	userFunctions map[string]*ast.FunctionDefinition

	// virtualDepth is positive while evaluating the body of a
	// virtualized defined type; resources declared inside stay
	// virtual.
	virtualDepth int

	rendered strings.Builder
}

// Option configures an evaluator.
type Option func(*Evaluator)

// WithLogger routes the notice function family to the given logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// WithImporter enables the import statement.
func WithImporter(importer Importer) Option {
	return func(e *Evaluator) { e.importer = importer }
}

// WithFacts binds fact values into the top scope, both individually
// and as the $facts hash.
func WithFacts(facts map[string]value.Value) Option {
	return func(e *Evaluator) {
		hash := value.NewHash()
		for name, v := range facts {
			e.top.Bind(name, v)
		}
		// Insertion order of the $facts hash follows sorted names for
		// determinism.
		names := make([]string, 0, len(facts))
		for name := range facts {
			names = append(names, name)
		}
		sortStrings(names)
		for _, name := range names {
			hash.Set(value.String(name), facts[name])
		}
		e.top.Bind("facts", hash)
	}
}

func sortStrings(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}

// New creates an evaluator over a catalog. The top scope's container
// is the main stage.
func New(cat *catalog.Catalog, opts ...Option) *Evaluator {
	e := &Evaluator{
		cat:           cat,
		logger:        slog.Default(),
		classScopes:   map[string]*Scope{},
		imported:      map[string]bool{},
		userFunctions: map[string]*ast.FunctionDefinition{},
	}
	e.top = NewScope(nil, cat.MainStage())
	e.scope = e.top
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog under construction.
func (e *Evaluator) Catalog() *catalog.Catalog {
	return e.cat
}

// Lookup resolves a variable in the top scope.
func (e *Evaluator) Lookup(name string) (value.Value, bool) {
	return e.top.Lookup(name)
}

// RegisterDefinitions hoists top-level class, defined type, and node
// definitions so they are registered before any declaration.
func (e *Evaluator) RegisterDefinitions(tree *ast.SyntaxTree) error {
	for i := range tree.Statements {
		expr := &tree.Statements[i]
		if len(expr.Binary) > 0 || len(expr.Postfix.Operations) > 0 {
			continue
		}
		if def, ok := expr.Postfix.Primary.(*ast.FunctionDefinition); ok {
			if _, err := e.defineFunction(def); err != nil {
				return err
			}
			continue
		}
		if err := e.registerDefinition(tree, expr.Postfix.Primary); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) registerDefinition(tree *ast.SyntaxTree, primary ast.PrimaryExpression) error {
	switch n := primary.(type) {
	case *ast.ClassDefinition:
		return e.cat.DefineClass(&catalog.ClassDefinition{
			Name:       n.Name,
			Parent:     n.Parent,
			Parameters: n.Parameters,
			Body:       n.Body,
			Path:       tree.Path,
			Position:   n.NamePosition,
		})
	case *ast.DefinedTypeDefinition:
		return e.cat.DefineType(&catalog.DefinedType{
			Name:       n.Name,
			Parameters: n.Parameters,
			Body:       n.Body,
			Path:       tree.Path,
			Position:   n.NamePosition,
		})
	case *ast.NodeDefinition:
		return e.cat.DefineNode(&catalog.NodeDefinition{
			Names:    n.Names,
			Body:     n.Body,
			Path:     tree.Path,
			Position: n.Ctx.Range.Begin,
		})
	}
	return nil
}

// EvaluateMain evaluates a tree's top-level statements in the top
// scope. Definition statements were hoisted by RegisterDefinitions
// and are skipped here.
func (e *Evaluator) EvaluateMain(tree *ast.SyntaxTree) error {
	for i := range tree.Statements {
		expr := &tree.Statements[i]
		if len(expr.Binary) == 0 && len(expr.Postfix.Operations) == 0 && isDefinition(expr.Postfix.Primary) {
			continue
		}
		if _, err := e.evaluate(expr); err != nil {
			return err
		}
	}
	return nil
}

func isDefinition(primary ast.PrimaryExpression) bool {
	switch primary.(type) {
	case *ast.ClassDefinition, *ast.DefinedTypeDefinition, *ast.NodeDefinition, *ast.FunctionDefinition:
		return true
	}
	return false
}

// EvaluateBody evaluates a statement list, returning the last value.
func (e *Evaluator) EvaluateBody(body []ast.Expression) (value.Value, error) {
	var result value.Value = value.Undef{}
	for i := range body {
		v, err := e.evaluate(&body[i])
		if err != nil {
			return nil, err
		}
		result = v
	}
	return value.Deref(result), nil
}

// evaluate evaluates a full expression: the leading postfix plus its
// flat binary operation list via precedence climbing.
func (e *Evaluator) evaluate(expr *ast.Expression) (value.Value, error) {
	lhs, err := e.evaluatePostfix(&expr.Postfix)
	if err != nil {
		return nil, err
	}
	if len(expr.Binary) == 0 {
		return lhs, nil
	}
	pos := 0
	return e.climb(lhs, expr.Binary, &pos, 0, false)
}

// evaluatePostfix evaluates a primary and applies its postfix chain.
func (e *Evaluator) evaluatePostfix(postfix *ast.PostfixExpression) (value.Value, error) {
	result, err := e.evaluatePrimary(postfix.Primary)
	if err != nil {
		return nil, err
	}
	for _, op := range postfix.Operations {
		result, err = e.applyPostfix(value.Deref(result), op)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (e *Evaluator) applyPostfix(target value.Value, op ast.PostfixOperation) (value.Value, error) {
	switch n := op.(type) {
	case *ast.Access:
		args := make([]value.Value, len(n.Args))
		for i := range n.Args {
			v, err := e.evaluate(&n.Args[i])
			if err != nil {
				return nil, err
			}
			args[i] = value.Deref(v)
		}
		result, err := value.Access(target, args)
		if err != nil {
			if accessErr, ok := err.(*value.AccessError); ok {
				ctx := n.Ctx
				if accessErr.ArgIndex >= 0 && accessErr.ArgIndex < len(n.Args) {
					ctx = n.Args[accessErr.ArgIndex].Context()
				}
				return nil, e.errorAt(ctx, "%s", accessErr.Message)
			}
			return nil, e.errorAt(n.Ctx, "%s", err)
		}
		return result, nil
	case *ast.Selector:
		return e.evaluateSelector(target, n)
	case *ast.MethodCall:
		return e.evaluateMethodCall(target, n)
	}
	return nil, e.errorAt(op.Context(), "unsupported postfix operation.")
}

func (e *Evaluator) evaluatePrimary(primary ast.PrimaryExpression) (value.Value, error) {
	switch n := primary.(type) {
	case *ast.Undef:
		return value.Undef{}, nil
	case *ast.Default:
		return value.Default{}, nil
	case *ast.Boolean:
		return value.Boolean(n.Value), nil
	case *ast.Integer:
		return value.Integer(n.Value), nil
	case *ast.Float:
		return value.Double(n.Value), nil
	case *ast.String:
		return e.interpolate(n)
	case *ast.Regex:
		r, err := value.NewRegex(n.Pattern)
		if err != nil {
			return nil, e.errorAt(n.Ctx, "invalid regular expression: %s", err)
		}
		return r, nil
	case *ast.Variable:
		return e.evaluateVariable(n)
	case *ast.Name:
		return value.String(n.Value), nil
	case *ast.BareWord:
		return value.String(n.Value), nil
	case *ast.TypeRef:
		if alias, ok := e.top.Lookup("type:" + n.Name); ok {
			if t, isType := alias.(*value.Type); isType {
				return t, nil
			}
		}
		return value.TypeByName(n.Name), nil
	case *ast.Array:
		return e.evaluateArray(n)
	case *ast.Hash:
		return e.evaluateHash(n)
	case *ast.If:
		return e.evaluateIf(n)
	case *ast.Unless:
		return e.evaluateUnless(n)
	case *ast.Case:
		return e.evaluateCase(n)
	case *ast.FunctionCall:
		return e.evaluateFunctionCall(n)
	case *ast.ResourceExpression:
		return e.evaluateResourceExpression(n)
	case *ast.ResourceOverride:
		return e.evaluateResourceOverride(n)
	case *ast.ResourceDefaults:
		return e.evaluateResourceDefaults(n)
	case *ast.ClassDefinition:
		return e.evaluateNestedDefinition(n.Ctx, n)
	case *ast.DefinedTypeDefinition:
		return e.evaluateNestedDefinition(n.Ctx, n)
	case *ast.NodeDefinition:
		return e.evaluateNestedDefinition(n.Ctx, n)
	case *ast.Collector:
		return e.evaluateCollector(n)
	case *ast.FunctionDefinition:
		return e.defineFunction(n)
	case *ast.TypeAlias:
		return e.evaluateTypeAlias(n)
	case *ast.Unary:
		return e.evaluateUnary(n)
	case *ast.Nested:
		return e.evaluate(&n.Inner)
	case *ast.RenderString:
		e.render(n.Value)
		return value.Undef{}, nil
	case *ast.RenderExpression:
		v, err := e.evaluate(&n.Expr)
		if err != nil {
			return nil, err
		}
		e.render(displayString(value.Deref(v)))
		return value.Undef{}, nil
	case *ast.RenderBlock:
		if _, err := e.EvaluateBody(n.Body); err != nil {
			return nil, err
		}
		return value.Undef{}, nil
	}
	return nil, e.errorAt(primary.Context(), "unsupported expression.")
}

// evaluateNestedDefinition registers a definition encountered inside
// a body; top-level definitions were hoisted and register as no-ops
// here.
func (e *Evaluator) evaluateNestedDefinition(ctx ast.Context, primary ast.PrimaryExpression) (value.Value, error) {
	err := e.registerDefinition(ctx.Tree, primary)
	if err != nil {
		if catErr, ok := err.(*catalog.Error); ok && alreadyHoisted(e, primary, catErr) {
			return value.Undef{}, nil
		}
		return nil, err
	}
	return value.Undef{}, nil
}

// alreadyHoisted reports whether the duplicate-definition error is
// just the hoisting pass having seen this exact definition.
func alreadyHoisted(e *Evaluator, primary ast.PrimaryExpression, _ *catalog.Error) bool {
	switch n := primary.(type) {
	case *ast.ClassDefinition:
		existing := e.cat.FindClass(n.Name)
		return existing != nil && existing.Position == n.NamePosition
	case *ast.DefinedTypeDefinition:
		existing := e.cat.FindDefinedType(n.Name)
		return existing != nil && existing.Position == n.NamePosition
	case *ast.NodeDefinition:
		return true
	}
	return false
}

var matchVariablePattern = regexp.MustCompile(`^\d+$`)

func (e *Evaluator) evaluateVariable(n *ast.Variable) (value.Value, error) {
	name := n.Name
	if matchVariablePattern.MatchString(name) {
		if len(name) > 1 && name[0] == '0' {
			return nil, e.errorAt(n.Ctx, "variable name $%s is not a valid match variable name.", name)
		}
		index, _ := strconv.Atoi(name)
		return &value.Bound{Name: name, Value: e.matchVar(index), Match: true}, nil
	}

	if strings.Contains(name, "::") {
		v, err := e.lookupQualified(n)
		if err != nil {
			return nil, err
		}
		return &value.Bound{Name: name, Value: v}, nil
	}

	v, _ := e.scope.Lookup(name)
	return &value.Bound{Name: name, Value: v}, nil
}

// lookupQualified resolves $foo::bar through the class scope
// registry. The top scope answers for the empty qualification ($::x).
func (e *Evaluator) lookupQualified(n *ast.Variable) (value.Value, error) {
	name := strings.TrimPrefix(n.Name, "::")
	index := strings.LastIndex(name, "::")
	if index < 0 {
		v, _ := e.top.Lookup(name)
		return v, nil
	}
	className := name[:index]
	varName := name[index+2:]
	scope, ok := e.classScopes[strings.ToLower(className)]
	if !ok {
		return nil, e.errorAt(n.Ctx, "cannot look up variable $%s: class '%s' has not been evaluated.", n.Name, className)
	}
	v, _ := scope.Lookup(varName)
	return v, nil
}

func (e *Evaluator) evaluateArray(n *ast.Array) (value.Value, error) {
	result := value.Array{}
	for i := range n.Elements {
		v, err := e.evaluate(&n.Elements[i])
		if err != nil {
			return nil, err
		}
		// Splat expressions unfold into the enclosing array.
		if n.Elements[i].Splat() {
			result = append(result, value.ToArray(value.Deref(v))...)
			continue
		}
		result = append(result, value.Deref(v))
	}
	return result, nil
}

func (e *Evaluator) evaluateHash(n *ast.Hash) (value.Value, error) {
	result := value.NewHash()
	for i := range n.Entries {
		key, err := e.evaluate(&n.Entries[i].Key)
		if err != nil {
			return nil, err
		}
		val, err := e.evaluate(&n.Entries[i].Value)
		if err != nil {
			return nil, err
		}
		result.Set(value.Deref(key), value.Deref(val))
	}
	return result, nil
}

func (e *Evaluator) evaluateUnary(n *ast.Unary) (value.Value, error) {
	operand, err := e.evaluatePostfix(&n.Operand)
	if err != nil {
		return nil, err
	}
	v := value.Deref(operand)
	switch n.Op {
	case ast.UnaryNegate:
		switch t := v.(type) {
		case value.Integer:
			return value.Integer(-t), nil
		case value.Double:
			return value.Double(-t), nil
		}
		return nil, e.errorAt(n.Ctx, "expected Numeric for unary negation but found %s.", value.TypeOf(v))
	case ast.UnaryNot:
		return value.Boolean(!value.Truthy(v)), nil
	case ast.UnarySplat:
		// Splatting is handled by the contexts that accept it; the
		// bare value passes through.
		return value.ToArray(v), nil
	}
	return nil, e.errorAt(n.Ctx, "unsupported unary operator.")
}

func (e *Evaluator) evaluateTypeAlias(n *ast.TypeAlias) (value.Value, error) {
	// Type aliases bind the alias name in the top scope's type table;
	// the value model treats them as their aliased type.
	v, err := e.evaluate(&n.Value)
	if err != nil {
		return nil, err
	}
	e.top.Bind("type:"+n.Name, value.Deref(v))
	return value.Undef{}, nil
}

// render appends EPP output; the driver collects it after template
// evaluation.
func (e *Evaluator) render(text string) {
	e.rendered.WriteString(text)
}

// Rendered returns the accumulated EPP output.
func (e *Evaluator) Rendered() string {
	return e.rendered.String()
}

// displayString renders a value for interpolation and logging:
// strings are bare, undef is empty, everything else uses its display
// form.
func displayString(v value.Value) string {
	switch t := v.(type) {
	case value.String:
		return string(t)
	case value.Undef:
		return ""
	case nil:
		return ""
	}
	return v.String()
}
