// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package evaluator

import (
	"fmt"
	"strings"

	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/catalog"
	"github.com/minervacm/minerva/internal/value"
)

// climb evaluates a flat binary operation list with precedence
// climbing. In skip mode operands are consumed without evaluation so
// short-circuiting has no side effects.
func (e *Evaluator) climb(lhs value.Value, ops []ast.BinaryOperation, pos *int, minPrec int, skip bool) (value.Value, error) {
	for *pos < len(ops) && ops[*pos].Op.Precedence() >= minPrec {
		op := &ops[*pos]
		*pos++

		skipRHS := skip
		if !skip && (op.Op == ast.OpAnd || op.Op == ast.OpOr) {
			truthy := value.Truthy(value.Deref(lhs))
			if (op.Op == ast.OpAnd && !truthy) || (op.Op == ast.OpOr && truthy) {
				skipRHS = true
			}
		}

		var rhs value.Value
		var err error
		if skipRHS {
			rhs = value.Undef{}
		} else {
			rhs, err = e.evaluatePostfix(&op.Operand)
			if err != nil {
				return nil, err
			}
		}

		// Fold in any following operators that bind tighter; for the
		// right-associative assignment, equal precedence also folds.
		for *pos < len(ops) {
			next := ops[*pos].Op
			if next.Precedence() > op.Op.Precedence() ||
				(next.RightAssociative() && next.Precedence() == op.Op.Precedence()) {
				nextMin := op.Op.Precedence() + 1
				if next.RightAssociative() {
					nextMin = op.Op.Precedence()
				}
				rhs, err = e.climb(rhs, ops, pos, nextMin, skipRHS)
				if err != nil {
					return nil, err
				}
				continue
			}
			break
		}

		if skipRHS {
			if !skip {
				// Short-circuited: the result is the deciding
				// truthiness.
				lhs = value.Boolean(value.Truthy(value.Deref(lhs)))
			}
			continue
		}

		lhs, err = e.applyBinary(op, lhs, rhs)
		if err != nil {
			return nil, err
		}
	}
	return lhs, nil
}

func (e *Evaluator) applyBinary(op *ast.BinaryOperation, lhs, rhs value.Value) (value.Value, error) {
	if op.Op == ast.OpAssign {
		return e.assign(op, lhs, rhs)
	}
	if op.Op.IsEdge() {
		return e.applyEdge(op, value.Deref(lhs), value.Deref(rhs))
	}

	left := value.Deref(lhs)
	right := value.Deref(rhs)

	switch op.Op {
	case ast.OpAnd, ast.OpOr:
		return value.Boolean(value.Truthy(right)), nil
	case ast.OpEqual:
		return value.Boolean(value.Equals(left, right)), nil
	case ast.OpNotEqual:
		return value.Boolean(!value.Equals(left, right)), nil
	case ast.OpLess, ast.OpLessEqual, ast.OpGreater, ast.OpGreaterEqual:
		result, ok := value.Compare(left, right)
		if !ok {
			return nil, e.binaryError(op, "cannot compare %s with %s.", left, right)
		}
		switch op.Op {
		case ast.OpLess:
			return value.Boolean(result < 0), nil
		case ast.OpLessEqual:
			return value.Boolean(result <= 0), nil
		case ast.OpGreater:
			return value.Boolean(result > 0), nil
		default:
			return value.Boolean(result >= 0), nil
		}
	case ast.OpPlus:
		return e.arithmeticPlus(op, left, right)
	case ast.OpMinus, ast.OpMultiply, ast.OpDivide, ast.OpModulo:
		return e.arithmetic(op, left, right)
	case ast.OpLeftShift:
		if array, ok := left.(value.Array); ok {
			return append(append(value.Array{}, array...), right), nil
		}
		return e.shift(op, left, right, true)
	case ast.OpRightShift:
		return e.shift(op, left, right, false)
	case ast.OpMatch, ast.OpNotMatch:
		return e.match(op, left, right)
	case ast.OpIn:
		return e.in(op, left, right)
	}
	return nil, e.binaryError(op, "unsupported operator '%s'.", op.Op)
}

func (e *Evaluator) binaryError(op *ast.BinaryOperation, format string, a ...any) *Error {
	for i, arg := range a {
		if v, ok := arg.(value.Value); ok {
			if _, isType := v.(*value.Type); !isType {
				a[i] = value.TypeOf(v)
			}
		}
	}
	return &Error{
		Path:    treePath(op.Operand.Primary),
		Pos:     op.Pos,
		Message: fmt.Sprintf(format, a...),
	}
}

// assign implements '=': the left side must be an unassigned local
// variable; the bound value is the expression result.
func (e *Evaluator) assign(op *ast.BinaryOperation, lhs, rhs value.Value) (value.Value, error) {
	bound, ok := lhs.(*value.Bound)
	if !ok {
		return nil, e.binaryError(op, "cannot assign: the left operand is not a variable.")
	}
	if bound.Match {
		return nil, e.binaryError(op, "cannot assign to match variable $%s.", bound.Name)
	}
	if strings.Contains(bound.Name, "::") {
		return nil, e.binaryError(op, "cannot assign to qualified variable $%s.", bound.Name)
	}
	if e.scope.Local(bound.Name) {
		return nil, e.binaryError(op, "cannot assign to $%s: the variable was already assigned in this scope.", bound.Name)
	}
	result := value.Deref(rhs)
	e.scope.Bind(bound.Name, result)
	return result, nil
}

// applyEdge implements the relationship operators. Both operands must
// resolve to resource references; the right operand is the result so
// chains extend from it.
func (e *Evaluator) applyEdge(op *ast.BinaryOperation, lhs, rhs value.Value) (value.Value, error) {
	sources, err := e.resourceRefs(op, lhs)
	if err != nil {
		return nil, err
	}
	targets, err := e.resourceRefs(op, rhs)
	if err != nil {
		return nil, err
	}

	path := treePath(op.Operand.Primary)
	for _, source := range sources {
		for _, target := range targets {
			var label catalog.Relationship
			src, dst := source, target
			switch op.Op {
			case ast.OpInEdge: // a -> b: a before b
				label = catalog.RelationshipBefore
			case ast.OpInEdgeSub: // a ~> b: b subscribes to a
				label = catalog.RelationshipSubscribe
				src, dst = target, source
			case ast.OpOutEdge: // a <- b: b before a
				label = catalog.RelationshipBefore
				src, dst = target, source
			case ast.OpOutEdgeSub: // a <~ b: a subscribes to b
				label = catalog.RelationshipSubscribe
			}
			e.cat.AddPendingRelationship(label, src, dst, path, op.Pos)
		}
	}
	return rhs, nil
}

// resourceRefs flattens an edge operand into Type[title] reference
// strings.
func (e *Evaluator) resourceRefs(op *ast.BinaryOperation, v value.Value) ([]string, error) {
	switch t := v.(type) {
	case value.Array:
		var refs []string
		for _, element := range t {
			sub, err := e.resourceRefs(op, element)
			if err != nil {
				return nil, err
			}
			refs = append(refs, sub...)
		}
		return refs, nil
	case *value.Type:
		if reference, ok := value.IsResourceReference(t); ok {
			if reference.Kind == value.KindClass {
				return []string{"Class[" + strings.ToLower(reference.Title) + "]"}, nil
			}
			return []string{catalog.NormalizeType(reference.ResourceType) + "[" + reference.Title + "]"}, nil
		}
	}
	return nil, e.binaryError(op, "expected a resource reference for relationship operator '%s' but found %s.", op.Op, v)
}

func (e *Evaluator) arithmeticPlus(op *ast.BinaryOperation, left, right value.Value) (value.Value, error) {
	switch l := left.(type) {
	case value.Array:
		if r, ok := right.(value.Array); ok {
			return append(append(value.Array{}, l...), r...), nil
		}
		return nil, e.binaryError(op, "expected Array for right operand of '+' but found %s.", right)
	case *value.Hash:
		if r, ok := right.(*value.Hash); ok {
			return l.Merge(r), nil
		}
		return nil, e.binaryError(op, "expected Hash for right operand of '+' but found %s.", right)
	}
	return e.arithmetic(op, left, right)
}

func (e *Evaluator) arithmetic(op *ast.BinaryOperation, left, right value.Value) (value.Value, error) {
	li, lIsInt := left.(value.Integer)
	ld, lIsDouble := left.(value.Double)
	ri, rIsInt := right.(value.Integer)
	rd, rIsDouble := right.(value.Double)
	if (!lIsInt && !lIsDouble) || (!rIsInt && !rIsDouble) {
		return nil, e.binaryError(op, "expected Numeric operands for '%s' but found %s and %s.", op.Op, left, right)
	}

	if lIsInt && rIsInt {
		a, b := int64(li), int64(ri)
		switch op.Op {
		case ast.OpPlus:
			return value.Integer(a + b), nil
		case ast.OpMinus:
			return value.Integer(a - b), nil
		case ast.OpMultiply:
			return value.Integer(a * b), nil
		case ast.OpDivide:
			if b == 0 {
				return nil, e.binaryError(op, "cannot divide by zero.")
			}
			return value.Integer(a / b), nil
		case ast.OpModulo:
			if b == 0 {
				return nil, e.binaryError(op, "cannot divide by zero.")
			}
			return value.Integer(a % b), nil
		}
	}

	if op.Op == ast.OpModulo {
		return nil, e.binaryError(op, "expected Integer operands for '%%' but found %s and %s.", left, right)
	}

	a := float64(ld)
	if lIsInt {
		a = float64(li)
	}
	b := float64(rd)
	if rIsInt {
		b = float64(ri)
	}
	switch op.Op {
	case ast.OpPlus:
		return value.Double(a + b), nil
	case ast.OpMinus:
		return value.Double(a - b), nil
	case ast.OpMultiply:
		return value.Double(a * b), nil
	case ast.OpDivide:
		if b == 0 {
			return nil, e.binaryError(op, "cannot divide by zero.")
		}
		return value.Double(a / b), nil
	}
	return nil, e.binaryError(op, "unsupported operator '%s'.", op.Op)
}

func (e *Evaluator) shift(op *ast.BinaryOperation, left, right value.Value, isLeft bool) (value.Value, error) {
	li, lok := left.(value.Integer)
	ri, rok := right.(value.Integer)
	if !lok || !rok {
		return nil, e.binaryError(op, "expected Integer operands for '%s' but found %s and %s.", op.Op, left, right)
	}
	if ri < 0 {
		isLeft = !isLeft
		ri = -ri
	}
	if isLeft {
		return value.Integer(int64(li) << uint64(ri)), nil
	}
	return value.Integer(int64(li) >> uint64(ri)), nil
}

// match implements =~ and !~ between a string and a regex, Regexp
// type, or Pattern type. A successful positive match installs its
// capture groups into the current match frame.
func (e *Evaluator) match(op *ast.BinaryOperation, left, right value.Value) (value.Value, error) {
	subject, ok := left.(value.String)
	if !ok {
		return nil, e.binaryError(op, "expected String for left operand of '%s' but found %s.", op.Op, left)
	}

	var regexes []*value.Regex
	switch r := right.(type) {
	case *value.Regex:
		regexes = []*value.Regex{r}
	case *value.Type:
		switch r.Kind {
		case value.KindRegexp:
			compiled, err := value.NewRegex(r.Pattern)
			if err != nil {
				return nil, e.binaryError(op, "invalid regular expression: %s", err)
			}
			regexes = []*value.Regex{compiled}
		case value.KindPattern:
			regexes = r.Patterns
		default:
			return nil, e.binaryError(op, "expected Regexp or Pattern for right operand of '%s' but found %s.", op.Op, right)
		}
	default:
		return nil, e.binaryError(op, "expected Regexp for right operand of '%s' but found %s.", op.Op, right)
	}

	matched := false
	for _, r := range regexes {
		if groups := r.Compiled.FindStringSubmatch(string(subject)); groups != nil {
			matched = true
			if op.Op == ast.OpMatch {
				e.setMatches(groups)
			}
			break
		}
	}
	if op.Op == ast.OpNotMatch {
		return value.Boolean(!matched), nil
	}
	return value.Boolean(matched), nil
}

// in implements value membership: substring for strings, element
// search for arrays, key search for hashes, and regex find when the
// left operand is a regex.
func (e *Evaluator) in(op *ast.BinaryOperation, left, right value.Value) (value.Value, error) {
	switch container := right.(type) {
	case value.String:
		switch needle := left.(type) {
		case value.String:
			return value.Boolean(strings.Contains(
				strings.ToLower(string(container)), strings.ToLower(string(needle)))), nil
		case *value.Regex:
			return value.Boolean(needle.Compiled.MatchString(string(container))), nil
		}
		return value.Boolean(false), nil
	case value.Array:
		for _, element := range container {
			if needle, ok := left.(*value.Regex); ok {
				if s, isString := element.(value.String); isString && needle.Compiled.MatchString(string(s)) {
					return value.Boolean(true), nil
				}
				continue
			}
			if value.Equals(left, element) {
				return value.Boolean(true), nil
			}
		}
		return value.Boolean(false), nil
	case *value.Hash:
		for _, entry := range container.Entries() {
			if value.Equals(left, entry.Key) {
				return value.Boolean(true), nil
			}
		}
		return value.Boolean(false), nil
	}
	return value.Boolean(false), nil
}

