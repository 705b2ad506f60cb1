// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package evaluator

import (
	"github.com/minervacm/minerva/internal/ast"
	"github.com/minervacm/minerva/internal/value"
)

// evaluateIf walks the conditionals in source order; the first
// truthy branch's body produces the value. A match scope keeps regex
// captures from escaping the expression.
func (e *Evaluator) evaluateIf(n *ast.If) (value.Value, error) {
	restore := e.pushMatchScope()
	defer restore()

	cond, err := e.evaluate(&n.Conditional)
	if err != nil {
		return nil, err
	}
	if value.Truthy(value.Deref(cond)) {
		return e.EvaluateBody(n.Body)
	}
	for i := range n.Elsifs {
		cond, err := e.evaluate(&n.Elsifs[i].Conditional)
		if err != nil {
			return nil, err
		}
		if value.Truthy(value.Deref(cond)) {
			return e.EvaluateBody(n.Elsifs[i].Body)
		}
	}
	if n.Else != nil {
		return e.EvaluateBody(n.Else.Body)
	}
	return value.Undef{}, nil
}

func (e *Evaluator) evaluateUnless(n *ast.Unless) (value.Value, error) {
	restore := e.pushMatchScope()
	defer restore()

	cond, err := e.evaluate(&n.Conditional)
	if err != nil {
		return nil, err
	}
	if !value.Truthy(value.Deref(cond)) {
		return e.EvaluateBody(n.Body)
	}
	if n.Else != nil {
		return e.EvaluateBody(n.Else.Body)
	}
	return value.Undef{}, nil
}

// evaluateCase evaluates the scrutinee once, then tests each
// proposition's options in source order. A default proposition is
// remembered and taken only when nothing else matches.
func (e *Evaluator) evaluateCase(n *ast.Case) (value.Value, error) {
	restore := e.pushMatchScope()
	defer restore()

	scrutinee, err := e.evaluate(&n.Scrutinee)
	if err != nil {
		return nil, err
	}
	subject := value.Deref(scrutinee)

	var defaultBody []ast.Expression
	haveDefault := false
	for i := range n.Propositions {
		prop := &n.Propositions[i]
		for j := range prop.Options {
			if prop.Options[j].Default() {
				if !haveDefault {
					defaultBody = prop.Body
					haveDefault = true
				}
				continue
			}
			matched, err := e.matchOption(subject, &prop.Options[j])
			if err != nil {
				return nil, err
			}
			if matched {
				return e.EvaluateBody(prop.Body)
			}
		}
	}
	if haveDefault {
		return e.EvaluateBody(defaultBody)
	}
	return value.Undef{}, nil
}

// matchOption applies the shared case/selector matching rules: a
// regex option matches a string scrutinee and installs its capture
// groups; everything else uses deep equality.
func (e *Evaluator) matchOption(subject value.Value, option *ast.Expression) (bool, error) {
	v, err := e.evaluate(option)
	if err != nil {
		return false, err
	}
	candidate := value.Deref(v)

	if r, ok := candidate.(*value.Regex); ok {
		s, isString := subject.(value.String)
		if !isString {
			return false, nil
		}
		groups := r.Compiled.FindStringSubmatch(string(s))
		if groups == nil {
			return false, nil
		}
		e.setMatches(groups)
		return true, nil
	}
	return value.Equals(subject, candidate), nil
}

// evaluateSelector applies the postfix ?{} operation: the same
// matching rules as case, but a missing match with no default is an
// error.
func (e *Evaluator) evaluateSelector(target value.Value, n *ast.Selector) (value.Value, error) {
	restore := e.pushMatchScope()
	defer restore()

	var defaultResult *ast.Expression
	for i := range n.Cases {
		selCase := &n.Cases[i]
		if selCase.Condition.Default() {
			if defaultResult == nil {
				defaultResult = &selCase.Result
			}
			continue
		}
		matched, err := e.matchOption(target, &selCase.Condition)
		if err != nil {
			return nil, err
		}
		if matched {
			v, err := e.evaluate(&selCase.Result)
			if err != nil {
				return nil, err
			}
			return value.Deref(v), nil
		}
	}
	if defaultResult != nil {
		v, err := e.evaluate(defaultResult)
		if err != nil {
			return nil, err
		}
		return value.Deref(v), nil
	}
	return nil, e.errorAt(n.Ctx, "no selector case matched the value %s and no default was given.", value.Deref(target))
}

// evaluateMethodCall dispatches a postfix method call: the target
// becomes the first argument of the named function.
func (e *Evaluator) evaluateMethodCall(target value.Value, n *ast.MethodCall) (value.Value, error) {
	args := make([]value.Value, 0, len(n.Args)+1)
	args = append(args, target)
	for i := range n.Args {
		v, err := e.evaluate(&n.Args[i])
		if err != nil {
			return nil, err
		}
		args = append(args, value.Deref(v))
	}
	return e.dispatch(n.Name, args, n.Lambda, n.Ctx)
}
