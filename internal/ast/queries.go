// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package ast

// Productive reports whether evaluating the expression has an effect
// that cannot be discarded: a binding, a declaration, or an edge.
// Unproductive expressions may only appear last in a block.
func (e *Expression) Productive() bool {
	for i := range e.Binary {
		if e.Binary[i].Op == OpAssign || e.Binary[i].Op.IsEdge() {
			return true
		}
	}
	return e.Postfix.Productive()
}

// Productive reports whether the postfix expression is productive: a
// productive primary, or any method call in the chain.
func (p *PostfixExpression) Productive() bool {
	for _, op := range p.Operations {
		if _, ok := op.(*MethodCall); ok {
			return true
		}
	}
	return primaryProductive(p.Primary)
}

func primaryProductive(primary PrimaryExpression) bool {
	switch n := primary.(type) {
	case *ResourceExpression, *ResourceOverride, *ResourceDefaults,
		*ClassDefinition, *DefinedTypeDefinition, *NodeDefinition,
		*Collector, *FunctionDefinition, *TypeAlias:
		return true
	case *If, *Unless, *Case:
		return true
	case *FunctionCall:
		return true
	case *RenderString, *RenderExpression, *RenderBlock:
		return true
	case *Nested:
		return n.Inner.Productive()
	case *Unary:
		return n.Operand.Productive()
	}
	return false
}

// Splat reports whether the expression is a bare unary * with no
// postfix chain or binary operations.
func (e *Expression) Splat() bool {
	if len(e.Binary) > 0 || len(e.Postfix.Operations) > 0 {
		return false
	}
	unary, ok := e.Postfix.Primary.(*Unary)
	return ok && unary.Op == UnarySplat
}

// Default reports whether the expression is the default literal,
// unwrapped through nested expressions.
func (e *Expression) Default() bool {
	if len(e.Binary) > 0 || len(e.Postfix.Operations) > 0 {
		return false
	}
	return primaryDefault(e.Postfix.Primary)
}

func primaryDefault(primary PrimaryExpression) bool {
	switch n := primary.(type) {
	case *Default:
		return true
	case *Nested:
		return n.Inner.Default()
	}
	return false
}
