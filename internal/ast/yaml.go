// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package ast

import (
	"gopkg.in/yaml.v3"
)

// DumpYAML serializes the tree for golden tests. Every node gets a
// stable "kind" discriminator and field set.
func DumpYAML(tree *SyntaxTree) (string, error) {
	doc := map[string]any{
		"kind": "syntax_tree",
		"path": tree.Path,
	}
	if len(tree.Parameters) > 0 {
		doc["parameters"] = dumpParameters(tree.Parameters)
	}
	doc["statements"] = dumpExpressions(tree.Statements)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func dumpExpressions(exprs []Expression) []any {
	out := make([]any, len(exprs))
	for i := range exprs {
		out[i] = dumpExpression(&exprs[i])
	}
	return out
}

func dumpExpression(e *Expression) any {
	if len(e.Binary) == 0 {
		return dumpPostfix(&e.Postfix)
	}
	ops := make([]any, len(e.Binary))
	for i := range e.Binary {
		ops[i] = map[string]any{
			"kind":     "binary_operation",
			"operator": e.Binary[i].Op.String(),
			"operand":  dumpPostfix(&e.Binary[i].Operand),
		}
	}
	return map[string]any{
		"kind":       "expression",
		"first":      dumpPostfix(&e.Postfix),
		"operations": ops,
	}
}

func dumpPostfix(p *PostfixExpression) any {
	if len(p.Operations) == 0 {
		return dumpPrimary(p.Primary)
	}
	ops := make([]any, len(p.Operations))
	for i, op := range p.Operations {
		ops[i] = dumpPostfixOperation(op)
	}
	return map[string]any{
		"kind":       "postfix_expression",
		"primary":    dumpPrimary(p.Primary),
		"operations": ops,
	}
}

func dumpPostfixOperation(op PostfixOperation) any {
	switch n := op.(type) {
	case *Selector:
		cases := make([]any, len(n.Cases))
		for i := range n.Cases {
			cases[i] = map[string]any{
				"condition": dumpExpression(&n.Cases[i].Condition),
				"result":    dumpExpression(&n.Cases[i].Result),
			}
		}
		return map[string]any{"kind": "selector", "cases": cases}
	case *Access:
		return map[string]any{"kind": "access", "arguments": dumpExpressions(n.Args)}
	case *MethodCall:
		out := map[string]any{
			"kind":      "method_call",
			"name":      n.Name,
			"arguments": dumpExpressions(n.Args),
		}
		if n.Lambda != nil {
			out["lambda"] = dumpLambda(n.Lambda)
		}
		return out
	}
	return nil
}

func dumpLambda(l *Lambda) any {
	return map[string]any{
		"kind":       "lambda",
		"parameters": dumpParameters(l.Parameters),
		"body":       dumpExpressions(l.Body),
	}
}

func dumpParameters(params []Parameter) []any {
	out := make([]any, len(params))
	for i := range params {
		p := map[string]any{
			"kind": "parameter",
			"name": params[i].Name,
		}
		if params[i].Type != nil {
			p["type"] = dumpExpression(params[i].Type)
		}
		if params[i].Captures {
			p["captures"] = true
		}
		if params[i].Default != nil {
			p["default"] = dumpExpression(params[i].Default)
		}
		out[i] = p
	}
	return out
}

func dumpAttributeOperations(ops []AttributeOperation) []any {
	out := make([]any, len(ops))
	for i := range ops {
		out[i] = map[string]any{
			"kind":     "attribute_operation",
			"name":     ops[i].Name,
			"operator": ops[i].Op.String(),
			"value":    dumpExpression(&ops[i].Value),
		}
	}
	return out
}

func dumpPrimary(primary PrimaryExpression) any {
	switch n := primary.(type) {
	case *Undef:
		return map[string]any{"kind": "undef"}
	case *Default:
		return map[string]any{"kind": "default"}
	case *Boolean:
		return map[string]any{"kind": "boolean", "value": n.Value}
	case *Integer:
		return map[string]any{"kind": "integer", "value": n.Value, "base": int(n.Base)}
	case *Float:
		return map[string]any{"kind": "float", "value": n.Value}
	case *String:
		out := map[string]any{"kind": "string", "value": n.Value}
		if n.Interpolated {
			out["interpolated"] = true
		}
		if n.Format != "" {
			out["format"] = n.Format
		}
		if n.Margin > 0 {
			out["margin"] = n.Margin
		}
		if n.RemoveBreak {
			out["remove_break"] = true
		}
		return out
	case *Regex:
		return map[string]any{"kind": "regex", "pattern": n.Pattern}
	case *Variable:
		return map[string]any{"kind": "variable", "name": n.Name}
	case *Name:
		return map[string]any{"kind": "name", "value": n.Value}
	case *BareWord:
		return map[string]any{"kind": "bare_word", "value": n.Value}
	case *TypeRef:
		return map[string]any{"kind": "type", "name": n.Name}
	case *Array:
		return map[string]any{"kind": "array", "elements": dumpExpressions(n.Elements)}
	case *Hash:
		entries := make([]any, len(n.Entries))
		for i := range n.Entries {
			entries[i] = map[string]any{
				"key":   dumpExpression(&n.Entries[i].Key),
				"value": dumpExpression(&n.Entries[i].Value),
			}
		}
		return map[string]any{"kind": "hash", "entries": entries}
	case *If:
		out := map[string]any{
			"kind":        "if",
			"conditional": dumpExpression(&n.Conditional),
			"body":        dumpExpressions(n.Body),
		}
		if len(n.Elsifs) > 0 {
			elsifs := make([]any, len(n.Elsifs))
			for i := range n.Elsifs {
				elsifs[i] = map[string]any{
					"conditional": dumpExpression(&n.Elsifs[i].Conditional),
					"body":        dumpExpressions(n.Elsifs[i].Body),
				}
			}
			out["elsifs"] = elsifs
		}
		if n.Else != nil {
			out["else"] = dumpExpressions(n.Else.Body)
		}
		return out
	case *Unless:
		out := map[string]any{
			"kind":        "unless",
			"conditional": dumpExpression(&n.Conditional),
			"body":        dumpExpressions(n.Body),
		}
		if n.Else != nil {
			out["else"] = dumpExpressions(n.Else.Body)
		}
		return out
	case *Case:
		props := make([]any, len(n.Propositions))
		for i := range n.Propositions {
			props[i] = map[string]any{
				"options": dumpExpressions(n.Propositions[i].Options),
				"body":    dumpExpressions(n.Propositions[i].Body),
			}
		}
		return map[string]any{
			"kind":         "case",
			"scrutinee":    dumpExpression(&n.Scrutinee),
			"propositions": props,
		}
	case *FunctionCall:
		out := map[string]any{
			"kind":      "function_call",
			"name":      n.Name,
			"arguments": dumpExpressions(n.Args),
		}
		if n.Lambda != nil {
			out["lambda"] = dumpLambda(n.Lambda)
		}
		return out
	case *ResourceExpression:
		bodies := make([]any, len(n.Bodies))
		for i := range n.Bodies {
			bodies[i] = map[string]any{
				"title":      dumpExpression(&n.Bodies[i].Title),
				"operations": dumpAttributeOperations(n.Bodies[i].Operations),
			}
		}
		return map[string]any{
			"kind":   "resource",
			"status": n.Status.String(),
			"type":   n.Type,
			"bodies": bodies,
		}
	case *ResourceOverride:
		return map[string]any{
			"kind":       "resource_override",
			"reference":  dumpPostfix(&n.Reference),
			"operations": dumpAttributeOperations(n.Operations),
		}
	case *ResourceDefaults:
		return map[string]any{
			"kind":       "resource_defaults",
			"type":       n.Type,
			"operations": dumpAttributeOperations(n.Operations),
		}
	case *ClassDefinition:
		out := map[string]any{
			"kind": "class",
			"name": n.Name,
			"body": dumpExpressions(n.Body),
		}
		if n.Parent != "" {
			out["parent"] = n.Parent
		}
		if len(n.Parameters) > 0 {
			out["parameters"] = dumpParameters(n.Parameters)
		}
		return out
	case *DefinedTypeDefinition:
		out := map[string]any{
			"kind": "defined_type",
			"name": n.Name,
			"body": dumpExpressions(n.Body),
		}
		if len(n.Parameters) > 0 {
			out["parameters"] = dumpParameters(n.Parameters)
		}
		return out
	case *NodeDefinition:
		names := make([]any, len(n.Names))
		for i := range n.Names {
			h := n.Names[i]
			switch {
			case h.Default:
				names[i] = map[string]any{"kind": "default"}
			case h.Regex:
				names[i] = map[string]any{"kind": "regex", "pattern": h.Value}
			default:
				names[i] = map[string]any{"kind": "name", "value": h.Value}
			}
		}
		return map[string]any{
			"kind":  "node",
			"names": names,
			"body":  dumpExpressions(n.Body),
		}
	case *Collector:
		out := map[string]any{
			"kind":     "collector",
			"type":     n.Type,
			"exported": n.Exported,
		}
		if n.Query != nil {
			out["query"] = dumpExpression(n.Query)
		}
		return out
	case *FunctionDefinition:
		return map[string]any{
			"kind":       "function",
			"name":       n.Name,
			"parameters": dumpParameters(n.Parameters),
			"body":       dumpExpressions(n.Body),
		}
	case *TypeAlias:
		return map[string]any{
			"kind":  "type_alias",
			"name":  n.Name,
			"value": dumpExpression(&n.Value),
		}
	case *Unary:
		return map[string]any{
			"kind":     "unary",
			"operator": n.Op.String(),
			"operand":  dumpPostfix(&n.Operand),
		}
	case *Nested:
		return map[string]any{"kind": "nested", "inner": dumpExpression(&n.Inner)}
	case *RenderString:
		return map[string]any{"kind": "render_string", "value": n.Value}
	case *RenderExpression:
		return map[string]any{"kind": "render_expression", "expression": dumpExpression(&n.Expr)}
	case *RenderBlock:
		return map[string]any{"kind": "render_block", "body": dumpExpressions(n.Body)}
	}
	return nil
}
