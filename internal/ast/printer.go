// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/minervacm/minerva/internal/lexer"
)

// The String methods print nodes in canonical surface syntax: bodies
// are joined with "; " inside single-line braces, string literals
// keep their raw source text, and numbers print in decimal.

func printBody(sb *strings.Builder, body []Expression) {
	if len(body) == 0 {
		sb.WriteString("{ }")
		return
	}
	sb.WriteString("{ ")
	for i := range body {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(body[i].String())
	}
	sb.WriteString(" }")
}

func printList[T fmt.Stringer](sb *strings.Builder, items []T, sep string) {
	for i, item := range items {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(item.String())
	}
}

func (n *Undef) String() string   { return "undef" }
func (n *Default) String() string { return "default" }

func (n *Boolean) String() string {
	if n.Value {
		return "true"
	}
	return "false"
}

func (n *Integer) String() string { return strconv.FormatInt(n.Value, 10) }
func (n *Float) String() string   { return strconv.FormatFloat(n.Value, 'g', -1, 64) }

func (n *String) String() string {
	if n.Interpolated || n.Quote == lexer.QuoteDouble {
		return `"` + n.Value + `"`
	}
	return "'" + n.Value + "'"
}

func (n *Regex) String() string    { return "/" + n.Pattern + "/" }
func (n *Variable) String() string { return "$" + n.Name }
func (n *Name) String() string     { return n.Value }
func (n *BareWord) String() string { return n.Value }
func (n *TypeRef) String() string  { return n.Name }

func (n *Array) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := range n.Elements {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n.Elements[i].String())
	}
	sb.WriteByte(']')
	return sb.String()
}

func (p HashPair) String() string {
	return p.Key.String() + " => " + p.Value.String()
}

func (n *Hash) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	printList(&sb, n.Entries, ", ")
	sb.WriteByte('}')
	return sb.String()
}

func (n *Elsif) String() string {
	var sb strings.Builder
	sb.WriteString("elsif ")
	sb.WriteString(n.Conditional.String())
	sb.WriteByte(' ')
	printBody(&sb, n.Body)
	return sb.String()
}

func (n *Else) String() string {
	var sb strings.Builder
	sb.WriteString("else ")
	printBody(&sb, n.Body)
	return sb.String()
}

func (n *If) String() string {
	var sb strings.Builder
	sb.WriteString("if ")
	sb.WriteString(n.Conditional.String())
	sb.WriteByte(' ')
	printBody(&sb, n.Body)
	for i := range n.Elsifs {
		sb.WriteByte(' ')
		sb.WriteString(n.Elsifs[i].String())
	}
	if n.Else != nil {
		sb.WriteByte(' ')
		sb.WriteString(n.Else.String())
	}
	return sb.String()
}

func (n *Unless) String() string {
	var sb strings.Builder
	sb.WriteString("unless ")
	sb.WriteString(n.Conditional.String())
	sb.WriteByte(' ')
	printBody(&sb, n.Body)
	if n.Else != nil {
		sb.WriteByte(' ')
		sb.WriteString(n.Else.String())
	}
	return sb.String()
}

func (n *Case) String() string {
	var sb strings.Builder
	sb.WriteString("case ")
	sb.WriteString(n.Scrutinee.String())
	sb.WriteString(" { ")
	for i := range n.Propositions {
		if i > 0 {
			sb.WriteByte(' ')
		}
		prop := &n.Propositions[i]
		for j := range prop.Options {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(prop.Options[j].String())
		}
		sb.WriteString(": ")
		printBody(&sb, prop.Body)
	}
	sb.WriteString(" }")
	return sb.String()
}

func (n *FunctionCall) String() string {
	var sb strings.Builder
	sb.WriteString(n.Name)
	sb.WriteByte('(')
	for i := range n.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n.Args[i].String())
	}
	sb.WriteByte(')')
	if n.Lambda != nil {
		sb.WriteByte(' ')
		sb.WriteString(n.Lambda.String())
	}
	return sb.String()
}

func (n *Lambda) String() string {
	var sb strings.Builder
	sb.WriteByte('|')
	printList(&sb, n.Parameters, ", ")
	sb.WriteString("| ")
	printBody(&sb, n.Body)
	return sb.String()
}

func (p Parameter) String() string {
	var sb strings.Builder
	if p.Type != nil {
		sb.WriteString(p.Type.String())
		sb.WriteByte(' ')
	}
	if p.Captures {
		sb.WriteByte('*')
	}
	sb.WriteByte('$')
	sb.WriteString(p.Name)
	if p.Default != nil {
		sb.WriteString(" = ")
		sb.WriteString(p.Default.String())
	}
	return sb.String()
}

func (op AttributeOperation) String() string {
	return op.Name + " " + op.Op.String() + " " + op.Value.String()
}

func (b ResourceBody) String() string {
	var sb strings.Builder
	sb.WriteString(b.Title.String())
	sb.WriteString(": ")
	printList(&sb, b.Operations, ", ")
	return sb.String()
}

func (n *ResourceExpression) String() string {
	var sb strings.Builder
	switch n.Status {
	case ResourceVirtualized:
		sb.WriteString("@")
	case ResourceExported:
		sb.WriteString("@@")
	}
	sb.WriteString(n.Type)
	sb.WriteString(" { ")
	printList(&sb, n.Bodies, "; ")
	sb.WriteString(" }")
	return sb.String()
}

func (n *ResourceOverride) String() string {
	var sb strings.Builder
	sb.WriteString(n.Reference.String())
	sb.WriteString(" { ")
	printList(&sb, n.Operations, ", ")
	sb.WriteString(" }")
	return sb.String()
}

func (n *ResourceDefaults) String() string {
	var sb strings.Builder
	sb.WriteString(n.Type)
	sb.WriteString(" { ")
	printList(&sb, n.Operations, ", ")
	sb.WriteString(" }")
	return sb.String()
}

func (n *ClassDefinition) String() string {
	var sb strings.Builder
	sb.WriteString("class ")
	sb.WriteString(n.Name)
	if len(n.Parameters) > 0 {
		sb.WriteString(" (")
		printList(&sb, n.Parameters, ", ")
		sb.WriteString(")")
	}
	if n.Parent != "" {
		sb.WriteString(" inherits ")
		sb.WriteString(n.Parent)
	}
	sb.WriteByte(' ')
	printBody(&sb, n.Body)
	return sb.String()
}

func (n *DefinedTypeDefinition) String() string {
	var sb strings.Builder
	sb.WriteString("define ")
	sb.WriteString(n.Name)
	if len(n.Parameters) > 0 {
		sb.WriteString(" (")
		printList(&sb, n.Parameters, ", ")
		sb.WriteString(")")
	}
	sb.WriteByte(' ')
	printBody(&sb, n.Body)
	return sb.String()
}

func (h Hostname) String() string {
	switch {
	case h.Default:
		return "default"
	case h.Regex:
		return "/" + h.Value + "/"
	}
	return h.Value
}

func (n *NodeDefinition) String() string {
	var sb strings.Builder
	sb.WriteString("node ")
	printList(&sb, n.Names, ", ")
	sb.WriteByte(' ')
	printBody(&sb, n.Body)
	return sb.String()
}

func (n *Collector) String() string {
	var sb strings.Builder
	sb.WriteString(n.Type)
	if n.Exported {
		sb.WriteString(" <<| ")
	} else {
		sb.WriteString(" <| ")
	}
	if n.Query != nil {
		sb.WriteString(n.Query.String())
		sb.WriteByte(' ')
	}
	if n.Exported {
		sb.WriteString("|>>")
	} else {
		sb.WriteString("|>")
	}
	return sb.String()
}

func (n *FunctionDefinition) String() string {
	var sb strings.Builder
	sb.WriteString("function ")
	sb.WriteString(n.Name)
	sb.WriteString("(")
	printList(&sb, n.Parameters, ", ")
	sb.WriteString(") ")
	printBody(&sb, n.Body)
	return sb.String()
}

func (n *TypeAlias) String() string {
	return "type " + n.Name + " = " + n.Value.String()
}

func (n *Unary) String() string {
	return n.Op.String() + n.Operand.String()
}

func (n *Nested) String() string {
	return "(" + n.Inner.String() + ")"
}

func (n *RenderString) String() string {
	return n.Value
}

func (n *RenderExpression) String() string {
	return "<%= " + n.Expr.String() + " %>"
}

func (n *RenderBlock) String() string {
	var sb strings.Builder
	sb.WriteString("<% ")
	for i := range n.Body {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(n.Body[i].String())
	}
	sb.WriteString(" %>")
	return sb.String()
}

func (c SelectorCase) String() string {
	return c.Condition.String() + " => " + c.Result.String()
}

func (n *Selector) String() string {
	var sb strings.Builder
	sb.WriteString("? { ")
	printList(&sb, n.Cases, ", ")
	sb.WriteString(" }")
	return sb.String()
}

func (n *Access) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := range n.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n.Args[i].String())
	}
	sb.WriteByte(']')
	return sb.String()
}

func (n *MethodCall) String() string {
	var sb strings.Builder
	sb.WriteByte('.')
	sb.WriteString(n.Name)
	sb.WriteByte('(')
	for i := range n.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n.Args[i].String())
	}
	sb.WriteByte(')')
	if n.Lambda != nil {
		sb.WriteByte(' ')
		sb.WriteString(n.Lambda.String())
	}
	return sb.String()
}

func (p *PostfixExpression) String() string {
	var sb strings.Builder
	sb.WriteString(p.Primary.String())
	for _, op := range p.Operations {
		if _, ok := op.(*Selector); ok {
			sb.WriteByte(' ')
		}
		sb.WriteString(op.String())
	}
	return sb.String()
}

func (e *Expression) String() string {
	var sb strings.Builder
	sb.WriteString(e.Postfix.String())
	for i := range e.Binary {
		sb.WriteByte(' ')
		sb.WriteString(e.Binary[i].Op.String())
		sb.WriteByte(' ')
		sb.WriteString(e.Binary[i].Operand.String())
	}
	return sb.String()
}

// String prints the whole tree, one statement per line.
func (t *SyntaxTree) String() string {
	var sb strings.Builder
	if len(t.Parameters) > 0 {
		sb.WriteByte('|')
		printList(&sb, t.Parameters, ", ")
		sb.WriteString("|\n")
	}
	for i := range t.Statements {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(t.Statements[i].String())
	}
	return sb.String()
}
