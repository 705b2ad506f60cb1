// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package value

import (
	"math"
	"strconv"
	"strings"
)

// TypeKind discriminates the type descriptor family.
type TypeKind int

const (
	KindAny TypeKind = iota
	KindScalar
	KindData
	KindCollection
	KindNumeric
	KindInteger
	KindFloat
	KindString
	KindBoolean
	KindRegexp
	KindPattern
	KindEnum
	KindArray
	KindHash
	KindTuple
	KindStruct
	KindOptional
	KindVariant
	KindType
	KindCallable
	KindCatalogEntry
	KindClass
	KindResource
	KindUndef
	KindDefault
	KindRuntime
)

var kindNames = map[TypeKind]string{
	KindAny:          "Any",
	KindScalar:       "Scalar",
	KindData:         "Data",
	KindCollection:   "Collection",
	KindNumeric:      "Numeric",
	KindInteger:      "Integer",
	KindFloat:        "Float",
	KindString:       "String",
	KindBoolean:      "Boolean",
	KindRegexp:       "Regexp",
	KindPattern:      "Pattern",
	KindEnum:         "Enum",
	KindArray:        "Array",
	KindHash:         "Hash",
	KindTuple:        "Tuple",
	KindStruct:       "Struct",
	KindOptional:     "Optional",
	KindVariant:      "Variant",
	KindType:         "Type",
	KindCallable:     "Callable",
	KindCatalogEntry: "CatalogEntry",
	KindClass:        "Class",
	KindResource:     "Resource",
	KindUndef:        "Undef",
	KindDefault:      "Default",
	KindRuntime:      "Runtime",
}

// StructField is one key => type member of a Struct descriptor,
// preserving declaration order.
type StructField struct {
	Key  string
	Type *Type
}

// Type is a type descriptor value. Parameter fields are used
// according to Kind; unparameterized descriptors leave them zero.
type Type struct {
	Kind TypeKind

	// Integer, String length, and collection size ranges.
	IntMin, IntMax int64
	// Float range.
	FloatMin, FloatMax float64
	// Whether a size range was explicitly given (collections).
	Sized bool

	// Regexp pattern; empty means unparameterized.
	Pattern string

	// Pattern member regexes.
	Patterns []*Regex

	// Enum member strings.
	Strings []string

	// Element types: Array [elem], Hash [key, value], Tuple members,
	// Variant members, Optional/Type single parameter.
	Elements []*Type

	// Struct members in declaration order.
	Fields []StructField

	// Resource type name and title; Class title.
	ResourceType string
	Title        string

	// Runtime type name.
	RuntimeName string
}

func (*Type) isValue() {}

// Unbounded integer range endpoints.
const (
	IntUnboundedMin = math.MinInt64
	IntUnboundedMax = math.MaxInt64
)

// NewType creates an unparameterized descriptor of the given kind
// with its natural defaults.
func NewType(kind TypeKind) *Type {
	t := &Type{Kind: kind}
	switch kind {
	case KindInteger, KindString, KindArray, KindHash, KindTuple:
		t.IntMin, t.IntMax = IntUnboundedMin, IntUnboundedMax
	case KindFloat:
		t.FloatMin, t.FloatMax = math.Inf(-1), math.Inf(1)
	}
	return t
}

// TypeByName resolves a type reference name to a descriptor. Unknown
// names are treated as resource type references, e.g. File.
func TypeByName(name string) *Type {
	for kind, kindName := range kindNames {
		if kindName == name {
			return NewType(kind)
		}
	}
	return &Type{Kind: KindResource, ResourceType: name}
}

func (t *Type) String() string {
	var sb strings.Builder
	switch t.Kind {
	case KindInteger:
		sb.WriteString("Integer")
		writeIntRange(&sb, t.IntMin, t.IntMax)
	case KindFloat:
		sb.WriteString("Float")
		if !math.IsInf(t.FloatMin, -1) || !math.IsInf(t.FloatMax, 1) {
			sb.WriteString("[")
			sb.WriteString(strconv.FormatFloat(t.FloatMin, 'g', -1, 64))
			sb.WriteString(", ")
			sb.WriteString(strconv.FormatFloat(t.FloatMax, 'g', -1, 64))
			sb.WriteString("]")
		}
	case KindString:
		sb.WriteString("String")
		writeIntRange(&sb, t.IntMin, t.IntMax)
	case KindRegexp:
		sb.WriteString("Regexp")
		if t.Pattern != "" {
			sb.WriteString("[/")
			sb.WriteString(t.Pattern)
			sb.WriteString("/]")
		}
	case KindPattern:
		sb.WriteString("Pattern")
		if len(t.Patterns) > 0 {
			sb.WriteByte('[')
			for i, r := range t.Patterns {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(r.String())
			}
			sb.WriteByte(']')
		}
	case KindEnum:
		sb.WriteString("Enum")
		if len(t.Strings) > 0 {
			sb.WriteByte('[')
			for i, s := range t.Strings {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString("'" + s + "'")
			}
			sb.WriteByte(']')
		}
	case KindArray:
		sb.WriteString("Array")
		writeParams(&sb, t.Elements, t.Sized, t.IntMin, t.IntMax)
	case KindHash:
		sb.WriteString("Hash")
		writeParams(&sb, t.Elements, t.Sized, t.IntMin, t.IntMax)
	case KindTuple:
		sb.WriteString("Tuple")
		writeParams(&sb, t.Elements, t.Sized, t.IntMin, t.IntMax)
	case KindStruct:
		sb.WriteString("Struct")
		if len(t.Fields) > 0 {
			sb.WriteString("[{")
			for i, f := range t.Fields {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString("'" + f.Key + "' => ")
				sb.WriteString(f.Type.String())
			}
			sb.WriteString("}]")
		}
	case KindOptional, KindType:
		sb.WriteString(kindNames[t.Kind])
		if len(t.Elements) > 0 {
			sb.WriteByte('[')
			sb.WriteString(t.Elements[0].String())
			sb.WriteByte(']')
		}
	case KindVariant:
		sb.WriteString("Variant")
		if len(t.Elements) > 0 {
			sb.WriteByte('[')
			for i, e := range t.Elements {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(e.String())
			}
			sb.WriteByte(']')
		}
	case KindClass:
		sb.WriteString("Class")
		if t.Title != "" {
			sb.WriteString("[" + t.Title + "]")
		}
	case KindResource:
		if t.ResourceType == "" {
			sb.WriteString("Resource")
		} else {
			sb.WriteString(capitalizeType(t.ResourceType))
			if t.Title != "" {
				sb.WriteString("[" + t.Title + "]")
			}
		}
	case KindRuntime:
		sb.WriteString("Runtime")
		if t.RuntimeName != "" {
			sb.WriteString("['" + t.RuntimeName + "']")
		}
	default:
		sb.WriteString(kindNames[t.Kind])
	}
	return sb.String()
}

func writeIntRange(sb *strings.Builder, min, max int64) {
	if min == IntUnboundedMin && max == IntUnboundedMax {
		return
	}
	sb.WriteByte('[')
	if min == IntUnboundedMin {
		sb.WriteString("default")
	} else {
		sb.WriteString(strconv.FormatInt(min, 10))
	}
	sb.WriteString(", ")
	if max == IntUnboundedMax {
		sb.WriteString("default")
	} else {
		sb.WriteString(strconv.FormatInt(max, 10))
	}
	sb.WriteByte(']')
}

func writeParams(sb *strings.Builder, elements []*Type, sized bool, min, max int64) {
	if len(elements) == 0 && !sized {
		return
	}
	sb.WriteByte('[')
	for i, e := range elements {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.String())
	}
	if sized {
		if len(elements) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatInt(min, 10))
		if max != IntUnboundedMax {
			sb.WriteString(", ")
			sb.WriteString(strconv.FormatInt(max, 10))
		}
	}
	sb.WriteByte(']')
}

// capitalizeType normalizes a resource type name for display:
// file -> File, foo::bar -> Foo::Bar.
func capitalizeType(name string) string {
	segments := strings.Split(name, "::")
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		segments[i] = strings.ToUpper(segment[:1]) + segment[1:]
	}
	return strings.Join(segments, "::")
}

// ResourceReference creates a resource reference value, e.g.
// File['/etc/hosts'].
func ResourceReference(typeName, title string) *Type {
	return &Type{Kind: KindResource, ResourceType: typeName, Title: title}
}

// ClassReference creates a class reference value, e.g. Class[foo].
func ClassReference(title string) *Type {
	return &Type{Kind: KindClass, Title: title}
}

// IsResourceReference reports whether the value is a fully
// parameterized resource (or class) reference.
func IsResourceReference(v Value) (*Type, bool) {
	t, ok := v.(*Type)
	if !ok {
		return nil, false
	}
	switch {
	case t.Kind == KindResource && t.ResourceType != "" && t.Title != "":
		return t, true
	case t.Kind == KindClass && t.Title != "":
		return t, true
	}
	return nil, false
}
