// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package value

// TypeOf returns the narrowest descriptor for a value: integers get
// an exact Integer[n, n] range, strings a String[k, k] length range,
// and collections carry the union of their element types.
func TypeOf(v Value) *Type {
	switch t := v.(type) {
	case Undef, nil:
		return NewType(KindUndef)
	case Default:
		return NewType(KindDefault)
	case Boolean:
		return NewType(KindBoolean)
	case Integer:
		return &Type{Kind: KindInteger, IntMin: int64(t), IntMax: int64(t)}
	case Double:
		return &Type{Kind: KindFloat, FloatMin: float64(t), FloatMax: float64(t)}
	case String:
		n := int64(len(t))
		return &Type{Kind: KindString, IntMin: n, IntMax: n}
	case *Regex:
		return &Type{Kind: KindRegexp, Pattern: t.Pattern}
	case Array:
		elem := unionType(elementTypes(t))
		array := NewType(KindArray)
		if elem != nil {
			array.Elements = []*Type{elem}
		}
		array.Sized = true
		array.IntMin = int64(len(t))
		array.IntMax = int64(len(t))
		return array
	case *Hash:
		var keys, values []*Type
		for _, entry := range t.Entries() {
			keys = append(keys, TypeOf(entry.Key))
			values = append(values, TypeOf(entry.Value))
		}
		hash := NewType(KindHash)
		key, val := unionType(keys), unionType(values)
		if key != nil && val != nil {
			hash.Elements = []*Type{key, val}
		}
		hash.Sized = true
		hash.IntMin = int64(t.Len())
		hash.IntMax = int64(t.Len())
		return hash
	case *Type:
		meta := NewType(KindType)
		meta.Elements = []*Type{t}
		return meta
	}
	return NewType(KindAny)
}

func elementTypes(values []Value) []*Type {
	out := make([]*Type, len(values))
	for i, v := range values {
		out[i] = TypeOf(v)
	}
	return out
}

// unionType collapses a list of descriptors: equal descriptors merge,
// differing ones become a Variant. Nil for an empty list.
func unionType(types []*Type) *Type {
	if len(types) == 0 {
		return nil
	}
	unique := []*Type{types[0]}
	for _, t := range types[1:] {
		seen := false
		for _, u := range unique {
			if u.String() == t.String() {
				seen = true
				break
			}
		}
		if !seen {
			unique = append(unique, t)
		}
	}
	if len(unique) == 1 {
		return unique[0]
	}
	return &Type{Kind: KindVariant, Elements: unique}
}
