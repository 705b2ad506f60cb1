// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package value

import (
	"fmt"
	"math"
	"strings"
)

// AccessError reports an invalid access expression argument. ArgIndex
// is -1 when the failure is not tied to one argument.
type AccessError struct {
	ArgIndex int
	Message  string
}

func (e *AccessError) Error() string {
	return e.Message
}

func accessErrorf(arg int, format string, a ...any) *AccessError {
	return &AccessError{ArgIndex: arg, Message: fmt.Sprintf(format, a...)}
}

// Access implements the [] expression for every target kind in the
// value model.
func Access(target Value, args []Value) (Value, error) {
	switch t := target.(type) {
	case String:
		return accessString(t, args)
	case Array:
		return accessArray(t, args)
	case *Hash:
		return accessHash(t, args)
	case *Type:
		return accessType(t, args)
	}
	return nil, accessErrorf(-1, "access expression is not supported for %s.", TypeOf(target))
}

func wantInteger(args []Value, i int) (int64, error) {
	n, ok := args[i].(Integer)
	if !ok {
		return 0, accessErrorf(i, "expected Integer for argument %d but found %s.", i+1, TypeOf(args[i]))
	}
	return int64(n), nil
}

// accessString implements s[i] and s[i, n]: a negative index counts
// from the end, a negative count is an inclusive end index, and
// out-of-range accesses produce an empty string.
func accessString(s String, args []Value) (Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, accessErrorf(-1, "expected 1 or 2 arguments for String access but found %d.", len(args))
	}
	index, err := wantInteger(args, 0)
	if err != nil {
		return nil, err
	}
	count := int64(1)
	if len(args) == 2 {
		count, err = wantInteger(args, 1)
		if err != nil {
			return nil, err
		}
	}
	begin, end := sliceRange(int64(len(s)), index, count)
	if begin >= end {
		return String(""), nil
	}
	return s[begin:end], nil
}

// sliceRange resolves an (index, count) pair against a length using
// the shared negative index rules, returning a clamped [begin, end).
func sliceRange(length, index, count int64) (int64, int64) {
	if index < 0 {
		index += length
	}
	var end int64
	if count < 0 {
		// Negative count is an inclusive end index.
		end = count + length + 1
	} else {
		end = index + count
	}
	if index < 0 {
		index = 0
	}
	if end > length {
		end = length
	}
	return index, end
}

func accessArray(a Array, args []Value) (Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, accessErrorf(-1, "expected 1 or 2 arguments for Array access but found %d.", len(args))
	}
	index, err := wantInteger(args, 0)
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		if index < 0 {
			index += int64(len(a))
		}
		if index < 0 || index >= int64(len(a)) {
			return Undef{}, nil
		}
		return a[index], nil
	}
	count, err := wantInteger(args, 1)
	if err != nil {
		return nil, err
	}
	begin, end := sliceRange(int64(len(a)), index, count)
	if begin >= end {
		return Array{}, nil
	}
	result := make(Array, end-begin)
	copy(result, a[begin:end])
	return result, nil
}

// accessHash implements key lookup: one argument returns the value or
// undef; multiple arguments return the found values in argument
// order, skipping missing keys.
func accessHash(h *Hash, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, accessErrorf(-1, "expected at least 1 argument for Hash access but found 0.")
	}
	if len(args) == 1 {
		if v, ok := h.Get(args[0]); ok {
			return v, nil
		}
		return Undef{}, nil
	}
	result := Array{}
	for _, key := range args {
		if v, ok := h.Get(key); ok {
			result = append(result, v)
		}
	}
	return result, nil
}

func accessType(t *Type, args []Value) (Value, error) {
	switch t.Kind {
	case KindInteger:
		return accessIntegerType(args)
	case KindFloat:
		return accessFloatType(args)
	case KindString:
		return accessStringType(args)
	case KindRegexp:
		return accessRegexpType(args)
	case KindEnum:
		return accessEnumType(args)
	case KindPattern:
		return accessPatternType(args)
	case KindArray:
		return accessArrayType(args)
	case KindHash:
		return accessHashType(args)
	case KindTuple:
		return accessTupleType(args)
	case KindStruct:
		return accessStructType(args)
	case KindVariant:
		return accessVariantType(args)
	case KindOptional, KindType:
		return accessUnaryType(t.Kind, args)
	case KindResource:
		return accessResourceType(t, args)
	case KindClass:
		return accessClassType(args)
	}
	return nil, accessErrorf(-1, "type %s does not support access expressions.", t)
}

// rangeEndpoint interprets an Integer[...] endpoint: an integer, or
// default selecting the type's range minimum or maximum.
func rangeEndpoint(args []Value, i int, unbounded int64) (int64, error) {
	switch v := args[i].(type) {
	case Integer:
		return int64(v), nil
	case Default:
		return unbounded, nil
	}
	return 0, accessErrorf(i, "expected Integer or default for argument %d but found %s.", i+1, TypeOf(args[i]))
}

func accessIntegerType(args []Value) (Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, accessErrorf(-1, "expected 1 or 2 arguments for Integer[] but found %d.", len(args))
	}
	min, err := rangeEndpoint(args, 0, IntUnboundedMin)
	if err != nil {
		return nil, err
	}
	max := int64(IntUnboundedMax)
	if len(args) == 2 {
		max, err = rangeEndpoint(args, 1, IntUnboundedMax)
		if err != nil {
			return nil, err
		}
	}
	if min > max {
		return nil, accessErrorf(0, "Integer[] range minimum %d exceeds maximum %d.", min, max)
	}
	return &Type{Kind: KindInteger, IntMin: min, IntMax: max}, nil
}

func floatEndpoint(args []Value, i int, unbounded float64) (float64, error) {
	switch v := args[i].(type) {
	case Integer:
		return float64(v), nil
	case Double:
		return float64(v), nil
	case Default:
		return unbounded, nil
	}
	return 0, accessErrorf(i, "expected Numeric or default for argument %d but found %s.", i+1, TypeOf(args[i]))
}

func accessFloatType(args []Value) (Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, accessErrorf(-1, "expected 1 or 2 arguments for Float[] but found %d.", len(args))
	}
	min, err := floatEndpoint(args, 0, math.Inf(-1))
	if err != nil {
		return nil, err
	}
	max := math.Inf(1)
	if len(args) == 2 {
		max, err = floatEndpoint(args, 1, math.Inf(1))
		if err != nil {
			return nil, err
		}
	}
	if min > max {
		return nil, accessErrorf(0, "Float[] range minimum %g exceeds maximum %g.", min, max)
	}
	return &Type{Kind: KindFloat, FloatMin: min, FloatMax: max}, nil
}

func accessStringType(args []Value) (Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, accessErrorf(-1, "expected 1 or 2 arguments for String[] but found %d.", len(args))
	}
	min, err := rangeEndpoint(args, 0, IntUnboundedMin)
	if err != nil {
		return nil, err
	}
	max := int64(IntUnboundedMax)
	if len(args) == 2 {
		max, err = rangeEndpoint(args, 1, IntUnboundedMax)
		if err != nil {
			return nil, err
		}
	}
	return &Type{Kind: KindString, IntMin: min, IntMax: max}, nil
}

func accessRegexpType(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, accessErrorf(-1, "expected 1 argument for Regexp[] but found %d.", len(args))
	}
	switch v := args[0].(type) {
	case String:
		if _, err := NewRegex(string(v)); err != nil {
			return nil, accessErrorf(0, "invalid regular expression: %s", err)
		}
		return &Type{Kind: KindRegexp, Pattern: string(v)}, nil
	case *Regex:
		return &Type{Kind: KindRegexp, Pattern: v.Pattern}, nil
	}
	return nil, accessErrorf(0, "expected String or Regexp for argument 1 but found %s.", TypeOf(args[0]))
}

func accessEnumType(args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, accessErrorf(-1, "expected at least 1 argument for Enum[].")
	}
	members := make([]string, len(args))
	for i, arg := range args {
		s, ok := arg.(String)
		if !ok {
			return nil, accessErrorf(i, "expected String for argument %d but found %s.", i+1, TypeOf(arg))
		}
		members[i] = string(s)
	}
	return &Type{Kind: KindEnum, Strings: members}, nil
}

func accessPatternType(args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, accessErrorf(-1, "expected at least 1 argument for Pattern[].")
	}
	var patterns []*Regex
	for i, arg := range args {
		switch v := arg.(type) {
		case String:
			r, err := NewRegex(string(v))
			if err != nil {
				return nil, accessErrorf(i, "invalid regular expression: %s", err)
			}
			patterns = append(patterns, r)
		case *Regex:
			patterns = append(patterns, v)
		case *Type:
			switch v.Kind {
			case KindRegexp:
				r, err := NewRegex(v.Pattern)
				if err != nil {
					return nil, accessErrorf(i, "invalid regular expression: %s", err)
				}
				patterns = append(patterns, r)
			case KindPattern:
				patterns = append(patterns, v.Patterns...)
			default:
				return nil, accessErrorf(i, "expected String, Regexp, or Pattern for argument %d but found %s.", i+1, v)
			}
		default:
			return nil, accessErrorf(i, "expected String, Regexp, or Pattern for argument %d but found %s.", i+1, TypeOf(arg))
		}
	}
	return &Type{Kind: KindPattern, Patterns: patterns}, nil
}

// splitTypeRange separates leading type arguments from a trailing
// integer (or default) size range of at most two values.
func splitTypeRange(args []Value, maxTypes int) ([]*Type, []Value, error) {
	split := len(args)
	for split > 0 && split > len(args)-2 {
		switch args[split-1].(type) {
		case Integer, Default:
			split--
			continue
		}
		break
	}
	rangeArgs := args[split:]
	var types []*Type
	for i, arg := range args[:split] {
		t, ok := arg.(*Type)
		if !ok {
			return nil, nil, accessErrorf(i, "expected Type for argument %d but found %s.", i+1, TypeOf(arg))
		}
		types = append(types, t)
	}
	if maxTypes >= 0 && len(types) > maxTypes {
		return nil, nil, accessErrorf(maxTypes, "expected at most %d type arguments but found %d.", maxTypes, len(types))
	}
	return types, rangeArgs, nil
}

func sizeRange(t *Type, rangeArgs []Value, offset int) error {
	if len(rangeArgs) == 0 {
		return nil
	}
	t.Sized = true
	min, err := rangeEndpoint(rangeArgs, 0, IntUnboundedMin)
	if err != nil {
		return accessErrorf(offset, "%s", err.Error())
	}
	t.IntMin = min
	t.IntMax = IntUnboundedMax
	if len(rangeArgs) == 2 {
		max, err := rangeEndpoint(rangeArgs, 1, IntUnboundedMax)
		if err != nil {
			return accessErrorf(offset+1, "%s", err.Error())
		}
		t.IntMax = max
	}
	return nil
}

func accessArrayType(args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, accessErrorf(-1, "expected at least 1 argument for Array[].")
	}
	types, rangeArgs, err := splitTypeRange(args, 1)
	if err != nil {
		return nil, err
	}
	array := NewType(KindArray)
	array.Elements = types
	if err := sizeRange(array, rangeArgs, len(types)); err != nil {
		return nil, err
	}
	return array, nil
}

func accessHashType(args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, accessErrorf(-1, "expected at least 1 argument for Hash[].")
	}
	types, rangeArgs, err := splitTypeRange(args, 2)
	if err != nil {
		return nil, err
	}
	hash := NewType(KindHash)
	hash.Elements = types
	if err := sizeRange(hash, rangeArgs, len(types)); err != nil {
		return nil, err
	}
	return hash, nil
}

func accessTupleType(args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, accessErrorf(-1, "expected at least 1 argument for Tuple[].")
	}
	types, rangeArgs, err := splitTypeRange(args, -1)
	if err != nil {
		return nil, err
	}
	tuple := NewType(KindTuple)
	tuple.Elements = types
	if err := sizeRange(tuple, rangeArgs, len(types)); err != nil {
		return nil, err
	}
	return tuple, nil
}

func accessStructType(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, accessErrorf(-1, "expected 1 argument for Struct[] but found %d.", len(args))
	}
	hash, ok := args[0].(*Hash)
	if !ok {
		return nil, accessErrorf(0, "expected Hash for argument 1 but found %s.", TypeOf(args[0]))
	}
	var fields []StructField
	for _, entry := range hash.Entries() {
		key, ok := entry.Key.(String)
		if !ok {
			return nil, accessErrorf(0, "expected all Struct[] keys to be String but found %s.", TypeOf(entry.Key))
		}
		fieldType, ok := entry.Value.(*Type)
		if !ok {
			return nil, accessErrorf(0, "expected all Struct[] values to be Type but found %s.", TypeOf(entry.Value))
		}
		fields = append(fields, StructField{Key: string(key), Type: fieldType})
	}
	return &Type{Kind: KindStruct, Fields: fields}, nil
}

func accessVariantType(args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, accessErrorf(-1, "expected at least 1 argument for Variant[].")
	}
	types := make([]*Type, len(args))
	for i, arg := range args {
		t, ok := arg.(*Type)
		if !ok {
			return nil, accessErrorf(i, "expected Type for argument %d but found %s.", i+1, TypeOf(arg))
		}
		types[i] = t
	}
	return &Type{Kind: KindVariant, Elements: types}, nil
}

func accessUnaryType(kind TypeKind, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, accessErrorf(-1, "expected 1 argument for %s[] but found %d.", kindNames[kind], len(args))
	}
	t, ok := args[0].(*Type)
	if !ok {
		return nil, accessErrorf(0, "expected Type for argument 1 but found %s.", TypeOf(args[0]))
	}
	return &Type{Kind: kind, Elements: []*Type{t}}, nil
}

// accessResourceType implements Resource[...] access: a bare Resource
// takes the type name first; a typed Resource takes titles only.
// Multiple titles produce an array of references.
func accessResourceType(t *Type, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, accessErrorf(-1, "expected at least 1 argument for Resource[].")
	}
	typeName := t.ResourceType
	titleArgs := args
	if typeName == "" {
		switch v := args[0].(type) {
		case String:
			typeName = string(v)
		case *Type:
			if v.Kind != KindResource || v.ResourceType == "" {
				return nil, accessErrorf(0, "expected resource type name for argument 1 but found %s.", v)
			}
			typeName = v.ResourceType
		default:
			return nil, accessErrorf(0, "expected String or Resource type for argument 1 but found %s.", TypeOf(args[0]))
		}
		titleArgs = args[1:]
		if len(titleArgs) == 0 {
			return &Type{Kind: KindResource, ResourceType: typeName}, nil
		}
	}

	refs := make(Array, 0, len(titleArgs))
	for i, arg := range titleArgs {
		title, ok := arg.(String)
		if !ok {
			return nil, accessErrorf(len(args)-len(titleArgs)+i, "expected String resource title but found %s.", TypeOf(arg))
		}
		if strings.EqualFold(typeName, "class") {
			refs = append(refs, ClassReference(string(title)))
		} else {
			refs = append(refs, ResourceReference(typeName, string(title)))
		}
	}
	if len(refs) == 1 {
		return refs[0], nil
	}
	return refs, nil
}

func accessClassType(args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, accessErrorf(-1, "expected at least 1 argument for Class[].")
	}
	refs := make(Array, 0, len(args))
	for i, arg := range args {
		title, ok := arg.(String)
		if !ok {
			return nil, accessErrorf(i, "expected String class title but found %s.", TypeOf(arg))
		}
		refs = append(refs, ClassReference(string(title)))
	}
	if len(refs) == 1 {
		return refs[0], nil
	}
	return refs, nil
}
