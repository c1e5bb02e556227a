// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Kind identifies which variant a [Value] holds.
type Kind uint8

const (
	// KindNull is the absent value. JSON null and YAML ~ decode to it.
	KindNull Kind = iota

	// KindScalar holds a string, bool or number.
	KindScalar

	// KindSequence holds an ordered list of values.
	KindSequence

	// KindMapping holds string-keyed values. Keys are unique.
	KindMapping
)

// String returns the lowercase name of the kind.
func (kind Kind) String() string {
	switch kind {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return fmt.Sprintf("kind(%d)", kind)
	}
}

// Value is an immutable node in a configuration tree. The zero Value
// is null. Operations that change a tree return a new Value and never
// modify their receiver or arguments, so subtrees may be shared freely
// between trees.
type Value struct {
	kind   Kind
	scalar any
	items  []Value
	fields map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Scalar wraps a string, bool or number. Passing anything else is a
// programming error; use [FromAny] for untrusted input.
func Scalar(scalar any) Value {
	if scalar == nil {
		return Value{}
	}
	return Value{kind: KindScalar, scalar: scalar}
}

// Sequence returns a sequence holding items in order.
func Sequence(items ...Value) Value {
	copied := make([]Value, len(items))
	copy(copied, items)
	return Value{kind: KindSequence, items: copied}
}

// Mapping returns a mapping holding fields. The map is copied.
func Mapping(fields map[string]Value) Value {
	copied := make(map[string]Value, len(fields))
	for key, child := range fields {
		copied[key] = child
	}
	return Value{kind: KindMapping, fields: copied}
}

// Empty returns a mapping with no keys.
func Empty() Value {
	return Value{kind: KindMapping, fields: map[string]Value{}}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsMapping reports whether v is a mapping.
func (v Value) IsMapping() bool { return v.kind == KindMapping }

// Len returns the number of items in a sequence or keys in a mapping,
// and zero for anything else.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.items)
	case KindMapping:
		return len(v.fields)
	}
	return 0
}

// Raw returns the scalar held by v, or nil if v is not a scalar.
func (v Value) Raw() any {
	if v.kind != KindScalar {
		return nil
	}
	return v.scalar
}

// Text returns the string held by v. ok is false unless v is a
// string scalar.
func (v Value) Text() (text string, ok bool) {
	text, ok = v.scalar.(string)
	return text, ok && v.kind == KindScalar
}

// Items returns a copy of the elements of a sequence.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	copied := make([]Value, len(v.items))
	copy(copied, v.items)
	return copied
}

// Keys returns the keys of a mapping in sorted order.
func (v Value) Keys() []string {
	if v.kind != KindMapping {
		return nil
	}
	keys := make([]string, 0, len(v.fields))
	for key := range v.fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the child stored under key in a mapping.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Value{}, false
	}
	child, ok := v.fields[key]
	return child, ok
}

// Lookup follows a path of mapping keys from v.
func (v Value) Lookup(path ...string) (Value, bool) {
	current := v
	for _, key := range path {
		child, ok := current.Get(key)
		if !ok {
			return Value{}, false
		}
		current = child
	}
	return current, true
}

// With returns a copy of v with key set to child. A v that is not a
// mapping is replaced by a mapping holding only key.
func (v Value) With(key string, child Value) Value {
	fields := make(map[string]Value, len(v.fields)+1)
	if v.kind == KindMapping {
		for existing, value := range v.fields {
			fields[existing] = value
		}
	}
	fields[key] = child
	return Value{kind: KindMapping, fields: fields}
}

// Interface converts v to plain Go values: map[string]any, []any,
// scalars and nil. Every call builds fresh maps and slices.
func (v Value) Interface() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindSequence:
		items := make([]any, len(v.items))
		for index, item := range v.items {
			items[index] = item.Interface()
		}
		return items
	case KindMapping:
		fields := make(map[string]any, len(v.fields))
		for key, child := range v.fields {
			fields[key] = child.Interface()
		}
		return fields
	}
	return nil
}

// Map is Interface for mappings. It returns an empty map for any other
// kind so callers can range over the result unconditionally.
func (v Value) Map() map[string]any {
	if v.kind != KindMapping {
		return map[string]any{}
	}
	return v.Interface().(map[string]any)
}

// MarshalJSON encodes v as the equivalent JSON document. Mapping keys
// are emitted in sorted order by encoding/json.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes any JSON document into v. Integral numbers
// become int64 so they render without an exponent.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// UnmarshalYAML decodes any YAML node into v.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// FromAny builds a Value from the output of a JSON, YAML or CBOR
// decoder. Maps must have string keys (map[any]any is accepted when
// every key is a string). The input is never retained.
func FromAny(raw any) (Value, error) {
	switch typed := raw.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return typed, nil
	case json.Number:
		return Value{kind: KindScalar, scalar: number(typed)}, nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return Value{kind: KindScalar, scalar: typed}, nil
	case time.Time:
		return Value{kind: KindScalar, scalar: typed.UTC().Format(time.RFC3339Nano)}, nil
	case map[string]any:
		fields := make(map[string]Value, len(typed))
		for key, child := range typed {
			converted, err := FromAny(child)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", key, err)
			}
			fields[key] = converted
		}
		return Value{kind: KindMapping, fields: fields}, nil
	case map[any]any:
		fields := make(map[string]Value, len(typed))
		for rawKey, child := range typed {
			key, ok := rawKey.(string)
			if !ok {
				return Value{}, fmt.Errorf("mapping key %v has type %T, want string", rawKey, rawKey)
			}
			converted, err := FromAny(child)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", key, err)
			}
			fields[key] = converted
		}
		return Value{kind: KindMapping, fields: fields}, nil
	case []any:
		items := make([]Value, len(typed))
		for index, child := range typed {
			converted, err := FromAny(child)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", index, err)
			}
			items[index] = converted
		}
		return Value{kind: KindSequence, items: items}, nil
	}
	return fromReflect(reflect.ValueOf(raw))
}

// number converts a decoded JSON number to int64 when it is integral
// and in range, and to float64 otherwise.
func number(raw json.Number) any {
	if integer, err := raw.Int64(); err == nil {
		return integer
	}
	if float, err := raw.Float64(); err == nil {
		return float
	}
	return raw.String()
}

// fromReflect handles typed maps and slices such as map[string]string
// or [][]string that the type switch in FromAny does not name.
func fromReflect(value reflect.Value) (Value, error) {
	switch value.Kind() {
	case reflect.Pointer, reflect.Interface:
		if value.IsNil() {
			return Value{}, nil
		}
		return FromAny(value.Elem().Interface())
	case reflect.Map:
		if value.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("mapping key type %s is not a string", value.Type().Key())
		}
		fields := make(map[string]Value, value.Len())
		iterator := value.MapRange()
		for iterator.Next() {
			key := iterator.Key().String()
			converted, err := FromAny(iterator.Value().Interface())
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", key, err)
			}
			fields[key] = converted
		}
		return Value{kind: KindMapping, fields: fields}, nil
	case reflect.Slice, reflect.Array:
		items := make([]Value, value.Len())
		for index := range value.Len() {
			converted, err := FromAny(value.Index(index).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", index, err)
			}
			items[index] = converted
		}
		return Value{kind: KindSequence, items: items}, nil
	}
	return Value{}, fmt.Errorf("unsupported value type %s", value.Type())
}

// MustFromAny is FromAny for literals in tests and static tables. It
// panics on unsupported input.
func MustFromAny(raw any) Value {
	value, err := FromAny(raw)
	if err != nil {
		panic("tree: " + err.Error())
	}
	return value
}
