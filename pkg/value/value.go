// Package value defines the closed type algebra used for fact values.
// Every fact resolves to one of the kinds below: a scalar (none, string,
// integer, double, boolean), an ordered array, or a map that preserves key
// insertion order so rendered output is deterministic.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant of a Value.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindInteger
	KindDouble
	KindBoolean
	KindArray
	KindMap
)

// String returns the kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is the closed variant for fact values. Values are not mutated once
// they have been handed to a collection; composite values own their children
// exclusively.
type Value interface {
	// Kind returns the variant tag.
	Kind() Kind

	// Equal reports deep structural equality with another value.
	Equal(other Value) bool

	// String returns the canonical textual rendering: strings quoted,
	// numbers and booleans in fixed form, arrays in declaration order and
	// maps in insertion order.
	String() string

	// Interface converts to a plain Go value for collaborators that do not
	// understand the algebra. Map insertion order is lost in the result.
	Interface() any

	sealed()
}

// None is the absence of a value inside a composite. It is distinct from an
// absent fact: a producer may legitimately yield an array holding nones.
type None struct{}

func (None) Kind() Kind     { return KindNone }
func (None) String() string { return "null" }
func (None) Interface() any { return nil }
func (None) sealed()        {}

func (None) Equal(other Value) bool {
	_, ok := other.(None)
	return ok
}

// String is a UTF-8 string value.
type String string

func (String) Kind() Kind       { return KindString }
func (s String) String() string { return strconv.Quote(string(s)) }
func (s String) Interface() any { return string(s) }
func (String) sealed()          {}

func (s String) Equal(other Value) bool {
	o, ok := other.(String)
	return ok && s == o
}

// Integer is a signed 64-bit integer value.
type Integer int64

func (Integer) Kind() Kind       { return KindInteger }
func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }
func (i Integer) Interface() any { return int64(i) }
func (Integer) sealed()          {}

func (i Integer) Equal(other Value) bool {
	o, ok := other.(Integer)
	return ok && i == o
}

// Double is a 64-bit floating point value.
type Double float64

func (Double) Kind() Kind       { return KindDouble }
func (d Double) Interface() any { return float64(d) }
func (Double) sealed()          {}

func (d Double) String() string {
	return strconv.FormatFloat(float64(d), 'g', -1, 64)
}

func (d Double) Equal(other Value) bool {
	o, ok := other.(Double)
	return ok && d == o
}

// Boolean is a true/false value.
type Boolean bool

func (Boolean) Kind() Kind       { return KindBoolean }
func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }
func (b Boolean) Interface() any { return bool(b) }
func (Boolean) sealed()          {}

func (b Boolean) Equal(other Value) bool {
	o, ok := other.(Boolean)
	return ok && b == o
}

// Array is an ordered sequence of values.
type Array struct {
	elems []Value
}

// NewArray creates an array from the given elements.
func NewArray(elems ...Value) *Array {
	a := &Array{}
	a.elems = append(a.elems, elems...)
	return a
}

// Append adds an element to the end of the array. Arrays are built
// incrementally by producers and must not be appended to after the array has
// been handed to a collection.
func (a *Array) Append(v Value) *Array {
	a.elems = append(a.elems, v)
	return a
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.elems) }

// At returns the element at index i.
func (a *Array) At(i int) Value { return a.elems[i] }

// Elements returns the backing slice. Callers must not modify it.
func (a *Array) Elements() []Value { return a.elems }

func (*Array) Kind() Kind { return KindArray }
func (*Array) sealed()    {}

func (a *Array) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range a.elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

func (a *Array) Interface() any {
	out := make([]any, len(a.elems))
	for i, e := range a.elems {
		out[i] = e.Interface()
	}
	return out
}

func (a *Array) Equal(other Value) bool {
	o, ok := other.(*Array)
	if !ok || len(a.elems) != len(o.elems) {
		return false
	}
	for i, e := range a.elems {
		if !e.Equal(o.elems[i]) {
			return false
		}
	}
	return true
}

// Map is a string-keyed map that preserves key insertion order. Replacing an
// existing key keeps its original position.
type Map struct {
	keys []string
	vals map[string]Value
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

// Put sets key to v, preserving the key's original insertion position if it
// already exists.
func (m *Map) Put(key string, v Value) *Map {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
	return m
}

// Get returns the value for key and whether it is present.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Len returns the number of keys.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order. Callers must not modify the
// returned slice.
func (m *Map) Keys() []string { return m.keys }

func (*Map) Kind() Kind { return KindMap }
func (*Map) sealed()    {}

func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Quote(k))
		sb.WriteString(" => ")
		sb.WriteString(m.vals[k].String())
	}
	sb.WriteByte('}')
	return sb.String()
}

func (m *Map) Interface() any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = m.vals[k].Interface()
	}
	return out
}

func (m *Map) Equal(other Value) bool {
	o, ok := other.(*Map)
	if !ok || len(m.keys) != len(o.keys) {
		return false
	}
	for i, k := range m.keys {
		if o.keys[i] != k {
			return false
		}
		if !m.vals[k].Equal(o.vals[k]) {
			return false
		}
	}
	return true
}

// FromInterface converts a plain Go value (as produced by YAML or JSON
// decoding) into the algebra. Map keys are sorted so seeded values render
// deterministically regardless of Go map iteration order.
func FromInterface(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return None{}, nil
	case bool:
		return Boolean(val), nil
	case int:
		return Integer(val), nil
	case int64:
		return Integer(val), nil
	case float64:
		return Double(val), nil
	case string:
		return String(val), nil
	case []any:
		arr := NewArray()
		for _, e := range val {
			ev, err := FromInterface(e)
			if err != nil {
				return nil, err
			}
			arr.Append(ev)
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			ev, err := FromInterface(val[k])
			if err != nil {
				return nil, err
			}
			m.Put(k, ev)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}
