// Package metadata provides a typed representation of the JSON-like metadata
// attached to documentation chunks and conversation turns.
//
// Values form a discriminated tree of strings, numbers, booleans, lists and
// maps. Filters over metadata use containment semantics: a filter map matches
// a metadata map when every filter key is present and its value matches, with
// nested maps compared by containment and everything else by equality. An
// empty filter matches any metadata.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ErrUnsupportedValue indicates a JSON value that has no typed representation.
var ErrUnsupportedValue = errors.New("unsupported metadata value")

// Kind identifies the concrete type held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindList
	KindMap
)

// String returns the kind name for logging and error messages.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a single metadata value. The zero value is the empty string.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
	m    Map
}

// Map is a metadata mapping of string keys to Values.
type Map map[string]Value

// String creates a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number creates a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool creates a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List creates a list Value.
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// Nested creates a map Value from m.
func Nested(m Map) Value { return Value{kind: KindMap, m: m} }

// Strings creates a list Value from plain strings.
func Strings(ss ...string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = String(s)
	}
	return List(vs...)
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// AsString returns the string payload; ok is false for non-string kinds.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber returns the numeric payload; ok is false for non-number kinds.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean payload; ok is false for non-bool kinds.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsList returns the list payload; ok is false for non-list kinds.
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

// AsMap returns the map payload; ok is false for non-map kinds.
func (v Value) AsMap() (Map, bool) { return v.m, v.kind == KindMap }

// Equal reports deep equality of two values, including kind.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, mv := range v.m {
			ov, ok := o.m[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// matches reports whether v satisfies the filter value f. Maps match by
// containment, all other kinds by equality.
func (v Value) matches(f Value) bool {
	if f.kind == KindMap && v.kind == KindMap {
		return v.m.Contains(f.m)
	}
	return v.Equal(f)
}

// Contains reports whether m is a superset of filter: every filter key must
// be present with a matching value. A nil or empty filter matches any map,
// including a nil one.
func (m Map) Contains(filter Map) bool {
	for k, fv := range filter {
		mv, ok := m[k]
		if !ok || !mv.matches(fv) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the map. Cloning nil returns nil.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v.clone()
	}
	return out
}

func (v Value) clone() Value {
	switch v.kind {
	case KindList:
		list := make([]Value, len(v.list))
		for i := range v.list {
			list[i] = v.list[i].clone()
		}
		return Value{kind: KindList, list: list}
	case KindMap:
		return Value{kind: KindMap, m: v.m.Clone()}
	default:
		return v
	}
}

// Keys returns the map's keys in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes the value as plain JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrUnsupportedValue, v.kind)
	}
}

// UnmarshalJSON decodes any scalar, array or object JSON value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	val, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// FromAny converts a decoded JSON value (string, bool, float64, json.Number,
// []interface{} or map[string]interface{}) into a typed Value. JSON null has
// no typed representation and returns ErrUnsupportedValue; callers decoding
// maps should drop null entries instead (see MapFromAny).
func FromAny(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a number", ErrUnsupportedValue, t.String())
		}
		return Number(f), nil
	case []interface{}:
		list := make([]Value, 0, len(t))
		for _, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			list = append(list, v)
		}
		return List(list...), nil
	case map[string]interface{}:
		m, err := MapFromAny(t)
		if err != nil {
			return Value{}, err
		}
		return Nested(m), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

// MapFromAny converts a decoded JSON object into a Map. Entries whose value
// is null are dropped rather than rejected, matching how loosely produced
// upstream metadata omits unknown fields.
func MapFromAny(raw map[string]interface{}) (Map, error) {
	m := make(Map, len(raw))
	for k, item := range raw {
		if item == nil {
			continue
		}
		v, err := FromAny(item)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		m[k] = v
	}
	return m, nil
}

// ParseMap decodes a JSON object into a Map. Empty input yields an empty map.
func ParseMap(data []byte) (Map, error) {
	if len(data) == 0 {
		return Map{}, nil
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	return MapFromAny(raw)
}

// EncodeMap encodes a Map as a JSON object. A nil map encodes as {}.
func EncodeMap(m Map) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scalar renders scalar values as strings, used when projecting metadata into
// stores that only hold string payloads. Non-scalar kinds report ok=false.
func (v Value) Scalar() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64), true
	case KindBool:
		return strconv.FormatBool(v.b), true
	default:
		return "", false
	}
}
