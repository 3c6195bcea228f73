// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package docval provides a serialization-neutral structured value type for
// document payloads. Deferred records encode payloads as docval values so
// they stay engine-agnostic and replayable across process versions.
package docval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindTime
	KindList
	KindMap
)

var kindNames = []string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindDouble: "double",
	KindString: "string",
	KindTime:   "time",
	KindList:   "list",
	KindMap:    "map"}

// timeTag is the field name marking a JSON object as an encoded timestamp.
// JSON has no native time type, so time values travel as single-field
// objects, in the style of MongoDB's extended JSON. The tag is reserved:
// a user map with this exact shape decodes as a time.
const timeTag = "$time"

func (k Kind) String() string {
	if int(k) >= len(kindNames) {
		return fmt.Sprintf("unknown(%d)", k)
	}
	return kindNames[k]
}

// Value is a tagged union over the scalar and composite shapes a document
// field can take. The zero value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	d    float64
	s    string
	ts   time.Time
	l    []Value
	m    Map
}

// Map is a set of named document fields.
type Map map[string]Value

func Null() Value {
	return Value{}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func Int(i int64) Value {
	return Value{kind: KindInt, i: i}
}

func Double(d float64) Value {
	return Value{kind: KindDouble, d: d}
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

func Time(t time.Time) Value {
	return Value{kind: KindTime, ts: t}
}

func List(items ...Value) Value {
	return Value{kind: KindList, l: items}
}

func Object(m Map) Value {
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Bool returns the boolean payload, or false if the value is not a bool.
func (v Value) Bool() bool {
	return v.b
}

// Int returns the integer payload, or 0 if the value is not an int.
func (v Value) Int() int64 {
	return v.i
}

// Double returns the floating-point payload, or 0 if the value is not a double.
func (v Value) Double() float64 {
	return v.d
}

// Str returns the string payload, or "" if the value is not a string.
func (v Value) Str() string {
	return v.s
}

// Time returns the timestamp payload, or the zero time if the value is not
// a time.
func (v Value) Time() time.Time {
	return v.ts
}

// Items returns the element slice of a list value, or nil.
func (v Value) Items() []Value {
	return v.l
}

// Fields returns the field map of a map value, or nil.
func (v Value) Fields() Map {
	return v.m
}

// Equal compares two values structurally.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindDouble:
		return v.d == o.d
	case KindString:
		return v.s == o.s
	case KindTime:
		return v.ts.Equal(o.ts)
	case KindList:
		if len(v.l) != len(o.l) {
			return false
		}
		for i := range v.l {
			if !v.l[i].Equal(o.l[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.m.Equal(o.m)
	}

	return false
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.l))
		for i, item := range v.l {
			items[i] = item.Clone()
		}
		return Value{kind: KindList, l: items}
	case KindMap:
		return Value{kind: KindMap, m: v.m.Clone()}
	default:
		return v
	}
}

// Interface converts the value to plain Go types, suitable for handing to an
// engine client that takes interface{} data.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindDouble:
		return v.d
	case KindString:
		return v.s
	case KindTime:
		return v.ts
	case KindList:
		items := make([]interface{}, len(v.l))
		for i, item := range v.l {
			items[i] = item.Interface()
		}
		return items
	case KindMap:
		return v.m.Interface()
	}

	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindTime:
		return json.Marshal(map[string]string{timeTag: v.ts.UTC().Format(time.RFC3339Nano)})
	case KindList:
		return json.Marshal(v.l)
	case KindMap:
		return json.Marshal(v.m)
	default:
		return json.Marshal(v.Interface())
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	parsed, err := FromInterface(raw)
	if err != nil {
		return err
	}

	*v = parsed
	return nil
}

// Equal compares two maps structurally.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}

	for k, v := range m {
		ov, exists := o[k]
		if !exists || !v.Equal(ov) {
			return false
		}
	}

	return true
}

// Clone returns a deep copy of the map.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}

	c := make(Map, len(m))
	for k, v := range m {
		c[k] = v.Clone()
	}

	return c
}

// Interface converts the map to a plain map[string]interface{}.
func (m Map) Interface() map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v.Interface()
	}

	return out
}

// FromInterface converts plain Go data into a Value. Numbers arriving as
// json.Number are kept integral when they carry no fractional part, so a
// record round-trip does not silently turn ints into doubles.
func FromInterface(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case Map:
		return Object(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float32:
		return Double(float64(t)), nil
	case float64:
		return Double(t), nil
	case string:
		return String(t), nil
	case time.Time:
		return Time(t), nil
	case json.Number:
		if !strings.ContainsAny(t.String(), ".eE") {
			i, err := t.Int64()
			if err == nil {
				return Int(i), nil
			}
		}
		d, err := t.Float64()
		if err != nil {
			return Null(), err
		}
		return Double(d), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromInterface(item)
			if err != nil {
				return Null(), err
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]interface{}:
		if s, tagged := t[timeTag].(string); tagged && len(t) == 1 {
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return Null(), fmt.Errorf("docval: bad timestamp %q: %v", s, err)
			}
			return Time(ts), nil
		}

		m, err := MapFromInterface(t)
		if err != nil {
			return Null(), err
		}
		return Object(m), nil
	}

	return Null(), fmt.Errorf("docval: cannot represent %T", raw)
}

// MapFromInterface converts a plain map[string]interface{} into a Map.
func MapFromInterface(raw map[string]interface{}) (Map, error) {
	m := make(Map, len(raw))
	for k, item := range raw {
		v, err := FromInterface(item)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}

	return m, nil
}
