package ui

import (
	"fmt"
	"sort"
)

type discriminant string // just here to pin the definition of the Value interface to this package

// Value is the type for property values.
type Value interface {
	discriminant() discriminant
	RawValue() any
	ValueType() string
}

type Bool bool

func (b Bool) discriminant() discriminant { return "viewregistry" }
func (b Bool) RawValue() any              { return bool(b) }
func (b Bool) ValueType() string          { return "Bool" }

type String string

func (s String) discriminant() discriminant { return "viewregistry" }
func (s String) RawValue() any              { return string(s) }
func (s String) ValueType() string          { return "String" }
func (s String) String() string             { return string(s) }

type Number float64

func (n Number) discriminant() discriminant { return "viewregistry" }
func (n Number) RawValue() any              { return float64(n) }
func (n Number) ValueType() string          { return "Number" }

type Object map[string]Value

func (o Object) discriminant() discriminant { return "viewregistry" }
func (o Object) ValueType() string          { return "Object" }

func (o Object) RawValue() any {
	raw := make(map[string]any, len(o))
	for k, v := range o {
		if v == nil {
			raw[k] = nil
			continue
		}
		raw[k] = v.RawValue()
	}
	return raw
}

func (o Object) Get(key string) (Value, bool) {
	v, ok := o[key]
	return v, ok
}

func (o Object) Set(key string, value Value) Object {
	o[key] = value
	return o
}

// Keys returns the object keys in lexical order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func NewObject() Object {
	return Object(make(map[string]Value))
}

type List []Value

func (l List) discriminant() discriminant { return "viewregistry" }
func (l List) ValueType() string          { return "List" }

func (l List) RawValue() any {
	raw := make([]any, 0, len(l))
	for _, v := range l {
		if v == nil {
			raw = append(raw, nil)
			continue
		}
		raw = append(raw, v.RawValue())
	}
	return raw
}

func NewList(val ...Value) List {
	if val != nil {
		return List(val)
	}
	return List(make([]Value, 0))
}

// ValueOf converts plain Go data (as produced by a YAML or JSON decoder) into
// a Value.
func ValueOf(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Number(t), nil
	case int64:
		return Number(t), nil
	case float32:
		return Number(t), nil
	case float64:
		return Number(t), nil
	case []any:
		l := make(List, 0, len(t))
		for _, item := range t {
			iv, err := ValueOf(item)
			if err != nil {
				return nil, err
			}
			l = append(l, iv)
		}
		return l, nil
	case map[string]any:
		o := NewObject()
		for k, item := range t {
			iv, err := ValueOf(item)
			if err != nil {
				return nil, err
			}
			o[k] = iv
		}
		return o, nil
	}
	return nil, fmt.Errorf("%w: unsupported value type %T", ErrInvalidArgument, v)
}

// Copy creates a deep-copy of a value.
func Copy(v Value) Value {
	switch t := v.(type) {
	case List:
		r := List(make([]Value, len(t), cap(t)))
		for i, v := range t {
			r[i] = Copy(v)
		}
		return r
	case Object:
		o := NewObject()
		for k, v := range t {
			o[k] = Copy(v)
		}
		return o
	}
	return v
}

// Equal reports whether two values are deeply equal. Two nil values are equal.
func Equal(v Value, w Value) bool {
	if v == nil || w == nil {
		return v == nil && w == nil
	}
	if v.ValueType() != w.ValueType() {
		return false
	}

	switch v.ValueType() {
	case "List":
		vl := v.(List)
		wl := w.(List)
		if len(vl) != len(wl) {
			return false
		}
		for i, item := range vl {
			if !Equal(item, wl[i]) {
				return false
			}
		}
		return true
	case "Object":
		vo := v.(Object)
		wo := w.(Object)
		if len(vo) != len(wo) {
			return false
		}
		for k, val := range vo {
			wal, ok := wo[k]
			if !ok {
				return false
			}
			if !Equal(val, wal) {
				return false
			}
		}
		return true
	}
	return v == w
}
