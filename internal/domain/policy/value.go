package policy

import (
	"encoding/json"
	"fmt"
)

// ValueKind discriminates the fixed variant of context values.
type ValueKind int

const (
	// KindNull is the absent/null value.
	KindNull ValueKind = iota
	// KindString is a string value.
	KindString
	// KindNumber is a numeric value (stored as float64).
	KindNumber
	// KindBool is a boolean value.
	KindBool
	// KindList is an ordered list of values.
	KindList
)

// Value is a strongly typed context value with a fixed variant:
// string, number, bool, list, or null. Request contexts and condition
// right-hand sides are built from Values rather than untyped interfaces.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []Value
}

// Context is the request-supplied attribute map conditions evaluate
// against.
type Context map[string]Value

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List returns a list value.
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// Kind returns the variant of the value.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload and whether the value is a string.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber returns the numeric payload and whether the value is a number.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean payload and whether the value is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsList returns the list payload and whether the value is a list.
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

// Equal reports strict equality: same kind and same payload.
// Lists are compared element-wise.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value for logs and audit details.
func (v Value) GoString() string {
	return fmt.Sprintf("%v", v.Interface())
}

// Interface converts the value to its natural dynamic representation,
// for JSON encoding and display.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes the value as its natural JSON representation.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes any JSON scalar or array into the variant.
// Objects are rejected: context values are flat by design.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	val, err := ValueFromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// ValueFromAny converts a decoded YAML/JSON scalar or slice into a Value.
// Maps and unsupported types are rejected.
func ValueFromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case []any:
		list := make([]Value, 0, len(x))
		for _, e := range x {
			v, err := ValueFromAny(e)
			if err != nil {
				return Null(), err
			}
			list = append(list, v)
		}
		return List(list...), nil
	case []string:
		list := make([]Value, 0, len(x))
		for _, s := range x {
			list = append(list, String(s))
		}
		return List(list...), nil
	default:
		return Null(), fmt.Errorf("unsupported context value type %T", raw)
	}
}

// ContextFromAny converts a decoded map into a typed Context.
func ContextFromAny(raw map[string]any) (Context, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ctx := make(Context, len(raw))
	for k, e := range raw {
		v, err := ValueFromAny(e)
		if err != nil {
			return nil, fmt.Errorf("context field %q: %w", k, err)
		}
		ctx[k] = v
	}
	return ctx, nil
}
