package policy

import (
	"encoding/json"
	"testing"
)

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null equals null", Null(), Null(), true},
		{"null vs string", Null(), String(""), false},
		{"equal strings", String("a"), String("a"), true},
		{"different strings", String("a"), String("b"), false},
		{"equal numbers", Number(1.5), Number(1.5), true},
		{"different numbers", Number(1), Number(2), false},
		{"number vs string never equal", Number(1), String("1"), false},
		{"equal bools", Bool(true), Bool(true), true},
		{"different bools", Bool(true), Bool(false), false},
		{"equal lists", List(String("a"), Number(1)), List(String("a"), Number(1)), true},
		{"different list lengths", List(String("a")), List(String("a"), String("b")), false},
		{"different list elements", List(String("a")), List(String("b")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueFromAny(t *testing.T) {
	v, err := ValueFromAny([]any{"a", 2, true, nil})
	if err != nil {
		t.Fatalf("ValueFromAny() error = %v", err)
	}
	list, ok := v.AsList()
	if !ok || len(list) != 4 {
		t.Fatalf("expected 4-element list, got %#v", v)
	}
	if s, ok := list[0].AsString(); !ok || s != "a" {
		t.Errorf("element 0 = %#v, want string a", list[0])
	}
	if n, ok := list[1].AsNumber(); !ok || n != 2 {
		t.Errorf("element 1 = %#v, want number 2", list[1])
	}
	if b, ok := list[2].AsBool(); !ok || !b {
		t.Errorf("element 2 = %#v, want bool true", list[2])
	}
	if !list[3].IsNull() {
		t.Errorf("element 3 = %#v, want null", list[3])
	}

	if _, err := ValueFromAny(map[string]any{"nested": 1}); err == nil {
		t.Error("expected error for map value")
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	ctx := Context{
		"role":    String("admin"),
		"score":   Number(15),
		"active":  Bool(true),
		"regions": List(String("eu"), String("us")),
		"note":    Null(),
	}

	data, err := json.Marshal(ctx)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Context
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	for k, want := range ctx {
		if !decoded[k].Equal(want) {
			t.Errorf("field %q = %#v, want %#v", k, decoded[k], want)
		}
	}
}
