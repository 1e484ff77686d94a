package value

import "testing"

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"none", None(), false},
		{"zero int", Int(0), false},
		{"nonzero int", Int(7), true},
		{"zero float", Float(0), false},
		{"nonzero float", Float(0.5), true},
		{"true", Bool(true), true},
		{"false", Bool(false), false},
		{"not implemented", NotImplemented(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Truthy(); got != tt.want {
				t.Errorf("Truthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEqualAcrossNumericKinds(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{Int(2), Float(2.0), true},
		{Int(2), Bool(true), false},
		{Int(1), Bool(true), true},
		{Int(0), Bool(false), true},
		{Int(3), Int(4), false},
		{None(), None(), true},
		{None(), Int(0), false},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestHashMatchesEqualForNumerics(t *testing.T) {
	a, b := Int(5), Float(5.0)
	if !a.Equal(b) {
		t.Fatalf("precondition failed: expected %v == %v", a, b)
	}
	if a.Hash() != b.Hash() {
		t.Errorf("hash(%v) = %d, hash(%v) = %d; equal values must hash equal", a, a.Hash(), b, b.Hash())
	}
}

func TestHashIntegralFloatMatchesInt(t *testing.T) {
	if Int(42).Hash() != Float(42.0).Hash() {
		t.Errorf("an integral float must hash the same as its integer value")
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{KindNone, "none"},
		{KindBool, "bool"},
		{KindInt, "int"},
		{KindFloat, "float"},
		{KindObject, "object"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}
