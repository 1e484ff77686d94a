package object

import (
	"testing"

	"kuroko/pkg/value"
)

func TestReprScalars(t *testing.T) {
	tests := []struct {
		v    value.Value
		want string
	}{
		{value.None(), "None"},
		{value.Bool(true), "True"},
		{value.Bool(false), "False"},
		{value.Int(42), "42"},
		{value.Float(1.5), "1.5"},
	}
	for _, tt := range tests {
		if got := Repr(tt.v); got != tt.want {
			t.Errorf("Repr(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestReprStringIsQuoted(t *testing.T) {
	v := value.Obj(NewString("hi"))
	if got := Repr(v); got != `"hi"` {
		t.Errorf("Repr(string) = %q, want %q", got, `"hi"`)
	}
}

func TestStrStringIsUnquoted(t *testing.T) {
	v := value.Obj(NewString("hi"))
	if got := Str(v); got != "hi" {
		t.Errorf("Str(string) = %q, want %q", got, "hi")
	}
}

func TestStrFallsBackToReprForNonStrings(t *testing.T) {
	if got := Str(value.Int(5)); got != "5" {
		t.Errorf("Str(int) = %q, want %q", got, "5")
	}
}

func TestReprList(t *testing.T) {
	v := value.Obj(NewList([]value.Value{value.Int(1), value.Int(2)}))
	if got := Repr(v); got != "[1, 2]" {
		t.Errorf("Repr(list) = %q, want %q", got, "[1, 2]")
	}
}

func TestReprTupleSingleElementHasTrailingComma(t *testing.T) {
	v := value.Obj(NewTuple([]value.Value{value.Int(1)}))
	if got := Repr(v); got != "(1,)" {
		t.Errorf("Repr(1-tuple) = %q, want %q", got, "(1,)")
	}
}

func TestReprDict(t *testing.T) {
	d := NewDict()
	d.Set(value.Obj(NewString("a")), value.Int(1))
	if got := Repr(value.Obj(d)); got != `{"a": 1}` {
		t.Errorf("Repr(dict) = %q, want %q", got, `{"a": 1}`)
	}
}

func TestReprClassAndInstance(t *testing.T) {
	c := NewClass("Foo", nil)
	if got := Repr(value.Obj(c)); got != "<class Foo>" {
		t.Errorf("Repr(class) = %q, want %q", got, "<class Foo>")
	}
	inst := NewInstance(c)
	if got := Repr(value.Obj(inst)); got != "<Foo instance>" {
		t.Errorf("Repr(instance) = %q, want %q", got, "<Foo instance>")
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		v    value.Value
		want string
	}{
		{value.None(), "NoneType"},
		{value.Bool(true), "bool"},
		{value.Int(1), "int"},
		{value.Float(1.0), "float"},
		{value.Obj(NewString("x")), "str"},
		{value.Obj(NewList(nil)), "list"},
	}
	for _, tt := range tests {
		if got := TypeName(tt.v); got != tt.want {
			t.Errorf("TypeName(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestTypeNameOfInstanceIsItsClass(t *testing.T) {
	c := NewClass("Point", nil)
	inst := NewInstance(c)
	if got := TypeName(value.Obj(inst)); got != "Point" {
		t.Errorf("TypeName(instance) = %q, want %q", got, "Point")
	}
}
