package object

import (
	"testing"

	"kuroko/pkg/value"
)

func TestStringEqualityIsByContent(t *testing.T) {
	a := NewString("hi")
	b := NewString("hi")
	if a == b {
		t.Fatalf("test setup: expected two distinct String pointers")
	}
	if !a.Equal(b) {
		t.Errorf("two Strings with equal content should be Equal")
	}
	if a.Hash() != b.Hash() {
		t.Errorf("two Strings with equal content should hash equal")
	}
	if NewString("hi").Equal(NewString("bye")) {
		t.Errorf("Strings with different content should not be Equal")
	}
}

func TestStringLenCountsRunes(t *testing.T) {
	if got := NewString("héllo").Len(); got != 5 {
		t.Errorf("Len() = %d, want 5 (rune count, not byte count)", got)
	}
}

func TestStringTruthy(t *testing.T) {
	if NewString("").Truthy() {
		t.Errorf("empty string should be falsy")
	}
	if !NewString("x").Truthy() {
		t.Errorf("non-empty string should be truthy")
	}
}

func TestListAppendGrowsItems(t *testing.T) {
	l := NewList(nil)
	l.Append(value.Int(1))
	l.Append(value.Int(2))
	if len(l.Items) != 2 || l.Items[0].AsInt() != 1 || l.Items[1].AsInt() != 2 {
		t.Errorf("Items after two Append calls = %v, want [1 2]", l.Items)
	}
}

func TestListTruthy(t *testing.T) {
	if NewList(nil).Truthy() {
		t.Errorf("empty list should be falsy")
	}
	if !NewList([]value.Value{value.Int(1)}).Truthy() {
		t.Errorf("non-empty list should be truthy")
	}
}

func TestTupleEqualityIsByElement(t *testing.T) {
	a := NewTuple([]value.Value{value.Int(1), value.Int(2)})
	b := NewTuple([]value.Value{value.Int(1), value.Int(2)})
	c := NewTuple([]value.Value{value.Int(1), value.Int(3)})
	if !a.Equal(b) {
		t.Errorf("tuples with equal elements should be Equal")
	}
	if a.Equal(c) {
		t.Errorf("tuples with different elements should not be Equal")
	}
}

func TestDictSetGetDeleteAndOrder(t *testing.T) {
	d := NewDict()
	d.Set(value.Obj(NewString("b")), value.Int(2))
	d.Set(value.Obj(NewString("a")), value.Int(1))

	var keys []string
	d.Each(func(k, _ value.Value) {
		keys = append(keys, k.AsObject().(*String).Go())
	})
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Errorf("Each order = %v, want insertion order [b a]", keys)
	}

	if got, ok := d.Get(value.Obj(NewString("a"))); !ok || got.AsInt() != 1 {
		t.Errorf("Get(a) = (%v, %v), want (1, true)", got, ok)
	}
	if !d.Delete(value.Obj(NewString("a"))) {
		t.Errorf("Delete(a) should report true")
	}
	if d.Len() != 1 {
		t.Errorf("Len() after delete = %d, want 1", d.Len())
	}
}

func TestDictTruthy(t *testing.T) {
	d := NewDict()
	if d.Truthy() {
		t.Errorf("empty dict should be falsy")
	}
	d.Set(value.Int(1), value.Int(1))
	if !d.Truthy() {
		t.Errorf("non-empty dict should be truthy")
	}
}
