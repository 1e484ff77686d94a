package table

import (
	"testing"

	"kuroko/pkg/value"
)

func TestSetGetDelete(t *testing.T) {
	tb := New()
	if isNew := tb.Set(value.Int(1), value.Int(100)); !isNew {
		t.Errorf("Set on a fresh key should report isNew = true")
	}
	if got, ok := tb.Get(value.Int(1)); !ok || got.AsInt() != 100 {
		t.Fatalf("Get(1) = (%v, %v), want (100, true)", got, ok)
	}
	if isNew := tb.Set(value.Int(1), value.Int(200)); isNew {
		t.Errorf("Set overwriting an existing key should report isNew = false")
	}
	if got, _ := tb.Get(value.Int(1)); got.AsInt() != 200 {
		t.Errorf("Get(1) after overwrite = %v, want 200", got)
	}
	if !tb.Delete(value.Int(1)) {
		t.Errorf("Delete(1) should report true for a present key")
	}
	if _, ok := tb.Get(value.Int(1)); ok {
		t.Errorf("Get(1) after Delete should report ok = false")
	}
	if tb.Delete(value.Int(1)) {
		t.Errorf("Delete(1) should report false once already deleted")
	}
}

func TestTombstonePreservesProbeChain(t *testing.T) {
	tb := New()
	tb.Set(value.Int(1), value.Int(1))
	tb.Set(value.Int(2), value.Int(2))
	tb.Set(value.Int(3), value.Int(3))

	tb.Delete(value.Int(2))

	if got, ok := tb.Get(value.Int(3)); !ok || got.AsInt() != 3 {
		t.Errorf("Get(3) after deleting an unrelated key = (%v, %v), want (3, true)", got, ok)
	}
}

func TestLenTracksLiveEntriesOnly(t *testing.T) {
	tb := New()
	for i := int64(0); i < 5; i++ {
		tb.Set(value.Int(i), value.Int(i*10))
	}
	if tb.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", tb.Len())
	}
	tb.Delete(value.Int(0))
	if tb.Len() != 4 {
		t.Errorf("Len() after one delete = %d, want 4", tb.Len())
	}
}

func TestGrowthPreservesAllEntries(t *testing.T) {
	tb := New()
	const n = 200
	for i := int64(0); i < n; i++ {
		tb.Set(value.Int(i), value.Int(i*i))
	}
	for i := int64(0); i < n; i++ {
		got, ok := tb.Get(value.Int(i))
		if !ok || got.AsInt() != i*i {
			t.Fatalf("Get(%d) = (%v, %v), want (%d, true)", i, got, ok, i*i)
		}
	}
	if tb.Len() != n {
		t.Errorf("Len() = %d, want %d", tb.Len(), n)
	}
}

func TestEachVisitsOnlyLiveEntries(t *testing.T) {
	tb := New()
	tb.Set(value.Int(1), value.Int(1))
	tb.Set(value.Int(2), value.Int(2))
	tb.Delete(value.Int(1))

	seen := map[int64]int64{}
	tb.Each(func(k, v value.Value) {
		seen[k.AsInt()] = v.AsInt()
	})
	if len(seen) != 1 || seen[2] != 2 {
		t.Errorf("Each visited %v, want only {2: 2}", seen)
	}
}

func TestAddAllOverwritesExistingKeys(t *testing.T) {
	a := New()
	a.Set(value.Int(1), value.Int(1))
	a.Set(value.Int(2), value.Int(2))

	b := New()
	b.Set(value.Int(2), value.Int(200))
	b.Set(value.Int(3), value.Int(3))

	a.AddAll(b)

	if got, _ := a.Get(value.Int(1)); got.AsInt() != 1 {
		t.Errorf("AddAll should not touch keys absent from the source table")
	}
	if got, _ := a.Get(value.Int(2)); got.AsInt() != 200 {
		t.Errorf("AddAll should overwrite keys present in both tables")
	}
	if got, _ := a.Get(value.Int(3)); got.AsInt() != 3 {
		t.Errorf("AddAll should add keys only present in the source table")
	}
}
