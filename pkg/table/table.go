// Package table implements the open-addressed hash table used for globals,
// class method tables, module fields, instance fields, and the managed
// `dict` type.
//
// Design: linear probing, power-of-two capacity, 0.75 max load factor.
// Deleting a key leaves a tombstone rather than an empty slot so that probe
// chains for later keys stay intact; a tombstone is an occupied slot whose
// key has been overwritten with the `kwargs` sentinel and whose value is
// Bool(true) — the same trick value.Value already uses to keep that
// sentinel out of user-visible storage.
package table

import "kuroko/pkg/value"

const maxLoad = 0.75

type slot struct {
	key     value.Value
	val     value.Value
	used    bool
	deleted bool
}

// Table is an open-addressed mapping from Value to Value.
type Table struct {
	slots []slot
	count int // live (non-tombstone) entries
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

func growCapacity(old int) int {
	if old < 8 {
		return 8
	}
	return old * 2
}

// find locates the slot a key occupies, or the slot it should be inserted
// into (preferring the first tombstone seen along the probe chain).
func find(slots []slot, key value.Value) *slot {
	if len(slots) == 0 {
		return nil
	}
	mask := uint64(len(slots) - 1)
	idx := key.Hash() & mask
	var tombstone *slot
	for {
		s := &slots[idx]
		switch {
		case !s.used:
			if tombstone != nil {
				return tombstone
			}
			return s
		case s.deleted:
			if tombstone == nil {
				tombstone = s
			}
		case s.key.Equal(key):
			return s
		}
		idx = (idx + 1) & mask
	}
}

func (t *Table) adjustCapacity(newCap int) {
	newSlots := make([]slot, newCap)
	t.count = 0
	for i := range t.slots {
		s := &t.slots[i]
		if !s.used || s.deleted {
			continue
		}
		dest := find(newSlots, s.key)
		dest.used = true
		dest.key = s.key
		dest.val = s.val
		t.count++
	}
	t.slots = newSlots
}

// Get returns the value stored for key, if any.
func (t *Table) Get(key value.Value) (value.Value, bool) {
	s := find(t.slots, key)
	if s == nil || !s.used || s.deleted {
		return value.None(), false
	}
	return s.val, true
}

// Set stores val for key, growing the table first if needed. It returns
// true iff the key was not already present.
func (t *Table) Set(key value.Value, val value.Value) bool {
	if float64(t.count+1) > float64(len(t.slots))*maxLoad {
		t.adjustCapacity(growCapacity(len(t.slots)))
	}
	s := find(t.slots, key)
	isNew := !s.used || s.deleted
	if isNew {
		t.count++
	}
	s.used = true
	s.deleted = false
	s.key = key
	s.val = val
	return isNew
}

// Delete removes key, leaving a tombstone in its slot. Returns true iff the
// key was present.
func (t *Table) Delete(key value.Value) bool {
	s := find(t.slots, key)
	if s == nil || !s.used || s.deleted {
		return false
	}
	s.deleted = true
	s.key = value.Kwargs()
	s.val = value.Bool(true)
	t.count--
	return true
}

// AddAll copies every live entry of from into t, overwriting existing keys.
func (t *Table) AddAll(from *Table) {
	for i := range from.slots {
		s := &from.slots[i]
		if s.used && !s.deleted {
			t.Set(s.key, s.val)
		}
	}
}

// Len returns the number of live (non-tombstone) entries.
func (t *Table) Len() int { return t.count }

// Each walks live entries in slot order, skipping empty and tombstone
// slots. fn must not mutate the table.
func (t *Table) Each(fn func(key, val value.Value)) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.used && !s.deleted {
			fn(s.key, s.val)
		}
	}
}
