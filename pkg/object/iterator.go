package object

import "kuroko/pkg/value"

// Iterator is the runtime value produced by `for`'s implicit GET_ITER and
// consumed by FOR_ITER. It follows the same protocol a user-defined class
// can implement by hand: calling it with no arguments yields the next
// element, and once exhausted it returns itself instead of a fresh value.
// FOR_ITER detects exhaustion by identity, not by a side channel, so a
// class whose __iter__ returns an instance with its own __call__ slot
// plugs into the same loop without the VM special-casing it.
type Iterator struct {
	value.Header
	items []value.Value
	pos   int
}

func NewIterator(items []value.Value) *Iterator {
	return &Iterator{items: items}
}

func (it *Iterator) Kind() string { return "iterator" }

func (it *Iterator) Trace(mark func(value.Value)) {
	for _, v := range it.items {
		mark(v)
	}
}

func (it *Iterator) Sweep() {}

// Step returns the next element, or itself once the backing slice is
// exhausted.
func (it *Iterator) Step() value.Value {
	if it.pos >= len(it.items) {
		return value.Obj(it)
	}
	v := it.items[it.pos]
	it.pos++
	return v
}

// GetIter materializes the built-in iterable forms (list, tuple, dict
// keys, str runes) into an Iterator. Returns nil, false if v isn't
// directly iterable at the object level (the caller should then try
// v's class's __iter__ method).
func GetIter(v value.Value) (*Iterator, bool) {
	if !v.IsObject() {
		return nil, false
	}
	switch t := v.AsObject().(type) {
	case *List:
		items := make([]value.Value, len(t.Items))
		copy(items, t.Items)
		return NewIterator(items), true
	case *Tuple:
		items := make([]value.Value, len(t.Items))
		copy(items, t.Items)
		return NewIterator(items), true
	case *Dict:
		var items []value.Value
		t.Each(func(k, _ value.Value) { items = append(items, k) })
		return NewIterator(items), true
	case *String:
		runes := []rune(t.Go())
		items := make([]value.Value, len(runes))
		for i, r := range runes {
			items[i] = value.Obj(NewString(string(r)))
		}
		return NewIterator(items), true
	case *Iterator:
		return t, true
	default:
		return nil, false
	}
}
