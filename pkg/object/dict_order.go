package object

import "kuroko/pkg/table"
import "kuroko/pkg/value"

// tableWithOrder pairs a table.Table (for O(1) lookup) with a parallel
// slice of keys in insertion order, since Kuroko dicts iterate in the
// order keys were first inserted rather than hash-bucket order.
type tableWithOrder struct {
	t    *table.Table
	keys []value.Value
}

func newTableWithOrder() *tableWithOrder {
	return &tableWithOrder{t: table.New()}
}

func (o *tableWithOrder) get(k value.Value) (value.Value, bool) {
	return o.t.Get(k)
}

func (o *tableWithOrder) set(k, v value.Value) {
	if o.t.Set(k, v) {
		o.keys = append(o.keys, k)
	}
}

func (o *tableWithOrder) delete(k value.Value) bool {
	if !o.t.Delete(k) {
		return false
	}
	for i, kk := range o.keys {
		if kk.Equal(k) {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

func (o *tableWithOrder) len() int { return o.t.Len() }

func (o *tableWithOrder) each(fn func(k, v value.Value)) {
	for _, k := range o.keys {
		if v, ok := o.t.Get(k); ok {
			fn(k, v)
		}
	}
}
