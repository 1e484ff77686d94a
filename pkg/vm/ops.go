package vm

import (
	"fmt"

	"kuroko/pkg/bytecode"
	"kuroko/pkg/object"
	"kuroko/pkg/value"
)

// arithDunders maps each arithmetic opcode to its forward/reflected dunder
// method pair, e.g. OpAdd tries __add__ on the left operand, then __radd__
// on the right if the left returns NotImplemented (or has no __add__).
var arithDunders = map[bytecode.Opcode][2]string{
	bytecode.OpAdd:      {"__add__", "__radd__"},
	bytecode.OpSub:      {"__sub__", "__rsub__"},
	bytecode.OpMul:      {"__mul__", "__rmul__"},
	bytecode.OpDiv:      {"__truediv__", "__rtruediv__"},
	bytecode.OpFloorDiv: {"__floordiv__", "__rfloordiv__"},
	bytecode.OpMod:      {"__mod__", "__rmod__"},
}

// compareDunders maps each ordering opcode to its forward dunder and the
// reflected dunder to retry with operands swapped (e.g. `a < b` failing
// forward retries as `b > a`).
var compareDunders = map[bytecode.Opcode][2]string{
	bytecode.OpLt: {"__lt__", "__gt__"},
	bytecode.OpLe: {"__le__", "__ge__"},
	bytecode.OpGt: {"__gt__", "__lt__"},
	bytecode.OpGe: {"__ge__", "__le__"},
}

// tryInstanceBinary implements the general "dispatch to left operand's
// dunder; on NotImplemented or absence, retry the right operand's
// reflected dunder" protocol shared by binaryOp and compareOp. Reports
// found=false when neither side implements the operation (or both
// returned NotImplemented), letting the caller fall back to its built-in
// handling or raise TypeError.
func (t *Thread) tryInstanceBinary(name, rname string, a, b value.Value) (result value.Value, found bool, err error) {
	if inst, ok := a.AsObject().(*object.Instance); ok {
		if m, ok := inst.Class.Dunder(name); ok {
			v, err := t.Call(m, []value.Value{a, b}, nil)
			if err != nil {
				return value.None(), true, err
			}
			if !v.IsNotImplemented() {
				return v, true, nil
			}
		}
	}
	if inst, ok := b.AsObject().(*object.Instance); ok {
		if m, ok := inst.Class.Dunder(rname); ok {
			v, err := t.Call(m, []value.Value{b, a}, nil)
			if err != nil {
				return value.None(), true, err
			}
			if !v.IsNotImplemented() {
				return v, true, nil
			}
		}
	}
	return value.None(), false, nil
}

// binaryOp implements +, -, *, /, //, % for numbers and, for +, string and
// list concatenation; falls back to the general dunder-dispatch protocol
// for instances (and for a built-in operand paired with an instance that
// implements the reflected dunder).
func (t *Thread) binaryOp(op bytecode.Opcode, a, b value.Value) (value.Value, error) {
	if a.IsObject() {
		switch x := a.AsObject().(type) {
		case *object.String:
			if op == bytecode.OpAdd {
				if y, ok := b.AsObject().(*object.String); ok {
					return value.Obj(t.vm.Intern(x.Go() + y.Go())), nil
				}
				return value.None(), t.Raise(t.vm.Class("TypeError"), "can only concatenate str to str")
			}
		case *object.List:
			if op == bytecode.OpAdd {
				if y, ok := b.AsObject().(*object.List); ok {
					items := make([]value.Value, 0, len(x.Items)+len(y.Items))
					items = append(items, x.Items...)
					items = append(items, y.Items...)
					return value.Obj(t.vm.NewList(items)), nil
				}
			}
		}
	}

	if names, ok := arithDunders[op]; ok {
		if v, found, err := t.tryInstanceBinary(names[0], names[1], a, b); found {
			return v, err
		}
	}

	af, aok := numericOf(a)
	bf, bok := numericOf(b)
	if !aok || !bok {
		return value.None(), t.Raise(t.vm.Class("TypeError"), "unsupported operand type(s) for "+op.String())
	}
	bothInt := a.IsInt() && b.IsInt()

	switch op {
	case bytecode.OpAdd:
		if bothInt {
			return value.Int(a.AsInt() + b.AsInt()), nil
		}
		return value.Float(af + bf), nil
	case bytecode.OpSub:
		if bothInt {
			return value.Int(a.AsInt() - b.AsInt()), nil
		}
		return value.Float(af - bf), nil
	case bytecode.OpMul:
		if bothInt {
			return value.Int(a.AsInt() * b.AsInt()), nil
		}
		return value.Float(af * bf), nil
	case bytecode.OpDiv:
		if bf == 0 {
			return value.None(), t.Raise(t.vm.Class("ZeroDivisionError"), "division by zero")
		}
		return value.Float(af / bf), nil
	case bytecode.OpFloorDiv:
		if bf == 0 {
			return value.None(), t.Raise(t.vm.Class("ZeroDivisionError"), "division by zero")
		}
		if bothInt {
			q := a.AsInt() / b.AsInt()
			if (a.AsInt()%b.AsInt() != 0) && ((a.AsInt() < 0) != (b.AsInt() < 0)) {
				q--
			}
			return value.Int(q), nil
		}
		return value.Float(floorDiv(af, bf)), nil
	case bytecode.OpMod:
		if bf == 0 {
			return value.None(), t.Raise(t.vm.Class("ZeroDivisionError"), "modulo by zero")
		}
		if bothInt {
			m := a.AsInt() % b.AsInt()
			if m != 0 && (m < 0) != (b.AsInt() < 0) {
				m += b.AsInt()
			}
			return value.Int(m), nil
		}
		m := af - floorDiv(af, bf)*bf
		return value.Float(m), nil
	default:
		return value.None(), t.Raise(t.vm.Class("TypeError"), "bad binary opcode")
	}
}

func floorDiv(a, b float64) float64 {
	q := a / b
	return float64(int64(q)) - boolToFloat(q < 0 && float64(int64(q)) != q)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func numericOf(v value.Value) (float64, bool) {
	switch {
	case v.IsInt():
		return float64(v.AsInt()), true
	case v.IsFloat():
		return v.AsFloat(), true
	case v.IsBool():
		if v.AsBool() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// compareOp implements <, <=, >, >= for numbers and strings, falling back
// to the general dunder-dispatch protocol (__lt__/__le__/__gt__/__ge__,
// with reflected retry) for instances.
func (t *Thread) compareOp(op bytecode.Opcode, a, b value.Value) (value.Value, error) {
	if as, ok := a.AsObject().(*object.String); ok {
		if bs, ok := b.AsObject().(*object.String); ok {
			return value.Bool(compareStrings(op, as.Go(), bs.Go())), nil
		}
	}

	if names, ok := compareDunders[op]; ok {
		if v, found, err := t.tryInstanceBinary(names[0], names[1], a, b); found {
			return v, err
		}
	}

	af, aok := numericOf(a)
	bf, bok := numericOf(b)
	if !aok || !bok {
		return value.None(), t.Raise(t.vm.Class("TypeError"), "unorderable types")
	}
	switch op {
	case bytecode.OpLt:
		return value.Bool(af < bf), nil
	case bytecode.OpLe:
		return value.Bool(af <= bf), nil
	case bytecode.OpGt:
		return value.Bool(af > bf), nil
	case bytecode.OpGe:
		return value.Bool(af >= bf), nil
	default:
		return value.None(), t.Raise(t.vm.Class("TypeError"), "bad comparison opcode")
	}
}

func compareStrings(op bytecode.Opcode, a, b string) bool {
	switch op {
	case bytecode.OpLt:
		return a < b
	case bytecode.OpLe:
		return a <= b
	case bytecode.OpGt:
		return a > b
	case bytecode.OpGe:
		return a >= b
	default:
		return false
	}
}

// valuesEqual implements ==, falling back to the receiver class's __eq__
// for instances before the tagged union's default identity/content
// equality.
func (t *Thread) valuesEqual(a, b value.Value) bool {
	if inst, ok := a.AsObject().(*object.Instance); ok {
		if m, ok := inst.Class.EqMethod(); ok {
			result, err := t.Call(m, []value.Value{a, b}, nil)
			if err == nil {
				return result.Truthy()
			}
		}
	}
	return a.Equal(b)
}

// getItem implements subscripting for list/dict/tuple/str, falling back
// to __getitem__ for instances.
func (t *Thread) getItem(recv, idx value.Value) (value.Value, error) {
	if !recv.IsObject() {
		return value.None(), t.Raise(t.vm.Class("TypeError"), "'"+object.TypeName(recv)+"' object is not subscriptable")
	}
	switch r := recv.AsObject().(type) {
	case *object.List:
		if lo, hi, ok := asSliceBounds(idx); ok {
			a, b, err := t.resolveSlice(len(r.Items), lo, hi)
			if err != nil {
				return value.None(), err
			}
			items := make([]value.Value, b-a)
			copy(items, r.Items[a:b])
			return value.Obj(t.vm.NewList(items)), nil
		}
		i, err := t.indexInto(len(r.Items), idx)
		if err != nil {
			return value.None(), err
		}
		return r.Items[i], nil
	case *object.Tuple:
		if lo, hi, ok := asSliceBounds(idx); ok {
			a, b, err := t.resolveSlice(len(r.Items), lo, hi)
			if err != nil {
				return value.None(), err
			}
			items := make([]value.Value, b-a)
			copy(items, r.Items[a:b])
			return value.Obj(t.vm.NewTuple(items)), nil
		}
		i, err := t.indexInto(len(r.Items), idx)
		if err != nil {
			return value.None(), err
		}
		return r.Items[i], nil
	case *object.String:
		runes := []rune(r.Go())
		if lo, hi, ok := asSliceBounds(idx); ok {
			a, b, err := t.resolveSlice(len(runes), lo, hi)
			if err != nil {
				return value.None(), err
			}
			return value.Obj(t.vm.Intern(string(runes[a:b]))), nil
		}
		i, err := t.indexInto(len(runes), idx)
		if err != nil {
			return value.None(), err
		}
		return value.Obj(t.vm.Intern(string(runes[i]))), nil
	case *object.Dict:
		v, ok := r.Get(idx)
		if !ok {
			return value.None(), t.Raise(t.vm.Class("KeyError"), object.Repr(idx))
		}
		return v, nil
	case *object.Instance:
		if m, ok := r.Class.GetItemMethod(); ok {
			return t.Call(m, []value.Value{recv, idx}, nil)
		}
		return value.None(), t.Raise(t.vm.Class("TypeError"), "'"+r.Class.Name+"' object is not subscriptable")
	default:
		return value.None(), t.Raise(t.vm.Class("TypeError"), "'"+object.TypeName(recv)+"' object is not subscriptable")
	}
}

func (t *Thread) setItem(recv, idx, val value.Value) error {
	switch r := recv.AsObject().(type) {
	case *object.List:
		i, err := t.indexInto(len(r.Items), idx)
		if err != nil {
			return err
		}
		r.Items[i] = val
		return nil
	case *object.Dict:
		r.Set(idx, val)
		return nil
	case *object.Instance:
		if m, ok := r.Class.SetItemMethod(); ok {
			_, err := t.Call(m, []value.Value{recv, idx, val}, nil)
			return err
		}
		return t.Raise(t.vm.Class("TypeError"), "'"+r.Class.Name+"' object does not support item assignment")
	default:
		return t.Raise(t.vm.Class("TypeError"), "'"+object.TypeName(recv)+"' object does not support item assignment")
	}
}

func (t *Thread) delItem(recv, idx value.Value) error {
	switch r := recv.AsObject().(type) {
	case *object.Dict:
		if !r.Delete(idx) {
			return t.Raise(t.vm.Class("KeyError"), object.Repr(idx))
		}
		return nil
	case *object.List:
		i, err := t.indexInto(len(r.Items), idx)
		if err != nil {
			return err
		}
		r.Items = append(r.Items[:i], r.Items[i+1:]...)
		return nil
	default:
		return t.Raise(t.vm.Class("TypeError"), "'"+object.TypeName(recv)+"' object doesn't support item deletion")
	}
}

// indexInto resolves a (possibly negative) integer index against a
// sequence of length n, raising IndexError if it is out of range.
func (t *Thread) indexInto(n int, idx value.Value) (int, error) {
	if !idx.IsInt() {
		return 0, t.Raise(t.vm.Class("TypeError"), "indices must be integers")
	}
	i := int(idx.AsInt())
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, t.Raise(t.vm.Class("IndexError"), "index out of range")
	}
	return i, nil
}

// asSliceBounds recognizes the 2-tuple OpBuildSlice produces, reporting
// its (lo, hi) values, either of which may be None for an open bound.
func asSliceBounds(idx value.Value) (lo, hi value.Value, ok bool) {
	tup, isTuple := idx.AsObject().(*object.Tuple)
	if !isTuple || len(tup.Items) != 2 {
		return value.None(), value.None(), false
	}
	return tup.Items[0], tup.Items[1], true
}

// resolveSlice clamps a Python-style a[lo:hi] pair to [0, n], treating a
// None bound as open and a negative bound as counting from the end.
func (t *Thread) resolveSlice(n int, lo, hi value.Value) (int, int, error) {
	a, err := sliceBound(lo, 0, n)
	if err != nil {
		return 0, 0, t.Raise(t.vm.Class("TypeError"), "slice indices must be integers")
	}
	b, err := sliceBound(hi, n, n)
	if err != nil {
		return 0, 0, t.Raise(t.vm.Class("TypeError"), "slice indices must be integers")
	}
	if b < a {
		b = a
	}
	return a, b, nil
}

func sliceBound(v value.Value, def, n int) (int, error) {
	if v.IsNone() {
		return def, nil
	}
	if !v.IsInt() {
		return 0, fmt.Errorf("not an int")
	}
	i := int(v.AsInt())
	if i < 0 {
		i += n
	}
	if i < 0 {
		i = 0
	}
	if i > n {
		i = n
	}
	return i, nil
}
