// Package value defines the tagged runtime value representation shared by
// every other package in the interpreter: the bytecode constant pool, the
// VM's value stack, and every heap object's fields table all traffic in
// Value.
//
// A Value is a small tagged union (none, bool, int, float, notImplemented,
// kwargs, or a pointer to a heap Object) rather than a Go interface, so that
// the common cases (numbers, booleans) never allocate. Heap objects
// implement the Object interface defined here; the mark-and-sweep collector
// in pkg/gc walks them through it, and concrete variants (strings, lists,
// classes, ...) live in pkg/object.
package value

import "math"

// Kind identifies which variant of the tagged union a Value holds.
type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindNotImplemented
	KindKwargs
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindNotImplemented:
		return "NotImplemented"
	case KindKwargs:
		return "kwargs"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Object is implemented by every heap-allocated value: strings, bytes,
// tuples, lists, dicts, closures, native functions, bound methods, classes,
// instances, upvalues, code objects, modules, and property descriptors.
//
// The GC-facing methods (ObjID/GCNext/SetGCNext/IsMarked/SetMarked) are
// ordinarily satisfied by embedding Header; concrete types only need to
// supply Kind, Trace and Sweep.
type Object interface {
	// Kind names the heap variant, e.g. "str", "class", "closure".
	Kind() string

	// Trace calls mark for every Value this object directly references,
	// so the collector's gray worklist can reach them. Objects with no
	// outgoing references (e.g. a string) implement this as a no-op.
	Trace(mark func(Value))

	// Sweep releases any native-held resource (table backing storage,
	// byte buffers) when the object is collected. Most variants no-op.
	Sweep()

	ObjID() uint64
	SetObjID(uint64)
	GCNext() Object
	SetGCNext(Object)
	IsMarked() bool
	SetMarked(bool)
}

// Header is embedded by every concrete Object implementation to supply the
// GC bookkeeping fields: an allocation-order id (used as the identity hash
// for objects without a specialized one), the mark bit, and the invasive
// next-pointer into the heap's object list.
type Header struct {
	id     uint64
	marked bool
	next   Object
}

func (h *Header) ObjID() uint64      { return h.id }
func (h *Header) SetObjID(id uint64) { h.id = id }
func (h *Header) GCNext() Object     { return h.next }
func (h *Header) SetGCNext(o Object) { h.next = o }
func (h *Header) IsMarked() bool     { return h.marked }
func (h *Header) SetMarked(m bool)   { h.marked = m }

// Hashable is implemented by objects with a specialized hash contract
// (strings, tuples). Objects that don't implement it hash by identity.
type Hashable interface {
	Hash() uint64
}

// Equatable is implemented by objects with value equality (strings,
// tuples). Objects that don't implement it compare by identity.
type Equatable interface {
	Equal(Object) bool
}

// Value is a tagged union: a scalar payload plus an object pointer,
// discriminated by Kind. The zero Value is None.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	obj  Object
}

func None() Value            { return Value{kind: KindNone} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func NotImplemented() Value  { return Value{kind: KindNotImplemented} }
func Kwargs() Value          { return Value{kind: KindKwargs} }
func Obj(o Object) Value     { return Value{kind: KindObject, obj: o} }

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsNone() bool      { return v.kind == KindNone }
func (v Value) IsBool() bool      { return v.kind == KindBool }
func (v Value) IsInt() bool       { return v.kind == KindInt }
func (v Value) IsFloat() bool     { return v.kind == KindFloat }
func (v Value) IsObject() bool    { return v.kind == KindObject }
func (v Value) IsKwargs() bool    { return v.kind == KindKwargs }
func (v Value) IsNotImplemented() bool { return v.kind == KindNotImplemented }

func (v Value) AsBool() bool     { return v.b }
func (v Value) AsInt() int64     { return v.i }
func (v Value) AsFloat() float64 { return v.f }
func (v Value) AsObject() Object { return v.obj }

// Truthy implements the boolean-coercion rules used by conditional jumps
// and the `not` operator. Heap objects are truthy by default; container
// types override emptiness-based truthiness at the pkg/object layer via
// the Truther interface.
type Truther interface {
	Truthy() bool
}

func (v Value) Truthy() bool {
	switch v.kind {
	case KindNone, KindNotImplemented, KindKwargs:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindObject:
		if t, ok := v.obj.(Truther); ok {
			return t.Truthy()
		}
		return true
	default:
		return true
	}
}

// numeric returns the value as a float64 and true if the value is one of
// the cross-comparable numeric kinds (int, float, bool).
func (v Value) numeric() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Hash implements the hash contract used for dict keys: int/bool hash to
// their integer value, integral floats hash as their integer value,
// non-integral floats are bit-mixed, none/notImplemented are fixed
// constants, and objects either specialize (strings, tuples) or fall back
// to identity.
func (v Value) Hash() uint64 {
	switch v.kind {
	case KindNone:
		return 0x9e3779b97f4a7c15
	case KindNotImplemented:
		return 0x517cc1b727220a95
	case KindKwargs:
		return 0xd6e8feb86659fd93
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt:
		return uint64(v.i)
	case KindFloat:
		if !math.IsInf(v.f, 0) && !math.IsNaN(v.f) && v.f == math.Trunc(v.f) {
			return uint64(int64(v.f))
		}
		return mixBits(math.Float64bits(v.f))
	case KindObject:
		if h, ok := v.obj.(Hashable); ok {
			return h.Hash()
		}
		return v.obj.ObjID()
	default:
		return 0
	}
}

// mixBits is a 64-bit avalanche mix (splitmix64's finalizer) used to turn
// raw IEEE-754 bits into a well-distributed hash.
func mixBits(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Equal implements managed equality: numeric equality across int/float/
// bool, then same-kind comparison for everything else. Objects compare by
// pointer first; failing that, strings and tuples compare by content via
// Equatable, and other objects fall back to identity.
func (v Value) Equal(o Value) bool {
	if an, aok := v.numeric(); aok {
		if bn, bok := o.numeric(); bok {
			return an == bn
		}
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNone, KindNotImplemented, KindKwargs:
		return true
	case KindObject:
		if v.obj == o.obj {
			return true
		}
		if eq, ok := v.obj.(Equatable); ok {
			return eq.Equal(o.obj)
		}
		return false
	default:
		return false
	}
}
