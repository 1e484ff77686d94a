// Package object implements the concrete heap object variants: strings,
// byte strings, tuples, lists, dicts, closures, native functions, bound
// methods, classes, instances, upvalues, modules, and property
// descriptors. It also implements the attribute lookup protocol.
//
// object depends on value, table, and bytecode but is never imported by
// them; the VM depends on object. Two small interfaces, Invoker and
// StackAccessor, let objects call back into the VM (native functions,
// descriptor getters) and let upvalues reach into a thread's live stack
// without object importing the vm package.
package object

import (
	"strconv"

	"kuroko/pkg/value"
)

// Invoker is implemented by the VM's thread type. It lets a NativeFn or a
// Property getter/setter call back into managed code (e.g. a native
// `sorted()` calling a user-supplied key function) without pkg/object
// importing pkg/vm.
type Invoker interface {
	Call(callee value.Value, args []value.Value, kwargs *Dict) (value.Value, error)
	Raise(class *Class, message string) error
}

// StackAccessor is implemented by the VM's thread type. An open Upvalue
// reads and writes through this interface by stack index rather than by
// holding a Go pointer into the thread's value stack, since that stack is
// a slice that can be reallocated by append as it grows — a raw pointer
// would be silently left pointing at stale backing storage.
type StackAccessor interface {
	GetSlot(i int) value.Value
	SetSlot(i int, v value.Value)
}

// String is Kuroko's immutable text type. Equality and hashing are by
// content; a central intern table in the VM is what actually gives equal
// strings pointer identity, so this type's Equal still works correctly
// even for two independently constructed strings that happen to hold the
// same bytes.
type String struct {
	value.Header
	s string
}

func NewString(s string) *String { return &String{s: s} }

func (s *String) Kind() string            { return "str" }
func (s *String) Trace(func(value.Value)) {}
func (s *String) Sweep()                  {}
func (s *String) Go() string              { return s.s }
func (s *String) Len() int                { return len([]rune(s.s)) }
func (s *String) String() string          { return strconv.Quote(s.s) }

func (s *String) Hash() uint64 {
	// FNV-1a, matching the byte-string hashing used throughout the
	// surrounding table/interning machinery.
	var h uint64 = 0xcbf29ce484222325
	for i := 0; i < len(s.s); i++ {
		h ^= uint64(s.s[i])
		h *= 0x100000001b3
	}
	return h
}

func (s *String) Equal(o value.Object) bool {
	other, ok := o.(*String)
	return ok && other.s == s.s
}

func (s *String) Truthy() bool { return len(s.s) > 0 }

// Bytes is Kuroko's mutable byte-vector type.
type Bytes struct {
	value.Header
	B []byte
}

func NewBytes(b []byte) *Bytes { return &Bytes{B: b} }

func (b *Bytes) Kind() string            { return "bytes" }
func (b *Bytes) Trace(func(value.Value)) {}
func (b *Bytes) Sweep()                  {}
func (b *Bytes) Truthy() bool            { return len(b.B) > 0 }

// Tuple is an immutable fixed-length sequence.
type Tuple struct {
	value.Header
	Items []value.Value
}

func NewTuple(items []value.Value) *Tuple { return &Tuple{Items: items} }

func (t *Tuple) Kind() string { return "tuple" }
func (t *Tuple) Trace(mark func(value.Value)) {
	for _, v := range t.Items {
		mark(v)
	}
}
func (t *Tuple) Sweep()       {}
func (t *Tuple) Truthy() bool { return len(t.Items) > 0 }

func (t *Tuple) Hash() uint64 {
	h := uint64(0x2545f4914f6cdd1d)
	for _, v := range t.Items {
		h ^= v.Hash()
		h *= 0x100000001b3
	}
	return h
}

func (t *Tuple) Equal(o value.Object) bool {
	other, ok := o.(*Tuple)
	if !ok || len(other.Items) != len(t.Items) {
		return false
	}
	for i, v := range t.Items {
		if !v.Equal(other.Items[i]) {
			return false
		}
	}
	return true
}

// List is a mutable growable sequence, the backing store for `list`
// literals and the result of most iteration/comprehension operations.
type List struct {
	value.Header
	Items []value.Value
}

func NewList(items []value.Value) *List { return &List{Items: items} }

func (l *List) Kind() string { return "list" }
func (l *List) Trace(mark func(value.Value)) {
	for _, v := range l.Items {
		mark(v)
	}
}
func (l *List) Sweep()       {}
func (l *List) Truthy() bool { return len(l.Items) > 0 }

func (l *List) Append(v value.Value) { l.Items = append(l.Items, v) }

// Dict is the managed `dict` type: a thin wrapper over pkg/table that also
// remembers insertion order, so iteration sees keys in the order they
// were first inserted.
type Dict struct {
	value.Header
	entries *tableWithOrder
}

func NewDict() *Dict { return &Dict{entries: newTableWithOrder()} }

func (d *Dict) Kind() string { return "dict" }
func (d *Dict) Trace(mark func(value.Value)) {
	d.entries.each(func(k, v value.Value) {
		mark(k)
		mark(v)
	})
}
func (d *Dict) Sweep()       {}
func (d *Dict) Truthy() bool { return d.entries.len() > 0 }
func (d *Dict) Len() int     { return d.entries.len() }

func (d *Dict) Get(k value.Value) (value.Value, bool) { return d.entries.get(k) }
func (d *Dict) Set(k, v value.Value)                  { d.entries.set(k, v) }
func (d *Dict) Delete(k value.Value) bool             { return d.entries.delete(k) }
func (d *Dict) Each(fn func(k, v value.Value))        { d.entries.each(fn) }
