package object

import "kuroko/pkg/bytecode"
import "kuroko/pkg/table"
import "kuroko/pkg/value"

// Upvalue is a reference to a variable captured by a closure. While the
// owning frame is still on the stack the upvalue is "open" and reads
// through Owner by stack index, since the owning thread's value stack is
// a Go slice that append can reallocate — holding a raw pointer into it
// would go stale silently. When the frame returns, the VM "closes" the
// upvalue by copying the current value out and clearing Owner, after
// which Get/Set work against the stored copy.
type Upvalue struct {
	value.Header

	Owner StackAccessor
	Index int
	closed bool
	value  value.Value
}

func NewOpenUpvalue(owner StackAccessor, index int) *Upvalue {
	return &Upvalue{Owner: owner, Index: index}
}

func (u *Upvalue) Kind() string { return "upvalue" }

func (u *Upvalue) Trace(mark func(value.Value)) {
	if u.closed {
		mark(u.value)
	}
}

func (u *Upvalue) Sweep() {}

// Get reads the captured variable's current value.
func (u *Upvalue) Get() value.Value {
	if u.closed {
		return u.value
	}
	return u.Owner.GetSlot(u.Index)
}

// Set writes the captured variable.
func (u *Upvalue) Set(v value.Value) {
	if u.closed {
		u.value = v
		return
	}
	u.Owner.SetSlot(u.Index, v)
}

// Close detaches the upvalue from its owning stack, snapshotting the
// current value. Called when the frame that owns the captured slot
// returns.
func (u *Upvalue) Close() {
	if u.closed {
		return
	}
	u.value = u.Owner.GetSlot(u.Index)
	u.closed = true
	u.Owner = nil
}

// IsOpen reports whether the upvalue still reads through its owner.
func (u *Upvalue) IsOpen() bool { return !u.closed }

// Closure pairs a CodeObject with the upvalues it captured at creation
// time, plus the default argument values bound at the def statement.
// Parameter annotations are not stored.
type Closure struct {
	value.Header

	Code        *bytecode.CodeObject
	Upvalues    []*Upvalue
	Defaults    []value.Value
	KwDefaults  *Dict
	Globals     *table.Table
	Module      *Module
}

func NewClosure(code *bytecode.CodeObject, globals *table.Table, mod *Module) *Closure {
	return &Closure{
		Code:     code,
		Upvalues: make([]*Upvalue, len(code.Upvalues)),
		Globals:  globals,
		Module:   mod,
	}
}

func (c *Closure) Kind() string { return "function" }

func (c *Closure) Trace(mark func(value.Value)) {
	mark(value.Obj(c.Code))
	for _, uv := range c.Upvalues {
		if uv != nil {
			mark(value.Obj(uv))
		}
	}
	for _, d := range c.Defaults {
		mark(d)
	}
	if c.KwDefaults != nil {
		mark(value.Obj(c.KwDefaults))
	}
	if c.Module != nil {
		mark(value.Obj(c.Module))
	}
}

func (c *Closure) Sweep() {}

// NativeFn wraps a Go function as a callable Kuroko value, used for
// built-ins and methods of built-in classes like str and list.
type NativeFn struct {
	value.Header

	Name string
	Fn   func(inv Invoker, args []value.Value, kwargs *Dict) (value.Value, error)
}

func NewNativeFn(name string, fn func(inv Invoker, args []value.Value, kwargs *Dict) (value.Value, error)) *NativeFn {
	return &NativeFn{Name: name, Fn: fn}
}

func (n *NativeFn) Kind() string            { return "native" }
func (n *NativeFn) Trace(func(value.Value)) {}
func (n *NativeFn) Sweep()                  {}

// BoundMethod pairs a receiver with an unbound Closure or NativeFn found
// on its class, produced by GetAttr when an attribute resolves to a
// callable class member.
type BoundMethod struct {
	value.Header

	Receiver value.Value
	Method   value.Value
}

func (b *BoundMethod) Kind() string { return "boundmethod" }

func (b *BoundMethod) Trace(mark func(value.Value)) {
	mark(b.Receiver)
	mark(b.Method)
}

func (b *BoundMethod) Sweep() {}

// Module is the runtime representation of an imported file or built-in
// module: a name plus a globals table, looked up the same way a package
// scope is.
type Module struct {
	value.Header

	Name    string
	Globals *table.Table
}

func NewModule(name string) *Module {
	return &Module{Name: name, Globals: table.New()}
}

func (m *Module) Kind() string { return "module" }

func (m *Module) Trace(mark func(value.Value)) {
	m.Globals.Each(func(_, v value.Value) { mark(v) })
}

func (m *Module) Sweep() {}
