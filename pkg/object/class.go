package object

import "kuroko/pkg/table"
import "kuroko/pkg/value"

// dunderNames lists every special method the interpreter's fast paths may
// look up, cached into a class's slots map by Finalize so a hot loop never
// has to walk the base chain. Covers construction/conversion, the full
// arithmetic set with reflected counterparts, comparisons, attribute and
// call protocols, context-manager entry/exit, and hashing.
var dunderNames = []string{
	"__init__", "__str__", "__repr__", "__eq__", "__hash__", "__call__",
	"__getitem__", "__setitem__", "__iter__",
	"__enter__", "__exit__",
	"__getattr__", "__setattr__", "__delattr__",
	"__add__", "__radd__", "__sub__", "__rsub__",
	"__mul__", "__rmul__", "__truediv__", "__rtruediv__",
	"__floordiv__", "__rfloordiv__", "__mod__", "__rmod__",
	"__lt__", "__le__", "__gt__", "__ge__",
}

// Class is a heap object describing a user-defined or built-in type:
// its base class (single inheritance), its own method table, and the
// cached dunder slots used by the interpreter's fast paths.
type Class struct {
	value.Header

	Name    string
	Base    *Class
	Methods *table.Table
	Doc     string

	// Native, when non-nil, is invoked instead of constructing a plain
	// Instance; used for built-in types (str, list, dict, ...) whose
	// instances carry a native Go payload rather than a Fields table.
	Native func(inv Invoker, args []value.Value, kwargs *Dict) (value.Value, error)

	slots     map[string]value.Value
	finalized bool
}

func NewClass(name string, base *Class) *Class {
	return &Class{Name: name, Base: base, Methods: table.New()}
}

func (c *Class) Kind() string { return "class" }

func (c *Class) Trace(mark func(value.Value)) {
	if c.Base != nil {
		mark(value.Obj(c.Base))
	}
	c.Methods.Each(func(_, v value.Value) { mark(v) })
	for _, v := range c.slots {
		mark(v)
	}
}

func (c *Class) Sweep() {}

// Finalize populates the dunder-slot cache by walking the base chain once
// the class body has finished executing, so method resolution happens at
// finalization time rather than on every call. Must be re-invoked if
// methods are added after the class statement (not possible for user
// code, but used by the VM to finalize built-in classes too).
func (c *Class) Finalize() {
	c.slots = make(map[string]value.Value, len(dunderNames))
	for _, name := range dunderNames {
		if v := c.lookupRaw(name); !v.IsNone() {
			c.slots[name] = v
		}
	}
	c.finalized = true
}

// Dunder returns a cached special method by name, if the class or one of
// its bases defines it.
func (c *Class) Dunder(name string) (value.Value, bool) {
	v, ok := c.slots[name]
	return v, ok
}

func (c *Class) lookupRaw(name string) value.Value {
	for cls := c; cls != nil; cls = cls.Base {
		if v, ok := cls.Methods.Get(value.Obj(NewString(name))); ok {
			return v
		}
	}
	return value.None()
}

// Lookup finds a method by name, walking the base chain.
func (c *Class) Lookup(name string) (value.Value, bool) {
	for cls := c; cls != nil; cls = cls.Base {
		if v, ok := cls.Methods.Get(value.Obj(NewString(name))); ok {
			return v, true
		}
	}
	return value.None(), false
}

// Init returns the cached __init__ method, if any.
func (c *Class) Init() (value.Value, bool) { return c.Dunder("__init__") }

// Str returns the cached __str__ method, if any.
func (c *Class) Str() (value.Value, bool) { return c.Dunder("__str__") }

// Repr returns the cached __repr__ method, if any.
func (c *Class) Repr() (value.Value, bool) { return c.Dunder("__repr__") }

// EqMethod returns the cached __eq__ method, if any.
func (c *Class) EqMethod() (value.Value, bool) { return c.Dunder("__eq__") }

// HashMethod returns the cached __hash__ method, if any.
func (c *Class) HashMethod() (value.Value, bool) { return c.Dunder("__hash__") }

// CallMethod returns the cached __call__ method, if any; lets an instance
// be invoked like a function (also how a custom iterator advances itself).
func (c *Class) CallMethod() (value.Value, bool) { return c.Dunder("__call__") }

// EnterMethod returns the cached __enter__ method, if any.
func (c *Class) EnterMethod() (value.Value, bool) { return c.Dunder("__enter__") }

// ExitMethod returns the cached __exit__ method, if any.
func (c *Class) ExitMethod() (value.Value, bool) { return c.Dunder("__exit__") }

// GetAttrMethod returns the cached __getattr__ method, if any.
func (c *Class) GetAttrMethod() (value.Value, bool) { return c.Dunder("__getattr__") }

// SetAttrMethod returns the cached __setattr__ method, if any.
func (c *Class) SetAttrMethod() (value.Value, bool) { return c.Dunder("__setattr__") }

// DelAttrMethod returns the cached __delattr__ method, if any.
func (c *Class) DelAttrMethod() (value.Value, bool) { return c.Dunder("__delattr__") }

// GetItemMethod returns the cached __getitem__ method, if any.
func (c *Class) GetItemMethod() (value.Value, bool) { return c.Dunder("__getitem__") }

// SetItemMethod returns the cached __setitem__ method, if any.
func (c *Class) SetItemMethod() (value.Value, bool) { return c.Dunder("__setitem__") }

// IterMethod returns the cached __iter__ method, if any.
func (c *Class) IterMethod() (value.Value, bool) { return c.Dunder("__iter__") }

// IsSubclass reports whether c is base or a descendant of base.
func (c *Class) IsSubclass(base *Class) bool {
	for cls := c; cls != nil; cls = cls.Base {
		if cls == base {
			return true
		}
	}
	return false
}

// Instance is a plain user-defined object: its class plus a fields table.
// Fields are stored in a table rather than a fixed-layout positional
// array, since instances can gain attributes dynamically; slots are not
// modeled.
type Instance struct {
	value.Header

	Class  *Class
	Fields *table.Table
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: table.New()}
}

func (i *Instance) Kind() string { return "instance" }

func (i *Instance) Trace(mark func(value.Value)) {
	mark(value.Obj(i.Class))
	i.Fields.Each(func(_, v value.Value) { mark(v) })
}

func (i *Instance) Sweep() {}

// Property is a data descriptor: a getter and optional setter pair built
// with NewProperty. The surface grammar has no decorator syntax that
// creates one. Stored in a class's Methods table like any other
// attribute; the descriptor protocol in attr.go special-cases it.
type Property struct {
	value.Header

	Name   string
	Doc    string
	Getter value.Value
	Setter value.Value
}

func NewProperty(name string, getter value.Value) *Property {
	return &Property{Name: name, Getter: getter, Setter: value.None()}
}

func (p *Property) Kind() string { return "property" }

func (p *Property) Trace(mark func(value.Value)) {
	mark(p.Getter)
	mark(p.Setter)
}

func (p *Property) Sweep() {}

// IsDataDescriptor reports whether the property defines a setter, which
// determines priority against an instance's own fields table: data
// descriptors shadow instance attributes of the same name, non-data
// descriptors (getter only) do not.
func (p *Property) IsDataDescriptor() bool { return !p.Setter.IsNone() }
