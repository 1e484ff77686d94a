package vm

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"kuroko/pkg/bytecode"
	"kuroko/pkg/gc"
	"kuroko/pkg/object"
	"kuroko/pkg/table"
	"kuroko/pkg/value"
)

// Vm owns everything shared across threads: the GC heap, the string
// intern table, the built-in exception/type classes, the loaded module
// table, and the main thread used to run a program's top-level code.
type Vm struct {
	heap    *gc.Heap
	strings map[string]*object.String

	// Builtin classes, looked up by the dispatch loop and by builtins
	// constructors: the exception hierarchy plus the base scalar/container
	// types.
	classes map[string]*object.Class

	modules map[string]*object.Module
	main    *Thread

	Stdout io.Writer
	Stderr io.Writer
	Log    *zap.SugaredLogger

	// Trace, when true, logs every GC cycle and managed call entry via Log.
	Trace bool
}

// New builds a Vm with its heap, intern table, and built-in exception
// classes ready, and one main thread.
func New() *Vm {
	v := &Vm{
		heap:    gc.New(),
		strings: make(map[string]*object.String),
		classes: make(map[string]*object.Class),
		modules: make(map[string]*object.Module),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Log:     zap.NewNop().Sugar(),
	}
	v.heap.OnCollect = func(freed, live int64) {
		if v.Trace {
			v.Log.Infow("gc cycle", "freed_bytes", freed, "live_bytes", live)
		}
	}
	registerBuiltinClasses(v)
	v.main = newThread(v)
	return v
}

// Intern returns the canonical *object.String for s, allocating and
// registering one on first use. Every subsequent call with an equal s
// returns the exact same pointer, which is what gives interned strings
// pointer-identity equality on top of String's content-based Equal.
func (v *Vm) Intern(s string) *object.String {
	if existing, ok := v.strings[s]; ok {
		return existing
	}
	str := object.NewString(s)
	v.heap.Register(str, len(s)+16)
	v.strings[s] = str
	return str
}

// InternedValue is a convenience wrapper returning value.Obj(v.Intern(s)).
func (v *Vm) InternedValue(s string) value.Value { return value.Obj(v.Intern(s)) }

// Class looks up a built-in class by name (e.g. "TypeError", "Exception").
func (v *Vm) Class(name string) *object.Class { return v.classes[name] }

// RegisterModule installs a ready-made module (used by pkg/builtins to
// expose os/io/math as importable names).
func (v *Vm) RegisterModule(m *object.Module) {
	v.heap.Register(m, 128)
	v.modules[m.Name] = m
}

// Module looks up an already-registered module by name.
func (v *Vm) Module(name string) (*object.Module, bool) {
	m, ok := v.modules[name]
	return m, ok
}

// NewInstance allocates a fresh Instance of class, registering it on the
// heap.
func (v *Vm) NewInstance(class *object.Class) *object.Instance {
	inst := object.NewInstance(class)
	v.heap.Register(inst, 64)
	return inst
}

// NewList allocates a fresh List.
func (v *Vm) NewList(items []value.Value) *object.List {
	l := object.NewList(items)
	v.heap.Register(l, 32+16*len(items))
	return l
}

// NewDict allocates a fresh Dict.
func (v *Vm) NewDict() *object.Dict {
	d := object.NewDict()
	v.heap.Register(d, 48)
	return d
}

// NewTuple allocates a fresh Tuple.
func (v *Vm) NewTuple(items []value.Value) *object.Tuple {
	t := object.NewTuple(items)
	v.heap.Register(t, 32+16*len(items))
	return t
}

// NewClosure allocates a fresh Closure over code, sharing globals with the
// given module (or the main module's globals if mod is nil).
func (v *Vm) NewClosure(code *bytecode.CodeObject, mod *object.Module) *object.Closure {
	g := v.globalsFor(mod)
	c := object.NewClosure(code, g, mod)
	v.heap.Register(c, 96)
	return c
}

func (v *Vm) globalsFor(mod *object.Module) *table.Table {
	if mod != nil {
		return mod.Globals
	}
	return v.mainModule().Globals
}

func (v *Vm) mainModule() *object.Module {
	if m, ok := v.modules["__main__"]; ok {
		return m
	}
	m := object.NewModule("__main__")
	v.SeedBuiltins(m.Globals)
	v.RegisterModule(m)
	return m
}

// SeedBuiltins installs every built-in exception/type class as a global
// name in g, so source compiled against that scope can name them directly
// in a `raise` expression or an `except ClassName:` clause without an
// import. Called for the main module and for any module pkg/builtins
// constructs.
func (v *Vm) SeedBuiltins(g *table.Table) {
	for name, c := range v.classes {
		g.Set(v.InternedValue(name), value.Obj(c))
	}
	g.Set(v.InternedValue("isinstance"), value.Obj(object.NewNativeFn("isinstance", isinstanceBuiltin)))
	g.Set(v.InternedValue("contains"), value.Obj(object.NewNativeFn("contains", containsBuiltin)))
	g.Set(v.InternedValue("append"), value.Obj(object.NewNativeFn("append", appendBuiltin)))
	g.Set(v.InternedValue("print"), value.Obj(object.NewNativeFn("print", printBuiltin)))
	g.Set(v.InternedValue("len"), value.Obj(object.NewNativeFn("len", lenBuiltin)))
	g.Set(v.InternedValue("str"), value.Obj(object.NewNativeFn("str", strBuiltin)))
	g.Set(v.InternedValue("repr"), value.Obj(object.NewNativeFn("repr", reprBuiltin)))
	g.Set(v.InternedValue("type"), value.Obj(object.NewNativeFn("type", typeBuiltin)))
	g.Set(v.InternedValue("range"), value.Obj(object.NewNativeFn("range", rangeBuiltin)))
	g.Set(v.InternedValue("NotImplemented"), value.NotImplemented())
}

// rangeBuiltin backs `range(stop)` / `range(start, stop)` /
// `range(start, stop, step)`, eagerly materializing a list the way the
// interpreter's other sequence builtins do rather than a lazy iterator.
func rangeBuiltin(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	t, ok := inv.(*Thread)
	if !ok {
		return value.None(), nil
	}
	var start, stop, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		stop = args[0].AsInt()
	case 2:
		start, stop = args[0].AsInt(), args[1].AsInt()
	case 3:
		start, stop, step = args[0].AsInt(), args[1].AsInt(), args[2].AsInt()
		if step == 0 {
			return value.None(), t.Raise(t.vm.Class("ValueError"), "range() step argument must not be zero")
		}
	default:
		return value.None(), t.Raise(t.vm.Class("ArgumentError"), "range expected 1 to 3 arguments")
	}
	var items []value.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			items = append(items, value.Int(i))
		}
	} else {
		for i := start; i > stop; i += step {
			items = append(items, value.Int(i))
		}
	}
	return value.Obj(t.vm.NewList(items)), nil
}

// printBuiltin backs the bare `print(...)` call with no import required: it
// stringifies every argument with displayString (dispatching to a class's
// __str__ where one exists) and writes them space-joined to the owning
// Vm's Stdout, matching io.print's behavior so either spelling works.
func printBuiltin(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	t, ok := inv.(*Thread)
	if !ok {
		return value.None(), nil
	}
	parts := make([]string, len(args))
	for i, a := range args {
		s, err := displayString(t, a)
		if err != nil {
			return value.None(), err
		}
		parts[i] = s
	}
	fmt.Fprintln(t.vm.Stdout, strings.Join(parts, " "))
	return value.None(), nil
}

// displayString renders v the way print/str() does: a class's __str__ is
// called if defined, an exception instance without one renders its
// message, otherwise object.Str's built-in formatting is used.
func displayString(inv object.Invoker, v value.Value) (string, error) {
	if inst, ok := v.AsObject().(*object.Instance); ok {
		if m, ok := inst.Class.Str(); ok {
			result, err := inv.Call(m, []value.Value{v}, nil)
			if err != nil {
				return "", err
			}
			return object.Str(result), nil
		}
		if t, ok := inv.(*Thread); ok && inst.Class.IsSubclass(t.vm.Class("Exception")) {
			if msg, ok := inst.Fields.Get(t.vm.InternedValue("message")); ok {
				return object.Str(msg), nil
			}
		}
	}
	return object.Str(v), nil
}

// lenBuiltin backs `len(x)` for list/tuple/dict/str.
func lenBuiltin(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	t, ok := inv.(*Thread)
	if !ok || len(args) != 1 {
		return value.None(), nil
	}
	switch x := args[0].AsObject().(type) {
	case *object.List:
		return value.Int(int64(len(x.Items))), nil
	case *object.Tuple:
		return value.Int(int64(len(x.Items))), nil
	case *object.Dict:
		return value.Int(int64(x.Len())), nil
	case *object.String:
		return value.Int(int64(x.Len())), nil
	default:
		return value.None(), t.Raise(t.vm.Class("TypeError"), "object has no len()")
	}
}

// strBuiltin backs `str(x)`.
func strBuiltin(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	t, ok := inv.(*Thread)
	if !ok || len(args) != 1 {
		return value.None(), nil
	}
	s, err := displayString(inv, args[0])
	if err != nil {
		return value.None(), err
	}
	return value.Obj(t.vm.Intern(s)), nil
}

// reprBuiltin backs `repr(x)`, dispatching to a class's __repr__ where one
// exists before falling back to object.Repr's default formatting.
func reprBuiltin(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	t, ok := inv.(*Thread)
	if !ok || len(args) != 1 {
		return value.None(), nil
	}
	v := args[0]
	if inst, ok := v.AsObject().(*object.Instance); ok {
		if m, ok := inst.Class.Repr(); ok {
			result, err := inv.Call(m, []value.Value{v}, nil)
			if err != nil {
				return value.None(), err
			}
			return value.Obj(t.vm.Intern(object.Str(result))), nil
		}
	}
	return value.Obj(t.vm.Intern(object.Repr(v))), nil
}

// typeBuiltin backs `type(x)`. For a managed instance this is its actual
// class, usable directly in an isinstance() check; for everything else
// (int, str, list, ...) there is no class object to hand back, so it
// returns the interned type name instead.
func typeBuiltin(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	t, ok := inv.(*Thread)
	if !ok || len(args) != 1 {
		return value.None(), nil
	}
	if inst, ok := args[0].AsObject().(*object.Instance); ok {
		return value.Obj(inst.Class), nil
	}
	return value.Obj(t.vm.Intern(object.TypeName(args[0]))), nil
}

// isinstanceBuiltin backs the global `isinstance(obj, class)` every
// except-clause's class test compiles down to, since the dispatch loop
// has no dedicated opcode for it.
func isinstanceBuiltin(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	if len(args) != 2 {
		return value.Bool(false), nil
	}
	cls, ok := args[1].AsObject().(*object.Class)
	if !ok {
		return value.Bool(false), nil
	}
	inst, ok := args[0].AsObject().(*object.Instance)
	if !ok {
		return value.Bool(false), nil
	}
	return value.Bool(inst.Class.IsSubclass(cls)), nil
}

// appendBuiltin backs the global `append(list, item)`, the one mutating
// sequence operation managed code needs that has no subscript-assignment
// equivalent (growing a list, as opposed to overwriting an existing slot).
func appendBuiltin(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	if len(args) != 2 {
		return value.None(), nil
	}
	if lst, ok := args[0].AsObject().(*object.List); ok {
		lst.Append(args[1])
	}
	return value.None(), nil
}

// containsBuiltin backs the global `contains(seq, item)` every compiled
// `in` comparison calls, since the dispatch loop has no dedicated opcode
// for sequence membership.
func containsBuiltin(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	if len(args) != 2 {
		return value.Bool(false), nil
	}
	seq, item := args[0], args[1]
	switch s := seq.AsObject().(type) {
	case *object.List:
		for _, v := range s.Items {
			if v.Equal(item) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case *object.Tuple:
		for _, v := range s.Items {
			if v.Equal(item) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case *object.Dict:
		_, ok := s.Get(item)
		return value.Bool(ok), nil
	case *object.String:
		if itemStr, ok := item.AsObject().(*object.String); ok {
			return value.Bool(strings.Contains(s.Go(), itemStr.Go())), nil
		}
		return value.Bool(false), nil
	}
	return value.Bool(false), nil
}

// MainThread returns the Vm's top-level thread.
func (v *Vm) MainThread() *Thread { return v.main }

// MainModule returns the Vm's top-level module, creating it (with its
// globals seeded by SeedBuiltins) on first use. Exported so an embedder
// can compile top-level source against its Globals table before running.
func (v *Vm) MainModule() *object.Module { return v.mainModule() }

// CollectIfNeeded runs a GC cycle if the heap's allocation pacing says to,
// rooting at the main thread's stack/frames/open-upvalues plus the intern
// table, built-in classes, and module table.
func (v *Vm) CollectIfNeeded() {
	v.heap.CollectIfNeeded(v.markRoots)
}

func (v *Vm) markRoots(mark func(value.Value)) {
	for _, s := range v.strings {
		mark(value.Obj(s))
	}
	for _, c := range v.classes {
		mark(value.Obj(c))
	}
	for _, m := range v.modules {
		mark(value.Obj(m))
	}
	t := v.main
	for _, val := range t.stack {
		mark(val)
	}
	for _, f := range t.frames {
		mark(value.Obj(f.closure))
	}
	for _, uv := range t.open {
		mark(value.Obj(uv))
	}
}
