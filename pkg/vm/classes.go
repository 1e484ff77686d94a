package vm

import (
	"kuroko/pkg/object"
	"kuroko/pkg/value"
)

// registerBuiltinClasses installs the exception hierarchy try/except
// depends on: a root Exception class plus the handful of concrete
// subclasses the interpreter itself raises (type errors, index/key
// lookups, division by zero, name resolution, stop-iteration for `for`
// loops, argument-count and recursion-depth violations, failed asserts).
func registerBuiltinClasses(v *Vm) {
	object_ := object.NewClass("object", nil)
	object_.Finalize()
	v.classes["object"] = object_

	exception := object.NewClass("Exception", object_)
	exception.Native = exceptionConstructor(exception)
	exception.Finalize()
	v.classes["Exception"] = exception

	for _, name := range []string{
		"TypeError",
		"ValueError",
		"IndexError",
		"KeyError",
		"AttributeError",
		"ZeroDivisionError",
		"NameError",
		"StopIteration",
		"ImportError",
		"NotImplementedError",
		"ArgumentError",
		"RecursionError",
		"AssertionError",
	} {
		c := object.NewClass(name, exception)
		c.Native = exceptionConstructor(c)
		c.Finalize()
		v.classes[name] = c
	}

	for _, c := range v.classes {
		v.heap.Register(c, 128)
	}
}

// exceptionConstructor returns the Native constructor installed on cls (an
// Exception or one of its built-in subclasses): it builds a plain instance
// and, given a first argument, stores it under the "message" field the
// same way Thread.Raise does, so `raise SomeError("boom")` and `str(exc)`
// see the same message regardless of which path raised it.
func exceptionConstructor(cls *object.Class) func(object.Invoker, []value.Value, *object.Dict) (value.Value, error) {
	return func(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
		t, ok := inv.(*Thread)
		if !ok {
			return value.None(), nil
		}
		inst := t.vm.NewInstance(cls)
		if len(args) > 0 {
			inst.Fields.Set(t.vm.InternedValue("message"), args[0])
		}
		return value.Obj(inst), nil
	}
}
