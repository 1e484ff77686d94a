package vm

import (
	"kuroko/pkg/bytecode"
	"kuroko/pkg/object"
	"kuroko/pkg/value"
)

// Call implements object.Invoker: invoke callee with args/kwargs and block
// until it returns a value, recursing into the dispatch loop if callee is
// managed code. Used by native functions and property getters/setters
// that need to call back into Kuroko code, and by class instantiation
// (which must finish running __init__ before yielding the new instance).
func (t *Thread) Call(callee value.Value, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	result, pushed, err := t.prepareCall(callee, args, kwargs)
	if err != nil {
		return value.None(), err
	}
	if !pushed {
		return result, nil
	}
	depth := len(t.frames) - 1
	return t.runUntil(depth)
}

// maximumCallDepth bounds the thread's frame stack; a managed call that
// would exceed it raises RecursionError instead of growing t.stack and
// t.frames without limit.
const maximumCallDepth = 1024

// stepIterator advances it one step under the call-yourself protocol:
// *object.Iterator short-circuits to its own Step (no VM call overhead for
// the built-in eager iterators), while anything else — a user instance
// whose __iter__ returned itself because its class defines __call__ — is
// invoked with zero arguments like any other callable.
func (t *Thread) stepIterator(it value.Value) (value.Value, error) {
	if iter, ok := it.AsObject().(*object.Iterator); ok {
		return iter.Step(), nil
	}
	return t.Call(it, nil, nil)
}

// prepareCall resolves one call: for a Closure it binds arguments into a
// fresh frame and pushes it (the caller's loop is expected to execute that
// frame next), reporting pushed=true and no result yet; for everything
// else (native functions, bound methods, class construction) it runs to
// completion synchronously and reports the result directly.
func (t *Thread) prepareCall(callee value.Value, args []value.Value, kwargs *object.Dict) (result value.Value, pushed bool, err error) {
	if !callee.IsObject() {
		return value.None(), false, t.Raise(t.vm.Class("TypeError"), "'"+object.TypeName(callee)+"' object is not callable")
	}
	switch c := callee.AsObject().(type) {
	case *object.Closure:
		if len(t.frames) >= maximumCallDepth {
			return value.None(), false, t.Raise(t.vm.Class("RecursionError"), "maximum recursion depth exceeded")
		}
		f, err := t.bindFrame(c, args, kwargs)
		if err != nil {
			return value.None(), false, err
		}
		t.pushFrame(f)
		t.traceCall(c.Code.Name)
		return value.None(), true, nil

	case *object.NativeFn:
		v, err := c.Fn(t, args, kwargs)
		return v, false, err

	case *object.BoundMethod:
		full := make([]value.Value, 0, len(args)+1)
		full = append(full, c.Receiver)
		full = append(full, args...)
		return t.prepareCall(c.Method, full, kwargs)

	case *object.Class:
		if c.Native != nil {
			v, err := c.Native(t, args, kwargs)
			return v, false, err
		}
		inst := t.vm.NewInstance(c)
		if initFn, ok := c.Init(); ok {
			full := make([]value.Value, 0, len(args)+1)
			full = append(full, value.Obj(inst))
			full = append(full, args...)
			if _, err := t.Call(initFn, full, kwargs); err != nil {
				return value.None(), false, err
			}
		}
		return value.Obj(inst), false, nil

	case *object.Instance:
		if callMethod, ok := c.Class.CallMethod(); ok {
			full := make([]value.Value, 0, len(args)+1)
			full = append(full, callee)
			full = append(full, args...)
			return t.prepareCall(callMethod, full, kwargs)
		}
		return value.None(), false, t.Raise(t.vm.Class("TypeError"), "'"+object.TypeName(callee)+"' object is not callable")

	default:
		return value.None(), false, t.Raise(t.vm.Class("TypeError"), "'"+callee.Kind().String()+"' object is not callable")
	}
}

// bindFrame allocates the new frame's locals on the thread stack,
// following the code object's ArgDesc: required and optional positional
// parameters, a *args slot, keyword-only parameters satisfied from
// kwargs, and a **kwargs slot.
func (t *Thread) bindFrame(c *object.Closure, args []value.Value, kwargs *object.Dict) (*frame, error) {
	desc := c.Code.Args
	base := len(t.stack)

	nPos := desc.TotalPositional()
	for i := 0; i < c.Code.LocalCount; i++ {
		t.push(value.None())
	}

	n := len(args)
	if n > nPos && !desc.HasVararg {
		return nil, t.Raise(t.vm.Class("ArgumentError"), "too many positional arguments")
	}
	for i := 0; i < nPos; i++ {
		if i < n {
			t.stack[base+i] = args[i]
		} else if i < desc.Required {
			return nil, t.Raise(t.vm.Class("ArgumentError"), "missing required argument")
		} else if di := i - desc.Required; di < len(c.Defaults) {
			t.stack[base+i] = c.Defaults[di]
		}
	}
	if desc.HasVararg {
		var extra []value.Value
		if n > nPos {
			extra = append(extra, args[nPos:]...)
		}
		t.stack[base+desc.VarargSlot] = value.Obj(t.vm.NewTuple(extra))
	}
	if kwargs != nil {
		kwargs.Each(func(k, v value.Value) {
			name := object.Str(k)
			for i, ln := range c.Code.LocalNames {
				if ln == name && i < base+len(t.stack) {
					t.stack[base+i] = v
					return
				}
			}
		})
	}
	if desc.HasKwarg {
		t.stack[base+desc.KwargSlot] = value.Obj(t.vm.NewDict())
	}

	return &frame{closure: c, ip: 0, baseSlot: base}, nil
}

// Execute runs a freshly compiled module-level code object to completion
// on the thread, returning its implicit final value (None for a plain
// script).
func (t *Thread) Execute(code *bytecode.CodeObject, mod *object.Module) (value.Value, error) {
	cl := t.vm.NewClosure(code, mod)
	depth := len(t.frames)
	t.pushFrame(&frame{closure: cl, ip: 0, baseSlot: len(t.stack)})
	for i := 0; i < code.LocalCount; i++ {
		t.push(value.None())
	}
	return t.runUntil(depth)
}
