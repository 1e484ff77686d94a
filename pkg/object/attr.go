package object

import "fmt"

import "kuroko/pkg/value"

// GetAttr implements the attribute lookup protocol:
//
//  1. a data descriptor (Property with a setter) found on the class chain
//     always wins, even over an instance's own field of the same name;
//  2. otherwise the instance's own fields table is checked;
//  3. otherwise a non-data descriptor (getter-only Property) or a plain
//     method/value found on the class chain is used — methods are bound
//     to the instance via BoundMethod;
//  4. otherwise, if the class defines __getattr__, it is invoked with
//     name and its result used;
//  5. otherwise AttributeError (reported by the caller via inv.Raise,
//     since only the VM knows the AttributeError class).
func GetAttr(inv Invoker, recv value.Value, name string) (value.Value, bool, error) {
	switch r := recv.AsObject().(type) {
	case *Instance:
		if name == "__class__" {
			return value.Obj(r.Class), true, nil
		}
		if found, ok := r.Class.Lookup(name); ok {
			if prop, ok := found.AsObject().(*Property); ok && prop.IsDataDescriptor() {
				v, err := invokeGetter(inv, prop, recv)
				return v, true, err
			}
		}
		if v, ok := r.Fields.Get(value.Obj(NewString(name))); ok {
			return v, true, nil
		}
		if found, ok := r.Class.Lookup(name); ok {
			if prop, ok := found.AsObject().(*Property); ok {
				v, err := invokeGetter(inv, prop, recv)
				return v, true, err
			}
			return bindIfCallable(found, recv), true, nil
		}
		if getattr, ok := r.Class.GetAttrMethod(); ok {
			v, err := inv.Call(getattr, []value.Value{recv, value.Obj(NewString(name))}, nil)
			return v, true, err
		}
		return value.None(), false, nil
	case *Class:
		if v, ok := r.Lookup(name); ok {
			return v, true, nil
		}
		return value.None(), false, nil
	case *Module:
		if v, ok := r.Globals.Get(value.Obj(NewString(name))); ok {
			return v, true, nil
		}
		return value.None(), false, nil
	case *List:
		if name == "append" {
			return value.Obj(&BoundMethod{Receiver: recv, Method: value.Obj(NewNativeFn("append", listAppendMethod))}), true, nil
		}
		return value.None(), false, nil
	default:
		return value.None(), false, nil
	}
}

// listAppendMethod backs the attribute-style `list.append(item)` spelling
// (args[0] is the bound receiver, prepended by BoundMethod's caller).
func listAppendMethod(inv Invoker, args []value.Value, kwargs *Dict) (value.Value, error) {
	if len(args) != 2 {
		return value.None(), fmt.Errorf("append() takes exactly one argument")
	}
	lst, ok := args[0].AsObject().(*List)
	if !ok {
		return value.None(), fmt.Errorf("append() receiver is not a list")
	}
	lst.Append(args[1])
	return value.None(), nil
}

func invokeGetter(inv Invoker, prop *Property, recv value.Value) (value.Value, error) {
	if prop.Getter.IsNone() {
		return value.None(), fmt.Errorf("property %q has no getter", prop.Name)
	}
	return inv.Call(prop.Getter, []value.Value{recv}, nil)
}

// bindIfCallable wraps a class attribute in a BoundMethod when it is
// itself callable (a Closure or NativeFn), so `instance.method` yields a
// value that can be invoked without re-passing the receiver. Non-callable
// class attributes (e.g. a plain class-level constant) are returned as-is.
func bindIfCallable(v value.Value, recv value.Value) value.Value {
	switch v.AsObject().(type) {
	case *Closure, *NativeFn:
		return value.Obj(&BoundMethod{Receiver: recv, Method: v})
	default:
		return v
	}
}

// SetAttr implements the write side of the protocol: a data descriptor on
// the class chain wins and is invoked; otherwise a class-defined
// __setattr__ is called; otherwise the value is stored directly into the
// instance's fields table, creating the attribute if it didn't already
// exist.
func SetAttr(inv Invoker, recv value.Value, name string, val value.Value) error {
	switch r := recv.AsObject().(type) {
	case *Instance:
		if found, ok := r.Class.Lookup(name); ok {
			if prop, ok := found.AsObject().(*Property); ok && prop.IsDataDescriptor() {
				_, err := inv.Call(prop.Setter, []value.Value{recv, val}, nil)
				return err
			}
		}
		if setattr, ok := r.Class.SetAttrMethod(); ok {
			_, err := inv.Call(setattr, []value.Value{recv, value.Obj(NewString(name)), val}, nil)
			return err
		}
		r.Fields.Set(value.Obj(NewString(name)), val)
		return nil
	case *Module:
		r.Globals.Set(value.Obj(NewString(name)), val)
		return nil
	case *Class:
		// Used by class-body compilation to install a method or
		// class-level attribute directly into the class's own table,
		// bypassing instance-descriptor resolution.
		r.Methods.Set(value.Obj(NewString(name)), val)
		return nil
	default:
		return fmt.Errorf("cannot set attribute %q on %s", name, recv.Kind())
	}
}

// DelAttr removes an attribute, or reports false if there was none to
// remove. If the instance's class defines __delattr__, that override is
// invoked instead of deleting the field directly, and its success is
// assumed (err is non-nil only on a genuine call failure).
func DelAttr(inv Invoker, recv value.Value, name string) (bool, error) {
	switch r := recv.AsObject().(type) {
	case *Instance:
		if delattr, ok := r.Class.DelAttrMethod(); ok {
			_, err := inv.Call(delattr, []value.Value{recv, value.Obj(NewString(name))}, nil)
			return err == nil, err
		}
		return r.Fields.Delete(value.Obj(NewString(name))), nil
	case *Module:
		return r.Globals.Delete(value.Obj(NewString(name))), nil
	default:
		return false, nil
	}
}
