package object

import (
	"testing"

	"kuroko/pkg/value"
)

// fakeInvoker is a minimal Invoker that calls NativeFn/Closure-shaped
// values directly, enough to exercise property getter/setter dispatch.
type fakeInvoker struct{}

func (fakeInvoker) Call(callee value.Value, args []value.Value, kwargs *Dict) (value.Value, error) {
	fn, ok := callee.AsObject().(*NativeFn)
	if !ok {
		return value.None(), nil
	}
	return fn.Fn(fakeInvoker{}, args, kwargs)
}

func (fakeInvoker) Raise(class *Class, message string) error {
	return NewException(value.Obj(NewInstance(class)))
}

func TestGetAttrInstanceField(t *testing.T) {
	c := NewClass("Point", nil)
	inst := NewInstance(c)
	inst.Fields.Set(value.Obj(NewString("x")), value.Int(5))

	v, ok, err := GetAttr(fakeInvoker{}, value.Obj(inst), "x")
	if err != nil || !ok || v.AsInt() != 5 {
		t.Fatalf("GetAttr(x) = (%v, %v, %v), want (5, true, nil)", v, ok, err)
	}
}

func TestGetAttrMissingReturnsNotFound(t *testing.T) {
	c := NewClass("Point", nil)
	inst := NewInstance(c)
	_, ok, err := GetAttr(fakeInvoker{}, value.Obj(inst), "missing")
	if err != nil || ok {
		t.Fatalf("GetAttr(missing) = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestGetAttrBindsMethodToInstance(t *testing.T) {
	c := NewClass("Greeter", nil)
	method := NewNativeFn("hello", func(inv Invoker, args []value.Value, kwargs *Dict) (value.Value, error) {
		return value.None(), nil
	})
	c.Methods.Set(value.Obj(NewString("hello")), value.Obj(method))
	inst := NewInstance(c)

	v, ok, err := GetAttr(fakeInvoker{}, value.Obj(inst), "hello")
	if err != nil || !ok {
		t.Fatalf("GetAttr(hello) = (_, %v, %v), want (_, true, nil)", ok, err)
	}
	bound, ok := v.AsObject().(*BoundMethod)
	if !ok {
		t.Fatalf("GetAttr(hello) = %T, want *BoundMethod", v.AsObject())
	}
	if bound.Receiver != value.Obj(inst) {
		t.Errorf("BoundMethod.Receiver not set to the instance")
	}
}

func TestGetAttrInheritedMethod(t *testing.T) {
	base := NewClass("Base", nil)
	base.Methods.Set(value.Obj(NewString("greet")), value.Obj(NewNativeFn("greet", nil)))
	derived := NewClass("Derived", base)
	inst := NewInstance(derived)

	_, ok, err := GetAttr(fakeInvoker{}, value.Obj(inst), "greet")
	if err != nil || !ok {
		t.Fatalf("GetAttr should find a method defined on the base class")
	}
}

func TestDataDescriptorWinsOverInstanceField(t *testing.T) {
	c := NewClass("Temp", nil)
	getter := NewNativeFn("get_c", func(inv Invoker, args []value.Value, kwargs *Dict) (value.Value, error) {
		return value.Int(100), nil
	})
	setter := NewNativeFn("set_c", func(inv Invoker, args []value.Value, kwargs *Dict) (value.Value, error) {
		return value.None(), nil
	})
	prop := NewProperty("c", value.Obj(getter))
	prop.Setter = value.Obj(setter)
	c.Methods.Set(value.Obj(NewString("c")), value.Obj(prop))

	inst := NewInstance(c)
	inst.Fields.Set(value.Obj(NewString("c")), value.Int(5))

	v, ok, err := GetAttr(fakeInvoker{}, value.Obj(inst), "c")
	if err != nil || !ok || v.AsInt() != 100 {
		t.Fatalf("GetAttr(c) = (%v, %v, %v), want (100, true, nil): data descriptor should win over instance field", v, ok, err)
	}
}

func TestSetAttrOnInstanceCreatesField(t *testing.T) {
	c := NewClass("Point", nil)
	inst := NewInstance(c)
	if err := SetAttr(fakeInvoker{}, value.Obj(inst), "y", value.Int(9)); err != nil {
		t.Fatalf("SetAttr error: %v", err)
	}
	v, ok := inst.Fields.Get(value.Obj(NewString("y")))
	if !ok || v.AsInt() != 9 {
		t.Errorf("Fields[y] = (%v, %v), want (9, true)", v, ok)
	}
}

func TestSetAttrOnModule(t *testing.T) {
	m := NewModule("m")
	if err := SetAttr(fakeInvoker{}, value.Obj(m), "x", value.Int(1)); err != nil {
		t.Fatalf("SetAttr error: %v", err)
	}
	v, ok, err := GetAttr(fakeInvoker{}, value.Obj(m), "x")
	if err != nil || !ok || v.AsInt() != 1 {
		t.Fatalf("GetAttr(module.x) = (%v, %v, %v), want (1, true, nil)", v, ok, err)
	}
}

func TestDelAttrRemovesInstanceField(t *testing.T) {
	c := NewClass("Point", nil)
	inst := NewInstance(c)
	inst.Fields.Set(value.Obj(NewString("x")), value.Int(1))
	ok, err := DelAttr(fakeInvoker{}, value.Obj(inst), "x")
	if err != nil || !ok {
		t.Errorf("DelAttr(x) should report true for a present field, got (%v, %v)", ok, err)
	}
	if _, ok := inst.Fields.Get(value.Obj(NewString("x"))); ok {
		t.Errorf("field should be gone after DelAttr")
	}
}

func TestSetAttrOnPrimitiveFails(t *testing.T) {
	if err := SetAttr(fakeInvoker{}, value.Int(1), "x", value.Int(1)); err == nil {
		t.Errorf("SetAttr on a non-object receiver should return an error")
	}
}
