package builtins

import (
	"math"

	"kuroko/pkg/object"
	"kuroko/pkg/value"
	"kuroko/pkg/vm"
)

// installMath builds the math module: a handful of constants and
// functions, each a thin wrapper over the stdlib math package.
func installMath(v *vm.Vm) {
	m := object.NewModule("math")

	set(v, m, "pi", value.Float(math.Pi))
	set(v, m, "e", value.Float(math.E))

	setNative(v, m, "sqrt", mathUnary(math.Sqrt))
	setNative(v, m, "floor", mathUnary(math.Floor))
	setNative(v, m, "ceil", mathUnary(math.Ceil))
	setNative(v, m, "abs", mathUnary(math.Abs))
	setNative(v, m, "pow", mathBinary(math.Pow))

	v.RegisterModule(m)
}

func mathUnary(fn func(float64) float64) func(object.Invoker, []value.Value, *object.Dict) (value.Value, error) {
	return func(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
		x, ok := floatOf(args)
		if !ok {
			return value.None(), nil
		}
		return value.Float(fn(x)), nil
	}
}

func mathBinary(fn func(float64, float64) float64) func(object.Invoker, []value.Value, *object.Dict) (value.Value, error) {
	return func(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
		if len(args) != 2 {
			return value.None(), nil
		}
		a, ok1 := numericValue(args[0])
		b, ok2 := numericValue(args[1])
		if !ok1 || !ok2 {
			return value.None(), nil
		}
		return value.Float(fn(a, b)), nil
	}
}

func floatOf(args []value.Value) (float64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	return numericValue(args[0])
}

func numericValue(v value.Value) (float64, bool) {
	switch {
	case v.IsInt():
		return float64(v.AsInt()), true
	case v.IsFloat():
		return v.AsFloat(), true
	default:
		return 0, false
	}
}
