package builtins

import (
	"os"

	"kuroko/pkg/object"
	"kuroko/pkg/value"
	"kuroko/pkg/vm"
)

// installOS builds the os module: argv, getenv, setenv, and exit.
func installOS(v *vm.Vm) {
	m := object.NewModule("os")

	argv := make([]value.Value, len(os.Args))
	for i, a := range os.Args {
		argv[i] = v.InternedValue(a)
	}
	set(v, m, "argv", value.Obj(v.NewList(argv)))

	setNative(v, m, "getenv", osGetenv)
	setNative(v, m, "setenv", osSetenv)
	setNative(v, m, "exit", osExit)

	v.RegisterModule(m)
}

// osGetenv backs os.getenv(name[, default]).
func osGetenv(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	if len(args) < 1 {
		return value.None(), nil
	}
	name, ok := args[0].AsObject().(*object.String)
	if !ok {
		return value.None(), nil
	}
	val, found := os.LookupEnv(name.Go())
	if !found {
		if len(args) == 2 {
			return args[1], nil
		}
		return value.None(), nil
	}
	return value.Obj(object.NewString(val)), nil
}

// osSetenv backs os.setenv(name, value).
func osSetenv(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	if len(args) != 2 {
		return value.None(), nil
	}
	name, ok := args[0].AsObject().(*object.String)
	if !ok {
		return value.None(), nil
	}
	val, ok := args[1].AsObject().(*object.String)
	if !ok {
		return value.None(), nil
	}
	_ = os.Setenv(name.Go(), val.Go())
	return value.None(), nil
}

// osExit backs os.exit([code]), terminating the process directly: there is
// no managed unwinding path back through the interpreter once called.
func osExit(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
	code := 0
	if len(args) == 1 && args[0].IsInt() {
		code = int(args[0].AsInt())
	}
	os.Exit(code)
	return value.None(), nil
}
