// Package builtins is the native-function glue for the handful of
// standard-library modules the runtime core names but does not implement
// itself: os (args, env, exit), io (print, read), and math (a handful of
// functions). Each is built as an ordinary object.Module and registered on
// a Vm so OpImport can resolve "import os" / "import io" / "import math"
// the same way it resolves any other module.
package builtins

import (
	"kuroko/pkg/object"
	"kuroko/pkg/value"
	"kuroko/pkg/vm"
)

// Install registers os, io, and math on v. Called once by the embedder
// (cmd/kuroko's main) after vm.New, before any source is compiled or run.
func Install(v *vm.Vm) {
	installOS(v)
	installIO(v)
	installMath(v)
}

// set stores val under name in m's globals table, using v's intern table
// for the key so module attribute lookups (object.GetAttr on a *Module)
// share the same interned strings as everything else.
func set(v *vm.Vm, m *object.Module, name string, val value.Value) {
	m.Globals.Set(v.InternedValue(name), val)
}

// setNative wraps fn in a NativeFn named name and installs it into m.
func setNative(v *vm.Vm, m *object.Module, name string, fn func(object.Invoker, []value.Value, *object.Dict) (value.Value, error)) {
	set(v, m, name, value.Obj(object.NewNativeFn(name, fn)))
}
