package builtins

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"kuroko/pkg/object"
	"kuroko/pkg/value"
	"kuroko/pkg/vm"
)

// installIO builds the io module: print and read/readline. A single
// shared bufio.Reader over os.Stdin backs both read forms.
func installIO(v *vm.Vm) {
	m := object.NewModule("io")
	stdin := bufio.NewReader(os.Stdin)

	setNative(v, m, "print", func(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
		return ioPrint(v, args)
	})
	setNative(v, m, "read", func(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
		return ioReadLine(v, stdin)
	})
	setNative(v, m, "readline", func(inv object.Invoker, args []value.Value, kwargs *object.Dict) (value.Value, error) {
		return ioReadLine(v, stdin)
	})

	v.RegisterModule(m)
}

func ioPrint(v *vm.Vm, args []value.Value) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = object.Str(a)
	}
	fmt.Fprintln(v.Stdout, strings.Join(parts, " "))
	return value.None(), nil
}

func ioReadLine(v *vm.Vm, r *bufio.Reader) (value.Value, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return value.None(), nil
	}
	return value.Obj(v.Intern(strings.TrimRight(line, "\r\n"))), nil
}
