package compiler

import (
	"testing"

	"kuroko/pkg/bytecode"
)

func opcodesOf(t *testing.T, code *bytecode.CodeObject) []bytecode.Opcode {
	t.Helper()
	var ops []bytecode.Opcode
	b := code.Code.Bytes
	for i := 0; i < len(b); {
		op := bytecode.Opcode(b[i])
		ops = append(ops, op)
		i += 1 + op.OperandWidth()
	}
	return ops
}

func TestCompileModuleLevelAssignEndsWithNilReturn(t *testing.T) {
	code, err := CompileSource("x = 1\n", "<test>")
	if err != nil {
		t.Fatalf("CompileSource error: %v", err)
	}
	ops := opcodesOf(t, code)
	want := []bytecode.Opcode{
		bytecode.OpConstant, bytecode.OpSetGlobal, bytecode.OpPop,
		bytecode.OpNil, bytecode.OpReturn,
	}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("op %d = %v, want %v (full: %v)", i, ops[i], want[i], ops)
		}
	}
}

func TestCompileGlobalAssignStoresNameConstant(t *testing.T) {
	code, err := CompileSource("x = 1\n", "<test>")
	if err != nil {
		t.Fatalf("CompileSource error: %v", err)
	}
	found := false
	for _, k := range code.Constants {
		if s, ok := k.AsObject().(interface{ Go() string }); ok && s.Go() == "x" {
			found = true
		}
	}
	if !found {
		t.Errorf("constant pool %v does not contain the global name %q", code.Constants, "x")
	}
}

func TestCompileFunctionLocalUsesGetSetLocal(t *testing.T) {
	code, err := CompileSource("def f(a):\n    b = a\n    return b\n", "<test>")
	if err != nil {
		t.Fatalf("CompileSource error: %v", err)
	}
	var fn *bytecode.CodeObject
	for _, k := range code.Constants {
		if c, ok := k.AsObject().(*bytecode.CodeObject); ok {
			fn = c
		}
	}
	if fn == nil {
		t.Fatalf("expected a nested CodeObject for def f in constants %v", code.Constants)
	}
	ops := opcodesOf(t, fn)
	hasGetLocal, hasSetLocal := false, false
	for _, op := range ops {
		if op == bytecode.OpGetLocal {
			hasGetLocal = true
		}
		if op == bytecode.OpSetLocal {
			hasSetLocal = true
		}
		if op == bytecode.OpGetGlobal || op == bytecode.OpSetGlobal {
			t.Errorf("function body used a global opcode %v; params/assigned names should resolve as locals", op)
		}
	}
	if !hasGetLocal || !hasSetLocal {
		t.Errorf("ops = %v, want both GET_LOCAL and SET_LOCAL", ops)
	}
}

func TestCompileFunctionLocalCountIncludesParam(t *testing.T) {
	code, err := CompileSource("def f(a, b):\n    c = a\n    return c\n", "<test>")
	if err != nil {
		t.Fatalf("CompileSource error: %v", err)
	}
	var fn *bytecode.CodeObject
	for _, k := range code.Constants {
		if c, ok := k.AsObject().(*bytecode.CodeObject); ok {
			fn = c
		}
	}
	if fn == nil {
		t.Fatalf("expected a nested CodeObject for def f")
	}
	if fn.LocalCount < 3 {
		t.Errorf("LocalCount = %d, want at least 3 (a, b, c)", fn.LocalCount)
	}
	if fn.Args.Required != 2 {
		t.Errorf("Args.Required = %d, want 2", fn.Args.Required)
	}
}

func TestCompileGlobalStatementForcesGlobalStore(t *testing.T) {
	code, err := CompileSource("x = 0\ndef f():\n    global x\n    x = 1\n", "<test>")
	if err != nil {
		t.Fatalf("CompileSource error: %v", err)
	}
	var fn *bytecode.CodeObject
	for _, k := range code.Constants {
		if c, ok := k.AsObject().(*bytecode.CodeObject); ok {
			fn = c
		}
	}
	if fn == nil {
		t.Fatalf("expected a nested CodeObject for def f")
	}
	ops := opcodesOf(t, fn)
	foundGlobalSet := false
	for _, op := range ops {
		if op == bytecode.OpSetGlobal {
			foundGlobalSet = true
		}
		if op == bytecode.OpSetLocal {
			t.Errorf("`global x; x = 1` should not compile to SET_LOCAL")
		}
	}
	if !foundGlobalSet {
		t.Errorf("ops = %v, want a SET_GLOBAL for the declared global", ops)
	}
}

func TestCompileClosureCapturesUpvalue(t *testing.T) {
	src := "def outer():\n    x = 1\n    def inner():\n        return x\n    return inner\n"
	code, err := CompileSource(src, "<test>")
	if err != nil {
		t.Fatalf("CompileSource error: %v", err)
	}
	var outer *bytecode.CodeObject
	for _, k := range code.Constants {
		if c, ok := k.AsObject().(*bytecode.CodeObject); ok {
			outer = c
		}
	}
	if outer == nil {
		t.Fatalf("expected a nested CodeObject for def outer")
	}
	var inner *bytecode.CodeObject
	for _, k := range outer.Constants {
		if c, ok := k.AsObject().(*bytecode.CodeObject); ok {
			inner = c
		}
	}
	if inner == nil {
		t.Fatalf("expected a nested CodeObject for def inner")
	}
	if len(inner.Upvalues) != 1 || !inner.Upvalues[0].IsLocal {
		t.Errorf("inner.Upvalues = %+v, want one local-capturing upvalue", inner.Upvalues)
	}
}

func TestCompileSourcePropagatesParseError(t *testing.T) {
	_, err := CompileSource("def f(:\n    pass\n", "<test>")
	if err == nil {
		t.Errorf("expected an error for malformed source")
	}
}
