package bytecode

import (
	"strings"
	"testing"

	"kuroko/pkg/value"
)

func TestDisassembleIncludesDecodedConstant(t *testing.T) {
	co := &CodeObject{
		Constants: []value.Value{value.Int(7)},
	}
	co.Lines.Add(0, 1)
	co.Code.WriteOpShort(OpConstant, 0)
	co.Code.WriteOp(OpReturn)

	out := Disassemble(co)
	if !strings.Contains(out, "CONSTANT") {
		t.Errorf("disassembly missing CONSTANT mnemonic:\n%s", out)
	}
	if !strings.Contains(out, "(7)") {
		t.Errorf("disassembly missing decoded constant value:\n%s", out)
	}
	if !strings.Contains(out, "RETURN") {
		t.Errorf("disassembly missing RETURN mnemonic:\n%s", out)
	}
}

func TestDisassembleRecursesIntoNestedCodeObjects(t *testing.T) {
	inner := &CodeObject{Name: "inner"}
	inner.Code.WriteOp(OpReturn)

	outer := &CodeObject{
		Name:      "outer",
		Constants: []value.Value{value.Obj(inner)},
	}
	outer.Code.WriteOpShort(OpMakeClosure, 0)
	outer.Code.WriteOp(OpReturn)

	out := Disassemble(outer)
	if !strings.Contains(out, "== outer ==") || !strings.Contains(out, "== inner ==") {
		t.Errorf("disassembly missing one of the expected section headers:\n%s", out)
	}
}

func TestDisassembleUnnamedModuleHeader(t *testing.T) {
	co := &CodeObject{}
	co.Code.WriteOp(OpReturn)
	out := Disassemble(co)
	if !strings.HasPrefix(out, "== <module> ==\n") {
		t.Errorf("disassembly header = %q, want it to start with %q", out, "== <module> ==\n")
	}
}
