package bytecode

import (
	"testing"

	"kuroko/pkg/value"
)

func TestOperandWidth(t *testing.T) {
	if OpReturn.OperandWidth() != 0 {
		t.Errorf("OpReturn.OperandWidth() = %d, want 0", OpReturn.OperandWidth())
	}
	if OpConstant.OperandWidth() != 2 {
		t.Errorf("OpConstant.OperandWidth() = %d, want 2", OpConstant.OperandWidth())
	}
	if OpJump.OperandWidth() != 2 {
		t.Errorf("OpJump.OperandWidth() = %d, want 2", OpJump.OperandWidth())
	}
}

func TestOpcodeStringKnownAndUnknown(t *testing.T) {
	if got := OpAdd.String(); got != "ADD" {
		t.Errorf("OpAdd.String() = %q, want %q", got, "ADD")
	}
	if got := Opcode(255).String(); got != "UNKNOWN" {
		t.Errorf("Opcode(255).String() = %q, want %q", got, "UNKNOWN")
	}
}

func TestWriteOpAndWriteOpShort(t *testing.T) {
	var c Code
	c.WriteOp(OpPop)
	at := c.WriteOpShort(OpConstant, 0x1234)
	if c.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", c.Len())
	}
	if Opcode(c.Bytes[at]) != OpConstant {
		t.Errorf("opcode byte at recorded offset is wrong")
	}
	if got := c.ReadShort(at + 1); got != 0x1234 {
		t.Errorf("ReadShort() = %#x, want %#x", got, 0x1234)
	}
}

func TestPatchShortRewritesOperand(t *testing.T) {
	var c Code
	at := c.WriteOpShort(OpJump, 0)
	c.PatchShort(at, 0xbeef)
	if got := c.ReadShort(at + 1); got != 0xbeef {
		t.Errorf("ReadShort() after PatchShort = %#x, want %#x", got, 0xbeef)
	}
}

func TestLineTableCollapsesRunsOnSameLine(t *testing.T) {
	var lt LineTable
	lt.Add(0, 1)
	lt.Add(1, 1)
	lt.Add(2, 1)
	lt.Add(3, 2)
	if len(lt.Entries) != 2 {
		t.Fatalf("Entries = %v, want 2 entries (one run per line)", lt.Entries)
	}
}

func TestLineTableLineFor(t *testing.T) {
	var lt LineTable
	lt.Add(0, 1)
	lt.Add(5, 2)
	lt.Add(10, 3)

	tests := []struct {
		offset int
		want   int
	}{
		{0, 1}, {4, 1}, {5, 2}, {9, 2}, {10, 3}, {100, 3},
	}
	for _, tt := range tests {
		if got := lt.LineFor(tt.offset); got != tt.want {
			t.Errorf("LineFor(%d) = %d, want %d", tt.offset, got, tt.want)
		}
	}
}

func TestArgDescTotalPositional(t *testing.T) {
	a := ArgDesc{Required: 2, Optional: 1}
	if a.TotalPositional() != 3 {
		t.Errorf("TotalPositional() = %d, want 3", a.TotalPositional())
	}
}

func TestCodeObjectTraceVisitsConstants(t *testing.T) {
	co := &CodeObject{Constants: []value.Value{value.Int(1), value.Int(2)}}
	var seen []int64
	co.Trace(func(v value.Value) { seen = append(seen, v.AsInt()) })
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("Trace visited %v, want [1 2]", seen)
	}
}

func TestCodeObjectStringUsesModuleNameWhenAnonymous(t *testing.T) {
	co := &CodeObject{}
	if got := co.String(); got != "<code object <module>>" {
		t.Errorf("String() = %q, want %q", got, "<code object <module>>")
	}
	co.Name = "f"
	if got := co.String(); got != "<code object f>" {
		t.Errorf("String() = %q, want %q", got, "<code object f>")
	}
}
