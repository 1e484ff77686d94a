// Bytecode is not a persistent artifact here, so instead of a
// serialization format this file gives the `-d` CLI flag and debugging
// tools a human-readable listing of a CodeObject, built on Opcode's own
// String() stringer.
package bytecode

import (
	"fmt"
	"strconv"
	"strings"

	"kuroko/pkg/value"
)

// Disassemble renders a full listing of c: one line per instruction,
// byte offset, mnemonic, and (for short-operand instructions) the decoded
// operand, recursing into any nested CodeObject constants.
func Disassemble(c *CodeObject) string {
	var b strings.Builder
	disassembleInto(&b, c)
	return b.String()
}

func disassembleInto(b *strings.Builder, c *CodeObject) {
	name := c.Name
	if name == "" {
		name = "<module>"
	}
	fmt.Fprintf(b, "== %s ==\n", name)

	offset := 0
	for offset < len(c.Code.Bytes) {
		op := Opcode(c.Code.Bytes[offset])
		line := c.Lines.LineFor(offset)
		fmt.Fprintf(b, "%4d %4d %s", offset, line, op.String())
		width := op.OperandWidth()
		var operand uint16
		if width == 2 {
			operand = c.Code.ReadShort(offset + 1)
			fmt.Fprintf(b, " %d", operand)
			if int(operand) < len(c.Constants) && (op == OpConstant || op == OpMakeClosure) {
				fmt.Fprintf(b, " (%s)", describeConstant(c.Constants[int(operand)]))
			}
		}
		b.WriteByte('\n')
		offset += 1 + width
		if op == OpMakeClosure && int(operand) < len(c.Constants) {
			if nested, ok := c.Constants[int(operand)].AsObject().(*CodeObject); ok {
				offset += len(nested.Upvalues) * 3
			}
		}
	}

	for _, k := range c.Constants {
		if nested, ok := k.AsObject().(*CodeObject); ok {
			b.WriteByte('\n')
			disassembleInto(b, nested)
		}
	}
}

// describeConstant gives a short human-readable rendering of a constant
// for the disassembly listing. It can't call into pkg/object's full
// Repr (object depends on bytecode for CodeObject, so the reverse import
// would cycle), so heap objects that implement fmt.Stringer (CodeObject
// does) print via that; anything else just names its Kind.
func describeConstant(v value.Value) string {
	switch v.Kind() {
	case value.KindNone:
		return "None"
	case value.KindBool:
		return strconv.FormatBool(v.AsBool())
	case value.KindInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case value.KindFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case value.KindObject:
		if s, ok := v.AsObject().(fmt.Stringer); ok {
			return s.String()
		}
		return v.AsObject().Kind()
	default:
		return v.Kind().String()
	}
}
