package object

import (
	"fmt"
	"strconv"
	"strings"

	"kuroko/pkg/value"
)

// Repr returns the default textual representation of v, used by error
// messages, the repr() builtin, and as the fallback when a class defines
// neither __str__ nor __repr__. User-visible __str__/__repr__ dispatch for
// instances is the VM's job (it needs Invoker to call the method); this
// covers every value the interpreter can format without calling back into
// managed code.
func Repr(v value.Value) string {
	switch v.Kind() {
	case value.KindNone:
		return "None"
	case value.KindBool:
		if v.AsBool() {
			return "True"
		}
		return "False"
	case value.KindInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case value.KindFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case value.KindNotImplemented:
		return "NotImplemented"
	case value.KindKwargs:
		return "<kwargs>"
	case value.KindObject:
		return reprObject(v.AsObject())
	default:
		return "?"
	}
}

func reprObject(o value.Object) string {
	switch t := o.(type) {
	case *String:
		return strconv.Quote(t.s)
	case *Bytes:
		return fmt.Sprintf("b%q", string(t.B))
	case *Tuple:
		return reprSeq("(", ")", t.Items, len(t.Items) == 1)
	case *List:
		return reprSeq("[", "]", t.Items, false)
	case *Dict:
		var b strings.Builder
		b.WriteByte('{')
		first := true
		t.Each(func(k, v value.Value) {
			if !first {
				b.WriteString(", ")
			}
			first = false
			b.WriteString(Repr(k))
			b.WriteString(": ")
			b.WriteString(Repr(v))
		})
		b.WriteByte('}')
		return b.String()
	case *Class:
		return "<class " + t.Name + ">"
	case *Instance:
		return "<" + t.Class.Name + " instance>"
	case *Closure:
		name := t.Code.Name
		if name == "" {
			name = "<anonymous>"
		}
		return "<function " + name + ">"
	case *NativeFn:
		return "<built-in function " + t.Name + ">"
	case *BoundMethod:
		return "<bound method " + Repr(t.Method) + ">"
	case *Module:
		return "<module " + t.Name + ">"
	case *Property:
		return "<property " + t.Name + ">"
	default:
		return "<object>"
	}
}

func reprSeq(open, close string, items []value.Value, trailingComma bool) string {
	var b strings.Builder
	b.WriteString(open)
	for i, v := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Repr(v))
	}
	if trailingComma {
		b.WriteByte(',')
	}
	b.WriteString(close)
	return b.String()
}

// Str returns the display form of v: like Repr but strings render their
// raw bytes rather than a quoted literal, matching `str()`/`print()`
// versus `repr()`.
func Str(v value.Value) string {
	if v.IsObject() {
		if s, ok := v.AsObject().(*String); ok {
			return s.s
		}
	}
	return Repr(v)
}

// TypeName returns the user-facing type name of v, used by error messages
// and the `type()` builtin.
func TypeName(v value.Value) string {
	switch v.Kind() {
	case value.KindNone:
		return "NoneType"
	case value.KindBool:
		return "bool"
	case value.KindInt:
		return "int"
	case value.KindFloat:
		return "float"
	case value.KindNotImplemented:
		return "NotImplementedType"
	case value.KindKwargs:
		return "kwargs"
	case value.KindObject:
		if inst, ok := v.AsObject().(*Instance); ok {
			return inst.Class.Name
		}
		return v.AsObject().Kind()
	default:
		return "unknown"
	}
}
