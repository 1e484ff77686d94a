package vm

import (
	"kuroko/pkg/bytecode"
	"kuroko/pkg/object"
	"kuroko/pkg/value"
)

// runUntil is the dispatch loop: it executes instructions
// of the thread's topmost frame until the frame stack has unwound back to
// depth, then returns the value left by that frame's OpReturn. Calls to
// managed closures push a frame and let this same loop continue into it,
// so deep Kuroko call chains don't recurse on the Go stack; only calls
// made through Call (native callbacks, class construction) recurse, one
// Go stack frame per such synchronous call.
func (t *Thread) runUntil(depth int) (value.Value, error) {
	for len(t.frames) > depth {
		f := t.currentFrame()
		code := &f.closure.Code.Code
		op := bytecode.Opcode(code.Bytes[f.ip])
		line := f.ip
		opStart := f.ip
		f.ip++
		var operand uint16
		if op.OperandWidth() == 2 {
			operand = code.ReadShort(f.ip)
			f.ip += 2
		}
		_ = line

		var stepErr error

		switch op {
		case bytecode.OpConstant:
			t.push(f.closure.Code.Constants[operand])

		case bytecode.OpNil:
			t.push(value.None())
		case bytecode.OpTrue:
			t.push(value.Bool(true))
		case bytecode.OpFalse:
			t.push(value.Bool(false))
		case bytecode.OpNotImplemented:
			t.push(value.NotImplemented())

		case bytecode.OpPop:
			t.pop()
		case bytecode.OpDup:
			t.push(t.peek(0))
		case bytecode.OpSwap:
			a, b := t.pop(), t.pop()
			t.push(a)
			t.push(b)

		case bytecode.OpGetLocal:
			t.push(t.stack[f.baseSlot+int(operand)])
		case bytecode.OpSetLocal:
			t.stack[f.baseSlot+int(operand)] = t.peek(0)

		case bytecode.OpGetUpvalue:
			t.push(f.closure.Upvalues[operand].Get())
		case bytecode.OpSetUpvalue:
			f.closure.Upvalues[operand].Set(t.peek(0))
		case bytecode.OpCloseUpvalue:
			t.closeUpvaluesFrom(len(t.stack) - 1)
			t.pop()

		case bytecode.OpGetGlobal:
			name := object.Str(f.closure.Code.Constants[operand])
			if v, ok := f.closure.Globals.Get(t.vm.InternedValue(name)); ok {
				t.push(v)
			} else {
				stepErr = t.Raise(t.vm.Class("NameError"), "name '"+name+"' is not defined")
			}
		case bytecode.OpSetGlobal:
			name := object.Str(f.closure.Code.Constants[operand])
			f.closure.Globals.Set(t.vm.InternedValue(name), t.peek(0))
		case bytecode.OpDelGlobal:
			name := object.Str(f.closure.Code.Constants[operand])
			f.closure.Globals.Delete(t.vm.InternedValue(name))

		case bytecode.OpGetAttr:
			name := object.Str(f.closure.Code.Constants[operand])
			recv := t.pop()
			v, ok, err := object.GetAttr(t, recv, name)
			if err != nil {
				stepErr = err
			} else if !ok {
				stepErr = t.Raise(t.vm.Class("AttributeError"), "'"+object.TypeName(recv)+"' object has no attribute '"+name+"'")
			} else {
				t.push(v)
			}
		case bytecode.OpSetAttr:
			name := object.Str(f.closure.Code.Constants[operand])
			val := t.pop()
			recv := t.pop()
			if err := object.SetAttr(t, recv, name, val); err != nil {
				stepErr = err
			}
		case bytecode.OpDelAttr:
			name := object.Str(f.closure.Code.Constants[operand])
			recv := t.pop()
			ok, err := object.DelAttr(t, recv, name)
			if err != nil {
				stepErr = err
			} else if !ok {
				stepErr = t.Raise(t.vm.Class("AttributeError"), "no attribute '"+name+"'")
			}

		case bytecode.OpGetItem:
			idx := t.pop()
			recv := t.pop()
			v, err := t.getItem(recv, idx)
			if err != nil {
				stepErr = err
			} else {
				t.push(v)
			}
		case bytecode.OpSetItem:
			val := t.pop()
			idx := t.pop()
			recv := t.pop()
			stepErr = t.setItem(recv, idx, val)
		case bytecode.OpDelItem:
			idx := t.pop()
			recv := t.pop()
			stepErr = t.delItem(recv, idx)
		case bytecode.OpBuildSlice:
			hi, lo := t.pop(), t.pop()
			t.push(value.Obj(t.vm.NewTuple([]value.Value{lo, hi})))

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv,
			bytecode.OpFloorDiv, bytecode.OpMod:
			b, a := t.pop(), t.pop()
			v, err := t.binaryOp(op, a, b)
			if err != nil {
				stepErr = err
			} else {
				t.push(v)
			}

		case bytecode.OpEq:
			b, a := t.pop(), t.pop()
			t.push(value.Bool(t.valuesEqual(a, b)))
		case bytecode.OpNe:
			b, a := t.pop(), t.pop()
			t.push(value.Bool(!t.valuesEqual(a, b)))
		case bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
			b, a := t.pop(), t.pop()
			v, err := t.compareOp(op, a, b)
			if err != nil {
				stepErr = err
			} else {
				t.push(v)
			}

		case bytecode.OpNot:
			t.push(value.Bool(!t.pop().Truthy()))
		case bytecode.OpNegate:
			v := t.pop()
			switch {
			case v.IsInt():
				t.push(value.Int(-v.AsInt()))
			case v.IsFloat():
				t.push(value.Float(-v.AsFloat()))
			default:
				stepErr = t.Raise(t.vm.Class("TypeError"), "bad operand type for unary -")
			}

		case bytecode.OpJump:
			f.ip = int(operand)
		case bytecode.OpJumpIfFalse:
			if !t.peek(0).Truthy() {
				f.ip = int(operand)
			}
		case bytecode.OpJumpIfTrue:
			if t.peek(0).Truthy() {
				f.ip = int(operand)
			}

		case bytecode.OpMakeClosure:
			stepErr = t.makeClosure(f, operand)

		case bytecode.OpMakeClass:
			name := object.Str(f.closure.Code.Constants[operand])
			base := t.pop()
			var baseClass *object.Class
			if !base.IsNone() {
				bc, ok := base.AsObject().(*object.Class)
				if !ok {
					stepErr = t.Raise(t.vm.Class("TypeError"), "base must be a class")
					break
				}
				baseClass = bc
			} else {
				baseClass = t.vm.Class("object")
			}
			cls := object.NewClass(name, baseClass)
			t.vm.heap.Register(cls, 128)
			t.push(value.Obj(cls))
		case bytecode.OpFinalizeClass:
			cls := t.peek(0).AsObject().(*object.Class)
			cls.Finalize()

		case bytecode.OpCall:
			argc := int(operand & 0x7fff)
			hasKwargs := operand&0x8000 != 0
			var kwargs *object.Dict
			if hasKwargs {
				kv := t.pop()
				kwargs, _ = kv.AsObject().(*object.Dict)
			}
			args := t.popN(argc)
			callee := t.pop()
			result, pushed, err := t.prepareCall(callee, args, kwargs)
			if err != nil {
				stepErr = err
			} else if !pushed {
				t.push(result)
			}

		case bytecode.OpGetIter:
			v := t.pop()
			var iterVal value.Value
			if it, ok := object.GetIter(v); ok {
				iterVal = value.Obj(it)
			} else if inst, isInst := v.AsObject().(*object.Instance); isInst {
				if iterMethod, ok := inst.Class.IterMethod(); ok {
					iv, err := t.Call(iterMethod, []value.Value{v}, nil)
					if err != nil {
						stepErr = err
						break
					}
					if iterInst, isInst2 := iv.AsObject().(*object.Instance); isInst2 {
						if _, hasCall := iterInst.Class.CallMethod(); hasCall {
							iterVal = iv
						}
					}
					if iterVal.IsNone() {
						if builtin, ok := object.GetIter(iv); ok {
							iterVal = value.Obj(builtin)
						}
					}
				}
			}
			if iterVal.IsNone() {
				stepErr = t.Raise(t.vm.Class("TypeError"), "'"+object.TypeName(v)+"' object is not iterable")
			} else {
				t.push(iterVal)
			}

		case bytecode.OpForIter:
			cur := t.peek(0)
			next, err := t.stepIterator(cur)
			if err != nil {
				stepErr = err
			} else if next.AsObject() == cur.AsObject() {
				t.pop()
				f.ip = int(operand)
			} else {
				t.push(next)
			}

		case bytecode.OpRaise:
			v := t.pop()
			stepErr = t.raiseValue(v)
		case bytecode.OpReraise:
			v := t.peek(0)
			stepErr = t.raiseValue(v)

		case bytecode.OpPushTry:
			f.pushTry(tryHandler{jumpTarget: int(operand), stackDepth: len(t.stack)})
		case bytecode.OpPopTry:
			f.popTry()

		case bytecode.OpReturn:
			retVal := t.pop()
			t.closeUpvaluesFrom(f.baseSlot)
			t.stack = t.stack[:f.baseSlot]
			t.popFrame()
			if len(t.frames) == depth {
				return retVal, nil
			}
			t.push(retVal)
			continue

		case bytecode.OpBuildTuple:
			items := t.popN(int(operand))
			t.push(value.Obj(t.vm.NewTuple(items)))
		case bytecode.OpBuildList:
			items := t.popN(int(operand))
			t.push(value.Obj(t.vm.NewList(items)))
		case bytecode.OpBuildDict:
			n := int(operand)
			d := t.vm.NewDict()
			pairs := t.popN(n * 2)
			for i := 0; i < len(pairs); i += 2 {
				d.Set(pairs[i], pairs[i+1])
			}
			t.push(value.Obj(d))

		case bytecode.OpImport:
			name := object.Str(f.closure.Code.Constants[operand])
			mod, ok := t.vm.Module(name)
			if !ok {
				stepErr = t.Raise(t.vm.Class("ImportError"), "no module named '"+name+"'")
			} else {
				t.push(value.Obj(mod))
			}

		default:
			stepErr = t.Raise(t.vm.Class("TypeError"), "unknown opcode")
		}

		if stepErr != nil {
			if t.handleError(depth, stepErr) {
				continue
			}
			return value.None(), stepErr
		}

		t.vm.CollectIfNeeded()
		_ = opStart
	}
	return value.None(), nil
}

// handleError looks for a try/except handler in frames above depth,
// starting at the current frame and popping upward (closing upvalues as
// it goes) until one is found or the boundary is reached. Reports whether
// the error was caught (and control should resume in the handler).
func (t *Thread) handleError(depth int, err error) bool {
	exc, ok := err.(*object.Exception)
	if !ok {
		return false
	}
	for len(t.frames) > depth {
		f := t.currentFrame()
		if h, ok := f.popTry(); ok {
			t.stack = t.stack[:h.stackDepth]
			t.push(exc.Instance)
			f.ip = h.jumpTarget
			return true
		}
		t.closeUpvaluesFrom(f.baseSlot)
		t.stack = t.stack[:f.baseSlot]
		t.popFrame()
	}
	return false
}

// makeClosure reads the MAKE_CLOSURE operand's upvalue-capture bytes (one
// IsLocal byte + one big-endian u16 index per upvalue the target code
// object declares) immediately following the instruction's own u16
// constant-pool operand, and binds each to either a freshly captured local
// of the enclosing frame or a pass-through of one of the enclosing
// closure's own upvalues.
func (t *Thread) makeClosure(f *frame, constIdx uint16) error {
	codeVal := f.closure.Code.Constants[constIdx]
	code, ok := codeVal.AsObject().(*bytecode.CodeObject)
	if !ok {
		return t.Raise(t.vm.Class("TypeError"), "MAKE_CLOSURE target is not a code object")
	}

	cl := t.vm.NewClosure(code, f.closure.Module)
	bytes := f.closure.Code.Code.Bytes
	for i := range code.Upvalues {
		isLocal := bytes[f.ip] != 0
		idx := int(bytes[f.ip+1])<<8 | int(bytes[f.ip+2])
		f.ip += 3
		if isLocal {
			cl.Upvalues[i] = t.captureUpvalue(f.baseSlot + idx)
		} else {
			cl.Upvalues[i] = f.closure.Upvalues[idx]
		}
	}
	t.push(value.Obj(cl))
	return nil
}
