package vm

import "kuroko/pkg/object"

// tryHandler is one entry of a frame's exception-handler stack, pushed by
// OpPushTry and popped by OpPopTry or by exception unwinding.
type tryHandler struct {
	jumpTarget int
	stackDepth int
}

// frame is one call's activation record: the closure being executed, the
// instruction pointer into its code object, the base slot (the thread
// stack index its locals start at), and its own try/except handler stack.
type frame struct {
	closure    *object.Closure
	ip         int
	baseSlot   int
	tryStack   []tryHandler
}

func (f *frame) pushTry(h tryHandler)  { f.tryStack = append(f.tryStack, h) }
func (f *frame) popTry() (tryHandler, bool) {
	if len(f.tryStack) == 0 {
		return tryHandler{}, false
	}
	n := len(f.tryStack) - 1
	h := f.tryStack[n]
	f.tryStack = f.tryStack[:n]
	return h, true
}
