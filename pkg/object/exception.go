package object

import "kuroko/pkg/value"

// Frame is one entry of a raised exception's traceback: the code object
// executing and the source line active at the point of the call or raise.
type Frame struct {
	FuncName string
	Filename string
	Line     int
}

// Exception carries a raised instance (an Instance of a class derived
// from the builtin Exception class) plus the traceback accumulated as it
// unwinds frames, implementing Go's error interface so it can travel
// through ordinary Go error returns up to the VM's try/except dispatch.
type Exception struct {
	Instance   value.Value
	Traceback  []Frame
}

func NewException(instance value.Value) *Exception {
	return &Exception{Instance: instance}
}

func (e *Exception) Error() string {
	if inst, ok := e.Instance.AsObject().(*Instance); ok {
		if msg, ok := inst.Fields.Get(value.Obj(NewString("message"))); ok {
			if s, ok := msg.AsObject().(*String); ok {
				return inst.Class.Name + ": " + s.Go()
			}
		}
		return inst.Class.Name
	}
	return "exception"
}

// PushFrame records one more unwound frame, innermost first.
func (e *Exception) PushFrame(f Frame) {
	e.Traceback = append(e.Traceback, f)
}

// Traceback is a heap-registered wrapper around a captured frame slice,
// stashed onto a raised instance (under the hidden field "__traceback__")
// so that re-raising the same instance can reuse the frames captured at
// the original raise point instead of rebuilding them from wherever the
// re-raise happens to unwind through.
type Traceback struct {
	value.Header

	Frames []Frame
}

func (tb *Traceback) Kind() string { return "traceback" }

// Trace is a no-op: a Traceback holds only Go values (no value.Value
// references for the collector to follow).
func (tb *Traceback) Trace(mark func(value.Value)) {}

func (tb *Traceback) Sweep() {}
