// Error handling: raising managed exceptions and formatting uncaught ones
// with a stack trace, built on object.Exception instances.
package vm

import (
	"fmt"
	"strings"

	"kuroko/pkg/object"
	"kuroko/pkg/value"
)

// StackFrame is a single frame of a captured traceback.
type StackFrame struct {
	Name       string // function/method name, "<module>" at top level
	Filename   string
	SourceLine int
}

// RuntimeError is the Go-level error wrapping an uncaught managed
// exception, formatted with its full traceback for the REPL/CLI to print.
type RuntimeError struct {
	ClassName  string
	Message    string
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString("Traceback (most recent call last):")
	for i := len(e.StackTrace) - 1; i >= 0; i-- {
		f := e.StackTrace[i]
		b.WriteString(fmt.Sprintf("\n  File %q, line %d, in %s", f.Filename, f.SourceLine, f.Name))
	}
	b.WriteString(fmt.Sprintf("\n%s: %s", e.ClassName, e.Message))
	return b.String()
}

// FormatError renders an error returned by Thread.Execute/Call the way a
// user should see it: an uncaught managed exception gets its full
// traceback; any other Go error (a host-level failure) is passed through
// as-is.
func FormatError(err error) string {
	if exc, ok := err.(*object.Exception); ok {
		return newRuntimeError(exc).Error()
	}
	return err.Error()
}

// newRuntimeError converts a raised object.Exception into a RuntimeError
// ready to print, reading the class name and message field off the
// wrapped instance.
func newRuntimeError(exc *object.Exception) *RuntimeError {
	name := "Exception"
	msg := ""
	if inst, ok := exc.Instance.AsObject().(*object.Instance); ok {
		name = inst.Class.Name
		if m, ok := inst.Fields.Get(value.Obj(object.NewString("message"))); ok {
			msg = object.Str(m)
		}
	}
	trace := make([]StackFrame, len(exc.Traceback))
	for i, f := range exc.Traceback {
		trace[i] = StackFrame{Name: f.FuncName, Filename: f.Filename, SourceLine: f.Line}
	}
	return &RuntimeError{ClassName: name, Message: msg, StackTrace: trace}
}

// Raise implements object.Invoker: it builds an instance of class carrying
// message and raises it exactly as a user `raise ClassName(message)`
// statement would.
func (t *Thread) Raise(class *object.Class, message string) error {
	inst := t.vm.NewInstance(class)
	inst.Fields.Set(t.vm.InternedValue("message"), t.vm.InternedValue(message))
	return t.raiseValue(value.Obj(inst))
}

// captureFrames walks the thread's current frame stack, innermost first,
// the shape both a first raise and Raise's synthetic instances need.
func (t *Thread) captureFrames() []object.Frame {
	frames := make([]object.Frame, 0, len(t.frames))
	for i := len(t.frames) - 1; i >= 0; i-- {
		f := t.frames[i]
		name := f.closure.Code.Name
		if name == "" {
			name = "<module>"
		}
		frames = append(frames, object.Frame{
			FuncName: name,
			Filename: f.closure.Code.Filename,
			Line:     f.closure.Code.Lines.LineFor(f.ip),
		})
	}
	return frames
}

// raiseValue wraps an already-constructed exception instance (from a user
// `raise` statement, Raise, or a re-raise) into an *object.Exception. On
// the instance's first raise the traceback is captured from the current
// unwind point and cached onto the instance itself (under the hidden
// field "__traceback__"); a later re-raise of that same instance — a bare
// `raise` inside its own except clause — finds the cached traceback and
// reuses it rather than rebuilding one starting from the re-raise site.
func (t *Thread) raiseValue(instance value.Value) error {
	inst, isInst := instance.AsObject().(*object.Instance)
	if !isInst {
		exc := object.NewException(instance)
		exc.Traceback = t.captureFrames()
		return exc
	}

	tbKey := t.vm.InternedValue("__traceback__")
	if cached, ok := inst.Fields.Get(tbKey); ok {
		if tb, ok := cached.AsObject().(*object.Traceback); ok {
			exc := object.NewException(instance)
			exc.Traceback = tb.Frames
			return exc
		}
	}

	frames := t.captureFrames()
	tb := &object.Traceback{Frames: frames}
	t.vm.heap.Register(tb, 64)
	inst.Fields.Set(tbKey, value.Obj(tb))

	exc := object.NewException(instance)
	exc.Traceback = frames
	return exc
}
