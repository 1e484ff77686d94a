package vm

// SetTrace enables or disables the Vm's -t diagnostics: GC cycle logging
// (wired in New) and, here, per-call entry logging. Call exits are not
// logged.
func (v *Vm) SetTrace(on bool) { v.Trace = on }

func (t *Thread) traceCall(name string) {
	if t.vm.Trace {
		t.vm.Log.Debugw("call", "function", name, "stack_depth", len(t.frames))
	}
}
