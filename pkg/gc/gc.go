// Package gc implements a tracing mark-and-sweep collector: allocation-
// paced triggering, a tri-color gray worklist, and a pause counter for
// sequences that would otherwise see transiently unreachable values.
//
// The collector knows nothing about any particular object variant; it only
// requires that every heap allocation satisfy value.Object, i.e. expose a
// Trace method that re-marks the Values it directly references. Concrete
// variants live in pkg/object; the calling VM supplies the GC roots.
package gc

import "kuroko/pkg/value"

// MinHeap is the floor nextGC is never allowed to fall below, so a program
// that allocates almost nothing doesn't collect on every single object.
const MinHeap = 1 << 20 // 1 MiB

// Heap owns the linked list of every live object and the allocation
// counters that pace collection.
type Heap struct {
	objects        value.Object // head of the invasive linked list
	nextID         uint64
	bytesAllocated int64
	nextGC         int64
	pauseDepth     int
	gray           []value.Object

	// OnCollect, if set, is called after each completed cycle with the
	// bytes freed; used by the VM's -t tracing flag. Never required for
	// correctness.
	OnCollect func(freed int64, live int64)
}

// New returns a heap with collection paced to MinHeap.
func New() *Heap {
	return &Heap{nextGC: MinHeap}
}

// Register links a freshly allocated object into the heap, assigns it an
// identity id (used as the default identity hash), and accounts its size
// toward the next collection trigger. size is an estimate in bytes; only
// monotonic growth matters, not exact accounting.
func (h *Heap) Register(o value.Object, size int) {
	h.nextID++
	o.SetObjID(h.nextID)
	o.SetGCNext(h.objects)
	h.objects = o
	h.bytesAllocated += int64(size)
}

// Pause increments the pause counter; while paused, CollectIfNeeded and
// Collect are no-ops. Used around allocation sequences (e.g. building a
// dict whose entries aren't linked into it yet) that would otherwise
// expose transiently unreachable values to a concurrent cycle.
func (h *Heap) Pause() { h.pauseDepth++ }

// Resume decrements the pause counter.
func (h *Heap) Resume() {
	if h.pauseDepth > 0 {
		h.pauseDepth--
	}
}

// Paused reports whether collection is currently deferred.
func (h *Heap) Paused() bool { return h.pauseDepth > 0 }

// BytesAllocated returns the live-allocation counter.
func (h *Heap) BytesAllocated() int64 { return h.bytesAllocated }

// NextGC returns the threshold that triggers the next cycle.
func (h *Heap) NextGC() int64 { return h.nextGC }

// ShouldCollect reports whether bytesAllocated has reached nextGC and the
// heap isn't paused.
func (h *Heap) ShouldCollect() bool {
	return !h.Paused() && h.bytesAllocated >= h.nextGC
}

// Mark adds v to the gray worklist if it is an unmarked heap object. Safe
// to call with non-object values (a no-op).
func (h *Heap) Mark(v value.Value) {
	if !v.IsObject() {
		return
	}
	o := v.AsObject()
	if o == nil || o.IsMarked() {
		return
	}
	o.SetMarked(true)
	h.gray = append(h.gray, o)
}

// MarkObject is Mark's counterpart for a raw Object reference (used for
// non-Value GC edges such as a class's base pointer).
func (h *Heap) MarkObject(o value.Object) {
	if o == nil || o.IsMarked() {
		return
	}
	o.SetMarked(true)
	h.gray = append(h.gray, o)
}

// Collect runs one full cycle: roots is invoked once with the heap's own
// Mark function so the caller can mark every GC root (thread stacks, frame
// closures and globals, the intern table, ...); the gray worklist is then
// drained (blackening each object via its Trace method), and finally the
// object list is swept, freeing every object left unmarked.
//
// After the cycle, nextGC is set to twice the surviving bytes (or MinHeap,
// whichever is larger).
func (h *Heap) Collect(roots func(mark func(value.Value))) {
	if h.Paused() {
		return
	}
	before := h.bytesAllocated

	roots(h.Mark)
	for len(h.gray) > 0 {
		n := len(h.gray) - 1
		o := h.gray[n]
		h.gray = h.gray[:n]
		o.Trace(h.Mark)
	}

	var prev value.Object
	cur := h.objects
	var freed int64
	for cur != nil {
		next := cur.GCNext()
		if cur.IsMarked() {
			cur.SetMarked(false)
			prev = cur
			cur = next
			continue
		}
		cur.Sweep()
		freed++
		if prev == nil {
			h.objects = next
		} else {
			prev.SetGCNext(next)
		}
		cur = next
	}

	// We don't track a precise per-object byte size on free; approximate it
	// by assuming uniform allocation size, which keeps nextGC monotonic and
	// proportional to survivors without needing a size table.
	if h.bytesAllocated > 0 && freed > 0 {
		estPerObj := before / int64(max64(1, countLive(h)+freed))
		h.bytesAllocated -= estPerObj * freed
		if h.bytesAllocated < 0 {
			h.bytesAllocated = 0
		}
	}

	h.nextGC = h.bytesAllocated * 2
	if h.nextGC < MinHeap {
		h.nextGC = MinHeap
	}

	if h.OnCollect != nil {
		h.OnCollect(before-h.bytesAllocated, h.bytesAllocated)
	}
}

func countLive(h *Heap) int64 {
	var n int64
	for o := h.objects; o != nil; o = o.GCNext() {
		n++
	}
	return n
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// CollectIfNeeded runs Collect only if ShouldCollect reports true.
func (h *Heap) CollectIfNeeded(roots func(mark func(value.Value))) {
	if h.ShouldCollect() {
		h.Collect(roots)
	}
}
