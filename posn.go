package codecache

import "unsafe"

// wordAlign is the machine-word alignment the auxiliary allocator uses on
// a best-effort basis.
const wordAlign = uintptr(unsafe.Sizeof(uintptr(0)))

// methodHeaderSize is the notional size of a method descriptor charged
// against a page's auxiliary budget when a method (or region) is opened.
// Method itself lives as an ordinary Go value on the heap rather than
// inside the page, but this module still debits the same number of bytes
// from the window on every open so the capacity accounting — and the
// resulting restart/too-big behavior — matches what it would be if the
// descriptor were actually stored there.
const methodHeaderSize = 48

// Posn is the emission position: the live write window inside one cache
// page, held by the caller for the duration of one start/end method call.
// ptr grows up as code is written; limit shrinks down as auxiliary data is
// carved from the top. Overflow is signaled by ptr >= limit.
type Posn struct {
	cache *Cache
	ptr   uintptr
	limit uintptr

	fn      Func
	pending *Method // most-recently-opened region of the in-progress method

	// savedFreeStart/savedFreeEnd record the page's free window as
	// StartMethod found it (its start rounded up to word alignment), before carving out this attempt's header and
	// zeroing the cache's own freeStart/freeEnd for the duration of the
	// emission. EndMethod restores them verbatim on a RESTART against a
	// page that already holds other committed methods, so a failed
	// attempt never shrinks the window available to the next one.
	savedFreeStart uintptr
	savedFreeEnd   uintptr

	scratch    [debugBufferSize]byte
	scratchLen int
}

// overflowSignal is the panic value CheckSpace raises so an emitter can
// unwind mid-instruction without finishing the current write, rather than
// threading an error return through every byte-emission call. The
// expected recovery point is the caller's own per-method emission loop,
// which should recover, then report the failure to EndMethod via its ok
// argument.
type overflowSignal struct{}

// Ptr returns the next native address that will be written.
func (p *Posn) Ptr() uintptr { return p.ptr }

// Limit returns the current auxiliary-allocation frontier.
func (p *Posn) Limit() uintptr { return p.limit }

// Overflowed reports whether the window has been exhausted.
func (p *Posn) Overflowed() bool { return p.ptr >= p.limit }

// Bytes returns a slice of n bytes at the current write position and
// advances ptr past them. It performs no bounds checking: the emitter is
// responsible for calling CheckSpace before writing. Writing past the
// page's real extent is a caller bug, not a condition this type can
// safely recover from.
func (p *Posn) Bytes(n int) []byte {
	b := unsafe.Slice((*byte)(unsafe.Pointer(p.ptr)), n)
	p.ptr += uintptr(n)
	return b
}

// WriteByte appends a single byte at the current write position.
func (p *Posn) WriteByte(b byte) {
	p.Bytes(1)[0] = b
}

// CheckSpace raises overflowSignal unless more than n bytes remain in the
// window (writing n bytes must not bring ptr to limit, which Overflowed
// reports as overflow), forcing ptr to limit first so any later inspection of the posn
// already reports overflow.
func (p *Posn) CheckSpace(n int) {
	if p.ptr+uintptr(n) >= p.limit {
		p.ptr = p.limit
		panic(overflowSignal{})
	}
}

// allocWindow is the shared bump-from-the-top arithmetic used by Alloc,
// method-header sub-allocation, and debug-buffer sub-allocation: it
// returns align_down(limit-n, align), or fails (and forces ptr to limit)
// when the request cannot be satisfied.
func (p *Posn) allocWindow(n, align uintptr) (uintptr, bool) {
	if align == 0 {
		align = 1
	}
	if n > p.limit-p.ptr {
		p.ptr = p.limit
		return 0, false
	}
	aligned := (p.limit - n) &^ (align - 1)
	if aligned < p.ptr {
		p.ptr = p.limit
		return 0, false
	}
	p.limit = aligned
	return aligned, true
}

// Alloc sub-allocates n bytes from the top of the emission window, aligned
// to machine word size, for constant pools or other method-scoped data the
// emitter needs to stash alongside the code. Returns nil on overflow.
func (p *Posn) Alloc(n int) []byte {
	addr, ok := p.allocWindow(uintptr(n), wordAlign)
	if !ok {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// Align pads the code cursor up to the next multiple of boundary with
// nopByte, but only when the pad is smaller than maxDiff — large pads are
// skipped rather than wasting the window on alignment.
func (p *Posn) Align(boundary, maxDiff int, nopByte byte) {
	if boundary <= 1 {
		return
	}
	b := uintptr(boundary)
	aligned := (p.ptr + b - 1) &^ (b - 1)
	pad := aligned - p.ptr
	if pad == 0 || int(pad) >= maxDiff || aligned > p.limit {
		return
	}
	buf := p.Bytes(int(pad))
	for i := range buf {
		buf[i] = nopByte
	}
}
