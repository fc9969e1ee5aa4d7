package codecache

// debugBufferSize is the fixed payload capacity of one chained debug
// buffer.
const debugBufferSize = 64

// maxPairBytes is the worst-case encoded size of one (bc_offset,
// native_offset) pair: two 5-byte varints.
const maxPairBytes = 10

// debugBuffer holds a run of compressed signed integers: (bytecode_offset,
// native_offset) pairs in ascending order, terminated by -1 or chained to
// the next buffer via -2.
type debugBuffer struct {
	data [debugBufferSize]byte
	len  int
	next *debugBuffer
}

// allocDebugBuffer sub-allocates a fresh debug buffer from the emission
// window, mirroring method-header allocation: debugBuffer lives as an
// ordinary Go value on the heap, but its notional size is still charged
// against the window so capacity accounting matches what it would be if
// the buffer were actually stored there.
func (p *Posn) allocDebugBuffer() (*debugBuffer, bool) {
	addr, ok := p.allocWindow(debugBufferSize, wordAlign)
	if !ok {
		return nil, false
	}
	_ = addr
	return &debugBuffer{}, true
}

// appendScratch encodes v into the scratch buffer. Callers must have
// already ensured enough room via ensureScratchRoom.
func (p *Posn) appendScratch(v int32) {
	buf := encodeInt(p.scratch[p.scratchLen:p.scratchLen], v)
	p.scratchLen += len(buf)
}

// ensureScratchRoom flushes the scratch buffer into a fresh chained
// debug buffer (appending a -2 continuation sentinel first) if fewer than
// need bytes remain.
func (p *Posn) ensureScratchRoom(need int) {
	if p.scratchLen+need <= len(p.scratch) {
		return
	}
	p.appendScratch(-2)
	p.flushScratch()
}

// flushScratch copies the staged scratch bytes into a freshly allocated
// debug buffer, appends it to the current region's debug chain, and
// resets the scratch.
func (p *Posn) flushScratch() {
	if p.scratchLen == 0 {
		return
	}
	buf, ok := p.allocDebugBuffer()
	if !ok {
		p.scratchLen = 0
		return
	}
	buf.len = copy(buf.data[:], p.scratch[:p.scratchLen])
	if p.pending.debugHead == nil {
		p.pending.debugHead = buf
	} else {
		p.pending.debugTail.next = buf
	}
	p.pending.debugTail = buf
	p.scratchLen = 0
	p.cache.stats.DebugBuffersAllocated++
}

// MarkBytecode records that the instruction about to be written at
// posn.ptr corresponds to bytecode offset bcOffset in the method's
// source bytecode stream. The native offset is computed relative to the
// current region's start address.
func (c *Cache) MarkBytecode(posn *Posn, bcOffset int32) {
	native := int32(posn.ptr - posn.pending.start)
	posn.ensureScratchRoom(maxPairBytes + 1)
	posn.appendScratch(bcOffset)
	posn.appendScratch(native)
}

// endDebugStream appends the (-1, -1) terminator and flushes the scratch
// unconditionally, called once per region as it closes (by NewRegion, or
// by EndMethod at commit time for the last one).
func (p *Posn) endDebugStream() {
	if p.scratchLen+2 > len(p.scratch) {
		p.appendScratch(-2)
		p.flushScratch()
	}
	p.appendScratch(-1)
	p.appendScratch(-1)
	p.flushScratch()
}

// debugIter walks the decoded (bc, native) pairs of one region's debug
// stream. A malformed stream (truncated mid-value) sets malformed and
// ends iteration.
type debugIter struct {
	buf       *debugBuffer
	pos       int
	malformed bool
}

func newDebugIter(head *debugBuffer) *debugIter {
	return &debugIter{buf: head}
}

// Next returns the next pair, or done=true when the stream is exhausted
// (cleanly or due to a malformed encoding).
func (it *debugIter) Next() (bc, native int32, done bool) {
	for {
		if it.buf == nil {
			return 0, 0, true
		}
		first, ok := it.readOne()
		if !ok {
			it.malformed = true
			return 0, 0, true
		}
		if first == -1 {
			return 0, 0, true
		}
		if first == -2 {
			it.buf = it.buf.next
			it.pos = 0
			continue
		}
		second, ok := it.readOne()
		if !ok {
			it.malformed = true
			return 0, 0, true
		}
		return first, second, false
	}
}

func (it *debugIter) readOne() (int32, bool) {
	for it.buf != nil && it.pos >= it.buf.len {
		it.buf = it.buf.next
		it.pos = 0
	}
	if it.buf == nil {
		return 0, false
	}
	v, n, ok := decodeInt(it.buf.data[it.pos:it.buf.len])
	if !ok {
		return 0, false
	}
	it.pos += n
	return v, true
}

// NativeOf maps a bytecode offset to a native offset within the region
// starting at funcStart. exact requires an exact bytecode match; non-exact
// mode returns the native offset of the last pair strictly preceding bc,
// supporting line-number lookups for arbitrary bytecode offsets. It
// returns ok=false when no such mapping exists.
func (c *Cache) NativeOf(funcStart uintptr, bc int32, exact bool) (native int32, ok bool) {
	m := c.lookupExact(funcStart)
	if m == nil {
		return 0, false
	}
	it := newDebugIter(m.debugHead)
	var lastNative int32
	haveLast := false
	for {
		pairBC, pairNative, done := it.Next()
		if done {
			break
		}
		if exact {
			if pairBC == bc {
				return pairNative, true
			}
			continue
		}
		if pairBC >= bc {
			break
		}
		lastNative, haveLast = pairNative, true
	}
	if !exact && haveLast {
		return lastNative, true
	}
	return 0, false
}

// BytecodeOf is the inverse of NativeOf: maps a native offset to a
// bytecode offset.
func (c *Cache) BytecodeOf(funcStart uintptr, native int32, exact bool) (bc int32, ok bool) {
	m := c.lookupExact(funcStart)
	if m == nil {
		return 0, false
	}
	it := newDebugIter(m.debugHead)
	var lastBC int32
	haveLast := false
	for {
		pairBC, pairNative, done := it.Next()
		if done {
			break
		}
		if exact {
			if pairNative == native {
				return pairBC, true
			}
			continue
		}
		if pairNative >= native {
			break
		}
		lastBC, haveLast = pairBC, true
	}
	if !exact && haveLast {
		return lastBC, true
	}
	return 0, false
}
