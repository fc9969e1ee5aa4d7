package codecache

// Func is the contract a caller's function object satisfies so the cache
// can record where it landed in executable memory. The cache never
// dereferences a Func beyond these two setters — it is otherwise opaque,
// used only for identity (list_functions collapses consecutive
// descriptors sharing the same Func into one entry).
type Func interface {
	SetStart(addr uintptr)
	SetEnd(addr uintptr)
}

type color uint8

const (
	black color = 0
	red   color = 1
)

// Method is the per-region descriptor: the unit inserted into the
// lookup tree. A function translated as a single unit has exactly one
// Method; a function with exception regions (see NewRegion) has one per
// region, all sharing fn and chained together before commit.
//
// The color bit is an explicit field rather than packed into the left
// pointer's low bit: that packing trick is an optimization for systems
// languages without a spare color field, not a requirement here.
type Method struct {
	fn     Func
	cookie int
	start  uintptr
	end    uintptr

	debugHead *debugBuffer
	debugTail *debugBuffer

	left, right, parent *Method
	color                color

	// regionNext chains not-yet-committed descriptors of the same method,
	// most-recently-opened first. Unused once the descriptor is in the
	// tree (left/right take over).
	regionNext *Method
}

// Func returns the owning function handle.
func (m *Method) Func() Func { return m.fn }

// Cookie returns the region-local identifier passed to NewRegion (zero for
// a method's initial region).
func (m *Method) Cookie() int { return m.cookie }

// Start returns the region's native start address.
func (m *Method) Start() uintptr { return m.start }

// End returns the region's native end address (exclusive).
func (m *Method) End() uintptr { return m.end }

// NewRegion closes the descriptor currently being written at posn.ptr and
// opens a fresh one sharing the same function but a new cookie, prepending
// it to the in-progress chain. Sub-allocation failure for the new
// descriptor is reported the same way Alloc reports it: posn.ptr is forced
// to limit, and the caller discovers this via CheckSpace or at EndMethod,
// not via a return value here.
func (c *Cache) NewRegion(posn *Posn, cookie int) {
	posn.pending.end = posn.ptr
	posn.endDebugStream()

	addr, ok := posn.allocWindow(methodHeaderSize, wordAlign)
	if !ok {
		return
	}
	_ = addr

	m := &Method{
		fn:         posn.fn,
		cookie:     cookie,
		start:      posn.ptr,
		regionNext: posn.pending,
	}
	posn.pending = m
}

// SetCookie retags the region currently open on posn without starting a
// new one.
func (p *Posn) SetCookie(cookie int) {
	p.pending.cookie = cookie
}
