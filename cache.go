// Package codecache implements a translated-code cache: an allocator for
// executable memory that hands out positions to write freshly generated
// native code into, tracks committed methods in a lookup tree keyed by
// native address, and records a compact bytecode-to-native offset map
// alongside each one.
//
// Callers are responsible for serializing calls that mutate a single
// Cache (StartMethod, EndMethod, AllocOutside) — the cache does not lock
// around its own emission state, which is a single-writer contract.
// MethodAt and ListFunctions are safe to call concurrently with emission
// and with each other: they only ever read the committed tree, which is
// guarded by its own lock.
package codecache

import (
	"sync"
	"unsafe"
)

// Config holds the tunables New accepts. Use the With* options rather
// than constructing Config directly — its zero value is not valid on its
// own (DefaultPageSize and MaxPageFactor need their defaults applied),
// following the Config/Option shape the rest of this codebase's sibling
// projects use for their own allocators.
type Config struct {
	byteLimit       int
	defaultPageSize int
	maxPageFactor   int
}

// Option configures a Cache at construction time.
type Option func(*Config)

// WithByteLimit caps the total executable memory the cache may ever hold.
// A non-positive limit (the default) means unlimited. The limit is
// counted in whole pages, rounded down, and always allows at least one.
func WithByteLimit(n int) Option {
	return func(c *Config) { c.byteLimit = n }
}

// WithDefaultPageSize sets the page size requested when StartMethod needs
// a fresh page and the caller didn't request an explicit factor. It is
// rounded up to the host's executable-page granularity.
func WithDefaultPageSize(n int) Option {
	return func(c *Config) { c.defaultPageSize = n }
}

// WithMaxPageFactor caps how many pages a single allocation may span.
func WithMaxPageFactor(n int) Option {
	return func(c *Config) { c.maxPageFactor = n }
}

const (
	defaultPageSize      = 64 * 1024
	defaultMaxPageFactor = 1024
)

// Stats is a point-in-time snapshot of cache activity, returned by
// Cache.Stats. It exists purely for observability and has no effect on
// cache behavior.
type Stats struct {
	PagesAllocated        int
	MethodsCommitted      int64
	BytesCommitted        int64
	DebugBuffersAllocated int64
}

// Cache is a single translated-code cache. The zero value is not usable;
// construct one with New.
type Cache struct {
	pages         []cachePage
	pageSize      uintptr
	maxPageFactor int
	pagesLeft     int // -1 means unlimited

	freeStart uintptr
	freeEnd   uintptr

	treeMu  sync.RWMutex
	root    *Method
	nilNode *Method

	stats Stats
}

// New creates a cache ready to accept StartMethod calls. It eagerly
// allocates one page so the first StartMethod never pays allocation
// latency on the hot path.
func New(opts ...Option) (*Cache, error) {
	cfg := Config{
		defaultPageSize: defaultPageSize,
		maxPageFactor:   defaultMaxPageFactor,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxPageFactor <= 0 {
		return nil, ErrInvalidConfig
	}

	c := &Cache{
		pageSize:      roundUpPageSize(cfg.defaultPageSize, defaultPageSize),
		maxPageFactor: cfg.maxPageFactor,
		pagesLeft:     -1,
	}
	if cfg.byteLimit > 0 {
		limit := cfg.byteLimit / int(c.pageSize)
		if limit < 1 {
			limit = 1
		}
		c.pagesLeft = limit
	}
	c.initTree()
	c.allocPage(0)
	if c.freeStart == 0 {
		return nil, ErrInitialAlloc
	}
	return c, nil
}

// Destroy releases every page of executable memory the cache holds. The
// Cache must not be used afterwards.
func (c *Cache) Destroy() {
	for i := len(c.pages) - 1; i >= 0; i-- {
		_ = osFreeExec(c.pages[i].base, c.pages[i].size(c.pageSize))
	}
	c.pages = nil
	c.freeStart = 0
	c.freeEnd = 0
}

// StartMethod begins emitting a new method (or the first region of one)
// for fn. pageFactor, if positive, forces a fresh page of that many
// page-size units to be allocated for this method specifically — pass 0
// to let the cache reuse whatever space remains in the current page,
// falling back to a default-size page if none remains.
//
// On ResultTooBig the returned Posn is nil: the cache cannot satisfy this
// request no matter how many times it's retried without reconfiguration.
func (c *Cache) StartMethod(fn Func, pageFactor int) (*Posn, Result) {
	if pageFactor > 0 {
		c.allocPage(pageFactor)
	} else if c.freeStart == 0 {
		// No page on hand at all (the cache is new, or the previous
		// attempt's page was released) — try the default size before
		// giving up.
		c.allocPage(0)
	}
	if c.freeStart == 0 {
		return nil, ResultTooBig
	}

	ptr := (c.freeStart + wordAlign - 1) &^ (wordAlign - 1)
	if ptr+methodHeaderSize > c.freeEnd {
		c.allocPage(0)
		if c.freeStart == 0 {
			return nil, ResultTooBig
		}
		ptr = (c.freeStart + wordAlign - 1) &^ (wordAlign - 1)
		if ptr+methodHeaderSize > c.freeEnd {
			return nil, ResultTooBig
		}
	}

	posn := &Posn{cache: c, ptr: ptr, limit: c.freeEnd, fn: fn}
	if _, ok := posn.allocWindow(methodHeaderSize, wordAlign); !ok {
		return nil, ResultTooBig
	}
	posn.pending = &Method{fn: fn, start: posn.ptr}

	// Remember the window as it stood before this attempt claimed it, so
	// a RESTART on a page that already holds other committed methods can
	// give the whole thing back instead of losing it to this attempt's
	// header sub-allocation.
	posn.savedFreeStart = ptr
	posn.savedFreeEnd = c.freeEnd

	// The window is now owned by this in-progress method: mark the cache
	// itself as having nothing free until EndMethod gives it back, so
	// nothing else (AllocOutside, a nested StartMethod) carves from a
	// window that's actually spoken for.
	c.freeStart = 0
	c.freeEnd = 0
	return posn, ResultOK
}

// EndMethod finishes the method (and any regions opened on it via
// NewRegion) being emitted through posn. ok should be false if the
// caller's own translation failed for reasons unrelated to space (an
// unsupported opcode, say) — EndMethod treats that exactly like running
// out of room.
//
// On ResultRestart the caller must start over from a new StartMethod
// call; nothing written through posn is retained, and if the attempt was
// the sole occupant of a freshly allocated page, that page is released.
func (c *Cache) EndMethod(posn *Posn, ok bool) Result {
	if !ok || posn.Overflowed() {
		posn.ptr = posn.limit
		if n := len(c.pages); n > 0 && !c.pages[n-1].used {
			// This page has never held a committed method: the failed
			// attempt was its only occupant, so give it back rather than
			// leaving an empty page allocated.
			p := c.pages[n-1]
			c.freePage(n - 1)
			if c.pagesLeft >= 0 {
				c.pagesLeft += p.factor
			}
			c.freeStart = 0
			c.freeEnd = 0
		} else {
			// The page already holds other committed methods and stays
			// put: nothing this attempt wrote is retained, so the window
			// it held before this StartMethod call is still free.
			c.freeStart = posn.savedFreeStart
			c.freeEnd = posn.savedFreeEnd
		}
		return ResultRestart
	}

	posn.endDebugStream()
	posn.pending.end = posn.ptr

	first := posn.pending
	for first.regionNext != nil {
		first = first.regionNext
	}
	posn.fn.SetStart(first.start)
	posn.fn.SetEnd(posn.pending.end)

	c.freeStart = posn.ptr
	c.freeEnd = posn.limit
	if n := len(c.pages); n > 0 {
		c.pages[n-1].used = true
	}

	for m := posn.pending; m != nil; {
		next := m.regionNext
		m.regionNext = nil
		c.treeMu.Lock()
		c.insertMethod(m)
		c.treeMu.Unlock()
		c.stats.MethodsCommitted++
		c.stats.BytesCommitted += int64(m.end - m.start)
		m = next
	}
	return ResultOK
}

// IsFull reports whether the cache has no room left to start a new
// method. If posn is non-nil, it instead reports whether posn's own
// window has been exhausted: StartMethod hands the cache's whole free
// window to posn, so during emission that window is the room left.
func (c *Cache) IsFull(posn *Posn) bool {
	if posn != nil {
		return posn.Overflowed()
	}
	return c.freeStart == 0
}

// AllocOutside allocates n bytes of auxiliary storage directly from the
// cache, outside of any method's emission window — for data that outlives
// a single method, such as a shared jump table. align must be a power of
// two; 0 means machine-word alignment. Returns nil if the cache cannot
// satisfy the request.
func (c *Cache) AllocOutside(n, align int) []byte {
	if align <= 0 {
		align = int(wordAlign)
	}
	addr, ok := c.allocWindowDirect(uintptr(n), uintptr(align))
	if !ok {
		c.allocPage(0)
		addr, ok = c.allocWindowDirect(uintptr(n), uintptr(align))
		if !ok {
			return nil
		}
	}
	// The page now holds data that outlives any one method, so a failed
	// method attempt on it must not release it.
	c.pages[len(c.pages)-1].used = true
	return bytesAt(addr, n)
}

func bytesAt(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

func (c *Cache) allocWindowDirect(n, align uintptr) (uintptr, bool) {
	if c.freeStart == 0 {
		return 0, false
	}
	if n > c.freeEnd-c.freeStart {
		return 0, false
	}
	aligned := (c.freeEnd - n) &^ (align - 1)
	if aligned < c.freeStart {
		return 0, false
	}
	c.freeEnd = aligned
	return aligned, true
}

// TotalBytes returns the sum of every page's size currently held by the
// cache.
func (c *Cache) TotalBytes() uintptr {
	var total uintptr
	for _, p := range c.pages {
		total += p.size(c.pageSize)
	}
	return total
}

// PageCount returns the number of pages currently held by the cache.
func (c *Cache) PageCount() int {
	return len(c.pages)
}

// Stats returns a snapshot of the cache's activity counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

// MethodAt returns the committed region containing native address pc, or
// nil if pc falls outside every committed region. Safe to call while
// another goroutine is mid-emission through StartMethod/EndMethod.
func (c *Cache) MethodAt(pc uintptr) *Method {
	c.treeMu.RLock()
	defer c.treeMu.RUnlock()
	return c.lookupPC(pc)
}

// ListFunctions returns every distinct function with at least one
// committed region, in ascending native-address order.
func (c *Cache) ListFunctions() []Func {
	c.treeMu.RLock()
	defer c.treeMu.RUnlock()
	return c.listFunctions()
}
