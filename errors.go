package codecache

import "errors"

// ErrInvalidConfig is returned by New when a Config option carries a
// nonsensical value (a max page factor of zero or less).
var ErrInvalidConfig = errors.New("codecache: invalid configuration")

// ErrInitialAlloc is returned by New when it cannot obtain even the first
// page of executable memory (OS allocation failure). A byte limit smaller
// than one page does not cause it: New still grants one page.
var ErrInitialAlloc = errors.New("codecache: failed to allocate initial page")

// StartMethod and EndMethod report the cache's three-way outcome (ok,
// restart, too big) as a Result rather than an error: none of the three is
// exceptional, and callers branch on all three.
type Result int

const (
	// ResultOK means the call succeeded: from StartMethod, a write window
	// is open; from EndMethod, the whole region chain committed.
	ResultOK Result = iota
	// ResultRestart means the attempt ran out of space mid-emission and
	// must be retried from scratch against a fresh StartMethod call; any
	// page allocated solely for the failed attempt has already been
	// released.
	ResultRestart
	// ResultTooBig means the cache cannot satisfy the request even with a
	// fresh page — the configured budget or max page factor has been
	// reached. Retrying without changing the configuration will not help.
	ResultTooBig
)

// String implements fmt.Stringer for log and test output.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultRestart:
		return "restart"
	case ResultTooBig:
		return "too_big"
	default:
		return "unknown"
	}
}
