package codecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegionClosesPriorRegionAndChains(t *testing.T) {
	c := newTestCache(t)

	fn := &stubFunc{name: "f"}
	posn, result := c.StartMethod(fn, 0)
	require.Equal(t, ResultOK, result)

	first := posn.pending
	require.True(t, emitNop(posn, 4))
	firstEndWant := posn.ptr

	c.NewRegion(posn, 7)
	assert.Equal(t, firstEndWant, first.end)
	assert.Same(t, first, posn.pending.regionNext)
	assert.Equal(t, 7, posn.pending.cookie)
	assert.Equal(t, first.end, posn.pending.start)

	require.True(t, emitNop(posn, 4))
	require.Equal(t, ResultOK, c.EndMethod(posn, true))

	assert.Equal(t, fn.start, first.start)
	assert.Equal(t, fn.end, posn.pending.end)
}

func TestSetCookieRetagsOpenRegionWithoutClosingIt(t *testing.T) {
	c := newTestCache(t)

	fn := &stubFunc{name: "f"}
	posn, result := c.StartMethod(fn, 0)
	require.Equal(t, ResultOK, result)

	region := posn.pending
	posn.SetCookie(3)
	assert.Equal(t, 3, region.cookie)
	assert.Same(t, region, posn.pending)

	require.True(t, emitNop(posn, 1))
	require.Equal(t, ResultOK, c.EndMethod(posn, true))
}
