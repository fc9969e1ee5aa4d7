package codecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundUpPageSizeRespectsGranularity(t *testing.T) {
	exec := osExecPageSize()
	assert.Equal(t, exec, roundUpPageSize(0, 4096))
	assert.Equal(t, exec, roundUpPageSize(1, 4096))
	assert.Equal(t, 2*exec, roundUpPageSize(int(2*exec), 4096))
}

func TestAllocPageTracksBudget(t *testing.T) {
	c := &Cache{pageSize: osExecPageSize(), maxPageFactor: 4, pagesLeft: 3}
	c.initTree()

	c.allocPage(2)
	require.Equal(t, 1, len(c.pages))
	assert.Equal(t, 1, c.pagesLeft)
	assert.NotZero(t, c.freeStart)

	c.Destroy()
}

func TestAllocPageExhaustsOnFactorTooLarge(t *testing.T) {
	c := &Cache{pageSize: osExecPageSize(), maxPageFactor: 2, pagesLeft: -1}
	c.initTree()

	c.allocPage(5)
	assert.Zero(t, c.freeStart)
	assert.Empty(t, c.pages)
}

func TestAllocPageExhaustsOnBudget(t *testing.T) {
	c := &Cache{pageSize: osExecPageSize(), maxPageFactor: 4, pagesLeft: 1}
	c.initTree()

	c.allocPage(2)
	assert.Zero(t, c.freeStart)
	assert.Empty(t, c.pages)
}
