package codecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []int32{
		0, 1, -1, 63, -64, 64, -65,
		8191, -8192, 8192, -8193,
		1 << 27, -(1 << 27) - 1, -(1 << 27),
		1<<31 - 1, -1 << 31,
	}
	for _, v := range values {
		buf := encodeInt(nil, v)
		assert.Equal(t, encodedLen(v), len(buf), "encodedLen(%d)", v)

		got, n, ok := decodeInt(buf)
		assert.True(t, ok, "decode(%d)", v)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, v, got)
	}
}

func TestVarintEncodedLen(t *testing.T) {
	assert.Equal(t, 1, encodedLen(0))
	assert.Equal(t, 1, encodedLen(63))
	assert.Equal(t, 1, encodedLen(-64))
	assert.Equal(t, 2, encodedLen(64))
	assert.Equal(t, 2, encodedLen(-65))
	assert.Equal(t, 2, encodedLen(8191))
	assert.Equal(t, 4, encodedLen(8192))
	assert.Equal(t, 4, encodedLen(-8193))
	assert.Equal(t, 4, encodedLen(1<<27 - 1))
	assert.Equal(t, 5, encodedLen(1 << 27))
	assert.Equal(t, 5, encodedLen(-(1<<27) - 1))
}

func TestVarintDecodeTruncated(t *testing.T) {
	full := encodeInt(nil, 8192)
	for i := 1; i < len(full); i++ {
		_, _, ok := decodeInt(full[:i])
		assert.False(t, ok, "decode of %d truncated bytes should fail", i)
	}
	_, _, ok := decodeInt(nil)
	assert.False(t, ok)
}

func TestVarintSentinels(t *testing.T) {
	neg1 := encodeInt(nil, -1)
	neg2 := encodeInt(nil, -2)
	assert.Equal(t, 1, len(neg1))
	assert.Equal(t, 1, len(neg2))
	assert.NotEqual(t, neg1, neg2)
}
