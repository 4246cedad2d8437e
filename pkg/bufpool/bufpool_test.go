package bufpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSizes(t *testing.T) {
	small := Get(100)
	assert.Len(t, small, 100)
	assert.Equal(t, CopySize, cap(small))
	Put(small)

	exact := Get(CopySize)
	assert.Len(t, exact, CopySize)
	assert.Equal(t, CopySize, cap(exact))
	Put(exact)

	large := Get(CopySize + 1)
	assert.Len(t, large, CopySize+1)
	assert.Equal(t, LargeSize, cap(large))
	Put(large)

	huge := Get(LargeSize + 1)
	assert.Len(t, huge, LargeSize+1)
	// Above the large class the buffer is a one-off allocation.
	Put(huge)
}

func TestReuse(t *testing.T) {
	buf := Get(CopySize)
	buf[0] = 0xAB
	Put(buf)

	again := Get(10)
	assert.Equal(t, 10, len(again))
	assert.Equal(t, CopySize, cap(again))
	Put(again)
}
