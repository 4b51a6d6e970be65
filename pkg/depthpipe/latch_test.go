package depthpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatchPairsMatchingFrameIDs(t *testing.T) {
	l := NewLatch()

	_, ok := l.Offer(true, Half{FrameID: 7})
	assert.False(t, ok, "one eye alone must not pair")

	pair, ok := l.Offer(false, Half{FrameID: 7})
	require.True(t, ok)
	assert.True(t, pair.Paired)
	assert.Equal(t, uint16(7), pair.ID())
}

func TestLatchOverwritesStaleSide(t *testing.T) {
	l := NewLatch()

	l.Offer(true, Half{FrameID: 1})
	l.Offer(true, Half{FrameID: 2}) // newer left overwrites the stale one

	_, ok := l.Offer(false, Half{FrameID: 1})
	assert.False(t, ok, "right frame 1 must not pair with left frame 2")

	pair, ok := l.Offer(false, Half{FrameID: 2})
	require.True(t, ok)
	assert.Equal(t, uint16(2), pair.ID())
}

func TestLatchHandlesFrameIDWraparound(t *testing.T) {
	l := NewLatch()

	l.Offer(true, Half{FrameID: 0xFFFF})
	pair, ok := l.Offer(false, Half{FrameID: 0xFFFF})
	require.True(t, ok)
	assert.Equal(t, uint16(0xFFFF), pair.ID())
}
