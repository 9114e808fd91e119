package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_WriteAndSnapshot(t *testing.T) {
	r := newRing(8)

	r.Write([]byte("abc"))
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []byte("abc"), r.Snapshot())

	r.Write([]byte("defgh"))
	assert.Equal(t, 8, r.Len())
	assert.Equal(t, []byte("abcdefgh"), r.Snapshot())
}

func TestRing_OverflowDropsOldest(t *testing.T) {
	r := newRing(8)

	r.Write([]byte("abcdefgh"))
	r.Write([]byte("ij"))

	// A quarter of the oldest audio makes room for the new bytes
	assert.Equal(t, []byte("cdefghij"), r.Snapshot())
	assert.Equal(t, 8, r.Len())
}

func TestRing_WriteLargerThanBuffer(t *testing.T) {
	r := newRing(4)

	r.Write([]byte("abcdefghij"))

	// Only recent audio survives and arrival order is preserved
	assert.Equal(t, []byte("ghij"), r.Snapshot())
}

func TestRing_Reset(t *testing.T) {
	r := newRing(8)

	r.Write([]byte("abcdef"))
	r.Reset()

	assert.Zero(t, r.Len())
	assert.Empty(t, r.Snapshot())

	r.Write([]byte("xy"))
	assert.Equal(t, []byte("xy"), r.Snapshot())
}

func TestRing_WrapAround(t *testing.T) {
	r := newRing(6)

	r.Write([]byte("abcdef"))
	r.Write([]byte("g")) // drops a quarter, write wraps
	r.Write([]byte("h"))

	snapshot := r.Snapshot()
	assert.Equal(t, []byte("cdefgh"), snapshot)
}
