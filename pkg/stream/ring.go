package stream

import "sync"

// ring is a fixed-size circular buffer for decoded PCM. Writers never
// block: on overflow the oldest quarter is dropped, which for a live
// feed only discards audio nobody was listening to.
type ring struct {
	buf []byte
	w   int // write position
	n   int // bytes stored
	mu  sync.Mutex
}

func newRing(size int) *ring {
	return &ring{buf: make([]byte, size)}
}

func (b *ring) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(p) > 0 {
		space := len(b.buf) - b.n
		if space == 0 {
			drop := len(b.buf) / 4
			b.w = (b.w + drop) % len(b.buf)
			b.n -= drop
			if b.n < 0 {
				b.n = 0
			}
			space = len(b.buf) - b.n
		}

		chunk := len(p)
		if chunk > space {
			chunk = space
		}

		end := (b.w + b.n) % len(b.buf)
		right := len(b.buf) - end
		if right > chunk {
			right = chunk
		}

		copy(b.buf[end:end+right], p[:right])
		if right < chunk {
			copy(b.buf[0:chunk-right], p[right:chunk])
		}

		b.n += chunk
		p = p[chunk:]
	}
}

// Snapshot returns a copy of the buffered bytes in arrival order
func (b *ring) Snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, b.n)
	if b.n == 0 {
		return out
	}

	head := b.w
	tail := (b.w + b.n) % len(b.buf)

	if head < tail {
		copy(out, b.buf[head:tail])
	} else {
		copy(out, b.buf[head:])
		copy(out[len(b.buf)-head:], b.buf[:tail])
	}

	return out
}

// Reset discards all buffered bytes
func (b *ring) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.w = 0
	b.n = 0
}

// Len returns the number of buffered bytes
func (b *ring) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}
