package protocol

// FrameBuffer holds one pending image. Its storage is allocated once with the
// machine and never resized; only the counters are reset between frames.
type FrameBuffer struct {
	data     [Capacity]byte
	expected int
	received int
}

// Begin starts a frame of length n. The wire value is never trusted: n must
// be in (0, Capacity].
func (b *FrameBuffer) Begin(n uint32) error {
	if n == 0 || n > Capacity {
		return ErrLength
	}
	b.expected = int(n)
	b.received = 0
	return nil
}

// Append stores one payload byte.
func (b *FrameBuffer) Append(c byte) error {
	if b.expected == 0 {
		return ErrNoFrame
	}
	if b.received >= b.expected || b.received >= len(b.data) {
		return ErrBufferFull
	}
	b.data[b.received] = c
	b.received++
	return nil
}

// Remaining returns how many payload bytes are still expected.
func (b *FrameBuffer) Remaining() int {
	return b.expected - b.received
}

// Complete reports whether an active frame has been fully received.
func (b *FrameBuffer) Complete() bool {
	return b.expected > 0 && b.received == b.expected
}

// Bytes returns the completed frame, or nil while it is still partial.
func (b *FrameBuffer) Bytes() []byte {
	if !b.Complete() {
		return nil
	}
	return b.data[:b.expected]
}

// Reset clears the counters. Memory is not zeroed.
func (b *FrameBuffer) Reset() {
	b.expected = 0
	b.received = 0
}

func (b *FrameBuffer) Expected() int { return b.expected }
func (b *FrameBuffer) Received() int { return b.received }
