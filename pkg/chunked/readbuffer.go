package chunked

import "errors"

// ErrBufferEmpty is returned by Read when fewer than the requested number
// of bytes are available across all buffered chunks.
var ErrBufferEmpty = errors.New("chunked: not enough bytes buffered")

// ReadBuffer assembles complete chunk payloads fed to it by a Parser and
// exposes Read(n), satisfying reads across chunk boundaries transparently.
// Message boundaries are tracked separately via FeedEOF so callers can tell
// when a full message has arrived.
type ReadBuffer struct {
	queue    [][]byte
	pos      int // offset into queue[0]
	atEOF    bool
}

// NewReadBuffer returns an empty ReadBuffer.
func NewReadBuffer() *ReadBuffer {
	return &ReadBuffer{}
}

// FeedChunk appends a completed, non-empty chunk payload to the buffer.
func (r *ReadBuffer) FeedChunk(payload []byte) {
	if len(payload) == 0 {
		return
	}
	r.queue = append(r.queue, payload)
}

// FeedEOF marks that the message currently being assembled is complete
// (the parser observed the 0x0000 terminator).
func (r *ReadBuffer) FeedEOF() {
	r.atEOF = true
}

// Available returns the number of buffered, unread bytes.
func (r *ReadBuffer) available() int {
	if len(r.queue) == 0 {
		return 0
	}
	total := len(r.queue[0]) - r.pos
	for _, c := range r.queue[1:] {
		total += len(c)
	}
	return total
}

// Read returns exactly n bytes drawn from the front of the queue,
// advancing past them. It returns ErrBufferEmpty if fewer than n bytes are
// currently buffered.
func (r *ReadBuffer) Read(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if r.available() < n {
		return nil, ErrBufferEmpty
	}
	out := make([]byte, 0, n)
	for n > 0 {
		cur := r.queue[0]
		remaining := len(cur) - r.pos
		take := remaining
		if take > n {
			take = n
		}
		out = append(out, cur[r.pos:r.pos+take]...)
		r.pos += take
		n -= take
		if r.pos == len(cur) {
			r.queue = r.queue[1:]
			r.pos = 0
		}
	}
	return out, nil
}

// Available reports the number of buffered, unread bytes. Exported for
// callers that need to check readability before calling Read.
func (r *ReadBuffer) Available() int { return r.available() }

// ConsumeEOF clears the end-of-message flag once the caller has finished
// reading the message's bytes, preparing the buffer for the next message.
func (r *ReadBuffer) ConsumeEOF() {
	r.atEOF = false
}

// AtMessageBoundary reports whether the terminator for the current message
// has been observed (regardless of whether all its bytes have been read
// yet).
func (r *ReadBuffer) AtMessageBoundary() bool { return r.atEOF }
