// Package chunked implements Bolt's chunked message transfer framing: a
// message is split into one or more length-prefixed chunks and terminated
// by a zero-length chunk.
package chunked

import "encoding/binary"

// DefaultMaxChunkSize is the chunk payload size WriteBuffer splits at when
// not otherwise configured. Must not exceed MaxChunkSize.
const DefaultMaxChunkSize = 8192

// MaxChunkSize is the largest payload a single chunk may carry; the length
// prefix is an unsigned 16-bit big-endian integer.
const MaxChunkSize = 65535

// WriteBuffer accumulates message bytes via Append and splits them into
// chunks terminated by EndMessage. It never emits a zero-length chunk in
// the middle of a message (that would be indistinguishable from the
// terminator), splitting short messages across an extra chunk boundary
// instead when necessary.
type WriteBuffer struct {
	maxChunkSize int
	pending      []byte // unflushed message bytes not yet chunked
	chunks       [][]byte
}

// NewWriteBuffer returns a WriteBuffer that splits at maxChunkSize-byte
// boundaries. A maxChunkSize of 0 selects DefaultMaxChunkSize.
func NewWriteBuffer(maxChunkSize int) *WriteBuffer {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if maxChunkSize > MaxChunkSize {
		maxChunkSize = MaxChunkSize
	}
	return &WriteBuffer{maxChunkSize: maxChunkSize}
}

// Append adds raw message bytes to the buffer without chunking them yet.
func (w *WriteBuffer) Append(data []byte) {
	w.pending = append(w.pending, data...)
}

// EndMessage chunks all pending bytes accumulated since the last
// EndMessage and appends a zero-length terminator, completing one logical
// message. Chunk payloads always sum to exactly the pending byte count.
func (w *WriteBuffer) EndMessage() {
	data := w.pending
	w.pending = nil

	for len(data) > w.maxChunkSize {
		w.emitChunk(data[:w.maxChunkSize])
		data = data[w.maxChunkSize:]
	}
	// Emit the remainder, even if empty, as a single final chunk — an
	// empty message still needs zero preceding chunks, just the
	// terminator below.
	if len(data) > 0 {
		w.emitChunk(data)
	}
	w.emitChunk(nil) // 0x0000 terminator
}

func (w *WriteBuffer) emitChunk(payload []byte) {
	header := make([]byte, 2, 2+len(payload))
	binary.BigEndian.PutUint16(header, uint16(len(payload)))
	w.chunks = append(w.chunks, append(header, payload...))
}

// Flush returns all chunks queued so far (across any number of completed
// messages) and clears the internal queue.
func (w *WriteBuffer) Flush() [][]byte {
	out := w.chunks
	w.chunks = nil
	return out
}

// Bytes returns the flattened wire bytes of all queued chunks and clears
// the queue. Convenience wrapper around Flush for callers that write to an
// io.Writer directly.
func (w *WriteBuffer) Bytes() []byte {
	chunks := w.Flush()
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
