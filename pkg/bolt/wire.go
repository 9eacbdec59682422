package bolt

import (
	"bufio"
	"sync"

	"github.com/orneryd/boltcore/pkg/chunked"
	"github.com/orneryd/boltcore/pkg/packstream"
)

// DefaultMaxChunkSize matches chunked.DefaultMaxChunkSize; exposed here so
// callers configuring a Config don't need to import pkg/chunked directly.
const DefaultMaxChunkSize = chunked.DefaultMaxChunkSize

// messageBufferPool reduces allocations for the byte slice each outbound
// message is encoded into before chunking.
var messageBufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 4096)
		return &buf
	},
}

// wireWriter encodes a PackStream message and writes it to a transport as
// one chunked envelope.
type wireWriter struct {
	bw           *bufio.Writer
	maxChunkSize int
}

func newWireWriter(w *bufio.Writer, maxChunkSize int) *wireWriter {
	return &wireWriter{bw: w, maxChunkSize: maxChunkSize}
}

func (w *wireWriter) WriteMessage(v packstream.Value) error {
	bufPtr := messageBufferPool.Get().(*[]byte)
	buf := (*bufPtr)[:0]
	defer func() {
		*bufPtr = buf
		messageBufferPool.Put(bufPtr)
	}()

	buf, err := packstream.Encode(buf, v)
	if err != nil {
		return malformedErr(err)
	}

	cw := chunked.NewWriteBuffer(w.maxChunkSize)
	cw.Append(buf)
	cw.EndMessage()
	for _, chunk := range cw.Flush() {
		if _, err := w.bw.Write(chunk); err != nil {
			return transportErr(err)
		}
	}
	return nil
}

func (w *wireWriter) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return transportErr(err)
	}
	return nil
}

// wireReader reassembles chunks from a transport into complete PackStream
// messages via a chunked.Parser feeding a chunked.ReadBuffer.
type wireReader struct {
	br     *bufio.Reader
	parser *chunked.Parser
	rb     *chunked.ReadBuffer
	inbuf  []byte
}

func newWireReader(r *bufio.Reader) *wireReader {
	return &wireReader{
		br:     r,
		parser: chunked.NewParser(),
		rb:     chunked.NewReadBuffer(),
		inbuf:  make([]byte, 4096),
	}
}

func (rd *wireReader) consumer() chunked.Consumer { return chunkConsumer{rd.rb} }

type chunkConsumer struct{ rb *chunked.ReadBuffer }

func (c chunkConsumer) OnChunk(payload []byte) { c.rb.FeedChunk(payload) }
func (c chunkConsumer) OnMessageComplete()     { c.rb.FeedEOF() }

// ReadMessage blocks until a full message has arrived on the wire,
// decodes it, and returns the resulting Value (always a Structure).
func (rd *wireReader) ReadMessage() (packstream.Value, error) {
	for !rd.rb.AtMessageBoundary() {
		n, err := rd.br.Read(rd.inbuf)
		if n > 0 {
			rd.parser.Feed(rd.inbuf[:n], rd.consumer())
		}
		if err != nil {
			return packstream.Value{}, transportErr(err)
		}
	}
	n := rd.rb.Available()
	raw, err := rd.rb.Read(n)
	if err != nil {
		return packstream.Value{}, malformedErr(err)
	}
	rd.rb.ConsumeEOF()

	v, consumed, err := packstream.Decode(raw)
	if err != nil {
		return packstream.Value{}, malformedErr(err)
	}
	if consumed != len(raw) {
		return packstream.Value{}, protocolViolation("trailing bytes after message: %d of %d consumed", consumed, len(raw))
	}
	if v.Kind != packstream.KindStructure {
		return packstream.Value{}, protocolViolation("message is not a structure")
	}
	return v, nil
}
