package bolt

import "io"

// Transport is the byte-stream abstraction the session reads and writes
// through. A *net.TCPConn or *tls.Conn satisfies this directly; tests use
// an in-memory pipe.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}
