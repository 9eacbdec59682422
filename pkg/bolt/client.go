package bolt

import (
	"bufio"
	"context"
	"fmt"
)

// ClientState is the client-side session state, per the lifecycle in the
// wire protocol: Uninitialized -> Connected -> Ready <-> Streaming, with
// Failed reachable from any state and recoverable back to Ready.
type ClientState uint8

const (
	ClientUninitialized ClientState = iota
	ClientConnected
	ClientReady
	ClientStreaming
	ClientFailed
	ClientClosed
)

func (s ClientState) String() string {
	switch s {
	case ClientUninitialized:
		return "Uninitialized"
	case ClientConnected:
		return "Connected"
	case ClientReady:
		return "Ready"
	case ClientStreaming:
		return "Streaming"
	case ClientFailed:
		return "Failed"
	case ClientClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// DefaultMaxInflight bounds how many pipelined (RUN, PULL_ALL) message
// pairs may be outstanding before Pipeline refuses further work.
const DefaultMaxInflight = 1024

// ClientSession drives the client side of a single Bolt connection: it
// performs the handshake, sends INIT, and thereafter lets the caller
// pipeline statements and stream results back in FIFO order.
//
// A ClientSession is not safe for concurrent use by multiple goroutines —
// it models the protocol's single-threaded cooperative scheduling model
// (see the package doc); callers needing concurrent query submission
// should serialize access themselves or use one session per goroutine.
type ClientSession struct {
	transport Transport
	br        *bufio.Reader
	bw        *bufio.Writer
	writer    *wireWriter
	reader    *wireReader

	state ClientState

	// inflight counts outstanding message "slots" from pipelined
	// (RUN, PULL_ALL) pairs not yet resolved — two slots per Pipeline
	// call, decremented as each RUN-success/PULL-summary is consumed.
	inflight    int
	maxInflight int

	clientName string
	authToken  map[string]any
}

// ClientSessionOption configures optional ClientSession behavior.
type ClientSessionOption func(*ClientSession)

// WithMaxInflight overrides DefaultMaxInflight.
func WithMaxInflight(n int) ClientSessionOption {
	return func(s *ClientSession) { s.maxInflight = n }
}

// Dial performs the Bolt handshake over transport and returns a
// ClientSession in the Connected state, ready for Init.
func Dial(transport Transport, opts ...ClientSessionOption) (*ClientSession, error) {
	if err := writeClientHandshake(transport, DefaultProposedVersions); err != nil {
		return nil, err
	}
	version, err := readServerHandshakeResponse(transport)
	if err != nil {
		return nil, err
	}
	if version != ProtocolVersion1 {
		transport.Close()
		return nil, handshakeErr(fmt.Sprintf("server rejected handshake, chose version %d", version))
	}

	br := bufio.NewReaderSize(transport, 8192)
	bw := bufio.NewWriterSize(transport, 8192)
	s := &ClientSession{
		transport:   transport,
		br:          br,
		bw:          bw,
		writer:      newWireWriter(bw, DefaultMaxChunkSize),
		reader:      newWireReader(br),
		state:       ClientConnected,
		maxInflight: DefaultMaxInflight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the session's current state.
func (s *ClientSession) State() ClientState { return s.state }

// Init sends INIT and blocks for the server's SUCCESS/FAILURE response.
// On FAILURE the server is required to close the connection; the caller
// must treat the returned AuthFailure error as authoritative and not reuse
// the session.
func (s *ClientSession) Init(ctx context.Context, clientName string, auth map[string]any) (map[string]any, error) {
	if s.state != ClientConnected {
		return nil, protocolViolation("Init called in state %s", s.state)
	}
	s.clientName = clientName
	s.authToken = auth

	authMap := mapFromAny(auth)
	if err := s.writer.WriteMessage(buildInit(clientName, authMap)); err != nil {
		return nil, err
	}
	if err := s.writer.Flush(); err != nil {
		return nil, err
	}

	msg, err := s.reader.ReadMessage()
	if err != nil {
		return nil, err
	}
	switch msg.Struct.Signature {
	case MsgSuccess:
		s.state = ClientReady
		return metadataToMap(msg.Struct.Fields[0]), nil
	case MsgFailure:
		s.state = ClientClosed
		s.transport.Close()
		meta := metadataToMap(msg.Struct.Fields[0])
		return nil, authFailure(stringField(meta, "code"), stringField(meta, "message"))
	default:
		return nil, protocolViolation("unexpected response to INIT: %s", messageName(msg.Struct.Signature))
	}
}

// Pipeline enqueues a RUN followed by a PULL_ALL into the outbound buffer
// without flushing. It returns immediately; responses are consumed by a
// subsequent Run or Reset call.
func (s *ClientSession) Pipeline(statement string, params map[string]any) error {
	if s.inflight+2 > s.maxInflight {
		return protocolViolation("exceeded max inflight pipelined messages (%d)", s.maxInflight)
	}
	if err := s.writer.WriteMessage(buildRun(statement, mapFromAny(params))); err != nil {
		return err
	}
	if err := s.writer.WriteMessage(buildZeroArg(MsgPullAll)); err != nil {
		return err
	}
	s.inflight += 2
	return nil
}

// ClientRecordStream is a lazy, pull-based sequence of ClientResponse values
// produced by Run. Next suspends until the next RECORD or terminal
// summary arrives (or an error occurs) and reports whether the sequence
// has more values to deliver.
type ClientRecordStream struct {
	session     *ClientSession
	getEOF      bool
	phase       streamPhase
	successMeta map[string]any
	err         error
	done        bool
}

type streamPhase uint8

const (
	phaseAwaitRunSuccess streamPhase = iota
	phaseDrainRecords
)

// Next advances the stream. ok is false once the sequence is exhausted;
// callers should check Err after the first Next call that returns ok=false.
//
// If ctx is cancelled before the sequence is exhausted, Next drains every
// remaining inflight slot itself — the same FIFO-preserving drain Reset
// performs — rather than leave an abandoned consumer's unread responses
// on the wire to desync whatever the session pipelines next.
func (rs *ClientRecordStream) Next(ctx context.Context) (resp ClientResponse, ok bool) {
	if rs.done {
		return ClientResponse{}, false
	}
	s := rs.session
	for {
		if s.inflight <= 0 {
			rs.done = true
			return ClientResponse{}, false
		}
		select {
		case <-ctx.Done():
			rs.abandon()
			return ClientResponse{}, false
		default:
		}
		msg, err := s.reader.ReadMessage()
		if err != nil {
			rs.err = err
			rs.done = true
			s.state = ClientClosed
			return ClientResponse{}, false
		}
		sig := msg.Struct.Signature

		switch rs.phase {
		case phaseAwaitRunSuccess:
			switch sig {
			case MsgSuccess:
				s.inflight--
				rs.successMeta = metadataToMap(msg.Struct.Fields[0])
				rs.phase = phaseDrainRecords
				s.state = ClientStreaming
				continue
			case MsgFailure:
				s.inflight--
				meta := metadataToMap(msg.Struct.Fields[0])
				s.state = ClientFailed
				rs.err = serverFailure(stringField(meta, "code"), stringField(meta, "message"))
				rs.done = true
				return ClientResponse{}, false
			default:
				rs.err = protocolViolation("unexpected response awaiting RUN success: %s", messageName(sig))
				rs.done = true
				return ClientResponse{}, false
			}

		case phaseDrainRecords:
			switch sig {
			case MsgRecord:
				fields := msg.Struct.Fields[0].List
				out := make([]any, len(fields))
				for i, f := range fields {
					out[i] = valueToAny(f)
				}
				return ClientResponse{Fields: out, Metadata: rs.successMeta, EOF: false}, true
			case MsgSuccess:
				s.inflight--
				s.state = ClientReady
				summary := metadataToMap(msg.Struct.Fields[0])
				rs.phase = phaseAwaitRunSuccess
				if rs.getEOF {
					return ClientResponse{Fields: nil, Metadata: summary, EOF: true}, true
				}
				continue
			case MsgFailure:
				s.inflight--
				meta := metadataToMap(msg.Struct.Fields[0])
				s.state = ClientFailed
				rs.err = serverFailure(stringField(meta, "code"), stringField(meta, "message"))
				rs.done = true
				return ClientResponse{}, false
			case MsgIgnored:
				s.inflight--
				rs.err = ignoredErr()
				rs.done = true
				return ClientResponse{}, false
			default:
				rs.err = protocolViolation("unexpected response draining records: %s", messageName(sig))
				rs.done = true
				return ClientResponse{}, false
			}
		}
	}
}

// abandon drains every outstanding inflight slot without delivering
// records to the caller, leaving the session in Ready (or Failed, if a
// FAILURE turns up while draining) instead of Streaming with unread
// bytes on the wire. Err reports ErrKindCancelled afterward.
func (rs *ClientRecordStream) abandon() {
	s := rs.session
	sawFailure := false
	for s.inflight > 0 {
		msg, err := s.reader.ReadMessage()
		if err != nil {
			s.state = ClientClosed
			rs.err = cancelledErr()
			rs.done = true
			return
		}
		switch msg.Struct.Signature {
		case MsgRecord:
			// Discarded without counting against inflight — only the
			// terminal SUCCESS/FAILURE/IGNORED of each pipelined pair
			// resolves a slot.
		case MsgSuccess, MsgIgnored:
			s.inflight--
		case MsgFailure:
			sawFailure = true
			s.inflight--
		default:
			s.state = ClientClosed
			rs.err = protocolViolation("unexpected message draining abandoned stream: %s", messageName(msg.Struct.Signature))
			rs.done = true
			return
		}
	}
	if sawFailure {
		s.state = ClientFailed
	} else {
		s.state = ClientReady
	}
	rs.err = cancelledErr()
	rs.done = true
}

// Err returns the error, if any, that ended the stream.
func (rs *ClientRecordStream) Err() error { return rs.err }

// Run appends one more (RUN, PULL_ALL) pair if statement is non-empty,
// flushes the outbound buffer, and returns a lazy sequence draining every
// outstanding pipelined pair in FIFO order — including any pipelined
// earlier via Pipeline and not yet consumed.
func (s *ClientSession) Run(ctx context.Context, statement string, params map[string]any, getEOF bool) (*ClientRecordStream, error) {
	if statement != "" {
		if err := s.Pipeline(statement, params); err != nil {
			return nil, err
		}
	}
	if err := s.writer.Flush(); err != nil {
		return nil, err
	}
	return &ClientRecordStream{session: s, getEOF: getEOF, phase: phaseAwaitRunSuccess}, nil
}

// Reset sends RESET, draining any outstanding pipelined responses as
// IGNORED first (to preserve FIFO ordering against the server), then waits
// for the SUCCESS acknowledging the reset. It clears all pending requests
// and restores the session to Ready from any state except Closed.
func (s *ClientSession) Reset(ctx context.Context) error {
	if s.state == ClientClosed {
		return protocolViolation("Reset called on a Closed session")
	}
	if err := s.writer.WriteMessage(buildZeroArg(MsgReset)); err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	for s.inflight > 0 {
		msg, err := s.reader.ReadMessage()
		if err != nil {
			s.state = ClientClosed
			return err
		}
		switch msg.Struct.Signature {
		case MsgIgnored, MsgSuccess, MsgFailure:
			s.inflight--
		default:
			return protocolViolation("unexpected message while draining for reset: %s", messageName(msg.Struct.Signature))
		}
	}
	msg, err := s.reader.ReadMessage()
	if err != nil {
		s.state = ClientClosed
		return err
	}
	if msg.Struct.Signature != MsgSuccess {
		return protocolViolation("expected SUCCESS for RESET, got %s", messageName(msg.Struct.Signature))
	}
	s.state = ClientReady
	return nil
}

// AckFailure sends ACK_FAILURE, the soft-recovery counterpart to Reset
// that clears the Failed state while preserving server-side session
// variables. Valid only when the session is currently Failed.
//
// The FAILURE that put the session into the Failed state only ever
// resolves the first slot of its pipelined (RUN, PULL_ALL) pair; the
// paired PULL_ALL's IGNORED is still outstanding on the wire, so — like
// Reset — any remaining inflight slots are drained before waiting for
// the ACK_FAILURE's own SUCCESS.
func (s *ClientSession) AckFailure(ctx context.Context) error {
	if s.state != ClientFailed {
		return protocolViolation("AckFailure called outside Failed state (%s)", s.state)
	}
	if err := s.writer.WriteMessage(buildZeroArg(MsgAckFailure)); err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	for s.inflight > 0 {
		msg, err := s.reader.ReadMessage()
		if err != nil {
			s.state = ClientClosed
			return err
		}
		switch msg.Struct.Signature {
		case MsgIgnored, MsgSuccess, MsgFailure:
			s.inflight--
		default:
			return protocolViolation("unexpected message while draining for ack_failure: %s", messageName(msg.Struct.Signature))
		}
	}
	msg, err := s.reader.ReadMessage()
	if err != nil {
		s.state = ClientClosed
		return err
	}
	if msg.Struct.Signature != MsgSuccess {
		return protocolViolation("expected SUCCESS for ACK_FAILURE, got %s", messageName(msg.Struct.Signature))
	}
	s.state = ClientReady
	return nil
}

// Close closes the underlying transport.
func (s *ClientSession) Close() error {
	s.state = ClientClosed
	return s.transport.Close()
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
