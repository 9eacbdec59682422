package bolt

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/orneryd/boltcore/pkg/boltlog"
	"github.com/orneryd/boltcore/pkg/packstream"
)

// ServerState is the server-side session state.
type ServerState uint8

const (
	ServerAwaitingHandshake ServerState = iota
	ServerAwaitingInit
	ServerReady
	ServerStreaming
	ServerFailed
	ServerClosed
)

func (s ServerState) String() string {
	switch s {
	case ServerAwaitingHandshake:
		return "AwaitingHandshake"
	case ServerAwaitingInit:
		return "AwaitingInit"
	case ServerReady:
		return "Ready"
	case ServerStreaming:
		return "Streaming"
	case ServerFailed:
		return "Failed"
	case ServerClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Server accepts Bolt connections and drives one ServerSession per
// connection, each in its own goroutine.
//
// Example:
//
//	executor := &echoExecutor{}
//	srv := bolt.NewServer(bolt.DefaultConfig(), executor)
//	if err := srv.ListenAndServe(ctx, "127.0.0.1:7687"); err != nil {
//		log.Fatal(err)
//	}
type Server struct {
	config   *Config
	executor QueryExecutor

	mu       sync.Mutex
	listener net.Listener
	closed   atomic.Bool
}

// NewServer returns a Server that will dispatch RUN statements to
// executor.
func NewServer(config *Config, executor QueryExecutor) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{config: config, executor: executor}
}

// ListenAndServe binds addr and serves connections until ctx is cancelled
// or Close is called.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return transportErr(err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	boltlog.Info("bolt server listening", map[string]any{"addr": addr})

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	var activeConns atomic.Int64
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			return transportErr(err)
		}
		if int(activeConns.Load()) >= s.config.MaxConnections {
			conn.Close()
			continue
		}
		activeConns.Add(1)
		go func() {
			defer activeConns.Add(-1)
			s.handleConnection(ctx, conn)
		}()
	}
}

// Close stops accepting new connections. In-flight sessions run to
// completion.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	session := newServerSession(conn, s.config, s.executor)
	if err := session.serve(ctx); err != nil {
		boltlog.Debug("session ended", map[string]any{"err": err.Error()})
	}
}

// ServerSession drives the server side of a single Bolt connection: the
// handshake, INIT/auth, and the RUN/PULL_ALL/DISCARD_ALL/RESET/
// ACK_FAILURE dispatch loop.
type ServerSession struct {
	transport Transport
	br        *bufio.Reader
	bw        *bufio.Writer
	writer    *wireWriter
	reader    *wireReader

	config   *Config
	executor QueryExecutor

	state        ServerState
	activeStream RecordStream
	activeFields []string
}

func newServerSession(conn net.Conn, config *Config, executor QueryExecutor) *ServerSession {
	br := bufio.NewReaderSize(conn, config.ReadBufferSize)
	bw := bufio.NewWriterSize(conn, config.WriteBufferSize)
	return &ServerSession{
		transport: conn,
		br:        br,
		bw:        bw,
		writer:    newWireWriter(bw, config.MaxChunkSize),
		reader:    newWireReader(br),
		config:    config,
		executor:  executor,
		state:     ServerAwaitingHandshake,
	}
}

// State returns the session's current state.
func (s *ServerSession) State() ServerState { return s.state }

// serve runs the handshake then the dispatch loop until the connection
// closes or an unrecoverable error occurs.
func (s *ServerSession) serve(ctx context.Context) error {
	defer s.transport.Close()

	if err := s.handshake(); err != nil {
		return err
	}
	s.state = ServerAwaitingInit

	for {
		msg, err := s.reader.ReadMessage()
		if err != nil {
			return err
		}
		if err := s.dispatch(ctx, msg.Struct.Signature, msg.Struct.Fields); err != nil {
			return err
		}
		if s.state == ServerClosed {
			return nil
		}
	}
}

func (s *ServerSession) handshake() error {
	proposed, err := readClientHandshake(s.br)
	if err != nil {
		return err
	}
	version := chooseVersion(proposed)
	if err := writeServerHandshakeResponse(s.bw, version); err != nil {
		return err
	}
	if err := s.bw.Flush(); err != nil {
		return transportErr(err)
	}
	if version == 0 {
		return handshakeErr("no proposed version acceptable")
	}
	return nil
}

func (s *ServerSession) dispatch(ctx context.Context, sig byte, fields []packstream.Value) error {
	switch s.state {
	case ServerAwaitingInit:
		return s.dispatchAwaitingInit(ctx, sig, fields)
	case ServerReady:
		return s.dispatchReady(ctx, sig, fields)
	case ServerStreaming:
		return s.dispatchStreaming(ctx, sig, fields)
	case ServerFailed:
		return s.dispatchFailed(sig)
	default:
		return protocolViolation("message received in terminal state %s", s.state)
	}
}

func (s *ServerSession) dispatchAwaitingInit(ctx context.Context, sig byte, fields []packstream.Value) error {
	if sig != MsgInit {
		return s.sendFailureAndClose("Protocol.InvalidMessage", "expected INIT, got "+messageName(sig))
	}
	clientName := fields[0].Str
	authToken := metadataToMap(fields[1])
	scheme, principal, credentials := extractAuthFields(authToken)

	authenticator := s.config.Authenticator
	if authenticator == nil {
		if s.config.RequireAuth {
			return s.sendFailureAndClose("Security.Unauthorized", "authentication required but no authenticator configured")
		}
		authenticator = allowAllAuthenticator{}
	}
	result, err := authenticator.Authenticate(scheme, principal, credentials)
	if err != nil || result == nil || !result.Authenticated {
		msg := "authentication failed"
		if err != nil {
			msg = err.Error()
		}
		return s.sendFailureAndClose("Security.Unauthorized", msg)
	}

	boltlog.Debug("client initialized", map[string]any{"client_name": clientName, "user": result.Username})

	meta := mapFromAny(map[string]any{"server": s.config.ServerName})
	if err := s.writer.WriteMessage(buildSuccess(meta)); err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	s.state = ServerReady
	return nil
}

func (s *ServerSession) dispatchReady(ctx context.Context, sig byte, fields []packstream.Value) error {
	switch sig {
	case MsgRun:
		return s.handleRun(ctx, fields)
	case MsgReset:
		return s.handleReset()
	default:
		return s.sendFailure("Protocol.InvalidMessage", "unexpected message in Ready state: "+messageName(sig))
	}
}

func (s *ServerSession) dispatchStreaming(ctx context.Context, sig byte, fields []packstream.Value) error {
	switch sig {
	case MsgPullAll:
		return s.handlePullAll(ctx)
	case MsgDiscardAll:
		return s.handleDiscardAll(ctx)
	case MsgReset:
		return s.handleReset()
	default:
		return s.sendFailure("Protocol.InvalidMessage", "unexpected message in Streaming state: "+messageName(sig))
	}
}

func (s *ServerSession) dispatchFailed(sig byte) error {
	switch sig {
	case MsgAckFailure:
		return s.ackFailure()
	case MsgReset:
		return s.handleReset()
	default:
		// Failed state ignores everything else rather than failing
		// again — the general rule from the state machine design.
		if err := s.writer.WriteMessage(buildIgnored()); err != nil {
			return err
		}
		return s.writer.Flush()
	}
}

func (s *ServerSession) handleRun(ctx context.Context, fields []packstream.Value) error {
	statement := fields[0].Str
	params := metadataToMap(fields[1])

	result, err := s.executor.Run(ctx, statement, params)
	if err != nil {
		return s.failSession("Statement.ExecutionError", err.Error())
	}

	s.activeStream = result.Stream
	s.activeFields = result.Fields
	s.state = ServerStreaming

	fieldValues := make([]packstream.Value, len(result.Fields))
	for i, name := range result.Fields {
		fieldValues[i] = packstream.String(name)
	}
	meta := packstream.NewOrderedMap()
	meta.Set("fields", packstream.List(fieldValues...))
	meta.Set("result_available_after", packstream.Int(result.ResultAvailableAfterMs))
	if err := s.writer.WriteMessage(buildSuccess(meta)); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *ServerSession) handlePullAll(ctx context.Context) error {
	for {
		row, ok, err := s.activeStream.Next(ctx)
		if err != nil {
			return s.failSession("Statement.ExecutionError", err.Error())
		}
		if !ok {
			break
		}
		recordFields := make([]packstream.Value, len(row))
		for i, v := range row {
			recordFields[i] = anyToValue(v)
		}
		if err := s.writer.WriteMessage(buildRecord(recordFields)); err != nil {
			return err
		}
	}
	summary := s.activeStream.Summary()
	s.activeStream = nil
	s.state = ServerReady
	if err := s.writer.WriteMessage(buildSuccess(mapFromAny(summary))); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *ServerSession) handleDiscardAll(ctx context.Context) error {
	for {
		_, ok, err := s.activeStream.Next(ctx)
		if err != nil {
			return s.failSession("Statement.ExecutionError", err.Error())
		}
		if !ok {
			break
		}
	}
	summary := s.activeStream.Summary()
	s.activeStream = nil
	s.state = ServerReady
	if err := s.writer.WriteMessage(buildSuccess(mapFromAny(summary))); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *ServerSession) handleReset() error {
	s.activeStream = nil
	s.activeFields = nil
	s.state = ServerReady
	if err := s.writer.WriteMessage(buildSuccess(nil)); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *ServerSession) ackFailure() error {
	s.state = ServerReady
	if err := s.writer.WriteMessage(buildSuccess(nil)); err != nil {
		return err
	}
	return s.writer.Flush()
}

// failSession transitions to Failed and replies FAILURE, per the rule
// that an application callback error becomes a FAILURE and every
// subsequent non-ACK/RESET request is IGNORED until recovery.
func (s *ServerSession) failSession(code, message string) error {
	s.activeStream = nil
	s.state = ServerFailed
	if err := s.writer.WriteMessage(buildFailure(code, message)); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *ServerSession) sendFailure(code, message string) error {
	return s.failSession(code, message)
}

func (s *ServerSession) sendFailureAndClose(code, message string) error {
	if err := s.writer.WriteMessage(buildFailure(code, message)); err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	s.state = ServerClosed
	return nil
}
