// Package bolt implements the Bolt v1 wire protocol: handshake,
// PackStream-framed message exchange, and the session state machines that
// drive both client and server sides of a connection.
//
// Example Usage (server):
//
//	executor := &myExecutor{} // implements bolt.QueryExecutor
//	srv := bolt.NewServer(bolt.DefaultConfig(), executor)
//	if err := srv.ListenAndServe(ctx, "127.0.0.1:7687"); err != nil {
//		log.Fatal(err)
//	}
//
// Example Usage (client):
//
//	conn, _ := net.Dial("tcp", "127.0.0.1:7687")
//	session, _ := bolt.NewClientSession(conn, bolt.ClientHello{
//		ClientName: "myapp/1.0",
//		Auth:       map[string]any{"scheme": "basic", "principal": "neo4j", "credentials": "pw"},
//	})
//	for resp := range session.Run(ctx, "RETURN 1 AS num", nil) {
//		fmt.Println(resp.Fields)
//	}
//
// ELI12 (Explain Like I'm 12):
//
// Two programs want to talk over a single wire, but "a single wire" can
// only carry one message at a time in little pieces (chunks). This
// package is the part that (1) turns values like "the number 5" or "the
// list [1,2,3]" into bytes and back (PackStream), (2) wraps those bytes in
// labeled envelopes so the other side knows where one message ends and the
// next begins (chunked framing), and (3) keeps track of the conversation
// so far — "did I already ask a question I'm still waiting on an answer
// to?" (the session state machine).
package bolt

import "github.com/orneryd/boltcore/pkg/packstream"

// Message signature bytes, per the Bolt v1 wire format.
const (
	MsgInit       byte = 0x01
	MsgAckFailure byte = 0x0E
	MsgReset      byte = 0x0F
	MsgRun        byte = 0x10
	MsgDiscardAll byte = 0x2F
	MsgPullAll    byte = 0x3F

	MsgSuccess byte = 0x70
	MsgRecord  byte = 0x71
	MsgIgnored byte = 0x7E
	MsgFailure byte = 0x7F
)

// NodeStructureSignature is the signature byte used by graph Node values
// embedded in RECORD fields: (id:Integer, labels:List, properties:Map).
const NodeStructureSignature byte = 0x4E

// messageName returns a human-readable name for a signature, used in log
// lines and protocol violation errors.
func messageName(sig byte) string {
	switch sig {
	case MsgInit:
		return "INIT"
	case MsgAckFailure:
		return "ACK_FAILURE"
	case MsgReset:
		return "RESET"
	case MsgRun:
		return "RUN"
	case MsgDiscardAll:
		return "DISCARD_ALL"
	case MsgPullAll:
		return "PULL_ALL"
	case MsgSuccess:
		return "SUCCESS"
	case MsgRecord:
		return "RECORD"
	case MsgIgnored:
		return "IGNORED"
	case MsgFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// buildInit constructs the INIT structure sent by the client.
func buildInit(clientName string, auth *packstream.OrderedMap) packstream.Value {
	return packstream.Struct(MsgInit, packstream.String(clientName), packstream.Map(auth))
}

// buildRun constructs the RUN structure sent by the client.
func buildRun(statement string, params *packstream.OrderedMap) packstream.Value {
	if params == nil {
		params = packstream.NewOrderedMap()
	}
	return packstream.Struct(MsgRun, packstream.String(statement), packstream.Map(params))
}

func buildZeroArg(sig byte) packstream.Value {
	return packstream.Struct(sig)
}

func buildSuccess(metadata *packstream.OrderedMap) packstream.Value {
	if metadata == nil {
		metadata = packstream.NewOrderedMap()
	}
	return packstream.Struct(MsgSuccess, packstream.Map(metadata))
}

func buildRecord(fields []packstream.Value) packstream.Value {
	return packstream.Struct(MsgRecord, packstream.List(fields...))
}

func buildIgnored() packstream.Value {
	return packstream.Struct(MsgIgnored)
}

func buildFailure(code, message string) packstream.Value {
	m := packstream.NewOrderedMap()
	m.Set("code", packstream.String(code))
	m.Set("message", packstream.String(message))
	return packstream.Struct(MsgFailure, packstream.Map(m))
}

// metadataToMap converts a decoded packstream Map value into a plain Go
// map for application-facing hooks.
func metadataToMap(v packstream.Value) map[string]any {
	out := make(map[string]any)
	if v.Kind != packstream.KindMap || v.Map == nil {
		return out
	}
	v.Map.Range(func(key string, val packstream.Value) {
		out[key] = valueToAny(val)
	})
	return out
}

func valueToAny(v packstream.Value) any {
	switch v.Kind {
	case packstream.KindNull:
		return nil
	case packstream.KindBoolean:
		return v.Bool
	case packstream.KindInteger:
		return v.Int
	case packstream.KindFloat:
		return v.Float
	case packstream.KindString:
		return v.Str
	case packstream.KindBytes:
		return v.Bytes
	case packstream.KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = valueToAny(item)
		}
		return out
	case packstream.KindMap:
		return metadataToMap(v)
	case packstream.KindStructure:
		return v.Struct
	default:
		return nil
	}
}

// mapFromAny builds an OrderedMap from a plain Go map, for application
// hooks that produce metadata as map[string]any. Key order is whatever
// Go's map iteration yields; callers needing deterministic wire output
// should build an *packstream.OrderedMap directly instead.
func mapFromAny(m map[string]any) *packstream.OrderedMap {
	out := packstream.NewOrderedMap()
	for k, v := range m {
		out.Set(k, anyToValue(v))
	}
	return out
}

func anyToValue(v any) packstream.Value {
	switch x := v.(type) {
	case nil:
		return packstream.Null()
	case bool:
		return packstream.Bool(x)
	case int:
		return packstream.Int(int64(x))
	case int64:
		return packstream.Int(x)
	case float64:
		return packstream.Float64(x)
	case string:
		return packstream.String(x)
	case []byte:
		return packstream.Raw(x)
	case []any:
		items := make([]packstream.Value, len(x))
		for i, item := range x {
			items[i] = anyToValue(item)
		}
		return packstream.List(items...)
	case map[string]any:
		return packstream.Map(mapFromAny(x))
	case packstream.Value:
		return x
	default:
		return packstream.Null()
	}
}
