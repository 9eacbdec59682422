// Package demoexec provides a small, explicitly illustrative
// bolt.QueryExecutor that gives a running server something real to do
// without implementing a query language. It recognizes exactly three
// literal statement shapes: "RETURN 1 AS num", "CREATE (n:Label {...})",
// and "MATCH (n) RETURN n" / "MATCH (n:Label) RETURN n". Anything else
// fails with a statement error, the same outcome a real Cypher engine
// would give for an unsupported statement.
package demoexec

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/orneryd/boltcore/pkg/bolt"
	"github.com/orneryd/boltcore/pkg/graphstore"
	"github.com/orneryd/boltcore/pkg/packstream"
)

var (
	createPattern = regexp.MustCompile(`(?i)^CREATE\s*\(\s*(\w*)\s*(?::\s*(\w+))?\s*(\{.*\})?\s*\)\s*$`)
	matchPattern  = regexp.MustCompile(`(?i)^MATCH\s*\(\s*(\w*)\s*(?::\s*(\w+))?\s*\)\s*RETURN\s+\w+\s*$`)
)

// Executor answers RUN statements against a graphstore.Store.
//
// Example:
//
//	store, _ := graphstore.Open(graphstore.Options{InMemory: true})
//	exec := demoexec.New(store)
//	srv := bolt.NewServer(bolt.DefaultConfig(), exec)
type Executor struct {
	store  *graphstore.Store
	nextID int
}

// New returns an Executor backed by store.
func New(store *graphstore.Store) *Executor {
	return &Executor{store: store}
}

// Run dispatches statement to one of the three recognized shapes.
func (e *Executor) Run(ctx context.Context, statement string, params map[string]any) (bolt.RunResult, error) {
	trimmed := strings.TrimSpace(statement)

	switch {
	case strings.EqualFold(trimmed, "RETURN 1 AS num"):
		return e.runReturnOne()
	case createPattern.MatchString(trimmed):
		return e.runCreate(trimmed, params)
	case matchPattern.MatchString(trimmed):
		return e.runMatch(trimmed)
	default:
		return bolt.RunResult{}, fmt.Errorf("demoexec: unsupported statement: %s", trimmed)
	}
}

func (e *Executor) runReturnOne() (bolt.RunResult, error) {
	return bolt.RunResult{
		Fields:                 []string{"num"},
		ResultAvailableAfterMs: 0,
		Stream:                 bolt.SliceRecordStream([][]any{{int64(1)}}, map[string]any{"type": "r"}),
	}, nil
}

func (e *Executor) runCreate(statement string, params map[string]any) (bolt.RunResult, error) {
	m := createPattern.FindStringSubmatch(statement)
	label := m[2]

	e.nextID++
	id := graphstore.NodeID(fmt.Sprintf("n%d", e.nextID))
	node := &graphstore.Node{
		ID:         id,
		Properties: params,
	}
	if label != "" {
		node.Labels = []string{label}
	}
	if node.Properties == nil {
		node.Properties = map[string]any{}
	}
	if err := e.store.CreateNode(node); err != nil {
		return bolt.RunResult{}, fmt.Errorf("demoexec: create node: %w", err)
	}

	summary := map[string]any{
		"stats":                 map[string]any{"nodes-created": int64(1)},
		"result_consumed_after": int64(0),
		"type":                  "w",
	}
	return bolt.RunResult{
		Fields:                 nil,
		ResultAvailableAfterMs: 0,
		Stream:                 bolt.SliceRecordStream(nil, summary),
	}, nil
}

func (e *Executor) runMatch(statement string) (bolt.RunResult, error) {
	m := matchPattern.FindStringSubmatch(statement)
	label := m[2]

	var nodes []*graphstore.Node
	var err error
	if label != "" {
		nodes, err = e.store.NodesByLabel(label)
	} else {
		nodes, err = e.store.AllNodes()
	}
	if err != nil {
		return bolt.RunResult{}, fmt.Errorf("demoexec: match: %w", err)
	}

	rows := make([][]any, len(nodes))
	for i, n := range nodes {
		rows[i] = []any{encodeNodeStructure(n)}
	}

	return bolt.RunResult{
		Fields:                 []string{"n"},
		ResultAvailableAfterMs: 0,
		Stream:                 bolt.SliceRecordStream(rows, map[string]any{"type": "r"}),
	}, nil
}

// encodeNodeStructure builds the generic 0x4E Structure a RECORD carries
// for a matched node: (integer id, list of labels, map of properties).
// The id field is a stable hash of the node's storage key, since the
// core data model treats node IDs as opaque.
func encodeNodeStructure(n *graphstore.Node) packstream.Value {
	labels := make([]packstream.Value, len(n.Labels))
	for i, l := range n.Labels {
		labels[i] = packstream.String(l)
	}
	props := packstream.NewOrderedMap()
	for k, v := range n.Properties {
		props.Set(k, toPackstreamValue(v))
	}
	return packstream.Struct(bolt.NodeStructureSignature,
		packstream.Int(stableNodeInt(n.ID)),
		packstream.List(labels...),
		packstream.Map(props),
	)
}

func toPackstreamValue(v any) packstream.Value {
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
	default:
		return packstream.String(fmt.Sprintf("%v", x))
	}
}

func stableNodeInt(id graphstore.NodeID) int64 {
	var h int64
	for _, b := range []byte(id) {
		h = h*31 + int64(b)
	}
	if h < 0 {
		h = -h
	}
	return h
}
