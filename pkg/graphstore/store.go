// Package graphstore provides a Badger-backed node/edge store, the
// persistence layer a QueryExecutor draws on to answer RUN statements.
package graphstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes, one byte each, for the key ranges stored in Badger.
const (
	prefixNode          = byte(0x01) // node:nodeID -> Node
	prefixEdge          = byte(0x02) // edge:edgeID -> Edge
	prefixLabelIndex    = byte(0x03) // label:labelName:0x00:nodeID -> empty
	prefixOutgoingIndex = byte(0x04) // outgoing:nodeID:0x00:edgeID -> empty
	prefixIncomingIndex = byte(0x05) // incoming:nodeID:0x00:edgeID -> empty
)

// Store provides ACID node/edge CRUD and the label/adjacency indexes a
// demo QueryExecutor needs to answer MATCH-shaped statements.
//
// Example:
//
//	store, err := graphstore.Open(graphstore.Options{DataDir: "./data"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	store.CreateNode(&graphstore.Node{ID: "n1", Labels: []string{"Person"}})
//
// Thread Safety:
//
//	Safe for concurrent use from multiple goroutines; Badger handles its
//	own internal locking per transaction.
type Store struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// Options configures Open.
type Options struct {
	// DataDir is the directory for on-disk storage. Ignored when
	// InMemory is true.
	DataDir string
	// InMemory runs Badger in memory-only mode, useful for tests and
	// the demo executor's default configuration.
	InMemory bool
}

// Open creates or opens a Store.
func Open(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir).WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("graphstore: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func nodeKey(id NodeID) []byte { return append([]byte{prefixNode}, []byte(id)...) }
func edgeKey(id EdgeID) []byte { return append([]byte{prefixEdge}, []byte(id)...) }

func labelIndexKey(label string, id NodeID) []byte {
	label = strings.ToLower(label)
	key := make([]byte, 0, 1+len(label)+1+len(id))
	key = append(key, prefixLabelIndex)
	key = append(key, []byte(label)...)
	key = append(key, 0x00)
	key = append(key, []byte(id)...)
	return key
}

func labelIndexPrefix(label string) []byte {
	label = strings.ToLower(label)
	key := make([]byte, 0, 1+len(label)+1)
	key = append(key, prefixLabelIndex)
	key = append(key, []byte(label)...)
	key = append(key, 0x00)
	return key
}

func outgoingIndexKey(from NodeID, edge EdgeID) []byte {
	key := make([]byte, 0, 1+len(from)+1+len(edge))
	key = append(key, prefixOutgoingIndex)
	key = append(key, []byte(from)...)
	key = append(key, 0x00)
	key = append(key, []byte(edge)...)
	return key
}

func outgoingIndexPrefix(from NodeID) []byte {
	key := make([]byte, 0, 1+len(from)+1)
	key = append(key, prefixOutgoingIndex)
	key = append(key, []byte(from)...)
	key = append(key, 0x00)
	return key
}

func incomingIndexKey(to NodeID, edge EdgeID) []byte {
	key := make([]byte, 0, 1+len(to)+1+len(edge))
	key = append(key, prefixIncomingIndex)
	key = append(key, []byte(to)...)
	key = append(key, 0x00)
	key = append(key, []byte(edge)...)
	return key
}

func incomingIndexPrefix(to NodeID) []byte {
	key := make([]byte, 0, 1+len(to)+1)
	key = append(key, prefixIncomingIndex)
	key = append(key, []byte(to)...)
	key = append(key, 0x00)
	return key
}

func extractIDAfterPrefix(key []byte, prefixLen int) string {
	if prefixLen >= len(key) {
		return ""
	}
	return string(key[prefixLen:])
}

type wireNode struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
	CreatedAt  int64          `json:"createdAt"`
}

type wireEdge struct {
	ID         string         `json:"id"`
	StartNode  string         `json:"startNode"`
	EndNode    string         `json:"endNode"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	CreatedAt  int64          `json:"createdAt"`
}

func encodeNode(n *Node) ([]byte, error) {
	return json.Marshal(wireNode{
		ID: string(n.ID), Labels: n.Labels, Properties: n.Properties,
		CreatedAt: n.CreatedAt.Unix(),
	})
}

func decodeNode(data []byte) (*Node, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &Node{
		ID: NodeID(w.ID), Labels: w.Labels, Properties: w.Properties,
		CreatedAt: unixToTime(w.CreatedAt),
	}, nil
}

func encodeEdge(e *Edge) ([]byte, error) {
	return json.Marshal(wireEdge{
		ID: string(e.ID), StartNode: string(e.StartNode), EndNode: string(e.EndNode),
		Type: e.Type, Properties: e.Properties, CreatedAt: e.CreatedAt.Unix(),
	})
}

func decodeEdge(data []byte) (*Edge, error) {
	var w wireEdge
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &Edge{
		ID: EdgeID(w.ID), StartNode: NodeID(w.StartNode), EndNode: NodeID(w.EndNode),
		Type: w.Type, Properties: w.Properties, CreatedAt: unixToTime(w.CreatedAt),
	}, nil
}

func unixToTime(unix int64) time.Time {
	if unix <= 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

// CreateNode stores node and indexes its labels. Returns ErrAlreadyExists
// if the ID is taken.
func (s *Store) CreateNode(node *Node) error {
	if node == nil || node.ID == "" {
		return ErrInvalidID
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now()
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrStoreClosed
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(node.ID)
		if _, err := txn.Get(key); err == nil {
			return ErrAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("graphstore: encode node: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		for _, label := range node.Labels {
			if err := txn.Set(labelIndexKey(label, node.ID), []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetNode retrieves a node by ID, or ErrNotFound.
func (s *Store) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	var node *Node
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			n, err := decodeNode(val)
			if err != nil {
				return err
			}
			node = n
			return nil
		})
	})
	return node, err
}

// NodesByLabel returns every node carrying label (case-insensitive).
func (s *Store) NodesByLabel(label string) ([]*Node, error) {
	var nodes []*Node
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := labelIndexPrefix(label)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			nodeID := NodeID(extractIDAfterPrefix(it.Item().KeyCopy(nil), len(prefix)))
			item, err := txn.Get(nodeKey(nodeID))
			if err != nil {
				continue
			}
			if err := item.Value(func(val []byte) error {
				n, err := decodeNode(val)
				if err != nil {
					return err
				}
				nodes = append(nodes, n)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return nodes, err
}

// AllNodes returns every node in the store.
func (s *Store) AllNodes() ([]*Node, error) {
	var nodes []*Node
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte{prefixNode}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				n, err := decodeNode(val)
				if err != nil {
					return err
				}
				nodes = append(nodes, n)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return nodes, err
}

// CreateEdge stores edge and indexes it under both endpoints. Both
// endpoints must already exist.
func (s *Store) CreateEdge(edge *Edge) error {
	if edge == nil || edge.ID == "" {
		return ErrInvalidID
	}
	if edge.StartNode == "" || edge.EndNode == "" {
		return ErrInvalidData
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now()
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := edgeKey(edge.ID)
		if _, err := txn.Get(key); err == nil {
			return ErrAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if _, err := txn.Get(nodeKey(edge.StartNode)); err == badger.ErrKeyNotFound {
			return fmt.Errorf("graphstore: start node %q: %w", edge.StartNode, ErrNotFound)
		}
		if _, err := txn.Get(nodeKey(edge.EndNode)); err == badger.ErrKeyNotFound {
			return fmt.Errorf("graphstore: end node %q: %w", edge.EndNode, ErrNotFound)
		}

		data, err := encodeEdge(edge)
		if err != nil {
			return fmt.Errorf("graphstore: encode edge: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if err := txn.Set(outgoingIndexKey(edge.StartNode, edge.ID), []byte{}); err != nil {
			return err
		}
		return txn.Set(incomingIndexKey(edge.EndNode, edge.ID), []byte{})
	})
}

// IncomingEdges returns every edge with EndNode == to.
func (s *Store) IncomingEdges(to NodeID) ([]*Edge, error) {
	var edges []*Edge
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := incomingIndexPrefix(to)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			edgeID := EdgeID(extractIDAfterPrefix(it.Item().KeyCopy(nil), len(prefix)))
			item, err := txn.Get(edgeKey(edgeID))
			if err != nil {
				continue
			}
			if err := item.Value(func(val []byte) error {
				e, err := decodeEdge(val)
				if err != nil {
					return err
				}
				edges = append(edges, e)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return edges, err
}

// OutgoingEdges returns every edge with StartNode == from.
func (s *Store) OutgoingEdges(from NodeID) ([]*Edge, error) {
	var edges []*Edge
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := outgoingIndexPrefix(from)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			edgeID := EdgeID(extractIDAfterPrefix(it.Item().KeyCopy(nil), len(prefix)))
			item, err := txn.Get(edgeKey(edgeID))
			if err != nil {
				continue
			}
			if err := item.Value(func(val []byte) error {
				e, err := decodeEdge(val)
				if err != nil {
					return err
				}
				edges = append(edges, e)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return edges, err
}
