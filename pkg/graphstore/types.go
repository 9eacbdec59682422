package graphstore

import (
	"errors"
	"time"
)

// NodeID uniquely identifies a Node.
type NodeID string

// EdgeID uniquely identifies an Edge.
type EdgeID string

var (
	ErrNotFound      = errors.New("graphstore: not found")
	ErrAlreadyExists = errors.New("graphstore: already exists")
	ErrInvalidID     = errors.New("graphstore: invalid id")
	ErrInvalidData   = errors.New("graphstore: invalid data")
	ErrStoreClosed   = errors.New("graphstore: store closed")
)

// Node is a labeled graph vertex with a property bag, the shape a demo
// QueryExecutor hands back to the Bolt layer as a 0x4E node structure.
//
// Example:
//
//	n := &graphstore.Node{
//		ID:         graphstore.NodeID("user-1"),
//		Labels:     []string{"User"},
//		Properties: map[string]any{"name": "Alice"},
//	}
//	store.CreateNode(n)
type Node struct {
	ID         NodeID         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"-"`
}

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	ID         EdgeID         `json:"id"`
	StartNode  NodeID         `json:"startNode"`
	EndNode    NodeID         `json:"endNode"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"-"`
}
