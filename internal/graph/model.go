// Package graph defines the in-memory node-graph model consumed by the
// automation engine. The model is owned by the editing front end; the engine
// only reads node titles and positions.
package graph

import (
	"sort"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// Node is a single node in the graph model. Pos is the top-left corner of the
// node in model coordinates.
type Node struct {
	ID    string
	Title string
	Pos   geometry.Point2D
}

// Edge connects a source port on one node to a destination port on another.
type Edge struct {
	SrcNode string `json:"src_node"`
	DstNode string `json:"dst_node"`
	SrcPort string `json:"src_port"`
	DstPort string `json:"dst_port"`
}

// Model holds the nodes and edges of one graph document.
type Model struct {
	GraphID string
	Nodes   map[string]*Node
	Edges   []Edge
}

// NewModel creates an empty model.
func NewModel(graphID string) *Model {
	return &Model{GraphID: graphID, Nodes: map[string]*Node{}}
}

// AddNode inserts a node, replacing any node with the same ID.
func (m *Model) AddNode(n *Node) {
	m.Nodes[n.ID] = n
}

// Node returns the node with the given ID, or nil.
func (m *Model) Node(id string) *Node {
	return m.Nodes[id]
}

// SortedNodeIDs returns node IDs in a stable order.
func (m *Model) SortedNodeIDs() []string {
	ids := make([]string, 0, len(m.Nodes))
	for id := range m.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Nominal node footprint in model units. Detection bbox sizes are compared
// against this to sanity-check the zoom level.
const (
	NodeViewWidth  = 200.0
	NodeViewHeight = 100.0
)
