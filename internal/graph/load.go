package graph

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

type nodeFile struct {
	ID    string           `json:"id"`
	Title string           `json:"title"`
	Pos   geometry.Point2D `json:"pos"`
}

type modelFile struct {
	GraphID string     `json:"graph_id"`
	Nodes   []nodeFile `json:"nodes"`
	Edges   []Edge     `json:"edges"`
}

// LoadJSON reads a model from a JSON graph file.
func LoadJSON(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse graph %s: %w", path, err)
	}
	if mf.GraphID == "" {
		return nil, fmt.Errorf("graph %s: missing graph_id", path)
	}

	m := NewModel(mf.GraphID)
	for _, n := range mf.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("graph %s: node with empty id", path)
		}
		m.AddNode(&Node{ID: n.ID, Title: n.Title, Pos: n.Pos})
	}
	for _, e := range mf.Edges {
		if m.Node(e.SrcNode) == nil || m.Node(e.DstNode) == nil {
			return nil, fmt.Errorf("graph %s: edge %s->%s references unknown node", path, e.SrcNode, e.DstNode)
		}
		m.Edges = append(m.Edges, e)
	}
	return m, nil
}
