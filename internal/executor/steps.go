package executor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

type stepFile struct {
	Kind      StepKind          `json:"kind"`
	NodeID    string            `json:"node_id,omitempty"`
	Title     string            `json:"title,omitempty"`
	Pos       geometry.Point2D  `json:"pos,omitempty"`
	Edges     []graph.Edge      `json:"edges,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	PortTypes map[string]string `json:"port_types,omitempty"`
	Count     int               `json:"count,omitempty"`
}

// LoadSteps reads a step list from a JSON file and validates every kind.
func LoadSteps(path string) ([]Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}
	var raw []stepFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse steps %s: %w", path, err)
	}

	steps := make([]Step, 0, len(raw))
	for i, sf := range raw {
		if _, ok := PlanFor(sf.Kind); !ok {
			return nil, fmt.Errorf("steps %s: entry %d has unknown kind %q", path, i, sf.Kind)
		}
		steps = append(steps, Step{
			Kind:      sf.Kind,
			NodeID:    sf.NodeID,
			Title:     sf.Title,
			Pos:       sf.Pos,
			Edges:     sf.Edges,
			Params:    sf.Params,
			PortTypes: sf.PortTypes,
			Count:     sf.Count,
		})
	}
	return steps, nil
}
