// Package mapping groups model nodes and detections by recognized title and
// computes the disambiguation filters used when several nodes share a title.
// Its output feeds both the calibration strategies and the assignment engine.
package mapping

import (
	"sort"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
)

// MappingData indexes model nodes and detections by title for one frame.
type MappingData struct {
	ModelByTitle     map[string][]*graph.Node
	DetectionByTitle map[string][]vision.Detection
	DetIndexByTitle  map[string][]int

	// SharedTitles lists titles present on both sides, sorted.
	SharedTitles []string
}

// Build buckets nodes and detections by normalized title. Detections with an
// empty title are excluded from the buckets but keep their global index in
// the detections slice, which the assignment engine searches as a fallback.
func Build(model *graph.Model, detections []vision.Detection) *MappingData {
	data := &MappingData{
		ModelByTitle:     map[string][]*graph.Node{},
		DetectionByTitle: map[string][]vision.Detection{},
		DetIndexByTitle:  map[string][]int{},
	}
	for _, id := range model.SortedNodeIDs() {
		node := model.Nodes[id]
		title := vision.NormalizeTitle(node.Title)
		if title == "" {
			continue
		}
		data.ModelByTitle[title] = append(data.ModelByTitle[title], node)
	}
	for idx, det := range detections {
		title := vision.NormalizeTitle(det.Title)
		if title == "" {
			continue
		}
		data.DetectionByTitle[title] = append(data.DetectionByTitle[title], det)
		data.DetIndexByTitle[title] = append(data.DetIndexByTitle[title], idx)
	}
	for title := range data.ModelByTitle {
		if _, ok := data.DetectionByTitle[title]; ok {
			data.SharedTitles = append(data.SharedTitles, title)
		}
	}
	sort.Strings(data.SharedTitles)
	return data
}

// UniqueTitles returns shared titles with exactly one model node and one
// detection.
func (d *MappingData) UniqueTitles() []string {
	var unique []string
	for _, title := range d.SharedTitles {
		if len(d.ModelByTitle[title]) == 1 && len(d.DetectionByTitle[title]) == 1 {
			unique = append(unique, title)
		}
	}
	return unique
}

// IsMultiInstance reports whether a title has more than one node or detection.
func (d *MappingData) IsMultiInstance(title string) bool {
	return len(d.ModelByTitle[title]) > 1 || len(d.DetectionByTitle[title]) > 1
}

// Pair is one candidate (model node, detection) correspondence.
type Pair struct {
	Node     *graph.Node
	Det      vision.Detection
	DetIndex int
}

// PairCollections holds the unique reference pairs and the filtered full set
// of candidate pairs for one frame.
type PairCollections struct {
	// Base pairs come from titles unique on both sides and anchor every
	// relative-ratio check.
	Base []Pair
	// All pairs include multi-instance titles that survived the duplicate
	// filters.
	All []Pair
	// Filtered counts candidates removed by the ratio filter.
	Filtered int
}

// CollectPairs builds the base and filtered pair sets. allowed, when non-nil,
// is the fingerprint filter output: per title, the permitted
// (nodeID, detection index) combinations.
func CollectPairs(d *MappingData, allowed map[string]PairSet, ratio *RatioChecker) PairCollections {
	var out PairCollections
	for _, title := range d.SharedTitles {
		models := d.ModelByTitle[title]
		dets := d.DetectionByTitle[title]
		if len(models) == 1 && len(dets) == 1 {
			out.Base = append(out.Base, Pair{Node: models[0], Det: dets[0], DetIndex: d.DetIndexByTitle[title][0]})
		}
	}

	for _, title := range d.SharedTitles {
		models := d.ModelByTitle[title]
		dets := d.DetectionByTitle[title]
		indices := d.DetIndexByTitle[title]
		multi := d.IsMultiInstance(title)
		for di, det := range dets {
			detIndex := indices[di]
			for _, node := range models {
				if allowed != nil {
					if set, ok := allowed[title]; ok && !set.Contains(node.ID, detIndex) {
						continue
					}
				}
				if multi && ratio != nil && !ratio.Matches(node.Pos, det.BBox.TopLeft()) {
					out.Filtered++
					continue
				}
				out.All = append(out.All, Pair{Node: node, Det: det, DetIndex: detIndex})
			}
		}
	}
	return out
}

// PairSet is the set of permitted (node ID, detection index) pairs for one
// title.
type PairSet map[pairKey]struct{}

type pairKey struct {
	nodeID   string
	detIndex int
}

// Add records a permitted pair.
func (s PairSet) Add(nodeID string, detIndex int) {
	s[pairKey{nodeID: nodeID, detIndex: detIndex}] = struct{}{}
}

// Contains reports whether a pair is permitted.
func (s PairSet) Contains(nodeID string, detIndex int) bool {
	_, ok := s[pairKey{nodeID: nodeID, detIndex: detIndex}]
	return ok
}
