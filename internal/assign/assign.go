// Package assign matches every model node to at most one detection in the
// current frame. Assignment is recomputed from scratch on every call; nothing
// is carried over from previous frames, so a node that scrolled out of view
// simply comes back unmatched.
package assign

import (
	"log/slog"
	"sort"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/calibrate"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/mapping"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// fallbackToleranceScale gates the any-title fallback tighter than the
// same-title match, since without a title the position is the only evidence.
const fallbackToleranceScale = 0.5

// Binding is the screen location of one model node, or its absence.
type Binding struct {
	Visible bool
	BBox    geometry.RectInt
	// EditorAnchor is the detection's top-left corner, the point the
	// transform maps a node position onto.
	EditorAnchor geometry.Point2D
	// ScreenAnchor is the detection's center, the point to click.
	ScreenAnchor geometry.Point2D
}

// Assigner computes node-to-detection bindings under a calibrated transform.
type Assigner struct {
	cfg     config.Config
	fpStore *mapping.FingerprintStore
	log     *slog.Logger
}

// NewAssigner builds an assigner; the fingerprint store is optional and only
// consulted for duplicated titles.
func NewAssigner(cfg config.Config, log *slog.Logger) *Assigner {
	var store *mapping.FingerprintStore
	if cfg.Fingerprint.Enabled {
		store = mapping.NewFingerprintStore(cfg.Fingerprint.CacheDir)
	}
	return &Assigner{cfg: cfg, fpStore: store, log: log}
}

type candidate struct {
	detIndex int
	distSq   float64
}

type nodeState struct {
	node       *graph.Node
	title      string
	candidates []candidate
	next       int
	assigned   int // detection index, -1 when unmatched
}

// Assign matches model nodes to detections. The transform must be valid.
func (a *Assigner) Assign(
	model *graph.Model,
	detections []vision.Detection,
	t geometry.ViewTransform,
) map[string]Binding {
	data := mapping.Build(model, detections)

	var allowed map[string]mapping.PairSet
	if a.fpStore != nil {
		var err error
		allowed, err = mapping.BuildFilter(model, detections, data, a.fpStore, mapping.FingerprintFilterOptions{
			KNeighbors:  a.cfg.Fingerprint.KNeighbors,
			RoundDigits: a.cfg.Fingerprint.RoundDigits,
			MinOverlap:  a.cfg.Fingerprint.MinOverlap,
			MaxDistance: a.cfg.Fingerprint.MaxDistance,
		})
		if err != nil {
			a.log.Warn("fingerprint filter unavailable", "error", err)
		}
	}
	ratio := mapping.NewRatioChecker(
		mapping.CollectPairs(data, nil, nil).Base,
		a.cfg.Fingerprint.RatioTolerance,
	)

	states := a.buildStates(model, detections, data, allowed, ratio, t)
	a.resolveGreedy(states)
	contested := a.reorderContested(model, detections, states, t)
	if contested > 0 {
		a.log.Debug("re-paired contested duplicate clusters", "clusters", contested)
	}

	bindings := make(map[string]Binding, len(model.Nodes))
	for _, st := range states {
		if st.assigned < 0 {
			bindings[st.node.ID] = Binding{}
			continue
		}
		det := detections[st.assigned]
		bindings[st.node.ID] = Binding{
			Visible:      true,
			BBox:         det.BBox,
			EditorAnchor: det.BBox.TopLeft(),
			ScreenAnchor: det.BBox.Center(),
		}
	}
	// Nodes without a title never entered the states list.
	for id := range model.Nodes {
		if _, ok := bindings[id]; !ok {
			bindings[id] = Binding{}
		}
	}
	return bindings
}

// buildStates collects the per-node candidate lists: same-title detections
// within tolerance first, any-title detections under a tighter gate only when
// the title bucket has no detections at all. A bucket whose candidates were
// all rejected by distance or the duplicate filters stays empty; re-admitting
// a rejected duplicate through the fallback would be a guess.
func (a *Assigner) buildStates(
	model *graph.Model,
	detections []vision.Detection,
	data *mapping.MappingData,
	allowed map[string]mapping.PairSet,
	ratio *mapping.RatioChecker,
	t geometry.ViewTransform,
) []*nodeState {
	var states []*nodeState
	for _, id := range model.SortedNodeIDs() {
		node := model.Nodes[id]
		title := vision.NormalizeTitle(node.Title)
		if title == "" {
			continue
		}
		st := &nodeState{node: node, title: title, assigned: -1}
		projected := t.Apply(node.Pos)
		multi := data.IsMultiInstance(title)

		for i, detIndex := range data.DetIndexByTitle[title] {
			det := data.DetectionByTitle[title][i]
			detPos := det.BBox.TopLeft()
			if !calibrate.WithinTolerance(projected, detPos, t.Scale, 1.0) {
				continue
			}
			if multi {
				if set, ok := allowed[title]; ok && !set.Contains(node.ID, detIndex) {
					continue
				}
				if ratio != nil && !ratio.Matches(node.Pos, detPos) {
					continue
				}
			}
			st.candidates = append(st.candidates, candidate{
				detIndex: detIndex,
				distSq:   projected.DistanceSq(detPos),
			})
		}

		if len(st.candidates) == 0 && len(data.DetectionByTitle[title]) == 0 {
			for detIndex, det := range detections {
				detPos := det.BBox.TopLeft()
				if calibrate.WithinTolerance(projected, detPos, t.Scale, fallbackToleranceScale) {
					st.candidates = append(st.candidates, candidate{
						detIndex: detIndex,
						distSq:   projected.DistanceSq(detPos),
					})
				}
			}
		}

		sort.Slice(st.candidates, func(i, j int) bool {
			if st.candidates[i].distSq != st.candidates[j].distSq {
				return st.candidates[i].distSq < st.candidates[j].distSq
			}
			return st.candidates[i].detIndex < st.candidates[j].detIndex
		})
		states = append(states, st)
	}
	return states
}

// resolveGreedy assigns candidates lowest-distance-first; when two nodes
// claim one detection the closer node keeps it and the loser falls through
// to its next candidate.
func (a *Assigner) resolveGreedy(states []*nodeState) {
	claimed := map[int]*nodeState{}
	for {
		progress := false
		for _, st := range states {
			if st.assigned >= 0 {
				continue
			}
			for st.next < len(st.candidates) {
				c := st.candidates[st.next]
				holder, taken := claimed[c.detIndex]
				if !taken {
					claimed[c.detIndex] = st
					st.assigned = c.detIndex
					progress = true
					break
				}
				if holder.candidates[holder.next].distSq > c.distSq {
					// Evict the weaker claim.
					holder.assigned = -1
					holder.next++
					claimed[c.detIndex] = st
					st.assigned = c.detIndex
					progress = true
					break
				}
				st.next++
			}
		}
		if !progress {
			return
		}
	}
}

// reorderContested re-pairs same-title clusters whose greedy assignment ended
// up crossed. Within one title, nodes and their claimed detections are ranked
// along the axis with the greater model spread and paired by rank.
func (a *Assigner) reorderContested(
	model *graph.Model,
	detections []vision.Detection,
	states []*nodeState,
	t geometry.ViewTransform,
) int {
	byTitle := map[string][]*nodeState{}
	for _, st := range states {
		byTitle[st.title] = append(byTitle[st.title], st)
	}

	clusters := 0
	for _, group := range byTitle {
		var matched []*nodeState
		for _, st := range group {
			if st.assigned >= 0 {
				matched = append(matched, st)
			}
		}
		if len(matched) < 2 {
			continue
		}
		if !a.groupContested(matched) {
			continue
		}

		// Axis of greater spread separates the duplicates most reliably.
		minX, maxX := matched[0].node.Pos.X, matched[0].node.Pos.X
		minY, maxY := matched[0].node.Pos.Y, matched[0].node.Pos.Y
		for _, st := range matched[1:] {
			minX = min(minX, st.node.Pos.X)
			maxX = max(maxX, st.node.Pos.X)
			minY = min(minY, st.node.Pos.Y)
			maxY = max(maxY, st.node.Pos.Y)
		}
		useX := maxX-minX >= maxY-minY

		nodeOrder := append([]*nodeState(nil), matched...)
		sort.Slice(nodeOrder, func(i, j int) bool {
			if useX {
				return nodeOrder[i].node.Pos.X < nodeOrder[j].node.Pos.X
			}
			return nodeOrder[i].node.Pos.Y < nodeOrder[j].node.Pos.Y
		})
		detOrder := make([]int, len(matched))
		for i, st := range matched {
			detOrder[i] = st.assigned
		}
		sort.Slice(detOrder, func(i, j int) bool {
			a := detections[detOrder[i]].BBox.TopLeft()
			b := detections[detOrder[j]].BBox.TopLeft()
			if useX {
				return a.X < b.X
			}
			return a.Y < b.Y
		})
		changed := false
		for i, st := range nodeOrder {
			if st.assigned != detOrder[i] {
				changed = true
			}
			st.assigned = detOrder[i]
		}
		if changed {
			clusters++
		}
	}
	return clusters
}

// groupContested reports whether any detection in the group was fought over
// during greedy resolution, which is when rank re-pairing can help.
func (a *Assigner) groupContested(matched []*nodeState) bool {
	for _, st := range matched {
		if st.next > 0 {
			return true
		}
		for _, c := range st.candidates {
			for _, other := range matched {
				if other != st && other.assigned == c.detIndex {
					return true
				}
			}
		}
	}
	return false
}
