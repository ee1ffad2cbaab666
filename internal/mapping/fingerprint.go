package mapping

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// Fingerprint is a geometric signature of one node: the ratios of its
// k-nearest-neighbor distances to the nearest one. Ratios are invariant to
// uniform scaling and translation, so a model-space fingerprint can be
// compared with a detection-space one directly.
type Fingerprint struct {
	Ratios          []float64        `json:"ratios"`
	NearestDistance float64          `json:"nearest_distance"`
	NeighborCount   int              `json:"neighbor_count"`
	Center          geometry.Point2D `json:"center"`
}

// Snapshot is a persisted set of model-node fingerprints, valid only for the
// node layout it was computed from.
type Snapshot struct {
	LayoutSignature string                 `json:"layout_signature"`
	Items           map[string]Fingerprint `json:"items"`
}

// BuildFingerprints computes a fingerprint for each point. Points with no
// neighbors get an empty fingerprint.
func BuildFingerprints(points []geometry.Point2D, kNeighbors, roundDigits int) []Fingerprint {
	out := make([]Fingerprint, len(points))
	for i, p := range points {
		dists := make([]float64, 0, len(points)-1)
		for j, q := range points {
			if i == j {
				continue
			}
			d := p.Distance(q)
			if d > 1e-9 {
				dists = append(dists, d)
			}
		}
		sort.Float64s(dists)
		if len(dists) > kNeighbors {
			dists = dists[:kNeighbors]
		}
		fp := Fingerprint{Center: p, NeighborCount: len(dists)}
		if len(dists) > 0 {
			fp.NearestDistance = dists[0]
			fp.Ratios = make([]float64, len(dists))
			for j, d := range dists {
				fp.Ratios[j] = roundTo(d/dists[0], roundDigits)
			}
		}
		out[i] = fp
	}
	return out
}

// CompareL1 returns the mean absolute difference between the overlapping
// ratio prefixes of two fingerprints, or +Inf when the overlap is below
// minOverlap.
func CompareL1(a, b Fingerprint, minOverlap int) float64 {
	n := len(a.Ratios)
	if len(b.Ratios) < n {
		n = len(b.Ratios)
	}
	if n < minOverlap {
		return math.Inf(1)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(a.Ratios[i] - b.Ratios[i])
	}
	return sum / float64(n)
}

// LayoutSignature hashes the model's node set (id, title, position) into a
// stable hex digest. A fingerprint snapshot is valid only while the signature
// matches.
func LayoutSignature(model *graph.Model) string {
	h := blake3.New()
	for _, id := range model.SortedNodeIDs() {
		n := model.Nodes[id]
		fmt.Fprintf(h, "%s|%s|%.1f|%.1f\n", n.ID, n.Title, n.Pos.X, n.Pos.Y)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// FingerprintStore persists fingerprint snapshots per graph under a cache
// directory.
type FingerprintStore struct {
	dir string
}

// NewFingerprintStore creates a store rooted at dir.
func NewFingerprintStore(dir string) *FingerprintStore {
	return &FingerprintStore{dir: dir}
}

func (s *FingerprintStore) path(graphID string) string {
	return filepath.Join(s.dir, "fingerprints", graphID+".json")
}

// Save writes a snapshot for the graph.
func (s *FingerprintStore) Save(graphID string, snap Snapshot) error {
	path := s.path(graphID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create fingerprint dir: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fingerprint snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fingerprint snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot for the graph. A missing snapshot returns ok=false
// without error.
func (s *FingerprintStore) Load(graphID string) (Snapshot, bool, error) {
	data, err := os.ReadFile(s.path(graphID))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("read fingerprint snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode fingerprint snapshot: %w", err)
	}
	return snap, len(snap.Items) > 0, nil
}

// BuildModelSnapshot computes fingerprints for every node in the model.
func BuildModelSnapshot(model *graph.Model, kNeighbors, roundDigits int) Snapshot {
	ids := model.SortedNodeIDs()
	points := make([]geometry.Point2D, len(ids))
	for i, id := range ids {
		points[i] = model.Nodes[id].Pos
	}
	fps := BuildFingerprints(points, kNeighbors, roundDigits)
	snap := Snapshot{
		LayoutSignature: LayoutSignature(model),
		Items:           make(map[string]Fingerprint, len(ids)),
	}
	for i, id := range ids {
		snap.Items[id] = fps[i]
	}
	return snap
}

// FingerprintFilterOptions carries the tuning knobs for BuildFilter.
type FingerprintFilterOptions struct {
	KNeighbors  int
	RoundDigits int
	MinOverlap  int
	MaxDistance float64
}

// BuildFilter computes the allowed (node, detection) pairs per duplicated
// title by matching cached model fingerprints against fingerprints of the
// current detections. Returns nil (filter disabled) when no snapshot exists
// or the layout signature no longer matches.
func BuildFilter(
	model *graph.Model,
	detections []vision.Detection,
	data *MappingData,
	store *FingerprintStore,
	opts FingerprintFilterOptions,
) (map[string]PairSet, error) {
	if store == nil {
		return nil, nil
	}
	snap, ok, err := store.Load(model.GraphID)
	if err != nil {
		return nil, err
	}
	if !ok || snap.LayoutSignature != LayoutSignature(model) {
		return nil, nil
	}

	detPoints := make([]geometry.Point2D, len(detections))
	for i, det := range detections {
		detPoints[i] = det.BBox.TopLeft()
	}
	detFPs := BuildFingerprints(detPoints, opts.KNeighbors, opts.RoundDigits)

	allowed := map[string]PairSet{}
	for _, title := range data.SharedTitles {
		if !data.IsMultiInstance(title) {
			continue
		}
		set := PairSet{}
		for _, node := range data.ModelByTitle[title] {
			modelFP, ok := snap.Items[node.ID]
			if !ok {
				continue
			}
			for _, detIndex := range data.DetIndexByTitle[title] {
				if CompareL1(modelFP, detFPs[detIndex], opts.MinOverlap) <= opts.MaxDistance {
					set.Add(node.ID, detIndex)
				}
			}
		}
		if len(set) > 0 {
			allowed[title] = set
		}
	}
	return allowed, nil
}

func roundTo(v float64, digits int) float64 {
	pow := math.Pow(10, float64(digits))
	return math.Round(v*pow) / pow
}
