package calibrate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/mapping"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// relativeAnchor aligns the view by trusting one anchor pair and checking
// that the displacements from the anchor to its nearest neighbors agree
// between model space and detection space. Unique-title pairs are tried as
// anchors first since they cannot be misassigned.
type relativeAnchor struct {
	cfg config.AnchorConfig
}

func (s *relativeAnchor) Name() string { return "relative-anchor" }

func (s *relativeAnchor) TryCalibrate(in Input) (ScoredTransform, bool) {
	candidates := anchorCandidates(in.Pairs)
	if len(candidates) < 2 {
		return ScoredTransform{}, false
	}

	var best ScoredTransform
	found := false
	for _, anchor := range candidates {
		result, ok := s.tryAnchor(in, anchor)
		if !ok {
			continue
		}
		if !found || result.Score > best.Score {
			best = result
			found = true
		}
	}
	return best, found
}

func (s *relativeAnchor) tryAnchor(in Input, anchor mapping.Pair) (ScoredTransform, bool) {
	neighbors := nearestNeighbors(in.Pairs.All, anchor, s.cfg.MaxNeighbors)
	if len(neighbors) < s.cfg.MinMatches {
		return ScoredTransform{}, false
	}

	aModel := anchor.Node.Pos
	aDet := anchor.Det.BBox.TopLeft()

	type axisRatios struct {
		rx, ry     float64
		hasX, hasY bool
	}
	ratios := make([]axisRatios, 0, len(neighbors))
	var rxs, rys []float64
	for _, n := range neighbors {
		dmx := n.Node.Pos.X - aModel.X
		dmy := n.Node.Pos.Y - aModel.Y
		ddx := n.Det.BBox.TopLeft().X - aDet.X
		ddy := n.Det.BBox.TopLeft().Y - aDet.Y

		var r axisRatios
		if math.Abs(dmx) >= s.cfg.MinModelDelta {
			r.rx, r.hasX = ddx/dmx, true
			rxs = append(rxs, r.rx)
		}
		if math.Abs(dmy) >= s.cfg.MinModelDelta {
			r.ry, r.hasY = ddy/dmy, true
			rys = append(rys, r.ry)
		}
		ratios = append(ratios, r)
	}
	if len(rxs) == 0 && len(rys) == 0 {
		return ScoredTransform{}, false
	}

	medX, medY := math.NaN(), math.NaN()
	if len(rxs) > 0 {
		medX = median(rxs)
	}
	if len(rys) > 0 {
		medY = median(rys)
	}
	if !math.IsNaN(medX) && !math.IsNaN(medY) {
		spread := math.Abs(medX - medY)
		scale := math.Max(math.Abs(medX), math.Abs(medY))
		if scale > 0 && spread/scale > s.cfg.MaxAnisotropy {
			return ScoredTransform{}, false
		}
	}

	consistent := 0
	for _, r := range ratios {
		if !r.hasX && !r.hasY {
			continue
		}
		if r.hasX && !ratioClose(r.rx, medX, s.cfg.RatioTolerance) {
			continue
		}
		if r.hasY && !ratioClose(r.ry, medY, s.cfg.RatioTolerance) {
			continue
		}
		consistent++
	}
	if consistent < s.cfg.MinMatches {
		return ScoredTransform{}, false
	}

	// The anchor fixes a provisional origin; the final origin is the median
	// translation over every pair that supports it.
	provisional := geometry.NewViewTransform(FixedScaleRatio, aDet.Sub(aModel))
	var votesX, votesY []float64
	matched := 0
	for _, p := range in.Pairs.All {
		projected := provisional.Apply(p.Node.Pos)
		detPos := p.Det.BBox.TopLeft()
		if !WithinTolerance(projected, detPos, provisional.Scale, s.cfg.ToleranceScale) {
			continue
		}
		vote := detPos.Sub(p.Node.Pos)
		votesX = append(votesX, vote.X)
		votesY = append(votesY, vote.Y)
		matched++
	}
	if matched < s.cfg.MinMatches {
		return ScoredTransform{}, false
	}

	origin := geometry.Point2D{X: median(votesX), Y: median(votesY)}
	return ScoredTransform{
		Transform: geometry.NewViewTransform(FixedScaleRatio, origin),
		Score:     float64(matched),
		Matched:   matched,
		Strategy:  s.Name(),
	}, true
}

// anchorCandidates orders pairs with unique titles first.
func anchorCandidates(pairs mapping.PairCollections) []mapping.Pair {
	seen := map[string]bool{}
	out := make([]mapping.Pair, 0, len(pairs.All))
	for _, p := range pairs.Base {
		seen[p.Node.ID] = true
		out = append(out, p)
	}
	for _, p := range pairs.All {
		if !seen[p.Node.ID] {
			out = append(out, p)
		}
	}
	return out
}

func nearestNeighbors(pairs []mapping.Pair, anchor mapping.Pair, max int) []mapping.Pair {
	neighbors := make([]mapping.Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Node.ID == anchor.Node.ID || p.DetIndex == anchor.DetIndex {
			continue
		}
		neighbors = append(neighbors, p)
	}
	sort.Slice(neighbors, func(i, j int) bool {
		di := neighbors[i].Node.Pos.DistanceSq(anchor.Node.Pos)
		dj := neighbors[j].Node.Pos.DistanceSq(anchor.Node.Pos)
		if di != dj {
			return di < dj
		}
		return neighbors[i].Node.ID < neighbors[j].Node.ID
	})
	if len(neighbors) > max {
		neighbors = neighbors[:max]
	}
	return neighbors
}

func ratioClose(r, med, tolerance float64) bool {
	if math.IsNaN(med) {
		return true
	}
	scale := math.Max(math.Abs(r), math.Abs(med))
	if scale < 0.01 {
		scale = 0.01
	}
	return math.Abs(r-med) <= tolerance*scale
}

func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	return stat.Quantile(0.5, stat.Empirical, s, nil)
}
