package calibrate

import (
	"math"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// uniquePair aligns from unique-title pairs alone. Every pairwise
// displacement between unique pairs must show a consistent per-axis ratio,
// then the origin is the median translation and each pair must sit within
// tolerance of its projection.
type uniquePair struct {
	cfg config.AnchorConfig
}

func (s *uniquePair) Name() string { return "unique-pair" }

func (s *uniquePair) TryCalibrate(in Input) (ScoredTransform, bool) {
	base := in.Pairs.Base
	if len(base) < 2 {
		return ScoredTransform{}, false
	}

	var rxs, rys []float64
	for i := 0; i < len(base); i++ {
		for j := i + 1; j < len(base); j++ {
			dmx := base[j].Node.Pos.X - base[i].Node.Pos.X
			dmy := base[j].Node.Pos.Y - base[i].Node.Pos.Y
			ddx := base[j].Det.BBox.TopLeft().X - base[i].Det.BBox.TopLeft().X
			ddy := base[j].Det.BBox.TopLeft().Y - base[i].Det.BBox.TopLeft().Y
			if math.Abs(dmx) >= s.cfg.MinModelDelta {
				rxs = append(rxs, ddx/dmx)
			}
			if math.Abs(dmy) >= s.cfg.MinModelDelta {
				rys = append(rys, ddy/dmy)
			}
		}
	}
	if !axisRatiosConsistent(rxs, s.cfg.RatioTolerance) || !axisRatiosConsistent(rys, s.cfg.RatioTolerance) {
		return ScoredTransform{}, false
	}

	var votesX, votesY []float64
	for _, p := range base {
		vote := p.Det.BBox.TopLeft().Sub(p.Node.Pos)
		votesX = append(votesX, vote.X)
		votesY = append(votesY, vote.Y)
	}
	origin := geometry.Point2D{X: median(votesX), Y: median(votesY)}
	t := geometry.NewViewTransform(FixedScaleRatio, origin)

	// Residual check: every unique pair must land within tolerance of its
	// projection or the consensus is illusory.
	for _, p := range base {
		if !WithinTolerance(t.Apply(p.Node.Pos), p.Det.BBox.TopLeft(), t.Scale, 1.0) {
			return ScoredTransform{}, false
		}
	}
	return ScoredTransform{
		Transform: t,
		Score:     float64(len(base)),
		Matched:   len(base),
		Strategy:  s.Name(),
	}, true
}

// axisRatiosConsistent reports whether at least half of the ratios sit within
// tolerance of their median. An axis with no usable ratios passes.
func axisRatiosConsistent(ratios []float64, tolerance float64) bool {
	if len(ratios) == 0 {
		return true
	}
	med := median(ratios)
	pass := 0
	for _, r := range ratios {
		if ratioClose(r, med, tolerance) {
			pass++
		}
	}
	return float64(pass)/float64(len(ratios)) >= 0.5
}

// singleAnchor is the degenerate last resort for a frame with exactly one
// usable pair. The detection's box dimensions against the nominal node
// footprint act as a sanity check before anchoring the origin to it.
type singleAnchor struct{}

func (s *singleAnchor) Name() string { return "single-anchor" }

const singleAnchorScaleBand = 0.5

func (s *singleAnchor) TryCalibrate(in Input) (ScoredTransform, bool) {
	if len(in.Pairs.All) != 1 {
		return ScoredTransform{}, false
	}
	p := in.Pairs.All[0]
	box := p.Det.BBox.ToFloat()
	sx := box.Width / graph.NodeViewWidth
	sy := box.Height / graph.NodeViewHeight
	if math.Abs(sx-FixedScaleRatio) > singleAnchorScaleBand ||
		math.Abs(sy-FixedScaleRatio) > singleAnchorScaleBand {
		return ScoredTransform{}, false
	}
	origin := p.Det.BBox.TopLeft().Sub(p.Node.Pos)
	return ScoredTransform{
		Transform: geometry.NewViewTransform(FixedScaleRatio, origin),
		Score:     1,
		Matched:   1,
		Strategy:  s.Name(),
	}, true
}

// ordinaryConfirm never proposes a new transform; it only re-validates the
// one already in effect by counting pairs that still sit where it predicts.
type ordinaryConfirm struct {
	minMatches int
}

func (s *ordinaryConfirm) Name() string { return "ordinary-confirm" }

func (s *ordinaryConfirm) TryCalibrate(in Input) (ScoredTransform, bool) {
	if in.Current == nil || !in.Current.Valid() {
		return ScoredTransform{}, false
	}
	t := *in.Current
	matched := 0
	for _, p := range in.Pairs.All {
		if WithinTolerance(t.Apply(p.Node.Pos), p.Det.BBox.TopLeft(), t.Scale, 1.0) {
			matched++
		}
	}
	if matched < s.minMatches {
		return ScoredTransform{}, false
	}
	return ScoredTransform{
		Transform: t,
		Score:     float64(matched),
		Matched:   matched,
		Strategy:  s.Name(),
	}, true
}
