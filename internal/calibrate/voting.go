package calibrate

import (
	"math"
	"sort"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// originVoting recovers the origin by letting every candidate pair vote for
// the translation it implies. Votes land in a coarse grid; the densest bins
// become candidate origins and each candidate is scored by how many model
// nodes it explains versus how many it leaves missing inside the visible
// canvas.
type originVoting struct {
	cfg config.VotingConfig
}

func (s *originVoting) Name() string { return "origin-voting" }

type voteBin struct {
	key   [2]int
	votes []geometry.Point2D
}

func (s *originVoting) TryCalibrate(in Input) (ScoredTransform, bool) {
	pairs := in.Pairs.All
	if len(pairs) < s.cfg.MinInliers {
		return ScoredTransform{}, false
	}

	bins := map[[2]int]*voteBin{}
	for _, p := range pairs {
		vote := p.Det.BBox.TopLeft().Sub(p.Node.Pos)
		key := [2]int{
			int(math.Floor(vote.X / s.cfg.BinSizeX)),
			int(math.Floor(vote.Y / s.cfg.BinSizeY)),
		}
		b, ok := bins[key]
		if !ok {
			b = &voteBin{key: key}
			bins[key] = b
		}
		b.votes = append(b.votes, vote)
	}

	ranked := make([]*voteBin, 0, len(bins))
	for _, b := range bins {
		ranked = append(ranked, b)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if len(ranked[i].votes) != len(ranked[j].votes) {
			return len(ranked[i].votes) > len(ranked[j].votes)
		}
		// Stable order for equal-density bins.
		if ranked[i].key[0] != ranked[j].key[0] {
			return ranked[i].key[0] < ranked[j].key[0]
		}
		return ranked[i].key[1] < ranked[j].key[1]
	})
	if len(ranked) > s.cfg.MaxCandidates {
		ranked = ranked[:s.cfg.MaxCandidates]
	}

	var best ScoredTransform
	found := false
	for _, bin := range ranked {
		origin := geometry.Centroid(bin.votes)
		t := geometry.NewViewTransform(FixedScaleRatio, origin)
		matched, missing := s.evaluate(in, t)
		if matched < s.cfg.MinInliers {
			continue
		}
		score := float64(matched) - s.cfg.MissingPenalty*float64(missing)
		if !found || score > best.Score {
			best = ScoredTransform{Transform: t, Score: score, Matched: matched, Strategy: s.Name()}
			found = true
		}
	}
	return best, found
}

// evaluate projects every model node under the candidate transform and
// counts matches and misses. A node whose projection falls outside the
// visible canvas is neither.
func (s *originVoting) evaluate(in Input, t geometry.ViewTransform) (matched, missing int) {
	roi := in.CanvasROI.ToFloat()
	for _, id := range in.Model.SortedNodeIDs() {
		node := in.Model.Nodes[id]
		projected := t.Apply(node.Pos)
		title := vision.NormalizeTitle(node.Title)
		hit := false
		for _, det := range in.Data.DetectionByTitle[title] {
			if WithinTolerance(projected, det.BBox.TopLeft(), t.Scale, s.cfg.ToleranceScale) {
				hit = true
				break
			}
		}
		switch {
		case hit:
			matched++
		case roi.Contains(projected):
			missing++
		}
	}
	return matched, missing
}
