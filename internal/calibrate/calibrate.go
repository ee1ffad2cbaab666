// Package calibrate recovers the transform between model coordinates and
// editor screen pixels from a single frame's detections. Several strategies
// attempt the recovery independently and the engine keeps the best-scoring
// result; each strategy enforces its own evidence floor so a returned result
// is always trustworthy on its own.
package calibrate

import (
	"errors"
	"log/slog"
	"math"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/mapping"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// ErrCalibrationFailed is returned when no strategy produced a transform with
// enough supporting evidence.
var ErrCalibrationFailed = errors.New("calibration failed: no strategy reached its evidence floor")

// FixedScaleRatio is the editor zoom level the engine operates at. The
// automation never changes zoom, so every recovered transform is pinned to
// this scale and only the origin varies.
const FixedScaleRatio = 1.0

// ToleranceX returns the horizontal match tolerance in pixels at the given
// scale. The floor keeps matching workable even at small zoom.
func ToleranceX(scale float64) float64 {
	return math.Max(120, 0.6*graph.NodeViewWidth*scale)
}

// ToleranceY returns the vertical match tolerance in pixels.
func ToleranceY(scale float64) float64 {
	return math.Max(60, 0.6*graph.NodeViewHeight*scale)
}

// WithinTolerance reports whether a detection corner lies within the
// per-axis tolerance of a projected model position. scale selects the
// tolerance band, toleranceScale tightens or loosens it.
func WithinTolerance(projected, detected geometry.Point2D, scale, toleranceScale float64) bool {
	return math.Abs(projected.X-detected.X) <= ToleranceX(scale)*toleranceScale &&
		math.Abs(projected.Y-detected.Y) <= ToleranceY(scale)*toleranceScale
}

// ScoredTransform is one strategy's calibration result.
type ScoredTransform struct {
	Transform geometry.ViewTransform
	Score     float64
	Matched   int
	Strategy  string
}

// Input bundles everything a strategy may inspect for one frame.
type Input struct {
	Model      *graph.Model
	Detections []vision.Detection
	Data       *mapping.MappingData
	Pairs      mapping.PairCollections
	CanvasROI  geometry.RectInt

	// Current is the transform already in effect, or nil before the first
	// successful calibration. Only the confirm-only strategy uses it.
	Current *geometry.ViewTransform
}

// Strategy attempts one calibration approach. ok is false when the strategy
// cannot reach its evidence floor on this frame.
type Strategy interface {
	Name() string
	TryCalibrate(in Input) (ScoredTransform, bool)
}

// Engine runs the strategy chain and keeps the best result.
type Engine struct {
	strategies []Strategy
	fpStore    *mapping.FingerprintStore
	cfg        config.Config
	log        *slog.Logger
}

// NewEngine wires the default strategy chain from the configuration.
func NewEngine(cfg config.Config, log *slog.Logger) *Engine {
	var store *mapping.FingerprintStore
	if cfg.Fingerprint.Enabled {
		store = mapping.NewFingerprintStore(cfg.Fingerprint.CacheDir)
	}
	return &Engine{
		strategies: []Strategy{
			&originVoting{cfg: cfg.Voting},
			&relativeAnchor{cfg: cfg.Anchor},
			&uniquePair{cfg: cfg.Anchor},
			&singleAnchor{},
			&ordinaryConfirm{minMatches: cfg.Anchor.OrdinaryMinMatches},
		},
		fpStore: store,
		cfg:     cfg,
		log:     log,
	}
}

// Calibrate recovers a transform from the frame. current may be nil. The
// highest-scoring strategy result wins; on a tie the earlier strategy in the
// chain is kept.
func (e *Engine) Calibrate(
	model *graph.Model,
	detections []vision.Detection,
	canvasROI geometry.RectInt,
	current *geometry.ViewTransform,
) (ScoredTransform, error) {
	data := mapping.Build(model, detections)

	allowed, err := e.duplicateFilter(model, detections, data)
	if err != nil {
		e.log.Warn("fingerprint filter unavailable", "error", err)
	}
	ratio := mapping.NewRatioChecker(
		mapping.CollectPairs(data, nil, nil).Base,
		e.cfg.Fingerprint.RatioTolerance,
	)
	pairs := mapping.CollectPairs(data, allowed, ratio)

	in := Input{
		Model:      model,
		Detections: detections,
		Data:       data,
		Pairs:      pairs,
		CanvasROI:  canvasROI,
		Current:    current,
	}

	var best ScoredTransform
	found := false
	for _, s := range e.strategies {
		result, ok := s.TryCalibrate(in)
		if !ok {
			continue
		}
		e.log.Debug("calibration candidate",
			"strategy", s.Name(),
			"score", result.Score,
			"matched", result.Matched,
			"origin_x", result.Transform.Origin.X,
			"origin_y", result.Transform.Origin.Y)
		if !found || result.Score > best.Score {
			best = result
			found = true
		}
	}
	if !found {
		return ScoredTransform{}, ErrCalibrationFailed
	}
	e.log.Info("calibrated",
		"strategy", best.Strategy,
		"score", best.Score,
		"matched", best.Matched)
	return best, nil
}

func (e *Engine) duplicateFilter(
	model *graph.Model,
	detections []vision.Detection,
	data *mapping.MappingData,
) (map[string]mapping.PairSet, error) {
	if e.fpStore == nil {
		return nil, nil
	}
	return mapping.BuildFilter(model, detections, data, e.fpStore, mapping.FingerprintFilterOptions{
		KNeighbors:  e.cfg.Fingerprint.KNeighbors,
		RoundDigits: e.cfg.Fingerprint.RoundDigits,
		MinOverlap:  e.cfg.Fingerprint.MinOverlap,
		MaxDistance: e.cfg.Fingerprint.MaxDistance,
	})
}
