package calibrate

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/mapping"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine() *Engine {
	cfg := config.Default()
	cfg.Fingerprint.Enabled = false
	return NewEngine(cfg, testLogger())
}

func addNode(m *graph.Model, id, title string, x, y float64) {
	m.AddNode(&graph.Node{ID: id, Title: title, Pos: geometry.Point2D{X: x, Y: y}})
}

func det(title string, x, y int) vision.Detection {
	return vision.Detection{Title: title, BBox: geometry.NewRectInt(x, y, 200, 100)}
}

func canvas() geometry.RectInt {
	return geometry.NewRectInt(0, 0, 1920, 1080)
}

// Five nodes, two sharing a title, all shifted by (20, 40) on screen. Voting
// has enough inliers and should win outright.
func TestEngineRecoversTranslation(t *testing.T) {
	m := graph.NewModel("g")
	addNode(m, "n1", "Get Entity", 100, 500)
	addNode(m, "n2", "Set Position", 700, 300)
	addNode(m, "n3", "Branch", 400, 800)
	addNode(m, "a1", "Add", 100, 100)
	addNode(m, "a2", "Add", 500, 100)

	dets := []vision.Detection{
		det("Get Entity", 120, 540),
		det("Set Position", 720, 340),
		det("Branch", 420, 840),
		det("Add", 120, 140),
		det("Add", 520, 140),
	}

	result, err := testEngine().Calibrate(m, dets, canvas(), nil)
	require.NoError(t, err)
	assert.Equal(t, "origin-voting", result.Strategy)
	assert.Equal(t, FixedScaleRatio, result.Transform.Scale)
	assert.InDelta(t, 20, result.Transform.Origin.X, 1e-9)
	assert.InDelta(t, 40, result.Transform.Origin.Y, 1e-9)
	assert.Equal(t, 5, result.Matched)
}

// With only three pairs voting cannot reach its inlier floor and the
// relative-anchor fallback must take over.
func TestEngineFallsBackToRelativeAnchors(t *testing.T) {
	m := graph.NewModel("g")
	addNode(m, "n1", "Get Entity", 100, 100)
	addNode(m, "n2", "Set Position", 700, 300)
	addNode(m, "n3", "Branch", 400, 800)

	dets := []vision.Detection{
		det("Get Entity", 120, 140),
		det("Set Position", 720, 340),
		det("Branch", 420, 840),
	}

	result, err := testEngine().Calibrate(m, dets, canvas(), nil)
	require.NoError(t, err)
	assert.Equal(t, "relative-anchor", result.Strategy)
	assert.InDelta(t, 20, result.Transform.Origin.X, 1e-9)
	assert.InDelta(t, 40, result.Transform.Origin.Y, 1e-9)
	assert.Equal(t, 3, result.Matched)
}

func TestEngineFailsWithoutEvidence(t *testing.T) {
	m := graph.NewModel("g")
	addNode(m, "n1", "Get Entity", 100, 100)

	_, err := testEngine().Calibrate(m, nil, canvas(), nil)
	assert.ErrorIs(t, err, ErrCalibrationFailed)
}

// A distorted detection layout must not calibrate even when titles line up.
func TestEngineRejectsInconsistentLayout(t *testing.T) {
	m := graph.NewModel("g")
	addNode(m, "n1", "Get Entity", 100, 100)
	addNode(m, "n2", "Set Position", 700, 300)
	addNode(m, "n3", "Branch", 400, 800)

	dets := []vision.Detection{
		det("Get Entity", 120, 140),
		det("Set Position", 1500, 900),
		det("Branch", 300, 100),
	}

	_, err := testEngine().Calibrate(m, dets, canvas(), nil)
	assert.ErrorIs(t, err, ErrCalibrationFailed)
}

func buildInput(m *graph.Model, dets []vision.Detection, current *geometry.ViewTransform) Input {
	data := mapping.Build(m, dets)
	return Input{
		Model:      m,
		Detections: dets,
		Data:       data,
		Pairs:      mapping.CollectPairs(data, nil, nil),
		CanvasROI:  canvas(),
		Current:    current,
	}
}

func TestUniquePairStrategy(t *testing.T) {
	m := graph.NewModel("g")
	addNode(m, "n1", "Get Entity", 100, 100)
	addNode(m, "n2", "Set Position", 700, 500)

	dets := []vision.Detection{
		det("Get Entity", 120, 140),
		det("Set Position", 720, 540),
	}

	s := &uniquePair{cfg: config.Default().Anchor}
	result, ok := s.TryCalibrate(buildInput(m, dets, nil))
	require.True(t, ok)
	assert.InDelta(t, 20, result.Transform.Origin.X, 1e-9)
	assert.InDelta(t, 40, result.Transform.Origin.Y, 1e-9)
	assert.Equal(t, 2, result.Matched)
}

func TestSingleAnchorScaleHealthCheck(t *testing.T) {
	m := graph.NewModel("g")
	addNode(m, "n1", "Get Entity", 100, 100)

	s := &singleAnchor{}

	good := []vision.Detection{det("Get Entity", 150, 180)}
	result, ok := s.TryCalibrate(buildInput(m, good, nil))
	require.True(t, ok)
	assert.InDelta(t, 50, result.Transform.Origin.X, 1e-9)
	assert.InDelta(t, 80, result.Transform.Origin.Y, 1e-9)

	// A box far off the nominal footprint means the frame is not at the
	// expected zoom and cannot anchor anything.
	bad := []vision.Detection{{
		Title: "Get Entity",
		BBox:  geometry.NewRectInt(150, 180, 500, 300),
	}}
	_, ok = s.TryCalibrate(buildInput(m, bad, nil))
	assert.False(t, ok)
}

func TestOrdinaryConfirmRequiresCurrentTransform(t *testing.T) {
	m := graph.NewModel("g")
	addNode(m, "n1", "Get Entity", 100, 100)
	addNode(m, "n2", "Set Position", 700, 300)
	addNode(m, "n3", "Branch", 400, 800)

	dets := []vision.Detection{
		det("Get Entity", 125, 145),
		det("Set Position", 722, 338),
		det("Branch", 418, 843),
	}

	s := &ordinaryConfirm{minMatches: 3}

	_, ok := s.TryCalibrate(buildInput(m, dets, nil))
	assert.False(t, ok)

	current := geometry.NewViewTransform(1.0, geometry.Point2D{X: 20, Y: 40})
	result, ok := s.TryCalibrate(buildInput(m, dets, &current))
	require.True(t, ok)
	assert.Equal(t, current, result.Transform)
	assert.Equal(t, 3, result.Matched)
}

func TestToleranceFloors(t *testing.T) {
	assert.InDelta(t, 120, ToleranceX(1.0), 1e-9)
	assert.InDelta(t, 60, ToleranceY(1.0), 1e-9)
	// At higher zoom tolerance follows the node footprint.
	assert.InDelta(t, 240, ToleranceX(2.0), 1e-9)
	assert.InDelta(t, 120, ToleranceY(2.0), 1e-9)
}
