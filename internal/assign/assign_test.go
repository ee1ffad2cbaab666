package assign

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

func testAssigner() *Assigner {
	cfg := config.Default()
	cfg.Fingerprint.Enabled = false
	return NewAssigner(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func identity() geometry.ViewTransform {
	return geometry.NewViewTransform(1.0, geometry.Point2D{})
}

func det(title string, x, y int) vision.Detection {
	return vision.Detection{Title: title, BBox: geometry.NewRectInt(x, y, 200, 100)}
}

func TestAssignMatchesByTitleAndPosition(t *testing.T) {
	m := graph.NewModel("g")
	m.AddNode(&graph.Node{ID: "n1", Title: "Get Entity", Pos: geometry.Point2D{X: 100, Y: 100}})
	m.AddNode(&graph.Node{ID: "n2", Title: "Set Position", Pos: geometry.Point2D{X: 700, Y: 300}})
	m.AddNode(&graph.Node{ID: "n3", Title: "Branch", Pos: geometry.Point2D{X: 400, Y: 800}})

	dets := []vision.Detection{
		det("Set Position", 705, 295),
		det("Get Entity", 110, 105),
		det("Branch", 395, 810),
	}

	bindings := testAssigner().Assign(m, dets, identity())

	require.Len(t, bindings, 3)
	assert.True(t, bindings["n1"].Visible)
	assert.Equal(t, geometry.Point2D{X: 110, Y: 105}, bindings["n1"].EditorAnchor)
	assert.Equal(t, geometry.Point2D{X: 210, Y: 155}, bindings["n1"].ScreenAnchor)
	assert.True(t, bindings["n2"].Visible)
	assert.Equal(t, geometry.Point2D{X: 705, Y: 295}, bindings["n2"].EditorAnchor)
	assert.True(t, bindings["n3"].Visible)
}

func TestAssignUnmatchedNodeIsNotVisible(t *testing.T) {
	m := graph.NewModel("g")
	m.AddNode(&graph.Node{ID: "n1", Title: "Get Entity", Pos: geometry.Point2D{X: 100, Y: 100}})
	m.AddNode(&graph.Node{ID: "n2", Title: "Set Position", Pos: geometry.Point2D{X: 3000, Y: 100}})

	dets := []vision.Detection{det("Get Entity", 100, 100)}

	bindings := testAssigner().Assign(m, dets, identity())
	assert.True(t, bindings["n1"].Visible)
	assert.False(t, bindings["n2"].Visible)
	assert.Equal(t, Binding{}, bindings["n2"])
}

func TestAssignDetectionNeverSharedBetweenNodes(t *testing.T) {
	m := graph.NewModel("g")
	m.AddNode(&graph.Node{ID: "a1", Title: "Add", Pos: geometry.Point2D{X: 400, Y: 100}})
	m.AddNode(&graph.Node{ID: "a2", Title: "Add", Pos: geometry.Point2D{X: 500, Y: 100}})

	dets := []vision.Detection{det("Add", 490, 100), det("Add", 510, 100)}

	bindings := testAssigner().Assign(m, dets, identity())
	require.True(t, bindings["a1"].Visible)
	require.True(t, bindings["a2"].Visible)
	assert.NotEqual(t, bindings["a1"].EditorAnchor, bindings["a2"].EditorAnchor)
}

// Greedy resolution can cross a duplicate cluster when detections drift; the
// rank re-pairing pass must restore the left-to-right pairing.
func TestAssignRepairsCrossedDuplicates(t *testing.T) {
	m := graph.NewModel("g")
	m.AddNode(&graph.Node{ID: "a1", Title: "Add", Pos: geometry.Point2D{X: 400, Y: 100}})
	m.AddNode(&graph.Node{ID: "a2", Title: "Add", Pos: geometry.Point2D{X: 500, Y: 100}})

	dets := []vision.Detection{det("Add", 505, 100), det("Add", 515, 100)}

	bindings := testAssigner().Assign(m, dets, identity())
	require.True(t, bindings["a1"].Visible)
	require.True(t, bindings["a2"].Visible)
	assert.Equal(t, geometry.Point2D{X: 505, Y: 100}, bindings["a1"].EditorAnchor)
	assert.Equal(t, geometry.Point2D{X: 515, Y: 100}, bindings["a2"].EditorAnchor)
}

func TestAssignIsIdempotent(t *testing.T) {
	m := graph.NewModel("g")
	m.AddNode(&graph.Node{ID: "n1", Title: "Get Entity", Pos: geometry.Point2D{X: 100, Y: 100}})
	m.AddNode(&graph.Node{ID: "a1", Title: "Add", Pos: geometry.Point2D{X: 400, Y: 500}})
	m.AddNode(&graph.Node{ID: "a2", Title: "Add", Pos: geometry.Point2D{X: 800, Y: 500}})

	dets := []vision.Detection{
		det("Get Entity", 120, 140),
		det("Add", 420, 540),
		det("Add", 820, 540),
	}
	tr := geometry.NewViewTransform(1.0, geometry.Point2D{X: 20, Y: 40})

	a := testAssigner()
	first := a.Assign(m, dets, tr)
	second := a.Assign(m, dets, tr)
	assert.Equal(t, first, second)
}

// A duplicate-title candidate thrown out by the ratio filter must not come
// back in through the any-title fallback; the fallback is reserved for titles
// with no detections at all.
func TestAssignFilterRejectedDuplicateIsNotGuessed(t *testing.T) {
	m := graph.NewModel("g")
	m.AddNode(&graph.Node{ID: "r1", Title: "Get Entity", Pos: geometry.Point2D{X: 100, Y: 250}})
	m.AddNode(&graph.Node{ID: "r2", Title: "Set Position", Pos: geometry.Point2D{X: 100, Y: 360}})
	m.AddNode(&graph.Node{ID: "a1", Title: "Add", Pos: geometry.Point2D{X: 100, Y: 300}})
	m.AddNode(&graph.Node{ID: "a2", Title: "Add", Pos: geometry.Point2D{X: 2000, Y: 2000}})

	// The lone Add detection sits between the reference pairs with vertical
	// spacings 75/35 where the model expects 50/60, so the ratio check
	// rejects it for a1; it is also nowhere near a2.
	dets := []vision.Detection{
		det("Get Entity", 100, 250),
		det("Set Position", 100, 360),
		det("Add", 100, 325),
	}

	bindings := testAssigner().Assign(m, dets, identity())
	assert.True(t, bindings["r1"].Visible)
	assert.True(t, bindings["r2"].Visible)
	assert.Equal(t, Binding{}, bindings["a1"])
	assert.Equal(t, Binding{}, bindings["a2"])
}

func TestAssignFallsBackAcrossTitlesWhenGateAllows(t *testing.T) {
	m := graph.NewModel("g")
	m.AddNode(&graph.Node{ID: "n1", Title: "Get Entity", Pos: geometry.Point2D{X: 100, Y: 100}})

	// OCR mangled the title but the box sits exactly where the node projects.
	dets := []vision.Detection{det("Got Entlty", 105, 102)}

	bindings := testAssigner().Assign(m, dets, identity())
	assert.True(t, bindings["n1"].Visible)
	assert.Equal(t, geometry.Point2D{X: 105, Y: 102}, bindings["n1"].EditorAnchor)
}
