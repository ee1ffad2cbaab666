package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

func TestLoadSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.json")
	content := `[
		{"kind": "create_node", "node_id": "n1", "title": "Get Entity", "pos": {"x": 100, "y": 200}},
		{"kind": "connect", "edges": [{"src_node": "n1", "dst_node": "n2", "src_port": "out0", "dst_port": "in1"}]},
		{"kind": "add_variadic_inputs", "node_id": "n2", "count": 3}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	steps, err := LoadSteps(path)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, StepCreateNode, steps[0].Kind)
	assert.Equal(t, 100.0, steps[0].Pos.X)
	require.Len(t, steps[1].Edges, 1)
	assert.Equal(t, "in1", steps[1].Edges[0].DstPort)
	assert.Equal(t, 3, steps[2].Count)
}

func TestLoadStepsRejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"kind": "teleport"}]`), 0o644))

	_, err := LoadSteps(path)
	assert.ErrorContains(t, err, "unknown kind")
}

func TestRecorderWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(config.ReplayConfig{Enabled: true, OutputDir: dir})
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NotEmpty(t, rec.RunID())

	require.NoError(t, rec.Record(ReplayEntry{Step: StepCreateNode, NodeID: "n1", Status: "ok", Attempts: 1}))
	require.NoError(t, rec.Record(ReplayEntry{Step: StepConnect, Status: "failed", Error: "boom", Attempts: 2}))
	require.NoError(t, rec.Close())

	f, err := os.Open(filepath.Join(dir, "run-"+rec.RunID(), "steps.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var entries []ReplayEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e ReplayEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.Equal(t, "n1", entries[0].NodeID)
	assert.Equal(t, "failed", entries[1].Status)
	assert.Equal(t, 2, entries[1].Attempts)
}

func readRunEntries(t *testing.T, dir, runID string) []ReplayEntry {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "run-"+runID, "steps.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var entries []ReplayEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e ReplayEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	return entries
}

// Each executed step leaves a before entry and an after entry sharing one
// step index, with the step's declared inputs on both.
func TestExecuteReplayLogsBeforeAndAfter(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(config.ReplayConfig{Enabled: true, OutputDir: dir})
	require.NoError(t, err)

	model := graph.NewModel("g")
	model.AddNode(&graph.Node{ID: "n1", Title: "Get Entity", Pos: geometry.Point2D{X: 400, Y: 300}})
	det := &fakeDetector{}
	in := &fakeInput{}
	in.onType = func(text string, x, y int) {
		if strings.HasSuffix(text, "\n") {
			det.add(vision.Detection{
				Title: strings.TrimSuffix(text, "\n"),
				BBox:  geometry.NewRectInt(x, y, 200, 100),
			})
		}
	}
	e := New(testConfig(), model, &fakeCapturer{frame: frame()}, det, in, rec, discardLogger())

	require.NoError(t, e.Execute(context.Background(), Step{Kind: StepCreateNode, NodeID: "n1", Title: "Get Entity"}))
	require.NoError(t, rec.Close())

	entries := readRunEntries(t, dir, rec.RunID())
	require.Len(t, entries, 2)
	assert.Equal(t, "before", entries[0].Stage)
	assert.Equal(t, "started", entries[0].Status)
	assert.Equal(t, 1, entries[0].StepIndex)
	assert.Equal(t, "after", entries[1].Stage)
	assert.Equal(t, "ok", entries[1].Status)
	assert.Equal(t, 1, entries[1].StepIndex)
	assert.Equal(t, 1, entries[1].Attempts)
	assert.Equal(t, "Get Entity", entries[1].Inputs["title"])
	require.NotNil(t, entries[1].Origin)
}

// Steps without declared replay IO are logged only when the recorder is
// configured to record every step.
func TestExecuteRecordsAllStepsWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(config.ReplayConfig{Enabled: true, RecordAllSteps: true, OutputDir: dir})
	require.NoError(t, err)
	require.True(t, rec.RecordsAll())

	model := graph.NewModel("g")
	model.AddNode(&graph.Node{ID: "n1", Title: "Get Entity", Pos: geometry.Point2D{X: 400, Y: 300}})
	det := &fakeDetector{dets: []vision.Detection{
		{Title: "Get Entity", BBox: geometry.NewRectInt(400, 300, 200, 100)},
	}}
	e := New(testConfig(), model, &fakeCapturer{frame: frame()}, det, &fakeInput{}, rec, discardLogger())
	e.Session().SetTransform(geometry.NewViewTransform(1.0, geometry.Point2D{}))

	require.NoError(t, e.Execute(context.Background(), Step{Kind: StepAddVariadicInputs, NodeID: "n1", Count: 1}))
	require.NoError(t, rec.Close())

	entries := readRunEntries(t, dir, rec.RunID())
	require.Len(t, entries, 2)
	assert.Equal(t, StepAddVariadicInputs, entries[0].Step)
	assert.EqualValues(t, 1, entries[1].Inputs["count"])
}

func TestRecorderDisabledIsNil(t *testing.T) {
	rec, err := NewRecorder(config.ReplayConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, rec)
	// Nil recorder methods are safe no-ops.
	assert.NoError(t, rec.Record(ReplayEntry{}))
	assert.NoError(t, rec.Close())
	assert.Equal(t, "", rec.RunID())
}
