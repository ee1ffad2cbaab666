package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 4, cfg.Voting.MinInliers)
	assert.Equal(t, 0.75, cfg.Voting.ToleranceScale)
	assert.Equal(t, 8, cfg.Anchor.MaxNeighbors)
	assert.Equal(t, 0.20, cfg.Anchor.MaxAnisotropy)
	assert.Equal(t, 3, cfg.Anchor.OrdinaryMinMatches)
	assert.True(t, cfg.Fingerprint.Enabled)
	assert.Equal(t, 60.0, cfg.Viewport.SyncThresholdPx)
	assert.False(t, cfg.Replay.Enabled)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	content := []byte(`
window_title: "My Editor"
voting:
  min_inliers: 6
viewport:
  sync_threshold_px: 90
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "My Editor", cfg.WindowTitle)
	assert.Equal(t, 6, cfg.Voting.MinInliers)
	assert.Equal(t, 90.0, cfg.Viewport.SyncThresholdPx)
	// Untouched sections keep their defaults.
	assert.Equal(t, 8, cfg.Anchor.MaxNeighbors)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("voting: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
