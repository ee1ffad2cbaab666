package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

func TestTransformLifecycle(t *testing.T) {
	s := New()

	_, ok := s.Transform()
	assert.False(t, ok)
	_, err := s.ProgramToEditor(geometry.Point2D{X: 100, Y: 100})
	assert.ErrorIs(t, err, ErrNotCalibrated)

	s.SetTransform(geometry.NewViewTransform(1.0, geometry.Point2D{X: 20, Y: 40}))
	p, err := s.ProgramToEditor(geometry.Point2D{X: 100, Y: 100})
	require.NoError(t, err)
	assert.Equal(t, geometry.Point2D{X: 120, Y: 140}, p)

	s.InvalidateTransform()
	_, err = s.ProgramToEditor(geometry.Point2D{X: 100, Y: 100})
	assert.ErrorIs(t, err, ErrNotCalibrated)
}

func TestProgramToScreenAddsWindowOrigin(t *testing.T) {
	s := New()
	s.SetTransform(geometry.NewViewTransform(1.0, geometry.Point2D{X: 20, Y: 40}))
	s.SetWindowOrigin(geometry.Point2D{X: 300, Y: 200})

	p, err := s.ProgramToScreen(geometry.Point2D{X: 100, Y: 100})
	require.NoError(t, err)
	assert.Equal(t, geometry.Point2D{X: 420, Y: 340}, p)
}

func TestViewTokenGatesPrewarmAndSync(t *testing.T) {
	s := New()
	assert.True(t, s.NeedsConnectPrewarm())
	assert.True(t, s.NeedsViewSync())

	s.MarkConnectPrewarmed()
	s.MarkViewSynced()
	assert.False(t, s.NeedsConnectPrewarm())
	assert.False(t, s.NeedsViewSync())

	s.MarkViewChanged()
	assert.True(t, s.NeedsConnectPrewarm())
	assert.True(t, s.NeedsViewSync())
}

func TestMarkViewChangedIsMonotonic(t *testing.T) {
	s := New()
	t1 := s.ViewToken()
	t2 := s.MarkViewChanged()
	t3 := s.MarkViewChanged()
	assert.Greater(t, uint64(t2), uint64(t1))
	assert.Greater(t, uint64(t3), uint64(t2))
}

func TestCreationHistoryHeadIsNewest(t *testing.T) {
	h := NewCreationHistory()
	assert.Equal(t, "", h.Head())

	h.Record("n1")
	h.Record("n2")
	assert.Equal(t, "n2", h.Head())
	assert.True(t, h.Contains("n1"))

	// Re-recording promotes to head without duplicating.
	h.Record("n1")
	assert.Equal(t, "n1", h.Head())
	assert.Equal(t, 2, h.Len())
}

func TestPositionDeltaCacheIsTokenScoped(t *testing.T) {
	c := NewPositionDeltaCache()
	c.Set(1, "n1", geometry.Point2D{X: 5, Y: -3})

	d, ok := c.Get(1, "n1")
	require.True(t, ok)
	assert.Equal(t, geometry.Point2D{X: 5, Y: -3}, d)

	_, ok = c.Get(2, "n1")
	assert.False(t, ok)

	// Writing under a new token drops the old entries.
	c.Set(2, "n2", geometry.Point2D{X: 1, Y: 1})
	_, ok = c.Get(1, "n1")
	assert.False(t, ok)
}

func TestPositionDeltaCacheAll(t *testing.T) {
	c := NewPositionDeltaCache()
	c.Set(3, "n1", geometry.Point2D{X: 5, Y: -3})
	c.Set(3, "n2", geometry.Point2D{X: 1, Y: 2})

	all := c.All(3)
	require.Len(t, all, 2)
	assert.Equal(t, geometry.Point2D{X: 5, Y: -3}, all["n1"])
	assert.Nil(t, c.All(4))

	// The copy is detached from the cache.
	all["n1"] = geometry.Point2D{}
	d, _ := c.Get(3, "n1")
	assert.Equal(t, geometry.Point2D{X: 5, Y: -3}, d)
}

func TestResetRunKeepsCalibration(t *testing.T) {
	s := New()
	s.SetTransform(geometry.NewViewTransform(1.0, geometry.Point2D{X: 20, Y: 40}))
	s.History.Record("n1")
	s.Deltas.Set(s.ViewToken(), "n1", geometry.Point2D{X: 2, Y: 2})
	s.Pause()
	s.Cancel()

	s.ResetRun()

	_, ok := s.Transform()
	assert.True(t, ok)
	assert.Equal(t, 0, s.History.Len())
	_, ok = s.Deltas.Get(s.ViewToken(), "n1")
	assert.False(t, ok)
	assert.False(t, s.Paused())
	assert.False(t, s.Canceled())
}
