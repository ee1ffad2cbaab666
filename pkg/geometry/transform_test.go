package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewTransformApply(t *testing.T) {
	tr := NewViewTransform(1.0, Point2D{X: 20, Y: 40})
	got := tr.Apply(Point2D{X: 100, Y: 100})
	assert.Equal(t, Point2D{X: 120, Y: 140}, got)
}

func TestViewTransformRoundTrip(t *testing.T) {
	tr := NewViewTransform(0.5, Point2D{X: -310, Y: 187.5})
	points := []Point2D{
		{X: 0, Y: 0},
		{X: 100, Y: 100},
		{X: -2400, Y: 960},
		{X: 13.75, Y: -0.001},
	}
	for _, p := range points {
		back, ok := tr.Invert(tr.Apply(p))
		require.True(t, ok)
		assert.InDelta(t, p.X, back.X, 1e-9)
		assert.InDelta(t, p.Y, back.Y, 1e-9)
	}
}

func TestViewTransformDegenerate(t *testing.T) {
	tr := ViewTransform{Scale: 0, Origin: Point2D{X: 1, Y: 2}}
	assert.False(t, tr.Valid())
	_, ok := tr.Invert(Point2D{X: 5, Y: 5})
	assert.False(t, ok)
}

func TestBoundingBox(t *testing.T) {
	box := BoundingBox([]Point2D{{X: 3, Y: -1}, {X: -2, Y: 7}, {X: 0, Y: 0}})
	assert.Equal(t, Rect{X: -2, Y: -1, Width: 5, Height: 8}, box)
}
