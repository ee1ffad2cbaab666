package geometry

import "math"

// minScale guards against degenerate transforms during inversion.
const minScale = 1e-6

// ViewTransform maps model coordinates to editor-pixel coordinates via
// editor = origin + model*scale. Scale is uniform on both axes.
type ViewTransform struct {
	Scale  float64 `json:"scale"`
	Origin Point2D `json:"origin"`
}

// NewViewTransform creates a transform with the given scale and origin.
func NewViewTransform(scale float64, origin Point2D) ViewTransform {
	return ViewTransform{Scale: scale, Origin: origin}
}

// Valid reports whether the transform can be applied and inverted.
func (t ViewTransform) Valid() bool {
	return math.Abs(t.Scale) > minScale
}

// Apply maps a model-space point to editor-pixel space.
func (t ViewTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.Origin.X + p.X*t.Scale,
		Y: t.Origin.Y + p.Y*t.Scale,
	}
}

// Invert maps an editor-pixel point back to model space. Returns false when
// the scale is degenerate.
func (t ViewTransform) Invert(p Point2D) (Point2D, bool) {
	if !t.Valid() {
		return Point2D{}, false
	}
	return Point2D{
		X: (p.X - t.Origin.X) / t.Scale,
		Y: (p.Y - t.Origin.Y) / t.Scale,
	}, true
}

// ApplyRect maps a model-space rectangle to editor-pixel space.
func (t ViewTransform) ApplyRect(r Rect) Rect {
	tl := t.Apply(r.TopLeft())
	return Rect{X: tl.X, Y: tl.Y, Width: r.Width * t.Scale, Height: r.Height * t.Scale}
}
