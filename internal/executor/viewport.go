package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/input"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/session"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// panSettle is how long the editor gets to finish its pan animation before
// the next capture.
const panSettle = 150 * time.Millisecond

// Viewport pans the canvas by synthetic drags. Every pan shifts the
// calibrated origin by the same amount and advances the view token, so
// downstream consumers re-validate rather than trust the shifted transform
// blindly.
type Viewport struct {
	cfg  config.ViewportConfig
	in   input.Input
	sess *session.Session
	log  *slog.Logger
}

// NewViewport builds the pan controller.
func NewViewport(cfg config.ViewportConfig, in input.Input, sess *session.Session, log *slog.Logger) *Viewport {
	return &Viewport{cfg: cfg, in: in, sess: sess, log: log}
}

// Pan shifts the canvas content by (dx, dy) editor pixels with one drag from
// the canvas center. The magnitude per axis is clamped to the configured
// step.
func (v *Viewport) Pan(ctx context.Context, canvasROI geometry.RectInt, dx, dy float64) error {
	step := float64(v.cfg.PanStepPixels)
	dx = clampAbs(dx, step)
	dy = clampAbs(dy, step)
	if dx == 0 && dy == 0 {
		return nil
	}

	start := v.sess.EditorToScreen(canvasROI.Center())
	end := v.sess.EditorToScreen(canvasROI.Center().Add(geometry.Point2D{X: dx, Y: dy}))
	if err := v.in.Drag(int(start.X), int(start.Y), int(end.X), int(end.Y)); err != nil {
		return fmt.Errorf("pan drag: %w", err)
	}

	if t, ok := v.sess.Transform(); ok {
		t.Origin = t.Origin.Add(geometry.Point2D{X: dx, Y: dy})
		v.sess.SetTransform(t)
	}
	v.sess.MarkViewChanged()
	v.log.Debug("panned viewport", "dx", dx, "dy", dy)

	input.Sleep(ctx, panSettle)
	return nil
}

// EnsureVisible pans until the model position projects inside the safe
// region of the canvas, or the pan step limit is reached.
func (v *Viewport) EnsureVisible(ctx context.Context, canvasROI geometry.RectInt, modelPos geometry.Point2D) error {
	roi := canvasROI.ToFloat()
	safe := roi.Inset(roi.Width*v.cfg.SafeMarginRatio, roi.Height*v.cfg.SafeMarginRatio)

	for i := 0; i < v.cfg.MaxPanSteps; i++ {
		t, ok := v.sess.Transform()
		if !ok {
			return session.ErrNotCalibrated
		}
		p := t.Apply(modelPos)
		if safe.Contains(p) {
			return nil
		}

		var dx, dy float64
		switch {
		case p.X < safe.X:
			dx = safe.X - p.X
		case p.X > safe.X+safe.Width:
			dx = safe.X + safe.Width - p.X
		}
		switch {
		case p.Y < safe.Y:
			dy = safe.Y - p.Y
		case p.Y > safe.Y+safe.Height:
			dy = safe.Y + safe.Height - p.Y
		}
		if err := v.Pan(ctx, canvasROI, dx, dy); err != nil {
			return err
		}
	}
	return fmt.Errorf("pan steps exhausted for (%.0f, %.0f): %w", modelPos.X, modelPos.Y, errNodeNotVisible)
}

// CenterOn pans until the model position projects onto the canvas center.
// Drag endpoints land on connection ports, so two endpoints share a frame
// most often when their midpoint is centered.
func (v *Viewport) CenterOn(ctx context.Context, canvasROI geometry.RectInt, modelPos geometry.Point2D) error {
	center := canvasROI.Center()
	for i := 0; i < v.cfg.MaxPanSteps; i++ {
		t, ok := v.sess.Transform()
		if !ok {
			return session.ErrNotCalibrated
		}
		delta := center.Sub(t.Apply(modelPos))
		if math.Abs(delta.X) <= 1 && math.Abs(delta.Y) <= 1 {
			return nil
		}
		if err := v.Pan(ctx, canvasROI, delta.X, delta.Y); err != nil {
			return err
		}
	}
	return fmt.Errorf("pan steps exhausted centering (%.0f, %.0f): %w", modelPos.X, modelPos.Y, errNodeNotVisible)
}

func clampAbs(v, limit float64) float64 {
	if math.Abs(v) <= limit {
		return v
	}
	if v < 0 {
		return -limit
	}
	return limit
}
