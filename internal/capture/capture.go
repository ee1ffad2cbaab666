// Package capture defines the window-capture adapter contract and helpers
// for working with captured editor frames. A failed capture is a recoverable
// per-call condition, never fatal: callers skip the attempt and decide
// whether to retry.
package capture

import (
	"errors"
	"image"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// ErrCaptureFailed is returned when the target window could not be captured.
var ErrCaptureFailed = errors.New("window capture failed")

// WindowCapturer captures the client area of the target window.
type WindowCapturer interface {
	// CaptureWindow grabs the client area of the window matching titleHint.
	// Returns ErrCaptureFailed (possibly wrapped) when the window is missing
	// or occluded beyond use.
	CaptureWindow(titleHint string) (image.Image, error)

	// WindowRect returns the desktop position and size of the window's
	// client area, used to convert editor coordinates to screen coordinates.
	WindowRect(titleHint string) (geometry.RectInt, error)
}

// Margins of the editor chrome around the node canvas, in editor pixels.
// The canvas ROI excludes the toolbar, side panels and status bar.
const (
	canvasMarginLeft   = 72
	canvasMarginTop    = 96
	canvasMarginRight  = 48
	canvasMarginBottom = 40
)

// CanvasRegion returns the node-canvas ROI inside a captured frame. All
// calibration scoring that reasons about "should be visible" uses this
// region, not the full client area.
func CanvasRegion(frame image.Image) geometry.RectInt {
	b := frame.Bounds()
	w := b.Dx() - canvasMarginLeft - canvasMarginRight
	h := b.Dy() - canvasMarginTop - canvasMarginBottom
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return geometry.RectInt{
		X:      canvasMarginLeft,
		Y:      canvasMarginTop,
		Width:  w,
		Height: h,
	}
}
