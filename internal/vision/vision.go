// Package vision defines the detection adapter contract and a default
// implementation backed by OpenCV contour segmentation and Tesseract OCR.
//
// Detection is treated as a best-effort black box by the rest of the engine:
// adapters return whatever they found, possibly nothing, and never fail on
// "no content".
package vision

import (
	"image"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// Detection is one recognized node box in editor-pixel coordinates. Title is
// the recognized header text and may be empty when OCR produced nothing
// usable.
type Detection struct {
	BBox  geometry.RectInt
	Title string
}

// PortSide identifies which edge of a node a port sits on.
type PortSide int

const (
	PortSideLeft PortSide = iota
	PortSideRight
)

// PortKind distinguishes flow ports from data ports.
type PortKind int

const (
	PortKindFlow PortKind = iota
	PortKindData
)

// PortDetection is one recognized port marker on a node edge.
type PortDetection struct {
	BBox  geometry.RectInt
	Side  PortSide
	Kind  PortKind
	Index int
}

// NodeDetector recognizes node boxes in a captured frame. Implementations
// must return an empty slice, not an error, when nothing is found.
type NodeDetector interface {
	DetectNodes(img image.Image) []Detection
}

// PortDetector recognizes port markers inside a node region of a captured
// frame.
type PortDetector interface {
	DetectPorts(img image.Image, region geometry.RectInt) []PortDetection
}

// Detector combines node and port detection.
type Detector interface {
	NodeDetector
	PortDetector
}
