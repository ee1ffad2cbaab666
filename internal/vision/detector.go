package vision

import (
	"image"
	"log/slog"
	"sort"
	"strings"

	"gocv.io/x/gocv"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// Node-box segmentation parameters. Node bodies render darker than the canvas
// grid, so an inverted threshold on the grayscale frame isolates them; the
// header band occupies the top portion of each box.
const (
	nodeBodyThreshold  = 90.0
	minNodeAreaPx      = 1800.0
	maxNodeAspectRatio = 8.0
	headerBandRatio    = 0.28
	portMarkerMinPx    = 16.0
	portEdgeBandPx     = 18
)

// OpenCVDetector recognizes node boxes by contour segmentation and reads
// their titles with an OCR engine. It implements Detector.
type OpenCVDetector struct {
	ocr *TitleReader
	log *slog.Logger
}

// NewOpenCVDetector creates a detector. The OCR reader may be nil, in which
// case detections carry empty titles.
func NewOpenCVDetector(ocr *TitleReader, log *slog.Logger) *OpenCVDetector {
	if log == nil {
		log = slog.Default()
	}
	return &OpenCVDetector{ocr: ocr, log: log}
}

// DetectNodes segments node boxes out of the captured frame. Returns an empty
// slice when nothing is found or the frame cannot be converted.
func (d *OpenCVDetector) DetectNodes(img image.Image) []Detection {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		d.log.Debug("frame conversion failed", "err", err)
		return nil
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	// Blur before thresholding to suppress grid lines.
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderDefault)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(blurred, &mask, float32(nodeBodyThreshold), 255, gocv.ThresholdBinaryInv)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3})
	defer kernel.Close()
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var detections []Detection
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < minNodeAreaPx {
			continue
		}
		rect := gocv.BoundingRect(contour)
		w, h := rect.Dx(), rect.Dy()
		if w <= 0 || h <= 0 {
			continue
		}
		aspect := float64(w) / float64(h)
		if aspect > maxNodeAspectRatio || aspect < 1.0/maxNodeAspectRatio {
			continue
		}
		bbox := geometry.RectInt{X: rect.Min.X, Y: rect.Min.Y, Width: w, Height: h}
		title := ""
		if d.ocr != nil {
			band := geometry.RectInt{
				X:      bbox.X,
				Y:      bbox.Y,
				Width:  bbox.Width,
				Height: int(float64(bbox.Height) * headerBandRatio),
			}
			text, err := d.ocr.ReadRegion(mat, band)
			if err != nil {
				d.log.Debug("title OCR failed", "bbox", bbox, "err", err)
			} else {
				title = text
			}
		}
		detections = append(detections, Detection{BBox: bbox, Title: title})
	}

	// Stable order: top-to-bottom, then left-to-right.
	sort.Slice(detections, func(i, j int) bool {
		a, b := detections[i].BBox, detections[j].BBox
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return detections
}

// DetectPorts scans the left and right edge bands of a node region for port
// markers. Markers are small saturated blobs; flow ports are distinguished
// from data ports by shape elongation.
func (d *OpenCVDetector) DetectPorts(img image.Image, region geometry.RectInt) []PortDetection {
	if region.Empty() {
		return nil
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil
	}
	defer mat.Close()

	bounds := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
	bounds = bounds.Intersect(image.Rect(0, 0, mat.Cols(), mat.Rows()))
	if bounds.Empty() {
		return nil
	}
	roi := mat.Region(bounds)
	defer roi.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorRGBToHSV)

	// High-saturation mask: port markers are the only saturated pixels on the
	// node edge bands.
	lower := gocv.NewScalar(0, 120, 80, 0)
	upper := gocv.NewScalar(180, 255, 255, 0)
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var ports []PortDetection
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) < portMarkerMinPx {
			continue
		}
		rect := gocv.BoundingRect(contour)
		cx := rect.Min.X + rect.Dx()/2
		onLeft := cx <= portEdgeBandPx
		onRight := cx >= bounds.Dx()-portEdgeBandPx
		if !onLeft && !onRight {
			continue
		}
		side := PortSideLeft
		if onRight {
			side = PortSideRight
		}
		kind := PortKindData
		if rect.Dx() > rect.Dy()*2 {
			kind = PortKindFlow
		}
		ports = append(ports, PortDetection{
			BBox: geometry.RectInt{
				X:      region.X + rect.Min.X,
				Y:      region.Y + rect.Min.Y,
				Width:  rect.Dx(),
				Height: rect.Dy(),
			},
			Side: side,
			Kind: kind,
		})
	}

	// Index ports per side, top to bottom.
	sort.Slice(ports, func(i, j int) bool {
		if ports[i].Side != ports[j].Side {
			return ports[i].Side < ports[j].Side
		}
		return ports[i].BBox.Y < ports[j].BBox.Y
	})
	counts := map[PortSide]int{}
	for i := range ports {
		ports[i].Index = counts[ports[i].Side]
		counts[ports[i].Side]++
	}
	return ports
}

// NormalizeTitle collapses whitespace in a recognized title so lookups by
// title are stable across OCR runs.
func NormalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
