package vision

import (
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// TitleReader performs OCR on node header bands using Tesseract.
type TitleReader struct {
	client *gosseract.Client
}

// NewTitleReader creates an OCR reader for node titles.
func NewTitleReader(language string) (*TitleReader, error) {
	client := gosseract.NewClient()
	if language == "" {
		language = "eng"
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR language: %w", err)
	}
	// Node titles aren't dictionary words; disable word correction.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	return &TitleReader{client: client}, nil
}

// Close releases OCR resources.
func (r *TitleReader) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ReadRegion recognizes the text inside a region of the frame.
func (r *TitleReader) ReadRegion(mat gocv.Mat, bounds geometry.RectInt) (string, error) {
	if mat.Empty() {
		return "", fmt.Errorf("empty frame")
	}
	x := max(0, bounds.X)
	y := max(0, bounds.Y)
	w := min(bounds.Width, mat.Cols()-x)
	h := min(bounds.Height, mat.Rows()-y)
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("invalid region bounds")
	}

	region := mat.Region(image.Rect(x, y, x+w, y+h))
	defer region.Close()

	processed := preprocessTitleBand(region)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", fmt.Errorf("encode region: %w", err)
	}
	defer buf.Close()

	if err := r.client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return "", fmt.Errorf("set PSM: %w", err)
	}
	if err := r.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return NormalizeTitle(strings.TrimSpace(text)), nil
}

// preprocessTitleBand prepares a header band for OCR: upscale, grayscale,
// contrast-limited equalization, Otsu binarization, polarity fix.
func preprocessTitleBand(region gocv.Mat) gocv.Mat {
	h, w := region.Rows(), region.Cols()

	var scaled gocv.Mat
	minDim := min(h, w)
	if minDim > 0 && minDim < 48 {
		scale := 48.0 / float64(minDim)
		scaled = gocv.NewMat()
		gocv.Resize(region, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = region.Clone()
	}

	gray := gocv.NewMat()
	gocv.CvtColor(scaled, &gray, gocv.ColorRGBToGray)
	scaled.Close()

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{X: 8, Y: 8})
	defer clahe.Close()
	enhanced := gocv.NewMat()
	clahe.Apply(gray, &enhanced)
	gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	enhanced.Close()

	// OCR expects dark text on light background; node headers are usually
	// light-on-dark.
	whiteCount := gocv.CountNonZero(binary)
	if binary.Rows()*binary.Cols() > 0 &&
		float64(whiteCount)/float64(binary.Rows()*binary.Cols()) > 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	result := gocv.NewMat()
	gocv.CvtColor(binary, &result, gocv.ColorGrayToBGR)
	binary.Close()
	return result
}
