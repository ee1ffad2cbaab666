package capture

import (
	"fmt"
	"image"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// FileCapturer serves a frame loaded from disk. Used by the one-shot CLI
// commands and by offline analysis of recorded frames.
type FileCapturer struct {
	frame image.Image
	rect  geometry.RectInt
}

// NewFileCapturer loads a PNG frame from path. maxWidth > 0 downscales wider
// frames proportionally.
func NewFileCapturer(path string, maxWidth int) (*FileCapturer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = scaleToWidth(img, maxWidth)
	}
	b := img.Bounds()
	return &FileCapturer{
		frame: img,
		rect:  geometry.RectInt{Width: b.Dx(), Height: b.Dy()},
	}, nil
}

// CaptureWindow returns the loaded frame regardless of the title hint.
func (c *FileCapturer) CaptureWindow(string) (image.Image, error) {
	if c.frame == nil {
		return nil, ErrCaptureFailed
	}
	return c.frame, nil
}

// WindowRect reports the frame placed at the desktop origin.
func (c *FileCapturer) WindowRect(string) (geometry.RectInt, error) {
	return c.rect, nil
}

func scaleToWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	height := b.Dy() * width / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
