// Package compositor draws detection masks and caption chips onto a BGR
// canvas with OpenCV and encodes the result as JPEG.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"annotator/internal/model"
	"annotator/internal/service/layout"

	"gocv.io/x/gocv"
)

const (
	// MaskAlpha is the weight of the class color over a polygon region.
	MaskAlpha = 0.4
	// ChipAlpha is the weight of the black chip background.
	ChipAlpha = 0.7
	// FontScale and FontThickness size the chip caption.
	FontScale     = 0.7
	FontThickness = 2
	// Contrast and Brightness are applied once after all detections are drawn.
	Contrast   = 1.1
	Brightness = 5
)

// gocv has no constant for IMWRITE_JPEG_SAMPLING_FACTOR.
const (
	imwriteJPEGSamplingFactor = 7
	jpegSampling444           = 0x111111
)

var errEmptyCanvas = errors.New("canvas is empty")

var chipBackground = color.RGBA{R: 0, G: 0, B: 0, A: 255}

// HersheyMeasurer measures captions in the font the chips are drawn with.
type HersheyMeasurer struct{}

// Measure implements layout.TextMeasurer.
func (HersheyMeasurer) Measure(text string) (int, int) {
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, FontScale, FontThickness)
	return size.X, size.Y
}

// Canvas is a BGR image being annotated.
type Canvas struct {
	mat gocv.Mat
}

// Open decodes the image at path into a 3-channel canvas.
func Open(path string) (*Canvas, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: %s", model.ErrDecode, path)
	}
	return &Canvas{mat: mat}, nil
}

// Close releases the underlying matrix.
func (c *Canvas) Close() error {
	return c.mat.Close()
}

// Size returns the canvas width and height in pixels.
func (c *Canvas) Size() (int, int) {
	return c.mat.Cols(), c.mat.Rows()
}

// BlendPolygon fills the polygon with col at MaskAlpha over the canvas.
func (c *Canvas) BlendPolygon(points []image.Point, col color.RGBA) error {
	if len(points) < 3 {
		return fmt.Errorf("polygon needs at least 3 points, got %d", len(points))
	}

	if c.mat.Empty() {
		return errEmptyCanvas
	}

	rows, cols := c.mat.Rows(), c.mat.Cols()

	mask := gocv.Zeros(rows, cols, gocv.MatTypeCV8UC1)
	defer mask.Close()

	pv := gocv.NewPointsVectorFromPoints([][]image.Point{points})
	defer pv.Close()
	if err := gocv.FillPoly(&mask, pv, color.RGBA{R: 255, G: 255, B: 255, A: 255}); err != nil {
		return fmt.Errorf("failed to fill mask: %v", err)
	}

	paint := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(col.B), float64(col.G), float64(col.R), 0), rows, cols, gocv.MatTypeCV8UC3)
	defer paint.Close()

	overlay := c.mat.Clone()
	defer overlay.Close()
	if err := paint.CopyToWithMask(&overlay, mask); err != nil {
		return fmt.Errorf("failed to paint mask: %v", err)
	}

	if err := gocv.AddWeighted(overlay, MaskAlpha, c.mat, 1-MaskAlpha, 0, &c.mat); err != nil {
		return fmt.Errorf("failed to blend mask: %v", err)
	}
	return nil
}

// DrawChip darkens the chip box and writes the caption at the placement
// anchor in col.
func (c *Canvas) DrawChip(p layout.Placement, col color.RGBA) error {
	if c.mat.Empty() {
		return errEmptyCanvas
	}

	overlay := c.mat.Clone()
	defer overlay.Close()

	if err := gocv.Rectangle(&overlay, p.Box.Rect(), chipBackground, -1); err != nil {
		return fmt.Errorf("failed to draw chip background: %v", err)
	}
	if err := gocv.AddWeighted(overlay, ChipAlpha, c.mat, 1-ChipAlpha, 0, &c.mat); err != nil {
		return fmt.Errorf("failed to blend chip background: %v", err)
	}

	if err := gocv.PutTextWithParams(&c.mat, p.Text, p.Anchor, gocv.FontHersheySimplex, FontScale, col,
		FontThickness, gocv.LineAA, false); err != nil {
		return fmt.Errorf("failed to draw text: %v", err)
	}
	return nil
}

// Finish applies the global contrast and brightness adjustment.
func (c *Canvas) Finish() error {
	if c.mat.Empty() {
		return errEmptyCanvas
	}
	if err := gocv.ConvertScaleAbs(c.mat, &c.mat, Contrast, Brightness); err != nil {
		return fmt.Errorf("failed to adjust contrast: %v", err)
	}
	return nil
}

// WriteJPEG encodes the canvas to a new file at path. It refuses to replace
// an existing file and removes any partial output on failure.
func (c *Canvas) WriteJPEG(path string, quality int) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s already exists", model.ErrIO, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", model.ErrIO, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create output directory: %v", model.ErrIO, err)
	}

	params := []int{
		int(gocv.IMWriteJpegQuality), quality,
		int(gocv.IMWriteJpegOptimize), 1,
		imwriteJPEGSamplingFactor, jpegSampling444,
	}
	if !gocv.IMWriteWithParams(path, c.mat, params) {
		os.Remove(path)
		return fmt.Errorf("%w: failed to encode %s", model.ErrIO, path)
	}
	return nil
}
