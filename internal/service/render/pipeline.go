package render

import (
	"context"
	"fmt"
	"image"

	"annotator/internal/config"
	"annotator/internal/logger"
	"annotator/internal/model"
	"annotator/internal/service/compositor"
	"annotator/internal/service/layout"
	"annotator/internal/service/palette"
)

// PathAllocator hands out fresh output paths.
type PathAllocator interface {
	NewRenderPath() string
}

// Pipeline turns a base image and an active detection list into a new
// composited image file.
type Pipeline struct {
	palette       *palette.Palette
	measurer      layout.TextMeasurer
	paths         PathAllocator
	quality       int
	maxDetections int
	logger        *logger.Logger
}

// NewPipeline creates a Pipeline writing JPEGs at the configured quality.
func NewPipeline(config *config.Config, pal *palette.Palette, paths PathAllocator, logger *logger.Logger) *Pipeline {
	return &Pipeline{
		palette:       pal,
		measurer:      compositor.HersheyMeasurer{},
		paths:         paths,
		quality:       config.JPEGQuality,
		maxDetections: config.MaxRenderDetections,
		logger:        logger,
	}
}

// Render draws detections over the image at basePath and returns the path of
// the new file. overrides forces colors for individual classes. Inputs are
// not modified and no existing file is touched.
func (p *Pipeline) Render(ctx context.Context, basePath string, detections []model.Detection, overrides map[string]string) (string, error) {
	canvas, err := compositor.Open(basePath)
	if err != nil {
		return "", err
	}
	defer canvas.Close()

	drawn := detections
	if p.maxDetections > 0 && len(drawn) > p.maxDetections {
		p.logger.Warning("Rendering first %d of %d detections for %s", p.maxDetections, len(drawn), basePath)
		drawn = drawn[:p.maxDetections]
	}

	placements := layout.Plan(drawn, p.measurer)

	for i, d := range drawn {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		col := p.palette.ColorFor(d.Class, overrides)

		if d.HasPolygon() {
			if err := canvas.BlendPolygon(polygon(d.Points), col); err != nil {
				return "", fmt.Errorf("failed to blend mask for %s: %w", d.Class, err)
			}
		}

		if placements[i].Capped {
			p.logger.Warning("Label %q still overlaps after %d attempts", d.Class, layout.MaxAttempts)
		}
		if err := canvas.DrawChip(placements[i], col); err != nil {
			return "", fmt.Errorf("failed to draw label for %s: %w", d.Class, err)
		}
	}

	if err := canvas.Finish(); err != nil {
		return "", fmt.Errorf("failed to finish render: %w", err)
	}

	out := p.paths.NewRenderPath()
	if err := canvas.WriteJPEG(out, p.quality); err != nil {
		return "", err
	}

	p.logger.Info("Rendered %d detections to %s", len(drawn), out)
	return out, nil
}

// polygon truncates polygon vertices to pixel coordinates.
func polygon(points []model.Point) []image.Point {
	out := make([]image.Point, len(points))
	for i, pt := range points {
		out[i] = image.Pt(int(pt.X), int(pt.Y))
	}
	return out
}
