// Package layout places label chips for a render pass.
//
// Chips are placed greedily in detection order. A chip that overlaps one
// already placed is pushed up and right in alternation, at most MaxAttempts
// times, then left where it is.
package layout

import (
	"image"

	"annotator/internal/model"
)

const (
	// Padding surrounds the chip text on every side.
	Padding = 5
	// Gap is the extra spacing added to each displacement step.
	Gap = 5
	// MaxAttempts caps displacement steps per chip.
	MaxAttempts = 10
)

// Box is an axis-aligned chip rectangle in image pixels. Unlike
// image.Rectangle both edges are inclusive.
type Box struct {
	X1, Y1, X2, Y2 int
}

// Overlaps reports whether b and o intersect. Boxes sharing an edge overlap.
func (b Box) Overlaps(o Box) bool {
	return !(b.X2 < o.X1 || b.X1 > o.X2 || b.Y2 < o.Y1 || b.Y1 > o.Y2)
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// TextMeasurer reports the rendered size of a chip caption.
type TextMeasurer interface {
	Measure(text string) (width, height int)
}

// Anchor returns the top-left corner of a detection's box, truncated toward
// zero.
func Anchor(d model.Detection) image.Point {
	return image.Pt(int(d.X-d.Width/2), int(d.Y-d.Height/2))
}

// ChipBox returns the chip rectangle for text drawn with its baseline at
// anchor.
func ChipBox(anchor image.Point, textW, textH int) Box {
	return Box{
		X1: anchor.X - Padding,
		Y1: anchor.Y - textH - 2*Padding,
		X2: anchor.X + textW + Padding,
		Y2: anchor.Y + Padding,
	}
}

// Placement is where one chip ended up.
type Placement struct {
	Text     string
	Anchor   image.Point // text origin after displacement
	Box      Box
	Attempts int
	Capped   bool // MaxAttempts reached while still overlapping
}

// Placer accumulates chips for one render pass.
type Placer struct {
	placed []Box
}

// NewPlacer returns an empty placer.
func NewPlacer() *Placer {
	return &Placer{}
}

// Place positions a chip of the given text size starting at anchor and
// records it.
func (p *Placer) Place(text string, anchor image.Point, textW, textH int) Placement {
	x, y := anchor.X, anchor.Y
	box := ChipBox(anchor, textW, textH)

	attempts := 0
	for p.collides(box) {
		if attempts == MaxAttempts {
			break
		}
		if attempts%2 == 0 {
			y -= textH + 2*Padding + Gap
		} else {
			x += textW + 2*Padding + Gap
		}
		attempts++
		box = ChipBox(image.Pt(x, y), textW, textH)
	}

	p.placed = append(p.placed, box)

	return Placement{
		Text:     text,
		Anchor:   image.Pt(x, y),
		Box:      box,
		Attempts: attempts,
		Capped:   attempts == MaxAttempts && p.collidesExceptLast(box),
	}
}

// Placed returns the chips placed so far.
func (p *Placer) Placed() []Box {
	out := make([]Box, len(p.placed))
	copy(out, p.placed)
	return out
}

func (p *Placer) collides(box Box) bool {
	for _, other := range p.placed {
		if box.Overlaps(other) {
			return true
		}
	}
	return false
}

func (p *Placer) collidesExceptLast(box Box) bool {
	for _, other := range p.placed[:len(p.placed)-1] {
		if box.Overlaps(other) {
			return true
		}
	}
	return false
}

// Plan places a chip for every detection in order and returns the
// placements. The result depends only on the detections and the measurer.
func Plan(detections []model.Detection, measurer TextMeasurer) []Placement {
	placer := NewPlacer()
	placements := make([]Placement, 0, len(detections))
	for _, d := range detections {
		w, h := measurer.Measure(d.Class)
		placements = append(placements, placer.Place(d.Class, Anchor(d), w, h))
	}
	return placements
}
