package layout

import (
	"image"
	"reflect"
	"testing"

	"annotator/internal/model"
)

// fixedMeasurer sizes text at 10px per rune and 10px tall.
type fixedMeasurer struct{}

func (fixedMeasurer) Measure(text string) (int, int) {
	return 10 * len([]rune(text)), 10
}

func TestBox_Overlaps(t *testing.T) {
	base := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}

	tests := []struct {
		name     string
		other    Box
		expected bool
	}{
		{"identical", base, true},
		{"inside", Box{2, 2, 8, 8}, true},
		{"touching right edge", Box{10, 0, 20, 10}, true},
		{"touching bottom edge", Box{0, 10, 10, 20}, true},
		{"left", Box{-20, 0, -1, 10}, false},
		{"right", Box{11, 0, 20, 10}, false},
		{"above", Box{0, -20, 10, -1}, false},
		{"below", Box{0, 11, 10, 20}, false},
	}

	for _, tt := range tests {
		if got := base.Overlaps(tt.other); got != tt.expected {
			t.Errorf("%s: Overlaps = %v, expected %v", tt.name, got, tt.expected)
		}
		if got := tt.other.Overlaps(base); got != tt.expected {
			t.Errorf("%s (reversed): Overlaps = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

func TestAnchor_TruncatesTowardZero(t *testing.T) {
	tests := []struct {
		d        model.Detection
		expected image.Point
	}{
		{model.Detection{X: 100, Y: 80, Width: 40, Height: 20}, image.Pt(80, 70)},
		{model.Detection{X: 15.5, Y: 10, Width: 10, Height: 3}, image.Pt(10, 8)},
		{model.Detection{X: 1, Y: 1, Width: 5, Height: 5}, image.Pt(-1, -1)},
	}

	for _, tt := range tests {
		if got := Anchor(tt.d); got != tt.expected {
			t.Errorf("Anchor(%+v) = %v, expected %v", tt.d, got, tt.expected)
		}
	}
}

func TestChipBox(t *testing.T) {
	got := ChipBox(image.Pt(100, 100), 50, 10)
	want := Box{X1: 95, Y1: 80, X2: 155, Y2: 105}
	if got != want {
		t.Errorf("ChipBox = %+v, expected %+v", got, want)
	}
}

func TestPlacer_NoCollision(t *testing.T) {
	p := NewPlacer()
	first := p.Place("a", image.Pt(0, 100), 50, 10)
	second := p.Place("b", image.Pt(500, 100), 50, 10)

	if first.Attempts != 0 || second.Attempts != 0 {
		t.Errorf("Expected no displacement, got %d and %d", first.Attempts, second.Attempts)
	}
	if second.Anchor != image.Pt(500, 100) {
		t.Errorf("Expected anchor unchanged, got %v", second.Anchor)
	}
}

func TestPlacer_DisplacementAlternates(t *testing.T) {
	p := NewPlacer()
	p.Place("Caries", image.Pt(100, 100), 50, 10)

	// Moving up once only touches the first chip, so a right step follows.
	second := p.Place("Caries", image.Pt(100, 100), 50, 10)
	if second.Attempts != 2 {
		t.Fatalf("Expected 2 attempts, got %d", second.Attempts)
	}
	if second.Anchor != image.Pt(165, 75) {
		t.Errorf("Expected anchor (165,75), got %v", second.Anchor)
	}

	third := p.Place("Caries", image.Pt(100, 100), 50, 10)
	if third.Attempts != 4 {
		t.Fatalf("Expected 4 attempts, got %d", third.Attempts)
	}
	if third.Anchor != image.Pt(230, 50) {
		t.Errorf("Expected anchor (230,50), got %v", third.Anchor)
	}

	placed := p.Placed()
	for i := 0; i < len(placed); i++ {
		for j := i + 1; j < len(placed); j++ {
			if placed[i].Overlaps(placed[j]) {
				t.Errorf("Chips %d and %d overlap: %+v %+v", i, j, placed[i], placed[j])
			}
		}
	}
}

func TestPlacer_CapIsBounded(t *testing.T) {
	p := NewPlacer()
	for i := 0; i < 40; i++ {
		pl := p.Place("x", image.Pt(0, 0), 20, 10)
		if pl.Attempts > MaxAttempts {
			t.Fatalf("Placement %d exceeded cap: %d attempts", i, pl.Attempts)
		}
	}
	if len(p.Placed()) != 40 {
		t.Errorf("Every chip must be placed even when capped, got %d", len(p.Placed()))
	}
}

func TestPlan_OverlapOnlyWhenCapped(t *testing.T) {
	var detections []model.Detection
	for i := 0; i < 30; i++ {
		detections = append(detections, model.Detection{Class: "Caries", X: 200, Y: 200, Width: 40, Height: 40})
	}

	placements := Plan(detections, fixedMeasurer{})

	for i := 0; i < len(placements); i++ {
		for j := i + 1; j < len(placements); j++ {
			if placements[i].Box.Overlaps(placements[j].Box) && !placements[j].Capped {
				t.Errorf("Chips %d and %d overlap but the later one was not capped", i, j)
			}
		}
	}
}

func TestPlan_ThreeIdenticalCentersDoNotOverlap(t *testing.T) {
	detections := []model.Detection{
		{Class: "Caries", X: 300, Y: 300, Width: 20, Height: 20},
		{Class: "Calculus", X: 300, Y: 300, Width: 20, Height: 20},
		{Class: "Pulp", X: 300, Y: 300, Width: 20, Height: 20},
	}

	placements := Plan(detections, fixedMeasurer{})

	overlapping := 0
	for i := 0; i < len(placements); i++ {
		for j := i + 1; j < len(placements); j++ {
			if placements[i].Box.Overlaps(placements[j].Box) {
				overlapping++
			}
		}
	}
	if overlapping != 0 {
		t.Errorf("Expected no overlapping chips, got %d pairs", overlapping)
	}
}

func TestPlan_Deterministic(t *testing.T) {
	detections := []model.Detection{
		{Class: "Caries", X: 120, Y: 80, Width: 30, Height: 30},
		{Class: "Calculus", X: 125, Y: 85, Width: 30, Height: 30},
		{Class: "Periapical Pathology", X: 400, Y: 300, Width: 60, Height: 40},
		{Class: "Caries", X: 121, Y: 79, Width: 30, Height: 30},
	}

	first := Plan(detections, fixedMeasurer{})
	second := Plan(detections, fixedMeasurer{})

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Plans differ:\n%+v\n%+v", first, second)
	}
}

func TestPlan_OrderMatters(t *testing.T) {
	a := model.Detection{Class: "aa", X: 100, Y: 100, Width: 10, Height: 10}
	b := model.Detection{Class: "bb", X: 100, Y: 100, Width: 10, Height: 10}

	ab := Plan([]model.Detection{a, b}, fixedMeasurer{})
	ba := Plan([]model.Detection{b, a}, fixedMeasurer{})

	if ab[0].Attempts != 0 || ba[0].Attempts != 0 {
		t.Error("The first chip of a pass is never displaced")
	}
	if ab[1].Text != "bb" || ba[1].Text != "aa" {
		t.Error("Placements must follow detection order")
	}
}
