package model

import "testing"

func TestAreaPercentages(t *testing.T) {
	detections := []Detection{
		{Class: "Caries", Width: 10, Height: 10},
		{Class: "Calculus", Width: 20, Height: 10},
		{Class: "Caries", Width: 10, Height: 10},
	}

	shares := AreaPercentages(detections)

	if len(shares) != 2 {
		t.Fatalf("Expected 2 classes, got %d", len(shares))
	}
	if shares[0].Class != "Caries" || shares[1].Class != "Calculus" {
		t.Errorf("Expected first-appearance order [Caries Calculus], got [%s %s]", shares[0].Class, shares[1].Class)
	}
	if shares[0].Percentage != 50 || shares[1].Percentage != 50 {
		t.Errorf("Expected 50/50, got %v/%v", shares[0].Percentage, shares[1].Percentage)
	}
}

func TestAreaPercentages_Rounding(t *testing.T) {
	detections := []Detection{
		{Class: "a", Width: 1, Height: 1},
		{Class: "b", Width: 1, Height: 1},
		{Class: "c", Width: 1, Height: 1},
	}

	for _, s := range AreaPercentages(detections) {
		if s.Percentage != 33.33 {
			t.Errorf("Expected 33.33 for %s, got %v", s.Class, s.Percentage)
		}
	}
}

func TestAreaPercentages_ZeroArea(t *testing.T) {
	detections := []Detection{
		{Class: "Implant", Width: 0, Height: 5},
		{Class: "Pulp", Width: 3, Height: 0},
	}

	for _, s := range AreaPercentages(detections) {
		if s.Percentage != 0 {
			t.Errorf("Expected 0 for %s with zero total area, got %v", s.Class, s.Percentage)
		}
	}
}

func TestPartition(t *testing.T) {
	detections := []Detection{
		{Class: "Caries", X: 1},
		{Class: "Calculus", X: 2},
		{Class: "Caries", X: 3},
		{Class: "Pulp", X: 4},
	}

	keep, removed := Partition(detections, "Caries")

	if len(keep) != 2 || keep[0].X != 2 || keep[1].X != 4 {
		t.Errorf("Unexpected keep partition: %+v", keep)
	}
	if len(removed) != 2 || removed[0].X != 1 || removed[1].X != 3 {
		t.Errorf("Unexpected removed partition: %+v", removed)
	}
}

func TestCloneDetections_IsDeep(t *testing.T) {
	conf := 0.9
	original := []Detection{{Class: "Caries", Confidence: &conf, Points: []Point{{X: 1, Y: 1}}}}

	clone := CloneDetections(original)
	*clone[0].Confidence = 0.1
	clone[0].Points[0].X = 99
	clone[0].Class = "Cavity"

	if *original[0].Confidence != 0.9 {
		t.Error("Confidence should not be shared")
	}
	if original[0].Points[0].X != 1 {
		t.Error("Points should not be shared")
	}
	if original[0].Class != "Caries" {
		t.Error("Class should not be shared")
	}
}

func TestLabelState(t *testing.T) {
	if (Label{Include: true}).State() != LabelActive {
		t.Error("Included label should be ACTIVE")
	}
	if (Label{Include: false}).State() != LabelExcluded {
		t.Error("Excluded label should be EXCLUDED")
	}
}
