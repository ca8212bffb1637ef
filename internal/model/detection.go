package model

import "math"

// Point is a polygon vertex in source-image pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is one region found by the model or drawn by a clinician.
// X and Y are the center of the box.
type Detection struct {
	Class      string   `json:"class"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	Confidence *float64 `json:"confidence,omitempty"`
	Points     []Point  `json:"points,omitempty"`
}

// HasPolygon reports whether the detection carries a fillable mask outline.
func (d Detection) HasPolygon() bool {
	return len(d.Points) >= 3
}

// Area returns the bounding box area.
func (d Detection) Area() float64 {
	return d.Width * d.Height
}

// ClassShare is the area-weighted share of one class within a detection list.
type ClassShare struct {
	Class      string
	Percentage float64
}

// AreaPercentages returns each class's share of the total box area, rounded
// to two decimals, in order of first appearance. When the total area is zero
// every class gets 0.
func AreaPercentages(detections []Detection) []ClassShare {
	var order []string
	areas := make(map[string]float64)
	total := 0.0

	for _, d := range detections {
		if _, seen := areas[d.Class]; !seen {
			order = append(order, d.Class)
		}
		areas[d.Class] += d.Area()
		total += d.Area()
	}

	shares := make([]ClassShare, 0, len(order))
	for _, class := range order {
		pct := 0.0
		if total > 0 {
			pct = math.Round(areas[class]/total*100*100) / 100
		}
		shares = append(shares, ClassShare{Class: class, Percentage: pct})
	}
	return shares
}

// Partition splits detections into those not of class and those of class,
// preserving relative order in both.
func Partition(detections []Detection, class string) (keep, removed []Detection) {
	keep = make([]Detection, 0, len(detections))
	removed = make([]Detection, 0)
	for _, d := range detections {
		if d.Class == class {
			removed = append(removed, d)
		} else {
			keep = append(keep, d)
		}
	}
	return keep, removed
}

// CountByClass tallies detections per class name.
func CountByClass(detections []Detection) map[string]int {
	counts := make(map[string]int)
	for _, d := range detections {
		counts[d.Class]++
	}
	return counts
}

// CloneDetections deep-copies a detection list so callers can mutate the
// copy without touching the original.
func CloneDetections(detections []Detection) []Detection {
	if detections == nil {
		return nil
	}
	out := make([]Detection, len(detections))
	for i, d := range detections {
		out[i] = d
		if d.Confidence != nil {
			c := *d.Confidence
			out[i].Confidence = &c
		}
		if d.Points != nil {
			out[i].Points = append([]Point(nil), d.Points...)
		}
	}
	return out
}
