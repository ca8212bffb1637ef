package dto

import (
	"encoding/json"
	"time"
)

// LabelInfo is a label as shown to clients.
type LabelInfo struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	Include    bool    `json:"include"`
	State      string  `json:"state"`
	ColorHex   string  `json:"color_hex"`
}

// DetectionInfo is one live detection in image pixels.
type DetectionInfo struct {
	Class      string       `json:"class"`
	X          float64      `json:"x"`
	Y          float64      `json:"y"`
	Width      float64      `json:"width"`
	Height     float64      `json:"height"`
	Confidence *float64     `json:"confidence,omitempty"`
	Points     [][2]float64 `json:"points,omitempty"`
}

// PredictionData is the response payload for a prediction with its labels.
type PredictionData struct {
	ID          string          `json:"id"`
	SourceImage string          `json:"source_image"`
	RenderedURL string          `json:"rendered_url"`
	IsAnnotated bool            `json:"is_annotated"`
	Notes       string          `json:"notes"`
	Detections  []DetectionInfo `json:"detections"`
	Labels      []LabelInfo     `json:"labels"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// MarshalJSON formats timestamps as day-month-year hour:minute.
func (p PredictionData) MarshalJSON() ([]byte, error) {
	type Alias PredictionData
	return json.Marshal(&struct {
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
		Alias
	}{
		CreatedAt: p.CreatedAt.Format("02-01-2006 15:04"),
		UpdatedAt: p.UpdatedAt.Format("02-01-2006 15:04"),
		Alias:     (Alias)(p),
	})
}

// RenderData is returned by label transitions.
type RenderData struct {
	RenderedURL string     `json:"rendered_url"`
	Label       *LabelInfo `json:"label,omitempty"`
}

// FindingsData carries the findings summary text.
type FindingsData struct {
	Findings string `json:"findings"`
}
