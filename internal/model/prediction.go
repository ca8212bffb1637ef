package model

import "time"

// MaxNotesLength bounds the free-text notes stored on a prediction.
const MaxNotesLength = 1000

// Prediction is one inference run over a source radiograph.
type Prediction struct {
	ID            string      `json:"id"`
	SourceImage   string      `json:"source_image"`
	RenderedImage string      `json:"rendered_image"`
	Detections    []Detection `json:"detections"`
	IsAnnotated   bool        `json:"is_annotated"`
	Notes         string      `json:"notes"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}
