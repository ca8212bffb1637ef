package model

import "time"

// DefaultColorHex is used for classes without a known color.
const DefaultColorHex = "#FFFFFF"

// LabelState is the lifecycle state of a class within a prediction.
type LabelState string

const (
	LabelActive   LabelState = "ACTIVE"
	LabelExcluded LabelState = "EXCLUDED"
)

// Label is the named, colored view over one class of a prediction.
type Label struct {
	ID           string    `json:"id"`
	PredictionID string    `json:"prediction_id"`
	Name         string    `json:"name"`
	Percentage   float64   `json:"percentage"`
	Include      bool      `json:"include"`
	ColorHex     string    `json:"color_hex"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// State derives the lifecycle state from the include flag.
func (l Label) State() LabelState {
	if l.Include {
		return LabelActive
	}
	return LabelExcluded
}

// DeletedLabel is the journal entry holding the detections removed when a
// label was excluded.
type DeletedLabel struct {
	ID         string      `json:"id"`
	LabelID    string      `json:"label_id"`
	Detections []Detection `json:"detections"`
	CreatedAt  time.Time   `json:"created_at"`
}
