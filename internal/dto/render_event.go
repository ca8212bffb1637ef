package dto

import "time"

// RenderEvent is pushed to viewers after every committed render.
type RenderEvent struct {
	PredictionID  string    `json:"prediction_id"`
	Operation     string    `json:"operation"`
	RenderedImage string    `json:"rendered_image"`
	Detections    int       `json:"detections"`
	Timestamp     time.Time `json:"timestamp"`
	Thumbnail     string    `json:"thumbnail,omitempty"` // base64 JPEG
}
