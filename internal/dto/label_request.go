package dto

// RenameLabelRequest is the body of a rename call.
type RenameLabelRequest struct {
	Name     string `json:"name"`
	ColorHex string `json:"color_hex"`
}

// AddLabelRequest is the body of a manual label call. Coordinates are in
// the client viewport; a missing viewport means the reference size.
type AddLabelRequest struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	Text           string  `json:"text"`
	ColorHex       string  `json:"color_hex"`
	ViewportWidth  int     `json:"viewport_width,omitempty"`
	ViewportHeight int     `json:"viewport_height,omitempty"`
}
