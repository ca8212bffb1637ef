package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"

	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/model"
	"annotator/internal/service/lifecycle"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDecode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and writes {"error": ...}.
func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
	}
	writeJSON(w, logger, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// requireMethod writes 405 and returns false unless r uses method.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// renderedURL is the public URL of a rendered image path.
func renderedURL(path string) string {
	if path == "" {
		return ""
	}
	return "/api/rendered?image=" + url.QueryEscape(filepath.Base(path))
}

func toLabelInfo(l model.Label) dto.LabelInfo {
	return dto.LabelInfo{
		ID:         l.ID,
		Name:       l.Name,
		Percentage: l.Percentage,
		Include:    l.Include,
		State:      string(l.State()),
		ColorHex:   l.ColorHex,
	}
}

func toPredictionData(s *lifecycle.Snapshot) dto.PredictionData {
	p := s.Prediction
	data := dto.PredictionData{
		ID:          p.ID,
		SourceImage: filepath.Base(p.SourceImage),
		RenderedURL: renderedURL(p.RenderedImage),
		IsAnnotated: p.IsAnnotated,
		Notes:       p.Notes,
		Detections:  make([]dto.DetectionInfo, 0, len(p.Detections)),
		Labels:      make([]dto.LabelInfo, 0, len(s.Labels)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, d := range p.Detections {
		info := dto.DetectionInfo{
			Class:      d.Class,
			X:          d.X,
			Y:          d.Y,
			Width:      d.Width,
			Height:     d.Height,
			Confidence: d.Confidence,
		}
		for _, pt := range d.Points {
			info.Points = append(info.Points, [2]float64{pt.X, pt.Y})
		}
		data.Detections = append(data.Detections, info)
	}
	for _, l := range s.Labels {
		data.Labels = append(data.Labels, toLabelInfo(l))
	}
	return data
}
