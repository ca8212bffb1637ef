package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/model"
	"annotator/internal/service/lifecycle"
)

// maxLabelBody bounds JSON bodies of label calls.
const maxLabelBody = 64 << 10

// ExcludeLabelHandler hides the label named by ?id= from the rendered image.
func ExcludeLabelHandler(manager *lifecycle.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		path, err := manager.Exclude(r.Context(), r.URL.Query().Get("id"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, dto.RenderData{RenderedURL: renderedURL(path)})
	}
}

// IncludeLabelHandler restores the label named by ?id=.
func IncludeLabelHandler(manager *lifecycle.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		path, err := manager.Include(r.Context(), r.URL.Query().Get("id"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, dto.RenderData{RenderedURL: renderedURL(path)})
	}
}

// RenameLabelHandler renames and recolors the label named by ?id=.
func RenameLabelHandler(manager *lifecycle.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		var req dto.RenameLabelRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		label, path, err := manager.Rename(r.Context(), r.URL.Query().Get("id"), req.Name, req.ColorHex)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		info := toLabelInfo(*label)
		writeJSON(w, logger, http.StatusOK, dto.RenderData{RenderedURL: renderedURL(path), Label: &info})
	}
}

// AddLabelHandler adds a manual region to the prediction named by ?prediction=.
func AddLabelHandler(manager *lifecycle.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		var req dto.AddLabelRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		region := lifecycle.Region{
			X:        req.X,
			Y:        req.Y,
			Width:    req.Width,
			Height:   req.Height,
			Text:     req.Text,
			ColorHex: req.ColorHex,
		}
		viewport := lifecycle.Viewport{Width: req.ViewportWidth, Height: req.ViewportHeight}

		label, path, err := manager.AddManual(r.Context(), r.URL.Query().Get("prediction"), region, viewport)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		info := toLabelInfo(*label)
		writeJSON(w, logger, http.StatusCreated, dto.RenderData{RenderedURL: renderedURL(path), Label: &info})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxLabelBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", model.ErrInvalidInput, err)
	}
	return nil
}
