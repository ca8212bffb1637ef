package handler

import (
	"fmt"
	"net/http"

	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/model"
	"annotator/internal/service/lifecycle"
	"annotator/internal/service/storage"
)

// maxUploadSize bounds the multipart form of an uploaded radiograph.
const maxUploadSize = 32 << 20

// PredictionsHandler lists predictions on GET and creates one from the
// multipart "image" field on POST.
func PredictionsHandler(manager *lifecycle.Manager, files *storage.FileStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listPredictions(w, r, manager, logger)
		case http.MethodPost:
			createPrediction(w, r, manager, files, logger)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func listPredictions(w http.ResponseWriter, r *http.Request, manager *lifecycle.Manager, logger *logger.Logger) {
	predictions, err := manager.ListPredictions(r.Context())
	if err != nil {
		writeError(w, logger, err)
		return
	}

	data := make([]dto.PredictionData, 0, len(predictions))
	for _, p := range predictions {
		data = append(data, toPredictionData(&lifecycle.Snapshot{Prediction: p}))
	}
	writeJSON(w, logger, http.StatusOK, data)
}

func createPrediction(w http.ResponseWriter, r *http.Request, manager *lifecycle.Manager, files *storage.FileStore, logger *logger.Logger) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, logger, fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, logger, fmt.Errorf("%w: image file is required", model.ErrInvalidInput))
		return
	}
	defer file.Close()

	path, err := files.SaveUpload(file, header.Filename)
	if err != nil {
		writeError(w, logger, err)
		return
	}

	snapshot, err := manager.CreatePrediction(r.Context(), path)
	if err != nil {
		if rmErr := files.Remove(path); rmErr != nil {
			logger.Warning("Failed to remove upload %s: %v", path, rmErr)
		}
		writeError(w, logger, err)
		return
	}

	writeJSON(w, logger, http.StatusCreated, toPredictionData(snapshot))
}

// GetPredictionHandler returns the prediction named by ?id= with its labels.
func GetPredictionHandler(manager *lifecycle.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		snapshot, err := manager.GetPrediction(r.Context(), r.URL.Query().Get("id"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, toPredictionData(snapshot))
	}
}

// AddNotesHandler stores the "notes" form value on the prediction.
func AddNotesHandler(manager *lifecycle.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if _, err := manager.AddNotes(r.Context(), r.URL.Query().Get("id"), r.FormValue("notes")); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "saved"})
	}
}

// ResetPredictionHandler re-runs inference and discards every edit.
func ResetPredictionHandler(manager *lifecycle.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		snapshot, err := manager.Reset(r.Context(), r.URL.Query().Get("id"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, toPredictionData(snapshot))
	}
}

// DeletePredictionHandler removes the prediction and its images.
func DeletePredictionHandler(manager *lifecycle.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodDelete) {
			return
		}
		id := r.URL.Query().Get("id")
		if err := manager.Delete(r.Context(), id); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "id": id})
	}
}

// FindingsHandler returns the findings summary of the included labels.
func FindingsHandler(manager *lifecycle.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		findings, err := manager.Findings(r.Context(), r.URL.Query().Get("id"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, dto.FindingsData{Findings: findings})
	}
}
