package handler

import (
	"net/http"

	"annotator/internal/service/storage"
)

// ViewRenderedHandler serves a single rendered image specified via the "image" query parameter.
func ViewRenderedHandler(files *storage.FileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		if image == "" {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, files.RenderPath(image))
	}
}
