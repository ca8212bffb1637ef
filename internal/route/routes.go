package route

import (
	"net/http"
	"os"
	"path/filepath"

	"annotator/internal/config"
	"annotator/internal/handler"
	"annotator/internal/logger"
	"annotator/internal/middleware"
	"annotator/internal/service/lifecycle"
	"annotator/internal/service/storage"
	"annotator/internal/service/websocket"
)

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean(path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(manager *lifecycle.Manager, files *storage.FileStore, hub *websocket.HubService,
	cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Prediction endpoints
	mux.HandleFunc("/api/predictions", handler.PredictionsHandler(manager, files, logger))
	mux.HandleFunc("/api/predictions/get", handler.GetPredictionHandler(manager, logger))
	mux.HandleFunc("/api/predictions/notes", handler.AddNotesHandler(manager, logger))
	mux.HandleFunc("/api/predictions/reset", handler.ResetPredictionHandler(manager, logger))
	mux.HandleFunc("/api/predictions/delete", handler.DeletePredictionHandler(manager, logger))
	mux.HandleFunc("/api/predictions/findings", handler.FindingsHandler(manager, logger))

	// Label endpoints
	mux.HandleFunc("/api/labels/exclude", handler.ExcludeLabelHandler(manager, logger))
	mux.HandleFunc("/api/labels/include", handler.IncludeLabelHandler(manager, logger))
	mux.HandleFunc("/api/labels/rename", handler.RenameLabelHandler(manager, logger))
	mux.HandleFunc("/api/labels/add", handler.AddLabelHandler(manager, logger))

	mux.HandleFunc("/api/rendered", handler.ViewRenderedHandler(files))
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(hub, logger))

	// Log endpoints
	for _, level := range handler.LogLevels {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(cfg, level))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(logger, level))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.AuthMiddleware(cfg.APIToken, mux)
}
