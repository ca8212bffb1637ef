package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"annotator/internal/config"
	"annotator/internal/logger"
	"annotator/internal/repository/sqlite"
	"annotator/internal/route"
	"annotator/internal/service/inference"
	"annotator/internal/service/lifecycle"
	"annotator/internal/service/palette"
	"annotator/internal/service/render"
	"annotator/internal/service/storage"
	"annotator/internal/service/websocket"
)

// App owns the database, detector, viewer hub and HTTP server of one
// annotator process.
type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	files      *storage.FileStore
	detector   inference.Detector
	hubService *websocket.HubService
	manager    *lifecycle.Manager
}

// NewApp opens the database and wires every service from cfg.
func NewApp(cfg *config.Config) (*App, error) {
	log := logger.NewLogger(cfg)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	detector, err := inference.New(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	files := storage.NewFileStore(cfg, log)
	pal := palette.Default()
	pipeline := render.NewPipeline(cfg, pal, files, log)
	hub := websocket.NewHubService(cfg, log)
	mng := lifecycle.NewManager(cfg, sqlite.NewStore(db), pipeline, files, detector, pal, hub, log)

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		files:      files,
		detector:   detector,
		hubService: hub,
		manager:    mng,
	}, nil
}

// Manager exposes the lifecycle manager for command line tools.
func (a *App) Manager() *lifecycle.Manager {
	return a.manager
}

// Close releases the detector and the database.
func (a *App) Close() error {
	var errs []error
	if c, ok := a.detector.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}

// Run serves HTTP until SIGINT or SIGTERM.
func (a *App) Run() error {
	go a.hubService.Run()
	defer a.hubService.Stop()

	router := route.SetupRoutes(a.manager, a.files, a.hubService, a.config, a.logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	a.logger.Info("Radiograph annotator listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Database: %s, uploads: %s, renders: %s", a.config.DatabasePath, a.config.UploadDirectory, a.config.RenderDirectory)
	a.logger.Info("Inference backend: %s", a.config.InferenceBackend)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
