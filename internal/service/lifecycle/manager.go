// Package lifecycle owns the include/exclude/rename/add state machine of
// prediction labels and keeps the rendered image in step with it.
//
// Every transition renders the new image first, then commits all rows in one
// transaction, then removes the previous image. A failure before the commit
// leaves rows and files as they were.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"annotator/internal/config"
	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/model"
	"annotator/internal/repository"
	"annotator/internal/service/palette"

	"github.com/sirupsen/logrus"
)

// Renderer composites detections over a base image into a new file.
type Renderer interface {
	Render(ctx context.Context, basePath string, detections []model.Detection, overrides map[string]string) (string, error)
}

// Files removes files and reads image dimensions.
type Files interface {
	Remove(path string) error
	ImageSize(path string) (width, height int, err error)
}

// Detector runs the inference model over a source image.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]model.Detection, error)
}

// Notifier is told about every committed render.
type Notifier interface {
	Publish(event dto.RenderEvent)
}

// Snapshot is a prediction together with its labels.
type Snapshot struct {
	Prediction model.Prediction
	Labels     []model.Label
}

// Manager applies label transitions to stored predictions. Work on one
// prediction is serialized; different predictions proceed in parallel.
type Manager struct {
	store    repository.Store
	renderer Renderer
	files    Files
	detector Detector
	palette  *palette.Palette
	notifier Notifier
	locks    *keyedMutex
	viewport Viewport
	logger   *logger.Logger
}

// NewManager wires the lifecycle manager. notifier may be nil.
func NewManager(config *config.Config, store repository.Store, renderer Renderer, files Files,
	detector Detector, pal *palette.Palette, notifier Notifier, logger *logger.Logger) *Manager {
	return &Manager{
		store:    store,
		renderer: renderer,
		files:    files,
		detector: detector,
		palette:  pal,
		notifier: notifier,
		locks:    newKeyedMutex(),
		viewport: Viewport{Width: config.ReferenceWidth, Height: config.ReferenceHeight},
		logger:   logger,
	}
}

// lockPrediction serializes work on a prediction and loads it.
func (m *Manager) lockPrediction(id string) (*model.Prediction, func(), error) {
	unlock := m.locks.Lock(id)
	prediction, err := m.loadPrediction(id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return prediction, unlock, nil
}

// lockLabel resolves the label's prediction, serializes on it and reloads
// the label under the lock.
func (m *Manager) lockLabel(labelID string) (*model.Label, func(), error) {
	label, err := m.loadLabel(labelID)
	if err != nil {
		return nil, nil, err
	}

	unlock := m.locks.Lock(label.PredictionID)
	label, err = m.loadLabel(labelID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return label, unlock, nil
}

func (m *Manager) loadPrediction(id string) (*model.Prediction, error) {
	prediction, err := m.store.Predictions().GetByID(id)
	if err != nil {
		return nil, err
	}
	if prediction == nil {
		return nil, fmt.Errorf("prediction %s: %w", id, model.ErrNotFound)
	}
	return prediction, nil
}

func (m *Manager) loadLabel(id string) (*model.Label, error) {
	label, err := m.store.Labels().GetByID(id)
	if err != nil {
		return nil, err
	}
	if label == nil {
		return nil, fmt.Errorf("label %s: %w", id, model.ErrNotFound)
	}
	return label, nil
}

// colorOverrides maps every label name to its stored color so renames and
// manual colors survive later renders.
func colorOverrides(labels []model.Label) map[string]string {
	overrides := make(map[string]string, len(labels))
	for _, l := range labels {
		if l.ColorHex != "" {
			overrides[l.Name] = l.ColorHex
		}
	}
	return overrides
}

// commit persists a transition whose image is already rendered to newPath.
// fn writes the transition's own rows; the prediction row is written after
// it. On failure the new file is removed, on success the old one.
func (m *Manager) commit(prediction *model.Prediction, newPath, op string, fn func(repository.Store) error) error {
	oldPath := prediction.RenderedImage
	prediction.RenderedImage = newPath
	prediction.IsAnnotated = true

	err := m.store.Atomic(func(tx repository.Store) error {
		if fn != nil {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return tx.Predictions().Update(prediction)
	})
	if err != nil {
		prediction.RenderedImage = oldPath
		if rmErr := m.files.Remove(newPath); rmErr != nil {
			m.logger.Warning("Failed to remove uncommitted render %s: %v", newPath, rmErr)
		}
		return fmt.Errorf("failed to commit %s: %w", op, err)
	}

	if oldPath != "" && oldPath != newPath {
		if err := m.files.Remove(oldPath); err != nil {
			m.logger.Warning("Failed to remove stale render %s: %v", oldPath, err)
		}
	}

	m.logger.WithFields(logrus.Fields{
		"prediction": prediction.ID,
		"operation":  op,
		"detections": len(prediction.Detections),
		"image":      newPath,
	}).Info("Committed render")

	m.publish(prediction, op)
	return nil
}

func (m *Manager) publish(prediction *model.Prediction, op string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Publish(dto.RenderEvent{
		PredictionID:  prediction.ID,
		Operation:     op,
		RenderedImage: prediction.RenderedImage,
		Detections:    len(prediction.Detections),
		Timestamp:     time.Now(),
	})
}

// render wraps renderer errors with the operation name.
func (m *Manager) render(ctx context.Context, prediction *model.Prediction, detections []model.Detection, labels []model.Label, op string) (string, error) {
	path, err := m.renderer.Render(ctx, prediction.SourceImage, detections, colorOverrides(labels))
	if err != nil {
		m.logger.Error("Render for %s on prediction %s failed: %v", op, prediction.ID, err)
		return "", fmt.Errorf("failed to render %s: %w", op, err)
	}
	return path, nil
}
