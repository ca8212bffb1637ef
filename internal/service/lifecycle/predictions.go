package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"annotator/internal/model"
	"annotator/internal/repository"

	"github.com/google/uuid"
)

// CreatePrediction runs inference over an uploaded image, stores the
// prediction with one active label per class and renders it.
func (m *Manager) CreatePrediction(ctx context.Context, sourcePath string) (*Snapshot, error) {
	if _, _, err := m.files.ImageSize(sourcePath); err != nil {
		return nil, err
	}

	detections, err := m.detector.Detect(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	prediction := &model.Prediction{
		ID:          uuid.NewString(),
		SourceImage: sourcePath,
		Detections:  detections,
	}
	labels := m.labelsFor(prediction.ID, detections)

	newPath, err := m.render(ctx, prediction, detections, labels, "create")
	if err != nil {
		return nil, err
	}
	prediction.RenderedImage = newPath
	prediction.IsAnnotated = true

	err = m.store.Atomic(func(tx repository.Store) error {
		if err := tx.Predictions().Insert(prediction); err != nil {
			return err
		}
		for i := range labels {
			if err := tx.Labels().Insert(&labels[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if rmErr := m.files.Remove(newPath); rmErr != nil {
			m.logger.Warning("Failed to remove uncommitted render %s: %v", newPath, rmErr)
		}
		return nil, fmt.Errorf("failed to store prediction: %w", err)
	}

	m.logger.Info("Created prediction %s with %d detections in %d classes", prediction.ID, len(detections), len(labels))
	m.publish(prediction, "create")

	return m.snapshot(prediction.ID)
}

// GetPrediction returns a prediction with its labels.
func (m *Manager) GetPrediction(ctx context.Context, id string) (*Snapshot, error) {
	return m.snapshot(id)
}

// ListPredictions returns every stored prediction in creation order.
func (m *Manager) ListPredictions(ctx context.Context) ([]model.Prediction, error) {
	return m.store.Predictions().GetAll()
}

// Reset re-runs inference on the source image and replaces the live list,
// every label and every journal entry. The prediction id is kept.
func (m *Manager) Reset(ctx context.Context, id string) (*Snapshot, error) {
	prediction, unlock, err := m.lockPrediction(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	detections, err := m.detector.Detect(ctx, prediction.SourceImage)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	labels := m.labelsFor(prediction.ID, detections)

	newPath, err := m.render(ctx, prediction, detections, labels, "reset")
	if err != nil {
		return nil, err
	}

	prediction.Detections = detections
	err = m.commit(prediction, newPath, "reset", func(tx repository.Store) error {
		if err := tx.Labels().DeleteByPredictionID(prediction.ID); err != nil {
			return err
		}
		for i := range labels {
			if err := tx.Labels().Insert(&labels[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return m.snapshot(prediction.ID)
}

// AddNotes replaces the clinician notes of a prediction.
func (m *Manager) AddNotes(ctx context.Context, id, notes string) (*model.Prediction, error) {
	if utf8.RuneCountInString(notes) > model.MaxNotesLength {
		return nil, fmt.Errorf("notes exceed %d characters: %w", model.MaxNotesLength, model.ErrInvalidInput)
	}

	prediction, unlock, err := m.lockPrediction(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prediction.Notes = notes
	if err := m.store.Predictions().Update(prediction); err != nil {
		return nil, err
	}
	return prediction, nil
}

// Delete removes a prediction, its labels and journal, and both image files.
func (m *Manager) Delete(ctx context.Context, id string) error {
	prediction, unlock, err := m.lockPrediction(id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := m.store.Predictions().Delete(prediction.ID); err != nil {
		return err
	}

	for _, path := range []string{prediction.RenderedImage, prediction.SourceImage} {
		if err := m.files.Remove(path); err != nil {
			m.logger.Warning("Failed to remove %s: %v", path, err)
		}
	}

	m.logger.Info("Deleted prediction %s", prediction.ID)
	return nil
}

// Findings formats the included labels as one line each.
func (m *Manager) Findings(ctx context.Context, id string) (string, error) {
	if _, err := m.loadPrediction(id); err != nil {
		return "", err
	}
	labels, err := m.store.Labels().GetByPredictionID(id)
	if err != nil {
		return "", err
	}

	var lines []string
	for _, l := range labels {
		if l.Include {
			lines = append(lines, fmt.Sprintf("%s: %.1f%% confidence", l.Name, l.Percentage))
		}
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("no included findings for prediction %s: %w", id, model.ErrNotFound)
	}
	return strings.Join(lines, "\n"), nil
}

// Rerender draws the current live list again into a new file.
func (m *Manager) Rerender(ctx context.Context, id string) (string, error) {
	prediction, unlock, err := m.lockPrediction(id)
	if err != nil {
		return "", err
	}
	defer unlock()

	labels, err := m.store.Labels().GetByPredictionID(prediction.ID)
	if err != nil {
		return "", err
	}

	newPath, err := m.render(ctx, prediction, prediction.Detections, labels, "rerender")
	if err != nil {
		return "", err
	}
	if err := m.commit(prediction, newPath, "rerender", nil); err != nil {
		return "", err
	}
	return newPath, nil
}

// RerenderAll re-renders every stored prediction and returns how many
// succeeded. Failures do not stop the run and are returned joined.
func (m *Manager) RerenderAll(ctx context.Context) (int, error) {
	predictions, err := m.store.Predictions().GetAll()
	if err != nil {
		return 0, err
	}

	var errs []error
	done := 0
	for _, p := range predictions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := m.Rerender(ctx, p.ID); err != nil {
			m.logger.Error("Failed to re-render prediction %s: %v", p.ID, err)
			errs = append(errs, fmt.Errorf("prediction %s: %w", p.ID, err))
			continue
		}
		done++
	}

	m.logger.Info("Re-rendered %d of %d predictions", done, len(predictions))
	return done, errors.Join(errs...)
}

// Verify checks the at-rest consistency of a prediction: every excluded
// label holds exactly one journal entry, no active label holds one, no live
// detection belongs to an excluded class and, with an empty journal, every
// live detection is covered by a label.
func (m *Manager) Verify(ctx context.Context, id string) error {
	prediction, err := m.loadPrediction(id)
	if err != nil {
		return err
	}
	labels, err := m.store.Labels().GetByPredictionID(id)
	if err != nil {
		return err
	}

	counts := model.CountByClass(prediction.Detections)
	covered := 0
	journaled := 0
	for _, l := range labels {
		entry, err := m.store.DeletedLabels().GetByLabelID(l.ID)
		if err != nil {
			return err
		}
		switch l.State() {
		case model.LabelActive:
			if entry != nil {
				return fmt.Errorf("active label %q has a journal entry: %w", l.Name, model.ErrInvalidState)
			}
			covered += counts[l.Name]
		case model.LabelExcluded:
			if entry == nil {
				return fmt.Errorf("excluded label %q has no journal entry: %w", l.Name, model.ErrInvalidState)
			}
			if counts[l.Name] > 0 {
				return fmt.Errorf("excluded label %q still has %d live detections: %w", l.Name, counts[l.Name], model.ErrInvalidState)
			}
			journaled++
		}
	}

	if journaled == 0 && covered != len(prediction.Detections) {
		return fmt.Errorf("labels cover %d of %d detections: %w", covered, len(prediction.Detections), model.ErrInvalidState)
	}
	return nil
}

func (m *Manager) snapshot(id string) (*Snapshot, error) {
	prediction, err := m.loadPrediction(id)
	if err != nil {
		return nil, err
	}
	labels, err := m.store.Labels().GetByPredictionID(id)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Prediction: *prediction, Labels: labels}, nil
}

// labelsFor builds one active label per class in first-appearance order.
func (m *Manager) labelsFor(predictionID string, detections []model.Detection) []model.Label {
	shares := model.AreaPercentages(detections)
	labels := make([]model.Label, 0, len(shares))
	for _, s := range shares {
		labels = append(labels, model.Label{
			ID:           uuid.NewString(),
			PredictionID: predictionID,
			Name:         s.Class,
			Percentage:   s.Percentage,
			Include:      true,
			ColorHex:     m.palette.HexFor(s.Class, nil),
		})
	}
	return labels
}
