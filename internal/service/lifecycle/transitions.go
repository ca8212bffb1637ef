package lifecycle

import (
	"context"
	"fmt"
	"math"
	"strings"

	"annotator/internal/model"
	"annotator/internal/repository"
	"annotator/internal/service/palette"

	"github.com/google/uuid"
)

// Viewport is the client canvas size manual regions are drawn in.
type Viewport struct {
	Width  int
	Height int
}

// Region is a clinician-drawn finding in viewport coordinates.
type Region struct {
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Text     string
	ColorHex string
}

// Exclude moves a label's detections out of the live list into a journal
// entry and re-renders without them. It returns the new rendered image path.
func (m *Manager) Exclude(ctx context.Context, labelID string) (string, error) {
	label, unlock, err := m.lockLabel(labelID)
	if err != nil {
		return "", err
	}
	defer unlock()

	if !label.Include {
		return "", fmt.Errorf("label %q is already excluded: %w", label.Name, model.ErrInvalidState)
	}

	journal, err := m.store.DeletedLabels().GetByLabelID(label.ID)
	if err != nil {
		return "", err
	}
	if journal != nil {
		return "", fmt.Errorf("label %q already has a journal entry: %w", label.Name, model.ErrInvalidState)
	}

	prediction, err := m.loadPrediction(label.PredictionID)
	if err != nil {
		return "", err
	}
	labels, err := m.store.Labels().GetByPredictionID(prediction.ID)
	if err != nil {
		return "", err
	}

	keep, removed := model.Partition(prediction.Detections, label.Name)

	newPath, err := m.render(ctx, prediction, keep, labels, "exclude")
	if err != nil {
		return "", err
	}

	prediction.Detections = keep
	label.Include = false

	err = m.commit(prediction, newPath, "exclude", func(tx repository.Store) error {
		entry := &model.DeletedLabel{ID: uuid.NewString(), LabelID: label.ID, Detections: removed}
		if err := tx.DeletedLabels().Insert(entry); err != nil {
			return err
		}
		return tx.Labels().Update(label)
	})
	if err != nil {
		return "", err
	}

	m.logger.Info("Excluded label %q (%d detections) from prediction %s", label.Name, len(removed), prediction.ID)
	return newPath, nil
}

// Include restores a label's journaled detections after the current live
// list and re-renders. It returns the new rendered image path.
func (m *Manager) Include(ctx context.Context, labelID string) (string, error) {
	label, unlock, err := m.lockLabel(labelID)
	if err != nil {
		return "", err
	}
	defer unlock()

	if label.Include {
		return "", fmt.Errorf("label %q is already included: %w", label.Name, model.ErrInvalidState)
	}

	journal, err := m.store.DeletedLabels().GetByLabelID(label.ID)
	if err != nil {
		return "", err
	}
	if journal == nil {
		return "", fmt.Errorf("label %q has nothing to restore: %w", label.Name, model.ErrInvalidState)
	}

	prediction, err := m.loadPrediction(label.PredictionID)
	if err != nil {
		return "", err
	}
	labels, err := m.store.Labels().GetByPredictionID(prediction.ID)
	if err != nil {
		return "", err
	}

	merged := append(model.CloneDetections(prediction.Detections), journal.Detections...)

	newPath, err := m.render(ctx, prediction, merged, labels, "include")
	if err != nil {
		return "", err
	}

	prediction.Detections = merged
	label.Include = true

	err = m.commit(prediction, newPath, "include", func(tx repository.Store) error {
		if err := tx.DeletedLabels().DeleteByLabelID(label.ID); err != nil {
			return err
		}
		return tx.Labels().Update(label)
	})
	if err != nil {
		return "", err
	}

	m.logger.Info("Included label %q (%d detections) in prediction %s", label.Name, len(journal.Detections), prediction.ID)
	return newPath, nil
}

// Rename changes a label's class name and color, rewriting every detection
// of the old class, and re-renders. An empty colorHex keeps the current color.
func (m *Manager) Rename(ctx context.Context, labelID, newName, colorHex string) (*model.Label, string, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, "", fmt.Errorf("label name is required: %w", model.ErrInvalidInput)
	}
	if colorHex != "" {
		normalized, err := palette.Normalize(colorHex)
		if err != nil {
			return nil, "", err
		}
		colorHex = normalized
	}

	label, unlock, err := m.lockLabel(labelID)
	if err != nil {
		return nil, "", err
	}
	defer unlock()

	oldName := label.Name
	if colorHex == "" {
		colorHex = label.ColorHex
	}

	if newName != oldName {
		clash, err := m.store.Labels().GetByName(label.PredictionID, newName)
		if err != nil {
			return nil, "", err
		}
		if clash != nil {
			return nil, "", fmt.Errorf("label %q already exists: %w", newName, model.ErrInvalidState)
		}
	}

	prediction, err := m.loadPrediction(label.PredictionID)
	if err != nil {
		return nil, "", err
	}
	labels, err := m.store.Labels().GetByPredictionID(prediction.ID)
	if err != nil {
		return nil, "", err
	}
	journal, err := m.store.DeletedLabels().GetByLabelID(label.ID)
	if err != nil {
		return nil, "", err
	}

	detections := renameClass(prediction.Detections, oldName, newName)
	label.Name = newName
	label.ColorHex = colorHex
	for i := range labels {
		if labels[i].ID == label.ID {
			labels[i] = *label
		}
	}

	newPath, err := m.render(ctx, prediction, detections, labels, "rename")
	if err != nil {
		return nil, "", err
	}

	prediction.Detections = detections
	if journal != nil {
		journal.Detections = renameClass(journal.Detections, oldName, newName)
	}

	err = m.commit(prediction, newPath, "rename", func(tx repository.Store) error {
		if err := tx.Labels().Update(label); err != nil {
			return err
		}
		if journal != nil {
			return tx.DeletedLabels().Update(journal)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	m.logger.Info("Renamed label %q to %q (%s) in prediction %s", oldName, newName, colorHex, prediction.ID)
	return label, newPath, nil
}

// AddManual appends a clinician-drawn region, scaled from viewport to image
// pixels, and re-renders the full live list. A zero viewport uses the
// configured reference size. Adding to a class that already has an active
// label extends that label instead of creating a new one.
func (m *Manager) AddManual(ctx context.Context, predictionID string, region Region, viewport Viewport) (*model.Label, string, error) {
	region.Text = strings.TrimSpace(region.Text)
	if region.Text == "" {
		return nil, "", fmt.Errorf("label text is required: %w", model.ErrInvalidInput)
	}
	if region.Width < 0 || region.Height < 0 {
		return nil, "", fmt.Errorf("region size must not be negative: %w", model.ErrInvalidInput)
	}
	if viewport.Width == 0 && viewport.Height == 0 {
		viewport = m.viewport
	}
	if viewport.Width <= 0 || viewport.Height <= 0 {
		return nil, "", fmt.Errorf("viewport %dx%d: %w", viewport.Width, viewport.Height, model.ErrInvalidInput)
	}

	colorHex := region.ColorHex
	if colorHex == "" {
		colorHex = m.palette.HexFor(region.Text, nil)
	}
	colorHex, err := palette.Normalize(colorHex)
	if err != nil {
		return nil, "", err
	}

	prediction, unlock, err := m.lockPrediction(predictionID)
	if err != nil {
		return nil, "", err
	}
	defer unlock()

	width, height, err := m.files.ImageSize(prediction.SourceImage)
	if err != nil {
		return nil, "", err
	}

	labels, err := m.store.Labels().GetByPredictionID(prediction.ID)
	if err != nil {
		return nil, "", err
	}

	label, err := m.store.Labels().GetByName(prediction.ID, region.Text)
	if err != nil {
		return nil, "", err
	}
	created := label == nil
	if label != nil && !label.Include {
		return nil, "", fmt.Errorf("label %q is excluded: %w", label.Name, model.ErrInvalidState)
	}
	if created {
		label = &model.Label{
			ID:           uuid.NewString(),
			PredictionID: prediction.ID,
			Name:         region.Text,
			Percentage:   0,
			Include:      true,
			ColorHex:     colorHex,
		}
		labels = append(labels, *label)
	}

	detection := ScaleRegion(region, viewport, width, height)
	detections := append(model.CloneDetections(prediction.Detections), detection)

	newPath, err := m.render(ctx, prediction, detections, labels, "add")
	if err != nil {
		return nil, "", err
	}

	prediction.Detections = detections

	err = m.commit(prediction, newPath, "add", func(tx repository.Store) error {
		if created {
			return tx.Labels().Insert(label)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	m.logger.Info("Added manual region %q to prediction %s", label.Name, prediction.ID)
	return label, newPath, nil
}

// ScaleRegion converts a viewport region into an image-space detection.
// Coordinates are truncated to whole pixels after scaling.
func ScaleRegion(region Region, viewport Viewport, imageWidth, imageHeight int) model.Detection {
	sx := float64(imageWidth) / float64(viewport.Width)
	sy := float64(imageHeight) / float64(viewport.Height)

	return model.Detection{
		Class:  region.Text,
		X:      math.Trunc(region.X * sx),
		Y:      math.Trunc(region.Y * sy),
		Width:  math.Trunc(region.Width * sx),
		Height: math.Trunc(region.Height * sy),
	}
}

// renameClass returns a copy of detections with oldName replaced by newName.
func renameClass(detections []model.Detection, oldName, newName string) []model.Detection {
	out := model.CloneDetections(detections)
	for i := range out {
		if out[i].Class == oldName {
			out[i].Class = newName
		}
	}
	return out
}
