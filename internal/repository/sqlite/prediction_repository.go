package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"annotator/internal/model"
)

// PredictionRepository implements repository.PredictionRepository for SQLite.
type PredictionRepository struct {
	scope scope
}

// Insert adds a new prediction record. CreatedAt and UpdatedAt are set when zero.
func (r *PredictionRepository) Insert(p *model.Prediction) error {
	defer r.scope.write()()

	detections, err := encodeDetections(p.Detections)
	if err != nil {
		return err
	}

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	_, err = r.scope.q().Exec(`
		INSERT INTO predictions (id, source_image, rendered_image, detections, is_annotated, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.SourceImage, p.RenderedImage, detections, p.IsAnnotated, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// GetByID retrieves a prediction by its ID.
func (r *PredictionRepository) GetByID(id string) (*model.Prediction, error) {
	defer r.scope.read()()

	row := r.scope.q().QueryRow(`
		SELECT id, source_image, rendered_image, detections, is_annotated, notes, created_at, updated_at
		FROM predictions WHERE id = ?
	`, id)

	p, err := scanPrediction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// GetAll retrieves every prediction in insertion order.
func (r *PredictionRepository) GetAll() ([]model.Prediction, error) {
	defer r.scope.read()()

	rows, err := r.scope.q().Query(`
		SELECT id, source_image, rendered_image, detections, is_annotated, notes, created_at, updated_at
		FROM predictions ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []model.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, *p)
	}
	return predictions, rows.Err()
}

// Update writes every mutable field of the prediction and bumps UpdatedAt.
func (r *PredictionRepository) Update(p *model.Prediction) error {
	defer r.scope.write()()

	detections, err := encodeDetections(p.Detections)
	if err != nil {
		return err
	}
	p.UpdatedAt = time.Now()

	result, err := r.scope.q().Exec(`
		UPDATE predictions
		SET rendered_image = ?, detections = ?, is_annotated = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, p.RenderedImage, detections, p.IsAnnotated, p.Notes, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update prediction: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update prediction %s: %w", p.ID, model.ErrNotFound)
	}
	return nil
}

// Delete removes a prediction; labels and journal entries cascade.
func (r *PredictionRepository) Delete(id string) error {
	defer r.scope.write()()

	if _, err := r.scope.q().Exec(`DELETE FROM predictions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete prediction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrediction(row rowScanner) (*model.Prediction, error) {
	var p model.Prediction
	var detections string
	if err := row.Scan(&p.ID, &p.SourceImage, &p.RenderedImage, &detections, &p.IsAnnotated, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	list, err := decodeDetections(detections)
	if err != nil {
		return nil, err
	}
	p.Detections = list
	return &p, nil
}

func encodeDetections(detections []model.Detection) (string, error) {
	if detections == nil {
		detections = []model.Detection{}
	}
	data, err := json.Marshal(detections)
	if err != nil {
		return "", fmt.Errorf("failed to encode detections: %w", err)
	}
	return string(data), nil
}

func decodeDetections(data string) ([]model.Detection, error) {
	detections := []model.Detection{}
	if data == "" {
		return detections, nil
	}
	if err := json.Unmarshal([]byte(data), &detections); err != nil {
		return nil, fmt.Errorf("failed to decode detections: %w", err)
	}
	return detections, nil
}
