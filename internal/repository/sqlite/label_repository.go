package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"annotator/internal/model"
)

// LabelRepository implements repository.LabelRepository for SQLite.
type LabelRepository struct {
	scope scope
}

// Insert adds a new label record.
func (r *LabelRepository) Insert(l *model.Label) error {
	defer r.scope.write()()

	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = now
	}

	_, err := r.scope.q().Exec(`
		INSERT INTO labels (id, prediction_id, name, percentage, include, color_hex, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.PredictionID, l.Name, l.Percentage, l.Include, l.ColorHex, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert label: %w", err)
	}
	return nil
}

// GetByID retrieves a label by its ID.
func (r *LabelRepository) GetByID(id string) (*model.Label, error) {
	defer r.scope.read()()

	l, err := scanLabel(r.scope.q().QueryRow(`
		SELECT id, prediction_id, name, percentage, include, color_hex, created_at, updated_at
		FROM labels WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get label: %w", err)
	}
	return l, nil
}

// GetByName retrieves the label for a class name within a prediction.
func (r *LabelRepository) GetByName(predictionID, name string) (*model.Label, error) {
	defer r.scope.read()()

	l, err := scanLabel(r.scope.q().QueryRow(`
		SELECT id, prediction_id, name, percentage, include, color_hex, created_at, updated_at
		FROM labels WHERE prediction_id = ? AND name = ?
	`, predictionID, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get label: %w", err)
	}
	return l, nil
}

// GetByPredictionID retrieves all labels of a prediction in insertion order.
func (r *LabelRepository) GetByPredictionID(predictionID string) ([]model.Label, error) {
	defer r.scope.read()()

	rows, err := r.scope.q().Query(`
		SELECT id, prediction_id, name, percentage, include, color_hex, created_at, updated_at
		FROM labels WHERE prediction_id = ? ORDER BY rowid
	`, predictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	labels := []model.Label{}
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, *l)
	}
	return labels, rows.Err()
}

// Update writes name, percentage, include and color, and bumps UpdatedAt.
func (r *LabelRepository) Update(l *model.Label) error {
	defer r.scope.write()()

	l.UpdatedAt = time.Now()
	result, err := r.scope.q().Exec(`
		UPDATE labels SET name = ?, percentage = ?, include = ?, color_hex = ?, updated_at = ?
		WHERE id = ?
	`, l.Name, l.Percentage, l.Include, l.ColorHex, l.UpdatedAt, l.ID)
	if err != nil {
		return fmt.Errorf("failed to update label: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update label %s: %w", l.ID, model.ErrNotFound)
	}
	return nil
}

// DeleteByPredictionID removes all labels of a prediction.
func (r *LabelRepository) DeleteByPredictionID(predictionID string) error {
	defer r.scope.write()()

	if _, err := r.scope.q().Exec(`DELETE FROM labels WHERE prediction_id = ?`, predictionID); err != nil {
		return fmt.Errorf("failed to delete labels: %w", err)
	}
	return nil
}

func scanLabel(row rowScanner) (*model.Label, error) {
	var l model.Label
	if err := row.Scan(&l.ID, &l.PredictionID, &l.Name, &l.Percentage, &l.Include, &l.ColorHex, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}
