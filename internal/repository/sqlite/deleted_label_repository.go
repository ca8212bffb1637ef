package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"annotator/internal/model"
)

// DeletedLabelRepository implements repository.DeletedLabelRepository for SQLite.
type DeletedLabelRepository struct {
	scope scope
}

// Insert stores a journal entry. A label can have at most one.
func (r *DeletedLabelRepository) Insert(d *model.DeletedLabel) error {
	defer r.scope.write()()

	detections, err := encodeDetections(d.Detections)
	if err != nil {
		return err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	_, err = r.scope.q().Exec(`
		INSERT INTO deleted_labels (id, label_id, detections, created_at) VALUES (?, ?, ?, ?)
	`, d.ID, d.LabelID, detections, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert deleted label: %w", err)
	}
	return nil
}

// GetByLabelID retrieves the journal entry of a label.
func (r *DeletedLabelRepository) GetByLabelID(labelID string) (*model.DeletedLabel, error) {
	defer r.scope.read()()

	var d model.DeletedLabel
	var detections string
	err := r.scope.q().QueryRow(`
		SELECT id, label_id, detections, created_at FROM deleted_labels WHERE label_id = ?
	`, labelID).Scan(&d.ID, &d.LabelID, &detections, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deleted label: %w", err)
	}

	if d.Detections, err = decodeDetections(detections); err != nil {
		return nil, err
	}
	return &d, nil
}

// CountByPredictionID counts journal entries belonging to a prediction's labels.
func (r *DeletedLabelRepository) CountByPredictionID(predictionID string) (int, error) {
	defer r.scope.read()()

	var count int
	err := r.scope.q().QueryRow(`
		SELECT COUNT(*) FROM deleted_labels d
		JOIN labels l ON l.id = d.label_id
		WHERE l.prediction_id = ?
	`, predictionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted labels: %w", err)
	}
	return count, nil
}

// Update rewrites the stored detection snapshot.
func (r *DeletedLabelRepository) Update(d *model.DeletedLabel) error {
	defer r.scope.write()()

	detections, err := encodeDetections(d.Detections)
	if err != nil {
		return err
	}
	if _, err := r.scope.q().Exec(`UPDATE deleted_labels SET detections = ? WHERE id = ?`, detections, d.ID); err != nil {
		return fmt.Errorf("failed to update deleted label: %w", err)
	}
	return nil
}

// DeleteByLabelID removes the journal entry of a label.
func (r *DeletedLabelRepository) DeleteByLabelID(labelID string) error {
	defer r.scope.write()()

	if _, err := r.scope.q().Exec(`DELETE FROM deleted_labels WHERE label_id = ?`, labelID); err != nil {
		return fmt.Errorf("failed to delete deleted label: %w", err)
	}
	return nil
}
