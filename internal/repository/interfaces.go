package repository

import "annotator/internal/model"

// PredictionRepository defines the interface for prediction data operations.
type PredictionRepository interface {
	// Create operations
	Insert(p *model.Prediction) error

	// Read operations
	GetByID(id string) (*model.Prediction, error)
	GetAll() ([]model.Prediction, error)

	// Update operations
	Update(p *model.Prediction) error

	// Delete operations
	Delete(id string) error
}

// LabelRepository defines the interface for label data operations.
type LabelRepository interface {
	// Create operations
	Insert(l *model.Label) error

	// Read operations
	GetByID(id string) (*model.Label, error)
	GetByName(predictionID, name string) (*model.Label, error)
	GetByPredictionID(predictionID string) ([]model.Label, error)

	// Update operations
	Update(l *model.Label) error

	// Delete operations
	DeleteByPredictionID(predictionID string) error
}

// DeletedLabelRepository defines the interface for exclusion journal entries.
type DeletedLabelRepository interface {
	// Create operations
	Insert(d *model.DeletedLabel) error

	// Read operations
	GetByLabelID(labelID string) (*model.DeletedLabel, error)
	CountByPredictionID(predictionID string) (int, error)

	// Update operations
	Update(d *model.DeletedLabel) error

	// Delete operations
	DeleteByLabelID(labelID string) error
}

// Store groups the repositories a label transition touches.
type Store interface {
	Predictions() PredictionRepository
	Labels() LabelRepository
	DeletedLabels() DeletedLabelRepository

	// Atomic runs fn with repositories bound to one transaction. Nothing fn
	// wrote is kept when it returns an error.
	Atomic(fn func(Store) error) error
}
