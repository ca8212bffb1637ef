package sqlite

import (
	"fmt"

	"annotator/internal/repository"
)

// Store implements repository.Store for SQLite.
type Store struct {
	scope         scope
	predictions   *PredictionRepository
	labels        *LabelRepository
	deletedLabels *DeletedLabelRepository
}

// NewStore creates a store whose repositories use the shared connection.
func NewStore(db *DB) *Store {
	return newStore(scope{db: db})
}

func newStore(s scope) *Store {
	return &Store{
		scope:         s,
		predictions:   &PredictionRepository{scope: s},
		labels:        &LabelRepository{scope: s},
		deletedLabels: &DeletedLabelRepository{scope: s},
	}
}

func (s *Store) Predictions() repository.PredictionRepository {
	return s.predictions
}

func (s *Store) Labels() repository.LabelRepository {
	return s.labels
}

func (s *Store) DeletedLabels() repository.DeletedLabelRepository {
	return s.deletedLabels
}

// Atomic runs fn inside a single transaction holding the write lock.
// Nested calls reuse the outer transaction.
func (s *Store) Atomic(fn func(repository.Store) error) error {
	if s.scope.tx != nil {
		return fn(s)
	}

	s.scope.db.Lock()
	defer s.scope.db.Unlock()

	tx, err := s.scope.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newStore(scope{db: s.scope.db, tx: tx})); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
