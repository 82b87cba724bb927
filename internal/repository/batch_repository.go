package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const batchColumns = `id, class_id, name, student_count, created_at`

// BatchRepository reads lab batches of class groups.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository instantiates a batch repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// List returns the batches of the given classes; an empty list returns every batch.
func (r *BatchRepository) List(ctx context.Context, classIDs []string) ([]models.Batch, error) {
	query := fmt.Sprintf("SELECT %s FROM batches", batchColumns)
	var args []interface{}
	if len(classIDs) > 0 {
		query += " WHERE class_id = ANY($1)"
		args = append(args, pq.Array(classIDs))
	}
	query += " ORDER BY class_id ASC, name ASC"

	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// FindByID loads a batch by identifier.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	query := fmt.Sprintf("SELECT %s FROM batches WHERE id = $1", batchColumns)
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}
