package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const classGroupColumns = `id, name, year_id, section, student_count, created_at, updated_at`

// ClassGroupRepository reads class groups.
type ClassGroupRepository struct {
	db *sqlx.DB
}

// NewClassGroupRepository instantiates a class group repository.
func NewClassGroupRepository(db *sqlx.DB) *ClassGroupRepository {
	return &ClassGroupRepository{db: db}
}

// List returns class groups, optionally restricted to an academic year.
func (r *ClassGroupRepository) List(ctx context.Context, yearID string) ([]models.ClassGroup, error) {
	query := fmt.Sprintf("SELECT %s FROM class_groups", classGroupColumns)
	var args []interface{}
	if yearID != "" {
		query += " WHERE year_id = $1"
		args = append(args, yearID)
	}
	query += " ORDER BY name ASC, id ASC"

	var classes []models.ClassGroup
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("list class groups: %w", err)
	}
	return classes, nil
}

// FindByID loads a class group by identifier.
func (r *ClassGroupRepository) FindByID(ctx context.Context, id string) (*models.ClassGroup, error) {
	query := fmt.Sprintf("SELECT %s FROM class_groups WHERE id = $1", classGroupColumns)
	var class models.ClassGroup
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}
