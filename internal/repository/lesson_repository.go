package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const lessonColumns = `id, timetable_id, day, time_slot_id, class_id, subject_id, teacher_id, classroom_id, batch_id, created_at, updated_at`

// LessonRepository manages lessons of a timetable. Every method accepts an
// optional executor so callers can compose it into a transaction.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository instantiates a lesson repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

func (r *LessonRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByTimetable returns the lessons of a timetable ordered by day and slot.
func (r *LessonRepository) ListByTimetable(ctx context.Context, exec sqlx.ExtContext, timetableID string) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE timetable_id = $1 ORDER BY day ASC, time_slot_id ASC, class_id ASC", lessonColumns)
	lessons := []models.Lesson{}
	if err := sqlx.SelectContext(ctx, r.exec(exec), &lessons, query, timetableID); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// FindByID loads a lesson scoped to its timetable.
func (r *LessonRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, timetableID, id string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE timetable_id = $1 AND id = $2", lessonColumns)
	var lesson models.Lesson
	if err := sqlx.GetContext(ctx, r.exec(exec), &lesson, query, timetableID, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// Create inserts a lesson, assigning id and timestamps.
func (r *LessonRepository) Create(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now

	const query = `INSERT INTO lessons (id, timetable_id, day, time_slot_id, class_id, subject_id, teacher_id, classroom_id, batch_id, created_at, updated_at) VALUES (:id, :timetable_id, :day, :time_slot_id, :class_id, :subject_id, :teacher_id, :classroom_id, :batch_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// Update rewrites the placement of a lesson.
func (r *LessonRepository) Update(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET day = :day, time_slot_id = :time_slot_id, class_id = :class_id, subject_id = :subject_id, teacher_id = :teacher_id, classroom_id = :classroom_id, batch_id = :batch_id, updated_at = :updated_at WHERE id = :id AND timetable_id = :timetable_id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, lesson)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a lesson from its timetable.
func (r *LessonRepository) Delete(ctx context.Context, exec sqlx.ExtContext, timetableID, id string) error {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM lessons WHERE timetable_id = $1 AND id = $2`, timetableID, id)
	if err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return requireAffected(res)
}
