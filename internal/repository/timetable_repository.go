package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
)

const timetableColumns = `id, name, academic_year, year_id, timing_id, is_active, is_locked, generated_at, modified_at`

// activationLockKey is the transaction-scoped advisory lock every activation takes, so
// concurrent activations serialise even when no timetable is active yet.
const activationLockKey int64 = 0x7417e7ab1e

// TimetableRepository persists timetables. Multi-statement writes run in one transaction.
type TimetableRepository struct {
	db      *sqlx.DB
	lessons *LessonRepository
}

// NewTimetableRepository instantiates a timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db, lessons: NewLessonRepository(db)}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns timetables matching the filter, newest first.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	base := "FROM timetables WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY generated_at DESC LIMIT %d OFFSET %d", timetableColumns, base, size, offset)
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetables: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count timetables: %w", err)
	}
	return timetables, total, nil
}

// FindByID loads a timetable by identifier.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE id = $1", timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// FindForUpdate loads a timetable and row-locks it until exec's transaction ends,
// serialising concurrent lesson mutations on the same timetable.
func (r *TimetableRepository) FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE id = $1 FOR UPDATE", timetableColumns)
	var timetable models.Timetable
	if err := sqlx.GetContext(ctx, r.exec(exec), &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// FindActive returns the active timetable.
func (r *TimetableRepository) FindActive(ctx context.Context) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE is_active = TRUE LIMIT 1", timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// CreateWithLessons inserts the timetable and every lesson atomically, assigning ids.
// With activate set the new timetable also becomes the single active one in the same transaction.
func (r *TimetableRepository) CreateWithLessons(ctx context.Context, timetable *models.Timetable, lessons []models.Lesson, activate bool) error {
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if timetable.GeneratedAt.IsZero() {
		timetable.GeneratedAt = now
	}
	timetable.ModifiedAt = now
	timetable.IsActive = false

	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const query = `INSERT INTO timetables (id, name, academic_year, year_id, timing_id, is_active, is_locked, generated_at, modified_at) VALUES (:id, :name, :academic_year, :year_id, :timing_id, :is_active, :is_locked, :generated_at, :modified_at)`
		if _, err := sqlx.NamedExecContext(ctx, tx, query, timetable); err != nil {
			return fmt.Errorf("create timetable: %w", err)
		}
		for i := range lessons {
			lessons[i].TimetableID = timetable.ID
			if err := r.lessons.Create(ctx, tx, &lessons[i]); err != nil {
				return err
			}
		}
		if activate {
			return r.activate(ctx, tx, timetable.ID, now)
		}
		return nil
	})
	if err != nil {
		return err
	}
	timetable.IsActive = activate
	return nil
}

// SetActive activates one timetable and clears every other active flag atomically.
func (r *TimetableRepository) SetActive(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return r.activate(ctx, tx, id, time.Now().UTC())
	})
}

func (r *TimetableRepository) activate(ctx context.Context, tx *sqlx.Tx, id string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, activationLockKey); err != nil {
		return fmt.Errorf("lock timetable activation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE timetables SET is_active = FALSE, modified_at = $1 WHERE is_active = TRUE AND id <> $2`, now, id); err != nil {
		return fmt.Errorf("deactivate other timetables: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE timetables SET is_active = TRUE, modified_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("activate timetable: %w", err)
	}
	return requireAffected(res)
}

// SetLocked toggles the locked flag.
func (r *TimetableRepository) SetLocked(ctx context.Context, id string, locked bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE timetables SET is_locked = $2, modified_at = $3 WHERE id = $1`, id, locked, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set timetable lock: %w", err)
	}
	return requireAffected(res)
}

// Touch bumps the modified timestamp after a lesson edit.
func (r *TimetableRepository) Touch(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `UPDATE timetables SET modified_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch timetable: %w", err)
	}
	return nil
}

// Delete removes the timetable and its lessons. A nil exec runs both deletes in their own transaction.
func (r *TimetableRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if exec != nil {
		return r.delete(ctx, exec, id)
	}
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return r.delete(ctx, tx, id)
	})
}

func (r *TimetableRepository) delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM lessons WHERE timetable_id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable lessons: %w", err)
	}
	res, err := exec.ExecContext(ctx, `DELETE FROM timetables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
