package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const timingColumns = `id, academic_year, periods_per_day, working_days, time_slot_ids, is_active, created_at`

// TimingRepository reads weekly timing templates together with their time slots.
type TimingRepository struct {
	db *sqlx.DB
}

// NewTimingRepository instantiates a timing repository.
func NewTimingRepository(db *sqlx.DB) *TimingRepository {
	return &TimingRepository{db: db}
}

// FindByID loads a timing and its slots ordered by position.
func (r *TimingRepository) FindByID(ctx context.Context, id string) (*models.Timing, error) {
	query := fmt.Sprintf("SELECT %s FROM timings WHERE id = $1", timingColumns)
	var timing models.Timing
	if err := r.db.GetContext(ctx, &timing, query, id); err != nil {
		return nil, err
	}
	if err := r.loadSlots(ctx, &timing); err != nil {
		return nil, err
	}
	return &timing, nil
}

// FindActive returns the timing currently in use.
func (r *TimingRepository) FindActive(ctx context.Context) (*models.Timing, error) {
	query := fmt.Sprintf("SELECT %s FROM timings WHERE is_active = TRUE ORDER BY created_at DESC LIMIT 1", timingColumns)
	var timing models.Timing
	if err := r.db.GetContext(ctx, &timing, query); err != nil {
		return nil, err
	}
	if err := r.loadSlots(ctx, &timing); err != nil {
		return nil, err
	}
	return &timing, nil
}

func (r *TimingRepository) loadSlots(ctx context.Context, timing *models.Timing) error {
	timing.TimeSlots = []models.TimeSlot{}
	if len(timing.TimeSlotIDs) == 0 {
		return nil
	}
	const query = `SELECT id, name, start_time, end_time, is_break, sort_order FROM time_slots WHERE id = ANY($1) ORDER BY sort_order ASC`
	if err := r.db.SelectContext(ctx, &timing.TimeSlots, query, timing.TimeSlotIDs); err != nil {
		return fmt.Errorf("load time slots: %w", err)
	}
	return nil
}
