package models

import (
	"time"

	"github.com/lib/pq"
)

// TimeSlot is a fixed daily period; break slots never host lessons.
type TimeSlot struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
	IsBreak   bool   `db:"is_break" json:"is_break"`
	Order     int    `db:"sort_order" json:"order"`
}

// Timing is the weekly template a timetable is generated against.
// WorkingDays holds day indices where 0 is Monday.
type Timing struct {
	ID            string         `db:"id" json:"id"`
	AcademicYear  string         `db:"academic_year" json:"academic_year"`
	PeriodsPerDay int            `db:"periods_per_day" json:"periods_per_day"`
	WorkingDays   pq.Int64Array  `db:"working_days" json:"working_days"`
	TimeSlotIDs   pq.StringArray `db:"time_slot_ids" json:"time_slot_ids"`
	IsActive      bool           `db:"is_active" json:"is_active"`
	TimeSlots     []TimeSlot     `db:"-" json:"time_slots"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Days returns the working days as plain ints.
func (t Timing) Days() []int {
	days := make([]int, 0, len(t.WorkingDays))
	for _, d := range t.WorkingDays {
		days = append(days, int(d))
	}
	return days
}
