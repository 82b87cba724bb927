package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject is a course requiring a fixed number of weekly periods.
type Subject struct {
	ID                    string         `db:"id" json:"id"`
	Name                  string         `db:"name" json:"name"`
	Code                  string         `db:"code" json:"code"`
	YearID                *string        `db:"year_id" json:"year_id,omitempty"`
	ClassIDs              pq.StringArray `db:"class_ids" json:"class_ids"`
	IsLab                 bool           `db:"is_lab" json:"is_lab"`
	CreditHours           int            `db:"credit_hours" json:"credit_hours"`
	PeriodsPerWeek        int            `db:"periods_per_week" json:"periods_per_week"`
	PeriodsPerDay         int            `db:"periods_per_day" json:"periods_per_day"`
	PreferredClassroomIDs pq.StringArray `db:"preferred_classroom_ids" json:"preferred_classroom_ids"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

// TaughtTo reports whether the subject is taught to the class.
func (s Subject) TaughtTo(classID string) bool {
	for _, id := range s.ClassIDs {
		if id == classID {
			return true
		}
	}
	return false
}

// DailyCap returns the maximum occurrences per class per day; unset means one.
func (s Subject) DailyCap() int {
	if s.PeriodsPerDay <= 0 {
		return 1
	}
	return s.PeriodsPerDay
}
