package models

import "time"

// Timetable is the collection of lessons produced by one generation run.
type Timetable struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	YearID       *string   `db:"year_id" json:"year_id,omitempty"`
	TimingID     string    `db:"timing_id" json:"timing_id"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	IsLocked     bool      `db:"is_locked" json:"is_locked"`
	GeneratedAt  time.Time `db:"generated_at" json:"generated_at"`
	ModifiedAt   time.Time `db:"modified_at" json:"modified_at"`
}

// TimetableDetail bundles a timetable with its lessons.
type TimetableDetail struct {
	Timetable
	Lessons []Lesson `json:"lessons"`
}

// TimetableFilter describes query params for listing timetables.
type TimetableFilter struct {
	AcademicYear string
	Active       *bool
	Page         int
	PageSize     int
}
