package models

import "time"

// Lesson is one scheduled occurrence of (class, subject, teacher, room, day, slot).
type Lesson struct {
	ID          string    `db:"id" json:"id"`
	TimetableID string    `db:"timetable_id" json:"timetable_id"`
	Day         int       `db:"day" json:"day"`
	TimeSlotID  string    `db:"time_slot_id" json:"time_slot_id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	ClassroomID *string   `db:"classroom_id" json:"classroom_id,omitempty"`
	BatchID     *string   `db:"batch_id" json:"batch_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// LessonConflict describes an existing lesson that blocks a mutation.
type LessonConflict struct {
	LessonID    string  `json:"lesson_id"`
	Day         int     `json:"day"`
	TimeSlotID  string  `json:"time_slot_id"`
	ClassID     string  `json:"class_id"`
	TeacherID   string  `json:"teacher_id"`
	ClassroomID *string `json:"classroom_id,omitempty"`
	Dimension   string  `json:"dimension"`
}

// LessonConflictError is returned when a lesson mutation would double-book a slot.
type LessonConflictError struct {
	Type      string           `json:"type"`
	Message   string           `json:"message"`
	Conflicts []LessonConflict `json:"conflicts,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *LessonConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
