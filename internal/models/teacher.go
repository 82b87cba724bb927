package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// UnavailableSlot marks a (day, time slot) a teacher cannot teach.
type UnavailableSlot struct {
	Day        int    `json:"day"`
	TimeSlotID string `json:"time_slot_id"`
}

// UnavailableSlots is stored as a JSON array column.
type UnavailableSlots []UnavailableSlot

// Scan implements sql.Scanner.
func (u *UnavailableSlots) Scan(src interface{}) error {
	if src == nil {
		*u = nil
		return nil
	}
	var raw types.JSONText
	if err := raw.Scan(src); err != nil {
		return err
	}
	switch string(raw) {
	case "", "{}", "null":
		*u = nil
		return nil
	}
	var slots []UnavailableSlot
	if err := raw.Unmarshal(&slots); err != nil {
		return err
	}
	*u = slots
	return nil
}

// Value implements driver.Valuer.
func (u UnavailableSlots) Value() (driver.Value, error) {
	if u == nil {
		return types.JSONText(`[]`).Value()
	}
	payload, err := json.Marshal([]UnavailableSlot(u))
	if err != nil {
		return nil, err
	}
	return types.JSONText(payload).Value()
}

// Teacher is a staff member qualified to teach a subset of subjects.
type Teacher struct {
	ID               string           `db:"id" json:"id"`
	Name             string           `db:"name" json:"name"`
	Email            string           `db:"email" json:"email"`
	SubjectIDs       pq.StringArray   `db:"subject_ids" json:"subject_ids"`
	Department       string           `db:"department" json:"department"`
	MaxHoursPerDay   int              `db:"max_hours_per_day" json:"max_hours_per_day"`
	UnavailableDays  pq.Int64Array    `db:"unavailable_days" json:"unavailable_days"`
	UnavailableSlots UnavailableSlots `db:"unavailable_slots" json:"unavailable_slots"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// Teaches reports whether the teacher is qualified for the subject.
func (t Teacher) Teaches(subjectID string) bool {
	for _, id := range t.SubjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}

// UnavailableAt reports whole-day or slot-specific unavailability.
func (t Teacher) UnavailableAt(day int, timeSlotID string) bool {
	for _, d := range t.UnavailableDays {
		if int(d) == day {
			return true
		}
	}
	for _, slot := range t.UnavailableSlots {
		if slot.Day == day && slot.TimeSlotID == timeSlotID {
			return true
		}
	}
	return false
}
