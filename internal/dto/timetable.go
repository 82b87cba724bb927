package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

// GenerateTimetableRequest drives one generation run. An empty timingId uses the active timing.
type GenerateTimetableRequest struct {
	Name              string `json:"name" validate:"required,max=120"`
	AcademicYear      string `json:"academicYear" validate:"required,max=20"`
	YearID            string `json:"yearId" validate:"omitempty,max=64"`
	TimingID          string `json:"timingId" validate:"omitempty,max=64"`
	Seed              int64  `json:"seed"`
	RequireRoomStrict *bool  `json:"requireRoomStrict"`
	DryRun            bool   `json:"dryRun"`
	Activate          bool   `json:"activate"`
}

// GenerateTimetableResponse carries the persisted (or previewed) timetable and any shortfalls.
type GenerateTimetableResponse struct {
	Timetable  *models.Timetable     `json:"timetable,omitempty"`
	Lessons    []models.Lesson       `json:"lessons"`
	Shortfalls []scheduler.Shortfall `json:"shortfalls"`
	Summary    scheduler.Summary     `json:"summary"`
	DryRun     bool                  `json:"dryRun"`
	DurationMs int64                 `json:"durationMs"`
}

// GenerationJobStatus enumerates async generation states.
type GenerationJobStatus string

const (
	JobQueued    GenerationJobStatus = "QUEUED"
	JobRunning   GenerationJobStatus = "RUNNING"
	JobSucceeded GenerationJobStatus = "SUCCEEDED"
	JobFailed    GenerationJobStatus = "FAILED"
)

// GenerationJob reports the state of an async generation.
type GenerationJob struct {
	ID          string                     `json:"id"`
	Status      GenerationJobStatus        `json:"status"`
	Request     GenerateTimetableRequest   `json:"request"`
	Result      *GenerateTimetableResponse `json:"result,omitempty"`
	Error       string                     `json:"error,omitempty"`
	RequestedBy string                     `json:"requestedBy,omitempty"`
	CreatedAt   time.Time                  `json:"createdAt"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
}

// LessonRequest places or moves one lesson in a timetable.
type LessonRequest struct {
	Day         int     `json:"day" validate:"min=0,max=6"`
	TimeSlotID  string  `json:"timeSlotId" validate:"required"`
	ClassID     string  `json:"classId" validate:"required"`
	SubjectID   string  `json:"subjectId" validate:"required"`
	TeacherID   string  `json:"teacherId" validate:"required"`
	ClassroomID *string `json:"classroomId" validate:"omitempty,min=1"`
	BatchID     *string `json:"batchId" validate:"omitempty,min=1"`
}

// TimetableQuery filters the timetable list endpoint.
type TimetableQuery struct {
	AcademicYear string `form:"academicYear"`
	Active       *bool  `form:"active"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}
