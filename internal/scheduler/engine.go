// Package scheduler builds conflict-free weekly timetables from in-memory
// snapshots of classes, subjects, teachers, classrooms and a timing template.
package scheduler

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

var (
	// ErrNoWorkingDays is returned when the timing has no usable day index.
	ErrNoWorkingDays = errors.New("timing has no working days")
	// ErrNoTeachingSlots is returned when every time slot is a break.
	ErrNoTeachingSlots = errors.New("timing has no teaching time slots")
)

// Options tunes a generation run.
type Options struct {
	// RequireRoomStrict skips a (teacher, slot) candidate when no compatible room is
	// free; when false the lesson is placed without a classroom.
	RequireRoomStrict bool
	Seed              int64
	Logger            *zap.Logger
}

// Request is the in-memory snapshot a run works on.
type Request struct {
	Classes     []models.ClassGroup
	Subjects    []models.Subject
	Teachers    []models.Teacher
	WorkingDays []int
	TimeSlots   []models.TimeSlot
	Classrooms  []models.Classroom
	Batches     []models.Batch
}

// Shortfall reports a requirement that ended with fewer lessons than required.
type Shortfall struct {
	ClassID   string  `json:"class_id"`
	BatchID   *string `json:"batch_id,omitempty"`
	SubjectID string  `json:"subject_id"`
	Required  int     `json:"required"`
	Scheduled int     `json:"scheduled"`
	Reason    string  `json:"reason"`
}

// Summary aggregates requirement outcomes.
type Summary struct {
	Requirements  int `json:"requirements"`
	Satisfied     int `json:"satisfied"`
	Exhausted     int `json:"exhausted"`
	LessonsPlaced int `json:"lessons_placed"`
}

// Result is the outcome of a run. Lessons carry no ids; persistence assigns them.
type Result struct {
	Lessons    []models.Lesson `json:"lessons"`
	Shortfalls []Shortfall     `json:"shortfalls"`
	Summary    Summary         `json:"summary"`
}

// Engine is the placement loop. It is not safe for concurrent use; build one per run.
type Engine struct {
	opts     Options
	logger   *zap.Logger
	selector *Selector
}

// NewEngine constructs an engine with the provided options.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{opts: opts, logger: logger, selector: NewSelector(opts.Seed)}
}

// Generate places every (group, subject) requirement best-effort. Only an unusable
// timing or a cancelled context produce an error; shortfalls are reported in the result.
func (e *Engine) Generate(ctx context.Context, req Request) (*Result, error) {
	days := NormalizeDays(req.WorkingDays)
	if len(days) == 0 {
		return nil, ErrNoWorkingDays
	}
	slots := orderedTeachingSlots(req.TimeSlots)
	if len(slots) == 0 {
		return nil, ErrNoTeachingSlots
	}

	work := buildWorklist(req)
	book := newLedger()

	for {
		r, ok := work.pop()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.state == StateSatisfied {
			continue
		}
		if len(r.teachers) == 0 {
			r.reason = ReasonNoEligibleTeacher
			r.finish()
			continue
		}
		e.satisfy(r, days, slots, req.Classrooms, book)
		r.finish()
	}

	result := &Result{Lessons: book.lessons}
	if result.Lessons == nil {
		result.Lessons = []models.Lesson{}
	}
	result.Shortfalls = []Shortfall{}
	for i := range work.items {
		r := &work.items[i]
		result.Summary.Requirements++
		if r.state == StateSatisfied {
			result.Summary.Satisfied++
			continue
		}
		result.Summary.Exhausted++
		shortfall := Shortfall{
			ClassID:   r.classID,
			BatchID:   r.batchID,
			SubjectID: r.subject.ID,
			Required:  r.required,
			Scheduled: r.scheduled,
			Reason:    r.reason,
		}
		result.Shortfalls = append(result.Shortfalls, shortfall)
		e.logShortfall(shortfall)
	}
	result.Summary.LessonsPlaced = len(result.Lessons)

	e.logger.Info("timetable generation finished",
		zap.Int("requirements", result.Summary.Requirements),
		zap.Int("satisfied", result.Summary.Satisfied),
		zap.Int("exhausted", result.Summary.Exhausted),
		zap.Int("lessons", result.Summary.LessonsPlaced),
	)
	return result, nil
}

func (e *Engine) satisfy(r *requirement, days []int, slots []models.TimeSlot, classrooms []models.Classroom, book *ledger) {
	dailyCap := r.subject.DailyCap()
	queue := newDayQueue(e.selector.Days(days))
	for r.scheduled < r.required && !queue.empty() {
		day := queue.pop()
		if book.subjectLoad(r.group(), r.subject.ID, day) >= dailyCap {
			queue.requeue(day)
			continue
		}
		lesson, ok := e.placeOnDay(r, day, slots, classrooms, book)
		if !ok {
			continue
		}
		book.add(lesson)
		r.accept()
		if book.subjectLoad(r.group(), r.subject.ID, day) < dailyCap {
			queue.push(day)
		}
	}
}

func (e *Engine) placeOnDay(r *requirement, day int, slots []models.TimeSlot, classrooms []models.Classroom, book *ledger) (models.Lesson, bool) {
	slotOrder := e.selector.Slots(slots)
	teacherOrder := e.selector.Teachers(r.teachers)
	for _, slot := range slotOrder {
		base := Candidate{Day: day, TimeSlotID: slot.ID, ClassID: r.classID, BatchID: r.batchID}
		if book.conflicts(base).Class {
			continue
		}
		for _, teacher := range teacherOrder {
			candidate := base
			candidate.TeacherID = teacher.ID
			if book.conflicts(candidate).Teacher {
				continue
			}
			if teacher.UnavailableAt(day, slot.ID) {
				continue
			}
			if teacher.MaxHoursPerDay > 0 && book.teacherLoad(teacher.ID, day) >= teacher.MaxHoursPerDay {
				continue
			}
			room := FindClassroom(r.subject, day, slot.ID, book.atSlot(day, slot.ID), classrooms)
			if room == nil && e.opts.RequireRoomStrict {
				continue
			}
			lesson := models.Lesson{
				Day:        day,
				TimeSlotID: slot.ID,
				ClassID:    r.classID,
				SubjectID:  r.subject.ID,
				TeacherID:  teacher.ID,
				BatchID:    r.batchID,
			}
			if room != nil {
				roomID := room.ID
				lesson.ClassroomID = &roomID
			}
			return lesson, true
		}
	}
	return models.Lesson{}, false
}

func (e *Engine) logShortfall(s Shortfall) {
	fields := []zap.Field{
		zap.String("class_id", s.ClassID),
		zap.String("subject_id", s.SubjectID),
		zap.Int("required", s.Required),
		zap.Int("scheduled", s.Scheduled),
		zap.String("reason", s.Reason),
	}
	if s.BatchID != nil {
		fields = append(fields, zap.String("batch_id", *s.BatchID))
	}
	if s.Reason == ReasonNoEligibleTeacher {
		e.logger.Warn("no eligible teacher for subject", fields...)
		return
	}
	e.logger.Warn("could not schedule all periods for subject", fields...)
}

// buildWorklist lays out class-wide requirements first, then one lab pass per batch.
// Lab subjects of a class that has batches are only scheduled per batch.
func buildWorklist(req Request) *worklist {
	batchesByClass := make(map[string][]models.Batch)
	for _, batch := range req.Batches {
		batchesByClass[batch.ClassID] = append(batchesByClass[batch.ClassID], batch)
	}

	work := &worklist{}
	for _, class := range req.Classes {
		batched := len(batchesByClass[class.ID]) > 0
		for _, subject := range req.Subjects {
			if !subject.TaughtTo(class.ID) || (subject.IsLab && batched) {
				continue
			}
			work.push(requirement{
				classID:  class.ID,
				subject:  subject,
				teachers: EligibleTeachers(subject.ID, req.Teachers),
				required: subject.PeriodsPerWeek,
			})
		}
	}

	for _, class := range req.Classes {
		for _, batch := range batchesByClass[class.ID] {
			batchID := batch.ID
			for _, subject := range req.Subjects {
				if !subject.IsLab || !subject.TaughtTo(class.ID) {
					continue
				}
				work.push(requirement{
					classID:  class.ID,
					batchID:  &batchID,
					subject:  subject,
					teachers: EligibleTeachers(subject.ID, req.Teachers),
					required: subject.PeriodsPerWeek,
				})
			}
		}
	}
	return work
}

// NormalizeDays keeps unique day indices in 0..6, sorted.
func NormalizeDays(days []int) []int {
	seen := make(map[int]struct{}, len(days))
	result := make([]int, 0, len(days))
	for _, day := range days {
		if day < 0 || day > 6 {
			continue
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		result = append(result, day)
	}
	sort.Ints(result)
	return result
}

func orderedTeachingSlots(slots []models.TimeSlot) []models.TimeSlot {
	teaching := TeachingSlots(slots)
	sort.SliceStable(teaching, func(i, j int) bool {
		return teaching[i].Order < teaching[j].Order
	})
	return teaching
}
