package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// Lesson mutation operations.
const (
	LessonOpAdd    = "add"
	LessonOpUpdate = "update"
	LessonOpRemove = "remove"
)

// Rejection types reported in models.LessonConflictError.
const (
	ConflictSlot               = "SLOT_CONFLICT"
	ConflictTeacherUnavailable = "TEACHER_UNAVAILABLE"
	ConflictUnqualifiedTeacher = "UNQUALIFIED_TEACHER"
	ConflictBreakSlot          = "BREAK_SLOT"
	ConflictInvalidReference   = "INVALID_REFERENCE"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetableStore interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Timetable, error)
	FindActive(ctx context.Context) (*models.Timetable, error)
	SetActive(ctx context.Context, id string) error
	SetLocked(ctx context.Context, id string, locked bool) error
	Touch(ctx context.Context, exec sqlx.ExtContext, id string) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type lessonStore interface {
	ListByTimetable(ctx context.Context, exec sqlx.ExtContext, timetableID string) ([]models.Lesson, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, timetableID, id string) (*models.Lesson, error)
	Create(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error
	Update(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error
	Delete(ctx context.Context, exec sqlx.ExtContext, timetableID, id string) error
}

type classFinder interface {
	FindByID(ctx context.Context, id string) (*models.ClassGroup, error)
}

type subjectFinder interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type teacherFinder interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type classroomFinder interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

type batchFinder interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

type timingFinder interface {
	FindByID(ctx context.Context, id string) (*models.Timing, error)
}

// LessonReferences resolves the entities a manual lesson points at.
type LessonReferences struct {
	Classes    classFinder
	Subjects   subjectFinder
	Teachers   teacherFinder
	Classrooms classroomFinder
	Batches    batchFinder
	Timings    timingFinder
}

// TimetableService serves timetables and applies manual lesson edits.
type TimetableService struct {
	timetables timetableStore
	lessons    lessonStore
	refs       LessonReferences
	tx         txProvider
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTimetableService constructs the timetable service.
func NewTimetableService(
	timetables timetableStore,
	lessons lessonStore,
	refs LessonReferences,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		timetables: timetables,
		lessons:    lessons,
		refs:       refs,
		tx:         tx,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// List returns timetables with pagination metadata.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, *models.Pagination, error) {
	filter := models.TimetableFilter{
		AcademicYear: query.AcademicYear,
		Active:       query.Active,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	items, total, err := s.timetables.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	if items == nil {
		items = []models.Timetable{}
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a timetable with its lessons.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.TimetableDetail, error) {
	var cached models.TimetableDetail
	if s.cache.Get(ctx, timetableKey(id), &cached) {
		return &cached, nil
	}

	timetable, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFoundOr(err, "timetable not found", "failed to load timetable")
	}
	detail, err := s.withLessons(ctx, timetable)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, timetableKey(id), detail, 0)
	return detail, nil
}

// GetActive returns the active timetable with its lessons.
func (s *TimetableService) GetActive(ctx context.Context) (*models.TimetableDetail, error) {
	var cached models.TimetableDetail
	if s.cache.Get(ctx, activeTimetableKey, &cached) {
		return &cached, nil
	}

	timetable, err := s.timetables.FindActive(ctx)
	if err != nil {
		return nil, s.notFoundOr(err, "no active timetable", "failed to load active timetable")
	}
	detail, err := s.withLessons(ctx, timetable)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, activeTimetableKey, detail, 0)
	return detail, nil
}

// SetActive makes the timetable the single active one.
func (s *TimetableService) SetActive(ctx context.Context, id string) error {
	if err := s.timetables.SetActive(ctx, id); err != nil {
		return s.notFoundOr(err, "timetable not found", "failed to activate timetable")
	}
	s.cache.InvalidateTimetables(ctx)
	s.logger.Info("timetable activated", zap.String("timetable_id", id))
	return nil
}

// SetLocked locks or unlocks a timetable against manual edits.
func (s *TimetableService) SetLocked(ctx context.Context, id string, locked bool) error {
	if err := s.timetables.SetLocked(ctx, id, locked); err != nil {
		return s.notFoundOr(err, "timetable not found", "failed to update timetable lock")
	}
	s.cache.InvalidateTimetables(ctx)
	s.logger.Info("timetable lock changed", zap.String("timetable_id", id), zap.Bool("locked", locked))
	return nil
}

// Delete removes a timetable and its lessons. Locked timetables cannot be deleted.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	err := s.withTimetable(ctx, id, func(tx *sqlx.Tx, _ *models.Timetable) error {
		if err := s.timetables.Delete(ctx, tx, id); err != nil {
			return s.notFoundOr(err, "timetable not found", "failed to delete timetable")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateTimetables(ctx)
	s.logger.Info("timetable deleted", zap.String("timetable_id", id))
	return nil
}

// AddLesson places a new lesson after conflict checks.
func (s *TimetableService) AddLesson(ctx context.Context, timetableID string, req dto.LessonRequest) (*models.Lesson, error) {
	var created *models.Lesson
	err := s.mutate(ctx, LessonOpAdd, timetableID, func(tx *sqlx.Tx, timetable *models.Timetable) error {
		lesson, err := s.prepareLesson(ctx, tx, timetable, req, "")
		if err != nil {
			return err
		}
		if err := s.lessons.Create(ctx, tx, lesson); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
		}
		created = lesson
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateLesson moves or reassigns an existing lesson; the lesson itself is ignored by conflict checks.
func (s *TimetableService) UpdateLesson(ctx context.Context, timetableID, lessonID string, req dto.LessonRequest) (*models.Lesson, error) {
	var updated *models.Lesson
	err := s.mutate(ctx, LessonOpUpdate, timetableID, func(tx *sqlx.Tx, timetable *models.Timetable) error {
		existing, err := s.lessons.FindByID(ctx, tx, timetableID, lessonID)
		if err != nil {
			return s.notFoundOr(err, "lesson not found", "failed to load lesson")
		}
		lesson, err := s.prepareLesson(ctx, tx, timetable, req, lessonID)
		if err != nil {
			return err
		}
		lesson.ID = existing.ID
		lesson.CreatedAt = existing.CreatedAt
		if err := s.lessons.Update(ctx, tx, lesson); err != nil {
			return s.notFoundOr(err, "lesson not found", "failed to update lesson")
		}
		updated = lesson
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveLesson deletes a lesson from an unlocked timetable.
func (s *TimetableService) RemoveLesson(ctx context.Context, timetableID, lessonID string) error {
	return s.mutate(ctx, LessonOpRemove, timetableID, func(tx *sqlx.Tx, _ *models.Timetable) error {
		if err := s.lessons.Delete(ctx, tx, timetableID, lessonID); err != nil {
			return s.notFoundOr(err, "lesson not found", "failed to delete lesson")
		}
		return nil
	})
}

// mutate applies a lesson change and bumps the modified timestamp under the timetable row lock.
func (s *TimetableService) mutate(ctx context.Context, op, timetableID string, fn func(tx *sqlx.Tx, timetable *models.Timetable) error) (err error) {
	defer func() {
		s.metrics.ObserveLessonMutation(op, mutationResult(err))
	}()

	err = s.withTimetable(ctx, timetableID, func(tx *sqlx.Tx, timetable *models.Timetable) error {
		if err := fn(tx, timetable); err != nil {
			return err
		}
		if err := s.timetables.Touch(ctx, tx, timetableID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.InvalidateTimetables(ctx)
	s.logger.Info("lesson mutated", zap.String("timetable_id", timetableID), zap.String("operation", op))
	return nil
}

// withTimetable row-locks the timetable, rejects locked timetables before any other
// check and runs fn, all in one transaction.
func (s *TimetableService) withTimetable(ctx context.Context, timetableID string, fn func(tx *sqlx.Tx, timetable *models.Timetable) error) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	timetable, err := s.timetables.FindForUpdate(ctx, tx, timetableID)
	if err != nil {
		return s.notFoundOr(err, "timetable not found", "failed to load timetable")
	}
	if timetable.IsLocked {
		return appErrors.Clone(appErrors.ErrLocked, "timetable is locked")
	}

	if err = fn(tx, timetable); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transaction")
	}
	return nil
}

// prepareLesson validates the payload, its references and the slot against the
// timetable's current lessons, skipping ignoreID.
func (s *TimetableService) prepareLesson(ctx context.Context, tx *sqlx.Tx, timetable *models.Timetable, req dto.LessonRequest, ignoreID string) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	lesson := &models.Lesson{
		TimetableID: timetable.ID,
		Day:         req.Day,
		TimeSlotID:  req.TimeSlotID,
		ClassID:     req.ClassID,
		SubjectID:   req.SubjectID,
		TeacherID:   req.TeacherID,
		ClassroomID: req.ClassroomID,
		BatchID:     req.BatchID,
	}
	if err := s.checkReferences(ctx, timetable, lesson); err != nil {
		return nil, err
	}

	existing, err := s.lessons.ListByTimetable(ctx, tx, timetable.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}
	others := make([]models.Lesson, 0, len(existing))
	for _, l := range existing {
		if l.ID != ignoreID {
			others = append(others, l)
		}
	}

	if conflicts := scheduler.CollectConflicts(scheduler.CandidateFromLesson(*lesson), others); len(conflicts) > 0 {
		detail := &models.LessonConflictError{
			Type:      ConflictSlot,
			Message:   fmt.Sprintf("slot %s on day %d is already taken", lesson.TimeSlotID, lesson.Day),
			Conflicts: conflicts,
		}
		return nil, conflictError(appErrors.ErrConflict, detail)
	}
	return lesson, nil
}

func (s *TimetableService) checkReferences(ctx context.Context, timetable *models.Timetable, lesson *models.Lesson) error {
	timing, err := s.refs.Timings.FindByID(ctx, timetable.TimingID)
	if err != nil {
		return s.notFoundOr(err, "timing not found", "failed to load timing")
	}
	if !containsDay(timing.Days(), lesson.Day) {
		return invalidReference(fmt.Sprintf("day %d is not a working day", lesson.Day))
	}
	slot, ok := findSlot(timing.TimeSlots, lesson.TimeSlotID)
	if !ok {
		return invalidReference("time slot is not part of the timetable's timing")
	}
	if slot.IsBreak {
		return conflictError(appErrors.ErrValidation, &models.LessonConflictError{Type: ConflictBreakSlot, Message: "lessons cannot be placed in a break slot"})
	}

	if _, err := s.refs.Classes.FindByID(ctx, lesson.ClassID); err != nil {
		return s.referenceError(err, "class not found")
	}
	subject, err := s.refs.Subjects.FindByID(ctx, lesson.SubjectID)
	if err != nil {
		return s.referenceError(err, "subject not found")
	}
	if !subject.TaughtTo(lesson.ClassID) {
		return invalidReference("subject is not taught to this class")
	}
	teacher, err := s.refs.Teachers.FindByID(ctx, lesson.TeacherID)
	if err != nil {
		return s.referenceError(err, "teacher not found")
	}
	if !teacher.Teaches(subject.ID) {
		return conflictError(appErrors.ErrValidation, &models.LessonConflictError{Type: ConflictUnqualifiedTeacher, Message: "teacher is not qualified for this subject"})
	}
	if teacher.UnavailableAt(lesson.Day, lesson.TimeSlotID) {
		return conflictError(appErrors.ErrConflict, &models.LessonConflictError{Type: ConflictTeacherUnavailable, Message: "teacher is unavailable at this slot"})
	}

	if lesson.ClassroomID != nil {
		room, err := s.refs.Classrooms.FindByID(ctx, *lesson.ClassroomID)
		if err != nil {
			return s.referenceError(err, "classroom not found")
		}
		if subject.IsLab && !room.IsLab {
			return invalidReference("lab subjects require a lab classroom")
		}
	}
	if lesson.BatchID != nil {
		batch, err := s.refs.Batches.FindByID(ctx, *lesson.BatchID)
		if err != nil {
			return s.referenceError(err, "batch not found")
		}
		if batch.ClassID != lesson.ClassID {
			return invalidReference("batch does not belong to this class")
		}
	}
	return nil
}

func (s *TimetableService) withLessons(ctx context.Context, timetable *models.Timetable) (*models.TimetableDetail, error) {
	lessons, err := s.lessons.ListByTimetable(ctx, nil, timetable.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}
	return &models.TimetableDetail{Timetable: *timetable, Lessons: lessons}, nil
}

func (s *TimetableService) notFoundOr(err error, notFound, internal string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func (s *TimetableService) referenceError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return invalidReference(message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func conflictError(base *appErrors.Error, detail *models.LessonConflictError) error {
	appErr := appErrors.Wrap(detail, base.Code, base.Status, detail.Message)
	return appErrors.WithDetails(appErr, detail)
}

func invalidReference(message string) error {
	return conflictError(appErrors.ErrValidation, &models.LessonConflictError{Type: ConflictInvalidReference, Message: message})
}

func mutationResult(err error) string {
	if err == nil {
		return MutationResultOK
	}
	switch appErrors.FromError(err).Code {
	case appErrors.ErrConflict.Code:
		return MutationResultConflict
	case appErrors.ErrInternal.Code:
		return MutationResultError
	default:
		return MutationResultRejected
	}
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func findSlot(slots []models.TimeSlot, id string) (models.TimeSlot, bool) {
	for _, slot := range slots {
		if slot.ID == id {
			return slot, true
		}
	}
	return models.TimeSlot{}, false
}
