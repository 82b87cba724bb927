package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

const generationJobType = "timetable.generate"

type classGroupLister interface {
	List(ctx context.Context, yearID string) ([]models.ClassGroup, error)
}

type subjectLister interface {
	List(ctx context.Context, yearID string) ([]models.Subject, error)
}

type teacherLister interface {
	List(ctx context.Context) ([]models.Teacher, error)
}

type classroomLister interface {
	List(ctx context.Context) ([]models.Classroom, error)
}

type batchLister interface {
	List(ctx context.Context, classIDs []string) ([]models.Batch, error)
}

type timingReader interface {
	FindByID(ctx context.Context, id string) (*models.Timing, error)
	FindActive(ctx context.Context) (*models.Timing, error)
}

type timetableWriter interface {
	CreateWithLessons(ctx context.Context, timetable *models.Timetable, lessons []models.Lesson, activate bool) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
	Pending() int
}

// GenerationSources bundles the reference data readers a run snapshots.
type GenerationSources struct {
	Classes    classGroupLister
	Subjects   subjectLister
	Teachers   teacherLister
	Classrooms classroomLister
	Batches    batchLister
	Timings    timingReader
}

// TimetableGeneratorConfig governs generator behaviour.
type TimetableGeneratorConfig struct {
	RequireRoomStrict bool
	Timeout           time.Duration
	Seed              int64
	JobTTL            time.Duration
}

// TimetableGeneratorService snapshots reference data, runs the scheduler and persists the result.
type TimetableGeneratorService struct {
	sources    GenerationSources
	timetables timetableWriter
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        TimetableGeneratorConfig
	jobs       *jobStore
	queue      jobEnqueuer
}

// NewTimetableGeneratorService wires generator dependencies.
func NewTimetableGeneratorService(
	sources GenerationSources,
	timetables timetableWriter,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableGeneratorConfig,
) *TimetableGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	return &TimetableGeneratorService{
		sources:    sources,
		timetables: timetables,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		jobs:       newJobStore(cfg.JobTTL),
	}
}

// AttachQueue enables async generation through the given queue.
func (s *TimetableGeneratorService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Generate runs one generation. Dry runs return the lessons without persisting them.
func (s *TimetableGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}

	timing, snapshot, err := s.snapshot(ctx, req)
	if err != nil {
		return nil, err
	}

	opts := scheduler.Options{
		RequireRoomStrict: s.cfg.RequireRoomStrict,
		Seed:              s.cfg.Seed,
		Logger:            s.logger.With(zap.String("timing_id", timing.ID)),
	}
	if req.RequireRoomStrict != nil {
		opts.RequireRoomStrict = *req.RequireRoomStrict
	}
	if req.Seed != 0 {
		opts.Seed = req.Seed
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result, err := scheduler.NewEngine(opts).Generate(runCtx, snapshot)
	duration := time.Since(start)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			s.metrics.ObserveGeneration("timeout", duration, 0, nil)
			return nil, appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, fmt.Sprintf("timetable generation exceeded %s", s.cfg.Timeout))
		case errors.Is(err, context.Canceled):
			s.metrics.ObserveGeneration("canceled", duration, 0, nil)
			return nil, appErrors.Wrap(err, appErrors.ErrCanceled.Code, appErrors.ErrCanceled.Status, "timetable generation canceled")
		case errors.Is(err, scheduler.ErrNoWorkingDays), errors.Is(err, scheduler.ErrNoTeachingSlots):
			s.metrics.ObserveGeneration("error", duration, 0, nil)
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, err.Error())
		default:
			s.metrics.ObserveGeneration("error", duration, 0, nil)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable generation failed")
		}
	}

	reasons := make([]string, 0, len(result.Shortfalls))
	for _, shortfall := range result.Shortfalls {
		reasons = append(reasons, shortfall.Reason)
	}
	s.metrics.ObserveGeneration("ok", duration, len(result.Lessons), reasons)

	resp := &dto.GenerateTimetableResponse{
		Lessons:    result.Lessons,
		Shortfalls: result.Shortfalls,
		Summary:    result.Summary,
		DryRun:     req.DryRun,
		DurationMs: duration.Milliseconds(),
	}
	if req.DryRun {
		return resp, nil
	}

	timetable := &models.Timetable{
		Name:         req.Name,
		AcademicYear: req.AcademicYear,
		TimingID:     timing.ID,
	}
	if req.YearID != "" {
		yearID := req.YearID
		timetable.YearID = &yearID
	}
	if err := s.timetables.CreateWithLessons(ctx, timetable, result.Lessons, req.Activate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable")
	}
	if timetable.IsActive {
		s.cache.InvalidateTimetables(ctx)
	}

	s.logger.Info("timetable generated",
		zap.String("timetable_id", timetable.ID),
		zap.Int("lessons", len(result.Lessons)),
		zap.Int("shortfalls", len(result.Shortfalls)),
		zap.Duration("duration", duration),
	)
	resp.Timetable = timetable
	return resp, nil
}

// snapshot loads every input of a run in one pass and refuses runs that cannot place anything.
func (s *TimetableGeneratorService) snapshot(ctx context.Context, req dto.GenerateTimetableRequest) (*models.Timing, scheduler.Request, error) {
	var snapshot scheduler.Request

	timing, err := s.loadTiming(ctx, req.TimingID)
	if err != nil {
		return nil, snapshot, err
	}

	classes, err := s.sources.Classes.List(ctx, req.YearID)
	if err != nil {
		return nil, snapshot, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}
	subjects, err := s.sources.Subjects.List(ctx, req.YearID)
	if err != nil {
		return nil, snapshot, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	teachers, err := s.sources.Teachers.List(ctx)
	if err != nil {
		return nil, snapshot, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	classrooms, err := s.sources.Classrooms.List(ctx)
	if err != nil {
		return nil, snapshot, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}

	switch {
	case len(classes) == 0:
		return nil, snapshot, appErrors.Clone(appErrors.ErrPreconditionFailed, "no classes defined")
	case len(subjects) == 0:
		return nil, snapshot, appErrors.Clone(appErrors.ErrPreconditionFailed, "no subjects defined")
	case len(teachers) == 0:
		return nil, snapshot, appErrors.Clone(appErrors.ErrPreconditionFailed, "no teachers defined")
	case len(classrooms) == 0:
		return nil, snapshot, appErrors.Clone(appErrors.ErrPreconditionFailed, "no classrooms defined")
	case len(scheduler.NormalizeDays(timing.Days())) == 0:
		return nil, snapshot, appErrors.Clone(appErrors.ErrPreconditionFailed, "timing has no working days")
	case len(scheduler.TeachingSlots(timing.TimeSlots)) == 0:
		return nil, snapshot, appErrors.Clone(appErrors.ErrPreconditionFailed, "timing has no teaching time slots")
	}

	classIDs := make([]string, 0, len(classes))
	for _, class := range classes {
		classIDs = append(classIDs, class.ID)
	}
	var batches []models.Batch
	if s.sources.Batches != nil {
		batches, err = s.sources.Batches.List(ctx, classIDs)
		if err != nil {
			return nil, snapshot, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batches")
		}
	}

	snapshot = scheduler.Request{
		Classes:     classes,
		Subjects:    subjects,
		Teachers:    teachers,
		WorkingDays: timing.Days(),
		TimeSlots:   timing.TimeSlots,
		Classrooms:  classrooms,
		Batches:     batches,
	}
	return timing, snapshot, nil
}

func (s *TimetableGeneratorService) loadTiming(ctx context.Context, id string) (*models.Timing, error) {
	if id != "" {
		timing, err := s.sources.Timings.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "timing not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timing")
		}
		return timing, nil
	}
	timing, err := s.sources.Timings.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active timing configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active timing")
	}
	return timing, nil
}

// Enqueue validates the request and schedules it on the async queue.
func (s *TimetableGeneratorService) Enqueue(ctx context.Context, req dto.GenerateTimetableRequest, requestedBy string) (*dto.GenerationJob, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "generation queue unavailable")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}

	now := time.Now().UTC()
	job := dto.GenerationJob{
		ID:          uuid.NewString(),
		Status:      dto.JobQueued,
		Request:     req,
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.jobs.Save(job)

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: generationJobType, Payload: req}); err != nil {
		s.jobs.Delete(job.ID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation")
	}
	s.metrics.SetPendingJobs(s.queue.Pending())
	s.logger.Info("timetable generation queued", zap.String("job_id", job.ID), zap.String("requested_by", requestedBy))
	return &job, nil
}

// GetJob returns the latest state of an async generation.
func (s *TimetableGeneratorService) GetJob(ctx context.Context, id string) (*dto.GenerationJob, error) {
	job, ok := s.jobs.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found or expired")
	}
	return &job, nil
}

// HandleJob is the queue handler. Only internal failures are returned so the queue retries
// them; a failure after ctx is done is final.
func (s *TimetableGeneratorService) HandleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.GenerateTimetableRequest)
	if !ok {
		s.jobs.Update(job.ID, func(j *dto.GenerationJob) {
			j.Status = dto.JobFailed
			j.Error = "unsupported job payload"
		})
		return nil
	}
	if s.queue != nil {
		s.metrics.SetPendingJobs(s.queue.Pending())
	}

	s.jobs.Update(job.ID, func(j *dto.GenerationJob) { j.Status = dto.JobRunning })

	resp, err := s.Generate(ctx, req)
	if err != nil {
		appErr := appErrors.FromError(err)
		s.jobs.Update(job.ID, func(j *dto.GenerationJob) {
			j.Status = dto.JobFailed
			j.Error = appErr.Message
		})
		s.logger.Warn("timetable generation job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		if appErr.Code == appErrors.ErrInternal.Code && ctx.Err() == nil {
			return err
		}
		return nil
	}

	s.jobs.Update(job.ID, func(j *dto.GenerationJob) {
		j.Status = dto.JobSucceeded
		j.Result = resp
		j.Error = ""
	})
	return nil
}
