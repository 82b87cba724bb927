package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	Enqueue(ctx context.Context, req dto.GenerateTimetableRequest, requestedBy string) (*dto.GenerationJob, error)
	GetJob(ctx context.Context, id string) (*dto.GenerationJob, error)
}

type timetableManager interface {
	List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.TimetableDetail, error)
	GetActive(ctx context.Context) (*models.TimetableDetail, error)
	SetActive(ctx context.Context, id string) error
	SetLocked(ctx context.Context, id string, locked bool) error
	Delete(ctx context.Context, id string) error
	AddLesson(ctx context.Context, timetableID string, req dto.LessonRequest) (*models.Lesson, error)
	UpdateLesson(ctx context.Context, timetableID, lessonID string, req dto.LessonRequest) (*models.Lesson, error)
	RemoveLesson(ctx context.Context, timetableID, lessonID string) error
}

// TimetableHandler exposes timetable generation and editing endpoints.
type TimetableHandler struct {
	generator timetableGenerator
	service   timetableManager
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(generator timetableGenerator, svc timetableManager) *TimetableHandler {
	return &TimetableHandler{generator: generator, service: svc}
}

// Generate godoc
// @Summary Generate a timetable
// @Description Runs the scheduler over the current classes, subjects, teachers and classrooms. With dryRun the lessons are returned without being stored.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param dryRun query bool false "Preview without persisting"
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"shortfalls": len(result.Shortfalls), "dryRun": result.DryRun}
	if result.DryRun {
		response.JSON(c, http.StatusOK, result, nil, meta)
		return
	}
	if result.Timetable != nil {
		c.Header("Location", strings.TrimSuffix(c.Request.URL.Path, "/generate")+"/"+result.Timetable.ID)
	}
	response.JSON(c, http.StatusCreated, result, nil, meta)
}

// GenerateAsync godoc
// @Summary Queue timetable generation
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 202 {object} response.Envelope
// @Router /timetables/generate/async [post]
func (h *TimetableHandler) GenerateAsync(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	job, err := h.generator.Enqueue(c.Request.Context(), req, requesterID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Job godoc
// @Summary Get async generation status
// @Tags Timetables
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/jobs/{jobId} [get]
func (h *TimetableHandler) Job(c *gin.Context) {
	job, err := h.generator.GetJob(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// List godoc
// @Summary List timetables
// @Tags Timetables
// @Produce json
// @Param academicYear query string false "Academic year"
// @Param active query bool false "Only active or inactive timetables"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Active godoc
// @Summary Get the active timetable with lessons
// @Tags Timetables
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/active [get]
func (h *TimetableHandler) Active(c *gin.Context) {
	detail, err := h.service.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Get godoc
// @Summary Get a timetable with lessons
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete a timetable and its lessons
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Failure 423 {object} response.Envelope
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Activate godoc
// @Summary Make a timetable the active one
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id}/activate [post]
func (h *TimetableHandler) Activate(c *gin.Context) {
	if err := h.service.SetActive(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Lock godoc
// @Summary Lock a timetable against edits
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Router /timetables/{id}/lock [post]
func (h *TimetableHandler) Lock(c *gin.Context) {
	h.setLocked(c, true)
}

// Unlock godoc
// @Summary Unlock a timetable
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Router /timetables/{id}/unlock [post]
func (h *TimetableHandler) Unlock(c *gin.Context) {
	h.setLocked(c, false)
}

// AddLesson godoc
// @Summary Add a lesson to a timetable
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.LessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /timetables/{id}/lessons [post]
func (h *TimetableHandler) AddLesson(c *gin.Context) {
	var req dto.LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}
	lesson, err := h.service.AddLesson(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// UpdateLesson godoc
// @Summary Move or reassign a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param lessonId path string true "Lesson ID"
// @Param payload body dto.LessonRequest true "Lesson payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /timetables/{id}/lessons/{lessonId} [put]
func (h *TimetableHandler) UpdateLesson(c *gin.Context) {
	var req dto.LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}
	lesson, err := h.service.UpdateLesson(c.Request.Context(), c.Param("id"), c.Param("lessonId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// RemoveLesson godoc
// @Summary Remove a lesson
// @Tags Lessons
// @Param id path string true "Timetable ID"
// @Param lessonId path string true "Lesson ID"
// @Success 204
// @Failure 423 {object} response.Envelope
// @Router /timetables/{id}/lessons/{lessonId} [delete]
func (h *TimetableHandler) RemoveLesson(c *gin.Context) {
	if err := h.service.RemoveLesson(c.Request.Context(), c.Param("id"), c.Param("lessonId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *TimetableHandler) setLocked(c *gin.Context, locked bool) {
	if err := h.service.SetLocked(c.Request.Context(), c.Param("id"), locked); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// bindGenerateRequest decodes the payload; a dryRun query parameter overrides the body flag.
func bindGenerateRequest(c *gin.Context) (dto.GenerateTimetableRequest, bool) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return req, false
	}
	if raw, ok := c.GetQuery("dryRun"); ok {
		dryRun, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "dryRun must be a boolean"))
			return req, false
		}
		req.DryRun = dryRun
	}
	return req, true
}
