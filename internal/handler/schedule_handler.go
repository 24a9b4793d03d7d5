package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studygroup-api/internal/dto"
	"github.com/noah-isme/studygroup-api/internal/middleware"
	"github.com/noah-isme/studygroup-api/internal/models"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/response"
)

type scheduleService interface {
	Limits() models.ScheduleLimits
	ListWeek(ctx context.Context, session *models.Session, week int) (*models.WeekSchedule, bool, error)
	ListAll(ctx context.Context, session *models.Session) (*models.FullSchedule, error)
	AddEvent(ctx context.Context, session *models.Session, req dto.CreateEventRequest) (*models.ScheduleEvent, error)
	DeleteEvent(ctx context.Context, session *models.Session, eventID int64) error
	ExportWeek(ctx context.Context, session *models.Session, week int, format string) (*dto.ScheduleExport, error)
}

// ScheduleHandler manages schedule endpoints.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// List godoc
// @Summary List week schedule
// @Description Events of one week of the caller's group with per-week counts and limits
// @Tags Schedule
// @Produce json
// @Param week query int false "Week number (1 or 2)" default(1)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedule [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	week, ok := intQuery(c, "week")
	if !ok {
		return
	}

	schedule, hit, err := h.service.ListWeek(c.Request.Context(), session, week)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, schedule, nil, middleware.ExtractMeta(c))
}

// ListAll godoc
// @Summary List both weeks
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule/all [get]
func (h *ScheduleHandler) ListAll(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	schedule, err := h.service.ListAll(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Options godoc
// @Summary Schedule form options
// @Description Allowed days, standard time slots, event types and capacity limits
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule/options [get]
func (h *ScheduleHandler) Options(c *gin.Context) {
	limits := h.service.Limits()
	response.JSON(c, http.StatusOK, gin.H{
		"days":       models.Weekdays,
		"timeSlots":  models.TimeSlots,
		"types":      models.EventTypes,
		"maxPerDay":  limits.MaxPerDay,
		"maxPerWeek": limits.MaxPerWeek,
	}, nil)
}

// Create godoc
// @Summary Add schedule event
// @Description Group admin only. Rejected with SLOT_OCCUPIED, DAY_LIMIT, WEEK_LIMIT or TITLE_REQUIRED.
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule event payload"))
		return
	}
	event, err := h.service.AddEvent(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Delete godoc
// @Summary Delete schedule event
// @Description Group admin only. Notes attached to the event are detached.
// @Tags Schedule
// @Param id path int true "Event ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedule/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteEvent(c.Request.Context(), session, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export week schedule
// @Tags Schedule
// @Produce octet-stream
// @Param week query int false "Week number (1 or 2)" default(1)
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /schedule/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	week, ok := intQuery(c, "week")
	if !ok {
		return
	}
	file, err := h.service.ExportWeek(c.Request.Context(), session, week, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file.FileName, file.ContentType, file.Data)
}
