package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studygroup-api/internal/dto"
	"github.com/noah-isme/studygroup-api/internal/models"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/response"
)

type lectureNoteService interface {
	ListNotes(ctx context.Context, session *models.Session, filter models.NoteFilter) ([]models.LectureNote, *models.Pagination, error)
	GetNote(ctx context.Context, session *models.Session, noteID int64) (*models.LectureNote, error)
	CreateNote(ctx context.Context, session *models.Session, req dto.CreateNoteRequest) (*models.LectureNote, error)
	UpdateTitle(ctx context.Context, session *models.Session, noteID int64, req dto.UpdateNoteTitleRequest) (*models.LectureNote, error)
	DeleteNote(ctx context.Context, session *models.Session, noteID int64) error
	AttachToEvent(ctx context.Context, session *models.Session, noteID int64, eventID *int64) (*models.LectureNote, error)
	CheckLimit(ctx context.Context, session *models.Session, eventID int64) (*models.AttachLimit, error)
	UploadMedia(ctx context.Context, session *models.Session, noteID int64, upload dto.MediaUpload, body io.Reader) (*models.LectureNote, error)
	ExportNote(ctx context.Context, session *models.Session, noteID int64) (*dto.NoteExport, error)
}

// NoteHandler exposes lecture note endpoints.
type NoteHandler struct {
	service lectureNoteService
}

// NewNoteHandler constructs the handler.
func NewNoteHandler(svc lectureNoteService) *NoteHandler {
	return &NoteHandler{service: svc}
}

// List godoc
// @Summary List lecture notes
// @Tags Notes
// @Produce json
// @Param scope query string false "all, personal or group" default(all)
// @Param attached query bool false "Only notes with (true) or without (false) an event"
// @Param eventId query int false "Schedule event"
// @Param week query int false "Week of the attached event"
// @Param page query int false "Page" default(1)
// @Param pageSize query int false "Page size" default(50)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /notes [get]
func (h *NoteHandler) List(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	filter, ok := noteFilterFromQuery(c)
	if !ok {
		return
	}
	notes, pagination, err := h.service.ListNotes(c.Request.Context(), session, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notes, pagination)
}

// Create godoc
// @Summary Create lecture note
// @Description Personal notes are never shared. Otherwise the note belongs to the caller's group.
// @Tags Notes
// @Accept json
// @Produce json
// @Param payload body dto.CreateNoteRequest true "Note payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /notes [post]
func (h *NoteHandler) Create(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var req dto.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}
	note, err := h.service.CreateNote(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, note)
}

// Get godoc
// @Summary Get lecture note
// @Tags Notes
// @Produce json
// @Param id path int true "Note ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notes/{id} [get]
func (h *NoteHandler) Get(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	note, err := h.service.GetNote(c.Request.Context(), session, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, note, nil)
}

// UpdateTitle godoc
// @Summary Rename lecture note
// @Tags Notes
// @Accept json
// @Produce json
// @Param id path int true "Note ID"
// @Param payload body dto.UpdateNoteTitleRequest true "New title"
// @Success 200 {object} response.Envelope
// @Router /notes/{id}/title [patch]
func (h *NoteHandler) UpdateTitle(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateNoteTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid title payload"))
		return
	}
	note, err := h.service.UpdateTitle(c.Request.Context(), session, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, note, nil)
}

// Delete godoc
// @Summary Delete lecture note
// @Tags Notes
// @Param id path int true "Note ID"
// @Success 204
// @Router /notes/{id} [delete]
func (h *NoteHandler) Delete(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteNote(c.Request.Context(), session, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Attach godoc
// @Summary Attach note to schedule event
// @Description A null schedule_event_id detaches the note. An event holds a limited number of notes.
// @Tags Notes
// @Accept json
// @Produce json
// @Param id path int true "Note ID"
// @Param payload body dto.AttachNoteRequest true "Target event"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /notes/{id}/attach [put]
func (h *NoteHandler) Attach(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.AttachNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attach payload"))
		return
	}
	note, err := h.service.AttachToEvent(c.Request.Context(), session, id, req.ScheduleEventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, note, nil)
}

// CheckLimit godoc
// @Summary Check attach capacity of an event
// @Tags Notes
// @Produce json
// @Param eventId query int true "Schedule event"
// @Success 200 {object} response.Envelope
// @Router /notes/check-limit [get]
func (h *NoteHandler) CheckLimit(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	eventID, err := strconv.ParseInt(c.Query("eventId"), 10, 64)
	if err != nil || eventID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "eventId is required"))
		return
	}
	limit, err := h.service.CheckLimit(c.Request.Context(), session, eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, limit, nil)
}

// UploadMedia godoc
// @Summary Upload note audio or image
// @Tags Notes
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Note ID"
// @Param kind formData string true "audio or image"
// @Param file formData file true "Media file"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /notes/{id}/media [post]
func (h *NoteHandler) UploadMedia(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	upload := dto.MediaUpload{
		Kind:        strings.ToLower(strings.TrimSpace(c.PostForm("kind"))),
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
	}
	note, err := h.service.UploadMedia(c.Request.Context(), session, id, upload, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, note, nil)
}

// Export godoc
// @Summary Export note as PDF
// @Tags Notes
// @Produce application/pdf
// @Param id path int true "Note ID"
// @Success 200 {file} file
// @Router /notes/{id}/export [get]
func (h *NoteHandler) Export(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	file, err := h.service.ExportNote(c.Request.Context(), session, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file.FileName, file.ContentType, file.Data)
}

func noteFilterFromQuery(c *gin.Context) (models.NoteFilter, bool) {
	filter := models.NoteFilter{Scope: strings.ToLower(strings.TrimSpace(c.Query("scope")))}

	if raw := c.Query("attached"); raw != "" {
		attached, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "attached must be true or false"))
			return filter, false
		}
		filter.Attached = &attached
	}
	if raw := c.Query("eventId"); raw != "" {
		eventID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid eventId"))
			return filter, false
		}
		filter.EventID = &eventID
	}
	if raw := c.Query("week"); raw != "" {
		week, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid week"))
			return filter, false
		}
		filter.Week = &week
	}

	var ok bool
	if filter.Page, ok = intQuery(c, "page"); !ok {
		return filter, false
	}
	if filter.PageSize, ok = intQuery(c, "pageSize"); !ok {
		return filter, false
	}
	return filter, true
}
