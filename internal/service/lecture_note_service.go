package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/studygroup-api/internal/dto"
	"github.com/noah-isme/studygroup-api/internal/models"
	"github.com/noah-isme/studygroup-api/internal/repository"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/storage"
)

type lectureNoteRepository interface {
	FindByID(ctx context.Context, id int64) (*models.LectureNote, error)
	List(ctx context.Context, filter models.NoteFilter) ([]models.LectureNote, int, error)
	CountAttached(ctx context.Context, eventID int64) (int, error)
	Create(ctx context.Context, note *models.LectureNote, attach *repository.AttachParams) error
	Attach(ctx context.Context, noteID int64, attach repository.AttachParams) error
	Detach(ctx context.Context, noteID int64) error
	UpdateTitle(ctx context.Context, noteID int64, title string) (bool, error)
	Delete(ctx context.Context, noteID int64) (bool, error)
	SetAudioURL(ctx context.Context, noteID int64, url string) (bool, error)
	AppendImageURL(ctx context.Context, noteID int64, url string) (bool, error)
}

type scheduleEventLookup interface {
	FindByID(ctx context.Context, id int64) (*models.ScheduleEvent, error)
}

// LectureNoteConfig holds note limits and media constraints.
type LectureNoteConfig struct {
	MaxPerEvent  int
	MaxMediaSize int64
}

// LectureNoteService manages lecture notes and their attachment to events.
type LectureNoteService struct {
	repo      lectureNoteRepository
	events    scheduleEventLookup
	media     storage.ObjectStore
	renderer  DocumentRenderer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    LectureNoteConfig
}

// NewLectureNoteService constructs a LectureNoteService.
func NewLectureNoteService(repo lectureNoteRepository, events scheduleEventLookup, media storage.ObjectStore, renderer DocumentRenderer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg LectureNoteConfig) *LectureNoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxPerEvent <= 0 {
		cfg.MaxPerEvent = 2
	}
	if cfg.MaxMediaSize <= 0 {
		cfg.MaxMediaSize = 25 << 20
	}
	return &LectureNoteService{
		repo:      repo,
		events:    events,
		media:     media,
		renderer:  renderer,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
	}
}

// ListNotes returns notes visible to the caller under the given scope.
func (s *LectureNoteService) ListNotes(ctx context.Context, session *models.Session, filter models.NoteFilter) ([]models.LectureNote, *models.Pagination, error) {
	switch filter.Scope {
	case "":
		filter.Scope = models.NoteScopeAll
	case models.NoteScopeAll, models.NoteScopePersonal, models.NoteScopeGroup:
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "scope must be all, personal or group")
	}
	if filter.Week != nil && *filter.Week != 1 && *filter.Week != 2 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "week must be 1 or 2")
	}
	filter.Phone = session.Phone
	filter.GroupID = session.GroupID

	notes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	return notes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetNote returns a note owned by the caller or shared with the caller's group.
func (s *LectureNoteService) GetNote(ctx context.Context, session *models.Session, noteID int64) (*models.LectureNote, error) {
	note, err := s.find(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.CreatedBy == session.Phone {
		return note, nil
	}
	if note.GroupID != nil && session.InGroup(*note.GroupID) {
		return note, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "note is not shared with you")
}

// CreateNote stores a new note, attaching it to an event when requested.
func (s *LectureNoteService) CreateNote(ctx context.Context, session *models.Session, req dto.CreateNoteRequest) (*models.LectureNote, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrTitleRequired, "")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}

	note := &models.LectureNote{
		Title:           title,
		Content:         req.Content,
		AudioTranscript: req.AudioTranscript,
		SlidesText:      req.SlidesText,
		FileName:        req.FileName,
		CreatedBy:       session.Phone,
	}
	if !req.Personal && session.HasGroup() {
		groupID := *session.GroupID
		note.GroupID = &groupID
	}

	var attach *repository.AttachParams
	if req.ScheduleEventID != nil {
		params, err := s.attachParams(session, *req.ScheduleEventID)
		if err != nil {
			return nil, err
		}
		attach = &params
	}

	if err := s.repo.Create(ctx, note, attach); err != nil {
		return nil, s.mapAttachError(err, "failed to create note")
	}
	s.logger.Info("lecture note created", zap.Int64("note_id", note.ID), zap.Bool("attached", note.Attached()))
	return s.find(ctx, note.ID)
}

// UpdateTitle renames a note owned by the caller.
func (s *LectureNoteService) UpdateTitle(ctx context.Context, session *models.Session, noteID int64, req dto.UpdateNoteTitleRequest) (*models.LectureNote, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrTitleRequired, "")
	}
	if _, err := s.owned(ctx, session, noteID); err != nil {
		return nil, err
	}
	ok, err := s.repo.UpdateTitle(ctx, noteID, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update note title")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
	}
	return s.find(ctx, noteID)
}

// DeleteNote removes a note owned by the caller.
func (s *LectureNoteService) DeleteNote(ctx context.Context, session *models.Session, noteID int64) error {
	if _, err := s.owned(ctx, session, noteID); err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, noteID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete note")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "note not found")
	}
	return nil
}

// AttachToEvent attaches the note to an event of the caller's group, or
// detaches it when eventID is nil.
func (s *LectureNoteService) AttachToEvent(ctx context.Context, session *models.Session, noteID int64, eventID *int64) (*models.LectureNote, error) {
	if _, err := s.owned(ctx, session, noteID); err != nil {
		return nil, err
	}

	if eventID == nil {
		if err := s.repo.Detach(ctx, noteID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to detach note")
		}
		return s.find(ctx, noteID)
	}

	params, err := s.attachParams(session, *eventID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Attach(ctx, noteID, params); err != nil {
		return nil, s.mapAttachError(err, "failed to attach note")
	}
	return s.find(ctx, noteID)
}

// CheckLimit reports how many notes an event of the caller's group holds.
func (s *LectureNoteService) CheckLimit(ctx context.Context, session *models.Session, eventID int64) (*models.AttachLimit, error) {
	groupID, err := requireGroup(session)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule event not found")
	}
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule event")
	}
	if event.GroupID != groupID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule event not found")
	}

	count, err := s.repo.CountAttached(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attached notes")
	}
	return &models.AttachLimit{
		EventID:   eventID,
		Count:     count,
		Max:       s.config.MaxPerEvent,
		CanAttach: count < s.config.MaxPerEvent,
	}, nil
}

func (s *LectureNoteService) attachParams(session *models.Session, eventID int64) (repository.AttachParams, error) {
	if !session.HasGroup() {
		return repository.AttachParams{}, appErrors.Clone(appErrors.ErrNotFound, "schedule event not found")
	}
	return repository.AttachParams{EventID: eventID, GroupID: *session.GroupID, MaxNotes: s.config.MaxPerEvent}, nil
}

func (s *LectureNoteService) mapAttachError(err error, message string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "schedule event not found")
	case errors.Is(err, repository.ErrAttachLimit):
		return rejectRule(s.metrics, appErrors.ErrAttachLimit)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *LectureNoteService) find(ctx context.Context, noteID int64) (*models.LectureNote, error) {
	note, err := s.repo.FindByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load note")
	}
	return note, nil
}

func (s *LectureNoteService) owned(ctx context.Context, session *models.Session, noteID int64) (*models.LectureNote, error) {
	note, err := s.find(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.CreatedBy != session.Phone {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can change this note")
	}
	return note, nil
}
