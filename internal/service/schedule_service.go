package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/studygroup-api/internal/dto"
	"github.com/noah-isme/studygroup-api/internal/models"
	"github.com/noah-isme/studygroup-api/internal/repository"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/export"
)

type scheduleRepository interface {
	ListByWeek(ctx context.Context, groupID int64, week int) ([]models.ScheduleEvent, error)
	ListByGroup(ctx context.Context, groupID int64) ([]models.ScheduleEvent, error)
	CountByWeek(ctx context.Context, groupID int64) (map[int]int, error)
	CreateChecked(ctx context.Context, event *models.ScheduleEvent, check func(existing []models.ScheduleEvent) error) error
	Delete(ctx context.Context, groupID, eventID int64) error
}

type scheduleCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// TabularExporter renders a dataset into a downloadable file.
type TabularExporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
	Extension() string
}

// ScheduleConfig holds capacity rules and cache lifetime for schedules.
type ScheduleConfig struct {
	MaxPerDay  int
	MaxPerWeek int
	CacheTTL   time.Duration
}

// ScheduleService manages group timetables.
type ScheduleService struct {
	repo      scheduleRepository
	cache     scheduleCache
	exporters map[string]TabularExporter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    ScheduleConfig
}

// NewScheduleService constructs a ScheduleService. Exporters are keyed by
// their file extension.
func NewScheduleService(repo scheduleRepository, cache scheduleCache, exporters []TabularExporter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ScheduleConfig) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cache == nil {
		cache = (*CacheService)(nil)
	}
	if cfg.MaxPerDay <= 0 {
		cfg.MaxPerDay = 5
	}
	if cfg.MaxPerWeek <= 0 {
		cfg.MaxPerWeek = 20
	}
	byExt := make(map[string]TabularExporter, len(exporters))
	for _, exp := range exporters {
		byExt[exp.Extension()] = exp
	}
	return &ScheduleService{repo: repo, cache: cache, exporters: byExt, metrics: metrics, validator: validate, logger: logger, config: cfg}
}

// Limits returns the configured capacity rules.
func (s *ScheduleService) Limits() models.ScheduleLimits {
	return models.ScheduleLimits{MaxPerDay: s.config.MaxPerDay, MaxPerWeek: s.config.MaxPerWeek}
}

// ValidateEvent checks a candidate against the events already stored for its
// week. The first failing rule wins: slot, day cap, week cap, then title.
func ValidateEvent(existing []models.ScheduleEvent, candidate models.ScheduleEvent, limits models.ScheduleLimits) error {
	perDay := 0
	perWeek := 0
	for _, event := range existing {
		if event.WeekNumber != candidate.WeekNumber {
			continue
		}
		perWeek++
		if event.Day != candidate.Day {
			continue
		}
		perDay++
		if event.TimeSlot == candidate.TimeSlot {
			return appErrors.Clone(appErrors.ErrSlotOccupied, fmt.Sprintf("%s %s is already taken by %q", candidate.Day, candidate.TimeSlot, event.Title))
		}
	}
	if perDay >= limits.MaxPerDay {
		return appErrors.Clone(appErrors.ErrDayLimit, fmt.Sprintf("%s already has %d classes", candidate.Day, limits.MaxPerDay))
	}
	if perWeek >= limits.MaxPerWeek {
		return appErrors.Clone(appErrors.ErrWeekLimit, fmt.Sprintf("week %d already has %d classes", candidate.WeekNumber, limits.MaxPerWeek))
	}
	if strings.TrimSpace(candidate.Title) == "" {
		return appErrors.Clone(appErrors.ErrTitleRequired, "")
	}
	return nil
}

// ListWeek returns one week of the caller's group schedule with capacity
// figures. The boolean reports a cache hit.
func (s *ScheduleService) ListWeek(ctx context.Context, session *models.Session, week int) (*models.WeekSchedule, bool, error) {
	week, err := normalizeWeek(week)
	if err != nil {
		return nil, false, err
	}
	groupID, err := requireGroup(session)
	if err != nil {
		return nil, false, err
	}

	key := ScheduleKey(groupID, week)
	var cached models.WeekSchedule
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	events, err := s.repo.ListByWeek(ctx, groupID, week)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	counts, err := s.repo.CountByWeek(ctx, groupID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count schedule events")
	}
	if events == nil {
		events = []models.ScheduleEvent{}
	}

	result := &models.WeekSchedule{
		Events:      events,
		CurrentWeek: week,
		Week1Count:  counts[1],
		Week2Count:  counts[2],
		MaxPerWeek:  s.config.MaxPerWeek,
		MaxPerDay:   s.config.MaxPerDay,
	}
	_ = s.cache.Set(ctx, key, result, s.config.CacheTTL)
	return result, false, nil
}

// ListAll returns both weeks of the caller's group schedule.
func (s *ScheduleService) ListAll(ctx context.Context, session *models.Session) (*models.FullSchedule, error) {
	groupID, err := requireGroup(session)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	result := &models.FullSchedule{Week1: []models.ScheduleEvent{}, Week2: []models.ScheduleEvent{}}
	for _, event := range events {
		if event.WeekNumber == 2 {
			result.Week2 = append(result.Week2, event)
			continue
		}
		result.Week1 = append(result.Week1, event)
	}
	return result, nil
}

// AddEvent inserts an event into the caller's group. Only the group admin may
// edit the schedule.
func (s *ScheduleService) AddEvent(ctx context.Context, session *models.Session, req dto.CreateEventRequest) (*models.ScheduleEvent, error) {
	groupID, err := requireAdmin(session)
	if err != nil {
		return nil, err
	}

	req.Day = strings.ToLower(strings.TrimSpace(req.Day))
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.WeekNumber == 0 {
		req.WeekNumber = 1
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule event payload")
	}
	start, end, ok := models.ParseTimeSlot(req.TimeSlot)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "time slot must look like 8:30-10:00")
	}

	event := &models.ScheduleEvent{
		GroupID:    groupID,
		Title:      strings.TrimSpace(req.Title),
		Day:        req.Day,
		TimeSlot:   start + "-" + end,
		TimeStart:  start,
		TimeEnd:    end,
		Location:   strings.TrimSpace(req.Location),
		Teacher:    strings.TrimSpace(req.Teacher),
		Type:       req.Type,
		WeekNumber: req.WeekNumber,
	}
	limits := s.Limits()
	err = s.repo.CreateChecked(ctx, event, func(existing []models.ScheduleEvent) error {
		return ValidateEvent(existing, *event, limits)
	})
	if err != nil {
		var appErr *appErrors.Error
		switch {
		case errors.As(err, &appErr):
			s.metrics.RecordRuleRejection(appErr.Code)
			return nil, appErr
		case errors.Is(err, repository.ErrSlotTaken):
			return nil, rejectRule(s.metrics, appErrors.ErrSlotOccupied)
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add schedule event")
	}

	s.invalidate(ctx, groupID)
	s.logger.Info("schedule event added",
		zap.Int64("group_id", groupID),
		zap.Int64("event_id", event.ID),
		zap.Int("week", event.WeekNumber),
	)
	return event, nil
}

// DeleteEvent removes an event from the caller's group and detaches its notes.
func (s *ScheduleService) DeleteEvent(ctx context.Context, session *models.Session, eventID int64) error {
	groupID, err := requireAdmin(session)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, groupID, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule event")
	}
	s.invalidate(ctx, groupID)
	return nil
}

// ExportWeek renders one week of the caller's schedule as csv or xlsx.
func (s *ScheduleService) ExportWeek(ctx context.Context, session *models.Session, week int, format string) (*dto.ScheduleExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	schedule, _, err := s.ListWeek(ctx, session, week)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: []string{"Day", "Time", "Title", "Type", "Location", "Teacher"}}
	for _, event := range schedule.Events {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Day":      event.Day,
			"Time":     event.TimeSlot,
			"Title":    event.Title,
			"Type":     event.Type,
			"Location": event.Location,
			"Teacher":  event.Teacher,
		})
	}
	title := fmt.Sprintf("Week %d", schedule.CurrentWeek)
	data, err := exporter.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule export")
	}
	return &dto.ScheduleExport{
		FileName:    fmt.Sprintf("schedule-week-%d.%s", schedule.CurrentWeek, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Data:        data,
	}, nil
}

func (s *ScheduleService) invalidate(ctx context.Context, groupID int64) {
	if err := s.cache.Invalidate(ctx, SchedulePattern(groupID)); err != nil {
		s.logger.Warn("schedule cache invalidation failed", zap.Int64("group_id", groupID), zap.Error(err))
	}
}

func normalizeWeek(week int) (int, error) {
	switch week {
	case 0:
		return 1, nil
	case 1, 2:
		return week, nil
	}
	return 0, appErrors.Clone(appErrors.ErrValidation, "week must be 1 or 2")
}

func requireGroup(session *models.Session) (int64, error) {
	if !session.HasGroup() {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "you are not a member of any group")
	}
	return *session.GroupID, nil
}

func requireAdmin(session *models.Session) (int64, error) {
	groupID, err := requireGroup(session)
	if err != nil {
		return 0, err
	}
	if !session.IsGroupAdmin {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "only the group admin can edit the schedule")
	}
	return groupID, nil
}
