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
)

type groupRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Group, error)
	FindByMember(ctx context.Context, phone string) (*models.Group, error)
	ListMembers(ctx context.Context, groupID int64) ([]string, error)
	CountMembers(ctx context.Context, groupID int64) (int, error)
	IsMember(ctx context.Context, groupID int64, phone string) (bool, error)
	Create(ctx context.Context, group *models.Group, tokenFor func(int64) string) error
	AddMember(ctx context.Context, groupID int64, phone string) error
	RemoveMember(ctx context.Context, groupID int64, phone string) (bool, error)
	TransferAdmin(ctx context.Context, groupID int64, from, to string) (bool, error)
	Delete(ctx context.Context, groupID int64) error
}

type inviteCodec interface {
	Token(groupID int64) string
	Link(token string) string
	Parse(token string) (int64, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// GroupConfig holds membership limits applied to new groups.
type GroupConfig struct {
	MaxMembers int
}

// GroupService manages group lifecycle and membership.
type GroupService struct {
	repo      groupRepository
	invites   inviteCodec
	cache     cacheInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    GroupConfig
}

// NewGroupService constructs a GroupService.
func NewGroupService(repo groupRepository, invites inviteCodec, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg GroupConfig) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxMembers <= 0 {
		cfg.MaxMembers = models.DefaultMaxMembers
	}
	return &GroupService{repo: repo, invites: invites, cache: cache, metrics: metrics, validator: validate, logger: logger, config: cfg}
}

// GetMyGroup returns the caller's group, or nil when they have none.
func (s *GroupService) GetMyGroup(ctx context.Context, phone string) (*models.GroupDetail, error) {
	group, err := s.repo.FindByMember(ctx, phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return s.detail(ctx, group, phone)
}

// CreateGroup creates a group with the caller as admin and sole member.
func (s *GroupService) CreateGroup(ctx context.Context, phone string, req dto.CreateGroupRequest) (*models.GroupDetail, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	if req.University != nil {
		trimmed := strings.TrimSpace(*req.University)
		req.University = &trimmed
		if trimmed == "" {
			req.University = nil
		}
	}

	group := &models.Group{
		Name:       req.Name,
		University: req.University,
		AdminPhone: phone,
		MaxMembers: s.config.MaxMembers,
	}
	if err := s.repo.Create(ctx, group, s.invites.Token); err != nil {
		if errors.Is(err, repository.ErrAlreadyMember) {
			return nil, rejectRule(s.metrics, appErrors.ErrAlreadyInGroup)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}

	s.logger.Info("group created", zap.Int64("group_id", group.ID))
	return s.detail(ctx, group, phone)
}

// DeleteGroup removes a group. Only its admin may do so.
func (s *GroupService) DeleteGroup(ctx context.Context, phone string, groupID int64) error {
	group, err := s.find(ctx, groupID)
	if err != nil {
		return err
	}
	if group.AdminPhone != phone {
		return appErrors.Clone(appErrors.ErrForbidden, "only the group admin can delete the group")
	}

	if err := s.repo.Delete(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete group")
	}
	s.invalidateSchedule(ctx, groupID)

	s.logger.Info("group deleted", zap.Int64("group_id", groupID))
	return nil
}

// ResolveInvite previews the group behind an invite without joining it.
func (s *GroupService) ResolveInvite(ctx context.Context, invite string) (*models.InvitePreview, error) {
	group, err := s.resolve(ctx, invite)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountMembers(ctx, group.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count members")
	}
	return &models.InvitePreview{
		ID:          group.ID,
		Name:        group.Name,
		University:  group.University,
		MemberCount: count,
		MaxMembers:  group.MaxMembers,
		AdminPhone:  group.AdminPhone,
	}, nil
}

// JoinGroup adds the caller to the group named by an invite token or id.
// Failures are reported in the order: unknown group, full group, caller
// already in a group.
func (s *GroupService) JoinGroup(ctx context.Context, phone string, req dto.JoinGroupRequest) (*models.GroupDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid join payload")
	}
	group, err := s.resolve(ctx, req.Invite)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AddMember(ctx, group.ID, phone); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		case errors.Is(err, repository.ErrGroupFull):
			return nil, rejectRule(s.metrics, appErrors.ErrGroupFull)
		case errors.Is(err, repository.ErrAlreadyMember):
			return nil, rejectRule(s.metrics, appErrors.ErrAlreadyInGroup)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join group")
	}

	s.logger.Info("group joined", zap.Int64("group_id", group.ID))
	return s.detail(ctx, group, phone)
}

// LeaveGroup removes the caller from the group. The admin cannot leave.
func (s *GroupService) LeaveGroup(ctx context.Context, phone string, groupID int64) error {
	group, err := s.find(ctx, groupID)
	if err != nil {
		return err
	}
	member, err := s.repo.IsMember(ctx, groupID, phone)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	if !member {
		return appErrors.Clone(appErrors.ErrNotFound, "you are not a member of this group")
	}
	if group.AdminPhone == phone {
		return rejectRule(s.metrics, appErrors.ErrAdminCannotLeave)
	}

	removed, err := s.repo.RemoveMember(ctx, groupID, phone)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to leave group")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "you are not a member of this group")
	}
	return nil
}

// TransferAdmin hands admin rights to another member.
func (s *GroupService) TransferAdmin(ctx context.Context, phone string, groupID int64, req dto.TransferAdminRequest) (*models.GroupDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}
	target, err := NormalizePhone(req.NewAdminPhone)
	if err != nil {
		return nil, err
	}

	group, err := s.find(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.AdminPhone != phone {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the group admin can transfer admin rights")
	}
	if target == phone {
		return nil, appErrors.Clone(appErrors.ErrValidation, "you are already the group admin")
	}
	member, err := s.repo.IsMember(ctx, groupID, target)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	if !member {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "new admin is not a member of this group")
	}

	ok, err := s.repo.TransferAdmin(ctx, groupID, phone, target)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transfer admin rights")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin rights changed concurrently")
	}

	group.AdminPhone = target
	s.logger.Info("group admin transferred", zap.Int64("group_id", groupID))
	return s.detail(ctx, group, phone)
}

func (s *GroupService) find(ctx context.Context, groupID int64) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

func (s *GroupService) resolve(ctx context.Context, invite string) (*models.Group, error) {
	groupID, err := s.invites.Parse(strings.TrimSpace(invite))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "invite link is not valid")
	}
	return s.find(ctx, groupID)
}

func (s *GroupService) detail(ctx context.Context, group *models.Group, phone string) (*models.GroupDetail, error) {
	members, err := s.repo.ListMembers(ctx, group.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load members")
	}
	if members == nil {
		members = []string{}
	}

	token := s.invites.Token(group.ID)
	if group.InviteToken != nil && *group.InviteToken != "" {
		token = *group.InviteToken
	}
	return &models.GroupDetail{
		ID:          group.ID,
		Name:        group.Name,
		University:  group.University,
		Admin:       group.AdminPhone,
		MemberCount: len(members),
		MaxMembers:  group.MaxMembers,
		IsAdmin:     group.AdminPhone == phone,
		InviteLink:  s.invites.Link(token),
		InviteToken: token,
		Members:     members,
	}, nil
}

func (s *GroupService) invalidateSchedule(ctx context.Context, groupID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, SchedulePattern(groupID)); err != nil {
		s.logger.Warn("schedule cache invalidation failed", zap.Int64("group_id", groupID), zap.Error(err))
	}
}
