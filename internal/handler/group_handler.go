package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studygroup-api/internal/dto"
	"github.com/noah-isme/studygroup-api/internal/models"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/response"
)

type groupService interface {
	GetMyGroup(ctx context.Context, phone string) (*models.GroupDetail, error)
	CreateGroup(ctx context.Context, phone string, req dto.CreateGroupRequest) (*models.GroupDetail, error)
	DeleteGroup(ctx context.Context, phone string, groupID int64) error
	ResolveInvite(ctx context.Context, invite string) (*models.InvitePreview, error)
	JoinGroup(ctx context.Context, phone string, req dto.JoinGroupRequest) (*models.GroupDetail, error)
	LeaveGroup(ctx context.Context, phone string, groupID int64) error
	TransferAdmin(ctx context.Context, phone string, groupID int64, req dto.TransferAdminRequest) (*models.GroupDetail, error)
}

// GroupHandler exposes group membership endpoints.
type GroupHandler struct {
	service groupService
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(svc groupService) *GroupHandler {
	return &GroupHandler{service: svc}
}

// Mine godoc
// @Summary Current group
// @Description Return the caller's group with members and invite link; data is empty when the caller has no group
// @Tags Groups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /groups/me [get]
func (h *GroupHandler) Mine(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	group, err := h.service.GetMyGroup(c.Request.Context(), claims.Phone)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Create godoc
// @Summary Create group
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body dto.CreateGroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid group payload"))
		return
	}
	group, err := h.service.CreateGroup(c.Request.Context(), claims.Phone, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// Delete godoc
// @Summary Delete group
// @Description Admin only. Memberships and events are removed; notes are kept and detached.
// @Tags Groups
// @Param id path int true "Group ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id} [delete]
func (h *GroupHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteGroup(c.Request.Context(), claims.Phone, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ResolveInvite godoc
// @Summary Preview invite
// @Description Resolve an invite token or group id without joining
// @Tags Groups
// @Produce json
// @Param token path string true "Invite token or group id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/invite/{token} [get]
func (h *GroupHandler) ResolveInvite(c *gin.Context) {
	preview, err := h.service.ResolveInvite(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Join godoc
// @Summary Join group
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body dto.JoinGroupRequest true "Invite payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/join [post]
func (h *GroupHandler) Join(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.JoinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid join payload"))
		return
	}
	group, err := h.service.JoinGroup(c.Request.Context(), claims.Phone, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Leave godoc
// @Summary Leave group
// @Tags Groups
// @Param id path int true "Group ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{id}/leave [post]
func (h *GroupHandler) Leave(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.LeaveGroup(c.Request.Context(), claims.Phone, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// TransferAdmin godoc
// @Summary Transfer admin rights
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param payload body dto.TransferAdminRequest true "New admin"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id}/transfer-admin [post]
func (h *GroupHandler) TransferAdmin(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.TransferAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transfer payload"))
		return
	}
	group, err := h.service.TransferAdmin(c.Request.Context(), claims.Phone, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}
