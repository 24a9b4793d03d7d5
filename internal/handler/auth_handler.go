package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studygroup-api/internal/dto"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/response"
)

type authService interface {
	RequestCode(ctx context.Context, req dto.RequestCodeRequest) (*dto.RequestCodeResponse, error)
	Verify(ctx context.Context, req dto.VerifyCodeRequest) (*dto.AuthResponse, error)
	Refresh(ctx context.Context, phone string) (*dto.AuthResponse, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// RequestCode godoc
// @Summary Request login code
// @Description Send a one-time login code to the phone. Any outstanding code is replaced.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.RequestCodeRequest true "Phone payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/code [post]
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req dto.RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid code request payload"))
		return
	}

	res, err := h.service.RequestCode(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Verify godoc
// @Summary Verify login code
// @Description Exchange phone and code for an access token and session snapshot
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.VerifyCodeRequest true "Verification payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/verify [post]
func (h *AuthHandler) Verify(c *gin.Context) {
	var req dto.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}

	res, err := h.service.Verify(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Session godoc
// @Summary Current session
// @Description Return the caller's group facts, re-read from the store
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Refresh godoc
// @Summary Refresh access token
// @Description Issue a new access token together with a fresh session snapshot
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	res, err := h.service.Refresh(c.Request.Context(), claims.Phone)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
