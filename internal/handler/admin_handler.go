package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studygroup-api/internal/models"
	"github.com/noah-isme/studygroup-api/pkg/response"
)

type adminService interface {
	DBStatus(ctx context.Context) (*models.DBStatus, error)
}

// AdminHandler serves operator endpoints.
type AdminHandler struct {
	service adminService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(svc adminService) *AdminHandler {
	return &AdminHandler{service: svc}
}

// DBStatus godoc
// @Summary Database status
// @Description Row counts per table, database size, Redis availability and process metrics. Restricted to configured admin phones.
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/db-status [get]
func (h *AdminHandler) DBStatus(c *gin.Context) {
	status, err := h.service.DBStatus(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
