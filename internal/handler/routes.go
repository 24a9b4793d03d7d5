package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studygroup-api/internal/middleware"
)

// Routes groups the API handlers with the middleware that guards them.
type Routes struct {
	Auth     *AuthHandler
	Groups   *GroupHandler
	Schedule *ScheduleHandler
	Notes    *NoteHandler
	Admin    *AdminHandler

	// Authenticate validates the bearer token. LoadSession must follow it.
	Authenticate gin.HandlerFunc
	LoadSession  gin.HandlerFunc
	// CodeLimiter throttles login code requests; nil disables throttling.
	CodeLimiter gin.HandlerFunc
	// SystemAdmin guards operator routes; nil admits nobody.
	SystemAdmin gin.HandlerFunc
}

// Register mounts every API route on the given group.
func (r Routes) Register(api *gin.RouterGroup) {
	authPublic := api.Group("/auth")
	if r.CodeLimiter != nil {
		authPublic.POST("/code", r.CodeLimiter, r.Auth.RequestCode)
	} else {
		authPublic.POST("/code", r.Auth.RequestCode)
	}
	authPublic.POST("/verify", r.Auth.Verify)

	api.GET("/groups/invite/:token", r.Groups.ResolveInvite)

	secured := api.Group("")
	secured.Use(r.Authenticate, r.LoadSession)

	secured.GET("/auth/session", r.Auth.Session)
	secured.POST("/auth/refresh", r.Auth.Refresh)

	groups := secured.Group("/groups")
	groups.GET("/me", r.Groups.Mine)
	groups.POST("", r.Groups.Create)
	groups.POST("/join", r.Groups.Join)
	groups.DELETE("/:id", r.Groups.Delete)
	groups.POST("/:id/leave", r.Groups.Leave)
	groups.POST("/:id/transfer-admin", r.Groups.TransferAdmin)

	schedule := secured.Group("/schedule")
	schedule.GET("", r.Schedule.List)
	schedule.GET("/all", r.Schedule.ListAll)
	schedule.GET("/options", r.Schedule.Options)
	schedule.GET("/export", r.Schedule.Export)
	schedule.POST("", r.Schedule.Create)
	schedule.DELETE("/:id", r.Schedule.Delete)

	notes := secured.Group("/notes")
	notes.GET("", r.Notes.List)
	notes.POST("", r.Notes.Create)
	notes.GET("/check-limit", r.Notes.CheckLimit)
	notes.GET("/:id", r.Notes.Get)
	notes.PATCH("/:id/title", r.Notes.UpdateTitle)
	notes.DELETE("/:id", r.Notes.Delete)
	notes.PUT("/:id/attach", r.Notes.Attach)
	notes.POST("/:id/media", r.Notes.UploadMedia)
	notes.GET("/:id/export", r.Notes.Export)

	systemAdmin := r.SystemAdmin
	if systemAdmin == nil {
		systemAdmin = middleware.RequireSystemAdmin(nil)
	}
	admin := secured.Group("/admin", systemAdmin)
	admin.GET("/db-status", r.Admin.DBStatus)
}
