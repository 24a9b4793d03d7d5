package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studygroup-api/internal/models"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/response"
)

// ContextSessionKey is the gin context key storing the caller's session.
const ContextSessionKey = "currentSession"

type sessionLoader interface {
	Session(ctx context.Context, phone string) (*models.Session, error)
}

// Session loads the caller's group facts from the store on every request.
// It must run after JWT.
func Session(loader sessionLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get(ContextUserKey)
		claims, _ := value.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		session, err := loader.Session(c.Request.Context(), claims.Phone)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextSessionKey, session)
		c.Next()
	}
}
