package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studygroup-api/internal/models"
	"github.com/noah-isme/studygroup-api/internal/service"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/response"
)

// RequireSystemAdmin admits only callers whose phone is on the operator list.
// Entries are normalized the same way login phones are; unparseable entries
// are ignored.
func RequireSystemAdmin(phones []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(phones))
	for _, raw := range phones {
		phone, err := service.NormalizePhone(raw)
		if err != nil {
			continue
		}
		allowed[phone] = struct{}{}
	}

	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, _ := value.(*models.JWTClaims)
		if !exists || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Phone]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
