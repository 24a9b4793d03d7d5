package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/response"
)

type limiter interface {
	Allow(ctx context.Context, key string) bool
	Window() time.Duration
}

// RateLimit rejects clients that exceed the limiter's budget with 429 and a
// Retry-After header. A nil limiter disables the check.
func RateLimit(l limiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		key := fmt.Sprintf("%s:%s", scope, c.ClientIP())
		if !l.Allow(c.Request.Context(), key) {
			c.Header("Retry-After", strconv.Itoa(int(l.Window().Seconds())))
			response.Error(c, appErrors.Clone(appErrors.ErrTooManyRequests, "too many code requests, try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}
