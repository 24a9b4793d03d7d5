package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studygroup-api/internal/models"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/ratelimit"
)

type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{Phone: "+79990000001"}, nil
}

type fakeLoader struct {
	calls int
}

func (f *fakeLoader) Session(_ context.Context, phone string) (*models.Session, error) {
	f.calls++
	if phone != "+79990000001" {
		return nil, appErrors.Wrap(sql.ErrNoRows, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "user no longer exists")
	}
	groupID := int64(7)
	return &models.Session{Phone: phone, GroupID: &groupID, IsGroupAdmin: true}, nil
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		value, _ := c.Get(ContextSessionKey)
		c.JSON(http.StatusOK, gin.H{"session": value})
	})
	r.GET("/protected", handlers...)
	return r
}

func TestJWTAndSession(t *testing.T) {
	loader := &fakeLoader{}
	r := newTestRouter(JWT(fakeValidator{}), Session(loader))

	cases := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"valid", "Bearer good", http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, decodeErrorCode(t, w))
			}
		})
	}
	assert.Equal(t, 1, loader.calls)
}

func TestSessionRequiresClaims(t *testing.T) {
	r := newTestRouter(Session(&fakeLoader{}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireSystemAdmin(t *testing.T) {
	setClaims := func(phone string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if phone != "" {
				c.Set(ContextUserKey, &models.JWTClaims{Phone: phone})
			}
			c.Next()
		}
	}

	cases := []struct {
		phone  string
		status int
	}{
		{"+79990000001", http.StatusOK},
		{"+79990000002", http.StatusForbidden},
		{"", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		r := newTestRouter(setClaims(tc.phone), RequireSystemAdmin([]string{"+79990000001"}))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
		assert.Equal(t, tc.status, w.Code, tc.phone)
	}

	// operator list written without the leading plus or with formatting
	r := newTestRouter(setClaims("+79990000001"), RequireSystemAdmin([]string{"not a phone", "7 (999) 000-00-01"}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitWithRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter, err := ratelimit.NewFixedWindowLimiter(client, "test", 2, time.Minute)
	require.NoError(t, err)
	r := newTestRouter(RateLimit(limiter, "auth"))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "TOO_MANY_REQUESTS", decodeErrorCode(t, w))
}

func TestRateLimitDisabled(t *testing.T) {
	r := newTestRouter(RateLimit(nil, "auth"))
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestSetCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SetCacheHit(c, true)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, true, ExtractMeta(c)[cacheHitKey])

	SetCacheHit(c, false)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
}
