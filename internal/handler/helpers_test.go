package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studygroup-api/internal/middleware"
	"github.com/noah-isme/studygroup-api/internal/models"
	"github.com/noah-isme/studygroup-api/pkg/response"
)

const testPhone = "+79990000001"

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func adminSession(groupID int64) *models.Session {
	return &models.Session{Phone: testPhone, GroupID: &groupID, IsGroupAdmin: true}
}

func withSession(c *gin.Context, session *models.Session) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Phone: session.Phone})
	c.Set(middleware.ContextSessionKey, session)
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (response.Envelope, map[string]json.RawMessage) {
	t.Helper()
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env, raw
}
