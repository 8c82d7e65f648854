package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/cnpj-analytics/internal/config"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func get(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func ok(c *gin.Context) { c.String(http.StatusOK, "ok") }

func TestRequestIDKeepsIncomingHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", ok)

	rec := get(r, "/", map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))

	rec = get(r, "/", nil)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestAdminAuth(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), AdminAuth("s3cret"))
	r.GET("/", ok)

	rec := get(r, "/", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "UNAUTHORIZED", resp.Code)
	assert.NotEmpty(t, resp.RequestID)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/", map[string]string{"X-Admin-Token": "wrong"}).Code)
	assert.Equal(t, http.StatusOK, get(r, "/", map[string]string{"X-Admin-Token": "s3cret"}).Code)
}

func TestAdminAuthDisabledWithoutToken(t *testing.T) {
	r := gin.New()
	r.Use(AdminAuth(""))
	r.GET("/", ok)

	assert.Equal(t, http.StatusOK, get(r, "/", nil).Code)
}

func TestRecoveryReturnsErrorResponse(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(quietLogger()))
	r.GET("/", func(*gin.Context) { panic("boom") })

	rec := get(r, "/", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS(config.CORSConfig{
		AllowedOrigins: []string{"https://painel.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.OPTIONS("/", ok)

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://painel.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://painel.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{RequestsPerMinute: 1, BurstSize: 2, CleanupInterval: time.Minute})
	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/", ok)

	assert.Equal(t, http.StatusOK, get(r, "/", nil).Code)
	assert.Equal(t, http.StatusOK, get(r, "/", nil).Code)

	rec := get(r, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, limiter.GetStats()["active_clients"])
}

func TestRequestMetricsCountsErrors(t *testing.T) {
	m := NewRequestMetrics()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ok", ok)
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	get(r, "/ok", nil)
	get(r, "/fail", nil)
	get(r, "/missing", nil)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.Total)
	assert.Equal(t, int64(1), snap.Errors)
}
