package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func loggerRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/api/v1/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/socket.io/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, logs
}

func TestLoggerRecordsRequests(t *testing.T) {
	r, logs := loggerRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping?size=5", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "/api/v1/ping", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, "size=5", fields["query"])
}

func TestLoggerLevelsServerErrors(t *testing.T) {
	r, logs := loggerRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/broken", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.ErrorLevel, logs.All()[0].Level)
}

func TestLoggerSkipsSocketIO(t *testing.T) {
	r, logs := loggerRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/socket.io/", nil))

	assert.Equal(t, 0, logs.Len())
}
