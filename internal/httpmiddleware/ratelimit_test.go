package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newLimitedRouter(l *PerIPLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(l.Middleware())
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/v1/attendance", ok)
	r.GET("/healthz", ok)
	return r
}

func doGet(r *gin.Engine, path, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestLimiterExhaustsBurst(t *testing.T) {
	r := newLimitedRouter(NewPerIPLimiter(3, "/healthz"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(r, "/v1/attendance", "10.0.0.1:1234"))
	}
	assert.Equal(t, http.StatusTooManyRequests, doGet(r, "/v1/attendance", "10.0.0.1:1234"))
}

func TestLimiterIsPerIP(t *testing.T) {
	r := newLimitedRouter(NewPerIPLimiter(1, "/healthz"))

	assert.Equal(t, http.StatusOK, doGet(r, "/v1/attendance", "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, doGet(r, "/v1/attendance", "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, doGet(r, "/v1/attendance", "10.0.0.2:1234"))
}

func TestLimiterExemptsHealthPaths(t *testing.T) {
	r := newLimitedRouter(NewPerIPLimiter(1, "/healthz"))

	assert.Equal(t, http.StatusOK, doGet(r, "/v1/attendance", "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, doGet(r, "/v1/attendance", "10.0.0.1:1234"))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doGet(r, "/healthz", "10.0.0.1:1234"))
	}
}

func TestLimiterRefills(t *testing.T) {
	l := NewPerIPLimiter(60) // one token per second

	now := time.Now()
	assert.True(t, l.allow("ip", now))
	for i := 0; i < 59; i++ {
		l.allow("ip", now)
	}
	assert.False(t, l.allow("ip", now), "burst spent")
	assert.True(t, l.allow("ip", now.Add(1100*time.Millisecond)), "a second later one token is back")
	assert.False(t, l.allow("ip", now.Add(1200*time.Millisecond)))
}
