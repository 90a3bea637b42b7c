package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lumenworks/usage-gate/internal/counterstore"
	"github.com/lumenworks/usage-gate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(t *testing.T, maxRequests uint32) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := ratelimit.NewRegistry(counterstore.NewMemoryStore())
	require.NoError(t, registry.Register(ratelimit.Policy{
		Name:        "auth",
		MaxRequests: maxRequests,
		WindowMs:    60000,
	}))

	router := gin.New()
	router.POST("/login", RateLimit(registry, "auth"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	return router
}

func doLogin(router *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "1.2.3.4:5000"
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitAllowsWithinCap(t *testing.T) {
	router := newLimitedRouter(t, 2)

	for i := 0; i < 2; i++ {
		w := doLogin(router)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimitDeniesOverCap(t *testing.T) {
	router := newLimitedRouter(t, 1)

	w := doLogin(router)
	require.Equal(t, http.StatusOK, w.Code)

	w = doLogin(router)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Type    string `json:"type"`
			Message string `json:"message"`
			Details struct {
				RetryAfter int `json:"retryAfter"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.False(t, body.Success)
	assert.Equal(t, "rate_limit", body.Error.Type)
	assert.GreaterOrEqual(t, body.Error.Details.RetryAfter, 1)
	assert.LessOrEqual(t, body.Error.Details.RetryAfter, 60)
}

func TestRateLimitUnregisteredPolicyPanics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := ratelimit.NewRegistry(counterstore.NewMemoryStore())

	assert.Panics(t, func() {
		RateLimit(registry, "ghost")
	})
}
