package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenworks/usage-gate/internal/counterstore"
	"github.com/lumenworks/usage-gate/internal/healthcheck"
	"github.com/lumenworks/usage-gate/internal/ratelimit"
)

// Handles system-level endpoints: health and admin status
type SystemHandler struct {
	checker   *healthcheck.Checker
	breaker   *counterstore.BreakerStore // nil when running on the memory store
	registry  *ratelimit.Registry
	startTime time.Time
}

func NewSystemHandler(checker *healthcheck.Checker, breaker *counterstore.BreakerStore, registry *ratelimit.Registry) *SystemHandler {
	return &SystemHandler{
		checker:   checker,
		breaker:   breaker,
		registry:  registry,
		startTime: time.Now(),
	}
}

func (h *SystemHandler) Health(c *gin.Context) {
	overall := h.checker.OverallHealth()

	statusCode := http.StatusOK
	if overall != healthcheck.Healthy {
		statusCode = http.StatusServiceUnavailable
	}

	checks := gin.H{}
	for name, status := range h.checker.GetAllStatus() {
		checks[name] = status.IsHealthy
	}

	c.JSON(statusCode, gin.H{
		"status":    overall.String(),
		"service":   "usage-gate",
		"version":   "1.0.0",
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

func (h *SystemHandler) AdminStatus(c *gin.Context) {
	status := gin.H{
		"service":      "usage-gate",
		"uptime":       time.Since(h.startTime).Seconds(),
		"policies":     h.registry.Names(),
		"dependencies": h.checker.GetAllStatus(),
		"timestamp":    time.Now().Unix(),
	}

	if h.breaker != nil {
		metrics := h.breaker.Metrics()
		status["counter_store_breaker"] = gin.H{
			"state":             metrics.State.String(),
			"failure_count":     metrics.FailureCount,
			"last_failure_time": metrics.LastFailureTime,
			"last_state_change": metrics.LastStateChange,
		}
	}

	c.JSON(http.StatusOK, status)
}

// Manually closes the counter store circuit breaker
func (h *SystemHandler) ResetBreaker(c *gin.Context) {
	if h.breaker == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No circuit breaker configured (memory store in use)",
		})
		return
	}

	h.breaker.Reset()

	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset successfully",
	})
}
