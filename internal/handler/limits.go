package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumenworks/usage-gate/internal/ratelimit"
)

// Administrative introspection over the limiter registry. Routes using
// this handler sit behind the admin auth middleware; the handler itself
// trusts its caller.
type LimitsHandler struct {
	registry *ratelimit.Registry
}

func NewLimitsHandler(registry *ratelimit.Registry) *LimitsHandler {
	return &LimitsHandler{registry: registry}
}

// Returns the current counter snapshot for one policy (?name=) or all
// policies
func (h *LimitsHandler) State(c *gin.Context) {
	name := c.Query("name")

	states, err := h.registry.State(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, ratelimit.ErrInvalidPolicy) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "counter store unavailable"})
		return
	}

	c.JSON(http.StatusOK, states)
}

// Deletes one identity's counter under a policy
func (h *LimitsHandler) Reset(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
		Key  string `json:"key" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existed, err := h.registry.Reset(c.Request.Context(), req.Name, req.Key)
	if err != nil {
		if errors.Is(err, ratelimit.ErrInvalidPolicy) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "counter store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reset": existed})
}
