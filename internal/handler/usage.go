package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenworks/usage-gate/internal/entitlements"
	"github.com/lumenworks/usage-gate/internal/middleware"
	"github.com/lumenworks/usage-gate/internal/models"
	"github.com/lumenworks/usage-gate/internal/ratelimit"
	"github.com/lumenworks/usage-gate/internal/repository"
	"github.com/lumenworks/usage-gate/internal/service"
)

type UsageHandler struct {
	usage  *service.UsageService
	events *repository.UsageEventRepository
}

func NewUsageHandler(usage *service.UsageService, events *repository.UsageEventRepository) *UsageHandler {
	return &UsageHandler{
		usage:  usage,
		events: events,
	}
}

// Runs the governance flow for one metered AI operation: entitlements,
// rate limit, pricing, credit deduction. The tool services call this
// before dispatching to inference.
func (h *UsageHandler) Authorize(c *gin.Context) {
	var req struct {
		OwnerID     string `json:"owner_id" binding:"required"`
		OwnerType   string `json:"owner_type" binding:"required,oneof=user guest"`
		Tool        string `json:"tool" binding:"required"`
		Model       string `json:"model"`
		Upscale     uint8  `json:"upscale"`
		FaceEnhance bool   `json:"face_enhance"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authReq := service.AuthorizeRequest{
		OwnerID:     req.OwnerID,
		OwnerType:   entitlements.OwnerType(req.OwnerType),
		Tool:        req.Tool,
		ModelSlug:   req.Model,
		Upscale:     req.Upscale,
		FaceEnhance: req.FaceEnhance,
		IPAddress:   c.ClientIP(),
	}

	ctx := c.Request.Context()
	result, err := h.usage.Authorize(ctx, authReq)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotEntitled):
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"type":    "not_entitled",
					"message": err.Error(),
				},
			})
		case errors.Is(err, ratelimit.ErrInvalidPolicy):
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"type":    "invalid_policy",
					"message": fmt.Sprintf("no rate limit policy for tool %q", req.Tool),
				},
			})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error": gin.H{
					"type":    "backend_unavailable",
					"message": "Could not complete the credit deduction",
				},
			})
		}
		return
	}

	middleware.RecordUsage(models.UsageEvent{
		OwnerID:    req.OwnerID,
		OwnerType:  req.OwnerType,
		Plan:       string(result.Plan),
		Tool:       req.Tool,
		PolicyName: req.Tool,
		Decision:   result.Decision,
		CostTenths: result.CostTenths,
		IPAddress:  c.ClientIP(),
	})

	switch result.Decision {
	case models.DecisionRateLimited:
		c.Header("Retry-After", fmt.Sprintf("%d", result.RetryAfterSeconds))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error": gin.H{
				"type":    "rate_limit",
				"message": fmt.Sprintf("Too many requests. Try again in %d seconds.", result.RetryAfterSeconds),
				"details": gin.H{
					"retryAfter": result.RetryAfterSeconds,
				},
			},
		})
	case models.DecisionInsufficientCredits:
		c.JSON(http.StatusPaymentRequired, gin.H{
			"success": false,
			"error": gin.H{
				"type":    "insufficient_credits",
				"message": "Not enough credits for this operation",
			},
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"cost_tenths": result.CostTenths,
			"plan":        result.Plan,
		})
	}
}

// Usage analytics for the admin dashboard
func (h *UsageHandler) Summary(c *gin.Context) {
	from, to := parseTimeRange(c)
	ctx := c.Request.Context()

	allowed, err := h.events.CountByDecision(ctx, models.DecisionAllowed, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	limited, err := h.events.CountByDecision(ctx, models.DecisionRateLimited, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rejected, err := h.events.CountByDecision(ctx, models.DecisionInsufficientCredits, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	topLimited, err := h.events.TopLimitedIdentities(ctx, from, to, 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"from":                 from,
		"to":                   to,
		"allowed":              allowed,
		"rate_limited":         limited,
		"insufficient_credits": rejected,
		"top_limited":          topLimited,
	})
}

// Per-owner usage history
func (h *UsageHandler) OwnerHistory(c *gin.Context) {
	ownerID := c.Param("owner")
	from, to := parseTimeRange(c)

	ctx := c.Request.Context()
	events, err := h.events.FindByOwner(ctx, ownerID, from, to, 100, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	spent, err := h.events.SumCostByOwner(ctx, ownerID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"owner_id":     ownerID,
		"spent_tenths": spent,
		"events":       events,
	})
}

func parseTimeRange(c *gin.Context) (time.Time, time.Time) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)

	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t
		}
	}

	return from, to
}
