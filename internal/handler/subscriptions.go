package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenworks/usage-gate/internal/models"
	"github.com/lumenworks/usage-gate/internal/repository"
	"github.com/lumenworks/usage-gate/internal/service"
)

// Receives plan changes from the billing service (webhook relay or
// manual admin override) and keeps the plan cache honest.
type SubscriptionsHandler struct {
	repo  *repository.SubscriptionRepository
	plans *service.PlanService
}

func NewSubscriptionsHandler(repo *repository.SubscriptionRepository, plans *service.PlanService) *SubscriptionsHandler {
	return &SubscriptionsHandler{
		repo:  repo,
		plans: plans,
	}
}

func (h *SubscriptionsHandler) Upsert(c *gin.Context) {
	var req struct {
		OwnerID          string     `json:"owner_id" binding:"required"`
		Plan             string     `json:"plan" binding:"required,oneof=free pro premium enterprise"`
		Status           string     `json:"status" binding:"required"`
		CurrentPeriodEnd *time.Time `json:"current_period_end"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := &models.Subscription{
		OwnerID:          req.OwnerID,
		Plan:             req.Plan,
		Status:           req.Status,
		CurrentPeriodEnd: req.CurrentPeriodEnd,
	}

	ctx := c.Request.Context()
	if err := h.repo.Upsert(ctx, sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.plans.InvalidateCache(ctx, req.OwnerID)

	c.JSON(http.StatusOK, gin.H{"message": "Subscription updated"})
}

func (h *SubscriptionsHandler) Get(c *gin.Context) {
	ownerID := c.Param("owner")

	ctx := c.Request.Context()
	sub, err := h.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No subscription for owner"})
		return
	}

	c.JSON(http.StatusOK, sub)
}
