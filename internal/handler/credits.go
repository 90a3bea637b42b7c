package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumenworks/usage-gate/internal/credits"
)

type CreditsHandler struct {
	ledger *credits.Ledger
}

func NewCreditsHandler(ledger *credits.Ledger) *CreditsHandler {
	return &CreditsHandler{ledger: ledger}
}

func (h *CreditsHandler) Balance(c *gin.Context) {
	ownerID := c.Param("owner")

	ctx := c.Request.Context()
	tenths, err := h.ledger.Balance(ctx, ownerID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credit store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"owner_id":       ownerID,
		"balance_tenths": tenths,
		"balance":        credits.FromTenths(tenths),
	})
}

func (h *CreditsHandler) Packs(c *gin.Context) {
	ownerID := c.Param("owner")

	ctx := c.Request.Context()
	packs, err := h.ledger.ListActivePacks(ctx, ownerID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credit store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"owner_id": ownerID,
		"packs":    packs,
	})
}

// Grants a credit pack to an owner (purchase webhook or manual admin
// grant)
func (h *CreditsHandler) Grant(c *gin.Context) {
	var req struct {
		OwnerID string  `json:"owner_id" binding:"required"`
		Units   float64 `json:"units" binding:"required"`
		TTLDays int     `json:"ttl_days" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	packID, err := h.ledger.Grant(ctx, req.OwnerID, credits.ToTenths(req.Units), req.TTLDays)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"pack_id":  packID,
		"owner_id": req.OwnerID,
	})
}

func (h *CreditsHandler) Deduct(c *gin.Context) {
	var req struct {
		OwnerID string  `json:"owner_id" binding:"required"`
		Units   float64 `json:"units" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.ledger.Deduct(ctx, req.OwnerID, credits.ToTenths(req.Units)); err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"success": false,
				"error": gin.H{
					"type":    "insufficient_credits",
					"message": "Not enough credits for this operation",
				},
			})
			return
		}

		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"type":    "backend_unavailable",
				"message": "Credit deduction failed, no credits were taken",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
