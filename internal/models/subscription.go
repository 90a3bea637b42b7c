package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mirrors the billing system's view of an owner's plan. Written by the
// Stripe webhook service; this service only reads it.
type Subscription struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID          string     `gorm:"uniqueIndex;not null" json:"owner_id"`
	Plan             string     `gorm:"default:'free'" json:"plan"`
	Status           string     `gorm:"default:'active'" json:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// An expired or canceled subscription falls back to the free plan
func (s *Subscription) EffectivePlan() string {
	if s.Status != "active" {
		return "free"
	}
	if s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.Before(time.Now()) {
		return "free"
	}

	return s.Plan
}
