package models

import (
	"time"
)

// Decision values recorded on a usage event
const (
	DecisionAllowed             = "allowed"
	DecisionRateLimited         = "rate_limited"
	DecisionInsufficientCredits = "insufficient_credits"
)

// Represents one governed request against a metered tool
type UsageEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
	OwnerID    string    `gorm:"index" json:"owner_id"`
	OwnerType  string    `json:"owner_type"`
	Plan       string    `json:"plan"`
	Tool       string    `gorm:"index" json:"tool"`
	PolicyName string    `json:"policy_name"`
	Decision   string    `gorm:"index" json:"decision"`
	CostTenths int64     `json:"cost_tenths"`
	IPAddress  string    `json:"ip_address"`
}

func (UsageEvent) TableName() string {
	return "usage_events"
}
