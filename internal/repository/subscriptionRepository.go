package repository

import (
	"context"

	"github.com/lumenworks/usage-gate/internal/models"
	"github.com/lumenworks/usage-gate/internal/storage"
	"gorm.io/gorm"
)

type SubscriptionRepository struct {
	db *storage.Postgres
}

func NewSubscriptionRepository(db *storage.Postgres) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Retrieves the subscription for an owner
func (r *SubscriptionRepository) FindByOwner(ctx context.Context, ownerID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		First(&sub).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &sub, err
}

// Creates or updates the subscription row for an owner (billing webhook
// path)
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	existing, err := r.FindByOwner(ctx, sub.OwnerID)
	if err != nil {
		return err
	}

	if existing == nil {
		return r.db.DB.WithContext(ctx).Create(sub).Error
	}

	return r.db.DB.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("owner_id = ?", sub.OwnerID).
		Updates(map[string]interface{}{
			"plan":               sub.Plan,
			"status":             sub.Status,
			"current_period_end": sub.CurrentPeriodEnd,
		}).Error
}
