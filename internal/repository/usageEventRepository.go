package repository

import (
	"context"
	"time"

	"github.com/lumenworks/usage-gate/internal/models"
	"github.com/lumenworks/usage-gate/internal/storage"
)

type UsageEventRepository struct {
	db *storage.Postgres
}

func NewUsageEventRepository(db *storage.Postgres) *UsageEventRepository {
	return &UsageEventRepository{db: db}
}

// Inserts a single usage event
func (r *UsageEventRepository) Create(ctx context.Context, event *models.UsageEvent) error {
	return r.db.DB.WithContext(ctx).Create(event).Error
}

// Inserts multiple usage events (for batch insertion)
func (r *UsageEventRepository) CreateBatch(ctx context.Context, events []*models.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).Create(&events).Error
}

// Retrieves events for one owner within a time range
func (r *UsageEventRepository) FindByOwner(ctx context.Context, ownerID string, from, to time.Time, limit, offset int) ([]models.UsageEvent, error) {
	var events []models.UsageEvent

	err := r.db.DB.WithContext(ctx).
		Where("owner_id = ? AND timestamp BETWEEN ? AND ?", ownerID, from, to).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error

	return events, err
}

// Counts events by decision within a time range
func (r *UsageEventRepository) CountByDecision(ctx context.Context, decision string, from, to time.Time) (int64, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageEvent{}).
		Where("decision = ? AND timestamp BETWEEN ? AND ?", decision, from, to).
		Count(&count).Error

	return count, err
}

// Sums the tenths charged to one owner within a time range
func (r *UsageEventRepository) SumCostByOwner(ctx context.Context, ownerID string, from, to time.Time) (int64, error) {
	var total int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageEvent{}).
		Where("owner_id = ? AND decision = ? AND timestamp BETWEEN ? AND ?", ownerID, models.DecisionAllowed, from, to).
		Select("COALESCE(SUM(cost_tenths), 0)").
		Scan(&total).Error

	return total, err
}

// Returns the identities hitting rate limits most often
func (r *UsageEventRepository) TopLimitedIdentities(ctx context.Context, from, to time.Time, limit int) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	rows, err := r.db.DB.WithContext(ctx).
		Model(&models.UsageEvent{}).
		Select("owner_id, COUNT(*) as denials").
		Where("decision = ? AND timestamp BETWEEN ? AND ?", models.DecisionRateLimited, from, to).
		Group("owner_id").
		Order("denials DESC").
		Limit(limit).
		Rows()

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ownerID string
		var denials int64

		if err := rows.Scan(&ownerID, &denials); err != nil {
			return nil, err
		}

		results = append(results, map[string]interface{}{
			"owner_id": ownerID,
			"denials":  denials,
		})
	}

	return results, nil
}

// Deletes events older than the specified time
func (r *UsageEventRepository) DeleteOldEvents(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.UsageEvent{})

	return result.RowsAffected, result.Error
}
