package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenworks/usage-gate/internal/entitlements"
	"github.com/lumenworks/usage-gate/internal/repository"
	"github.com/lumenworks/usage-gate/internal/storage"
)

const planCacheTTL = 5 * time.Minute

// PlanService resolves the effective billing plan for an owner, with a
// short redis cache in front of the subscription table.
type PlanService struct {
	repo  *repository.SubscriptionRepository
	redis *storage.RedisClient // nil when running without redis
}

func NewPlanService(repo *repository.SubscriptionRepository, redis *storage.RedisClient) *PlanService {
	return &PlanService{
		repo:  repo,
		redis: redis,
	}
}

// ResolvePlan returns the owner's effective plan. Owners with no
// subscription row, or with a lapsed one, are on the free plan.
func (s *PlanService) ResolvePlan(ctx context.Context, ownerID string) (entitlements.Plan, error) {
	cacheKey := fmt.Sprintf("plan:cache:%s", ownerID)

	// Check cache first
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
			return entitlements.Plan(cached), nil
		}
	}

	// Cache miss - query database
	sub, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return entitlements.PlanFree, err
	}

	plan := entitlements.PlanFree
	if sub != nil {
		plan = entitlements.Plan(sub.EffectivePlan())
	}

	// Cache the result
	if s.redis != nil {
		s.redis.Set(ctx, cacheKey, string(plan), planCacheTTL)
	}

	return plan, nil
}

// InvalidateCache drops the cached plan for an owner. Called after a
// billing update lands.
func (s *PlanService) InvalidateCache(ctx context.Context, ownerID string) {
	if s.redis == nil {
		return
	}

	cacheKey := fmt.Sprintf("plan:cache:%s", ownerID)
	s.redis.Del(ctx, cacheKey)
}
