package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lumenworks/usage-gate/internal/credits"
	"github.com/lumenworks/usage-gate/internal/entitlements"
	"github.com/lumenworks/usage-gate/internal/metrics"
	"github.com/lumenworks/usage-gate/internal/models"
	"github.com/lumenworks/usage-gate/internal/ratelimit"
)

// ErrNotEntitled is returned when a request asks for a capability the
// owner's plan does not include.
var ErrNotEntitled = errors.New("plan does not include requested capability")

// PlanResolver resolves an owner's effective billing plan. Satisfied by
// PlanService.
type PlanResolver interface {
	ResolvePlan(ctx context.Context, ownerID string) (entitlements.Plan, error)
}

// UsageService is the composition root for governed requests: resolve
// entitlements, check the rate limit, price the operation, deduct
// credits.
type UsageService struct {
	registry *ratelimit.Registry
	ledger   *credits.Ledger
	plans    PlanResolver
}

type AuthorizeRequest struct {
	OwnerID     string
	OwnerType   entitlements.OwnerType
	Tool        string // also the rate-limit policy name
	ModelSlug   string
	Upscale     uint8
	FaceEnhance bool
	IPAddress   string
}

type AuthorizeResult struct {
	Allowed           bool
	Decision          string // models.Decision* value for the audit log
	RetryAfterSeconds int
	CostTenths        int64
	Plan              entitlements.Plan
	Entitlements      entitlements.Entitlements
}

func NewUsageService(registry *ratelimit.Registry, ledger *credits.Ledger, plans PlanResolver) *UsageService {
	return &UsageService{
		registry: registry,
		ledger:   ledger,
		plans:    plans,
	}
}

// Authorize runs the full governance flow for one metered request.
// Rate-limit denials and insufficient credits come back as a non-allowed
// result; entitlement violations and backend failures on the deduct path
// come back as errors.
func (s *UsageService) Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error) {
	plan := entitlements.PlanFree
	if req.OwnerType == entitlements.OwnerUser {
		resolved, err := s.plans.ResolvePlan(ctx, req.OwnerID)
		if err != nil {
			// Plan lookup failure degrades to free rather than blocking
			log.Printf("plan resolution failed for %s, defaulting to free: %v", req.OwnerID, err)
		}
		plan = resolved
	}

	ents := entitlements.Resolve(req.OwnerType, plan)
	result := AuthorizeResult{Plan: plan, Entitlements: ents}

	if req.Upscale > ents.MaxUpscale {
		return result, fmt.Errorf("%w: upscale x%d exceeds plan max x%d", ErrNotEntitled, req.Upscale, ents.MaxUpscale)
	}
	if req.FaceEnhance && !ents.FaceEnhance {
		return result, fmt.Errorf("%w: face enhancement", ErrNotEntitled)
	}

	limit, err := s.registry.Check(ctx, req.Tool, req.OwnerID)
	if err != nil {
		if errors.Is(err, ratelimit.ErrInvalidPolicy) {
			return result, err
		}

		// Store trouble: the limiter already failed open, just record it
		metrics.RateLimitFailOpen.Inc()
		log.Printf("rate limit check degraded for %s:%s: %v", req.Tool, req.OwnerID, err)
	}

	if !limit.Allowed {
		metrics.RateLimitDenied.WithLabelValues(req.Tool).Inc()
		result.Decision = models.DecisionRateLimited
		result.RetryAfterSeconds = limit.RetryAfterSeconds
		return result, nil
	}
	metrics.RateLimitAllowed.WithLabelValues(req.Tool).Inc()

	cost := credits.EnhancerCost(req.ModelSlug, req.Upscale, req.FaceEnhance)
	result.CostTenths = cost

	// Guests have no ledger; their quota is the guest rate policy
	if req.OwnerType == entitlements.OwnerUser {
		if err := s.ledger.Deduct(ctx, req.OwnerID, cost); err != nil {
			if errors.Is(err, credits.ErrInsufficientCredits) {
				metrics.CreditDeductionsRejected.Inc()
				result.Decision = models.DecisionInsufficientCredits
				return result, nil
			}

			// Never silently grant credit on a backend failure
			return result, fmt.Errorf("credit deduction failed: %w", err)
		}
		metrics.CreditTenthsDeducted.Add(credits.FromTenths(cost))
	}

	result.Allowed = true
	result.Decision = models.DecisionAllowed
	return result, nil
}
