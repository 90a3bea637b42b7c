package middleware

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumenworks/usage-gate/internal/metrics"
	"github.com/lumenworks/usage-gate/internal/ratelimit"
)

// RateLimit enforces one named policy on every request through it.
// Authenticated requests are keyed by user id, anonymous ones by client
// IP. On denial the response carries a Retry-After header and the
// structured rate_limit error body; on a store failure the request is
// allowed through and the failure is logged.
func RateLimit(registry *ratelimit.Registry, policyName string) gin.HandlerFunc {
	limiter, ok := registry.Lookup(policyName)
	if !ok {
		// Registration happens at startup, so this is a wiring bug
		panic(fmt.Sprintf("rate limit middleware: unregistered policy %q", policyName))
	}

	policy := limiter.Policy()

	return func(c *gin.Context) {
		identity := c.ClientIP()
		if userID := c.GetString("user_id"); userID != "" {
			identity = userID
		}

		result, err := registry.Check(c.Request.Context(), policyName, identity)
		if err != nil {
			// Fail open: rate limiting protects capacity, it is not a
			// security boundary
			metrics.RateLimitFailOpen.Inc()
			requestID := c.GetString("request_id")
			log.Printf("[%s] rate limit check degraded for %s: %v", requestID, policyName, err)
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", policy.MaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))

		if !result.Allowed {
			metrics.RateLimitDenied.WithLabelValues(policyName).Inc()

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
			c.Abort()
			return
		}

		metrics.RateLimitAllowed.WithLabelValues(policyName).Inc()
		c.Next()
	}
}
