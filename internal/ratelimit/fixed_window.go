package ratelimit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lumenworks/usage-gate/internal/counterstore"
)

// Result is the outcome of one limit check.
type Result struct {
	Allowed bool

	// Remaining requests in the current window (0 when denied)
	Remaining uint32

	// Seconds until the window resets; set only when denied, always >= 1
	RetryAfterSeconds int
}

// Limiter decides whether one more request for an identity is allowed.
type Limiter interface {
	// Check performs the limit decision. On a backend failure it fails
	// open: the result is Allowed and the error is returned alongside so
	// the caller can log the event. Rate limiting is abuse mitigation,
	// not a security boundary.
	Check(ctx context.Context, identity string) (Result, error)

	Policy() Policy
}

// FixedWindowLimiter counts requests in discrete windows via a
// read-modify-write cycle over the counter store. The store is not
// assumed to offer compare-and-swap: two racing checks can both read the
// same count and both write count+1, under-counting by one denial per
// race. Policies are sized with headroom for that; writes are
// last-writer-wins.
type FixedWindowLimiter struct {
	store  counterstore.Store
	policy Policy

	now func() time.Time
}

func NewFixedWindow(store counterstore.Store, policy Policy) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		store:  store,
		policy: policy,
		now:    time.Now,
	}
}

func (f *FixedWindowLimiter) Policy() Policy {
	return f.policy
}

func (f *FixedWindowLimiter) Check(ctx context.Context, identity string) (Result, error) {
	key := f.policy.Key(identity)
	windowMs := int64(f.policy.WindowMs)
	nowMs := f.now().UnixMilli()

	raw, found, err := f.store.Get(ctx, key)
	if err != nil {
		return Result{Allowed: true, Remaining: f.policy.MaxRequests}, err
	}

	rec, valid := CounterRecord{}, false
	if found {
		rec, valid = parseRecord(raw)
	}

	// First request in a window, or the previous window has elapsed
	if !valid || nowMs-rec.WindowStart >= windowMs {
		fresh := CounterRecord{Count: 1, WindowStart: nowMs}
		if err := f.write(ctx, key, fresh, ceilSeconds(windowMs)); err != nil {
			return Result{Allowed: true, Remaining: f.policy.MaxRequests - 1}, err
		}

		return Result{Allowed: true, Remaining: f.policy.MaxRequests - 1}, nil
	}

	if rec.Count < f.policy.MaxRequests {
		rec.Count++

		// TTL refreshed to the remainder of the window
		remainingMs := rec.WindowStart + windowMs - nowMs
		if err := f.write(ctx, key, rec, ceilSeconds(remainingMs)); err != nil {
			return Result{Allowed: true, Remaining: f.policy.MaxRequests - rec.Count}, err
		}

		return Result{Allowed: true, Remaining: f.policy.MaxRequests - rec.Count}, nil
	}

	retryAfter := ceilSeconds(rec.WindowStart + windowMs - nowMs)
	if retryAfter < 1 {
		retryAfter = 1
	}

	return Result{Allowed: false, RetryAfterSeconds: retryAfter}, nil
}

func (f *FixedWindowLimiter) write(ctx context.Context, key string, rec CounterRecord, ttlSeconds int) error {
	data, _ := json.Marshal(rec)
	return f.store.Put(ctx, key, string(data), time.Duration(ttlSeconds)*time.Second)
}

func ceilSeconds(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int((ms + 999) / 1000)
}
