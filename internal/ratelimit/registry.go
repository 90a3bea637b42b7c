package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenworks/usage-gate/internal/counterstore"
)

// Caps the number of counters read per policy when building a state
// snapshot, so introspection never turns into an unbounded scan
const stateSampleLimit = 25

// Registry holds every named limiter in the process. Policies are
// registered at startup and never mutated; lookups at request time are
// read-only, so no locking is needed after construction.
type Registry struct {
	store    counterstore.Store
	limiters map[string]Limiter
}

// PolicyState is an ops/debugging snapshot for one policy.
type PolicyState struct {
	Policy         Policy          `json:"policy"`
	ActiveKeys     uint32          `json:"active_keys"`
	SampleCounters []SampleCounter `json:"sample_counters"`
}

type SampleCounter struct {
	Key         string `json:"key"`
	Count       uint32 `json:"count"`
	WindowStart int64  `json:"window_start"`
	ResetsInSec int    `json:"resets_in_sec"`
}

func NewRegistry(store counterstore.Store) *Registry {
	return &Registry{
		store:    store,
		limiters: make(map[string]Limiter),
	}
}

// Register validates and installs a policy. Called at process start;
// a validation failure there is fatal, never a request-time surprise.
func (r *Registry) Register(policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	if _, exists := r.limiters[policy.Name]; exists {
		return fmt.Errorf("%w: duplicate policy %q", ErrInvalidPolicy, policy.Name)
	}

	r.limiters[policy.Name] = NewFixedWindow(r.store, policy)
	return nil
}

// Check runs the named policy for an identity. See Limiter.Check for the
// fail-open contract.
func (r *Registry) Check(ctx context.Context, policyName, identity string) (Result, error) {
	limiter, ok := r.limiters[policyName]
	if !ok {
		return Result{}, fmt.Errorf("%w: unregistered policy %q", ErrInvalidPolicy, policyName)
	}

	return limiter.Check(ctx, identity)
}

// Lookup returns the limiter for a name, if registered.
func (r *Registry) Lookup(policyName string) (Limiter, bool) {
	limiter, ok := r.limiters[policyName]
	return limiter, ok
}

// Names returns all registered policy names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	return names
}

// State builds a snapshot for one policy or, with an empty name, for all
// of them.
func (r *Registry) State(ctx context.Context, policyName string) (map[string]PolicyState, error) {
	states := make(map[string]PolicyState)

	if policyName != "" {
		limiter, ok := r.limiters[policyName]
		if !ok {
			return nil, fmt.Errorf("%w: unregistered policy %q", ErrInvalidPolicy, policyName)
		}

		state, err := r.policyState(ctx, limiter.Policy())
		if err != nil {
			return nil, err
		}

		states[policyName] = state
		return states, nil
	}

	for name, limiter := range r.limiters {
		state, err := r.policyState(ctx, limiter.Policy())
		if err != nil {
			return nil, err
		}
		states[name] = state
	}

	return states, nil
}

// Reset deletes the counter for one (policy, identity) pair and reports
// whether a record existed. The next check for that identity behaves as
// the first request of a fresh window. Authorization is the caller's job.
func (r *Registry) Reset(ctx context.Context, policyName, identity string) (bool, error) {
	limiter, ok := r.limiters[policyName]
	if !ok {
		return false, fmt.Errorf("%w: unregistered policy %q", ErrInvalidPolicy, policyName)
	}

	return r.store.Delete(ctx, limiter.Policy().Key(identity))
}

func (r *Registry) policyState(ctx context.Context, policy Policy) (PolicyState, error) {
	keys, err := r.store.ListByPrefix(ctx, policy.Name+":", stateSampleLimit)
	if err != nil {
		return PolicyState{}, err
	}

	state := PolicyState{
		Policy:         policy,
		ActiveKeys:     uint32(len(keys)),
		SampleCounters: make([]SampleCounter, 0, len(keys)),
	}

	nowMs := time.Now().UnixMilli()
	for _, key := range keys {
		raw, found, err := r.store.Get(ctx, key)
		if err != nil {
			return PolicyState{}, err
		}
		if !found {
			continue
		}

		rec, valid := parseRecord(raw)
		if !valid {
			continue
		}

		state.SampleCounters = append(state.SampleCounters, SampleCounter{
			Key:         key,
			Count:       rec.Count,
			WindowStart: rec.WindowStart,
			ResetsInSec: ceilSeconds(rec.WindowStart + int64(policy.WindowMs) - nowMs),
		})
	}

	return state, nil
}
