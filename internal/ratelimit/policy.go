package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPolicy indicates a malformed or unregistered policy. This is a
// programmer error: registration validates at startup so request paths
// never see it for registered names.
var ErrInvalidPolicy = errors.New("invalid rate limit policy")

// Policy is the static configuration for one named limit. Immutable once
// registered.
type Policy struct {
	Name        string `json:"name"`
	MaxRequests uint32 `json:"max_requests"`
	WindowMs    uint64 `json:"window_ms"`
}

func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPolicy)
	}
	if strings.Contains(p.Name, ":") {
		return fmt.Errorf("%w: name %q must not contain ':'", ErrInvalidPolicy, p.Name)
	}
	if p.MaxRequests < 1 {
		return fmt.Errorf("%w: %s: max_requests must be >= 1", ErrInvalidPolicy, p.Name)
	}
	if p.WindowMs < 1 {
		return fmt.Errorf("%w: %s: window_ms must be >= 1", ErrInvalidPolicy, p.Name)
	}

	return nil
}

// Key builds the counter-store key for one identity under this policy.
// Identity construction (client IP, user id) is the caller's concern.
func (p Policy) Key(identity string) string {
	return p.Name + ":" + identity
}

// CounterRecord is the stored per-key window state. WindowStart is unix
// milliseconds.
type CounterRecord struct {
	Count       uint32 `json:"count"`
	WindowStart int64  `json:"window_start"`
}

// Malformed stored values are treated as absent rather than crashing the
// request path
func parseRecord(raw string) (CounterRecord, bool) {
	var rec CounterRecord

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&rec); err != nil {
		return CounterRecord{}, false
	}
	if rec.Count == 0 || rec.WindowStart <= 0 {
		return CounterRecord{}, false
	}

	return rec, true
}
