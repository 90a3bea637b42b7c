package credits

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lumenworks/usage-gate/internal/counterstore"
)

var (
	// ErrInsufficientCredits is returned when a deduction cannot be
	// satisfied. The owner's packs are left untouched.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Ledger stores expiring credit packs per owner in the counter store and
// consumes them oldest-first, so packs closest to expiry are spent before
// they are wasted.
//
// The store offers no transactions across the list/check/write cycle, so
// Deduct serializes per owner with an in-process mutex. That closes the
// race between two deductions in one process; cross-instance races remain
// a documented limitation of the KV backend.
type Ledger struct {
	store counterstore.Store

	mu     sync.Mutex
	owners map[string]*sync.Mutex

	now func() time.Time
}

func NewLedger(store counterstore.Store) *Ledger {
	return &Ledger{
		store:  store,
		owners: make(map[string]*sync.Mutex),
		now:    time.Now,
	}
}

// Balance sums the active packs for an owner. Recomputed on every call,
// never cached.
func (l *Ledger) Balance(ctx context.Context, ownerID string) (int64, error) {
	packs, err := l.ListActivePacks(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, pack := range packs {
		total += pack.UnitsTenths
	}

	return total, nil
}

// Grant creates a new pack and returns its id. Unlike rate limiting,
// credit writes never fail open: a store error here is a hard error.
func (l *Ledger) Grant(ctx context.Context, ownerID string, tenths int64, ttlDays int) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("grant: empty owner id")
	}
	if tenths <= 0 {
		return "", fmt.Errorf("grant: units must be positive, got %d", tenths)
	}
	if ttlDays <= 0 {
		return "", fmt.Errorf("grant: ttl must be positive, got %d days", ttlDays)
	}

	now := l.now()
	ttl := time.Duration(ttlDays) * 24 * time.Hour

	pack := CreditPack{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		UnitsTenths: tenths,
		CreatedAt:   now.UnixMilli(),
		ExpiresAt:   now.Add(ttl).UnixMilli(),
	}

	if err := l.writePack(ctx, pack); err != nil {
		return "", err
	}

	return pack.ID, nil
}

// ListActivePacks returns the owner's unexpired packs sorted oldest
// first (the deduction order).
func (l *Ledger) ListActivePacks(ctx context.Context, ownerID string) ([]CreditPack, error) {
	keys, err := l.store.ListByPrefix(ctx, ownerPrefix(ownerID), 0)
	if err != nil {
		return nil, err
	}

	nowMs := l.now().UnixMilli()
	packs := make([]CreditPack, 0, len(keys))

	for _, key := range keys {
		raw, found, err := l.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}

		pack, valid := parsePack(raw)
		if !valid || pack.ExpiresAt <= nowMs {
			continue
		}

		packs = append(packs, pack)
	}

	sort.Slice(packs, func(i, j int) bool {
		return packs[i].CreatedAt < packs[j].CreatedAt
	})

	return packs, nil
}

// Deduct takes tenths from the owner's packs in FIFO order. When the
// total balance is short the call returns ErrInsufficientCredits and
// mutates nothing. Store failures propagate as hard errors - a timeout
// must never silently grant credit.
func (l *Ledger) Deduct(ctx context.Context, ownerID string, tenths int64) error {
	if tenths <= 0 {
		return fmt.Errorf("deduct: units must be positive, got %d", tenths)
	}

	lock := l.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	packs, err := l.ListActivePacks(ctx, ownerID)
	if err != nil {
		return err
	}

	var total int64
	for _, pack := range packs {
		total += pack.UnitsTenths
	}

	// Checked before any write so a failed deduction never partially
	// applies
	if total < tenths {
		return ErrInsufficientCredits
	}

	remaining := tenths
	for _, pack := range packs {
		if remaining == 0 {
			break
		}

		take := pack.UnitsTenths
		if take > remaining {
			take = remaining
		}

		pack.UnitsTenths -= take
		remaining -= take

		if pack.UnitsTenths == 0 {
			if _, err := l.store.Delete(ctx, packKey(pack.OwnerID, pack.ID)); err != nil {
				return err
			}
			continue
		}

		if err := l.writePack(ctx, pack); err != nil {
			return err
		}
	}

	return nil
}

func (l *Ledger) writePack(ctx context.Context, pack CreditPack) error {
	ttl := time.Duration(pack.ExpiresAt-l.now().UnixMilli()) * time.Millisecond
	if ttl <= 0 {
		return fmt.Errorf("pack %s already expired", pack.ID)
	}

	data, err := marshalPack(pack)
	if err != nil {
		return err
	}

	return l.store.Put(ctx, packKey(pack.OwnerID, pack.ID), data, ttl)
}

func (l *Ledger) ownerLock(ownerID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.owners[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		l.owners[ownerID] = lock
	}

	return lock
}
