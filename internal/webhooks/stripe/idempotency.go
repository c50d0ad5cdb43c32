package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/w3bsuki/driplo-final/pkg/redis"
)

// ClaimState is the outcome of claiming a webhook event id.
type ClaimState int

const (
	// ClaimAcquired means this delivery owns the event and must Complete or Release it.
	ClaimAcquired ClaimState = iota
	// ClaimInProgress means another delivery of the same event is still being applied.
	ClaimInProgress
	// ClaimDone means the event was already applied.
	ClaimDone
)

const (
	markerProcessing  = "processing"
	markerDone        = "done"
	processingTimeout = 2 * time.Minute
)

type markerStore interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// IdempotencyGuard tracks webhook event ids in redis so each event is applied
// at most once across API replicas.
type IdempotencyGuard struct {
	store markerStore
	ttl   time.Duration
	scope string
}

// NewIdempotencyGuard remembers completed events for ttl.
func NewIdempotencyGuard(store markerStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("webhook idempotency store is required")
	case ttl <= 0:
		return nil, errors.New("webhook idempotency ttl must be positive")
	case scope == "":
		return nil, errors.New("webhook idempotency scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope}, nil
}

func (g *IdempotencyGuard) Claim(ctx context.Context, eventID string) (ClaimState, error) {
	if eventID == "" {
		return 0, errors.New("event id is required")
	}
	key := g.key(eventID)
	ok, err := g.store.SetNX(ctx, key, markerProcessing, processingTimeout)
	if err != nil {
		return 0, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	if ok {
		return ClaimAcquired, nil
	}

	marker, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// the other claim expired or was released just now
		return g.Claim(ctx, eventID)
	case err != nil:
		return 0, fmt.Errorf("read event marker %s: %w", eventID, err)
	case marker == markerDone:
		return ClaimDone, nil
	default:
		return ClaimInProgress, nil
	}
}

// Complete records the event as applied for the guard's ttl.
func (g *IdempotencyGuard) Complete(ctx context.Context, eventID string) error {
	return g.store.Set(ctx, g.key(eventID), markerDone, g.ttl)
}

// Release drops a claim after a failed apply so the next delivery retries it.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	return g.store.Del(ctx, g.key(eventID))
}

func (g *IdempotencyGuard) key(eventID string) string {
	return g.store.IdempotencyKey(g.scope, eventID)
}
