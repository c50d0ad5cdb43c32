package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Minute

// Lock makes a cycle exclusive across workers.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
	ExtendIfOwner(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}

// RedisLock is a single-key Redis lock owned through a random token. While held, the
// ttl is renewed every ttl/3 so a long cycle keeps its lock; a worker that dies lets it
// lapse after one ttl.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	owner string
	stop  context.CancelFunc
	done  chan struct{}
	lost  bool
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("lock store is required")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != "" {
		return false, errors.New("lock already held by this worker")
	}
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", l.key, err)
	}
	if !ok {
		return false, nil
	}
	renewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.owner, l.stop, l.done, l.lost = token, cancel, make(chan struct{}), false
	go l.renew(renewCtx, token, l.done)
	return true, nil
}

func (l *RedisLock) renew(ctx context.Context, token string, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(l.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ok, err := l.store.ExtendIfOwner(ctx, l.key, token, l.ttl)
			if err == nil && !ok {
				l.mu.Lock()
				l.lost = true
				l.mu.Unlock()
				return
			}
		}
	}
}

// Lost reports whether the lock expired or was taken over while held.
func (l *RedisLock) Lost() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lost
}

// Release stops renewal and deletes the key if this worker still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token, stop, done := l.owner, l.stop, l.done
	l.owner, l.stop, l.done = "", nil, nil
	l.mu.Unlock()
	if token == "" {
		return nil
	}
	stop()
	<-done
	if _, err := l.store.ReleaseIfOwner(ctx, l.key, token); err != nil {
		return fmt.Errorf("unlock %s: %w", l.key, err)
	}
	return nil
}
