// Package lock provides redis-backed advisory locks for ledger batch jobs.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PeriodLocker takes one lock per period, always in ascending id order so two jobs on
// overlapping periods cannot deadlock. Held locks are refreshed every ttl/3 until
// released, so a job may run longer than ttl.
type PeriodLocker struct {
	client *redislock.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewPeriodLocker(rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *PeriodLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PeriodLocker{client: redislock.New(rdb), ttl: ttl, logger: logger}
}

// Lock obtains every period lock or none. ErrPeriodBusy is returned when another holder
// owns one of them.
func (l *PeriodLocker) Lock(ctx context.Context, periodIDs ...int64) (func(context.Context), error) {
	ids := uniqueSorted(periodIDs)
	held := make([]*redislock.Lock, 0, len(ids))
	stop := make(chan struct{})
	var once sync.Once
	release := func(ctx context.Context) {
		once.Do(func() { close(stop) })
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.logger.Warn("release period lock", slog.String("key", held[i].Key()), slog.Any("error", err))
			}
		}
	}
	for _, id := range ids {
		key := internalShared.PeriodLockKey(id)
		lk, err := l.client.Obtain(ctx, key, l.ttl, nil)
		if err != nil {
			release(context.WithoutCancel(ctx))
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, fmt.Errorf("%w: period %d", shared.ErrPeriodBusy, id)
			}
			return nil, fmt.Errorf("platform/lock: obtain %s: %w", key, err)
		}
		held = append(held, lk)
	}
	go l.keepAlive(held, stop)
	return release, nil
}

func (l *PeriodLocker) keepAlive(held []*redislock.Lock, stop <-chan struct{}) {
	ticker := time.NewTicker(max(l.ttl/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		for _, lk := range held {
			ctx, cancel := context.WithTimeout(context.Background(), max(l.ttl/3, time.Second))
			err := lk.Refresh(ctx, l.ttl, nil)
			cancel()
			select {
			case <-stop:
				return
			default:
			}
			if errors.Is(err, redislock.ErrNotObtained) {
				l.logger.Error("period lock lost", slog.String("key", lk.Key()))
				return
			}
			if err != nil {
				l.logger.Warn("refresh period lock", slog.String("key", lk.Key()), slog.Any("error", err))
			}
		}
	}
}

func uniqueSorted(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
