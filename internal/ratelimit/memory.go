package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	cleanupInterval = 5 * time.Minute
	limiterTTL      = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// Memory is a token bucket per key that refills perMinute tokens a minute
// with a burst of perMinute. Idle keys are dropped after limiterTTL.
type Memory struct {
	mu          sync.Mutex
	entries     map[string]*limiterEntry
	every       rate.Limit
	burst       int
	lastCleanup time.Time
	now         func() time.Time
}

func NewMemory(perMinute int) *Memory {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &Memory{
		entries: make(map[string]*limiterEntry),
		every:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastCleanup) > cleanupInterval {
		for k, e := range m.entries {
			if now.Sub(e.lastUse) > limiterTTL {
				delete(m.entries, k)
			}
		}
		m.lastCleanup = now
	}

	e, ok := m.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(m.every, m.burst)}
		m.entries[key] = e
	}
	e.lastUse = now
	return e.limiter.AllowN(now, 1), nil
}
