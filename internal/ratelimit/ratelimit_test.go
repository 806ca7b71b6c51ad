package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_BurstThenBlock(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := NewMemory(3)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := m.Allow(ctx, "alice|10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}
	ok, _ := m.Allow(ctx, "alice|10.0.0.1")
	assert.False(t, ok)

	ok, _ = m.Allow(ctx, "bob|10.0.0.1")
	assert.True(t, ok, "keys are independent")

	// One token refills every 20 seconds.
	now = now.Add(21 * time.Second)
	ok, _ = m.Allow(ctx, "alice|10.0.0.1")
	assert.True(t, ok)
	ok, _ = m.Allow(ctx, "alice|10.0.0.1")
	assert.False(t, ok)
}

func TestMemory_DropsIdleKeys(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := NewMemory(1)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = m.Allow(ctx, "idle")
	now = now.Add(limiterTTL + cleanupInterval + time.Second)
	_, _ = m.Allow(ctx, "fresh")

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.entries, "idle")
	assert.Contains(t, m.entries, "fresh")
}

func TestRedis_FixedWindow(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping redis limiter tests")
	}
	ctx := context.Background()

	client, err := Dial(ctx, url)
	require.NoError(t, err)
	r := NewRedis(client, 2)
	defer r.Close()

	key := "test-" + uuid.NewString()
	defer client.Del(ctx, keyPrefix+key)

	ok, err := r.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := client.PTTL(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	// Shorten the window; later hits must not push it back out.
	require.NoError(t, client.PExpire(ctx, keyPrefix+key, 30*time.Second).Err())

	ok, err = r.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err = client.PTTL(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 30*time.Second)
}
