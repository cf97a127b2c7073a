package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCache_ExpiresEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	clock := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.SetEntry(ctx, "funnel:30", []byte(`{"ok":true}`), 10*time.Minute))
	got, ok := s.Get(ctx, "funnel:30")
	require.True(t, ok)
	assert.JSONEq(t, `{"ok":true}`, string(got))

	// overwrite keeps one row
	s.Set(ctx, "funnel:30", []byte(`{"ok":false}`), 10*time.Minute)
	got, ok = s.Get(ctx, "funnel:30")
	require.True(t, ok)
	assert.JSONEq(t, `{"ok":false}`, string(got))

	clock = clock.Add(10 * time.Minute)
	_, ok = s.Get(ctx, "funnel:30")
	assert.False(t, ok)

	_, ok = s.Get(ctx, "never-set")
	assert.False(t, ok)
}

func TestStoreCache_ZeroTTLIsNoop(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetEntry(ctx, "k", []byte("v"), 0))
	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStoreCache_PurgeExpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	clock := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	require.NoError(t, s.SetEntry(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, s.SetEntry(ctx, "long", []byte("b"), time.Hour))

	clock = clock.Add(2 * time.Minute)
	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok := s.Get(ctx, "long")
	assert.True(t, ok)
}

func TestMemoryCache(t *testing.T) {
	clock := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(func() time.Time { return clock })
	ctx := context.Background()

	value := []byte("report")
	c.Set(ctx, "k", value, time.Minute)
	value[0] = 'X'

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "report", string(got))

	c.Set(ctx, "ignored", []byte("v"), 0)
	assert.Equal(t, 1, c.Len())

	clock = clock.Add(time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
