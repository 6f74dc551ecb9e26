package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Code string `json:"code"`
}

func TestJSONRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	slot := NewJSON[[]sample](rdb, "ledger:accounts", time.Minute)
	_, ok, err := slot.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, slot.Set(ctx, []sample{{Code: "1-10001"}}))
	got, ok, err := slot.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []sample{{Code: "1-10001"}}, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = slot.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, slot.Set(ctx, nil))
	require.NoError(t, slot.Invalidate(ctx))
	_, ok, _ = slot.Get(ctx)
	require.False(t, ok)
}

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client, err := New(context.Background(), addr)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	// Addr is unusable once the server is closed.
	mr.Close()
	_, err = New(context.Background(), addr)
	require.Error(t, err)
}

func TestNilSlotIsNoop(t *testing.T) {
	var slot *JSON[int]
	_, ok, err := slot.Get(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, slot.Set(context.Background(), 1))
}
