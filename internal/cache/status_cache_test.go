package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/pix-reconciler/internal/models"
)

func newCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, time.Minute), mr
}

func TestPutGetTerminal(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	in := models.Transaction{
		ID:          "tx-1",
		Amount:      1999,
		State:       models.StatePaid,
		Origin:      models.OriginCreated,
		ConfirmedAt: &at,
		Payer:       &models.Party{Name: "Ana", Document: "12345678901"},
	}
	require.NoError(t, c.Put(ctx, in))
	assert.True(t, mr.Exists(keyPrefix+"tx-1"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"tx-1"))

	got, ok, err := c.Get(ctx, "tx-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.Money(1999), got.Amount)
	assert.Equal(t, models.StatePaid, got.State)
	require.NotNil(t, got.ConfirmedAt)
	assert.True(t, at.Equal(*got.ConfirmedAt))
	assert.Equal(t, "Ana", got.Payer.Name)
}

func TestPendingIsNotCached(t *testing.T) {
	c, mr := newCache(t)
	require.NoError(t, c.Put(context.Background(), models.Transaction{ID: "tx-2", State: models.StatePending}))
	assert.False(t, mr.Exists(keyPrefix+"tx-2"))
}

func TestMissAndInvalidate(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, models.Transaction{ID: "tx-3", State: models.StateExpired}))
	require.NoError(t, c.Invalidate(ctx, "tx-3"))
	_, ok, err = c.Get(ctx, "tx-3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetSurfacesRedisFailure(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()
	_, _, err := c.Get(context.Background(), "tx-4")
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NoError(t, rdb.Close())
}
