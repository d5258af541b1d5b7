package repository

import (
	"context"
	"testing"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/config"
	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	client, err := NewRedisClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewRedisClientRequiresAddr(t *testing.T) {
	_, err := NewRedisClient(&config.Config{})
	assert.Error(t, err)
}

func TestRedisDealRepoNewestFirstAndCapped(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRedisDealRepo(client, "test:deals", 3)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 4; i++ {
		winner := "a"
		if i%2 == 0 {
			winner = "b"
		}
		require.NoError(t, repo.Insert(ctx, &model.Deal{
			RoundID:   uint64(i),
			LotName:   "tulips",
			WinnerID:  winner,
			Price:     decimal.NewFromInt(int64(100 * i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	deals, err := repo.Recent(ctx, model.DealFilter{})
	require.NoError(t, err)
	require.Len(t, deals, 3, "list is trimmed to listMax")
	assert.Equal(t, uint64(4), deals[0].RoundID)
	assert.Equal(t, uint64(4), deals[0].ID)
	assert.True(t, deals[0].Price.Equal(decimal.NewFromInt(400)))

	deals, err = repo.Recent(ctx, model.DealFilter{WinnerID: "a"})
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, uint64(3), deals[0].RoundID)

	from := base.Add(150 * time.Second)
	deals, err = repo.Recent(ctx, model.DealFilter{From: &from, Limit: 1})
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, uint64(4), deals[0].RoundID)
}

func TestRedisIdempotencyStore(t *testing.T) {
	client, mr := newTestRedis(t)
	store := NewRedisIdempotencyStore(client, time.Minute)

	rec, hit := store.GetOrLock("human:k1")
	assert.False(t, hit)
	assert.Nil(t, rec)

	rec, hit = store.GetOrLock("human:k1")
	require.True(t, hit)
	assert.True(t, rec.Processing)

	store.Save("human:k1", 200, []byte(`{"status":"ok"}`))
	rec, hit = store.GetOrLock("human:k1")
	require.True(t, hit)
	assert.False(t, rec.Processing)
	assert.Equal(t, 200, rec.Status)
	assert.JSONEq(t, `{"status":"ok"}`, string(rec.Body))

	store.Unlock("human:k1")
	_, hit = store.GetOrLock("human:k1")
	assert.False(t, hit)

	mr.FastForward(2 * time.Minute)
	_, hit = store.GetOrLock("human:k1")
	assert.False(t, hit, "lock expires with the ttl")
}

func TestRedisClientPing(t *testing.T) {
	client, mr := newTestRedis(t)
	require.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}
