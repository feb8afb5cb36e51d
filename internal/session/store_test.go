package session_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/msomdec/accounts/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ session.Store = (*session.MemoryStore)(nil)
	_ session.Store = (*session.RedisStore)(nil)
)

func exerciseStore(t *testing.T, store session.Store) {
	t.Helper()
	ctx := context.Background()

	s, err := session.New(time.Hour)
	require.NoError(t, err)
	s.AccessUnlocked = true
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.AccessUnlocked)
	assert.False(t, got.Authenticated())

	got.UserID = 42
	got.AuthHash = "fp"
	require.NoError(t, store.Save(ctx, got))

	again, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), again.UserID)
	assert.True(t, again.Authenticated())

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, session.NewMemoryStore())
}

func TestMemoryStore_Expired(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	s, err := session.New(-time.Second)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, s))

	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := session.DialRedis(context.Background(), addr, os.Getenv("REDIS_PASSWORD"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	exerciseStore(t, session.NewRedisStore(client))
}

func TestGenerateID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id, err := session.GenerateID()
		require.NoError(t, err)
		assert.Len(t, id, 43)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
