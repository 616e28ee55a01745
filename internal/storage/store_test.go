package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRedisAddr = "localhost:6379"

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "room-a", "config")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "room-a", "config", []byte(`{"type":"public"}`)))
	require.NoError(t, s.Put(ctx, "room-a", "userRoles", []byte(`{}`)))
	require.NoError(t, s.Put(ctx, "room-b", "config", []byte(`{"type":"private"}`)))

	v, err := s.Get(ctx, "room-a", "config")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"public"}`, string(v))

	// whole-value overwrite
	require.NoError(t, s.Put(ctx, "room-a", "config", []byte(`{}`)))
	v, err = s.Get(ctx, "room-a", "config")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(v))

	require.NoError(t, s.DeleteAll(ctx, "room-a"))
	_, err = s.Get(ctx, "room-a", "config")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "room-a", "userRoles")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err = s.Get(ctx, "room-b", "config")
	require.NoError(t, err, "other rooms are untouched")
	assert.Equal(t, `{"type":"private"}`, string(v))

	assert.NoError(t, s.DeleteAll(ctx, "never-existed"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, s.Put(ctx, "r", "k", buf))
	buf[0] = 'x'
	v, err := s.Get(ctx, "r", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "cipher.db")
	s, err := OpenBolt(path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	s, err = OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Get(context.Background(), "room-b", "config")
	require.NoError(t, err, "survives reopen")
	assert.Equal(t, `{"type":"private"}`, string(v))
}

func TestRedisStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	prefix := "cipher-test:" + t.Name() + ":"
	t.Cleanup(func() {
		client.Del(ctx, prefix+"room-a", prefix+"room-b")
		client.Close()
	})
	exerciseStore(t, NewRedisStore(client, prefix))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "etcd"})
	assert.Error(t, err)

	s, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}
