// Package storage persists named per-room records. Values are opaque bytes;
// the room layer owns their encoding.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks . Store

var ErrNotFound = errors.New("record not found")

// Store is a whole-value key/value store scoped by room.
type Store interface {
	Get(ctx context.Context, room, key string) ([]byte, error)
	Put(ctx context.Context, room, key string, value []byte) error
	// DeleteAll drops every record of the room.
	DeleteAll(ctx context.Context, room string) error
	Close() error
}

type Driver string

const (
	DriverMemory Driver = "memory"
	DriverBolt   Driver = "bolt"
	DriverRedis  Driver = "redis"
)

type Options struct {
	Driver      Driver
	Path        string
	RedisAddr   string
	RedisPrefix string
}

// Open builds the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverBolt:
		s, err := OpenBolt(opts.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverRedis:
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", opts.RedisAddr, err)
		}
		return NewRedisStore(client, opts.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
