// Package cache keeps recently served report payloads so repeated dashboard
// reads do not hit Postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache miss")

// Cacher stores opaque byte payloads under string keys.
type Cacher interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// GetJSON decodes the payload under key into v. It returns ErrMiss when the
// key is absent.
func GetJSON(ctx context.Context, c Cacher, key string, v any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func SetJSON(ctx context.Context, c Cacher, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// Nop caches nothing. It is used when no Redis URL is configured.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error { return nil }
func (Nop) Close() error { return nil }
