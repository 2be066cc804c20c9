// Package cache keeps a professional's profile, availability and blocks in
// Redis so the collision check on every drag frame does not hit Postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

const (
	KindProfile      = "profile"
	KindAvailability = "availability"
	KindBlocks       = "blocks"
)

var kinds = []string{KindProfile, KindAvailability, KindBlocks}

// Cache is a JSON read-through store scoped by tenant and professional.
type Cache interface {
	// Get decodes the cached value into dst and reports whether it was present.
	Get(ctx context.Context, scope tenant.Scope, kind string, dst any) (bool, error)
	Set(ctx context.Context, scope tenant.Scope, kind string, v any) error
	// Invalidate drops every kind cached for the scope's professional.
	Invalidate(ctx context.Context, scope tenant.Scope) error
	Ping(ctx context.Context) error
	Close() error
}

// Key returns agenda:{tenant}:{professional}:{kind}.
func Key(scope tenant.Scope, kind string) string {
	return fmt.Sprintf("agenda:%s:%s:%s", scope.TenantID, scope.ProfessionalID, kind)
}

// New connects to redisURL. An empty URL disables caching.
func New(ctx context.Context, redisURL string, ttl time.Duration) (Cache, error) {
	if redisURL == "" {
		return Nop{}, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, ttl), nil
}

// Redis implements Cache on a go-redis client.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, scope tenant.Scope, kind string, dst any) (bool, error) {
	val, err := r.client.Get(ctx, Key(scope, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", kind, err)
	}
	if err := json.Unmarshal(val, dst); err != nil {
		// A payload from an older release is treated as a miss.
		return false, nil
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, scope tenant.Scope, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", kind, err)
	}
	if err := r.client.Set(ctx, Key(scope, kind), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", kind, err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, scope tenant.Scope) error {
	keys := make([]string, 0, len(kinds))
	for _, k := range kinds {
		keys = append(keys, Key(scope, k))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, tenant.Scope, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, tenant.Scope, string, any) error         { return nil }
func (Nop) Invalidate(context.Context, tenant.Scope) error               { return nil }
func (Nop) Ping(context.Context) error                                   { return nil }
func (Nop) Close() error                                                 { return nil }
