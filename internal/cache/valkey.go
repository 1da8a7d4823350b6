package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// ValkeyClient caches marshalled availability responses keyed by query
// parameters. Raw JSON is stored to avoid unmarshal/marshal overhead on hits.
type ValkeyClient struct {
	client *redis.Client
}

func NewValkeyClient() (*ValkeyClient, error) {
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	password := os.Getenv("VALKEY_PASSWORD")

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyClient{client: rdb}, nil
}

func availabilityKey(startDate, endDate string, participants int) string {
	return fmt.Sprintf("availability:%s:%s:%d", startDate, endDate, participants)
}

// GetAvailabilityRaw returns the cached raw JSON for the query, or an error
// on miss.
func (v *ValkeyClient) GetAvailabilityRaw(ctx context.Context, startDate, endDate string, participants int) ([]byte, error) {
	data, err := v.client.Get(ctx, availabilityKey(startDate, endDate, participants)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("availability not cached")
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}
	return data, nil
}

// SetAvailability stores the raw JSON with the given TTL. Cache write errors
// are returned but callers treat them as non-fatal.
func (v *ValkeyClient) SetAvailability(ctx context.Context, startDate, endDate string, participants int, raw []byte, ttl time.Duration) error {
	return v.client.Set(ctx, availabilityKey(startDate, endDate, participants), raw, ttl).Err()
}

// InvalidateAvailability drops every cached availability response. Called by
// the consumers when a lifecycle event changes remaining capacity, so stale
// reads last at most one event-propagation delay instead of a full TTL.
func (v *ValkeyClient) InvalidateAvailability(ctx context.Context) error {
	iter := v.client.Scan(ctx, 0, "availability:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan error: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return v.client.Del(ctx, keys...).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
