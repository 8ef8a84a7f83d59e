package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "crm:dash"

// LookupRecorder observes cache hits and misses.
type LookupRecorder interface {
	RecordCacheLookup(hit bool)
}

// Cache stores rendered dashboards in Redis under a per-company version, so a
// single increment invalidates every dashboard of that company.
type Cache struct {
	client   *redis.Client
	ttl      time.Duration
	recorder LookupRecorder
	flight   singleflight.Group
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration, recorder LookupRecorder) *Cache {
	return &Cache{client: client, ttl: ttl, recorder: recorder}
}

func versionKey(companyID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:version", keyPrefix, companyID)
}

// Version returns the company's cache version, initialising it when missing.
func (c *Cache) Version(ctx context.Context, companyID uuid.UUID) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(companyID)).Int64()
	if errors.Is(err, redis.Nil) {
		// SetNX keeps a concurrent Bump from being overwritten.
		if err := c.client.SetNX(ctx, versionKey(companyID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(companyID)).Int64()
	}
	return ver, err
}

// BuildKey composes crm:dash:<company>:<parts...>:v<version>.
func (c *Cache) BuildKey(ctx context.Context, companyID uuid.UUID, parts ...string) (string, error) {
	base := strings.Join(append([]string{keyPrefix, companyID.String()}, parts...), ":")
	ver, err := c.Version(ctx, companyID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", base, ver), nil
}

// FetchJSON loads a cached value into dest or populates it using the loader.
// Concurrent misses on one key share a single loader call. Redis failures
// fall through to the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		c.record(true)
		return json.Unmarshal(payload, dest)
	}
	c.record(false)

	shared, err, _ := c.flight.Do(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(shared.([]byte), dest)
}

// Bump invalidates every cached dashboard of the company.
func (c *Cache) Bump(ctx context.Context, companyID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(companyID)).Err()
}

func (c *Cache) record(hit bool) {
	if c.recorder != nil {
		c.recorder.RecordCacheLookup(hit)
	}
}
