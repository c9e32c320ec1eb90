package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	defaultNamespace = "lg"
	blobPrefix       = "kv"
	rateLimitPrefix  = "rate_limit"
	changesChannel   = "changes"
	scanBatch        = 200
)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	Scan(context.Context, uint64, string, int64) *redis.ScanCmd
	Publish(context.Context, string, any) *redis.IntCmd
}

type subscriber interface {
	Subscribe(context.Context, ...string) *redis.PubSub
}

// Client is the Redis-backed kv.Backend. Blobs live under <ns>:kv:<key>, and
// every write is announced on <ns>:changes so other replicas can resync.
type Client struct {
	store     cmdable
	pubsub    subscriber
	raw       *redis.Client
	namespace string
	logg      *logger.Logger
}

var _ kv.Backend = (*Client)(nil)

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "redis_addr", opts.Addr), "redis connection established")
	}
	return NewFromClient(raw, cfg.Namespace, logg), nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(raw *redis.Client, namespace string, logg *logger.Logger) *Client {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Client{store: raw, pubsub: raw, raw: raw, namespace: namespace, logg: logg}
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

func (c *Client) ready() error {
	if c == nil || c.store == nil {
		return errors.New("redis client not initialized")
	}
	return nil
}

// Get returns the blob stored at key.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if err := c.ready(); err != nil {
		return "", false, err
	}
	value, err := c.store.Get(ctx, c.BlobKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores a blob without expiry and announces the change.
func (c *Client) Set(ctx context.Context, key, value string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.store.Set(ctx, c.BlobKey(key), value, 0).Err(); err != nil {
		return err
	}
	c.announce(ctx, kv.Change{Key: key, Op: kv.OpSet})
	return nil
}

// Delete removes key and announces the change when something was deleted.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.ready(); err != nil {
		return err
	}
	removed, err := c.store.Del(ctx, c.BlobKey(key)).Result()
	if err != nil {
		return err
	}
	if removed > 0 {
		c.announce(ctx, kv.Change{Key: key, Op: kv.OpDelete})
	}
	return nil
}

// Keys walks the blob namespace with SCAN and returns unprefixed keys.
func (c *Client) Keys(ctx context.Context) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	prefix := c.BlobKey("")
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := c.store.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan keys: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return keys, nil
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	ok, err := c.store.SetNX(ctx, c.BlobKey(key), value, ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		c.announce(ctx, kv.Change{Key: key, Op: kv.OpSet})
	}
	return ok, nil
}

// Subscribe listens on the changes channel until ctx is done.
func (c *Client) Subscribe(ctx context.Context) (<-chan kv.Change, error) {
	if c == nil || c.pubsub == nil {
		return nil, errors.New("redis client not initialized")
	}
	sub := c.pubsub.Subscribe(ctx, c.ChangesChannel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", c.ChangesChannel(), err)
	}

	out := make(chan kv.Change, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change kv.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil || change.Key == "" {
					c.warn(ctx, "redis.change.undecodable")
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Incr increments the counter stored at key.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return c.store.Incr(ctx, key).Result()
}

// IncrWithTTL increments and ensures the key has the supplied TTL on the first increment.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := c.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if ttl > 0 && count == 1 {
		if _, expErr := c.store.Expire(ctx, key, ttl).Result(); expErr != nil {
			return count, expErr
		}
	}
	return count, nil
}

// FixedWindowAllow applies a simple fixed-window rate limit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := c.IncrWithTTL(ctx, c.RateLimitKey(scope), window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// BlobKey returns the namespaced key a storefront key is stored under.
func (c *Client) BlobKey(key string) string {
	return c.buildKey(blobPrefix) + ":" + key
}

// RateLimitKey returns a namespaced key for rate limit counters.
func (c *Client) RateLimitKey(scope string) string {
	return c.buildKey(rateLimitPrefix, scope)
}

// ChangesChannel names the Pub/Sub channel carrying key changes.
func (c *Client) ChangesChannel() string {
	return c.buildKey(changesChannel)
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) announce(ctx context.Context, change kv.Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		return
	}
	if err := c.store.Publish(ctx, c.ChangesChannel(), payload).Err(); err != nil && c.logg != nil {
		c.logg.Error(c.logg.WithKey(ctx, change.Key), "redis.change.publish_failed", err)
	}
}

func (c *Client) warn(ctx context.Context, msg string) {
	if c.logg != nil {
		c.logg.Warn(ctx, msg)
	}
}

func (c *Client) buildKey(parts ...string) string {
	namespace := defaultNamespace
	if c != nil && c.namespace != "" {
		namespace = c.namespace
	}
	clean := []string{namespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}
