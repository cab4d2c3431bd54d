package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/logging"
)

func init() {
	RegisterFactory(&redisFactory{})
}

type redisFactory struct{}

func (f *redisFactory) Type() string { return "redis" }

func (f *redisFactory) Validate(config Config) error {
	if len(config.Endpoints) == 0 {
		return errors.New("at least one endpoint is required")
	}
	if config.MaxLen < 0 {
		return errors.New("max length must be non-negative")
	}
	return nil
}

func (f *redisFactory) Create(ctx context.Context, config Config) (core.ChangePublisher, error) {
	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	// Only single-node Redis is supported; extra endpoints are ignored.
	client := redis.NewClient(&redis.Options{
		Addr:         config.Endpoints[0],
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  dialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisPublisher(client, config.KeyPrefix, config.MaxLen), nil
}

// RedisClient is the subset of *redis.Client used by the publisher.
type RedisClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Close() error
}

// RedisPublisher appends events as JSON to Redis lists: one list per table
// and one global list, so consumers can follow either.
type RedisPublisher struct {
	client RedisClient
	prefix string
	maxLen int64
	mu     sync.RWMutex
	closed bool
}

// NewRedisPublisher creates a publisher over client. prefix namespaces the
// list keys (default "thinorm:changes"); maxLen > 0 caps each list.
func NewRedisPublisher(client RedisClient, prefix string, maxLen int64) *RedisPublisher {
	if prefix == "" {
		prefix = "thinorm:changes"
	}
	return &RedisPublisher{client: client, prefix: prefix, maxLen: maxLen}
}

// TableKey returns the list key for a table's events.
func (p *RedisPublisher) TableKey(table string) string {
	return fmt.Sprintf("%s:%s", p.prefix, table)
}

// GlobalKey returns the list key holding every event.
func (p *RedisPublisher) GlobalKey() string {
	return fmt.Sprintf("%s:global", p.prefix)
}

// Publish pushes the event to its table list (when it has a table) and the global list.
func (p *RedisPublisher) Publish(ctx context.Context, event *core.ChangeEvent) error {
	if err := checkEvent(event); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	keys := []string{p.GlobalKey()}
	if event.Table != "" {
		keys = []string{p.TableKey(event.Table), p.GlobalKey()}
	}
	for _, key := range keys {
		if err := p.client.RPush(ctx, key, data).Err(); err != nil {
			return fmt.Errorf("failed to push event to %s: %w", key, err)
		}
		if p.maxLen > 0 {
			if err := p.client.LTrim(ctx, key, -p.maxLen, -1).Err(); err != nil {
				return fmt.Errorf("failed to trim %s: %w", key, err)
			}
		}
	}

	logging.For("changefeed").Debug("event pushed to redis",
		"id", event.ID, "table", event.Table, "operation", event.Operation, "bytes", len(data))
	return nil
}

// Close closes the Redis client.
func (p *RedisPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.client.Close()
}
