package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mindwell-dev/mindwell/internal/chat"
	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/report"
)

// RedisBackend implements Backend using Redis. It provides distributed
// session storage suitable for multi-node deployments.
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for all keys (default: "mindwell:session:").
	Prefix string
	// SessionTTL is the session expiry duration (0 = never expire).
	SessionTTL time.Duration
	// PoolSize is the connection pool size (default: 10).
	PoolSize int
}

// NewRedisBackend creates a new Redis storage backend.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "mindwell:session:"
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisBackend{
		client: client,
		prefix: prefix,
		ttl:    cfg.SessionTTL,
	}, nil
}

// NewRedisBackendFromClient creates a Redis backend from an existing client.
// This is useful for testing with miniredis.
func NewRedisBackendFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = "mindwell:session:"
	}
	return &RedisBackend{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Key helpers
func (b *RedisBackend) sessionKey(sessionID string) string {
	return b.prefix + "meta:" + sessionID
}

func (b *RedisBackend) observationsKey(sessionID string) string {
	return b.prefix + "obs:" + sessionID
}

func (b *RedisBackend) turnsKey(sessionID string) string {
	return b.prefix + "turns:" + sessionID
}

func (b *RedisBackend) reportKey(sessionID string) string {
	return b.prefix + "report:" + sessionID
}

func (b *RedisBackend) indexKey() string {
	return b.prefix + "index"
}

func (b *RedisBackend) checkClosed() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStoreClosed
	}
	return nil
}

// SaveSession creates or updates session metadata.
func (b *RedisBackend) SaveSession(ctx context.Context, rec *SessionRecord) error {
	if err := b.checkClosed(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := b.client.Pipeline()
	pipe.Set(ctx, b.sessionKey(rec.ID), data, b.ttl)
	pipe.SAdd(ctx, b.indexKey(), rec.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession retrieves session metadata by ID.
func (b *RedisBackend) LoadSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}

	data, err := b.client.Get(ctx, b.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &rec, nil
}

// ListSessions returns all session records, most recently updated first.
func (b *RedisBackend) ListSessions(ctx context.Context) ([]*SessionRecord, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}

	ids, err := b.client.SMembers(ctx, b.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	records := make([]*SessionRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := b.LoadSession(ctx, id)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				// Session expired, clean up index.
				b.client.SRem(ctx, b.indexKey(), id)
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

func (b *RedisBackend) appendTo(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := b.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	if b.ttl > 0 {
		// Expire failure is non-fatal, the entry was already saved.
		_ = b.client.Expire(ctx, key, b.ttl).Err()
	}
	return nil
}

func (b *RedisBackend) requireSession(ctx context.Context, sessionID string) error {
	err := b.client.Get(ctx, b.sessionKey(sessionID)).Err()
	if errors.Is(err, redis.Nil) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	return nil
}

// AppendObservation adds an emotion observation to a session.
func (b *RedisBackend) AppendObservation(ctx context.Context, sessionID string, obs emotion.Observation) error {
	if err := b.checkClosed(); err != nil {
		return err
	}
	if err := b.requireSession(ctx, sessionID); err != nil {
		return err
	}
	return b.appendTo(ctx, b.observationsKey(sessionID), obs)
}

// LoadObservations retrieves all observations for a session in order.
func (b *RedisBackend) LoadObservations(ctx context.Context, sessionID string) ([]emotion.Observation, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	if err := b.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}

	data, err := b.client.LRange(ctx, b.observationsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}

	out := make([]emotion.Observation, 0, len(data))
	for _, d := range data {
		var obs emotion.Observation
		if err := json.Unmarshal([]byte(d), &obs); err != nil {
			return nil, fmt.Errorf("unmarshal observation: %w", err)
		}
		out = append(out, obs)
	}
	return out, nil
}

// AppendTurn adds a conversation turn to a session.
func (b *RedisBackend) AppendTurn(ctx context.Context, sessionID string, turn chat.Turn) error {
	if err := b.checkClosed(); err != nil {
		return err
	}
	if err := b.requireSession(ctx, sessionID); err != nil {
		return err
	}
	return b.appendTo(ctx, b.turnsKey(sessionID), turn)
}

// LoadTurns retrieves all turns for a session in order.
func (b *RedisBackend) LoadTurns(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	if err := b.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}

	data, err := b.client.LRange(ctx, b.turnsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}

	out := make([]chat.Turn, 0, len(data))
	for _, d := range data {
		var turn chat.Turn
		if err := json.Unmarshal([]byte(d), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		out = append(out, turn)
	}
	return out, nil
}

// SaveReport stores the end-of-session report.
func (b *RedisBackend) SaveReport(ctx context.Context, rep *report.Report) error {
	if err := b.checkClosed(); err != nil {
		return err
	}
	if err := b.requireSession(ctx, rep.SessionID); err != nil {
		return err
	}

	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := b.client.Set(ctx, b.reportKey(rep.SessionID), data, b.ttl).Err(); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// LoadReport retrieves a session's report.
func (b *RedisBackend) LoadReport(ctx context.Context, sessionID string) (*report.Report, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}

	data, err := b.client.Get(ctx, b.reportKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("get report: %w", err)
	}

	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &rep, nil
}

// Close releases resources held by the backend.
func (b *RedisBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.client.Close()
}

// Ping checks if the Redis connection is alive.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.checkClosed(); err != nil {
		return err
	}
	return b.client.Ping(ctx).Err()
}
