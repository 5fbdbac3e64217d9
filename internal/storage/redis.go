package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "capture_bridge:payment:"

// RedisStore keeps each record as a JSON document under its own key.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

type redisDocument struct {
	Gateway   string          `json:"gateway"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewRedisStore creates a store on addr. ttl 0 keeps records forever.
func NewRedisStore(addr, password string, db int, ttl time.Duration) *RedisStore {
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}), ttl)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("storage: failed to ping Redis: %w", err)
	}
	return nil
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, r *Record) error {
	now := s.now().UTC()
	doc, err := s.document(r, now, now)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+r.ID, doc, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", r.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrExists, r.ID)
	}
	r.CreatedAt, r.UpdatedAt = now, now
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", id, err)
	}
	var doc redisDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", id, err)
	}
	return snapshot{
		gateway:   doc.Gateway,
		details:   doc.Details,
		createdAt: doc.CreatedAt,
		updatedAt: doc.UpdatedAt,
	}.record(id)
}

// Update implements Store. The record must exist.
func (s *RedisStore) Update(ctx context.Context, r *Record) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		current, err := s.Get(ctx, r.ID)
		if err != nil {
			return err
		}
		createdAt = current.CreatedAt
	}
	now := s.now().UTC()
	doc, err := s.document(r, createdAt, now)
	if err != nil {
		return err
	}
	ttl := s.ttl
	if ttl == 0 {
		ttl = redis.KeepTTL
	}
	ok, err := s.client.SetXX(ctx, redisKeyPrefix+r.ID, doc, ttl).Result()
	if err != nil {
		return fmt.Errorf("storage: update %s: %w", r.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, r.ID)
	}
	r.CreatedAt, r.UpdatedAt = createdAt, now
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("storage: failed to close Redis connection: %w", err)
	}
	return nil
}

func (s *RedisStore) document(r *Record, createdAt, updatedAt time.Time) ([]byte, error) {
	raw, err := encode(r)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(redisDocument{
		Gateway:   r.Gateway,
		Details:   raw,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: encode %s: %w", r.ID, err)
	}
	return doc, nil
}
