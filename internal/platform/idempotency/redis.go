package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	defaultRedisPrefix   = "bakery:idempotency:"
	maxReserveIterations = 3
)

// redisClient is the subset of *redis.Client used by the store.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore implements Store on Redis. Reservations use SET NX so that only one request can own
// a key, and record expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client redisClient
	prefix string
}

// RedisOption customises the RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the namespace prepended to every key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore constructs a Redis-backed store.
func NewRedisStore(client redisClient, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	store := &RedisStore{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	ttl = ttlOrDefault(ttl)
	id := s.redisKey(key)

	pending := pendingRecord(key, fingerprint, now.UTC(), ttl)
	payload, err := json.Marshal(pending)
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: encode record: %w", err)
	}

	// a record can expire between SETNX and GET, in which case the reservation is retried
	for i := 0; i < maxReserveIterations; i++ {
		created, err := s.client.SetNX(ctx, id, payload, ttl).Result()
		if err != nil {
			return Reservation{}, fmt.Errorf("idempotency: reserve: %w", err)
		}
		if created {
			return Reservation{State: ReservationStateNew, Record: pending}, nil
		}

		existing, found, err := s.load(ctx, id)
		if err != nil {
			return Reservation{}, err
		}
		if found {
			return existing.claim(fingerprint)
		}
	}
	return Reservation{}, errors.New("idempotency: reserve: key kept expiring")
}

func (s *RedisStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	ttl = ttlOrDefault(ttl)
	id := s.redisKey(key)

	stored, found, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	record, err := completion(stored, found, key, fingerprint)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(record.completed(resp, now.UTC(), ttl))
	if err != nil {
		return fmt.Errorf("idempotency: encode record: %w", err)
	}
	if err := s.client.Set(ctx, id, payload, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: save response: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, id string) (Record, bool, error) {
	raw, err := s.client.Get(ctx, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("idempotency: load: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, false, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return record, true, nil
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + documentID(key)
}
