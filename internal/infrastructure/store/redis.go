package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rehearsal-api/internal/domain/session"
)

const keyPrefix = "rehearsal:session:"

// RedisStore persists session records as JSON values with the version
// embedded in the record. Save runs as a WATCH-guarded transaction so a
// concurrent writer aborts the commit and surfaces a version conflict.
type RedisStore struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisStore creates a Redis-backed session store and verifies
// connectivity.
func NewRedisStore(ctx context.Context, addr, password string, db int, log zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{
		client: client,
		log:    log.With().Str("component", "session-store").Logger(),
	}, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func key(id string) string {
	return keyPrefix + id
}

// Create stores a new record, failing if the id is taken.
func (s *RedisStore) Create(ctx context.Context, rec *session.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, key(rec.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return session.ErrAlreadyExists
	}
	return nil
}

// Load retrieves a record by id.
func (s *RedisStore) Load(ctx context.Context, id string) (*session.Record, error) {
	val, err := s.client.Get(ctx, key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec session.Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session record: %w", err)
	}
	return &rec, nil
}

// Save replaces the record iff the stored version still matches
// expectedVersion. A concurrent write between WATCH and EXEC aborts the
// transaction and is reported as a version conflict.
func (s *RedisStore) Save(ctx context.Context, rec *session.Record, expectedVersion int64) error {
	k := key(rec.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			return session.ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored session.Record
		if err := json.Unmarshal([]byte(val), &stored); err != nil {
			return fmt.Errorf("unmarshal session record: %w", err)
		}
		if stored.Version != expectedVersion {
			return session.ErrVersionConflict
		}

		next := rec.Clone()
		next.Version = expectedVersion + 1
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal session record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, 0)
			return nil
		})
		if err == nil {
			rec.Version = next.Version
		}
		return err
	}, k)

	if errors.Is(err, redis.TxFailedErr) {
		return session.ErrVersionConflict
	}
	return err
}

// List returns all records, iterating the key space with SCAN.
func (s *RedisStore) List(ctx context.Context) ([]*session.Record, error) {
	var records []*session.Record

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		val, err := s.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, err
		}

		var rec session.Record
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			s.log.Warn().Err(err).Str("key", iter.Val()).Msg("skip undecodable session record")
			continue
		}
		records = append(records, &rec)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
