// Package redisdb implements UserDataStore on Redis. Each document is a JSON
// string; a per-(user, subject) set indexes the keys for List.
package redisdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/models"
)

const maxMergeAttempts = 10

// Store implements interfaces.UserDataStore using go-redis.
type Store struct {
	rdb    *redis.Client
	prefix string
	logger *common.Logger
	now    func() time.Time
}

// NewStore connects to Redis and verifies the connection with PING.
func NewStore(ctx context.Context, logger *common.Logger, cfg common.RedisConfig) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	logger.Info().Str("address", cfg.Address).Int("db", cfg.DB).Msg("Redis store connected")
	return NewStoreWithClient(rdb, logger, cfg.Prefix), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(rdb *redis.Client, logger *common.Logger, prefix string) *Store {
	if prefix == "" {
		prefix = "portfoliohub"
	}
	return &Store{rdb: rdb, prefix: prefix, logger: logger, now: time.Now}
}

func (s *Store) docKey(userID, subject, key string) string {
	return fmt.Sprintf("%s:doc:%s:%s:%s", s.prefix, userID, subject, key)
}

func (s *Store) indexKey(userID, subject string) string {
	return fmt.Sprintf("%s:idx:%s:%s", s.prefix, userID, subject)
}

func (s *Store) Get(ctx context.Context, userID, subject, key string) (*models.UserRecord, error) {
	rec, err := s.read(ctx, s.rdb, userID, subject, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%s '%s' for user '%s': %w", subject, key, userID, common.ErrNotFound)
	}
	return rec, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// read returns nil, nil for a missing document.
func (s *Store) read(ctx context.Context, c getter, userID, subject, key string) (*models.UserRecord, error) {
	data, err := c.Get(ctx, s.docKey(userID, subject, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s '%s': %w", subject, key, err)
	}
	var rec models.UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s '%s': %w", subject, key, err)
	}
	return &rec, nil
}

func (s *Store) Put(ctx context.Context, record *models.UserRecord) error {
	_, err := s.Merge(ctx, record.UserID, record.Subject, record.Key, func(*models.UserRecord) (*models.UserRecord, error) {
		next := *record
		return &next, nil
	})
	if err != nil {
		return err
	}
	// Reflect the stored version back to the caller like the other backends
	stored, err := s.Get(ctx, record.UserID, record.Subject, record.Key)
	if err == nil {
		record.Version, record.DateTime = stored.Version, stored.DateTime
	}
	return nil
}

// Merge runs fn inside WATCH/MULTI and retries when another writer touched the document.
func (s *Store) Merge(ctx context.Context, userID, subject, key string, fn interfaces.MergeFunc) (*models.UserRecord, error) {
	dk := s.docKey(userID, subject, key)
	ik := s.indexKey(userID, subject)

	var result *models.UserRecord
	txf := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, userID, subject, key)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		if next == nil {
			result = nil
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, dk)
				pipe.SRem(ctx, ik, key)
				return nil
			})
			return err
		}

		next.UserID, next.Subject, next.Key = userID, subject, key
		next.Version = 1
		if current != nil {
			next.Version = current.Version + 1
		}
		next.DateTime = s.now()

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode %s '%s': %w", subject, key, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, dk, data, 0)
			pipe.SAdd(ctx, ik, key)
			return nil
		})
		result = next
		return err
	}

	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, dk)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("merge %s '%s': too much contention after %d attempts", subject, key, maxMergeAttempts)
}

func (s *Store) Delete(ctx context.Context, userID, subject, key string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(userID, subject, key))
		pipe.SRem(ctx, s.indexKey(userID, subject), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s '%s': %w", subject, key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, userID, subject string) ([]*models.UserRecord, error) {
	keys, err := s.rdb.SMembers(ctx, s.indexKey(userID, subject)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s for user '%s': %w", subject, userID, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	docKeys := make([]string, len(keys))
	for i, k := range keys {
		docKeys[i] = s.docKey(userID, subject, k)
	}
	values, err := s.rdb.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s for user '%s': %w", subject, userID, err)
	}

	result := make([]*models.UserRecord, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// Index entry without a document; a concurrent delete is in flight
			continue
		}
		var rec models.UserRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			s.logger.Warn().Str("key", keys[i]).Err(err).Msg("Skipping undecodable redis document")
			continue
		}
		result = append(result, &rec)
	}
	return result, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

var _ interfaces.UserDataStore = (*Store)(nil)
