package storage

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"smartbill/billing-svc/internal/domain"
	"smartbill/billing-svc/internal/ledger"
)

const (
	tableKeyPrefix    = "billing:table:"
	tableIndexKey     = "billing:tables"
	tableSeqKey       = "billing:tables:seq"
	defaultTxAttempts = 10
)

// RedisStore keeps each table as one JSON document and a sorted set of ids
// scored by insertion sequence. Writes use WATCH/MULTI on the table key and
// are retried when another writer wins the race.
type RedisStore struct {
	Client      *redis.Client
	MaxAttempts int
}

func NewRedisStore(client *redis.Client, maxAttempts int) *RedisStore {
	if maxAttempts <= 0 {
		maxAttempts = defaultTxAttempts
	}
	return &RedisStore{Client: client, MaxAttempts: maxAttempts}
}

func tableKey(id string) string {
	return tableKeyPrefix + id
}

func (s *RedisStore) Insert(ctx context.Context, table *domain.Table) error {
	payload, err := json.Marshal(table)
	if err != nil {
		return errors.Wrapf(err, "encode table %s", table.ID)
	}
	key := tableKey(table.ID)

	err = s.transact(ctx, key, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return unavailable(err, "check table %s", table.ID)
		}
		if exists > 0 {
			return domain.ErrAlreadyExists
		}
		seq, err := tx.Incr(ctx, tableSeqKey).Result()
		if err != nil {
			return unavailable(err, "next table sequence")
		}
		return commit(ctx, tx, table.ID, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.ZAdd(ctx, tableIndexKey, redis.Z{Score: float64(seq), Member: table.ID})
			return nil
		})
	})
	return storeErr(err, "insert table %s", table.ID)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Table, error) {
	payload, err := s.Client.Get(ctx, tableKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err, "get table %s", id)
	}
	return decodeTable(id, payload)
}

func (s *RedisStore) List(ctx context.Context) ([]*domain.Table, error) {
	ids, err := s.Client.ZRange(ctx, tableIndexKey, 0, -1).Result()
	if err != nil {
		return nil, unavailable(err, "list table ids")
	}
	tables := make([]*domain.Table, 0, len(ids))
	if len(ids) == 0 {
		return tables, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = tableKey(id)
	}
	values, err := s.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err, "load tables")
	}
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// deleted between ZRANGE and MGET
			continue
		}
		table, err := decodeTable(ids[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn ledger.MutateFunc) (*domain.Table, error) {
	key := tableKey(id)
	var (
		updated   *domain.Table
		mutateErr error
	)

	err := s.transact(ctx, key, func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return unavailable(err, "get table %s", id)
		}
		table, err := decodeTable(id, payload)
		if err != nil {
			return err
		}
		if err := fn(table); err != nil {
			mutateErr = err
			return err
		}
		encoded, err := json.Marshal(table)
		if err != nil {
			return errors.Wrapf(err, "encode table %s", id)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := commit(ctx, tx, id, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		}); err != nil {
			return err
		}
		updated = table
		return nil
	})
	if mutateErr != nil {
		return nil, mutateErr
	}
	if err != nil {
		return nil, storeErr(err, "update table %s", id)
	}
	return updated, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	key := tableKey(id)
	err := s.transact(ctx, key, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return unavailable(err, "check table %s", id)
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return commit(ctx, tx, id, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, tableIndexKey, id)
			return nil
		})
	})
	return storeErr(err, "delete table %s", id)
}

// transact runs fn under WATCH key and retries it while the transaction
// loses to a concurrent writer.
func (s *RedisStore) transact(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = defaultTxAttempts
	}
	for i := 0; i < attempts; i++ {
		err := s.Client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return errors.WithMessagef(domain.ErrStoreUnavailable, "%s: gave up after %d conflicting transactions", key, attempts)
}

func commit(ctx context.Context, tx *redis.Tx, id string, queue func(redis.Pipeliner) error) error {
	_, err := tx.TxPipelined(ctx, queue)
	if err == nil || errors.Is(err, redis.TxFailedErr) {
		return err
	}
	return uncommitted(err, "commit table %s", id)
}

func decodeTable(id string, payload []byte) (*domain.Table, error) {
	var table domain.Table
	if err := json.Unmarshal(payload, &table); err != nil {
		return nil, errors.WithMessagef(domain.ErrStoreUnavailable, "decode table %s: %v", id, err)
	}
	return &table, nil
}

// storeErr keeps already classified errors and marks raw client errors, such
// as a failed WATCH, as store failures.
func storeErr(err error, format string, args ...interface{}) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrStoreUnavailable):
		return err
	default:
		return unavailable(err, format, args...)
	}
}

var _ ledger.Store = (*RedisStore)(nil)
