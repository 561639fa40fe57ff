package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cenkalti/backoff"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbill/billing-svc/internal/domain"
	"smartbill/billing-svc/internal/ledger"
	"smartbill/billing-svc/internal/service"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, 5)
}

func testTable(id string) *domain.Table {
	return domain.NewTable(id, "Masa "+id, time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC))
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return payload
}

// runStoreContract exercises the behaviour every ledger.Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	ctx := context.Background()

	t.Run("insert and get", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Insert(ctx, testTable("t1")))

		got, err := store.Get(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "t1", got.ID)
		assert.Equal(t, "Masa t1", got.Name)
		assert.Equal(t, int64(1), got.NextLineID)
		assert.True(t, got.CreatedAt.Equal(time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)))
	})

	t.Run("duplicate insert", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Insert(ctx, testTable("t1")))
		assert.ErrorIs(t, store.Insert(ctx, testTable("t1")), domain.ErrAlreadyExists)
	})

	t.Run("missing table", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = store.Update(ctx, "ghost", func(*domain.Table) error { return nil })
		assert.ErrorIs(t, err, domain.ErrNotFound)

		assert.ErrorIs(t, store.Delete(ctx, "ghost"), domain.ErrNotFound)
	})

	t.Run("update commits", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Insert(ctx, testTable("t1")))

		updated, err := store.Update(ctx, "t1", func(table *domain.Table) error {
			table.AppendOrder("Çay", 1250, time.Now().UTC())
			table.AppendPayment("9f0c7a52-2d7f-4c52-9a61-0cf2f1f7a001", 500, time.Now().UTC())
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, domain.Money(750), updated.RemainingBalance())

		got, err := store.Get(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, got.Orders, 1)
		assert.Equal(t, "Çay", got.Orders[0].ProductName)
		assert.Equal(t, domain.Money(1250), got.TotalOrdered)
		assert.Equal(t, domain.Money(500), got.TotalPaid)
		assert.NoError(t, got.Verify())
	})

	t.Run("failed mutation is discarded", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Insert(ctx, testTable("t1")))
		boom := errors.New("boom")

		_, err := store.Update(ctx, "t1", func(table *domain.Table) error {
			table.AppendOrder("Çay", 1250, time.Now())
			return boom
		})
		assert.Same(t, boom, err)

		got, err := store.Get(ctx, "t1")
		require.NoError(t, err)
		assert.Empty(t, got.Orders)
	})

	t.Run("list in insertion order skips deleted", func(t *testing.T) {
		store := newStore(t)
		for _, id := range []string{"b", "a", "c"} {
			require.NoError(t, store.Insert(ctx, testTable(id)))
		}
		require.NoError(t, store.Delete(ctx, "a"))

		tables, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, tables, 2)
		assert.Equal(t, "b", tables[0].ID)
		assert.Equal(t, "c", tables[1].ID)
	})

	t.Run("empty list", func(t *testing.T) {
		tables, err := newStore(t).List(ctx)
		require.NoError(t, err)
		assert.Empty(t, tables)
	})

	t.Run("concurrent orders are all applied", func(t *testing.T) {
		const workers = 64
		tables := ledger.New(newStore(t), ledger.WithLogger(quietLogger()))
		billing := service.NewBillingService(tables, nil, nil,
			service.WithRetries(50),
			service.WithBackOff(func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }),
			service.WithLogger(quietLogger()),
		)
		_, err := billing.CreateTable(ctx, "t1", "Masa 1")
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := billing.AddOrder(ctx, "t1", "Çay", 100)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		table, err := billing.GetTable(ctx, "t1")
		require.NoError(t, err)
		assert.Len(t, table.Orders, workers)
		assert.Equal(t, domain.Money(workers*100), table.TotalOrdered)
		assert.NoError(t, table.Verify())
	})
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, func(*testing.T) ledger.Store { return NewMemoryStore() })
}

func TestRedisStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) ledger.Store { return newRedisStore(t) })
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Insert(ctx, testTable("t1")))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	got.AppendOrder("Çay", 1250, time.Now())

	again, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, again.Orders)
}

func TestMemoryStore_DeleteDoesNotBlockOtherTables(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Insert(ctx, testTable("a")))
	require.NoError(t, store.Insert(ctx, testTable("b")))

	started := make(chan struct{})
	release := make(chan struct{})
	updateDone := make(chan error, 1)
	go func() {
		_, err := store.Update(ctx, "a", func(*domain.Table) error {
			close(started)
			<-release
			return nil
		})
		updateDone <- err
	}()
	<-started

	deleteDone := make(chan error, 1)
	go func() { deleteDone <- store.Delete(ctx, "a") }()
	time.Sleep(20 * time.Millisecond)

	getDone := make(chan error, 1)
	go func() {
		_, err := store.Get(ctx, "b")
		getDone <- err
	}()
	select {
	case err := <-getDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("get on another table waited for a delete")
	}

	close(release)
	require.NoError(t, <-updateDone)
	require.NoError(t, <-deleteDone)
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisStore_RetriesConflictingWrites(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)
	require.NoError(t, store.Insert(ctx, testTable("t1")))

	attempts := 0
	_, err := store.Update(ctx, "t1", func(table *domain.Table) error {
		attempts++
		if attempts == 1 {
			// a competing writer touches the watched key mid-transaction
			require.NoError(t, store.Client.Set(ctx, tableKey("t1"), mustJSON(t, table), 0).Err())
		}
		table.AppendOrder("Çay", 1250, time.Now())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, got.Orders, 1)
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	store := NewRedisStore(client, 1)
	mr.Close()

	_, err := store.Get(context.Background(), "t1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = store.Update(context.Background(), "t1", func(*domain.Table) error { return nil })
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
