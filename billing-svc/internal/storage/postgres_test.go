package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbill/billing-svc/internal/domain"
)

var (
	tableColumns   = []string{"id", "name", "next_line_id", "total_ordered", "total_paid", "created_at"}
	lineColumns    = []string{"table_id", "line_id", "product_name", "amount", "created_at"}
	paymentColumns = []string{"table_id", "id", "amount", "created_at"}
)

func newPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

// expectLoad queues the three reads that make up one table. The table has a
// single 25.00 Coffee line and a 10.00 payment.
func expectLoad(mock sqlmock.Sqlmock, lock bool, now time.Time) {
	tableQuery := q("FROM billing_tables WHERE id = $1")
	if lock {
		tableQuery += " FOR UPDATE"
	}
	mock.ExpectQuery(tableQuery).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(tableColumns).AddRow("t1", "Masa 1", int64(2), int64(2500), int64(1000), now))
	mock.ExpectQuery(q("FROM order_lines WHERE table_id = $1 ORDER BY line_id")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(lineColumns).AddRow("t1", int64(1), "Coffee", int64(2500), now))
	mock.ExpectQuery(q("FROM payments WHERE table_id = $1 ORDER BY seq")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(paymentColumns).AddRow("t1", "5b0e6a2c-8f7d-4a53-9d0a-0d6a1c9e4f11", int64(1000), now))
}

func TestPostgresStore_Get(t *testing.T) {
	now := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		store, mock := newPostgresStore(t)
		mock.ExpectBegin()
		expectLoad(mock, false, now)
		mock.ExpectCommit()

		table, err := store.Get(context.Background(), "t1")
		require.NoError(t, err)

		assert.Equal(t, "Masa 1", table.Name)
		require.Len(t, table.Orders, 1)
		assert.Equal(t, domain.OrderLine{ID: 1, ProductName: "Coffee", Amount: 2500, CreatedAt: now}, table.Orders[0])
		require.Len(t, table.Payments, 1)
		assert.Equal(t, domain.Money(1500), table.RemainingBalance())
		assert.NoError(t, table.Verify())
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := newPostgresStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("FROM billing_tables WHERE id = $1")).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(tableColumns))
		mock.ExpectRollback()

		_, err := store.Get(context.Background(), "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("driver failure", func(t *testing.T) {
		store, mock := newPostgresStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("FROM billing_tables WHERE id = $1")).
			WithArgs("t1").
			WillReturnError(errors.New("connection refused"))
		mock.ExpectRollback()

		_, err := store.Get(context.Background(), "t1")
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.True(t, domain.IsRetryable(err))
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("begin failure", func(t *testing.T) {
		store, mock := newPostgresStore(t)
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		_, err := store.Get(context.Background(), "t1")
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	})
}

func TestPostgresStore_Insert(t *testing.T) {
	now := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		affected int64
		execErr  error
		wantErr  error
	}{
		{name: "inserted", affected: 1},
		{name: "duplicate id", affected: 0, wantErr: domain.ErrAlreadyExists},
		{name: "driver failure", execErr: errors.New("broken pipe"), wantErr: domain.ErrStoreUnavailable},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			store, mock := newPostgresStore(t)
			exec := mock.ExpectExec(q("INSERT INTO billing_tables")).
				WithArgs("t1", "Masa 1", int64(1), int64(0), int64(0), now)
			if testCase.execErr != nil {
				exec.WillReturnError(testCase.execErr)
			} else {
				exec.WillReturnResult(sqlmock.NewResult(0, testCase.affected))
			}

			err := store.Insert(context.Background(), domain.NewTable("t1", "Masa 1", now))

			if testCase.wantErr != nil {
				assert.ErrorIs(t, err, testCase.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPostgresStore_UpdateAppendsNewRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	store, mock := newPostgresStore(t)

	mock.ExpectBegin()
	expectLoad(mock, true, now)
	mock.ExpectExec(q("UPDATE billing_tables")).
		WithArgs("t1", "Masa 1", int64(3), int64(4000), int64(1000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO order_lines")).
		WithArgs("t1", int64(2), "Tea", int64(1500), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	table, err := store.Update(context.Background(), "t1", func(table *domain.Table) error {
		table.AppendOrder("Tea", 1500, now)
		return table.Verify()
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Money(3000), table.RemainingBalance())
	assert.Len(t, table.Orders, 2)
}

func TestPostgresStore_UpdateCommitFailureIsNotRetryable(t *testing.T) {
	now := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	store, mock := newPostgresStore(t)

	mock.ExpectBegin()
	expectLoad(mock, true, now)
	mock.ExpectExec(q("UPDATE billing_tables")).
		WithArgs("t1", "Masa 1", int64(3), int64(4000), int64(1000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO order_lines")).
		WithArgs("t1", int64(2), "Tea", int64(1500), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("driver: bad connection"))

	_, err := store.Update(context.Background(), "t1", func(table *domain.Table) error {
		table.AppendOrder("Tea", 1500, now)
		return nil
	})

	assert.ErrorIs(t, err, domain.ErrCommitUnknown)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.False(t, domain.IsRetryable(err))
}

func TestPostgresStore_UpdateRewritesOnReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	store, mock := newPostgresStore(t)

	mock.ExpectBegin()
	expectLoad(mock, true, now)
	mock.ExpectExec(q("UPDATE billing_tables")).
		WithArgs("t1", "Masa 1", int64(2), int64(0), int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM order_lines WHERE table_id = $1")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM payments WHERE table_id = $1")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	table, err := store.Update(context.Background(), "t1", func(table *domain.Table) error {
		table.Reset()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEmpty, table.Status())
}

func TestPostgresStore_UpdateRollsBackOnMutationError(t *testing.T) {
	now := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	store, mock := newPostgresStore(t)

	mock.ExpectBegin()
	expectLoad(mock, true, now)
	mock.ExpectRollback()

	_, err := store.Update(context.Background(), "t1", func(table *domain.Table) error {
		return domain.ErrInvariant
	})
	assert.ErrorIs(t, err, domain.ErrInvariant)
}

func TestPostgresStore_UpdateMissingTable(t *testing.T) {
	store, mock := newPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM billing_tables WHERE id = $1 FOR UPDATE")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(tableColumns))
	mock.ExpectRollback()

	_, err := store.Update(context.Background(), "ghost", func(*domain.Table) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_List(t *testing.T) {
	now := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	store, mock := newPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM billing_tables ORDER BY seq")).
		WillReturnRows(sqlmock.NewRows(tableColumns).
			AddRow("t2", "Masa 2", int64(1), int64(0), int64(0), now).
			AddRow("t1", "Masa 1", int64(3), int64(4000), int64(0), now))
	mock.ExpectQuery(q("FROM order_lines ORDER BY table_id, line_id")).
		WillReturnRows(sqlmock.NewRows(lineColumns).
			AddRow("t1", int64(1), "Coffee", int64(2500), now).
			AddRow("t1", int64(2), "Tea", int64(1500), now))
	mock.ExpectQuery(q("FROM payments ORDER BY table_id, seq")).
		WillReturnRows(sqlmock.NewRows(paymentColumns))
	mock.ExpectCommit()

	tables, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "t2", tables[0].ID)
	assert.Equal(t, domain.StatusEmpty, tables[0].Status())
	assert.Equal(t, "t1", tables[1].ID)
	assert.Len(t, tables[1].Orders, 2)
	assert.NoError(t, tables[1].Verify())
}

func TestPostgresStore_Delete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "deleted", affected: 1},
		{name: "missing", affected: 0, wantErr: domain.ErrNotFound},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			store, mock := newPostgresStore(t)
			mock.ExpectExec(q("DELETE FROM billing_tables WHERE id = $1")).
				WithArgs("t1").
				WillReturnResult(sqlmock.NewResult(0, testCase.affected))

			err := store.Delete(context.Background(), "t1")

			if testCase.wantErr != nil {
				assert.ErrorIs(t, err, testCase.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
