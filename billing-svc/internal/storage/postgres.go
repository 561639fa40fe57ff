package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"smartbill/billing-svc/internal/domain"
	"smartbill/billing-svc/internal/ledger"
)

const (
	selectTableSQL   = `SELECT id, name, next_line_id, total_ordered, total_paid, created_at FROM billing_tables`
	selectLinesSQL   = `SELECT table_id, line_id, product_name, amount, created_at FROM order_lines`
	selectPaymentSQL = `SELECT table_id, id, amount, created_at FROM payments`
)

// readSnapshot makes the reads behind one Get or List see a single commit.
var readSnapshot = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

type tableRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	NextLineID   int64     `db:"next_line_id"`
	TotalOrdered int64     `db:"total_ordered"`
	TotalPaid    int64     `db:"total_paid"`
	CreatedAt    time.Time `db:"created_at"`
}

type orderLineRow struct {
	TableID     string    `db:"table_id"`
	LineID      int64     `db:"line_id"`
	ProductName string    `db:"product_name"`
	Amount      int64     `db:"amount"`
	CreatedAt   time.Time `db:"created_at"`
}

type paymentRow struct {
	TableID   string    `db:"table_id"`
	ID        string    `db:"id"`
	Amount    int64     `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
}

// PostgresStore keeps one row per table plus child rows for order lines and
// payments. Update serializes writers on the table row with SELECT ... FOR
// UPDATE.
type PostgresStore struct {
	DB *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) Insert(ctx context.Context, table *domain.Table) error {
	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO billing_tables (id, name, next_line_id, total_ordered, total_paid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		table.ID, table.Name, table.NextLineID, int64(table.TotalOrdered), int64(table.TotalPaid), table.CreatedAt)
	if err != nil {
		return unavailable(err, "insert table %s", table.ID)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return unavailable(err, "insert table %s", table.ID)
	}
	if inserted == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Table, error) {
	tx, err := s.DB.BeginTxx(ctx, readSnapshot)
	if err != nil {
		return nil, unavailable(err, "begin get %s", id)
	}
	defer tx.Rollback()

	table, err := s.load(ctx, tx, id, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable(err, "commit get %s", id)
	}
	return table, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*domain.Table, error) {
	tx, err := s.DB.BeginTxx(ctx, readSnapshot)
	if err != nil {
		return nil, unavailable(err, "begin list")
	}
	defer tx.Rollback()

	var rows []tableRow
	if err := sqlx.SelectContext(ctx, tx, &rows, selectTableSQL+` ORDER BY seq`); err != nil {
		return nil, unavailable(err, "list tables")
	}
	var lines []orderLineRow
	if err := sqlx.SelectContext(ctx, tx, &lines, selectLinesSQL+` ORDER BY table_id, line_id`); err != nil {
		return nil, unavailable(err, "list order lines")
	}
	var payments []paymentRow
	if err := sqlx.SelectContext(ctx, tx, &payments, selectPaymentSQL+` ORDER BY table_id, seq`); err != nil {
		return nil, unavailable(err, "list payments")
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable(err, "commit list")
	}

	linesByTable := make(map[string][]orderLineRow)
	for _, line := range lines {
		linesByTable[line.TableID] = append(linesByTable[line.TableID], line)
	}
	paymentsByTable := make(map[string][]paymentRow)
	for _, payment := range payments {
		paymentsByTable[payment.TableID] = append(paymentsByTable[payment.TableID], payment)
	}

	tables := make([]*domain.Table, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, assembleTable(row, linesByTable[row.ID], paymentsByTable[row.ID]))
	}
	return tables, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, fn ledger.MutateFunc) (*domain.Table, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable(err, "begin update %s", id)
	}
	defer tx.Rollback()

	before, err := s.load(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	after := before.Clone()
	if err := fn(after); err != nil {
		return nil, err
	}
	if err := persist(ctx, tx, before, after); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, uncommitted(err, "commit update %s", id)
	}
	return after, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM billing_tables WHERE id = $1`, id)
	if err != nil {
		return unavailable(err, "delete table %s", id)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return unavailable(err, "delete table %s", id)
	}
	if deleted == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) load(ctx context.Context, q sqlx.QueryerContext, id string, lock bool) (*domain.Table, error) {
	query := selectTableSQL + ` WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var row tableRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, unavailable(err, "select table %s", id)
	}

	var lines []orderLineRow
	if err := sqlx.SelectContext(ctx, q, &lines, selectLinesSQL+` WHERE table_id = $1 ORDER BY line_id`, id); err != nil {
		return nil, unavailable(err, "select order lines %s", id)
	}
	var payments []paymentRow
	if err := sqlx.SelectContext(ctx, q, &payments, selectPaymentSQL+` WHERE table_id = $1 ORDER BY seq`, id); err != nil {
		return nil, unavailable(err, "select payments %s", id)
	}
	return assembleTable(row, lines, payments), nil
}

// persist writes the difference between two versions of a table. Appends
// become inserts of the new tail; anything else (a reset) rewrites the
// child rows.
func persist(ctx context.Context, tx *sqlx.Tx, before, after *domain.Table) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE billing_tables
		SET name = $2, next_line_id = $3, total_ordered = $4, total_paid = $5
		WHERE id = $1`,
		after.ID, after.Name, after.NextLineID, int64(after.TotalOrdered), int64(after.TotalPaid)); err != nil {
		return unavailable(err, "update table %s", after.ID)
	}

	newLines := after.Orders
	if linesExtend(before.Orders, after.Orders) {
		newLines = after.Orders[len(before.Orders):]
	} else if _, err := tx.ExecContext(ctx, `DELETE FROM order_lines WHERE table_id = $1`, after.ID); err != nil {
		return unavailable(err, "clear order lines %s", after.ID)
	}
	for _, line := range newLines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_lines (table_id, line_id, product_name, amount, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			after.ID, line.ID, line.ProductName, int64(line.Amount), line.CreatedAt); err != nil {
			return unavailable(err, "insert order line %s/%d", after.ID, line.ID)
		}
	}

	newPayments := after.Payments
	if paymentsExtend(before.Payments, after.Payments) {
		newPayments = after.Payments[len(before.Payments):]
	} else if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE table_id = $1`, after.ID); err != nil {
		return unavailable(err, "clear payments %s", after.ID)
	}
	for _, payment := range newPayments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payments (id, table_id, amount, created_at)
			VALUES ($1, $2, $3, $4)`,
			payment.ID, after.ID, int64(payment.Amount), payment.CreatedAt); err != nil {
			return unavailable(err, "insert payment %s/%s", after.ID, payment.ID)
		}
	}
	return nil
}

func linesExtend(before, after []domain.OrderLine) bool {
	if len(after) < len(before) {
		return false
	}
	for i := range before {
		if before[i].ID != after[i].ID {
			return false
		}
	}
	return true
}

func paymentsExtend(before, after []domain.Payment) bool {
	if len(after) < len(before) {
		return false
	}
	for i := range before {
		if before[i].ID != after[i].ID {
			return false
		}
	}
	return true
}

func assembleTable(row tableRow, lines []orderLineRow, payments []paymentRow) *domain.Table {
	table := &domain.Table{
		ID:           row.ID,
		Name:         row.Name,
		Orders:       make([]domain.OrderLine, 0, len(lines)),
		Payments:     make([]domain.Payment, 0, len(payments)),
		TotalOrdered: domain.Money(row.TotalOrdered),
		TotalPaid:    domain.Money(row.TotalPaid),
		NextLineID:   row.NextLineID,
		CreatedAt:    row.CreatedAt,
	}
	for _, line := range lines {
		table.Orders = append(table.Orders, domain.OrderLine{
			ID:          line.LineID,
			ProductName: line.ProductName,
			Amount:      domain.Money(line.Amount),
			CreatedAt:   line.CreatedAt,
		})
	}
	for _, payment := range payments {
		table.Payments = append(table.Payments, domain.Payment{
			ID:        payment.ID,
			Amount:    domain.Money(payment.Amount),
			CreatedAt: payment.CreatedAt,
		})
	}
	return table
}

// unavailable classifies a backend failure. Context errors pass through so
// callers do not retry a cancelled request.
func unavailable(err error, format string, args ...interface{}) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.WithMessagef(domain.ErrStoreUnavailable, format+": %v", append(args, err)...)
}

// uncommitted classifies a failure while committing a write, when the
// backend may already have applied it.
func uncommitted(err error, format string, args ...interface{}) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.WithMessagef(domain.ErrCommitUnknown, format+": %v", append(args, err)...)
}

var _ ledger.Store = (*PostgresStore)(nil)
