package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"smartbill/billing-svc/internal/domain"
)

const (
	OpCreate     = "CreateTable"
	OpGet        = "GetTable"
	OpList       = "ListTables"
	OpAddOrder   = "AddOrder"
	OpAddPayment = "AddPayment"
	OpReset      = "ResetTable"
	OpDelete     = "DeleteTable"
)

// Ledger applies the billing rules on top of a Store. Every mutation runs
// inside Store.Update and is checked with Table.Verify before it commits.
type Ledger struct {
	store Store
	log   *log.Entry
	now   func() time.Time
	newID func() string
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

func WithLogger(entry *log.Entry) Option {
	return func(l *Ledger) { l.log = entry }
}

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		log:   log.NewEntry(log.StandardLogger()),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Create(ctx context.Context, id, name string) (*domain.Table, error) {
	if err := validateTableID(OpCreate, id); err != nil {
		return nil, err
	}
	if err := validateText(OpCreate, id, "name", name, domain.MaxTableNameLength); err != nil {
		return nil, err
	}

	table := domain.NewTable(id, name, l.now())
	if err := table.Verify(); err != nil {
		return nil, l.abort(OpCreate, id, err)
	}
	if err := l.store.Insert(ctx, table); err != nil {
		return nil, domain.WrapOp(OpCreate, id, err)
	}

	l.log.WithFields(log.Fields{"op": OpCreate, "table_id": id}).Info("table created")
	return table.Clone(), nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*domain.Table, error) {
	if err := validateTableID(OpGet, id); err != nil {
		return nil, err
	}
	table, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, domain.WrapOp(OpGet, id, err)
	}
	return table, nil
}

// List returns summaries in table creation order.
func (l *Ledger) List(ctx context.Context) ([]domain.TableSummary, error) {
	tables, err := l.store.List(ctx)
	if err != nil {
		return nil, domain.WrapOp(OpList, "", err)
	}
	summaries := make([]domain.TableSummary, 0, len(tables))
	for _, table := range tables {
		summaries = append(summaries, table.Summary())
	}
	return summaries, nil
}

func (l *Ledger) AddOrder(ctx context.Context, tableID, productName string, amount domain.Money) (*domain.Table, error) {
	if err := validateTableID(OpAddOrder, tableID); err != nil {
		return nil, err
	}
	if err := validateText(OpAddOrder, tableID, "product name", productName, domain.MaxProductNameLength); err != nil {
		return nil, err
	}
	if err := validateAmount(OpAddOrder, tableID, amount); err != nil {
		return nil, err
	}

	return l.mutate(ctx, OpAddOrder, tableID, func(table *domain.Table) error {
		if _, err := table.TotalOrdered.Add(amount); err != nil {
			return err
		}
		table.AppendOrder(productName, amount, l.now())
		return nil
	})
}

// AddPayment records a payment. Paying more than the open balance is allowed
// and leaves a negative remaining balance.
func (l *Ledger) AddPayment(ctx context.Context, tableID string, amount domain.Money) (*domain.Table, error) {
	if err := validateTableID(OpAddPayment, tableID); err != nil {
		return nil, err
	}
	if err := validateAmount(OpAddPayment, tableID, amount); err != nil {
		return nil, err
	}

	return l.mutate(ctx, OpAddPayment, tableID, func(table *domain.Table) error {
		if _, err := table.TotalPaid.Add(amount); err != nil {
			return err
		}
		table.AppendPayment(l.newID(), amount, l.now())
		return nil
	})
}

func (l *Ledger) Reset(ctx context.Context, tableID string) error {
	if err := validateTableID(OpReset, tableID); err != nil {
		return err
	}
	_, err := l.mutate(ctx, OpReset, tableID, func(table *domain.Table) error {
		table.Reset()
		return nil
	})
	return err
}

func (l *Ledger) Delete(ctx context.Context, tableID string) error {
	if err := validateTableID(OpDelete, tableID); err != nil {
		return err
	}
	if err := l.store.Delete(ctx, tableID); err != nil {
		return domain.WrapOp(OpDelete, tableID, err)
	}
	l.log.WithFields(log.Fields{"op": OpDelete, "table_id": tableID}).Info("table deleted")
	return nil
}

func (l *Ledger) mutate(ctx context.Context, op, tableID string, apply func(*domain.Table) error) (*domain.Table, error) {
	table, err := l.store.Update(ctx, tableID, func(table *domain.Table) error {
		if err := apply(table); err != nil {
			return err
		}
		return table.Verify()
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvariant) {
			return nil, l.abort(op, tableID, err)
		}
		return nil, domain.WrapOp(op, tableID, err)
	}

	l.log.WithFields(log.Fields{
		"op":            op,
		"table_id":      tableID,
		"total_ordered": table.TotalOrdered.String(),
		"total_paid":    table.TotalPaid.String(),
	}).Debug("ledger mutation committed")
	return table, nil
}

func (l *Ledger) abort(op, tableID string, err error) error {
	l.log.WithError(err).WithFields(log.Fields{"op": op, "table_id": tableID}).
		Error("ledger invariant violated, mutation aborted")
	return domain.WrapOp(op, tableID, err)
}

func validateTableID(op, id string) error {
	return validateText(op, id, "table id", id, domain.MaxTableIDLength)
}

func validateText(op, tableID, field, value string, maxLen int) error {
	if strings.TrimSpace(value) == "" {
		return domain.Invalid(op, tableID, "%s is required", field)
	}
	if utf8.RuneCountInString(value) > maxLen {
		return domain.Invalid(op, tableID, "%s is longer than %d characters", field, maxLen)
	}
	return nil
}

func validateAmount(op, tableID string, amount domain.Money) error {
	if !amount.IsPositive() {
		return domain.Invalid(op, tableID, "amount must be positive, got %s", amount)
	}
	return nil
}
