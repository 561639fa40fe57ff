package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"smartbill/billing-svc/internal/domain"
	"smartbill/billing-svc/internal/ledger"
)

const (
	OpTableQRCode = "TableQRCode"

	defaultStoreRetries = 3
	publishTimeout      = 5 * time.Second
)

// ErrQRCodeDisabled is returned when the service runs without a QR generator.
var ErrQRCodeDisabled = errors.New("qr code generator is not configured")

type Option func(*BillingService)

func WithRetries(retries uint64) Option {
	return func(s *BillingService) { s.retries = retries }
}

// WithBackOff replaces the delay policy between store retries.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(s *BillingService) { s.newBackOff = newBackOff }
}

func WithLogger(entry *log.Entry) Option {
	return func(s *BillingService) { s.log = entry }
}

func WithEventIDs(newID func() string) Option {
	return func(s *BillingService) { s.newEventID = newID }
}

func WithClock(now func() time.Time) Option {
	return func(s *BillingService) { s.now = now }
}

// BillingService is the entry point used by transports. It normalizes
// input, retries transient store failures and announces committed changes.
type BillingService struct {
	ledger     TableLedger
	publisher  EventPublisher
	qr         QRGenerator
	retries    uint64
	newBackOff func() backoff.BackOff
	log        *log.Entry
	newEventID func() string
	now        func() time.Time
}

func NewBillingService(tables TableLedger, publisher EventPublisher, qr QRGenerator, opts ...Option) *BillingService {
	s := &BillingService{
		ledger:     tables,
		publisher:  publisher,
		qr:         qr,
		retries:    defaultStoreRetries,
		newBackOff: defaultBackOff,
		log:        log.NewEntry(log.StandardLogger()),
		newEventID: uuid.NewString,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultBackOff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = 5 * time.Second
	return policy
}

func (s *BillingService) CreateTable(ctx context.Context, id, name string) (*domain.Table, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		return nil, domain.Invalid(ledger.OpCreate, id, "table id is required")
	}
	if name == "" {
		return nil, domain.Invalid(ledger.OpCreate, id, "name is required")
	}

	var table *domain.Table
	err := s.retry(ctx, ledger.OpCreate, id, func() (err error) {
		table, err = s.ledger.Create(ctx, id, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.BillingEvent{Type: domain.EventTableCreated, TableID: id})
	return table, nil
}

func (s *BillingService) ListTables(ctx context.Context) ([]domain.TableSummary, error) {
	var summaries []domain.TableSummary
	err := s.retry(ctx, ledger.OpList, "", func() (err error) {
		summaries, err = s.ledger.List(ctx)
		return err
	})
	return summaries, err
}

func (s *BillingService) GetTable(ctx context.Context, id string) (*domain.Table, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.Invalid(ledger.OpGet, id, "table id is required")
	}

	var table *domain.Table
	err := s.retry(ctx, ledger.OpGet, id, func() (err error) {
		table, err = s.ledger.Get(ctx, id)
		return err
	})
	return table, err
}

func (s *BillingService) AddOrder(ctx context.Context, tableID, productName string, amount domain.Money) (*domain.Table, error) {
	tableID, productName = strings.TrimSpace(tableID), strings.TrimSpace(productName)
	if tableID == "" {
		return nil, domain.Invalid(ledger.OpAddOrder, tableID, "table id is required")
	}
	if productName == "" {
		return nil, domain.Invalid(ledger.OpAddOrder, tableID, "product name is required")
	}
	if !amount.IsPositive() {
		return nil, domain.Invalid(ledger.OpAddOrder, tableID, "amount must be positive, got %s", amount)
	}

	var table *domain.Table
	err := s.retry(ctx, ledger.OpAddOrder, tableID, func() (err error) {
		table, err = s.ledger.AddOrder(ctx, tableID, productName, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.BillingEvent{
		Type:        domain.EventOrderAdded,
		TableID:     tableID,
		ProductName: productName,
		AmountMinor: int64(amount),
	})
	return table, nil
}

func (s *BillingService) AddPayment(ctx context.Context, tableID string, amount domain.Money) (*domain.Table, error) {
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return nil, domain.Invalid(ledger.OpAddPayment, tableID, "table id is required")
	}
	if !amount.IsPositive() {
		return nil, domain.Invalid(ledger.OpAddPayment, tableID, "amount must be positive, got %s", amount)
	}

	var table *domain.Table
	err := s.retry(ctx, ledger.OpAddPayment, tableID, func() (err error) {
		table, err = s.ledger.AddPayment(ctx, tableID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.BillingEvent{
		Type:        domain.EventPaymentAdded,
		TableID:     tableID,
		AmountMinor: int64(amount),
	})
	return table, nil
}

func (s *BillingService) ResetTable(ctx context.Context, tableID string) error {
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return domain.Invalid(ledger.OpReset, tableID, "table id is required")
	}

	err := s.retry(ctx, ledger.OpReset, tableID, func() error {
		return s.ledger.Reset(ctx, tableID)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.BillingEvent{Type: domain.EventTableReset, TableID: tableID})
	return nil
}

func (s *BillingService) DeleteTable(ctx context.Context, tableID string) error {
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return domain.Invalid(ledger.OpDelete, tableID, "table id is required")
	}

	err := s.retry(ctx, ledger.OpDelete, tableID, func() error {
		return s.ledger.Delete(ctx, tableID)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.BillingEvent{Type: domain.EventTableDeleted, TableID: tableID})
	return nil
}

// TableQRCode renders a PNG QR code linking to the table's bill page.
func (s *BillingService) TableQRCode(ctx context.Context, tableID string) ([]byte, error) {
	if _, err := s.GetTable(ctx, tableID); err != nil {
		return nil, err
	}
	if s.qr == nil {
		return nil, domain.WrapOp(OpTableQRCode, tableID, ErrQRCodeDisabled)
	}
	png, err := s.qr.Generate(strings.TrimSpace(tableID))
	if err != nil {
		return nil, domain.WrapOp(OpTableQRCode, tableID, err)
	}
	return png, nil
}

// retry repeats call while the store reports itself unavailable, up to the
// configured number of retries. Every other outcome is final.
func (s *BillingService) retry(ctx context.Context, op, tableID string, call func() error) error {
	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.retries), ctx)

	err := backoff.Retry(func() error {
		attempt++
		err := call()
		if err == nil {
			return nil
		}
		if !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		s.log.WithError(err).WithFields(log.Fields{
			"op":       op,
			"table_id": tableID,
			"attempt":  attempt,
		}).Warn("ledger store unavailable")
		return err
	}, policy)
	return domain.WrapOp(op, tableID, err)
}

// publish announces a committed change. Delivery problems are logged and
// never undo or fail the mutation.
func (s *BillingService) publish(ctx context.Context, event domain.BillingEvent) {
	if s.publisher == nil {
		return
	}
	event.ID = s.newEventID()
	event.Timestamp = s.now()

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishEvent(publishCtx, event); err != nil {
		s.log.WithError(err).WithFields(log.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"table_id":   event.TableID,
		}).Warn("failed to publish billing event")
	}
}
