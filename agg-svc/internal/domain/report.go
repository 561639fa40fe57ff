package domain

import (
	"errors"
	"time"
)

const DateLayout = "2006-01-02"

// Counter names inside the daily report hash.
const (
	CounterTablesCreated = "tables_created"
	CounterTablesDeleted = "tables_deleted"
	CounterOrders        = "orders"
	CounterOrderedMinor  = "ordered_minor"
	CounterPayments      = "payments"
	CounterPaidMinor     = "paid_minor"
	CounterResets        = "resets"
)

var (
	ErrInvalidDate = errors.New("date must be formatted as YYYY-MM-DD")
	ErrUnknownType = errors.New("unknown billing event type")
)

// ReportDelta is the change a single billing event makes to one day's report.
type ReportDelta struct {
	Date         string
	Counters     map[string]int64
	ProductName  string
	ProductMinor int64
}

// DeltaFor translates an event into report increments. Amounts stay in
// minor units.
func DeltaFor(event BillingEvent) (ReportDelta, error) {
	at := event.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	delta := ReportDelta{Date: at.UTC().Format(DateLayout)}

	switch event.Type {
	case EventTableCreated:
		delta.Counters = map[string]int64{CounterTablesCreated: 1}
	case EventTableDeleted:
		delta.Counters = map[string]int64{CounterTablesDeleted: 1}
	case EventOrderAdded:
		delta.Counters = map[string]int64{CounterOrders: 1, CounterOrderedMinor: event.AmountMinor}
		delta.ProductName = event.ProductName
		delta.ProductMinor = event.AmountMinor
	case EventPaymentAdded:
		delta.Counters = map[string]int64{CounterPayments: 1, CounterPaidMinor: event.AmountMinor}
	case EventTableReset:
		delta.Counters = map[string]int64{CounterResets: 1}
	default:
		return ReportDelta{}, ErrUnknownType
	}
	return delta, nil
}

type ProductTotal struct {
	ProductName  string `json:"product_name"`
	OrderedMinor int64  `json:"ordered_minor"`
}

type DailyReport struct {
	Date          string         `json:"date"`
	TablesCreated int64          `json:"tables_created"`
	TablesDeleted int64          `json:"tables_deleted"`
	Orders        int64          `json:"orders"`
	OrderedMinor  int64          `json:"ordered_minor"`
	Payments      int64          `json:"payments"`
	PaidMinor     int64          `json:"paid_minor"`
	Resets        int64          `json:"resets"`
	TopProducts   []ProductTotal `json:"top_products"`
}

// ParseDate validates a YYYY-MM-DD report date.
func ParseDate(value string) (string, error) {
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return "", ErrInvalidDate
	}
	return parsed.Format(DateLayout), nil
}
