package domain

import "time"

type EventType string

const (
	EventTableCreated EventType = "table_created"
	EventOrderAdded   EventType = "order_added"
	EventPaymentAdded EventType = "payment_added"
	EventTableReset   EventType = "table_reset"
	EventTableDeleted EventType = "table_deleted"
)

// BillingEvent is published after a ledger mutation commits. Amounts travel
// as integer minor units so consumers need no decimal handling.
type BillingEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	TableID     string    `json:"table_id"`
	ProductName string    `json:"product_name,omitempty"`
	AmountMinor int64     `json:"amount_minor,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
