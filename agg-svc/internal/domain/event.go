package domain

import "time"

type EventType string

// Billing event types as published by billing-svc.
const (
	EventTableCreated EventType = "table_created"
	EventOrderAdded   EventType = "order_added"
	EventPaymentAdded EventType = "payment_added"
	EventTableReset   EventType = "table_reset"
	EventTableDeleted EventType = "table_deleted"
)

type BillingEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	TableID     string    `json:"table_id"`
	ProductName string    `json:"product_name,omitempty"`
	AmountMinor int64     `json:"amount_minor,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
