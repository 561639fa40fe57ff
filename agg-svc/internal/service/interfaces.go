package service

import (
	"context"

	"github.com/segmentio/kafka-go"

	"smartbill/agg-svc/internal/domain"
	"smartbill/agg-svc/internal/storage"
)

type StoreInterface interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
	Apply(ctx context.Context, delta domain.ReportDelta) error
	Report(ctx context.Context, date string, top int) (*domain.DailyReport, error)
}

// MessageReader is the part of *kafka.Reader the consumer relies on.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type ConsumerInterface interface {
	Start(ctx context.Context) error
	ProcessEvent(ctx context.Context, event domain.BillingEvent) error
}

type ReportServiceInterface interface {
	DailyReport(ctx context.Context, date string) (*domain.DailyReport, error)
}

var (
	_ StoreInterface         = (*storage.Store)(nil)
	_ MessageReader          = (*kafka.Reader)(nil)
	_ ConsumerInterface      = (*Consumer)(nil)
	_ ReportServiceInterface = (*ReportService)(nil)
)
