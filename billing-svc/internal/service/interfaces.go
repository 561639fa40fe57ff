package service

import (
	"context"

	"smartbill/billing-svc/internal/domain"
)

type BillingServiceInterface interface {
	CreateTable(ctx context.Context, id, name string) (*domain.Table, error)
	ListTables(ctx context.Context) ([]domain.TableSummary, error)
	GetTable(ctx context.Context, id string) (*domain.Table, error)
	AddOrder(ctx context.Context, tableID, productName string, amount domain.Money) (*domain.Table, error)
	AddPayment(ctx context.Context, tableID string, amount domain.Money) (*domain.Table, error)
	ResetTable(ctx context.Context, tableID string) error
	DeleteTable(ctx context.Context, tableID string) error
	TableQRCode(ctx context.Context, tableID string) ([]byte, error)
}

type TableLedger interface {
	Create(ctx context.Context, id, name string) (*domain.Table, error)
	Get(ctx context.Context, id string) (*domain.Table, error)
	List(ctx context.Context) ([]domain.TableSummary, error)
	AddOrder(ctx context.Context, tableID, productName string, amount domain.Money) (*domain.Table, error)
	AddPayment(ctx context.Context, tableID string, amount domain.Money) (*domain.Table, error)
	Reset(ctx context.Context, tableID string) error
	Delete(ctx context.Context, tableID string) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, event domain.BillingEvent) error
}

var _ BillingServiceInterface = (*BillingService)(nil)
