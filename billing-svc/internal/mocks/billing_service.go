package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"smartbill/billing-svc/internal/domain"
)

type BillingServiceInterface struct {
	mock.Mock
}

func (m *BillingServiceInterface) CreateTable(ctx context.Context, id, name string) (*domain.Table, error) {
	args := m.Called(ctx, id, name)
	table, _ := args.Get(0).(*domain.Table)
	return table, args.Error(1)
}

func (m *BillingServiceInterface) ListTables(ctx context.Context) ([]domain.TableSummary, error) {
	args := m.Called(ctx)
	summaries, _ := args.Get(0).([]domain.TableSummary)
	return summaries, args.Error(1)
}

func (m *BillingServiceInterface) GetTable(ctx context.Context, id string) (*domain.Table, error) {
	args := m.Called(ctx, id)
	table, _ := args.Get(0).(*domain.Table)
	return table, args.Error(1)
}

func (m *BillingServiceInterface) AddOrder(ctx context.Context, tableID, productName string, amount domain.Money) (*domain.Table, error) {
	args := m.Called(ctx, tableID, productName, amount)
	table, _ := args.Get(0).(*domain.Table)
	return table, args.Error(1)
}

func (m *BillingServiceInterface) AddPayment(ctx context.Context, tableID string, amount domain.Money) (*domain.Table, error) {
	args := m.Called(ctx, tableID, amount)
	table, _ := args.Get(0).(*domain.Table)
	return table, args.Error(1)
}

func (m *BillingServiceInterface) ResetTable(ctx context.Context, tableID string) error {
	return m.Called(ctx, tableID).Error(0)
}

func (m *BillingServiceInterface) DeleteTable(ctx context.Context, tableID string) error {
	return m.Called(ctx, tableID).Error(0)
}

func (m *BillingServiceInterface) TableQRCode(ctx context.Context, tableID string) ([]byte, error) {
	args := m.Called(ctx, tableID)
	png, _ := args.Get(0).([]byte)
	return png, args.Error(1)
}

func NewBillingServiceInterface(t interface {
	mock.TestingT
	Cleanup(func())
}) *BillingServiceInterface {
	m := &BillingServiceInterface{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
