package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"smartbill/billing-svc/internal/domain"
)

type TableLedger struct {
	mock.Mock
}

func (m *TableLedger) Create(ctx context.Context, id, name string) (*domain.Table, error) {
	args := m.Called(ctx, id, name)
	table, _ := args.Get(0).(*domain.Table)
	return table, args.Error(1)
}

func (m *TableLedger) Get(ctx context.Context, id string) (*domain.Table, error) {
	args := m.Called(ctx, id)
	table, _ := args.Get(0).(*domain.Table)
	return table, args.Error(1)
}

func (m *TableLedger) List(ctx context.Context) ([]domain.TableSummary, error) {
	args := m.Called(ctx)
	summaries, _ := args.Get(0).([]domain.TableSummary)
	return summaries, args.Error(1)
}

func (m *TableLedger) AddOrder(ctx context.Context, tableID, productName string, amount domain.Money) (*domain.Table, error) {
	args := m.Called(ctx, tableID, productName, amount)
	table, _ := args.Get(0).(*domain.Table)
	return table, args.Error(1)
}

func (m *TableLedger) AddPayment(ctx context.Context, tableID string, amount domain.Money) (*domain.Table, error) {
	args := m.Called(ctx, tableID, amount)
	table, _ := args.Get(0).(*domain.Table)
	return table, args.Error(1)
}

func (m *TableLedger) Reset(ctx context.Context, tableID string) error {
	return m.Called(ctx, tableID).Error(0)
}

func (m *TableLedger) Delete(ctx context.Context, tableID string) error {
	return m.Called(ctx, tableID).Error(0)
}

func NewTableLedger(t interface {
	mock.TestingT
	Cleanup(func())
}) *TableLedger {
	m := &TableLedger{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
