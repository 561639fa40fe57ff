package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"smartbill/agg-svc/internal/domain"
)

type StoreInterface struct {
	mock.Mock
}

func (m *StoreInterface) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *StoreInterface) ReleaseEvent(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *StoreInterface) Apply(ctx context.Context, delta domain.ReportDelta) error {
	return m.Called(ctx, delta).Error(0)
}

func (m *StoreInterface) Report(ctx context.Context, date string, top int) (*domain.DailyReport, error) {
	args := m.Called(ctx, date, top)
	report, _ := args.Get(0).(*domain.DailyReport)
	return report, args.Error(1)
}

func NewStoreInterface(t interface {
	mock.TestingT
	Cleanup(func())
}) *StoreInterface {
	m := &StoreInterface{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
