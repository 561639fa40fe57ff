package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"smartbill/agg-svc/internal/domain"
)

type ReportServiceInterface struct {
	mock.Mock
}

func (m *ReportServiceInterface) DailyReport(ctx context.Context, date string) (*domain.DailyReport, error) {
	args := m.Called(ctx, date)
	report, _ := args.Get(0).(*domain.DailyReport)
	return report, args.Error(1)
}

func NewReportServiceInterface(t interface {
	mock.TestingT
	Cleanup(func())
}) *ReportServiceInterface {
	m := &ReportServiceInterface{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
