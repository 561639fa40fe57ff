package service

import (
	"context"
	"time"

	"smartbill/agg-svc/internal/domain"
)

const topProducts = 10

type ReportService struct {
	Store StoreInterface
	Now   func() time.Time
}

func NewReportService(store StoreInterface) *ReportService {
	return &ReportService{Store: store, Now: time.Now}
}

// DailyReport returns the report for date, or for today (UTC) when date is
// empty.
func (s *ReportService) DailyReport(ctx context.Context, date string) (*domain.DailyReport, error) {
	if date == "" {
		date = s.Now().UTC().Format(domain.DateLayout)
	} else {
		parsed, err := domain.ParseDate(date)
		if err != nil {
			return nil, err
		}
		date = parsed
	}
	return s.Store.Report(ctx, date, topProducts)
}
