package storage

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"smartbill/agg-svc/internal/domain"
)

const (
	reportTTL = 7 * 24 * time.Hour
	dedupeTTL = 24 * time.Hour
)

type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func eventKey(id string) string {
	return "agg:event:" + id
}

func dailyKey(date string) string {
	return "report:daily:" + date
}

func productsKey(date string) string {
	return "report:products:" + date
}

// MarkProcessed claims an event id. It reports false when the id was
// already claimed within the dedupe window.
func (s *Store) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	fresh, err := s.rdb.SetNX(ctx, eventKey(eventID), 1, dedupeTTL).Result()
	if err != nil {
		return false, errors.Wrapf(err, "mark event %s", eventID)
	}
	return fresh, nil
}

// ReleaseEvent drops a claim so a redelivered event is applied again.
func (s *Store) ReleaseEvent(ctx context.Context, eventID string) error {
	return errors.Wrapf(s.rdb.Del(ctx, eventKey(eventID)).Err(), "release event %s", eventID)
}

func (s *Store) Apply(ctx context.Context, delta domain.ReportDelta) error {
	daily := dailyKey(delta.Date)
	products := productsKey(delta.Date)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for field, value := range delta.Counters {
			pipe.HIncrBy(ctx, daily, field, value)
		}
		pipe.Expire(ctx, daily, reportTTL)

		if delta.ProductName != "" {
			pipe.ZIncrBy(ctx, products, float64(delta.ProductMinor), delta.ProductName)
			pipe.Expire(ctx, products, reportTTL)
		}
		return nil
	})
	return errors.Wrapf(err, "apply report delta for %s", delta.Date)
}

func (s *Store) Report(ctx context.Context, date string, top int) (*domain.DailyReport, error) {
	counters, err := s.rdb.HGetAll(ctx, dailyKey(date)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "read daily report %s", date)
	}

	report := &domain.DailyReport{Date: date, TopProducts: []domain.ProductTotal{}}
	for field, target := range map[string]*int64{
		domain.CounterTablesCreated: &report.TablesCreated,
		domain.CounterTablesDeleted: &report.TablesDeleted,
		domain.CounterOrders:        &report.Orders,
		domain.CounterOrderedMinor:  &report.OrderedMinor,
		domain.CounterPayments:      &report.Payments,
		domain.CounterPaidMinor:     &report.PaidMinor,
		domain.CounterResets:        &report.Resets,
	} {
		raw, ok := counters[field]
		if !ok {
			continue
		}
		if *target, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, errors.Wrapf(err, "parse %s counter", field)
		}
	}

	if top <= 0 {
		return report, nil
	}
	ranked, err := s.rdb.ZRevRangeWithScores(ctx, productsKey(date), 0, int64(top-1)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "read product ranking %s", date)
	}
	for _, z := range ranked {
		name, _ := z.Member.(string)
		report.TopProducts = append(report.TopProducts, domain.ProductTotal{
			ProductName:  name,
			OrderedMinor: int64(math.Round(z.Score)),
		})
	}
	return report, nil
}
