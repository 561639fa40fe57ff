package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"smartbill/agg-svc/internal/domain"
)

type Consumer struct {
	Reader MessageReader
	Store  StoreInterface
	Log    *log.Entry
	// NewBackOff paces retries of a message that failed to apply.
	NewBackOff func() backoff.BackOff
}

func defaultBackOff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = 0
	return policy
}

func NewConsumer(reader MessageReader, store StoreInterface, logger *log.Entry) *Consumer {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Consumer{
		Reader:     reader,
		Store:      store,
		Log:        logger,
		NewBackOff: defaultBackOff,
	}
}

// Start consumes billing events until ctx is cancelled or the reader is
// closed. A message that fails to apply is retried in place; its offset and
// every later one stay uncommitted until it succeeds.
func (c *Consumer) Start(ctx context.Context) error {
	c.Log.Info("Starting Aggregation Service consumer")
	for {
		message, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.Log.WithError(err).Error("Error reading message")
			continue
		}

		if err := c.handle(ctx, message); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.Reader.CommitMessages(ctx, message); err != nil && ctx.Err() == nil {
			c.Log.WithError(err).Warn("Error committing offset")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, message kafka.Message) error {
	var event domain.BillingEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		c.Log.WithError(err).WithField("offset", message.Offset).Warn("Skipping malformed message")
		return nil
	}

	newBackOff := c.NewBackOff
	if newBackOff == nil {
		newBackOff = defaultBackOff
	}
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := c.ProcessEvent(ctx, event)
		if err != nil && ctx.Err() == nil {
			c.Log.WithError(err).WithFields(log.Fields{
				"event_id": event.ID,
				"offset":   message.Offset,
				"attempt":  attempt,
			}).Error("Error processing event")
		}
		return err
	}, backoff.WithContext(newBackOff(), ctx))
}

func (c *Consumer) ProcessEvent(ctx context.Context, event domain.BillingEvent) error {
	entry := c.Log.WithFields(log.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"table_id":   event.TableID,
	})
	if event.ID == "" {
		entry.Warn("Skipping event without id")
		return nil
	}

	delta, err := domain.DeltaFor(event)
	if errors.Is(err, domain.ErrUnknownType) {
		entry.Debug("Ignoring unknown event type")
		return nil
	}

	fresh, err := c.Store.MarkProcessed(ctx, event.ID)
	if err != nil {
		return err
	}
	if !fresh {
		entry.Debug("Duplicate event ignored")
		return nil
	}

	if err := c.Store.Apply(ctx, delta); err != nil {
		if releaseErr := c.Store.ReleaseEvent(ctx, event.ID); releaseErr != nil {
			entry.WithError(releaseErr).Warn("Failed to release event claim")
		}
		return err
	}

	entry.WithField("date", delta.Date).Debug("Event applied")
	return nil
}
