package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltaFor(t *testing.T) {
	at := time.Date(2026, 3, 1, 23, 30, 0, 0, time.FixedZone("TRT", 3*3600))

	tests := []struct {
		name      string
		event     BillingEvent
		want      ReportDelta
		wantError error
	}{
		{
			name:  "order counts product",
			event: BillingEvent{ID: "e1", Type: EventOrderAdded, ProductName: "Çay", AmountMinor: 1250, Timestamp: at},
			want: ReportDelta{
				Date:         "2026-03-01",
				Counters:     map[string]int64{CounterOrders: 1, CounterOrderedMinor: 1250},
				ProductName:  "Çay",
				ProductMinor: 1250,
			},
		},
		{
			name:  "payment",
			event: BillingEvent{ID: "e2", Type: EventPaymentAdded, AmountMinor: 500, Timestamp: at},
			want: ReportDelta{
				Date:     "2026-03-01",
				Counters: map[string]int64{CounterPayments: 1, CounterPaidMinor: 500},
			},
		},
		{
			name:  "reset",
			event: BillingEvent{ID: "e3", Type: EventTableReset, Timestamp: at},
			want:  ReportDelta{Date: "2026-03-01", Counters: map[string]int64{CounterResets: 1}},
		},
		{
			name:      "unknown type",
			event:     BillingEvent{ID: "e4", Type: "table_renamed", Timestamp: at},
			wantError: ErrUnknownType,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			got, err := DeltaFor(testCase.event)
			if testCase.wantError != nil {
				assert.ErrorIs(t, err, testCase.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.want, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", got)

	for _, bad := range []string{"", "01-03-2026", "2026-13-01", "yesterday"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
	}
}
