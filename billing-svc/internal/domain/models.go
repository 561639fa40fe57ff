package domain

import (
	"fmt"
	"time"
)

const (
	MaxTableIDLength     = 50
	MaxTableNameLength   = 100
	MaxProductNameLength = 100
)

type TableStatus string

const (
	StatusEmpty    TableStatus = "empty"
	StatusOccupied TableStatus = "occupied"
)

type OrderLine struct {
	ID          int64     `json:"id"`
	ProductName string    `json:"product_name"`
	Amount      Money     `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

type Payment struct {
	ID        string    `json:"id"`
	Amount    Money     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Table is the open bill of one restaurant table. Orders and Payments only
// grow between resets; the totals are kept in step with them.
type Table struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Orders       []OrderLine `json:"orders"`
	Payments     []Payment   `json:"payments"`
	TotalOrdered Money       `json:"total_ordered"`
	TotalPaid    Money       `json:"total_paid"`
	NextLineID   int64       `json:"next_line_id"`
	CreatedAt    time.Time   `json:"created_at"`
}

type TableSummary struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Status           TableStatus `json:"status"`
	TotalOrdered     Money       `json:"total_ordered"`
	TotalPaid        Money       `json:"total_paid"`
	RemainingBalance Money       `json:"remaining_balance"`
}

func NewTable(id, name string, createdAt time.Time) *Table {
	return &Table{
		ID:         id,
		Name:       name,
		Orders:     []OrderLine{},
		Payments:   []Payment{},
		NextLineID: 1,
		CreatedAt:  createdAt,
	}
}

func (t *Table) Status() TableStatus {
	if len(t.Orders) > 0 {
		return StatusOccupied
	}
	return StatusEmpty
}

// RemainingBalance is negative when the table has been overpaid.
func (t *Table) RemainingBalance() Money {
	return t.TotalOrdered - t.TotalPaid
}

func (t *Table) AppendOrder(productName string, amount Money, at time.Time) OrderLine {
	line := OrderLine{
		ID:          t.NextLineID,
		ProductName: productName,
		Amount:      amount,
		CreatedAt:   at,
	}
	t.NextLineID++
	t.Orders = append(t.Orders, line)
	t.TotalOrdered += amount
	return line
}

func (t *Table) AppendPayment(id string, amount Money, at time.Time) Payment {
	payment := Payment{ID: id, Amount: amount, CreatedAt: at}
	t.Payments = append(t.Payments, payment)
	t.TotalPaid += amount
	return payment
}

// Reset closes out the bill. Identity, creation time and the line id
// counter survive so line ids are never reused.
func (t *Table) Reset() {
	t.Orders = []OrderLine{}
	t.Payments = []Payment{}
	t.TotalOrdered = 0
	t.TotalPaid = 0
}

func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Orders = append(make([]OrderLine, 0, len(t.Orders)), t.Orders...)
	clone.Payments = append(make([]Payment, 0, len(t.Payments)), t.Payments...)
	return &clone
}

func (t *Table) Summary() TableSummary {
	return TableSummary{
		ID:               t.ID,
		Name:             t.Name,
		Status:           t.Status(),
		TotalOrdered:     t.TotalOrdered,
		TotalPaid:        t.TotalPaid,
		RemainingBalance: t.RemainingBalance(),
	}
}

// Verify recomputes every derived quantity and reports the first mismatch.
func (t *Table) Verify() error {
	if t.ID == "" {
		return fmt.Errorf("%w: empty table id", ErrInvariant)
	}

	var ordered Money
	seen := make(map[int64]struct{}, len(t.Orders))
	for _, line := range t.Orders {
		if !line.Amount.IsPositive() {
			return fmt.Errorf("%w: order line %d has non-positive amount %s", ErrInvariant, line.ID, line.Amount)
		}
		if line.ID <= 0 || line.ID >= t.NextLineID {
			return fmt.Errorf("%w: order line id %d outside [1, %d)", ErrInvariant, line.ID, t.NextLineID)
		}
		if _, dup := seen[line.ID]; dup {
			return fmt.Errorf("%w: duplicate order line id %d", ErrInvariant, line.ID)
		}
		seen[line.ID] = struct{}{}
		sum, err := ordered.Add(line.Amount)
		if err != nil {
			return fmt.Errorf("%w: order lines overflow the total", ErrInvariant)
		}
		ordered = sum
	}
	if ordered != t.TotalOrdered {
		return fmt.Errorf("%w: total ordered %s, lines sum to %s", ErrInvariant, t.TotalOrdered, ordered)
	}

	var paid Money
	for _, payment := range t.Payments {
		if !payment.Amount.IsPositive() {
			return fmt.Errorf("%w: payment %s has non-positive amount %s", ErrInvariant, payment.ID, payment.Amount)
		}
		sum, err := paid.Add(payment.Amount)
		if err != nil {
			return fmt.Errorf("%w: payments overflow the total", ErrInvariant)
		}
		paid = sum
	}
	if paid != t.TotalPaid {
		return fmt.Errorf("%w: total paid %s, payments sum to %s", ErrInvariant, t.TotalPaid, paid)
	}
	return nil
}
