package ledger

import (
	"context"

	"smartbill/billing-svc/internal/domain"
)

// MutateFunc edits a private copy of a table. Returning an error discards
// the copy.
type MutateFunc func(table *domain.Table) error

// Store persists tables keyed by id. Update is an atomic read-modify-write
// on one key; calls for different keys must not wait on each other.
//
// Implementations report missing keys with domain.ErrNotFound, duplicate
// inserts with domain.ErrAlreadyExists and backend failures with
// domain.ErrStoreUnavailable. Errors returned by a MutateFunc are passed
// through untouched.
type Store interface {
	Insert(ctx context.Context, table *domain.Table) error
	Get(ctx context.Context, id string) (*domain.Table, error)
	List(ctx context.Context) ([]*domain.Table, error)
	Update(ctx context.Context, id string, fn MutateFunc) (*domain.Table, error)
	Delete(ctx context.Context, id string) error
}
