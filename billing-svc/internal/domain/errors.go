package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("table not found")
	ErrAlreadyExists    = errors.New("table already exists")
	ErrStoreUnavailable = errors.New("ledger store unavailable")
	ErrInvariant        = errors.New("ledger invariant violated")

	// ErrCommitUnknown is a store failure after the write was sent. The change
	// may have been applied, so it is never retried.
	ErrCommitUnknown = fmt.Errorf("%w: commit outcome unknown", ErrStoreUnavailable)
)

// OpError names the ledger operation and table an error belongs to. It
// unwraps to one of the category errors above.
type OpError struct {
	Op      string
	TableID string
	Err     error
}

func (e *OpError) Error() string {
	if e.TableID == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s table %q: %s", e.Op, e.TableID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// WrapOp attaches op and table id to err unless it already carries them.
func WrapOp(op, tableID string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return &OpError{Op: op, TableID: tableID, Err: err}
}

func Invalid(op, tableID, format string, args ...interface{}) error {
	return &OpError{
		Op:      op,
		TableID: tableID,
		Err:     fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...)),
	}
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) && !errors.Is(err, ErrCommitUnknown)
}
