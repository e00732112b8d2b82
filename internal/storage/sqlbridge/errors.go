package sqlbridge

import (
	"errors"
	"fmt"
)

// ErrNoRows indicates a single-row query matched nothing.
var ErrNoRows = errors.New("no rows in result set")

// ErrConflict indicates the statement violated a unique constraint.
var ErrConflict = errors.New("unique constraint violation")

// QueryError wraps a store fault with the operation and statement that raised it.
type QueryError struct {
	Op       string
	Query    string
	Err      error
	conflict bool
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Query, e.Err)
}

// Unwrap exposes the driver error and, for unique violations, ErrConflict.
func (e *QueryError) Unwrap() []error {
	if e.conflict {
		return []error{ErrConflict, e.Err}
	}
	return []error{e.Err}
}
