package ledger

import (
	"errors"
	"fmt"
)

// ErrLedgerCorrupt is returned when existing ledger content cannot be parsed
// back into trade records. Callers must halt rather than write past it.
var ErrLedgerCorrupt = errors.New("ledger corrupt")

func corruptf(path string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrLedgerCorrupt, path, fmt.Sprintf(format, args...))
}

// WriteError reports a failed append. The ledger has been rolled back to its
// state before the append was attempted whenever RolledBack is true.
type WriteError struct {
	Path       string
	RolledBack bool
	Err        error
}

func (e *WriteError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("failed to append to ledger %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to append to ledger %s (rollback failed): %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func IsCorrupt(err error) bool {
	return errors.Is(err, ErrLedgerCorrupt)
}

func IsWriteError(err error) bool {
	var writeErr *WriteError
	return errors.As(err, &writeErr)
}
