package orchestrator

import (
	"errors"
	"fmt"

	"github.com/rainlanguage/orderbook-trades/internal/common"
)

// Cause tells an operator why a run aborted.
type Cause int

const (
	// CauseTransientExhausted means the log source kept failing with
	// retryable errors until the attempt ceiling was reached.
	CauseTransientExhausted Cause = iota + 1
	// CauseFatalFetch means the log source returned an error retrying cannot fix.
	CauseFatalFetch
	// CauseFatalDecode means a log entry of a known event could not be decoded.
	CauseFatalDecode
	// CauseLedgerCorrupt means the existing ledger could not be parsed.
	CauseLedgerCorrupt
	// CauseLedgerWrite means the ledger could not be read from or appended to.
	CauseLedgerWrite
	// CauseCanceled means the run was interrupted before it completed.
	CauseCanceled
)

func (c Cause) String() string {
	switch c {
	case CauseTransientExhausted:
		return "transient_exhausted"
	case CauseFatalFetch:
		return "fatal_fetch"
	case CauseFatalDecode:
		return "fatal_decode"
	case CauseLedgerCorrupt:
		return "ledger_corrupt"
	case CauseLedgerWrite:
		return "ledger_write"
	case CauseCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("cause(%d)", int(c))
	}
}

// ExitCode maps the cause to the process exit status, 2 through 7. Exit
// status 1 is left for configuration and startup errors.
func (c Cause) ExitCode() int {
	return int(c) + 1
}

// RunError is returned by Run when it aborts. Range is the window that was
// being processed, or nil when the run failed before any window started.
// The ledger holds every window committed before Range.
type RunError struct {
	Cause Cause
	Range *common.BlockRange
	Err   error
}

func (e *RunError) Error() string {
	if e.Range != nil {
		return fmt.Sprintf("run aborted (%s) in window %s: %v", e.Cause, e.Range, e.Err)
	}
	return fmt.Sprintf("run aborted (%s): %v", e.Cause, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func AsRunError(err error) (*RunError, bool) {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr, true
	}
	return nil, false
}
