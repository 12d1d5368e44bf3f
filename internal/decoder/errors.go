package decoder

import (
	"errors"
	"fmt"

	gethCommon "github.com/ethereum/go-ethereum/common"
)

type DecodeErrorKind int

const (
	// UnknownEvent entries are dropped from the window without aborting.
	UnknownEvent DecodeErrorKind = iota
	// Malformed entries abort the window; they are never written to the ledger.
	Malformed
)

func (k DecodeErrorKind) String() string {
	switch k {
	case UnknownEvent:
		return "unknown_event"
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("decode_error_kind(%d)", int(k))
	}
}

type DecodeError struct {
	Kind        DecodeErrorKind
	BlockNumber uint64
	TxHash      gethCommon.Hash
	LogIndex    uint64
	Topic0      string
	Err         error
}

func (e *DecodeError) Error() string {
	location := fmt.Sprintf("block %d tx %s log %d", e.BlockNumber, e.TxHash.Hex(), e.LogIndex)
	if e.Kind == UnknownEvent {
		return fmt.Sprintf("unknown event %s at %s", e.Topic0, location)
	}
	return fmt.Sprintf("malformed %s log at %s: %v", e.Topic0, location, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func IsUnknownEvent(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr) && decodeErr.Kind == UnknownEvent
}

func IsMalformed(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr) && decodeErr.Kind == Malformed
}
