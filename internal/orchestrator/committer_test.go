package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/rainlanguage/orderbook-trades/internal/common"
	"github.com/rainlanguage/orderbook-trades/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyLedger struct {
	memoryLedger
	failures int
	err      error
}

func (l *flakyLedger) Append(records []common.TradeRecord) (ledger.AppendResult, error) {
	if l.failures > 0 {
		l.failures--
		return ledger.AppendResult{}, l.err
	}
	return l.memoryLedger.Append(records)
}

func TestCommitterRetriesWriteErrors(t *testing.T) {
	store := &flakyLedger{failures: 2, err: &ledger.WriteError{Path: "trades.csv", RolledBack: true, Err: errors.New("disk full")}}
	publisher := &recordingPublisher{}
	committer := NewCommitter(store, testRetry, publisher)

	records := []common.TradeRecord{{BlockNumber: 120, TransactionHash: txHash(120, 0)}}
	result, err := committer.Commit(context.Background(), common.BlockRange{From: 100, To: 199}, records)
	require.NoError(t, err)
	assert.Len(t, result.Appended, 1)
	assert.Equal(t, 1, store.appends)
	assert.Len(t, publisher.trades, 1)
}

func TestCommitterDoesNotRetryOtherErrors(t *testing.T) {
	store := &flakyLedger{failures: 1, err: errors.New("ledger is corrupt")}
	committer := NewCommitter(store, testRetry, nil)

	_, err := committer.Commit(context.Background(), common.BlockRange{From: 100, To: 199}, nil)
	require.Error(t, err)
	assert.Zero(t, store.appends)
}

func TestCommitterSkipsPublishingEmptyWindows(t *testing.T) {
	store := &flakyLedger{}
	publisher := &recordingPublisher{}
	committer := NewCommitter(store, testRetry, publisher)

	_, err := committer.Commit(context.Background(), common.BlockRange{From: 100, To: 199}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, store.appends)
	assert.Empty(t, publisher.trades)
}
