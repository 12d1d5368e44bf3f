package orchestrator

import (
	"context"
	"errors"
	"testing"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/rainlanguage/orderbook-trades/internal/common"
	"github.com/rainlanguage/orderbook-trades/internal/ledger"
	"github.com/rainlanguage/orderbook-trades/internal/rpc"
	"github.com/rainlanguage/orderbook-trades/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEnricherFetchesDistinctKeysOnce(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	enricher, err := NewEnricher(mockRPC, 16)
	require.NoError(t, err)

	txA := txHash(10, 0)
	txB := txHash(11, 0)
	records := []common.TradeRecord{
		{BlockNumber: 10, TransactionHash: txA, LogIndex: 0},
		{BlockNumber: 10, TransactionHash: txA, LogIndex: 1},
		{BlockNumber: 11, TransactionHash: txB, LogIndex: 0},
	}

	mockRPC.On("GetBlockTimestamps", mock.Anything, []uint64{10, 11}).Return(map[uint64]uint64{10: 1000, 11: 1012}, nil).Once()
	mockRPC.On("GetTransactionOrigins", mock.Anything, []gethCommon.Hash{txA, txB}).Return(map[gethCommon.Hash]gethCommon.Address{txA: originOf(txA), txB: originOf(txB)}, nil).Once()

	require.NoError(t, enricher.Enrich(context.Background(), records))
	assert.Equal(t, uint64(1000), records[0].Timestamp)
	assert.Equal(t, uint64(1000), records[1].Timestamp)
	assert.Equal(t, uint64(1012), records[2].Timestamp)
	assert.Equal(t, originOf(txA), records[1].TxOrigin)
	assert.Equal(t, originOf(txB), records[2].TxOrigin)

	// Test case: cached keys are not requested again
	again := []common.TradeRecord{{BlockNumber: 11, TransactionHash: txB, LogIndex: 0}}
	require.NoError(t, enricher.Enrich(context.Background(), again))
	assert.Equal(t, uint64(1012), again[0].Timestamp)
	assert.Equal(t, originOf(txB), again[0].TxOrigin)
}

func TestEnricherReportsMissingData(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	enricher, err := NewEnricher(mockRPC, 16)
	require.NoError(t, err)

	records := []common.TradeRecord{{BlockNumber: 10, TransactionHash: txHash(10, 0)}}
	mockRPC.On("GetBlockTimestamps", mock.Anything, []uint64{10}).Return(map[uint64]uint64{}, nil).Once()

	err = enricher.Enrich(context.Background(), records)
	require.Error(t, err)
	assert.ErrorIs(t, err, rpc.ErrMissingResult)
	assert.True(t, rpc.IsTransient(err))
	assert.Zero(t, records[0].Timestamp)
}

func TestEnricherPropagatesSourceErrors(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	enricher, err := NewEnricher(mockRPC, 16)
	require.NoError(t, err)

	records := []common.TradeRecord{{BlockNumber: 10, TransactionHash: txHash(10, 0)}}
	mockRPC.On("GetBlockTimestamps", mock.Anything, []uint64{10}).Return(map[uint64]uint64{10: 1000}, nil).Once()
	mockRPC.On("GetTransactionOrigins", mock.Anything, mock.Anything).Return(nil, errors.New("method not found")).Once()

	err = enricher.Enrich(context.Background(), records)
	require.Error(t, err)
	assert.False(t, rpc.IsTransient(err))
}

func TestRunFailsWhenHeadIsUnavailable(t *testing.T) {
	// Test case: a fatal error while reading the head aborts before any window
	mockRPC := mocks.NewMockIRPCClient(t)
	mockRPC.On("GetLatestBlockNumber", mock.Anything).Return(uint64(0), errors.New("the method eth_blockNumber does not exist")).Once()

	store := &memoryLedger{resume: 100}
	o, err := NewOrchestrator(mockRPC, store, fakeDecoder{}, WithContract(orderbook, 100), WithMaxWindow(100), WithRetryPolicy(testRetry), WithEnrichment(false))
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.Error(t, err)
	runErr, ok := AsRunError(err)
	require.True(t, ok)
	assert.Equal(t, CauseFatalFetch, runErr.Cause)
	assert.Nil(t, runErr.Range)
	assert.Equal(t, StateFailed, o.State())
	assert.Zero(t, store.appends)
}

func TestRunCommitsEmptyWindowsWithMock(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	mockRPC.On("GetLatestBlockNumber", mock.Anything).Return(uint64(250), nil).Once()
	mockRPC.On("FilterLogs", mock.Anything, orderbook, []gethCommon.Hash{tradeTopic}, uint64(100), uint64(199)).Return(nil, nil).Once()
	mockRPC.On("FilterLogs", mock.Anything, orderbook, []gethCommon.Hash{tradeTopic}, uint64(200), uint64(250)).Return(nil, nil).Once()

	store := &memoryLedger{resume: 100}
	o, err := NewOrchestrator(mockRPC, store, fakeDecoder{}, WithContract(orderbook, 100), WithMaxWindow(100), WithRetryPolicy(testRetry), WithEnrichment(true))
	require.NoError(t, err)

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.WindowsCommitted)
	assert.Equal(t, uint64(250), result.LastCommittedBlock)
	assert.Equal(t, 2, store.appends)
}

type memoryLedger struct {
	resume  uint64
	records []common.TradeRecord
	appends int
}

func (l *memoryLedger) LoadResumePoint(deploymentBlock uint64) (uint64, error) {
	return max(l.resume, deploymentBlock), nil
}

func (l *memoryLedger) Append(records []common.TradeRecord) (ledger.AppendResult, error) {
	l.appends++
	l.records = append(l.records, records...)
	return ledger.AppendResult{Appended: records}, nil
}
