package orchestrator

import (
	"context"
	"time"

	"github.com/rainlanguage/orderbook-trades/internal/common"
	"github.com/rainlanguage/orderbook-trades/internal/ledger"
	"github.com/rainlanguage/orderbook-trades/internal/metrics"
	"github.com/rs/zerolog/log"
)

type LedgerStore interface {
	LoadResumePoint(deploymentBlock uint64) (uint64, error)
	Append(records []common.TradeRecord) (ledger.AppendResult, error)
}

// TradePublisher receives the trades of every committed window.
type TradePublisher interface {
	PublishTrades(ctx context.Context, trades []common.TradeRecord) error
}

// Committer appends a window's trades to the ledger and fans newly appended
// trades out to the publisher.
type Committer struct {
	ledger    LedgerStore
	retry     RetryPolicy
	publisher TradePublisher
}

func NewCommitter(store LedgerStore, retry RetryPolicy, publisher TradePublisher) *Committer {
	return &Committer{
		ledger:    store,
		retry:     retry,
		publisher: publisher,
	}
}

// Commit appends records in one ledger write. A failed append leaves the
// ledger as it was, so the write is retried as a whole.
func (c *Committer) Commit(ctx context.Context, window common.BlockRange, records []common.TradeRecord) (ledger.AppendResult, error) {
	start := time.Now()
	result, err := retryWithData(ctx, c.retry, "commit", ledger.IsWriteError, func() (ledger.AppendResult, error) {
		return c.ledger.Append(records)
	})
	if err != nil {
		return ledger.AppendResult{}, err
	}

	metrics.CommitDuration.Observe(time.Since(start).Seconds())
	metrics.WindowsCommitted.Inc()
	metrics.LastCommittedBlock.Set(float64(window.To))
	metrics.RecordsAppended.Add(float64(len(result.Appended)))
	metrics.DuplicatesSkipped.Add(float64(result.Duplicates))

	log.Info().
		Uint64("from_block", window.From).
		Uint64("to_block", window.To).
		Int("records", len(result.Appended)).
		Int("duplicates", result.Duplicates).
		Msg("Committed window")

	c.publish(ctx, window, result.Appended)
	return result, nil
}

// publish never fails the window: the ledger is already committed.
func (c *Committer) publish(ctx context.Context, window common.BlockRange, trades []common.TradeRecord) {
	if c.publisher == nil || len(trades) == 0 {
		return
	}
	start := time.Now()
	if err := c.publisher.PublishTrades(ctx, trades); err != nil {
		metrics.PublisherFailures.Inc()
		log.Error().Err(err).Uint64("from_block", window.From).Uint64("to_block", window.To).Msg("Failed to publish committed trades")
		return
	}
	metrics.PublishDuration.Observe(time.Since(start).Seconds())
	metrics.PublisherTradeCounter.Add(float64(len(trades)))
}
