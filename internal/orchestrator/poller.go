package orchestrator

import (
	"context"
	"time"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rainlanguage/orderbook-trades/internal/common"
	"github.com/rainlanguage/orderbook-trades/internal/metrics"
	"github.com/rainlanguage/orderbook-trades/internal/rpc"
	"github.com/rs/zerolog/log"
)

// Poller fetches the raw logs of one window and, when enabled, the block
// timestamps and transaction origins of its decoded trades. Every call is
// retried under the same policy.
type Poller struct {
	rpc      rpc.IRPCClient
	address  gethCommon.Address
	topics   []gethCommon.Hash
	retry    RetryPolicy
	enricher *Enricher
}

func NewPoller(rpc rpc.IRPCClient, address gethCommon.Address, topics []gethCommon.Hash, retry RetryPolicy, enricher *Enricher) *Poller {
	return &Poller{
		rpc:      rpc,
		address:  address,
		topics:   topics,
		retry:    retry,
		enricher: enricher,
	}
}

func (p *Poller) FetchLogs(ctx context.Context, window common.BlockRange) ([]types.Log, error) {
	start := time.Now()
	logs, err := retryWithData(ctx, p.retry, "logs", rpc.IsTransient, func() ([]types.Log, error) {
		return p.rpc.FilterLogs(ctx, p.address, p.topics, window.From, window.To)
	})
	if err != nil {
		return nil, err
	}
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	log.Debug().Uint64("from_block", window.From).Uint64("to_block", window.To).Int("logs", len(logs)).Dur("duration", time.Since(start)).Msg("Fetched logs")
	return logs, nil
}

// Enrich is a no-op when enrichment is disabled.
func (p *Poller) Enrich(ctx context.Context, records []common.TradeRecord) error {
	if p.enricher == nil || len(records) == 0 {
		return nil
	}
	start := time.Now()
	_, err := retryWithData(ctx, p.retry, "enrich", rpc.IsTransient, func() (struct{}, error) {
		return struct{}{}, p.enricher.Enrich(ctx, records)
	})
	if err != nil {
		return err
	}
	metrics.EnrichDuration.Observe(time.Since(start).Seconds())
	return nil
}
