package orchestrator

import (
	"context"

	"github.com/rainlanguage/orderbook-trades/internal/metrics"
	"github.com/rainlanguage/orderbook-trades/internal/rpc"
	"github.com/rs/zerolog/log"
)

// ChainTracker reads the chain head once per run. The head is not polled
// again mid-run so every run covers a bounded span.
type ChainTracker struct {
	rpc   rpc.IRPCClient
	retry RetryPolicy
}

func NewChainTracker(rpc rpc.IRPCClient, retry RetryPolicy) *ChainTracker {
	return &ChainTracker{
		rpc:   rpc,
		retry: retry,
	}
}

func (ct *ChainTracker) GetHead(ctx context.Context) (uint64, error) {
	head, err := retryWithData(ctx, ct.retry, "head", rpc.IsTransient, func() (uint64, error) {
		return ct.rpc.GetLatestBlockNumber(ctx)
	})
	if err != nil {
		return 0, err
	}
	metrics.ChainHead.Set(float64(head))
	log.Debug().Uint64("head", head).Msg("Fetched chain head")
	return head, nil
}
