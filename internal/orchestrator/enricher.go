package orchestrator

import (
	"context"
	"fmt"

	gethCommon "github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rainlanguage/orderbook-trades/internal/common"
	"github.com/rainlanguage/orderbook-trades/internal/rpc"
)

const DEFAULT_ENRICHMENT_CACHE_SIZE = 10000

// Enricher fills the block timestamp and transaction origin of decoded
// trades. Lookups are cached across windows since trades cluster in blocks
// and transactions.
type Enricher struct {
	rpc        rpc.IRPCClient
	timestamps *lru.Cache[uint64, uint64]
	origins    *lru.Cache[gethCommon.Hash, gethCommon.Address]
}

func NewEnricher(rpc rpc.IRPCClient, cacheSize int) (*Enricher, error) {
	if cacheSize <= 0 {
		cacheSize = DEFAULT_ENRICHMENT_CACHE_SIZE
	}
	timestamps, err := lru.New[uint64, uint64](cacheSize)
	if err != nil {
		return nil, err
	}
	origins, err := lru.New[gethCommon.Hash, gethCommon.Address](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Enricher{rpc: rpc, timestamps: timestamps, origins: origins}, nil
}

// Enrich sets Timestamp and TxOrigin on every record in place. A block or
// transaction the node does not return fails with rpc.ErrMissingResult.
func (e *Enricher) Enrich(ctx context.Context, records []common.TradeRecord) error {
	if len(records) == 0 {
		return nil
	}

	blocks := make([]uint64, 0, len(records))
	txHashes := make([]gethCommon.Hash, 0, len(records))
	for _, record := range records {
		if !e.timestamps.Contains(record.BlockNumber) {
			blocks = append(blocks, record.BlockNumber)
		}
		if !e.origins.Contains(record.TransactionHash) {
			txHashes = append(txHashes, record.TransactionHash)
		}
	}
	blocks = common.Distinct(blocks)
	txHashes = common.Distinct(txHashes)

	timestamps := make(map[uint64]uint64, len(blocks))
	if len(blocks) > 0 {
		fetched, err := e.rpc.GetBlockTimestamps(ctx, blocks)
		if err != nil {
			return err
		}
		for _, block := range blocks {
			ts, ok := fetched[block]
			if !ok {
				return fmt.Errorf("timestamp of block %d: %w", block, rpc.ErrMissingResult)
			}
			timestamps[block] = ts
		}
	}

	origins := make(map[gethCommon.Hash]gethCommon.Address, len(txHashes))
	if len(txHashes) > 0 {
		fetched, err := e.rpc.GetTransactionOrigins(ctx, txHashes)
		if err != nil {
			return err
		}
		for _, txHash := range txHashes {
			from, ok := fetched[txHash]
			if !ok {
				return fmt.Errorf("origin of transaction %s: %w", txHash.Hex(), rpc.ErrMissingResult)
			}
			origins[txHash] = from
		}
	}

	// caches are only filled once the whole window resolved
	for block, ts := range timestamps {
		e.timestamps.Add(block, ts)
	}
	for txHash, from := range origins {
		e.origins.Add(txHash, from)
	}

	for i := range records {
		ts, ok := timestamps[records[i].BlockNumber]
		if !ok {
			ts, ok = e.timestamps.Get(records[i].BlockNumber)
		}
		if !ok {
			return fmt.Errorf("timestamp of block %d: %w", records[i].BlockNumber, rpc.ErrMissingResult)
		}
		from, ok := origins[records[i].TransactionHash]
		if !ok {
			from, ok = e.origins.Get(records[i].TransactionHash)
		}
		if !ok {
			return fmt.Errorf("origin of transaction %s: %w", records[i].TransactionHash.Hex(), rpc.ErrMissingResult)
		}
		records[i].Timestamp = ts
		records[i].TxOrigin = from
	}
	return nil
}
