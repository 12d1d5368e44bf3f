package rpc

import (
	"fmt"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog/log"
)

// RawBlockHeader is the part of an eth_getBlockByNumber result enrichment
// needs. A null result unmarshals into a nil pointer.
type RawBlockHeader struct {
	Number    hexutil.Uint64 `json:"number"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// RawTransaction is the part of an eth_getTransactionByHash result
// enrichment needs.
type RawTransaction struct {
	Hash gethCommon.Hash    `json:"hash"`
	From gethCommon.Address `json:"from"`
}

func SerializeBlockTimestamps(blocks []RPCFetchBatchResult[uint64, *RawBlockHeader]) (map[uint64]uint64, error) {
	timestamps := make(map[uint64]uint64, len(blocks))
	for _, rawBlock := range blocks {
		if rawBlock.Error != nil {
			return nil, fmt.Errorf("eth_getBlockByNumber %d: %w", rawBlock.Key, rawBlock.Error)
		}
		if rawBlock.Result == nil {
			log.Warn().Msgf("Received a nil block result for block %d.", rawBlock.Key)
			return nil, fmt.Errorf("block %d: %w", rawBlock.Key, ErrMissingResult)
		}
		if uint64(rawBlock.Result.Number) != rawBlock.Key {
			return nil, fmt.Errorf("%w: requested block %d, got %d", ErrMalformedResponse, rawBlock.Key, uint64(rawBlock.Result.Number))
		}
		timestamps[rawBlock.Key] = uint64(rawBlock.Result.Timestamp)
	}
	return timestamps, nil
}

func SerializeTransactionOrigins(transactions []RPCFetchBatchResult[gethCommon.Hash, *RawTransaction]) (map[gethCommon.Hash]gethCommon.Address, error) {
	origins := make(map[gethCommon.Hash]gethCommon.Address, len(transactions))
	for _, rawTx := range transactions {
		if rawTx.Error != nil {
			return nil, fmt.Errorf("eth_getTransactionByHash %s: %w", rawTx.Key.Hex(), rawTx.Error)
		}
		if rawTx.Result == nil {
			log.Warn().Msgf("Received a nil transaction result for %s.", rawTx.Key.Hex())
			return nil, fmt.Errorf("transaction %s: %w", rawTx.Key.Hex(), ErrMissingResult)
		}
		if rawTx.Result.Hash != rawTx.Key {
			return nil, fmt.Errorf("%w: requested transaction %s, got %s", ErrMalformedResponse, rawTx.Key.Hex(), rawTx.Result.Hash.Hex())
		}
		origins[rawTx.Key] = rawTx.Result.From
	}
	return origins, nil
}
