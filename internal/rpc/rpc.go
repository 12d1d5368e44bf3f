package rpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethRpc "github.com/ethereum/go-ethereum/rpc"
	config "github.com/rainlanguage/orderbook-trades/configs"
	"github.com/rainlanguage/orderbook-trades/internal/common"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// IRPCClient is the log source of an ingestion run. Errors are returned
// unclassified; callers use IsTransient to decide whether to retry.
type IRPCClient interface {
	GetLatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, address gethCommon.Address, topics []gethCommon.Hash, fromBlock, toBlock uint64) ([]types.Log, error)
	GetBlockTimestamps(ctx context.Context, blockNumbers []uint64) (map[uint64]uint64, error)
	GetTransactionOrigins(ctx context.Context, txHashes []gethCommon.Hash) (map[gethCommon.Hash]gethCommon.Address, error)
	GetChainID() *big.Int
	GetBlocksPerRequest() BlocksPerRequestConfig
	Close()
}

type Client struct {
	RPCClient        *gethRpc.Client
	EthClient        *ethclient.Client
	chainID          *big.Int
	blocksPerRequest BlocksPerRequestConfig
	limiter          *rate.Limiter
}

func Initialize(ctx context.Context) (IRPCClient, error) {
	rpcUrl := config.Cfg.RPC.URL
	if rpcUrl == "" {
		return nil, fmt.Errorf("RPC_URL environment variable is not set")
	}
	log.Debug().Msg("Initializing RPC")
	rpcClient, dialErr := gethRpc.DialContext(ctx, rpcUrl)
	if dialErr != nil {
		return nil, dialErr
	}

	rpc := NewClient(rpcClient, GetBlockPerRequestConfig(), config.Cfg.RPC.Logs.RequestsPerSecond)
	if chainIdErr := rpc.setChainID(ctx); chainIdErr != nil {
		rpc.Close()
		return nil, chainIdErr
	}
	return IRPCClient(rpc), nil
}

// NewClient wraps an established connection. requestsPerSecond <= 0 disables
// pacing.
func NewClient(rpcClient *gethRpc.Client, blocksPerRequest BlocksPerRequestConfig, requestsPerSecond float64) *Client {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &Client{
		RPCClient:        rpcClient,
		EthClient:        ethclient.NewClient(rpcClient),
		blocksPerRequest: blocksPerRequest,
		limiter:          limiter,
	}
}

func (rpc *Client) GetChainID() *big.Int {
	return rpc.chainID
}

func (rpc *Client) GetBlocksPerRequest() BlocksPerRequestConfig {
	return rpc.blocksPerRequest
}

func (rpc *Client) Close() {
	rpc.EthClient.Close()
}

func (rpc *Client) setChainID(ctx context.Context) error {
	chainID, err := rpc.EthClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	rpc.chainID = chainID
	return nil
}

func (rpc *Client) wait(ctx context.Context) error {
	if rpc.limiter == nil {
		return nil
	}
	return rpc.limiter.Wait(ctx)
}

func (rpc *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	if err := rpc.wait(ctx); err != nil {
		return 0, err
	}
	blockNumber, err := rpc.EthClient.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	return blockNumber, nil
}

// FilterLogs returns the logs emitted by address in [fromBlock, toBlock]
// whose topic0 is one of topics. Logs the node returns outside the query are
// reported as ErrMalformedResponse.
func (rpc *Client) FilterLogs(ctx context.Context, address gethCommon.Address, topics []gethCommon.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	if err := rpc.wait(ctx); err != nil {
		return nil, err
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []gethCommon.Address{address},
		Topics:    [][]gethCommon.Hash{topics},
	}
	logs, err := rpc.EthClient.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs [%d, %d]: %w", fromBlock, toBlock, err)
	}
	window := common.BlockRange{From: fromBlock, To: toBlock}
	for _, entry := range logs {
		if !window.Contains(entry.BlockNumber) {
			return nil, fmt.Errorf("%w: log at block %d outside [%d, %d]", ErrMalformedResponse, entry.BlockNumber, fromBlock, toBlock)
		}
		if entry.Address != address {
			return nil, fmt.Errorf("%w: log from %s, queried %s", ErrMalformedResponse, entry.Address.Hex(), address.Hex())
		}
	}
	return logs, nil
}

func (rpc *Client) GetBlockTimestamps(ctx context.Context, blockNumbers []uint64) (map[uint64]uint64, error) {
	if len(blockNumbers) == 0 {
		return map[uint64]uint64{}, nil
	}
	blocks := RPCFetchInBatches[uint64, *RawBlockHeader](rpc, ctx, blockNumbers, rpc.blocksPerRequest.Blocks, "eth_getBlockByNumber", GetBlockWithoutTransactionsParams)
	return SerializeBlockTimestamps(blocks)
}

func (rpc *Client) GetTransactionOrigins(ctx context.Context, txHashes []gethCommon.Hash) (map[gethCommon.Hash]gethCommon.Address, error) {
	if len(txHashes) == 0 {
		return map[gethCommon.Hash]gethCommon.Address{}, nil
	}
	transactions := RPCFetchInBatches[gethCommon.Hash, *RawTransaction](rpc, ctx, txHashes, rpc.blocksPerRequest.Blocks, "eth_getTransactionByHash", GetTransactionParams)
	return SerializeTransactionOrigins(transactions)
}
