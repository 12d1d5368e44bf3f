package rpc

import (
	config "github.com/rainlanguage/orderbook-trades/configs"
)

const (
	DEFAULT_BLOCKS_PER_REQUEST = 100
	DEFAULT_LOGS_PER_REQUEST   = 100000
)

type BlocksPerRequestConfig struct {
	// Blocks is the batch size of eth_getBlockByNumber and
	// eth_getTransactionByHash calls.
	Blocks int
	// Logs is the widest block span of a single eth_getLogs call.
	Logs int
}

func GetBlockPerRequestConfig() BlocksPerRequestConfig {
	blocksPerRequest := config.Cfg.RPC.Blocks.BlocksPerRequest
	if blocksPerRequest <= 0 {
		blocksPerRequest = DEFAULT_BLOCKS_PER_REQUEST
	}
	logsBlocksPerRequest := config.Cfg.RPC.Logs.BlocksPerRequest
	if logsBlocksPerRequest <= 0 {
		logsBlocksPerRequest = DEFAULT_LOGS_PER_REQUEST
	}
	return BlocksPerRequestConfig{
		Blocks: blocksPerRequest,
		Logs:   logsBlocksPerRequest,
	}
}
