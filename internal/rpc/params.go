package rpc

import (
	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func GetBlockWithoutTransactionsParams(blockNum uint64) []interface{} {
	return []interface{}{hexutil.EncodeUint64(blockNum), false}
}

func GetTransactionParams(txHash gethCommon.Hash) []interface{} {
	return []interface{}{txHash}
}
