package common

import (
	"cmp"
	"fmt"
	"slices"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type EventKind string

const (
	EventClearV2     EventKind = "ClearV2"
	EventTakeOrderV2 EventKind = "TakeOrderV2"
)

// TradeIdentity is the de-duplication key of a trade. It is unique across the
// whole chain and never changes once a trade has been committed.
type TradeIdentity struct {
	TransactionHash gethCommon.Hash
	LogIndex        uint64
}

func (id TradeIdentity) String() string {
	return fmt.Sprintf("%s:%d", id.TransactionHash.Hex(), id.LogIndex)
}

// TradeRecord is one decoded orderbook trade as persisted in the ledger.
// Timestamp and TxOrigin are filled by enrichment and are zero when it is
// disabled. Amounts are nil when the event does not carry them.
type TradeRecord struct {
	BlockNumber     uint64
	Timestamp       uint64
	TransactionHash gethCommon.Hash
	LogIndex        uint64
	TxOrigin        gethCommon.Address
	Event           EventKind
	Sender          gethCommon.Address
	OrderHash       gethCommon.Hash
	OrderOwner      gethCommon.Address
	InputToken      gethCommon.Address
	OutputToken     gethCommon.Address
	InputAmount     *uint256.Int
	OutputAmount    *uint256.Int
	Counterparty    gethCommon.Address
}

func (t TradeRecord) Identity() TradeIdentity {
	return TradeIdentity{TransactionHash: t.TransactionHash, LogIndex: t.LogIndex}
}

// CompareTrades orders trades by ascending (block number, log index).
func CompareTrades(a, b TradeRecord) int {
	if c := cmp.Compare(a.BlockNumber, b.BlockNumber); c != 0 {
		return c
	}
	return cmp.Compare(a.LogIndex, b.LogIndex)
}

// SortTrades sorts trades in commit order.
func SortTrades(trades []TradeRecord) {
	slices.SortStableFunc(trades, CompareTrades)
}
