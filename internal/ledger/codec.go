package ledger

import (
	"fmt"
	"strconv"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/rainlanguage/orderbook-trades/internal/common"
)

// Header is the first row of every ledger file.
var Header = []string{
	"block_number",
	"timestamp",
	"tx_hash",
	"log_index",
	"tx_origin",
	"event",
	"sender",
	"order_hash",
	"order_owner",
	"input_token",
	"output_token",
	"input_amount",
	"output_amount",
	"counterparty",
}

const (
	colBlockNumber = iota
	colTimestamp
	colTxHash
	colLogIndex
	colTxOrigin
	colEvent
	colSender
	colOrderHash
	colOrderOwner
	colInputToken
	colOutputToken
	colInputAmount
	colOutputAmount
	colCounterparty
)

// EncodeRecord renders a trade as a ledger row. Absent values are empty cells.
func EncodeRecord(r common.TradeRecord) []string {
	row := make([]string, len(Header))
	row[colBlockNumber] = strconv.FormatUint(r.BlockNumber, 10)
	if r.Timestamp != 0 {
		row[colTimestamp] = strconv.FormatUint(r.Timestamp, 10)
	}
	row[colTxHash] = encodeHash(r.TransactionHash)
	row[colLogIndex] = strconv.FormatUint(r.LogIndex, 10)
	if r.TxOrigin != (gethCommon.Address{}) {
		row[colTxOrigin] = encodeAddress(r.TxOrigin)
	}
	row[colEvent] = string(r.Event)
	row[colSender] = encodeAddress(r.Sender)
	row[colOrderHash] = encodeHash(r.OrderHash)
	row[colOrderOwner] = encodeAddress(r.OrderOwner)
	row[colInputToken] = encodeAddress(r.InputToken)
	row[colOutputToken] = encodeAddress(r.OutputToken)
	if r.InputAmount != nil {
		row[colInputAmount] = r.InputAmount.Dec()
	}
	if r.OutputAmount != nil {
		row[colOutputAmount] = r.OutputAmount.Dec()
	}
	row[colCounterparty] = encodeAddress(r.Counterparty)
	return row
}

// DecodeRecord parses a ledger row produced by EncodeRecord.
func DecodeRecord(row []string) (common.TradeRecord, error) {
	if len(row) != len(Header) {
		return common.TradeRecord{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(row))
	}

	var (
		r   common.TradeRecord
		err error
	)
	if r.BlockNumber, err = parseUint(row, colBlockNumber, false); err != nil {
		return r, err
	}
	if r.Timestamp, err = parseUint(row, colTimestamp, true); err != nil {
		return r, err
	}
	if r.TransactionHash, err = parseHash(row, colTxHash); err != nil {
		return r, err
	}
	if r.LogIndex, err = parseUint(row, colLogIndex, false); err != nil {
		return r, err
	}
	if row[colTxOrigin] != "" {
		if r.TxOrigin, err = parseAddress(row, colTxOrigin); err != nil {
			return r, err
		}
	}
	switch kind := common.EventKind(row[colEvent]); kind {
	case common.EventClearV2, common.EventTakeOrderV2:
		r.Event = kind
	default:
		return r, fmt.Errorf("%s: unknown event %q", Header[colEvent], row[colEvent])
	}
	if r.Sender, err = parseAddress(row, colSender); err != nil {
		return r, err
	}
	if r.OrderHash, err = parseHash(row, colOrderHash); err != nil {
		return r, err
	}
	if r.OrderOwner, err = parseAddress(row, colOrderOwner); err != nil {
		return r, err
	}
	if r.InputToken, err = parseAddress(row, colInputToken); err != nil {
		return r, err
	}
	if r.OutputToken, err = parseAddress(row, colOutputToken); err != nil {
		return r, err
	}
	if r.InputAmount, err = parseAmount(row, colInputAmount); err != nil {
		return r, err
	}
	if r.OutputAmount, err = parseAmount(row, colOutputAmount); err != nil {
		return r, err
	}
	if r.Counterparty, err = parseAddress(row, colCounterparty); err != nil {
		return r, err
	}
	return r, nil
}

func encodeHash(h gethCommon.Hash) string {
	return hexutil.Encode(h[:])
}

func encodeAddress(a gethCommon.Address) string {
	return hexutil.Encode(a[:])
}

func parseUint(row []string, col int, optional bool) (uint64, error) {
	if optional && row[col] == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(row[col], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", Header[col], err)
	}
	return v, nil
}

func parseHash(row []string, col int) (gethCommon.Hash, error) {
	b, err := hexutil.Decode(row[col])
	if err != nil {
		return gethCommon.Hash{}, fmt.Errorf("%s: %w", Header[col], err)
	}
	if len(b) != gethCommon.HashLength {
		return gethCommon.Hash{}, fmt.Errorf("%s: expected %d bytes, got %d", Header[col], gethCommon.HashLength, len(b))
	}
	return gethCommon.BytesToHash(b), nil
}

func parseAddress(row []string, col int) (gethCommon.Address, error) {
	b, err := hexutil.Decode(row[col])
	if err != nil {
		return gethCommon.Address{}, fmt.Errorf("%s: %w", Header[col], err)
	}
	if len(b) != gethCommon.AddressLength {
		return gethCommon.Address{}, fmt.Errorf("%s: expected %d bytes, got %d", Header[col], gethCommon.AddressLength, len(b))
	}
	return gethCommon.BytesToAddress(b), nil
}

func parseAmount(row []string, col int) (*uint256.Int, error) {
	if row[col] == "" {
		return nil, nil
	}
	v, err := uint256.FromDecimal(row[col])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Header[col], err)
	}
	return v, nil
}
