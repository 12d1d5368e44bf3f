package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/parquet-go/parquet-go"
	"github.com/rainlanguage/orderbook-trades/internal/common"
	"github.com/rainlanguage/orderbook-trades/internal/ledger"
	"github.com/rs/zerolog/log"
)

const DEFAULT_ROWS_PER_WRITE = 10000

// TradeRow is the Parquet schema of an exported trade. Optional columns are
// null where the ledger cell is empty.
type TradeRow struct {
	BlockNumber     uint64 `parquet:"block_number"`
	Timestamp       uint64 `parquet:"timestamp,optional"`
	TransactionHash string `parquet:"tx_hash"`
	LogIndex        uint64 `parquet:"log_index"`
	TxOrigin        string `parquet:"tx_origin,optional"`
	Event           string `parquet:"event,dict"`
	Sender          string `parquet:"sender"`
	OrderHash       string `parquet:"order_hash"`
	OrderOwner      string `parquet:"order_owner"`
	InputToken      string `parquet:"input_token,dict"`
	OutputToken     string `parquet:"output_token,dict"`
	InputAmount     string `parquet:"input_amount,optional"`
	OutputAmount    string `parquet:"output_amount,optional"`
	Counterparty    string `parquet:"counterparty"`
}

var writerOptions = []parquet.WriterOption{
	parquet.Compression(&parquet.Zstd),
	parquet.DataPageStatistics(true),
	parquet.PageBufferSize(8 * 1024 * 1024),
	parquet.ColumnIndexSizeLimit(16 * 1024),
}

func NewTradeRow(t common.TradeRecord) TradeRow {
	row := TradeRow{
		BlockNumber:     t.BlockNumber,
		Timestamp:       t.Timestamp,
		TransactionHash: hexutil.Encode(t.TransactionHash[:]),
		LogIndex:        t.LogIndex,
		Event:           string(t.Event),
		Sender:          hexutil.Encode(t.Sender[:]),
		OrderHash:       hexutil.Encode(t.OrderHash[:]),
		OrderOwner:      hexutil.Encode(t.OrderOwner[:]),
		InputToken:      hexutil.Encode(t.InputToken[:]),
		OutputToken:     hexutil.Encode(t.OutputToken[:]),
		Counterparty:    hexutil.Encode(t.Counterparty[:]),
	}
	if t.TxOrigin != (gethCommon.Address{}) {
		row.TxOrigin = hexutil.Encode(t.TxOrigin[:])
	}
	if t.InputAmount != nil {
		row.InputAmount = t.InputAmount.Dec()
	}
	if t.OutputAmount != nil {
		row.OutputAmount = t.OutputAmount.Dec()
	}
	return row
}

// WriteTrades writes trades as one Parquet file to w.
func WriteTrades(w io.Writer, trades []common.TradeRecord) error {
	writer := parquet.NewGenericWriter[TradeRow](w, writerOptions...)

	rows := make([]TradeRow, 0, min(len(trades), DEFAULT_ROWS_PER_WRITE))
	for _, chunk := range common.SliceToChunks(trades, DEFAULT_ROWS_PER_WRITE) {
		rows = rows[:0]
		for _, t := range chunk {
			rows = append(rows, NewTradeRow(t))
		}
		if _, err := writer.Write(rows); err != nil {
			writer.Close()
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// ExportLedger converts the ledger at ledgerPath into a Parquet file at out.
// The file is written next to out and renamed into place once complete.
func ExportLedger(ledgerPath string, out string) (int, error) {
	trades, err := ledger.New(ledgerPath).ReadAll()
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), filepath.Base(out)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteTrades(tmp, trades); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to sync parquet file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close parquet file: %w", err)
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return 0, fmt.Errorf("failed to move parquet file into place: %w", err)
	}

	log.Info().Str("ledger", ledgerPath).Str("out", out).Int("records", len(trades)).Msg("Exported ledger to parquet")
	return len(trades), nil
}
