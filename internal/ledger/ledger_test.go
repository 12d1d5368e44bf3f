package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rainlanguage/orderbook-trades/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headerLine = "block_number,timestamp,tx_hash,log_index,tx_origin,event,sender,order_hash,order_owner,input_token,output_token,input_amount,output_amount,counterparty\n"

func trade(block uint64, txByte byte, logIndex uint64) common.TradeRecord {
	return common.TradeRecord{
		BlockNumber:     block,
		Timestamp:       1_700_000_000 + block,
		TransactionHash: gethCommon.BytesToHash([]byte{txByte}),
		LogIndex:        logIndex,
		TxOrigin:        gethCommon.HexToAddress("0x00000000000000000000000000000000000000aA"),
		Event:           common.EventTakeOrderV2,
		Sender:          gethCommon.HexToAddress("0x00000000000000000000000000000000000000bb"),
		OrderHash:       gethCommon.BytesToHash([]byte{0xde, 0xad}),
		OrderOwner:      gethCommon.HexToAddress("0x00000000000000000000000000000000000000cc"),
		InputToken:      gethCommon.HexToAddress("0x00000000000000000000000000000000000000dd"),
		OutputToken:     gethCommon.HexToAddress("0x00000000000000000000000000000000000000ee"),
		InputAmount:     uint256.NewInt(1000),
		OutputAmount:    uint256.NewInt(2000),
		Counterparty:    gethCommon.HexToAddress("0x00000000000000000000000000000000000000bb"),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestResumePointOfMissingOrEmptyLedger(t *testing.T) {
	dir := t.TempDir()

	// Test case: file does not exist
	store := New(filepath.Join(dir, "missing.csv"))
	resume, err := store.LoadResumePoint(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), resume)

	records, err := store.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)

	// Test case: file exists but is empty
	emptyPath := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o644))
	resume, err = New(emptyPath).LoadResumePoint(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), resume)

	// Test case: header only
	headerPath := filepath.Join(dir, "header.csv")
	require.NoError(t, os.WriteFile(headerPath, []byte(headerLine), 0o644))
	resume, err = New(headerPath).LoadResumePoint(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), resume)
}

func TestAppendThenResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	store := New(path)

	resume, err := store.LoadResumePoint(100)
	require.NoError(t, err)
	require.Equal(t, uint64(100), resume)

	result, err := store.Append([]common.TradeRecord{trade(120, 1, 0), trade(250, 2, 4)})
	require.NoError(t, err)
	assert.Len(t, result.Appended, 2)
	assert.Zero(t, result.Duplicates)

	content := readFile(t, path)
	assert.True(t, strings.HasPrefix(content, headerLine))
	assert.Equal(t, 3, strings.Count(content, "\n"))
	assert.Contains(t, content, "120,1700000120,0x0000000000000000000000000000000000000000000000000000000000000001,0,0x00000000000000000000000000000000000000aa,TakeOrderV2,")

	// a fresh store sees the same state
	resume, err = New(path).LoadResumePoint(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), resume)

	records, err := New(path).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, trade(120, 1, 0), records[0])
	assert.Equal(t, trade(250, 2, 4), records[1])
}

func TestAppendSkipsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	store := New(path)

	_, err := store.Append([]common.TradeRecord{trade(120, 1, 0), trade(121, 2, 0)})
	require.NoError(t, err)
	before := readFile(t, path)

	// Test case: every record already committed
	result, err := store.Append([]common.TradeRecord{trade(120, 1, 0), trade(121, 2, 0)})
	require.NoError(t, err)
	assert.Empty(t, result.Appended)
	assert.Equal(t, 2, result.Duplicates)
	assert.Equal(t, before, readFile(t, path))

	// Test case: duplicates across runs and within the batch
	reopened := New(path)
	_, err = reopened.LoadResumePoint(100)
	require.NoError(t, err)
	result, err = reopened.Append([]common.TradeRecord{trade(121, 2, 0), trade(122, 3, 1), trade(122, 3, 1)})
	require.NoError(t, err)
	require.Len(t, result.Appended, 1)
	assert.Equal(t, uint64(122), result.Appended[0].BlockNumber)
	assert.Equal(t, 2, result.Duplicates)

	records, err := reopened.ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestEmptyAppendDoesNotCreateLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	result, err := New(path).Append(nil)
	require.NoError(t, err)
	assert.Empty(t, result.Appended)

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCorruptLedger(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{name: "unexpected header", content: "timestamp,tx_origin,tx_hash,event\n1,0x01,0x02,ClearV2\n"},
		{name: "unparseable block number", content: headerLine + strings.Replace(strings.Join(EncodeRecord(trade(5, 1, 0)), ","), "5", "x", 1) + "\n"},
		{name: "wrong field count", content: headerLine + "1,2,3\n"},
		{name: "unknown event", content: headerLine + strings.Replace(strings.Join(EncodeRecord(trade(5, 1, 0)), ","), "TakeOrderV2", "Deposit", 1) + "\n"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, string(rune('a'+i))+".csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			store := New(path)
			_, err := store.LoadResumePoint(100)
			require.Error(t, err)
			assert.True(t, IsCorrupt(err))

			_, err = store.Append([]common.TradeRecord{trade(200, 9, 0)})
			require.Error(t, err)
			assert.True(t, IsCorrupt(err))
			assert.Equal(t, tt.content, readFile(t, path))
		})
	}
}

func TestTornTailIsIgnoredAndRepaired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	store := New(path)
	_, err := store.Append([]common.TradeRecord{trade(120, 1, 0), trade(130, 2, 0)})
	require.NoError(t, err)
	committed := readFile(t, path)

	partial := strings.Join(EncodeRecord(trade(130, 3, 1)), ",")
	partial = partial[:len(partial)/2]
	require.NoError(t, os.WriteFile(path, []byte(committed+partial), 0o644))

	reopened := New(path)
	resume, err := reopened.LoadResumePoint(100)
	require.NoError(t, err)
	// block 130 may hold more trades from the torn window, so it is fetched again
	assert.Equal(t, uint64(130), resume)

	records, err := reopened.ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)

	result, err := reopened.Append([]common.TradeRecord{trade(130, 2, 0), trade(130, 3, 1)})
	require.NoError(t, err)
	assert.Len(t, result.Appended, 1)
	assert.Equal(t, 1, result.Duplicates)

	expected := committed + strings.Join(EncodeRecord(trade(130, 3, 1)), ",") + "\n"
	assert.Equal(t, expected, readFile(t, path))

	resume, err = New(path).LoadResumePoint(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(130), resume)
}

func TestResumeRefetchesHighestBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	window := []common.TradeRecord{trade(120, 1, 0), trade(150, 2, 3), trade(150, 3, 5)}

	// Test case: an interrupted write stopped exactly after a complete line
	var partial strings.Builder
	partial.WriteString(headerLine)
	for _, record := range window[:2] {
		partial.WriteString(strings.Join(EncodeRecord(record), ",") + "\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(partial.String()), 0o644))

	store := New(path)
	resume, err := store.LoadResumePoint(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), resume)

	result, err := store.Append(window[1:])
	require.NoError(t, err)
	assert.Equal(t, []common.TradeRecord{window[2]}, result.Appended)
	assert.Equal(t, 1, result.Duplicates)

	records, err := New(path).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, window, records)
}

func TestTornHeaderIsTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, os.WriteFile(path, []byte(headerLine[:20]), 0o644))

	store := New(path)
	resume, err := store.LoadResumePoint(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), resume)

	_, err = store.Append([]common.TradeRecord{trade(101, 1, 0)})
	require.NoError(t, err)
	assert.Equal(t, headerLine+strings.Join(EncodeRecord(trade(101, 1, 0)), ",")+"\n", readFile(t, path))
}

type failingFile struct {
	*os.File
	allow int
}

func (f *failingFile) Write(p []byte) (int, error) {
	n := min(f.allow, len(p))
	written, err := f.File.Write(p[:n])
	if err != nil {
		return written, err
	}
	return written, errors.New("disk full")
}

func TestFailedAppendRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	store := New(path)
	_, err := store.Append([]common.TradeRecord{trade(120, 1, 0)})
	require.NoError(t, err)
	committed := readFile(t, path)

	fail := true
	flaky := New(path, WithOpenFunc(func(p string) (File, error) {
		f, err := openForAppend(p)
		if err != nil || !fail {
			return f, err
		}
		return &failingFile{File: f.(*os.File), allow: 40}, nil
	}))
	_, err = flaky.LoadResumePoint(100)
	require.NoError(t, err)

	_, err = flaky.Append([]common.TradeRecord{trade(130, 2, 0), trade(131, 3, 0)})
	require.Error(t, err)
	assert.True(t, IsWriteError(err))
	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.True(t, writeErr.RolledBack)
	assert.Equal(t, committed, readFile(t, path))

	resume, err := New(path).LoadResumePoint(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), resume)

	// the same batch goes through once the disk recovers
	fail = false
	result, err := flaky.Append([]common.TradeRecord{trade(130, 2, 0), trade(131, 3, 0)})
	require.NoError(t, err)
	assert.Len(t, result.Appended, 2)

	records, err := New(path).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestOpenFailureIsWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	store := New(path, WithOpenFunc(func(string) (File, error) {
		return nil, errors.New("permission denied")
	}))
	_, err := store.Append([]common.TradeRecord{trade(1, 1, 0)})
	require.Error(t, err)
	assert.True(t, IsWriteError(err))
	assert.False(t, IsCorrupt(err))
}
