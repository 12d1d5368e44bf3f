package common

import (
	"testing"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestSliceToChunks(t *testing.T) {
	chunks := SliceToChunks([]uint64{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]uint64{{1, 2}, {3, 4}, {5}}, chunks)

	// chunk size larger than the slice keeps a single chunk
	assert.Equal(t, [][]uint64{{1, 2}}, SliceToChunks([]uint64{1, 2}, 10))
	assert.Equal(t, [][]uint64{{1, 2}}, SliceToChunks([]uint64{1, 2}, 0))
}

func TestDistinct(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, Distinct([]int{3, 1, 3, 2, 1}))
	assert.Empty(t, Distinct([]int{}))
}

func TestSetAddIfAbsent(t *testing.T) {
	s := NewSet(1, 2)
	assert.False(t, s.AddIfAbsent(1))
	assert.True(t, s.AddIfAbsent(3))
	assert.Equal(t, 3, s.Size())
	assert.True(t, s.Contains(3))
	assert.False(t, s.Contains(4))
}

func TestSortTrades(t *testing.T) {
	hash := gethCommon.HexToHash("0x01")
	trades := []TradeRecord{
		{BlockNumber: 10, LogIndex: 4, TransactionHash: hash},
		{BlockNumber: 9, LogIndex: 7, TransactionHash: hash},
		{BlockNumber: 10, LogIndex: 1, TransactionHash: hash},
	}
	SortTrades(trades)

	assert.Equal(t, uint64(9), trades[0].BlockNumber)
	assert.Equal(t, uint64(1), trades[1].LogIndex)
	assert.Equal(t, uint64(4), trades[2].LogIndex)
}

func TestBlockRange(t *testing.T) {
	r := BlockRange{From: 100, To: 199}
	assert.Equal(t, uint64(100), r.Size())
	assert.True(t, r.Contains(100))
	assert.True(t, r.Contains(199))
	assert.False(t, r.Contains(200))
	assert.Equal(t, "[100, 199]", r.String())
}
