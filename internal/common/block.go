package common

import "fmt"

// BlockRange is an inclusive window of block numbers, From <= To.
type BlockRange struct {
	From uint64
	To   uint64
}

// Size returns the number of blocks covered by the range.
func (r BlockRange) Size() uint64 {
	return r.To - r.From + 1
}

func (r BlockRange) Contains(blockNumber uint64) bool {
	return blockNumber >= r.From && blockNumber <= r.To
}

func (r BlockRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.From, r.To)
}
