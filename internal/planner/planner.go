package planner

import (
	"fmt"
	"iter"

	"github.com/rainlanguage/orderbook-trades/internal/common"
)

// DEFAULT_MAX_WINDOW matches the block span most public nodes accept for a
// single eth_getLogs call on L2s.
const DEFAULT_MAX_WINDOW = 100000

type Planner struct {
	maxWindow uint64
}

func NewPlanner(maxWindow uint64) (*Planner, error) {
	if maxWindow == 0 {
		return nil, fmt.Errorf("max window must be positive")
	}
	return &Planner{maxWindow: maxWindow}, nil
}

func (p *Planner) MaxWindow() uint64 {
	return p.maxWindow
}

// Plan yields the contiguous windows covering [resumeFrom, head] in ascending
// order, one at a time. Every window spans at most maxWindow blocks and only
// the last one may be shorter. Nothing is yielded when resumeFrom > head.
func (p *Planner) Plan(resumeFrom, head uint64) iter.Seq[common.BlockRange] {
	return func(yield func(common.BlockRange) bool) {
		if resumeFrom > head {
			return
		}
		from := resumeFrom
		for {
			to := head
			if head-from >= p.maxWindow {
				to = from + p.maxWindow - 1
			}
			if !yield(common.BlockRange{From: from, To: to}) {
				return
			}
			if to == head {
				return
			}
			from = to + 1
		}
	}
}

// Count returns how many windows Plan yields for the same arguments.
func (p *Planner) Count(resumeFrom, head uint64) uint64 {
	if resumeFrom > head {
		return 0
	}
	span := head - resumeFrom
	return span/p.maxWindow + 1
}
