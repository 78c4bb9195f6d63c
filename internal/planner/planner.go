// Package planner computes the set of byte chunks a fresh or resumed
// HTTP download needs to fetch, from the ledger's gaps split into
// fixed-size pieces (spec.md §4.G), grounded on the teacher's
// calculateChunks in internal/core/downloader/multistream.go but
// generalized to operate over gaps instead of always starting at 0.
package planner

import "github.com/guiyumin/aget/internal/ledger"

// Mode records which branch of the orchestrator's reconciliation
// (spec.md §4.L step 3) produced this plan.
type Mode int

const (
	ModeFreshResume Mode = iota
	ModeResume
	ModeDirect
	ModeEmpty
)

// Plan is the set of chunks a worker pool should fetch, plus the mode
// that produced it.
type Plan struct {
	Mode   Mode
	Chunks []ledger.Pair
}

// SplitPair divides [a,b] into closed intervals of length chunkSize,
// the last possibly shorter (spec.md §4.G, invariant 3 of §8).
func SplitPair(p ledger.Pair, chunkSize uint64) []ledger.Pair {
	if chunkSize == 0 {
		return []ledger.Pair{p}
	}
	var chunks []ledger.Pair
	start := p.Begin
	for start <= p.End {
		end := start + chunkSize - 1
		if end > p.End {
			end = p.End
		}
		chunks = append(chunks, ledger.Pair{Begin: start, End: end})
		if end == p.End {
			break
		}
		start = end + 1
	}
	return chunks
}

// PlanFresh builds the plan for a brand-new range-capable download:
// the whole file is one gap, split into chunkSize pieces.
func PlanFresh(total, chunkSize uint64) Plan {
	if total == 0 {
		return Plan{Mode: ModeEmpty}
	}
	whole := ledger.Pair{Begin: 0, End: total - 1}
	return Plan{Mode: ModeFreshResume, Chunks: SplitPair(whole, chunkSize)}
}

// PlanResume builds the plan from the ledger's current gaps, used
// after `rewrite()` normalizes the ledger to canonical form.
func PlanResume(gaps []ledger.Pair, chunkSize uint64) Plan {
	var chunks []ledger.Pair
	for _, g := range gaps {
		chunks = append(chunks, SplitPair(g, chunkSize)...)
	}
	return Plan{Mode: ModeResume, Chunks: chunks}
}

// PlanDirect builds the single pseudo-range plan used when the server
// does not support ranges; no ledger is consulted or written.
func PlanDirect() Plan {
	return Plan{Mode: ModeDirect, Chunks: []ledger.Pair{{Begin: 0, End: 0}}}
}
