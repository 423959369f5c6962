// Package weights normalizes raw per-UID scores into a weight vector
// that sums to 1.0 when a miner qualifies or the burn applies, reserves
// a fixed share for the trader-rewards identity, and routes unallocated
// weight to the owner identity (emission burn) when no miner qualifies.
// With no qualifying miner and no owner, only the trader share (or
// nothing) is allocated, so the total is that share or 0.
package weights

import (
	"math"

	"github.com/ethereum/go-ethereum/log"

	"github.com/General-Tao-Ventures/cartha-validator/params"
)

// ComposeInput bundles compose_weights' parameters.
type ComposeInput struct {
	Scores       map[int64]float64
	TraderUID    *int64 // nil if the trader hotkey is unresolved
	TraderWeight float64
	OwnerUID     *int64 // nil if the owner hotkey is unresolved
}

// ComposeResult carries the final weight vector plus bookkeeping
// useful to the epoch runner and tests.
type ComposeResult struct {
	Weights       map[int64]float64
	DroppedZero   int
	BurnApplied   bool
	EffectiveTraderWeight float64
}

// Compose runs the full normalize/reserve/burn procedure.
func Compose(in ComposeInput) ComposeResult {
	traderWeight := in.TraderWeight
	if traderWeight < 0 || traderWeight >= 1 {
		log.Error("trader_weight out of range, resetting to 0", "trader_weight", traderWeight)
		traderWeight = 0
	}

	// Step 1: clamp negative scores to 0.
	scores := make(map[int64]float64, len(in.Scores))
	for uid, s := range in.Scores {
		if s < 0 {
			s = 0
		}
		scores[uid] = s
	}

	// Step 2: remove trader/owner from the miner score map.
	if in.TraderUID != nil {
		delete(scores, *in.TraderUID)
	}
	if in.OwnerUID != nil {
		delete(scores, *in.OwnerUID)
	}

	// Step 3.
	remaining := 1.0
	if in.TraderUID != nil {
		remaining = 1.0 - traderWeight
	}

	// Step 4: drop zero-score miners.
	dropped := 0
	var total float64
	positive := make(map[int64]float64, len(scores))
	for uid, s := range scores {
		if s == 0 {
			dropped++
			continue
		}
		positive[uid] = s
		total += s
	}
	if dropped > 0 {
		log.Info("dropped zero-score miners from weight allocation", "count", dropped)
	}

	out := make(map[int64]float64, len(positive)+2)
	burnApplied := false

	if len(positive) > 0 {
		// Step 5: distribute remaining pro-rata by score.
		for uid, s := range positive {
			out[uid] = remaining * (s / total)
		}
	} else if in.OwnerUID != nil {
		// Step 6: burn channel.
		out[*in.OwnerUID] = remaining
		burnApplied = true
	}
	// Step 7 (empty allocation) falls out naturally: out stays as-is.

	// Step 8: add the trader's fixed share.
	if in.TraderUID != nil && traderWeight > 0 {
		out[*in.TraderUID] = traderWeight
	}

	// Step 9: verify total and log deviation.
	sum := 0.0
	for _, w := range out {
		sum += w
	}
	expected := 0.0
	switch {
	case len(positive) > 0 || burnApplied:
		expected = 1.0
	case in.TraderUID != nil:
		expected = traderWeight
	}
	if math.Abs(sum-expected) > params.WeightSumTolerance {
		log.Error("composed weight total deviates from expectation", "sum", sum, "expected", expected)
	}

	return ComposeResult{
		Weights:               out,
		DroppedZero:           dropped,
		BurnApplied:           burnApplied,
		EffectiveTraderWeight: traderWeight,
	}
}

// DisplayScores scales raw scores linearly so the maximum maps to 1000,
// for leaderboard/UI display only — never used in publishing.
func DisplayScores(scores map[int64]float64) map[int64]float64 {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	out := make(map[int64]float64, len(scores))
	if max <= 0 {
		for uid := range scores {
			out[uid] = 0
		}
		return out
	}
	for uid, s := range scores {
		out[uid] = s / max * 1000
	}
	return out
}
