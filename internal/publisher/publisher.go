// Package publisher enforces cooldown, runs a bounded, cancellable
// set_weights submission, and classifies the result.
package publisher

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/General-Tao-Ventures/cartha-validator/internal/chain"
	"github.com/General-Tao-Ventures/cartha-validator/internal/errs"
	"github.com/General-Tao-Ventures/cartha-validator/internal/weights"
)

// Input bundles publish's parameters.
type Input struct {
	Scores          map[int64]float64
	TraderUID       *int64
	TraderWeight    float64
	OwnerUID        *int64
	Netuid          int
	ValidatorUID    int64
	CurrentBlock    uint64
	Tempo           uint64
	FallbackCooldown uint64 // settings.epoch_length_blocks, used as the cooldown when Tempo is 0
	LastUpdateBlock  uint64
	Force           bool
	VersionKey      uint64
	SetWeightsTimeout time.Duration
}

// Result is what Publish returns: the composed weight vector, whether
// it was actually submitted, and (when submitted) the chain's message.
type Result struct {
	Weights   map[int64]float64
	Submitted bool
	Message   string
}

// Publish runs the full submission path end to end: compose weights,
// apply the cooldown check, then submit with a hard timeout.
func Publish(ctx context.Context, client chain.Client, wallet chain.Wallet, in Input) (Result, error) {
	composed := weights.Compose(weights.ComposeInput{
		Scores:       in.Scores,
		TraderUID:    in.TraderUID,
		TraderWeight: in.TraderWeight,
		OwnerUID:     in.OwnerUID,
	})

	if !in.Force {
		blocksSince := blocksSinceUpdate(in.CurrentBlock, in.LastUpdateBlock)
		cooldown := in.Tempo
		if cooldown == 0 {
			cooldown = in.FallbackCooldown
		}
		if blocksSince < cooldown {
			log.Info("submit suppressed by cooldown", "blocks_since_update", blocksSince, "cooldown", cooldown)
			return Result{Weights: composed.Weights, Submitted: false}, nil
		}
	}

	uids, weightVals := toUint16Vectors(composed.Weights)

	submitCtx, cancel := context.WithTimeout(ctx, in.SetWeightsTimeout)
	defer cancel()

	type submitOutcome struct {
		success bool
		message string
		err     error
	}
	done := make(chan submitOutcome, 1)
	go func() {
		success, message, err := client.SetWeights(submitCtx, wallet, in.Netuid, uids, weightVals, in.VersionKey, chain.DefaultSetWeightsOptions())
		done <- submitOutcome{success: success, message: message, err: err}
	}()

	select {
	case <-submitCtx.Done():
		log.Error("set_weights timed out", "timeout", in.SetWeightsTimeout)
		return Result{}, errs.ErrSetWeightsTimeout
	case outcome := <-done:
		return classify(composed.Weights, outcome.success, outcome.message, outcome.err)
	}
}

func classify(weightsOut map[int64]float64, success bool, message string, err error) (Result, error) {
	if err != nil {
		return Result{}, &errs.SetWeightsFailedError{Message: err.Error()}
	}
	if success {
		log.Info("set_weights submitted successfully", "message", message)
		return Result{Weights: weightsOut, Submitted: true, Message: message}, nil
	}

	lower := strings.ToLower(message)
	if strings.Contains(lower, "too soon") || strings.Contains(lower, "cooldown") {
		log.Warn("set_weights rejected as premature by chain", "message", message)
		return Result{Weights: weightsOut, Submitted: false, Message: message}, nil
	}

	return Result{}, &errs.SetWeightsFailedError{Message: message}
}

func blocksSinceUpdate(current, lastUpdate uint64) uint64 {
	if current < lastUpdate {
		return 0
	}
	return current - lastUpdate
}

// toUint16Vectors converts a UID->weight map into the parallel
// uint16-encoded arrays the chain client submits, sorted by UID so
// repeated calls on the same input are byte-identical.
func toUint16Vectors(w map[int64]float64) ([]uint16, []uint16) {
	uids := sortedUIDs(w)
	outUIDs := make([]uint16, 0, len(uids))
	outWeights := make([]uint16, 0, len(uids))
	const maxU16 = float64(65535)
	for _, uid := range uids {
		outUIDs = append(outUIDs, uint16(uid))
		outWeights = append(outWeights, uint16(w[uid]*maxU16+0.5))
	}
	return outUIDs, outWeights
}

func sortedUIDs(w map[int64]float64) []int64 {
	uids := make([]int64, 0, len(w))
	for uid := range w {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids
}
