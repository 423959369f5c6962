// Package metrics registers the process-wide counters and timers the
// daemon exposes through go-ethereum's metrics registry, the same
// package-level NewRegisteredCounter/NewRegisteredTimer idiom
// miner/worker.go uses for its own mining counters.
package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/metrics"
)

var (
	// EpochPassTotal counts every attempted epoch pass, success or
	// failure.
	EpochPassTotal = metrics.NewRegisteredCounter("validator/epoch/passes", nil)

	// EpochPassFailures counts passes that returned an error.
	EpochPassFailures = metrics.NewRegisteredCounter("validator/epoch/failures", nil)

	// EpochPassDuration times a full RunEpoch call.
	EpochPassDuration = metrics.NewRegisteredTimer("validator/epoch/duration", nil)

	// SetWeightsSubmitted counts successful on-chain submissions.
	SetWeightsSubmitted = metrics.NewRegisteredCounter("validator/publish/submitted", nil)

	// SetWeightsSuppressed counts passes where the cooldown suppressed
	// submission.
	SetWeightsSuppressed = metrics.NewRegisteredCounter("validator/publish/cooldown_suppressed", nil)

	// SetWeightsFailed counts submissions the chain rejected outright.
	SetWeightsFailed = metrics.NewRegisteredCounter("validator/publish/failed", nil)

	// PoolWeightCacheHits counts GetPoolWeights calls served from a
	// fresh on-disk cache without an RPC round trip.
	PoolWeightCacheHits = metrics.NewRegisteredCounter("validator/poolweights/cache_hits", nil)

	// PoolWeightFallbacks counts calls that fell back to an expired
	// cache or the static settings table.
	PoolWeightFallbacks = metrics.NewRegisteredCounter("validator/poolweights/fallbacks", nil)

	// RosterSize samples the verified-miner roster size per pass.
	RosterSize = metrics.NewRegisteredGauge("validator/roster/size", nil)
)

// TimeSince updates a timer with the elapsed duration since start, the
// same pattern miner/worker.go applies to txConditionalMinedTimer.
func TimeSince(timer metrics.Timer, start time.Time) {
	timer.Update(time.Since(start))
}
