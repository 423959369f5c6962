// Package scoring composes a single miner's raw score from its
// surviving positions:
//
//	score = Σ pool_weight(pool_id) * (amount_raw / 10^decimals) * boost(lock_days)
//
// Scores are intentionally raw, not normalized — normalization is
// internal/weights' job, preserving competitive differentiation.
package scoring

import (
	"math"

	"github.com/ethereum/go-ethereum/log"

	"github.com/General-Tao-Ventures/cartha-validator/internal/position"
)

// Settings is the subset scoring needs, kept narrow so this package
// doesn't import the full config.Settings.
type Settings struct {
	TokenDecimals      int
	MaxLockDays        int
	MinTotalAssetsUSDC float64
}

// ScorePositions computes a single miner's score from its surviving
// position records and the current pool-weight map.
func ScorePositions(records []position.Record, settings Settings, poolWeights map[string]float64) float64 {
	boostDenominator := float64(settings.MaxLockDays)
	boostOverride := false
	if settings.MaxLockDays <= 0 {
		log.Warn("max_lock_days <= 0, treating lock-days boost as 1.0")
		boostOverride = true
	}

	unit := math.Pow(10, float64(settings.TokenDecimals))

	var score float64
	var totalAssetsUSDC float64
	for _, r := range records {
		tokenAmount := float64(r.AmountRaw) / unit
		totalAssetsUSDC += tokenAmount

		boost := 1.0
		if !boostOverride {
			lockDays := float64(r.LockDays)
			if lockDays > boostDenominator {
				lockDays = boostDenominator
			}
			if lockDays < 0 {
				lockDays = 0
			}
			boost = lockDays / boostDenominator
		}

		weight := poolWeights[r.PoolID] // default 0 if missing
		score += weight * tokenAmount * boost
	}

	if totalAssetsUSDC < settings.MinTotalAssetsUSDC {
		return 0.0
	}
	if score <= 0 {
		return 0.0
	}
	return score
}
