package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/General-Tao-Ventures/cartha-validator/internal/position"
)

func TestScorePositionsScenarioS1(t *testing.T) {
	records := []position.Record{
		{Key: "P#0", PoolID: "P", AmountRaw: 1_000_000_000_000, LockDays: 180},
	}
	settings := Settings{TokenDecimals: 6, MaxLockDays: 365, MinTotalAssetsUSDC: 100_000}
	score := ScorePositions(records, settings, map[string]float64{"P": 1.0})
	assert.InDelta(t, 493150.68, score, 0.5)
}

func TestScorePositionsBelowMinimumThresholdForcesZero(t *testing.T) {
	records := []position.Record{
		{Key: "P#0", PoolID: "P", AmountRaw: 50_000_000_000, LockDays: 365},
	}
	settings := Settings{TokenDecimals: 6, MaxLockDays: 365, MinTotalAssetsUSDC: 100_000}
	score := ScorePositions(records, settings, map[string]float64{"P": 1.0})
	assert.Zero(t, score)
}

func TestScorePositionsMissingPoolWeightDefaultsZero(t *testing.T) {
	records := []position.Record{
		{Key: "P#0", PoolID: "UNKNOWN", AmountRaw: 1_000_000_000, LockDays: 100},
	}
	settings := Settings{TokenDecimals: 6, MaxLockDays: 365}
	score := ScorePositions(records, settings, map[string]float64{})
	assert.Zero(t, score)
}

func TestScorePositionsMaxLockDaysZeroTreatsBoostAsOne(t *testing.T) {
	records := []position.Record{
		{Key: "P#0", PoolID: "P", AmountRaw: 1_000_000, LockDays: 5},
	}
	settings := Settings{TokenDecimals: 6, MaxLockDays: 0}
	score := ScorePositions(records, settings, map[string]float64{"P": 1.0})
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestScorePositionsMultiplePositionsIndependentBoost(t *testing.T) {
	records := []position.Record{
		{Key: "P#0", PoolID: "P", AmountRaw: 1_000_000, LockDays: 365},
		{Key: "P#1", PoolID: "P", AmountRaw: 1_000_000, LockDays: 0},
	}
	settings := Settings{TokenDecimals: 6, MaxLockDays: 365}
	score := ScorePositions(records, settings, map[string]float64{"P": 1.0})
	assert.InDelta(t, 1.0, score, 1e-9)
}
