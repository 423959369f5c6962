package weights

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sum(m map[int64]float64) float64 {
	var s float64
	for _, v := range m {
		s += v
	}
	return s
}

func i64(v int64) *int64 { return &v }

func TestComposeScenarioS1(t *testing.T) {
	res := Compose(ComposeInput{
		Scores:       map[int64]float64{7: 493150.68},
		TraderWeight: 0,
	})
	assert.InDelta(t, 1.0, res.Weights[7], 1e-6)
	assert.InDelta(t, 1.0, sum(res.Weights), 1e-6)
}

func TestComposeScenarioS2(t *testing.T) {
	res := Compose(ComposeInput{
		Scores:       map[int64]float64{7: 493150.68, 11: 986301.36, 99: 0},
		TraderUID:    i64(99),
		TraderWeight: 0.243902,
	})
	assert.InDelta(t, 0.243902, res.Weights[99], 1e-6)
	assert.InDelta(t, 0.252032, res.Weights[7], 1e-4)
	assert.InDelta(t, 0.504065, res.Weights[11], 1e-4)
	assert.InDelta(t, 1.0, sum(res.Weights), 1e-6)
}

func TestComposeScenarioS3BurnChannel(t *testing.T) {
	res := Compose(ComposeInput{
		Scores:       map[int64]float64{7: 0, 11: 0, 99: 0},
		TraderUID:    i64(99),
		TraderWeight: 0.243902,
		OwnerUID:     i64(0),
	})
	assert.True(t, res.BurnApplied)
	assert.InDelta(t, 0.756098, res.Weights[0], 1e-6)
	assert.InDelta(t, 0.243902, res.Weights[99], 1e-6)
	assert.InDelta(t, 1.0, sum(res.Weights), 1e-6)
}

func TestComposeNoPositivesNoOwnerYieldsEmptyTotal(t *testing.T) {
	res := Compose(ComposeInput{Scores: map[int64]float64{7: 0}})
	assert.InDelta(t, 0.0, sum(res.Weights), 1e-9)
}

func TestComposeOutOfRangeTraderWeightResetToZero(t *testing.T) {
	res := Compose(ComposeInput{
		Scores:       map[int64]float64{7: 10},
		TraderUID:    i64(99),
		TraderWeight: 1.5,
	})
	assert.Equal(t, 0.0, res.EffectiveTraderWeight)
	assert.InDelta(t, 1.0, res.Weights[7], 1e-9)
	_, hasTrader := res.Weights[99]
	assert.False(t, hasTrader)
}

func TestComposeNegativeScoresClamped(t *testing.T) {
	res := Compose(ComposeInput{Scores: map[int64]float64{7: -5, 11: 10}})
	assert.InDelta(t, 1.0, res.Weights[11], 1e-9)
	_, hasNeg := res.Weights[7]
	assert.False(t, hasNeg)
}

func TestDisplayScoresScalesToThousand(t *testing.T) {
	d := DisplayScores(map[int64]float64{7: 50, 11: 100})
	assert.InDelta(t, 500.0, d[7], 1e-9)
	assert.InDelta(t, 1000.0, d[11], 1e-9)
}

func TestDisplayScoresAllZero(t *testing.T) {
	d := DisplayScores(map[int64]float64{7: 0, 11: 0})
	assert.Equal(t, 0.0, d[7])
	assert.Equal(t, 0.0, d[11])
}

func TestComposeWeightClosureFuzzLike(t *testing.T) {
	for _, scores := range []map[int64]float64{
		{1: 1, 2: 2, 3: 3},
		{1: 100000, 2: 1},
		{1: 0.0001, 2: 0.0002},
	} {
		res := Compose(ComposeInput{Scores: scores})
		assert.True(t, math.Abs(sum(res.Weights)-1.0) <= 1e-6)
	}
}
