package runner

import (
	"time"

	"github.com/General-Tao-Ventures/cartha-validator/internal/position"
)

// RankingEntry is one row of the per-pass leaderboard, part of an
// Epoch Result's ranking.
type RankingEntry struct {
	UID             int64              `json:"uid"`
	Hotkey          string             `json:"hotkey"`
	SlotUID         string             `json:"slot_uid,omitempty"`
	Score           float64            `json:"score"`
	DisplayScore    float64            `json:"display_score"`
	Weight          float64            `json:"weight"`
	EmissionsPerDay float64            `json:"emissions_per_day"`
	Positions       []position.Record `json:"positions"`
}

// SummaryCounters tallies one pass's outcome across the miner roster.
type SummaryCounters struct {
	TotalRows    int   `json:"total_rows"`
	TotalMiners  int   `json:"total_miners"`
	Scored       int   `json:"scored"`
	Skipped      int   `json:"skipped"`
	Failures     int   `json:"failures"`
	MissingUID   int   `json:"missing_uid"`
	ExpiredPools int   `json:"expired_pools"`
	ElapsedMs    int64 `json:"elapsed_ms"`
	DryRun       bool  `json:"dry_run"`
}

// EpochResult is the artifact persisted per pass and (optionally) sent
// to the leaderboard API.
type EpochResult struct {
	EpochVersion string          `json:"epoch_version"`
	Timestamp    time.Time       `json:"timestamp"`
	DryRun       bool            `json:"dry_run"`
	Summary      SummaryCounters `json:"summary"`
	Ranking      []RankingEntry  `json:"ranking"`
}
