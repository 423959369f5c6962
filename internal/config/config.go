// Package config defines the validator's immutable, typed Settings and
// the layered loader that produces one: built-in defaults, overridden
// by an optional TOML file, overridden by environment variables
// (including a loaded .env file), overridden by explicit CLI values.
//
// Settings themselves never mutate once loading and CLI overrides are
// done; every pipeline component receives the same read-only value.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/General-Tao-Ventures/cartha-validator/internal/errs"
)

// Settings is the full set of recognized configuration: the core
// pipeline fields plus the ambient and domain fields the runtime needs
// (cache locations, pacing, TOML/legacy replay wiring).
type Settings struct {
	Netuid int

	VerifierURL string
	Network     string // diagnostic query param only

	ParentVaultAddresses []common.Address
	ParentVaultRPCURL    string
	VaultPoolTable       map[common.Address]string // vault address -> pool_id

	// RPCURLs is the legacy on-chain-replay path: chain_id -> RPC URL.
	// Optional; it is loaded and stored only. No pipeline code reads it,
	// and UseVerifiedAmounts does not switch the runner to replay.
	RPCURLs map[int64]string

	PoolWeights map[string]float64 // fallback table, values >1 are percentages

	TokenDecimals int
	MaxLockDays   int

	MetagraphSyncInterval uint64
	DefaultTempo          uint64
	EpochLengthBlocks     uint64

	Timeout           time.Duration
	SetWeightsTimeout time.Duration
	PollInterval      time.Duration

	LogDir string

	LeaderboardAPIURL string

	TraderRewardsPoolHotkey string
	TraderRewardsPoolWeight float64

	DailyEmissions     float64
	MinTotalAssetsUSDC float64

	UseVerifiedAmounts bool

	PoolWeightCacheDir     string
	PoolWeightCacheTTL     time.Duration
	ParentVaultPacingDelay time.Duration

	DryRun  bool
	RunOnce bool

	ValidatorHotkey string
}

// Defaults returns the built-in Settings baseline. Every loader layer
// starts from a copy of this value.
func Defaults() Settings {
	return Settings{
		Netuid:                  0,
		VerifierURL:             "",
		Network:                 "finney",
		ParentVaultAddresses:    nil,
		ParentVaultRPCURL:       "",
		VaultPoolTable:          map[common.Address]string{},
		RPCURLs:                 map[int64]string{},
		PoolWeights:             map[string]float64{},
		TokenDecimals:           6,
		MaxLockDays:             365,
		MetagraphSyncInterval:   100,
		DefaultTempo:            360,
		EpochLengthBlocks:       7200,
		Timeout:                 30 * time.Second,
		SetWeightsTimeout:       120 * time.Second,
		PollInterval:            12 * time.Second,
		LogDir:                  "logs",
		LeaderboardAPIURL:       "",
		TraderRewardsPoolHotkey: "",
		TraderRewardsPoolWeight: 0.243902,
		DailyEmissions:          0,
		MinTotalAssetsUSDC:      0,
		UseVerifiedAmounts:      true,
		PoolWeightCacheDir:      defaultCacheDir(),
		PoolWeightCacheTTL:      24 * time.Hour,
		ParentVaultPacingDelay:  2 * time.Second,
		DryRun:                  false,
		RunOnce:                 false,
	}
}

// Validate checks the invariants Settings must satisfy before the
// daemon or a single run_epoch pass can start. It returns a wrapped
// errs.ErrConfigurationMissing-class error describing every violation
// found, not just the first.
func (s Settings) Validate() error {
	var problems []string
	if s.Netuid < 0 {
		problems = append(problems, "netuid must be >= 0")
	}
	if s.VerifierURL == "" {
		problems = append(problems, "verifier_url is required")
	}
	if s.TokenDecimals < 0 {
		problems = append(problems, "token_decimals must be >= 0")
	}
	if s.MaxLockDays <= 0 {
		problems = append(problems, "max_lock_days must be > 0")
	}
	if s.TraderRewardsPoolWeight < 0 || s.TraderRewardsPoolWeight >= 1 {
		problems = append(problems, "trader_rewards_pool_weight must be in [0,1)")
	}
	if s.Timeout <= 0 {
		problems = append(problems, "timeout must be > 0")
	}
	if s.SetWeightsTimeout <= 0 {
		problems = append(problems, "set_weights_timeout must be > 0")
	}
	if len(problems) == 0 {
		return nil
	}
	msg := "invalid configuration:"
	for _, p := range problems {
		msg += " " + p + ";"
	}
	return fmt.Errorf("%w: %s", errs.ErrConfigurationMissing, msg)
}
