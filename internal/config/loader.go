package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/naoina/toml"
)

// Loader builds a Settings value by applying layers in increasing
// priority: built-in Defaults, an optional TOML file, the process
// environment (including a loaded .env file), and finally explicit CLI
// overrides, which the caller assigns directly on the value Settings()
// returns.
type Loader struct {
	settings Settings
}

// NewLoader starts a fresh loader from Defaults().
func NewLoader() *Loader {
	return &Loader{settings: Defaults()}
}

// Settings returns the accumulated, immutable configuration.
func (l *Loader) Settings() Settings {
	return l.settings
}

// ApplyDotEnv loads a .env file into the process environment if present.
// Existing environment variables always take precedence over values
// loaded from the file.
func (l *Loader) ApplyDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// fileConfig mirrors the subset of Settings that may be set from a TOML
// file. Pointer fields distinguish "absent from file" from "zero value",
// the way go-ethereum's own cmd/geth config.toml loading layers onto
// defaults.
type fileConfig struct {
	Netuid                  *int               `toml:"netuid"`
	VerifierURL             *string            `toml:"verifier_url"`
	Network                 *string            `toml:"network"`
	ParentVaultRPCURL       *string            `toml:"parent_vault_rpc_url"`
	ParentVaultAddresses    []string           `toml:"parent_vault_addresses"`
	TokenDecimals           *int               `toml:"token_decimals"`
	MaxLockDays             *int               `toml:"max_lock_days"`
	MetagraphSyncInterval   *uint64            `toml:"metagraph_sync_interval"`
	DefaultTempo            *uint64            `toml:"default_tempo"`
	EpochLengthBlocks       *uint64            `toml:"epoch_length_blocks"`
	TimeoutSeconds          *int               `toml:"timeout"`
	SetWeightsTimeoutSecs   *int               `toml:"set_weights_timeout"`
	PollIntervalSeconds     *int               `toml:"poll_interval"`
	LogDir                  *string            `toml:"log_dir"`
	LeaderboardAPIURL       *string            `toml:"leaderboard_api_url"`
	TraderRewardsPoolHotkey *string            `toml:"trader_rewards_pool_hotkey"`
	TraderRewardsPoolWeight *float64           `toml:"trader_rewards_pool_weight"`
	DailyEmissions          *float64           `toml:"daily_emissions"`
	MinTotalAssetsUSDC      *float64           `toml:"min_total_assets_usdc"`
	PoolWeights             map[string]float64 `toml:"pool_weights"`
	VaultPoolTable          map[string]string  `toml:"vault_pool_table"`
	RPCURLs                 map[string]string  `toml:"rpc_urls"`
	UseVerifiedAmounts      *bool              `toml:"use_verified_amounts"`
}

// ApplyTOMLFile decodes a TOML config file onto the loader's current
// settings. A missing file is not an error: the config file is always
// optional.
func (l *Loader) ApplyTOMLFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	l.mergeFileConfig(fc)
	return nil
}

func (l *Loader) mergeFileConfig(fc fileConfig) {
	s := &l.settings
	if fc.Netuid != nil {
		s.Netuid = *fc.Netuid
	}
	if fc.VerifierURL != nil {
		s.VerifierURL = *fc.VerifierURL
	}
	if fc.Network != nil {
		s.Network = *fc.Network
	}
	if fc.ParentVaultRPCURL != nil {
		s.ParentVaultRPCURL = *fc.ParentVaultRPCURL
	}
	if len(fc.ParentVaultAddresses) > 0 {
		s.ParentVaultAddresses = parseAddressList(fc.ParentVaultAddresses)
	}
	if fc.TokenDecimals != nil {
		s.TokenDecimals = *fc.TokenDecimals
	}
	if fc.MaxLockDays != nil {
		s.MaxLockDays = *fc.MaxLockDays
	}
	if fc.MetagraphSyncInterval != nil {
		s.MetagraphSyncInterval = *fc.MetagraphSyncInterval
	}
	if fc.DefaultTempo != nil {
		s.DefaultTempo = *fc.DefaultTempo
	}
	if fc.EpochLengthBlocks != nil {
		s.EpochLengthBlocks = *fc.EpochLengthBlocks
	}
	if fc.TimeoutSeconds != nil {
		s.Timeout = time.Duration(*fc.TimeoutSeconds) * time.Second
	}
	if fc.SetWeightsTimeoutSecs != nil {
		s.SetWeightsTimeout = time.Duration(*fc.SetWeightsTimeoutSecs) * time.Second
	}
	if fc.PollIntervalSeconds != nil {
		s.PollInterval = time.Duration(*fc.PollIntervalSeconds) * time.Second
	}
	if fc.LogDir != nil {
		s.LogDir = *fc.LogDir
	}
	if fc.LeaderboardAPIURL != nil {
		s.LeaderboardAPIURL = *fc.LeaderboardAPIURL
	}
	if fc.TraderRewardsPoolHotkey != nil {
		s.TraderRewardsPoolHotkey = *fc.TraderRewardsPoolHotkey
	}
	if fc.TraderRewardsPoolWeight != nil {
		s.TraderRewardsPoolWeight = *fc.TraderRewardsPoolWeight
	}
	if fc.DailyEmissions != nil {
		s.DailyEmissions = *fc.DailyEmissions
	}
	if fc.MinTotalAssetsUSDC != nil {
		s.MinTotalAssetsUSDC = *fc.MinTotalAssetsUSDC
	}
	if len(fc.PoolWeights) > 0 {
		s.PoolWeights = fc.PoolWeights
	}
	if len(fc.VaultPoolTable) > 0 {
		s.VaultPoolTable = parseVaultPoolTable(fc.VaultPoolTable)
	}
	if len(fc.RPCURLs) > 0 {
		s.RPCURLs = parseRPCURLs(fc.RPCURLs)
	}
	if fc.UseVerifiedAmounts != nil {
		s.UseVerifiedAmounts = *fc.UseVerifiedAmounts
	}
}

// ApplyEnv overlays the recognized environment variables: the parent
// vault and leaderboard variables plus a CARTHA_-prefixed set for the
// verifier URL, netuid, validator hotkey, network and
// use_verified_amounts. Other settings have no environment variable.
func (l *Loader) ApplyEnv() {
	s := &l.settings
	if v, ok := os.LookupEnv("PARENT_VAULT_ADDRESS"); ok && v != "" {
		s.ParentVaultAddresses = parseAddressList(splitNonEmpty(v))
	}
	if v, ok := os.LookupEnv("PARENT_VAULT_RPC_URL"); ok && v != "" {
		s.ParentVaultRPCURL = v
	}
	if v, ok := os.LookupEnv("LEADERBOARD_API_URL"); ok && v != "" {
		s.LeaderboardAPIURL = v
	}
	if v, ok := os.LookupEnv("CARTHA_VERIFIER_URL"); ok && v != "" {
		s.VerifierURL = v
	}
	if v, ok := os.LookupEnv("CARTHA_NETUID"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.Netuid = n
		}
	}
	if v, ok := os.LookupEnv("CARTHA_VALIDATOR_HOTKEY"); ok && v != "" {
		s.ValidatorHotkey = v
	}
	if v, ok := os.LookupEnv("CARTHA_NETWORK"); ok && v != "" {
		s.Network = v
	}
	if v, ok := os.LookupEnv("CARTHA_USE_VERIFIED_AMOUNTS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.UseVerifiedAmounts = b
		}
	}
}

func splitNonEmpty(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAddressList(raw []string) []common.Address {
	out := make([]common.Address, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" || !common.IsHexAddress(r) {
			continue
		}
		out = append(out, common.HexToAddress(r))
	}
	return out
}

func parseVaultPoolTable(raw map[string]string) map[common.Address]string {
	out := make(map[common.Address]string, len(raw))
	for addr, poolID := range raw {
		if !common.IsHexAddress(addr) {
			continue
		}
		out[common.HexToAddress(addr)] = poolID
	}
	return out
}

func parseRPCURLs(raw map[string]string) map[int64]string {
	out := make(map[int64]string, len(raw))
	for chainID, url := range raw {
		id, err := strconv.ParseInt(chainID, 10, 64)
		if err != nil {
			continue
		}
		out[id] = url
	}
	return out
}
