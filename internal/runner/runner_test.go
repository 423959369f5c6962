package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/General-Tao-Ventures/cartha-validator/internal/chain"
	"github.com/General-Tao-Ventures/cartha-validator/internal/chain/chaintest"
	"github.com/General-Tao-Ventures/cartha-validator/internal/config"
	"github.com/General-Tao-Ventures/cartha-validator/internal/poolweights"
	"github.com/General-Tao-Ventures/cartha-validator/internal/roster"
)

func newTestVerifierServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/verified-miners", func(w http.ResponseWriter, req *http.Request) {
		entries := []map[string]any{
			{
				"hotkey":        "miner-1",
				"pool_id":       "PA",
				"amount_raw":    5_000_000,
				"lock_days":     180,
				"epoch_version": "2026-W31",
			},
		}
		_ = json.NewEncoder(w).Encode(entries)
	})
	mux.HandleFunc("/v1/deregistered-hotkeys", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(roster.DeregisteredResponse{})
	})
	return httptest.NewServer(mux)
}

func newTestRunner(t *testing.T, dryRun bool) (*Runner, *chaintest.Fake) {
	t.Helper()
	verifier := newTestVerifierServer(t)
	t.Cleanup(verifier.Close)

	chainClient := chaintest.New(5000, map[string]int64{"miner-1": 7, "validator": 0})
	chainClient.SetMetagraph(&chain.Metagraph{
		Netuid:      12,
		Tempo:       360,
		LastUpdate:  []uint64{100},
		Hotkeys:     []string{"validator"},
		OwnerHotkey: "owner-hotkey",
	})

	settings := config.Defaults()
	settings.Netuid = 12
	settings.ValidatorHotkey = "validator"
	settings.DryRun = dryRun
	settings.LogDir = t.TempDir()
	settings.SetWeightsTimeout = time.Second
	settings.MinTotalAssetsUSDC = 0

	cacheDir := t.TempDir()
	oracle := poolweights.New(nil, poolweights.Config{
		FallbackTable: map[string]float64{"PA": 100},
		CachePath:     filepath.Join(cacheDir, "pool_weights_cache.json"),
		CacheTTL:      time.Hour,
	})

	r := New(settings, chainClient, chain.Wallet{Hotkey: "validator"}, roster.New(verifier.URL, verifier.Client()), oracle, nil)
	r.Now = func() time.Time { return time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC) }
	r.NewRunID = func() string { return "test-run-id" }
	return r, chainClient
}

func TestRunEpochDryRunSkipsSubmit(t *testing.T) {
	r, chainClient := newTestRunner(t, true)
	result, err := r.RunEpoch(context.Background(), "2026-W31", false)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Empty(t, chainClient.Submissions)
	require.Len(t, result.Ranking, 1)
	assert.Equal(t, int64(7), result.Ranking[0].UID)
	assert.Equal(t, "miner-1", result.Ranking[0].Hotkey)
	assert.InDelta(t, 1.0, result.Ranking[0].Weight, 1e-9)
	assert.Equal(t, 1, result.Summary.TotalMiners)

	entries, err := os.ReadDir(r.Settings.LogDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunEpochPublishesWhenNotDryRun(t *testing.T) {
	r, chainClient := newTestRunner(t, false)
	result, err := r.RunEpoch(context.Background(), "2026-W31", true)
	require.NoError(t, err)
	assert.False(t, result.DryRun)
	require.Len(t, chainClient.Submissions, 1)
}
