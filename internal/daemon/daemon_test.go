package daemon

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
	"github.com/General-Tao-Ventures/cartha-validator/internal/runner"
)

func newEmptyVerifierServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/verified-miners", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	})
	mux.HandleFunc("/v1/deregistered-hotkeys", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(roster.DeregisteredResponse{})
	})
	return httptest.NewServer(mux)
}

func newTestDaemon(t *testing.T, tempo, metagraphSyncInterval uint64) (*Daemon, *chaintest.Fake) {
	t.Helper()
	verifier := newEmptyVerifierServer(t)
	t.Cleanup(verifier.Close)

	// validator hotkey intentionally unregistered so blocksSinceValidatorUpdate
	// falls back to the last_publish_block comparison, which the test drives
	// directly via chainClient.SetBlock.
	chainClient := chaintest.New(1000, map[string]int64{})
	chainClient.SetMetagraph(&chain.Metagraph{
		Netuid:      12,
		Tempo:       tempo,
		LastUpdate:  []uint64{},
		Hotkeys:     []string{},
		OwnerHotkey: "owner-hotkey",
	})

	settings := config.Defaults()
	settings.Netuid = 12
	settings.ValidatorHotkey = "validator"
	settings.DryRun = true
	settings.LogDir = t.TempDir()
	settings.SetWeightsTimeout = time.Second
	settings.PollInterval = time.Millisecond
	settings.MetagraphSyncInterval = metagraphSyncInterval

	cacheDir := t.TempDir()
	oracle := poolweights.New(nil, poolweights.Config{
		FallbackTable: map[string]float64{"PA": 100},
		CachePath:     filepath.Join(cacheDir, "pool_weights_cache.json"),
		CacheTTL:      time.Hour,
	})

	r := runner.New(settings, chainClient, chain.Wallet{Hotkey: "validator"}, roster.New(verifier.URL, verifier.Client()), oracle, nil)
	r.NewRunID = func() string { return "test-run-id" }

	d := New(r, chainClient, settings)
	return d, chainClient
}

func countLogFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestDaemonDetectsNewEpochOnBoot(t *testing.T) {
	d, _ := newTestDaemon(t, 1_000_000, 1_000_000)
	ctx, cancel := context.WithCancel(context.Background())

	sleepCalls := 0
	d.Sleep = func(ctx context.Context, dur time.Duration) {
		sleepCalls++
		cancel()
	}

	err := d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sleepCalls)
	assert.NotEmpty(t, d.lastWeeklyEpochVersion)
	assert.Equal(t, 1, countLogFiles(t, d.Settings.LogDir))
}

func TestDaemonRunsSubEpochRefreshWhenTempoElapsed(t *testing.T) {
	d, chainClient := newTestDaemon(t, 10, 1_000_000)
	ctx, cancel := context.WithCancel(context.Background())

	sleepCalls := 0
	d.Sleep = func(ctx context.Context, dur time.Duration) {
		sleepCalls++
		if sleepCalls == 1 {
			chainClient.SetBlock(1020) // advance past tempo for the next tick
			return
		}
		cancel()
	}

	err := d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sleepCalls)
	// one from DETECT's initial pass, one from WAIT's sub-epoch refresh
	assert.Equal(t, 2, countLogFiles(t, d.Settings.LogDir))
}

// flakyChain wraps chaintest.Fake and fails its first CurrentBlock call,
// exercising the daemon's ANY-state "unhandled exception" recovery path
// (log, sleep, return to DETECT) before succeeding on the retry.
type flakyChain struct {
	*chaintest.Fake
	currentBlockCalls int
}

func (f *flakyChain) CurrentBlock(ctx context.Context) (uint64, error) {
	f.currentBlockCalls++
	if f.currentBlockCalls == 1 {
		return 0, assertionError{"rpc unavailable"}
	}
	return f.Fake.CurrentBlock(ctx)
}

type assertionError struct{ msg string }

func (e assertionError) Error() string { return e.msg }

func TestDaemonRecoversFromTransientError(t *testing.T) {
	d, chainClient := newTestDaemon(t, 1_000_000, 1_000_000)
	flaky := &flakyChain{Fake: chainClient}
	d.Chain = flaky
	d.Runner.Chain = flaky

	ctx, cancel := context.WithCancel(context.Background())

	sleepCalls := 0
	d.Sleep = func(ctx context.Context, dur time.Duration) {
		sleepCalls++
		cancel()
	}

	err := d.Run(ctx)
	require.NoError(t, err)
	// First CurrentBlock call fails inside boot, triggering the recovery
	// sleep; that sleep cancels the context before the loop resumes in
	// DETECT, so exactly one sleep/cancel round trip is observed.
	assert.Equal(t, 1, sleepCalls)
	assert.GreaterOrEqual(t, flaky.currentBlockCalls, 1)
}
