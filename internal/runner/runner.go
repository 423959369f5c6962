// Package runner orchestrates one full epoch pass end to end: fetch
// roster, read pool weights, score positions, compose the weight
// vector, publish (or dry-run), and persist the result.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/General-Tao-Ventures/cartha-validator/internal/chain"
	"github.com/General-Tao-Ventures/cartha-validator/internal/config"
	"github.com/General-Tao-Ventures/cartha-validator/internal/leaderboard"
	"github.com/General-Tao-Ventures/cartha-validator/internal/metrics"
	"github.com/General-Tao-Ventures/cartha-validator/internal/position"
	"github.com/General-Tao-Ventures/cartha-validator/internal/poolweights"
	"github.com/General-Tao-Ventures/cartha-validator/internal/publisher"
	"github.com/General-Tao-Ventures/cartha-validator/internal/roster"
	"github.com/General-Tao-Ventures/cartha-validator/internal/scoring"
	"github.com/General-Tao-Ventures/cartha-validator/internal/weights"
	"github.com/General-Tao-Ventures/cartha-validator/params"
)

// Runner holds every collaborator one epoch pass needs. All fields are
// required except Leaderboard, which is nil when no leaderboard_api_url
// is configured.
type Runner struct {
	Settings    config.Settings
	Chain       chain.Client
	Wallet      chain.Wallet
	Roster      *roster.Fetcher
	Oracle      *poolweights.Oracle
	Leaderboard *leaderboard.Client

	// Now and NewRunID are overridable for deterministic tests.
	Now      func() time.Time
	NewRunID func() string
}

// New builds a Runner with production defaults for Now/NewRunID.
func New(settings config.Settings, chainClient chain.Client, wallet chain.Wallet, rosterFetcher *roster.Fetcher, oracle *poolweights.Oracle, leaderboardClient *leaderboard.Client) *Runner {
	return &Runner{
		Settings:    settings,
		Chain:       chainClient,
		Wallet:      wallet,
		Roster:      rosterFetcher,
		Oracle:      oracle,
		Leaderboard: leaderboardClient,
		Now:         time.Now,
		NewRunID:    uuid.NewString,
	}
}

// RunEpoch executes one pass for requestedEpoch. When force is true the
// publish cooldown check is bypassed (used for manual re-runs).
func (r *Runner) RunEpoch(ctx context.Context, requestedEpoch string, force bool) (result EpochResult, err error) {
	start := r.Now()
	runID := r.NewRunID()
	log.Info("epoch pass starting", "run_id", runID, "requested_epoch", requestedEpoch, "dry_run", r.Settings.DryRun)

	metrics.EpochPassTotal.Inc(1)
	defer func() {
		metrics.TimeSince(metrics.EpochPassDuration, start)
		if err != nil {
			metrics.EpochPassFailures.Inc(1)
		}
	}()

	netuid := r.Settings.Netuid

	metagraph, err := r.Chain.Metagraph(ctx, netuid)
	if err != nil {
		return EpochResult{}, fmt.Errorf("fetch metagraph: %w", err)
	}

	effectiveEpoch, entries, err := r.Roster.FetchVerified(ctx, requestedEpoch, r.Settings.ValidatorHotkey, netuid, r.Settings.Network)
	if err != nil {
		return EpochResult{}, fmt.Errorf("fetch verified roster: %w", err)
	}
	if effectiveEpoch != requestedEpoch {
		log.Info("adopting epoch served by verifier", "run_id", runID, "requested", requestedEpoch, "effective", effectiveEpoch)
	}
	metrics.RosterSize.Update(int64(len(entries)))
	deregistered := r.Roster.FetchDeregistered(ctx, effectiveEpoch)

	poolWeights, err := r.Oracle.GetPoolWeights(ctx, false)
	if err != nil {
		return EpochResult{}, fmt.Errorf("fetch pool weights: %w", err)
	}

	now := r.Now()
	posResult := position.Process(ctx, entries, deregistered, r.Chain, netuid, now)

	scoreSettings := scoring.Settings{
		TokenDecimals:      r.Settings.TokenDecimals,
		MaxLockDays:        r.Settings.MaxLockDays,
		MinTotalAssetsUSDC: r.Settings.MinTotalAssetsUSDC,
	}
	scores := make(map[int64]float64, len(posResult.PositionsByUID))
	for uid, records := range posResult.PositionsByUID {
		scores[uid] = scoring.ScorePositions(records, scoreSettings, poolWeights)
	}

	traderUID := r.resolveOptionalUID(ctx, r.Settings.TraderRewardsPoolHotkey, netuid)
	ownerUID := r.resolveOptionalUID(ctx, metagraph.OwnerHotkey, netuid)

	currentBlock, err := r.Chain.CurrentBlock(ctx)
	if err != nil {
		return EpochResult{}, fmt.Errorf("fetch current block: %w", err)
	}

	var lastUpdateBlock uint64
	if validatorUID, err := r.Chain.UIDForHotkey(ctx, r.Settings.ValidatorHotkey, netuid); err == nil && validatorUID >= 0 && int(validatorUID) < len(metagraph.LastUpdate) {
		lastUpdateBlock = metagraph.LastUpdate[validatorUID]
	}

	var composedWeights map[int64]float64
	var submitted bool
	if r.Settings.DryRun {
		composed := weights.Compose(weights.ComposeInput{
			Scores:       scores,
			TraderUID:    traderUID,
			TraderWeight: r.Settings.TraderRewardsPoolWeight,
			OwnerUID:     ownerUID,
		})
		composedWeights = composed.Weights
		log.Info("dry run: skipping publish", "run_id", runID)
	} else {
		pubResult, err := publisher.Publish(ctx, r.Chain, r.Wallet, publisher.Input{
			Scores:            scores,
			TraderUID:         traderUID,
			TraderWeight:      r.Settings.TraderRewardsPoolWeight,
			OwnerUID:          ownerUID,
			Netuid:            netuid,
			CurrentBlock:      currentBlock,
			Tempo:             metagraph.Tempo,
			FallbackCooldown:  r.Settings.EpochLengthBlocks,
			LastUpdateBlock:   lastUpdateBlock,
			Force:             force,
			VersionKey:        params.SpecVersion(),
			SetWeightsTimeout: r.Settings.SetWeightsTimeout,
		})
		if err != nil {
			metrics.SetWeightsFailed.Inc(1)
			return EpochResult{}, fmt.Errorf("publish weights: %w", err)
		}
		composedWeights = pubResult.Weights
		submitted = pubResult.Submitted
		if submitted {
			metrics.SetWeightsSubmitted.Inc(1)
		} else {
			metrics.SetWeightsSuppressed.Inc(1)
		}
	}

	displayScores := weights.DisplayScores(scores)
	ranking := buildRanking(scores, displayScores, composedWeights, posResult, r.Settings.DailyEmissions)

	summary := SummaryCounters{
		TotalRows:    posResult.Counters.TotalRows,
		TotalMiners:  len(posResult.PositionsByUID),
		Scored:       countPositive(scores),
		Skipped:      posResult.Counters.Skipped,
		Failures:     posResult.Counters.Failures,
		MissingUID:   posResult.Counters.MissingUID,
		ExpiredPools: posResult.Counters.ExpiredPools,
		ElapsedMs:    r.Now().Sub(start).Milliseconds(),
		DryRun:       r.Settings.DryRun,
	}

	result = EpochResult{
		EpochVersion: effectiveEpoch,
		Timestamp:    now,
		DryRun:       r.Settings.DryRun,
		Summary:      summary,
		Ranking:      ranking,
	}

	if err := r.persist(effectiveEpoch, now, result); err != nil {
		log.Error("failed to persist epoch result", "run_id", runID, "error", err)
	}

	if r.Leaderboard != nil && !r.Settings.DryRun {
		sub := leaderboard.Submission{
			ValidatorHotkey: r.Settings.ValidatorHotkey,
			EpochVersion:    effectiveEpoch,
			Ranking:         ranking,
		}
		if err := r.Leaderboard.Submit(ctx, sub); err != nil {
			log.Warn("leaderboard submission failed", "run_id", runID, "error", err)
		}
	}

	log.Info("epoch pass complete", "run_id", runID, "epoch_version", effectiveEpoch, "submitted", submitted, "elapsed_ms", summary.ElapsedMs)
	return result, nil
}

// resolveOptionalUID resolves hotkey to a UID, returning nil when
// hotkey is empty or unregistered (an unresolved trader/owner identity
// is treated as absent, not fatal).
func (r *Runner) resolveOptionalUID(ctx context.Context, hotkey string, netuid int) *int64 {
	if hotkey == "" {
		return nil
	}
	uid, err := r.Chain.UIDForHotkey(ctx, hotkey, netuid)
	if err != nil || uid < 0 {
		log.Warn("could not resolve hotkey to a UID", "hotkey", hotkey, "error", err)
		return nil
	}
	return &uid
}

func buildRanking(scores, displayScores, composedWeights map[int64]float64, posResult position.Result, dailyEmissions float64) []RankingEntry {
	uids := make(map[int64]struct{}, len(scores)+len(composedWeights))
	for uid := range scores {
		uids[uid] = struct{}{}
	}
	for uid := range composedWeights {
		uids[uid] = struct{}{}
	}

	ranking := make([]RankingEntry, 0, len(uids))
	for uid := range uids {
		weight := composedWeights[uid]
		ranking = append(ranking, RankingEntry{
			UID:             uid,
			Hotkey:          posResult.HotkeyByUID[uid],
			Score:           scores[uid],
			DisplayScore:    displayScores[uid],
			Weight:          weight,
			EmissionsPerDay: weight * dailyEmissions,
			Positions:       posResult.PositionsByUID[uid],
		})
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Score != ranking[j].Score {
			return ranking[i].Score > ranking[j].Score
		}
		return ranking[i].UID < ranking[j].UID
	})
	return ranking
}

func countPositive(scores map[int64]float64) int {
	n := 0
	for _, s := range scores {
		if s > 0 {
			n++
		}
	}
	return n
}

// persist writes result to log_dir/weights_<epoch>_<ts>.json atomically
// (write-tmp + rename), the same pattern the pool-weight cache uses.
func (r *Runner) persist(epochVersion string, now time.Time, result EpochResult) error {
	if r.Settings.LogDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.Settings.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	name := fmt.Sprintf("weights_%s_%d.json", sanitizeEpoch(epochVersion), now.UnixNano())
	finalPath := filepath.Join(r.Settings.LogDir, name)
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal epoch result: %w", err)
	}
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func sanitizeEpoch(epoch string) string {
	replacer := strings.NewReplacer(":", "-", "/", "-", " ", "_")
	return replacer.Replace(epoch)
}
