// Package daemon runs the validator's single-threaded poll loop: a
// BOOT/DETECT/WAIT state machine that decides, every tick, whether a
// new weekly epoch has started or a sub-epoch tempo refresh is due.
// There are no background workers; the only concurrency is the
// bounded, cancellable submit inside internal/publisher.
package daemon

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/General-Tao-Ventures/cartha-validator/internal/chain"
	"github.com/General-Tao-Ventures/cartha-validator/internal/config"
	"github.com/General-Tao-Ventures/cartha-validator/internal/epoch"
	"github.com/General-Tao-Ventures/cartha-validator/internal/runner"
)

type state int

const (
	stateBoot state = iota
	stateDetect
	stateWait
)

// Daemon holds everything the loop needs across ticks.
type Daemon struct {
	Runner   *runner.Runner
	Chain    chain.Client
	Settings config.Settings

	// Now and Sleep are overridable for deterministic tests; Sleep must
	// return promptly when ctx is canceled.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration)

	lastWeeklyEpochVersion string
	lastPublishBlock       uint64
	lastMetagraphSyncBlock uint64
	tempo                  uint64
	validatorUID           int64
	metagraph              *chain.Metagraph
}

// New builds a Daemon with production Now/Sleep.
func New(r *runner.Runner, chainClient chain.Client, settings config.Settings) *Daemon {
	return &Daemon{
		Runner:   r,
		Chain:    chainClient,
		Settings: settings,
		Now:      time.Now,
		Sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run drives the state machine until ctx is canceled. The caller is
// responsible for arranging ctx's cancellation on SIGINT/SIGTERM,
// typically via signal.NotifyContext.
func (d *Daemon) Run(ctx context.Context) error {
	st := stateBoot
	for {
		if ctx.Err() != nil {
			log.Info("daemon loop stopping on cancellation")
			return nil
		}

		var err error
		switch st {
		case stateBoot:
			err = d.boot(ctx)
			st = stateDetect
		case stateDetect:
			st, err = d.detect(ctx)
		case stateWait:
			st, err = d.wait(ctx)
		}

		if err != nil {
			log.Error("daemon loop iteration failed, recovering", "state", st, "error", err)
			d.Sleep(ctx, d.Settings.PollInterval)
			st = stateDetect
		}
	}
}

func (d *Daemon) boot(ctx context.Context) error {
	uid, err := d.Chain.UIDForHotkey(ctx, d.Settings.ValidatorHotkey, d.Settings.Netuid)
	if err != nil {
		return err
	}
	d.validatorUID = uid

	mg, err := d.Chain.Metagraph(ctx, d.Settings.Netuid)
	if err != nil {
		return err
	}
	d.metagraph = mg
	d.tempo = mg.Tempo
	if d.tempo == 0 {
		d.tempo = d.Settings.DefaultTempo
	}

	block, err := d.Chain.CurrentBlock(ctx)
	if err != nil {
		return err
	}
	d.lastMetagraphSyncBlock = block
	log.Info("daemon boot complete", "validator_uid", d.validatorUID, "tempo", d.tempo)
	return nil
}

func (d *Daemon) detect(ctx context.Context) (state, error) {
	now := d.Now()
	weeklyVersion := epoch.WeeklyVersion(now)
	if weeklyVersion == d.lastWeeklyEpochVersion {
		return stateWait, nil
	}

	log.Info("new weekly epoch detected", "epoch_version", weeklyVersion)
	if _, err := d.Runner.RunEpoch(ctx, weeklyVersion, true); err != nil {
		return stateWait, err
	}
	d.lastWeeklyEpochVersion = weeklyVersion

	block, err := d.Chain.CurrentBlock(ctx)
	if err != nil {
		return stateWait, err
	}
	d.lastPublishBlock = block
	return stateWait, nil
}

func (d *Daemon) wait(ctx context.Context) (state, error) {
	currentBlock, err := d.Chain.CurrentBlock(ctx)
	if err != nil {
		return stateWait, err
	}

	if currentBlock-d.lastMetagraphSyncBlock >= d.Settings.MetagraphSyncInterval {
		mg, err := d.Chain.Metagraph(ctx, d.Settings.Netuid)
		if err != nil {
			return stateWait, err
		}
		d.metagraph = mg
		if mg.Tempo > 0 {
			d.tempo = mg.Tempo
		}
		d.lastMetagraphSyncBlock = currentBlock
		log.Info("metagraph resynced", "current_block", currentBlock, "tempo", d.tempo)
	}

	blocksSinceUpdate := d.blocksSinceValidatorUpdate(currentBlock)
	if blocksSinceUpdate >= d.tempo {
		log.Info("tempo elapsed, running sub-epoch refresh", "blocks_since_update", blocksSinceUpdate, "tempo", d.tempo)
		if _, err := d.Runner.RunEpoch(ctx, d.lastWeeklyEpochVersion, true); err != nil {
			return stateWait, err
		}
		d.lastPublishBlock = currentBlock
		return stateWait, nil
	}

	d.Sleep(ctx, d.Settings.PollInterval)
	return stateDetect, nil
}

func (d *Daemon) blocksSinceValidatorUpdate(currentBlock uint64) uint64 {
	if d.metagraph != nil && d.validatorUID >= 0 && int(d.validatorUID) < len(d.metagraph.LastUpdate) {
		last := d.metagraph.LastUpdate[d.validatorUID]
		if currentBlock < last {
			return 0
		}
		return currentBlock - last
	}
	if currentBlock < d.lastPublishBlock {
		return 0
	}
	return currentBlock - d.lastPublishBlock
}
