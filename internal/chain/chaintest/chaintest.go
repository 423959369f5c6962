// Package chaintest provides a deterministic, in-memory chain.Client
// fake for tests across the pipeline. It never touches a network.
package chaintest

import (
	"context"
	"errors"
	"sync"

	"github.com/General-Tao-Ventures/cartha-validator/internal/chain"
)

// Fake implements chain.Client entirely in memory.
type Fake struct {
	mu sync.Mutex

	block     uint64
	hotkeys   map[string]int64 // hotkey -> uid
	metagraph *chain.Metagraph

	// SetWeightsFunc, if set, is invoked instead of the default
	// always-succeeds behavior, letting tests simulate cooldown
	// rejection, timeouts (via a context-aware func), and failures.
	SetWeightsFunc func(ctx context.Context, wallet chain.Wallet, netuid int, uids []uint16, weights []uint16, versionKey uint64, opts chain.SetWeightsOptions) (bool, string, error)

	// Submissions records every call for assertions.
	Submissions []Submission
}

// Submission records one SetWeights invocation.
type Submission struct {
	Netuid     int
	UIDs       []uint16
	Weights    []uint16
	VersionKey uint64
}

// New builds a Fake with the given current block and hotkey->uid map.
func New(block uint64, hotkeys map[string]int64) *Fake {
	return &Fake{block: block, hotkeys: hotkeys}
}

// SetBlock updates the simulated current block height.
func (f *Fake) SetBlock(b uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = b
}

// SetMetagraph installs the metagraph returned by Metagraph.
func (f *Fake) SetMetagraph(m *chain.Metagraph) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metagraph = m
}

func (f *Fake) CurrentBlock(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.block, nil
}

func (f *Fake) UIDForHotkey(ctx context.Context, hotkey string, netuid int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid, ok := f.hotkeys[hotkey]
	if !ok {
		return -1, nil
	}
	return uid, nil
}

func (f *Fake) Metagraph(ctx context.Context, netuid int) (*chain.Metagraph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metagraph == nil {
		return nil, errors.New("chaintest: no metagraph installed")
	}
	cp := *f.metagraph
	return &cp, nil
}

func (f *Fake) SetWeights(ctx context.Context, wallet chain.Wallet, netuid int, uids []uint16, weights []uint16, versionKey uint64, opts chain.SetWeightsOptions) (bool, string, error) {
	f.mu.Lock()
	f.Submissions = append(f.Submissions, Submission{Netuid: netuid, UIDs: uids, Weights: weights, VersionKey: versionKey})
	fn := f.SetWeightsFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, wallet, netuid, uids, weights, versionKey, opts)
	}
	return true, "success", nil
}
