// Package chain defines the boundary to the subnet chain client: a
// contract-only external collaborator. This package never talks to a
// real node; production wiring supplies a concrete Client, and
// internal/chain/chaintest supplies a deterministic fake for tests.
package chain

import "context"

// Wallet identifies the validator's signing identity. The concrete
// signing material (coldkey/hotkey keypair) is owned by whatever
// production Client implementation is injected; this core only needs
// the hotkey string to address the validator.
type Wallet struct {
	Hotkey string
}

// Metagraph is the subset of on-chain subnet state the pipeline reads:
// the sub-epoch length, each UID's last weight-update block, the
// hotkey registered at each UID, and the subnet owner's hotkey (the
// burn channel target).
type Metagraph struct {
	Netuid      int
	Tempo       uint64
	LastUpdate  []uint64 // indexed by uid
	Hotkeys     []string // indexed by uid
	OwnerHotkey string
}

// UIDForHotkey returns the UID registered at hotkey within m, or -1 if
// not found.
func (m *Metagraph) UIDForHotkey(hotkey string) int64 {
	for uid, hk := range m.Hotkeys {
		if hk == hotkey {
			return int64(uid)
		}
	}
	return -1
}

// SetWeightsOptions mirrors the fixed submission options this pipeline
// always uses: neither inclusion nor finalization is awaited, so the
// publisher's own timeout is the only thing bounding the call.
type SetWeightsOptions struct {
	WaitForInclusion   bool
	WaitForFinalization bool
}

// DefaultSetWeightsOptions is always (false, false).
func DefaultSetWeightsOptions() SetWeightsOptions {
	return SetWeightsOptions{WaitForInclusion: false, WaitForFinalization: false}
}

// Client is everything the pipeline needs from the subnet chain. It is
// deliberately minimal: the chain client library itself is an external
// collaborator, out of scope for this core.
type Client interface {
	// CurrentBlock returns the chain's current block height.
	CurrentBlock(ctx context.Context) (uint64, error)

	// UIDForHotkey resolves hotkey's UID on netuid. A negative result
	// or an error means the hotkey is not registered.
	UIDForHotkey(ctx context.Context, hotkey string, netuid int) (int64, error)

	// Metagraph returns the current subnet state for netuid.
	Metagraph(ctx context.Context, netuid int) (*Metagraph, error)

	// SetWeights submits a weight vector. It must honor ctx's deadline;
	// the caller must never block past the configured
	// set_weights_timeout.
	SetWeights(ctx context.Context, wallet Wallet, netuid int, uids []uint16, weights []uint16, versionKey uint64, opts SetWeightsOptions) (success bool, message string, err error)
}
