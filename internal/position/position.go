// Package position groups verified miner entries by resolved UID and
// applies expiry/deregistration filtering, producing the per-position
// records the scorer consumes.
package position

import (
	"context"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/General-Tao-Ventures/cartha-validator/internal/chain"
	"github.com/General-Tao-Ventures/cartha-validator/internal/roster"
)

// Record is one position surviving expiry/deregistration filtering.
// PoolID is also kept as its own field for display, alongside the
// identity key that embeds it.
type Record struct {
	Key      string // "{pool_id}#{index}", unique per declared position
	PoolID   string
	AmountRaw int64
	LockDays int64
}

// Counters is the subset of the pass's summary counters this stage
// can populate on its own.
type Counters struct {
	TotalRows    int
	MissingUID   int
	Failures     int
	Skipped      int
	ExpiredPools int
}

// Result is the processor's output: positions grouped by resolved UID,
// plus the hotkey owning each UID (for display), plus partial counters.
type Result struct {
	PositionsByUID map[int64][]Record
	HotkeyByUID    map[int64]string
	Counters       Counters
}

// Process groups entries by hotkey, resolves each hotkey's UID via
// chain, and applies expiry/deregistration filtering. now is threaded
// explicitly so tests are deterministic.
func Process(ctx context.Context, entries []roster.VerifiedMinerEntry, deregistered map[string]struct{}, client chain.Client, netuid int, now time.Time) Result {
	res := Result{
		PositionsByUID: map[int64][]Record{},
		HotkeyByUID:    map[int64]string{},
	}

	grouped := groupByHotkey(entries)
	res.Counters.TotalRows = len(entries)

	for hotkey, hotkeyEntries := range grouped {
		uid, err := client.UIDForHotkey(ctx, hotkey, netuid)
		if err != nil {
			log.Warn("uid resolution failed", "hotkey", hotkey, "error", err)
			res.Counters.Failures++
			continue
		}
		if uid < 0 {
			log.Warn("hotkey not registered, skipping", "hotkey", hotkey)
			res.Counters.MissingUID++
			res.Counters.Skipped++
			continue
		}

		res.HotkeyByUID[uid] = hotkey

		if _, isDeregistered := deregistered[hotkey]; isDeregistered {
			res.Counters.Skipped += len(hotkeyEntries)
			res.Counters.ExpiredPools += len(hotkeyEntries)
			// A deregistered miner still gets an explicit zero-score
			// entry: ensure the UID key exists with no positions.
			if _, ok := res.PositionsByUID[uid]; !ok {
				res.PositionsByUID[uid] = nil
			}
			continue
		}

		for i, e := range hotkeyEntries {
			if e.DeregisteredAt != nil && !e.DeregisteredAt.After(now) {
				res.Counters.ExpiredPools++
				continue
			}
			if e.ExpiresAt != nil && e.ExpiresAt.Before(now) {
				res.Counters.ExpiredPools++
				continue
			}
			res.PositionsByUID[uid] = append(res.PositionsByUID[uid], Record{
				Key:       recordKey(e.PoolID, i),
				PoolID:    e.PoolID,
				AmountRaw: e.AmountRaw,
				LockDays:  e.LockDays,
			})
		}
	}

	return res
}

func groupByHotkey(entries []roster.VerifiedMinerEntry) map[string][]roster.VerifiedMinerEntry {
	grouped := make(map[string][]roster.VerifiedMinerEntry)
	for _, e := range entries {
		grouped[e.Hotkey] = append(grouped[e.Hotkey], e)
	}
	return grouped
}

func recordKey(poolID string, index int) string {
	return poolID + "#" + strconv.Itoa(index)
}
