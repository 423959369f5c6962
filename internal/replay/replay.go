// Package replay implements the legacy on-chain position path: instead
// of trusting the verifier's frozen roster, it reconstructs each
// owner's open locks directly from a lock-vault contract's event log.
// It is not wired into the runner or the daemon loop, whatever
// use_verified_amounts is set to; callers invoke ReplayOwner directly.
package replay

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const lockVaultEventsABI = `[
	{
		"anonymous": false,
		"name": "LockCreated",
		"type": "event",
		"inputs": [
			{"name": "lockId", "type": "bytes32", "indexed": true},
			{"name": "owner", "type": "address", "indexed": true},
			{"name": "poolId", "type": "bytes32", "indexed": false},
			{"name": "amount", "type": "uint256", "indexed": false},
			{"name": "lockDays", "type": "uint256", "indexed": false}
		]
	},
	{
		"anonymous": false,
		"name": "LockUpdated",
		"type": "event",
		"inputs": [
			{"name": "lockId", "type": "bytes32", "indexed": true},
			{"name": "deltaAmount", "type": "int256", "indexed": false},
			{"name": "newLockDays", "type": "uint256", "indexed": false}
		]
	},
	{
		"anonymous": false,
		"name": "LockReleased",
		"type": "event",
		"inputs": [
			{"name": "lockId", "type": "bytes32", "indexed": true},
			{"name": "amount", "type": "uint256", "indexed": false}
		]
	}
]`

var lockVaultABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(lockVaultEventsABI))
	if err != nil {
		panic(fmt.Sprintf("replay: invalid embedded ABI: %v", err))
	}
	lockVaultABI = parsed
}

var (
	lockCreatedTopic  = lockVaultABI.Events["LockCreated"].ID
	lockUpdatedTopic  = lockVaultABI.Events["LockUpdated"].ID
	lockReleasedTopic = lockVaultABI.Events["LockReleased"].ID
)

// LogFilterer is the ethclient.Client slice replay needs, narrowed so
// tests can supply an in-memory log set.
type LogFilterer interface {
	FilterLogs(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error)
}

// Position is one pool's replayed open lock for an owner.
type Position struct {
	PoolID   string
	Amount   *big.Int
	LockDays uint64
}

// LockID computes the deterministic lock identifier a vault contract
// derives from (owner, pool_id): keccak256(abi.encode(address,bytes32)).
func LockID(owner common.Address, poolID [32]byte) common.Hash {
	packed, err := abi.Arguments{
		{Type: mustType("address")},
		{Type: mustType("bytes32")},
	}.Pack(owner, poolID)
	if err != nil {
		// Both argument types are fixed-size and always pack
		// successfully; a failure here means the embedded ABI types
		// themselves are broken.
		panic(fmt.Sprintf("replay: pack lock id arguments: %v", err))
	}
	return crypto.Keccak256Hash(packed)
}

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("replay: invalid abi type %q: %v", name, err))
	}
	return t
}

// ReplayOwner reconstructs owner's currently-open positions in vault by
// replaying LockCreated/LockUpdated/LockReleased events up to atBlock.
func ReplayOwner(ctx context.Context, client LogFilterer, vault, owner common.Address, atBlock uint64) (map[string]Position, error) {
	toBlock := new(big.Int).SetUint64(atBlock)

	created, err := client.FilterLogs(ctx, goethereum.FilterQuery{
		Addresses: []common.Address{vault},
		Topics:    [][]common.Hash{{lockCreatedTopic}, {}, {common.BytesToHash(owner.Bytes())}},
		ToBlock:   toBlock,
	})
	if err != nil {
		return nil, fmt.Errorf("replay: filter LockCreated: %w", err)
	}
	if len(created) == 0 {
		return map[string]Position{}, nil
	}

	poolByLock := make(map[common.Hash]string, len(created))
	lockIDs := make([]common.Hash, 0, len(created))
	createdByLock := make(map[common.Hash]types.Log, len(created))
	for _, ev := range created {
		lockID := ev.Topics[1]
		poolID, _, _, err := decodeLockCreated(ev)
		if err != nil {
			return nil, err
		}
		poolByLock[lockID] = decodePoolID(poolID)
		lockIDs = append(lockIDs, lockID)
		createdByLock[lockID] = ev
	}

	results := make(map[string]Position, len(lockIDs))
	for _, lockID := range lockIDs {
		updated, err := client.FilterLogs(ctx, goethereum.FilterQuery{
			Addresses: []common.Address{vault},
			Topics:    [][]common.Hash{{lockUpdatedTopic}, {lockID}},
			ToBlock:   toBlock,
		})
		if err != nil {
			return nil, fmt.Errorf("replay: filter LockUpdated: %w", err)
		}
		released, err := client.FilterLogs(ctx, goethereum.FilterQuery{
			Addresses: []common.Address{vault},
			Topics:    [][]common.Hash{{lockReleasedTopic}, {lockID}},
			ToBlock:   toBlock,
		})
		if err != nil {
			return nil, fmt.Errorf("replay: filter LockReleased: %w", err)
		}

		all := append([]types.Log{createdByLock[lockID]}, updated...)
		all = append(all, released...)
		sort.Slice(all, func(i, j int) bool {
			if all[i].BlockNumber != all[j].BlockNumber {
				return all[i].BlockNumber < all[j].BlockNumber
			}
			return all[i].Index < all[j].Index
		})

		amount, lockDays, err := replayLock(all)
		if err != nil {
			return nil, err
		}
		if amount.Sign() > 0 {
			results[poolByLock[lockID]] = Position{
				PoolID:   poolByLock[lockID],
				Amount:   amount,
				LockDays: lockDays,
			}
		}
	}
	return results, nil
}

// replayLock folds one lock's ordered event stream into its current
// (amount, lock_days) state, mirroring the Created/Updated/Released
// state transitions a lock-vault contract applies on-chain.
func replayLock(events []types.Log) (*big.Int, uint64, error) {
	amount := new(big.Int)
	var lockDays uint64

	for _, ev := range events {
		switch ev.Topics[0] {
		case lockCreatedTopic:
			_, createdAmount, createdLockDays, err := decodeLockCreated(ev)
			if err != nil {
				return nil, 0, err
			}
			amount = createdAmount
			lockDays = createdLockDays.Uint64()
		case lockUpdatedTopic:
			deltaAmount, newLockDays, err := decodeLockUpdated(ev)
			if err != nil {
				return nil, 0, err
			}
			amount = new(big.Int).Add(amount, deltaAmount)
			if amount.Sign() < 0 {
				amount = new(big.Int)
			}
			if nd := newLockDays.Uint64(); nd > lockDays {
				lockDays = nd
			}
		case lockReleasedTopic:
			releasedAmount, err := decodeLockReleased(ev)
			if err != nil {
				return nil, 0, err
			}
			amount = new(big.Int).Sub(amount, releasedAmount)
			if amount.Sign() < 0 {
				amount = new(big.Int)
			}
		}
	}
	return amount, lockDays, nil
}

func decodeLockCreated(ev types.Log) (poolID [32]byte, amount, lockDays *big.Int, err error) {
	out, err := lockVaultABI.Unpack("LockCreated", ev.Data)
	if err != nil {
		return poolID, nil, nil, fmt.Errorf("replay: decode LockCreated: %w", err)
	}
	pid, ok := out[0].([32]byte)
	if !ok {
		return poolID, nil, nil, fmt.Errorf("replay: LockCreated: unexpected poolId type %T", out[0])
	}
	amt, ok := out[1].(*big.Int)
	if !ok {
		return poolID, nil, nil, fmt.Errorf("replay: LockCreated: unexpected amount type %T", out[1])
	}
	days, ok := out[2].(*big.Int)
	if !ok {
		return poolID, nil, nil, fmt.Errorf("replay: LockCreated: unexpected lockDays type %T", out[2])
	}
	return pid, amt, days, nil
}

func decodeLockUpdated(ev types.Log) (deltaAmount, newLockDays *big.Int, err error) {
	out, err := lockVaultABI.Unpack("LockUpdated", ev.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("replay: decode LockUpdated: %w", err)
	}
	delta, ok := out[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("replay: LockUpdated: unexpected deltaAmount type %T", out[0])
	}
	days, ok := out[1].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("replay: LockUpdated: unexpected newLockDays type %T", out[1])
	}
	return delta, days, nil
}

func decodeLockReleased(ev types.Log) (*big.Int, error) {
	out, err := lockVaultABI.Unpack("LockReleased", ev.Data)
	if err != nil {
		return nil, fmt.Errorf("replay: decode LockReleased: %w", err)
	}
	amt, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("replay: LockReleased: unexpected amount type %T", out[0])
	}
	return amt, nil
}

// decodePoolID renders a bytes32 pool identifier as text when it holds
// a null-padded ASCII name, falling back to its hex form otherwise.
func decodePoolID(raw [32]byte) string {
	trimmed := strings.TrimRight(string(raw[:]), "\x00")
	for _, r := range trimmed {
		if r < 0x20 || r > 0x7e {
			return common.Hash(raw).Hex()
		}
	}
	if trimmed == "" {
		return common.Hash(raw).Hex()
	}
	return trimmed
}
