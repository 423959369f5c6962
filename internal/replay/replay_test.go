package replay

import (
	"context"
	"math/big"
	"testing"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	vault  = common.HexToAddress("0x00000000000000000000000000000000000001")
	owner  = common.HexToAddress("0x00000000000000000000000000000000000002")
	other  = common.HexToAddress("0x00000000000000000000000000000000000003")
	lockID = func(poolID [32]byte) common.Hash { return LockID(owner, poolID) }
)

func poolIDBytes(s string) [32]byte {
	var b [32]byte
	copy(b[:], s)
	return b
}

// fakeFilterer serves FilterLogs against an in-memory log set, matching
// on address and the non-empty topic positions exactly like a real
// filter node would.
type fakeFilterer struct {
	logs []types.Log
}

func (f *fakeFilterer) FilterLogs(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error) {
	var out []types.Log
	for _, l := range f.logs {
		if !addressMatches(q.Addresses, l.Address) {
			continue
		}
		if !topicsMatch(q.Topics, l.Topics) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func addressMatches(want []common.Address, got common.Address) bool {
	if len(want) == 0 {
		return true
	}
	for _, a := range want {
		if a == got {
			return true
		}
	}
	return false
}

func topicsMatch(want [][]common.Hash, got []common.Hash) bool {
	for i, options := range want {
		if len(options) == 0 {
			continue
		}
		if i >= len(got) {
			return false
		}
		matched := false
		for _, o := range options {
			if o == got[i] {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func TestLockIDDeterministic(t *testing.T) {
	poolA := poolIDBytes("PA")
	poolB := poolIDBytes("PB")

	assert.Equal(t, LockID(owner, poolA), LockID(owner, poolA))
	assert.NotEqual(t, LockID(owner, poolA), LockID(owner, poolB))
	assert.NotEqual(t, LockID(owner, poolA), LockID(other, poolA))
}

func newCreatedLog(blockNumber uint64, index uint, lockIDHash common.Hash, ownerAddr common.Address, poolID [32]byte, amount, lockDays int64) types.Log {
	return types.Log{
		Address:     vault,
		Topics:      []common.Hash{lockCreatedTopic, lockIDHash, common.BytesToHash(ownerAddr.Bytes())},
		Data:        mustPack("LockCreated", poolID, big.NewInt(amount), big.NewInt(lockDays)),
		BlockNumber: blockNumber,
		Index:       index,
	}
}

func newUpdatedLog(blockNumber uint64, index uint, lockIDHash common.Hash, delta, newLockDays int64) types.Log {
	return types.Log{
		Address:     vault,
		Topics:      []common.Hash{lockUpdatedTopic, lockIDHash},
		Data:        mustPack("LockUpdated", big.NewInt(delta), big.NewInt(newLockDays)),
		BlockNumber: blockNumber,
		Index:       index,
	}
}

func newReleasedLog(blockNumber uint64, index uint, lockIDHash common.Hash, amount int64) types.Log {
	return types.Log{
		Address:     vault,
		Topics:      []common.Hash{lockReleasedTopic, lockIDHash},
		Data:        mustPack("LockReleased", big.NewInt(amount)),
		BlockNumber: blockNumber,
		Index:       index,
	}
}

func mustPack(name string, args ...interface{}) []byte {
	data, err := lockVaultABI.Events[name].Inputs.NonIndexed().Pack(args...)
	if err != nil {
		panic(err)
	}
	return data
}

func TestReplayOwnerFoldsUpdateAndRelease(t *testing.T) {
	poolOpen := poolIDBytes("OPEN")
	poolClosed := poolIDBytes("CLOSED")

	openLockID := lockID(poolOpen)
	closedLockID := lockID(poolClosed)

	f := &fakeFilterer{logs: []types.Log{
		newCreatedLog(1, 0, openLockID, owner, poolOpen, 100, 30),
		newUpdatedLog(2, 0, openLockID, 50, 60),

		newCreatedLog(1, 1, closedLockID, owner, poolClosed, 200, 10),
		newReleasedLog(3, 0, closedLockID, 200),
	}}

	positions, err := ReplayOwner(context.Background(), f, vault, owner, 100)
	require.NoError(t, err)

	require.Len(t, positions, 1)
	pos, ok := positions["OPEN"]
	require.True(t, ok)
	assert.Equal(t, big.NewInt(150), pos.Amount)
	assert.Equal(t, uint64(60), pos.LockDays)

	_, stillOpen := positions["CLOSED"]
	assert.False(t, stillOpen, "fully released lock must not appear in the result")
}

func TestReplayOwnerIgnoresOtherOwners(t *testing.T) {
	poolID := poolIDBytes("PA")
	f := &fakeFilterer{logs: []types.Log{
		newCreatedLog(1, 0, LockID(other, poolID), other, poolID, 100, 30),
	}}

	positions, err := ReplayOwner(context.Background(), f, vault, owner, 100)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestReplayLockClampsNegativeAmountToZero(t *testing.T) {
	poolID := poolIDBytes("PA")
	lid := lockID(poolID)
	events := []types.Log{
		newCreatedLog(1, 0, lid, owner, poolID, 10, 5),
		newUpdatedLog(2, 0, lid, -100, 5),
	}
	amount, lockDays, err := replayLock(events)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), amount)
	assert.Equal(t, uint64(5), lockDays)
}

func TestDecodePoolIDFallsBackToHex(t *testing.T) {
	var raw [32]byte
	raw[0] = 0xff
	got := decodePoolID(raw)
	assert.Contains(t, got, "0x")
}

func TestDecodePoolIDTrimsASCIIName(t *testing.T) {
	got := decodePoolID(poolIDBytes("USDC-POOL"))
	assert.Equal(t, "USDC-POOL", got)
}
