// Package vault holds the ABI binding for the parent-vault contract's
// calculateTargetAllocations() function: a function with no inputs
// returning (address[] vaults, uint256[] targetWeightBps).
//
// Rather than hand-decoding the head-offset/length-prefixed ABI layout
// the contract returns, this package leans on accounts/abi — the
// return layout is exactly what abi.Unpack produces.
package vault

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const calculateTargetAllocationsABI = `[
	{
		"inputs": [],
		"name": "calculateTargetAllocations",
		"outputs": [
			{"internalType": "address[]", "name": "", "type": "address[]"},
			{"internalType": "uint256[]", "name": "", "type": "uint256[]"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

const methodName = "calculateTargetAllocations"

var parentVaultABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(calculateTargetAllocationsABI))
	if err != nil {
		panic(fmt.Sprintf("vault: invalid embedded ABI: %v", err))
	}
	parentVaultABI = parsed
}

// CallData returns the eth_call payload for calculateTargetAllocations,
// i.e. the 4-byte selector with no arguments appended.
func CallData() ([]byte, error) {
	return parentVaultABI.Pack(methodName)
}

// Allocation is one (pool vault address, target weight in basis points)
// pair returned by a parent vault.
type Allocation struct {
	VaultAddress common.Address
	WeightBps    *big.Int
}

// Decode ABI-decodes an eth_call return value into the parallel
// (address[], uint256[]) arrays and zips them into Allocations.
func Decode(data []byte) ([]Allocation, error) {
	out, err := parentVaultABI.Unpack(methodName, data)
	if err != nil {
		return nil, fmt.Errorf("vault: decode calculateTargetAllocations: %w", err)
	}
	if len(out) != 2 {
		return nil, fmt.Errorf("vault: expected 2 return values, got %d", len(out))
	}
	addresses, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("vault: unexpected type for vault addresses: %T", out[0])
	}
	weights, ok := out[1].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("vault: unexpected type for target weights: %T", out[1])
	}
	if len(addresses) != len(weights) {
		return nil, fmt.Errorf("vault: mismatched array lengths: %d addresses, %d weights", len(addresses), len(weights))
	}

	allocations := make([]Allocation, len(addresses))
	for i := range addresses {
		allocations[i] = Allocation{VaultAddress: addresses[i], WeightBps: weights[i]}
	}
	return allocations, nil
}

// EncodeForTest ABI-encodes allocations the way a parent vault contract
// would, for use by test doubles that simulate eth_call responses
// without a real node.
func EncodeForTest(allocations []Allocation) ([]byte, error) {
	addresses := make([]common.Address, len(allocations))
	weights := make([]*big.Int, len(allocations))
	for i, a := range allocations {
		addresses[i] = a.VaultAddress
		weights[i] = a.WeightBps
	}
	return parentVaultABI.Methods[methodName].Outputs.Pack(addresses, weights)
}
