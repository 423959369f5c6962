// Package params holds protocol-level constants for the validator: the
// semantic version and its chain-facing encoding, and fixed defaults
// that do not belong to any single pipeline stage.
package params

import "fmt"

// Semantic version of this validator build. Mirrors the MAJOR.MINOR.PATCH
// scheme the daemon encodes into every weight submission.
const (
	VersionMajor = 1
	VersionMinor = 4
	VersionPatch = 2
)

// Version returns the "MAJOR.MINOR.PATCH" string.
func Version() string {
	return fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
}

// SpecVersion encodes MAJOR.MINOR.PATCH into the integer version_key
// submitted alongside every weight vector, per the scheme
// 1000*major + 10*minor + patch.
func SpecVersion() uint64 {
	return EncodeSpecVersion(VersionMajor, VersionMinor, VersionPatch)
}

// EncodeSpecVersion applies the fixed encoding to an arbitrary semantic
// version triple, exported so tests and the replay path can exercise it
// without recompiling against the build-time constants.
func EncodeSpecVersion(major, minor, patch uint64) uint64 {
	return 1000*major + 10*minor + patch
}

const (
	// DefaultTraderRewardsPoolWeight is the fixed share reserved for the
	// trader-rewards identity when Settings does not override it.
	DefaultTraderRewardsPoolWeight = 0.243902

	// DefaultPoolWeightCacheTTLHours is the cache lifetime for oracle
	// results before a fresh on-chain fetch is attempted.
	DefaultPoolWeightCacheTTLHours = 24

	// DefaultParentVaultPacingDelaySeconds separates sequential parent
	// vault RPC calls to avoid provider rate limiting.
	DefaultParentVaultPacingDelaySeconds = 2

	// WeightSumTolerance bounds the acceptable floating-point drift of
	// Σ weights away from its expected total: 1.0, the trader share alone,
	// or 0.0 when nothing is allocatable.
	WeightSumTolerance = 1e-6
)
