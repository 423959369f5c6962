// Package errs collects the named failure kinds the pipeline can
// produce, so callers can branch with errors.Is/errors.As instead of
// string matching.
package errs

import "errors"

// Fatal, pass-aborting errors.
var (
	ErrConfigurationMissing  = errors.New("configuration missing")
	ErrWhitelistRejected     = errors.New("whitelist rejected by verifier")
	ErrVerifierUnavailable   = errors.New("verifier unavailable")
	ErrPoolWeightsUnavailable = errors.New("pool weights unavailable")
	ErrSetWeightsTimeout     = errors.New("set_weights timed out")
)

// Non-fatal, per-entry or per-tick errors. Kept distinct so the summary
// counters and daemon loop can recognize them without inspecting text.
var (
	ErrDeregistrationFetchFailed = errors.New("deregistration fetch failed")
	ErrUidResolutionFailed       = errors.New("uid resolution failed")
	ErrMetagraphSyncFailed       = errors.New("metagraph sync failed")
)

// SubmitCooldownError is benign: the caller gets the composed weights
// back without submission and without treating the pass as failed.
type SubmitCooldownError struct {
	Message string
}

func (e *SubmitCooldownError) Error() string { return e.Message }

// SetWeightsFailedError wraps any non-success, non-cooldown response
// from the chain client's set_weights call.
type SetWeightsFailedError struct {
	Message string
}

func (e *SetWeightsFailedError) Error() string {
	return "set_weights failed: " + e.Message
}
