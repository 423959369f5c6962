package roster

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VerifiedMinerEntry is one open miner position for the epoch.
// Entries are immutable once frozen.
type VerifiedMinerEntry struct {
	Hotkey         string
	SlotUID        string
	PoolID         string
	AmountRaw      int64 // raw token base units
	LockDays       int64
	ExpiresAt      *time.Time
	DeregisteredAt *time.Time
	EpochVersion   string

	// ParseWarnings accumulates non-fatal issues found while decoding
	// this entry (e.g. a malformed timestamp field), so the roster
	// fetcher can log them without re-parsing.
	ParseWarnings []string
}

// aliasEnvelope captures every field-name alias the verifier has been
// observed to use across versions: inputs arrive as loosely typed
// JSON with alternate field names.
type aliasEnvelope struct {
	Hotkey  *string `json:"hotkey"`
	Hotkey2 *string `json:"minerHotkey"`

	SlotUID  *string `json:"slot_uid"`
	SlotUID2 *string `json:"slotUid"`

	PoolID  *string `json:"pool_id"`
	PoolID2 *string `json:"poolId"`

	Amount   json.Number `json:"amount"`
	Amount2  json.Number `json:"amount_raw"`
	Amount3  json.Number `json:"amountRaw"`

	LockDays  json.Number `json:"lock_days"`
	LockDays2 json.Number `json:"lockDays"`

	ExpiresAt  *string `json:"expires_at"`
	ExpiresAt2 *string `json:"expiresAt"`

	DeregisteredAt  *string `json:"deregistered_at"`
	DeregisteredAt2 *string `json:"deregisteredAt"`

	EpochVersion  *string `json:"epoch_version"`
	EpochVersion2 *string `json:"epochVersion"`
}

func firstNonEmptyStr(vals ...*string) string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func firstNumber(vals ...json.Number) json.Number {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// UnmarshalJSON tries every known alias for each field and fails fast
// with a field-level error when a required field is entirely absent,
// rather than drifting into untyped accessors downstream.
func (e *VerifiedMinerEntry) UnmarshalJSON(data []byte) error {
	var env aliasEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("verified miner entry: %w", err)
	}

	hotkey := firstNonEmptyStr(env.Hotkey, env.Hotkey2)
	if hotkey == "" {
		return fmt.Errorf("verified miner entry: missing field hotkey")
	}
	poolID := firstNonEmptyStr(env.PoolID, env.PoolID2)
	if poolID == "" {
		return fmt.Errorf("verified miner entry: missing field pool_id")
	}
	epochVersion := firstNonEmptyStr(env.EpochVersion, env.EpochVersion2)
	if epochVersion == "" {
		return fmt.Errorf("verified miner entry: missing field epoch_version")
	}

	amountStr := firstNumber(env.Amount, env.Amount2, env.Amount3)
	if amountStr == "" {
		return fmt.Errorf("verified miner entry: missing field amount")
	}
	amount, err := strconv.ParseInt(string(amountStr), 10, 64)
	if err != nil {
		return fmt.Errorf("verified miner entry: field amount: %w", err)
	}

	lockDaysStr := firstNumber(env.LockDays, env.LockDays2)
	var lockDays int64
	if lockDaysStr != "" {
		lockDays, err = strconv.ParseInt(string(lockDaysStr), 10, 64)
		if err != nil {
			return fmt.Errorf("verified miner entry: field lock_days: %w", err)
		}
	}

	e.Hotkey = hotkey
	e.SlotUID = firstNonEmptyStr(env.SlotUID, env.SlotUID2)
	e.PoolID = poolID
	e.AmountRaw = amount
	e.LockDays = lockDays
	e.EpochVersion = epochVersion

	if raw := firstNonEmptyStr(env.ExpiresAt, env.ExpiresAt2); raw != "" {
		if t := parseFlexibleTimestamp(raw); t != nil {
			e.ExpiresAt = t
		} else {
			e.ParseWarnings = append(e.ParseWarnings, fmt.Sprintf("malformed expires_at %q, position kept without expiry", raw))
		}
	}
	if raw := firstNonEmptyStr(env.DeregisteredAt, env.DeregisteredAt2); raw != "" {
		if t := parseFlexibleTimestamp(raw); t != nil {
			e.DeregisteredAt = t
		} else {
			e.ParseWarnings = append(e.ParseWarnings, fmt.Sprintf("malformed deregistered_at %q, position kept without deregistration timestamp", raw))
		}
	}
	return nil
}

// parseFlexibleTimestamp accepts ISO8601 with or without a trailing Z;
// a naive (no zone) timestamp is assumed UTC. Malformed or empty
// strings return nil rather than erroring: a malformed timestamp
// logs a warning but the position is kept, it is not silently
// discarded.
func parseFlexibleTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return ptrTime(t.UTC())
		}
	}
	// Trailing-Z-less variant with fractional seconds and an explicit
	// offset still round-trips through RFC3339; anything else is
	// unparseable and the caller is responsible for warning and
	// keeping the position.
	if !strings.HasSuffix(raw, "Z") {
		if t, err := time.Parse(time.RFC3339, raw+"Z"); err == nil {
			return ptrTime(t.UTC())
		}
	}
	return nil
}

func ptrTime(t time.Time) *time.Time { return &t }

// DeregisteredResponse is the verifier's deregistration-list payload.
type DeregisteredResponse struct {
	Hotkeys []string `json:"hotkeys"`
}
