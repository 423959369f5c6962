// Package roster retrieves the verified miner roster and the
// deregistered-hotkey set from the verifier HTTP service. The verifier
// is an external collaborator; this package is a thin, timeout-bounded
// net/http client, the way go-ethereum's own simple REST collaborators
// (external signer, faucet) are written rather than pulling in a REST
// framework for plain GET/JSON calls.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/General-Tao-Ventures/cartha-validator/internal/errs"
)

// Fetcher talks to one verifier deployment.
type Fetcher struct {
	baseURL string
	client  *http.Client
}

// New builds a Fetcher bound to baseURL that sends requests through
// httpClient, whose Timeout bounds each request.
func New(baseURL string, httpClient *http.Client) *Fetcher {
	return &Fetcher{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// FetchVerified retrieves the verified-miners roster for
// requestedEpoch. The verifier may instead serve the most recently
// frozen epoch; the effective epoch actually returned is reported back
// so the caller can reconcile.
func (f *Fetcher) FetchVerified(ctx context.Context, requestedEpoch, validatorHotkey string, netuid int, network string) (effectiveEpoch string, entries []VerifiedMinerEntry, err error) {
	q := url.Values{}
	q.Set("epoch", requestedEpoch)
	q.Set("validator_hotkey", validatorHotkey)
	if netuid >= 0 {
		q.Set("netuid", strconv.Itoa(netuid))
	}
	if network != "" {
		q.Set("network", network)
	}

	u := f.baseURL + "/v1/verified-miners?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", nil, fmt.Errorf("%w: build request: %v", errs.ErrVerifierUnavailable, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errs.ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return "", nil, fmt.Errorf("%w: verifier rejected validator_hotkey=%s", errs.ErrWhitelistRejected, validatorHotkey)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", nil, fmt.Errorf("%w: status %d: %s", errs.ErrVerifierUnavailable, resp.StatusCode, string(body))
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", nil, fmt.Errorf("%w: decode response: %v", errs.ErrVerifierUnavailable, err)
	}

	entries = make([]VerifiedMinerEntry, 0, len(raw))
	for i, r := range raw {
		var e VerifiedMinerEntry
		if err := json.Unmarshal(r, &e); err != nil {
			log.Warn("skipping malformed verified-miner entry", "index", i, "error", err)
			continue
		}
		for _, w := range e.ParseWarnings {
			log.Warn("verified-miner entry parse warning", "hotkey", e.Hotkey, "pool_id", e.PoolID, "warning", w)
		}
		entries = append(entries, e)
	}

	effectiveEpoch = reconcileEpochVersion(requestedEpoch, entries)
	return effectiveEpoch, entries, nil
}

// reconcileEpochVersion applies the fallback rule: if all returned
// entries share a different epoch_version than requested, the runner
// adopts the returned epoch. If mixed versions are returned, the
// modal value is chosen and a warning logged.
func reconcileEpochVersion(requested string, entries []VerifiedMinerEntry) string {
	if len(entries) == 0 {
		return requested
	}

	counts := make(map[string]int, 2)
	for _, e := range entries {
		counts[e.EpochVersion]++
	}
	if len(counts) == 1 {
		for v := range counts {
			if v != requested {
				log.Warn("verifier served a different epoch than requested", "requested", requested, "served", v)
			}
			return v
		}
	}

	modal, modalCount := "", -1
	for v, c := range counts {
		if c > modalCount || (c == modalCount && v < modal) {
			modal, modalCount = v, c
		}
	}
	log.Warn("verifier returned mixed epoch_version values, adopting modal value", "requested", requested, "adopted", modal, "distribution", counts)
	return modal
}

// FetchDeregistered retrieves the deregistered-hotkey set for
// effectiveEpoch. Failures here are non-fatal: the caller continues
// with an empty set.
func (f *Fetcher) FetchDeregistered(ctx context.Context, effectiveEpoch string) map[string]struct{} {
	q := url.Values{}
	q.Set("epoch_version", effectiveEpoch)
	u := f.baseURL + "/v1/deregistered-hotkeys?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		log.Warn("deregistration fetch failed", "error", fmt.Errorf("%w: %v", errs.ErrDeregistrationFetchFailed, err))
		return map[string]struct{}{}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn("deregistration fetch failed", "error", fmt.Errorf("%w: %v", errs.ErrDeregistrationFetchFailed, err))
		return map[string]struct{}{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("deregistration fetch failed", "status", resp.StatusCode)
		return map[string]struct{}{}
	}

	var payload DeregisteredResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Warn("deregistration fetch failed", "error", fmt.Errorf("%w: decode: %v", errs.ErrDeregistrationFetchFailed, err))
		return map[string]struct{}{}
	}

	set := make(map[string]struct{}, len(payload.Hotkeys))
	for _, hk := range payload.Hotkeys {
		set[hk] = struct{}{}
	}
	return set
}
