// Package poolweights implements the pool-weight oracle: it queries
// each parent-vault contract over JSON-RPC, decodes the ABI response,
// caches the combined result for 24h, and falls back to an expired
// cache or a static table when live data is unavailable.
package poolweights

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/General-Tao-Ventures/cartha-validator/internal/errs"
	"github.com/General-Tao-Ventures/cartha-validator/internal/metrics"
	"github.com/General-Tao-Ventures/cartha-validator/internal/vault"
)

// RPCCaller is the slice of *ethclient.Client this package needs,
// narrowed to an interface so tests can fake eth_call without a
// network. *ethclient.Client satisfies it.
type RPCCaller interface {
	CallContract(ctx context.Context, call goethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Config bundles everything the oracle needs from Settings, kept
// narrow rather than importing the whole config package.
type Config struct {
	ParentVaultAddresses []common.Address
	VaultPoolTable       map[common.Address]string
	FallbackTable        map[string]float64 // settings.pool_weights
	CachePath            string
	CacheTTL             time.Duration
	PacingDelay          time.Duration
	MaxAttemptsPerVault  int // default 3
}

// Oracle computes the normalized pool-weight map.
type Oracle struct {
	caller RPCCaller
	cfg    Config
	clock  func() time.Time
	sleep  func(ctx context.Context, d time.Duration)
}

// New builds an Oracle. caller may be nil if every vault address list
// is empty (the oracle then relies entirely on cache/fallback).
func New(caller RPCCaller, cfg Config) *Oracle {
	if cfg.MaxAttemptsPerVault <= 0 {
		cfg.MaxAttemptsPerVault = 3
	}
	return &Oracle{
		caller: caller,
		cfg:    cfg,
		clock:  time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// GetPoolWeights runs the full fetch/cache/fallback algorithm.
func (o *Oracle) GetPoolWeights(ctx context.Context, forceRefresh bool) (map[string]float64, error) {
	if !forceRefresh {
		if cf, ok, err := loadCache(o.cfg.CachePath); err != nil {
			log.Warn("failed to read pool weight cache, will refetch", "error", err)
		} else if ok && cf.isFresh(o.clock(), o.cfg.CacheTTL) {
			metrics.PoolWeightCacheHits.Inc(1)
			return renormalizeBps(cf.Weights), nil
		}
	}

	combined, fetchErr := o.fetchAllVaults(ctx)
	if len(combined) > 0 {
		cf := cacheFile{
			Weights:       combined,
			Timestamp:     o.clock(),
			CacheTTLHours: o.cfg.CacheTTL.Hours(),
		}
		if err := writeCacheAtomic(o.cfg.CachePath, cf); err != nil {
			log.Error("failed to persist pool weight cache", "error", err)
		}
		return renormalizeBps(combined), nil
	}

	if fetchErr != nil {
		log.Warn("pool weight live fetch failed for all vaults", "error", fetchErr)
	}

	// Total failure: try an expired cache.
	if cf, ok, err := loadCache(o.cfg.CachePath); err == nil && ok && len(cf.Weights) > 0 {
		log.Warn("using expired pool weight cache as fallback")
		metrics.PoolWeightFallbacks.Inc(1)
		return renormalizeBps(cf.Weights), nil
	}

	// Fallback table: values > 1 are percentages.
	if len(o.cfg.FallbackTable) > 0 {
		log.Warn("using settings fallback pool weight table")
		metrics.PoolWeightFallbacks.Inc(1)
		return normalizeFallback(o.cfg.FallbackTable), nil
	}

	return nil, errs.ErrPoolWeightsUnavailable
}

// fetchAllVaults queries each parent vault sequentially, pacing between
// calls, and returns whatever combined pool_id -> bps map it managed to
// assemble (possibly partial).
func (o *Oracle) fetchAllVaults(ctx context.Context) (map[string]int64, error) {
	combined := make(map[string]int64)
	var lastErr error

	for i, addr := range o.cfg.ParentVaultAddresses {
		if i > 0 && o.cfg.PacingDelay > 0 {
			o.sleep(ctx, o.cfg.PacingDelay)
		}
		if ctx.Err() != nil {
			return combined, ctx.Err()
		}

		allocations, err := o.fetchVaultWithRetry(ctx, addr)
		if err != nil {
			log.Error("parent vault query failed, skipping", "vault", addr, "error", err)
			lastErr = err
			continue
		}

		for _, a := range allocations {
			poolID, known := o.cfg.VaultPoolTable[a.VaultAddress]
			if !known {
				log.Warn("unknown vault address in parent vault response, skipping", "vault", a.VaultAddress)
				continue
			}
			combined[poolID] += a.WeightBps.Int64()
		}
	}

	if len(combined) == 0 && lastErr == nil && len(o.cfg.ParentVaultAddresses) == 0 {
		lastErr = errors.New("no parent vault addresses configured")
	}
	return combined, lastErr
}

// fetchVaultWithRetry implements the per-vault retry policy: up to
// MaxAttemptsPerVault attempts, retrying only on HTTP 429 with
// exponential backoff; any other error aborts this vault immediately.
func (o *Oracle) fetchVaultWithRetry(ctx context.Context, addr common.Address) ([]vault.Allocation, error) {
	data, err := vault.CallData()
	if err != nil {
		return nil, fmt.Errorf("build call data: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttemptsPerVault; attempt++ {
		result, err := o.caller.CallContract(ctx, goethereum.CallMsg{To: &addr, Data: data}, nil)
		if err == nil {
			return vault.Decode(result)
		}

		lastErr = err
		if !isRateLimited(err) {
			return nil, err
		}
		if attempt == o.cfg.MaxAttemptsPerVault {
			break
		}
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("rate limited by RPC endpoint, backing off", "vault", addr, "attempt", attempt, "backoff", backoff)
		o.sleep(ctx, backoff)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("rate limited after %d attempts: %w", o.cfg.MaxAttemptsPerVault, lastErr)
}

func isRateLimited(err error) bool {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429
	}
	return false
}

// normalizeFallback converts settings.pool_weights into a probability
// distribution. Values > 1 are treated as percentages (divided by
// 100).
func normalizeFallback(table map[string]float64) map[string]float64 {
	scaled := make(map[string]float64, len(table))
	var total float64
	for k, v := range table {
		if v > 1 {
			v = v / 100
		}
		scaled[k] = v
		total += v
	}
	if total == 0 {
		return scaled
	}
	out := make(map[string]float64, len(scaled))
	for k, v := range scaled {
		out[k] = v / total
	}
	return out
}
