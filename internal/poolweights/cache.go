package poolweights

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// cacheFile is the on-disk representation of the pool-weight cache:
// {weights, timestamp, cache_ttl_hours}. Field order is kept stable
// so snapshot-style tests remain meaningful.
type cacheFile struct {
	Weights       map[string]int64 `json:"weights"` // pool_id -> basis points
	Timestamp     time.Time        `json:"timestamp"`
	CacheTTLHours float64          `json:"cache_ttl_hours"`
}

// loadCache reads the cache file. A missing file is reported via the
// ok=false return rather than an error, since "no cache yet" is an
// expected steady state.
func loadCache(path string) (cacheFile, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cacheFile{}, false, nil
	}
	if err != nil {
		return cacheFile{}, false, fmt.Errorf("read pool weight cache: %w", err)
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return cacheFile{}, false, fmt.Errorf("parse pool weight cache: %w", err)
	}
	return cf, true, nil
}

// writeCacheAtomic persists cf to path via write-tmp-then-rename, so a
// crash mid-write never leaves a half-written cache file.
func writeCacheAtomic(path string, cf cacheFile) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pool weight cache: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".pool_weights_cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp cache file into place: %w", err)
	}
	return nil
}

// isFresh reports whether cf was written within ttl of now.
func (cf cacheFile) isFresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(cf.Timestamp) < ttl
}

// renormalizeBps converts a basis-point map into a probability
// distribution summing to 1.0 (within floating point tolerance).
func renormalizeBps(bps map[string]int64) map[string]float64 {
	var total int64
	for _, v := range bps {
		total += v
	}
	out := make(map[string]float64, len(bps))
	if total == 0 {
		return out
	}
	for k, v := range bps {
		out[k] = float64(v) / float64(total)
	}
	return out
}
