package config

import (
	"os"
	"path/filepath"
)

// defaultCacheDir returns the well-known per-user location for the
// pool-weight cache file: ~/.cartha_validator/pool_weights_cache.json.
func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cartha_validator"
	}
	return filepath.Join(home, ".cartha_validator")
}

// PoolWeightCachePath is the full path to the persisted pool-weight
// cache file within PoolWeightCacheDir.
func (s Settings) PoolWeightCachePath() string {
	return filepath.Join(s.PoolWeightCacheDir, "pool_weights_cache.json")
}
