package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidateFailsWithoutVerifierURL(t *testing.T) {
	s := Defaults()
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verifier_url")
}

func TestLoaderTOMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "validator.toml")
	contents := `
netuid = 42
verifier_url = "https://verifier.example/"
trader_rewards_pool_weight = 0.1

[pool_weights]
P1 = 0.5
P2 = 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	l := NewLoader()
	require.NoError(t, l.ApplyTOMLFile(path))
	s := l.Settings()

	assert.Equal(t, 42, s.Netuid)
	assert.Equal(t, "https://verifier.example/", s.VerifierURL)
	assert.InDelta(t, 0.1, s.TraderRewardsPoolWeight, 1e-9)
	assert.Equal(t, 0.5, s.PoolWeights["P1"])
}

func TestLoaderEnvOverridesParentVaultAddress(t *testing.T) {
	t.Setenv("PARENT_VAULT_ADDRESS", "0x0000000000000000000000000000000000000001,0x0000000000000000000000000000000000000002")
	l := NewLoader()
	l.ApplyEnv()
	s := l.Settings()
	require.Len(t, s.ParentVaultAddresses, 2)
}

func TestMissingTOMLFileIsNotAnError(t *testing.T) {
	l := NewLoader()
	require.NoError(t, l.ApplyTOMLFile(filepath.Join(t.TempDir(), "absent.toml")))
}
