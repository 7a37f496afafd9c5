package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
engine:
  interval_seconds: 15
  workers: 8
  escrow_path: escrow-main
ledger:
  base_url: http://ledger:8080
signer:
  base_url: http://signer:9090
chain:
  rpc_url: http://node:8545
  chain_id: 8453
  token_address: "0x0000000000000000000000000000000000000001"
oracle:
  base_url: http://oracle:7070
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.PollInterval())
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.Equal(t, "escrow-main", cfg.Engine.EscrowPath)
	assert.Equal(t, int64(8453), cfg.Chain.ChainID)

	// defaults
	assert.Equal(t, "wager-evm", cfg.Engine.PathNamespace)
	assert.Equal(t, "escrow", cfg.Engine.EscrowOwner)
	assert.Equal(t, 1, cfg.Signer.KeyVersion)
	assert.Equal(t, 20*time.Second, cfg.OracleTimeout())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(writeConfig(t, "engine:\n  workers: 2\n"))
	assert.ErrorContains(t, err, "required")
}

func TestLoadTelegramNeedsToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	_, err := Load(writeConfig(t, validYAML+"telegram:\n  enabled: true\n  chat_id: 123\n"))
	assert.ErrorContains(t, err, "TELEGRAM_TOKEN")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SIGNER_API_KEY", "sekret")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sekret", cfg.Signer.APIKey)
}
