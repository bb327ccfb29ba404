package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metapool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultLedgerPath, cfg.LedgerPath)
	assert.Equal(t, DefaultKeysDir, cfg.KeysDir)
	assert.True(t, cfg.StakeActivationCheck)
	assert.Equal(t, DefaultValidatorListCapacity, cfg.ValidatorListCapacity)
	assert.Equal(t, DefaultMaxAccountsToUpdate, cfg.MaxAccountsToUpdate)
	assert.Equal(t, DefaultOpenRetries, cfg.OpenRetries)

	_, ok, err := cfg.ProgramKey()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadFileAndEnv(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	path := writeConfig(t, `
program_id: `+programID.String()+`
ledger_path: /tmp/ledger
stake_activation_check: false
validator_list_capacity: 8
min_stake_balance: 5000
metrics_addr: "127.0.0.1:9100"
`)
	t.Setenv("METAPOOL_MAX_ACCOUNTS_TO_UPDATE", "2")
	t.Setenv("METAPOOL_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ledger", cfg.LedgerPath)
	assert.False(t, cfg.StakeActivationCheck)
	assert.Equal(t, 8, cfg.ValidatorListCapacity)
	assert.Equal(t, uint64(5000), cfg.MinStakeBalance)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.Equal(t, 2, cfg.MaxAccountsToUpdate)
	assert.Equal(t, "debug", cfg.LogLevel)

	key, ok, err := cfg.ProgramKey()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, programID, key)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad program id", "program_id: not-a-key\n"},
		{"bad log level", "log_level: loud\n"},
		{"zero capacity", "validator_list_capacity: 0\n"},
		{"zero update batch", "max_accounts_to_update: 0\n"},
		{"negative retries", "open_retries: -1\n"},
		{"bad metrics addr", "metrics_addr: localhost\n"},
		{"empty ledger path", "ledger_path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
