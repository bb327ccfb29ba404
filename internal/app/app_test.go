package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/client"
	"github.com/rovshanmuradov/metapool/internal/config"
	"github.com/rovshanmuradov/metapool/internal/ledger"
	"github.com/rovshanmuradov/metapool/internal/stakepool"
	"github.com/rovshanmuradov/metapool/internal/utils/logger"
	"github.com/rovshanmuradov/metapool/internal/wallet"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		LedgerPath:            filepath.Join(dir, "ledger"),
		KeysDir:               filepath.Join(dir, "keys"),
		LogLevel:              "debug",
		StakeActivationCheck:  true,
		ValidatorListCapacity: 4,
		MaxAccountsToUpdate:   5,
		OpenRetries:           1,
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error"})
	require.NoError(t, err)
	return log
}

func TestRunnerRequiresProgramID(t *testing.T) {
	r := NewRunner(testConfig(t), testLogger(t))
	err := r.Open(context.Background())
	assert.ErrorIs(t, err, ErrNoProgramID)
}

func TestRunnerCreatesPool(t *testing.T) {
	cfg := testConfig(t)
	keys := wallet.Generate(wallet.Payer, wallet.Owner, wallet.Program)
	require.NoError(t, wallet.SaveKeyring(wallet.KeyringPath(cfg.KeysDir), keys))

	r := NewRunner(cfg, testLogger(t))
	require.NoError(t, r.Open(context.Background()))
	assert.Equal(t, keys[wallet.Program].PublicKey, r.ProgramID())

	bank := r.Bank()
	rent := ledger.DefaultRent()
	require.NoError(t, bank.Genesis(ledger.Clock{}, rent))
	payer, err := r.Key(wallet.Payer)
	require.NoError(t, err)
	owner, err := r.Key(wallet.Owner)
	require.NoError(t, err)
	require.NoError(t, bank.Airdrop(payer.PublicKey(), 10*client.LamportsPerSOL))

	poolKeys := client.NewPoolKeys()
	ixs, err := client.CreatePoolInstructions(r.ProgramID(), rent, payer.PublicKey(), owner.PublicKey(),
		poolKeys, stakepool.Fee{Numerator: 1, Denominator: 50}, cfg.ValidatorListCapacity)
	require.NoError(t, err)
	_, err = bank.Send(context.Background(), payer, ixs, append(poolKeys.Signers(), owner)...)
	require.NoError(t, err)

	pools, order, err := r.Pools()
	require.NoError(t, err)
	require.Equal(t, []solana.PublicKey{poolKeys.Pool.PublicKey()}, order)
	assert.Equal(t, owner.PublicKey(), pools[order[0]].Owner)
	require.NoError(t, r.PublishPoolTotals())
	require.NoError(t, r.ServeMetrics())

	require.NoError(t, r.Close(context.Background()))

	// данные переживают переоткрытие
	reopened := NewRunner(cfg, testLogger(t))
	require.NoError(t, reopened.Open(context.Background()))
	defer reopened.Close(context.Background())
	_, order, err = reopened.Pools()
	require.NoError(t, err)
	assert.Len(t, order, 1)
}

func TestRunnerRetriesLockedLedger(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProgramID = solana.NewWallet().PublicKey().String()

	first := NewRunner(cfg, testLogger(t))
	require.NoError(t, first.Open(context.Background()))
	defer first.Close(context.Background())

	second := NewRunner(cfg, testLogger(t))
	err := second.Open(context.Background())
	assert.Error(t, err, "leveldb lock is held by the first runner")
}

func TestShutdownOrderAndErrors(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), time.Second)
	var order []string
	boom := errors.New("boom")

	sh.AddFunc("first", func() error { order = append(order, "first"); return nil })
	sh.AddFunc("second", func() error { order = append(order, "second"); return boom })
	sh.AddFunc("third", func() error { order = append(order, "third"); return nil })

	err := sh.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"third", "second", "first"}, order)

	assert.NoError(t, sh.Shutdown(context.Background()), "services are closed once")
}

func TestShutdownTimeout(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	sh.AddFunc("stuck", func() error { <-release; return nil })

	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stuck: shutdown timeout")
}
