package client

import (
	"context"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/ledger"
	"github.com/rovshanmuradov/metapool/internal/programs/stake"
	"github.com/rovshanmuradov/metapool/internal/programs/system"
	tokenprog "github.com/rovshanmuradov/metapool/internal/programs/token"
	"github.com/rovshanmuradov/metapool/internal/stakepool"
	"github.com/rovshanmuradov/metapool/internal/utils/metrics"
)

type fixture struct {
	t         *testing.T
	bank      *ledger.Bank
	rent      ledger.Rent
	programID solana.PublicKey
	payer     solana.PrivateKey
	owner     solana.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	return newInstrumentedFixture(t, nil)
}

func newInstrumentedFixture(t *testing.T, collector *metrics.Collector) *fixture {
	t.Helper()
	var (
		bankOpts []ledger.Option
		poolOpts []stakepool.Option
	)
	if collector != nil {
		bankOpts = append(bankOpts, ledger.WithCommitRecorder(collector))
		poolOpts = append(poolOpts, stakepool.WithRecorder(collector))
	}
	bank := ledger.NewBank(ledger.NewMemStore(), zap.NewNop(), bankOpts...)
	require.NoError(t, bank.Genesis(ledger.Clock{Epoch: 4}, ledger.DefaultRent()))

	programID := solana.NewWallet().PublicKey()
	stakeSvc, tokenSvc, systemSvc := stake.New(zap.NewNop()), tokenprog.New(zap.NewNop()), system.New(zap.NewNop())
	bank.Register(stakeSvc, tokenSvc, systemSvc, stakepool.NewProcessor(programID, stakeSvc, tokenSvc, systemSvc, poolOpts...))

	f := &fixture{
		t:         t,
		bank:      bank,
		rent:      ledger.DefaultRent(),
		programID: programID,
		payer:     solana.NewWallet().PrivateKey,
		owner:     solana.NewWallet().PrivateKey,
	}
	require.NoError(t, bank.Airdrop(f.payer.PublicKey(), 1_000*LamportsPerSOL))
	return f
}

func (f *fixture) send(ixs []solana.Instruction, signers ...solana.PrivateKey) {
	f.t.Helper()
	_, err := f.bank.Send(context.Background(), f.payer, ixs, signers...)
	require.NoError(f.t, err)
}

func (f *fixture) createPool(fee stakepool.Fee) PoolKeys {
	f.t.Helper()
	keys := NewPoolKeys()
	ixs, err := CreatePoolInstructions(f.programID, f.rent, f.payer.PublicKey(), f.owner.PublicKey(), keys, fee, 4)
	require.NoError(f.t, err)
	f.send(ixs, append(keys.Signers(), f.owner)...)
	return keys
}

func TestCreatePool(t *testing.T) {
	f := newFixture(t)
	keys := f.createPool(stakepool.Fee{Numerator: 1, Denominator: 100})

	snap, err := LoadSnapshot(context.Background(), f.bank, f.programID, keys.Pool.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, f.owner.PublicKey(), snap.Pool.Owner)
	assert.Equal(t, keys.Mint.PublicKey(), snap.Pool.PoolMint)
	assert.Equal(t, keys.FeeAccount.PublicKey(), snap.Pool.OwnerFeeAccount)
	assert.Equal(t, 4, snap.List.Capacity())
	assert.Equal(t, uint64(4), snap.Clock.Epoch)
	assert.True(t, snap.UpToDate())
	assert.Empty(t, snap.Accounts)
	assert.Equal(t, "1", snap.Rate().String())

	_, err = CreatePoolInstructions(f.programID, f.rent, f.payer.PublicKey(), f.owner.PublicKey(), NewPoolKeys(), stakepool.Fee{}, 0)
	assert.Error(t, err)
}

func TestCreateLiquidityPool(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(stakepool.Fee{})

	assetMint := solana.NewWallet().PrivateKey
	f.send(CreateMintInstructions(f.rent, f.payer.PublicKey(), assetMint.PublicKey(), f.payer.PublicKey()), assetMint)

	keys := NewLiquidityKeys()
	ixs, err := CreateLiquidityPoolInstructions(f.programID, f.rent, f.payer.PublicKey(), f.owner.PublicKey(),
		pool.Pool.PublicKey(), pool.Mint.PublicKey(), assetMint.PublicKey(), keys)
	require.NoError(t, err)
	f.send(ixs, append(keys.Signers(), f.owner)...)

	acc, err := f.bank.Account(keys.LiquidityPool.PublicKey())
	require.NoError(t, err)
	liq, err := stakepool.DecodeLiquidityPoolState(acc.Data)
	require.NoError(t, err)
	assert.Equal(t, pool.Pool.PublicKey(), liq.StakePool)
	assert.Equal(t, keys.ShareReserve.PublicKey(), liq.ShareReserve)
}

func TestSnapshotReadsStakeAccounts(t *testing.T) {
	f := newFixture(t)
	keys := f.createPool(stakepool.Fee{})
	pool := keys.Pool.PublicKey()

	// список и стейк-аккаунты записываются напрямую в обход программ
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	list := stakepool.NewValidatorList(4)
	require.NoError(t, list.Push(stakepool.ValidatorStakeInfo{Validator: a, Balance: 10, LastUpdateEpoch: 4}))
	require.NoError(t, list.Push(stakepool.ValidatorStakeInfo{Validator: b, Balance: 20, LastUpdateEpoch: 3}))
	listAcc, err := f.bank.Account(keys.ValidatorList.PublicKey())
	require.NoError(t, err)
	require.NoError(t, list.EncodeTo(listAcc.Data))
	require.NoError(t, f.bank.SetAccount(keys.ValidatorList.PublicKey(), listAcc))

	addrA, _, err := stakepool.ValidatorStakeAddress(f.programID, a, pool)
	require.NoError(t, err)
	require.NoError(t, f.bank.SetAccount(addrA, &ledger.Account{Lamports: 5 * LamportsPerSOL, Owner: solana.StakeProgramID}))

	snap, err := LoadSnapshot(context.Background(), f.bank, f.programID, pool)
	require.NoError(t, err)
	require.Len(t, snap.Accounts, 2)
	assert.Equal(t, StakeAccount{Validator: a, Address: addrA, Lamports: 5 * LamportsPerSOL}, snap.Accounts[0])
	assert.Zero(t, snap.Accounts[1].Lamports, "missing stake account reads as empty")
	assert.Equal(t, []solana.PublicKey{b}, snap.Stale())

	picked, err := snap.PickWithdrawAccounts(2*LamportsPerSOL, LamportsPerSOL)
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Equal(t, addrA, picked[0].Address)

	ixs, err := snap.PlanUpdate(5)
	require.NoError(t, err)
	assert.Len(t, ixs, 2)
}

func TestLoadSnapshotErrors(t *testing.T) {
	f := newFixture(t)
	_, err := LoadSnapshot(context.Background(), f.bank, f.programID, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	keys := f.createPool(stakepool.Fee{})
	_, err = LoadSnapshot(context.Background(), f.bank, solana.NewWallet().PublicKey(), keys.Pool.PublicKey())
	assert.ErrorIs(t, err, stakepool.ErrIncorrectProgramID)
}

func TestUpdateAfterEpochChange(t *testing.T) {
	f := newFixture(t)
	keys := f.createPool(stakepool.Fee{})
	_, err := f.bank.AdvanceEpoch()
	require.NoError(t, err)

	snap, err := LoadSnapshot(context.Background(), f.bank, f.programID, keys.Pool.PublicKey())
	require.NoError(t, err)
	assert.False(t, snap.UpToDate())

	ixs, err := snap.PlanUpdate(5)
	require.NoError(t, err)
	require.Len(t, ixs, 1, "empty list still moves the pool epoch")
	f.send(ixs)

	snap, err = LoadSnapshot(context.Background(), f.bank, f.programID, keys.Pool.PublicKey())
	require.NoError(t, err)
	assert.True(t, snap.UpToDate())
	assert.Equal(t, uint64(5), snap.Pool.LastUpdateEpoch)
}

func TestInstrumentedBank(t *testing.T) {
	collector := metrics.NewCollector()
	f := newInstrumentedFixture(t, collector)
	keys := f.createPool(stakepool.Fee{})

	_, err := f.bank.Send(context.Background(), f.payer, []solana.Instruction{
		stakepool.NewUpdatePoolBalanceInstruction(f.programID, keys.Pool.PublicKey(), solana.NewWallet().PublicKey()),
	})
	require.Error(t, err)

	expected := `
# HELP metapool_ledger_commits_total Ledger transactions by outcome
# TYPE metapool_ledger_commits_total counter
metapool_ledger_commits_total{result="committed"} 1
metapool_ledger_commits_total{result="rolled_back"} 1
`
	require.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "metapool_ledger_commits_total"))

	// initialize прошла, update_pool_balance упала
	count, err := testutil.GatherAndCount(collector.Registry(), "metapool_instructions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
