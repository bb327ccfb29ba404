package stakepool

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	stakeprog "github.com/gagliardetto/solana-go/programs/stake"
	sysprog "github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/ledger"
	"github.com/rovshanmuradov/metapool/internal/programs/stake"
	"github.com/rovshanmuradov/metapool/internal/programs/system"
	tokenprog "github.com/rovshanmuradov/metapool/internal/programs/token"
)

const testEpoch = 10

// zeroRent makes every reserve zero so balances in tests are exact.
var zeroRent = ledger.Rent{}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	bank      *ledger.Bank
	rent      ledger.Rent
	programID solana.PublicKey

	payer solana.PrivateKey
	owner solana.PrivateKey

	pool       solana.PublicKey
	list       solana.PublicKey
	mint       solana.PublicKey
	feeAccount solana.PublicKey
	deposit    solana.PublicKey
	withdraw   solana.PublicKey
}

func newFixture(t *testing.T, rent ledger.Rent, opts ...Option) *fixture {
	t.Helper()
	bank := ledger.NewBank(ledger.NewMemStore(), zap.NewNop())
	require.NoError(t, bank.Genesis(ledger.Clock{Epoch: testEpoch}, rent))

	programID := solana.NewWallet().PublicKey()
	stakeSvc := stake.New(zap.NewNop())
	tokenSvc := tokenprog.New(zap.NewNop())
	systemSvc := system.New(zap.NewNop())
	bank.Register(stakeSvc, tokenSvc, systemSvc, NewProcessor(programID, stakeSvc, tokenSvc, systemSvc, opts...))

	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		bank:      bank,
		rent:      rent,
		programID: programID,
		payer:     solana.NewWallet().PrivateKey,
		owner:     solana.NewWallet().PrivateKey,
	}
	require.NoError(t, bank.Airdrop(f.payer.PublicKey(), 1_000_000_000_000))
	return f
}

func (f *fixture) send(ixs []solana.Instruction, signers ...solana.PrivateKey) error {
	_, err := f.bank.Send(f.ctx, f.payer, ixs, signers...)
	return err
}

// programAccount stores an empty record owned by the pool program.
func (f *fixture) programAccount(size int) solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	require.NoError(f.t, f.bank.SetAccount(key, &ledger.Account{
		Lamports: f.rent.MinimumBalance(size) + 1,
		Data:     make([]byte, size),
		Owner:    f.programID,
	}))
	return key
}

func (f *fixture) newMint(authority solana.PublicKey) solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	data, err := tokenprog.EncodeMint(&token.Mint{MintAuthority: authority.ToPointer(), Decimals: 9, IsInitialized: true})
	require.NoError(f.t, err)
	require.NoError(f.t, f.bank.SetAccount(key, &ledger.Account{
		Lamports: f.rent.MinimumBalance(tokenprog.MintSize) + 1,
		Data:     data,
		Owner:    solana.TokenProgramID,
	}))
	return key
}

func (f *fixture) newTokenAccount(mint, owner solana.PublicKey, amount uint64) solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	data, err := tokenprog.EncodeAccount(&token.Account{Mint: mint, Owner: owner, Amount: amount, State: token.Initialized})
	require.NoError(f.t, err)
	require.NoError(f.t, f.bank.SetAccount(key, &ledger.Account{
		Lamports: f.rent.MinimumBalance(tokenprog.AccountSize) + 1,
		Data:     data,
		Owner:    solana.TokenProgramID,
	}))
	return key
}

func (f *fixture) initialize(fee Fee, capacity int) {
	f.t.Helper()
	f.pool = f.programAccount(PoolStateSize)
	f.list = f.programAccount(ValidatorListSize(capacity))

	var err error
	f.deposit, _, err = DeriveAuthority(f.programID, f.pool, RoleDeposit)
	require.NoError(f.t, err)
	f.withdraw, _, err = DeriveAuthority(f.programID, f.pool, RoleWithdraw)
	require.NoError(f.t, err)

	f.mint = f.newMint(f.withdraw)
	f.feeAccount = f.newTokenAccount(f.mint, f.owner.PublicKey(), 0)

	require.NoError(f.t, f.send([]solana.Instruction{
		NewInitializeInstruction(f.programID, f.initParams(fee)),
	}, f.owner))
}

func (f *fixture) initParams(fee Fee) InitializeParams {
	return InitializeParams{
		Pool:            f.pool,
		Owner:           f.owner.PublicKey(),
		ValidatorList:   f.list,
		PoolMint:        f.mint,
		OwnerFeeAccount: f.feeAccount,
		Fee:             fee,
	}
}

func (f *fixture) newVote() solana.PublicKey {
	vote := solana.NewWallet().PublicKey()
	require.NoError(f.t, f.bank.SetAccount(vote, &ledger.Account{Lamports: 1, Owner: solana.VoteProgramID}))
	return vote
}

// validatorStake creates the pool's stake account for a new validator, funds
// it to hold lamports in total, delegates it and hands both authorities to the
// deposit authority, ready for AddValidatorStakeAccount.
func (f *fixture) validatorStake(lamports uint64) (vote, stakeAccount solana.PublicKey) {
	f.t.Helper()
	vote = f.newVote()
	staker := solana.NewWallet().PrivateKey
	stakeAccount, _, err := ValidatorStakeAddress(f.programID, vote, f.pool)
	require.NoError(f.t, err)

	create, err := NewCreateValidatorStakeAccountInstruction(f.programID, f.pool, f.payer.PublicKey(), vote, staker.PublicKey(), f.deposit)
	require.NoError(f.t, err)
	created := 1 + f.rent.MinimumBalance(stake.StateSize)
	require.GreaterOrEqual(f.t, lamports, created)

	require.NoError(f.t, f.send([]solana.Instruction{
		create,
		sysprog.NewTransferInstruction(lamports-created, f.payer.PublicKey(), stakeAccount).Build(),
		stake.NewDelegateStakeInstruction(vote, staker.PublicKey(), stakeAccount),
		stake.NewAuthorizeInstruction(stakeAccount, staker.PublicKey(), f.deposit, stake.AuthorizeStaker),
	}, staker))
	return vote, stakeAccount
}

func (f *fixture) addParams(stakeAccount, receiver solana.PublicKey) AddValidatorParams {
	return AddValidatorParams{
		Pool:              f.pool,
		Owner:             f.owner.PublicKey(),
		DepositAuthority:  f.deposit,
		WithdrawAuthority: f.withdraw,
		ValidatorList:     f.list,
		StakeAccount:      stakeAccount,
		PoolTokenReceiver: receiver,
		PoolMint:          f.mint,
	}
}

// addValidator creates, delegates and adds a validator holding lamports.
func (f *fixture) addValidator(lamports uint64) (vote, stakeAccount, receiver solana.PublicKey) {
	f.t.Helper()
	vote, stakeAccount = f.validatorStake(lamports)
	receiver = f.newTokenAccount(f.mint, f.owner.PublicKey(), 0)
	require.NoError(f.t, f.send([]solana.Instruction{
		NewAddValidatorStakeAccountInstruction(f.programID, f.addParams(stakeAccount, receiver)),
	}, f.owner))
	return vote, stakeAccount, receiver
}

// userStake creates a stake account delegated to vote with both authorities
// assigned to the pool deposit authority.
func (f *fixture) userStake(vote solana.PublicKey, lamports uint64) solana.PublicKey {
	f.t.Helper()
	acct := solana.NewWallet().PrivateKey
	staker := solana.NewWallet().PrivateKey
	require.NoError(f.t, f.send([]solana.Instruction{
		sysprog.NewCreateAccountInstruction(lamports, stake.StateSize, solana.StakeProgramID, f.payer.PublicKey(), acct.PublicKey()).Build(),
		stakeprog.NewInitializeInstruction(staker.PublicKey(), f.deposit, acct.PublicKey()).Build(),
		stake.NewDelegateStakeInstruction(vote, staker.PublicKey(), acct.PublicKey()),
		stake.NewAuthorizeInstruction(acct.PublicKey(), staker.PublicKey(), f.deposit, stake.AuthorizeStaker),
	}, acct, staker))
	return acct.PublicKey()
}

func (f *fixture) depositParams(userStake, validatorStake, receiver solana.PublicKey) DepositParams {
	return DepositParams{
		Pool:              f.pool,
		ValidatorList:     f.list,
		DepositAuthority:  f.deposit,
		WithdrawAuthority: f.withdraw,
		UserStake:         userStake,
		ValidatorStake:    validatorStake,
		PoolTokenReceiver: receiver,
		OwnerFeeAccount:   f.feeAccount,
		PoolMint:          f.mint,
	}
}

// refresh moves the clock to epoch and brings list and pool up to date.
func (f *fixture) refresh(epoch uint64, stakeAccounts ...solana.PublicKey) {
	f.t.Helper()
	require.NoError(f.t, f.bank.SetEpoch(epoch))
	require.NoError(f.t, f.send([]solana.Instruction{
		NewUpdateListBalanceInstruction(f.programID, f.pool, f.list, stakeAccounts),
		NewUpdatePoolBalanceInstruction(f.programID, f.pool, f.list),
	}))
}

func (f *fixture) poolState() *PoolState {
	f.t.Helper()
	acc, err := f.bank.Account(f.pool)
	require.NoError(f.t, err)
	s, err := DecodePoolState(acc.Data)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) validatorList() *ValidatorList {
	f.t.Helper()
	acc, err := f.bank.Account(f.list)
	require.NoError(f.t, err)
	l, err := DecodeValidatorList(acc.Data)
	require.NoError(f.t, err)
	return l
}

func (f *fixture) tokenBalance(key solana.PublicKey) uint64 {
	f.t.Helper()
	acc, err := f.bank.Account(key)
	require.NoError(f.t, err)
	a, err := tokenprog.DecodeAccount(acc.Data)
	require.NoError(f.t, err)
	return a.Amount
}

func (f *fixture) lamports(key solana.PublicKey) uint64 {
	f.t.Helper()
	acc, err := f.bank.Account(key)
	require.NoError(f.t, err)
	return acc.Lamports
}

func (f *fixture) stakeState(key solana.PublicKey) *stake.State {
	f.t.Helper()
	acc, err := f.bank.Account(key)
	require.NoError(f.t, err)
	s, err := stake.DecodeState(acc.Data)
	require.NoError(f.t, err)
	return s
}
