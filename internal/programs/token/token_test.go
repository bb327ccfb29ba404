package token

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	sysprog "github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/ledger"
	"github.com/rovshanmuradov/metapool/internal/programs/system"
)

type fixture struct {
	bank   *ledger.Bank
	payer  solana.PrivateKey
	mint   solana.PrivateKey
	rent   ledger.Rent
	holder solana.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bank := ledger.NewBank(ledger.NewMemStore(), zap.NewNop())
	require.NoError(t, bank.Genesis(ledger.Clock{}, ledger.DefaultRent()))
	bank.Register(system.New(zap.NewNop()), New(zap.NewNop()))

	f := &fixture{
		bank:   bank,
		payer:  solana.NewWallet().PrivateKey,
		mint:   solana.NewWallet().PrivateKey,
		rent:   ledger.DefaultRent(),
		holder: solana.NewWallet().PrivateKey,
	}
	require.NoError(t, bank.Airdrop(f.payer.PublicKey(), 1_000_000_000))

	_, err := bank.Send(context.Background(), f.payer, []solana.Instruction{
		sysprog.NewCreateAccountInstruction(f.rent.MinimumBalance(MintSize), MintSize, solana.TokenProgramID,
			f.payer.PublicKey(), f.mint.PublicKey()).Build(),
		token.NewInitializeMintInstruction(9, f.payer.PublicKey(), solana.PublicKey{}, f.mint.PublicKey(), solana.SysVarRentPubkey).Build(),
	}, f.mint)
	require.NoError(t, err)
	return f
}

func (f *fixture) newAccount(t *testing.T, owner solana.PublicKey) solana.PublicKey {
	t.Helper()
	acct := solana.NewWallet().PrivateKey
	_, err := f.bank.Send(context.Background(), f.payer, []solana.Instruction{
		sysprog.NewCreateAccountInstruction(f.rent.MinimumBalance(AccountSize), AccountSize, solana.TokenProgramID,
			f.payer.PublicKey(), acct.PublicKey()).Build(),
		token.NewInitializeAccountInstruction(acct.PublicKey(), f.mint.PublicKey(), owner, solana.SysVarRentPubkey).Build(),
	}, acct)
	require.NoError(t, err)
	return acct.PublicKey()
}

func (f *fixture) balance(t *testing.T, key solana.PublicKey) uint64 {
	t.Helper()
	acc, err := f.bank.Account(key)
	require.NoError(t, err)
	a, err := DecodeAccount(acc.Data)
	require.NoError(t, err)
	return a.Amount
}

func (f *fixture) supply(t *testing.T) uint64 {
	t.Helper()
	acc, err := f.bank.Account(f.mint.PublicKey())
	require.NoError(t, err)
	m, err := DecodeMint(acc.Data)
	require.NoError(t, err)
	return m.Supply
}

func TestMintTransferBurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAccount(t, f.holder.PublicKey())
	b := f.newAccount(t, solana.NewWallet().PublicKey())

	_, err := f.bank.Send(ctx, f.payer, []solana.Instruction{
		token.NewMintToInstruction(1000, f.mint.PublicKey(), a, f.payer.PublicKey(), nil).Build(),
	})
	require.NoError(t, err)

	_, err = f.bank.Send(ctx, f.payer, []solana.Instruction{
		token.NewTransferInstruction(400, a, b, f.holder.PublicKey(), nil).Build(),
		token.NewBurnInstruction(100, a, f.mint.PublicKey(), f.holder.PublicKey(), nil).Build(),
	}, f.holder)
	require.NoError(t, err)

	assert.Equal(t, uint64(500), f.balance(t, a))
	assert.Equal(t, uint64(400), f.balance(t, b))
	assert.Equal(t, uint64(900), f.supply(t))
}

func TestTransferRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAccount(t, f.holder.PublicKey())
	b := f.newAccount(t, f.holder.PublicKey())
	_, err := f.bank.Send(ctx, f.payer, []solana.Instruction{
		token.NewMintToInstruction(10, f.mint.PublicKey(), a, f.payer.PublicKey(), nil).Build(),
	})
	require.NoError(t, err)

	stranger := solana.NewWallet().PrivateKey
	_, err = f.bank.Send(ctx, f.payer, []solana.Instruction{
		token.NewTransferInstruction(5, a, b, stranger.PublicKey(), nil).Build(),
	}, stranger)
	assert.ErrorIs(t, err, ErrOwnerMismatch)

	_, err = f.bank.Send(ctx, f.payer, []solana.Instruction{
		token.NewTransferInstruction(50, a, b, f.holder.PublicKey(), nil).Build(),
	}, f.holder)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(10), f.balance(t, a))
}

func TestDelegatedTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAccount(t, f.holder.PublicKey())
	b := f.newAccount(t, f.holder.PublicKey())
	delegate := solana.NewWallet().PrivateKey

	_, err := f.bank.Send(ctx, f.payer, []solana.Instruction{
		token.NewMintToInstruction(100, f.mint.PublicKey(), a, f.payer.PublicKey(), nil).Build(),
		token.NewApproveInstruction(30, a, delegate.PublicKey(), f.holder.PublicKey(), nil).Build(),
	}, f.holder)
	require.NoError(t, err)

	_, err = f.bank.Send(ctx, f.payer, []solana.Instruction{
		token.NewTransferInstruction(31, a, b, delegate.PublicKey(), nil).Build(),
	}, delegate)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.bank.Send(ctx, f.payer, []solana.Instruction{
		token.NewTransferInstruction(30, a, b, delegate.PublicKey(), nil).Build(),
	}, delegate)
	require.NoError(t, err)

	acc, err := f.bank.Account(a)
	require.NoError(t, err)
	src, err := DecodeAccount(acc.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(70), src.Amount)
	assert.Nil(t, src.Delegate)
}

func TestMintToWithProof(t *testing.T) {
	p := New(zap.NewNop())
	programID := solana.NewWallet().PublicKey()
	pool := solana.NewWallet().PublicKey()
	seeds := [][]byte{pool[:], []byte("withdraw")}
	authority, bump, err := solana.FindProgramAddress(seeds, programID)
	require.NoError(t, err)

	mintKey := solana.NewWallet().PublicKey()
	mintData, err := EncodeMint(&token.Mint{MintAuthority: authority.ToPointer(), IsInitialized: true})
	require.NoError(t, err)
	dstData, err := EncodeAccount(&token.Account{Mint: mintKey, Owner: pool, State: token.Initialized})
	require.NoError(t, err)

	mint := &ledger.AccountInfo{Key: mintKey, IsWritable: true, Account: &ledger.Account{Data: mintData, Owner: solana.TokenProgramID}}
	dst := &ledger.AccountInfo{Key: solana.NewWallet().PublicKey(), IsWritable: true, Account: &ledger.Account{Data: dstData, Owner: solana.TokenProgramID}}
	auth := &ledger.AccountInfo{Key: authority, Invoker: programID, Account: &ledger.Account{}}

	assert.ErrorIs(t, p.MintTo(mint, dst, auth, 5, nil), ErrMissingSignature)

	badProof := &ledger.AuthorityProof{ProgramID: programID, Seeds: [][]byte{pool[:], []byte("deposit")}, Bump: bump}
	assert.ErrorIs(t, p.MintTo(mint, dst, auth, 5, badProof), ErrMissingSignature)

	proof := &ledger.AuthorityProof{ProgramID: programID, Seeds: seeds, Bump: bump}
	require.NoError(t, p.MintTo(mint, dst, auth, 5, proof))

	m, err := DecodeMint(mint.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), m.Supply)
}

func TestLayoutSizes(t *testing.T) {
	data, err := EncodeMint(&token.Mint{IsInitialized: true, Decimals: 9})
	require.NoError(t, err)
	assert.Len(t, data, MintSize)

	data, err = EncodeAccount(&token.Account{State: token.Initialized})
	require.NoError(t, err)
	assert.Len(t, data, AccountSize)

	_, err = DecodeMint(data)
	assert.ErrorIs(t, err, ErrInvalidAccountData)
}
