package system

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	sysprog "github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/ledger"
)

func newBank(t *testing.T) *ledger.Bank {
	t.Helper()
	bank := ledger.NewBank(ledger.NewMemStore(), zap.NewNop())
	require.NoError(t, bank.Genesis(ledger.Clock{}, ledger.DefaultRent()))
	bank.Register(New(zap.NewNop()))
	return bank
}

func TestCreateAccountAndTransfer(t *testing.T) {
	bank := newBank(t)
	payer := solana.NewWallet().PrivateKey
	fresh := solana.NewWallet().PrivateKey
	owner := solana.NewWallet().PublicKey()
	require.NoError(t, bank.Airdrop(payer.PublicKey(), 10_000))

	_, err := bank.Send(context.Background(), payer, []solana.Instruction{
		sysprog.NewCreateAccountInstruction(5000, 64, owner, payer.PublicKey(), fresh.PublicKey()).Build(),
		sysprog.NewTransferInstruction(1000, payer.PublicKey(), fresh.PublicKey()).Build(),
	}, fresh)
	require.NoError(t, err)

	acc, err := bank.Account(fresh.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(6000), acc.Lamports)
	assert.Len(t, acc.Data, 64)
	assert.Equal(t, owner, acc.Owner)

	funder, err := bank.Account(payer.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(4000), funder.Lamports)
}

func TestCreateAccountTwiceFails(t *testing.T) {
	bank := newBank(t)
	payer := solana.NewWallet().PrivateKey
	fresh := solana.NewWallet().PrivateKey
	require.NoError(t, bank.Airdrop(payer.PublicKey(), 10_000))

	ix := sysprog.NewCreateAccountInstruction(100, 8, solana.StakeProgramID, payer.PublicKey(), fresh.PublicKey()).Build()
	_, err := bank.Send(context.Background(), payer, []solana.Instruction{ix}, fresh)
	require.NoError(t, err)
	_, err = bank.Send(context.Background(), payer, []solana.Instruction{ix}, fresh)
	assert.ErrorIs(t, err, ErrAccountAlreadyInUse)
}

func TestCreateAccountWithProof(t *testing.T) {
	prog := New(zap.NewNop())
	programID := solana.NewWallet().PublicKey()
	seed := solana.NewWallet().PublicKey()
	addr, bump, err := solana.FindProgramAddress([][]byte{seed[:]}, programID)
	require.NoError(t, err)

	funder := &ledger.AccountInfo{Key: solana.NewWallet().PublicKey(), IsSigner: true, Account: &ledger.Account{Lamports: 50}}
	target := &ledger.AccountInfo{Key: addr, Invoker: programID, Account: &ledger.Account{Owner: solana.SystemProgramID}}

	err = prog.CreateAccount(funder, target, 10, 4, programID, nil)
	assert.ErrorIs(t, err, ErrMissingSignature)

	proof := &ledger.AuthorityProof{ProgramID: programID, Seeds: [][]byte{seed[:]}, Bump: bump}
	require.NoError(t, prog.CreateAccount(funder, target, 10, 4, programID, proof))
	assert.Equal(t, uint64(40), funder.Lamports)
	assert.Equal(t, programID, target.Owner)

	err = prog.Transfer(funder, target, 100, nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}
