package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/events"
)

var errBoom = errors.New("boom")

// testProgram: 0 = move lamports from accounts[0] (signer) to accounts[1],
// 1 = fail, 2 = overwrite accounts[0] data.
type testProgram struct{ id solana.PublicKey }

func (p *testProgram) ProgramID() solana.PublicKey { return p.id }

func (p *testProgram) Process(accounts []*AccountInfo, data []byte) error {
	switch data[0] {
	case 0:
		if err := RequireAccounts(accounts, 2); err != nil {
			return err
		}
		if !accounts[0].IsSigner {
			return ErrMissingRequiredSigner
		}
		amount := binary.LittleEndian.Uint64(data[1:])
		if accounts[0].Lamports < amount {
			return ErrInsufficientLamports
		}
		accounts[0].Lamports -= amount
		accounts[1].Lamports += amount
		return nil
	case 1:
		return errBoom
	case 2:
		accounts[0].Data = []byte{0xAA}
		return nil
	}
	return errors.New("unknown op")
}

func moveIx(program, from, to solana.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 9)
	binary.LittleEndian.PutUint64(data[1:], amount)
	return solana.NewInstruction(program, solana.AccountMetaSlice{
		solana.NewAccountMeta(from, true, true),
		solana.NewAccountMeta(to, true, false),
	}, data)
}

// pdaProgram moves 5 lamports out of accounts[0] with a proof built for
// owner's derived address.
type pdaProgram struct {
	id, owner solana.PublicKey
	seed      []byte
	bump      uint8
}

func (p *pdaProgram) ProgramID() solana.PublicKey { return p.id }

func (p *pdaProgram) Process(accounts []*AccountInfo, _ []byte) error {
	if err := RequireAccounts(accounts, 2); err != nil {
		return err
	}
	proof := &AuthorityProof{ProgramID: p.owner, Seeds: [][]byte{p.seed}, Bump: p.bump}
	if !HasAuthority(accounts[0], proof) {
		return ErrMissingRequiredSigner
	}
	accounts[0].Lamports -= 5
	accounts[1].Lamports += 5
	return nil
}

type recorder struct{ ok, failed int }

func (r *recorder) ObserveCommit(committed bool) {
	if committed {
		r.ok++
	} else {
		r.failed++
	}
}

func newTestBank(t *testing.T, opts ...Option) (*Bank, *testProgram) {
	t.Helper()
	bank := NewBank(NewMemStore(), zap.NewNop(), opts...)
	require.NoError(t, bank.Genesis(Clock{Epoch: 1}, DefaultRent()))
	prog := &testProgram{id: solana.NewWallet().PublicKey()}
	bank.Register(prog)
	return bank, prog
}

func TestBankCommitsTransfers(t *testing.T) {
	rec := &recorder{}
	bank, prog := newTestBank(t, WithCommitRecorder(rec))
	payer := solana.NewWallet().PrivateKey
	dest := solana.NewWallet().PublicKey()
	require.NoError(t, bank.Airdrop(payer.PublicKey(), 1000))

	_, err := bank.Send(context.Background(), payer, []solana.Instruction{
		moveIx(prog.id, payer.PublicKey(), dest, 300),
		moveIx(prog.id, payer.PublicKey(), dest, 200),
	})
	require.NoError(t, err)

	from, err := bank.Account(payer.PublicKey())
	require.NoError(t, err)
	to, err := bank.Account(dest)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), from.Lamports)
	assert.Equal(t, uint64(500), to.Lamports)
	assert.Equal(t, solana.SystemProgramID, to.Owner)
	assert.Equal(t, 1, rec.ok)
}

func TestBankRollsBackOnFailure(t *testing.T) {
	rec := &recorder{}
	bank, prog := newTestBank(t, WithCommitRecorder(rec))
	payer := solana.NewWallet().PrivateKey
	dest := solana.NewWallet().PublicKey()
	require.NoError(t, bank.Airdrop(payer.PublicKey(), 1000))

	_, err := bank.Send(context.Background(), payer, []solana.Instruction{
		moveIx(prog.id, payer.PublicKey(), dest, 300),
		solana.NewInstruction(prog.id, solana.AccountMetaSlice{solana.NewAccountMeta(dest, true, false)}, []byte{1}),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	var ixErr *InstructionError
	require.ErrorAs(t, err, &ixErr)
	assert.Equal(t, 1, ixErr.Index)
	assert.Equal(t, prog.id, ixErr.Program)

	from, err := bank.Account(payer.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), from.Lamports)
	_, err = bank.Account(dest)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, 1, rec.failed)
}

func TestBankRejectsReadonlyWrites(t *testing.T) {
	bank, prog := newTestBank(t)
	payer := solana.NewWallet().PrivateKey
	target := solana.NewWallet().PublicKey()
	require.NoError(t, bank.SetAccount(target, &Account{Lamports: 10, Owner: prog.id}))

	_, err := bank.Send(context.Background(), payer, []solana.Instruction{
		solana.NewInstruction(prog.id, solana.AccountMetaSlice{solana.NewAccountMeta(target, false, false)}, []byte{2}),
	})
	assert.ErrorIs(t, err, ErrReadonlyModified)

	acc, err := bank.Account(target)
	require.NoError(t, err)
	assert.Empty(t, acc.Data)
}

func TestBankRejectsUnknownProgram(t *testing.T) {
	bank, _ := newTestBank(t)
	payer := solana.NewWallet().PrivateKey
	_, err := bank.Send(context.Background(), payer, []solana.Instruction{
		solana.NewInstruction(solana.NewWallet().PublicKey(), nil, []byte{0}),
	})
	assert.ErrorIs(t, err, ErrUnknownProgram)
}

func TestBankRejectsTamperedSignature(t *testing.T) {
	bank, prog := newTestBank(t)
	payer := solana.NewWallet().PrivateKey
	require.NoError(t, bank.Airdrop(payer.PublicKey(), 10))

	tx, err := solana.NewTransaction(
		[]solana.Instruction{moveIx(prog.id, payer.PublicKey(), solana.NewWallet().PublicKey(), 1)},
		solana.Hash{}, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)
	tx.Signatures = []solana.Signature{{1, 2, 3}}

	assert.ErrorIs(t, bank.ProcessTransaction(context.Background(), tx), ErrInvalidSignature)
}

func TestBankHonoursCancelledContext(t *testing.T) {
	bank, prog := newTestBank(t)
	payer := solana.NewWallet().PrivateKey
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := bank.Send(ctx, payer, []solana.Instruction{moveIx(prog.id, payer.PublicKey(), payer.PublicKey(), 0)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBankEpochs(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), 8)
	got := make(chan *events.EpochAdvancedEvent, 1)
	bus.Subscribe(events.EpochAdvanced, func(_ context.Context, ev events.Event) error {
		got <- ev.(*events.EpochAdvancedEvent)
		return nil
	})
	bank, _ := newTestBank(t, WithEventBus(bus))

	epoch, err := bank.AdvanceEpoch()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), epoch)

	clock, err := bank.Clock()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), clock.Epoch)
	assert.Equal(t, uint64(2*SlotsPerEpoch), clock.Slot)

	assert.Error(t, bank.SetEpoch(1))

	select {
	case ev := <-got:
		assert.Equal(t, uint64(1), ev.Previous)
		assert.Equal(t, uint64(2), ev.Current)
	case <-time.After(time.Second):
		t.Fatal("epoch event not delivered")
	}
	require.NoError(t, bus.Close(context.Background()))
}

func TestBankAccountsByOwner(t *testing.T) {
	bank, prog := newTestBank(t)
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	require.NoError(t, bank.SetAccount(a, &Account{Lamports: 1, Owner: prog.id}))
	require.NoError(t, bank.SetAccount(b, &Account{Lamports: 1, Owner: solana.SystemProgramID}))

	owned, err := bank.AccountsByOwner(prog.id)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
	assert.Contains(t, owned, a)
}

func TestBankProofBoundToExecutingProgram(t *testing.T) {
	bank, _ := newTestBank(t)
	ownerID := solana.NewWallet().PublicKey()
	seed := []byte("vault")
	vault, bump, err := solana.FindProgramAddress([][]byte{seed}, ownerID)
	require.NoError(t, err)

	owner := &pdaProgram{id: ownerID, owner: ownerID, seed: seed, bump: bump}
	intruder := &pdaProgram{id: solana.NewWallet().PublicKey(), owner: ownerID, seed: seed, bump: bump}
	bank.Register(owner, intruder)

	payer := solana.NewWallet().PrivateKey
	dest := solana.NewWallet().PublicKey()
	require.NoError(t, bank.Airdrop(payer.PublicKey(), 100))
	require.NoError(t, bank.SetAccount(vault, &Account{Lamports: 10, Owner: ownerID}))

	drain := func(program solana.PublicKey) solana.Instruction {
		return solana.NewInstruction(program, solana.AccountMetaSlice{
			solana.NewAccountMeta(vault, true, false),
			solana.NewAccountMeta(dest, true, false),
		}, []byte{0})
	}

	_, err = bank.Send(context.Background(), payer, []solana.Instruction{drain(intruder.id)})
	assert.ErrorIs(t, err, ErrMissingRequiredSigner)
	acc, err := bank.Account(vault)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), acc.Lamports)

	_, err = bank.Send(context.Background(), payer, []solana.Instruction{drain(ownerID)})
	require.NoError(t, err)
	acc, err = bank.Account(vault)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), acc.Lamports)
}
