package ledger

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRentMinimumBalance(t *testing.T) {
	r := DefaultRent()
	// (128 + 200) * 3480 * 2
	assert.Equal(t, uint64(2282880), r.MinimumBalance(200))
	assert.Equal(t, uint64(890880), r.MinimumBalance(0))
	assert.True(t, r.IsExempt(2282880, 200))
	assert.False(t, r.IsExempt(2282879, 200))
}

func TestSysvarLayouts(t *testing.T) {
	clock := Clock{Slot: 10, EpochStartTimestamp: -5, Epoch: 3, LeaderScheduleEpoch: 4, UnixTimestamp: 1700000000}
	data := clock.Bytes()
	require.Len(t, data, ClockSize)
	got, err := ClockFrom(&AccountInfo{Key: solana.SysVarClockPubkey, Account: &Account{Data: data}})
	require.NoError(t, err)
	assert.Equal(t, clock, got)

	_, err = ClockFrom(&AccountInfo{Key: solana.SysVarRentPubkey, Account: &Account{Data: data}})
	assert.ErrorIs(t, err, ErrInvalidSysvar)
	_, err = ParseClock(data[:20])
	assert.ErrorIs(t, err, ErrInvalidSysvar)

	rent, err := ParseRent(DefaultRent().Bytes())
	require.NoError(t, err)
	assert.Equal(t, DefaultRent(), rent)

	hist := StakeHistory{{Epoch: 2, Effective: 100, Activating: 5}, {Epoch: 1, Effective: 90}}
	parsed, err := StakeHistoryFrom(&AccountInfo{Key: solana.SysVarStakeHistoryPubkey, Account: &Account{Data: hist.Bytes()}})
	require.NoError(t, err)
	assert.Equal(t, hist, parsed)
}

func TestAuthorityProof(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	pool := solana.NewWallet().PublicKey()
	seeds := [][]byte{pool[:], []byte("withdraw")}
	addr, bump, err := solana.FindProgramAddress(seeds, program)
	require.NoError(t, err)

	proof := &AuthorityProof{ProgramID: program, Seeds: seeds, Bump: bump}
	assert.True(t, HasAuthority(&AccountInfo{Key: addr, Invoker: program}, proof))
	assert.False(t, HasAuthority(&AccountInfo{Key: pool, Invoker: program}, proof))
	assert.True(t, HasAuthority(&AccountInfo{Key: pool, IsSigner: true}, nil))
	assert.False(t, HasAuthority(&AccountInfo{Key: addr, Invoker: program}, nil))

	// чужая программа не подписывает за адрес program
	intruder := solana.NewWallet().PublicKey()
	assert.False(t, HasAuthority(&AccountInfo{Key: addr, Invoker: intruder}, proof))
	assert.False(t, HasAuthority(&AccountInfo{Key: addr}, proof))

	other := &AuthorityProof{ProgramID: solana.NewWallet().PublicKey(), Seeds: seeds, Bump: bump}
	assert.False(t, other.Authorizes(addr))
	assert.Len(t, seeds, 2)
}
