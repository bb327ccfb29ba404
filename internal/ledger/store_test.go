package ledger

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelStorePersists(t *testing.T) {
	dir := t.TempDir()
	key := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	s, err := OpenLevelStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(map[solana.PublicKey]*Account{
		key: {Lamports: 42, Data: []byte{1, 2, 3}, Owner: owner, Executable: true},
	}))
	require.NoError(t, s.Close())

	s, err = OpenLevelStore(dir)
	require.NoError(t, err)
	defer s.Close()

	acc, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), acc.Lamports)
	assert.Equal(t, []byte{1, 2, 3}, acc.Data)
	assert.Equal(t, owner, acc.Owner)
	assert.True(t, acc.Executable)
}

func TestStoreDeleteAndMissing(t *testing.T) {
	s := NewMemStore()
	defer s.Close()
	key := solana.NewWallet().PublicKey()

	_, err := s.Get(key)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	require.NoError(t, s.Put(map[solana.PublicKey]*Account{key: {Lamports: 1}}))
	require.NoError(t, s.Put(map[solana.PublicKey]*Account{key: nil}))
	_, err = s.Get(key)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountCloneIsDeep(t *testing.T) {
	a := &Account{Lamports: 5, Data: []byte{9}}
	c := a.Clone()
	c.Data[0] = 1
	assert.Equal(t, byte(9), a.Data[0])
	assert.False(t, a.Equal(c))
}
