package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyringRoundTrip(t *testing.T) {
	path := KeyringPath(filepath.Join(t.TempDir(), "keys"))
	k := Generate(Payer, Owner, Program)
	require.NoError(t, SaveKeyring(path, k))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadKeyring(path)
	require.NoError(t, err)
	assert.Equal(t, []string{Owner, Payer, Program}, loaded.Names())

	for _, name := range k.Names() {
		w, err := loaded.Get(name)
		require.NoError(t, err)
		assert.Equal(t, k[name].PublicKey, w.PublicKey)
		assert.Equal(t, name, w.Name)
	}

	_, err = loaded.Get("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestLoadKeyringSkipsInvalid(t *testing.T) {
	pk := solana.NewWallet().PrivateKey
	path := filepath.Join(t.TempDir(), KeyringFile)
	content := "wallets:\n" +
		"  - name: good\n    private_key: " + pk.String() + "\n" +
		"  - name: short\n    private_key: abc\n" +
		"  - name: \"\"\n    private_key: " + pk.String() + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	k, err := LoadKeyring(path)
	require.NoError(t, err)
	require.Len(t, k, 1)
	assert.Equal(t, pk.PublicKey(), k["good"].PublicKey)
}

func TestLoadKeyringErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadKeyring(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("wallets: []\n"), 0o600))
	_, err = LoadKeyring(empty)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("wallets:\n  - name: x\n    private_key: 0OIl\n"), 0o600))
	_, err = LoadKeyring(bad)
	assert.Error(t, err)
}

func TestKeyringLookup(t *testing.T) {
	k := Generate(Payer, Owner)

	w, err := k.Lookup(k[Owner].PublicKey)
	require.NoError(t, err)
	assert.Equal(t, Owner, w.Name)

	_, err = k.Lookup(solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
