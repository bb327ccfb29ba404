// internal/ledger/account.go
package ledger

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Account is the persisted state behind one address.
type Account struct {
	Lamports   uint64
	Data       []byte
	Owner      solana.PublicKey
	Executable bool
}

// NewAccount allocates a zeroed data buffer of the given size.
func NewAccount(lamports uint64, space int, owner solana.PublicKey) *Account {
	return &Account{Lamports: lamports, Data: make([]byte, space), Owner: owner}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}

// Equal reports whether both accounts hold identical state.
func (a *Account) Equal(o *Account) bool {
	return a.Lamports == o.Lamports &&
		a.Owner == o.Owner &&
		a.Executable == o.Executable &&
		bytes.Equal(a.Data, o.Data)
}

// IsEmpty is true for drained accounts; the bank purges them on commit.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0
}

func (a *Account) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint64(a.Lamports, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteBytes(a.Owner[:], false); err != nil {
		return err
	}
	if err := enc.WriteBool(a.Executable); err != nil {
		return err
	}
	if err := enc.WriteUint32(uint32(len(a.Data)), bin.LE); err != nil {
		return err
	}
	return enc.WriteBytes(a.Data, false)
}

func (a *Account) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if a.Lamports, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	owner, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	a.Owner = solana.PublicKeyFromBytes(owner)
	if a.Executable, err = dec.ReadBool(); err != nil {
		return err
	}
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	data, err := dec.ReadNBytes(int(n))
	if err != nil {
		return err
	}
	a.Data = append([]byte(nil), data...)
	return nil
}

// AccountInfo is the view of an account handed to a program: the address,
// how the transaction referenced it, and a mutable working copy.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	// Invoker is the program the bank is executing with this handle.
	Invoker solana.PublicKey
	*Account
}

// Metas converts handles back to the account metas a decoder expects.
func Metas(accounts []*AccountInfo) []*solana.AccountMeta {
	out := make([]*solana.AccountMeta, len(accounts))
	for i, a := range accounts {
		out[i] = solana.NewAccountMeta(a.Key, a.IsWritable, a.IsSigner)
	}
	return out
}

// DataLen returns the length of the account data.
func (ai *AccountInfo) DataLen() int {
	return len(ai.Data)
}
