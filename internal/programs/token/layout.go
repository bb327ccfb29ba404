// internal/programs/token/layout.go
package token

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go/programs/token"
)

const (
	MintSize    = 82
	AccountSize = 165
)

// DecodeMint parses the 82-byte mint layout.
func DecodeMint(data []byte) (*token.Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: mint data is %d bytes", ErrInvalidAccountData, len(data))
	}
	m := new(token.Mint)
	if err := m.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return m, nil
}

// EncodeMint serializes m into a fresh 82-byte buffer.
func EncodeMint(m *token.Mint) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeAccount parses the 165-byte token account layout.
func DecodeAccount(data []byte) (*token.Account, error) {
	if len(data) != AccountSize {
		return nil, fmt.Errorf("%w: token account data is %d bytes", ErrInvalidAccountData, len(data))
	}
	a := new(token.Account)
	if err := a.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return a, nil
}

func EncodeAccount(a *token.Account) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := a.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
