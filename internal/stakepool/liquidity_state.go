// =============================
// File: internal/stakepool/liquidity_state.go
// =============================
package stakepool

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// LiquidityPoolStateSize is the allocation of the liquidity pool record.
const LiquidityPoolStateSize = 130

// LiquidityPoolState binds a liquidity pool to its stake pool. The LP mint
// and both reserves are controlled by the derived liquidity authority.
type LiquidityPoolState struct {
	Version       uint8
	StakePool     solana.PublicKey
	AuthorityBump uint8
	LPMint        solana.PublicKey
	AssetReserve  solana.PublicKey
	ShareReserve  solana.PublicKey
}

func (s *LiquidityPoolState) IsInitialized() bool {
	return s.Version > 0
}

// CheckAuthority verifies the liquidity authority of the pool at key.
func (s *LiquidityPoolState) CheckAuthority(candidate, programID, key solana.PublicKey) error {
	return CheckAuthority(candidate, programID, key, RoleLiquidity, s.AuthorityBump)
}

func (s *LiquidityPoolState) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint8(s.Version); err != nil {
		return err
	}
	if err := enc.WriteBytes(s.StakePool[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint8(s.AuthorityBump); err != nil {
		return err
	}
	for _, key := range []solana.PublicKey{s.LPMint, s.AssetReserve, s.ShareReserve} {
		if err := enc.WriteBytes(key[:], false); err != nil {
			return err
		}
	}
	return nil
}

func (s *LiquidityPoolState) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if s.Version, err = dec.ReadUint8(); err != nil {
		return err
	}
	if s.StakePool, err = readKey(dec); err != nil {
		return err
	}
	if s.AuthorityBump, err = dec.ReadUint8(); err != nil {
		return err
	}
	for _, key := range []*solana.PublicKey{&s.LPMint, &s.AssetReserve, &s.ShareReserve} {
		if *key, err = readKey(dec); err != nil {
			return err
		}
	}
	return nil
}

func DecodeLiquidityPoolState(data []byte) (*LiquidityPoolState, error) {
	if len(data) < LiquidityPoolStateSize {
		return nil, ErrInvalidState
	}
	s := new(LiquidityPoolState)
	if err := s.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, ErrInvalidState
	}
	return s, nil
}

func (s *LiquidityPoolState) EncodeTo(data []byte) error {
	if len(data) < LiquidityPoolStateSize {
		return ErrInvalidState
	}
	return encodeInto(data, s)
}
