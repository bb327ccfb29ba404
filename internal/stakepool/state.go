// =============================
// File: internal/stakepool/state.go
// =============================
package stakepool

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/metapool/internal/ledger"
)

// PoolStateSize is the allocation of the pool record.
const PoolStateSize = 203

// StateVersion marks initialized pool, list and liquidity records.
const StateVersion uint8 = 1

// PoolState is the authoritative record of a stake pool.
type PoolState struct {
	Version          uint8
	Owner            solana.PublicKey
	DepositBumpSeed  uint8
	WithdrawBumpSeed uint8
	ValidatorList    solana.PublicKey
	PoolMint         solana.PublicKey
	OwnerFeeAccount  solana.PublicKey
	TokenProgramID   solana.PublicKey
	PoolTotal        uint64
	StakeTotal       uint64
	LastUpdateEpoch  uint64
	Fee              Fee
}

func (s *PoolState) IsInitialized() bool {
	return s.Version > 0
}

// CheckOwner requires the stored owner to have signed.
func (s *PoolState) CheckOwner(owner *ledger.AccountInfo) error {
	if owner.Key != s.Owner {
		return ErrWrongOwner
	}
	if !owner.IsSigner {
		return ErrSignatureMissing
	}
	return nil
}

func (s *PoolState) CheckAuthorityDeposit(candidate, programID, pool solana.PublicKey) error {
	return CheckAuthority(candidate, programID, pool, RoleDeposit, s.DepositBumpSeed)
}

func (s *PoolState) CheckAuthorityWithdraw(candidate, programID, pool solana.PublicKey) error {
	return CheckAuthority(candidate, programID, pool, RoleWithdraw, s.WithdrawBumpSeed)
}

// StakeToShares converts native value into pool shares at the current rate.
func (s *PoolState) StakeToShares(stake uint64) (uint64, error) {
	return proportional(stake, s.PoolTotal, s.StakeTotal)
}

// SharesToStake converts pool shares into native value at the current rate.
func (s *PoolState) SharesToStake(shares uint64) (uint64, error) {
	return proportional(shares, s.StakeTotal, s.PoolTotal)
}

// FeeAmount is the owner's cut of a share amount.
func (s *PoolState) FeeAmount(shares uint64) (uint64, error) {
	return s.Fee.Apply(shares)
}

func (s *PoolState) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint8(s.Version); err != nil {
		return err
	}
	if err := enc.WriteBytes(s.Owner[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint8(s.DepositBumpSeed); err != nil {
		return err
	}
	if err := enc.WriteUint8(s.WithdrawBumpSeed); err != nil {
		return err
	}
	for _, key := range []solana.PublicKey{s.ValidatorList, s.PoolMint, s.OwnerFeeAccount, s.TokenProgramID} {
		if err := enc.WriteBytes(key[:], false); err != nil {
			return err
		}
	}
	for _, v := range []uint64{s.PoolTotal, s.StakeTotal, s.LastUpdateEpoch, s.Fee.Numerator, s.Fee.Denominator} {
		if err := enc.WriteUint64(v, bin.LE); err != nil {
			return err
		}
	}
	return nil
}

func (s *PoolState) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if s.Version, err = dec.ReadUint8(); err != nil {
		return err
	}
	if s.Owner, err = readKey(dec); err != nil {
		return err
	}
	if s.DepositBumpSeed, err = dec.ReadUint8(); err != nil {
		return err
	}
	if s.WithdrawBumpSeed, err = dec.ReadUint8(); err != nil {
		return err
	}
	for _, key := range []*solana.PublicKey{&s.ValidatorList, &s.PoolMint, &s.OwnerFeeAccount, &s.TokenProgramID} {
		if *key, err = readKey(dec); err != nil {
			return err
		}
	}
	for _, v := range []*uint64{&s.PoolTotal, &s.StakeTotal, &s.LastUpdateEpoch, &s.Fee.Numerator, &s.Fee.Denominator} {
		if *v, err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
	}
	return nil
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

// DecodePoolState parses a pool record. Short data is ErrInvalidState.
func DecodePoolState(data []byte) (*PoolState, error) {
	if len(data) < PoolStateSize {
		return nil, ErrInvalidState
	}
	s := new(PoolState)
	if err := s.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, ErrInvalidState
	}
	return s, nil
}

// EncodeTo writes the record into the front of data.
func (s *PoolState) EncodeTo(data []byte) error {
	if len(data) < PoolStateSize {
		return ErrInvalidState
	}
	return encodeInto(data, s)
}

type encoder interface {
	MarshalWithEncoder(enc *bin.Encoder) error
}

func encodeInto(data []byte, v encoder) error {
	buf := bytes.NewBuffer(make([]byte, 0, len(data)))
	if err := v.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return err
	}
	if buf.Len() > len(data) {
		return ErrInvalidState
	}
	copy(data, buf.Bytes())
	return nil
}
