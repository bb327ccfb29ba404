// internal/programs/stake/state.go
package stake

import (
	"bytes"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// StateSize is the allocation of every stake account.
const StateSize = 200

// DefaultWarmupCooldownRate is stored in new delegations.
const DefaultWarmupCooldownRate = 0.25

// Статусы состояния стейк-аккаунта
const (
	StatusUninitialized uint32 = iota
	StatusInitialized
	StatusStake
	StatusRewardsPool
)

// Authorize selects which authority an Authorize instruction replaces.
type Authorize uint32

const (
	AuthorizeStaker Authorize = iota
	AuthorizeWithdrawer
)

func (a Authorize) String() string {
	switch a {
	case AuthorizeStaker:
		return "staker"
	case AuthorizeWithdrawer:
		return "withdrawer"
	}
	return fmt.Sprintf("authorize(%d)", uint32(a))
}

type Authorized struct {
	Staker     solana.PublicKey
	Withdrawer solana.PublicKey
}

type Lockup struct {
	UnixTimestamp int64
	Epoch         uint64
	Custodian     solana.PublicKey
}

// InForce reports whether withdrawer changes are still locked.
func (l Lockup) InForce(unixTimestamp int64, epoch uint64) bool {
	return l.UnixTimestamp > unixTimestamp || l.Epoch > epoch
}

type Meta struct {
	RentExemptReserve uint64
	Authorized        Authorized
	Lockup            Lockup
}

type Delegation struct {
	VoterPubkey        solana.PublicKey
	StakeLamports      uint64
	ActivationEpoch    uint64
	DeactivationEpoch  uint64
	WarmupCooldownRate float64
}

// IsDeactivating is true once Deactivate has been called.
func (d Delegation) IsDeactivating() bool {
	return d.DeactivationEpoch != math.MaxUint64
}

type Stake struct {
	Delegation      Delegation
	CreditsObserved uint64
}

// State is the tagged union stored in a stake account. Meta is meaningful
// for Initialized and Stake, Stake only for StatusStake.
type State struct {
	Status uint32
	Meta   Meta
	Stake  Stake
	Flags  uint8
}

func (s *State) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint32(s.Status, bin.LE); err != nil {
		return err
	}
	if s.Status != StatusInitialized && s.Status != StatusStake {
		return nil
	}
	m := s.Meta
	if err := enc.WriteUint64(m.RentExemptReserve, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteBytes(m.Authorized.Staker[:], false); err != nil {
		return err
	}
	if err := enc.WriteBytes(m.Authorized.Withdrawer[:], false); err != nil {
		return err
	}
	if err := enc.WriteInt64(m.Lockup.UnixTimestamp, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint64(m.Lockup.Epoch, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteBytes(m.Lockup.Custodian[:], false); err != nil {
		return err
	}
	if s.Status != StatusStake {
		return nil
	}

	d := s.Stake.Delegation
	if err := enc.WriteBytes(d.VoterPubkey[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint64(d.StakeLamports, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint64(d.ActivationEpoch, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint64(d.DeactivationEpoch, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteFloat64(d.WarmupCooldownRate, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint64(s.Stake.CreditsObserved, bin.LE); err != nil {
		return err
	}
	return enc.WriteUint8(s.Flags)
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

func (s *State) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if s.Status, err = dec.ReadUint32(bin.LE); err != nil {
		return err
	}
	switch s.Status {
	case StatusUninitialized, StatusRewardsPool:
		return nil
	case StatusInitialized, StatusStake:
	default:
		return fmt.Errorf("unknown stake state %d", s.Status)
	}

	m := &s.Meta
	if m.RentExemptReserve, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if m.Authorized.Staker, err = readKey(dec); err != nil {
		return err
	}
	if m.Authorized.Withdrawer, err = readKey(dec); err != nil {
		return err
	}
	if m.Lockup.UnixTimestamp, err = dec.ReadInt64(bin.LE); err != nil {
		return err
	}
	if m.Lockup.Epoch, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if m.Lockup.Custodian, err = readKey(dec); err != nil {
		return err
	}
	if s.Status != StatusStake {
		return nil
	}

	d := &s.Stake.Delegation
	if d.VoterPubkey, err = readKey(dec); err != nil {
		return err
	}
	if d.StakeLamports, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if d.ActivationEpoch, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if d.DeactivationEpoch, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if d.WarmupCooldownRate, err = dec.ReadFloat64(bin.LE); err != nil {
		return err
	}
	if s.Stake.CreditsObserved, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	s.Flags, err = dec.ReadUint8()
	return err
}

// DecodeState parses stake account data.
func DecodeState(data []byte) (*State, error) {
	if len(data) != StateSize {
		return nil, fmt.Errorf("%w: stake data is %d bytes", ErrInvalidAccountData, len(data))
	}
	s := new(State)
	if err := s.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return s, nil
}

// EncodeState serializes s into a zero-padded StateSize buffer.
func EncodeState(s *State) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := s.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	out := make([]byte, StateSize)
	copy(out, buf.Bytes())
	return out, nil
}
