// =============================
// File: internal/stakepool/validator_list.go
// =============================
package stakepool

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	validatorListHeaderSize = 5
	validatorStakeInfoSize  = 48
)

// ValidatorListSize returns the allocation needed for capacity entries.
func ValidatorListSize(capacity int) int {
	return validatorListHeaderSize + capacity*validatorStakeInfoSize
}

// ValidatorStakeInfo tracks the pool's stake account for one validator.
type ValidatorStakeInfo struct {
	Validator       solana.PublicKey
	Balance         uint64
	LastUpdateEpoch uint64
}

// ValidatorList is a fixed-capacity arena of validator entries. Capacity is
// set by the size of the backing account.
type ValidatorList struct {
	Version    uint8
	Validators []ValidatorStakeInfo
	capacity   int
}

// NewValidatorList returns an initialized empty list.
func NewValidatorList(capacity int) *ValidatorList {
	return &ValidatorList{
		Version:    StateVersion,
		Validators: make([]ValidatorStakeInfo, 0, capacity),
		capacity:   capacity,
	}
}

func (l *ValidatorList) IsInitialized() bool {
	return l.Version > 0
}

func (l *ValidatorList) Capacity() int {
	return l.capacity
}

func (l *ValidatorList) Contains(validator solana.PublicKey) bool {
	return l.Find(validator) != nil
}

// Find returns a pointer into the list so callers can update the entry.
func (l *ValidatorList) Find(validator solana.PublicKey) *ValidatorStakeInfo {
	for i := range l.Validators {
		if l.Validators[i].Validator == validator {
			return &l.Validators[i]
		}
	}
	return nil
}

// Push appends an entry for a new validator.
func (l *ValidatorList) Push(info ValidatorStakeInfo) error {
	if l.Contains(info.Validator) {
		return ErrValidatorAlreadyAdded
	}
	if len(l.Validators) >= l.capacity {
		return ErrValidatorListFull
	}
	l.Validators = append(l.Validators, info)
	return nil
}

// Retain keeps the entries for which keep returns true, preserving order.
func (l *ValidatorList) Retain(keep func(ValidatorStakeInfo) bool) {
	out := l.Validators[:0]
	for _, v := range l.Validators {
		if keep(v) {
			out = append(out, v)
		}
	}
	l.Validators = out
}

// Refresh sets balance and epoch on entries older than epoch that have a
// balance in balances. It returns the number of entries changed.
func (l *ValidatorList) Refresh(epoch uint64, balances map[solana.PublicKey]uint64) int {
	changed := 0
	for i := range l.Validators {
		v := &l.Validators[i]
		if v.LastUpdateEpoch >= epoch {
			continue
		}
		balance, ok := balances[v.Validator]
		if !ok {
			continue
		}
		v.Balance = balance
		v.LastUpdateEpoch = epoch
		changed++
	}
	return changed
}

// Stale lists validators whose entries predate epoch.
func (l *ValidatorList) Stale(epoch uint64) []solana.PublicKey {
	var out []solana.PublicKey
	for _, v := range l.Validators {
		if v.LastUpdateEpoch < epoch {
			out = append(out, v.Validator)
		}
	}
	return out
}

func (l *ValidatorList) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint8(l.Version); err != nil {
		return err
	}
	if err := enc.WriteUint32(uint32(len(l.Validators)), bin.LE); err != nil {
		return err
	}
	for _, v := range l.Validators {
		if err := enc.WriteBytes(v.Validator[:], false); err != nil {
			return err
		}
		if err := enc.WriteUint64(v.Balance, bin.LE); err != nil {
			return err
		}
		if err := enc.WriteUint64(v.LastUpdateEpoch, bin.LE); err != nil {
			return err
		}
	}
	return nil
}

func (l *ValidatorList) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if l.Version, err = dec.ReadUint8(); err != nil {
		return err
	}
	count, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	if int(count) > l.capacity {
		return ErrInvalidValidatorStakeList
	}
	l.Validators = make([]ValidatorStakeInfo, count, l.capacity)
	for i := range l.Validators {
		v := &l.Validators[i]
		if v.Validator, err = readKey(dec); err != nil {
			return err
		}
		if v.Balance, err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
		if v.LastUpdateEpoch, err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
	}
	return nil
}

// DecodeValidatorList parses a list record; capacity follows from len(data).
func DecodeValidatorList(data []byte) (*ValidatorList, error) {
	if len(data) < validatorListHeaderSize {
		return nil, ErrInvalidValidatorStakeList
	}
	l := &ValidatorList{capacity: (len(data) - validatorListHeaderSize) / validatorStakeInfoSize}
	if err := l.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, ErrInvalidValidatorStakeList
	}
	return l, nil
}

// EncodeTo overwrites data with the list, zeroing unused slots.
func (l *ValidatorList) EncodeTo(data []byte) error {
	if ValidatorListSize(len(l.Validators)) > len(data) {
		return ErrValidatorListFull
	}
	clear(data)
	return encodeInto(data, l)
}
