// internal/ledger/sysvar.go
package ledger

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	binutil "github.com/rovshanmuradov/metapool/internal/utils/binary"
)

const (
	ClockSize = 40
	RentSize  = 17

	// AccountStorageOverhead is charged on top of the data length for rent.
	AccountStorageOverhead = 128

	stakeHistoryEntrySize = 32
)

// Clock mirrors the clock sysvar.
type Clock struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

func (c Clock) Bytes() []byte {
	data := make([]byte, ClockSize)
	binutil.WriteUint64LittleEndian(c.Slot, data, 0)
	binutil.WriteInt64LittleEndian(c.EpochStartTimestamp, data, 8)
	binutil.WriteUint64LittleEndian(c.Epoch, data, 16)
	binutil.WriteUint64LittleEndian(c.LeaderScheduleEpoch, data, 24)
	binutil.WriteInt64LittleEndian(c.UnixTimestamp, data, 32)
	return data
}

// ParseClock decodes clock sysvar data.
func ParseClock(data []byte) (Clock, error) {
	if err := binutil.CheckLen(data, 0, ClockSize); err != nil {
		return Clock{}, fmt.Errorf("%w: clock: %v", ErrInvalidSysvar, err)
	}
	return Clock{
		Slot:                binutil.ReadUint64LittleEndian(data, 0),
		EpochStartTimestamp: binutil.ReadInt64LittleEndian(data, 8),
		Epoch:               binutil.ReadUint64LittleEndian(data, 16),
		LeaderScheduleEpoch: binutil.ReadUint64LittleEndian(data, 24),
		UnixTimestamp:       binutil.ReadInt64LittleEndian(data, 32),
	}, nil
}

// ClockFrom checks the handle is the clock sysvar and decodes it.
func ClockFrom(info *AccountInfo) (Clock, error) {
	if info.Key != solana.SysVarClockPubkey {
		return Clock{}, fmt.Errorf("%w: %s is not the clock", ErrInvalidSysvar, info.Key)
	}
	return ParseClock(info.Data)
}

// Rent mirrors the rent sysvar.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

// DefaultRent returns the mainnet rent parameters.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionThreshold: 2.0, BurnPercent: 50}
}

// MinimumBalance is the rent-exempt balance for an account holding dataLen bytes.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	bytesYear := uint64(AccountStorageOverhead+dataLen) * r.LamportsPerByteYear
	return uint64(float64(bytesYear) * r.ExemptionThreshold)
}

func (r Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}

func (r Rent) Bytes() []byte {
	data := make([]byte, RentSize)
	binutil.WriteUint64LittleEndian(r.LamportsPerByteYear, data, 0)
	binutil.WriteFloat64LittleEndian(r.ExemptionThreshold, data, 8)
	binutil.WriteUint8(r.BurnPercent, data, 16)
	return data
}

func ParseRent(data []byte) (Rent, error) {
	if err := binutil.CheckLen(data, 0, RentSize); err != nil {
		return Rent{}, fmt.Errorf("%w: rent: %v", ErrInvalidSysvar, err)
	}
	return Rent{
		LamportsPerByteYear: binutil.ReadUint64LittleEndian(data, 0),
		ExemptionThreshold:  binutil.ReadFloat64LittleEndian(data, 8),
		BurnPercent:         binutil.ReadUint8(data, 16),
	}, nil
}

// RentFrom checks the handle is the rent sysvar and decodes it.
func RentFrom(info *AccountInfo) (Rent, error) {
	if info.Key != solana.SysVarRentPubkey {
		return Rent{}, fmt.Errorf("%w: %s is not rent", ErrInvalidSysvar, info.Key)
	}
	return ParseRent(info.Data)
}

// StakeHistoryEntry is the cluster-wide stake summary for one epoch.
type StakeHistoryEntry struct {
	Epoch        uint64
	Effective    uint64
	Activating   uint64
	Deactivating uint64
}

// StakeHistory is kept newest first.
type StakeHistory []StakeHistoryEntry

func (h StakeHistory) Bytes() []byte {
	data := make([]byte, 8+len(h)*stakeHistoryEntrySize)
	binutil.WriteUint64LittleEndian(uint64(len(h)), data, 0)
	for i, e := range h {
		off := 8 + i*stakeHistoryEntrySize
		binutil.WriteUint64LittleEndian(e.Epoch, data, off)
		binutil.WriteUint64LittleEndian(e.Effective, data, off+8)
		binutil.WriteUint64LittleEndian(e.Activating, data, off+16)
		binutil.WriteUint64LittleEndian(e.Deactivating, data, off+24)
	}
	return data
}

func ParseStakeHistory(data []byte) (StakeHistory, error) {
	if err := binutil.CheckLen(data, 0, 8); err != nil {
		return nil, fmt.Errorf("%w: stake history: %v", ErrInvalidSysvar, err)
	}
	n := binutil.ReadUint64LittleEndian(data, 0)
	if err := binutil.CheckLen(data, 8, int(n)*stakeHistoryEntrySize); err != nil {
		return nil, fmt.Errorf("%w: stake history: %v", ErrInvalidSysvar, err)
	}
	h := make(StakeHistory, n)
	for i := range h {
		off := 8 + i*stakeHistoryEntrySize
		h[i] = StakeHistoryEntry{
			Epoch:        binutil.ReadUint64LittleEndian(data, off),
			Effective:    binutil.ReadUint64LittleEndian(data, off+8),
			Activating:   binutil.ReadUint64LittleEndian(data, off+16),
			Deactivating: binutil.ReadUint64LittleEndian(data, off+24),
		}
	}
	return h, nil
}

// StakeHistoryFrom checks the handle is the stake history sysvar and decodes it.
func StakeHistoryFrom(info *AccountInfo) (StakeHistory, error) {
	if info.Key != solana.SysVarStakeHistoryPubkey {
		return nil, fmt.Errorf("%w: %s is not stake history", ErrInvalidSysvar, info.Key)
	}
	return ParseStakeHistory(info.Data)
}
