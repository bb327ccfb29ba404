// internal/client/estimate.go
package client

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL количество лампортов в одном SOL
const LamportsPerSOL = 1_000_000_000

var lamportsPerSOL = decimal.NewFromInt(LamportsPerSOL)

// LamportsToSOL переводит лампорты в SOL без потери точности
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(lamportsPerSOL)
}

// SOLToLamports разбирает строку вида "1.5" в лампорты
func SOLToLamports(sol string) (uint64, error) {
	d, err := decimal.NewFromString(sol)
	if err != nil {
		return 0, fmt.Errorf("invalid SOL amount %q: %w", sol, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative SOL amount %q", sol)
	}
	lamports := d.Mul(lamportsPerSOL)
	if !lamports.IsInteger() {
		return 0, fmt.Errorf("SOL amount %q has more than 9 decimals", sol)
	}
	if !lamports.BigInt().IsUint64() {
		return 0, fmt.Errorf("SOL amount %q overflows", sol)
	}
	return lamports.BigInt().Uint64(), nil
}

// StakeToShares оценивает количество долей за lamports по текущему курсу
func (s *Snapshot) StakeToShares(lamports uint64) (uint64, error) {
	return s.Pool.StakeToShares(lamports)
}

// SharesToStake оценивает стоимость долей в лампортах
func (s *Snapshot) SharesToStake(shares uint64) (uint64, error) {
	return s.Pool.SharesToStake(shares)
}

// Rate возвращает стоимость одной доли в лампортах
func (s *Snapshot) Rate() decimal.Decimal {
	if s.Pool.PoolTotal == 0 {
		return decimal.NewFromInt(1)
	}
	stake := decimal.NewFromBigInt(new(big.Int).SetUint64(s.Pool.StakeTotal), 0)
	shares := decimal.NewFromBigInt(new(big.Int).SetUint64(s.Pool.PoolTotal), 0)
	return stake.DivRound(shares, 9)
}
