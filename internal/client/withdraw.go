// internal/client/withdraw.go
package client

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
)

var ErrInsufficientStake = errors.New("not enough stake in pool accounts")

// StakeAccount is a pool stake account and its balance.
type StakeAccount struct {
	Validator solana.PublicKey
	Address   solana.PublicKey
	Lamports  uint64
}

// WithdrawAccount is one leg of a withdrawal plan.
type WithdrawAccount struct {
	StakeAccount
	Amount uint64
}

// PickWithdrawAccounts covers amount lamports from the largest accounts
// first. Accounts at or below minBalance are skipped and every account keeps
// minBalance.
func PickWithdrawAccounts(accounts []StakeAccount, amount, minBalance uint64) ([]WithdrawAccount, error) {
	sorted := make([]StakeAccount, len(accounts))
	copy(sorted, accounts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Lamports > sorted[j].Lamports })

	var picked []WithdrawAccount
	remaining := amount
	for _, acc := range sorted {
		if remaining == 0 {
			break
		}
		if acc.Lamports <= minBalance {
			continue
		}
		take := min(acc.Lamports-minBalance, remaining)
		picked = append(picked, WithdrawAccount{StakeAccount: acc, Amount: take})
		remaining -= take
	}

	if remaining > 0 {
		return nil, fmt.Errorf("%w: %s SOL short of %s SOL", ErrInsufficientStake,
			LamportsToSOL(remaining), LamportsToSOL(amount))
	}
	return picked, nil
}
