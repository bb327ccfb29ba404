// internal/client/accounts.go
package client

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/rovshanmuradov/metapool/internal/programs/stake"
	tokenprog "github.com/rovshanmuradov/metapool/internal/programs/token"
	"github.com/rovshanmuradov/metapool/internal/stakepool"
)

// LoadTokenAccount reads a token account owned by the token program.
func LoadTokenAccount(r Reader, key solana.PublicKey) (*token.Account, error) {
	acc, err := r.Account(key)
	if err != nil {
		return nil, fmt.Errorf("load token account %s: %w", key, err)
	}
	if acc.Owner != solana.TokenProgramID {
		return nil, fmt.Errorf("%s is not a token account: %w", key, stakepool.ErrIncorrectProgramID)
	}
	out, err := tokenprog.DecodeAccount(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("decode token account %s: %w", key, err)
	}
	return out, nil
}

// LoadMint reads a mint owned by the token program.
func LoadMint(r Reader, key solana.PublicKey) (*token.Mint, error) {
	acc, err := r.Account(key)
	if err != nil {
		return nil, fmt.Errorf("load mint %s: %w", key, err)
	}
	if acc.Owner != solana.TokenProgramID {
		return nil, fmt.Errorf("%s is not a mint: %w", key, stakepool.ErrIncorrectProgramID)
	}
	out, err := tokenprog.DecodeMint(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", key, err)
	}
	return out, nil
}

// LoadStakeState reads a stake account owned by the stake program.
func LoadStakeState(r Reader, key solana.PublicKey) (*stake.State, uint64, error) {
	acc, err := r.Account(key)
	if err != nil {
		return nil, 0, fmt.Errorf("load stake account %s: %w", key, err)
	}
	if acc.Owner != solana.StakeProgramID {
		return nil, 0, fmt.Errorf("%s is not a stake account: %w", key, stakepool.ErrIncorrectProgramID)
	}
	s, err := stake.DecodeState(acc.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("decode stake account %s: %w", key, err)
	}
	return s, acc.Lamports, nil
}

// DelegatedValidator returns the vote account a delegated stake account
// points at.
func DelegatedValidator(r Reader, key solana.PublicKey) (solana.PublicKey, uint64, error) {
	s, lamports, err := LoadStakeState(r, key)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	if s.Status != stake.StatusStake {
		return solana.PublicKey{}, 0, fmt.Errorf("stake account %s is not delegated: %w", key, stakepool.ErrWrongStakeState)
	}
	return s.Stake.Delegation.VoterPubkey, lamports, nil
}

// LiquidityPool is a liquidity pool record with its address and authority.
type LiquidityPool struct {
	Address   solana.PublicKey
	Authority solana.PublicKey
	State     *stakepool.LiquidityPoolState
}

// LoadLiquidityPool reads an initialized liquidity pool and recomputes its
// authority from the stored bump.
func LoadLiquidityPool(r Reader, programID, key solana.PublicKey) (*LiquidityPool, error) {
	acc, err := r.Account(key)
	if err != nil {
		return nil, fmt.Errorf("load liquidity pool %s: %w", key, err)
	}
	if acc.Owner != programID {
		return nil, fmt.Errorf("liquidity pool %s: %w", key, stakepool.ErrIncorrectProgramID)
	}
	state, err := stakepool.DecodeLiquidityPoolState(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("decode liquidity pool %s: %w", key, err)
	}
	if !state.IsInitialized() {
		return nil, fmt.Errorf("liquidity pool %s: %w", key, stakepool.ErrInvalidState)
	}
	authority, err := stakepool.AuthorityAddress(programID, key, stakepool.RoleLiquidity, state.AuthorityBump)
	if err != nil {
		return nil, err
	}
	return &LiquidityPool{Address: key, Authority: authority, State: state}, nil
}
