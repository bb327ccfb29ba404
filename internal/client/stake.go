// internal/client/stake.go
package client

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	stakeprog "github.com/gagliardetto/solana-go/programs/stake"
	sysprog "github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/rovshanmuradov/metapool/internal/ledger"
	"github.com/rovshanmuradov/metapool/internal/programs/stake"
	"github.com/rovshanmuradov/metapool/internal/stakepool"
)

// Authorities are the pool's derived deposit and withdraw authorities.
type Authorities struct {
	Deposit  solana.PublicKey
	Withdraw solana.PublicKey
}

// PoolAuthorities recomputes both authorities from the stored bumps.
func PoolAuthorities(programID, pool solana.PublicKey, state *stakepool.PoolState) (Authorities, error) {
	deposit, err := stakepool.AuthorityAddress(programID, pool, stakepool.RoleDeposit, state.DepositBumpSeed)
	if err != nil {
		return Authorities{}, fmt.Errorf("deposit authority: %w", err)
	}
	withdraw, err := stakepool.AuthorityAddress(programID, pool, stakepool.RoleWithdraw, state.WithdrawBumpSeed)
	if err != nil {
		return Authorities{}, fmt.Errorf("withdraw authority: %w", err)
	}
	return Authorities{Deposit: deposit, Withdraw: withdraw}, nil
}

// StakeReserve is the balance a fresh stake account is created with.
func StakeReserve(rent ledger.Rent) uint64 {
	return rent.MinimumBalance(stake.StateSize)
}

// CreateValidatorStakeInstructions creates the pool's stake account for vote
// with authority as staker and withdrawer, tops it up to lamports and
// delegates it. Authority must sign.
func CreateValidatorStakeInstructions(programID solana.PublicKey, rent ledger.Rent, pool, payer, authority, vote solana.PublicKey, lamports uint64) ([]solana.Instruction, solana.PublicKey, error) {
	stakeAccount, _, err := stakepool.ValidatorStakeAddress(programID, vote, pool)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive stake account for %s: %w", vote, err)
	}
	// процессор заводит аккаунт с резервом + 1 лампорт
	created := 1 + StakeReserve(rent)
	if lamports < created {
		return nil, solana.PublicKey{}, fmt.Errorf("validator stake needs at least %s SOL", LamportsToSOL(created))
	}

	create, err := stakepool.NewCreateValidatorStakeAccountInstruction(programID, pool, payer, vote, authority, authority)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	ixs := []solana.Instruction{create}
	if lamports > created {
		ixs = append(ixs, sysprog.NewTransferInstruction(lamports-created, payer, stakeAccount).Build())
	}
	ixs = append(ixs, stake.NewDelegateStakeInstruction(vote, authority, stakeAccount))
	return ixs, stakeAccount, nil
}

// CreateStakeInstructions creates a delegated stake account holding lamports
// with authority as staker and withdrawer. The account key must sign.
func CreateStakeInstructions(rent ledger.Rent, payer, account, authority, vote solana.PublicKey, lamports uint64) ([]solana.Instruction, error) {
	if lamports <= StakeReserve(rent) {
		return nil, fmt.Errorf("stake of %s SOL does not cover the %s SOL reserve",
			LamportsToSOL(lamports), LamportsToSOL(StakeReserve(rent)))
	}
	return []solana.Instruction{
		sysprog.NewCreateAccountInstruction(lamports, stake.StateSize, solana.StakeProgramID, payer, account).Build(),
		stakeprog.NewInitializeInstruction(authority, authority, account).Build(),
		stake.NewDelegateStakeInstruction(vote, authority, account),
	}, nil
}

// handToDeposit moves both authorities of stakeAccount from holder to the
// pool deposit authority, withdrawer first.
func handToDeposit(stakeAccount, holder solana.PublicKey, auth Authorities) []solana.Instruction {
	return []solana.Instruction{
		stake.NewAuthorizeInstruction(stakeAccount, holder, auth.Deposit, stake.AuthorizeWithdrawer),
		stake.NewAuthorizeInstruction(stakeAccount, holder, auth.Deposit, stake.AuthorizeStaker),
	}
}

// AddValidatorInstructions hands a delegated validator stake account held by
// owner to the pool and credits the minted shares to receiver.
func AddValidatorInstructions(snap *Snapshot, owner, stakeAccount, receiver solana.PublicKey) ([]solana.Instruction, error) {
	auth, err := PoolAuthorities(snap.ProgramID, snap.Address, snap.Pool)
	if err != nil {
		return nil, err
	}
	ixs := handToDeposit(stakeAccount, owner, auth)
	ixs = append(ixs, stakepool.NewAddValidatorStakeAccountInstruction(snap.ProgramID, stakepool.AddValidatorParams{
		Pool:              snap.Address,
		Owner:             owner,
		DepositAuthority:  auth.Deposit,
		WithdrawAuthority: auth.Withdraw,
		ValidatorList:     snap.Pool.ValidatorList,
		StakeAccount:      stakeAccount,
		PoolTokenReceiver: receiver,
		PoolMint:          snap.Pool.PoolMint,
	}))
	return ixs, nil
}

// RemoveValidatorInstructions approves the burn of the shares backing
// lamports from burnFrom and removes the validator, handing its stake account
// to newAuthority. Owner must sign and hold burnFrom.
func RemoveValidatorInstructions(snap *Snapshot, owner, stakeAccount, burnFrom, newAuthority solana.PublicKey, lamports uint64) ([]solana.Instruction, uint64, error) {
	auth, err := PoolAuthorities(snap.ProgramID, snap.Address, snap.Pool)
	if err != nil {
		return nil, 0, err
	}
	shares, err := snap.Pool.StakeToShares(lamports)
	if err != nil {
		return nil, 0, err
	}
	return []solana.Instruction{
		token.NewApproveInstruction(shares, burnFrom, auth.Withdraw, owner, nil).Build(),
		stakepool.NewRemoveValidatorStakeAccountInstruction(snap.ProgramID, stakepool.RemoveValidatorParams{
			Pool:              snap.Address,
			Owner:             owner,
			WithdrawAuthority: auth.Withdraw,
			NewStakeAuthority: newAuthority,
			ValidatorList:     snap.Pool.ValidatorList,
			StakeAccount:      stakeAccount,
			BurnFrom:          burnFrom,
			PoolMint:          snap.Pool.PoolMint,
		}),
	}, shares, nil
}

// DepositInstructions hands userStake from holder to the pool and merges it
// into the pool's stake account for validator.
func DepositInstructions(snap *Snapshot, holder, userStake, validator, receiver solana.PublicKey) ([]solana.Instruction, error) {
	if !snap.List.Contains(validator) {
		return nil, fmt.Errorf("validator %s: %w", validator, stakepool.ErrValidatorNotFound)
	}
	auth, err := PoolAuthorities(snap.ProgramID, snap.Address, snap.Pool)
	if err != nil {
		return nil, err
	}
	validatorStake, _, err := stakepool.ValidatorStakeAddress(snap.ProgramID, validator, snap.Address)
	if err != nil {
		return nil, err
	}
	ixs := handToDeposit(userStake, holder, auth)
	ixs = append(ixs, stakepool.NewDepositInstruction(snap.ProgramID, stakepool.DepositParams{
		Pool:              snap.Address,
		ValidatorList:     snap.Pool.ValidatorList,
		DepositAuthority:  auth.Deposit,
		WithdrawAuthority: auth.Withdraw,
		UserStake:         userStake,
		ValidatorStake:    validatorStake,
		PoolTokenReceiver: receiver,
		OwnerFeeAccount:   snap.Pool.OwnerFeeAccount,
		PoolMint:          snap.Pool.PoolMint,
	}))
	return ixs, nil
}

// WithdrawPlan is a ready withdrawal: the instructions, the fresh stake
// accounts that receive the split stake (they must sign) and the shares
// burned for each leg.
type WithdrawPlan struct {
	Instructions []solana.Instruction
	Receivers    []solana.PrivateKey
	Legs         []WithdrawAccount
	Shares       []uint64
}

// PlanWithdraw burns shares from burnFrom (held by holder) and splits their
// stake off the largest pool accounts into fresh stake accounts handed to
// recipient. Every pool account keeps minBalance.
func PlanWithdraw(snap *Snapshot, rent ledger.Rent, payer, holder, burnFrom, recipient solana.PublicKey, shares, minBalance uint64) (*WithdrawPlan, error) {
	if shares == 0 {
		return nil, stakepool.ErrZeroAmount
	}
	auth, err := PoolAuthorities(snap.ProgramID, snap.Address, snap.Pool)
	if err != nil {
		return nil, err
	}
	lamports, err := snap.Pool.SharesToStake(shares)
	if err != nil {
		return nil, err
	}
	legs, err := snap.PickWithdrawAccounts(lamports, minBalance)
	if err != nil {
		return nil, err
	}

	plan := &WithdrawPlan{
		Instructions: []solana.Instruction{
			token.NewApproveInstruction(shares, burnFrom, auth.Withdraw, holder, nil).Build(),
		},
		Legs: legs,
	}
	burned := uint64(0)
	for i, leg := range legs {
		legShares := shares - burned
		if i < len(legs)-1 {
			if legShares, err = snap.Pool.StakeToShares(leg.Amount); err != nil {
				return nil, err
			}
		}
		if legShares == 0 {
			continue
		}
		burned += legShares

		receiver := solana.NewWallet().PrivateKey
		plan.Receivers = append(plan.Receivers, receiver)
		plan.Shares = append(plan.Shares, legShares)
		plan.Instructions = append(plan.Instructions,
			sysprog.NewCreateAccountInstruction(StakeReserve(rent), stake.StateSize, solana.StakeProgramID,
				payer, receiver.PublicKey()).Build(),
			stakepool.NewWithdrawInstruction(snap.ProgramID, stakepool.WithdrawParams{
				Pool:               snap.Address,
				ValidatorList:      snap.Pool.ValidatorList,
				WithdrawAuthority:  auth.Withdraw,
				StakeSplitFrom:     leg.Address,
				StakeSplitTo:       receiver.PublicKey(),
				UserStakeAuthority: recipient,
				BurnFrom:           burnFrom,
				PoolMint:           snap.Pool.PoolMint,
				Amount:             legShares,
			}),
		)
	}
	return plan, nil
}

// SetStakingAuthorityInstruction hands the staker of a pool stake account to
// newStaker. Owner must sign.
func SetStakingAuthorityInstruction(snap *Snapshot, owner, stakeAccount, newStaker solana.PublicKey) (solana.Instruction, error) {
	auth, err := PoolAuthorities(snap.ProgramID, snap.Address, snap.Pool)
	if err != nil {
		return nil, err
	}
	return stakepool.NewSetStakingAuthorityInstruction(snap.ProgramID, snap.Address, owner, auth.Withdraw, stakeAccount, newStaker), nil
}
