// =============================
// File: internal/stakepool/processor_stake.go
// =============================
package stakepool

import (
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/ledger"
)

// processDeposit merges a user's delegated stake into the pool's stake
// account for the same validator and mints shares for it.
func (p *Processor) processDeposit(accounts []*ledger.AccountInfo) error {
	if err := requireAccounts(accounts, 13); err != nil {
		return err
	}
	poolInfo, listInfo, depositAuthority, withdrawAuthority := accounts[0], accounts[1], accounts[2], accounts[3]
	userStake, validatorStake, destInfo, feeInfo, mintInfo := accounts[4], accounts[5], accounts[6], accounts[7], accounts[8]
	clockInfo, historyInfo, tokenProgram, stakeProgram := accounts[9], accounts[10], accounts[11], accounts[12]

	if err := checkProgram(stakeProgram, p.stake.ProgramID()); err != nil {
		return err
	}
	pool, err := p.loadInitializedPool(poolInfo)
	if err != nil {
		return err
	}
	clock, err := readClock(clockInfo)
	if err != nil {
		return err
	}
	if err := p.checkActivation(userStake, clock); err != nil {
		return err
	}
	if err := pool.CheckAuthorityWithdraw(withdrawAuthority.Key, p.programID, poolInfo.Key); err != nil {
		return err
	}
	if err := pool.CheckAuthorityDeposit(depositAuthority.Key, p.programID, poolInfo.Key); err != nil {
		return err
	}
	if feeInfo.Key != pool.OwnerFeeAccount {
		return ErrInvalidFeeAccount
	}
	if err := checkProgram(tokenProgram, pool.TokenProgramID); err != nil {
		return err
	}
	if mintInfo.Key != pool.PoolMint {
		return ErrWrongPoolMint
	}
	if listInfo.Key != pool.ValidatorList {
		return ErrInvalidValidatorStakeList
	}
	if err := checkPoolCurrent(pool, clock); err != nil {
		return err
	}
	list, err := p.loadPoolList(pool, listInfo)
	if err != nil {
		return err
	}

	validator, err := p.poolValidatorStake(validatorStake, poolInfo.Key)
	if err != nil {
		return err
	}
	entry := list.Find(validator)
	if entry == nil {
		return ErrValidatorNotFound
	}

	stakeLamports := userStake.Lamports
	poolAmount, err := pool.StakeToShares(stakeLamports)
	if err != nil {
		return err
	}
	feeAmount, err := pool.FeeAmount(poolAmount)
	if err != nil {
		return err
	}
	userAmount, err := checkedSub(poolAmount, feeAmount)
	if err != nil {
		return err
	}

	depositProof := authorityProof(p.programID, poolInfo.Key, RoleDeposit, pool.DepositBumpSeed)
	if err := p.handoff(userStake, clockInfo, depositAuthority, withdrawAuthority.Key, depositProof); err != nil {
		return err
	}
	withdrawProof := authorityProof(p.programID, poolInfo.Key, RoleWithdraw, pool.WithdrawBumpSeed)
	if err := p.stake.Merge(validatorStake, userStake, clockInfo, historyInfo, withdrawAuthority, withdrawProof); err != nil {
		return err
	}

	if err := p.token.MintTo(mintInfo, destInfo, withdrawAuthority, userAmount, withdrawProof); err != nil {
		return err
	}
	if feeAmount > 0 {
		if err := p.token.MintTo(mintInfo, feeInfo, withdrawAuthority, feeAmount, withdrawProof); err != nil {
			return err
		}
	}

	if pool.PoolTotal, err = checkedAdd(pool.PoolTotal, poolAmount); err != nil {
		return err
	}
	if pool.StakeTotal, err = checkedAdd(pool.StakeTotal, stakeLamports); err != nil {
		return err
	}
	entry.Balance = validatorStake.Lamports

	p.logger.Debug("Stake deposited",
		zap.Stringer("validator", validator),
		zap.Uint64("stake_lamports", stakeLamports),
		zap.Uint64("pool_amount", poolAmount),
		zap.Uint64("fee_amount", feeAmount))
	if err := list.EncodeTo(listInfo.Data); err != nil {
		return err
	}
	return pool.EncodeTo(poolInfo.Data)
}

// processWithdraw splits stake worth amount shares off a validator's pool
// stake account, gives it to the user and burns the shares.
func (p *Processor) processWithdraw(accounts []*ledger.AccountInfo, amount uint64) error {
	if err := requireAccounts(accounts, 11); err != nil {
		return err
	}
	poolInfo, listInfo, withdrawAuthority := accounts[0], accounts[1], accounts[2]
	splitFrom, splitTo, userAuthority := accounts[3], accounts[4], accounts[5]
	burnFrom, mintInfo, clockInfo := accounts[6], accounts[7], accounts[8]
	tokenProgram, stakeProgram := accounts[9], accounts[10]

	if err := checkProgram(stakeProgram, p.stake.ProgramID()); err != nil {
		return err
	}
	pool, err := p.loadInitializedPool(poolInfo)
	if err != nil {
		return err
	}
	if err := pool.CheckAuthorityWithdraw(withdrawAuthority.Key, p.programID, poolInfo.Key); err != nil {
		return err
	}
	if err := checkProgram(tokenProgram, pool.TokenProgramID); err != nil {
		return err
	}
	if mintInfo.Key != pool.PoolMint {
		return ErrWrongPoolMint
	}
	if listInfo.Key != pool.ValidatorList {
		return ErrInvalidValidatorStakeList
	}
	clock, err := readClock(clockInfo)
	if err != nil {
		return err
	}
	if err := checkPoolCurrent(pool, clock); err != nil {
		return err
	}
	list, err := p.loadPoolList(pool, listInfo)
	if err != nil {
		return err
	}

	validator, err := p.poolValidatorStake(splitFrom, poolInfo.Key)
	if err != nil {
		return err
	}
	entry := list.Find(validator)
	if entry == nil {
		return ErrValidatorNotFound
	}

	stakeAmount, err := pool.SharesToStake(amount)
	if err != nil {
		return err
	}

	withdrawProof := authorityProof(p.programID, poolInfo.Key, RoleWithdraw, pool.WithdrawBumpSeed)
	if err := p.stake.Split(splitFrom, splitTo, withdrawAuthority, stakeAmount, withdrawProof); err != nil {
		return err
	}
	if err := p.handoff(splitTo, clockInfo, withdrawAuthority, userAuthority.Key, withdrawProof); err != nil {
		return err
	}
	if err := p.token.Burn(burnFrom, mintInfo, withdrawAuthority, amount, withdrawProof); err != nil {
		return err
	}

	if pool.PoolTotal, err = checkedSub(pool.PoolTotal, amount); err != nil {
		return err
	}
	if pool.StakeTotal, err = checkedSub(pool.StakeTotal, stakeAmount); err != nil {
		return err
	}
	entry.Balance = splitFrom.Lamports

	p.logger.Debug("Stake withdrawn",
		zap.Stringer("validator", validator),
		zap.Uint64("shares_burned", amount),
		zap.Uint64("stake_lamports", stakeAmount),
		zap.Stringer("recipient", userAuthority.Key))
	if err := list.EncodeTo(listInfo.Data); err != nil {
		return err
	}
	return pool.EncodeTo(poolInfo.Data)
}
