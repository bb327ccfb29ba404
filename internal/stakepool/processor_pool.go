// =============================
// File: internal/stakepool/processor_pool.go
// =============================
package stakepool

import (
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/ledger"
	"github.com/rovshanmuradov/metapool/internal/programs/stake"
)

// processInitialize creates the pool and its empty validator list.
func (p *Processor) processInitialize(accounts []*ledger.AccountInfo, fee Fee) error {
	if err := requireAccounts(accounts, 8); err != nil {
		return err
	}
	poolInfo, owner, listInfo := accounts[0], accounts[1], accounts[2]
	mintInfo, feeInfo := accounts[3], accounts[4]
	clockInfo, rentInfo, tokenProgram := accounts[5], accounts[6], accounts[7]

	if !owner.IsSigner {
		return ErrSignatureMissing
	}
	pool, err := p.loadPool(poolInfo)
	if err != nil {
		return err
	}
	if pool.IsInitialized() {
		return ErrAlreadyInUse
	}
	list, err := p.loadList(listInfo)
	if err != nil {
		return err
	}
	if list.IsInitialized() {
		return ErrAlreadyInUse
	}

	rent, err := readRent(rentInfo)
	if err != nil {
		return err
	}
	if !rent.IsExempt(poolInfo.Lamports, poolInfo.DataLen()) || !rent.IsExempt(listInfo.Lamports, listInfo.DataLen()) {
		return ErrAccountNotRentExempt
	}
	if !fee.Valid() {
		return ErrFeeTooHigh
	}
	if err := checkProgram(tokenProgram, p.token.ProgramID()); err != nil {
		return err
	}
	if feeInfo.Owner != tokenProgram.Key {
		return ErrInvalidFeeAccount
	}
	if mintInfo.Owner != tokenProgram.Key {
		return ErrIncorrectProgramID
	}

	feeAccount, err := unpackTokenAccount(feeInfo, tokenProgram.Key)
	if err != nil {
		return err
	}
	if feeAccount.Mint != mintInfo.Key {
		return ErrWrongAccountMint
	}

	_, depositBump, err := DeriveAuthority(p.programID, poolInfo.Key, RoleDeposit)
	if err != nil {
		return ErrInvalidProgramAddress
	}
	withdrawAuthority, withdrawBump, err := DeriveAuthority(p.programID, poolInfo.Key, RoleWithdraw)
	if err != nil {
		return ErrInvalidProgramAddress
	}
	mint, err := unpackMint(mintInfo, tokenProgram.Key)
	if err != nil {
		return err
	}
	if mint.MintAuthority == nil || *mint.MintAuthority != withdrawAuthority {
		return ErrWrongMintingAuthority
	}

	clock, err := readClock(clockInfo)
	if err != nil {
		return err
	}

	list = NewValidatorList((listInfo.DataLen() - validatorListHeaderSize) / validatorStakeInfoSize)
	if err := list.EncodeTo(listInfo.Data); err != nil {
		return err
	}

	pool = &PoolState{
		Version:          StateVersion,
		Owner:            owner.Key,
		DepositBumpSeed:  depositBump,
		WithdrawBumpSeed: withdrawBump,
		ValidatorList:    listInfo.Key,
		PoolMint:         mintInfo.Key,
		OwnerFeeAccount:  feeInfo.Key,
		TokenProgramID:   tokenProgram.Key,
		LastUpdateEpoch:  clock.Epoch,
		Fee:              fee,
	}
	p.logger.Info("Stake pool initialized",
		zap.Stringer("pool", poolInfo.Key),
		zap.Stringer("owner", owner.Key),
		zap.Uint64("fee_numerator", fee.Numerator),
		zap.Uint64("fee_denominator", fee.Denominator),
		zap.Int("list_capacity", list.Capacity()))
	return pool.EncodeTo(poolInfo.Data)
}

// processCreateValidatorStakeAccount funds the derived (validator, pool)
// stake account and initializes it with the supplied authorities.
func (p *Processor) processCreateValidatorStakeAccount(accounts []*ledger.AccountInfo) error {
	if err := requireAccounts(accounts, 9); err != nil {
		return err
	}
	poolInfo, funder, stakeInfo, validator := accounts[0], accounts[1], accounts[2], accounts[3]
	stakeAuthority, withdrawAuthority := accounts[4], accounts[5]
	rentInfo, systemProgram, stakeProgram := accounts[6], accounts[7], accounts[8]

	if err := checkProgram(systemProgram, p.system.ProgramID()); err != nil {
		return err
	}
	if err := checkProgram(stakeProgram, p.stake.ProgramID()); err != nil {
		return err
	}

	expected, bump, err := ValidatorStakeAddress(p.programID, validator.Key, poolInfo.Key)
	if err != nil || expected != stakeInfo.Key {
		return ErrInvalidStakeAccountAddress
	}

	rent, err := readRent(rentInfo)
	if err != nil {
		return err
	}
	lamports := 1 + rent.MinimumBalance(stake.StateSize)
	proof := &ledger.AuthorityProof{
		ProgramID: p.programID,
		Seeds:     validatorStakeSeeds(validator.Key, poolInfo.Key),
		Bump:      bump,
	}
	if err := p.system.CreateAccount(funder, stakeInfo, lamports, stake.StateSize, p.stake.ProgramID(), proof); err != nil {
		return err
	}

	return p.stake.Initialize(stakeInfo, rentInfo, stake.Authorized{
		Staker:     stakeAuthority.Key,
		Withdrawer: withdrawAuthority.Key,
	}, stake.Lockup{})
}

// processAddValidatorStakeAccount takes over a delegated stake account and
// credits its value to the pool.
func (p *Processor) processAddValidatorStakeAccount(accounts []*ledger.AccountInfo) error {
	if err := requireAccounts(accounts, 12); err != nil {
		return err
	}
	poolInfo, owner, depositAuthority, withdrawAuthority := accounts[0], accounts[1], accounts[2], accounts[3]
	listInfo, stakeInfo, destInfo, mintInfo := accounts[4], accounts[5], accounts[6], accounts[7]
	clockInfo, tokenProgram, stakeProgram := accounts[8], accounts[10], accounts[11]

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
	if err := pool.CheckAuthorityDeposit(depositAuthority.Key, p.programID, poolInfo.Key); err != nil {
		return err
	}
	if err := pool.CheckOwner(owner); err != nil {
		return err
	}
	clock, err := readClock(clockInfo)
	if err != nil {
		return err
	}
	if err := checkPoolCurrent(pool, clock); err != nil {
		return err
	}
	if err := checkProgram(tokenProgram, pool.TokenProgramID); err != nil {
		return err
	}
	if mintInfo.Key != pool.PoolMint {
		return ErrWrongPoolMint
	}
	list, err := p.loadPoolList(pool, listInfo)
	if err != nil {
		return err
	}

	validator, err := p.poolValidatorStake(stakeInfo, poolInfo.Key)
	if err != nil {
		return err
	}
	if list.Contains(validator) {
		return ErrValidatorAlreadyAdded
	}

	depositProof := authorityProof(p.programID, poolInfo.Key, RoleDeposit, pool.DepositBumpSeed)
	if err := p.handoff(stakeInfo, clockInfo, depositAuthority, withdrawAuthority.Key, depositProof); err != nil {
		return err
	}

	stakeLamports := stakeInfo.Lamports
	shares, err := pool.StakeToShares(stakeLamports)
	if err != nil {
		return err
	}
	withdrawProof := authorityProof(p.programID, poolInfo.Key, RoleWithdraw, pool.WithdrawBumpSeed)
	if err := p.token.MintTo(mintInfo, destInfo, withdrawAuthority, shares, withdrawProof); err != nil {
		return err
	}

	if err := p.checkActivation(stakeInfo, clock); err != nil {
		return err
	}

	if err := list.Push(ValidatorStakeInfo{
		Validator:       validator,
		Balance:         stakeLamports,
		LastUpdateEpoch: clock.Epoch,
	}); err != nil {
		return err
	}
	if pool.PoolTotal, err = checkedAdd(pool.PoolTotal, shares); err != nil {
		return err
	}
	if pool.StakeTotal, err = checkedAdd(pool.StakeTotal, stakeLamports); err != nil {
		return err
	}

	p.logger.Debug("Validator added",
		zap.Stringer("validator", validator),
		zap.Uint64("stake_lamports", stakeLamports),
		zap.Uint64("shares", shares))
	if err := list.EncodeTo(listInfo.Data); err != nil {
		return err
	}
	return pool.EncodeTo(poolInfo.Data)
}

// processRemoveValidatorStakeAccount hands a validator's stake account to a
// new authority and burns the matching shares.
func (p *Processor) processRemoveValidatorStakeAccount(accounts []*ledger.AccountInfo) error {
	if err := requireAccounts(accounts, 11); err != nil {
		return err
	}
	poolInfo, owner, withdrawAuthority, newAuthority := accounts[0], accounts[1], accounts[2], accounts[3]
	listInfo, stakeInfo, burnFrom, mintInfo := accounts[4], accounts[5], accounts[6], accounts[7]
	clockInfo, tokenProgram, stakeProgram := accounts[8], accounts[9], accounts[10]

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
	if err := pool.CheckOwner(owner); err != nil {
		return err
	}
	clock, err := readClock(clockInfo)
	if err != nil {
		return err
	}
	if err := checkPoolCurrent(pool, clock); err != nil {
		return err
	}
	if err := checkProgram(tokenProgram, pool.TokenProgramID); err != nil {
		return err
	}
	if mintInfo.Key != pool.PoolMint {
		return ErrWrongPoolMint
	}
	list, err := p.loadPoolList(pool, listInfo)
	if err != nil {
		return err
	}

	validator, err := p.poolValidatorStake(stakeInfo, poolInfo.Key)
	if err != nil {
		return err
	}
	if !list.Contains(validator) {
		return ErrValidatorNotFound
	}

	withdrawProof := authorityProof(p.programID, poolInfo.Key, RoleWithdraw, pool.WithdrawBumpSeed)
	if err := p.handoff(stakeInfo, clockInfo, withdrawAuthority, newAuthority.Key, withdrawProof); err != nil {
		return err
	}

	stakeLamports := stakeInfo.Lamports
	shares, err := pool.StakeToShares(stakeLamports)
	if err != nil {
		return err
	}
	if err := p.token.Burn(burnFrom, mintInfo, withdrawAuthority, shares, withdrawProof); err != nil {
		return err
	}

	list.Retain(func(v ValidatorStakeInfo) bool { return v.Validator != validator })
	if pool.PoolTotal, err = checkedSub(pool.PoolTotal, shares); err != nil {
		return err
	}
	if pool.StakeTotal, err = checkedSub(pool.StakeTotal, stakeLamports); err != nil {
		return err
	}

	p.logger.Debug("Validator removed",
		zap.Stringer("validator", validator),
		zap.Stringer("new_authority", newAuthority.Key),
		zap.Uint64("shares_burned", shares))
	if err := list.EncodeTo(listInfo.Data); err != nil {
		return err
	}
	return pool.EncodeTo(poolInfo.Data)
}

// processSetStakingAuthority changes the staker of a pool stake account.
func (p *Processor) processSetStakingAuthority(accounts []*ledger.AccountInfo) error {
	if err := requireAccounts(accounts, 7); err != nil {
		return err
	}
	poolInfo, owner, withdrawAuthority, stakeInfo := accounts[0], accounts[1], accounts[2], accounts[3]
	newStaker, clockInfo, stakeProgram := accounts[4], accounts[5], accounts[6]

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
	if err := pool.CheckOwner(owner); err != nil {
		return err
	}

	proof := authorityProof(p.programID, poolInfo.Key, RoleWithdraw, pool.WithdrawBumpSeed)
	return p.stake.Authorize(stakeInfo, clockInfo, withdrawAuthority, newStaker.Key, stake.AuthorizeStaker, proof)
}

// processSetOwner replaces the pool owner and fee receiver.
func (p *Processor) processSetOwner(accounts []*ledger.AccountInfo) error {
	if err := requireAccounts(accounts, 4); err != nil {
		return err
	}
	poolInfo, owner, newOwner, newFeeInfo := accounts[0], accounts[1], accounts[2], accounts[3]

	pool, err := p.loadInitializedPool(poolInfo)
	if err != nil {
		return err
	}
	if err := pool.CheckOwner(owner); err != nil {
		return err
	}
	feeAccount, err := unpackTokenAccount(newFeeInfo, pool.TokenProgramID)
	if err != nil {
		return err
	}
	if feeAccount.Mint != pool.PoolMint {
		return ErrWrongAccountMint
	}

	pool.Owner = newOwner.Key
	pool.OwnerFeeAccount = newFeeInfo.Key
	p.logger.Info("Stake pool owner changed",
		zap.Stringer("pool", poolInfo.Key),
		zap.Stringer("owner", newOwner.Key))
	return pool.EncodeTo(poolInfo.Data)
}
