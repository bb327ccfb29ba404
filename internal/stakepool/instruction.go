// =============================
// File: internal/stakepool/instruction.go
// =============================
package stakepool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	binutil "github.com/rovshanmuradov/metapool/internal/utils/binary"
)

// InstructionType is the first byte of every pool instruction.
type InstructionType uint8

const (
	InstructionInitialize InstructionType = iota
	InstructionCreateValidatorStakeAccount
	InstructionAddValidatorStakeAccount
	InstructionRemoveValidatorStakeAccount
	InstructionUpdateListBalance
	InstructionUpdatePoolBalance
	InstructionDeposit
	InstructionWithdraw
	InstructionSetStakingAuthority
	InstructionSetOwner
	InstructionAddLiquidity
	InstructionSell
	InstructionInitializeLiquidityPool
)

var instructionNames = [...]string{
	InstructionInitialize:                  "initialize",
	InstructionCreateValidatorStakeAccount: "create_validator_stake_account",
	InstructionAddValidatorStakeAccount:    "add_validator_stake_account",
	InstructionRemoveValidatorStakeAccount: "remove_validator_stake_account",
	InstructionUpdateListBalance:           "update_list_balance",
	InstructionUpdatePoolBalance:           "update_pool_balance",
	InstructionDeposit:                     "deposit",
	InstructionWithdraw:                    "withdraw",
	InstructionSetStakingAuthority:         "set_staking_authority",
	InstructionSetOwner:                    "set_owner",
	InstructionAddLiquidity:                "add_liquidity",
	InstructionSell:                        "sell",
	InstructionInitializeLiquidityPool:     "initialize_liquidity_pool",
}

func (t InstructionType) String() string {
	if int(t) < len(instructionNames) {
		return instructionNames[t]
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

func withAmount(op InstructionType, amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = byte(op)
	binutil.WriteUint64LittleEndian(amount, data, 1)
	return data
}

func readonly(key solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(key, false, false)
}

func writable(key solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(key, true, false)
}

func signer(key solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(key, false, true)
}

// InitializeParams lists the accounts of Initialize.
type InitializeParams struct {
	Pool            solana.PublicKey
	Owner           solana.PublicKey
	ValidatorList   solana.PublicKey
	PoolMint        solana.PublicKey
	OwnerFeeAccount solana.PublicKey
	Fee             Fee
}

func NewInitializeInstruction(programID solana.PublicKey, p InitializeParams) solana.Instruction {
	data := make([]byte, 17)
	data[0] = byte(InstructionInitialize)
	binutil.WriteUint64LittleEndian(p.Fee.Numerator, data, 1)
	binutil.WriteUint64LittleEndian(p.Fee.Denominator, data, 9)

	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		writable(p.Pool),
		signer(p.Owner),
		writable(p.ValidatorList),
		readonly(p.PoolMint),
		readonly(p.OwnerFeeAccount),
		readonly(solana.SysVarClockPubkey),
		readonly(solana.SysVarRentPubkey),
		readonly(solana.TokenProgramID),
	}, data)
}

// NewCreateValidatorStakeAccountInstruction funds and initializes the pool's
// stake account for validator with the given authorities.
func NewCreateValidatorStakeAccountInstruction(programID, pool, funder, validator, stakeAuthority, withdrawAuthority solana.PublicKey) (solana.Instruction, error) {
	stakeAccount, _, err := ValidatorStakeAddress(programID, validator, pool)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		readonly(pool),
		solana.NewAccountMeta(funder, true, true),
		writable(stakeAccount),
		readonly(validator),
		readonly(stakeAuthority),
		readonly(withdrawAuthority),
		readonly(solana.SysVarRentPubkey),
		readonly(solana.SystemProgramID),
		readonly(solana.StakeProgramID),
	}, []byte{byte(InstructionCreateValidatorStakeAccount)}), nil
}

// AddValidatorParams lists the accounts of AddValidatorStakeAccount.
type AddValidatorParams struct {
	Pool              solana.PublicKey
	Owner             solana.PublicKey
	DepositAuthority  solana.PublicKey
	WithdrawAuthority solana.PublicKey
	ValidatorList     solana.PublicKey
	StakeAccount      solana.PublicKey
	PoolTokenReceiver solana.PublicKey
	PoolMint          solana.PublicKey
}

func NewAddValidatorStakeAccountInstruction(programID solana.PublicKey, p AddValidatorParams) solana.Instruction {
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		writable(p.Pool),
		signer(p.Owner),
		readonly(p.DepositAuthority),
		readonly(p.WithdrawAuthority),
		writable(p.ValidatorList),
		writable(p.StakeAccount),
		writable(p.PoolTokenReceiver),
		writable(p.PoolMint),
		readonly(solana.SysVarClockPubkey),
		readonly(solana.SysVarStakeHistoryPubkey),
		readonly(solana.TokenProgramID),
		readonly(solana.StakeProgramID),
	}, []byte{byte(InstructionAddValidatorStakeAccount)})
}

// RemoveValidatorParams lists the accounts of RemoveValidatorStakeAccount.
type RemoveValidatorParams struct {
	Pool              solana.PublicKey
	Owner             solana.PublicKey
	WithdrawAuthority solana.PublicKey
	NewStakeAuthority solana.PublicKey
	ValidatorList     solana.PublicKey
	StakeAccount      solana.PublicKey
	BurnFrom          solana.PublicKey
	PoolMint          solana.PublicKey
}

func NewRemoveValidatorStakeAccountInstruction(programID solana.PublicKey, p RemoveValidatorParams) solana.Instruction {
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		writable(p.Pool),
		signer(p.Owner),
		readonly(p.WithdrawAuthority),
		readonly(p.NewStakeAuthority),
		writable(p.ValidatorList),
		writable(p.StakeAccount),
		writable(p.BurnFrom),
		writable(p.PoolMint),
		readonly(solana.SysVarClockPubkey),
		readonly(solana.TokenProgramID),
		readonly(solana.StakeProgramID),
	}, []byte{byte(InstructionRemoveValidatorStakeAccount)})
}

// NewUpdateListBalanceInstruction refreshes the entries backed by
// stakeAccounts, which must be the pool's derived validator stake accounts.
func NewUpdateListBalanceInstruction(programID, pool, validatorList solana.PublicKey, stakeAccounts []solana.PublicKey) solana.Instruction {
	metas := solana.AccountMetaSlice{
		readonly(pool),
		writable(validatorList),
		readonly(solana.SysVarClockPubkey),
	}
	for _, key := range stakeAccounts {
		metas = append(metas, readonly(key))
	}
	return solana.NewInstruction(programID, metas, []byte{byte(InstructionUpdateListBalance)})
}

func NewUpdatePoolBalanceInstruction(programID, pool, validatorList solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		writable(pool),
		readonly(validatorList),
		readonly(solana.SysVarClockPubkey),
	}, []byte{byte(InstructionUpdatePoolBalance)})
}

// DepositParams lists the accounts of Deposit.
type DepositParams struct {
	Pool              solana.PublicKey
	ValidatorList     solana.PublicKey
	DepositAuthority  solana.PublicKey
	WithdrawAuthority solana.PublicKey
	UserStake         solana.PublicKey
	ValidatorStake    solana.PublicKey
	PoolTokenReceiver solana.PublicKey
	OwnerFeeAccount   solana.PublicKey
	PoolMint          solana.PublicKey
}

func NewDepositInstruction(programID solana.PublicKey, p DepositParams) solana.Instruction {
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		writable(p.Pool),
		writable(p.ValidatorList),
		readonly(p.DepositAuthority),
		readonly(p.WithdrawAuthority),
		writable(p.UserStake),
		writable(p.ValidatorStake),
		writable(p.PoolTokenReceiver),
		writable(p.OwnerFeeAccount),
		writable(p.PoolMint),
		readonly(solana.SysVarClockPubkey),
		readonly(solana.SysVarStakeHistoryPubkey),
		readonly(solana.TokenProgramID),
		readonly(solana.StakeProgramID),
	}, []byte{byte(InstructionDeposit)})
}

// WithdrawParams lists the accounts of Withdraw.
type WithdrawParams struct {
	Pool               solana.PublicKey
	ValidatorList      solana.PublicKey
	WithdrawAuthority  solana.PublicKey
	StakeSplitFrom     solana.PublicKey
	StakeSplitTo       solana.PublicKey
	UserStakeAuthority solana.PublicKey
	BurnFrom           solana.PublicKey
	PoolMint           solana.PublicKey
	Amount             uint64
}

func NewWithdrawInstruction(programID solana.PublicKey, p WithdrawParams) solana.Instruction {
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		writable(p.Pool),
		writable(p.ValidatorList),
		readonly(p.WithdrawAuthority),
		writable(p.StakeSplitFrom),
		writable(p.StakeSplitTo),
		readonly(p.UserStakeAuthority),
		writable(p.BurnFrom),
		writable(p.PoolMint),
		readonly(solana.SysVarClockPubkey),
		readonly(solana.TokenProgramID),
		readonly(solana.StakeProgramID),
	}, withAmount(InstructionWithdraw, p.Amount))
}

func NewSetStakingAuthorityInstruction(programID, pool, owner, withdrawAuthority, stakeAccount, newStaker solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		readonly(pool),
		signer(owner),
		readonly(withdrawAuthority),
		writable(stakeAccount),
		readonly(newStaker),
		readonly(solana.SysVarClockPubkey),
		readonly(solana.StakeProgramID),
	}, []byte{byte(InstructionSetStakingAuthority)})
}

func NewSetOwnerInstruction(programID, pool, owner, newOwner, newOwnerFee solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		writable(pool),
		signer(owner),
		readonly(newOwner),
		readonly(newOwnerFee),
	}, []byte{byte(InstructionSetOwner)})
}

// AddLiquidityParams lists the accounts of AddLiquidity.
type AddLiquidityParams struct {
	StakePool             solana.PublicKey
	LPMint                solana.PublicKey
	LiquidityAuthority    solana.PublicKey
	UserSource            solana.PublicKey
	UserTransferAuthority solana.PublicKey
	AssetReserve          solana.PublicKey
	UserLPDestination     solana.PublicKey
	LiquidityPool         solana.PublicKey
	Amount                uint64
}

func NewAddLiquidityInstruction(programID solana.PublicKey, p AddLiquidityParams) solana.Instruction {
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		readonly(p.StakePool),
		readonly(solana.TokenProgramID),
		writable(p.LPMint),
		readonly(p.LiquidityAuthority),
		writable(p.UserSource),
		signer(p.UserTransferAuthority),
		writable(p.AssetReserve),
		writable(p.UserLPDestination),
		readonly(p.LiquidityPool),
	}, withAmount(InstructionAddLiquidity, p.Amount))
}

// SellParams lists the accounts of Sell.
type SellParams struct {
	StakePool             solana.PublicKey
	LiquidityPool         solana.PublicKey
	AssetReserve          solana.PublicKey
	ShareReserve          solana.PublicKey
	LiquidityAuthority    solana.PublicKey
	UserAssetDestination  solana.PublicKey
	UserShareSource       solana.PublicKey
	UserTransferAuthority solana.PublicKey
	Amount                uint64
}

func NewSellInstruction(programID solana.PublicKey, p SellParams) solana.Instruction {
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		readonly(p.StakePool),
		readonly(p.LiquidityPool),
		readonly(solana.TokenProgramID),
		writable(p.AssetReserve),
		writable(p.ShareReserve),
		readonly(p.LiquidityAuthority),
		writable(p.UserAssetDestination),
		writable(p.UserShareSource),
		signer(p.UserTransferAuthority),
	}, withAmount(InstructionSell, p.Amount))
}

// InitializeLiquidityPoolParams lists the accounts of InitializeLiquidityPool.
type InitializeLiquidityPoolParams struct {
	LiquidityPool solana.PublicKey
	StakePool     solana.PublicKey
	Owner         solana.PublicKey
	LPMint        solana.PublicKey
	AssetReserve  solana.PublicKey
	ShareReserve  solana.PublicKey
}

func NewInitializeLiquidityPoolInstruction(programID solana.PublicKey, p InitializeLiquidityPoolParams) solana.Instruction {
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		writable(p.LiquidityPool),
		readonly(p.StakePool),
		signer(p.Owner),
		readonly(p.LPMint),
		readonly(p.AssetReserve),
		readonly(p.ShareReserve),
		readonly(solana.SysVarRentPubkey),
		readonly(solana.TokenProgramID),
	}, []byte{byte(InstructionInitializeLiquidityPool)})
}
