// =============================
// File: internal/stakepool/errors.go
// =============================
package stakepool

import "fmt"

// Error is the closed set of failures the pool processor reports. Codes are
// stable and follow declaration order.
type Error uint32

const (
	ErrAlreadyInUse Error = iota
	ErrInvalidProgramAddress
	ErrInvalidState
	ErrCalculationFailure
	ErrFeeTooHigh
	ErrWrongAccountMint
	ErrNonZeroBalance
	ErrWrongOwner
	ErrSignatureMissing
	ErrInvalidValidatorStakeList
	ErrInvalidFeeAccount
	ErrWrongPoolMint
	ErrWrongStakeState
	ErrUserStakeNotActive
	ErrValidatorAlreadyAdded
	ErrValidatorNotFound
	ErrInvalidStakeAccountAddress
	ErrStakeListOutOfDate
	ErrStakeListAndPoolOutOfDate
	ErrUnknownValidatorStakeAccount
	ErrWrongMintingAuthority
	ErrAccountNotRentExempt
	ErrIncorrectTokenProgramID
	ErrExpectedMint
	ErrExpectedAccount
	ErrZeroAmount
	ErrConversionFailure
	ErrIncorrectProgramID
	ErrValidatorListFull
	ErrInvalidInstruction
	ErrNotEnoughAccountKeys
)

var errorMessages = [...]string{
	ErrAlreadyInUse:                 "The account cannot be initialized because it is already being used",
	ErrInvalidProgramAddress:        "The program address provided doesn't match the value generated by the program",
	ErrInvalidState:                 "The stake pool state is invalid",
	ErrCalculationFailure:           "The calculation failed",
	ErrFeeTooHigh:                   "Stake pool fee > 1",
	ErrWrongAccountMint:             "Token account is associated with the wrong mint",
	ErrNonZeroBalance:               "Account balance should be zero",
	ErrWrongOwner:                   "Wrong pool owner account",
	ErrSignatureMissing:             "Required signature is missing",
	ErrInvalidValidatorStakeList:    "Invalid validator stake list account",
	ErrInvalidFeeAccount:            "Invalid owner fee account",
	ErrWrongPoolMint:                "Specified pool mint account is wrong",
	ErrWrongStakeState:              "Stake account is not in the state expected by the program",
	ErrUserStakeNotActive:           "User stake is not active",
	ErrValidatorAlreadyAdded:        "Stake account voting for this validator already exists in the pool",
	ErrValidatorNotFound:            "Stake account for this validator not found in the pool",
	ErrInvalidStakeAccountAddress:   "Stake account address not properly derived from the validator address",
	ErrStakeListOutOfDate:           "Identify validator stake accounts with old balances and update them",
	ErrStakeListAndPoolOutOfDate:    "First update old validator stake account balances and then pool stake balance",
	ErrUnknownValidatorStakeAccount: "Validator stake account is not found in the list storage",
	ErrWrongMintingAuthority:        "Wrong minting authority set for mint pool account",
	ErrAccountNotRentExempt:         "Account is not rent-exempt",
	ErrIncorrectTokenProgramID:      "Token account is not owned by the token program",
	ErrExpectedMint:                 "Expected a Mint Account",
	ErrExpectedAccount:              "Expected an Account",
	ErrZeroAmount:                   "Amount must greater than zero",
	ErrConversionFailure:            "Data Conversion Failure",
	ErrIncorrectProgramID:           "Incorrect program id",
	ErrValidatorListFull:            "Validator stake list is at capacity",
	ErrInvalidInstruction:           "Invalid instruction",
	ErrNotEnoughAccountKeys:         "Not enough account keys supplied",
}

func (e Error) Error() string {
	if int(e) < len(errorMessages) {
		return "Error: " + errorMessages[e]
	}
	return fmt.Sprintf("Error: unknown stake pool error %d", uint32(e))
}

// Code returns the numeric code reported to callers.
func (e Error) Code() uint32 {
	return uint32(e)
}
