// internal/programs/token/errors.go
package token

import "errors"

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrMintMismatch       = errors.New("account not associated with this mint")
	ErrOwnerMismatch      = errors.New("owner does not match")
	ErrMissingSignature   = errors.New("missing required signature")
	ErrFixedSupply        = errors.New("fixed supply")
	ErrAlreadyInUse       = errors.New("already in use")
	ErrUninitializedState = errors.New("state is uninitialized")
	ErrNotRentExempt      = errors.New("lamport balance below rent-exempt threshold")
	ErrOverflow           = errors.New("operation overflowed")
	ErrAccountFrozen      = errors.New("account is frozen")
	ErrIncorrectProgramID = errors.New("account is not owned by the token program")
	ErrInvalidAccountData = errors.New("invalid account data")
	ErrInvalidInstruction = errors.New("invalid token instruction")
)
