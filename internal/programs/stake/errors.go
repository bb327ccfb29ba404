// internal/programs/stake/errors.go
package stake

import "errors"

var (
	ErrInvalidAccountData  = errors.New("invalid stake account data")
	ErrInvalidAccountOwner = errors.New("account is not owned by the stake program")
	ErrInvalidState        = errors.New("stake account is in the wrong state for this operation")
	ErrMissingSignature    = errors.New("missing required signature")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientStake   = errors.New("stake amount is below the minimum delegation")
	ErrInvalidVoteAccount  = errors.New("vote account is not owned by the vote program")
	ErrAlreadyDeactivated  = errors.New("stake already deactivated")
	ErrTooSoonToRedelegate = errors.New("stake is still active and cannot be redelegated")
	ErrMergeMismatch       = errors.New("stake accounts have mismatched authorities or delegations")
	ErrLockupInForce       = errors.New("lockup is in force")
	ErrInvalidInstruction  = errors.New("invalid stake instruction")
)
