// internal/ledger/errors.go
package ledger

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrInvalidSignature      = errors.New("transaction signature verification failed")
	ErrUnknownProgram        = errors.New("program is not registered")
	ErrReadonlyModified      = errors.New("instruction modified a read-only account")
	ErrNotEnoughAccountKeys  = errors.New("not enough account keys")
	ErrInvalidSysvar         = errors.New("invalid sysvar account")
	ErrMissingRequiredSigner = errors.New("missing required signature for instruction")
	ErrInsufficientLamports  = errors.New("insufficient lamports")
)

// InstructionError ties a program failure to the instruction that raised it.
type InstructionError struct {
	Index   int
	Program solana.PublicKey
	Err     error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d (program %s) failed: %v", e.Index, e.Program, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// RequireAccounts fails with ErrNotEnoughAccountKeys when fewer than n handles were supplied.
func RequireAccounts(accounts []*AccountInfo, n int) error {
	if len(accounts) < n {
		return fmt.Errorf("%w: want %d, got %d", ErrNotEnoughAccountKeys, n, len(accounts))
	}
	return nil
}
