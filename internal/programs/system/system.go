// internal/programs/system/system.go
package system

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	sysprog "github.com/gagliardetto/solana-go/programs/system"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/ledger"
)

var (
	ErrAccountAlreadyInUse = errors.New("an account with the same address already exists")
	ErrInsufficientFunds   = errors.New("account does not have enough lamports for the operation")
	ErrMissingSignature    = errors.New("missing required signature")
	ErrTransferFromData    = errors.New("from account must not carry data")
	ErrInvalidInstruction  = errors.New("invalid system instruction")
)

// Program creates accounts and moves lamports.
type Program struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Program {
	return &Program{logger: logger.Named("system")}
}

func (p *Program) ProgramID() solana.PublicKey {
	return solana.SystemProgramID
}

// CreateAccount funds newAccount with lamports, allocates space bytes and
// assigns it to owner. The new address must sign or be covered by proof.
func (p *Program) CreateAccount(funder, newAccount *ledger.AccountInfo, lamports, space uint64, owner solana.PublicKey, proof *ledger.AuthorityProof) error {
	if !funder.IsSigner {
		return fmt.Errorf("%w: funder %s", ErrMissingSignature, funder.Key)
	}
	if !ledger.HasAuthority(newAccount, proof) {
		return fmt.Errorf("%w: new account %s", ErrMissingSignature, newAccount.Key)
	}
	if newAccount.Lamports > 0 || len(newAccount.Data) > 0 || newAccount.Owner != solana.SystemProgramID {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, newAccount.Key)
	}
	if funder.Lamports < lamports {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, lamports, funder.Lamports)
	}

	funder.Lamports -= lamports
	newAccount.Lamports += lamports
	newAccount.Data = make([]byte, space)
	newAccount.Owner = owner

	p.logger.Debug("Account created",
		zap.Stringer("account", newAccount.Key),
		zap.Stringer("owner", owner),
		zap.Uint64("lamports", lamports),
		zap.Uint64("space", space))
	return nil
}

// Transfer moves lamports between system accounts.
func (p *Program) Transfer(from, to *ledger.AccountInfo, lamports uint64, proof *ledger.AuthorityProof) error {
	if !ledger.HasAuthority(from, proof) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, from.Key)
	}
	if len(from.Data) > 0 {
		return ErrTransferFromData
	}
	if from.Lamports < lamports {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, lamports, from.Lamports)
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

// Process handles top-level CreateAccount and Transfer instructions.
func (p *Program) Process(accounts []*ledger.AccountInfo, data []byte) error {
	inst, err := sysprog.DecodeInstruction(ledger.Metas(accounts), data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}

	switch impl := inst.Impl.(type) {
	case *sysprog.CreateAccount:
		if err := ledger.RequireAccounts(accounts, 2); err != nil {
			return err
		}
		return p.CreateAccount(accounts[0], accounts[1], *impl.Lamports, *impl.Space, *impl.Owner, nil)
	case *sysprog.Transfer:
		if err := ledger.RequireAccounts(accounts, 2); err != nil {
			return err
		}
		return p.Transfer(accounts[0], accounts[1], *impl.Lamports, nil)
	default:
		return fmt.Errorf("%w: type %d", ErrInvalidInstruction, inst.TypeID.Uint32())
	}
}
