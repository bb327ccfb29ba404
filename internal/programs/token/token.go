// internal/programs/token/token.go
package token

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/ledger"
)

// Program is the fungible-token service: mints, token accounts and transfers.
type Program struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Program {
	return &Program{logger: logger.Named("token")}
}

func (p *Program) ProgramID() solana.PublicKey {
	return solana.TokenProgramID
}

func loadMint(info *ledger.AccountInfo) (*token.Mint, error) {
	if info.Owner != solana.TokenProgramID {
		return nil, fmt.Errorf("%w: mint %s", ErrIncorrectProgramID, info.Key)
	}
	m, err := DecodeMint(info.Data)
	if err != nil {
		return nil, err
	}
	if !m.IsInitialized {
		return nil, fmt.Errorf("%w: mint %s", ErrUninitializedState, info.Key)
	}
	return m, nil
}

func storeMint(info *ledger.AccountInfo, m *token.Mint) error {
	data, err := EncodeMint(m)
	if err != nil {
		return err
	}
	copy(info.Data, data)
	return nil
}

func loadAccount(info *ledger.AccountInfo) (*token.Account, error) {
	if info.Owner != solana.TokenProgramID {
		return nil, fmt.Errorf("%w: account %s", ErrIncorrectProgramID, info.Key)
	}
	a, err := DecodeAccount(info.Data)
	if err != nil {
		return nil, err
	}
	switch a.State {
	case token.Uninitialized:
		return nil, fmt.Errorf("%w: account %s", ErrUninitializedState, info.Key)
	case token.Frozen:
		return nil, fmt.Errorf("%w: %s", ErrAccountFrozen, info.Key)
	}
	return a, nil
}

func storeAccount(info *ledger.AccountInfo, a *token.Account) error {
	data, err := EncodeAccount(a)
	if err != nil {
		return err
	}
	copy(info.Data, data)
	return nil
}

// validateOwner checks that authority is expected and that it signed or is
// backed by proof.
func validateOwner(expected solana.PublicKey, authority *ledger.AccountInfo, proof *ledger.AuthorityProof) error {
	if authority.Key != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrOwnerMismatch, expected, authority.Key)
	}
	if !ledger.HasAuthority(authority, proof) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, authority.Key)
	}
	return nil
}

// spend debits amount from src on behalf of authority, honouring a delegate
// allowance set by Approve.
func spend(src *token.Account, authority *ledger.AccountInfo, amount uint64, proof *ledger.AuthorityProof) error {
	if src.Amount < amount {
		return fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, src.Amount, amount)
	}
	if src.Delegate != nil && *src.Delegate == authority.Key && authority.Key != src.Owner {
		if err := validateOwner(*src.Delegate, authority, proof); err != nil {
			return err
		}
		if src.DelegatedAmount < amount {
			return fmt.Errorf("%w: delegated %d, need %d", ErrInsufficientFunds, src.DelegatedAmount, amount)
		}
		src.DelegatedAmount -= amount
		if src.DelegatedAmount == 0 {
			src.Delegate = nil
		}
	} else if err := validateOwner(src.Owner, authority, proof); err != nil {
		return err
	}
	src.Amount -= amount
	return nil
}

// InitializeMint sets up a rent-exempt mint.
func (p *Program) InitializeMint(mint, rent *ledger.AccountInfo, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) error {
	if mint.Owner != solana.TokenProgramID {
		return fmt.Errorf("%w: mint %s", ErrIncorrectProgramID, mint.Key)
	}
	m, err := DecodeMint(mint.Data)
	if err != nil {
		return err
	}
	if m.IsInitialized {
		return fmt.Errorf("%w: mint %s", ErrAlreadyInUse, mint.Key)
	}
	r, err := ledger.RentFrom(rent)
	if err != nil {
		return err
	}
	if !r.IsExempt(mint.Lamports, len(mint.Data)) {
		return fmt.Errorf("%w: mint %s", ErrNotRentExempt, mint.Key)
	}

	m = &token.Mint{
		MintAuthority:   mintAuthority.ToPointer(),
		Decimals:        decimals,
		IsInitialized:   true,
		FreezeAuthority: freezeAuthority,
	}
	return storeMint(mint, m)
}

// InitializeAccount binds a token account to mint and owner.
func (p *Program) InitializeAccount(account, mint, owner, rent *ledger.AccountInfo) error {
	if account.Owner != solana.TokenProgramID {
		return fmt.Errorf("%w: account %s", ErrIncorrectProgramID, account.Key)
	}
	a, err := DecodeAccount(account.Data)
	if err != nil {
		return err
	}
	if a.State != token.Uninitialized {
		return fmt.Errorf("%w: account %s", ErrAlreadyInUse, account.Key)
	}
	if _, err := loadMint(mint); err != nil {
		return err
	}
	r, err := ledger.RentFrom(rent)
	if err != nil {
		return err
	}
	if !r.IsExempt(account.Lamports, len(account.Data)) {
		return fmt.Errorf("%w: account %s", ErrNotRentExempt, account.Key)
	}

	return storeAccount(account, &token.Account{
		Mint:  mint.Key,
		Owner: owner.Key,
		State: token.Initialized,
	})
}

// Transfer moves amount between two accounts of the same mint.
func (p *Program) Transfer(source, destination, authority *ledger.AccountInfo, amount uint64, proof *ledger.AuthorityProof) error {
	src, err := loadAccount(source)
	if err != nil {
		return err
	}
	dst, err := loadAccount(destination)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%w: %s -> %s", ErrMintMismatch, source.Key, destination.Key)
	}
	if err := spend(src, authority, amount, proof); err != nil {
		return err
	}
	if source.Key == destination.Key {
		// self-transfer: authority checked, balances unchanged
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return ErrOverflow
	}
	dst.Amount += amount

	if err := storeAccount(source, src); err != nil {
		return err
	}
	if err := storeAccount(destination, dst); err != nil {
		return err
	}
	p.logger.Debug("Tokens transferred",
		zap.Stringer("from", source.Key),
		zap.Stringer("to", destination.Key),
		zap.Uint64("amount", amount))
	return nil
}

// Approve lets delegate spend up to amount from source.
func (p *Program) Approve(source, delegate, owner *ledger.AccountInfo, amount uint64, proof *ledger.AuthorityProof) error {
	src, err := loadAccount(source)
	if err != nil {
		return err
	}
	if err := validateOwner(src.Owner, owner, proof); err != nil {
		return err
	}
	src.Delegate = delegate.Key.ToPointer()
	src.DelegatedAmount = amount
	return storeAccount(source, src)
}

// MintTo creates amount new tokens in destination.
func (p *Program) MintTo(mint, destination, authority *ledger.AccountInfo, amount uint64, proof *ledger.AuthorityProof) error {
	m, err := loadMint(mint)
	if err != nil {
		return err
	}
	dst, err := loadAccount(destination)
	if err != nil {
		return err
	}
	if dst.Mint != mint.Key {
		return fmt.Errorf("%w: %s", ErrMintMismatch, destination.Key)
	}
	if m.MintAuthority == nil {
		return ErrFixedSupply
	}
	if err := validateOwner(*m.MintAuthority, authority, proof); err != nil {
		return err
	}
	if m.Supply+amount < m.Supply || dst.Amount+amount < dst.Amount {
		return ErrOverflow
	}
	m.Supply += amount
	dst.Amount += amount

	if err := storeMint(mint, m); err != nil {
		return err
	}
	return storeAccount(destination, dst)
}

// Burn destroys amount tokens held in source.
func (p *Program) Burn(source, mint, authority *ledger.AccountInfo, amount uint64, proof *ledger.AuthorityProof) error {
	src, err := loadAccount(source)
	if err != nil {
		return err
	}
	m, err := loadMint(mint)
	if err != nil {
		return err
	}
	if src.Mint != mint.Key {
		return fmt.Errorf("%w: %s", ErrMintMismatch, source.Key)
	}
	if err := spend(src, authority, amount, proof); err != nil {
		return err
	}
	if m.Supply < amount {
		return ErrOverflow
	}
	m.Supply -= amount

	if err := storeAccount(source, src); err != nil {
		return err
	}
	return storeMint(mint, m)
}

// Process decodes a top-level token instruction and dispatches it.
func (p *Program) Process(accounts []*ledger.AccountInfo, data []byte) error {
	inst, err := token.DecodeInstruction(ledger.Metas(accounts), data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}

	need := map[uint8]int{
		token.Instruction_InitializeMint:    2,
		token.Instruction_InitializeAccount: 4,
		token.Instruction_Transfer:          3,
		token.Instruction_Approve:           3,
		token.Instruction_MintTo:            3,
		token.Instruction_Burn:              3,
	}
	if n, ok := need[inst.TypeID.Uint8()]; ok {
		if err := ledger.RequireAccounts(accounts, n); err != nil {
			return err
		}
	}

	switch impl := inst.Impl.(type) {
	case *token.InitializeMint:
		return p.InitializeMint(accounts[0], accounts[1], *impl.Decimals, *impl.MintAuthority, impl.FreezeAuthority)
	case *token.InitializeAccount:
		return p.InitializeAccount(accounts[0], accounts[1], accounts[2], accounts[3])
	case *token.Transfer:
		return p.Transfer(accounts[0], accounts[1], accounts[2], *impl.Amount, nil)
	case *token.Approve:
		return p.Approve(accounts[0], accounts[1], accounts[2], *impl.Amount, nil)
	case *token.MintTo:
		return p.MintTo(accounts[0], accounts[1], accounts[2], *impl.Amount, nil)
	case *token.Burn:
		return p.Burn(accounts[0], accounts[1], accounts[2], *impl.Amount, nil)
	default:
		return fmt.Errorf("%w: type %d", ErrInvalidInstruction, inst.TypeID.Uint8())
	}
}
