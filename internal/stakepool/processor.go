// =============================
// File: internal/stakepool/processor.go
// =============================
package stakepool

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/ledger"
	"github.com/rovshanmuradov/metapool/internal/programs/stake"
	tokenprog "github.com/rovshanmuradov/metapool/internal/programs/token"
	binutil "github.com/rovshanmuradov/metapool/internal/utils/binary"
)

// StakeService is the delegation program the processor drives.
type StakeService interface {
	ProgramID() solana.PublicKey
	Initialize(stakeAccount, rent *ledger.AccountInfo, authorized stake.Authorized, lockup stake.Lockup) error
	Authorize(stakeAccount, clock, authority *ledger.AccountInfo, newAuthority solana.PublicKey, role stake.Authorize, proof *ledger.AuthorityProof) error
	Split(stakeAccount, splitAccount, authority *ledger.AccountInfo, lamports uint64, proof *ledger.AuthorityProof) error
	Merge(destination, source, clock, history, authority *ledger.AccountInfo, proof *ledger.AuthorityProof) error
}

// TokenService is the fungible-token program holding pool shares.
type TokenService interface {
	ProgramID() solana.PublicKey
	MintTo(mint, destination, authority *ledger.AccountInfo, amount uint64, proof *ledger.AuthorityProof) error
	Burn(source, mint, authority *ledger.AccountInfo, amount uint64, proof *ledger.AuthorityProof) error
	Transfer(source, destination, authority *ledger.AccountInfo, amount uint64, proof *ledger.AuthorityProof) error
	Approve(source, delegate, owner *ledger.AccountInfo, amount uint64, proof *ledger.AuthorityProof) error
}

// SystemService creates accounts.
type SystemService interface {
	ProgramID() solana.PublicKey
	CreateAccount(funder, newAccount *ledger.AccountInfo, lamports, space uint64, owner solana.PublicKey, proof *ledger.AuthorityProof) error
	Transfer(from, to *ledger.AccountInfo, lamports uint64, proof *ledger.AuthorityProof) error
}

// Recorder receives per-instruction outcomes.
type Recorder interface {
	ObserveInstruction(op string, duration time.Duration, err error)
}

// Processor executes stake pool and liquidity pool instructions.
type Processor struct {
	programID       solana.PublicKey
	stake           StakeService
	token           TokenService
	system          SystemService
	logger          *zap.Logger
	recorder        Recorder
	activationCheck bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithActivationCheck requires deposited and added stake to be fully active.
func WithActivationCheck(enabled bool) Option {
	return func(p *Processor) { p.activationCheck = enabled }
}

// WithLogger sets the logger handlers write to, named "stakepool".
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) { p.logger = logger.Named("stakepool") }
}

// WithRecorder reports every processed instruction to r.
func WithRecorder(r Recorder) Option {
	return func(p *Processor) { p.recorder = r }
}

// NewProcessor wires the processor to its collaborator programs. The
// activation check is off unless enabled with WithActivationCheck.
func NewProcessor(programID solana.PublicKey, stakeSvc StakeService, tokenSvc TokenService, systemSvc SystemService, opts ...Option) *Processor {
	p := &Processor{
		programID: programID,
		stake:     stakeSvc,
		token:     tokenSvc,
		system:    systemSvc,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProgramID is the address the processor is registered under in the ledger.
func (p *Processor) ProgramID() solana.PublicKey {
	return p.programID
}

// Process decodes the opcode and runs the matching handler.
func (p *Processor) Process(accounts []*ledger.AccountInfo, data []byte) error {
	if len(data) == 0 {
		return ErrInvalidInstruction
	}
	op := InstructionType(data[0])
	start := time.Now()

	err := p.dispatch(op, accounts, data[1:])

	if p.recorder != nil {
		p.recorder.ObserveInstruction(op.String(), time.Since(start), err)
	}
	if err != nil {
		p.logger.Debug("Instruction failed", zap.Stringer("op", op), zap.Error(err))
		return err
	}
	p.logger.Debug("Instruction processed", zap.Stringer("op", op), zap.Int("accounts", len(accounts)))
	return nil
}

func (p *Processor) dispatch(op InstructionType, accounts []*ledger.AccountInfo, data []byte) error {
	switch op {
	case InstructionInitialize:
		if err := binutil.CheckLen(data, 0, 16); err != nil {
			return ErrInvalidInstruction
		}
		fee := Fee{
			Numerator:   binutil.ReadUint64LittleEndian(data, 0),
			Denominator: binutil.ReadUint64LittleEndian(data, 8),
		}
		return p.processInitialize(accounts, fee)
	case InstructionCreateValidatorStakeAccount:
		return p.processCreateValidatorStakeAccount(accounts)
	case InstructionAddValidatorStakeAccount:
		return p.processAddValidatorStakeAccount(accounts)
	case InstructionRemoveValidatorStakeAccount:
		return p.processRemoveValidatorStakeAccount(accounts)
	case InstructionUpdateListBalance:
		return p.processUpdateListBalance(accounts)
	case InstructionUpdatePoolBalance:
		return p.processUpdatePoolBalance(accounts)
	case InstructionDeposit:
		return p.processDeposit(accounts)
	case InstructionSetStakingAuthority:
		return p.processSetStakingAuthority(accounts)
	case InstructionSetOwner:
		return p.processSetOwner(accounts)
	case InstructionInitializeLiquidityPool:
		return p.processInitializeLiquidityPool(accounts)
	case InstructionWithdraw, InstructionAddLiquidity, InstructionSell:
		amount, err := readAmount(data)
		if err != nil {
			return err
		}
		switch op {
		case InstructionWithdraw:
			return p.processWithdraw(accounts, amount)
		case InstructionAddLiquidity:
			return p.processAddLiquidity(accounts, amount)
		default:
			return p.processSell(accounts, amount)
		}
	}
	return ErrInvalidInstruction
}

func readAmount(data []byte) (uint64, error) {
	if err := binutil.CheckLen(data, 0, 8); err != nil {
		return 0, ErrInvalidInstruction
	}
	return binutil.ReadUint64LittleEndian(data, 0), nil
}

func requireAccounts(accounts []*ledger.AccountInfo, n int) error {
	if len(accounts) < n {
		return ErrNotEnoughAccountKeys
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Загрузка и сохранение состояния
////////////////////////////////////////////////////////////////////////////////

func (p *Processor) loadPool(info *ledger.AccountInfo) (*PoolState, error) {
	if info.Owner != p.programID {
		return nil, ErrIncorrectProgramID
	}
	return DecodePoolState(info.Data)
}

// loadInitializedPool is loadPool plus the IsInitialized check.
func (p *Processor) loadInitializedPool(info *ledger.AccountInfo) (*PoolState, error) {
	pool, err := p.loadPool(info)
	if err != nil {
		return nil, err
	}
	if !pool.IsInitialized() {
		return nil, ErrInvalidState
	}
	return pool, nil
}

func (p *Processor) loadList(info *ledger.AccountInfo) (*ValidatorList, error) {
	if info.Owner != p.programID {
		return nil, ErrIncorrectProgramID
	}
	return DecodeValidatorList(info.Data)
}

// loadPoolList checks the list handle against the pool and requires it
// initialized.
func (p *Processor) loadPoolList(pool *PoolState, info *ledger.AccountInfo) (*ValidatorList, error) {
	if info.Key != pool.ValidatorList {
		return nil, ErrInvalidValidatorStakeList
	}
	list, err := p.loadList(info)
	if err != nil {
		return nil, err
	}
	if !list.IsInitialized() {
		return nil, ErrInvalidState
	}
	return list, nil
}

func (p *Processor) loadLiquidityPool(info *ledger.AccountInfo) (*LiquidityPoolState, error) {
	if info.Owner != p.programID {
		return nil, ErrIncorrectProgramID
	}
	return DecodeLiquidityPoolState(info.Data)
}

func checkProgram(info *ledger.AccountInfo, expected solana.PublicKey) error {
	if info.Key != expected {
		return ErrIncorrectProgramID
	}
	return nil
}

// checkPoolCurrent rejects pools whose totals predate the current epoch.
func checkPoolCurrent(pool *PoolState, clock ledger.Clock) error {
	if pool.LastUpdateEpoch < clock.Epoch {
		return ErrStakeListAndPoolOutOfDate
	}
	return nil
}

func readClock(info *ledger.AccountInfo) (ledger.Clock, error) {
	clock, err := ledger.ClockFrom(info)
	if err != nil {
		return ledger.Clock{}, ErrInvalidInstruction
	}
	return clock, nil
}

func readRent(info *ledger.AccountInfo) (ledger.Rent, error) {
	rent, err := ledger.RentFrom(info)
	if err != nil {
		return ledger.Rent{}, ErrInvalidInstruction
	}
	return rent, nil
}

////////////////////////////////////////////////////////////////////////////////
// Стейк-аккаунты
////////////////////////////////////////////////////////////////////////////////

func readStakeState(info *ledger.AccountInfo) (*stake.State, error) {
	s, err := stake.Load(info)
	if err != nil {
		return nil, ErrWrongStakeState
	}
	return s, nil
}

// delegatedValidator returns the vote account a delegated stake account
// points at.
func delegatedValidator(info *ledger.AccountInfo) (solana.PublicKey, error) {
	s, err := readStakeState(info)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if s.Status != stake.StatusStake {
		return solana.PublicKey{}, ErrWrongStakeState
	}
	return s.Stake.Delegation.VoterPubkey, nil
}

// poolValidatorStake resolves the validator behind a pool stake account and
// checks the account sits at the derived address.
func (p *Processor) poolValidatorStake(info *ledger.AccountInfo, pool solana.PublicKey) (solana.PublicKey, error) {
	validator, err := delegatedValidator(info)
	if err != nil {
		return solana.PublicKey{}, err
	}
	expected, _, err := ValidatorStakeAddress(p.programID, validator, pool)
	if err != nil || expected != info.Key {
		return solana.PublicKey{}, ErrInvalidStakeAccountAddress
	}
	return validator, nil
}

// checkActivation requires the stake to be fully active at the clock epoch.
// It is a no-op unless the processor was built WithActivationCheck(true).
func (p *Processor) checkActivation(info *ledger.AccountInfo, clock ledger.Clock) error {
	if !p.activationCheck {
		return nil
	}
	s, err := readStakeState(info)
	if err != nil {
		return err
	}
	if s.Status != stake.StatusStake {
		return ErrWrongStakeState
	}
	d := s.Stake.Delegation
	if d.ActivationEpoch >= clock.Epoch || d.IsDeactivating() {
		return ErrUserStakeNotActive
	}
	return nil
}

// handoff moves both stake authorities from one holder to newAuthority,
// withdrawer first, in two separate calls.
func (p *Processor) handoff(stakeAccount, clock, authority *ledger.AccountInfo, newAuthority solana.PublicKey, proof *ledger.AuthorityProof) error {
	if err := p.stake.Authorize(stakeAccount, clock, authority, newAuthority, stake.AuthorizeWithdrawer, proof); err != nil {
		return err
	}
	return p.stake.Authorize(stakeAccount, clock, authority, newAuthority, stake.AuthorizeStaker, proof)
}

////////////////////////////////////////////////////////////////////////////////
// Токен-аккаунты
////////////////////////////////////////////////////////////////////////////////

func unpackMint(info *ledger.AccountInfo, tokenProgram solana.PublicKey) (*token.Mint, error) {
	if info.Owner != tokenProgram {
		return nil, ErrIncorrectTokenProgramID
	}
	m, err := tokenprog.DecodeMint(info.Data)
	if err != nil || !m.IsInitialized {
		return nil, ErrExpectedMint
	}
	return m, nil
}

func unpackTokenAccount(info *ledger.AccountInfo, tokenProgram solana.PublicKey) (*token.Account, error) {
	if info.Owner != tokenProgram {
		return nil, ErrIncorrectTokenProgramID
	}
	a, err := tokenprog.DecodeAccount(info.Data)
	if err != nil || a.State == token.Uninitialized {
		return nil, ErrExpectedAccount
	}
	return a, nil
}
