// internal/programs/stake/stake.go
package stake

import (
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	stakeprog "github.com/gagliardetto/solana-go/programs/stake"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/ledger"
	binutil "github.com/rovshanmuradov/metapool/internal/utils/binary"
)

// Program is the delegation service.
type Program struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Program {
	return &Program{logger: logger.Named("stake")}
}

func (p *Program) ProgramID() solana.PublicKey {
	return solana.StakeProgramID
}

// Load reads the state of a stake account after checking its owner.
func Load(info *ledger.AccountInfo) (*State, error) {
	if info.Owner != solana.StakeProgramID {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccountOwner, info.Key)
	}
	return DecodeState(info.Data)
}

func store(info *ledger.AccountInfo, s *State) error {
	data, err := EncodeState(s)
	if err != nil {
		return err
	}
	copy(info.Data, data)
	return nil
}

func requireAuthority(expected []solana.PublicKey, authority *ledger.AccountInfo, proof *ledger.AuthorityProof) error {
	for _, k := range expected {
		if k == authority.Key && ledger.HasAuthority(authority, proof) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMissingSignature, authority.Key)
}

func stakeAmount(lamports, reserve uint64) uint64 {
	if lamports < reserve {
		return 0
	}
	return lamports - reserve
}

// Initialize writes Initialized state with the given authorities.
func (p *Program) Initialize(stakeAccount, rent *ledger.AccountInfo, authorized Authorized, lockup Lockup) error {
	s, err := Load(stakeAccount)
	if err != nil {
		return err
	}
	if s.Status != StatusUninitialized {
		return fmt.Errorf("%w: %s already initialized", ErrInvalidState, stakeAccount.Key)
	}
	r, err := ledger.RentFrom(rent)
	if err != nil {
		return err
	}
	reserve := r.MinimumBalance(len(stakeAccount.Data))
	if stakeAccount.Lamports < reserve {
		return fmt.Errorf("%w: %d below reserve %d", ErrInsufficientFunds, stakeAccount.Lamports, reserve)
	}

	return store(stakeAccount, &State{
		Status: StatusInitialized,
		Meta:   Meta{RentExemptReserve: reserve, Authorized: authorized, Lockup: lockup},
	})
}

// Authorize replaces one of the account's authorities. The staker may be
// changed by either authority, the withdrawer only by the withdrawer.
func (p *Program) Authorize(stakeAccount, clock, authority *ledger.AccountInfo, newAuthority solana.PublicKey, role Authorize, proof *ledger.AuthorityProof) error {
	s, err := Load(stakeAccount)
	if err != nil {
		return err
	}
	if s.Status != StatusInitialized && s.Status != StatusStake {
		return fmt.Errorf("%w: authorize on status %d", ErrInvalidState, s.Status)
	}
	c, err := ledger.ClockFrom(clock)
	if err != nil {
		return err
	}

	auth := &s.Meta.Authorized
	switch role {
	case AuthorizeStaker:
		if err := requireAuthority([]solana.PublicKey{auth.Staker, auth.Withdrawer}, authority, proof); err != nil {
			return err
		}
		auth.Staker = newAuthority
	case AuthorizeWithdrawer:
		if s.Meta.Lockup.InForce(c.UnixTimestamp, c.Epoch) {
			return ErrLockupInForce
		}
		if err := requireAuthority([]solana.PublicKey{auth.Withdrawer}, authority, proof); err != nil {
			return err
		}
		auth.Withdrawer = newAuthority
	default:
		return fmt.Errorf("%w: authorize role %d", ErrInvalidInstruction, uint32(role))
	}

	p.logger.Debug("Stake authority changed",
		zap.Stringer("stake", stakeAccount.Key),
		zap.Stringer("role", role),
		zap.Stringer("new_authority", newAuthority))
	return store(stakeAccount, s)
}

// DelegateStake points the account's stake at a vote account, activating
// from the current epoch.
func (p *Program) DelegateStake(stakeAccount, vote, clock, authority *ledger.AccountInfo, proof *ledger.AuthorityProof) error {
	s, err := Load(stakeAccount)
	if err != nil {
		return err
	}
	c, err := ledger.ClockFrom(clock)
	if err != nil {
		return err
	}
	if vote.Owner != solana.VoteProgramID {
		return fmt.Errorf("%w: %s", ErrInvalidVoteAccount, vote.Key)
	}

	switch s.Status {
	case StatusInitialized:
	case StatusStake:
		if !s.Stake.Delegation.IsDeactivating() {
			return ErrTooSoonToRedelegate
		}
	default:
		return fmt.Errorf("%w: delegate on status %d", ErrInvalidState, s.Status)
	}
	if err := requireAuthority([]solana.PublicKey{s.Meta.Authorized.Staker}, authority, proof); err != nil {
		return err
	}

	amount := stakeAmount(stakeAccount.Lamports, s.Meta.RentExemptReserve)
	if amount == 0 {
		return ErrInsufficientStake
	}

	s.Status = StatusStake
	s.Stake = Stake{
		Delegation: Delegation{
			VoterPubkey:        vote.Key,
			StakeLamports:      amount,
			ActivationEpoch:    c.Epoch,
			DeactivationEpoch:  math.MaxUint64,
			WarmupCooldownRate: DefaultWarmupCooldownRate,
		},
	}
	return store(stakeAccount, s)
}

// Deactivate starts cooldown at the current epoch.
func (p *Program) Deactivate(stakeAccount, clock, authority *ledger.AccountInfo, proof *ledger.AuthorityProof) error {
	s, err := Load(stakeAccount)
	if err != nil {
		return err
	}
	if s.Status != StatusStake {
		return fmt.Errorf("%w: deactivate on status %d", ErrInvalidState, s.Status)
	}
	c, err := ledger.ClockFrom(clock)
	if err != nil {
		return err
	}
	if err := requireAuthority([]solana.PublicKey{s.Meta.Authorized.Staker}, authority, proof); err != nil {
		return err
	}
	if s.Stake.Delegation.IsDeactivating() {
		return ErrAlreadyDeactivated
	}
	s.Stake.Delegation.DeactivationEpoch = c.Epoch
	return store(stakeAccount, s)
}

// Split moves lamports into an uninitialized stake account that inherits
// the source's authorities and delegation.
func (p *Program) Split(stakeAccount, splitAccount, authority *ledger.AccountInfo, lamports uint64, proof *ledger.AuthorityProof) error {
	s, err := Load(stakeAccount)
	if err != nil {
		return err
	}
	dst, err := Load(splitAccount)
	if err != nil {
		return err
	}
	if dst.Status != StatusUninitialized {
		return fmt.Errorf("%w: split destination %s is in use", ErrInvalidState, splitAccount.Key)
	}
	if s.Status != StatusInitialized && s.Status != StatusStake {
		return fmt.Errorf("%w: split on status %d", ErrInvalidState, s.Status)
	}
	if err := requireAuthority([]solana.PublicKey{s.Meta.Authorized.Staker}, authority, proof); err != nil {
		return err
	}
	if lamports == 0 || lamports > stakeAccount.Lamports {
		return fmt.Errorf("%w: split %d of %d", ErrInsufficientFunds, lamports, stakeAccount.Lamports)
	}

	reserve := s.Meta.RentExemptReserve
	remaining := stakeAccount.Lamports - lamports
	if remaining != 0 && remaining < reserve {
		return fmt.Errorf("%w: %d left, reserve %d", ErrInsufficientFunds, remaining, reserve)
	}
	if splitAccount.Lamports+lamports < reserve {
		return fmt.Errorf("%w: split destination below reserve", ErrInsufficientFunds)
	}

	split := &State{Status: s.Status, Meta: s.Meta, Stake: s.Stake, Flags: s.Flags}
	stakeAccount.Lamports = remaining
	splitAccount.Lamports += lamports

	if s.Status == StatusStake {
		split.Stake.Delegation.StakeLamports = stakeAmount(splitAccount.Lamports, reserve)
		s.Stake.Delegation.StakeLamports = stakeAmount(remaining, reserve)
	}
	if remaining == 0 {
		s = &State{Status: StatusUninitialized}
	}

	if err := store(stakeAccount, s); err != nil {
		return err
	}
	return store(splitAccount, split)
}

// Merge drains source into destination. Both must share authorities and,
// when delegated, the same vote account; the source is left uninitialized.
func (p *Program) Merge(destination, source, clock, history, authority *ledger.AccountInfo, proof *ledger.AuthorityProof) error {
	if destination.Key == source.Key {
		return fmt.Errorf("%w: merge into itself", ErrInvalidInstruction)
	}
	dst, err := Load(destination)
	if err != nil {
		return err
	}
	src, err := Load(source)
	if err != nil {
		return err
	}
	if _, err := ledger.ClockFrom(clock); err != nil {
		return err
	}
	if _, err := ledger.StakeHistoryFrom(history); err != nil {
		return err
	}
	if err := requireAuthority([]solana.PublicKey{dst.Meta.Authorized.Staker}, authority, proof); err != nil {
		return err
	}
	if dst.Meta.Authorized != src.Meta.Authorized {
		return fmt.Errorf("%w: authorities differ", ErrMergeMismatch)
	}

	switch {
	case dst.Status == StatusStake && src.Status == StatusStake:
		dd, sd := dst.Stake.Delegation, src.Stake.Delegation
		if dd.VoterPubkey != sd.VoterPubkey {
			return fmt.Errorf("%w: voters %s and %s", ErrMergeMismatch, dd.VoterPubkey, sd.VoterPubkey)
		}
		if dd.IsDeactivating() || sd.IsDeactivating() {
			return fmt.Errorf("%w: deactivating stake", ErrMergeMismatch)
		}
	case dst.Status == StatusInitialized && src.Status == StatusInitialized:
	default:
		return fmt.Errorf("%w: states %d and %d", ErrMergeMismatch, dst.Status, src.Status)
	}

	destination.Lamports += source.Lamports
	source.Lamports = 0
	if dst.Status == StatusStake {
		dst.Stake.Delegation.StakeLamports = stakeAmount(destination.Lamports, dst.Meta.RentExemptReserve)
	}

	if err := store(destination, dst); err != nil {
		return err
	}
	p.logger.Debug("Stake merged",
		zap.Stringer("destination", destination.Key),
		zap.Stringer("source", source.Key),
		zap.Uint64("lamports", destination.Lamports))
	return store(source, &State{Status: StatusUninitialized})
}

// Process handles top-level stake instructions.
func (p *Program) Process(accounts []*ledger.AccountInfo, data []byte) error {
	if len(data) < 4 {
		return ErrInvalidInstruction
	}

	switch tag := binutil.ReadUint32LittleEndian(data, 0); tag {
	case instructionAuthorize:
		if len(data) < 40 {
			return fmt.Errorf("%w: authorize data is %d bytes", ErrInvalidInstruction, len(data))
		}
		if err := ledger.RequireAccounts(accounts, 3); err != nil {
			return err
		}
		newAuthority := binutil.ReadPubKey(data, 4)
		role := Authorize(binutil.ReadUint32LittleEndian(data, 36))
		return p.Authorize(accounts[0], accounts[1], accounts[2], newAuthority, role, nil)
	case instructionMerge:
		if err := ledger.RequireAccounts(accounts, 5); err != nil {
			return err
		}
		return p.Merge(accounts[0], accounts[1], accounts[2], accounts[3], accounts[4], nil)
	}

	inst, err := stakeprog.DecodeInstruction(ledger.Metas(accounts), data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}
	switch impl := inst.Impl.(type) {
	case *stakeprog.Initialize:
		if err := ledger.RequireAccounts(accounts, 2); err != nil {
			return err
		}
		return p.Initialize(accounts[0], accounts[1], authorizedFrom(impl.Authorized), lockupFrom(impl.Lockup))
	case *stakeprog.DelegateStake:
		if err := ledger.RequireAccounts(accounts, 6); err != nil {
			return err
		}
		return p.DelegateStake(accounts[0], accounts[1], accounts[2], accounts[5], nil)
	case *stakeprog.Split:
		if err := ledger.RequireAccounts(accounts, 3); err != nil {
			return err
		}
		return p.Split(accounts[0], accounts[1], accounts[2], *impl.Lamports, nil)
	case *stakeprog.Deactivate:
		if err := ledger.RequireAccounts(accounts, 3); err != nil {
			return err
		}
		return p.Deactivate(accounts[0], accounts[1], accounts[2], nil)
	default:
		return fmt.Errorf("%w: type %d", ErrInvalidInstruction, inst.TypeID.Uint32())
	}
}

func authorizedFrom(a *stakeprog.Authorized) Authorized {
	var out Authorized
	if a == nil {
		return out
	}
	if a.Staker != nil {
		out.Staker = *a.Staker
	}
	if a.Withdrawer != nil {
		out.Withdrawer = *a.Withdrawer
	}
	return out
}

func lockupFrom(l *stakeprog.Lockup) Lockup {
	var out Lockup
	if l == nil {
		return out
	}
	if l.UnixTimestamp != nil {
		out.UnixTimestamp = *l.UnixTimestamp
	}
	if l.Epoch != nil {
		out.Epoch = *l.Epoch
	}
	if l.Custodian != nil {
		out.Custodian = *l.Custodian
	}
	return out
}
