// internal/client/snapshot.go
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/metapool/internal/ledger"
	"github.com/rovshanmuradov/metapool/internal/stakepool"
)

// maxParallelLoads ограничивает число одновременных чтений стейк-аккаунтов
const maxParallelLoads = 8

// Reader is the read side of a ledger.
type Reader interface {
	Account(key solana.PublicKey) (*ledger.Account, error)
	Clock() (ledger.Clock, error)
}

// Snapshot is a consistent-enough view of a pool for planning and display.
type Snapshot struct {
	ProgramID solana.PublicKey
	Address   solana.PublicKey
	Pool      *stakepool.PoolState
	List      *stakepool.ValidatorList
	Clock     ledger.Clock
	Accounts  []StakeAccount
}

// LoadSnapshot reads the pool record, its validator list and the clock
// concurrently, then the pool's stake accounts.
func LoadSnapshot(ctx context.Context, r Reader, programID, pool solana.PublicKey) (*Snapshot, error) {
	snap := &Snapshot{ProgramID: programID, Address: pool}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		state, err := loadPoolState(r, programID, pool)
		if err != nil {
			return err
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		list, err := loadValidatorList(r, programID, state.ValidatorList)
		if err != nil {
			return err
		}
		snap.Pool, snap.List = state, list
		return nil
	})
	g.Go(func() error {
		clock, err := r.Clock()
		if err != nil {
			return fmt.Errorf("load clock: %w", err)
		}
		snap.Clock = clock
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.Accounts = make([]StakeAccount, len(snap.List.Validators))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, v := range snap.List.Validators {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			addr, _, err := stakepool.ValidatorStakeAddress(programID, v.Validator, pool)
			if err != nil {
				return fmt.Errorf("derive stake account for %s: %w", v.Validator, err)
			}
			var lamports uint64
			acc, err := r.Account(addr)
			switch {
			case errors.Is(err, ledger.ErrAccountNotFound):
			case err != nil:
				return fmt.Errorf("load stake account %s: %w", addr, err)
			default:
				lamports = acc.Lamports
			}
			snap.Accounts[i] = StakeAccount{Validator: v.Validator, Address: addr, Lamports: lamports}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func loadPoolState(r Reader, programID, pool solana.PublicKey) (*stakepool.PoolState, error) {
	acc, err := r.Account(pool)
	if err != nil {
		return nil, fmt.Errorf("load pool %s: %w", pool, err)
	}
	if acc.Owner != programID {
		return nil, fmt.Errorf("pool %s: %w", pool, stakepool.ErrIncorrectProgramID)
	}
	state, err := stakepool.DecodePoolState(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("decode pool %s: %w", pool, err)
	}
	if !state.IsInitialized() {
		return nil, fmt.Errorf("pool %s: %w", pool, stakepool.ErrInvalidState)
	}
	return state, nil
}

func loadValidatorList(r Reader, programID, key solana.PublicKey) (*stakepool.ValidatorList, error) {
	acc, err := r.Account(key)
	if err != nil {
		return nil, fmt.Errorf("load validator list %s: %w", key, err)
	}
	if acc.Owner != programID {
		return nil, fmt.Errorf("validator list %s: %w", key, stakepool.ErrIncorrectProgramID)
	}
	return stakepool.DecodeValidatorList(acc.Data)
}

// Stale lists validators whose balances predate the snapshot clock.
func (s *Snapshot) Stale() []solana.PublicKey {
	return s.List.Stale(s.Clock.Epoch)
}

// UpToDate reports whether deposits and withdrawals would pass the
// freshness check.
func (s *Snapshot) UpToDate() bool {
	return s.Pool.LastUpdateEpoch >= s.Clock.Epoch
}

// PlanUpdate is PlanUpdate over the snapshot.
func (s *Snapshot) PlanUpdate(maxPerIx int) ([]solana.Instruction, error) {
	return PlanUpdate(s.ProgramID, s.Address, s.Pool, s.List, s.Clock.Epoch, maxPerIx)
}

// PickWithdrawAccounts plans a withdrawal of lamports over the pool's
// stake accounts.
func (s *Snapshot) PickWithdrawAccounts(lamports, minBalance uint64) ([]WithdrawAccount, error) {
	return PickWithdrawAccounts(s.Accounts, lamports, minBalance)
}
