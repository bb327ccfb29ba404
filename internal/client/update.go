// internal/client/update.go
package client

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/metapool/internal/stakepool"
)

// PlanUpdate returns the instructions that bring the pool up to epoch:
// UpdateListBalance for stale validators in chunks of maxPerIx, then
// UpdatePoolBalance. Nothing is returned when the pool and every entry are
// current. A pool left behind a current list gets UpdatePoolBalance alone.
func PlanUpdate(programID, pool solana.PublicKey, state *stakepool.PoolState, list *stakepool.ValidatorList, epoch uint64, maxPerIx int) ([]solana.Instruction, error) {
	if maxPerIx <= 0 {
		return nil, fmt.Errorf("max accounts per instruction must be positive, got %d", maxPerIx)
	}

	stale := list.Stale(epoch)
	if len(stale) == 0 && state.LastUpdateEpoch >= epoch {
		return nil, nil
	}

	var ixs []solana.Instruction
	for start := 0; start < len(stale); start += maxPerIx {
		end := min(start+maxPerIx, len(stale))
		accounts := make([]solana.PublicKey, 0, end-start)
		for _, validator := range stale[start:end] {
			addr, _, err := stakepool.ValidatorStakeAddress(programID, validator, pool)
			if err != nil {
				return nil, fmt.Errorf("derive stake account for %s: %w", validator, err)
			}
			accounts = append(accounts, addr)
		}
		ixs = append(ixs, stakepool.NewUpdateListBalanceInstruction(programID, pool, state.ValidatorList, accounts))
	}
	return append(ixs, stakepool.NewUpdatePoolBalanceInstruction(programID, pool, state.ValidatorList)), nil
}
