// =============================
// File: internal/stakepool/processor_balance.go
// =============================
package stakepool

import (
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/ledger"
)

// processUpdateListBalance refreshes stale entries from the supplied
// validator stake accounts. Every account must sit at the pool's derived
// address for its validator.
func (p *Processor) processUpdateListBalance(accounts []*ledger.AccountInfo) error {
	if err := requireAccounts(accounts, 3); err != nil {
		return err
	}
	poolInfo, listInfo, clockInfo, stakeInfos := accounts[0], accounts[1], accounts[2], accounts[3:]

	pool, err := p.loadInitializedPool(poolInfo)
	if err != nil {
		return err
	}
	list, err := p.loadPoolList(pool, listInfo)
	if err != nil {
		return err
	}
	clock, err := readClock(clockInfo)
	if err != nil {
		return err
	}

	// нечего обновлять: все записи актуальны
	if len(list.Stale(clock.Epoch)) == 0 {
		return nil
	}

	balances := make(map[solana.PublicKey]uint64, len(stakeInfos))
	for _, info := range stakeInfos {
		validator, err := p.poolValidatorStake(info, poolInfo.Key)
		if err != nil {
			return err
		}
		balances[validator] = info.Lamports
	}

	changed := list.Refresh(clock.Epoch, balances)
	if changed == 0 {
		return nil
	}
	p.logger.Debug("Validator balances refreshed",
		zap.Uint64("epoch", clock.Epoch),
		zap.Int("changed", changed),
		zap.Int("supplied", len(stakeInfos)))
	return list.EncodeTo(listInfo.Data)
}

// processUpdatePoolBalance recomputes stake_total once every entry is current.
func (p *Processor) processUpdatePoolBalance(accounts []*ledger.AccountInfo) error {
	if err := requireAccounts(accounts, 3); err != nil {
		return err
	}
	poolInfo, listInfo, clockInfo := accounts[0], accounts[1], accounts[2]

	pool, err := p.loadInitializedPool(poolInfo)
	if err != nil {
		return err
	}
	list, err := p.loadPoolList(pool, listInfo)
	if err != nil {
		return err
	}
	clock, err := readClock(clockInfo)
	if err != nil {
		return err
	}

	var total uint64
	for _, v := range list.Validators {
		if v.LastUpdateEpoch < clock.Epoch {
			return ErrStakeListOutOfDate
		}
		if total, err = checkedAdd(total, v.Balance); err != nil {
			return err
		}
	}

	p.logger.Debug("Pool balance updated",
		zap.Uint64("previous_stake_total", pool.StakeTotal),
		zap.Uint64("stake_total", total),
		zap.Uint64("epoch", clock.Epoch))
	pool.StakeTotal = total
	pool.LastUpdateEpoch = clock.Epoch
	return pool.EncodeTo(poolInfo.Data)
}
