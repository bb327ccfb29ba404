// internal/client/liquidity.go
package client

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/metapool/internal/stakepool"
)

// AddLiquidityInstruction moves amount of the reserve asset from source
// (signed by authority) into the pool and mints LP shares to lpDest.
func (lp *LiquidityPool) AddLiquidityInstruction(programID, source, authority, lpDest solana.PublicKey, amount uint64) solana.Instruction {
	return stakepool.NewAddLiquidityInstruction(programID, stakepool.AddLiquidityParams{
		StakePool:             lp.State.StakePool,
		LPMint:                lp.State.LPMint,
		LiquidityAuthority:    lp.Authority,
		UserSource:            source,
		UserTransferAuthority: authority,
		AssetReserve:          lp.State.AssetReserve,
		UserLPDestination:     lpDest,
		LiquidityPool:         lp.Address,
		Amount:                amount,
	})
}

// SellInstruction swaps amount pool shares from source (signed by authority)
// for the reserve asset paid to dest.
func (lp *LiquidityPool) SellInstruction(programID, source, authority, dest solana.PublicKey, amount uint64) solana.Instruction {
	return stakepool.NewSellInstruction(programID, stakepool.SellParams{
		StakePool:             lp.State.StakePool,
		LiquidityPool:         lp.Address,
		AssetReserve:          lp.State.AssetReserve,
		ShareReserve:          lp.State.ShareReserve,
		LiquidityAuthority:    lp.Authority,
		UserAssetDestination:  dest,
		UserShareSource:       source,
		UserTransferAuthority: authority,
		Amount:                amount,
	})
}

// SellQuote is what selling shares pays out at the current pool rate.
type SellQuote struct {
	Value  uint64
	Fee    uint64
	Payout uint64
}

// QuoteSell mirrors the on-chain sell math.
func QuoteSell(state *stakepool.PoolState, shares uint64) (SellQuote, error) {
	value, err := state.SharesToStake(shares)
	if err != nil {
		return SellQuote{}, err
	}
	fee, err := state.FeeAmount(value)
	if err != nil {
		return SellQuote{}, err
	}
	if fee > value {
		return SellQuote{}, stakepool.ErrCalculationFailure
	}
	return SellQuote{Value: value, Fee: fee, Payout: value - fee}, nil
}
