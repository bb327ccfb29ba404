// =============================
// File: internal/stakepool/processor_liquidity.go
// =============================
package stakepool

import (
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/ledger"
)

// processInitializeLiquidityPool binds a liquidity pool to a stake pool.
func (p *Processor) processInitializeLiquidityPool(accounts []*ledger.AccountInfo) error {
	if err := requireAccounts(accounts, 8); err != nil {
		return err
	}
	liqInfo, poolInfo, owner := accounts[0], accounts[1], accounts[2]
	lpMintInfo, assetInfo, shareInfo := accounts[3], accounts[4], accounts[5]
	rentInfo, tokenProgram := accounts[6], accounts[7]

	liq, err := p.loadLiquidityPool(liqInfo)
	if err != nil {
		return err
	}
	if liq.IsInitialized() {
		return ErrAlreadyInUse
	}
	rent, err := readRent(rentInfo)
	if err != nil {
		return err
	}
	if !rent.IsExempt(liqInfo.Lamports, liqInfo.DataLen()) {
		return ErrAccountNotRentExempt
	}

	pool, err := p.loadInitializedPool(poolInfo)
	if err != nil {
		return err
	}
	if err := pool.CheckOwner(owner); err != nil {
		return err
	}
	if err := checkProgram(tokenProgram, pool.TokenProgramID); err != nil {
		return err
	}

	authority, bump, err := DeriveAuthority(p.programID, liqInfo.Key, RoleLiquidity)
	if err != nil {
		return ErrInvalidProgramAddress
	}
	lpMint, err := unpackMint(lpMintInfo, tokenProgram.Key)
	if err != nil {
		return err
	}
	if lpMint.MintAuthority == nil || *lpMint.MintAuthority != authority {
		return ErrWrongMintingAuthority
	}

	asset, err := unpackTokenAccount(assetInfo, tokenProgram.Key)
	if err != nil {
		return err
	}
	shares, err := unpackTokenAccount(shareInfo, tokenProgram.Key)
	if err != nil {
		return err
	}
	if asset.Owner != authority || shares.Owner != authority {
		return ErrInvalidState
	}
	if shares.Mint != pool.PoolMint {
		return ErrWrongAccountMint
	}

	liq = &LiquidityPoolState{
		Version:       StateVersion,
		StakePool:     poolInfo.Key,
		AuthorityBump: bump,
		LPMint:        lpMintInfo.Key,
		AssetReserve:  assetInfo.Key,
		ShareReserve:  shareInfo.Key,
	}
	p.logger.Info("Liquidity pool initialized",
		zap.Stringer("liquidity_pool", liqInfo.Key),
		zap.Stringer("stake_pool", poolInfo.Key),
		zap.Stringer("authority", authority))
	return liq.EncodeTo(liqInfo.Data)
}

// processAddLiquidity moves asset into the reserve and mints LP shares
// proportional to the reserve before the transfer. With no LP supply yet the
// amount is minted as is.
func (p *Processor) processAddLiquidity(accounts []*ledger.AccountInfo, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := requireAccounts(accounts, 9); err != nil {
		return err
	}
	poolInfo, tokenProgram, lpMintInfo, authority := accounts[0], accounts[1], accounts[2], accounts[3]
	userSource, userAuthority, reserveInfo := accounts[4], accounts[5], accounts[6]
	userLPDest, liqInfo := accounts[7], accounts[8]

	pool, err := p.loadInitializedPool(poolInfo)
	if err != nil {
		return err
	}
	liq, err := p.loadLiquidityPool(liqInfo)
	if err != nil {
		return err
	}
	if !liq.IsInitialized() || liq.StakePool != poolInfo.Key ||
		liq.LPMint != lpMintInfo.Key || liq.AssetReserve != reserveInfo.Key {
		return ErrInvalidState
	}
	if err := checkProgram(tokenProgram, pool.TokenProgramID); err != nil {
		return err
	}
	if err := liq.CheckAuthority(authority.Key, p.programID, liqInfo.Key); err != nil {
		return err
	}

	lpMint, err := unpackMint(lpMintInfo, tokenProgram.Key)
	if err != nil {
		return err
	}
	reserve, err := unpackTokenAccount(reserveInfo, tokenProgram.Key)
	if err != nil {
		return err
	}
	// снимок до перевода: курс считается по старым резервам
	supply, reserveBalance := lpMint.Supply, reserve.Amount

	if err := p.token.Transfer(userSource, reserveInfo, userAuthority, amount, nil); err != nil {
		return err
	}

	// первый депозит: LP один к одному, даже если в резерв что-то закинули
	shares := amount
	if supply > 0 {
		if shares, err = proportional(amount, supply, reserveBalance); err != nil {
			return err
		}
	}
	proof := authorityProof(p.programID, liqInfo.Key, RoleLiquidity, liq.AuthorityBump)
	if err := p.token.MintTo(lpMintInfo, userLPDest, authority, shares, proof); err != nil {
		return err
	}

	p.logger.Debug("Liquidity added",
		zap.Uint64("amount", amount),
		zap.Uint64("lp_supply", supply),
		zap.Uint64("reserve", reserveBalance),
		zap.Uint64("lp_minted", shares))
	return nil
}

// processSell swaps pool shares for the reserve asset at the pool rate,
// minus the pool fee which stays in the reserve.
func (p *Processor) processSell(accounts []*ledger.AccountInfo, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := requireAccounts(accounts, 9); err != nil {
		return err
	}
	poolInfo, liqInfo, tokenProgram := accounts[0], accounts[1], accounts[2]
	assetReserve, shareReserve, authority := accounts[3], accounts[4], accounts[5]
	userAssetDest, userShareSource, userAuthority := accounts[6], accounts[7], accounts[8]

	pool, err := p.loadInitializedPool(poolInfo)
	if err != nil {
		return err
	}
	liq, err := p.loadLiquidityPool(liqInfo)
	if err != nil {
		return err
	}
	if !liq.IsInitialized() || liq.StakePool != poolInfo.Key ||
		liq.AssetReserve != assetReserve.Key || liq.ShareReserve != shareReserve.Key {
		return ErrInvalidState
	}
	if err := checkProgram(tokenProgram, pool.TokenProgramID); err != nil {
		return err
	}
	if err := liq.CheckAuthority(authority.Key, p.programID, liqInfo.Key); err != nil {
		return err
	}

	value, err := pool.SharesToStake(amount)
	if err != nil {
		return err
	}
	fee, err := pool.FeeAmount(value)
	if err != nil {
		return err
	}
	payout, err := checkedSub(value, fee)
	if err != nil {
		return err
	}

	if err := p.token.Transfer(userShareSource, shareReserve, userAuthority, amount, nil); err != nil {
		return err
	}
	proof := authorityProof(p.programID, liqInfo.Key, RoleLiquidity, liq.AuthorityBump)
	if err := p.token.Transfer(assetReserve, userAssetDest, authority, payout, proof); err != nil {
		return err
	}

	p.logger.Debug("Shares sold",
		zap.Uint64("shares", amount),
		zap.Uint64("value", value),
		zap.Uint64("fee", fee),
		zap.Uint64("payout", payout))
	return nil
}
