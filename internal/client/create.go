// internal/client/create.go
package client

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	sysprog "github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/rovshanmuradov/metapool/internal/ledger"
	tokenprog "github.com/rovshanmuradov/metapool/internal/programs/token"
	"github.com/rovshanmuradov/metapool/internal/stakepool"
)

// DefaultDecimals совпадает с нативным SOL
const DefaultDecimals = 9

// PoolKeys are the fresh accounts a new stake pool is created at.
type PoolKeys struct {
	Pool          solana.PrivateKey
	ValidatorList solana.PrivateKey
	Mint          solana.PrivateKey
	FeeAccount    solana.PrivateKey
}

func NewPoolKeys() PoolKeys {
	return PoolKeys{
		Pool:          solana.NewWallet().PrivateKey,
		ValidatorList: solana.NewWallet().PrivateKey,
		Mint:          solana.NewWallet().PrivateKey,
		FeeAccount:    solana.NewWallet().PrivateKey,
	}
}

// Signers lists the keys that must sign the create transaction.
func (k PoolKeys) Signers() []solana.PrivateKey {
	return []solana.PrivateKey{k.Pool, k.ValidatorList, k.Mint, k.FeeAccount}
}

// LiquidityKeys are the fresh accounts a new liquidity pool is created at.
type LiquidityKeys struct {
	LiquidityPool solana.PrivateKey
	LPMint        solana.PrivateKey
	AssetReserve  solana.PrivateKey
	ShareReserve  solana.PrivateKey
}

func NewLiquidityKeys() LiquidityKeys {
	return LiquidityKeys{
		LiquidityPool: solana.NewWallet().PrivateKey,
		LPMint:        solana.NewWallet().PrivateKey,
		AssetReserve:  solana.NewWallet().PrivateKey,
		ShareReserve:  solana.NewWallet().PrivateKey,
	}
}

func (k LiquidityKeys) Signers() []solana.PrivateKey {
	return []solana.PrivateKey{k.LiquidityPool, k.LPMint, k.AssetReserve, k.ShareReserve}
}

// CreateMintInstructions allocates and initializes a mint without a freeze
// authority.
func CreateMintInstructions(rent ledger.Rent, payer, mint, authority solana.PublicKey) []solana.Instruction {
	return []solana.Instruction{
		sysprog.NewCreateAccountInstruction(rent.MinimumBalance(tokenprog.MintSize), tokenprog.MintSize,
			solana.TokenProgramID, payer, mint).Build(),
		token.NewInitializeMintInstructionBuilder().
			SetDecimals(DefaultDecimals).
			SetMintAuthority(authority).
			SetMintAccount(mint).
			SetSysVarRentPubkeyAccount(solana.SysVarRentPubkey).
			Build(),
	}
}

// CreateTokenAccountInstructions allocates and initializes a token account.
func CreateTokenAccountInstructions(rent ledger.Rent, payer, account, mint, owner solana.PublicKey) []solana.Instruction {
	return []solana.Instruction{
		sysprog.NewCreateAccountInstruction(rent.MinimumBalance(tokenprog.AccountSize), tokenprog.AccountSize,
			solana.TokenProgramID, payer, account).Build(),
		token.NewInitializeAccountInstruction(account, mint, owner, solana.SysVarRentPubkey).Build(),
	}
}

// CreatePoolInstructions builds the single transaction that creates the pool
// mint, the owner fee account, the pool and list records and initializes the
// pool. Keys and owner must sign.
func CreatePoolInstructions(programID solana.PublicKey, rent ledger.Rent, payer, owner solana.PublicKey, keys PoolKeys, fee stakepool.Fee, capacity int) ([]solana.Instruction, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("validator list capacity must be positive, got %d", capacity)
	}
	pool := keys.Pool.PublicKey()
	withdrawAuthority, _, err := stakepool.DeriveAuthority(programID, pool, stakepool.RoleWithdraw)
	if err != nil {
		return nil, fmt.Errorf("derive withdraw authority: %w", err)
	}
	listSize := stakepool.ValidatorListSize(capacity)

	var ixs []solana.Instruction
	ixs = append(ixs, CreateMintInstructions(rent, payer, keys.Mint.PublicKey(), withdrawAuthority)...)
	ixs = append(ixs, CreateTokenAccountInstructions(rent, payer, keys.FeeAccount.PublicKey(), keys.Mint.PublicKey(), owner)...)
	ixs = append(ixs,
		sysprog.NewCreateAccountInstruction(rent.MinimumBalance(stakepool.PoolStateSize), stakepool.PoolStateSize,
			programID, payer, pool).Build(),
		sysprog.NewCreateAccountInstruction(rent.MinimumBalance(listSize), uint64(listSize),
			programID, payer, keys.ValidatorList.PublicKey()).Build(),
		stakepool.NewInitializeInstruction(programID, stakepool.InitializeParams{
			Pool:            pool,
			Owner:           owner,
			ValidatorList:   keys.ValidatorList.PublicKey(),
			PoolMint:        keys.Mint.PublicKey(),
			OwnerFeeAccount: keys.FeeAccount.PublicKey(),
			Fee:             fee,
		}),
	)
	return ixs, nil
}

// CreateLiquidityPoolInstructions creates the LP mint and both reserves under
// the liquidity authority and binds the liquidity pool to the stake pool.
func CreateLiquidityPoolInstructions(programID solana.PublicKey, rent ledger.Rent, payer, owner, stakePool, poolMint, assetMint solana.PublicKey, keys LiquidityKeys) ([]solana.Instruction, error) {
	liq := keys.LiquidityPool.PublicKey()
	authority, _, err := stakepool.DeriveAuthority(programID, liq, stakepool.RoleLiquidity)
	if err != nil {
		return nil, fmt.Errorf("derive liquidity authority: %w", err)
	}

	var ixs []solana.Instruction
	ixs = append(ixs, CreateMintInstructions(rent, payer, keys.LPMint.PublicKey(), authority)...)
	ixs = append(ixs, CreateTokenAccountInstructions(rent, payer, keys.AssetReserve.PublicKey(), assetMint, authority)...)
	ixs = append(ixs, CreateTokenAccountInstructions(rent, payer, keys.ShareReserve.PublicKey(), poolMint, authority)...)
	ixs = append(ixs,
		sysprog.NewCreateAccountInstruction(rent.MinimumBalance(stakepool.LiquidityPoolStateSize), stakepool.LiquidityPoolStateSize,
			programID, payer, liq).Build(),
		stakepool.NewInitializeLiquidityPoolInstruction(programID, stakepool.InitializeLiquidityPoolParams{
			LiquidityPool: liq,
			StakePool:     stakePool,
			Owner:         owner,
			LPMint:        keys.LPMint.PublicKey(),
			AssetReserve:  keys.AssetReserve.PublicKey(),
			ShareReserve:  keys.ShareReserve.PublicKey(),
		}),
	)
	return ixs, nil
}
