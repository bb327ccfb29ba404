// cmd/metapool/pool.go
package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/app"
	"github.com/rovshanmuradov/metapool/internal/client"
	"github.com/rovshanmuradov/metapool/internal/stakepool"
	"github.com/rovshanmuradov/metapool/internal/wallet"
)

// parseFee разбирает комиссию в виде "N/D"
func parseFee(s string) (stakepool.Fee, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return stakepool.Fee{}, fmt.Errorf("fee %q must look like N/D", s)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return stakepool.Fee{}, fmt.Errorf("fee numerator: %w", err)
	}
	d, err := strconv.ParseUint(strings.TrimSpace(den), 10, 64)
	if err != nil {
		return stakepool.Fee{}, fmt.Errorf("fee denominator: %w", err)
	}
	fee := stakepool.Fee{Numerator: n, Denominator: d}
	if !fee.Valid() {
		return stakepool.Fee{}, fmt.Errorf("fee %s: %w", s, stakepool.ErrFeeTooHigh)
	}
	return fee, nil
}

// signers достает payer и owner из keyring
func signers(r *app.Runner) (payer, owner solana.PrivateKey, err error) {
	if payer, err = r.Key(wallet.Payer); err != nil {
		return nil, nil, err
	}
	if owner, err = r.Key(wallet.Owner); err != nil {
		return nil, nil, err
	}
	return payer, owner, nil
}

// parseKey разбирает base58-ключ из флага
func parseKey(flag, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return key, nil
}

// signerFor находит в keyring ключ, который подписывает за pub
func signerFor(r *app.Runner, pub solana.PublicKey) (solana.PrivateKey, error) {
	k, err := r.Keyring()
	if err != nil {
		return nil, err
	}
	w, err := k.Lookup(pub)
	if err != nil {
		return nil, err
	}
	return w.PrivateKey, nil
}

// txBuilder копит инструкции и подписантов одной транзакции
type txBuilder struct {
	ixs     []solana.Instruction
	signers []solana.PrivateKey
}

func (b *txBuilder) add(ixs ...solana.Instruction) {
	b.ixs = append(b.ixs, ixs...)
}

func (b *txBuilder) sign(keys ...solana.PrivateKey) {
	b.signers = append(b.signers, keys...)
}

// tokenAccount returns the account passed in value or plans a fresh one for
// mint held by owner.
func (b *txBuilder) tokenAccount(r *app.Runner, payer solana.PublicKey, value string, flag string, mint, owner solana.PublicKey) (solana.PublicKey, bool, error) {
	if value != "" {
		key, err := parseKey(flag, value)
		return key, false, err
	}
	rent, err := r.Bank().Rent()
	if err != nil {
		return solana.PublicKey{}, false, err
	}
	account := solana.NewWallet().PrivateKey
	b.add(client.CreateTokenAccountInstructions(rent, payer, account.PublicKey(), mint, owner)...)
	b.sign(account)
	return account.PublicKey(), true, nil
}

func (b *txBuilder) send(ctx context.Context, r *app.Runner, payer solana.PrivateKey) (solana.Signature, error) {
	return r.Bank().Send(ctx, payer, b.ixs, b.signers...)
}

func (c *cli) createPoolCmd() *cobra.Command {
	var (
		feeFlag  string
		capacity int
	)
	cmd := &cobra.Command{
		Use:   "create-pool",
		Short: "Create a stake pool with its mint, fee account and validator list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fee, err := parseFee(feeFlag)
			if err != nil {
				return err
			}
			return c.withRunner(cmd, func(ctx context.Context, r *app.Runner) error {
				payer, owner, err := signers(r)
				if err != nil {
					return err
				}
				rent, err := r.Bank().Rent()
				if err != nil {
					return err
				}
				if capacity <= 0 {
					capacity = r.Config().ValidatorListCapacity
				}

				keys := client.NewPoolKeys()
				ixs, err := client.CreatePoolInstructions(r.ProgramID(), rent, payer.PublicKey(), owner.PublicKey(), keys, fee, capacity)
				if err != nil {
					return err
				}
				sig, err := r.Bank().Send(ctx, payer, ixs, append(keys.Signers(), owner)...)
				if err != nil {
					return fmt.Errorf("create pool: %w", err)
				}

				r.Logger().WithTransaction(sig).Info("Stake pool created",
					zap.Stringer("pool", keys.Pool.PublicKey()),
					zap.Uint64("fee_numerator", fee.Numerator),
					zap.Uint64("fee_denominator", fee.Denominator),
					zap.Int("capacity", capacity))

				fmt.Fprintf(c.out, "pool            %s\n", keys.Pool.PublicKey())
				fmt.Fprintf(c.out, "validator list  %s\n", keys.ValidatorList.PublicKey())
				fmt.Fprintf(c.out, "pool mint       %s\n", keys.Mint.PublicKey())
				fmt.Fprintf(c.out, "owner fee       %s\n", keys.FeeAccount.PublicKey())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&feeFlag, "fee", "0/1", "owner fee as N/D of minted shares")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "validator list capacity (defaults to validator_list_capacity)")
	return cmd
}

func (c *cli) createLiquidityPoolCmd() *cobra.Command {
	var poolFlag, assetFlag string
	cmd := &cobra.Command{
		Use:   "create-liquidity-pool",
		Short: "Create a liquidity pool bound to a stake pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := solana.PublicKeyFromBase58(poolFlag)
			if err != nil {
				return fmt.Errorf("invalid --pool: %w", err)
			}
			return c.withRunner(cmd, func(ctx context.Context, r *app.Runner) error {
				payer, owner, err := signers(r)
				if err != nil {
					return err
				}
				snap, err := client.LoadSnapshot(ctx, r.Bank(), r.ProgramID(), pool)
				if err != nil {
					return err
				}
				rent, err := r.Bank().Rent()
				if err != nil {
					return err
				}

				var ixs []solana.Instruction
				signerKeys := []solana.PrivateKey{owner}
				assetMint := solana.PublicKey{}
				if assetFlag != "" {
					if assetMint, err = solana.PublicKeyFromBase58(assetFlag); err != nil {
						return fmt.Errorf("invalid --asset-mint: %w", err)
					}
				} else {
					// без --asset-mint создаем новый mint под payer
					mint := solana.NewWallet().PrivateKey
					assetMint = mint.PublicKey()
					ixs = append(ixs, client.CreateMintInstructions(rent, payer.PublicKey(), assetMint, payer.PublicKey())...)
					signerKeys = append(signerKeys, mint)
				}

				keys := client.NewLiquidityKeys()
				liqIxs, err := client.CreateLiquidityPoolInstructions(r.ProgramID(), rent, payer.PublicKey(), owner.PublicKey(),
					pool, snap.Pool.PoolMint, assetMint, keys)
				if err != nil {
					return err
				}
				ixs = append(ixs, liqIxs...)

				sig, err := r.Bank().Send(ctx, payer, ixs, append(signerKeys, keys.Signers()...)...)
				if err != nil {
					return fmt.Errorf("create liquidity pool: %w", err)
				}

				r.Logger().WithTransaction(sig).Info("Liquidity pool created",
					zap.Stringer("liquidity_pool", keys.LiquidityPool.PublicKey()),
					zap.Stringer("stake_pool", pool),
					zap.Stringer("asset_mint", assetMint))

				fmt.Fprintf(c.out, "liquidity pool  %s\n", keys.LiquidityPool.PublicKey())
				fmt.Fprintf(c.out, "lp mint         %s\n", keys.LPMint.PublicKey())
				fmt.Fprintf(c.out, "asset mint      %s\n", assetMint)
				fmt.Fprintf(c.out, "asset reserve   %s\n", keys.AssetReserve.PublicKey())
				fmt.Fprintf(c.out, "share reserve   %s\n", keys.ShareReserve.PublicKey())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolFlag, "pool", "", "stake pool address")
	cmd.Flags().StringVar(&assetFlag, "asset-mint", "", "mint of the reserve asset (created when empty)")
	_ = cmd.MarkFlagRequired("pool")
	return cmd
}
