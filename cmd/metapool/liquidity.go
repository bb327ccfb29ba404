// cmd/metapool/liquidity.go
package main

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/app"
	"github.com/rovshanmuradov/metapool/internal/client"
)

func (c *cli) addLiquidityCmd() *cobra.Command {
	var liquidityFlag, amountFlag, sourceFlag, lpFlag string
	cmd := &cobra.Command{
		Use:   "add-liquidity",
		Short: "Add the reserve asset to a liquidity pool for LP shares",
		RunE: func(cmd *cobra.Command, _ []string) error {
			liquidity, err := parseKey("liquidity-pool", liquidityFlag)
			if err != nil {
				return err
			}
			amount, err := client.SOLToLamports(amountFlag)
			if err != nil {
				return err
			}
			return c.withRunner(cmd, func(ctx context.Context, r *app.Runner) error {
				payer, _, err := signers(r)
				if err != nil {
					return err
				}
				lp, err := client.LoadLiquidityPool(r.Bank(), r.ProgramID(), liquidity)
				if err != nil {
					return err
				}
				reserve, err := client.LoadTokenAccount(r.Bank(), lp.State.AssetReserve)
				if err != nil {
					return err
				}

				var tx txBuilder
				holder := payer
				source := solana.PublicKey{}
				if sourceFlag != "" {
					if source, err = parseKey("source", sourceFlag); err != nil {
						return err
					}
					src, err := client.LoadTokenAccount(r.Bank(), source)
					if err != nil {
						return err
					}
					if src.Mint != reserve.Mint {
						return fmt.Errorf("%s does not hold the reserve asset %s", source, reserve.Mint)
					}
					if holder, err = signerFor(r, src.Owner); err != nil {
						return fmt.Errorf("token owner %s: %w", src.Owner, err)
					}
				} else {
					// без --source чеканим актив на новый счет payer
					mint, err := client.LoadMint(r.Bank(), reserve.Mint)
					if err != nil {
						return err
					}
					if mint.MintAuthority == nil {
						return fmt.Errorf("asset mint %s has no mint authority, pass --source", reserve.Mint)
					}
					minter, err := signerFor(r, *mint.MintAuthority)
					if err != nil {
						return fmt.Errorf("asset mint authority %s: %w", *mint.MintAuthority, err)
					}
					if source, _, err = tx.tokenAccount(r, payer.PublicKey(), "", "source", reserve.Mint, payer.PublicKey()); err != nil {
						return err
					}
					tx.add(token.NewMintToInstruction(amount, reserve.Mint, source, minter.PublicKey(), nil).Build())
					tx.sign(minter)
				}
				tx.sign(holder)

				lpDest, _, err := tx.tokenAccount(r, payer.PublicKey(), lpFlag, "lp-receiver", lp.State.LPMint, holder.PublicKey())
				if err != nil {
					return err
				}
				tx.add(lp.AddLiquidityInstruction(r.ProgramID(), source, holder.PublicKey(), lpDest, amount))
				sig, err := tx.send(ctx, r, payer)
				if err != nil {
					return fmt.Errorf("add liquidity: %w", err)
				}

				r.Logger().WithTransaction(sig).Info("Liquidity added",
					zap.Stringer("liquidity_pool", liquidity),
					zap.Uint64("amount", amount))
				fmt.Fprintf(c.out, "asset source    %s\n", source)
				fmt.Fprintf(c.out, "lp receiver     %s\n", lpDest)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&liquidityFlag, "liquidity-pool", "", "liquidity pool address")
	cmd.Flags().StringVar(&amountFlag, "amount", "", "reserve asset to add")
	cmd.Flags().StringVar(&sourceFlag, "source", "", "asset token account (minted into a new one when empty)")
	cmd.Flags().StringVar(&lpFlag, "lp-receiver", "", "LP token account (created when empty)")
	_ = cmd.MarkFlagRequired("liquidity-pool")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (c *cli) sellCmd() *cobra.Command {
	var liquidityFlag, amountFlag, sourceFlag, receiverFlag string
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Sell pool shares to a liquidity pool for the reserve asset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			liquidity, err := parseKey("liquidity-pool", liquidityFlag)
			if err != nil {
				return err
			}
			shares, err := client.SOLToLamports(amountFlag)
			if err != nil {
				return err
			}
			source, err := parseKey("source", sourceFlag)
			if err != nil {
				return err
			}
			return c.withRunner(cmd, func(ctx context.Context, r *app.Runner) error {
				payer, _, err := signers(r)
				if err != nil {
					return err
				}
				lp, err := client.LoadLiquidityPool(r.Bank(), r.ProgramID(), liquidity)
				if err != nil {
					return err
				}
				snap, err := client.LoadSnapshot(ctx, r.Bank(), r.ProgramID(), lp.State.StakePool)
				if err != nil {
					return err
				}
				if err := checkShareBalance(r, snap, source, shares); err != nil {
					return err
				}
				src, err := client.LoadTokenAccount(r.Bank(), source)
				if err != nil {
					return err
				}
				holder, err := signerFor(r, src.Owner)
				if err != nil {
					return fmt.Errorf("token owner %s: %w", src.Owner, err)
				}
				reserve, err := client.LoadTokenAccount(r.Bank(), lp.State.AssetReserve)
				if err != nil {
					return err
				}
				quote, err := client.QuoteSell(snap.Pool, shares)
				if err != nil {
					return err
				}
				if reserve.Amount < quote.Payout {
					return fmt.Errorf("asset reserve holds %s, sale pays %s",
						client.LamportsToSOL(reserve.Amount), client.LamportsToSOL(quote.Payout))
				}

				var tx txBuilder
				tx.sign(holder)
				dest, _, err := tx.tokenAccount(r, payer.PublicKey(), receiverFlag, "receiver", reserve.Mint, src.Owner)
				if err != nil {
					return err
				}
				tx.add(lp.SellInstruction(r.ProgramID(), source, src.Owner, dest, shares))
				sig, err := tx.send(ctx, r, payer)
				if err != nil {
					return fmt.Errorf("sell: %w", err)
				}

				r.Logger().WithTransaction(sig).Info("Shares sold",
					zap.Stringer("liquidity_pool", liquidity),
					zap.Uint64("shares", shares),
					zap.Uint64("payout", quote.Payout),
					zap.Uint64("fee", quote.Fee))
				fmt.Fprintf(c.out, "payout          %s\n", client.LamportsToSOL(quote.Payout))
				fmt.Fprintf(c.out, "fee             %s\n", client.LamportsToSOL(quote.Fee))
				fmt.Fprintf(c.out, "receiver        %s\n", dest)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&liquidityFlag, "liquidity-pool", "", "liquidity pool address")
	cmd.Flags().StringVar(&amountFlag, "amount", "", "pool shares to sell")
	cmd.Flags().StringVar(&sourceFlag, "source", "", "pool token account to sell from")
	cmd.Flags().StringVar(&receiverFlag, "receiver", "", "asset token account for the payout (created when empty)")
	_ = cmd.MarkFlagRequired("liquidity-pool")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
