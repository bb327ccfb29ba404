// cmd/metapool/stake.go
package main

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/app"
	"github.com/rovshanmuradov/metapool/internal/client"
	"github.com/rovshanmuradov/metapool/internal/programs/stake"
)

func (c *cli) createStakeCmd() *cobra.Command {
	var validatorFlag, amountFlag string
	cmd := &cobra.Command{
		Use:   "create-stake",
		Short: "Create a stake account delegated to a validator and held by the payer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			vote, err := parseKey("validator", validatorFlag)
			if err != nil {
				return err
			}
			lamports, err := client.SOLToLamports(amountFlag)
			if err != nil {
				return err
			}
			return c.withRunner(cmd, func(ctx context.Context, r *app.Runner) error {
				payer, _, err := signers(r)
				if err != nil {
					return err
				}
				rent, err := r.Bank().Rent()
				if err != nil {
					return err
				}
				account := solana.NewWallet().PrivateKey
				ixs, err := client.CreateStakeInstructions(rent, payer.PublicKey(), account.PublicKey(), payer.PublicKey(), vote, lamports)
				if err != nil {
					return err
				}
				sig, err := r.Bank().Send(ctx, payer, ixs, account)
				if err != nil {
					return fmt.Errorf("create stake: %w", err)
				}

				r.Logger().WithTransaction(sig).Info("Stake account created",
					zap.Stringer("stake_account", account.PublicKey()),
					zap.Stringer("validator", vote),
					zap.Uint64("lamports", lamports))
				fmt.Fprintf(c.out, "stake account   %s\n", account.PublicKey())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&validatorFlag, "validator", "", "vote account to delegate to")
	cmd.Flags().StringVar(&amountFlag, "amount", "", "SOL to stake")
	_ = cmd.MarkFlagRequired("validator")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (c *cli) depositCmd() *cobra.Command {
	var poolFlag, stakeFlag, receiverFlag string
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit a delegated stake account into the pool for shares",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := parseKey("pool", poolFlag)
			if err != nil {
				return err
			}
			userStake, err := parseKey("stake", stakeFlag)
			if err != nil {
				return err
			}
			return c.withRunner(cmd, func(ctx context.Context, r *app.Runner) error {
				payer, _, err := signers(r)
				if err != nil {
					return err
				}
				snap, err := client.LoadSnapshot(ctx, r.Bank(), r.ProgramID(), pool)
				if err != nil {
					return err
				}
				state, lamports, err := client.LoadStakeState(r.Bank(), userStake)
				if err != nil {
					return err
				}
				if state.Status != stake.StatusStake {
					return fmt.Errorf("stake account %s is not delegated", userStake)
				}
				validator := state.Stake.Delegation.VoterPubkey
				holderKey := state.Meta.Authorized.Withdrawer
				holder, err := signerFor(r, holderKey)
				if err != nil {
					return fmt.Errorf("stake withdrawer %s: %w", holderKey, err)
				}

				var tx txBuilder
				tx.sign(holder)
				receiver, _, err := tx.tokenAccount(r, payer.PublicKey(), receiverFlag, "token-receiver",
					snap.Pool.PoolMint, holderKey)
				if err != nil {
					return err
				}
				ixs, err := client.DepositInstructions(snap, holderKey, userStake, validator, receiver)
				if err != nil {
					return err
				}
				tx.add(ixs...)
				sig, err := tx.send(ctx, r, payer)
				if err != nil {
					return fmt.Errorf("deposit: %w", err)
				}

				r.Logger().WithTransaction(sig).Info("Stake deposited",
					zap.Stringer("pool", pool),
					zap.Stringer("stake_account", userStake),
					zap.Stringer("validator", validator),
					zap.Uint64("lamports", lamports))
				fmt.Fprintf(c.out, "deposited       %s SOL\n", client.LamportsToSOL(lamports))
				fmt.Fprintf(c.out, "shares receiver %s\n", receiver)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolFlag, "pool", "", "stake pool address")
	cmd.Flags().StringVar(&stakeFlag, "stake", "", "delegated stake account to deposit")
	cmd.Flags().StringVar(&receiverFlag, "token-receiver", "", "pool token account for the shares (created when empty)")
	_ = cmd.MarkFlagRequired("pool")
	_ = cmd.MarkFlagRequired("stake")
	return cmd
}

func (c *cli) withdrawCmd() *cobra.Command {
	var poolFlag, amountFlag, burnFlag, recipientFlag string
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Burn pool shares and receive their stake in fresh stake accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := parseKey("pool", poolFlag)
			if err != nil {
				return err
			}
			shares, err := client.SOLToLamports(amountFlag)
			if err != nil {
				return err
			}
			burnFrom, err := parseKey("burn-from", burnFlag)
			if err != nil {
				return err
			}
			return c.withRunner(cmd, func(ctx context.Context, r *app.Runner) error {
				payer, _, err := signers(r)
				if err != nil {
					return err
				}
				snap, err := client.LoadSnapshot(ctx, r.Bank(), r.ProgramID(), pool)
				if err != nil {
					return err
				}
				if err := checkShareBalance(r, snap, burnFrom, shares); err != nil {
					return err
				}
				src, err := client.LoadTokenAccount(r.Bank(), burnFrom)
				if err != nil {
					return err
				}
				holder, err := signerFor(r, src.Owner)
				if err != nil {
					return fmt.Errorf("token owner %s: %w", src.Owner, err)
				}
				recipient := src.Owner
				if recipientFlag != "" {
					if recipient, err = parseKey("recipient", recipientFlag); err != nil {
						return err
					}
				}

				rent, err := r.Bank().Rent()
				if err != nil {
					return err
				}
				plan, err := client.PlanWithdraw(snap, rent, payer.PublicKey(), src.Owner, burnFrom, recipient,
					shares, r.Config().MinStakeBalance)
				if err != nil {
					return err
				}
				sig, err := r.Bank().Send(ctx, payer, plan.Instructions, append(plan.Receivers, holder)...)
				if err != nil {
					return fmt.Errorf("withdraw: %w", err)
				}

				r.Logger().WithTransaction(sig).Info("Stake withdrawn",
					zap.Stringer("pool", pool),
					zap.Uint64("shares", shares),
					zap.Int("stake_accounts", len(plan.Receivers)))
				for i, receiver := range plan.Receivers {
					fmt.Fprintf(c.out, "stake account   %s  %s shares\n",
						receiver.PublicKey(), client.LamportsToSOL(plan.Shares[i]))
				}
				fmt.Fprintf(c.out, "stake authority %s\n", recipient)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolFlag, "pool", "", "stake pool address")
	cmd.Flags().StringVar(&amountFlag, "amount", "", "pool shares to burn")
	cmd.Flags().StringVar(&burnFlag, "burn-from", "", "pool token account to burn from")
	cmd.Flags().StringVar(&recipientFlag, "recipient", "", "authority of the new stake accounts (defaults to the token owner)")
	_ = cmd.MarkFlagRequired("pool")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("burn-from")
	return cmd
}
