// cmd/metapool/validator.go
package main

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/app"
	"github.com/rovshanmuradov/metapool/internal/client"
	"github.com/rovshanmuradov/metapool/internal/ledger"
	"github.com/rovshanmuradov/metapool/internal/stakepool"
)

// registerVote заводит vote-аккаунт в локальном ledger
func registerVote(r *app.Runner) (solana.PublicKey, error) {
	vote := solana.NewWallet().PublicKey()
	if err := r.Bank().SetAccount(vote, &ledger.Account{Lamports: 1, Owner: solana.VoteProgramID}); err != nil {
		return solana.PublicKey{}, fmt.Errorf("register vote account: %w", err)
	}
	return vote, nil
}

func (c *cli) createValidatorStakeCmd() *cobra.Command {
	var poolFlag, validatorFlag, amountFlag string
	cmd := &cobra.Command{
		Use:   "create-validator-stake",
		Short: "Create and delegate the pool's stake account for a validator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := parseKey("pool", poolFlag)
			if err != nil {
				return err
			}
			lamports, err := client.SOLToLamports(amountFlag)
			if err != nil {
				return err
			}
			return c.withRunner(cmd, func(ctx context.Context, r *app.Runner) error {
				payer, owner, err := signers(r)
				if err != nil {
					return err
				}
				if _, err := client.LoadSnapshot(ctx, r.Bank(), r.ProgramID(), pool); err != nil {
					return err
				}

				var vote solana.PublicKey
				if validatorFlag != "" {
					if vote, err = parseKey("validator", validatorFlag); err != nil {
						return err
					}
				} else if vote, err = registerVote(r); err != nil {
					return err
				}

				rent, err := r.Bank().Rent()
				if err != nil {
					return err
				}
				ixs, stakeAccount, err := client.CreateValidatorStakeInstructions(r.ProgramID(), rent, pool,
					payer.PublicKey(), owner.PublicKey(), vote, lamports)
				if err != nil {
					return err
				}
				sig, err := r.Bank().Send(ctx, payer, ixs, owner)
				if err != nil {
					return fmt.Errorf("create validator stake: %w", err)
				}

				r.Logger().WithTransaction(sig).Info("Validator stake account created",
					zap.Stringer("validator", vote),
					zap.Stringer("stake_account", stakeAccount),
					zap.Uint64("lamports", lamports))
				fmt.Fprintf(c.out, "validator       %s\n", vote)
				fmt.Fprintf(c.out, "stake account   %s\n", stakeAccount)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolFlag, "pool", "", "stake pool address")
	cmd.Flags().StringVar(&validatorFlag, "validator", "", "vote account (a local one is registered when empty)")
	cmd.Flags().StringVar(&amountFlag, "amount", "1", "SOL the stake account holds")
	_ = cmd.MarkFlagRequired("pool")
	return cmd
}

func (c *cli) addValidatorStakeCmd() *cobra.Command {
	var poolFlag, stakeFlag, receiverFlag string
	cmd := &cobra.Command{
		Use:   "add-validator-stake",
		Short: "Hand a delegated validator stake account to the pool (owner signs)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := parseKey("pool", poolFlag)
			if err != nil {
				return err
			}
			stakeAccount, err := parseKey("stake", stakeFlag)
			if err != nil {
				return err
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

				var tx txBuilder
				tx.sign(owner)
				receiver, _, err := tx.tokenAccount(r, payer.PublicKey(), receiverFlag, "token-receiver",
					snap.Pool.PoolMint, owner.PublicKey())
				if err != nil {
					return err
				}
				ixs, err := client.AddValidatorInstructions(snap, owner.PublicKey(), stakeAccount, receiver)
				if err != nil {
					return err
				}
				tx.add(ixs...)
				sig, err := tx.send(ctx, r, payer)
				if err != nil {
					return fmt.Errorf("add validator stake: %w", err)
				}

				r.Logger().WithTransaction(sig).Info("Validator added",
					zap.Stringer("pool", pool),
					zap.Stringer("stake_account", stakeAccount))
				fmt.Fprintf(c.out, "shares receiver %s\n", receiver)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolFlag, "pool", "", "stake pool address")
	cmd.Flags().StringVar(&stakeFlag, "stake", "", "validator stake account")
	cmd.Flags().StringVar(&receiverFlag, "token-receiver", "", "pool token account for the shares (created when empty)")
	_ = cmd.MarkFlagRequired("pool")
	_ = cmd.MarkFlagRequired("stake")
	return cmd
}

func (c *cli) removeValidatorStakeCmd() *cobra.Command {
	var poolFlag, stakeFlag, burnFlag, authorityFlag string
	cmd := &cobra.Command{
		Use:   "remove-validator-stake",
		Short: "Take a validator stake account out of the pool, burning its shares",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := parseKey("pool", poolFlag)
			if err != nil {
				return err
			}
			stakeAccount, err := parseKey("stake", stakeFlag)
			if err != nil {
				return err
			}
			burnFrom, err := parseKey("burn-from", burnFlag)
			if err != nil {
				return err
			}
			return c.withRunner(cmd, func(ctx context.Context, r *app.Runner) error {
				payer, owner, err := signers(r)
				if err != nil {
					return err
				}
				newAuthority := owner.PublicKey()
				if authorityFlag != "" {
					if newAuthority, err = parseKey("new-authority", authorityFlag); err != nil {
						return err
					}
				}
				snap, err := client.LoadSnapshot(ctx, r.Bank(), r.ProgramID(), pool)
				if err != nil {
					return err
				}
				acc, err := r.Bank().Account(stakeAccount)
				if err != nil {
					return fmt.Errorf("load stake account: %w", err)
				}
				ixs, shares, err := client.RemoveValidatorInstructions(snap, owner.PublicKey(), stakeAccount, burnFrom, newAuthority, acc.Lamports)
				if err != nil {
					return err
				}
				if err := checkShareBalance(r, snap, burnFrom, shares); err != nil {
					return err
				}

				sig, err := r.Bank().Send(ctx, payer, ixs, owner)
				if err != nil {
					return fmt.Errorf("remove validator stake: %w", err)
				}
				r.Logger().WithTransaction(sig).Info("Validator removed",
					zap.Stringer("pool", pool),
					zap.Stringer("stake_account", stakeAccount),
					zap.Uint64("shares_burned", shares))
				fmt.Fprintf(c.out, "stake authority %s\n", newAuthority)
				fmt.Fprintf(c.out, "shares burned   %s\n", client.LamportsToSOL(shares))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolFlag, "pool", "", "stake pool address")
	cmd.Flags().StringVar(&stakeFlag, "stake", "", "validator stake account")
	cmd.Flags().StringVar(&burnFlag, "burn-from", "", "owner's pool token account to burn from")
	cmd.Flags().StringVar(&authorityFlag, "new-authority", "", "new stake authority (defaults to the owner)")
	_ = cmd.MarkFlagRequired("pool")
	_ = cmd.MarkFlagRequired("stake")
	_ = cmd.MarkFlagRequired("burn-from")
	return cmd
}

// checkShareBalance требует, чтобы на счете были доли пула в нужном объеме
func checkShareBalance(r *app.Runner, snap *client.Snapshot, account solana.PublicKey, shares uint64) error {
	acc, err := client.LoadTokenAccount(r.Bank(), account)
	if err != nil {
		return err
	}
	if acc.Mint != snap.Pool.PoolMint {
		return fmt.Errorf("%s does not hold pool tokens", account)
	}
	if acc.Amount < shares {
		return fmt.Errorf("not enough pool tokens in %s: %s needed, %s held", account,
			client.LamportsToSOL(shares), client.LamportsToSOL(acc.Amount))
	}
	return nil
}

func (c *cli) setStakingAuthCmd() *cobra.Command {
	var poolFlag, stakeFlag, stakerFlag string
	cmd := &cobra.Command{
		Use:   "set-staking-auth",
		Short: "Change the staker of one of the pool's stake accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := parseKey("pool", poolFlag)
			if err != nil {
				return err
			}
			stakeAccount, err := parseKey("stake", stakeFlag)
			if err != nil {
				return err
			}
			newStaker, err := parseKey("new-staker", stakerFlag)
			if err != nil {
				return err
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
				ix, err := client.SetStakingAuthorityInstruction(snap, owner.PublicKey(), stakeAccount, newStaker)
				if err != nil {
					return err
				}
				sig, err := r.Bank().Send(ctx, payer, []solana.Instruction{ix}, owner)
				if err != nil {
					return fmt.Errorf("set staking authority: %w", err)
				}
				r.Logger().WithTransaction(sig).Info("Staking authority changed",
					zap.Stringer("stake_account", stakeAccount),
					zap.Stringer("staker", newStaker))
				fmt.Fprintf(c.out, "staker          %s\n", newStaker)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolFlag, "pool", "", "stake pool address")
	cmd.Flags().StringVar(&stakeFlag, "stake", "", "pool stake account")
	cmd.Flags().StringVar(&stakerFlag, "new-staker", "", "new staking authority")
	_ = cmd.MarkFlagRequired("pool")
	_ = cmd.MarkFlagRequired("stake")
	_ = cmd.MarkFlagRequired("new-staker")
	return cmd
}

func (c *cli) setOwnerCmd() *cobra.Command {
	var poolFlag, ownerFlag, feeFlag string
	cmd := &cobra.Command{
		Use:   "set-owner",
		Short: "Change the pool owner or the owner fee account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := parseKey("pool", poolFlag)
			if err != nil {
				return err
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

				// без флагов остаются текущие значения
				newOwner, newFee := snap.Pool.Owner, snap.Pool.OwnerFeeAccount
				if ownerFlag != "" {
					if newOwner, err = parseKey("new-owner", ownerFlag); err != nil {
						return err
					}
				}
				if feeFlag != "" {
					if newFee, err = parseKey("new-fee-receiver", feeFlag); err != nil {
						return err
					}
					if err := checkShareBalance(r, snap, newFee, 0); err != nil {
						return err
					}
				}

				ix := stakepool.NewSetOwnerInstruction(r.ProgramID(), pool, owner.PublicKey(), newOwner, newFee)
				sig, err := r.Bank().Send(ctx, payer, []solana.Instruction{ix}, owner)
				if err != nil {
					return fmt.Errorf("set owner: %w", err)
				}
				r.Logger().WithTransaction(sig).Info("Pool owner changed",
					zap.Stringer("pool", pool),
					zap.Stringer("owner", newOwner),
					zap.Stringer("fee_account", newFee))
				fmt.Fprintf(c.out, "owner           %s\n", newOwner)
				fmt.Fprintf(c.out, "owner fee       %s\n", newFee)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolFlag, "pool", "", "stake pool address")
	cmd.Flags().StringVar(&ownerFlag, "new-owner", "", "new pool owner")
	cmd.Flags().StringVar(&feeFlag, "new-fee-receiver", "", "new owner fee token account")
	_ = cmd.MarkFlagRequired("pool")
	return cmd
}
