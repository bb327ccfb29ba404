// cmd/metapool/update.go
package main

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/app"
	"github.com/rovshanmuradov/metapool/internal/client"
	"github.com/rovshanmuradov/metapool/internal/wallet"
)

func (c *cli) updateCmd() *cobra.Command {
	var poolFlag string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Refresh stale validator balances and the pool total",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRunner(cmd, func(ctx context.Context, r *app.Runner) error {
				var pools []solana.PublicKey
				if poolFlag != "" {
					pool, err := solana.PublicKeyFromBase58(poolFlag)
					if err != nil {
						return fmt.Errorf("invalid --pool: %w", err)
					}
					pools = append(pools, pool)
				} else {
					_, keys, err := r.Pools()
					if err != nil {
						return err
					}
					pools = keys
				}

				payer, err := r.Key(wallet.Payer)
				if err != nil {
					return err
				}
				for _, pool := range pools {
					if err := updatePool(ctx, r, payer, pool); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolFlag, "pool", "", "update only this pool")
	return cmd
}

// updatePool отправляет план обновления одной транзакцией на инструкцию.
func updatePool(ctx context.Context, r *app.Runner, payer solana.PrivateKey, pool solana.PublicKey) error {
	log := r.Logger().WithPool(r.ProgramID(), pool)

	snap, err := client.LoadSnapshot(ctx, r.Bank(), r.ProgramID(), pool)
	if err != nil {
		return err
	}
	ixs, err := snap.PlanUpdate(r.Config().MaxAccountsToUpdate)
	if err != nil {
		return err
	}
	if len(ixs) == 0 {
		log.Info("Pool is up to date", zap.Uint64("epoch", snap.Clock.Epoch))
		return nil
	}

	for i, ix := range ixs {
		sig, err := r.Bank().Send(ctx, payer, []solana.Instruction{ix})
		if err != nil {
			return fmt.Errorf("update pool %s, step %d/%d: %w", pool, i+1, len(ixs), err)
		}
		log.Debug("Update step sent", zap.Stringer("signature", sig), zap.Int("step", i+1))
	}

	log.Info("Pool updated",
		zap.Int("stale_validators", len(snap.Stale())),
		zap.Int("transactions", len(ixs)),
		zap.Uint64("epoch", snap.Clock.Epoch))
	return nil
}

func (c *cli) advanceEpochCmd() *cobra.Command {
	var to uint64
	cmd := &cobra.Command{
		Use:   "advance-epoch",
		Short: "Move the ledger clock to the next (or given) epoch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRunner(cmd, func(_ context.Context, r *app.Runner) error {
				var (
					epoch uint64
					err   error
				)
				if to > 0 {
					epoch, err = to, r.Bank().SetEpoch(to)
				} else {
					epoch, err = r.Bank().AdvanceEpoch()
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "epoch %d\n", epoch)
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&to, "to", 0, "target epoch (must not be in the past)")
	return cmd
}
