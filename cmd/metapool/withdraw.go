// cmd/metapool/withdraw.go
package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/metapool/internal/app"
	"github.com/rovshanmuradov/metapool/internal/client"
	"github.com/rovshanmuradov/metapool/internal/ui/component"
)

func (c *cli) planWithdrawCmd() *cobra.Command {
	var poolFlag, amountFlag string
	cmd := &cobra.Command{
		Use:   "plan-withdraw",
		Short: "Show which pool stake accounts would cover a withdrawal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := solana.PublicKeyFromBase58(poolFlag)
			if err != nil {
				return fmt.Errorf("invalid --pool: %w", err)
			}
			lamports, err := client.SOLToLamports(amountFlag)
			if err != nil {
				return err
			}
			return c.withRunner(cmd, func(ctx context.Context, r *app.Runner) error {
				snap, err := client.LoadSnapshot(ctx, r.Bank(), r.ProgramID(), pool)
				if err != nil {
					return err
				}
				picked, err := snap.PickWithdrawAccounts(lamports, r.Config().MinStakeBalance)
				if err != nil {
					return err
				}
				shares, err := snap.StakeToShares(lamports)
				if err != nil {
					return err
				}

				table := component.NewTable().
					AddColumn("STAKE ACCOUNT", 0, lipgloss.Left).
					AddColumn("BALANCE", 0, lipgloss.Right).
					AddColumn("WITHDRAW", 0, lipgloss.Right)
				for _, p := range picked {
					table.AddRow(p.Address.String(),
						client.LamportsToSOL(p.Lamports).String(),
						client.LamportsToSOL(p.Amount).String())
				}
				fmt.Fprintln(c.out, table.View())
				fmt.Fprintf(c.out, "shares to burn  %s\n", client.LamportsToSOL(shares))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolFlag, "pool", "", "stake pool address")
	cmd.Flags().StringVar(&amountFlag, "amount", "", "SOL to withdraw")
	_ = cmd.MarkFlagRequired("pool")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
