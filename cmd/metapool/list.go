// cmd/metapool/list.go
package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/metapool/internal/app"
	"github.com/rovshanmuradov/metapool/internal/client"
	"github.com/rovshanmuradov/metapool/internal/ui/component"
	"github.com/rovshanmuradov/metapool/internal/ui/style"
)

func (c *cli) listCmd() *cobra.Command {
	var poolFlag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show pools, their totals and validator balances",
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
				if len(pools) == 0 {
					fmt.Fprintln(c.out, "no pools")
					return nil
				}

				styles := style.NewStyles(style.DefaultPalette())
				for _, pool := range pools {
					snap, err := client.LoadSnapshot(ctx, r.Bank(), r.ProgramID(), pool)
					if err != nil {
						return err
					}
					r.Collector().UpdatePoolTotals(pool, snap.Pool.PoolTotal, snap.Pool.StakeTotal)
					fmt.Fprintln(c.out, renderSnapshot(snap, styles))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolFlag, "pool", "", "show only this pool")
	return cmd
}

func renderSnapshot(snap *client.Snapshot, s style.Styles) string {
	state := snap.Pool
	freshness := s.Fresh.Render("up to date")
	if !snap.UpToDate() {
		freshness = s.Stale.Render(fmt.Sprintf("stale since epoch %d", state.LastUpdateEpoch))
	}

	summary := component.NewTable().SetShowBorder(false).SetShowHeaders(false).
		AddColumn("", 0, lipgloss.Left).
		AddColumn("", 0, lipgloss.Left)
	summary.AddRow("owner", state.Owner.String())
	summary.AddRow("pool mint", state.PoolMint.String())
	summary.AddRow("fee", fmt.Sprintf("%d/%d", state.Fee.Numerator, state.Fee.Denominator))
	summary.AddRow("stake total", client.LamportsToSOL(state.StakeTotal).String()+" SOL")
	summary.AddRow("pool total", client.LamportsToSOL(state.PoolTotal).String())
	summary.AddRow("rate", snap.Rate().String()+" SOL/share")
	summary.AddRow("epoch", fmt.Sprintf("%d (%s)", snap.Clock.Epoch, freshness))

	validators := component.NewTable().
		AddColumn("VALIDATOR", 0, lipgloss.Left).
		AddColumn("STAKE ACCOUNT", 0, lipgloss.Left).
		AddColumn("BALANCE", 0, lipgloss.Right).
		AddColumn("EPOCH", 0, lipgloss.Right)
	for i, v := range snap.List.Validators {
		row := []string{
			v.Validator.String(),
			snap.Accounts[i].Address.String(),
			client.LamportsToSOL(v.Balance).String(),
			strconv.FormatUint(v.LastUpdateEpoch, 10),
		}
		if v.LastUpdateEpoch < snap.Clock.Epoch {
			validators.AddStyledRow(s.Stale, row...)
			continue
		}
		validators.AddRow(row...)
	}

	title := s.Title.Render("pool " + snap.Address.String())
	body := summary.View()
	if validators.RowCount() > 0 {
		body = lipgloss.JoinVertical(lipgloss.Left, body, validators.View())
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, body, s.Label.Render(
			fmt.Sprintf("no validators (capacity %d)", snap.List.Capacity())))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}
