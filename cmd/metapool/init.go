// cmd/metapool/init.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/client"
	"github.com/rovshanmuradov/metapool/internal/ledger"
	"github.com/rovshanmuradov/metapool/internal/wallet"
)

func (c *cli) initCmd() *cobra.Command {
	var (
		epoch   uint64
		airdrop string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the keyring and write ledger genesis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			lamports, err := client.SOLToLamports(airdrop)
			if err != nil {
				return err
			}

			path := wallet.KeyringPath(cfg.KeysDir)
			keys, err := wallet.LoadKeyring(path)
			switch {
			case errors.Is(err, os.ErrNotExist):
				keys = wallet.Generate(wallet.Payer, wallet.Owner, wallet.Program)
				if err := wallet.SaveKeyring(path, keys); err != nil {
					return err
				}
			case err != nil:
				return err
			}
			payer, err := keys.Get(wallet.Payer)
			if err != nil {
				return err
			}

			r, err := openRunner(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer r.Close(context.Background())

			bank := r.Bank()
			if _, err := bank.Clock(); err == nil {
				return fmt.Errorf("ledger %s is already initialized", cfg.LedgerPath)
			}
			clock := ledger.Clock{
				Slot:                epoch * ledger.SlotsPerEpoch,
				Epoch:               epoch,
				LeaderScheduleEpoch: epoch + 1,
			}
			if err := bank.Genesis(clock, ledger.DefaultRent()); err != nil {
				return fmt.Errorf("write genesis: %w", err)
			}
			if err := bank.Airdrop(payer.PublicKey, lamports); err != nil {
				return fmt.Errorf("fund payer: %w", err)
			}

			r.Logger().Info("Ledger initialized",
				zap.String("ledger", cfg.LedgerPath),
				zap.Uint64("epoch", epoch),
				zap.Stringer("program_id", r.ProgramID()))

			for _, name := range keys.Names() {
				fmt.Fprintf(c.out, "%-8s %s\n", name, keys[name].PublicKey)
			}
			fmt.Fprintf(c.out, "payer funded with %s SOL\n", client.LamportsToSOL(lamports))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&epoch, "epoch", 0, "starting epoch")
	cmd.Flags().StringVar(&airdrop, "airdrop", "1000", "SOL credited to the payer")
	return cmd
}
