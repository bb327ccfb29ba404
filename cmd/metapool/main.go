// ====================================
// File: cmd/metapool/main.go
// ====================================
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/app"
	"github.com/rovshanmuradov/metapool/internal/config"
	"github.com/rovshanmuradov/metapool/internal/utils/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli общее состояние команд: viper, путь к конфигу и вывод
type cli struct {
	v       *viper.Viper
	cfgFile string
	out     io.Writer
}

// flagKeys связывает persistent-флаги с ключами конфигурации
var flagKeys = map[string]string{
	"ledger":           "ledger_path",
	"keys-dir":         "keys_dir",
	"program-id":       "program_id",
	"log-level":        "log_level",
	"log-file":         "log_file",
	"metrics-addr":     "metrics_addr",
	"activation-check": "stake_activation_check",
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{v: config.New(), out: out}

	root := &cobra.Command{
		Use:          "metapool",
		Short:        "Stake pool and liquidity pool over a local ledger",
		SilenceUsage: true,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file path (yaml, json or toml)")
	flags.String("ledger", config.DefaultLedgerPath, "ledger directory")
	flags.String("keys-dir", config.DefaultKeysDir, "directory holding keyring.yaml")
	flags.String("program-id", "", "pool program id (defaults to the keyring program key)")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-file", config.DefaultLogFile, "rotated JSON log file, empty to disable")
	flags.String("metrics-addr", "", "host:port for the Prometheus endpoint")
	flags.Bool("activation-check", true, "require fully active stake for add and deposit")
	if err := bindFlags(c.v, flags); err != nil {
		panic(err)
	}

	root.AddCommand(
		c.initCmd(),
		c.createPoolCmd(),
		c.createLiquidityPoolCmd(),
		c.createValidatorStakeCmd(),
		c.addValidatorStakeCmd(),
		c.removeValidatorStakeCmd(),
		c.setStakingAuthCmd(),
		c.setOwnerCmd(),
		c.createStakeCmd(),
		c.depositCmd(),
		c.withdrawCmd(),
		c.addLiquidityCmd(),
		c.sellCmd(),
		c.listCmd(),
		c.updateCmd(),
		c.advanceEpochCmd(),
		c.planWithdrawCmd(),
		c.serveCmd(),
	)
	return root
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (c *cli) loadConfig() (*config.Config, error) {
	return config.Load(c.v, c.cfgFile)
}

// openRunner загружает конфиг, создает логгер и открывает ledger.
func (c *cli) openRunner(ctx context.Context) (*app.Runner, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return openRunner(ctx, cfg)
}

func openRunner(ctx context.Context, cfg *config.Config) (*app.Runner, error) {
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.LogFile = cfg.LogFile
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	r := app.NewRunner(cfg, log)
	if err := r.Open(ctx); err != nil {
		_ = r.Close(context.Background())
		return nil, err
	}
	return r, nil
}

// withRunner открывает runner на время выполнения fn.
// Каждая команда пишет начало и итог под своим correlation_id.
func (c *cli) withRunner(cmd *cobra.Command, fn func(ctx context.Context, r *app.Runner) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	r, err := c.openRunner(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := r.Close(context.Background()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	start := time.Now()
	log := r.Logger().WithOperation(cmd.Name())
	log.Debug("Command started", zap.String("program_id", r.ProgramID().String()))
	defer func() {
		if err != nil {
			log.Error("Command failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
			return
		}
		log.Info("Command completed", zap.Duration("duration", time.Since(start)))
	}()
	return fn(ctx, r)
}
