// internal/app/runner.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/config"
	"github.com/rovshanmuradov/metapool/internal/events"
	"github.com/rovshanmuradov/metapool/internal/ledger"
	"github.com/rovshanmuradov/metapool/internal/programs/stake"
	"github.com/rovshanmuradov/metapool/internal/programs/system"
	"github.com/rovshanmuradov/metapool/internal/programs/token"
	"github.com/rovshanmuradov/metapool/internal/stakepool"
	"github.com/rovshanmuradov/metapool/internal/utils/logger"
	"github.com/rovshanmuradov/metapool/internal/utils/metrics"
	"github.com/rovshanmuradov/metapool/internal/wallet"
)

const eventBufferSize = 256

// ErrNoProgramID возвращается, когда program_id не задан ни в конфиге, ни в ключах
var ErrNoProgramID = errors.New("program id is not configured: set program_id or run init")

// Runner владеет ledger, шиной событий, метриками и процессором пула.
type Runner struct {
	cfg       *config.Config
	logger    *logger.Logger
	shutdown  *ShutdownHandler
	collector *metrics.Collector

	keyring   wallet.Keyring
	programID solana.PublicKey
	store     *ledger.LevelStore
	bus       *events.Bus
	bank      *ledger.Bank
}

func NewRunner(cfg *config.Config, log *logger.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		logger:    log,
		shutdown:  NewShutdownHandler(log.Named("shutdown"), DefaultShutdownTimeout),
		collector: metrics.NewCollector(),
	}
}

// Open загружает ключи, открывает ledger и регистрирует программы.
func (r *Runner) Open(ctx context.Context) error {
	defer r.logger.TrackPerformance("runner_open")()

	programID, err := r.resolveProgramID()
	if err != nil {
		return err
	}
	r.programID = programID

	store, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	r.store = store
	r.shutdown.Add("ledger", store)

	r.bus = events.NewBus(r.logger.WithComponent("events"), eventBufferSize)
	r.shutdown.AddFunc("events", func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return r.bus.Close(closeCtx)
	})
	r.subscribe()

	r.bank = ledger.NewBank(store, r.logger.WithComponent("ledger"),
		ledger.WithEventBus(r.bus),
		ledger.WithCommitRecorder(r.collector))

	stakeSvc := stake.New(r.logger.WithComponent("stake"))
	tokenSvc := token.New(r.logger.WithComponent("token"))
	systemSvc := system.New(r.logger.WithComponent("system"))
	r.bank.Register(stakeSvc, tokenSvc, systemSvc,
		stakepool.NewProcessor(programID, stakeSvc, tokenSvc, systemSvc,
			stakepool.WithActivationCheck(r.cfg.StakeActivationCheck),
			stakepool.WithLogger(r.logger.Logger),
			stakepool.WithRecorder(r.collector)))

	r.logger.Debug("Runner opened",
		zap.String("ledger", r.cfg.LedgerPath),
		zap.Stringer("program_id", programID),
		zap.Bool("activation_check", r.cfg.StakeActivationCheck))
	return nil
}

func (r *Runner) resolveProgramID() (solana.PublicKey, error) {
	key, ok, err := r.cfg.ProgramKey()
	if err != nil {
		return solana.PublicKey{}, err
	}
	if ok {
		return key, nil
	}
	k, err := r.Keyring()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrNoProgramID, err)
	}
	w, err := k.Get(wallet.Program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrNoProgramID, err)
	}
	return w.PublicKey, nil
}

// openStore повторяет открытие, пока другой процесс держит блокировку leveldb.
func (r *Runner) openStore(ctx context.Context) (*ledger.LevelStore, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = time.Second

	notify := func(err error, d time.Duration) {
		r.logger.Info("Повтор открытия ledger после ошибки", zap.Error(err), zap.Duration("backoff", d))
	}

	store, err := backoff.Retry(ctx, func() (*ledger.LevelStore, error) {
		return ledger.OpenLevelStore(r.cfg.LedgerPath)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(r.cfg.OpenRetries)+1),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", r.cfg.LedgerPath, err)
	}
	return store, nil
}

func (r *Runner) subscribe() {
	log := r.logger.WithComponent("ledger_events")
	r.bus.Subscribe(events.EpochAdvanced, func(_ context.Context, ev events.Event) error {
		e := ev.(*events.EpochAdvancedEvent)
		log.Info("Epoch advanced", zap.Uint64("previous", e.Previous), zap.Uint64("epoch", e.Current))
		return nil
	})
	r.bus.Subscribe(events.TransactionRolledBack, func(_ context.Context, ev events.Event) error {
		e := ev.(*events.TransactionRolledBackEvent)
		log.Debug("Transaction rolled back",
			zap.Stringer("signature", e.Signature),
			zap.Int("instruction", e.InstructionIndex),
			zap.Error(e.Err))
		return nil
	})
}

// Keyring загружает ключи из keys_dir при первом обращении.
func (r *Runner) Keyring() (wallet.Keyring, error) {
	if r.keyring != nil {
		return r.keyring, nil
	}
	k, err := wallet.LoadKeyring(wallet.KeyringPath(r.cfg.KeysDir))
	if err != nil {
		return nil, err
	}
	r.keyring = k
	return k, nil
}

// Key returns the named private key from the keyring.
func (r *Runner) Key(name string) (solana.PrivateKey, error) {
	k, err := r.Keyring()
	if err != nil {
		return nil, err
	}
	w, err := k.Get(name)
	if err != nil {
		return nil, err
	}
	return w.PrivateKey, nil
}

func (r *Runner) Bank() *ledger.Bank { return r.bank }
func (r *Runner) ProgramID() solana.PublicKey { return r.programID }
func (r *Runner) Collector() *metrics.Collector { return r.collector }
func (r *Runner) Config() *config.Config { return r.cfg }
func (r *Runner) Logger() *logger.Logger { return r.logger }

// Pools returns every initialized stake pool owned by the program, sorted by
// address.
func (r *Runner) Pools() (map[solana.PublicKey]*stakepool.PoolState, []solana.PublicKey, error) {
	accounts, err := r.bank.AccountsByOwner(r.programID)
	if err != nil {
		return nil, nil, err
	}
	pools := make(map[solana.PublicKey]*stakepool.PoolState)
	keys := make([]solana.PublicKey, 0)
	for key, acc := range accounts {
		if len(acc.Data) != stakepool.PoolStateSize {
			continue
		}
		state, err := stakepool.DecodePoolState(acc.Data)
		if err != nil || !state.IsInitialized() {
			continue
		}
		pools[key] = state
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return pools, keys, nil
}

// PublishPoolTotals обновляет gauges всех пулов программы.
func (r *Runner) PublishPoolTotals() error {
	pools, _, err := r.Pools()
	if err != nil {
		return err
	}
	for key, state := range pools {
		r.collector.UpdatePoolTotals(key, state.PoolTotal, state.StakeTotal)
	}
	return nil
}

// ServeMetrics запускает HTTP-сервер метрик на metrics_addr. Без адреса
// ничего не делает.
func (r *Runner) ServeMetrics() error {
	if r.cfg.MetricsAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.collector.Handler())
	srv := &http.Server{
		Addr:              r.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// сервер мог не подняться: занятый порт видно сразу
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve metrics on %s: %w", r.cfg.MetricsAddr, err)
		}
	case <-time.After(50 * time.Millisecond):
	}

	r.logger.Info("Metrics server started", zap.String("addr", r.cfg.MetricsAddr))
	r.shutdown.AddFunc("metrics", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	return nil
}

// Close закрывает ресурсы в обратном порядке открытия.
func (r *Runner) Close(ctx context.Context) error {
	err := r.shutdown.Shutdown(ctx)
	if syncErr := r.logger.Sync(); syncErr != nil {
		r.logger.Debug("Logger sync failed", zap.Error(syncErr))
	}
	return err
}
