// internal/ledger/bank.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/events"
)

// SlotsPerEpoch is used to keep the clock slot consistent with the epoch.
const SlotsPerEpoch = 432000

// ErrUnbalancedTransaction means the programs created or destroyed lamports.
var ErrUnbalancedTransaction = errors.New("sum of account balances changed")

// SysvarOwner owns the clock, rent and stake history accounts.
var SysvarOwner = solana.MustPublicKeyFromBase58("Sysvar1111111111111111111111111111111111111")

// Program executes instructions addressed to its id.
type Program interface {
	ProgramID() solana.PublicKey
	Process(accounts []*AccountInfo, data []byte) error
}

// CommitRecorder receives the outcome of every processed transaction.
type CommitRecorder interface {
	ObserveCommit(committed bool)
}

// Bank is a single-node ledger: it owns the account store, the registered
// programs and the sysvars, and applies transactions one at a time.
type Bank struct {
	mu       sync.Mutex
	store    Store
	programs map[solana.PublicKey]Program
	logger   *zap.Logger
	bus      *events.Bus
	recorder CommitRecorder
}

// Option configures a Bank.
type Option func(*Bank)

// WithEventBus publishes commit, rollback and epoch events to bus.
func WithEventBus(bus *events.Bus) Option {
	return func(b *Bank) { b.bus = bus }
}

// WithCommitRecorder reports transaction outcomes to r.
func WithCommitRecorder(r CommitRecorder) Option {
	return func(b *Bank) { b.recorder = r }
}

// NewBank wraps store. Programs must be registered before use.
func NewBank(store Store, logger *zap.Logger, opts ...Option) *Bank {
	b := &Bank{
		store:    store,
		programs: make(map[solana.PublicKey]Program),
		logger:   logger.Named("bank"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register makes p reachable by its program id.
func (b *Bank) Register(programs ...Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range programs {
		b.programs[p.ProgramID()] = p
	}
}

// Genesis writes the sysvars. Existing sysvars are overwritten.
func (b *Bank) Genesis(clock Clock, rent Rent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Put(map[solana.PublicKey]*Account{
		solana.SysVarClockPubkey:        sysvarAccount(clock.Bytes()),
		solana.SysVarRentPubkey:         sysvarAccount(rent.Bytes()),
		solana.SysVarStakeHistoryPubkey: sysvarAccount(StakeHistory{}.Bytes()),
	})
}

func sysvarAccount(data []byte) *Account {
	return &Account{Lamports: 1, Data: data, Owner: SysvarOwner}
}

// Account returns a copy of the stored account.
func (b *Bank) Account(key solana.PublicKey) (*Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Get(key)
}

// SetAccount stores acc directly, bypassing programs. Used for genesis state.
func (b *Bank) SetAccount(key solana.PublicKey, acc *Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Put(map[solana.PublicKey]*Account{key: acc.Clone()})
}

// Airdrop credits lamports to key, creating a system account when needed.
func (b *Bank) Airdrop(key solana.PublicKey, lamports uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, err := b.store.Get(key)
	if errors.Is(err, ErrAccountNotFound) {
		acc = &Account{Owner: solana.SystemProgramID}
	} else if err != nil {
		return err
	}
	acc.Lamports += lamports
	return b.store.Put(map[solana.PublicKey]*Account{key: acc})
}

// AccountsByOwner returns every stored account owned by owner.
func (b *Bank) AccountsByOwner(owner solana.PublicKey) (map[solana.PublicKey]*Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[solana.PublicKey]*Account)
	err := b.store.Range(func(key solana.PublicKey, acc *Account) bool {
		if acc.Owner == owner {
			out[key] = acc
		}
		return true
	})
	return out, err
}

func (b *Bank) Clock() (Clock, error) {
	acc, err := b.Account(solana.SysVarClockPubkey)
	if err != nil {
		return Clock{}, fmt.Errorf("load clock: %w", err)
	}
	return ParseClock(acc.Data)
}

func (b *Bank) Rent() (Rent, error) {
	acc, err := b.Account(solana.SysVarRentPubkey)
	if err != nil {
		return Rent{}, fmt.Errorf("load rent: %w", err)
	}
	return ParseRent(acc.Data)
}

// SetEpoch moves the clock to epoch. Epochs never go backwards.
func (b *Bank) SetEpoch(epoch uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acc, err := b.store.Get(solana.SysVarClockPubkey)
	if err != nil {
		return fmt.Errorf("load clock: %w", err)
	}
	clock, err := ParseClock(acc.Data)
	if err != nil {
		return err
	}
	if epoch < clock.Epoch {
		return fmt.Errorf("epoch %d is before current epoch %d", epoch, clock.Epoch)
	}
	prev := clock.Epoch
	clock.Epoch = epoch
	clock.LeaderScheduleEpoch = epoch + 1
	clock.Slot = epoch * SlotsPerEpoch
	acc.Data = clock.Bytes()
	if err := b.store.Put(map[solana.PublicKey]*Account{solana.SysVarClockPubkey: acc}); err != nil {
		return err
	}

	b.logger.Info("Epoch set", zap.Uint64("previous", prev), zap.Uint64("epoch", epoch))
	b.publish(events.NewEpochAdvanced(prev, epoch))
	return nil
}

// AdvanceEpoch increments the clock epoch and returns the new value.
func (b *Bank) AdvanceEpoch() (uint64, error) {
	clock, err := b.Clock()
	if err != nil {
		return 0, err
	}
	next := clock.Epoch + 1
	return next, b.SetEpoch(next)
}

// Send builds a transaction paid by payer, signs it with payer and signers
// and processes it.
func (b *Bank) Send(ctx context.Context, payer solana.PrivateKey, ixs []solana.Instruction, signers ...solana.PrivateKey) (solana.Signature, error) {
	tx, err := solana.NewTransaction(ixs, solana.Hash{}, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	keys := make(map[solana.PublicKey]solana.PrivateKey, len(signers)+1)
	keys[payer.PublicKey()] = payer
	for _, s := range signers {
		keys[s.PublicKey()] = s
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if pk, ok := keys[key]; ok {
			return &pk
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return tx.Signatures[0], b.ProcessTransaction(ctx, tx)
}

// ProcessTransaction verifies and executes tx. Either every writable account
// touched by the transaction is persisted or nothing is.
func (b *Bank) ProcessTransaction(ctx context.Context, tx *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.VerifySignatures(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	var sig solana.Signature
	if len(tx.Signatures) > 0 {
		sig = tx.Signatures[0]
	}

	metas, err := tx.Message.AccountMetaList()
	if err != nil {
		return fmt.Errorf("resolve account keys: %w", err)
	}
	writable := make(map[solana.PublicKey]bool, len(metas))
	for _, m := range metas {
		writable[m.PublicKey] = writable[m.PublicKey] || m.IsWritable
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ws := newWorkingSet(b.store)
	for i := range tx.Message.Instructions {
		if err := b.execute(ws, &tx.Message, i, writable); err != nil {
			b.rollback(sig, i, err)
			return err
		}
	}

	if ws.lamportsBefore() != ws.lamportsAfter() {
		err := ErrUnbalancedTransaction
		b.rollback(sig, len(tx.Message.Instructions)-1, err)
		return err
	}

	batch, written := ws.changes(writable)
	if len(batch) > 0 {
		if err := b.store.Put(batch); err != nil {
			b.rollback(sig, -1, err)
			return fmt.Errorf("commit: %w", err)
		}
	}

	b.logger.Debug("Transaction committed",
		zap.Stringer("signature", sig),
		zap.Int("instructions", len(tx.Message.Instructions)),
		zap.Int("written", len(written)))
	if b.recorder != nil {
		b.recorder.ObserveCommit(true)
	}
	b.publish(events.NewTransactionCommitted(sig, len(tx.Message.Instructions), written))
	return nil
}

func (b *Bank) execute(ws *workingSet, msg *solana.Message, index int, writable map[solana.PublicKey]bool) error {
	ci := msg.Instructions[index]
	programID, err := msg.ResolveProgramIDIndex(ci.ProgramIDIndex)
	if err != nil {
		return &InstructionError{Index: index, Err: err}
	}
	program, ok := b.programs[programID]
	if !ok {
		return &InstructionError{Index: index, Program: programID, Err: ErrUnknownProgram}
	}

	metas, err := ci.ResolveInstructionAccounts(msg)
	if err != nil {
		return &InstructionError{Index: index, Program: programID, Err: err}
	}
	infos := make([]*AccountInfo, len(metas))
	for j, m := range metas {
		acc, err := ws.load(m.PublicKey)
		if err != nil {
			return &InstructionError{Index: index, Program: programID, Err: err}
		}
		infos[j] = &AccountInfo{Key: m.PublicKey, IsSigner: m.IsSigner, IsWritable: m.IsWritable, Invoker: programID, Account: acc}
	}

	if err := program.Process(infos, ci.Data); err != nil {
		return &InstructionError{Index: index, Program: programID, Err: err}
	}

	for _, info := range infos {
		if !writable[info.Key] && ws.modified(info.Key) {
			return &InstructionError{
				Index:   index,
				Program: programID,
				Err:     fmt.Errorf("%w: %s", ErrReadonlyModified, info.Key),
			}
		}
	}
	return nil
}

func (b *Bank) rollback(sig solana.Signature, index int, err error) {
	b.logger.Debug("Transaction rolled back",
		zap.Stringer("signature", sig),
		zap.Int("instruction", index),
		zap.Error(err))
	if b.recorder != nil {
		b.recorder.ObserveCommit(false)
	}
	b.publish(events.NewTransactionRolledBack(sig, index, err))
}

func (b *Bank) publish(ev events.Event) {
	if b.bus == nil {
		return
	}
	if err := b.bus.Publish(ev); err != nil {
		b.logger.Warn("Failed to publish event", zap.String("event_type", string(ev.Type())), zap.Error(err))
	}
}
