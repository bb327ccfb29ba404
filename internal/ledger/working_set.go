// internal/ledger/working_set.go
package ledger

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

// workingSet holds mutable copies of every account a transaction touches.
// The same address always resolves to the same *Account, so duplicate
// handles in one instruction observe each other's writes.
type workingSet struct {
	store Store
	base  map[solana.PublicKey]*Account
	cur   map[solana.PublicKey]*Account
	order []solana.PublicKey
}

func newWorkingSet(store Store) *workingSet {
	return &workingSet{
		store: store,
		base:  make(map[solana.PublicKey]*Account),
		cur:   make(map[solana.PublicKey]*Account),
	}
}

func (ws *workingSet) load(key solana.PublicKey) (*Account, error) {
	if acc, ok := ws.cur[key]; ok {
		return acc, nil
	}
	acc, err := ws.store.Get(key)
	if errors.Is(err, ErrAccountNotFound) {
		acc = &Account{Owner: solana.SystemProgramID}
	} else if err != nil {
		return nil, err
	}
	ws.base[key] = acc.Clone()
	ws.cur[key] = acc
	ws.order = append(ws.order, key)
	return acc, nil
}

func (ws *workingSet) modified(key solana.PublicKey) bool {
	cur, ok := ws.cur[key]
	if !ok {
		return false
	}
	return !cur.Equal(ws.base[key])
}

func (ws *workingSet) lamportsBefore() (sum uint64) {
	for _, acc := range ws.base {
		sum += acc.Lamports
	}
	return sum
}

func (ws *workingSet) lamportsAfter() (sum uint64) {
	for _, acc := range ws.cur {
		sum += acc.Lamports
	}
	return sum
}

// changes returns the batch to persist: modified writable accounts, with
// drained accounts deleted.
func (ws *workingSet) changes(writable map[solana.PublicKey]bool) (map[solana.PublicKey]*Account, []solana.PublicKey) {
	batch := make(map[solana.PublicKey]*Account)
	var written []solana.PublicKey
	for _, key := range ws.order {
		if !writable[key] || !ws.modified(key) {
			continue
		}
		acc := ws.cur[key]
		if acc.IsEmpty() {
			batch[key] = nil
		} else {
			batch[key] = acc.Clone()
		}
		written = append(written, key)
	}
	return batch, written
}
