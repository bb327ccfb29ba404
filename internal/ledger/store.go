// internal/ledger/store.go
package ledger

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Store persists accounts by address.
type Store interface {
	// Get returns ErrAccountNotFound for unknown addresses.
	Get(key solana.PublicKey) (*Account, error)
	// Put writes all entries atomically; a nil account deletes the key.
	Put(batch map[solana.PublicKey]*Account) error
	// Range walks accounts in key order until fn returns false.
	Range(fn func(key solana.PublicKey, acc *Account) bool) error
	Close() error
}

var accountPrefix = []byte("a")

func accountKey(key solana.PublicKey) []byte {
	k := make([]byte, 0, len(accountPrefix)+solana.PublicKeyLength)
	k = append(k, accountPrefix...)
	return append(k, key[:]...)
}

// LevelStore keeps accounts in goleveldb.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens (or creates) an on-disk store.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb at %s", path)
	}
	return &LevelStore{db: db}, nil
}

// NewMemStore returns a store backed by goleveldb's in-memory storage.
func NewMemStore() *LevelStore {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		// memstorage не возвращает ошибок при открытии
		panic(err)
	}
	return &LevelStore{db: db}
}

func (s *LevelStore) Get(key solana.PublicKey) (*Account, error) {
	raw, err := s.db.Get(accountKey(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, "get account")
	}
	return decodeAccount(raw)
}

func (s *LevelStore) Put(batch map[solana.PublicKey]*Account) error {
	b := new(leveldb.Batch)
	for key, acc := range batch {
		if acc == nil {
			b.Delete(accountKey(key))
			continue
		}
		raw, err := encodeAccount(acc)
		if err != nil {
			return errors.Wrapf(err, "encode account %s", key)
		}
		b.Put(accountKey(key), raw)
	}
	return errors.Wrap(s.db.Write(b, nil), "write batch")
}

func (s *LevelStore) Range(fn func(key solana.PublicKey, acc *Account) bool) error {
	it := s.db.NewIterator(util.BytesPrefix(accountPrefix), nil)
	defer it.Release()
	for it.Next() {
		acc, err := decodeAccount(it.Value())
		if err != nil {
			return err
		}
		key := solana.PublicKeyFromBytes(it.Key()[len(accountPrefix):])
		if !fn(key, acc) {
			break
		}
	}
	return errors.Wrap(it.Error(), "iterate accounts")
}

func (s *LevelStore) Close() error {
	return errors.Wrap(s.db.Close(), "close leveldb")
}

func encodeAccount(acc *Account) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := acc.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAccount(raw []byte) (*Account, error) {
	acc := new(Account)
	if err := acc.UnmarshalWithDecoder(bin.NewBinDecoder(raw)); err != nil {
		return nil, errors.Wrap(err, "decode account")
	}
	return acc, nil
}
