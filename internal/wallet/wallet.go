// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// KeyringFile имя файла с ключами внутри keys_dir
const KeyringFile = "keyring.yaml"

// Имена ключей, которые создает init
const (
	Payer   = "payer"
	Owner   = "owner"
	Program = "program"
)

var ErrKeyNotFound = errors.New("key not found in keyring")

// Wallet представляет именованный ключ Solana.
type Wallet struct {
	Name       string
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet создаёт кошелёк из base58-encoded приватного ключа.
func NewWallet(name, privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		Name:       name,
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// String возвращает публичный ключ кошелька.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}

// Keyring набор ключей по имени
type Keyring map[string]*Wallet

// Get returns the named key.
func (k Keyring) Get(name string) (*Wallet, error) {
	w, ok := k[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	return w, nil
}

// Lookup finds the key whose public half is pub.
func (k Keyring) Lookup(pub solana.PublicKey) (*Wallet, error) {
	for _, name := range k.Names() {
		if w := k[name]; w.PublicKey == pub {
			return w, nil
		}
	}
	return nil, fmt.Errorf("%w: no key for %s", ErrKeyNotFound, pub)
}

// Names returns the key names in sorted order.
func (k Keyring) Names() []string {
	names := make([]string, 0, len(k))
	for name := range k {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate создает новые ключи с указанными именами.
func Generate(names ...string) Keyring {
	k := make(Keyring, len(names))
	for _, name := range names {
		pk := solana.NewWallet().PrivateKey
		k[name] = &Wallet{Name: name, PrivateKey: pk, PublicKey: pk.PublicKey()}
	}
	return k
}

// KeyringConfig структура YAML-файла с ключами
type KeyringConfig struct {
	Wallets []struct {
		Name       string `yaml:"name"`
		PrivateKey string `yaml:"private_key"`
	} `yaml:"wallets"`
}

// KeyringPath возвращает путь к файлу ключей в каталоге dir.
func KeyringPath(dir string) string {
	return filepath.Join(dir, KeyringFile)
}

// LoadKeyring загружает ключи из YAML-файла.
func LoadKeyring(path string) (Keyring, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config KeyringConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(config.Wallets) == 0 {
		return nil, fmt.Errorf("no keys found in %s", path)
	}

	k := make(Keyring)
	for _, entry := range config.Wallets {
		if entry.Name == "" || entry.PrivateKey == "" {
			continue
		}
		w, err := NewWallet(entry.Name, entry.PrivateKey)
		if err != nil {
			continue
		}
		k[entry.Name] = w
	}
	if len(k) == 0 {
		return nil, fmt.Errorf("no valid keys loaded from %s", path)
	}
	return k, nil
}

// SaveKeyring записывает ключи в YAML-файл, доступный только владельцу.
func SaveKeyring(path string, k Keyring) error {
	var config KeyringConfig
	for _, name := range k.Names() {
		config.Wallets = append(config.Wallets, struct {
			Name       string `yaml:"name"`
			PrivateKey string `yaml:"private_key"`
		}{Name: name, PrivateKey: base58.Encode(k[name].PrivateKey)})
	}

	data, err := yaml.Marshal(&config)
	if err != nil {
		return fmt.Errorf("failed to encode keyring: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create keys dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
