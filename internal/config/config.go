// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	ProgramID             string `mapstructure:"program_id"`
	LedgerPath            string `mapstructure:"ledger_path"`
	KeysDir               string `mapstructure:"keys_dir"`
	LogLevel              string `mapstructure:"log_level"`
	LogFile               string `mapstructure:"log_file"`
	StakeActivationCheck  bool   `mapstructure:"stake_activation_check"`
	ValidatorListCapacity int    `mapstructure:"validator_list_capacity"`
	MaxAccountsToUpdate   int    `mapstructure:"max_accounts_to_update"`
	MinStakeBalance       uint64 `mapstructure:"min_stake_balance"`
	MetricsAddr           string `mapstructure:"metrics_addr"`
	OpenRetries           int    `mapstructure:"open_retries"`
}

const (
	DefaultLedgerPath            = "metapool-ledger"
	DefaultKeysDir               = "keys"
	DefaultLogLevel              = "info"
	DefaultLogFile               = "metapool.log"
	DefaultValidatorListCapacity = 32
	DefaultMaxAccountsToUpdate   = 5
	DefaultOpenRetries           = 3
)

// EnvPrefix префикс переменных окружения: METAPOOL_LEDGER_PATH и т.д.
const EnvPrefix = "METAPOOL"

// New возвращает viper с заполненными значениями по умолчанию и чтением
// переменных окружения. Флаги CLI привязываются к нему через BindPFlags.
func New() *viper.Viper {
	v := viper.New()

	defaults := map[string]interface{}{
		"ledger_path":             DefaultLedgerPath,
		"keys_dir":                DefaultKeysDir,
		"log_level":               DefaultLogLevel,
		"log_file":                DefaultLogFile,
		"stake_activation_check":  true,
		"validator_list_capacity": DefaultValidatorListCapacity,
		"max_accounts_to_update":  DefaultMaxAccountsToUpdate,
		"min_stake_balance":       0,
		"open_retries":            DefaultOpenRetries,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load читает файл конфигурации (если path не пуст) и собирает Config.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, validateConfig(&cfg)
}

// LoadConfig загружает конфигурацию из файла с окружением поверх.
func LoadConfig(path string) (*Config, error) {
	return Load(New(), path)
}

// ProgramKey возвращает program_id, если он задан.
func (c *Config) ProgramKey() (solana.PublicKey, bool, error) {
	if c.ProgramID == "" {
		return solana.PublicKey{}, false, nil
	}
	key, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, false, fmt.Errorf("invalid program_id: %w", err)
	}
	return key, true, nil
}

func validateConfig(cfg *Config) error {
	if cfg.LedgerPath == "" {
		return errors.New("ledger_path is empty")
	}
	if cfg.KeysDir == "" {
		return errors.New("keys_dir is empty")
	}
	if _, _, err := cfg.ProgramKey(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("invalid metrics_addr: %w", err)
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.ValidatorListCapacity <= 0 {
		return errors.New("invalid validator_list_capacity")
	}
	if cfg.MaxAccountsToUpdate <= 0 {
		return errors.New("invalid max_accounts_to_update")
	}
	if cfg.OpenRetries < 0 {
		return errors.New("invalid open_retries count")
	}
	return nil
}
