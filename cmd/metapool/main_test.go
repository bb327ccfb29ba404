package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/metapool/internal/stakepool"
)

type env struct {
	t     *testing.T
	flags []string
}

func newEnv(t *testing.T) *env {
	dir := t.TempDir()
	return &env{t: t, flags: []string{
		"--ledger", filepath.Join(dir, "ledger"),
		"--keys-dir", filepath.Join(dir, "keys"),
		"--log-level", "error",
		"--log-file", "",
	}}
}

func (e *env) run(args ...string) (string, error) {
	e.t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, e.flags...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *env) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, out)
	return out
}

// field возвращает значение строки вида "label   value"
func field(t *testing.T, out, label string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, label+" ") {
			return strings.TrimSpace(strings.TrimPrefix(line, label))
		}
	}
	t.Fatalf("no %q in output:\n%s", label, out)
	return ""
}

func TestPoolLifecycle(t *testing.T) {
	e := newEnv(t)

	out := e.mustRun("init", "--epoch", "3", "--airdrop", "50")
	assert.Contains(t, out, "payer funded with 50 SOL")

	_, err := e.run("init")
	assert.ErrorContains(t, err, "already initialized")

	out = e.mustRun("create-pool", "--fee", "1/100", "--capacity", "4")
	pool := field(t, out, "pool")

	out = e.mustRun("list")
	assert.Contains(t, out, pool)
	assert.Contains(t, out, "1/100")
	assert.Contains(t, out, "up to date")
	assert.Contains(t, out, "no validators (capacity 4)")

	assert.Contains(t, e.mustRun("advance-epoch"), "epoch 4")
	out = e.mustRun("list", "--pool", pool)
	assert.Contains(t, out, "stale since epoch 3")

	e.mustRun("update")
	assert.Contains(t, e.mustRun("list", "--pool", pool), "up to date")

	out = e.mustRun("create-liquidity-pool", "--pool", pool)
	assert.NotEmpty(t, field(t, out, "liquidity pool"))
	assert.NotEmpty(t, field(t, out, "asset mint"))

	_, err = e.run("plan-withdraw", "--pool", pool, "--amount", "1")
	assert.ErrorContains(t, err, "not enough stake")

	_, err = e.run("advance-epoch", "--to", "2")
	assert.Error(t, err)
}

func TestListWithoutPools(t *testing.T) {
	e := newEnv(t)
	e.mustRun("init")
	assert.Contains(t, e.mustRun("list"), "no pools")
}

func TestCommandsNeedInit(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("create-pool")
	assert.Error(t, err)
}

func TestParseFee(t *testing.T) {
	tests := []struct {
		in      string
		want    stakepool.Fee
		wantErr bool
	}{
		{in: "1/100", want: stakepool.Fee{Numerator: 1, Denominator: 100}},
		{in: " 3 / 4 ", want: stakepool.Fee{Numerator: 3, Denominator: 4}},
		{in: "0/1", want: stakepool.Fee{Numerator: 0, Denominator: 1}},
		{in: "2/1", wantErr: true},
		{in: "1", wantErr: true},
		{in: "a/2", wantErr: true},
		{in: "1/b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			fee, err := parseFee(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, fee)
		})
	}
}

func TestValidatorAndStakeCommands(t *testing.T) {
	e := newEnv(t)
	e.mustRun("init", "--epoch", "3", "--airdrop", "50")

	pool := field(t, e.mustRun("create-pool", "--fee", "0/1", "--capacity", "4"), "pool")

	out := e.mustRun("create-validator-stake", "--pool", pool, "--amount", "2")
	validator := field(t, out, "validator")
	stakeAccount := field(t, out, "stake account")

	// делегирование становится активным только со следующей эпохи
	_, err := e.run("add-validator-stake", "--pool", pool, "--stake", stakeAccount)
	assert.ErrorContains(t, err, "add validator stake")

	e.mustRun("advance-epoch")
	e.mustRun("update")
	out = e.mustRun("add-validator-stake", "--pool", pool, "--stake", stakeAccount)
	ownerShares := field(t, out, "shares receiver")
	assert.Contains(t, e.mustRun("list", "--pool", pool), validator)

	userStake := field(t, e.mustRun("create-stake", "--validator", validator, "--amount", "3"), "stake account")
	e.mustRun("advance-epoch")

	_, err = e.run("deposit", "--pool", pool, "--stake", userStake)
	assert.ErrorContains(t, err, "deposit")

	e.mustRun("update")
	out = e.mustRun("deposit", "--pool", pool, "--stake", userStake)
	assert.Equal(t, "3 SOL", field(t, out, "deposited"))
	userShares := field(t, out, "shares receiver")

	out = e.mustRun("plan-withdraw", "--pool", pool, "--amount", "1")
	assert.Contains(t, out, stakeAccount)

	_, err = e.run("withdraw", "--pool", pool, "--amount", "4", "--burn-from", userShares)
	assert.ErrorContains(t, err, "not enough pool tokens")

	out = e.mustRun("withdraw", "--pool", pool, "--amount", "1", "--burn-from", userShares)
	assert.Contains(t, out, "1 shares")

	// на счете владельца доли только за 2 SOL, в аккаунте валидатора уже 4
	_, err = e.run("remove-validator-stake", "--pool", pool, "--stake", stakeAccount, "--burn-from", ownerShares)
	assert.ErrorContains(t, err, "not enough pool tokens")

	out = e.mustRun("set-owner", "--pool", pool, "--new-fee-receiver", userShares)
	assert.Equal(t, userShares, field(t, out, "owner fee"))

	_, err = e.run("set-owner", "--pool", pool, "--new-fee-receiver", stakeAccount)
	assert.Error(t, err)

	out = e.mustRun("set-staking-auth", "--pool", pool, "--stake", stakeAccount, "--new-staker", validator)
	assert.Equal(t, validator, field(t, out, "staker"))
}

func TestRemoveValidatorCommand(t *testing.T) {
	e := newEnv(t)
	e.mustRun("init", "--epoch", "3", "--airdrop", "50")
	pool := field(t, e.mustRun("create-pool", "--fee", "0/1", "--capacity", "4"), "pool")

	stakeAccount := field(t, e.mustRun("create-validator-stake", "--pool", pool, "--amount", "2"), "stake account")
	e.mustRun("advance-epoch")
	e.mustRun("update")
	ownerShares := field(t, e.mustRun("add-validator-stake", "--pool", pool, "--stake", stakeAccount), "shares receiver")

	out := e.mustRun("remove-validator-stake", "--pool", pool, "--stake", stakeAccount, "--burn-from", ownerShares)
	assert.Equal(t, "2", field(t, out, "shares burned"))
	assert.Contains(t, e.mustRun("list", "--pool", pool), "no validators")

	_, err := e.run("remove-validator-stake", "--pool", pool, "--stake", stakeAccount, "--burn-from", ownerShares)
	assert.Error(t, err)
}

func TestLiquidityCommands(t *testing.T) {
	e := newEnv(t)
	e.mustRun("init", "--epoch", "3", "--airdrop", "50")
	pool := field(t, e.mustRun("create-pool", "--fee", "0/1", "--capacity", "4"), "pool")

	stakeAccount := field(t, e.mustRun("create-validator-stake", "--pool", pool, "--amount", "2"), "stake account")
	e.mustRun("advance-epoch")
	e.mustRun("update")
	shares := field(t, e.mustRun("add-validator-stake", "--pool", pool, "--stake", stakeAccount), "shares receiver")

	liquidity := field(t, e.mustRun("create-liquidity-pool", "--pool", pool), "liquidity pool")

	_, err := e.run("sell", "--liquidity-pool", liquidity, "--amount", "1", "--source", shares)
	assert.ErrorContains(t, err, "asset reserve holds 0")

	out := e.mustRun("add-liquidity", "--liquidity-pool", liquidity, "--amount", "5")
	assert.NotEmpty(t, field(t, out, "lp receiver"))

	out = e.mustRun("sell", "--liquidity-pool", liquidity, "--amount", "1", "--source", shares)
	assert.Equal(t, "1", field(t, out, "payout"))
	assert.Equal(t, "0", field(t, out, "fee"))

	_, err = e.run("sell", "--liquidity-pool", liquidity, "--amount", "5", "--source", shares)
	assert.ErrorContains(t, err, "not enough pool tokens")
}

func TestCommandLogCarriesOperation(t *testing.T) {
	e := newEnv(t)
	logFile := filepath.Join(t.TempDir(), "metapool.log")
	e.flags = append(e.flags, "--log-level", "info", "--log-file", logFile)

	e.mustRun("init")
	e.mustRun("create-pool")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operation":"create-pool"`)
	assert.Contains(t, string(data), `"correlation_id"`)
	assert.Contains(t, string(data), "Command completed")
}
