package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)

	var mu sync.Mutex
	var got []*TransactionCommittedEvent
	bus.Subscribe(TransactionCommitted, func(_ context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.(*TransactionCommittedEvent))
		return nil
	})

	key := solana.NewWallet().PublicKey()
	require.NoError(t, bus.Publish(NewTransactionCommitted(solana.Signature{1}, 2, []solana.PublicKey{key})))
	require.NoError(t, bus.Publish(NewEpochAdvanced(1, 2)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Close(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Instructions)
	assert.Equal(t, []solana.PublicKey{key}, got[0].Written)
	assert.Equal(t, TransactionCommitted, got[0].Type())
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop(), 4)
	calls := 0
	sub := bus.Subscribe(EpochAdvanced, func(context.Context, Event) error {
		calls++
		return nil
	})
	bus.Dispatch(context.Background(), NewEpochAdvanced(0, 1))
	sub.Unsubscribe()
	sub.Unsubscribe()
	bus.Dispatch(context.Background(), NewEpochAdvanced(1, 2))
	assert.Equal(t, 1, calls)
	require.NoError(t, bus.Close(context.Background()))
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	require.NoError(t, bus.Close(context.Background()))
	assert.ErrorIs(t, bus.Publish(NewEpochAdvanced(0, 1)), ErrBusClosed)
}
