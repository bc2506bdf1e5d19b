package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	creator  = common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	acceptor = common.HexToAddress("0x00000000000000000000000000000000000c0de2")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), TokenUnit)
}

func watch(t *testing.T, g Gateway) <-chan Event {
	t.Helper()
	sink := make(chan Event, 16)
	sub, err := g.WatchEvents(context.Background(), sink)
	require.NoError(t, err)
	t.Cleanup(sub.Unsubscribe)
	return sink
}

func next(t *testing.T, sink <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-sink:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func TestSimulatedBetLifecycle(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulatedChain()
	sim.Mint(creator, tokens(100))
	sim.Mint(acceptor, tokens(100))

	alice, bob := sim.Session(creator), sim.Session(acceptor)
	events := watch(t, alice)

	tx, err := alice.CreateBet(ctx, tokens(40), big.NewInt(300), big.NewInt(1), "pac-hack")
	require.NoError(t, err)
	receipt, err := tx.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, receipt.BetID)
	assert.Equal(t, tx.Hash(), receipt.TxHash)
	assert.Equal(t, tokens(60).String(), sim.Balance(creator).String())

	ev := next(t, events)
	assert.Equal(t, EventBetCreated, ev.Kind)
	assert.Equal(t, receipt.TxHash, ev.TxHash)
	assert.Equal(t, "pac-hack", ev.GameType)

	active, err := bob.GetActiveBets(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	_, err = alice.AcceptBet(ctx, receipt.BetID)
	assert.EqualError(t, err, "execution reverted: creator cannot accept")

	_, err = bob.AcceptBet(ctx, receipt.BetID)
	require.NoError(t, err)
	assert.Equal(t, EventBetAccepted, next(t, events).Kind)

	rec, err := bob.GetBet(ctx, receipt.BetID)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), rec.Status)
	assert.Equal(t, acceptor, rec.Acceptor)
	assert.NotZero(t, rec.AcceptedAt.Sign())

	cost, err := bob.GetBoostCost(ctx, receipt.BetID)
	require.NoError(t, err)
	assert.Equal(t, tokens(4).String(), cost.String())

	_, err = bob.ActivateBoost(ctx, receipt.BetID)
	require.NoError(t, err)
	assert.Equal(t, EventBoostActivated, next(t, events).Kind)

	_, err = bob.ActivateBoost(ctx, receipt.BetID)
	assert.EqualError(t, err, "execution reverted: boost limit reached")

	require.NoError(t, sim.Complete(receipt.BetID, acceptor))
	ev = next(t, events)
	assert.Equal(t, EventBetCompleted, ev.Kind)
	assert.Equal(t, tokens(80).String(), ev.Amount.String())
	assert.Equal(t, tokens(136).String(), sim.Balance(acceptor).String())

	mine, err := alice.GetUserBets(ctx, acceptor)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestSimulatedCancelRefunds(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulatedChain()
	sim.Mint(creator, tokens(10))
	alice, bob := sim.Session(creator), sim.Session(acceptor)

	tx, err := alice.CreateBet(ctx, tokens(10), big.NewInt(300), big.NewInt(1), "arka-hack")
	require.NoError(t, err)
	receipt, err := tx.Wait(ctx)
	require.NoError(t, err)
	assert.Zero(t, sim.Balance(creator).Sign())

	_, err = bob.CancelBet(ctx, receipt.BetID)
	assert.EqualError(t, err, "execution reverted: only creator")

	_, err = alice.CancelBet(ctx, receipt.BetID)
	require.NoError(t, err)
	assert.Equal(t, tokens(10).String(), sim.Balance(creator).String())

	_, err = alice.CancelBet(ctx, receipt.BetID)
	assert.EqualError(t, err, "execution reverted: bet not pending")
}

func TestSimulatedReverts(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulatedChain()
	g := sim.Session(creator)

	_, err := g.CreateBet(ctx, tokens(1), big.NewInt(300), big.NewInt(1), "pac-hack")
	assert.EqualError(t, err, "execution reverted: insufficient token balance")

	var coded interface{ ErrorCode() int }
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, 3, coded.ErrorCode())

	_, err = g.GetBet(ctx, big.NewInt(42))
	assert.ErrorIs(t, err, ErrBetNotFound)

	_, err = g.AcceptBet(ctx, big.NewInt(42))
	assert.EqualError(t, err, "execution reverted: bet does not exist")
}

func TestSimulatedDisconnect(t *testing.T) {
	sim := NewSimulatedChain()
	g := sim.Session(creator)
	require.True(t, g.Connected())

	g.Disconnect()
	assert.False(t, g.Connected())

	_, err := g.WatchEvents(context.Background(), make(chan Event, 1))
	assert.Error(t, err)
}

func TestSeedDemoBets(t *testing.T) {
	sim := NewSimulatedChain()
	sim.SeedDemoBets()

	ids, err := sim.Session(creator).GetActiveBets(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 4)

	rec, err := sim.Session(creator).GetBet(context.Background(), ids[1])
	require.NoError(t, err)
	assert.Equal(t, "space-breaker", rec.GameType)
	assert.Equal(t, tokens(100).String(), rec.Amount.String())
	assert.Equal(t, int64(600), rec.TimeLimit.Int64())
}
