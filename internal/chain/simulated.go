package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
)

// BoostCostPercentage is the share of the bet amount a boost costs.
const BoostCostPercentage = 10

// SimulatedChain is an in-memory betting contract and token ledger. It backs
// offline mode and the tests; each identity gets its own Gateway through
// Session.
type SimulatedChain struct {
	mu       sync.Mutex
	nextID   int64
	block    uint64
	bets     map[string]*simBet
	balances map[common.Address]*big.Int
	feed     event.Feed
	now      func() time.Time
}

type simBet struct {
	rec    BetRecord
	boosts map[common.Address]int64
}

func NewSimulatedChain() *SimulatedChain {
	return &SimulatedChain{
		nextID:   1,
		bets:     make(map[string]*simBet),
		balances: make(map[common.Address]*big.Int),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for created/accepted timestamps.
func (c *SimulatedChain) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *SimulatedChain) Session(address common.Address) *SimulatedGateway {
	g := &SimulatedGateway{chain: c, address: address}
	g.connected.Store(true)
	return g
}

func (c *SimulatedChain) Mint(to common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credit(to, amount)
}

func (c *SimulatedChain) Balance(owner common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balanceOf(owner)
}

// Complete settles an active bet in favour of winner, paying out both
// stakes. It stands in for the off-chain referee calling completeBet.
func (c *SimulatedChain) Complete(id *big.Int, winner common.Address) error {
	c.mu.Lock()
	b, ok := c.bets[id.String()]
	if !ok {
		c.mu.Unlock()
		return revert("bet does not exist")
	}
	if b.rec.Status != 1 {
		c.mu.Unlock()
		return revert("bet not active")
	}
	if winner != b.rec.Creator && winner != b.rec.Acceptor {
		c.mu.Unlock()
		return revert("winner is not a player")
	}
	payout := new(big.Int).Mul(b.rec.Amount, big.NewInt(2))
	c.credit(winner, payout)
	b.rec.Status = 2
	ev := Event{Kind: EventBetCompleted, BetID: new(big.Int).Set(id), Party: winner, Amount: payout}
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

// SeedBet stores a pending bet directly, without escrow or events.
func (c *SimulatedChain) SeedBet(creator common.Address, amount *big.Int, timeLimit, boostLimit int64, gameType string, createdAt time.Time) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := big.NewInt(c.nextID)
	c.nextID++
	c.bets[id.String()] = &simBet{
		rec: BetRecord{
			ID:         id,
			Creator:    creator,
			Amount:     new(big.Int).Set(amount),
			TimeLimit:  big.NewInt(timeLimit),
			BoostLimit: big.NewInt(boostLimit),
			GameType:   gameType,
			CreatedAt:  big.NewInt(createdAt.Unix()),
			AcceptedAt: new(big.Int),
		},
		boosts: make(map[common.Address]int64),
	}
	return id
}

// SeedDemoBets fills the lobby with the four sample bets shown in offline mode.
func (c *SimulatedChain) SeedDemoBets() {
	now := time.Now()
	demo := []struct {
		creator    string
		amount     int64
		timeLimit  int64
		boostLimit int64
		gameType   string
		age        time.Duration
	}{
		{"0x742d35Cc6634C0532925a3b844Bc454e4438f44e", 50, 300, 3, "arka-hack", 2 * time.Minute},
		{"0x742d35Cc6634C0532925a3b844Bc454e4438f44f", 100, 600, 5, "space-breaker", time.Minute},
		{"0x742d35Cc6634C0532925a3b844Bc454e4438f450", 25, 900, 1, "pac-hack", 3 * time.Minute},
		{"0x742d35Cc6634C0532925a3b844Bc454e4438f451", 75, 300, 3, "memory-breach", 30 * time.Second},
	}
	for _, d := range demo {
		amount := new(big.Int).Mul(big.NewInt(d.amount), TokenUnit)
		c.SeedBet(common.HexToAddress(d.creator), amount, d.timeLimit, d.boostLimit, d.gameType, now.Add(-d.age))
	}
}

func (c *SimulatedChain) balanceOf(owner common.Address) *big.Int {
	if b, ok := c.balances[owner]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (c *SimulatedChain) credit(to common.Address, amount *big.Int) {
	c.balances[to] = new(big.Int).Add(c.balanceOf(to), amount)
}

func (c *SimulatedChain) debit(from common.Address, amount *big.Int) error {
	bal := c.balanceOf(from)
	if bal.Cmp(amount) < 0 {
		return revert("insufficient token balance")
	}
	c.balances[from] = bal.Sub(bal, amount)
	return nil
}

func (c *SimulatedChain) emit(events ...Event) {
	for _, ev := range events {
		c.feed.Send(ev)
	}
}

// mine wraps a state change in a mined transaction. apply runs under the
// chain lock; the returned events are emitted after it is released.
func (c *SimulatedChain) mine(apply func() (*big.Int, []Event, error)) (PendingTx, error) {
	c.mu.Lock()
	betID, events, err := apply()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.block++
	u := uuid.New()
	receipt := &Receipt{
		TxHash:      common.BytesToHash(u[:]),
		BlockNumber: c.block,
		BetID:       betID,
	}
	for i := range events {
		events[i].TxHash = receipt.TxHash
	}
	c.mu.Unlock()

	c.emit(events...)
	return &simPendingTx{receipt: receipt}, nil
}

func (c *SimulatedChain) lookup(id *big.Int) (*simBet, error) {
	if id == nil {
		return nil, revert("bet does not exist")
	}
	b, ok := c.bets[id.String()]
	if !ok {
		return nil, revert("bet does not exist")
	}
	return b, nil
}

type simPendingTx struct {
	receipt *Receipt
}

func (p *simPendingTx) Hash() common.Hash {
	return p.receipt.TxHash
}

func (p *simPendingTx) Wait(ctx context.Context) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := *p.receipt
	return &r, nil
}

// revertError mimics the JSON-RPC error a node returns for a failed call.
type revertError struct {
	reason string
}

func (e *revertError) Error() string  { return "execution reverted: " + e.reason }
func (e *revertError) ErrorCode() int { return 3 }

func revert(reason string) error {
	return &revertError{reason: reason}
}

// SimulatedGateway is one identity's view of a SimulatedChain.
type SimulatedGateway struct {
	chain     *SimulatedChain
	address   common.Address
	connected atomic.Bool
}

func (g *SimulatedGateway) Disconnect() {
	g.connected.Store(false)
}

func (g *SimulatedGateway) Connected() bool {
	return g.connected.Load()
}

func (g *SimulatedGateway) Address() common.Address {
	return g.address
}

func (g *SimulatedGateway) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return g.chain.Balance(owner), nil
}

func (g *SimulatedGateway) GetBet(ctx context.Context, id *big.Int) (*BetRecord, error) {
	c := g.chain
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.bets[id.String()]
	if !ok {
		return nil, ErrBetNotFound
	}
	rec := b.rec
	return &rec, nil
}

func (g *SimulatedGateway) GetActiveBets(ctx context.Context) ([]*big.Int, error) {
	return g.chain.ids(func(b *simBet) bool { return b.rec.Status == 0 }), nil
}

func (g *SimulatedGateway) GetUserBets(ctx context.Context, user common.Address) ([]*big.Int, error) {
	return g.chain.ids(func(b *simBet) bool {
		return b.rec.Creator == user || b.rec.Acceptor == user
	}), nil
}

func (c *SimulatedChain) ids(match func(*simBet) bool) []*big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []*big.Int
	for _, b := range c.bets {
		if match(b) {
			ids = append(ids, new(big.Int).Set(b.rec.ID))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
	return ids
}

func (g *SimulatedGateway) GetBoostCost(ctx context.Context, id *big.Int) (*big.Int, error) {
	c := g.chain
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return boostCost(b.rec.Amount), nil
}

func boostCost(amount *big.Int) *big.Int {
	cost := new(big.Int).Mul(amount, big.NewInt(BoostCostPercentage))
	return cost.Div(cost, big.NewInt(100))
}

func (g *SimulatedGateway) CreateBet(ctx context.Context, amount, timeLimit, boostLimit *big.Int, gameType string) (PendingTx, error) {
	c := g.chain
	return c.mine(func() (*big.Int, []Event, error) {
		if amount.Sign() <= 0 {
			return nil, nil, revert("amount must be positive")
		}
		if err := c.debit(g.address, amount); err != nil {
			return nil, nil, err
		}

		id := big.NewInt(c.nextID)
		c.nextID++
		c.bets[id.String()] = &simBet{
			rec: BetRecord{
				ID:         id,
				Creator:    g.address,
				Amount:     new(big.Int).Set(amount),
				TimeLimit:  new(big.Int).Set(timeLimit),
				BoostLimit: new(big.Int).Set(boostLimit),
				GameType:   gameType,
				CreatedAt:  big.NewInt(c.now().Unix()),
				AcceptedAt: new(big.Int),
			},
			boosts: make(map[common.Address]int64),
		}

		return new(big.Int).Set(id), []Event{{
			Kind:     EventBetCreated,
			BetID:    new(big.Int).Set(id),
			Party:    g.address,
			Amount:   new(big.Int).Set(amount),
			GameType: gameType,
		}}, nil
	})
}

func (g *SimulatedGateway) AcceptBet(ctx context.Context, id *big.Int) (PendingTx, error) {
	c := g.chain
	return c.mine(func() (*big.Int, []Event, error) {
		b, err := c.lookup(id)
		if err != nil {
			return nil, nil, err
		}
		if b.rec.Status != 0 {
			return nil, nil, revert("bet not pending")
		}
		if b.rec.Creator == g.address {
			return nil, nil, revert("creator cannot accept")
		}
		if err := c.debit(g.address, b.rec.Amount); err != nil {
			return nil, nil, err
		}

		b.rec.Acceptor = g.address
		b.rec.Status = 1
		b.rec.AcceptedAt = big.NewInt(c.now().Unix())

		return nil, []Event{{Kind: EventBetAccepted, BetID: new(big.Int).Set(id), Party: g.address}}, nil
	})
}

func (g *SimulatedGateway) CancelBet(ctx context.Context, id *big.Int) (PendingTx, error) {
	c := g.chain
	return c.mine(func() (*big.Int, []Event, error) {
		b, err := c.lookup(id)
		if err != nil {
			return nil, nil, err
		}
		if b.rec.Creator != g.address {
			return nil, nil, revert("only creator")
		}
		if b.rec.Status != 0 {
			return nil, nil, revert("bet not pending")
		}

		c.credit(b.rec.Creator, b.rec.Amount)
		b.rec.Status = 3

		return nil, []Event{{Kind: EventBetCancelled, BetID: new(big.Int).Set(id)}}, nil
	})
}

func (g *SimulatedGateway) ActivateBoost(ctx context.Context, id *big.Int) (PendingTx, error) {
	c := g.chain
	return c.mine(func() (*big.Int, []Event, error) {
		b, err := c.lookup(id)
		if err != nil {
			return nil, nil, err
		}
		if b.rec.Status != 1 {
			return nil, nil, revert("bet not active")
		}
		if g.address != b.rec.Creator && g.address != b.rec.Acceptor {
			return nil, nil, revert("not a player")
		}
		if b.boosts[g.address] >= b.rec.BoostLimit.Int64() {
			return nil, nil, revert("boost limit reached")
		}
		if err := c.debit(g.address, boostCost(b.rec.Amount)); err != nil {
			return nil, nil, err
		}
		b.boosts[g.address]++

		return nil, []Event{{Kind: EventBoostActivated, BetID: new(big.Int).Set(id), Party: g.address}}, nil
	})
}

func (g *SimulatedGateway) WatchEvents(ctx context.Context, sink chan<- Event) (event.Subscription, error) {
	if !g.Connected() {
		return nil, fmt.Errorf("gateway disconnected")
	}
	return g.chain.feed.Subscribe(sink), nil
}
