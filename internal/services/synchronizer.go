package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"golang.org/x/sync/errgroup"

	"arcade-wager-backend/internal/chain"
	"arcade-wager-backend/internal/models"
)

const (
	resubscribeDelay = 5 * time.Second
	eventBufferSize  = 64
	maxParallelFetch = 8
)

// Synchronizer keeps a local cache of active bets and of the bets involving
// its identity, fed by full reloads and by contract events. Commands go
// through it so that every failure is classified and logged in one place.
type Synchronizer struct {
	gateway chain.Gateway
	log     slog.Logger
	bus     *eventBus

	mu         sync.RWMutex
	activeBets map[string]*models.Bet
	userBets   map[string]*models.Bet

	stateMu     sync.Mutex
	initialized bool
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewSynchronizer(gateway chain.Gateway, log slog.Logger) *Synchronizer {
	return &Synchronizer{
		gateway:    gateway,
		log:        log,
		bus:        newEventBus(log),
		activeBets: make(map[string]*models.Bet),
		userBets:   make(map[string]*models.Bet),
	}
}

// Initialize subscribes to contract events and performs the first active
// bets load. Calling it again on an initialized synchronizer is a no-op.
func (s *Synchronizer) Initialize(ctx context.Context) error {
	if s.gateway == nil || !s.gateway.Connected() {
		return s.fail("initialize", &NotInitializedError{Reason: "chain gateway is not connected"})
	}

	s.stateMu.Lock()
	if s.initialized {
		s.stateMu.Unlock()
		return nil
	}
	events := make(chan chain.Event, eventBufferSize)
	sub, err := s.gateway.WatchEvents(ctx, events)
	if err != nil {
		s.stateMu.Unlock()
		return s.fail("initialize", fmt.Errorf("failed to watch bet events: %w", classifyRemoteError(err)))
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.initialized = true
	s.stateMu.Unlock()

	go s.run(loopCtx, events, sub, done)

	if _, err := s.LoadActiveBets(ctx); err != nil {
		s.Close()
		return err
	}
	s.log.Infof("sync: initialized for %s", s.Address())
	return nil
}

// Close stops the event loop and waits for it to exit.
func (s *Synchronizer) Close() {
	s.stateMu.Lock()
	cancel, done := s.cancel, s.done
	s.initialized = false
	s.cancel, s.done = nil, nil
	s.stateMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Synchronizer) run(ctx context.Context, events chan chain.Event, sub event.Subscription, done chan struct{}) {
	defer close(done)
	defer s.loopStopped(done)

	for {
		select {
		case ev := <-events:
			s.HandleEvent(ctx, ev)

		case err := <-sub.Err():
			sub.Unsubscribe()
			if err == nil {
				return
			}
			s.log.Warnf("sync: event subscription failed: %v", err)
			if sub = s.resubscribe(ctx, events); sub == nil {
				return
			}

		case <-ctx.Done():
			sub.Unsubscribe()
			return
		}
	}
}

// loopStopped marks the synchronizer uninitialized when the loop that owns
// done exits on its own. A loop already detached by Close is ignored.
func (s *Synchronizer) loopStopped(done chan struct{}) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.done != done {
		return
	}
	s.cancel()
	s.initialized = false
	s.cancel, s.done = nil, nil
	s.log.Warnf("sync: event loop stopped")
}

// resubscribe retries WatchEvents until it succeeds or ctx ends. Events
// emitted while disconnected are lost, so the active set is reloaded.
func (s *Synchronizer) resubscribe(ctx context.Context, events chan chain.Event) event.Subscription {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(resubscribeDelay):
		}

		sub, err := s.gateway.WatchEvents(ctx, events)
		if err != nil {
			s.log.Warnf("sync: resubscribe failed: %v", err)
			continue
		}
		s.log.Infof("sync: event subscription restored")
		if _, err := s.LoadActiveBets(ctx); err != nil {
			s.log.Warnf("sync: reload after resubscribe: %v", err)
		}
		return sub
	}
}

// HandleEvent applies one contract event to the cache and publishes the
// matching typed event. Applying the same event twice leaves the cache
// unchanged.
func (s *Synchronizer) HandleEvent(ctx context.Context, ev chain.Event) {
	if ev.BetID == nil {
		s.log.Warnf("sync: %s event without bet id", ev.Kind)
		return
	}
	id := ev.BetID.String()
	s.log.Debugf("sync: %s bet=%s tx=%s", ev.Kind, id, ev.TxHash.Hex())

	switch ev.Kind {
	case chain.EventBetCreated:
		bet, err := s.fetchBet(ctx, id)
		if err != nil {
			s.log.Errorf("sync: handle %s for bet %s: %v", ev.Kind, id, err)
			return
		}
		s.mu.Lock()
		s.activeBets[id] = bet
		s.trackUserBet(bet)
		s.mu.Unlock()
		s.bus.publish(&BetCreated{Bet: bet.Clone()})

	case chain.EventBetAccepted:
		bet, err := s.fetchBet(ctx, id)
		if err != nil {
			s.log.Errorf("sync: handle %s for bet %s: %v", ev.Kind, id, err)
			return
		}
		s.mu.Lock()
		delete(s.activeBets, id)
		s.trackUserBet(bet)
		s.mu.Unlock()
		s.bus.publish(&BetAccepted{Bet: bet.Clone(), Acceptor: ev.Party.Hex()})

	case chain.EventBetCompleted:
		bet, err := s.fetchBet(ctx, id)
		if err != nil {
			s.log.Errorf("sync: handle %s for bet %s: %v", ev.Kind, id, err)
			return
		}
		s.mu.Lock()
		delete(s.activeBets, id)
		s.trackUserBet(bet)
		s.mu.Unlock()
		s.bus.publish(&BetCompleted{
			Bet:    bet.Clone(),
			Winner: ev.Party.Hex(),
			Payout: models.FormatTokenAmount(ev.Amount),
		})

	case chain.EventBetCancelled:
		s.mu.Lock()
		delete(s.activeBets, id)
		if cached, ok := s.userBets[id]; ok && cached.Status != models.BetStatusCancelled {
			cancelled := cached.Clone()
			cancelled.Status = models.BetStatusCancelled
			s.userBets[id] = cancelled
		}
		s.mu.Unlock()
		s.bus.publish(&BetCancelled{ID: id})

	case chain.EventBoostActivated:
		bet, err := s.fetchBet(ctx, id)
		if err != nil {
			s.log.Errorf("sync: handle %s for bet %s: %v", ev.Kind, id, err)
			return
		}
		s.mu.Lock()
		s.trackUserBet(bet)
		s.mu.Unlock()
		s.bus.publish(&BoostActivated{Bet: bet.Clone(), Player: ev.Party.Hex()})

	default:
		s.log.Warnf("sync: ignoring unknown event %q for bet %s", ev.Kind, id)
	}
}

// trackUserBet upserts bet into the user bets when it involves the
// synchronizer's identity. Callers hold s.mu.
func (s *Synchronizer) trackUserBet(bet *models.Bet) {
	if bet.Involves(s.Address()) {
		s.userBets[bet.ID] = bet
	}
}

// CreateBet validates the request, checks the balance, submits the bet and
// waits for it to be mined. The new bet is inserted into the active bets
// and its id returned.
func (s *Synchronizer) CreateBet(ctx context.Context, req *models.CreateBetRequest) (string, error) {
	const op = "create bet"
	if err := s.checkReady(); err != nil {
		return "", s.fail(op, err)
	}
	if req == nil {
		return "", s.fail(op, &ValidationError{Reason: "amount is required"})
	}
	if err := req.Validate(); err != nil {
		return "", s.fail(op, &ValidationError{Reason: err.Error()})
	}
	amount, err := models.ParseTokenAmount(req.Amount)
	if err != nil {
		return "", s.fail(op, &ValidationError{Reason: err.Error()})
	}
	if err := s.requireBalance(ctx, amount, "insufficient balance"); err != nil {
		return "", s.fail(op, err)
	}

	tx, err := s.gateway.CreateBet(ctx, amount,
		big.NewInt(req.TimeLimitSeconds()), big.NewInt(req.BoostLimitValue()), string(req.GameType))
	if err != nil {
		return "", s.fail(op, classifyRemoteError(err))
	}
	s.log.Infof("sync: createBet submitted tx=%s", tx.Hash().Hex())

	receipt, err := tx.Wait(ctx)
	if err != nil {
		return "", s.fail(op, classifyRemoteError(err))
	}
	if receipt.BetID == nil {
		return "", s.fail(op, fmt.Errorf("transaction %s emitted no BetCreated event", receipt.TxHash.Hex()))
	}
	id := receipt.BetID.String()

	bet, err := s.fetchBet(ctx, id)
	if err != nil {
		s.log.Warnf("sync: bet %s created but could not be loaded: %v", id, err)
		return id, nil
	}
	s.mu.Lock()
	// The event loop may already have seen the bet move past PENDING.
	if cur, ok := s.userBets[id]; (!ok || cur.Status == models.BetStatusPending) && bet.Status == models.BetStatusPending {
		s.activeBets[id] = bet
		s.trackUserBet(bet)
	}
	s.mu.Unlock()

	s.log.Infof("sync: bet %s created in block %d", id, receipt.BlockNumber)
	return id, nil
}

func (s *Synchronizer) AcceptBet(ctx context.Context, id string) (*chain.Receipt, error) {
	const op = "accept bet"
	if err := s.checkReady(); err != nil {
		return nil, s.fail(op, err)
	}
	betID, err := parseBetID(id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	bet, err := s.fetchBet(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if bet.Status != models.BetStatusPending {
		return nil, s.fail(op, &ValidationError{Reason: "bet is not available for acceptance"})
	}
	if bet.IsCreator(s.Address()) {
		return nil, s.fail(op, &ValidationError{Reason: "cannot accept your own bet"})
	}
	amount, err := models.ParseTokenAmount(bet.Amount)
	if err != nil {
		return nil, s.fail(op, fmt.Errorf("bet %s carries an unreadable amount: %w", id, err))
	}
	if err := s.requireBalance(ctx, amount, "insufficient balance"); err != nil {
		return nil, s.fail(op, err)
	}

	return s.submit(ctx, op, func() (chain.PendingTx, error) {
		return s.gateway.AcceptBet(ctx, betID)
	})
}

func (s *Synchronizer) CancelBet(ctx context.Context, id string) (*chain.Receipt, error) {
	const op = "cancel bet"
	if err := s.checkReady(); err != nil {
		return nil, s.fail(op, err)
	}
	betID, err := parseBetID(id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	bet, err := s.fetchBet(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if !bet.IsCreator(s.Address()) {
		return nil, s.fail(op, &ValidationError{Reason: "only the creator can cancel a bet"})
	}
	if bet.Status != models.BetStatusPending {
		return nil, s.fail(op, &ValidationError{Reason: "only pending bets can be cancelled"})
	}

	return s.submit(ctx, op, func() (chain.PendingTx, error) {
		return s.gateway.CancelBet(ctx, betID)
	})
}

func (s *Synchronizer) ActivateBoost(ctx context.Context, id string) (*chain.Receipt, error) {
	const op = "activate boost"
	if err := s.checkReady(); err != nil {
		return nil, s.fail(op, err)
	}
	betID, err := parseBetID(id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	bet, err := s.fetchBet(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if bet.Status != models.BetStatusActive {
		return nil, s.fail(op, &ValidationError{Reason: "bet must be active to use boosts"})
	}
	cost, err := s.gateway.GetBoostCost(ctx, betID)
	if err != nil {
		return nil, s.fail(op, classifyRemoteError(err))
	}
	if err := s.requireBalance(ctx, cost, "insufficient balance for boost"); err != nil {
		return nil, s.fail(op, err)
	}

	return s.submit(ctx, op, func() (chain.PendingTx, error) {
		return s.gateway.ActivateBoost(ctx, betID)
	})
}

func (s *Synchronizer) submit(ctx context.Context, op string, send func() (chain.PendingTx, error)) (*chain.Receipt, error) {
	tx, err := send()
	if err != nil {
		return nil, s.fail(op, classifyRemoteError(err))
	}
	s.log.Infof("sync: %s submitted tx=%s", op, tx.Hash().Hex())

	receipt, err := tx.Wait(ctx)
	if err != nil {
		return nil, s.fail(op, classifyRemoteError(err))
	}
	return receipt, nil
}

// requireBalance fails with a ValidationError when the identity holds less
// than need raw units. A failed lookup is returned as is.
func (s *Synchronizer) requireBalance(ctx context.Context, need *big.Int, reason string) error {
	balance, err := s.gateway.BalanceOf(ctx, s.gateway.Address())
	if err != nil {
		return classifyRemoteError(err)
	}
	if balance.Cmp(need) < 0 {
		return &ValidationError{Reason: fmt.Sprintf("%s: need %s %s",
			reason, models.FormatTokenAmount(need), models.TokenSymbol)}
	}
	return nil
}

// GetBet reads one bet straight from the chain, bypassing the cache.
func (s *Synchronizer) GetBet(ctx context.Context, id string) (*models.Bet, error) {
	if err := s.checkReady(); err != nil {
		return nil, s.fail("get bet", err)
	}
	bet, err := s.fetchBet(ctx, id)
	if err != nil {
		return nil, s.fail("get bet", err)
	}
	return bet, nil
}

func (s *Synchronizer) fetchBet(ctx context.Context, id string) (*models.Bet, error) {
	betID, err := parseBetID(id)
	if err != nil {
		return nil, err
	}
	rec, err := s.gateway.GetBet(ctx, betID)
	if err != nil {
		if errors.Is(err, chain.ErrBetNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, classifyRemoteError(err)
	}
	return betFromRecord(rec), nil
}

// fetchAll loads the given ids concurrently. Ids that fail to load are
// logged and skipped.
func (s *Synchronizer) fetchAll(ctx context.Context, what string, ids []*big.Int) []*models.Bet {
	results := make([]*models.Bet, len(ids))

	var g errgroup.Group
	g.SetLimit(maxParallelFetch)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			bet, err := s.fetchBet(ctx, id.String())
			if err != nil {
				s.log.Warnf("sync: skipping %s bet %s: %v", what, id, err)
				return nil
			}
			results[i] = bet
			return nil
		})
	}
	_ = g.Wait()

	bets := results[:0]
	for _, bet := range results {
		if bet != nil {
			bets = append(bets, bet)
		}
	}
	return bets
}

// LoadActiveBets rebuilds the active bets from the ids the contract lists.
// Fetched bets are kept while PENDING; a listed bet that fails to load keeps
// its cached entry, or is skipped when it was never cached.
func (s *Synchronizer) LoadActiveBets(ctx context.Context) ([]*models.Bet, error) {
	const op = "load active bets"
	if err := s.checkReady(); err != nil {
		return nil, s.fail(op, err)
	}
	ids, err := s.gateway.GetActiveBets(ctx)
	if err != nil {
		return nil, s.fail(op, classifyRemoteError(err))
	}

	fetched := make(map[string]bool, len(ids))
	loaded := make(map[string]*models.Bet, len(ids))
	for _, bet := range s.fetchAll(ctx, "active", ids) {
		fetched[bet.ID] = true
		if bet.Status == models.BetStatusPending {
			loaded[bet.ID] = bet
		}
	}

	s.mu.Lock()
	for _, id := range ids {
		key := id.String()
		if fetched[key] {
			continue
		}
		if cached, ok := s.activeBets[key]; ok {
			loaded[key] = cached
		}
	}
	s.activeBets = loaded
	for _, bet := range loaded {
		s.trackUserBet(bet)
	}
	snapshot := sortedClones(s.activeBets)
	s.mu.Unlock()

	s.log.Infof("sync: loaded %d active bets", len(snapshot))
	s.bus.publish(&ActiveBetsLoaded{Bets: snapshot})
	return s.ActiveBets(), nil
}

// LoadUserBets replaces the user bets with every bet the contract lists
// for the synchronizer's identity.
func (s *Synchronizer) LoadUserBets(ctx context.Context) ([]*models.Bet, error) {
	const op = "load user bets"
	if err := s.checkReady(); err != nil {
		return nil, s.fail(op, err)
	}
	ids, err := s.gateway.GetUserBets(ctx, s.gateway.Address())
	if err != nil {
		return nil, s.fail(op, classifyRemoteError(err))
	}

	loaded := make(map[string]*models.Bet, len(ids))
	for _, bet := range s.fetchAll(ctx, "user", ids) {
		loaded[bet.ID] = bet
	}

	s.mu.Lock()
	s.userBets = loaded
	snapshot := sortedClones(s.userBets)
	s.mu.Unlock()

	s.log.Infof("sync: loaded %d bets for %s", len(snapshot), s.Address())
	s.bus.publish(&UserBetsLoaded{Bets: snapshot})
	return s.UserBets(), nil
}

// ActiveBets returns a copy of the active bets, newest first.
func (s *Synchronizer) ActiveBets() []*models.Bet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedClones(s.activeBets)
}

func (s *Synchronizer) UserBets() []*models.Bet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedClones(s.userBets)
}

// Address is the identity commands are submitted as, or "" without a
// gateway.
func (s *Synchronizer) Address() string {
	if s.gateway == nil {
		return ""
	}
	return s.gateway.Address().Hex()
}

func (s *Synchronizer) Balance(ctx context.Context) (*models.BalanceResponse, error) {
	if err := s.checkReady(); err != nil {
		return nil, s.fail("balance", err)
	}
	raw, err := s.gateway.BalanceOf(ctx, s.gateway.Address())
	if err != nil {
		return nil, s.fail("balance", classifyRemoteError(err))
	}
	return &models.BalanceResponse{
		Address: s.Address(),
		Balance: models.FormatTokenAmount(raw),
		Symbol:  models.TokenSymbol,
	}, nil
}

func (s *Synchronizer) GetGameConfig(gameType models.GameType) (models.GameConfig, bool) {
	return models.GetGameConfig(gameType)
}

// Subscribe registers fn for one event kind. Listeners run on the goroutine
// that published the event, in registration order.
func (s *Synchronizer) Subscribe(kind EventKind, fn Listener) ListenerID {
	return s.bus.subscribe(kind, fn)
}

// SubscribeAll registers fn for every event kind and returns one id per
// kind, in EventKinds order.
func (s *Synchronizer) SubscribeAll(fn Listener) []ListenerID {
	kinds := EventKinds()
	ids := make([]ListenerID, 0, len(kinds))
	for _, kind := range kinds {
		ids = append(ids, s.bus.subscribe(kind, fn))
	}
	return ids
}

func (s *Synchronizer) Unsubscribe(id ListenerID) bool {
	return s.bus.unsubscribe(id)
}

func (s *Synchronizer) checkReady() error {
	if s.gateway == nil || !s.gateway.Connected() {
		return &NotInitializedError{Reason: "chain gateway is not connected"}
	}
	s.stateMu.Lock()
	ready := s.initialized
	s.stateMu.Unlock()
	if !ready {
		return &NotInitializedError{Reason: "bet synchronizer is not initialized"}
	}
	return nil
}

// fail logs err with the operation name and returns it unchanged.
func (s *Synchronizer) fail(op string, err error) error {
	var (
		validation *ValidationError
		notFound   *NotFoundError
	)
	if errors.As(err, &validation) || errors.As(err, &notFound) {
		s.log.Warnf("sync: %s: %v", op, err)
	} else {
		s.log.Errorf("sync: %s: %v", op, err)
	}
	return err
}

func parseBetID(id string) (*big.Int, error) {
	betID, ok := new(big.Int).SetString(id, 10)
	if !ok || betID.Sign() < 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid bet id %q", id)}
	}
	return betID, nil
}

func betFromRecord(rec *chain.BetRecord) *models.Bet {
	bet := &models.Bet{
		ID:         bigString(rec.ID),
		Creator:    rec.Creator.Hex(),
		Amount:     models.FormatTokenAmount(rec.Amount),
		TimeLimit:  bigInt64(rec.TimeLimit),
		BoostLimit: bigInt64(rec.BoostLimit),
		GameType:   models.GameType(rec.GameType),
		Status:     models.BetStatus(rec.Status),
		CreatedAt:  time.Unix(bigInt64(rec.CreatedAt), 0).UTC(),
	}
	if rec.Acceptor != (common.Address{}) {
		bet.Acceptor = rec.Acceptor.Hex()
	}
	if at := bigInt64(rec.AcceptedAt); at > 0 {
		accepted := time.Unix(at, 0).UTC()
		bet.AcceptedAt = &accepted
	}
	return bet
}

func bigInt64(v *big.Int) int64 {
	if v == nil {
		return 0
	}
	return v.Int64()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func sortedClones(bets map[string]*models.Bet) []*models.Bet {
	out := make([]*models.Bet, 0, len(bets))
	for _, bet := range bets {
		out = append(out, bet.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		if len(out[i].ID) != len(out[j].ID) {
			return len(out[i].ID) > len(out[j].ID)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
