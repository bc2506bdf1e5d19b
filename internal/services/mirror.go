package services

import (
	"context"
	"time"

	"github.com/decred/slog"

	"arcade-wager-backend/internal/models"
)

const mirrorWriteTimeout = 2 * time.Second

// BetStore is the part of RedisService the mirror writes to.
type BetStore interface {
	ReplaceActiveBets(ctx context.Context, bets []*models.Bet) error
	SaveActiveBet(ctx context.Context, bet *models.Bet) error
	RemoveActiveBet(ctx context.Context, id string) error
	ReplaceUserBets(ctx context.Context, address string, bets []*models.Bet) error
	SaveUserBet(ctx context.Context, address string, bet *models.Bet) error
	CancelUserBet(ctx context.Context, address, id string) error
	CompleteBet(ctx context.Context, bet *models.Bet, at time.Time) error
	RecordEvent(ctx context.Context, ev Event, at time.Time) error
}

// BetMirror copies synchronizer events into a BetStore. Write failures are
// logged and never reach the synchronizer.
type BetMirror struct {
	store   BetStore
	address string
	log     slog.Logger
	now     func() time.Time
}

func NewBetMirror(store BetStore, address string, log slog.Logger) *BetMirror {
	return &BetMirror{store: store, address: address, log: log, now: time.Now}
}

func (m *BetMirror) Attach(s *Synchronizer) []ListenerID {
	return s.SubscribeAll(m.Handle)
}

func (m *BetMirror) Handle(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
	defer cancel()

	if err := m.apply(ctx, ev); err != nil {
		m.log.Warnf("mirror: %s: %v", ev.Kind(), err)
		return
	}
	if err := m.store.RecordEvent(ctx, ev, m.now()); err != nil {
		m.log.Warnf("mirror: %v", err)
	}
}

func (m *BetMirror) apply(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case *ActiveBetsLoaded:
		return m.store.ReplaceActiveBets(ctx, e.Bets)
	case *UserBetsLoaded:
		return m.store.ReplaceUserBets(ctx, m.address, e.Bets)
	case *BetCreated:
		if err := m.store.SaveActiveBet(ctx, e.Bet); err != nil {
			return err
		}
		return m.saveIfMine(ctx, e.Bet)
	case *BetAccepted:
		if err := m.store.RemoveActiveBet(ctx, e.Bet.ID); err != nil {
			return err
		}
		return m.saveIfMine(ctx, e.Bet)
	case *BetCompleted:
		if err := m.store.CompleteBet(ctx, e.Bet, m.now()); err != nil {
			return err
		}
		return m.saveIfMine(ctx, e.Bet)
	case *BetCancelled:
		if err := m.store.RemoveActiveBet(ctx, e.ID); err != nil {
			return err
		}
		return m.store.CancelUserBet(ctx, m.address, e.ID)
	case *BoostActivated:
		return m.saveIfMine(ctx, e.Bet)
	}
	return nil
}

func (m *BetMirror) saveIfMine(ctx context.Context, bet *models.Bet) error {
	if !bet.Involves(m.address) {
		return nil
	}
	return m.store.SaveUserBet(ctx, m.address, bet)
}
