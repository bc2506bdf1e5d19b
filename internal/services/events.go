package services

import (
	"sync"

	"github.com/decred/slog"

	"arcade-wager-backend/internal/models"
)

type EventKind int

const (
	KindActiveBetsLoaded EventKind = iota + 1
	KindUserBetsLoaded
	KindBetCreated
	KindBetAccepted
	KindBetCompleted
	KindBetCancelled
	KindBoostActivated
)

var eventKindNames = map[EventKind]string{
	KindActiveBetsLoaded: "activeBetsLoaded",
	KindUserBetsLoaded:   "userBetsLoaded",
	KindBetCreated:       "betCreated",
	KindBetAccepted:      "betAccepted",
	KindBetCompleted:     "betCompleted",
	KindBetCancelled:     "betCancelled",
	KindBoostActivated:   "boostActivated",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

func EventKinds() []EventKind {
	return []EventKind{
		KindActiveBetsLoaded,
		KindUserBetsLoaded,
		KindBetCreated,
		KindBetAccepted,
		KindBetCompleted,
		KindBetCancelled,
		KindBoostActivated,
	}
}

// Event is one of the payload types below. Listeners share the payload and
// must not modify it.
type Event interface {
	Kind() EventKind
	sealed()
}

type ActiveBetsLoaded struct {
	Bets []*models.Bet `json:"bets"`
}

type UserBetsLoaded struct {
	Bets []*models.Bet `json:"bets"`
}

type BetCreated struct {
	Bet *models.Bet `json:"bet"`
}

type BetAccepted struct {
	Bet      *models.Bet `json:"bet"`
	Acceptor string      `json:"acceptor"`
}

type BetCompleted struct {
	Bet    *models.Bet `json:"bet"`
	Winner string      `json:"winner"`
	Payout string      `json:"payout"`
}

type BetCancelled struct {
	ID string `json:"id"`
}

type BoostActivated struct {
	Bet    *models.Bet `json:"bet"`
	Player string      `json:"player"`
}

func (*ActiveBetsLoaded) Kind() EventKind { return KindActiveBetsLoaded }
func (*UserBetsLoaded) Kind() EventKind   { return KindUserBetsLoaded }
func (*BetCreated) Kind() EventKind       { return KindBetCreated }
func (*BetAccepted) Kind() EventKind      { return KindBetAccepted }
func (*BetCompleted) Kind() EventKind     { return KindBetCompleted }
func (*BetCancelled) Kind() EventKind     { return KindBetCancelled }
func (*BoostActivated) Kind() EventKind   { return KindBoostActivated }

func (*ActiveBetsLoaded) sealed() {}
func (*UserBetsLoaded) sealed()   {}
func (*BetCreated) sealed()       {}
func (*BetAccepted) sealed()      {}
func (*BetCompleted) sealed()     {}
func (*BetCancelled) sealed()     {}
func (*BoostActivated) sealed()   {}

type Listener func(Event)

type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

type eventBus struct {
	log slog.Logger

	mu        sync.Mutex
	nextID    ListenerID
	listeners map[EventKind][]listenerEntry
}

func newEventBus(log slog.Logger) *eventBus {
	return &eventBus{
		log:       log,
		listeners: make(map[EventKind][]listenerEntry),
	}
}

func (b *eventBus) subscribe(kind EventKind, fn Listener) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.listeners[kind] = append(b.listeners[kind], listenerEntry{id: b.nextID, fn: fn})
	return b.nextID
}

func (b *eventBus) unsubscribe(id ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for kind, entries := range b.listeners {
		for i, e := range entries {
			if e.id != id {
				continue
			}
			rest := make([]listenerEntry, 0, len(entries)-1)
			rest = append(rest, entries[:i]...)
			rest = append(rest, entries[i+1:]...)
			b.listeners[kind] = rest
			return true
		}
	}
	return false
}

// publish calls the listeners registered for the event's kind in
// registration order.
func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	entries := b.listeners[ev.Kind()]
	b.mu.Unlock()

	for _, e := range entries {
		b.deliver(e, ev)
	}
}

func (b *eventBus) deliver(e listenerEntry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("sync: listener %d for %s panicked: %v", e.id, ev.Kind(), r)
		}
	}()
	e.fn(ev)
}
