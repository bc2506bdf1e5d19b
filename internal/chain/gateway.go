// Package chain binds the betting contract and the betting token. Gateway is
// the only way the rest of the backend talks to the chain; amounts crossing it
// are raw token units.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

var ErrBetNotFound = errors.New("bet not found")

// TokenUnit is 10^18, one whole token in raw units.
var TokenUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// BetRecord is the getBet tuple as stored by the contract. Status is 0-4 and
// timestamps are unix seconds, AcceptedAt zero when unset.
type BetRecord struct {
	ID         *big.Int
	Creator    common.Address
	Acceptor   common.Address
	Amount     *big.Int
	TimeLimit  *big.Int
	BoostLimit *big.Int
	GameType   string
	Status     uint8
	CreatedAt  *big.Int
	AcceptedAt *big.Int
}

type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	// BetID is set when the transaction emitted BetCreated.
	BetID *big.Int
}

type PendingTx interface {
	Hash() common.Hash
	Wait(ctx context.Context) (*Receipt, error)
}

type EventKind string

const (
	EventBetCreated     EventKind = "BetCreated"
	EventBetAccepted    EventKind = "BetAccepted"
	EventBetCompleted   EventKind = "BetCompleted"
	EventBetCancelled   EventKind = "BetCancelled"
	EventBoostActivated EventKind = "BoostActivated"
)

// Event is a decoded betting contract log. Party is the creator, acceptor,
// winner or player depending on Kind.
type Event struct {
	Kind     EventKind
	BetID    *big.Int
	Party    common.Address
	Amount   *big.Int
	GameType string
	TxHash   common.Hash
}

type Gateway interface {
	Connected() bool
	Address() common.Address

	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	GetBet(ctx context.Context, id *big.Int) (*BetRecord, error)
	GetActiveBets(ctx context.Context) ([]*big.Int, error)
	GetUserBets(ctx context.Context, user common.Address) ([]*big.Int, error)
	GetBoostCost(ctx context.Context, id *big.Int) (*big.Int, error)

	CreateBet(ctx context.Context, amount, timeLimit, boostLimit *big.Int, gameType string) (PendingTx, error)
	AcceptBet(ctx context.Context, id *big.Int) (PendingTx, error)
	CancelBet(ctx context.Context, id *big.Int) (PendingTx, error)
	ActivateBoost(ctx context.Context, id *big.Int) (PendingTx, error)

	// WatchEvents delivers betting contract events to sink in emission order
	// until the subscription is cancelled or fails.
	WatchEvents(ctx context.Context, sink chan<- Event) (event.Subscription, error)
}
