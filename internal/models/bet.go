package models

import (
	"strings"
	"time"
)

type BetStatus uint8

const (
	BetStatusPending BetStatus = iota
	BetStatusActive
	BetStatusCompleted
	BetStatusCancelled
	BetStatusExpired
)

var betStatusLabels = map[BetStatus]string{
	BetStatusPending:   "Pending",
	BetStatusActive:    "Active",
	BetStatusCompleted: "Completed",
	BetStatusCancelled: "Cancelled",
	BetStatusExpired:   "Expired",
}

func (s BetStatus) String() string {
	if label, ok := betStatusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

// Bet mirrors one wager held by the betting contract. Amount is always the
// human-readable token amount, never raw units.
type Bet struct {
	ID         string     `json:"id"`
	Creator    string     `json:"creator"`
	Acceptor   string     `json:"acceptor,omitempty"`
	Amount     string     `json:"amount"`
	TimeLimit  int64      `json:"time_limit"` // seconds
	BoostLimit int64      `json:"boost_limit"`
	GameType   GameType   `json:"game_type"`
	Status     BetStatus  `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	AcceptedAt *time.Time `json:"accepted_at"`
}

func (b *Bet) Clone() *Bet {
	if b == nil {
		return nil
	}
	c := *b
	if b.AcceptedAt != nil {
		at := *b.AcceptedAt
		c.AcceptedAt = &at
	}
	return &c
}

// Involves reports whether address is the creator or the acceptor.
func (b *Bet) Involves(address string) bool {
	if address == "" {
		return false
	}
	return strings.EqualFold(b.Creator, address) ||
		(b.Acceptor != "" && strings.EqualFold(b.Acceptor, address))
}

func (b *Bet) IsCreator(address string) bool {
	return strings.EqualFold(b.Creator, address)
}

func (b *Bet) Deadline() time.Time {
	return b.CreatedAt.Add(time.Duration(b.TimeLimit) * time.Second)
}

// BetView is a Bet decorated with its display label, countdown and game.
type BetView struct {
	*Bet
	StatusLabel   string      `json:"status_label"`
	TimeRemaining string      `json:"time_remaining"`
	Deadline      time.Time   `json:"deadline"`
	Game          *GameConfig `json:"game,omitempty"`
}

func NewBetView(b *Bet, now time.Time) *BetView {
	view := &BetView{
		Bet:           b,
		StatusLabel:   FormatBetStatus(b.Status),
		TimeRemaining: FormatTimeRemaining(b.CreatedAt, b.TimeLimit, now),
		Deadline:      b.Deadline(),
	}
	if cfg, ok := GetGameConfig(b.GameType); ok {
		view.Game = &cfg
	}
	return view
}
