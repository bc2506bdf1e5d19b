package services

import "time"

const (
	KeySession       = "session:%s"
	KeyActiveBets    = "bets:active"
	KeyUserBets      = "bets:user:%s"
	KeyBet           = "bet:%s"
	KeyCompletedBets = "bets:completed"
	KeyEventJournal  = "events:journal"
	KeyRateLimit     = "ratelimit:%s:%s"

	TTLSession      = 24 * time.Hour
	TTLCompletedBet = 30 * 24 * time.Hour // 30 days

	MaxCompletedBets = 100
	MaxJournalEvents = 100

	DefaultRateLimitBets   = 30 // Max 30 bet commands per minute
	DefaultRateLimitBoosts = 60 // Max 60 boosts per minute
)
