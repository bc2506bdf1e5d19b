package models

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenDecimals is the fixed-point precision of the betting token.
const TokenDecimals = 18

func GenerateSessionID() string {
	return fmt.Sprintf("sess_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

// ParseTokenAmount converts a human-readable amount into raw token units.
func ParseTokenAmount(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("amount must be a number")
	}
	raw := d.Shift(TokenDecimals)
	if !raw.IsInteger() {
		return nil, fmt.Errorf("amount has more than %d decimal places", TokenDecimals)
	}
	return raw.BigInt(), nil
}

// FormatTokenAmount converts raw token units into a human-readable amount.
func FormatTokenAmount(raw *big.Int) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -TokenDecimals).String()
}

func FormatBetStatus(status BetStatus) string {
	return status.String()
}

// FormatTimeRemaining renders the time left before createdAt+timeLimit as
// m:ss, or "expired" once the deadline has passed.
func FormatTimeRemaining(createdAt time.Time, timeLimit int64, now time.Time) string {
	remaining := createdAt.Add(time.Duration(timeLimit) * time.Second).Sub(now)
	if remaining <= 0 {
		return "expired"
	}
	minutes := int64(remaining / time.Minute)
	seconds := int64((remaining % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
