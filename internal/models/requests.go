package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

var (
	MinBetAmount = decimal.NewFromInt(1)
	MaxBetAmount = decimal.NewFromInt(10000)
)

// TimeLimits maps the selectable match lengths (minutes) to seconds.
var TimeLimits = map[string]int64{
	"5":  5 * 60,
	"10": 10 * 60,
	"15": 15 * 60,
}

var BoostLimits = map[string]int64{
	"1": 1,
	"3": 3,
	"5": 5,
}

type CreateBetRequest struct {
	Amount     string   `json:"amount" validate:"required,numeric"`
	TimeLimit  string   `json:"time_limit" validate:"required,oneof=5 10 15"`
	BoostLimit string   `json:"boost_limit" validate:"required,oneof=1 3 5"`
	GameType   GameType `json:"game_type" validate:"required,oneof=arka-hack space-breaker pac-hack memory-breach"`
}

func (r *CreateBetRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return describeFieldError(fieldErrs[0])
		}
		return err
	}

	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return fmt.Errorf("amount must be a number")
	}
	if amount.LessThan(MinBetAmount) {
		return fmt.Errorf("amount must be at least %s", MinBetAmount)
	}
	if amount.GreaterThan(MaxBetAmount) {
		return fmt.Errorf("amount must be at most %s", MaxBetAmount)
	}
	if _, err := ParseTokenAmount(r.Amount); err != nil {
		return err
	}
	return nil
}

func (r *CreateBetRequest) TimeLimitSeconds() int64 {
	return TimeLimits[r.TimeLimit]
}

func (r *CreateBetRequest) BoostLimitValue() int64 {
	return BoostLimits[r.BoostLimit]
}

func describeFieldError(fe validator.FieldError) error {
	switch fe.Field() {
	case "Amount":
		if fe.Tag() == "required" {
			return fmt.Errorf("amount is required")
		}
		return fmt.Errorf("amount must be a number")
	case "TimeLimit":
		return fmt.Errorf("invalid time limit: %q", fe.Value())
	case "BoostLimit":
		return fmt.Errorf("invalid boost limit: %q", fe.Value())
	case "GameType":
		return fmt.Errorf("invalid game type: %q", fe.Value())
	}
	return fmt.Errorf("invalid %s", fe.Field())
}
