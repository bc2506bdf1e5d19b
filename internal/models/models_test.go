package models_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade-wager-backend/internal/models"
)

func validRequest() *models.CreateBetRequest {
	return &models.CreateBetRequest{
		Amount:     "50",
		TimeLimit:  "5",
		BoostLimit: "3",
		GameType:   models.GameTypeArkaHack,
	}
}

func TestCreateBetRequestValidate(t *testing.T) {
	assert.NoError(t, validRequest().Validate())

	tests := []struct {
		name   string
		mutate func(r *models.CreateBetRequest)
		want   string
	}{
		{"missing amount", func(r *models.CreateBetRequest) { r.Amount = "" }, "amount is required"},
		{"non numeric amount", func(r *models.CreateBetRequest) { r.Amount = "lots" }, "amount must be a number"},
		{"amount below minimum", func(r *models.CreateBetRequest) { r.Amount = "0.5" }, "amount must be at least 1"},
		{"amount above maximum", func(r *models.CreateBetRequest) { r.Amount = "10000.01" }, "amount must be at most 10000"},
		{"too precise", func(r *models.CreateBetRequest) { r.Amount = "1.0000000000000000001" }, "amount has more than 18 decimal places"},
		{"time limit", func(r *models.CreateBetRequest) { r.TimeLimit = "7" }, `invalid time limit: "7"`},
		{"boost limit", func(r *models.CreateBetRequest) { r.BoostLimit = "2" }, `invalid boost limit: "2"`},
		{"game type", func(r *models.CreateBetRequest) { r.GameType = "tetris" }, `invalid game type: "tetris"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			err := req.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestCreateBetRequestBounds(t *testing.T) {
	for _, amount := range []string{"1", "10000", "2500.5"} {
		req := validRequest()
		req.Amount = amount
		assert.NoError(t, req.Validate(), amount)
	}

	req := validRequest()
	req.TimeLimit = "15"
	req.BoostLimit = "5"
	assert.Equal(t, int64(900), req.TimeLimitSeconds())
	assert.Equal(t, int64(5), req.BoostLimitValue())
}

func TestTokenAmountConversion(t *testing.T) {
	raw, err := models.ParseTokenAmount("50")
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("50000000000000000000", 10)
	assert.Equal(t, 0, want.Cmp(raw))
	assert.Equal(t, "50", models.FormatTokenAmount(raw))

	raw, err = models.ParseTokenAmount("0.25")
	require.NoError(t, err)
	assert.Equal(t, "250000000000000000", raw.String())
	assert.Equal(t, "0.25", models.FormatTokenAmount(raw))

	assert.Equal(t, "0", models.FormatTokenAmount(nil))

	_, err = models.ParseTokenAmount("abc")
	assert.Error(t, err)
}

func TestFormatBetStatus(t *testing.T) {
	labels := map[models.BetStatus]string{
		models.BetStatusPending:   "Pending",
		models.BetStatusActive:    "Active",
		models.BetStatusCompleted: "Completed",
		models.BetStatusCancelled: "Cancelled",
		models.BetStatusExpired:   "Expired",
		models.BetStatus(9):       "Unknown",
	}
	for status, label := range labels {
		assert.Equal(t, label, models.FormatBetStatus(status))
	}
}

func TestFormatTimeRemaining(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "5:00", models.FormatTimeRemaining(created, 300, created))
	assert.Equal(t, "3:05", models.FormatTimeRemaining(created, 300, created.Add(115*time.Second)))
	assert.Equal(t, "0:01", models.FormatTimeRemaining(created, 300, created.Add(299*time.Second)))
	assert.Equal(t, "expired", models.FormatTimeRemaining(created, 300, created.Add(300*time.Second)))
	assert.Equal(t, "expired", models.FormatTimeRemaining(created, 300, created.Add(time.Hour)))
}

func TestBetHelpers(t *testing.T) {
	accepted := time.Now()
	bet := &models.Bet{
		ID:         "1",
		Creator:    "0xAbC0000000000000000000000000000000000001",
		Acceptor:   "0x0000000000000000000000000000000000000002",
		Status:     models.BetStatusActive,
		GameType:   models.GameTypePacHack,
		AcceptedAt: &accepted,
	}

	assert.True(t, bet.Involves("0xabc0000000000000000000000000000000000001"))
	assert.True(t, bet.Involves("0x0000000000000000000000000000000000000002"))
	assert.False(t, bet.Involves("0x0000000000000000000000000000000000000003"))
	assert.False(t, bet.Involves(""))

	clone := bet.Clone()
	clone.Status = models.BetStatusCompleted
	*clone.AcceptedAt = accepted.Add(time.Hour)
	assert.Equal(t, models.BetStatusActive, bet.Status)
	assert.Equal(t, accepted, *bet.AcceptedAt)

	view := models.NewBetView(bet, time.Now())
	assert.Equal(t, "Active", view.StatusLabel)
	require.NotNil(t, view.Game)
	assert.Equal(t, "PAC-HACK", view.Game.Name)
}

func TestGameConfig(t *testing.T) {
	for _, gt := range models.GameTypes() {
		cfg, ok := models.GetGameConfig(gt)
		assert.True(t, ok)
		assert.NotEmpty(t, cfg.Name)
		assert.True(t, gt.IsValid())
	}

	_, ok := models.GetGameConfig("tetris")
	assert.False(t, ok)
}
