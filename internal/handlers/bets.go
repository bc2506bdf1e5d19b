package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"arcade-wager-backend/internal/chain"
	"arcade-wager-backend/internal/models"
	"arcade-wager-backend/internal/services"
)

// BetHistory is the Redis-backed history the bet routes read from.
type BetHistory interface {
	GetCompletedBets(ctx context.Context, limit int64) ([]*models.Bet, error)
	RecentEvents(ctx context.Context, limit int64) ([]services.EventRecord, error)
}

type BetHandler struct {
	sync    *services.Synchronizer
	history BetHistory
	now     func() time.Time
}

func NewBetHandler(sync *services.Synchronizer, history BetHistory) *BetHandler {
	return &BetHandler{
		sync:    sync,
		history: history,
		now:     time.Now,
	}
}

func (h *BetHandler) ListActive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bets": h.views(h.sync.ActiveBets())})
}

func (h *BetHandler) ReloadActive(c *gin.Context) {
	bets, err := h.sync.LoadActiveBets(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to load active bets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bets": h.views(bets)})
}

func (h *BetHandler) ListMine(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"address": h.sync.Address(),
		"bets":    h.views(h.sync.UserBets()),
	})
}

func (h *BetHandler) ReloadMine(c *gin.Context) {
	bets, err := h.sync.LoadUserBets(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to load your bets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address": h.sync.Address(),
		"bets":    h.views(bets),
	})
}

func (h *BetHandler) GetBet(c *gin.Context) {
	bet, err := h.sync.GetBet(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get bet", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bet": models.NewBetView(bet, h.now())})
}

func (h *BetHandler) CreateBet(c *gin.Context) {
	var req models.CreateBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	id, err := h.sync.CreateBet(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Failed to create bet", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"bet_id":  id,
	})
}

func (h *BetHandler) AcceptBet(c *gin.Context) {
	receipt, err := h.sync.AcceptBet(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to accept bet", err)
		return
	}
	respondReceipt(c, c.Param("id"), receipt)
}

func (h *BetHandler) CancelBet(c *gin.Context) {
	receipt, err := h.sync.CancelBet(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to cancel bet", err)
		return
	}
	respondReceipt(c, c.Param("id"), receipt)
}

func (h *BetHandler) ActivateBoost(c *gin.Context) {
	receipt, err := h.sync.ActivateBoost(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to activate boost", err)
		return
	}
	respondReceipt(c, c.Param("id"), receipt)
}

func (h *BetHandler) History(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"bets": []*models.BetView{}})
		return
	}

	bets, err := h.history.GetCompletedBets(c.Request.Context(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get bet history",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bets": h.views(bets)})
}

func (h *BetHandler) RecentEvents(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"events": []services.EventRecord{}})
		return
	}

	events, err := h.history.RecentEvents(c.Request.Context(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get recent events",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *BetHandler) views(bets []*models.Bet) []*models.BetView {
	now := h.now()
	views := make([]*models.BetView, 0, len(bets))
	for _, bet := range bets {
		views = append(views, models.NewBetView(bet, now))
	}
	return views
}

func respondReceipt(c *gin.Context, id string, receipt *chain.Receipt) {
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"bet_id":       id,
		"tx_hash":      receipt.TxHash.Hex(),
		"block_number": receipt.BlockNumber,
	})
}

// respondError maps the synchronizer's error types onto HTTP statuses.
func respondError(c *gin.Context, message string, err error) {
	var (
		validation *services.ValidationError
		notFound   *services.NotFoundError
		rejection  *services.RemoteRejectionError
		notInit    *services.NotInitializedError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &rejection):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &notInit):
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func queryLimit(c *gin.Context) int64 {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil {
		return 20
	}
	return limit
}
