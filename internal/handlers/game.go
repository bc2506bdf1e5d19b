package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"arcade-wager-backend/internal/models"
	"arcade-wager-backend/internal/services"
)

type GameHandler struct {
	sync *services.Synchronizer
}

func NewGameHandler(sync *services.Synchronizer) *GameHandler {
	return &GameHandler{sync: sync}
}

func (h *GameHandler) ListGames(c *gin.Context) {
	games := make([]gin.H, 0, len(models.GameTypes()))
	for _, gameType := range models.GameTypes() {
		cfg, _ := h.sync.GetGameConfig(gameType)
		games = append(games, gin.H{
			"type":        gameType,
			"name":        cfg.Name,
			"description": cfg.Description,
			"icon":        cfg.Icon,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"games":        games,
		"time_limits":  models.TimeLimits,
		"boost_limits": models.BoostLimits,
		"min_amount":   models.MinBetAmount.String(),
		"max_amount":   models.MaxBetAmount.String(),
	})
}

func (h *GameHandler) GetGame(c *gin.Context) {
	gameType := models.GameType(c.Param("type"))

	cfg, ok := h.sync.GetGameConfig(gameType)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Game not found",
			"details": "unknown game type " + string(gameType),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type":        gameType,
		"name":        cfg.Name,
		"description": cfg.Description,
		"icon":        cfg.Icon,
	})
}

func (h *GameHandler) GetBalance(c *gin.Context) {
	balance, err := h.sync.Balance(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to get balance", err)
		return
	}

	c.JSON(http.StatusOK, balance)
}
