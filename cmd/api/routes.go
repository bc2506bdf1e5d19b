package main

import (
	"github.com/gin-gonic/gin"

	"arcade-wager-backend/internal/handlers"
	"arcade-wager-backend/internal/middleware"
	"arcade-wager-backend/internal/services"
)

type routerDeps struct {
	Synchronizer *services.Synchronizer
	Redis        *services.RedisService
	JWT          *services.JWTService
	WebSocket    *handlers.WebSocketHandler
	APIKey       string
	StaticDir    string
}

func newRouter(deps routerDeps) *gin.Engine {
	userHandler := handlers.NewUserHandler(deps.Redis, deps.JWT, deps.APIKey, deps.Synchronizer.Address())
	betHandler := handlers.NewBetHandler(deps.Synchronizer, deps.Redis)
	gameHandler := handlers.NewGameHandler(deps.Synchronizer)
	staticHandler := handlers.NewStaticHandler(deps.StaticDir)

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/token", userHandler.CreateSession)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(deps.JWT, deps.Redis))
	protected.Use(middleware.RateLimitMiddleware(deps.Redis))
	{
		protected.GET("/me", userHandler.GetCurrentSession)
		protected.POST("/logout", userHandler.Logout)

		protected.GET("/ws", deps.WebSocket.HandleWebSocket)

		protected.GET("/balance", gameHandler.GetBalance)
		protected.GET("/events/recent", betHandler.RecentEvents)

		games := protected.Group("/games")
		{
			games.GET("", gameHandler.ListGames)
			games.GET("/:type", gameHandler.GetGame)
		}

		bets := protected.Group("/bets")
		{
			bets.POST("", betHandler.CreateBet)
			bets.GET("/active", betHandler.ListActive)
			bets.POST("/active/reload", betHandler.ReloadActive)
			bets.GET("/mine", betHandler.ListMine)
			bets.POST("/mine/reload", betHandler.ReloadMine)
			bets.GET("/history", betHandler.History)
			bets.GET("/:id", betHandler.GetBet)
			bets.POST("/:id/accept", betHandler.AcceptBet)
			bets.POST("/:id/cancel", betHandler.CancelBet)
			bets.POST("/:id/boost", betHandler.ActivateBoost)
		}
	}

	router.NoRoute(staticHandler.ServeFile)

	return router
}
