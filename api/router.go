package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AbdoElsaed/ufd/api/handlers"
	"github.com/AbdoElsaed/ufd/api/middleware"
	"github.com/AbdoElsaed/ufd/internal/app"
	"github.com/AbdoElsaed/ufd/internal/domain"
)

// SetupRouter sets up the background daemon's HTTP surface: the channel
// endpoint, health checks, and the history API.
func SetupRouter(
	msgRouter *app.MessageRouter,
	history domain.HistoryRepository,
	log *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(msgRouter)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	channelHandler := handlers.NewChannelHandler(msgRouter, log)
	router.GET("/ws", channelHandler.HandleChannel)

	v1 := router.Group("/api/v1")
	{
		historyHandler := handlers.NewHistoryHandler(history, log)
		v1.GET("/history", historyHandler.List)
		v1.GET("/history/stats", historyHandler.Stats)
	}

	return router
}
