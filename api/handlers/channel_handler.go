package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AbdoElsaed/ufd/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the daemon binds to localhost
	},
}

// ChannelHandler upgrades HTTP requests into channels served by the message
// router.
type ChannelHandler struct {
	router *app.MessageRouter
	logger *zap.Logger
}

// NewChannelHandler creates a new channel handler
func NewChannelHandler(router *app.MessageRouter, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{router: router, logger: logger}
}

// HandleChannel handles GET /ws. The client names its channel via the name
// query parameter; unnamed connections get a generated fallback so the
// registry stays collision-free.
func (h *ChannelHandler) HandleChannel(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		name = fmt.Sprintf("ufd_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade channel connection", zap.Error(err))
		return
	}

	// Serve blocks until the channel closes and handles registry cleanup.
	h.router.Serve(name, conn)
}
