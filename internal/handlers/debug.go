package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-realtime/internal/events"
	"chat-realtime/internal/middleware"
	"chat-realtime/internal/ws"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, hub *ws.Hub, emitter *events.Emitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/sessions", func(c *gin.Context) {
		users := hub.OnlineUsers()
		c.JSON(http.StatusOK, gin.H{"count": len(users), "user_ids": users})
	})

	router.GET("/debug/event-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event emitter not configured"})
			return
		}
		ctx := events.WithRequestID(c.Request.Context(), middleware.RequestIDFrom(c))
		emitter.Emit(ctx, "debug_test", 0, gin.H{"text": "event test"})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
