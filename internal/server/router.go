package server

import (
	"github.com/gin-gonic/gin"

	logger "github.com/Gopher0727/TempVoice/middleware/log"

	"github.com/Gopher0727/TempVoice/internal/ws"
)

// NewRouter assembles the HTTP surface: the public status endpoints, the
// authenticated intent API and the websocket event stream.
func NewRouter(
	handler *Handler,
	mw *MiddlewareManager,
	hub *ws.Hub,
	log *logger.Logger,
	mode string,
) *gin.Engine {
	gin.SetMode(mode)
	r := gin.New()
	r.Use(mw.Recovery(), mw.Logger())

	// Public routes
	r.GET("/", handler.Root)
	r.GET("/api/info", handler.Info)

	// Protected routes
	protected := r.Group("/api/v1")
	protected.Use(mw.JWTAuth(), mw.RateLimit())
	{
		protected.GET("/status", handler.GuildStatus)
		protected.POST("/intents", handler.DispatchIntent)
		protected.GET("/candidates/:kind", handler.Candidates)
	}

	r.GET("/ws", mw.JWTAuth(), func(c *gin.Context) {
		ws.ServeWs(hub, log, c)
	})

	return r
}
