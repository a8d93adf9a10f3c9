package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mossy-p/stranger-signaling/internal/matchmaking"
	"github.com/mossy-p/stranger-signaling/internal/middleware"
	"github.com/mossy-p/stranger-signaling/internal/signaling"
	"github.com/pion/webrtc/v4"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Hub            *matchmaking.Hub
	Router         *signaling.Router
	History        HistoryReader
	ICEServers     []webrtc.ICEServer
	AllowedOrigins []string
	JWTSecret      string
	Signaling      SignalingOptions
}

// SetupRouter wires every route onto a new gin engine.
func SetupRouter(d Deps) *gin.Engine {
	router := gin.Default()

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(d.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/stats", GetStats(d.Hub))
		apiGroup.GET("/ice-servers", GetICEServers(d.ICEServers))

		admin := apiGroup.Group("/admin", middleware.JWTAuth(d.JWTSecret))
		admin.GET("/sessions", ListSessions(d.Hub))
		admin.GET("/history", ListHistory(d.History))
	}

	// WebSocket signaling endpoint
	router.GET("/ws", HandleSignaling(d.Router, d.Signaling))

	return router
}
