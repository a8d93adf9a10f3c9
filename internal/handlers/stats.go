package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/stranger-signaling/internal/models"
	"github.com/pion/webrtc/v4"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// StatsSource reports lock-free online counters
type StatsSource interface {
	Stats() models.Stats
}

// SessionLister lists live sessions
type SessionLister interface {
	Sessions(ctx context.Context) ([]models.SessionSnapshot, error)
}

// HistoryReader reads finished sessions
type HistoryReader interface {
	RecentSessions(ctx context.Context, limit int) ([]models.SessionRecord, error)
}

// GetStats returns the online, searching and session counts (public)
func GetStats(source StatsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, source.Stats())
	}
}

// GetICEServers returns the STUN/TURN servers browsers should use (public)
func GetICEServers(servers []webrtc.ICEServer) gin.HandlerFunc {
	if servers == nil {
		servers = []webrtc.ICEServer{}
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": servers})
	}
}

// ListSessions returns live sessions with their status and duration (operator only)
func ListSessions(lister SessionLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := lister.Sessions(c.Request.Context())
		if err != nil {
			slog.Error("Failed to list sessions", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Sessions unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}

// ListHistory returns recently finished sessions (operator only)
func ListHistory(reader HistoryReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if reader == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "Session history is not configured"})
			return
		}

		limit := defaultHistoryLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxHistoryLimit {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
				return
			}
			limit = n
		}

		records, err := reader.RecentSessions(c.Request.Context(), limit)
		if err != nil {
			slog.Error("Failed to read session history", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read session history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": records})
	}
}
