package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"caratdash/api/database"
)

type HealthHandlers struct {
	held *database.HeldSession
}

// NewHealthHandlers reports on held; a nil held session means no health tenant is configured.
func NewHealthHandlers(held *database.HeldSession) *HealthHandlers {
	return &HealthHandlers{held: held}
}

func (h *HealthHandlers) Health(c *gin.Context) {
	if h.held == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": "not monitored"})
		return
	}

	sess, err := h.held.Current()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": "reconnecting"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := sess.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": "connected", "tenant": sess.Tenant()})
}
