package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Reports service health and which subsystems are wired
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"subsystems": gin.H{
			"labeling": h.labeler != nil,
			"scoring":  h.scorer != nil,
			"backtest": h.backtester != nil,
		},
	})
}
