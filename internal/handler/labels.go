package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type labelRunRequest struct {
	Symbols []string `json:"symbols"`
}

// TriggerLabeling godoc
// @Summary      Run labeling for a set of symbols
// @Description  Relabels the given symbols (or the configured universe) and returns per-symbol counts
// @Tags         labels
// @Accept       json
// @Produce      json
// @Success      200  {object}  labeling.UniverseResult
// @Failure      503  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/labels/run [post]
func (h *Handler) TriggerLabeling(c *gin.Context) {
	if h.labeler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "labeling service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-labeling")
	defer span.End()

	var req labelRunRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = h.allSymbols()
	}
	span.SetAttributes(attribute.Int("symbols", len(symbols)))

	res, err := h.labeler.LabelUniverse(ctx, symbols)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetExplosionStats godoc
// @Summary      Explosion statistics per symbol
// @Description  Aggregates explosive-day counts, mean and max forward returns, and mean lead time
// @Tags         labels
// @Produce      json
// @Param        symbols  query  string  false  "Comma-separated symbol filter"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/labels/stats [get]
func (h *Handler) GetExplosionStats(c *gin.Context) {
	if h.labeler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "labeling service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-explosion-stats")
	defer span.End()

	var symbols []string
	if raw := c.Query("symbols"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(strings.ToUpper(s)); s != "" {
				symbols = append(symbols, s)
			}
		}
	}

	stats, err := h.labeler.ExplosionStats(ctx, symbols)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(stats), "stats": stats})
}

// GetLabels godoc
// @Summary      Label history for a symbol
// @Tags         labels
// @Produce      json
// @Param        symbol  query  string  true  "Symbol"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/labels [get]
func (h *Handler) GetLabels(c *gin.Context) {
	if h.labeler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "labeling service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-labels")
	defer span.End()

	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	labels, err := h.labeler.Labels(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "count": len(labels), "labels": labels})
}

func (h *Handler) allSymbols() []string {
	var out []string
	for _, symbols := range h.universes {
		out = append(out, symbols...)
	}
	return out
}
