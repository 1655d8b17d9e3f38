package handler

import (
	"net/http"
	"strings"

	"alpha-hunter/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type ingestBarsRequest struct {
	Bars []domain.PriceBar `json:"bars" binding:"required"`
}

// IngestBars godoc
// @Summary      Upsert daily price bars
// @Description  Accepts already-fetched OHLCV bars from an upstream collector
// @Tags         ingest
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/prices [post]
func (h *Handler) IngestBars(c *gin.Context) {
	if h.bars == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price store unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.ingest-bars")
	defer span.End()

	var req ingestBarsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i := range req.Bars {
		b := &req.Bars[i]
		b.Symbol = strings.ToUpper(strings.TrimSpace(b.Symbol))
		if b.Symbol == "" || b.Date.IsZero() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "every bar needs a symbol and a date"})
			return
		}
		if b.AssetClass != "" && !b.AssetClass.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown asset class: " + string(b.AssetClass)})
			return
		}
	}
	span.SetAttributes(attribute.Int("bars", len(req.Bars)))

	if err := h.bars.UpsertBars(ctx, req.Bars); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "upserted": len(req.Bars)})
}

// IngestFeatures godoc
// @Summary      Upsert a feature vector
// @Description  Accepts externally computed indicator values for a symbol/date
// @Tags         ingest
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/features [post]
func (h *Handler) IngestFeatures(c *gin.Context) {
	if h.features == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feature store unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.ingest-features")
	defer span.End()

	var fv domain.FeatureVector
	if err := c.ShouldBindJSON(&fv); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fv.Symbol = strings.ToUpper(strings.TrimSpace(fv.Symbol))
	if fv.Symbol == "" || fv.Date.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and date are required"})
		return
	}
	span.SetAttributes(attribute.String("symbol", fv.Symbol))

	if err := h.features.UpsertFeatureVector(ctx, fv); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
