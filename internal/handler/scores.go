package handler

import (
	"errors"
	"net/http"
	"strings"

	"alpha-hunter/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type scoreRunRequest struct {
	AssetClass string   `json:"asset_class"`
	Symbols    []string `json:"symbols"`
}

// TriggerScoring godoc
// @Summary      Retrain and score an asset class
// @Description  Refits the scoring pipeline on all labeled rows and scores the given symbols
// @Tags         scores
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      422  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/scores/run [post]
func (h *Handler) TriggerScoring(c *gin.Context) {
	if h.scorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scoring service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-scoring")
	defer span.End()

	var req scoreRunRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	class := domain.AssetClass(strings.ToLower(req.AssetClass))
	if class == "" {
		class = domain.AssetClassEquity
	}
	if class != domain.AssetClassEquity && class != domain.AssetClassCrypto {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown asset class: " + req.AssetClass})
		return
	}
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = h.universes[class]
	}
	span.SetAttributes(attribute.String("asset_class", string(class)), attribute.Int("symbols", len(symbols)))

	trainRes, scoreRes, err := h.scorer.TrainAndScore(ctx, class, symbols)
	var tde *domain.TrainingDataError
	if errors.As(err, &tde) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"training": trainRes,
		"scoring":  scoreRes,
	})
}

// GetLatestPrediction godoc
// @Summary      Latest cached prediction for a symbol
// @Tags         scores
// @Produce      json
// @Param        symbol  path  string  true  "Symbol"
// @Success      200  {object}  domain.Prediction
// @Failure      404  {object}  map[string]string
// @Router       /api/predictions/{symbol}/latest [get]
func (h *Handler) GetLatestPrediction(c *gin.Context) {
	if h.scorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scoring service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest-prediction")
	defer span.End()

	symbol := strings.ToUpper(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	pred := h.scorer.CachedPrediction(ctx, symbol)
	if pred == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached prediction for " + symbol})
		return
	}
	c.JSON(http.StatusOK, pred)
}
