package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const dateLayout = "2006-01-02"

// GetPredictions godoc
// @Summary      List stored predictions
// @Description  Returns predictions for an exact date or a [from,to] range, best score first
// @Tags         scores
// @Produce      json
// @Param        date       query  string  false  "Exact date (YYYY-MM-DD)"
// @Param        from       query  string  false  "Range start (YYYY-MM-DD)"
// @Param        to         query  string  false  "Range end (YYYY-MM-DD)"
// @Param        min_score  query  int     false  "Minimum quantum score"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/predictions [get]
func (h *Handler) GetPredictions(c *gin.Context) {
	if h.predictions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "prediction store unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-predictions")
	defer span.End()

	minScore := 0
	if raw := c.Query("min_score"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 || v > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_score must be an integer in [0,100]"})
			return
		}
		minScore = v
	}
	span.SetAttributes(attribute.Int("min_score", minScore))

	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		preds, err := h.predictions.ListForDate(ctx, date, minScore)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(preds), "predictions": preds})
		return
	}

	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	preds, err := h.predictions.ListInRange(ctx, from, to, minScore)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(preds), "predictions": preds})
}

// parseRange defaults to the trailing 30 days when bounds are absent.
func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -30)
	var err error
	if toRaw != "" {
		if to, err = time.Parse(dateLayout, toRaw); err != nil {
			return from, to, errInvalidDate("to")
		}
	}
	if fromRaw != "" {
		if from, err = time.Parse(dateLayout, fromRaw); err != nil {
			return from, to, errInvalidDate("from")
		}
	}
	if from.After(to) {
		return from, to, errRangeInverted
	}
	return from, to, nil
}
