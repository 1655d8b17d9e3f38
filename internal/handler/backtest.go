package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"alpha-hunter/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

const (
	backtestReportKey = "backtest:last_report"
	backtestReportTTL = 7 * 24 * time.Hour
)

var errRangeInverted = errors.New("from must not be after to")

func errInvalidDate(field string) error {
	return fmt.Errorf("%s must be YYYY-MM-DD", field)
}

type backtestRunRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// RunBacktest godoc
// @Summary      Replay predictions as paper trades
// @Description  Simulates all predictions in [from,to] and returns the trades plus the performance report
// @Tags         backtest
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/backtest/run [post]
func (h *Handler) RunBacktest(c *gin.Context) {
	if h.backtester == nil || h.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-backtest")
	defer span.End()

	var req backtestRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidDate("from").Error()})
		return
	}
	to, err := time.Parse(dateLayout, req.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidDate("to").Error()})
		return
	}
	if from.After(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errRangeInverted.Error()})
		return
	}
	span.SetAttributes(attribute.String("from", req.From), attribute.String("to", req.To))

	res, err := h.backtester.Run(ctx, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	report := h.analyzer.Analyze(ctx, res.Trades, res.InitialCapital)

	if h.redis != nil {
		if data, err := json.Marshal(report); err == nil {
			if err := h.redis.Set(ctx, backtestReportKey, data, backtestReportTTL).Err(); err != nil {
				log.Printf("Warning: failed to cache backtest report: %v", err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"result": res,
		"report": report,
	})
}

// GetBacktestReport godoc
// @Summary      Last backtest performance report
// @Description  Returns the most recent cached report from a backtest run
// @Tags         backtest
// @Produce      json
// @Success      200  {object}  domain.PerformanceReport
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/backtest/report [get]
func (h *Handler) GetBacktestReport(c *gin.Context) {
	if h.redis == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report cache unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-backtest-report")
	defer span.End()

	data, err := h.redis.Get(ctx, backtestReportKey).Bytes()
	if err == redis.Nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no backtest report cached"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var report domain.PerformanceReport
	if err := json.Unmarshal(data, &report); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
