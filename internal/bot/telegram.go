package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"alpha-hunter/internal/domain"

	tele "gopkg.in/telebot.v3"
)

const topLimit = 5

// PredictionReader is the slice of the prediction store the bot needs.
type PredictionReader interface {
	ListForDate(ctx context.Context, date time.Time, minScore int) ([]domain.Prediction, error)
}

// ScoreReader exposes the scoring service's prediction cache.
type ScoreReader interface {
	CachedPrediction(ctx context.Context, symbol string) *domain.Prediction
}

func StartTelegramBot(predictions PredictionReader, scores ScoreReader, minScore int) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/top", func(c tele.Context) error {
		if predictions == nil {
			return c.Send("Predictions are unavailable")
		}
		today := time.Now().UTC().Truncate(24 * time.Hour)
		preds, err := predictions.ListForDate(context.Background(), today, minScore)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching predictions: %v", err))
		}
		return c.Send(formatTop(today, preds))
	})

	b.Handle("/score", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /score NVDA")
		}
		if scores == nil {
			return c.Send("Scoring is unavailable")
		}
		symbol := strings.ToUpper(args[0])
		p := scores.CachedPrediction(context.Background(), symbol)
		if p == nil {
			return c.Send(fmt.Sprintf("No recent score for %s", symbol))
		}
		return c.Send(formatPrediction(*p))
	})

	log.Println("Telegram bot started")
	go b.Start()
}

func formatTop(date time.Time, preds []domain.Prediction) string {
	if len(preds) == 0 {
		return fmt.Sprintf("No signals for %s", date.Format("2006-01-02"))
	}
	if len(preds) > topLimit {
		preds = preds[:topLimit]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Top signals for %s\n", date.Format("2006-01-02"))
	for i, p := range preds {
		fmt.Fprintf(&sb, "%d. %s  score %d  prob %.0f%%  %s\n",
			i+1, p.Symbol, p.QuantumScore, p.CalibratedProb*100, p.ConvictionLevel)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatPrediction(p domain.Prediction) string {
	return fmt.Sprintf(
		"%s (%s)\nScore: %d\nExplosion prob: %.0f%%\nPredicted return: %+.1f%%\nConviction: %s",
		p.Symbol, p.Date.Format("2006-01-02"),
		p.QuantumScore, p.CalibratedProb*100, p.PredictedReturn*100, p.ConvictionLevel,
	)
}
