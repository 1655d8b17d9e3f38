package bot

import (
	"strings"
	"testing"
	"time"

	"alpha-hunter/internal/domain"
)

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	StartTelegramBot(nil, nil, 70)
}

func TestFormatTop(t *testing.T) {
	date := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	if got := formatTop(date, nil); got != "No signals for 2026-08-31" {
		t.Errorf("unexpected empty message: %q", got)
	}

	preds := make([]domain.Prediction, 0, 7)
	for i := 0; i < 7; i++ {
		preds = append(preds, domain.Prediction{
			Symbol:          "SYM" + string(rune('A'+i)),
			QuantumScore:    99 - i,
			CalibratedProb:  0.9 - float64(i)*0.05,
			ConvictionLevel: domain.ConvictionHigh,
		})
	}
	got := formatTop(date, preds)
	if !strings.Contains(got, "Top signals for 2026-08-31") {
		t.Errorf("missing header: %q", got)
	}
	if !strings.Contains(got, "1. SYMA  score 99") {
		t.Errorf("missing first entry: %q", got)
	}
	if strings.Contains(got, "SYMF") {
		t.Errorf("expected list capped at %d entries: %q", topLimit, got)
	}
}

func TestFormatPrediction(t *testing.T) {
	got := formatPrediction(domain.Prediction{
		Symbol:          "NVDA",
		Date:            time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		PredictedReturn: 0.62,
		CalibratedProb:  0.81,
		QuantumScore:    81,
		ConvictionLevel: domain.ConvictionHigh,
	})
	for _, want := range []string{"NVDA (2026-08-28)", "Score: 81", "81%", "+62.0%"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
}
