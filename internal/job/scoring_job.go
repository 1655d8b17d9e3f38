package job

import (
	"context"
	"errors"
	"log"
	"time"

	"alpha-hunter/internal/domain"
	"alpha-hunter/internal/scoring"

	"go.opentelemetry.io/otel/trace"
)

type ScoreRunner interface {
	TrainAndScore(ctx context.Context, class domain.AssetClass, symbols []string) (scoring.TrainResult, scoring.ScoreResult, error)
}

// ScoringJob refits and rescores each asset class once a day, an hour or
// two after labeling so fresh labels are in the training set.
type ScoringJob struct {
	tracer    trace.Tracer
	runner    ScoreRunner
	universes map[domain.AssetClass][]string
	runHour   int
}

func NewScoringJob(tracer trace.Tracer, runner ScoreRunner, universes map[domain.AssetClass][]string, runHourUTC int) *ScoringJob {
	if runHourUTC < 0 || runHourUTC > 23 {
		runHourUTC = 3
	}
	return &ScoringJob{tracer: tracer, runner: runner, universes: universes, runHour: runHourUTC}
}

func (j *ScoringJob) Start(ctx context.Context) {
	if j.runner == nil || len(j.universes) == 0 {
		log.Println("Scoring job disabled: no runner or empty universes")
		<-ctx.Done()
		return
	}
	for {
		next := nextRunUTC(time.Now().UTC(), j.runHour)
		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.runOnce(ctx)
		}
	}
}

func (j *ScoringJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "scoring-job.run-once")
	defer span.End()

	for class, symbols := range j.universes {
		if len(symbols) == 0 {
			continue
		}
		trainRes, scoreRes, err := j.runner.TrainAndScore(ctx, class, symbols)
		var tde *domain.TrainingDataError
		if errors.As(err, &tde) {
			log.Printf("Scoring run for %s skipped: %v", class, err)
			continue
		}
		if err != nil {
			log.Printf("Scoring run error for %s: %v", class, err)
			continue
		}
		log.Printf("Scoring run done for %s: trained on %d rows (alpha %.2f), scored %d, skipped %d, anomalous %d",
			class, trainRes.Samples, trainRes.Alpha, scoreRes.Scored, scoreRes.Skipped, scoreRes.Anomalous)
	}
}
