package job

import (
	"context"
	"log"
	"time"

	"alpha-hunter/internal/labeling"

	"go.opentelemetry.io/otel/trace"
)

type UniverseLabeler interface {
	LabelUniverse(ctx context.Context, symbols []string) (labeling.UniverseResult, error)
}

// LabelingJob relabels the whole universe once a day, after the daily bars
// have landed.
type LabelingJob struct {
	tracer  trace.Tracer
	labeler UniverseLabeler
	symbols []string
	runHour int
}

func NewLabelingJob(tracer trace.Tracer, labeler UniverseLabeler, symbols []string, runHourUTC int) *LabelingJob {
	if runHourUTC < 0 || runHourUTC > 23 {
		runHourUTC = 1
	}
	return &LabelingJob{tracer: tracer, labeler: labeler, symbols: symbols, runHour: runHourUTC}
}

func (j *LabelingJob) Start(ctx context.Context) {
	if j.labeler == nil || len(j.symbols) == 0 {
		log.Println("Labeling job disabled: no labeler or empty universe")
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

func (j *LabelingJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "labeling-job.run-once")
	defer span.End()

	res, err := j.labeler.LabelUniverse(ctx, j.symbols)
	if err != nil {
		log.Printf("Labeling run error: %v", err)
		return
	}
	log.Printf("Labeling run done: %d symbols, %d labels, %d explosions, %d failed",
		res.Symbols, res.Labeled, res.Explosions, len(res.Failed))
}

func nextRunUTC(now time.Time, hour int) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !run.After(now) {
		run = run.Add(24 * time.Hour)
	}
	return run
}
