package labeling

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel/attribute"
)

// UniverseResult summarizes a batch labeling run across many symbols.
type UniverseResult struct {
	Symbols    int                  `json:"symbols"`
	Labeled    int                  `json:"labeled"`
	Explosions int                  `json:"explosions"`
	Failed     []string             `json:"failed,omitempty"`
	PerSymbol  []FixedHorizonResult `json:"per_symbol,omitempty"`
}

// LabelUniverse runs fixed-horizon and triple-barrier labeling for each
// symbol over a bounded worker pool. A symbol that fails is recorded and
// skipped; it never aborts the batch.
func (s *Service) LabelUniverse(ctx context.Context, symbols []string) (UniverseResult, error) {
	ctx, span := s.tracer.Start(ctx, "labeler.label-universe")
	defer span.End()
	span.SetAttributes(attribute.Int("symbols", len(symbols)))

	type outcome struct {
		fh  FixedHorizonResult
		sym string
		err error
	}

	jobs := make(chan string)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				fh, err := s.LabelFixedHorizon(ctx, sym, 0, nil)
				if err == nil {
					_, err = s.LabelTripleBarrier(ctx, sym, 0, 0, 0)
				}
				results <- outcome{fh: fh, sym: sym, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, sym := range symbols {
			select {
			case jobs <- sym:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	res := UniverseResult{Symbols: len(symbols)}
	for out := range results {
		if out.err != nil {
			log.Printf("Warning: labeling %s failed: %v", out.sym, out.err)
			res.Failed = append(res.Failed, out.sym)
			continue
		}
		res.Labeled += out.fh.Labeled
		res.Explosions += out.fh.Explosions
		res.PerSymbol = append(res.PerSymbol, out.fh)
	}
	return res, ctx.Err()
}
