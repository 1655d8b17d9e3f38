package domain

import (
	"errors"
	"fmt"
)

// ErrInsufficientData means a symbol has too little price history to label
// or train on. Batch callers log it and move on.
var ErrInsufficientData = errors.New("insufficient price history")

// ErrMissingPrice means no usable price exists for a symbol on a required
// date. Entries are skipped and exits deferred, never forced.
var ErrMissingPrice = errors.New("no price available")

// ErrModelNotTrained means scoring was requested before a model was fit
// for the asset class.
var ErrModelNotTrained = errors.New("model not trained")

// TrainingDataError reports a training set below the configured minimum.
// The caller receives no model rather than a partial one.
type TrainingDataError struct {
	Got  int
	Need int
}

func (e *TrainingDataError) Error() string {
	return fmt.Sprintf("not enough training samples: got %d need >= %d", e.Got, e.Need)
}
