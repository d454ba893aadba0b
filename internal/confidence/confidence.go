// Package confidence combines per-signal confidences into one decision.
package confidence

import (
	"errors"
	"fmt"
	"math"

	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

// Weights are the relative contributions of each signal.
type Weights struct {
	NER       float64 `json:"ner"`
	Intent    float64 `json:"intent"`
	Sentiment float64 `json:"sentiment"`
}

// DefaultWeights returns 0.4/0.4/0.2.
func DefaultWeights() Weights {
	return Weights{NER: 0.4, Intent: 0.4, Sentiment: 0.2}
}

// Decision is the aggregate outcome.
type Decision struct {
	FinalConfidence float64 `json:"final_confidence"`
	Valid           bool    `json:"valid"`
}

// Aggregator computes a weighted mean and applies the validity threshold.
type Aggregator struct {
	weights   Weights
	sum       float64
	threshold float64
}

// New validates w and threshold.
func New(w Weights, threshold float64) (*Aggregator, error) {
	var errs []error
	for name, v := range map[string]float64{"ner": w.NER, "intent": w.Intent, "sentiment": w.Sentiment} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("weight %s must be a non-negative number, got %v", name, v))
		}
	}
	sum := w.NER + w.Intent + w.Sentiment
	if len(errs) == 0 && sum <= 0 {
		errs = append(errs, errors.New("weights must sum to a positive value"))
	}
	if !(threshold > 0 && threshold <= 1) {
		errs = append(errs, fmt.Errorf("threshold must be in (0,1], got %v", threshold))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Aggregator{weights: w, sum: sum, threshold: threshold}, nil
}

// Threshold returns the validity threshold.
func (a *Aggregator) Threshold() float64 { return a.threshold }

// Weights returns the configured weights.
func (a *Aggregator) Weights() Weights { return a.weights }

// Aggregate combines c. Components are clamped to [0,1] with NaN read as 0.
// The decision is valid only when the final score reaches the threshold
// and the intent resolved.
func (a *Aggregator) Aggregate(c task.ComponentConfidences, intentResolved bool) Decision {
	final := (a.weights.NER*Clamp(c.NER) +
		a.weights.Intent*Clamp(c.Intent) +
		a.weights.Sentiment*Clamp(c.Sentiment)) / a.sum
	final = Clamp(final)
	return Decision{
		FinalConfidence: final,
		Valid:           final >= a.threshold && intentResolved,
	}
}

// Clamp bounds v to [0,1]; NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
