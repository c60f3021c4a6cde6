// Package forecast fits several simple model families to an SoH curve,
// selects the best by fit quality, and projects a horizon of future values
// with decaying confidence and risk tags.
//
// Every family is a closed-form deterministic fit: rerunning on identical
// input yields bit-identical predictions. There is no randomness and no
// learned state anywhere in this package.
package forecast

import (
	"math"

	"github.com/cellwatch/cellwatch/pkg/health"
)

// Kind identifies a model family.
type Kind string

const (
	KindLinear     Kind = "linear"
	KindPolynomial Kind = "polynomial"
	KindExpDecay   Kind = "exp_decay"
	KindTrend      Kind = "trend"
	KindFlat       Kind = "flat" // insufficient-data fallback
)

// Risk tags a single prediction.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Step is one projected point as produced by a model family: the SoH value
// and the family-specific decayed confidence.
type Step struct {
	SoH        float64
	Confidence float64
}

// Model is one forecasting family. Fit must be called before Forecast;
// Forecast(h) returns exactly h steps.
type Model interface {
	Name() Kind
	Fit(points []health.Point) error
	Accuracy() float64
	Forecast(horizon int) []Step
}

// Prediction is one fully-tagged forecast point.
type Prediction struct {
	Cycle        int     `json:"cycle"`
	SoH          float64 `json:"soh"`
	Confidence   float64 `json:"confidence"`
	AnomalyScore float64 `json:"anomalyScore"`
	Risk         Risk    `json:"risk"`
}

// Result is the output of one forecasting run. Each run replaces, never
// merges with, the previous result for the battery.
type Result struct {
	Model       Kind         `json:"model"`
	Accuracy    float64      `json:"accuracy"`
	Predictions []Prediction `json:"predictions"`

	// Derived is false when the insufficient-data fallback produced the
	// result instead of a fitted model.
	Derived bool `json:"derived"`
}

// riskFor applies the shared risk banding.
func riskFor(soh, confidence float64) Risk {
	switch {
	case soh > 85 && confidence > 0.7:
		return RiskLow
	case soh > 75 && confidence > 0.5:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// floorSoH enforces the physical lower bound on projections.
func floorSoH(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// rSquared measures fit quality of predictions against observations on the
// original scale, clamped to [0, 1]. Zero-variance observations score 1
// when the predictions match and 0 otherwise.
func rSquared(points []health.Point, predict func(cycle float64) float64) float64 {
	if len(points) == 0 {
		return 0
	}

	var mean float64
	for _, p := range points {
		mean += p.SoH
	}
	mean /= float64(len(points))

	var ssRes, ssTot float64
	for _, p := range points {
		diff := p.SoH - predict(float64(p.Cycle))
		ssRes += diff * diff
		ssTot += (p.SoH - mean) * (p.SoH - mean)
	}

	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}

	r2 := 1 - ssRes/ssTot
	if r2 < 0 {
		return 0
	}
	if r2 > 1 {
		return 1
	}
	return r2
}

// recentStats returns mean and standard deviation of the trailing window of
// the curve, used for anomaly scoring of predictions.
func recentStats(points []health.Point, window int) (mean, stddev float64) {
	if len(points) == 0 {
		return 0, 0
	}
	if window > len(points) {
		window = len(points)
	}
	tail := points[len(points)-window:]

	for _, p := range tail {
		mean += p.SoH
	}
	mean /= float64(len(tail))

	if len(tail) < 2 {
		return mean, 0
	}
	var variance float64
	for _, p := range tail {
		diff := p.SoH - mean
		variance += diff * diff
	}
	variance /= float64(len(tail) - 1)
	return mean, math.Sqrt(variance)
}
