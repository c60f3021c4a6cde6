package forecast

import (
	"math"

	"github.com/cellwatch/cellwatch/pkg/health"
)

// fallbackConfidence is the fixed reduced confidence attached to the flat
// insufficient-data extrapolation.
const fallbackConfidence = 0.5

// anomalyWindow is the trailing-curve window used to z-score predictions.
const anomalyWindow = 10

// Engine fits every model family and projects the horizon with the best
// one. A fresh Engine per run is cheap; the zero cost of construction keeps
// analyses of different batteries fully independent.
type Engine struct {
	models []Model
}

// NewEngine creates an engine with the standard families in evaluation
// order: linear, polynomial, exponential decay, trend heuristic. Selection
// ties break toward the earlier family.
func NewEngine() *Engine {
	return &Engine{
		models: []Model{
			NewLinearModel(),
			NewPolynomialModel(),
			NewExpDecayModel(),
			NewTrendModel(),
		},
	}
}

// Run fits all families on the curve and returns the horizon projection of
// the most accurate one. With fewer than two points no family can fit and
// the flat fallback answers instead: the last known SoH (or 100 for an
// empty curve) extended across the horizon at a fixed confidence of 0.5.
//
// The returned Result replaces any previous one for the battery; results
// are never merged.
func (e *Engine) Run(points []health.Point, horizon int) Result {
	if horizon <= 0 {
		horizon = 1
	}

	if len(points) < 2 {
		return e.flatFallback(points, horizon)
	}

	var best Model
	for _, m := range e.models {
		if err := m.Fit(points); err != nil {
			continue
		}
		// Strict > keeps evaluation order as the tie-breaker.
		if best == nil || m.Accuracy() > best.Accuracy() {
			best = m
		}
	}
	if best == nil {
		return e.flatFallback(points, horizon)
	}

	mean, stddev := recentStats(points, anomalyWindow)
	lastCycle := points[len(points)-1].Cycle

	steps := best.Forecast(horizon)
	predictions := make([]Prediction, 0, len(steps))
	for i, s := range steps {
		predictions = append(predictions, Prediction{
			Cycle:        lastCycle + i + 1,
			SoH:          s.SoH,
			Confidence:   s.Confidence,
			AnomalyScore: zScore(s.SoH, mean, stddev),
			Risk:         riskFor(s.SoH, s.Confidence),
		})
	}

	return Result{
		Model:       best.Name(),
		Accuracy:    best.Accuracy(),
		Predictions: predictions,
		Derived:     true,
	}
}

func (e *Engine) flatFallback(points []health.Point, horizon int) Result {
	last := 100.0
	lastCycle := 0
	if len(points) > 0 {
		last = points[len(points)-1].SoH
		lastCycle = points[len(points)-1].Cycle
	}

	predictions := make([]Prediction, 0, horizon)
	for i := 1; i <= horizon; i++ {
		predictions = append(predictions, Prediction{
			Cycle:      lastCycle + i,
			SoH:        floorSoH(last),
			Confidence: fallbackConfidence,
			Risk:       riskFor(last, fallbackConfidence),
		})
	}

	return Result{
		Model:       KindFlat,
		Accuracy:    fallbackConfidence,
		Predictions: predictions,
		Derived:     false,
	}
}

// zScore measures how far a prediction sits from the recent observed mean.
// A zero spread divides by one instead: the score then reads as the raw
// distance, which still orders predictions usefully.
func zScore(value, mean, stddev float64) float64 {
	if stddev == 0 {
		stddev = 1
	}
	return math.Abs(value-mean) / stddev
}
