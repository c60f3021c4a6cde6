package forecast

import (
	"errors"
	"math"

	"github.com/cellwatch/cellwatch/pkg/health"
)

const (
	trendWindow          = 10
	trendConfidenceDecay = 0.98
)

// TrendModel is a closed-form trend-plus-volatility extrapolator over a
// short recent window. Slope comes from an OLS fit of the trailing window,
// momentum from the slope difference between the window's halves, and the
// window's volatility discounts the accuracy. Despite the forward-looking
// role it is a fixed formula: nothing is trained and nothing is random.
type TrendModel struct {
	fitted    bool
	last      float64
	slope     float64
	momentum  float64
	accuracy  float64
	lastCycle int
}

// NewTrendModel creates an unfitted trend extrapolator.
func NewTrendModel() *TrendModel { return &TrendModel{} }

func (m *TrendModel) Name() Kind { return KindTrend }

func (m *TrendModel) Fit(points []health.Point) error {
	if len(points) < 2 {
		return errors.New("trend: need at least 2 points")
	}

	window := points
	if len(window) > trendWindow {
		window = window[len(window)-trendWindow:]
	}

	m.slope = windowSlope(window)
	m.momentum = windowMomentum(window)
	m.last = points[len(points)-1].SoH
	m.lastCycle = points[len(points)-1].Cycle

	mean, stddev := recentStats(points, trendWindow)
	// Accuracy: 1 minus the window's coefficient of variation. A noisy
	// recent window means the extrapolation deserves little trust.
	cv := 0.0
	if mean > 0 {
		cv = stddev / mean
	}
	m.accuracy = 1 - cv
	if m.accuracy < 0 {
		m.accuracy = 0
	}
	m.fitted = true
	return nil
}

func (m *TrendModel) Accuracy() float64 {
	if !m.fitted {
		return 0
	}
	return m.accuracy
}

// Forecast extrapolates quadratically: slope carries the window trend
// forward and half the momentum bends it, the same shape the window's own
// halves showed.
func (m *TrendModel) Forecast(horizon int) []Step {
	steps := make([]Step, 0, horizon)
	for i := 1; i <= horizon; i++ {
		t := float64(i)
		soh := m.last + m.slope*t + 0.5*m.momentum*t*t
		steps = append(steps, Step{
			SoH:        floorSoH(soh),
			Confidence: m.accuracy * math.Pow(trendConfidenceDecay, t),
		})
	}
	return steps
}

// windowSlope is the OLS slope of SoH per cycle over the window, using the
// window positions as the x axis so gaps in cycle numbering do not inflate
// the trend.
func windowSlope(window []health.Point) float64 {
	if len(window) < 2 {
		return 0
	}
	n := float64(len(window))
	var sumX, sumY, sumXY, sumX2 float64
	for i, p := range window {
		x := float64(i)
		sumX += x
		sumY += p.SoH
		sumXY += x * p.SoH
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// windowMomentum approximates the second derivative as the slope change
// between the older and newer half of the window.
func windowMomentum(window []health.Point) float64 {
	if len(window) < 6 {
		return 0
	}
	mid := len(window) / 2
	return windowSlope(window[mid:]) - windowSlope(window[:mid])
}
