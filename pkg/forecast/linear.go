package forecast

import (
	"errors"
	"math"

	"github.com/cellwatch/cellwatch/pkg/health"
)

// linearConfidenceDecay is the per-step multiplicative confidence decay of
// the linear family.
const linearConfidenceDecay = 0.995

// LinearModel projects the ordinary-least-squares line through the curve.
type LinearModel struct {
	fitted    bool
	model     health.Model
	lastCycle int
}

// NewLinearModel creates an unfitted linear model.
func NewLinearModel() *LinearModel { return &LinearModel{} }

func (m *LinearModel) Name() Kind { return KindLinear }

// Fit runs the OLS fit over the full curve. Needs at least two points.
func (m *LinearModel) Fit(points []health.Point) error {
	if len(points) < 2 {
		return errors.New("linear: need at least 2 points")
	}
	m.model = health.Fit(points)
	m.lastCycle = points[len(points)-1].Cycle
	m.fitted = true
	return nil
}

// Accuracy is the coefficient of determination of the fit.
func (m *LinearModel) Accuracy() float64 {
	if !m.fitted {
		return 0
	}
	return m.model.RSquared
}

func (m *LinearModel) Forecast(horizon int) []Step {
	steps := make([]Step, 0, horizon)
	for i := 1; i <= horizon; i++ {
		cycle := float64(m.lastCycle + i)
		soh := m.model.InterceptPercent + m.model.SlopePerCycle*cycle
		steps = append(steps, Step{
			SoH:        floorSoH(soh),
			Confidence: m.Accuracy() * math.Pow(linearConfidenceDecay, float64(i)),
		})
	}
	return steps
}
