package forecast

import (
	"errors"
	"math"

	"github.com/cellwatch/cellwatch/pkg/health"
)

// expConfidenceDampening controls the hyperbolic per-step confidence decay
// of the exponential family.
const expConfidenceDampening = 0.02

// asymptoteMargin is subtracted from the lowest observed SoH to place the
// decay floor. Keeping the floor strictly below every observation keeps the
// log-linearization defined.
const asymptoteMargin = 5.0

// ExpDecayModel fits SoH(t) = A + B·e^(−k·t): exponential decay toward an
// asymptote A. The fit log-linearizes against the floor asymptote and runs
// OLS in log space; accuracy is still scored on the original scale.
type ExpDecayModel struct {
	fitted    bool
	asymptote float64
	amplitude float64
	decayRate float64
	accuracy  float64
	lastCycle int
}

// NewExpDecayModel creates an unfitted exponential-decay model.
func NewExpDecayModel() *ExpDecayModel { return &ExpDecayModel{} }

func (m *ExpDecayModel) Name() Kind { return KindExpDecay }

func (m *ExpDecayModel) Fit(points []health.Point) error {
	if len(points) < 3 {
		return errors.New("expdecay: need at least 3 points")
	}

	low := points[0].SoH
	for _, p := range points {
		if p.SoH < low {
			low = p.SoH
		}
	}
	asymptote := low - asymptoteMargin
	if asymptote < 0 {
		asymptote = 0
	}

	// ln(y − A) = ln B − k·t, an OLS problem in (t, ln(y − A)).
	var sumX, sumY, sumXY, sumX2 float64
	n := 0.0
	for _, p := range points {
		shifted := p.SoH - asymptote
		if shifted <= 0 {
			return errors.New("expdecay: observation at or below asymptote")
		}
		x := float64(p.Cycle)
		y := math.Log(shifted)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
		n++
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return errors.New("expdecay: zero variance in cycle indices")
	}

	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	m.asymptote = asymptote
	m.amplitude = math.Exp(intercept)
	m.decayRate = -slope
	m.lastCycle = points[len(points)-1].Cycle
	m.accuracy = rSquared(points, m.at)
	m.fitted = true
	return nil
}

func (m *ExpDecayModel) at(x float64) float64 {
	return m.asymptote + m.amplitude*math.Exp(-m.decayRate*x)
}

func (m *ExpDecayModel) Accuracy() float64 {
	if !m.fitted {
		return 0
	}
	return m.accuracy
}

func (m *ExpDecayModel) Forecast(horizon int) []Step {
	steps := make([]Step, 0, horizon)
	for i := 1; i <= horizon; i++ {
		steps = append(steps, Step{
			SoH:        floorSoH(m.at(float64(m.lastCycle + i))),
			Confidence: m.accuracy / (1 + expConfidenceDampening*float64(i)),
		})
	}
	return steps
}
