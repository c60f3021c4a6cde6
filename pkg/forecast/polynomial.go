package forecast

import (
	"errors"
	"math"

	"github.com/cellwatch/cellwatch/pkg/health"
)

const polynomialConfidenceDecay = 0.99

// PolynomialModel fits a degree-2 curve by genuine least squares: the
// normal equations are assembled from the data and solved directly. The
// curvature term captures accelerating capacity fade that a straight line
// underestimates.
type PolynomialModel struct {
	fitted    bool
	coeffs    [3]float64 // a0 + a1*x + a2*x²
	accuracy  float64
	lastCycle int
}

// NewPolynomialModel creates an unfitted degree-2 model.
func NewPolynomialModel() *PolynomialModel { return &PolynomialModel{} }

func (m *PolynomialModel) Name() Kind { return KindPolynomial }

// Fit solves the least-squares normal equations for the quadratic
// coefficients. Needs at least three points; a singular system (e.g.
// repeated cycle indices) is reported as an error rather than guessed at.
func (m *PolynomialModel) Fit(points []health.Point) error {
	if len(points) < 3 {
		return errors.New("polynomial: need at least 3 points")
	}

	// Normal equations for y = a0 + a1*x + a2*x²:
	// sums of x^0..x^4 on the left, sums of y·x^0..x² on the right.
	var s [5]float64
	var b [3]float64
	for _, p := range points {
		x := float64(p.Cycle)
		xp := 1.0
		for i := 0; i < 5; i++ {
			s[i] += xp
			if i < 3 {
				b[i] += p.SoH * xp
			}
			xp *= x
		}
	}

	a := [3][4]float64{
		{s[0], s[1], s[2], b[0]},
		{s[1], s[2], s[3], b[1]},
		{s[2], s[3], s[4], b[2]},
	}

	coeffs, err := solve3(a)
	if err != nil {
		return err
	}

	m.coeffs = coeffs
	m.lastCycle = points[len(points)-1].Cycle
	m.accuracy = rSquared(points, m.at)
	m.fitted = true
	return nil
}

func (m *PolynomialModel) at(x float64) float64 {
	return m.coeffs[0] + m.coeffs[1]*x + m.coeffs[2]*x*x
}

func (m *PolynomialModel) Accuracy() float64 {
	if !m.fitted {
		return 0
	}
	return m.accuracy
}

func (m *PolynomialModel) Forecast(horizon int) []Step {
	steps := make([]Step, 0, horizon)
	for i := 1; i <= horizon; i++ {
		steps = append(steps, Step{
			SoH:        floorSoH(m.at(float64(m.lastCycle + i))),
			Confidence: m.accuracy * math.Pow(polynomialConfidenceDecay, float64(i)),
		})
	}
	return steps
}

// solve3 solves a 3x3 linear system given as an augmented matrix, using
// Gaussian elimination with partial pivoting.
func solve3(a [3][4]float64) ([3]float64, error) {
	for col := 0; col < 3; col++ {
		pivot := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [3]float64{}, errors.New("polynomial: singular normal equations")
		}
		a[col], a[pivot] = a[pivot], a[col]

		for row := col + 1; row < 3; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < 4; k++ {
				a[row][k] -= factor * a[col][k]
			}
		}
	}

	var x [3]float64
	for row := 2; row >= 0; row-- {
		sum := a[row][3]
		for k := row + 1; k < 3; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}
