package health

import "math"

// DefaultEOLPercent is the end-of-life threshold: the SoH level at which a
// cell is conventionally considered worn out.
const DefaultEOLPercent = 80.0

// DefaultRUL is the remaining-cycle count reported when the curve is too
// short to fit or shows no downward trend. It encodes "no near-term
// end-of-life predicted", not a literal forecast to that cycle.
const DefaultRUL = 1000

// minRULPoints is the curve length below which RUL falls back to DefaultRUL.
const minRULPoints = 3

// Model is the fitted linear degradation trend of an SoH curve.
// It is recomputed fresh from the complete curve on every Fit call; there is
// no online update.
type Model struct {
	SlopePerCycle    float64 `json:"slopePerCycle"`
	InterceptPercent float64 `json:"interceptPercent"`
	RSquared         float64 `json:"rSquared"`
}

// Rate is the degradation rate in SoH percent lost per cycle, always >= 0.
func (m Model) Rate() float64 {
	return math.Abs(m.SlopePerCycle)
}

// Fit runs an unweighted ordinary-least-squares fit of SoH on cycle index
// over the full curve. Fewer than two points, or a curve whose cycle indices
// have zero variance, yields a flat model (slope 0, intercept = mean) rather
// than an error: this feeds user-facing health indicators, and an
// approximate result beats a hard failure.
func Fit(points []Point) Model {
	n := float64(len(points))
	if len(points) == 0 {
		return Model{InterceptPercent: 100}
	}

	var sumX, sumY, sumXY, sumX2 float64
	for _, p := range points {
		x := float64(p.Cycle)
		sumX += x
		sumY += p.SoH
		sumXY += x * p.SoH
		sumX2 += x * x
	}

	mean := sumY / n
	denom := n*sumX2 - sumX*sumX
	if len(points) < 2 || denom == 0 {
		return Model{InterceptPercent: mean}
	}

	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	var ssRes, ssTot float64
	for _, p := range points {
		pred := intercept + slope*float64(p.Cycle)
		ssRes += (p.SoH - pred) * (p.SoH - pred)
		ssTot += (p.SoH - mean) * (p.SoH - mean)
	}
	r2 := 1.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	if r2 < 0 {
		r2 = 0
	}

	return Model{SlopePerCycle: slope, InterceptPercent: intercept, RSquared: r2}
}

// RUL projects the remaining cycles until currentSoH crosses eolPercent
// along the fitted trend.
//
// With fewer than minRULPoints history points, or when the trend is flat or
// improving (slope >= 0), RUL returns defaultRUL: an explicit
// insufficient-data policy, not an error.
func RUL(points []Point, currentSoH, eolPercent float64, defaultRUL int) int {
	if len(points) < minRULPoints {
		return defaultRUL
	}

	model := Fit(points)
	if model.SlopePerCycle >= 0 {
		return defaultRUL
	}

	rate := model.Rate()
	remaining := int(math.Round((currentSoH - eolPercent) / rate))
	if remaining < 0 {
		return 0
	}
	return remaining
}
