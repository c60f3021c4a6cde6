package health

// Grade is the coarse A–D classification summarizing current health,
// projected longevity, and accumulated wear.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// Status is the categorical alerting state.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegrading Status = "degrading"
	StatusCritical  Status = "critical"
)

// GradeFor scores a battery on a 100-point scale and bands the total.
//
// SoH contributes up to 40 points, RUL up to 35, and cycle count up to 25 —
// inversely, since fewer cycles mean less accumulated wear. The band edges
// are inclusive on the high side and deliberately exact: downstream test
// suites assert edge behavior.
func GradeFor(soh float64, rul, cycleCount int) Grade {
	points := sohPoints(soh) + rulPoints(rul) + cyclePoints(cycleCount)

	switch {
	case points >= 85:
		return GradeA
	case points >= 70:
		return GradeB
	case points >= 50:
		return GradeC
	default:
		return GradeD
	}
}

func sohPoints(soh float64) int {
	switch {
	case soh >= 95:
		return 40
	case soh >= 90:
		return 35
	case soh >= 85:
		return 30
	case soh >= 80:
		return 20
	default:
		return 10
	}
}

func rulPoints(rul int) int {
	switch {
	case rul >= 500:
		return 35
	case rul >= 300:
		return 30
	case rul >= 200:
		return 25
	case rul >= 100:
		return 15
	default:
		return 5
	}
}

func cyclePoints(count int) int {
	switch {
	case count <= 100:
		return 25
	case count <= 300:
		return 20
	case count <= 500:
		return 15
	case count <= 800:
		return 10
	default:
		return 5
	}
}

// StatusFor classifies the alerting state from current SoH and degradation
// rate (percent lost per cycle).
func StatusFor(soh, degradationRate float64) Status {
	switch {
	case soh >= 90 && degradationRate < 0.1:
		return StatusHealthy
	case soh >= 85 && degradationRate < 0.2:
		return StatusHealthy
	case soh >= 70:
		return StatusDegrading
	default:
		return StatusCritical
	}
}

// Assessment is the full health verdict for one battery. It is always a
// pure function of the latest SoH curve and is never stored as mutable
// state inside this package.
type Assessment struct {
	SoH             float64 `json:"soh"`
	RUL             int     `json:"rul"`
	Grade           Grade   `json:"grade"`
	Status          Status  `json:"status"`
	DegradationRate float64 `json:"degradationRate"`

	// Derived is false when a conservative default was substituted for a
	// computed value (synthetic SoH point or default RUL), so consumers can
	// tell fallback from evidence.
	Derived bool `json:"derived"`
}

// Assess assembles the health assessment from an SoH curve and the cycle
// count the curve was derived from, using the standard end-of-life threshold.
func Assess(points []Point, cycleCount int) Assessment {
	return AssessAt(points, cycleCount, DefaultEOLPercent)
}

// AssessAt is Assess with a caller-chosen end-of-life threshold.
func AssessAt(points []Point, cycleCount int, eolPercent float64) Assessment {
	current := 100.0
	if len(points) > 0 {
		current = points[len(points)-1].SoH
	}

	model := Fit(points)
	rate := 0.0
	if model.SlopePerCycle < 0 {
		rate = model.Rate()
	}

	rul := RUL(points, current, eolPercent, DefaultRUL)

	return Assessment{
		SoH:             current,
		RUL:             rul,
		Grade:           GradeFor(current, rul, cycleCount),
		Status:          StatusFor(current, rate),
		DegradationRate: rate,
		Derived:         len(points) >= minRULPoints,
	}
}
