// Package health derives state-of-health indicators from cycle-grouped
// battery data: the SoH curve, the fitted degradation trend, the remaining
// useful life projection, and the grade/status classification.
//
// Every function here is a pure function of its inputs. There is no
// incremental state: the trend is refit from the complete curve on every
// call, which stays O(n) at the few-thousand-cycle scales batteries reach.
package health

import (
	"github.com/cellwatch/cellwatch/pkg/normalize"
)

// baselineWindow is how many leading valid cycles compete for the baseline
// capacity. Taking the max over a few cycles guards against one noisy
// initial cycle deflating every later SoH value.
const baselineWindow = 3

// Point is one point of the SoH curve. SoH is a percentage in [0,100],
// ordered by cycle ascending. The curve is not required to be monotonic;
// real cells show short-term capacity recovery.
type Point struct {
	Cycle int     `json:"cycle"`
	SoH   float64 `json:"soh"`
}

// Curve derives the per-cycle SoH curve from cycle aggregates.
//
// Representative capacity is discharge-preferred (see
// normalize.Cycle.RepresentativeCapacity); the baseline is the maximum
// representative capacity among the first baselineWindow valid cycles.
// Cycles without usable capacity contribute no point. An input that yields
// no points at all produces the single synthetic point {1, 100}: absent any
// evidence the cell is assumed healthy rather than failing the analysis.
func Curve(cycles []normalize.Cycle) []Point {
	baseline := baselineCapacity(cycles)

	var points []Point
	for _, c := range cycles {
		capacity, ok := c.RepresentativeCapacity()
		if !ok {
			continue
		}
		soh := 100.0
		if baseline > 0 {
			soh = capacity / baseline * 100
		}
		points = append(points, Point{Cycle: c.Index, SoH: clampPercent(soh)})
	}

	if len(points) == 0 {
		return []Point{{Cycle: 1, SoH: 100}}
	}
	return points
}

func baselineCapacity(cycles []normalize.Cycle) float64 {
	baseline := 0.0
	valid := 0
	for _, c := range cycles {
		capacity, ok := c.RepresentativeCapacity()
		if !ok {
			continue
		}
		if capacity > baseline {
			baseline = capacity
		}
		valid++
		if valid == baselineWindow {
			break
		}
	}
	return baseline
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
