package normalize

// Cycle aggregates the samples of one charge/discharge repetition.
//
// Index starts at 1 and is strictly increasing in processing order. A cycle
// is only emitted when it received at least one valid sample.
type Cycle struct {
	Index                int
	MaxChargeCapacity    float64
	MaxDischargeCapacity float64
	AvgChargeVoltage     float64
	AvgDischargeVoltage  float64
	MinVoltage           float64
	AvgVoltage           float64
	MinTemperature       float64
	MaxTemperature       float64
	HasTemperature       bool
	Samples              int
}

// GroupCycles partitions samples into cycles.
//
// When the dataset carried an explicit cycle column (binding bound
// QuantityCycle) the explicit indices group the samples; runs of samples
// sharing an index form one cycle, re-numbered 1..n in first-seen order so
// downstream indices are dense and strictly increasing.
//
// Without a cycle column, grouping is positional: a new cycle starts when a
// charge sample follows a discharge one (the discharge→charge transition
// closes the previous repetition). A dataset that never transitions still
// yields a single cycle.
func GroupCycles(samples []RawSample, binding Binding) []Cycle {
	if len(samples) == 0 {
		return nil
	}

	var groups [][]RawSample
	if binding.Bound(QuantityCycle) {
		groups = groupByExplicitIndex(samples)
	} else {
		groups = groupByPhaseTransitions(samples)
	}

	cycles := make([]Cycle, 0, len(groups))
	for _, group := range groups {
		if c, ok := aggregate(len(cycles)+1, group); ok {
			cycles = append(cycles, c)
		}
	}
	return cycles
}

func groupByExplicitIndex(samples []RawSample) [][]RawSample {
	var groups [][]RawSample
	seen := make(map[int]int) // explicit index -> position in groups

	for _, s := range samples {
		key := s.CycleIndex
		if !s.HasCycle {
			// Rows without a parsable cycle value ride along with the
			// previous group rather than forming a phantom cycle.
			if len(groups) == 0 {
				groups = append(groups, nil)
			}
			groups[len(groups)-1] = append(groups[len(groups)-1], s)
			continue
		}
		pos, ok := seen[key]
		if !ok {
			pos = len(groups)
			seen[key] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], s)
	}
	return groups
}

func groupByPhaseTransitions(samples []RawSample) [][]RawSample {
	var groups [][]RawSample
	current := []RawSample{}
	sawDischarge := false

	for _, s := range samples {
		if s.Phase == PhaseCharge && sawDischarge && len(current) > 0 {
			groups = append(groups, current)
			current = nil
			sawDischarge = false
		}
		current = append(current, s)
		if s.Phase == PhaseDischarge {
			sawDischarge = true
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// aggregate reduces one group of samples to a Cycle. Returns false for an
// empty group so callers never emit a cycle with garbage fields.
func aggregate(index int, group []RawSample) (Cycle, bool) {
	if len(group) == 0 {
		return Cycle{}, false
	}

	c := Cycle{Index: index, Samples: len(group)}

	var voltageSum float64
	var chargeVoltSum, dischargeVoltSum float64
	var chargeCount, dischargeCount int
	c.MinVoltage = group[0].Voltage

	for _, s := range group {
		voltageSum += s.Voltage
		if s.Voltage < c.MinVoltage {
			c.MinVoltage = s.Voltage
		}

		switch s.Phase {
		case PhaseCharge:
			chargeVoltSum += s.Voltage
			chargeCount++
			if s.Capacity > c.MaxChargeCapacity {
				c.MaxChargeCapacity = s.Capacity
			}
		case PhaseDischarge:
			dischargeVoltSum += s.Voltage
			dischargeCount++
			if s.Capacity > c.MaxDischargeCapacity {
				c.MaxDischargeCapacity = s.Capacity
			}
		}

		if s.HasTemp {
			if !c.HasTemperature {
				c.MinTemperature = s.Temperature
				c.MaxTemperature = s.Temperature
				c.HasTemperature = true
			} else {
				if s.Temperature < c.MinTemperature {
					c.MinTemperature = s.Temperature
				}
				if s.Temperature > c.MaxTemperature {
					c.MaxTemperature = s.Temperature
				}
			}
		}
	}

	c.AvgVoltage = voltageSum / float64(len(group))
	if chargeCount > 0 {
		c.AvgChargeVoltage = chargeVoltSum / float64(chargeCount)
	}
	if dischargeCount > 0 {
		c.AvgDischargeVoltage = dischargeVoltSum / float64(dischargeCount)
	}

	return c, true
}

// RepresentativeCapacity is the capacity value used to characterize a
// cycle's health: discharge capacity when available and nonzero (the
// physically meaningful retained-energy metric), charge capacity otherwise.
// Returns false when the cycle carries no usable capacity at all.
func (c Cycle) RepresentativeCapacity() (float64, bool) {
	if c.MaxDischargeCapacity > 0 {
		return c.MaxDischargeCapacity, true
	}
	if c.MaxChargeCapacity > 0 {
		return c.MaxChargeCapacity, true
	}
	return 0, false
}
