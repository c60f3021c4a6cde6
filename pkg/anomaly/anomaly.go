// Package anomaly flags per-cycle irregularities in voltage, capacity, and
// temperature.
//
// Detection is self-referential: each cycle is judged against its own
// sample statistics and its immediate predecessor, not against a long
// historical baseline. Events are append-only within a run; deduplication
// across runs belongs to the caller.
package anomaly

import (
	"github.com/cellwatch/cellwatch/pkg/normalize"
)

// Kind identifies the irregularity class.
type Kind string

const (
	KindVoltageDrop      Kind = "voltage_drop"
	KindCapacityJump     Kind = "capacity_jump"
	KindTemperatureSpike Kind = "temperature_spike"
)

// Severity grades an event.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Event is one detected irregularity.
type Event struct {
	Cycle      int      `json:"cycle"`
	Kind       Kind     `json:"kind"`
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
	Value      float64  `json:"value"`
	Threshold  float64  `json:"threshold"`
}

// Config holds the detector thresholds and per-detector confidence
// constants. The confidences are fixed values, not calibrated
// probabilities; they are configurable here precisely because they read as
// placeholders that operators may want to tune.
//
// Zero-valued fields are replaced by defaults, so a partially filled Config
// is safe.
type Config struct {
	// VoltageHighRatio: min voltage below this fraction of the cycle's
	// average voltage raises a High severity drop.
	VoltageHighRatio float64
	// VoltageMediumRatio: same check at Medium severity.
	VoltageMediumRatio float64
	// CapacityJumpFraction: a cycle-over-cycle capacity increase beyond
	// this fraction of the prior capacity is flagged. Capacity cannot
	// legitimately rise under normal degradation, so any jump signals a
	// sensor or accounting fault.
	CapacityJumpFraction float64
	// TempMediumC / TempHighC: max-temperature thresholds in Celsius.
	TempMediumC float64
	TempHighC   float64

	VoltageConfidence  float64
	CapacityConfidence float64
	TempConfidence     float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		VoltageHighRatio:     0.5,
		VoltageMediumRatio:   0.7,
		CapacityJumpFraction: 0.10,
		TempMediumC:          60,
		TempHighC:            80,
		VoltageConfidence:    0.85,
		CapacityConfidence:   0.75,
		TempConfidence:       0.90,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.VoltageHighRatio == 0 {
		c.VoltageHighRatio = def.VoltageHighRatio
	}
	if c.VoltageMediumRatio == 0 {
		c.VoltageMediumRatio = def.VoltageMediumRatio
	}
	if c.CapacityJumpFraction == 0 {
		c.CapacityJumpFraction = def.CapacityJumpFraction
	}
	if c.TempMediumC == 0 {
		c.TempMediumC = def.TempMediumC
	}
	if c.TempHighC == 0 {
		c.TempHighC = def.TempHighC
	}
	if c.VoltageConfidence == 0 {
		c.VoltageConfidence = def.VoltageConfidence
	}
	if c.CapacityConfidence == 0 {
		c.CapacityConfidence = def.CapacityConfidence
	}
	if c.TempConfidence == 0 {
		c.TempConfidence = def.TempConfidence
	}
	return c
}

// Detector runs the per-cycle checks. Safe for concurrent use; it carries
// no mutable state.
type Detector struct {
	cfg Config
}

// NewDetector creates a Detector, filling zero config fields with defaults.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Detect runs all checks over the cycle sequence and returns the events in
// cycle order. Identical input always yields identical output.
func (d *Detector) Detect(cycles []normalize.Cycle) []Event {
	var events []Event

	var prevCapacity float64
	var havePrev bool

	for _, c := range cycles {
		if e, ok := d.checkVoltageDrop(c); ok {
			events = append(events, e)
		}

		capacity, hasCapacity := c.RepresentativeCapacity()
		if hasCapacity {
			if havePrev {
				if e, ok := d.checkCapacityJump(c, prevCapacity, capacity); ok {
					events = append(events, e)
				}
			}
			prevCapacity = capacity
			havePrev = true
		}

		if e, ok := d.checkTemperatureSpike(c); ok {
			events = append(events, e)
		}
	}

	return events
}

// checkVoltageDrop flags cycles whose minimum voltage falls well below the
// cycle's own average. Only raised when the cycle had at least one positive
// voltage sample, which is equivalent to having samples at all since the
// normalizer enforces voltage > 0.
func (d *Detector) checkVoltageDrop(c normalize.Cycle) (Event, bool) {
	if c.Samples == 0 || c.AvgVoltage <= 0 {
		return Event{}, false
	}

	switch {
	case c.MinVoltage < d.cfg.VoltageHighRatio*c.AvgVoltage:
		return Event{
			Cycle:      c.Index,
			Kind:       KindVoltageDrop,
			Severity:   SeverityHigh,
			Confidence: d.cfg.VoltageConfidence,
			Value:      c.MinVoltage,
			Threshold:  d.cfg.VoltageHighRatio * c.AvgVoltage,
		}, true
	case c.MinVoltage < d.cfg.VoltageMediumRatio*c.AvgVoltage:
		return Event{
			Cycle:      c.Index,
			Kind:       KindVoltageDrop,
			Severity:   SeverityMedium,
			Confidence: d.cfg.VoltageConfidence,
			Value:      c.MinVoltage,
			Threshold:  d.cfg.VoltageMediumRatio * c.AvgVoltage,
		}, true
	}
	return Event{}, false
}

func (d *Detector) checkCapacityJump(c normalize.Cycle, prev, current float64) (Event, bool) {
	if prev <= 0 {
		return Event{}, false
	}
	increase := current - prev
	if increase <= d.cfg.CapacityJumpFraction*prev {
		return Event{}, false
	}
	return Event{
		Cycle:      c.Index,
		Kind:       KindCapacityJump,
		Severity:   SeverityMedium,
		Confidence: d.cfg.CapacityConfidence,
		Value:      current,
		Threshold:  prev * (1 + d.cfg.CapacityJumpFraction),
	}, true
}

func (d *Detector) checkTemperatureSpike(c normalize.Cycle) (Event, bool) {
	if !c.HasTemperature {
		return Event{}, false
	}

	switch {
	case c.MaxTemperature > d.cfg.TempHighC:
		return Event{
			Cycle:      c.Index,
			Kind:       KindTemperatureSpike,
			Severity:   SeverityHigh,
			Confidence: d.cfg.TempConfidence,
			Value:      c.MaxTemperature,
			Threshold:  d.cfg.TempHighC,
		}, true
	case c.MaxTemperature > d.cfg.TempMediumC:
		return Event{
			Cycle:      c.Index,
			Kind:       KindTemperatureSpike,
			Severity:   SeverityMedium,
			Confidence: d.cfg.TempConfidence,
			Value:      c.MaxTemperature,
			Threshold:  d.cfg.TempMediumC,
		}, true
	}
	return Event{}, false
}
