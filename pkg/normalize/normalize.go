package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// restCurrentEpsilon is the current magnitude (A) below which a sample is
// treated as resting when no explicit phase column resolves.
const restCurrentEpsilon = 0.01

// Phase is the canonical step type of a sample.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseCharge
	PhaseDischarge
	PhaseRest
)

func (p Phase) String() string {
	switch p {
	case PhaseCharge:
		return "charge"
	case PhaseDischarge:
		return "discharge"
	case PhaseRest:
		return "rest"
	default:
		return "unknown"
	}
}

// Row is one loosely-typed record as supplied by the ingestion collaborator.
type Row map[string]string

// RecordSet is the input boundary: an ordered sequence of raw records plus
// the dataset's column order. Column order matters because field resolution
// binds the first matching column.
type RecordSet struct {
	Columns []string
	Rows    []Row
}

// RawSample is one normalized measurement.
type RawSample struct {
	CycleIndex  int  // 0 when no cycle column resolved
	HasCycle    bool
	Phase       Phase
	Voltage     float64
	Current     float64
	Capacity    float64 // cumulative capacity within the step
	Temperature float64
	HasTemp     bool
	Timestamp   string // raw value of the bound time column, if any
}

// Binding records which source column was bound to each canonical quantity.
// It is resolved once per dataset and then applied uniformly to every row;
// it also serves as the audit record handed back to the caller.
type Binding struct {
	Columns     map[Quantity]string
	SkippedRows int // rows dropped for unparseable or non-positive voltage
}

// Bound reports whether the quantity resolved to a source column.
func (b Binding) Bound(q Quantity) bool {
	_, ok := b.Columns[q]
	return ok
}

// MissingFieldError reports that a mandatory quantity could not be resolved
// against any column of the dataset. It aborts the whole analysis.
type MissingFieldError struct {
	Quantity Quantity
	Columns  []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("normalize: no column for mandatory quantity %q among %v", e.Quantity, e.Columns)
}

// Normalizer converts RecordSets into RawSamples using a shared Schema.
type Normalizer struct {
	schema *Schema
}

// New creates a Normalizer. A nil schema uses DefaultSchema.
func New(schema *Schema) *Normalizer {
	if schema == nil {
		schema = DefaultSchema()
	}
	return &Normalizer{schema: schema}
}

// Resolve binds canonical quantities to source columns. For each quantity
// the first matching column in dataset order wins, and the binding is static
// for the entire dataset. Returns MissingFieldError when voltage, current,
// or capacity cannot be bound.
func (n *Normalizer) Resolve(columns []string) (Binding, error) {
	binding := Binding{Columns: make(map[Quantity]string)}

	resolve := func(q Quantity) bool {
		for _, col := range columns {
			if n.schema.matches(q, col) {
				binding.Columns[q] = col
				return true
			}
		}
		return false
	}

	for _, q := range mandatoryQuantities {
		if !resolve(q) {
			return Binding{}, &MissingFieldError{Quantity: q, Columns: columns}
		}
	}
	for _, q := range optionalQuantities {
		resolve(q)
	}

	return binding, nil
}

// Apply maps rows to RawSamples using an already-resolved binding. No field
// resolution happens here; the two-phase contract keeps the mapping
// reproducible and O(rows).
//
// Rows whose voltage is missing, unparseable, or not strictly positive are
// skipped and counted in the returned binding's audit.
func (n *Normalizer) Apply(binding Binding, rows []Row) ([]RawSample, Binding) {
	samples := make([]RawSample, 0, len(rows))

	for _, row := range rows {
		voltage, ok := parseCell(row, binding, QuantityVoltage)
		if !ok || voltage <= 0 {
			binding.SkippedRows++
			continue
		}

		current, _ := parseCell(row, binding, QuantityCurrent)
		capacity, _ := parseCell(row, binding, QuantityCapacity)

		sample := RawSample{
			Voltage:  voltage,
			Current:  current,
			Capacity: capacity,
		}

		if cycle, ok := parseCell(row, binding, QuantityCycle); ok && cycle >= 1 {
			sample.CycleIndex = int(cycle)
			sample.HasCycle = true
		}
		if temp, ok := parseCell(row, binding, QuantityTemperature); ok {
			sample.Temperature = temp
			sample.HasTemp = true
		}
		if col, ok := binding.Columns[QuantityTime]; ok {
			sample.Timestamp = strings.TrimSpace(row[col])
		}

		sample.Phase = n.inferPhase(binding, row, current)
		samples = append(samples, sample)
	}

	return samples, binding
}

// Normalize resolves the record set's columns and applies the binding in one
// call. Most callers want this; Resolve/Apply stay exported for callers that
// reuse a binding across batches of the same dataset.
func (n *Normalizer) Normalize(rs *RecordSet) ([]RawSample, Binding, error) {
	binding, err := n.Resolve(rs.Columns)
	if err != nil {
		return nil, Binding{}, err
	}
	samples, binding := n.Apply(binding, rs.Rows)
	return samples, binding, nil
}

// inferPhase normalizes a vendor step-type string when a phase column is
// bound, falling back to the sign of the current otherwise.
func (n *Normalizer) inferPhase(binding Binding, row Row, current float64) Phase {
	if col, ok := binding.Columns[QuantityPhase]; ok {
		if p, ok := phaseFromVendor(row[col]); ok {
			return p
		}
	}

	switch {
	case current > restCurrentEpsilon:
		return PhaseCharge
	case current < -restCurrentEpsilon:
		return PhaseDischarge
	default:
		return PhaseRest
	}
}

// phaseFromVendor maps a raw vendor step-type string to the closed Phase set.
// "CC_DChg", "discharge", "D" style values map to discharge before charge is
// tested, because most vendor discharge vocabularies embed "chg"/"charge".
func phaseFromVendor(raw string) (Phase, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return PhaseUnknown, false
	}
	switch {
	case strings.Contains(v, "dis") || strings.Contains(v, "dchg") || v == "d":
		return PhaseDischarge, true
	case strings.Contains(v, "chg") || strings.Contains(v, "charge") || v == "c":
		return PhaseCharge, true
	case strings.Contains(v, "rest") || strings.Contains(v, "idle") || strings.Contains(v, "ocv") || strings.Contains(v, "pause"):
		return PhaseRest, true
	default:
		return PhaseUnknown, true
	}
}

// parseCell reads and parses the cell bound to a quantity. Returns false when
// the quantity is unbound, the cell is empty, or parsing fails.
func parseCell(row Row, binding Binding, q Quantity) (float64, bool) {
	col, ok := binding.Columns[q]
	if !ok {
		return 0, false
	}
	raw := strings.TrimSpace(row[col])
	if raw == "" {
		return 0, false
	}
	// Tolerate comma decimal separators seen in European exports.
	raw = strings.ReplaceAll(raw, ",", ".")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
