// Package normalize maps heterogeneous cycling-test records onto a canonical
// sample schema and groups the samples into charge/discharge cycles.
//
// Cycling equipment vendors disagree on almost everything: column names,
// units spelling, step-type vocabularies. The normalizer resolves each
// canonical quantity (voltage, current, capacity, ...) against an ordered
// alias table once per dataset, then applies that binding uniformly to every
// row. Raw vendor strings never leave this package.
package normalize

import "strings"

// Quantity identifies a canonical measurement column.
type Quantity string

const (
	QuantityVoltage     Quantity = "voltage"
	QuantityCurrent     Quantity = "current"
	QuantityCapacity    Quantity = "capacity"
	QuantityCycle       Quantity = "cycle"
	QuantityTemperature Quantity = "temperature"
	QuantityEnergy      Quantity = "energy"
	QuantityTime        Quantity = "time"
	QuantityPhase       Quantity = "phase"
)

// mandatoryQuantities must resolve or the whole dataset is rejected.
var mandatoryQuantities = []Quantity{QuantityVoltage, QuantityCurrent, QuantityCapacity}

// optionalQuantities are bound when a matching column exists.
var optionalQuantities = []Quantity{QuantityCycle, QuantityTemperature, QuantityEnergy, QuantityTime, QuantityPhase}

// Schema holds the alias tables used to resolve vendor column names.
//
// A Schema is immutable after construction and safe to share read-only
// between concurrent normalizer runs. The alias lists are ordered: when a
// column matches aliases of two quantities, dataset column order decides,
// not alias order, but within one quantity the first alias that matches any
// column in order wins.
type Schema struct {
	aliases map[Quantity][]string
}

// DefaultSchema returns the built-in alias tables covering the common
// cycling-test export vocabularies (Neware, Arbin, Maccor, Biologic and
// generic spreadsheet headers).
func DefaultSchema() *Schema {
	return NewSchema(map[Quantity][]string{
		QuantityVoltage:     {"voltage", "volt", "ecell", "v(v)", "potential"},
		QuantityCurrent:     {"current", "amp", "i(a)", "i(ma)"},
		QuantityCapacity:    {"capacity", "cap", "mah", "ah", "q(mah)"},
		QuantityCycle:       {"cycle", "cyc", "loop"},
		QuantityTemperature: {"temperature", "temp", "aux t", "t(c)"},
		QuantityEnergy:      {"energy", "wh", "mwh"},
		QuantityTime:        {"time", "timestamp", "date"},
		QuantityPhase:       {"step type", "step_type", "steptype", "phase", "state", "mode", "md"},
	})
}

// NewSchema builds a Schema from explicit alias tables. Aliases are stored
// lowercased; matching is case-insensitive. Quantities absent from the map
// simply never resolve.
func NewSchema(aliases map[Quantity][]string) *Schema {
	s := &Schema{aliases: make(map[Quantity][]string, len(aliases))}
	for q, list := range aliases {
		lowered := make([]string, len(list))
		for i, a := range list {
			lowered[i] = strings.ToLower(strings.TrimSpace(a))
		}
		s.aliases[q] = lowered
	}
	return s
}

// WithAliases returns a copy of the schema with extra aliases appended for
// the given quantity. The receiver is not modified.
func (s *Schema) WithAliases(q Quantity, extra ...string) *Schema {
	merged := make(map[Quantity][]string, len(s.aliases))
	for k, v := range s.aliases {
		merged[k] = v
	}
	merged[q] = append(append([]string{}, merged[q]...), extra...)
	return NewSchema(merged)
}

// matches reports whether a column name matches any alias of the quantity.
// A column matches an alias when either string contains the other,
// case-insensitively. That keeps "Cap_mAh" matching "cap" and "v" matching
// "Voltage(V)" without a per-vendor table.
func (s *Schema) matches(q Quantity, column string) bool {
	col := strings.ToLower(strings.TrimSpace(column))
	if col == "" {
		return false
	}
	for _, alias := range s.aliases[q] {
		if alias == "" {
			continue
		}
		if strings.Contains(col, alias) || strings.Contains(alias, col) {
			return true
		}
	}
	return false
}
