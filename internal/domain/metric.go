package domain

import "encoding/json"

// Metric is a derived value that may be undefined when a market lacks
// enough candle history to compute it. Consumers must branch on
// definedness instead of relying on a sentinel number.
type Metric struct {
	value   float64
	defined bool
}

// NewMetric returns a defined metric holding v.
func NewMetric(v float64) Metric {
	return Metric{value: v, defined: true}
}

// Value returns the metric value and whether it is defined.
func (m Metric) Value() (float64, bool) {
	return m.value, m.defined
}

// Defined reports whether the metric was computed.
func (m Metric) Defined() bool {
	return m.defined
}

// Or returns the metric value, or fallback when undefined.
func (m Metric) Or(fallback float64) float64 {
	if !m.defined {
		return fallback
	}
	return m.value
}

// MarshalJSON encodes an undefined metric as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// UnmarshalJSON decodes null as an undefined metric.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*m = Metric{}
		return nil
	}
	*m = NewMetric(*v)
	return nil
}
