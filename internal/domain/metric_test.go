package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricDefinedness(t *testing.T) {
	var undefined Metric
	_, ok := undefined.Value()
	require.False(t, ok)
	require.False(t, undefined.Defined())
	require.Equal(t, 1.5, undefined.Or(1.5))

	defined := NewMetric(2.5)
	v, ok := defined.Value()
	require.True(t, ok)
	require.Equal(t, 2.5, v)
	require.Equal(t, 2.5, defined.Or(0))
}

func TestMetricJSONNull(t *testing.T) {
	data, err := json.Marshal(struct {
		A Metric
		B Metric
	}{B: NewMetric(3)})
	require.NoError(t, err)
	require.JSONEq(t, `{"A": null, "B": 3}`, string(data))

	var decoded struct {
		A Metric
		B Metric
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.False(t, decoded.A.Defined())
	require.Equal(t, 3.0, decoded.B.Or(0))
}
