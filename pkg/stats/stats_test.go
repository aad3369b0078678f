package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	require.Equal(t, 0.0, Mean(nil))
	require.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}

func TestMedian(t *testing.T) {
	require.Equal(t, 0.0, Median(nil))
	require.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	// even count interpolates between the middle pair
	require.Equal(t, 2.5, Median([]float64{4, 1, 2, 3}))
}

func TestPercentileInterpolation(t *testing.T) {
	xs := []float64{10, 20, 30, 40, 50}

	require.Equal(t, 10.0, Percentile(xs, 0))
	require.Equal(t, 50.0, Percentile(xs, 100))
	require.Equal(t, 30.0, Percentile(xs, 50))
	// rank 0.1*4 = 0.4 -> 10 + 0.4*(20-10)
	require.InDelta(t, 14.0, Percentile(xs, 10), 1e-9)
	require.InDelta(t, 46.0, Percentile(xs, 90), 1e-9)
}

func TestPercentileUnsortedInput(t *testing.T) {
	xs := []float64{50, 10, 40, 20, 30}
	require.Equal(t, 30.0, Percentile(xs, 50))
	// input slice is not reordered
	require.Equal(t, []float64{50, 10, 40, 20, 30}, xs)
}

func TestMAD(t *testing.T) {
	require.Equal(t, 0.0, MAD(nil))
	// median 3, deviations {2,1,0,1,2} -> median 1
	require.Equal(t, 1.0, MAD([]float64{1, 2, 3, 4, 5}))
	// constant series has zero spread
	require.Equal(t, 0.0, MAD([]float64{7, 7, 7, 7}))
}

func TestStdDev(t *testing.T) {
	require.Equal(t, 0.0, StdDev(nil))
	require.Equal(t, 0.0, StdDev([]float64{4, 4, 4}))
	// population stddev of {2,4,4,4,5,5,7,9} is exactly 2
	require.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}
