package indicators

import (
	"math"

	"github.com/vadiminshakov/surge/internal/domain"
)

const (
	anatomyVolumePeriod = 19

	bodyMomentumRatio = 0.7
	wickRejectRatio   = 0.6
	bodyDojiRatio     = 0.1

	lowVolumeRatio      = 0.5
	mediumReliabilityAt = 1.2
	highReliabilityAt   = 2.0
)

// classifyAnatomy tags the latest candle's shape and how much volume
// backs it. It is a pure function of the latest candle plus a 19-bar
// trailing volume average and mutates the vector in place.
func classifyAnatomy(fv *domain.FeatureVector, candles []domain.Candle, volumes []float64) {
	n := len(candles)
	if n < anatomyVolumePeriod+1 {
		return
	}

	avgVolume := 0.0
	for _, v := range volumes[n-anatomyVolumePeriod-1 : n-1] {
		avgVolume += v
	}
	avgVolume /= anatomyVolumePeriod
	if avgVolume <= 0 {
		return
	}

	volumeRatio := volumes[n-1] / avgVolume
	switch {
	case volumeRatio >= highReliabilityAt:
		fv.ShapeReliability = domain.ReliabilityHigh
	case volumeRatio >= mediumReliabilityAt:
		fv.ShapeReliability = domain.ReliabilityMedium
	default:
		fv.ShapeReliability = domain.ReliabilityLow
	}

	last := candles[n-1]
	open, _ := last.Open.Float64()
	high, _ := last.High.Float64()
	low, _ := last.Low.Float64()
	closePrice, _ := last.Close.Float64()

	candleRange := high - low
	if candleRange <= 0 {
		fv.Shape = domain.ShapeDoji
		return
	}

	body := math.Abs(closePrice-open) / candleRange
	upperWick := (high - math.Max(open, closePrice)) / candleRange
	lowerWick := (math.Min(open, closePrice) - low) / candleRange

	switch {
	case volumeRatio < lowVolumeRatio:
		fv.Shape = domain.ShapeLowVolume
	case body >= bodyMomentumRatio:
		fv.Shape = domain.ShapeStrongMomentum
	case upperWick >= wickRejectRatio:
		fv.Shape = domain.ShapeStrongRejectionUp
	case lowerWick >= wickRejectRatio:
		fv.Shape = domain.ShapeStrongSupportDown
	case body <= bodyDojiRatio:
		fv.Shape = domain.ShapeDoji
	default:
		fv.Shape = domain.ShapeNormal
	}
}
