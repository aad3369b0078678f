package detector

import (
	"math"

	"github.com/vadiminshakov/surge/internal/domain"
)

// Weights is the declarative scoring table. Additive weights are
// fractions of 1.0; the final score is clamped to [0,1] so maximal
// bonuses cannot push it past the range.
type Weights struct {
	// ZScoreBase scales min(z/10, 1).
	ZScoreBase float64 `yaml:"zscore_base"`
	// TrendAlignment full when both horizons trend up, half when only
	// the short horizon does.
	TrendAlignment float64 `yaml:"trend_alignment"`
	// CoMovement price/volume co-movement bonus, applied when
	// |price change| > 1.0 and z > 3.5, scaled by min(|change|/3, 1).
	CoMovement float64 `yaml:"co_movement"`
	// Decoupling scaled by min(|deviation|/5, 1); full weight for
	// STRONG_DECOUPLE, half for AMPLIFIED_*.
	Decoupling float64 `yaml:"decoupling"`
	// CandleShape full for STRONG_MOMENTUM, 70% for STRONG_SUPPORT_DOWN,
	// requires MEDIUM or HIGH reliability.
	CandleShape float64 `yaml:"candle_shape"`
	// SectorCorrelation linear in the sector correlation.
	SectorCorrelation float64 `yaml:"sector_correlation"`
	// Bollinger full for BREAKOUT_UPPER, half for SQUEEZE.
	Bollinger float64 `yaml:"bollinger"`
	// VolumeConsistency linear in the consistency score.
	VolumeConsistency float64 `yaml:"volume_consistency"`

	// HighVolumeBonus added when the volume percentile exceeds 0.8;
	// LowVolumePenalty subtracted when it is below 0.2.
	HighVolumeBonus  float64 `yaml:"high_volume_bonus"`
	LowVolumePenalty float64 `yaml:"low_volume_penalty"`
	// ExtremeDamping multiplies the score when the volatility tier is
	// EXTREME and |price change| > 10.
	ExtremeDamping float64 `yaml:"extreme_damping"`
}

// DefaultWeights returns the scoring table the detector ships with.
func DefaultWeights() Weights {
	return Weights{
		ZScoreBase:        0.35,
		TrendAlignment:    0.20,
		CoMovement:        0.15,
		Decoupling:        0.15,
		CandleShape:       0.10,
		SectorCorrelation: 0.10,
		Bollinger:         0.10,
		VolumeConsistency: 0.10,
		HighVolumeBonus:   0.05,
		LowVolumePenalty:  0.10,
		ExtremeDamping:    0.8,
	}
}

const (
	coMovementMinChange = 1.0
	coMovementMinZ      = 3.5
	coMovementFullAt    = 3.0

	decouplingFullAt = 5.0

	highVolumePercentile = 0.8
	lowVolumePercentile  = 0.2

	extremeDampingMinChange = 10.0
)

// confidence combines the feature vector into a single [0,1] score
// according to the weight table.
func (w Weights) confidence(fv *domain.FeatureVector, zScore, sectorCorr, volumePercentile float64) float64 {
	change := fv.PriceChange10m.Or(0)
	absChange := math.Abs(change)

	score := w.ZScoreBase * math.Min(zScore/10, 1)

	switch {
	case fv.Trend1h == domain.TrendUp && fv.Trend4h == domain.TrendUp:
		score += w.TrendAlignment
	case fv.Trend1h == domain.TrendUp:
		score += w.TrendAlignment / 2
	}

	if absChange > coMovementMinChange && zScore > coMovementMinZ {
		score += w.CoMovement * math.Min(absChange/coMovementFullAt, 1)
	}

	if deviation, ok := fv.DecoupleScore.Value(); ok {
		scale := math.Min(math.Abs(deviation)/decouplingFullAt, 1)
		switch fv.Decoupling {
		case domain.DecoupleStrong:
			score += w.Decoupling * scale
		case domain.DecoupleAmplifiedBull, domain.DecoupleAmplifiedBear:
			score += w.Decoupling / 2 * scale
		}
	}

	if fv.ShapeReliability == domain.ReliabilityMedium || fv.ShapeReliability == domain.ReliabilityHigh {
		switch fv.Shape {
		case domain.ShapeStrongMomentum:
			score += w.CandleShape
		case domain.ShapeStrongSupportDown:
			score += w.CandleShape * 0.7
		}
	}

	score += w.SectorCorrelation * sectorCorr

	switch fv.Bollinger {
	case domain.BandBreakoutUpper:
		score += w.Bollinger
	case domain.BandSqueeze:
		score += w.Bollinger / 2
	}

	score += w.VolumeConsistency * fv.VolumeConsistency

	if volumePercentile > highVolumePercentile {
		score += w.HighVolumeBonus
	} else if volumePercentile < lowVolumePercentile {
		score -= w.LowVolumePenalty
	}

	if fv.VolatilityTier == domain.VolatilityExtreme && absChange > extremeDampingMinChange {
		score *= w.ExtremeDamping
	}

	return math.Min(math.Max(score, 0), 1)
}
