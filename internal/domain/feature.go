package domain

import "github.com/shopspring/decimal"

// Trend qualitative direction of price action at one horizon.
type Trend string

const (
	TrendUp      Trend = "UP"
	TrendDown    Trend = "DOWN"
	TrendNeutral Trend = "NEUTRAL"
)

// BandStatus position of the latest close relative to the Bollinger band.
type BandStatus string

const (
	BandNormal        BandStatus = "NORMAL"
	BandBreakoutUpper BandStatus = "BREAKOUT_UPPER"
	BandBreakoutLower BandStatus = "BREAKOUT_LOWER"
	BandSqueeze       BandStatus = "SQUEEZE"
)

// VolatilityTier rarity of the latest bar-to-bar move against the
// market's own historical return distribution.
type VolatilityTier string

const (
	VolatilityNormal   VolatilityTier = "NORMAL"
	VolatilityHigh     VolatilityTier = "HIGH"
	VolatilityVeryHigh VolatilityTier = "VERY_HIGH"
	VolatilityExtreme  VolatilityTier = "EXTREME"
)

// CandleShape anatomy class of the latest candle.
type CandleShape string

const (
	ShapeNormal            CandleShape = "NORMAL"
	ShapeStrongRejectionUp CandleShape = "STRONG_REJECTION_UP"
	ShapeStrongSupportDown CandleShape = "STRONG_SUPPORT_DOWN"
	ShapeStrongMomentum    CandleShape = "STRONG_MOMENTUM"
	ShapeDoji              CandleShape = "DOJI"
	ShapeLowVolume         CandleShape = "LOW_VOLUME"
)

// ShapeReliability how much volume backs the latest candle's shape.
type ShapeReliability string

const (
	ReliabilityLow    ShapeReliability = "LOW"
	ReliabilityMedium ShapeReliability = "MEDIUM"
	ReliabilityHigh   ShapeReliability = "HIGH"
)

// DecoupleStatus relation of a market's short-horizon move to the
// reference basket's average move.
type DecoupleStatus string

const (
	DecoupleNone          DecoupleStatus = ""
	DecoupleCoupled       DecoupleStatus = "COUPLED"
	DecoupleStrong        DecoupleStatus = "STRONG_DECOUPLE"
	DecoupleAmplifiedBull DecoupleStatus = "AMPLIFIED_BULL"
	DecoupleAmplifiedBear DecoupleStatus = "AMPLIFIED_BEAR"
)

// FeatureVector per-market derived metrics computed from candle history.
// Optional metrics stay undefined when the market lacks the minimum
// candle count for them; RelativeVolume is the only field with an
// explicit fallback (1.0 when the baseline is undefined).
type FeatureVector struct {
	Market string
	// Candles is the raw history the vector was computed from. It is not
	// serialized with persisted alerts.
	Candles []Candle `json:"-"`

	// Short-horizon returns, in percent.
	PriceChange10m Metric
	PriceChange1h  Metric
	PriceChange4h  Metric
	// IsBreaking1hHigh is true when the latest close exceeds the highest
	// high of the previous six bars.
	IsBreaking1hHigh bool

	// RelativeVolume is the latest bar volume over the 24h baseline
	// median (144 bars excluding the most recent 10).
	RelativeVolume Metric
	// RVOL1hAvg is the mean volume of the last seven bars over the same
	// baseline median.
	RVOL1hAvg Metric
	// VolumeAcceleration is the 6h median volume over the 24h median.
	VolumeAcceleration Metric
	// VolumeConsistency is the recency-weighted fraction of the last 24
	// bars whose RVOL exceeded 1.5. Zero when not computable.
	VolumeConsistency float64
	// RVOLVsYesterday compares the latest bar volume to the bar exactly
	// 24h earlier.
	RVOLVsYesterday Metric

	Trend1h        Trend
	Trend4h        Trend
	Bollinger      BandStatus
	VolatilityTier VolatilityTier

	Shape            CandleShape
	ShapeReliability ShapeReliability

	// DecoupleScore is the deviation of this market's 10m return from the
	// reference basket average, set by the engine's cross-market pass.
	DecoupleScore Metric
	Decoupling    DecoupleStatus

	// RVOLZScore is the cross-sectional robust z-score of RelativeVolume,
	// written back by the anomaly detector.
	RVOLZScore Metric
}

// NewFeatureVector constructs a vector with neutral classifications.
func NewFeatureVector(market string, candles []Candle) *FeatureVector {
	return &FeatureVector{
		Market:           market,
		Candles:          candles,
		Trend1h:          TrendNeutral,
		Trend4h:          TrendNeutral,
		Bollinger:        BandNormal,
		VolatilityTier:   VolatilityNormal,
		Shape:            ShapeNormal,
		ShapeReliability: ReliabilityLow,
	}
}

// LastClose returns the latest close price.
func (f *FeatureVector) LastClose() (decimal.Decimal, bool) {
	if f == nil || len(f.Candles) == 0 {
		return decimal.Zero, false
	}
	return f.Candles[len(f.Candles)-1].Close, true
}
