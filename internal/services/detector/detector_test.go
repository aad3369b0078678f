package detector

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/surge/internal/domain"
)

// vectorWith builds a minimal feature vector carrying one candle so the
// detector can read the latest close and volume.
func vectorWith(market string, rvol, change10m, lastVolume float64) *domain.FeatureVector {
	fv := domain.NewFeatureVector(market, []domain.Candle{{
		Market:    market,
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:      decimal.NewFromInt(100),
		High:      decimal.NewFromInt(100),
		Low:       decimal.NewFromInt(100),
		Close:     decimal.NewFromInt(100),
		Volume:    decimal.NewFromFloat(lastVolume),
	}})
	fv.RelativeVolume = domain.NewMetric(rvol)
	fv.PriceChange10m = domain.NewMetric(change10m)
	return fv
}

// crowd returns 29 unremarkable markets whose RVOLs spread around 1.0,
// enough to make the cross-sectional MAD non-degenerate.
func crowd() map[string]*domain.FeatureVector {
	vectors := make(map[string]*domain.FeatureVector, 29)
	for i := 0; i < 29; i++ {
		market := string(rune('A')+rune(i/10)) + string(rune('0')+rune(i%10))
		rvol := 0.8 + 0.4*float64(i)/28
		vectors["KRW-"+market] = vectorWith("KRW-"+market, rvol, 0.1, 100)
	}
	return vectors
}

func TestDetectFlagsRVOLOutlier(t *testing.T) {
	vectors := crowd()
	outlier := vectorWith("KRW-SOL", 10, 3, 900)
	outlier.Trend1h = domain.TrendUp
	outlier.Trend4h = domain.TrendUp
	vectors["KRW-SOL"] = outlier

	d := New(DefaultConfig(), zap.NewNop())
	candidates := d.Detect(vectors, domain.SectorMaps{})

	require.Len(t, candidates, 1)
	c := candidates[0]
	require.Equal(t, "KRW-SOL", c.Market)
	require.Greater(t, c.RVOLZScore, 3.5)
	require.InDelta(t, 3.0, c.PriceChange, 1e-9)
	require.InDelta(t, 10.0, c.RVOL, 1e-9)
	require.True(t, c.CurrentPrice.Equal(decimal.NewFromInt(100)))

	// z base 0.35 + trend 0.20 + co-movement 0.15 + volume bonus 0.05
	require.InDelta(t, 0.75, c.Confidence, 1e-9)
	require.Contains(t, c.Contexts, "short/mid-term momentum aligned")

	// the z-score is written back onto the vector
	z, ok := outlier.RVOLZScore.Value()
	require.True(t, ok)
	require.Greater(t, z, 3.5)
}

func TestDetectSkipsDegenerateDistribution(t *testing.T) {
	vectors := make(map[string]*domain.FeatureVector)
	for i := 0; i < 29; i++ {
		market := "KRW-M" + string(rune('A')+rune(i))
		vectors[market] = vectorWith(market, 1.0, 0.1, 100)
	}
	vectors["KRW-SOL"] = vectorWith("KRW-SOL", 10, 3, 900)

	d := New(DefaultConfig(), zap.NewNop())
	// identical RVOLs produce zero MAD: z-scoring must be skipped, not
	// approximated
	require.Empty(t, d.Detect(vectors, domain.SectorMaps{}))
}

func TestDetectRequiresMinimumSamples(t *testing.T) {
	vectors := map[string]*domain.FeatureVector{
		"KRW-A":   vectorWith("KRW-A", 0.9, 0.1, 100),
		"KRW-B":   vectorWith("KRW-B", 1.1, 0.1, 100),
		"KRW-SOL": vectorWith("KRW-SOL", 10, 3, 900),
	}

	d := New(DefaultConfig(), zap.NewNop())
	require.Empty(t, d.Detect(vectors, domain.SectorMaps{}))
}

func TestDetectMarketWideEventFilter(t *testing.T) {
	vectors := make(map[string]*domain.FeatureVector)
	for i := 0; i < 29; i++ {
		market := "KRW-M" + string(rune('A')+rune(i))
		rvol := 0.8 + 0.4*float64(i)/28
		// everything pumps 3% at once
		vectors[market] = vectorWith(market, rvol, 3, 100)
	}

	t.Run("systemic mover is dropped", func(t *testing.T) {
		vs := make(map[string]*domain.FeatureVector, len(vectors)+1)
		for k, v := range vectors {
			vs[k] = v
		}
		vs["KRW-SOL"] = vectorWith("KRW-SOL", 10, 3, 900)

		d := New(DefaultConfig(), zap.NewNop())
		require.Empty(t, d.Detect(vs, domain.SectorMaps{}))
	})

	t.Run("extreme outlier survives", func(t *testing.T) {
		vs := make(map[string]*domain.FeatureVector, len(vectors)+1)
		for k, v := range vectors {
			vs[k] = v
		}
		vs["KRW-SOL"] = vectorWith("KRW-SOL", 10, 8, 900)

		d := New(DefaultConfig(), zap.NewNop())
		candidates := d.Detect(vs, domain.SectorMaps{})
		require.Len(t, candidates, 1)
		require.Equal(t, "KRW-SOL", candidates[0].Market)
	})
}

func TestSectorCorrelation(t *testing.T) {
	sectorMaps := domain.BuildSectorMaps(map[string][]string{
		"KRW-SOL": {"Layer 1"},
		"KRW-ETH": {"Layer 1"},
		"KRW-AVA": {"Layer 1"},
		"KRW-SUI": {"Layer 1"},
	})

	vectors := map[string]*domain.FeatureVector{
		"KRW-SOL": vectorWith("KRW-SOL", 1, 3, 100),
		"KRW-ETH": vectorWith("KRW-ETH", 1, 1, 100),
		"KRW-AVA": vectorWith("KRW-AVA", 1, 2, 100),
		"KRW-SUI": vectorWith("KRW-SUI", 1, 0.5, 100),
	}

	// all three peers move with the candidate
	require.InDelta(t, 1.0, sectorCorrelation("KRW-SOL", vectors, sectorMaps), 1e-9)

	// peers split against the candidate
	vectors["KRW-ETH"].PriceChange10m = domain.NewMetric(-1)
	vectors["KRW-AVA"].PriceChange10m = domain.NewMetric(-2)
	require.InDelta(t, 0.0, sectorCorrelation("KRW-SOL", vectors, sectorMaps), 1e-9)

	// fewer than three peers scores zero
	small := domain.BuildSectorMaps(map[string][]string{
		"KRW-SOL": {"AI"},
		"KRW-FET": {"AI"},
	})
	vectors["KRW-FET"] = vectorWith("KRW-FET", 1, 3, 100)
	require.Equal(t, 0.0, sectorCorrelation("KRW-SOL", vectors, small))
}

func TestConfidenceClamped(t *testing.T) {
	fv := vectorWith("KRW-SOL", 20, 5, 900)
	fv.Trend1h = domain.TrendUp
	fv.Trend4h = domain.TrendUp
	fv.Bollinger = domain.BandBreakoutUpper
	fv.Shape = domain.ShapeStrongMomentum
	fv.ShapeReliability = domain.ReliabilityHigh
	fv.VolumeConsistency = 1
	fv.Decoupling = domain.DecoupleStrong
	fv.DecoupleScore = domain.NewMetric(6)

	w := DefaultWeights()
	score := w.confidence(fv, 4, 1, 0.95)
	require.LessOrEqual(t, score, 1.0)
	require.Greater(t, score, 0.9)

	// extreme damping pulls an over-hot move back down
	fv.VolatilityTier = domain.VolatilityExtreme
	fv.PriceChange10m = domain.NewMetric(15)
	damped := w.confidence(fv, 4, 1, 0.95)
	require.Less(t, damped, score)

	// a weak candidate never goes below zero
	weak := vectorWith("KRW-XRP", 1, 0.1, 10)
	require.GreaterOrEqual(t, w.confidence(weak, 0, 0, 0.1), 0.0)
}
