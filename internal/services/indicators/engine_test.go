package indicators

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/surge/internal/domain"
)

// flatCandles builds n bars with constant price and volume.
func flatCandles(market string, n int, price, volume float64) []domain.Candle {
	candles := make([]domain.Candle, n)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		p := decimal.NewFromFloat(price)
		candles[i] = domain.Candle{
			Market:    market,
			Timestamp: start.Add(time.Duration(i) * domain.BarInterval),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    decimal.NewFromFloat(volume),
		}
	}
	return candles
}

// pump replaces the last bar with a price jump and a volume spike.
func pump(candles []domain.Candle, changePct, volumeMult float64) []domain.Candle {
	last := len(candles) - 1
	prevClose, _ := candles[last-1].Close.Float64()
	prevVolume, _ := candles[last-1].Volume.Float64()

	newClose := decimal.NewFromFloat(prevClose * (1 + changePct/100))
	candles[last].Open = candles[last-1].Close
	candles[last].Close = newClose
	candles[last].High = newClose
	candles[last].Low = candles[last-1].Close
	candles[last].Volume = decimal.NewFromFloat(prevVolume * volumeMult)
	return candles
}

func TestComputeDropsShortHistory(t *testing.T) {
	engine := NewEngine(zap.NewNop(), nil)

	vectors := engine.Compute(map[string][]domain.Candle{
		"KRW-SHORT": flatCandles("KRW-SHORT", 19, 100, 100),
		"KRW-OK":    flatCandles("KRW-OK", 20, 100, 100),
	})

	require.NotContains(t, vectors, "KRW-SHORT")
	require.Contains(t, vectors, "KRW-OK")
}

func TestComputeVolumeSpike(t *testing.T) {
	engine := NewEngine(zap.NewNop(), nil)
	candles := pump(flatCandles("KRW-SOL", 200, 100, 100), 3, 8)

	vectors := engine.Compute(map[string][]domain.Candle{"KRW-SOL": candles})
	fv := vectors["KRW-SOL"]
	require.NotNil(t, fv)

	// baseline median is 100 (the spike bar sits inside the excluded gap)
	rvol, ok := fv.RelativeVolume.Value()
	require.True(t, ok)
	require.InDelta(t, 8.0, rvol, 1e-9)

	change, ok := fv.PriceChange10m.Value()
	require.True(t, ok)
	require.InDelta(t, 3.0, change, 1e-9)

	change1h, ok := fv.PriceChange1h.Value()
	require.True(t, ok)
	require.InDelta(t, 3.0, change1h, 1e-9)

	require.True(t, fv.IsBreaking1hHigh)

	// a 3% bar against a perfectly flat history is an extreme outlier
	require.Equal(t, domain.VolatilityExtreme, fv.VolatilityTier)
	require.Equal(t, domain.BandBreakoutUpper, fv.Bollinger)

	// the jump lifts the short SMA past the buffer; the 4h horizon
	// barely moves
	require.Equal(t, domain.TrendUp, fv.Trend1h)
	require.Equal(t, domain.TrendNeutral, fv.Trend4h)
}

func TestComputeRVOLFallbackWithoutBaseline(t *testing.T) {
	engine := NewEngine(zap.NewNop(), nil)
	// 100 bars: enough for most metrics but not for the 24h baseline
	candles := pump(flatCandles("KRW-APT", 100, 50, 200), 1, 5)

	fv := engine.Compute(map[string][]domain.Candle{"KRW-APT": candles})["KRW-APT"]
	require.NotNil(t, fv)

	rvol, ok := fv.RelativeVolume.Value()
	require.True(t, ok)
	require.Equal(t, 1.0, rvol)
	require.False(t, fv.RVOLVsYesterday.Defined())
}

func TestComputeUptrend(t *testing.T) {
	engine := NewEngine(zap.NewNop(), nil)

	candles := flatCandles("KRW-INJ", 200, 100, 100)
	price := 100.0
	for i := range candles {
		price *= 1.005
		p := decimal.NewFromFloat(price)
		candles[i].Open = p
		candles[i].High = p
		candles[i].Low = p
		candles[i].Close = p
	}

	fv := engine.Compute(map[string][]domain.Candle{"KRW-INJ": candles})["KRW-INJ"]
	require.NotNil(t, fv)
	require.Equal(t, domain.TrendUp, fv.Trend1h)
	require.Equal(t, domain.TrendUp, fv.Trend4h)
}

func TestDecouplingClassification(t *testing.T) {
	engine := NewEngine(zap.NewNop(), []string{"KRW-BTC", "KRW-ETH"})

	candles := map[string][]domain.Candle{
		"KRW-BTC":  flatCandles("KRW-BTC", 200, 50000, 100),
		"KRW-ETH":  flatCandles("KRW-ETH", 200, 3000, 100),
		"KRW-SOL":  pump(flatCandles("KRW-SOL", 200, 100, 100), 5, 2),
		"KRW-ADA":  pump(flatCandles("KRW-ADA", 200, 1, 100), 1, 1),
		"KRW-DOGE": pump(flatCandles("KRW-DOGE", 200, 0.1, 100), -4, 2),
	}

	vectors := engine.Compute(candles)

	// basket members are never classified against themselves
	require.Equal(t, domain.DecoupleNone, vectors["KRW-BTC"].Decoupling)

	// flat basket: a 5% independent move is a genuine decouple
	require.Equal(t, domain.DecoupleStrong, vectors["KRW-SOL"].Decoupling)
	dev, ok := vectors["KRW-SOL"].DecoupleScore.Value()
	require.True(t, ok)
	require.InDelta(t, 5.0, dev, 1e-9)

	// within 2 percentage points of the basket counts as coupled
	require.Equal(t, domain.DecoupleCoupled, vectors["KRW-ADA"].Decoupling)

	require.Equal(t, domain.DecoupleStrong, vectors["KRW-DOGE"].Decoupling)
}

func TestDecouplingAmplified(t *testing.T) {
	engine := NewEngine(zap.NewNop(), []string{"KRW-BTC"})

	candles := map[string][]domain.Candle{
		"KRW-BTC": pump(flatCandles("KRW-BTC", 200, 50000, 100), 1, 1),
		"KRW-SOL": pump(flatCandles("KRW-SOL", 200, 100, 100), 5, 1),
		"KRW-ADA": pump(flatCandles("KRW-ADA", 200, 1, 100), -5, 1),
	}

	vectors := engine.Compute(candles)

	require.Equal(t, domain.DecoupleAmplifiedBull, vectors["KRW-SOL"].Decoupling)
	require.Equal(t, domain.DecoupleStrong, vectors["KRW-ADA"].Decoupling)
}

func TestDecouplingSkippedWithoutBasketData(t *testing.T) {
	engine := NewEngine(zap.NewNop(), []string{"KRW-BTC"})

	vectors := engine.Compute(map[string][]domain.Candle{
		"KRW-SOL": pump(flatCandles("KRW-SOL", 200, 100, 100), 5, 1),
	})

	require.Equal(t, domain.DecoupleNone, vectors["KRW-SOL"].Decoupling)
	require.False(t, vectors["KRW-SOL"].DecoupleScore.Defined())
}

func TestVolumeConsistency(t *testing.T) {
	// half the window above threshold, recency-weighted
	volumes := make([]float64, 24)
	for i := range volumes {
		if i >= 12 {
			volumes[i] = 200 // 2x the baseline
		} else {
			volumes[i] = 100
		}
	}

	got := volumeConsistency(volumes, 100)
	// weights 13..24 out of 1+..+24 = 300 -> 222/300
	require.InDelta(t, 0.74, got, 1e-9)

	require.Equal(t, 0.0, volumeConsistency(nil, 100))
}

func TestPctChangeZeroBase(t *testing.T) {
	require.False(t, pctChange(0, 10).Defined())
	require.InDelta(t, 25.0, pctChange(80, 100).Or(0), 1e-9)
}

func TestVolatilityTierMonotonic(t *testing.T) {
	// 120 bars of alternating +-0.1% moves
	closes := make([]float64, 0, 121)
	price := 100.0
	closes = append(closes, price)
	for i := 0; i < 120; i++ {
		if i%2 == 0 {
			price *= 1.001
		} else {
			price /= 1.001
		}
		closes = append(closes, price)
	}

	tierRank := map[domain.VolatilityTier]int{
		domain.VolatilityNormal:   0,
		domain.VolatilityHigh:     1,
		domain.VolatilityVeryHigh: 2,
		domain.VolatilityExtreme:  3,
	}

	// injecting ever larger final moves never lowers the tier
	prev := 0
	for _, movePct := range []float64{0.05, 0.5, 2, 5, 30} {
		last := closes[len(closes)-1]
		tier := volatilityTier(append(append([]float64{}, closes...), last*(1+movePct/100)))
		rank, known := tierRank[tier]
		require.True(t, known)
		require.GreaterOrEqual(t, rank, prev, "move of %.2f%% lowered the tier", movePct)
		prev = rank
	}

	// smaller than everything in history stays NORMAL, larger than
	// everything is EXTREME
	last := closes[len(closes)-1]
	require.Equal(t, domain.VolatilityNormal,
		volatilityTier(append(append([]float64{}, closes...), last*1.0005)))
	require.Equal(t, domain.VolatilityExtreme,
		volatilityTier(append(append([]float64{}, closes...), last*1.3)))
}
