// Package indicators derives per-market feature vectors from candle
// history. The engine runs in two phases: an embarrassingly parallel
// per-market pass, then a single cross-market pass that classifies
// decoupling against a reference basket.
package indicators

import (
	"math"
	"sync"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/surge/internal/domain"
	"github.com/vadiminshakov/surge/pkg/stats"
)

const (
	// minCandles markets with less history are dropped entirely.
	minCandles = 20

	// rvolBaselineWindow is the 24h baseline length in bars; the most
	// recent rvolBaselineGap bars are excluded so a fresh spike cannot
	// inflate its own baseline.
	rvolBaselineWindow = 144
	rvolBaselineGap    = 10

	trendBuffer1h = 0.001
	trendBuffer4h = 0.002

	bollingerPeriod   = 20
	bandwidthLookback = 100
	squeezePercentile = 10

	consistencyWindow    = 24
	consistencyThreshold = 1.5

	// decoupleDeviation minimum |deviation| (pct points) to count as
	// anything but COUPLED; decoupleFlatBasket is the |basket avg| below
	// which an independent move is a genuine decouple.
	decoupleDeviation  = 2.0
	decoupleFlatBasket = 0.3
)

// Engine computes feature vectors for a batch of markets.
type Engine struct {
	logger *zap.Logger
	// basket markets whose average 10m return is the reference for the
	// decoupling pass.
	basket []string
}

// NewEngine creates an indicator engine with the given reference basket.
func NewEngine(logger *zap.Logger, referenceBasket []string) *Engine {
	return &Engine{logger: logger, basket: referenceBasket}
}

// Compute derives a feature vector per market. Markets with fewer than 20
// candles are dropped; a computation fault for one market excludes only
// that market. The per-market pass runs on the shared worker pool, the
// decoupling pass runs strictly after it.
func (e *Engine) Compute(candles map[string][]domain.Candle) map[string]*domain.FeatureVector {
	vectors := make(map[string]*domain.FeatureVector, len(candles))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for market, history := range candles {
		if len(history) < minCandles {
			continue
		}

		wg.Add(1)
		gopool.Go(func() {
			defer wg.Done()

			fv, err := e.computeMarket(market, history)
			if err != nil {
				e.logger.Warn("failed to compute indicators",
					zap.String("market", market), zap.Error(err))
				return
			}

			mu.Lock()
			vectors[market] = fv
			mu.Unlock()
		})
	}
	wg.Wait()

	e.applyDecoupling(vectors)

	return vectors
}

// computeMarket runs the per-market pass. A panic (index or numeric edge
// case) is converted into an error so one market cannot abort the batch.
func (e *Engine) computeMarket(market string, candles []domain.Candle) (fv *domain.FeatureVector, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic while computing %s: %v", market, r)
		}
	}()

	fv = domain.NewFeatureVector(market, candles)

	closes := extract(candles, func(c domain.Candle) float64 { f, _ := c.Close.Float64(); return f })
	highs := extract(candles, func(c domain.Candle) float64 { f, _ := c.High.Float64(); return f })
	volumes := extract(candles, func(c domain.Candle) float64 { f, _ := c.Volume.Float64(); return f })

	n := len(candles)
	last := n - 1
	currentVolume := volumes[last]

	// Short-horizon returns.
	if n >= 2 {
		fv.PriceChange10m = pctChange(closes[last-1], closes[last])
	}
	if n >= 7 {
		fv.PriceChange1h = pctChange(closes[last-6], closes[last])

		highest := highs[last-6]
		for _, h := range highs[n-6 : last] {
			if h > highest {
				highest = h
			}
		}
		fv.IsBreaking1hHigh = closes[last] > highest
	}
	if n >= 25 {
		fv.PriceChange4h = pctChange(closes[last-24], closes[last])
	}

	// Relative volume against the 24h robust baseline.
	baselineMedian := math.NaN()
	if n >= rvolBaselineWindow+rvolBaselineGap {
		baselineMedian = stats.Median(volumes[n-rvolBaselineWindow-rvolBaselineGap : n-rvolBaselineGap])
	}

	if !math.IsNaN(baselineMedian) && baselineMedian > 1 {
		fv.RelativeVolume = domain.NewMetric(currentVolume / baselineMedian)

		if n >= 7 {
			fv.RVOL1hAvg = domain.NewMetric(stats.Mean(volumes[n-7:]) / baselineMedian)
		}
		if n >= 46 {
			median6h := stats.Median(volumes[n-46 : n-rvolBaselineGap])
			fv.VolumeAcceleration = domain.NewMetric(median6h / baselineMedian)
		}
		if n >= consistencyWindow {
			fv.VolumeConsistency = volumeConsistency(volumes[n-consistencyWindow:], baselineMedian)
		}
	} else {
		// Baseline undefined: the documented 1.0 fallback.
		fv.RelativeVolume = domain.NewMetric(1.0)
	}

	if n >= 145 && volumes[n-145] > 0 {
		fv.RVOLVsYesterday = domain.NewMetric(currentVolume / volumes[n-145])
	}

	// Virtual multi-timeframe trends with a hysteresis buffer.
	if n >= 72 {
		ma1h := lastSMA(closes, 6)
		ma4h := lastSMA(closes, 24)
		switch {
		case ma1h > ma4h*(1+trendBuffer1h):
			fv.Trend1h = domain.TrendUp
		case ma1h < ma4h*(1-trendBuffer1h):
			fv.Trend1h = domain.TrendDown
		}
	}
	if n >= 150 {
		ma4h := lastSMA(closes, 24)
		ma12h := lastSMA(closes, 72)
		switch {
		case ma4h > ma12h*(1+trendBuffer4h):
			fv.Trend4h = domain.TrendUp
		case ma4h < ma12h*(1-trendBuffer4h):
			fv.Trend4h = domain.TrendDown
		}
	}

	fv.Bollinger = bollingerStatus(closes)
	fv.VolatilityTier = volatilityTier(closes)

	classifyAnatomy(fv, candles, volumes)

	return fv, nil
}

// applyDecoupling is the cross-market pass: it computes the reference
// basket's average 10m return and classifies every other market's
// deviation from it. Skipped with a warning when the basket return is
// undefined; that is not a fatal condition.
func (e *Engine) applyDecoupling(vectors map[string]*domain.FeatureVector) {
	basketMembers := make(map[string]bool, len(e.basket))
	var basketChanges []float64
	for _, market := range e.basket {
		basketMembers[market] = true
		if fv, ok := vectors[market]; ok {
			if change, defined := fv.PriceChange10m.Value(); defined {
				basketChanges = append(basketChanges, change)
			}
		}
	}

	if len(basketChanges) == 0 {
		e.logger.Warn("reference basket return undefined, skipping decoupling pass",
			zap.Strings("basket", e.basket))
		return
	}

	basketAvg := stats.Mean(basketChanges)

	for market, fv := range vectors {
		if basketMembers[market] {
			continue
		}
		change, defined := fv.PriceChange10m.Value()
		if !defined {
			continue
		}

		deviation := change - basketAvg
		fv.DecoupleScore = domain.NewMetric(deviation)
		fv.Decoupling = classifyDecoupling(deviation, basketAvg, change)
	}
}

func classifyDecoupling(deviation, basketAvg, change float64) domain.DecoupleStatus {
	if math.Abs(deviation) < decoupleDeviation {
		return domain.DecoupleCoupled
	}
	if math.Abs(basketAvg) < decoupleFlatBasket {
		return domain.DecoupleStrong
	}
	sameSign := (change > 0 && basketAvg > 0) || (change < 0 && basketAvg < 0)
	if !sameSign {
		return domain.DecoupleStrong
	}
	if change > 0 {
		return domain.DecoupleAmplifiedBull
	}
	return domain.DecoupleAmplifiedBear
}

// bollingerStatus classifies the latest close against a 20-bar 2-sigma
// band. Squeeze wins over a breakout when the current bandwidth is below
// the 10th percentile of bandwidths over shifted 20-bar windows across
// the last 100 bars.
func bollingerStatus(closes []float64) domain.BandStatus {
	n := len(closes)
	if n < bollingerPeriod {
		return domain.BandNormal
	}

	window := closes[n-bollingerPeriod:]
	ma := stats.Mean(window)
	sd := stats.StdDev(window)
	upper := ma + 2*sd
	lower := ma - 2*sd

	status := domain.BandNormal
	lastClose := closes[n-1]
	switch {
	case lastClose > upper:
		status = domain.BandBreakoutUpper
	case lastClose < lower:
		status = domain.BandBreakoutLower
	}

	if n >= bandwidthLookback {
		bandwidth := 0.0
		if ma > 0 {
			bandwidth = (upper - lower) / ma
		}

		var history []float64
		for i := n - bandwidthLookback; i < n-bollingerPeriod; i++ {
			past := closes[i : i+bollingerPeriod]
			pastMA := stats.Mean(past)
			if pastMA <= 0 {
				continue
			}
			pastSD := stats.StdDev(past)
			history = append(history, 4*pastSD/pastMA)
		}
		if len(history) > 0 && bandwidth < stats.Percentile(history, squeezePercentile) {
			status = domain.BandSqueeze
		}
	}

	return status
}

// volatilityTier ranks the latest bar-to-bar log-return magnitude against
// the full historical distribution of such magnitudes.
func volatilityTier(closes []float64) domain.VolatilityTier {
	n := len(closes)
	if n <= minCandles {
		return domain.VolatilityNormal
	}

	magnitudes := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		magnitudes = append(magnitudes, math.Abs(math.Log(closes[i]/closes[i-1])))
	}
	if len(magnitudes) < 2 {
		return domain.VolatilityNormal
	}

	lastAbs := magnitudes[len(magnitudes)-1]
	history := magnitudes[:len(magnitudes)-1]

	switch {
	case lastAbs > stats.Percentile(history, 95):
		return domain.VolatilityExtreme
	case lastAbs > stats.Percentile(history, 90):
		return domain.VolatilityVeryHigh
	case lastAbs > stats.Percentile(history, 80):
		return domain.VolatilityHigh
	}
	return domain.VolatilityNormal
}

// volumeConsistency is the weighted fraction of bars whose RVOL exceeds
// 1.5, weights increasing linearly toward the present bar.
func volumeConsistency(volumes []float64, baselineMedian float64) float64 {
	weightedSum := 0.0
	totalWeight := 0.0
	for i, v := range volumes {
		weight := float64(i + 1)
		totalWeight += weight
		if v/baselineMedian > consistencyThreshold {
			weightedSum += weight
		}
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

func lastSMA(values []float64, period int) float64 {
	sma := trend.NewSmaWithPeriod[float64](period)
	out := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
	return out[len(out)-1]
}

func pctChange(from, to float64) domain.Metric {
	if from == 0 {
		return domain.Metric{}
	}
	return domain.NewMetric((to/from - 1) * 100)
}

func extract(candles []domain.Candle, field func(domain.Candle) float64) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = field(c)
	}
	return out
}
