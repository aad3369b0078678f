// Package detector converts feature vectors into ranked, confidence
// scored signal candidates. Cross-sectional statistics are robust
// (median/MAD) so a handful of extreme markets cannot mask each other,
// and a market-wide event filter keeps systemic moves from flooding the
// alert pipeline.
package detector

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/vadiminshakov/surge/internal/domain"
	"github.com/vadiminshakov/surge/pkg/stats"
)

const (
	// madConsistency makes MAD comparable to a normal-distribution
	// standard deviation, so z-scores read like standard z-scores.
	madConsistency = 1.4826

	// minZSamples robust stats below this sample size are meaningless.
	minZSamples = 20

	minSectorPeers = 3

	// marketEventShare share of markets moving more than
	// marketEventChange in one direction that marks a systemic event.
	marketEventShare  = 0.7
	marketEventChange = 2.0
)

// Config tunable thresholds of the detector.
type Config struct {
	// ZScoreGate is the sole hard gate into scoring (robust z of RVOL).
	ZScoreGate float64
	// MinConfidence candidates scoring below it are dropped.
	MinConfidence float64
	Weights       Weights
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		ZScoreGate:    3.5,
		MinConfidence: 0.2,
		Weights:       DefaultWeights(),
	}
}

// Detector scores a batch of feature vectors.
type Detector struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a detector.
func New(cfg Config, logger *zap.Logger) *Detector {
	return &Detector{cfg: cfg, logger: logger}
}

// Detect returns candidates sorted by confidence descending. It writes
// each market's robust RVOL z-score back onto its feature vector as a
// side effect.
func (d *Detector) Detect(vectors map[string]*domain.FeatureVector, sectors domain.SectorMaps) []domain.SignalCandidate {
	markets := sortedMarkets(vectors)

	d.applyZScores(markets, vectors)
	volumePercentiles := latestVolumePercentiles(markets, vectors)

	var candidates []domain.SignalCandidate
	for _, market := range markets {
		fv := vectors[market]

		zScore, defined := fv.RVOLZScore.Value()
		if !defined || zScore <= d.cfg.ZScoreGate {
			continue
		}

		sectorCorr := sectorCorrelation(market, vectors, sectors)
		confidence := d.cfg.Weights.confidence(fv, zScore, sectorCorr, volumePercentiles[market])
		if confidence < d.cfg.MinConfidence {
			continue
		}

		price, ok := fv.LastClose()
		if !ok {
			continue
		}

		candidates = append(candidates, domain.SignalCandidate{
			Market:       market,
			Confidence:   confidence,
			PriceChange:  fv.PriceChange10m.Or(0),
			RVOL:         fv.RelativeVolume.Or(1),
			RVOLZScore:   zScore,
			Contexts:     buildContexts(fv, zScore),
			CurrentPrice: price,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	return d.filterMarketWideEvents(candidates, vectors)
}

// applyZScores computes the cross-sectional robust z-score of RVOL.
// Skipped entirely when the sample is too small or the distribution is
// degenerate (zero MAD); approximating would make scores incomparable.
func (d *Detector) applyZScores(markets []string, vectors map[string]*domain.FeatureVector) {
	var rvols []float64
	for _, market := range markets {
		if rvol, ok := vectors[market].RelativeVolume.Value(); ok && rvol > 0 {
			rvols = append(rvols, rvol)
		}
	}

	if len(rvols) < minZSamples {
		d.logger.Debug("too few RVOL samples for robust z-scoring",
			zap.Int("samples", len(rvols)))
		return
	}

	median := stats.Median(rvols)
	mad := stats.MAD(rvols)
	if mad == 0 {
		d.logger.Debug("degenerate RVOL distribution, skipping z-scoring")
		return
	}

	for _, market := range markets {
		fv := vectors[market]
		if rvol, ok := fv.RelativeVolume.Value(); ok && rvol > 0 {
			fv.RVOLZScore = domain.NewMetric((rvol - median) / (madConsistency * mad))
		}
	}
}

// latestVolumePercentiles ranks each market's latest-bar volume against
// the cross-sectional distribution (empirical CDF, ties resolved by the
// distribution).
func latestVolumePercentiles(markets []string, vectors map[string]*domain.FeatureVector) map[string]float64 {
	volumes := make([]float64, 0, len(markets))
	byMarket := make(map[string]float64, len(markets))
	for _, market := range markets {
		candles := vectors[market].Candles
		if len(candles) == 0 {
			continue
		}
		v, _ := candles[len(candles)-1].Volume.Float64()
		volumes = append(volumes, v)
		byMarket[market] = v
	}

	percentiles := make(map[string]float64, len(byMarket))
	if len(volumes) == 0 {
		return percentiles
	}
	sort.Float64s(volumes)

	for market, v := range byMarket {
		below := sort.SearchFloat64s(volumes, v)
		percentiles[market] = float64(below) / float64(len(volumes))
	}
	return percentiles
}

// sectorCorrelation measures how many sector peers move in the same
// direction as the candidate, rescaled so chance agreement (50%) maps to
// zero. Markets without a sector or with too few peers get zero.
func sectorCorrelation(market string, vectors map[string]*domain.FeatureVector, sectors domain.SectorMaps) float64 {
	target, ok := vectors[market]
	if !ok {
		return 0
	}
	targetChange, defined := target.PriceChange10m.Value()
	if !defined {
		return 0
	}

	var peerChanges []float64
	for _, peer := range sectors.Peers(market) {
		if peer == market {
			continue
		}
		fv, ok := vectors[peer]
		if !ok {
			continue
		}
		if change, ok := fv.PriceChange10m.Value(); ok {
			peerChanges = append(peerChanges, change)
		}
	}
	if len(peerChanges) < minSectorPeers {
		return 0
	}

	sameDirection := 0
	for _, change := range peerChanges {
		if (change > 0 && targetChange > 0) || (change < 0 && targetChange < 0) {
			sameDirection++
		}
	}

	correlation := float64(sameDirection) / float64(len(peerChanges))
	return math.Max(0, (correlation-0.5)*2)
}

// filterMarketWideEvents keeps only genuine outliers when more than 70%
// of markets show a strong move in the same direction.
func (d *Detector) filterMarketWideEvents(candidates []domain.SignalCandidate, vectors map[string]*domain.FeatureVector) []domain.SignalCandidate {
	total := len(vectors)
	if total == 0 {
		return candidates
	}

	gainers, losers := 0, 0
	var changes []float64
	for _, fv := range vectors {
		change, ok := fv.PriceChange10m.Value()
		if !ok {
			continue
		}
		changes = append(changes, change)
		if change > marketEventChange {
			gainers++
		} else if change < -marketEventChange {
			losers++
		}
	}

	isMarketEvent := float64(gainers)/float64(total) > marketEventShare ||
		float64(losers)/float64(total) > marketEventShare
	if !isMarketEvent {
		return candidates
	}

	avgChange := stats.Mean(changes)
	var extremes []domain.SignalCandidate
	for _, c := range candidates {
		if math.Abs(c.PriceChange) > math.Abs(avgChange)*2 {
			extremes = append(extremes, c)
		}
	}

	d.logger.Info("market-wide event detected, keeping extreme outliers only",
		zap.Int("gainers", gainers),
		zap.Int("losers", losers),
		zap.Float64("avg_change", avgChange),
		zap.Int("kept", len(extremes)),
		zap.Int("dropped", len(candidates)-len(extremes)))

	return extremes
}

func buildContexts(fv *domain.FeatureVector, zScore float64) []string {
	var contexts []string

	switch {
	case fv.Trend1h == domain.TrendUp && fv.Trend4h == domain.TrendUp:
		contexts = append(contexts, "short/mid-term momentum aligned")
	case fv.Trend1h == domain.TrendUp:
		contexts = append(contexts, "short-term upward momentum")
	case fv.Trend1h == domain.TrendDown && fv.Trend4h == domain.TrendDown:
		contexts = append(contexts, "short/mid-term decline aligned")
	case fv.Trend4h == domain.TrendDown:
		contexts = append(contexts, "mid-term downward momentum")
	}

	switch fv.Bollinger {
	case domain.BandSqueeze:
		contexts = append(contexts, "volatility squeeze (BB)")
	case domain.BandBreakoutUpper:
		contexts = append(contexts, "upper band breakout (BB)")
	case domain.BandBreakoutLower:
		contexts = append(contexts, "lower band breakdown (BB)")
	}

	rarity := map[domain.VolatilityTier]string{
		domain.VolatilityHigh:     "rarity ★☆☆",
		domain.VolatilityVeryHigh: "rarity ★★☆",
		domain.VolatilityExtreme:  "rarity ★★★",
	}
	if tag, ok := rarity[fv.VolatilityTier]; ok {
		contexts = append(contexts, tag)
	}

	switch fv.Decoupling {
	case domain.DecoupleStrong:
		contexts = append(contexts, "decoupled from reference basket")
	case domain.DecoupleAmplifiedBull:
		contexts = append(contexts, "amplifying basket upside")
	case domain.DecoupleAmplifiedBear:
		contexts = append(contexts, "amplifying basket downside")
	}

	contexts = append(contexts, fmt.Sprintf("RVOL z-score %.1f", zScore))

	return contexts
}

func sortedMarkets(vectors map[string]*domain.FeatureVector) []string {
	markets := make([]string, 0, len(vectors))
	for market := range vectors {
		markets = append(markets, market)
	}
	sort.Strings(markets)
	return markets
}
