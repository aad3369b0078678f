// Package collector fetches candle histories and 24h ticker snapshots
// from exchanges. Each scan works on one completed snapshot: markets
// whose fetch fails are simply absent from the candle map.
package collector

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/surge/internal/domain"
)

const defaultConcurrency = 8

// Provider defines the interface for fetching market data from one exchange.
type Provider interface {
	// Markets returns all market codes the scanner should cover.
	Markets(ctx context.Context) ([]string, error)
	// Candles fetches up to limit 10-minute bars for one market,
	// oldest first.
	Candles(ctx context.Context, market string, limit int) ([]domain.Candle, error)
	// Tickers returns the 24h snapshot for the given markets.
	Tickers(ctx context.Context, markets []string) ([]domain.Ticker, error)
}

// Collector gathers a full market snapshot from a provider, rate limited
// and with bounded concurrency.
type Collector struct {
	provider    Provider
	logger      *zap.Logger
	limiter     *rate.Limiter
	concurrency int
}

// New creates a collector. requestsPerSecond bounds the request rate
// against the exchange API.
func New(provider Provider, logger *zap.Logger, requestsPerSecond float64) *Collector {
	return &Collector{
		provider:    provider,
		logger:      logger,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		concurrency: defaultConcurrency,
	}
}

// Snapshot fetches tickers and candle histories for every market. A
// failed candle fetch excludes only that market; a failed market-list or
// ticker fetch fails the snapshot.
func (c *Collector) Snapshot(ctx context.Context) (map[string][]domain.Candle, []domain.Ticker, error) {
	markets, err := c.provider.Markets(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to list markets")
	}

	tickers, err := c.provider.Tickers(ctx, markets)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to fetch tickers")
	}

	candles := make(map[string][]domain.Candle, len(markets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, market := range markets {
		g.Go(func() error {
			if err := c.limiter.Wait(gctx); err != nil {
				return err
			}

			history, err := c.provider.Candles(gctx, market, domain.CandleWindow)
			if err != nil {
				c.logger.Warn("failed to fetch candles, market excluded from snapshot",
					zap.String("market", market), zap.Error(err))
				return nil
			}

			history = Normalize(history)
			if len(history) == 0 {
				return nil
			}

			mu.Lock()
			candles[market] = history
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, errors.Wrap(err, "snapshot aborted")
	}

	return candles, tickers, nil
}

// Normalize sorts candles ascending by timestamp, deduplicates bars with
// the same timestamp (keeping the later-fetched one) and trims the
// history to the sliding window.
func Normalize(candles []domain.Candle) []domain.Candle {
	if len(candles) == 0 {
		return candles
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	deduped := candles[:0]
	for _, candle := range candles {
		if len(deduped) > 0 && deduped[len(deduped)-1].Timestamp.Equal(candle.Timestamp) {
			deduped[len(deduped)-1] = candle
			continue
		}
		deduped = append(deduped, candle)
	}

	if len(deduped) > domain.CandleWindow {
		deduped = deduped[len(deduped)-domain.CandleWindow:]
	}
	return deduped
}

// AggregateBars merges consecutive bar pairs into one bar of doubled
// duration. Exchanges without native 10-minute candles serve 5-minute
// bars that are folded into the scanner's granularity here; a trailing
// unpaired bar is dropped.
func AggregateBars(candles []domain.Candle) []domain.Candle {
	out := make([]domain.Candle, 0, len(candles)/2)
	for i := 0; i+1 < len(candles); i += 2 {
		first, second := candles[i], candles[i+1]
		high := first.High
		if second.High.GreaterThan(high) {
			high = second.High
		}
		low := first.Low
		if second.Low.LessThan(low) {
			low = second.Low
		}
		out = append(out, domain.Candle{
			Market:    first.Market,
			Timestamp: first.Timestamp,
			Open:      first.Open,
			High:      high,
			Low:       low,
			Close:     second.Close,
			Volume:    first.Volume.Add(second.Volume),
		})
	}
	return out
}
