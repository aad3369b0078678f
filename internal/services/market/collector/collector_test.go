package collector

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/surge/internal/domain"
)

func bar(ts time.Time, closePrice, volume float64) domain.Candle {
	p := decimal.NewFromFloat(closePrice)
	return domain.Candle{
		Market:    "KRW-BTC",
		Timestamp: ts,
		Open:      p,
		High:      p,
		Low:       p,
		Close:     p,
		Volume:    decimal.NewFromFloat(volume),
	}
}

func TestNormalize(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	candles := []domain.Candle{
		bar(base.Add(20*time.Minute), 3, 1),
		bar(base, 1, 1),
		bar(base.Add(10*time.Minute), 2, 1),
		// duplicate timestamp: the later-fetched bar wins
		bar(base.Add(10*time.Minute), 99, 9),
	}

	got := Normalize(candles)
	require.Len(t, got, 3)
	require.True(t, got[0].Timestamp.Equal(base))
	require.True(t, got[1].Close.Equal(decimal.NewFromInt(99)))
	require.True(t, got[2].Timestamp.Equal(base.Add(20*time.Minute)))
}

func TestNormalizeTrimsToWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, domain.CandleWindow+50)
	for i := range candles {
		candles[i] = bar(base.Add(time.Duration(i)*domain.BarInterval), float64(i), 1)
	}

	got := Normalize(candles)
	require.Len(t, got, domain.CandleWindow)
	// the oldest bars are the ones trimmed
	require.True(t, got[0].Close.Equal(decimal.NewFromInt(50)))
}

func TestAggregateBars(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	five := func(i int, open, high, low, closePrice, volume float64) domain.Candle {
		return domain.Candle{
			Market:    "BTCUSDT",
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      decimal.NewFromFloat(open),
			High:      decimal.NewFromFloat(high),
			Low:       decimal.NewFromFloat(low),
			Close:     decimal.NewFromFloat(closePrice),
			Volume:    decimal.NewFromFloat(volume),
		}
	}

	candles := []domain.Candle{
		five(0, 100, 105, 99, 102, 10),
		five(1, 102, 110, 101, 108, 20),
		five(2, 108, 109, 107, 108, 5),
		// trailing unpaired bar is dropped
	}

	got := AggregateBars(candles)
	require.Len(t, got, 1)

	merged := got[0]
	require.True(t, merged.Timestamp.Equal(base))
	require.True(t, merged.Open.Equal(decimal.NewFromInt(100)))
	require.True(t, merged.High.Equal(decimal.NewFromInt(110)))
	require.True(t, merged.Low.Equal(decimal.NewFromInt(99)))
	require.True(t, merged.Close.Equal(decimal.NewFromInt(108)))
	require.True(t, merged.Volume.Equal(decimal.NewFromInt(30)))
}

type fakeProvider struct {
	markets []string
	candles map[string][]domain.Candle
	fail    map[string]bool
}

func (p *fakeProvider) Markets(context.Context) ([]string, error) {
	return p.markets, nil
}

func (p *fakeProvider) Candles(_ context.Context, market string, _ int) ([]domain.Candle, error) {
	if p.fail[market] {
		return nil, errors.New("boom")
	}
	return p.candles[market], nil
}

func (p *fakeProvider) Tickers(_ context.Context, markets []string) ([]domain.Ticker, error) {
	tickers := make([]domain.Ticker, 0, len(markets))
	for _, m := range markets {
		tickers = append(tickers, domain.Ticker{Market: m, AccTradeValue24h: decimal.NewFromInt(1)})
	}
	return tickers, nil
}

func TestSnapshotToleratesPerMarketFailures(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		markets: []string{"KRW-BTC", "KRW-ETH", "KRW-BAD"},
		candles: map[string][]domain.Candle{
			"KRW-BTC": {bar(base, 1, 1)},
			"KRW-ETH": {bar(base, 2, 1)},
		},
		fail: map[string]bool{"KRW-BAD": true},
	}

	c := New(provider, zap.NewNop(), 100)
	candles, tickers, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, candles, 2)
	require.NotContains(t, candles, "KRW-BAD")
	require.Len(t, tickers, 3)
}
