package collector

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/surge/internal/domain"
)

// binanceInterval Binance has no native 10-minute candles; 5-minute bars
// are fetched and folded pairwise.
const binanceInterval = "5m"

// BinanceProvider implements Provider for Binance over a configured
// symbol universe.
type BinanceProvider struct {
	client  *binance.Client
	symbols []string
}

// NewBinanceProvider creates a Binance provider scanning the given symbols.
func NewBinanceProvider(client *binance.Client, symbols []string) *BinanceProvider {
	return &BinanceProvider{client: client, symbols: symbols}
}

// Markets returns the configured symbol universe.
func (p *BinanceProvider) Markets(_ context.Context) ([]string, error) {
	if len(p.symbols) == 0 {
		return nil, errors.New("no symbols configured for binance provider")
	}
	return p.symbols, nil
}

// Candles fetches 5-minute klines and aggregates them into 10-minute bars.
func (p *BinanceProvider) Candles(ctx context.Context, market string, limit int) ([]domain.Candle, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(market).
		Interval(binanceInterval).
		Limit(limit * 2).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", market)
	}

	candles := make([]domain.Candle, 0, len(klines))
	for i, k := range klines {
		open, err := decimal.NewFromString(k.Open)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse open price at index %d", i)
		}
		high, err := decimal.NewFromString(k.High)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse high price at index %d", i)
		}
		low, err := decimal.NewFromString(k.Low)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse low price at index %d", i)
		}
		closePrice, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse close price at index %d", i)
		}
		volume, err := decimal.NewFromString(k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse volume at index %d", i)
		}

		candles = append(candles, domain.Candle{
			Market:    market,
			Timestamp: time.Unix(0, k.OpenTime*int64(time.Millisecond)).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}

	return AggregateBars(candles), nil
}

// Tickers returns 24h stats for the configured symbols.
func (p *BinanceProvider) Tickers(ctx context.Context, markets []string) ([]domain.Ticker, error) {
	stats, err := p.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch 24h stats from Binance")
	}

	wanted := make(map[string]bool, len(markets))
	for _, m := range markets {
		wanted[m] = true
	}

	var tickers []domain.Ticker
	for _, s := range stats {
		if !wanted[s.Symbol] {
			continue
		}
		price, err := decimal.NewFromString(s.LastPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse last price for %s", s.Symbol)
		}
		quoteVolume, err := decimal.NewFromString(s.QuoteVolume)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse quote volume for %s", s.Symbol)
		}
		tickers = append(tickers, domain.Ticker{
			Market:           s.Symbol,
			Price:            price,
			AccTradeValue24h: quoteVolume,
		})
	}
	return tickers, nil
}
