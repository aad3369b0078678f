package collector

import (
	"context"
	"strconv"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/surge/internal/domain"
)

// bybitInterval Bybit has no native 10-minute candles; 5-minute bars are
// fetched and folded pairwise.
const bybitInterval = bybit.Interval("5")

// BybitProvider implements Provider for Bybit spot over a configured
// symbol universe.
type BybitProvider struct {
	client  *bybit.Client
	symbols []string
}

// NewBybitProvider creates a Bybit provider scanning the given symbols.
func NewBybitProvider(client *bybit.Client, symbols []string) *BybitProvider {
	return &BybitProvider{client: client, symbols: symbols}
}

// Markets returns the configured symbol universe.
func (p *BybitProvider) Markets(_ context.Context) ([]string, error) {
	if len(p.symbols) == 0 {
		return nil, errors.New("no symbols configured for bybit provider")
	}
	return p.symbols, nil
}

// Candles fetches 5-minute klines and aggregates them into 10-minute bars.
func (p *BybitProvider) Candles(ctx context.Context, market string, limit int) ([]domain.Candle, error) {
	fetchLimit := limit * 2
	resp, err := p.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(market),
		Interval: bybitInterval,
		Limit:    &fetchLimit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", market)
	}

	list := resp.Result.List
	// Bybit returns newest first.
	candles := make([]domain.Candle, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		item := list[i]
		startMs, err := strconv.ParseInt(item.StartTime, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse kline start time %q", item.StartTime)
		}
		open, err := decimal.NewFromString(item.Open)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse open price at index %d", i)
		}
		high, err := decimal.NewFromString(item.High)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse high price at index %d", i)
		}
		low, err := decimal.NewFromString(item.Low)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse low price at index %d", i)
		}
		closePrice, err := decimal.NewFromString(item.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse close price at index %d", i)
		}
		volume, err := decimal.NewFromString(item.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse volume at index %d", i)
		}

		candles = append(candles, domain.Candle{
			Market:    market,
			Timestamp: time.Unix(0, startMs*int64(time.Millisecond)).UTC(),
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
func (p *BybitProvider) Tickers(_ context.Context, markets []string) ([]domain.Ticker, error) {
	resp, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch tickers from Bybit")
	}
	if resp.Result.Spot == nil {
		return nil, errors.New("bybit tickers response has no spot section")
	}

	wanted := make(map[string]bool, len(markets))
	for _, m := range markets {
		wanted[m] = true
	}

	var tickers []domain.Ticker
	for _, item := range resp.Result.Spot.List {
		symbol := string(item.Symbol)
		if !wanted[symbol] {
			continue
		}
		price, err := decimal.NewFromString(item.LastPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse last price for %s", symbol)
		}
		turnover, err := decimal.NewFromString(item.Turnover24H)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse 24h turnover for %s", symbol)
		}
		tickers = append(tickers, domain.Ticker{
			Market:           symbol,
			Price:            price,
			AccTradeValue24h: turnover,
		})
	}
	return tickers, nil
}
