package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/surge/internal/domain"
)

const (
	upbitBaseURL     = "https://api.upbit.com/v1"
	upbitTimeLayout  = "2006-01-02T15:04:05"
	upbitMaxRetries  = 3
	upbitHTTPTimeout = 10 * time.Second
)

// UpbitProvider implements Provider for the Upbit exchange. Upbit serves
// native 10-minute candles, so no aggregation is needed.
type UpbitProvider struct {
	httpClient *http.Client
	baseURL    string
	// quotePrefix restricts the universe, e.g. "KRW-".
	quotePrefix string
}

// NewUpbitProvider creates an Upbit provider covering markets with the
// given quote prefix (e.g. "KRW-").
func NewUpbitProvider(quotePrefix string) *UpbitProvider {
	return &UpbitProvider{
		httpClient:  &http.Client{Timeout: upbitHTTPTimeout},
		baseURL:     upbitBaseURL,
		quotePrefix: quotePrefix,
	}
}

type upbitMarket struct {
	Market string `json:"market"`
}

type upbitCandle struct {
	Market       string  `json:"market"`
	DateTimeUTC  string  `json:"candle_date_time_utc"`
	OpeningPrice float64 `json:"opening_price"`
	HighPrice    float64 `json:"high_price"`
	LowPrice     float64 `json:"low_price"`
	TradePrice   float64 `json:"trade_price"`
	AccVolume    float64 `json:"candle_acc_trade_volume"`
}

type upbitTicker struct {
	Market           string  `json:"market"`
	TradePrice       float64 `json:"trade_price"`
	AccTradePrice24h float64 `json:"acc_trade_price_24h"`
}

// Markets returns all Upbit markets matching the configured quote prefix.
func (p *UpbitProvider) Markets(ctx context.Context) ([]string, error) {
	var all []upbitMarket
	if err := p.getJSON(ctx, p.baseURL+"/market/all", &all); err != nil {
		return nil, errors.Wrap(err, "failed to fetch upbit market list")
	}

	var markets []string
	for _, m := range all {
		if strings.HasPrefix(m.Market, p.quotePrefix) {
			markets = append(markets, m.Market)
		}
	}
	return markets, nil
}

// Candles fetches 10-minute candles, oldest first.
func (p *UpbitProvider) Candles(ctx context.Context, market string, limit int) ([]domain.Candle, error) {
	endpoint := fmt.Sprintf("%s/candles/minutes/10?market=%s&count=%d",
		p.baseURL, url.QueryEscape(market), limit)

	var raw []upbitCandle
	if err := p.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch upbit candles for %s", market)
	}

	// Upbit returns newest first.
	candles := make([]domain.Candle, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		c := raw[i]
		ts, err := time.ParseInLocation(upbitTimeLayout, c.DateTimeUTC, time.UTC)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse candle timestamp %q", c.DateTimeUTC)
		}
		candles = append(candles, domain.Candle{
			Market:    market,
			Timestamp: ts,
			Open:      decimal.NewFromFloat(c.OpeningPrice),
			High:      decimal.NewFromFloat(c.HighPrice),
			Low:       decimal.NewFromFloat(c.LowPrice),
			Close:     decimal.NewFromFloat(c.TradePrice),
			Volume:    decimal.NewFromFloat(c.AccVolume),
		})
	}
	return candles, nil
}

// Tickers fetches the 24h snapshot for all markets in one request.
func (p *UpbitProvider) Tickers(ctx context.Context, markets []string) ([]domain.Ticker, error) {
	if len(markets) == 0 {
		return nil, nil
	}

	endpoint := p.baseURL + "/ticker?markets=" + url.QueryEscape(strings.Join(markets, ","))
	var raw []upbitTicker
	if err := p.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to fetch upbit tickers")
	}

	tickers := make([]domain.Ticker, 0, len(raw))
	for _, t := range raw {
		tickers = append(tickers, domain.Ticker{
			Market:           t.Market,
			Price:            decimal.NewFromFloat(t.TradePrice),
			AccTradeValue24h: decimal.NewFromFloat(t.AccTradePrice24h),
		})
	}
	return tickers, nil
}

// getJSON performs a GET with exponential-backoff retry. Client errors
// (4xx) are permanent and not retried.
func (p *UpbitProvider) getJSON(ctx context.Context, endpoint string, target any) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := errors.Errorf("upbit returned %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}

		return json.NewDecoder(resp.Body).Decode(target)
	}

	return backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), upbitMaxRetries), ctx))
}
