package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle single OHLCV bar for one market.
// Candles are immutable once fetched and ordered ascending by timestamp.
type Candle struct {
	// Market is the exchange market code, e.g. "KRW-BTC".
	Market string
	// Timestamp is the bar open time (UTC).
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// CandleWindow is the maximum number of bars kept per market.
const CandleWindow = 200

// BarInterval is the bar granularity the scanner operates on.
const BarInterval = 10 * time.Minute
