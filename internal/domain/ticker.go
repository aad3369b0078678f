package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Ticker 24h snapshot for one market, used for ranking and briefing only.
type Ticker struct {
	Market string
	// Price is the latest trade price.
	Price decimal.Decimal
	// AccTradeValue24h is the cumulative traded value over the last 24h.
	AccTradeValue24h decimal.Decimal
}

// RankByTradeValue ranks markets by 24h traded value, 1 being the largest.
// Markets with zero or negative traded value are excluded.
func RankByTradeValue(tickers []Ticker) map[string]int {
	valid := make([]Ticker, 0, len(tickers))
	for _, t := range tickers {
		if t.AccTradeValue24h.GreaterThan(decimal.Zero) {
			valid = append(valid, t)
		}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].AccTradeValue24h.GreaterThan(valid[j].AccTradeValue24h)
	})

	ranks := make(map[string]int, len(valid))
	for i, t := range valid {
		ranks[t.Market] = i + 1
	}
	return ranks
}
