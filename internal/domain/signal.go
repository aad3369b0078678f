package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType classification of an emitted alert.
type SignalType string

const (
	SignalBreakoutStart         SignalType = "BREAKOUT_START"
	SignalMomentumAcceleration  SignalType = "MOMENTUM_ACCELERATION"
	SignalBreakdownStart        SignalType = "BREAKDOWN_START"
	SignalDowntrendAcceleration SignalType = "DOWNTREND_ACCELERATION"
	SignalUnusualActivity       SignalType = "UNUSUAL_ACTIVITY"
	SignalBullMomentumSustained SignalType = "BULL_MOMENTUM_SUSTAINED"
	SignalBullMomentumFailed    SignalType = "BULL_MOMENTUM_FAILED"
	SignalBearMomentumSustained SignalType = "BEAR_MOMENTUM_SUSTAINED"
	SignalBearMomentumFailed    SignalType = "BEAR_MOMENTUM_FAILED"
)

// Bullish reports whether the signal opened or continued an upward episode.
func (s SignalType) Bullish() bool {
	switch s {
	case SignalBreakoutStart, SignalMomentumAcceleration,
		SignalBullMomentumSustained, SignalBullMomentumFailed:
		return true
	}
	return false
}

// Bearish reports whether the signal opened or continued a downward episode.
func (s SignalType) Bearish() bool {
	switch s {
	case SignalBreakdownStart, SignalDowntrendAcceleration,
		SignalBearMomentumSustained, SignalBearMomentumFailed:
		return true
	}
	return false
}

// NewEpisode reports whether the signal starts a fresh alert episode.
func (s SignalType) NewEpisode() bool {
	switch s {
	case SignalBreakoutStart, SignalMomentumAcceleration,
		SignalBreakdownStart, SignalDowntrendAcceleration,
		SignalUnusualActivity:
		return true
	}
	return false
}

// SignalCandidate a market that passed the anomaly detector's gate.
// Candidates are created fresh per scan and never persisted.
type SignalCandidate struct {
	Market string `json:"market"`
	// Confidence is the detector's multi-factor score in [0,1].
	Confidence float64 `json:"confidence"`
	// PriceChange is the 10m return in percent.
	PriceChange float64 `json:"price_change"`
	RVOL        float64 `json:"rvol"`
	RVOLZScore  float64 `json:"rvol_z_score"`
	// Contexts are human-readable tags explaining the score.
	Contexts     []string        `json:"contexts,omitempty"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// Alert a candidate that cleared the alert engine's state machine.
type Alert struct {
	ID        string          `json:"id"`
	Candidate SignalCandidate `json:"candidate"`
	Features  *FeatureVector  `json:"features,omitempty"`
	Type      SignalType      `json:"type"`
	Priority  int             `json:"priority"`
	CreatedAt time.Time       `json:"created_at"`
}

// AlertRecord an alert read back from the journal together with its
// position, so dashboard streams can resume from the last seen index.
type AlertRecord struct {
	Index uint64 `json:"index"`
	Alert Alert  `json:"alert"`
}

// AlertHistory persisted per-market episode state. A record is created on
// a new episode, updated in place while the episode continues, and pruned
// after 24h of inactivity.
type AlertHistory struct {
	Market         string          `json:"market"`
	LastAlertAt    time.Time       `json:"last_alert_at"`
	LastSignalType SignalType      `json:"last_signal_type"`
	LastPrice      decimal.Decimal `json:"last_price"`
	LastRVOL       float64         `json:"last_rvol"`
	InitialAt      time.Time       `json:"initial_at"`
	InitialPrice   decimal.Decimal `json:"initial_price"`
}
