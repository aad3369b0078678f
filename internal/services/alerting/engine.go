// Package alerting decides, per market, whether a signal candidate
// becomes a user-visible alert, with what type and priority. The engine
// is a cooldown-aware state machine over persisted per-market episode
// history; it never mutates the history map it is given and returns a
// replacement map instead.
package alerting

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vadiminshakov/surge/internal/domain"
)

// accelerationMinChange1h 1h return beyond which a fresh move counts as
// acceleration rather than a plain breakout/breakdown.
const accelerationMinChange1h = 2.0

// Config tunable thresholds of the alert engine.
type Config struct {
	// MinPriceChange gatekeeper: minimum |10m change| in percent.
	MinPriceChange float64
	// MinConfidence gatekeeper: minimum detector confidence.
	MinConfidence float64
	// Cooldown window during which repeat alerts require a sustained move.
	Cooldown time.Duration
	// SustainedMinChange minimum additional move (percent) since the last
	// alert price to break through the cooldown.
	SustainedMinChange float64
	// HistoryTTL episodes idle longer than this are pruned.
	HistoryTTL time.Duration
}

// DefaultConfig returns the alert policy defaults.
func DefaultConfig() Config {
	return Config{
		MinPriceChange:     0.8,
		MinConfidence:      0.5,
		Cooldown:           60 * time.Minute,
		SustainedMinChange: 0.5,
		HistoryTTL:         24 * time.Hour,
	}
}

// Engine classifies candidates into alerts.
type Engine struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates an alert engine.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger, now: time.Now}
}

// Process evaluates candidates in detector order against the prior
// history and returns the emitted alerts sorted by priority descending
// (ties keep the detector's confidence ordering) together with the
// updated history map. The input history map is left untouched.
func (e *Engine) Process(
	candidates []domain.SignalCandidate,
	vectors map[string]*domain.FeatureVector,
	history map[string]domain.AlertHistory,
) ([]domain.Alert, map[string]domain.AlertHistory) {
	now := e.now()
	updated := e.pruneHistory(history, now)

	var alerts []domain.Alert
	for _, candidate := range candidates {
		if !e.worthAlerting(candidate) {
			continue
		}

		fv, ok := vectors[candidate.Market]
		if !ok {
			e.logger.Warn("no feature vector for candidate",
				zap.String("market", candidate.Market))
			continue
		}

		prev, hasPrev := updated[candidate.Market]
		signalType, priority, emit := e.classify(candidate, fv, prev, hasPrev, now)
		if !emit {
			continue
		}

		alert := domain.Alert{
			ID:        uuid.NewString(),
			Candidate: candidate,
			Features:  fv,
			Type:      signalType,
			Priority:  priority,
			CreatedAt: now,
		}
		alerts = append(alerts, alert)
		updated[candidate.Market] = nextHistory(prev, alert)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Priority > alerts[j].Priority
	})

	return alerts, updated
}

// worthAlerting is the gatekeeper: candidates that fail it are dropped
// with no side effects.
func (e *Engine) worthAlerting(c domain.SignalCandidate) bool {
	if math.Abs(c.PriceChange) < e.cfg.MinPriceChange {
		return false
	}
	return c.Confidence >= e.cfg.MinConfidence
}

// classify applies the state machine: no history or expired cooldown
// opens a new episode; within the cooldown only a sufficient additional
// move produces a sustained/failed continuation alert.
func (e *Engine) classify(
	candidate domain.SignalCandidate,
	fv *domain.FeatureVector,
	prev domain.AlertHistory,
	hasPrev bool,
	now time.Time,
) (domain.SignalType, int, bool) {
	change10m := fv.PriceChange10m.Or(0)
	change1h := fv.PriceChange1h.Or(0)

	newEpisode := !hasPrev || now.Sub(prev.LastAlertAt) >= e.cfg.Cooldown
	if newEpisode {
		switch {
		case change10m > 0 && change1h > accelerationMinChange1h:
			return domain.SignalMomentumAcceleration, 2, true
		case change10m > 0:
			return domain.SignalBreakoutStart, 3, true
		case change10m < 0 && change1h < -accelerationMinChange1h:
			return domain.SignalDowntrendAcceleration, 2, true
		case change10m < 0:
			return domain.SignalBreakdownStart, 3, true
		default:
			return domain.SignalUnusualActivity, 1, true
		}
	}

	prevPrice, _ := prev.LastPrice.Float64()
	if prevPrice == 0 {
		return "", 0, false
	}
	currentPrice, _ := candidate.CurrentPrice.Float64()
	additionalChange := (currentPrice/prevPrice - 1) * 100

	if math.Abs(additionalChange) < e.cfg.SustainedMinChange {
		e.logger.Debug("cooldown active without meaningful continuation",
			zap.String("market", candidate.Market),
			zap.Float64("additional_change_pct", additionalChange))
		return "", 0, false
	}

	switch {
	case prev.LastSignalType.Bullish() && additionalChange > 0:
		return domain.SignalBullMomentumSustained, 1, true
	case prev.LastSignalType.Bullish() && additionalChange < 0:
		return domain.SignalBullMomentumFailed, 2, true
	case prev.LastSignalType.Bearish() && additionalChange < 0:
		return domain.SignalBearMomentumSustained, 1, true
	case prev.LastSignalType.Bearish() && additionalChange > 0:
		return domain.SignalBearMomentumFailed, 2, true
	}
	return "", 0, false
}

// nextHistory returns the record to persist after emitting an alert. A
// new episode overwrites the record; a continuation updates the last
// alert fields and preserves the episode-initial ones.
func nextHistory(prev domain.AlertHistory, alert domain.Alert) domain.AlertHistory {
	if alert.Type.NewEpisode() {
		return domain.AlertHistory{
			Market:         alert.Candidate.Market,
			LastAlertAt:    alert.CreatedAt,
			LastSignalType: alert.Type,
			LastPrice:      alert.Candidate.CurrentPrice,
			LastRVOL:       alert.Candidate.RVOL,
			InitialAt:      alert.CreatedAt,
			InitialPrice:   alert.Candidate.CurrentPrice,
		}
	}

	prev.LastAlertAt = alert.CreatedAt
	prev.LastSignalType = alert.Type
	prev.LastPrice = alert.Candidate.CurrentPrice
	prev.LastRVOL = alert.Candidate.RVOL
	return prev
}

// pruneHistory copies the history, dropping markets idle beyond the TTL.
func (e *Engine) pruneHistory(history map[string]domain.AlertHistory, now time.Time) map[string]domain.AlertHistory {
	pruned := make(map[string]domain.AlertHistory, len(history))
	for market, record := range history {
		if now.Sub(record.LastAlertAt) > e.cfg.HistoryTTL {
			continue
		}
		pruned[market] = record
	}
	return pruned
}
