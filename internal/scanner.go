package internal

import (
	"context"
	"fmt"
	"time"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/surge/config"
	"github.com/vadiminshakov/surge/internal/domain"
	"github.com/vadiminshakov/surge/internal/services/alerting"
	"github.com/vadiminshakov/surge/internal/services/detector"
	"github.com/vadiminshakov/surge/internal/services/indicators"
	"github.com/vadiminshakov/surge/internal/services/market/collector"
	"github.com/vadiminshakov/surge/internal/services/notifier"
	"github.com/vadiminshakov/surge/internal/services/sectors"
	"github.com/vadiminshakov/surge/internal/storage/alerts"
)

type alertStore interface {
	SaveAlert(alert domain.Alert) error
	SaveHistory(history map[string]domain.AlertHistory) error
	LoadHistory() (map[string]domain.AlertHistory, error)
	SaveRanks(ranks map[string]int) error
	LoadRanks() (map[string]int, error)
	Close() error
}

type briefingSender interface {
	Notify(ctx context.Context, text string, alerts []domain.Alert) error
}

// Scanner runs the full pipeline: collect candles, compute feature
// vectors, detect anomalies, classify alerts, persist and notify.
type Scanner struct {
	cfg       config.Config
	logger    *zap.Logger
	collector *collector.Collector
	engine    *indicators.Engine
	detector  *detector.Detector
	alerter   *alerting.Engine
	sectorMap domain.SectorMaps
	store     alertStore
	sender    briefingSender

	history   map[string]domain.AlertHistory
	prevRanks map[string]int
}

// NewScanner wires the pipeline from configuration and recovers the
// alert episode history from the WAL.
func NewScanner(cfg config.Config, logger *zap.Logger) (*Scanner, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create market data provider")
	}

	sectorMap, err := sectors.Load(cfg.SectorFile, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sector map")
	}

	store, err := alerts.NewWALStore(cfg.StateDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open alert store")
	}

	history, err := store.LoadHistory()
	if err != nil {
		store.Close()
		return nil, errors.Wrap(err, "failed to recover alert history")
	}

	prevRanks, err := store.LoadRanks()
	if err != nil {
		store.Close()
		return nil, errors.Wrap(err, "failed to recover rank state")
	}

	return &Scanner{
		cfg:       cfg,
		logger:    logger,
		collector: collector.New(provider, logger, cfg.RequestsPerSecond),
		engine:    indicators.NewEngine(logger, cfg.ReferenceBasket),
		detector:  detector.New(cfg.DetectorSettings(), logger),
		alerter:   alerting.NewEngine(cfg.AlertSettings(), logger),
		sectorMap: sectorMap,
		store:     store,
		sender:    notifier.NewWebhook(cfg.WebhookURL, logger),
		history:   history,
		prevRanks: prevRanks,
	}, nil
}

// newProvider is the single dispatch point for exchange-specific market
// data sources.
func newProvider(cfg config.Config) (collector.Provider, error) {
	switch cfg.Exchange {
	case "upbit":
		return collector.NewUpbitProvider(cfg.QuotePrefix), nil
	case "binance":
		return collector.NewBinanceProvider(binance.NewClient("", ""), cfg.Markets), nil
	case "bybit":
		return collector.NewBybitProvider(bybit.NewClient(), cfg.Markets), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", cfg.Exchange)
	}
}

// Store exposes the alert store for the dashboard.
func (s *Scanner) Store() *alerts.WALStore {
	store, _ := s.store.(*alerts.WALStore)
	return store
}

// Close releases the scanner's resources.
func (s *Scanner) Close() error {
	return s.store.Close()
}

// Run scans immediately and then on every tick until the context ends.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	s.logger.Info("starting scan loop",
		zap.String("exchange", s.cfg.Exchange),
		zap.Duration("interval", s.cfg.ScanInterval))

	if err := s.Scan(ctx); err != nil {
		s.logger.Error("scan failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("context done, stopping scan loop")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil {
				s.logger.Error("scan failed", zap.Error(err))
			}
		}
	}
}

// Scan executes one pipeline pass.
func (s *Scanner) Scan(ctx context.Context) error {
	started := time.Now()

	candles, tickers, err := s.collector.Snapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to collect market snapshot")
	}

	vectors := s.engine.Compute(candles)
	candidates := s.detector.Detect(vectors, s.sectorMap)
	emitted, history := s.alerter.Process(candidates, vectors, s.history)
	s.history = history

	for _, alert := range emitted {
		if err := s.store.SaveAlert(alert); err != nil {
			s.logger.Error("failed to persist alert",
				zap.String("market", alert.Candidate.Market), zap.Error(err))
		}
	}
	if err := s.store.SaveHistory(s.history); err != nil {
		s.logger.Error("failed to persist alert history", zap.Error(err))
	}

	ranks := domain.RankByTradeValue(tickers)
	movers := notifier.RankMovers(s.prevRanks, ranks)
	s.prevRanks = ranks
	if len(ranks) > 0 {
		if err := s.store.SaveRanks(ranks); err != nil {
			s.logger.Error("failed to persist rank state", zap.Error(err))
		}
	}

	if console := notifier.RenderConsole(emitted, movers); console != "" {
		fmt.Println(console)
	}
	if err := s.sender.Notify(ctx, notifier.Briefing(emitted, movers), emitted); err != nil {
		s.logger.Error("failed to send briefing", zap.Error(err))
	}

	s.logger.Info("scan complete",
		zap.Int("markets", len(candles)),
		zap.Int("candidates", len(candidates)),
		zap.Int("alerts", len(emitted)),
		zap.Duration("took", time.Since(started)))
	return nil
}
