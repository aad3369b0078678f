package alerts

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/surge/internal/domain"
)

const (
	DefaultDir   = "./wal/alerts"
	segmentLimit = 1000
	maxSegments  = 10

	alertKeyPrefix  = "alert_"
	historyStateKey = "history_state"
	rankStateKey    = "rank_state"
)

// WALStore persists emitted alerts, the per-market episode history and
// the last volume ranking in a WAL. Alerts form an append-only journal
// the dashboard streams from; the history and rank maps are written as
// full snapshots after each scan and the latest snapshot wins on load.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed alert store.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "alert_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init alert WAL")
	}

	return &WALStore{wal: wal}, nil
}

// SaveAlert appends an emitted alert to the journal.
func (s *WALStore) SaveAlert(alert domain.Alert) error {
	if s == nil || s.wal == nil {
		return errors.New("alert store is not initialized")
	}
	if alert.Candidate.Market == "" {
		return fmt.Errorf("alert market is required")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return errors.Wrap(err, "marshal alert")
	}

	key := fmt.Sprintf("%s%s", alertKeyPrefix, alert.Candidate.Market)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// SaveHistory writes the full episode history snapshot.
func (s *WALStore) SaveHistory(history map[string]domain.AlertHistory) error {
	if s == nil || s.wal == nil {
		return errors.New("alert store is not initialized")
	}

	payload, err := json.Marshal(history)
	if err != nil {
		return errors.Wrap(err, "marshal alert history")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, historyStateKey, payload)
}

// LoadHistory returns the most recent episode history snapshot, or an
// empty map when none was persisted yet.
func (s *WALStore) LoadHistory() (map[string]domain.AlertHistory, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("alert store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make(map[string]domain.AlertHistory)
	latest := s.latestSnapshot(historyStateKey)
	if latest == nil {
		return history, nil
	}
	if err := json.Unmarshal(latest, &history); err != nil {
		return nil, errors.Wrap(err, "decode alert history")
	}
	return history, nil
}

// SaveRanks writes the full volume-ranking snapshot.
func (s *WALStore) SaveRanks(ranks map[string]int) error {
	if s == nil || s.wal == nil {
		return errors.New("alert store is not initialized")
	}

	payload, err := json.Marshal(ranks)
	if err != nil {
		return errors.Wrap(err, "marshal rank state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, rankStateKey, payload)
}

// LoadRanks returns the most recent volume-ranking snapshot, or an empty
// map when none was persisted yet.
func (s *WALStore) LoadRanks() (map[string]int, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("alert store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ranks := make(map[string]int)
	latest := s.latestSnapshot(rankStateKey)
	if latest == nil {
		return ranks, nil
	}
	if err := json.Unmarshal(latest, &ranks); err != nil {
		return nil, errors.Wrap(err, "decode rank state")
	}
	return ranks, nil
}

// latestSnapshot scans the WAL for the newest record under key. Caller
// holds the lock.
func (s *WALStore) latestSnapshot(key string) []byte {
	var latest []byte
	for msg := range s.wal.Iterator() {
		if msg.Key == key {
			latest = msg.Value
		}
	}
	return latest
}

// AlertsAfter returns journal alerts written after the provided WAL index.
func (s *WALStore) AlertsAfter(index uint64) ([]domain.AlertRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("alert store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.AlertRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, alertKeyPrefix) {
			continue
		}

		var alert domain.Alert
		if err := json.Unmarshal(payload, &alert); err != nil {
			return nil, errors.Wrap(err, "decode alert")
		}
		records = append(records, domain.AlertRecord{Index: idx, Alert: alert})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("alert store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
