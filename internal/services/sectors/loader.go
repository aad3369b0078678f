// Package sectors loads the optional market->sector tag file used for
// sector correlation scoring.
package sectors

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/surge/internal/domain"
)

// Load reads a JSON file mapping market codes to sector tags, e.g.
//
//	{"KRW-SOL": ["Layer 1", "AI (infra)"], "KRW-DOGE": ["Meme"]}
//
// A missing file is not an error: sector correlation then contributes
// zero to every confidence score.
func Load(path string, logger *zap.Logger) (domain.SectorMaps, error) {
	if path == "" {
		return domain.SectorMaps{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("sector file not found, sector correlation disabled",
				zap.String("path", path))
			return domain.SectorMaps{}, nil
		}
		return domain.SectorMaps{}, errors.Wrapf(err, "failed to read sector file %s", path)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.SectorMaps{}, errors.Wrapf(err, "failed to parse sector file %s", path)
	}

	maps := domain.BuildSectorMaps(raw)
	logger.Info("sector map loaded",
		zap.Int("markets", len(maps.Tags)),
		zap.Int("sectors", len(maps.Sectors)))
	return maps, nil
}
