package domain

import "strings"

// SectorMaps forward and reverse sector membership.
// Both maps are optional inputs: an empty value degrades sector
// correlation to zero without failing the scan.
type SectorMaps struct {
	// Sectors maps a normalized sector name to its member markets.
	Sectors map[string][]string
	// Tags maps a market to its raw sector tags, most significant first.
	Tags map[string][]string
}

// NormalizeTag strips a trailing parenthesized note from a sector tag,
// e.g. "AI (infra)" -> "AI".
func NormalizeTag(tag string) string {
	if idx := strings.Index(tag, "("); idx >= 0 {
		tag = tag[:idx]
	}
	return strings.TrimSpace(tag)
}

// BuildSectorMaps derives the forward map from raw market->tags data.
func BuildSectorMaps(raw map[string][]string) SectorMaps {
	sectors := make(map[string][]string)
	for market, tags := range raw {
		for _, tag := range tags {
			name := NormalizeTag(tag)
			if name == "" {
				continue
			}
			sectors[name] = append(sectors[name], market)
		}
	}
	return SectorMaps{Sectors: sectors, Tags: raw}
}

// PrimarySector returns the market's first sector tag, normalized.
func (s SectorMaps) PrimarySector(market string) (string, bool) {
	tags := s.Tags[market]
	if len(tags) == 0 {
		return "", false
	}
	name := NormalizeTag(tags[0])
	if name == "" {
		return "", false
	}
	return name, true
}

// Peers returns the members of the market's primary sector.
func (s SectorMaps) Peers(market string) []string {
	name, ok := s.PrimarySector(market)
	if !ok {
		return nil
	}
	return s.Sectors[name]
}
