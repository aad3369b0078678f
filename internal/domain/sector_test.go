package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTag(t *testing.T) {
	require.Equal(t, "AI", NormalizeTag("AI"))
	require.Equal(t, "AI", NormalizeTag("AI (infra)"))
	require.Equal(t, "Layer 1", NormalizeTag("Layer 1 (EVM)"))
	require.Equal(t, "", NormalizeTag("(only a note)"))
}

func TestBuildSectorMaps(t *testing.T) {
	raw := map[string][]string{
		"KRW-SOL":  {"Layer 1", "AI (infra)"},
		"KRW-ETH":  {"Layer 1 (EVM)"},
		"KRW-DOGE": {"Meme"},
	}

	maps := BuildSectorMaps(raw)

	require.ElementsMatch(t, []string{"KRW-SOL", "KRW-ETH"}, maps.Sectors["Layer 1"])
	require.Equal(t, []string{"KRW-SOL"}, maps.Sectors["AI"])
	require.Equal(t, []string{"KRW-DOGE"}, maps.Sectors["Meme"])
}

func TestPrimarySectorAndPeers(t *testing.T) {
	maps := BuildSectorMaps(map[string][]string{
		"KRW-SOL": {"Layer 1", "AI"},
		"KRW-ETH": {"Layer 1"},
		"KRW-XRP": {"Payments"},
	})

	sector, ok := maps.PrimarySector("KRW-SOL")
	require.True(t, ok)
	require.Equal(t, "Layer 1", sector)

	require.ElementsMatch(t, []string{"KRW-SOL", "KRW-ETH"}, maps.Peers("KRW-SOL"))

	_, ok = maps.PrimarySector("KRW-UNKNOWN")
	require.False(t, ok)
	require.Nil(t, maps.Peers("KRW-UNKNOWN"))
}
