package sectors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sectors.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"KRW-SOL": ["Layer 1", "AI (infra)"],
		"KRW-ETH": ["Layer 1"],
		"KRW-DOGE": ["Meme"]
	}`), 0o644))

	maps, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"KRW-SOL", "KRW-ETH"}, maps.Sectors["Layer 1"])
	require.Equal(t, []string{"KRW-DOGE"}, maps.Sectors["Meme"])
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	maps, err := Load(filepath.Join(t.TempDir(), "absent.json"), zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, maps.Sectors)
}

func TestLoadEmptyPathDisablesSectors(t *testing.T) {
	maps, err := Load("", zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, maps.Sectors)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sectors.json")
	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))

	_, err := Load(path, zap.NewNop())
	require.Error(t, err)
}
