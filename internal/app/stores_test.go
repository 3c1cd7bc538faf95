package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hod-momentum-lab/internal/config"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/pipeline"
)

func TestOpenStores_MemoryWithCSV(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "minute"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "minute", "ABCD.csv"),
		[]byte("timestamp,open,high,low,close,volume\n2024-03-05 09:30,5,5.1,4.9,5,100\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "floats.csv"),
		[]byte("symbol,float_shares\nABCD,5000000\n"), 0o644))

	s, err := OpenStores(ctx, config.StorageConfig{Backend: config.BackendMemory, Bars: config.BarsCSV}, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	res, err := s.LoadCSV(ctx, dir, time.UTC, false, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, res.MinuteBars)
	assert.Equal(t, 1, res.Profiles)

	syms, err := s.Bars.Symbols(ctx, domain.ResolutionMinute)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABCD"}, syms)

	// Re-loading incrementally stores nothing new.
	res, err = s.LoadCSV(ctx, dir, time.UTC, true, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, res.MinuteBars)
}

func TestOpenStores_SQLiteSharedFile(t *testing.T) {
	ctx := context.Background()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	cfg := config.StorageConfig{
		Backend:    config.BackendSQLite,
		Bars:       config.BarsSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "lab.db"),
	}
	s, err := OpenStores(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, s.closers, 1, "one file is opened once")

	require.NoError(t, s.LoadDemo(ctx, loc))
	s.Close()

	reopened, err := OpenStores(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	syms, err := reopened.Bars.Symbols(ctx, domain.ResolutionMinute)
	require.NoError(t, err)
	assert.Len(t, syms, len(pipeline.DefaultFixtures))

	p, err := reopened.Profiles.Get(ctx, "ABCD")
	require.NoError(t, err)
	assert.NotNil(t, p.FloatShares)
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	_, err := OpenStores(context.Background(), config.StorageConfig{Backend: "mongo", Bars: config.BarsCSV}, zerolog.Nop())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = OpenStores(context.Background(), config.StorageConfig{Backend: config.BackendMemory, Bars: "parquet"}, zerolog.Nop())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
