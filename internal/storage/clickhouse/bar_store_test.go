package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

var sessionOpen = time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

func testBars(symbol string, n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Symbol:     symbol,
			Resolution: domain.ResolutionMinute,
			Timestamp:  sessionOpen.Add(time.Duration(i) * time.Minute),
			Open:       5,
			High:       5.1,
			Low:        4.9,
			Close:      5 + float64(i)/100,
			Volume:     int64(1000 * (i + 1)),
		}
	}
	return bars
}

func TestBarStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn)

	require.NoError(t, store.InsertBulk(ctx, testBars("ABCD", 10)))
	require.NoError(t, store.InsertBulk(ctx, testBars("WXYZ", 3)))

	bars, err := store.GetBySymbol(ctx, "ABCD", domain.ResolutionMinute)
	require.NoError(t, err)
	require.Len(t, bars, 10)
	assert.True(t, bars[0].Timestamp.Equal(sessionOpen))
	assert.Equal(t, int64(10_000), bars[9].Volume)
	assert.InDelta(t, 5.09, bars[9].Close, 1e-9)
	assert.Equal(t, domain.ResolutionMinute, bars[9].Resolution)

	ranged, err := store.GetByTimeRange(ctx, "ABCD", domain.ResolutionMinute, sessionOpen.Add(2*time.Minute), sessionOpen.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Len(t, ranged, 4)

	syms, err := store.Symbols(ctx, domain.ResolutionMinute)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABCD", "WXYZ"}, syms)

	daily, err := store.Symbols(ctx, domain.ResolutionDaily)
	require.NoError(t, err)
	assert.Empty(t, daily)
}

func TestBarStore_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn)

	require.NoError(t, store.InsertBulk(ctx, testBars("ABCD", 3)))

	err := store.InsertBulk(ctx, testBars("ABCD", 5))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	bars, err := store.GetBySymbol(ctx, "ABCD", domain.ResolutionMinute)
	require.NoError(t, err)
	assert.Len(t, bars, 3, "rejected batch must not be written")

	dup := testBars("WXYZ", 2)
	dup[1].Timestamp = dup[0].Timestamp
	assert.ErrorIs(t, store.InsertBulk(ctx, dup), storage.ErrDuplicateKey)
}

func TestParseDSN(t *testing.T) {
	opts, err := parseDSN("clickhouse://user:pw@db.local/bars")
	require.NoError(t, err)
	assert.Equal(t, []string{"db.local:9000"}, opts.Addr)
	assert.Equal(t, "user", opts.Auth.Username)
	assert.Equal(t, "pw", opts.Auth.Password)
	assert.Equal(t, "bars", opts.Auth.Database)
}
