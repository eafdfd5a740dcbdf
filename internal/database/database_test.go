package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/stockbot/internal/notify"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "data", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNotifications(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	before := time.Now().Add(-time.Minute)

	require.NoError(t, db.RecordNotification(ctx, notify.Message{ChatID: 1, Kind: notify.KindVolume, Symbol: "AAPL", Text: "vol"}, nil))
	require.NoError(t, db.RecordNotification(ctx, notify.Message{ChatID: 1, Kind: notify.KindVolume, Symbol: "MSFT", Text: "vol"}, errors.New("status 403")))
	require.NoError(t, db.RecordNotification(ctx, notify.Message{ChatID: 2, Kind: notify.KindPrice, Symbol: "AAPL", Text: "price"}, nil))

	found, err := db.HasNotification(ctx, notify.KindVolume, "AAPL", before)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = db.HasNotification(ctx, notify.KindVolume, "MSFT", before)
	require.NoError(t, err)
	assert.False(t, found, "failed deliveries do not count")

	found, err = db.HasNotification(ctx, notify.KindVolume, "AAPL", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, found)

	recent, err := db.RecentNotifications(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "MSFT", recent[0].Symbol)
	assert.False(t, recent[0].Delivered)
	assert.Equal(t, "status 403", recent[0].Error)

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["total_notifications"])
	assert.Equal(t, int64(1), stats["failed_notifications"])
	assert.Equal(t, map[string]int64{"volume": 2, "price": 1}, stats["by_kind"])
}

func TestTrades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveTrade(ctx, &Trade{ChatID: 1, Symbol: "AAPL", Side: "BUY", Shares: decimal.NewFromInt(10), Price: decimal.NewFromInt(150)}))
	require.NoError(t, db.SaveTrade(ctx, &Trade{ChatID: 1, Symbol: "AAPL", Side: "SELL", Shares: decimal.NewFromInt(5), Price: decimal.NewFromInt(200), RealizedPL: decimal.NewFromInt(250)}))
	require.NoError(t, db.SaveTrade(ctx, &Trade{ChatID: 2, Symbol: "TSLA", Side: "SELL", Shares: decimal.NewFromInt(1), Price: decimal.NewFromInt(100), RealizedPL: decimal.NewFromInt(-50)}))

	total, err := db.GetTotalRealizedPL(ctx, 1)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(250)), total.String())
}
