package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/stockbot/internal/alerts"
	"github.com/web3guy0/stockbot/internal/database"
	"github.com/web3guy0/stockbot/internal/portfolio"
	"github.com/web3guy0/stockbot/internal/sysstats"
)

type fakePrices map[string]decimal.Decimal

func (f fakePrices) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	p, ok := f[symbol]
	if !ok {
		return decimal.Zero, errors.New("no quote")
	}
	return p, nil
}

type fakeStats struct{}

func (fakeStats) Snapshot(context.Context) sysstats.Stats {
	return sysstats.Stats{CPU: &sysstats.CPU{UsagePercent: 12.5, Count: 4}}
}

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) RecentNotifications(ctx context.Context, chatID int64, limit int) ([]database.Notification, error) {
	args := m.Called(ctx, chatID, limit)
	list, _ := args.Get(0).([]database.Notification)
	return list, args.Error(1)
}

func (m *mockJournal) SaveTrade(ctx context.Context, trade *database.Trade) error {
	return m.Called(ctx, trade).Error(0)
}

func (m *mockJournal) GetTotalRealizedPL(ctx context.Context, chatID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, chatID)
	total, _ := args.Get(0).(decimal.Decimal)
	return total, args.Error(1)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestCommands(t *testing.T) (*Commands, fakePrices) {
	t.Helper()
	dir := t.TempDir()
	prices := fakePrices{
		"AAPL":  d("145"),
		"JPM":   d("90"),
		"TSLA":  d("250"),
		"BRK_B": d("410"),
	}
	store := alerts.NewStore(filepath.Join(dir, "stock_alerts.json"), prices)
	ledger := portfolio.NewLedger(filepath.Join(dir, "portfolio_data.json"), nil)
	return NewCommands(store, ledger, prices, fakeStats{}), prices
}

func run(c *Commands, chatID int64, line string) Reply {
	fields := strings.Fields(line)
	return c.Handle(context.Background(), chatID, strings.TrimPrefix(fields[0], "/"), fields[1:])
}

func TestSetListRemove(t *testing.T) {
	c, _ := newTestCommands(t)

	r := run(c, 1, "/set aapl 150 180")
	assert.True(t, r.Markdown)
	assert.Equal(t, "✅ Alert set for *AAPL*\nCurrent Price: $145.00\nLower Limit: $150.00\nUpper Limit: $180.00", r.Text)

	r = run(c, 1, "/list")
	assert.Contains(t, r.Text, "📊 *Your Active Alerts:*")
	assert.Contains(t, r.Text, "*AAPL*\n  Last Price: $145.00\n  Lower Limit: $150.00\n  Upper Limit: $180.00")

	assert.Equal(t, "📭 You have no active alerts. Use /set to create one!", run(c, 2, "/list").Text)
	assert.Equal(t, "❌ No alert found for AAPL", run(c, 2, "/remove AAPL").Text, "other chats cannot remove")
	assert.Equal(t, "✅ Alert removed for AAPL", run(c, 1, "/remove aapl").Text)
	assert.Equal(t, "❌ No alert found for AAPL", run(c, 1, "/remove AAPL").Text)
}

func TestSet_Errors(t *testing.T) {
	c, _ := newTestCommands(t)

	assert.Equal(t, "Usage: /set SYMBOL LOWER_LIMIT UPPER_LIMIT\nExample: /set AAPL 150 180", run(c, 1, "/set AAPL 150").Text)
	assert.Equal(t, "❌ Invalid numbers! Use: /set SYMBOL LOWER_LIMIT UPPER_LIMIT", run(c, 1, "/set AAPL low 180").Text)
	assert.Equal(t, "❌ Lower limit must be less than upper limit!", run(c, 1, "/set AAPL 180 150").Text)

	r := run(c, 1, "/set NOPE 1 2")
	assert.Contains(t, r.Text, "❌ Could not find stock symbol: *NOPE*")
	assert.Equal(t, "📭 You have no active alerts. Use /set to create one!", run(c, 1, "/list").Text)
}

func TestPrice(t *testing.T) {
	c, _ := newTestCommands(t)

	assert.Equal(t, "📈 *TSLA*\nCurrent Price: $250.00", run(c, 1, "/price tsla").Text)
	assert.Contains(t, run(c, 1, "/price XXX").Text, "❌ Could not find stock symbol: *XXX*")
	assert.Equal(t, "Usage: /price SYMBOL\nExample: /price AAPL", run(c, 1, "/price").Text)
}

func TestBuySell(t *testing.T) {
	c, _ := newTestCommands(t)

	r := run(c, 1, "/buy AAPL 10 150")
	assert.Contains(t, r.Text, "✅ *Purchase Recorded*")
	assert.Contains(t, r.Text, "Shares: 10\n")
	assert.Contains(t, r.Text, "Total Cost: $1,500.00")

	run(c, 1, "/buy AAPL 5 180")

	r = run(c, 1, "/sell AAPL 5 200")
	assert.Contains(t, r.Text, "✅ *Sale Recorded* 📈")
	assert.Contains(t, r.Text, "Total Proceeds: $1,000.00")
	assert.Contains(t, r.Text, "Realized P&L: $+200.00")

	assert.Equal(t, "❌ You only own 10 shares of AAPL", run(c, 1, "/sell AAPL 11 200").Text)
	assert.Equal(t, "❌ You don't own any MSFT", run(c, 1, "/sell MSFT 1 200").Text)
	assert.Equal(t, "❌ Shares and price must be positive numbers!", run(c, 1, "/buy AAPL -1 200").Text)
	assert.Contains(t, run(c, 1, "/buy AAPL ten 200").Text, "❌ Invalid input")
	assert.Contains(t, run(c, 1, "/sell AAPL").Text, "Usage: /sell SYMBOL SHARES PRICE")

	r = run(c, 1, "/sell AAPL 10 150")
	assert.Contains(t, r.Text, "📉")
	assert.Contains(t, r.Text, "Realized P&L: $-100.00")
	assert.Contains(t, run(c, 1, "/portfolio").Text, "📭 Your portfolio is empty!")
}

func TestPortfolioReport(t *testing.T) {
	c, prices := newTestCommands(t)
	prices["AAPL"] = d("210")
	c.SetFX("AUD", d("1.5"))

	run(c, 1, "/buy AAPL 10 150")
	run(c, 1, "/buy JPM 10 100")

	assert.Equal(t, "📊 Calculating portfolio...", c.Pending(1, "portfolio", nil))
	assert.Empty(t, c.Pending(2, "portfolio", nil))

	r := run(c, 1, "/portfolio")
	require.True(t, r.Markdown)
	assert.Contains(t, r.Text, "📊 *Your Portfolio* 📈")
	assert.Contains(t, r.Text, "*Total Value:* $3,000.00")
	assert.Contains(t, r.Text, "*Cost Basis:* $2,500.00")
	assert.Contains(t, r.Text, "*Profit/Loss:* $+500.00 (+20.00%)")
	assert.Contains(t, r.Text, "≈ $4,500.00 AUD")
	assert.Contains(t, r.Text, "✅ *AAPL*: 10.00 shares\n   $2,100.00 (+40.0%)")
	assert.Contains(t, r.Text, "❌ *JPM*: 10.00 shares\n   $900.00 (-10.0%)")
	assert.Contains(t, r.Text, "Technology: 70.0% ██████████████")
	assert.Contains(t, r.Text, "Finance: 30.0% ██████")
	assert.Contains(t, r.Text, "*Diversification Score:* 50/100")
	assert.Contains(t, r.Text, "• ❌ Technology: 70.0% - HIGHLY CONCENTRATED!")
	assert.Equal(t, 3, strings.Count(r.Text[strings.Index(r.Text, "*Warnings:*"):strings.Index(r.Text, "*Recommendations:*")], "• "))
}

func TestPortfolio_AllPricesMissing(t *testing.T) {
	c, _ := newTestCommands(t)
	run(c, 1, "/buy ZZZZ 1 10")
	assert.Equal(t, "❌ Error calculating portfolio values", run(c, 1, "/portfolio").Text)
}

func TestPositions(t *testing.T) {
	c, _ := newTestCommands(t)
	run(c, 1, "/buy TSLA 2 200")
	run(c, 1, "/buy TSLA 2 300")

	r := run(c, 1, "/positions tsla")
	assert.Contains(t, r.Text, "📈 *Position: TSLA*")
	assert.Contains(t, r.Text, "*Shares:* 4.00")
	assert.Contains(t, r.Text, "*Cost Basis:* $250.00")
	assert.Contains(t, r.Text, "*Unrealized P&L:* $+0.00 (+0.00%)")
	assert.Contains(t, r.Text, "*Sector:* Automotive")
	assert.Equal(t, 2, strings.Count(r.Text, "🟢 BUY: 2.00"))

	assert.Equal(t, "❌ You don't own any AAPL", run(c, 1, "/positions AAPL").Text)
}

func TestHistory(t *testing.T) {
	c, _ := newTestCommands(t)
	assert.Equal(t, "📭 No trade history yet!", run(c, 1, "/history").Text)

	for i := 0; i < 22; i++ {
		run(c, 1, "/buy AAPL 1 100")
	}
	run(c, 1, "/sell AAPL 2 110")

	r := run(c, 1, "/history")
	assert.Contains(t, r.Text, "🔴 SELL AAPL: 2.00 @ $110.00")
	assert.Contains(t, r.Text, "   P&L: $+20.00")
	assert.Contains(t, r.Text, "_Showing 20 of 23 trades_")
}

func TestSystemAndHelp(t *testing.T) {
	c, _ := newTestCommands(t)

	assert.Contains(t, run(c, 1, "/system").Text, "*CPU (4 cores)*")
	assert.Contains(t, run(c, 1, "/stats").Text, "Usage: 12.5%")
	assert.Contains(t, run(c, 1, "/start").Text, "/set AAPL 150 180")
	assert.Equal(t, "❓ Unknown command. Use /help for available commands.", run(c, 1, "/bogus").Text)
}

func TestRecentAndTradeJournal(t *testing.T) {
	c, _ := newTestCommands(t)
	assert.Equal(t, "📭 Notification journal is disabled.", run(c, 1, "/recent").Text)

	j := &mockJournal{}
	j.On("SaveTrade", mock.Anything, mock.MatchedBy(func(tr *database.Trade) bool {
		return tr.Symbol == "AAPL" && tr.Side == "BUY" && tr.Shares.Equal(d("3"))
	})).Return(errors.New("disk full")).Once()
	j.On("RecentNotifications", mock.Anything, int64(1), recentLimit).Return([]database.Notification{
		{Kind: "price", Symbol: "AAPL", Delivered: true, CreatedAt: time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)},
		{Kind: "session", Symbol: "OPEN", Delivered: false, CreatedAt: time.Date(2024, 6, 3, 13, 25, 0, 0, time.UTC)},
	}, nil).Once()
	c.SetJournal(j)

	r := run(c, 1, "/buy AAPL 3 100")
	assert.Contains(t, r.Text, "Purchase Recorded", "journal failures do not fail the command")

	r = run(c, 1, "/recent")
	assert.Contains(t, r.Text, "✅ price AAPL")
	assert.Contains(t, r.Text, "❌ session OPEN")
	j.AssertExpectations(t)
}

func TestPending(t *testing.T) {
	c, _ := newTestCommands(t)

	assert.Equal(t, "🔍 Checking AAPL...", c.Pending(1, "set", []string{"aapl", "1", "2"}))
	assert.Empty(t, c.Pending(1, "set", []string{"aapl", "x", "2"}))
	assert.Equal(t, "🔍 Fetching price for MSFT...", c.Pending(1, "price", []string{"msft"}))
	assert.Empty(t, c.Pending(1, "price", nil))
	assert.NotEmpty(t, c.Pending(1, "system", nil))
	assert.Empty(t, c.Pending(1, "list", nil))
}

func TestHistory_JournalRealizedPL(t *testing.T) {
	c, _ := newTestCommands(t)
	j := &mockJournal{}
	j.On("SaveTrade", mock.Anything, mock.Anything).Return(nil)
	j.On("GetTotalRealizedPL", mock.Anything, int64(1)).Return(d("-1234.5"), nil).Once()
	j.On("GetTotalRealizedPL", mock.Anything, int64(2)).Return(decimal.Zero, errors.New("db closed")).Once()
	c.SetJournal(j)

	run(c, 1, "/buy AAPL 1 100")
	run(c, 2, "/buy AAPL 1 100")

	assert.True(t, strings.HasSuffix(run(c, 1, "/history").Text, "*All-time Realized P&L:* $-1,234.50"))
	assert.NotContains(t, run(c, 2, "/history").Text, "All-time", "journal errors leave the report intact")
	j.AssertExpectations(t)
}

func TestMarkdownEscapesSymbols(t *testing.T) {
	c, _ := newTestCommands(t)

	assert.Equal(t, "📈 *BRK\\_B*\nCurrent Price: $410.00", run(c, 1, "/price brk_b").Text)
	assert.Contains(t, run(c, 1, "/set BRK_B 400 420").Text, "✅ Alert set for *BRK\\_B*")
	assert.Contains(t, run(c, 1, "/list").Text, "*BRK\\_B*\n")
	assert.Contains(t, run(c, 1, "/buy BRK_B 1 400").Text, "Symbol: BRK\\_B\n")
	assert.Contains(t, run(c, 1, "/history").Text, "🟢 BUY BRK\\_B: 1.00")
	assert.Equal(t, "✅ Alert removed for BRK_B", run(c, 1, "/remove BRK_B").Text, "plain replies stay unescaped")
}
