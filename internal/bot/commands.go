package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/stockbot/internal/alerts"
	"github.com/web3guy0/stockbot/internal/database"
	"github.com/web3guy0/stockbot/internal/portfolio"
	"github.com/web3guy0/stockbot/internal/sysstats"
)

const (
	historyLimit  = 20
	positionTrail = 5
	reportTop     = 3
	recentLimit   = 10
)

// PriceLookup resolves a symbol to its current price.
type PriceLookup interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// StatsSource samples the host.
type StatsSource interface {
	Snapshot(ctx context.Context) sysstats.Stats
}

// Journal is the optional notification and trade journal.
type Journal interface {
	RecentNotifications(ctx context.Context, chatID int64, limit int) ([]database.Notification, error)
	SaveTrade(ctx context.Context, trade *database.Trade) error
	GetTotalRealizedPL(ctx context.Context, chatID int64) (decimal.Decimal, error)
}

// Reply is a command's response.
type Reply struct {
	Text     string
	Markdown bool
}

func markdown(format string, args ...any) Reply {
	return Reply{Text: fmt.Sprintf(format, args...), Markdown: true}
}

func plain(format string, args ...any) Reply {
	return Reply{Text: fmt.Sprintf(format, args...)}
}

// Commands implements every chat command without touching Telegram, so the
// handlers can be driven directly.
type Commands struct {
	alerts  *alerts.Store
	ledger  *portfolio.Ledger
	prices  PriceLookup
	stats   StatsSource
	journal Journal

	fxCurrency string
	fxRate     decimal.Decimal
}

// NewCommands wires the command handlers. stats may be nil.
func NewCommands(store *alerts.Store, ledger *portfolio.Ledger, prices PriceLookup, stats StatsSource) *Commands {
	return &Commands{
		alerts: store,
		ledger: ledger,
		prices: prices,
		stats:  stats,
	}
}

// SetJournal enables /recent, trade journaling and the all-time realized
// P&L line in /history.
func (c *Commands) SetJournal(j Journal) {
	c.journal = j
}

// SetFX adds a converted total to the portfolio report. A zero rate or empty
// currency disables the line.
func (c *Commands) SetFX(currency string, rate decimal.Decimal) {
	c.fxCurrency = currency
	c.fxRate = rate
}

// Pending returns the placeholder to show while a slow command runs, or ""
// when the command answers immediately.
func (c *Commands) Pending(chatID int64, command string, args []string) string {
	switch command {
	case "set":
		if _, _, _, err := parseThreeArgs(args); err == nil {
			return fmt.Sprintf("🔍 Checking %s...", strings.ToUpper(args[0]))
		}
	case "price":
		if len(args) == 1 {
			return fmt.Sprintf("🔍 Fetching price for %s...", strings.ToUpper(args[0]))
		}
	case "portfolio":
		if len(c.ledger.Positions(chatID)) > 0 {
			return "📊 Calculating portfolio..."
		}
	case "system", "stats":
		return "🖥️ Collecting system stats..."
	}
	return ""
}

// Handle runs command for chatID. Unknown commands get a hint.
func (c *Commands) Handle(ctx context.Context, chatID int64, command string, args []string) Reply {
	switch command {
	case "start", "help":
		return c.cmdHelp()
	case "set":
		return c.cmdSet(ctx, chatID, args)
	case "list":
		return c.cmdList(chatID)
	case "remove":
		return c.cmdRemove(chatID, args)
	case "price":
		return c.cmdPrice(ctx, args)
	case "buy":
		return c.cmdBuy(ctx, chatID, args)
	case "sell":
		return c.cmdSell(ctx, chatID, args)
	case "portfolio":
		return c.cmdPortfolio(ctx, chatID)
	case "positions":
		return c.cmdPositions(ctx, chatID, args)
	case "history":
		return c.cmdHistory(ctx, chatID)
	case "system", "stats":
		return c.cmdSystem(ctx)
	case "recent":
		return c.cmdRecent(ctx, chatID)
	default:
		return plain("❓ Unknown command. Use /help for available commands.")
	}
}

func (c *Commands) cmdHelp() Reply {
	return markdown(`🤖 *Stock Price Monitor Bot*

*Alerts:*
/set - Set price alerts for a stock
/list - View all your alerts
/remove - Remove a stock alert
/price - Check current stock price

*Portfolio:*
/buy SYMBOL SHARES PRICE - Record a purchase
/sell SYMBOL SHARES PRICE - Record a sale
/portfolio - Value and diversification report
/positions SYMBOL - Details for one holding
/history - Recent trades

*System:*
/system - Host CPU, memory and disk
/recent - Last notifications sent here
/help - Show this help message

*How to set alerts:*
/set AAPL 150 180
This sets alerts for Apple stock with lower limit $150 and upper limit $180

*Stock symbols:* Use Yahoo Finance symbols (e.g., AAPL, TSLA, GOOGL, MSFT)`)
}

// Alerts

func (c *Commands) cmdSet(ctx context.Context, chatID int64, args []string) Reply {
	if len(args) != 3 {
		return plain("Usage: /set SYMBOL LOWER_LIMIT UPPER_LIMIT\nExample: /set AAPL 150 180")
	}
	symbol, lower, upper, err := parseThreeArgs(args)
	if err != nil {
		return plain("❌ Invalid numbers! Use: /set SYMBOL LOWER_LIMIT UPPER_LIMIT")
	}

	price, err := c.alerts.Set(ctx, symbol, lower, upper, chatID)
	switch {
	case errors.Is(err, alerts.ErrInvalidRange):
		return plain("❌ Lower limit must be less than upper limit!")
	case errors.Is(err, alerts.ErrSymbolNotFound):
		return markdown("❌ Could not find stock symbol: *%s*\n\n"+
			"Tips:\n"+
			"• Make sure the symbol is correct (e.g., AAPL not APPLE)\n"+
			"• Use Yahoo Finance symbols\n"+
			"• Try checking the symbol on yahoo.com/finance first", md(symbol))
	case err != nil:
		return plain("❌ Error: %v", err)
	}

	return markdown("✅ Alert set for *%s*\n"+
		"Current Price: $%s\n"+
		"Lower Limit: $%s\n"+
		"Upper Limit: $%s",
		md(symbol), price.StringFixed(2), lower.StringFixed(2), upper.StringFixed(2))
}

func (c *Commands) cmdList(chatID int64) Reply {
	list := c.alerts.List(chatID)
	if len(list) == 0 {
		return plain("📭 You have no active alerts. Use /set to create one!")
	}

	var b strings.Builder
	b.WriteString("📊 *Your Active Alerts:*\n\n")
	for _, a := range list {
		fmt.Fprintf(&b, "*%s*\n", md(a.Symbol))
		fmt.Fprintf(&b, "  Last Price: $%s\n", a.LastPrice.StringFixed(2))
		fmt.Fprintf(&b, "  Lower Limit: $%s\n", a.LowerLimit.StringFixed(2))
		fmt.Fprintf(&b, "  Upper Limit: $%s\n\n", a.UpperLimit.StringFixed(2))
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n"), Markdown: true}
}

func (c *Commands) cmdRemove(chatID int64, args []string) Reply {
	if len(args) != 1 {
		return plain("Usage: /remove SYMBOL\nExample: /remove AAPL")
	}
	symbol := strings.ToUpper(args[0])
	if !c.alerts.Remove(symbol, chatID) {
		return plain("❌ No alert found for %s", symbol)
	}
	return plain("✅ Alert removed for %s", symbol)
}

func (c *Commands) cmdPrice(ctx context.Context, args []string) Reply {
	if len(args) != 1 {
		return plain("Usage: /price SYMBOL\nExample: /price AAPL")
	}
	symbol := strings.ToUpper(args[0])

	price, err := c.prices.Price(ctx, symbol)
	if err != nil {
		return markdown("❌ Could not find stock symbol: *%s*\n\n"+
			"Make sure you're using the correct Yahoo Finance ticker.", md(symbol))
	}
	return markdown("📈 *%s*\nCurrent Price: $%s", md(symbol), price.StringFixed(2))
}

// Portfolio

func (c *Commands) cmdBuy(ctx context.Context, chatID int64, args []string) Reply {
	if len(args) != 3 {
		return plain("Usage: /buy SYMBOL SHARES PRICE\n\n" +
			"Example: /buy AAPL 10 150.50\n" +
			"This records buying 10 shares of Apple at $150.50")
	}
	symbol, shares, price, err := parseThreeArgs(args)
	if err != nil {
		return plain("❌ Invalid input: %v", err)
	}

	if _, err := c.ledger.Buy(chatID, symbol, shares, price); err != nil {
		return plain("❌ %s!", capitalize(err.Error()))
	}
	c.journalTrade(ctx, &database.Trade{ChatID: chatID, Symbol: symbol, Side: string(portfolio.Buy), Shares: shares, Price: price})

	return markdown("✅ *Purchase Recorded*\n\n"+
		"Symbol: %s\n"+
		"Shares: %s\n"+
		"Price: $%s\n"+
		"Total Cost: $%s\n\n"+
		"Use /portfolio to see your complete portfolio",
		md(symbol), shares.String(), price.StringFixed(2), money(shares.Mul(price)))
}

func (c *Commands) cmdSell(ctx context.Context, chatID int64, args []string) Reply {
	if len(args) != 3 {
		return plain("Usage: /sell SYMBOL SHARES PRICE\n\n" +
			"Example: /sell AAPL 5 175.00\n" +
			"This records selling 5 shares of Apple at $175.00")
	}
	symbol, shares, price, err := parseThreeArgs(args)
	if err != nil {
		return plain("❌ Invalid input: %v", err)
	}

	realized, err := c.ledger.Sell(chatID, symbol, shares, price)
	switch {
	case errors.Is(err, portfolio.ErrNoSuchPosition):
		return plain("❌ You don't own any %s", symbol)
	case errors.Is(err, portfolio.ErrInsufficientShares):
		held, _ := c.ledger.Position(chatID, symbol)
		return plain("❌ You only own %s shares of %s", held.Shares.String(), symbol)
	case err != nil:
		return plain("❌ %s!", capitalize(err.Error()))
	}
	c.journalTrade(ctx, &database.Trade{ChatID: chatID, Symbol: symbol, Side: string(portfolio.Sell), Shares: shares, Price: price, RealizedPL: realized})

	return markdown("✅ *Sale Recorded* %s\n\n"+
		"Symbol: %s\n"+
		"Shares: %s\n"+
		"Price: $%s\n"+
		"Total Proceeds: $%s\n"+
		"Realized P&L: $%s\n\n"+
		"Use /portfolio to see your updated portfolio",
		trendEmoji(realized), md(symbol), shares.String(), price.StringFixed(2),
		money(shares.Mul(price)), signedMoney(realized))
}

func (c *Commands) cmdPortfolio(ctx context.Context, chatID int64) Reply {
	v := c.ledger.Valuate(ctx, chatID, c.prices)
	if v == nil {
		return plain("📭 Your portfolio is empty!\n\n" +
			"Use /buy to add your first position:\n" +
			"/buy AAPL 10 150.50")
	}
	if len(v.Holdings) == 0 {
		return plain("❌ Error calculating portfolio values")
	}
	return Reply{Text: formatPortfolio(v, portfolio.Analyze(v), c.fxCurrency, c.fxRate), Markdown: true}
}

func (c *Commands) cmdPositions(ctx context.Context, chatID int64, args []string) Reply {
	if len(args) != 1 {
		return plain("Usage: /positions SYMBOL\n\n" +
			"Example: /positions AAPL\n" +
			"Shows detailed information about your AAPL position")
	}
	symbol := strings.ToUpper(args[0])

	p, ok := c.ledger.Position(chatID, symbol)
	if !ok {
		return plain("❌ You don't own any %s", symbol)
	}
	price, err := c.prices.Price(ctx, symbol)
	if err != nil {
		return plain("❌ Could not fetch price for %s", symbol)
	}

	h := portfolio.MarkToMarket(p, price, c.ledger.Sectors().Sector(symbol))
	return Reply{Text: formatPosition(p, h), Markdown: true}
}

func (c *Commands) cmdHistory(ctx context.Context, chatID int64) Reply {
	trades := c.ledger.History(chatID)
	if len(trades) == 0 {
		return plain("📭 No trade history yet!")
	}

	text := formatHistory(trades, historyLimit)
	if c.journal != nil {
		total, err := c.journal.GetTotalRealizedPL(ctx, chatID)
		if err != nil {
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to read realized P&L")
		} else {
			text += fmt.Sprintf("\n\n*All-time Realized P&L:* $%s", signedMoney(total))
		}
	}
	return Reply{Text: text, Markdown: true}
}

// System

func (c *Commands) cmdSystem(ctx context.Context) Reply {
	if c.stats == nil {
		return plain("❌ Could not retrieve system stats")
	}
	return Reply{Text: sysstats.Format(c.stats.Snapshot(ctx)), Markdown: true}
}

func (c *Commands) cmdRecent(ctx context.Context, chatID int64) Reply {
	if c.journal == nil {
		return plain("📭 Notification journal is disabled.")
	}
	list, err := c.journal.RecentNotifications(ctx, chatID, recentLimit)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to read journal")
		return plain("❌ Error: %v", err)
	}
	if len(list) == 0 {
		return plain("📭 No notifications sent to this chat yet.")
	}
	return Reply{Text: formatRecent(list), Markdown: true}
}

func (c *Commands) journalTrade(ctx context.Context, t *database.Trade) {
	if c.journal == nil {
		return
	}
	if err := c.journal.SaveTrade(ctx, t); err != nil {
		log.Warn().Err(err).Str("symbol", t.Symbol).Msg("Failed to journal trade")
	}
}

// parseThreeArgs parses SYMBOL NUMBER NUMBER.
func parseThreeArgs(args []string) (string, decimal.Decimal, decimal.Decimal, error) {
	if len(args) != 3 {
		return "", decimal.Zero, decimal.Zero, fmt.Errorf("expected 3 arguments, got %d", len(args))
	}
	a, err := decimal.NewFromString(args[1])
	if err != nil {
		return "", decimal.Zero, decimal.Zero, fmt.Errorf("could not convert %q to a number", args[1])
	}
	b, err := decimal.NewFromString(args[2])
	if err != nil {
		return "", decimal.Zero, decimal.Zero, fmt.Errorf("could not convert %q to a number", args[2])
	}
	return strings.ToUpper(args[0]), a, b, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
