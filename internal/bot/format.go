package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/web3guy0/stockbot/internal/database"
	"github.com/web3guy0/stockbot/internal/portfolio"
)

var printer = message.NewPrinter(language.English)

// md escapes user-supplied text for Markdown replies.
func md(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// money formats d with two decimals and thousands separators.
func money(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

// signedMoney is money with an explicit sign.
func signedMoney(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + money(d.Abs())
	}
	return "+" + money(d)
}

func signedPct(d decimal.Decimal, places int32) string {
	if d.IsNegative() {
		return d.StringFixed(places)
	}
	return "+" + d.StringFixed(places)
}

func trendEmoji(d decimal.Decimal) string {
	if d.IsNegative() {
		return "📉"
	}
	return "📈"
}

func sideEmoji(s portfolio.Side) string {
	if s == portfolio.Buy {
		return "🟢"
	}
	return "🔴"
}

func sectorBar(pct decimal.Decimal) string {
	n := int(pct.Div(decimal.NewFromInt(5)).IntPart())
	if n < 0 {
		n = 0
	}
	return strings.Repeat("█", n)
}

func formatPortfolio(v *portfolio.Valuation, a *portfolio.Analysis, fxCurrency string, fxRate decimal.Decimal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 *Your Portfolio* %s\n\n", trendEmoji(v.TotalPL))
	fmt.Fprintf(&b, "*Total Value:* $%s\n", money(v.TotalValue))
	fmt.Fprintf(&b, "*Cost Basis:* $%s\n", money(v.TotalCost))
	fmt.Fprintf(&b, "*Profit/Loss:* $%s (%s%%)\n\n", signedMoney(v.TotalPL), signedPct(v.TotalPLPct, 2))

	if fxCurrency != "" && fxRate.IsPositive() {
		fmt.Fprintf(&b, "≈ $%s %s\n\n", money(v.TotalValue.Mul(fxRate)), fxCurrency)
	}

	b.WriteString("*Holdings:*\n")
	for _, h := range v.Holdings {
		icon := "✅"
		if h.UnrealizedPL.IsNegative() {
			icon = "❌"
		}
		fmt.Fprintf(&b, "%s *%s*: %s shares\n", icon, md(h.Symbol), h.Shares.StringFixed(2))
		fmt.Fprintf(&b, "   $%s (%s%%)\n", money(h.Value), signedPct(h.UnrealizedPLPct, 1))
	}
	if len(v.Skipped) > 0 {
		fmt.Fprintf(&b, "_No price for: %s_\n", md(strings.Join(v.Skipped, ", ")))
	}

	b.WriteString("\n*Sector Breakdown:*\n")
	for _, s := range v.Sectors {
		fmt.Fprintf(&b, "%s: %s%% %s\n", s.Sector, s.Percentage.StringFixed(1), sectorBar(s.Percentage))
	}

	if a != nil {
		fmt.Fprintf(&b, "\n*Diversification Score:* %d/100\n", a.Score)

		if len(a.Warnings) > 0 {
			b.WriteString("\n⚠️ *Warnings:*\n")
			for _, w := range a.Warnings[:min(reportTop, len(a.Warnings))] {
				fmt.Fprintf(&b, "• %s\n", w)
			}
		}
		if len(a.Recommendations) > 0 {
			b.WriteString("\n💡 *Recommendations:*\n")
			for _, r := range a.Recommendations[:min(reportTop, len(a.Recommendations))] {
				fmt.Fprintf(&b, "• %s\n", r)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatPosition(p portfolio.Position, h portfolio.Holding) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s *Position: %s*\n\n", trendEmoji(h.UnrealizedPL), md(h.Symbol))
	fmt.Fprintf(&b, "*Shares:* %s\n", h.Shares.StringFixed(2))
	fmt.Fprintf(&b, "*Cost Basis:* $%s\n", h.CostBasis.StringFixed(2))
	fmt.Fprintf(&b, "*Current Price:* $%s\n\n", h.Price.StringFixed(2))
	fmt.Fprintf(&b, "*Total Cost:* $%s\n", money(h.Cost))
	fmt.Fprintf(&b, "*Current Value:* $%s\n", money(h.Value))
	fmt.Fprintf(&b, "*Unrealized P&L:* $%s (%s%%)\n\n", signedMoney(h.UnrealizedPL), signedPct(h.UnrealizedPLPct, 2))
	fmt.Fprintf(&b, "*Sector:* %s\n\n", h.Sector)

	b.WriteString("*Trade History:*\n")
	trades := p.Trades
	if len(trades) > positionTrail {
		trades = trades[len(trades)-positionTrail:]
	}
	for _, t := range trades {
		fmt.Fprintf(&b, "%s %s: %s @ $%s (%s)\n",
			sideEmoji(t.Type), t.Type, t.Shares.StringFixed(2), t.Price.StringFixed(2), t.Date.Format("2006-01-02"))
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatHistory(trades []portfolio.TradeRecord, limit int) string {
	var b strings.Builder
	b.WriteString("📜 *Trade History*\n\n")

	shown := trades
	if len(shown) > limit {
		shown = shown[:limit]
	}
	for _, t := range shown {
		fmt.Fprintf(&b, "%s %s %s: %s @ $%s (%s)\n",
			sideEmoji(t.Type), t.Type, md(t.Symbol), t.Shares.StringFixed(2), t.Price.StringFixed(2), t.Date.Format("2006-01-02"))
		if t.Type == portfolio.Sell && t.RealizedPL != nil {
			fmt.Fprintf(&b, "   P&L: $%s\n", signedMoney(*t.RealizedPL))
		}
	}
	if len(trades) > limit {
		fmt.Fprintf(&b, "\n_Showing %d of %d trades_", limit, len(trades))
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatRecent(list []database.Notification) string {
	var b strings.Builder
	b.WriteString("📬 *Recent Notifications*\n\n")
	for _, n := range list {
		status := "✅"
		if !n.Delivered {
			status = "❌"
		}
		subject := n.Kind
		if n.Symbol != "" {
			subject += " " + n.Symbol
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", status, md(subject), n.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}
