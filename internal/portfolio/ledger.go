// Package portfolio keeps per-chat virtual positions with weighted-average
// cost basis and an append-only trade log.
package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/stockbot/internal/filestore"
)

var (
	ErrInvalidInput       = errors.New("shares and price must be positive numbers")
	ErrNoSuchPosition     = errors.New("no such position")
	ErrInsufficientShares = errors.New("insufficient shares")
)

// closeEpsilon is the residual share count at or below which a position is
// considered closed.
var closeEpsilon = decimal.NewFromFloat(0.001)

// Side is the direction of a trade.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Trade is one immutable ledger entry. RealizedPL is set on sells only.
type Trade struct {
	Type       Side             `json:"type"`
	Shares     decimal.Decimal  `json:"shares"`
	Price      decimal.Decimal  `json:"price"`
	Date       filestore.Time   `json:"date"`
	RealizedPL *decimal.Decimal `json:"realized_pl,omitempty"`
}

// Position is a chat's holding in one symbol.
type Position struct {
	Symbol    string          `json:"-"`
	Shares    decimal.Decimal `json:"shares"`
	CostBasis decimal.Decimal `json:"cost_basis"`
	Trades    []Trade         `json:"trades"`
}

func (p *Position) clone() Position {
	c := *p
	c.Trades = append([]Trade(nil), p.Trades...)
	return c
}

// TradeRecord is a trade tagged with its symbol, for history views.
type TradeRecord struct {
	Symbol string
	Trade
}

// Ledger owns every chat's positions. Safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	path      string
	sectors   *Sectors
	portfolio map[int64]map[string]*Position
	now       func() time.Time
}

// NewLedger creates an empty ledger backed by path. A nil sectors table
// falls back to the defaults.
func NewLedger(path string, sectors *Sectors) *Ledger {
	if sectors == nil {
		sectors = DefaultSectors()
	}
	return &Ledger{
		path:      path,
		sectors:   sectors,
		portfolio: make(map[int64]map[string]*Position),
		now:       time.Now,
	}
}

// Sectors returns the ledger's sector table.
func (l *Ledger) Sectors() *Sectors {
	return l.sectors
}

// Load replaces the in-memory ledger with the backing file. Positions with a
// non-positive share count or cost basis are dropped.
func (l *Ledger) Load() error {
	doc := make(map[int64]map[string]*Position)
	if _, err := filestore.ReadJSON(l.path, &doc); err != nil {
		return err
	}

	loaded := make(map[int64]map[string]*Position, len(doc))
	total := 0
	for chatID, positions := range doc {
		keyed := make(map[string]*Position, len(positions))
		for raw, p := range positions {
			symbol := normalize(raw)
			if symbol == "" || p == nil || !p.Shares.IsPositive() || !p.CostBasis.IsPositive() {
				log.Warn().Int64("chat_id", chatID).Str("symbol", raw).Msg("Dropping invalid position record")
				continue
			}
			p.Symbol = symbol
			if prev, ok := keyed[symbol]; ok {
				log.Warn().Int64("chat_id", chatID).Str("symbol", symbol).Msg("Merging duplicate position records")
				mergePositions(prev, p)
				continue
			}
			keyed[symbol] = p
			total++
		}
		if len(keyed) > 0 {
			loaded[chatID] = keyed
		}
	}

	l.mu.Lock()
	l.portfolio = loaded
	l.mu.Unlock()

	log.Info().Int("chats", len(loaded)).Int("positions", total).Str("path", l.path).Msg("💼 Loaded portfolios")
	return nil
}

// mergePositions folds src into dst at a weighted-average cost. Trades are
// kept in date order.
func mergePositions(dst, src *Position) {
	shares := dst.Shares.Add(src.Shares)
	cost := dst.Shares.Mul(dst.CostBasis).Add(src.Shares.Mul(src.CostBasis))
	dst.CostBasis = cost.Div(shares)
	dst.Shares = shares
	dst.Trades = append(dst.Trades, src.Trades...)
	sort.SliceStable(dst.Trades, func(i, j int) bool {
		return dst.Trades[i].Date.Before(dst.Trades[j].Date.Time)
	})
}

func (l *Ledger) persistLocked() {
	if err := filestore.WriteJSON(l.path, l.portfolio); err != nil {
		log.Error().Err(err).Str("path", l.path).Msg("Failed to save portfolio")
	}
}

// Buy records a purchase, merging into any existing position at a weighted
// average cost.
func (l *Ledger) Buy(chatID int64, symbol string, shares, price decimal.Decimal) (Position, error) {
	symbol = normalize(symbol)
	if symbol == "" || !shares.IsPositive() || !price.IsPositive() {
		return Position{}, ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	positions := l.portfolio[chatID]
	if positions == nil {
		positions = make(map[string]*Position)
		l.portfolio[chatID] = positions
	}

	trade := Trade{Type: Buy, Shares: shares, Price: price, Date: filestore.NewTime(l.now())}

	p, ok := positions[symbol]
	if !ok {
		p = &Position{Symbol: symbol, Shares: shares, CostBasis: price}
		positions[symbol] = p
	} else {
		totalShares := p.Shares.Add(shares)
		p.CostBasis = p.Shares.Mul(p.CostBasis).Add(shares.Mul(price)).Div(totalShares)
		p.Shares = totalShares
	}
	p.Trades = append(p.Trades, trade)
	l.persistLocked()

	log.Info().
		Int64("chat_id", chatID).
		Str("symbol", symbol).
		Str("shares", shares.String()).
		Str("price", price.StringFixed(2)).
		Msg("Buy recorded")
	return p.clone(), nil
}

// Sell records a sale and returns the realized P&L against the current cost
// basis. Overselling is rejected and leaves the position untouched.
func (l *Ledger) Sell(chatID int64, symbol string, shares, price decimal.Decimal) (decimal.Decimal, error) {
	symbol = normalize(symbol)
	if symbol == "" || !shares.IsPositive() || !price.IsPositive() {
		return decimal.Zero, ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	positions := l.portfolio[chatID]
	p, ok := positions[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: you don't own any %s", ErrNoSuchPosition, symbol)
	}
	if shares.GreaterThan(p.Shares) {
		return decimal.Zero, fmt.Errorf("%w: you only own %s shares of %s", ErrInsufficientShares, p.Shares.String(), symbol)
	}

	realized := price.Sub(p.CostBasis).Mul(shares)
	p.Trades = append(p.Trades, Trade{
		Type:       Sell,
		Shares:     shares,
		Price:      price,
		Date:       filestore.NewTime(l.now()),
		RealizedPL: &realized,
	})

	remaining := p.Shares.Sub(shares)
	if remaining.LessThanOrEqual(closeEpsilon) {
		delete(positions, symbol)
		if len(positions) == 0 {
			delete(l.portfolio, chatID)
		}
	} else {
		p.Shares = remaining
	}
	l.persistLocked()

	log.Info().
		Int64("chat_id", chatID).
		Str("symbol", symbol).
		Str("shares", shares.String()).
		Str("pnl", realized.StringFixed(2)).
		Msg("Sell recorded")
	return realized, nil
}

// Position returns a copy of chatID's position in symbol.
func (l *Ledger) Position(chatID int64, symbol string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.portfolio[chatID][normalize(symbol)]
	if !ok {
		return Position{}, false
	}
	return p.clone(), true
}

// Positions returns copies of every position chatID holds, ordered by symbol.
func (l *Ledger) Positions(chatID int64) []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Position, 0, len(l.portfolio[chatID]))
	for _, p := range l.portfolio[chatID] {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// History returns every trade chatID has on open positions, newest first.
func (l *Ledger) History(chatID int64) []TradeRecord {
	l.mu.RLock()
	var out []TradeRecord
	for symbol, p := range l.portfolio[chatID] {
		for _, t := range p.Trades {
			out = append(out, TradeRecord{Symbol: symbol, Trade: t})
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Date.After(out[j].Date.Time)
	})
	return out
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
