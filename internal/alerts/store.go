// Package alerts holds per-symbol price thresholds and persists them to a
// flat JSON document keyed by symbol.
package alerts

import (
	"context"
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
	ErrInvalidRange   = errors.New("lower limit must be less than upper limit")
	ErrSymbolNotFound = errors.New("symbol not found")
)

// PriceLookup resolves a symbol to its current price.
type PriceLookup interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Alert is one symbol's thresholds plus the last observed state.
type Alert struct {
	Symbol     string          `json:"-"`
	LowerLimit decimal.Decimal `json:"lower_limit"`
	UpperLimit decimal.Decimal `json:"upper_limit"`
	ChatID     int64           `json:"chat_id"`
	LastPrice  decimal.Decimal `json:"last_price"`
	LastAlert  *filestore.Time `json:"last_alert"`
}

func (a *Alert) validate() error {
	if a.ChatID == 0 {
		return errors.New("missing chat_id")
	}
	if !a.LowerLimit.LessThan(a.UpperLimit) {
		return ErrInvalidRange
	}
	return nil
}

// Direction says which bound a price crossed.
type Direction string

const (
	Below Direction = "below"
	Above Direction = "above"
)

// Breach describes a crossing that should be notified.
type Breach struct {
	Alert     Alert
	Direction Direction
	Price     decimal.Decimal
}

// Store is the process-wide alert map. All methods are safe for concurrent
// use; every mutation rewrites the backing file.
type Store struct {
	mu     sync.RWMutex
	path   string
	prices PriceLookup
	alerts map[string]*Alert
}

// NewStore creates an empty store backed by path.
func NewStore(path string, prices PriceLookup) *Store {
	return &Store{
		path:   path,
		prices: prices,
		alerts: make(map[string]*Alert),
	}
}

// Load replaces the in-memory map with the backing file's contents. Invalid
// records are dropped.
func (s *Store) Load() error {
	doc := make(map[string]*Alert)
	if _, err := filestore.ReadJSON(s.path, &doc); err != nil {
		return err
	}

	loaded := make(map[string]*Alert, len(doc))
	for symbol, a := range doc {
		if a == nil {
			continue
		}
		a.Symbol = normalize(symbol)
		if err := a.validate(); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Dropping invalid alert record")
			continue
		}
		loaded[a.Symbol] = a
	}

	s.mu.Lock()
	s.alerts = loaded
	s.mu.Unlock()

	log.Info().Int("count", len(loaded)).Str("path", s.path).Msg("🔔 Loaded stock alerts")
	return nil
}

// Persist writes the whole map to disk.
func (s *Store) Persist() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if err := filestore.WriteJSON(s.path, s.alerts); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Failed to save alerts")
		return err
	}
	return nil
}

// Set validates the range, confirms the symbol has a price, and stores the
// alert for chatID, replacing any existing alert on the symbol.
func (s *Store) Set(ctx context.Context, symbol string, lower, upper decimal.Decimal, chatID int64) (decimal.Decimal, error) {
	symbol = normalize(symbol)
	if !lower.LessThan(upper) {
		return decimal.Zero, ErrInvalidRange
	}

	price, err := s.prices.Price(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrSymbolNotFound, symbol, err)
	}

	s.mu.Lock()
	s.alerts[symbol] = &Alert{
		Symbol:     symbol,
		LowerLimit: lower,
		UpperLimit: upper,
		ChatID:     chatID,
		LastPrice:  price,
	}
	s.persistLocked()
	s.mu.Unlock()

	log.Info().Str("symbol", symbol).Int64("chat_id", chatID).Msg("Alert set")
	return price, nil
}

// Remove deletes symbol's alert if chatID owns it.
func (s *Store) Remove(symbol string, chatID int64) bool {
	symbol = normalize(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[symbol]
	if !ok || a.ChatID != chatID {
		return false
	}
	delete(s.alerts, symbol)
	s.persistLocked()

	log.Info().Str("symbol", symbol).Int64("chat_id", chatID).Msg("Alert removed")
	return true
}

// List returns chatID's alerts ordered by symbol.
func (s *Store) List(chatID int64) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Alert
	for _, a := range s.alerts {
		if a.ChatID == chatID {
			out = append(out, *a)
		}
	}
	sortBySymbol(out)
	return out
}

// Snapshot copies every alert, ordered by symbol.
func (s *Store) Snapshot() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, *a)
	}
	sortBySymbol(out)
	return out
}

// Get returns a copy of symbol's alert.
func (s *Store) Get(symbol string) (Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[normalize(symbol)]
	if !ok {
		return Alert{}, false
	}
	return *a, true
}

// Len returns the number of alerts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// Owners returns the distinct chats that own at least one alert.
func (s *Store) Owners() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{})
	var out []int64
	for _, a := range s.alerts {
		if _, ok := seen[a.ChatID]; ok {
			continue
		}
		seen[a.ChatID] = struct{}{}
		out = append(out, a.ChatID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Observe records price for symbol and decides whether a notification is due.
// The lower bound is checked first. A breach fires only when no alert was sent
// yet or the last one is older than cooldown; firing stamps the alert with now.
// ok is false when the symbol has no alert (e.g. removed mid-cycle).
func (s *Store) Observe(symbol string, price decimal.Decimal, now time.Time, cooldown time.Duration) (breach *Breach, ok bool) {
	symbol = normalize(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[symbol]
	if !ok {
		return nil, false
	}
	a.LastPrice = price

	var dir Direction
	switch {
	case price.LessThanOrEqual(a.LowerLimit):
		dir = Below
	case price.GreaterThanOrEqual(a.UpperLimit):
		dir = Above
	}

	if dir != "" && cooledDown(a.LastAlert, now, cooldown) {
		stamp := filestore.NewTime(now)
		a.LastAlert = &stamp
		breach = &Breach{Alert: *a, Direction: dir, Price: price}
	}

	s.persistLocked()
	return breach, true
}

func cooledDown(last *filestore.Time, now time.Time, cooldown time.Duration) bool {
	if last == nil || last.IsZero() {
		return true
	}
	return now.Sub(last.Time) > cooldown
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func sortBySymbol(list []Alert) {
	sort.Slice(list, func(i, j int) bool { return list[i].Symbol < list[j].Symbol })
}
