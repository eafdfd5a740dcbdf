// Package monitor runs the price-threshold polling loop.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/stockbot/internal/alerts"
	"github.com/web3guy0/stockbot/internal/notify"
)

// Config controls loop timing.
type Config struct {
	Interval    time.Duration // between cycles
	Cooldown    time.Duration // between repeated notifications per symbol
	SymbolDelay time.Duration // between symbols within a cycle
}

// Monitor polls prices for every stored alert and notifies owners when a
// threshold is crossed.
type Monitor struct {
	store    *alerts.Store
	prices   alerts.PriceLookup
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time

	mu        sync.Mutex
	lastCycle time.Time
	cycles    int
}

// New creates a monitor. Zero durations take the defaults: 30s interval,
// one hour cooldown.
func New(store *alerts.Store, prices alerts.PriceLookup, notifier notify.Notifier, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Hour
	}
	return &Monitor{
		store:    store,
		prices:   prices,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run cycles until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	log.Info().Dur("interval", m.cfg.Interval).Dur("cooldown", m.cfg.Cooldown).Msg("👀 Stock monitor started")

	for {
		if ctx.Err() != nil {
			break
		}
		m.RunCycle(ctx)
		if !sleep(ctx, m.cfg.Interval) {
			break
		}
	}

	log.Info().Msg("Stock monitor stopped")
}

// RunCycle checks every alert once and returns how many notifications fired.
// A symbol whose price cannot be fetched is skipped until the next cycle.
func (m *Monitor) RunCycle(ctx context.Context) int {
	snapshot := m.store.Snapshot()
	fired := 0

	for i, a := range snapshot {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && !sleep(ctx, m.cfg.SymbolDelay) {
			break
		}

		if m.checkSymbol(ctx, a.Symbol) {
			fired++
		}
	}

	m.mu.Lock()
	m.lastCycle = m.now()
	m.cycles++
	m.mu.Unlock()

	if len(snapshot) > 0 {
		log.Debug().Int("symbols", len(snapshot)).Int("fired", fired).Msg("Monitor cycle complete")
	}
	return fired
}

// Stats reports how many cycles have run and when the last one finished.
func (m *Monitor) Stats() (cycles int, last time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles, m.lastCycle
}

func (m *Monitor) checkSymbol(ctx context.Context, symbol string) (fired bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("symbol", symbol).Msg("Error monitoring symbol")
			fired = false
		}
	}()

	price, err := m.prices.Price(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Could not get price, skipping this cycle")
		return false
	}

	breach, ok := m.store.Observe(symbol, price, m.now(), m.cfg.Cooldown)
	if !ok || breach == nil {
		return false
	}

	msg := notify.Message{
		ChatID: breach.Alert.ChatID,
		Text:   FormatBreach(breach),
		Kind:   notify.KindPrice,
		Symbol: symbol,
	}
	// Delivery errors are logged by the notifier; the alert stays stamped.
	_ = m.notifier.Notify(ctx, msg)

	log.Info().
		Str("symbol", symbol).
		Str("price", price.StringFixed(2)).
		Str("direction", string(breach.Direction)).
		Msg("🚨 Price alert sent")
	return true
}

// FormatBreach renders the notification for a crossed threshold.
func FormatBreach(b *alerts.Breach) string {
	if b.Direction == alerts.Below {
		return fmt.Sprintf("🔴 *ALERT: %s*\n\n"+
			"Price dropped to $%s\n"+
			"Lower limit: $%s\n"+
			"⚠️ Price is AT or BELOW your lower limit!",
			notify.EscapeMarkdown(b.Alert.Symbol), b.Price.StringFixed(2), b.Alert.LowerLimit.StringFixed(2))
	}
	return fmt.Sprintf("🟢 *ALERT: %s*\n\n"+
		"Price rose to $%s\n"+
		"Upper limit: $%s\n"+
		"⚠️ Price is AT or ABOVE your upper limit!",
		notify.EscapeMarkdown(b.Alert.Symbol), b.Price.StringFixed(2), b.Alert.UpperLimit.StringFixed(2))
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
