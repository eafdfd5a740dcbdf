// Package market sends market-session reminders and unusual-volume alerts.
package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/web3guy0/stockbot/internal/alerts"
	"github.com/web3guy0/stockbot/internal/notify"
	"github.com/web3guy0/stockbot/internal/quotes"
)

// Session keys used when journaling reminders.
const (
	sessionOpen  = "OPEN"
	sessionClose = "CLOSE"
)

// Watchlist supplies the tracked symbols and their owners.
type Watchlist interface {
	Snapshot() []alerts.Alert
	Owners() []int64
}

// VolumeLookup fetches intraday volume statistics.
type VolumeLookup interface {
	Volume(ctx context.Context, symbol string) (quotes.VolumeStats, error)
}

// Journal answers whether a notification was already sent, so a restart
// does not repeat the day's alerts.
type Journal interface {
	HasNotification(ctx context.Context, kind, symbol string, since time.Time) (bool, error)
}

// Config holds session times as offsets from local midnight in Location.
type Config struct {
	Location    *time.Location
	Open        time.Duration
	Close       time.Duration
	Lead        time.Duration
	VolumeRatio float64
	VolumeDelay time.Duration
	ChatIDs     []int64
}

// DefaultConfig is the US equity session.
func DefaultConfig() Config {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		Location:    loc,
		Open:        9*time.Hour + 30*time.Minute,
		Close:       16 * time.Hour,
		Lead:        5 * time.Minute,
		VolumeRatio: 2.0,
		VolumeDelay: 2 * time.Second,
	}
}

// Notifier evaluates the session and volume rules once per tick.
type Notifier struct {
	cfg     Config
	watch   Watchlist
	volumes VolumeLookup
	sink    notify.Notifier
	journal Journal
	printer *message.Printer
	now     func() time.Time

	mu         sync.Mutex
	openSent   string // date of the last pre-open reminder
	closeSent  string // date of the last pre-close reminder
	volumeDate string
	volumeSent map[string]bool
}

// New creates a notifier. Zero config fields take DefaultConfig values.
func New(cfg Config, watch Watchlist, volumes VolumeLookup, sink notify.Notifier) *Notifier {
	def := DefaultConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Open == 0 && cfg.Close == 0 {
		cfg.Open, cfg.Close = def.Open, def.Close
	}
	if cfg.Lead <= 0 {
		cfg.Lead = def.Lead
	}
	if cfg.VolumeRatio <= 0 {
		cfg.VolumeRatio = def.VolumeRatio
	}
	return &Notifier{
		cfg:        cfg,
		watch:      watch,
		volumes:    volumes,
		sink:       sink,
		printer:    message.NewPrinter(language.English),
		now:        time.Now,
		volumeSent: make(map[string]bool),
	}
}

// SetJournal enables restart-safe de-duplication.
func (n *Notifier) SetJournal(j Journal) {
	n.journal = j
}

// Run ticks once a minute until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	log.Info().
		Str("timezone", n.cfg.Location.String()).
		Float64("volume_ratio", n.cfg.VolumeRatio).
		Msg("🔔 Market alerts started")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	n.Tick(ctx, n.now())
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Market alerts stopped")
			return
		case t := <-ticker.C:
			n.Tick(ctx, t)
		}
	}
}

// Tick applies every rule for the instant now and returns how many
// notifications were sent.
func (n *Notifier) Tick(ctx context.Context, now time.Time) (sent int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Error in market alerts tick")
		}
	}()

	local := now.In(n.cfg.Location)
	if !isWeekday(local) {
		return 0
	}

	sent += n.checkSession(ctx, local)
	if local.Minute()%5 == 0 {
		sent += n.checkVolume(ctx, local)
	}
	return sent
}

func (n *Notifier) checkSession(ctx context.Context, local time.Time) int {
	tod := timeOfDay(local)
	date := local.Format(time.DateOnly)

	switch {
	case tod >= n.cfg.Open-n.cfg.Lead && tod < n.cfg.Open:
		if !n.claimSession(ctx, &n.openSent, sessionOpen, date, local) {
			return 0
		}
		text := fmt.Sprintf("🔔 *Market Opening Soon*\n\n"+
			"The US stock market opens in %d minutes (%s)\n"+
			"Get ready! 📈",
			int(n.cfg.Lead.Minutes()), n.clock(local, n.cfg.Open))
		sent := n.broadcast(ctx, notify.KindSession, sessionOpen, text)
		log.Info().Int("recipients", sent).Msg("Market open alert sent")
		return sent

	case tod >= n.cfg.Close-n.cfg.Lead && tod < n.cfg.Close:
		if !n.claimSession(ctx, &n.closeSent, sessionClose, date, local) {
			return 0
		}
		text := fmt.Sprintf("🔔 *Market Closing Soon*\n\n"+
			"The US stock market closes in %d minutes (%s)\n"+
			"Last chance to make trades! 📉",
			int(n.cfg.Lead.Minutes()), n.clock(local, n.cfg.Close))
		sent := n.broadcast(ctx, notify.KindSession, sessionClose, text)
		log.Info().Int("recipients", sent).Msg("Market close alert sent")
		return sent
	}
	return 0
}

// claimSession marks the reminder for date as sent and reports whether the
// caller should send it.
func (n *Notifier) claimSession(ctx context.Context, flag *string, key, date string, local time.Time) bool {
	n.mu.Lock()
	if *flag == date {
		n.mu.Unlock()
		return false
	}
	*flag = date
	n.mu.Unlock()

	return !n.journaled(ctx, notify.KindSession, key, local)
}

func (n *Notifier) checkVolume(ctx context.Context, local time.Time) int {
	tod := timeOfDay(local)
	if tod < n.cfg.Open || tod > n.cfg.Close {
		return 0
	}

	date := local.Format(time.DateOnly)
	sent := 0

	for i, a := range n.watch.Snapshot() {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && !sleep(ctx, n.cfg.VolumeDelay) {
			break
		}

		stats, err := n.volumes.Volume(ctx, a.Symbol)
		if err != nil {
			log.Debug().Err(err).Str("symbol", a.Symbol).Msg("Error getting volume")
			continue
		}
		ratio := stats.Ratio()
		if ratio < n.cfg.VolumeRatio {
			continue
		}
		if !n.claimVolume(ctx, a.Symbol, date, local) {
			continue
		}

		text := n.printer.Sprintf("📊 *Unusual Volume Alert: %s*\n\n"+
			"Current volume is %.1fx the average!\n"+
			"Current: %.0f\n"+
			"Average: %.0f\n\n"+
			"Something big might be happening! 🚨",
			notify.EscapeMarkdown(a.Symbol), ratio, stats.Current, stats.Average)
		sent += n.broadcast(ctx, notify.KindVolume, a.Symbol, text)

		log.Info().Str("symbol", a.Symbol).Float64("ratio", ratio).Msg("📊 Unusual volume alert sent")
	}
	return sent
}

func (n *Notifier) claimVolume(ctx context.Context, symbol, date string, local time.Time) bool {
	n.mu.Lock()
	if n.volumeDate != date {
		n.volumeDate = date
		n.volumeSent = make(map[string]bool)
	}
	if n.volumeSent[symbol] {
		n.mu.Unlock()
		return false
	}
	n.volumeSent[symbol] = true
	n.mu.Unlock()

	return !n.journaled(ctx, notify.KindVolume, symbol, local)
}

// journaled reports whether the journal already holds a kind/key
// notification since local midnight. Journal errors count as not sent.
func (n *Notifier) journaled(ctx context.Context, kind, key string, local time.Time) bool {
	if n.journal == nil {
		return false
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	found, err := n.journal.HasNotification(ctx, kind, key, midnight)
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Str("key", key).Msg("Journal lookup failed")
		return false
	}
	return found
}

// broadcast sends text to every recipient and returns the number of
// successful deliveries.
func (n *Notifier) broadcast(ctx context.Context, kind, symbol, text string) int {
	recipients := n.cfg.ChatIDs
	if len(recipients) == 0 {
		recipients = n.watch.Owners()
	}

	sent := 0
	for _, chatID := range recipients {
		err := n.sink.Notify(ctx, notify.Message{ChatID: chatID, Text: text, Kind: kind, Symbol: symbol})
		if err == nil {
			sent++
		}
	}
	return sent
}

func (n *Notifier) clock(local time.Time, offset time.Duration) string {
	at := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, int(offset.Seconds()), 0, local.Location())
	return at.Format("3:04 PM MST")
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

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
