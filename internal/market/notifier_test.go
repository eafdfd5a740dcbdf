package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/stockbot/internal/alerts"
	"github.com/web3guy0/stockbot/internal/notify"
	"github.com/web3guy0/stockbot/internal/quotes"
)

var est = time.FixedZone("EST", -5*3600)

type fakeWatchlist struct {
	symbols []string
	owners  []int64
}

func (w *fakeWatchlist) Snapshot() []alerts.Alert {
	out := make([]alerts.Alert, 0, len(w.symbols))
	for _, s := range w.symbols {
		out = append(out, alerts.Alert{Symbol: s})
	}
	return out
}

func (w *fakeWatchlist) Owners() []int64 { return w.owners }

type fakeVolumes map[string]quotes.VolumeStats

func (f fakeVolumes) Volume(_ context.Context, symbol string) (quotes.VolumeStats, error) {
	v, ok := f[symbol]
	if !ok {
		return quotes.VolumeStats{}, quotes.ErrVolumeUnavailable
	}
	return v, nil
}

type recordingSink struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (r *recordingSink) Notify(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSink) messages() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.sent...)
}

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) HasNotification(ctx context.Context, kind, symbol string, since time.Time) (bool, error) {
	args := m.Called(ctx, kind, symbol, since)
	return args.Bool(0), args.Error(1)
}

func newTestNotifier(watch *fakeWatchlist, vols fakeVolumes) (*Notifier, *recordingSink) {
	cfg := DefaultConfig()
	cfg.Location = est
	cfg.VolumeDelay = 0
	sink := &recordingSink{}
	return New(cfg, watch, vols, sink), sink
}

// monday returns 2024-06-03 at hh:mm:ss in the market zone.
func monday(hh, mm, ss int) time.Time {
	return time.Date(2024, 6, 3, hh, mm, ss, 0, est)
}

func TestSessionReminders(t *testing.T) {
	n, sink := newTestNotifier(&fakeWatchlist{owners: []int64{10, 20}}, nil)
	ctx := context.Background()

	assert.Equal(t, 0, n.Tick(ctx, monday(9, 24, 59)))
	assert.Equal(t, 2, n.Tick(ctx, monday(9, 26, 0)))
	assert.Equal(t, 0, n.Tick(ctx, monday(9, 27, 0)), "pre-open sent once per day")
	assert.Equal(t, 0, n.Tick(ctx, monday(9, 30, 0)))
	assert.Equal(t, 2, n.Tick(ctx, monday(15, 55, 0)))
	assert.Equal(t, 0, n.Tick(ctx, monday(15, 59, 0)))

	msgs := sink.messages()
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].Text, "*Market Opening Soon*")
	assert.Contains(t, msgs[0].Text, "opens in 5 minutes (9:30 AM EST)")
	assert.Equal(t, notify.KindSession, msgs[0].Kind)
	assert.Equal(t, int64(10), msgs[0].ChatID)
	assert.Equal(t, int64(20), msgs[1].ChatID)
	assert.Contains(t, msgs[2].Text, "closes in 5 minutes (4:00 PM EST)")

	// Flags are keyed by date, so the next day fires again.
	tuesday := monday(9, 25, 0).AddDate(0, 0, 1)
	assert.Equal(t, 2, n.Tick(ctx, tuesday))
}

func TestSessionReminders_SkipWeekend(t *testing.T) {
	n, sink := newTestNotifier(&fakeWatchlist{owners: []int64{10}}, fakeVolumes{"AAPL": {Current: 9, Average: 1}})
	saturday := monday(9, 25, 0).AddDate(0, 0, 5)
	require.Equal(t, time.Saturday, saturday.Weekday())

	assert.Equal(t, 0, n.Tick(context.Background(), saturday))
	assert.Equal(t, 0, n.Tick(context.Background(), saturday.Add(time.Hour)))
	assert.Empty(t, sink.messages())
}

func TestSessionReminders_ConfiguredRecipients(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Location = est
	cfg.ChatIDs = []int64{-1001}
	sink := &recordingSink{}
	n := New(cfg, &fakeWatchlist{owners: []int64{10, 20}}, nil, sink)

	assert.Equal(t, 1, n.Tick(context.Background(), monday(9, 29, 59)))
	assert.Equal(t, int64(-1001), sink.messages()[0].ChatID)
}

func TestSessionReminders_UTCInputConverted(t *testing.T) {
	n, sink := newTestNotifier(&fakeWatchlist{owners: []int64{1}}, nil)
	// 14:26 UTC is 09:26 EST.
	assert.Equal(t, 1, n.Tick(context.Background(), time.Date(2024, 6, 3, 14, 26, 0, 0, time.UTC)))
	assert.Len(t, sink.messages(), 1)
}

func TestUnusualVolume(t *testing.T) {
	watch := &fakeWatchlist{symbols: []string{"AAPL", "MSFT", "TSLA"}, owners: []int64{7}}
	vols := fakeVolumes{
		"AAPL": {Current: 2_500_000, Average: 1_000_000},
		"MSFT": {Current: 1_900_000, Average: 1_000_000},
	}
	n, sink := newTestNotifier(watch, vols)
	ctx := context.Background()

	assert.Equal(t, 0, n.Tick(ctx, monday(10, 3, 0)), "only on five-minute marks")
	assert.Equal(t, 1, n.Tick(ctx, monday(10, 5, 0)))
	assert.Equal(t, 0, n.Tick(ctx, monday(10, 10, 0)), "once per symbol per day")

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.KindVolume, msgs[0].Kind)
	assert.Equal(t, "AAPL", msgs[0].Symbol)
	assert.Contains(t, msgs[0].Text, "*Unusual Volume Alert: AAPL*")
	assert.Contains(t, msgs[0].Text, "Current volume is 2.5x the average!")
	assert.Contains(t, msgs[0].Text, "Current: 2,500,000")
	assert.Contains(t, msgs[0].Text, "Average: 1,000,000")

	assert.Equal(t, 1, n.Tick(ctx, monday(10, 5, 0).AddDate(0, 0, 1)), "new day resets")
}

func TestUnusualVolume_OutsideSession(t *testing.T) {
	watch := &fakeWatchlist{symbols: []string{"AAPL"}, owners: []int64{7}}
	n, sink := newTestNotifier(watch, fakeVolumes{"AAPL": {Current: 10, Average: 1}})
	ctx := context.Background()

	assert.Equal(t, 0, n.Tick(ctx, monday(9, 20, 0)))
	assert.Equal(t, 0, n.Tick(ctx, monday(16, 5, 0)))
	assert.Empty(t, sink.messages())

	assert.Equal(t, 1, n.Tick(ctx, monday(16, 0, 0)), "close instant is inclusive")
}

func TestUnusualVolume_JournalSuppressesRepeat(t *testing.T) {
	watch := &fakeWatchlist{symbols: []string{"AAPL", "NVDA"}, owners: []int64{7}}
	vols := fakeVolumes{
		"AAPL": {Current: 3, Average: 1},
		"NVDA": {Current: 3, Average: 1},
	}
	n, sink := newTestNotifier(watch, vols)

	j := &mockJournal{}
	midnight := time.Date(2024, 6, 3, 0, 0, 0, 0, est)
	j.On("HasNotification", mock.Anything, notify.KindVolume, "AAPL", midnight).Return(true, nil)
	j.On("HasNotification", mock.Anything, notify.KindVolume, "NVDA", midnight).Return(false, errors.New("db down"))
	n.SetJournal(j)

	assert.Equal(t, 1, n.Tick(context.Background(), monday(11, 0, 0)))
	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "NVDA", msgs[0].Symbol)
	j.AssertExpectations(t)
}
