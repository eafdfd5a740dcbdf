package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the bot
type Config struct {
	// Telegram
	TelegramToken  string
	TelegramAPIURL string
	AllowedChats   []int64 // empty allows every chat

	// Storage
	AlertsFile    string
	PortfolioFile string
	DatabasePath  string // empty disables the journal
	SectorFile    string

	// Price monitor
	PollInterval  time.Duration
	AlertCooldown time.Duration
	SymbolDelay   time.Duration

	// Market alerts
	MarketChatIDs   []int64 // empty sends to every alert owner
	MarketTimezone  string
	MarketOpen      time.Duration // offset from local midnight
	MarketClose     time.Duration
	MarketAlertLead time.Duration
	VolumeRatio     float64
	VolumeDelay     time.Duration

	// Quote endpoints
	YahooQuery1URL string
	YahooQuery2URL string

	// Portfolio report
	FXCurrency string
	FXRate     decimal.Decimal

	// HTTP status endpoint, empty disables it
	HTTPAddr string

	Debug bool
}

var defaults = map[string]any{
	"telegram_api_url":  "https://api.telegram.org",
	"alerts_file":       "stock_alerts.json",
	"portfolio_file":    "portfolio_data.json",
	"database_path":     "data/stockbot.db",
	"poll_interval":     "30s",
	"alert_cooldown":    "1h",
	"symbol_delay":      "1s",
	"market_timezone":   "America/New_York",
	"market_open":       "09:30",
	"market_close":      "16:00",
	"market_alert_lead": "5m",
	"volume_ratio":      2.0,
	"volume_delay":      "2s",
	"yahoo_query1_url":  "https://query1.finance.yahoo.com",
	"yahoo_query2_url":  "https://query2.finance.yahoo.com",
	"fx_currency":       "AUD",
	"fx_rate":           "1.5",
	"debug":             false,
}

// Load reads configuration from the environment, overlaid on an optional
// YAML file named by CONFIG_FILE. Environment variables win.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	// Keys without a default are only seen by AutomaticEnv once bound.
	for _, key := range []string{"telegram_bot_token", "telegram_allowed_chats", "market_chat_ids", "sector_file", "http_addr", "config_file"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		TelegramToken:  strings.TrimSpace(v.GetString("telegram_bot_token")),
		TelegramAPIURL: strings.TrimRight(v.GetString("telegram_api_url"), "/"),

		AlertsFile:    v.GetString("alerts_file"),
		PortfolioFile: v.GetString("portfolio_file"),
		DatabasePath:  v.GetString("database_path"),
		SectorFile:    v.GetString("sector_file"),

		MarketTimezone: v.GetString("market_timezone"),
		VolumeRatio:    v.GetFloat64("volume_ratio"),

		YahooQuery1URL: strings.TrimRight(v.GetString("yahoo_query1_url"), "/"),
		YahooQuery2URL: strings.TrimRight(v.GetString("yahoo_query2_url"), "/"),

		FXCurrency: strings.ToUpper(v.GetString("fx_currency")),
		HTTPAddr:   v.GetString("http_addr"),
		Debug:      v.GetBool("debug"),
	}

	// Validate required fields
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	var err error
	if cfg.AllowedChats, err = parseChatIDs(v.GetString("telegram_allowed_chats")); err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_CHATS: %w", err)
	}
	if cfg.MarketChatIDs, err = parseChatIDs(v.GetString("market_chat_ids")); err != nil {
		return nil, fmt.Errorf("invalid MARKET_CHAT_IDS: %w", err)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"poll_interval", &cfg.PollInterval},
		{"alert_cooldown", &cfg.AlertCooldown},
		{"symbol_delay", &cfg.SymbolDelay},
		{"market_alert_lead", &cfg.MarketAlertLead},
		{"volume_delay", &cfg.VolumeDelay},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(v.GetString(d.key)); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", strings.ToUpper(d.key), err)
		}
	}

	if cfg.MarketOpen, err = parseClock(v.GetString("market_open")); err != nil {
		return nil, fmt.Errorf("invalid MARKET_OPEN: %w", err)
	}
	if cfg.MarketClose, err = parseClock(v.GetString("market_close")); err != nil {
		return nil, fmt.Errorf("invalid MARKET_CLOSE: %w", err)
	}
	if cfg.MarketOpen >= cfg.MarketClose {
		return nil, fmt.Errorf("MARKET_OPEN must be before MARKET_CLOSE")
	}

	if cfg.FXRate, err = decimal.NewFromString(v.GetString("fx_rate")); err != nil {
		return nil, fmt.Errorf("invalid FX_RATE: %w", err)
	}

	return cfg, nil
}

// Allowed reports whether chatID may use the bot.
func (c *Config) Allowed(chatID int64) bool {
	if len(c.AllowedChats) == 0 {
		return true
	}
	for _, id := range c.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}

// Helper functions

// parseChatIDs splits a comma or space separated list.
func parseChatIDs(s string) ([]int64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseDuration accepts Go durations ("90s", "1h") or bare seconds ("30").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var d time.Duration
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		d = time.Duration(secs * float64(time.Second))
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// parseClock parses "HH:MM" into an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
