// Stockbot - Telegram stock price alerts and virtual portfolio tracker
//
// Polls quotes for every stored alert, notifies the owning chat when a price
// leaves its band, sends market session and unusual volume reminders, and
// keeps per-chat paper portfolios with diversification analysis.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/stockbot/internal/alerts"
	"github.com/web3guy0/stockbot/internal/api"
	"github.com/web3guy0/stockbot/internal/bot"
	"github.com/web3guy0/stockbot/internal/config"
	"github.com/web3guy0/stockbot/internal/database"
	"github.com/web3guy0/stockbot/internal/market"
	"github.com/web3guy0/stockbot/internal/monitor"
	"github.com/web3guy0/stockbot/internal/notify"
	"github.com/web3guy0/stockbot/internal/portfolio"
	"github.com/web3guy0/stockbot/internal/quotes"
	"github.com/web3guy0/stockbot/internal/sysstats"
)

const version = "1.0.0"

func main() {
	// ═══════════════════════════════════════════════════════════════════════════════
	// BOOTSTRAP
	// ═══════════════════════════════════════════════════════════════════════════════

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Dur("poll_interval", cfg.PollInterval).
		Msg("📈 Stockbot starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ═══════════════════════════════════════════════════════════════════════════════
	// STORAGE
	// ═══════════════════════════════════════════════════════════════════════════════

	var db *database.Database
	if cfg.DatabasePath != "" {
		db, err = database.New(cfg.DatabasePath)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Failed to open journal - continuing without it")
			db = nil
		}
	}

	prices := quotes.NewClient(cfg.YahooQuery1URL, cfg.YahooQuery2URL)

	store := alerts.NewStore(cfg.AlertsFile, prices)
	if err := store.Load(); err != nil {
		log.Fatal().Err(err).Str("path", cfg.AlertsFile).Msg("Failed to load alerts")
	}

	sectors, err := portfolio.LoadSectors(cfg.SectorFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SectorFile).Msg("Failed to load sector file")
	}
	ledger := portfolio.NewLedger(cfg.PortfolioFile, sectors)
	if err := ledger.Load(); err != nil {
		log.Fatal().Err(err).Str("path", cfg.PortfolioFile).Msg("Failed to load portfolios")
	}

	// ═══════════════════════════════════════════════════════════════════════════════
	// BACKGROUND LOOPS
	// ═══════════════════════════════════════════════════════════════════════════════

	sender := notify.NewSender(cfg.TelegramAPIURL, cfg.TelegramToken)
	if db != nil {
		sender.SetRecorder(db)
	}

	mon := monitor.New(store, prices, sender, monitor.Config{
		Interval:    cfg.PollInterval,
		Cooldown:    cfg.AlertCooldown,
		SymbolDelay: cfg.SymbolDelay,
	})
	go mon.Run(ctx)

	loc, err := time.LoadLocation(cfg.MarketTimezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.MarketTimezone).Msg("Unknown market timezone")
	}
	marketAlerts := market.New(market.Config{
		Location:    loc,
		Open:        cfg.MarketOpen,
		Close:       cfg.MarketClose,
		Lead:        cfg.MarketAlertLead,
		VolumeRatio: cfg.VolumeRatio,
		VolumeDelay: cfg.VolumeDelay,
		ChatIDs:     cfg.MarketChatIDs,
	}, store, prices, sender)
	if db != nil {
		marketAlerts.SetJournal(db)
	}
	go marketAlerts.Run(ctx)

	collector := sysstats.NewCollector()

	// ═══════════════════════════════════════════════════════════════════════════════
	// TELEGRAM BOT
	// ═══════════════════════════════════════════════════════════════════════════════

	cmds := bot.NewCommands(store, ledger, prices, collector)
	cmds.SetFX(cfg.FXCurrency, cfg.FXRate)
	if db != nil {
		cmds.SetJournal(db)
	}

	telegramBot, err := bot.New(cfg, cmds)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	telegramBot.Start()

	var statusServer *api.Server
	if cfg.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		statusServer = api.New(cfg.HTTPAddr, store, mon, collector)
		if db != nil {
			statusServer.SetJournal(db)
		}
		statusServer.Start()
	}

	// ═══════════════════════════════════════════════════════════════════════════════
	// STARTUP COMPLETE
	// ═══════════════════════════════════════════════════════════════════════════════

	log.Info().
		Int("alerts", store.Len()).
		Bool("journal", db != nil).
		Str("market_tz", loc.String()).
		Msg("✅ All systems online")
	log.Info().Msg("💡 Use /help for commands")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info().Msg("🛑 Received shutdown signal")

	// Graceful shutdown
	log.Info().Msg("Shutting down...")

	cancel()
	telegramBot.Stop()

	if statusServer != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Status server shutdown")
		}
		done()
	}

	if err := store.Persist(); err != nil {
		log.Error().Err(err).Msg("Failed to save alerts on shutdown")
	}
	if db != nil {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close journal")
		}
	}

	log.Info().Msg("👋 Goodbye!")
}
