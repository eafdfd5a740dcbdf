// Package api serves a small read-only HTTP status surface.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/stockbot/internal/sysstats"
)

// AlertCounter reports how many alerts are stored.
type AlertCounter interface {
	Len() int
}

// CycleReporter reports polling loop progress.
type CycleReporter interface {
	Stats() (cycles int, last time.Time)
}

// StatsSource samples the host.
type StatsSource interface {
	Snapshot(ctx context.Context) sysstats.Stats
	Quick(ctx context.Context) sysstats.Stats
}

// JournalStats summarizes the notification and trade journal.
type JournalStats interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

type Server struct {
	engine  *gin.Engine
	srv     *http.Server
	alerts  AlertCounter
	monitor CycleReporter
	stats   StatsSource
	journal JournalStats
	started time.Time
}

// New builds the router. monitor and stats may be nil.
func New(addr string, alerts AlertCounter, monitor CycleReporter, stats StatsSource) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	s := &Server{
		engine:  r,
		alerts:  alerts,
		monitor: monitor,
		stats:   stats,
		started: time.Now(),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/system", s.system)

	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Stock Price Monitor Bot",
			"endpoints": gin.H{
				"health": "/health",
				"system": "/system",
			},
		})
	})
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{
		"status":         "ok",
		"service":        "stockbot",
		"alerts":         s.alerts.Len(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.monitor != nil {
		cycles, last := s.monitor.Stats()
		body["monitor_cycles"] = cycles
		if !last.IsZero() {
			body["last_cycle"] = last.UTC().Format(time.RFC3339)
		}
	}
	if s.stats != nil {
		body["host"] = sysstats.FormatQuick(s.stats.Quick(c.Request.Context()))
	}
	if s.journal != nil {
		stats, err := s.journal.GetStats(c.Request.Context())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read journal stats")
		} else {
			body["journal"] = stats
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) system(c *gin.Context) {
	if s.stats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system stats disabled"})
		return
	}
	st := s.stats.Snapshot(c.Request.Context())
	if st.Empty() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not retrieve system stats"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// SetJournal adds journal counters to /health.
func (s *Server) SetJournal(j JournalStats) {
	s.journal = j
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens in the background.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("🌐 Status server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Status server failed")
		}
	}()
}

// Shutdown drains open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
