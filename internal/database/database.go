// Package database is the optional notification and trade journal.
package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/stockbot/internal/notify"
)

type Database struct {
	db *gorm.DB
}

// Models

type Notification struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ChatID    int64  `gorm:"index"`
	Kind      string `gorm:"index:idx_kind_symbol"` // price, session, volume
	Symbol    string `gorm:"index:idx_kind_symbol"`
	Text      string
	Delivered bool
	Error     string
	CreatedAt time.Time `gorm:"index"`
}

type Trade struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ChatID     int64  `gorm:"index"`
	Symbol     string `gorm:"index"`
	Side       string // "BUY" or "SELL"
	Shares     decimal.Decimal `gorm:"type:decimal(20,6)"`
	Price      decimal.Decimal `gorm:"type:decimal(20,6)"`
	RealizedPL decimal.Decimal `gorm:"type:decimal(20,6)"`
	CreatedAt  time.Time
}

// New opens the journal. DSNs starting with postgres:// or postgresql://
// select PostgreSQL, anything else is a SQLite file path.
func New(dsn string) (*Database, error) {
	var db *gorm.DB
	var err error

	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dsn).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&Notification{}, &Trade{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Notification operations

// RecordNotification journals one delivery attempt.
func (d *Database) RecordNotification(ctx context.Context, msg notify.Message, deliveryErr error) error {
	n := &Notification{
		ChatID:    msg.ChatID,
		Kind:      msg.Kind,
		Symbol:    msg.Symbol,
		Text:      msg.Text,
		Delivered: deliveryErr == nil,
		CreatedAt: time.Now().UTC(),
	}
	if deliveryErr != nil {
		n.Error = deliveryErr.Error()
	}
	return d.db.WithContext(ctx).Create(n).Error
}

// HasNotification reports whether a delivered notification of kind for
// symbol exists at or after since. Timestamps are stored in UTC so SQLite
// string comparison stays ordered.
func (d *Database) HasNotification(ctx context.Context, kind, symbol string, since time.Time) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&Notification{}).
		Where("kind = ? AND symbol = ? AND delivered = ? AND created_at >= ?", kind, symbol, true, since.UTC()).
		Count(&count).Error
	return count > 0, err
}

// RecentNotifications returns the newest notifications sent to chatID.
func (d *Database) RecentNotifications(ctx context.Context, chatID int64, limit int) ([]Notification, error) {
	var out []Notification
	err := d.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Trade operations

func (d *Database) SaveTrade(ctx context.Context, trade *Trade) error {
	return d.db.WithContext(ctx).Create(trade).Error
}

// GetTotalRealizedPL sums realized P&L over chatID's journaled sells.
func (d *Database) GetTotalRealizedPL(ctx context.Context, chatID int64) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := d.db.WithContext(ctx).Model(&Trade{}).
		Where("chat_id = ? AND side = ?", chatID, "SELL").
		Select("COALESCE(SUM(realized_pl), 0) as total").
		Scan(&result).Error
	return result.Total, err
}

// Stats operations

func (d *Database) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	db := d.db.WithContext(ctx)

	var notificationCount int64
	if err := db.Model(&Notification{}).Count(&notificationCount).Error; err != nil {
		return nil, err
	}
	stats["total_notifications"] = notificationCount

	var failedCount int64
	db.Model(&Notification{}).Where("delivered = ?", false).Count(&failedCount)
	stats["failed_notifications"] = failedCount

	var tradeCount int64
	db.Model(&Trade{}).Count(&tradeCount)
	stats["total_trades"] = tradeCount

	type KindCount struct {
		Kind  string
		Count int64
	}
	var kindCounts []KindCount
	db.Model(&Notification{}).Select("kind, count(*) as count").Group("kind").Scan(&kindCounts)
	byKind := make(map[string]int64)
	for _, kc := range kindCounts {
		byKind[kc.Kind] = kc.Count
	}
	stats["by_kind"] = byKind

	return stats, nil
}
