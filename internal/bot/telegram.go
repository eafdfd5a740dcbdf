// Package bot provides the Telegram command surface.
//
// telegram.go - long-polls updates and routes commands to Commands. Slow
// commands get a placeholder message that is edited in place with the result.
package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/stockbot/internal/config"
)

// Bot handles Telegram interactions
type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    *config.Config
	cmds   *Commands
	ctx    context.Context
	cancel context.CancelFunc
}

// New connects to Telegram with the configured token and endpoint.
func New(cfg *config.Config, cmds *Commands) (*Bot, error) {
	endpoint := tgbotapi.APIEndpoint
	if cfg.TelegramAPIURL != "" {
		endpoint = cfg.TelegramAPIURL + "/bot%s/%s"
	}

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.TelegramToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	api.Debug = false

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")

	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		api:    api,
		cfg:    cfg,
		cmds:   cmds,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start begins the bot's command listener
func (b *Bot) Start() {
	go b.listenForCommands()
}

// Stop stops the listener and cancels in-flight commands.
func (b *Bot) Stop() {
	b.cancel()
	b.api.StopReceivingUpdates()
}

func (b *Bot) listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				go b.handleMessage(update.Message)
			}
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int64("chat_id", msg.Chat.ID).Msg("Command handler panicked")
		}
	}()

	if !msg.IsCommand() {
		return
	}

	chatID := msg.Chat.ID
	command := strings.ToLower(msg.Command())
	args := strings.Fields(msg.CommandArguments())

	log.Debug().
		Int64("chat_id", chatID).
		Str("command", command).
		Strs("args", args).
		Msg("Received command")

	if !b.cfg.Allowed(chatID) {
		log.Warn().Int64("chat_id", chatID).Msg("Rejected command from chat outside allow-list")
		b.sendText(chatID, "⛔ This bot is private.")
		return
	}

	pending := b.cmds.Pending(chatID, command, args)
	if pending == "" {
		b.send(chatID, b.cmds.Handle(b.ctx, chatID, command, args))
		return
	}

	placeholder, err := b.api.Send(tgbotapi.NewMessage(chatID, pending))
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send placeholder")
		b.send(chatID, b.cmds.Handle(b.ctx, chatID, command, args))
		return
	}
	b.edit(chatID, placeholder.MessageID, b.cmds.Handle(b.ctx, chatID, command, args))
}

// Helpers

func (b *Bot) send(chatID int64, r Reply) {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	if r.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}

func (b *Bot) edit(chatID int64, messageID int, r Reply) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, r.Text)
	if r.Markdown {
		edit.ParseMode = tgbotapi.ModeMarkdown
	}
	edit.DisableWebPagePreview = true
	if _, err := b.api.Send(edit); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to edit reply")
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(chatID, Reply{Text: text})
}
