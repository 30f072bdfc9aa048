package telegram

import (
	"context"
	"os"
	"strconv"
	"strings"

	"skazkabot/dialogue"
	"skazkabot/logger"
	"skazkabot/stats"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const noAccessText = "У вас нет прав для просмотра этих данных."

type TelegramConnectProps struct {
	Logger *logger.LogMiddleware
	Engine *dialogue.Engine
	Stats  *stats.Stats
}

type Telegram struct {
	logger   *logger.LogMiddleware
	bot      *tgbotapi.BotAPI
	engine   *dialogue.Engine
	stats    *stats.Stats
	adminIDs map[int64]bool
}

func Connect(ctx context.Context, args TelegramConnectProps) *Telegram {
	tracer := otel.Tracer("telegram/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		args.Logger.Logger(ctx).Fatal("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		args.Logger.Logger(ctx).Fatal("Failed to create Telegram bot", zap.Error(err))
	}

	debug := os.Getenv("TELEGRAM_DEBUG") == "true"
	bot.Debug = debug

	span.SetAttributes(
		attribute.String("bot.username", bot.Self.UserName),
		attribute.Bool("bot.debug", debug),
	)

	args.Logger.Logger(ctx).Info("Telegram bot connected successfully",
		zap.String("username", bot.Self.UserName),
		zap.Bool("debug", debug),
	)

	return &Telegram{
		logger:   args.Logger,
		bot:      bot,
		engine:   args.Engine,
		stats:    args.Stats,
		adminIDs: parseAdminIDs(os.Getenv("ADMIN_USER_IDS")),
	}
}

func parseAdminIDs(raw string) map[int64]bool {
	ids := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids[id] = true
		}
	}
	return ids
}

func (t *Telegram) Listen(ctx context.Context) {
	tracer := otel.Tracer("telegram/Listen")
	ctx, span := tracer.Start(ctx, "Listen")
	defer span.End()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)

	t.logger.Logger(ctx).Info("Starting Telegram bot message listener")

	for {
		select {
		case <-ctx.Done():
			t.logger.Logger(ctx).Info("Shutting down Telegram bot listener")
			return
		case update := <-updates:
			// One goroutine per update; per-user ordering is enforced by
			// the session store's keyed lock inside the engine.
			go t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	tracer := otel.Tracer("telegram/handleUpdate")
	ctx, span := tracer.Start(ctx, "handleUpdate")
	defer span.End()

	if update.Message != nil {
		t.handleMessage(ctx, update.Message)
	}
}

func (t *Telegram) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleMessage")
	ctx, span := tracer.Start(ctx, "handleMessage")
	defer span.End()

	if message.From == nil || message.Text == "" {
		return
	}

	user := message.From
	span.SetAttributes(
		attribute.Int64("user.id", user.ID),
		attribute.String("user.username", user.UserName),
	)

	t.logger.Logger(ctx).Info("Received message",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.UserName),
		zap.String("text", message.Text),
	)

	var replies []dialogue.Reply

	switch {
	case message.IsCommand() && message.Command() == "start":
		if err := t.stats.UpsertUser(ctx, stats.UserInfo{
			UserID:    user.ID,
			Username:  user.UserName,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		}); err != nil {
			t.logger.Logger(ctx).Error("Failed to update user stats", zap.Error(err))
		}
		replies = t.engine.HandleStart(ctx, user.ID)

	case message.IsCommand() && message.Command() == "stats":
		replies = t.handleStatsCommand(ctx, user.ID)

	default:
		replies = t.engine.HandleMessage(ctx, user.ID, message.Text)
	}

	t.sendReplies(ctx, message.Chat.ID, replies)
}

func (t *Telegram) handleStatsCommand(ctx context.Context, userID int64) []dialogue.Reply {
	if !t.adminIDs[userID] {
		return []dialogue.Reply{{Text: noAccessText}}
	}

	report, err := t.stats.BuildReport(ctx)
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to build stats report", zap.Error(err))
		return []dialogue.Reply{{Text: "Не удалось собрать статистику."}}
	}

	return []dialogue.Reply{{Text: stats.FormatReport(report)}}
}

func (t *Telegram) sendReplies(ctx context.Context, chatID int64, replies []dialogue.Reply) {
	for _, reply := range replies {
		if len(reply.Audio) > 0 {
			audio := tgbotapi.NewAudio(chatID, tgbotapi.FileBytes{Name: reply.AudioName, Bytes: reply.Audio})
			audio.Title = reply.AudioTitle
			audio.Caption = reply.AudioCaption
			if _, err := t.bot.Send(audio); err != nil {
				t.logger.Logger(ctx).Error("Failed to send audio", zap.Error(err), zap.Int64("chat_id", chatID))
			}
			continue
		}

		msg := tgbotapi.NewMessage(chatID, reply.Text)
		if reply.HTML {
			msg.ParseMode = tgbotapi.ModeHTML
		}
		if markup := keyboardMarkup(reply.Keyboard); markup != nil {
			msg.ReplyMarkup = markup
		}
		if _, err := t.bot.Send(msg); err != nil {
			t.logger.Logger(ctx).Error("Failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
		}
	}
}
