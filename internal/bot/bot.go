// Package bot connects the conversation machine to Telegram.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/i474232898/weather-bot/internal/conversation"
	"github.com/i474232898/weather-bot/internal/geo"
)

const (
	DefaultActionTimeout = 15 * time.Second
	DefaultPollTimeout   = 10 * time.Second
)

// Handler is what the bot needs from the conversation machine.
type Handler interface {
	Handle(ctx context.Context, sess *conversation.Session, msg conversation.Message) (conversation.Reply, error)
}

type Config struct {
	Token         string
	PollTimeout   time.Duration
	ActionTimeout time.Duration
}

// Bot long-polls Telegram and feeds every update through the machine.
type Bot struct {
	tb            *tele.Bot
	handler       Handler
	sessions      *Sessions
	actionTimeout time.Duration
}

func New(cfg Config, handler Handler) (*Bot, error) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}

	b := &Bot{
		handler:       handler,
		sessions:      NewSessions(),
		actionTimeout: cfg.ActionTimeout,
	}

	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
		OnError: func(err error, c tele.Context) {
			attrs := []any{"error", err}
			if c != nil && c.Sender() != nil {
				attrs = append(attrs, "user_id", c.Sender().ID)
			}
			slog.Error("telegram update failed", attrs...)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	b.tb = tb

	tb.Handle(conversation.CommandStart, b.onText)
	tb.Handle(conversation.CommandCancel, b.onText)
	tb.Handle(tele.OnText, b.onText)
	tb.Handle(tele.OnLocation, b.onLocation)

	return b, nil
}

// Start blocks polling updates until Stop is called.
func (b *Bot) Start() {
	slog.Info("telegram bot started", "username", b.tb.Me.Username)
	b.tb.Start()
}

func (b *Bot) Stop() {
	b.tb.Stop()
	slog.Info("telegram bot stopped")
}

func (b *Bot) onText(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	return b.update(c, conversation.Message{
		UserID: c.Sender().ID,
		Text:   normalizeCommand(c.Text()),
	})
}

// normalizeCommand reduces "/start@BotName payload" and similar forms of the
// bot's own commands to the bare command. Any other text is left alone.
func normalizeCommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return text
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	switch cmd {
	case conversation.CommandStart, conversation.CommandCancel:
		return cmd
	}
	return text
}

func (b *Bot) onLocation(c tele.Context) error {
	if c.Sender() == nil || c.Message() == nil || c.Message().Location == nil {
		return nil
	}
	loc := c.Message().Location
	return b.update(c, conversation.Message{
		UserID: c.Sender().ID,
		Pin:    &geo.Location{Lat: float64(loc.Lat), Lon: float64(loc.Lng)},
	})
}

func (b *Bot) update(c tele.Context, msg conversation.Message) error {
	reply := b.Process(context.Background(), msg)
	if err := c.Send(reply.Text, sendOptions(reply)...); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// Process runs one message through the machine under the user's session
// lock and returns what to send back.
func (b *Bot) Process(ctx context.Context, msg conversation.Message) conversation.Reply {
	ctx, cancel := context.WithTimeout(ctx, b.actionTimeout)
	defer cancel()

	logger := slog.With("interaction_id", uuid.NewString(), "user_id", msg.UserID)

	var reply conversation.Reply
	b.sessions.With(msg.UserID, func(sess *conversation.Session) {
		from := sess.State
		var err error
		reply, err = b.handler.Handle(ctx, sess, msg)
		if err != nil {
			logger.Error("interaction failed",
				"state", from.String(),
				"kind", string(conversation.Classify(err)),
				"error", err)
			return
		}
		logger.Debug("interaction handled", "from", from.String(), "to", sess.State.String())
	})
	return reply
}

// sendOptions translates reply formatting into telebot send options.
func sendOptions(reply conversation.Reply) []any {
	var opts []any
	if reply.Markdown {
		opts = append(opts, tele.ModeMarkdown)
	}

	switch {
	case len(reply.Keyboard) > 0:
		markup := &tele.ReplyMarkup{
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
			Placeholder:     reply.Placeholder,
		}
		rows := make([]tele.Row, 0, len(reply.Keyboard))
		for _, labels := range reply.Keyboard {
			btns := make([]tele.Btn, 0, len(labels))
			for _, label := range labels {
				btns = append(btns, markup.Text(label))
			}
			rows = append(rows, markup.Row(btns...))
		}
		markup.Reply(rows...)
		opts = append(opts, markup)
	case reply.RemoveKeyboard:
		opts = append(opts, &tele.ReplyMarkup{RemoveKeyboard: true})
	}
	return opts
}
