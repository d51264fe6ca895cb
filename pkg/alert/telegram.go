package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"datemate/pkg/config"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Telegram sends fault alerts to a fixed set of chats.
type Telegram struct {
	sender  messageSender
	chatIDs []int64
	log     *slog.Logger
}

// NewTelegram validates alert configuration and constructs the bot client.
func NewTelegram(cfg config.TelegramAlertConfig, log *slog.Logger) (*Telegram, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("alerts.telegram.token is required")
	}

	chatIDs, err := parseChatIDs(cfg.ChatIDs)
	if err != nil {
		return nil, err
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return newTelegram(bot, chatIDs, log), nil
}

func newTelegram(sender messageSender, chatIDs []int64, log *slog.Logger) *Telegram {
	if log == nil {
		log = slog.Default()
	}
	return &Telegram{
		sender:  sender,
		chatIDs: chatIDs,
		log:     log.With("component", "alert.telegram"),
	}
}

// NotifyFault sends the fault to every configured chat. Delivery continues
// past individual chat failures; the joined error is returned.
func (t *Telegram) NotifyFault(ctx context.Context, fault Fault) error {
	text := fault.Text()

	var errs []error
	for _, chatID := range t.chatIDs {
		if _, err := t.sender.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
			t.log.Warn("Failed to send fault alert", "chat_id", chatID, "tool", fault.Tool, "error", err)
			errs = append(errs, fmt.Errorf("send to chat %d: %w", chatID, err))
			continue
		}
		t.log.Debug("Fault alert sent", "chat_id", chatID, "tool", fault.Tool)
	}

	return errors.Join(errs...)
}

func parseChatIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	seen := make(map[int64]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram chat id %q: %w", trimmed, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("alerts.telegram.chat_ids is required")
	}
	return ids, nil
}

// FromConfig returns the configured notifier, or Nop when alerts are off.
func FromConfig(cfg config.AlertsConfig, log *slog.Logger) (Notifier, error) {
	if !cfg.Telegram.Enabled {
		return Nop{}, nil
	}
	return NewTelegram(cfg.Telegram, log)
}
