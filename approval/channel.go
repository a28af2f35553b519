package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const pollTimeoutSecs = 30

// Asset is an operator-supplied attachment. PostNumber is the 1-based
// schedule line it targets, 0 when unassigned.
type Asset struct {
	PostNumber int
	FileID     string
	Caption    string
	Used       bool
}

// Event is one piece of operator input: free-form text or an asset.
type Event struct {
	Text  string
	Asset *Asset
}

// Completion is the outcome of an asset-collection wait.
type Completion struct {
	Done   bool
	Assets []Asset
}

// BotAPI is the slice of tgbotapi.BotAPI the channel uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Channel is the Telegram transport: structured reports out, operator
// events in. It owns the update offset and must be the process's only
// consumer of getUpdates.
type Channel struct {
	bot    BotAPI
	chatID int64
	offset int
}

// NewChannel creates an approval channel bound to one chat.
func NewChannel(bot BotAPI, chatID int64) *Channel {
	return &Channel{bot: bot, chatID: chatID}
}

// SendReport delivers a structured HTML message to the operator.
func (c *Channel) SendReport(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := c.bot.Send(msg); err != nil {
		slog.Warn("failed to send report", "error", err)
		return fmt.Errorf("send report: %w", err)
	}
	return nil
}

// Flush advances past all pending updates so stale messages queued
// before startup are never interpreted as commands.
func (c *Channel) Flush(ctx context.Context) error {
	updates, err := c.bot.GetUpdates(tgbotapi.UpdateConfig{Offset: c.offset, Timeout: 0})
	if err != nil {
		return fmt.Errorf("flush updates: %w", err)
	}
	for _, u := range updates {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
	}
	return nil
}

// Listen long-polls for operator input and hands each message to the
// handler, until the context is canceled. Poll failures back off and
// retry.
func (c *Channel) Listen(ctx context.Context, handle func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := c.bot.GetUpdates(tgbotapi.UpdateConfig{
			Offset:  c.offset,
			Timeout: pollTimeoutSecs,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("failed to get updates", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= c.offset {
				c.offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Chat == nil || u.Message.Chat.ID != c.chatID {
				continue
			}
			handle(eventFromMessage(u.Message))
		}
	}
}

func eventFromMessage(msg *tgbotapi.Message) Event {
	if len(msg.Photo) > 0 {
		// Largest size is last.
		asset := &Asset{
			FileID:  msg.Photo[len(msg.Photo)-1].FileID,
			Caption: msg.Caption,
		}
		if indices, ok := extractIndices(msg.Caption, 99); ok && len(indices) > 0 {
			asset.PostNumber = indices[0]
		}
		return Event{Asset: asset}
	}
	return Event{Text: msg.Text}
}
