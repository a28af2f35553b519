package approval

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeBot struct {
	sent    []tgbotapi.MessageConfig
	sendErr error
	updates [][]tgbotapi.Update
	offsets []int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeBot) GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.offsets = append(f.offsets, config.Offset)
	if len(f.updates) == 0 {
		return nil, nil
	}
	batch := f.updates[0]
	f.updates = f.updates[1:]
	return batch, nil
}

func chatMessage(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
}

func TestSendReportUsesHTMLMode(t *testing.T) {
	bot := &fakeBot{}
	ch := NewChannel(bot, 42)

	if err := ch.SendReport(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatalf("SendReport failed: %v", err)
	}

	if len(bot.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(bot.sent))
	}
	msg := bot.sent[0]
	if msg.ChatID != 42 {
		t.Errorf("chat ID = %d, want 42", msg.ChatID)
	}
	if msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("parse mode = %q, want HTML", msg.ParseMode)
	}
}

func TestSendReportSurfacesError(t *testing.T) {
	bot := &fakeBot{sendErr: errors.New("telegram: 429")}
	ch := NewChannel(bot, 42)

	if err := ch.SendReport(context.Background(), "hi"); err == nil {
		t.Error("expected send error")
	}
}

func TestFlushAdvancesOffset(t *testing.T) {
	bot := &fakeBot{updates: [][]tgbotapi.Update{
		{
			{UpdateID: 10, Message: chatMessage(42, "stale ok")},
			{UpdateID: 11, Message: chatMessage(42, "stale redo")},
		},
	}}
	ch := NewChannel(bot, 42)

	if err := ch.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	var got []Event
	ctx, cancel := context.WithCancel(context.Background())
	bot.updates = [][]tgbotapi.Update{
		{{UpdateID: 12, Message: chatMessage(42, "fresh")}},
	}
	ch.Listen(ctx, func(ev Event) {
		got = append(got, ev)
		cancel()
	})

	if len(got) != 1 || got[0].Text != "fresh" {
		t.Errorf("got events %+v, want only the post-flush message", got)
	}
	// The listen poll must start past the flushed updates.
	if last := bot.offsets[len(bot.offsets)-1]; last != 12 {
		t.Errorf("listen polled from offset %d, want 12", last)
	}
}

func TestListenFiltersOtherChats(t *testing.T) {
	bot := &fakeBot{updates: [][]tgbotapi.Update{
		{
			{UpdateID: 1, Message: chatMessage(99, "intruder")},
			{UpdateID: 2, Message: chatMessage(42, "ok")},
		},
	}}
	ch := NewChannel(bot, 42)

	var got []Event
	ctx, cancel := context.WithCancel(context.Background())
	ch.Listen(ctx, func(ev Event) {
		got = append(got, ev)
		cancel()
	})

	if len(got) != 1 || got[0].Text != "ok" {
		t.Errorf("got events %+v, want only the bound chat's message", got)
	}
}

func TestEventFromMessagePhoto(t *testing.T) {
	msg := &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 42},
		Caption: "photo for 3",
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small"},
			{FileID: "large"},
		},
	}

	ev := eventFromMessage(msg)
	if ev.Asset == nil {
		t.Fatal("photo message should produce an asset event")
	}
	if ev.Asset.FileID != "large" {
		t.Errorf("file ID = %q, want largest size", ev.Asset.FileID)
	}
	if ev.Asset.PostNumber != 3 {
		t.Errorf("post number = %d, want 3", ev.Asset.PostNumber)
	}
}

func TestEventFromMessagePhotoWithoutCaptionNumber(t *testing.T) {
	msg := &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 42},
		Photo: []tgbotapi.PhotoSize{{FileID: "only"}},
	}

	ev := eventFromMessage(msg)
	if ev.Asset == nil || ev.Asset.PostNumber != 0 {
		t.Errorf("unassigned photo should have post number 0, got %+v", ev.Asset)
	}
}
