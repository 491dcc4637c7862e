package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/iamwavecut/tool"
	"github.com/mr-linch/go-tg"

	"github.com/iamwavecut/upupa/internal/quiz"
	"github.com/iamwavecut/upupa/resources/consts"
)

// Telegram adapts the Bot API client to the small sender interfaces of the feature packages.
type Telegram struct {
	client *tg.Client
}

func NewTelegram(client *tg.Client) *Telegram {
	return &Telegram{client: client}
}

func upload(name string, data []byte) tg.FileArg {
	return tg.NewFileArgUpload(tg.NewInputFileBytes(name, data))
}

func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	return t.client.SendMessage(tg.ChatID(chatID), text).ParseMode(tg.HTML).DoVoid(ctx)
}

func (t *Telegram) Reply(ctx context.Context, chatID int64, messageID int, text string) error {
	return t.client.SendMessage(tg.ChatID(chatID), text).
		ParseMode(tg.HTML).
		ReplyToMessageID(messageID).
		AllowSendingWithoutReply(true).
		DoVoid(ctx)
}

// React sets an emoji reaction. The request is built by hand so that any
// emoji from the personality list can be passed through.
func (t *Telegram) React(ctx context.Context, chatID int64, messageID int, emoji string) error {
	req := tg.NewRequest("setMessageReaction")
	req.PeerID("chat_id", tg.ChatID(chatID))
	req.Int("message_id", messageID)
	req.JSON("reaction", []map[string]string{{"type": "emoji", "emoji": emoji}})
	return t.client.Do(ctx, req, nil)
}

// ReplyVoice sends generated speech. WAV is not a valid voice note format, so it goes as audio.
func (t *Telegram) ReplyVoice(ctx context.Context, chatID int64, messageID int, wav []byte) error {
	return t.client.SendAudio(tg.ChatID(chatID), upload("upupa.wav", wav)).
		ReplyToMessageID(messageID).
		AllowSendingWithoutReply(true).
		DoVoid(ctx)
}

func (t *Telegram) ReplyPhoto(ctx context.Context, chatID int64, messageID int, image []byte, caption string) error {
	call := t.client.SendPhoto(tg.ChatID(chatID), upload("picture.jpg", image)).
		ReplyToMessageID(messageID).
		AllowSendingWithoutReply(true)
	if caption != "" {
		call = call.Caption(caption).ParseMode(tg.HTML)
	}
	return call.DoVoid(ctx)
}

func (t *Telegram) SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error {
	call := t.client.SendPhoto(tg.ChatID(chatID), upload("picture.jpg", image))
	if caption != "" {
		call = call.Caption(caption).ParseMode(tg.HTML)
	}
	return call.DoVoid(ctx)
}

func (t *Telegram) SendButtons(ctx context.Context, chatID int64, text string, buttons []quiz.Button) error {
	layout := tg.NewButtonLayout[tg.InlineKeyboardButton](1)
	for _, b := range buttons {
		layout.Row(tg.NewInlineKeyboardButtonCallback(b.Text, b.Data))
	}
	return t.client.SendMessage(tg.ChatID(chatID), text).
		ParseMode(tg.HTML).
		ReplyMarkup(tg.NewInlineKeyboardMarkup(layout.Keyboard()...)).
		DoVoid(ctx)
}

func (t *Telegram) Delete(ctx context.Context, chatID int64, messageID int) error {
	return t.client.DeleteMessage(tg.ChatID(chatID), messageID).DoVoid(ctx)
}

func (t *Telegram) Typing(ctx context.Context, chatID int64, action tg.ChatAction) {
	_ = t.client.SendChatAction(tg.ChatID(chatID), action).DoVoid(ctx)
}

// Download fetches a file by its id, retrying transient failures.
func (t *Telegram) Download(ctx context.Context, fileID tg.FileID) ([]byte, error) {
	var data []byte
	err := tool.RetryFunc(consts.IntRetryAttempts, consts.DurationRetryRequest, func() error {
		file, err := t.client.GetFile(fileID).Do(ctx)
		if err != nil {
			return err
		}
		body, err := t.client.Download(ctx, file.FilePath)
		if err != nil {
			return err
		}
		defer body.Close()
		data, err = io.ReadAll(body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}
	return data, nil
}
