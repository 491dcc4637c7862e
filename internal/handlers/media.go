package handlers

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/upupa/internal/i18n"
	"github.com/iamwavecut/upupa/internal/picture"
	"github.com/iamwavecut/upupa/resources/consts"
)

const describePrompt = "Коротко, одним-двумя предложениями, опиши что на картинке."

// incomingText turns a message into the text the bot reacts to: voice notes are
// transcribed and photos get a short description in front of the caption.
func (b *Bot) incomingText(ctx context.Context, msg *tg.Message) string {
	text := messageText(msg)
	logger := log.WithFields(log.Fields{"component": "handlers", "chat": msg.Chat.ID})

	if msg.Voice != nil && b.Transcriber != nil {
		ctx, cancel := context.WithTimeout(ctx, consts.DurationMediaTimeout)
		defer cancel()
		data, err := b.Telegram.Download(ctx, msg.Voice.FileID)
		if err != nil {
			logger.WithError(err).Warn("voice download failed")
			return text
		}
		heard, err := b.Transcriber.Transcribe(ctx, "voice.ogg", bytes.NewReader(data))
		if err != nil {
			logger.WithError(err).Warn("transcription failed")
			return text
		}
		return strings.TrimSpace(heard)
	}

	if len(msg.Photo) > 0 && b.Describer != nil {
		ctx, cancel := context.WithTimeout(ctx, consts.DurationMediaTimeout)
		defer cancel()
		data, err := b.Telegram.Download(ctx, msg.Photo[len(msg.Photo)-1].FileID)
		if err != nil {
			logger.WithError(err).Warn("photo download failed")
			return text
		}
		seen, err := b.Describer.Describe(ctx, "", describePrompt, data, "image/jpeg")
		if err != nil {
			logger.WithError(err).Warn("photo description failed")
			return text
		}
		return strings.TrimSpace("[фото: " + strings.TrimSpace(seen) + "] " + text)
	}
	return text
}

// Picture draws the prompt given after /pic.
func (b *Bot) Picture(ctx context.Context, msg *tgb.MessageUpdate) error {
	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)
	prompt := commandArgs(msg.Text)
	if prompt == "" && msg.ReplyToMessage != nil {
		prompt = messageText(msg.ReplyToMessage)
	}
	if prompt == "" {
		return b.answer(ctx, msg, i18n.Get("Tell me what to draw: /pic <prompt>", lang))
	}

	ctx, cancel := context.WithTimeout(ctx, consts.DurationMediaTimeout)
	defer cancel()
	b.Telegram.Typing(ctx, int64(msg.Chat.ID), tg.ChatActionUploadPhoto)

	img, err := b.Pictures.Generate(ctx, prompt)
	switch {
	case errors.Is(err, picture.ErrNoImager):
		return b.answer(ctx, msg, i18n.Get("Image generation is not configured.", lang))
	case err != nil:
		return b.fail(ctx, msg, lang, "I could not draw that, try another prompt.", err)
	}
	return b.Telegram.ReplyPhoto(ctx, int64(msg.Chat.ID), msg.ID, img, tg.HTML.Escape(prompt))
}

// Distort mangles the photo attached to the command or to the replied message.
func (b *Bot) Distort(ctx context.Context, msg *tgb.MessageUpdate) error {
	lang := b.lang(b.settings(msg.Chat.ID), msg.From)
	photos := msg.Photo
	if len(photos) == 0 && msg.ReplyToMessage != nil {
		photos = msg.ReplyToMessage.Photo
	}
	if len(photos) == 0 {
		return b.answer(ctx, msg, i18n.Get("Reply with /distort to a photo.", lang))
	}

	ctx, cancel := context.WithTimeout(ctx, consts.DurationMediaTimeout)
	defer cancel()
	data, err := b.Telegram.Download(ctx, photos[len(photos)-1].FileID)
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	out, err := picture.DistortBytes(data, picture.RandomOptions(rng))
	if err != nil {
		return b.fail(ctx, msg, lang, "I could not read that picture.", err)
	}
	return b.Telegram.ReplyPhoto(ctx, int64(msg.Chat.ID), msg.ID, out, "")
}

// Say speaks the given text, or the replied message, in the bot's voice.
func (b *Bot) Say(ctx context.Context, msg *tgb.MessageUpdate) error {
	lang := b.lang(b.settings(msg.Chat.ID), msg.From)
	text := commandArgs(msg.Text)
	if text == "" && msg.ReplyToMessage != nil {
		text = messageText(msg.ReplyToMessage)
	}
	if text == "" {
		return b.answer(ctx, msg, i18n.Get("What should I say? /say <text>", lang))
	}
	if b.Speaker == nil {
		return b.answer(ctx, msg, i18n.Get("Speech is not configured.", lang))
	}

	ctx, cancel := context.WithTimeout(ctx, consts.DurationMediaTimeout)
	defer cancel()
	b.Telegram.Typing(ctx, int64(msg.Chat.ID), tg.ChatActionRecordVoice)
	wav, err := b.Speaker.Speak(ctx, text)
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	return b.Telegram.ReplyVoice(ctx, int64(msg.Chat.ID), msg.ID, wav)
}
