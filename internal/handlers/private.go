package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/iamwavecut/tool"
	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/upupa/internal/html"
	"github.com/iamwavecut/upupa/internal/i18n"
	"github.com/iamwavecut/upupa/internal/llm"
	"github.com/iamwavecut/upupa/internal/reg"
	"github.com/iamwavecut/upupa/resources/consts"
)

const privateReplyTokens = 1500

type reply struct {
	text     string
	provider string
	err      error
}

// Private runs a one-to-one dialogue in the chat's current personality.
func (b *Bot) Private(ctx context.Context, msg *tgb.MessageUpdate) error {
	if msg.From == nil || msg.From.IsBot {
		return nil
	}
	chatID := int64(msg.Chat.ID)
	if err := b.Store.Touch(chatID, fullName(msg.From)); err != nil {
		log.WithError(err).Warn("cant touch private chat")
	}
	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)

	if strings.HasPrefix(msg.Text, "/") {
		return nil
	}
	text := b.incomingText(ctx, msg.Message)
	if text == "" {
		return nil
	}
	name := fullName(msg.From)
	b.remember(chatID, int64(msg.From.ID), name, text)

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, consts.DurationReplyTimeout)
	defer cancel()
	if err := b.Limiter.Wait(ctx); err != nil {
		return msg.Answer(i18n.Get(consts.StrTimeout, lang)).DoVoid(parent)
	}

	p := b.personality(s)
	key := privateKey(msg.Chat.ID)
	history := reg.Update(key, []llm.Message{}, func(h []llm.Message) []llm.Message {
		return capHistory(append(h, llm.Message{Role: llm.RoleUser, Name: llm.SanitizeName(name), Content: text}))
	})
	req := llm.Request{
		System:      p.SystemPrompt("", lang) + "\nТвой собеседник: " + name + ".",
		Messages:    llm.TrimToBudget(history, consts.IntPrivateBudget),
		Temperature: p.Temperature,
		MaxTokens:   privateReplyTokens,
	}

	result := make(chan reply, 1)
	go func() {
		res, err := b.Router.Generate(ctx, s.Provider, req)
		result <- reply{text: res.Text, provider: res.Provider, err: err}
	}()

	b.Telegram.Typing(ctx, chatID, tg.ChatActionTyping)
	ticker := time.NewTicker(consts.DurationTyping)
	defer ticker.Stop()
	for {
		select {
		case r := <-result:
			if r.err != nil {
				return b.fail(parent, msg, lang, consts.StrRequestError, r.err)
			}
			responseText := tool.NonZero(r.text, i18n.Get(consts.StrNoAnswer, lang))
			reg.Update(key, []llm.Message{}, func(h []llm.Message) []llm.Message {
				return capHistory(append(h, llm.Message{Role: llm.RoleAssistant, Content: responseText}))
			})
			log.WithFields(log.Fields{"chat": chatID, "provider": r.provider}).Debug("private reply")
			b.remember(chatID, int64(b.Me.ID), b.Me.FirstName, responseText)
			return b.sendRendered(parent, msg, responseText)
		case <-ctx.Done():
			return msg.Answer(i18n.Get(consts.StrTimeout, lang)).DoVoid(parent)
		case <-ticker.C:
			b.Telegram.Typing(ctx, chatID, tg.ChatActionTyping)
		}
	}
}

// sendRendered sends model output as HTML and falls back to escaped text when
// Telegram rejects the markup.
func (b *Bot) sendRendered(ctx context.Context, msg *tgb.MessageUpdate, text string) error {
	err := msg.Answer(html.Render(text)).ParseMode(tg.HTML).DoVoid(ctx)
	if tool.Try(err) {
		log.WithError(err).Debug("html rejected, sending plain text")
		return msg.Answer(html.Truncate(text, html.MaxMessageLength)).DoVoid(ctx)
	}
	return nil
}

// remember writes a line to the chat log; failures are only logged.
func (b *Bot) remember(chatID, userID int64, name, text string) {
	if b.Log == nil || text == "" {
		return
	}
	err := b.Log.Append(chatlogEntry(chatID, userID, name, text))
	if err != nil {
		log.WithError(err).Warn("cant append chat log")
	}
}

func capHistory(h []llm.Message) []llm.Message {
	if len(h) > consts.IntPrivateHistory {
		h = h[len(h)-consts.IntPrivateHistory:]
	}
	return h
}
