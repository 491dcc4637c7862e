package handlers

import (
	"context"

	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"

	"github.com/iamwavecut/upupa/internal/i18n"
	"github.com/iamwavecut/upupa/internal/reg"
	"github.com/iamwavecut/upupa/resources/consts"
)

func privateKey(chatID tg.ChatID) string {
	return "chat_" + chatID.PeerID()
}

// Start greets the chat in the current personality and lists the commands.
// In private chats it also clears the dialogue history.
func (b *Bot) Start(ctx context.Context, msg *tgb.MessageUpdate) error {
	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)
	p := b.personality(s)
	if msg.Chat.Type == tg.ChatTypePrivate {
		reg.Delete(privateKey(msg.Chat.ID))
	}
	if err := b.Store.Touch(int64(msg.Chat.ID), msg.Chat.Title); err != nil {
		return err
	}

	lines := []string{
		tg.HTML.Bold(i18n.Getf(consts.StrHello, lang, tg.HTML.Escape(p.Name))),
	}
	if p.Greeting != "" {
		lines = append(lines, tg.HTML.Italic(tg.HTML.Escape(p.Greeting)))
	}
	lines = append(lines,
		"",
		tg.HTML.Line(i18n.Get(consts.StrIntro, lang)),
		"",
		tg.HTML.Escape(i18n.Get(consts.StrHelp, lang)),
		"",
		tg.HTML.Italic(i18n.Get(consts.StrOutro, lang)),
	)
	return msg.Answer(tg.HTML.Text(lines...)).ParseMode(tg.HTML).DoVoid(ctx)
}

// Reset forgets the private dialogue of the chat.
func (b *Bot) Reset(ctx context.Context, msg *tgb.MessageUpdate) error {
	reg.Delete(privateKey(msg.Chat.ID))
	lang := b.lang(b.settings(msg.Chat.ID), msg.From)
	return msg.Answer(i18n.Get("Done, I forgot our conversation.", lang)).DoVoid(ctx)
}
