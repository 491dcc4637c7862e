package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/upupa/internal/chatlog"
	"github.com/iamwavecut/upupa/internal/html"
	"github.com/iamwavecut/upupa/internal/i18n"
	"github.com/iamwavecut/upupa/internal/lexicon"
	"github.com/iamwavecut/upupa/internal/llm"
	"github.com/iamwavecut/upupa/internal/moderation"
	"github.com/iamwavecut/upupa/resources/consts"
)

const (
	lexiconSamples = 15
	snippetRunes   = 200
)

// Lexicon analyses the vocabulary of the sender, or of the author of the replied message.
func (b *Bot) Lexicon(ctx context.Context, msg *tgb.MessageUpdate) error {
	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)
	target := msg.From
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && !msg.ReplyToMessage.From.IsBot {
		target = msg.ReplyToMessage.From
	}
	name := fullName(target)

	entries, err := b.Log.ByUser(int64(msg.Chat.ID), int64(target.ID))
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	report := lexicon.Analyze(texts, consts.IntLexiconTop)
	text := lexicon.Format(name, report, lang)
	if report.Messages == 0 {
		return b.answer(ctx, msg, text)
	}

	ctx, cancel := context.WithTimeout(ctx, consts.DurationReplyTimeout)
	defer cancel()
	b.Telegram.Typing(ctx, int64(msg.Chat.ID), tg.ChatActionTyping)
	portrait, err := lexicon.Characterize(ctx, b.Router, s.Provider, name, report, samples(texts, lexiconSamples))
	if err != nil {
		log.WithError(err).WithField("chat", msg.Chat.ID).Debug("no lexicon portrait")
	} else if portrait = strings.TrimSpace(portrait); portrait != "" {
		text += "\n\n<i>" + html.Escape(portrait) + "</i>"
	}
	return b.answer(ctx, msg, text)
}

// Search looks the query up in the chat log by substring and fuzzy matching.
func (b *Bot) Search(ctx context.Context, msg *tgb.MessageUpdate) error {
	lang := b.lang(b.settings(msg.Chat.ID), msg.From)
	query := commandArgs(msg.Text)
	if query == "" {
		return b.answer(ctx, msg, i18n.Get("What should I look for? /search <query>", lang))
	}
	entries, err := b.chatEntries(msg.Chat.ID)
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	found := chatlog.Search(entries, query, consts.IntSearchResults)
	return b.answer(ctx, msg, formatFound(found, lang))
}

// SmartSearch ranks recent chat lines by meaning, falling back to fuzzy search.
func (b *Bot) SmartSearch(ctx context.Context, msg *tgb.MessageUpdate) error {
	lang := b.lang(b.settings(msg.Chat.ID), msg.From)
	query := commandArgs(msg.Text)
	if query == "" {
		return b.answer(ctx, msg, i18n.Get("What should I look for? /smartsearch <query>", lang))
	}
	entries, err := b.chatEntries(msg.Chat.ID)
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}

	ctx, cancel := context.WithTimeout(ctx, consts.DurationReplyTimeout)
	defer cancel()
	b.Telegram.Typing(ctx, int64(msg.Chat.ID), tg.ChatActionTyping)
	found, semantic := chatlog.SmartSearch(ctx, b.Embedder, entries, query, consts.IntSearchResults)
	text := formatFound(found, lang)
	if !semantic {
		text = i18n.Get("(fuzzy search)", lang) + "\n" + text
	}
	return b.answer(ctx, msg, text)
}

// Summary retells the recent conversation of the chat.
func (b *Bot) Summary(ctx context.Context, msg *tgb.MessageUpdate) error {
	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)
	entries, err := b.Log.Tail(int64(msg.Chat.ID), consts.IntSummaryMessages)
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	if len(entries) == 0 {
		return b.answer(ctx, msg, i18n.Get("Nothing to summarise yet.", lang))
	}

	ctx, cancel := context.WithTimeout(ctx, consts.DurationReplyTimeout)
	defer cancel()
	b.Telegram.Typing(ctx, int64(msg.Chat.ID), tg.ChatActionTyping)
	p := b.personality(s)
	req := llm.Prompt(
		p.SystemPrompt(msg.Chat.Title, lang),
		"Кратко перескажи, о чём шла речь в чате, по пунктам, с именами участников:\n\n"+chatlog.Transcript(entries),
	)
	req.Temperature = p.Temperature
	res, err := b.Router.Generate(ctx, s.Provider, req)
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	return b.answer(ctx, msg, "📝 "+html.Render(res.Text))
}

// ChatStats shows message totals and the top posters of the last month.
func (b *Bot) ChatStats(ctx context.Context, msg *tgb.MessageUpdate) error {
	lang := b.lang(b.settings(msg.Chat.ID), msg.From)
	chatID := int64(msg.Chat.ID)
	messages, users, err := b.Stats.Total(ctx, chatID)
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	top, err := b.Stats.Top(ctx, chatID, time.Now().Add(-consts.DurationStatsWindow), consts.IntStatsTop)
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	return b.answer(ctx, msg, moderation.FormatStats(messages, users, top, lang))
}

// chatEntries returns the chat's log without the bot's own lines.
func (b *Bot) chatEntries(chatID tg.ChatID) ([]chatlog.Entry, error) {
	return b.Log.Entries(func(e chatlog.Entry) bool {
		return e.ChatID == int64(chatID) && e.UserID != int64(b.Me.ID)
	})
}

func formatFound(found []chatlog.Entry, lang string) string {
	if len(found) == 0 {
		return i18n.Get("Nothing found.", lang)
	}
	var sb strings.Builder
	sb.WriteString("🔎 <b>" + i18n.Get("Found", lang) + "</b>\n")
	for _, e := range found {
		fmt.Fprintf(&sb, "\n<i>%s</i> %s: %s",
			e.Time.Format("02.01.06 15:04"), html.Escape(e.Name), html.Escape(html.Truncate(e.Text, snippetRunes)))
	}
	return sb.String()
}

// samples picks up to n of the most recent non-empty texts.
func samples(texts []string, n int) []string {
	out := make([]string, 0, n)
	for i := len(texts) - 1; i >= 0 && len(out) < n; i-- {
		if t := strings.TrimSpace(texts[i]); t != "" && !strings.HasPrefix(t, "/") {
			out = append(out, html.Truncate(t, snippetRunes))
		}
	}
	return out
}
