package handlers

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/iamwavecut/tool"
	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"
	"github.com/pkg/errors"

	"github.com/iamwavecut/upupa/internal/html"
	"github.com/iamwavecut/upupa/internal/i18n"
	"github.com/iamwavecut/upupa/internal/storage"
	"github.com/iamwavecut/upupa/resources/consts"
)

var errBadValue = errors.New("bad value")

func (b *Bot) update(chatID tg.ChatID, fn func(*storage.ChatSettings) error) error {
	return b.Store.UpdateChat(int64(chatID), func(rec *storage.ChatRecord) error {
		return fn(&rec.Settings)
	})
}

// mayConfigure allows tuning in private chats and, in groups, to bot admins.
func (b *Bot) mayConfigure(msg *tgb.MessageUpdate) bool {
	return msg.Chat.Type == tg.ChatTypePrivate || b.isAdmin(msg.From)
}

// Persona shows the personalities or switches to the given one.
// Switching follows the same rules as the other settings.
func (b *Bot) Persona(ctx context.Context, msg *tgb.MessageUpdate) error {
	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)
	id := strings.ToLower(commandArgs(msg.Text))

	if id == "" {
		current := b.personality(s)
		var sb strings.Builder
		sb.WriteString("<b>" + i18n.Get("Personalities", lang) + "</b>\n")
		for _, p := range b.Personalities.List() {
			mark := "▫️"
			if p.ID == current.ID {
				mark = "▪️"
			}
			fmt.Fprintf(&sb, "%s <code>%s</code> %s: %s\n", mark, p.ID, html.Escape(p.Name), html.Escape(p.Description))
		}
		sb.WriteString("\n" + i18n.Get("Switch with /persona <id>", lang))
		return b.answer(ctx, msg, sb.String())
	}

	if !b.mayConfigure(msg) {
		return b.answer(ctx, msg, i18n.Get(consts.StrAdminOnly, lang))
	}
	p, ok := b.Personalities.Get(id)
	if !ok {
		return b.answer(ctx, msg, i18n.Getf("Unknown personality %s.", lang, html.Escape(id)))
	}
	err := b.update(msg.Chat.ID, func(s *storage.ChatSettings) error {
		s.Personality = p.ID
		return nil
	})
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	return b.answer(ctx, msg, html.Escape(tool.NonZero(p.Greeting, p.Name)))
}

// Model shows the providers or pins the chat to one of them.
func (b *Bot) Model(ctx context.Context, msg *tgb.MessageUpdate) error {
	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)
	name := strings.ToLower(commandArgs(msg.Text))

	if name == "" {
		queue := b.Router.Queue(s.Provider)
		text := i18n.Getf("Providers in order: %s", lang, strings.Join(queue, " → "))
		text += "\n" + i18n.Getf("Available: %s", lang, strings.Join(b.Router.Names(), ", "))
		return b.answer(ctx, msg, html.Escape(text))
	}
	if !b.mayConfigure(msg) {
		return b.answer(ctx, msg, i18n.Get(consts.StrAdminOnly, lang))
	}
	if name == "auto" {
		name = ""
	} else if !b.Router.Has(name) {
		return b.answer(ctx, msg, i18n.Getf("Unknown provider %s.", lang, html.Escape(name)))
	}
	err := b.update(msg.Chat.ID, func(s *storage.ChatSettings) error {
		s.Provider = name
		return nil
	})
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	return b.answer(ctx, msg, html.Escape(i18n.Getf("Providers in order: %s", lang, strings.Join(b.Router.Queue(name), " → "))))
}

// Chance sets one of the random reaction probabilities.
func (b *Bot) Chance(ctx context.Context, msg *tgb.MessageUpdate) error {
	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)
	if !b.mayConfigure(msg) {
		return b.answer(ctx, msg, i18n.Get(consts.StrAdminOnly, lang))
	}
	fields := strings.Fields(commandArgs(msg.Text))
	if len(fields) != 2 {
		return b.answer(ctx, msg, i18n.Get("Usage: /chance <reaction|reply|voice|image|trigger> <0..1>", lang))
	}
	value, err := parseChance(fields[1])
	if err != nil {
		return b.answer(ctx, msg, i18n.Get("The chance must be between 0 and 1, or a percentage.", lang))
	}
	err = b.update(msg.Chat.ID, func(s *storage.ChatSettings) error {
		return setChance(s, fields[0], value)
	})
	if errors.Is(err, errBadValue) {
		return b.answer(ctx, msg, i18n.Get("Usage: /chance <reaction|reply|voice|image|trigger> <0..1>", lang))
	}
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	return b.answer(ctx, msg, formatSettings(b.settings(msg.Chat.ID), b.personality(s).Name, lang))
}

// Settings shows the chat settings; "random", "spam", "quiet", "cooldown" and
// "lang" arguments change them.
func (b *Bot) Settings(ctx context.Context, msg *tgb.MessageUpdate) error {
	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)
	fields := strings.Fields(commandArgs(msg.Text))
	if len(fields) == 0 {
		return b.answer(ctx, msg, formatSettings(s, b.personality(s).Name, lang))
	}
	if !b.mayConfigure(msg) {
		return b.answer(ctx, msg, i18n.Get(consts.StrAdminOnly, lang))
	}
	if len(fields) != 2 {
		return b.answer(ctx, msg, i18n.Get("Usage: /settings random|spam on|off, quiet <n>, cooldown <seconds>, lang <code>", lang))
	}
	err := b.update(msg.Chat.ID, func(s *storage.ChatSettings) error {
		return applySetting(s, fields[0], fields[1])
	})
	if errors.Is(err, errBadValue) {
		return b.answer(ctx, msg, i18n.Get("Usage: /settings random|spam on|off, quiet <n>, cooldown <seconds>, lang <code>", lang))
	}
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	s = b.settings(msg.Chat.ID)
	return b.answer(ctx, msg, formatSettings(s, b.personality(s).Name, b.lang(s, msg.From)))
}

// parseChance accepts "0.05", "0,05" and "5%".
func parseChance(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	percent := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, errors.Wrap(errBadValue, s)
	}
	if percent {
		v /= 100
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, errors.Wrapf(errBadValue, "%v out of range", v)
	}
	return v, nil
}

func setChance(s *storage.ChatSettings, kind string, v float64) error {
	switch strings.ToLower(kind) {
	case "reaction", "emoji":
		s.ReactionChance = v
	case "reply", "text":
		s.ReplyChance = v
	case "voice":
		s.VoiceChance = v
	case "image", "picture":
		s.ImageChance = v
	case "trigger":
		s.TriggerChance = v
	default:
		return errors.Wrap(errBadValue, kind)
	}
	return nil
}

func applySetting(s *storage.ChatSettings, key, value string) error {
	switch strings.ToLower(key) {
	case "random":
		on, err := parseSwitch(value)
		if err != nil {
			return err
		}
		s.RandomEnabled = on
	case "spam":
		on, err := parseSwitch(value)
		if err != nil {
			return err
		}
		s.SpamFilter = on
	case "quiet":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return errors.Wrap(errBadValue, value)
		}
		s.QuietThreshold = n
	case "cooldown":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return errors.Wrap(errBadValue, value)
		}
		s.CooldownSeconds = n
	case "lang":
		if value == "-" || value == "auto" {
			s.Language = ""
			return nil
		}
		if !i18n.Supported(value) {
			return errors.Wrapf(errBadValue, "language %s, have %v", value, i18n.GetLanguagesList())
		}
		s.Language = i18n.Normalize(value)
	default:
		return errors.Wrap(errBadValue, key)
	}
	return nil
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "on", "1", "yes", "true", "вкл":
		return true, nil
	case "off", "0", "no", "false", "выкл":
		return false, nil
	}
	return false, errors.Wrap(errBadValue, v)
}

func formatSettings(s storage.ChatSettings, persona, lang string) string {
	onOff := func(v bool) string {
		if v {
			return "✅"
		}
		return "❌"
	}
	var sb strings.Builder
	sb.WriteString("⚙️ <b>" + i18n.Get("Chat settings", lang) + "</b>\n\n")
	sb.WriteString(i18n.Getf("Personality: %s", lang, html.Escape(persona)) + "\n")
	sb.WriteString(i18n.Getf("Provider: %s", lang, html.Escape(orAuto(s.Provider))) + "\n")
	sb.WriteString(i18n.Getf("Language: %s", lang, html.Escape(orAuto(s.Language))) + "\n")
	sb.WriteString(i18n.Get("Random reactions", lang) + ": " + onOff(s.RandomEnabled) + "\n")
	sb.WriteString(i18n.Get("Spam filter", lang) + ": " + onOff(s.SpamFilter) + "\n\n")
	fmt.Fprintf(&sb, "reaction: %.1f%%\nreply: %.1f%%\nvoice: %.1f%%\nimage: %.1f%%\ntrigger: %.1f%%\n",
		s.ReactionChance*100, s.ReplyChance*100, s.VoiceChance*100, s.ImageChance*100, s.TriggerChance*100)
	fmt.Fprintf(&sb, "quiet: %d\ncooldown: %ds\n", s.QuietThreshold, s.CooldownSeconds)
	return sb.String()
}

func orAuto(v string) string {
	if v == "" {
		return "auto"
	}
	return v
}
