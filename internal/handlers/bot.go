// Package handlers wires Telegram updates to the bot features.
package handlers

import (
	"context"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iamwavecut/tool"
	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iamwavecut/upupa/internal/adventure"
	"github.com/iamwavecut/upupa/internal/birthday"
	"github.com/iamwavecut/upupa/internal/broadcast"
	"github.com/iamwavecut/upupa/internal/chatlog"
	"github.com/iamwavecut/upupa/internal/config"
	"github.com/iamwavecut/upupa/internal/i18n"
	"github.com/iamwavecut/upupa/internal/llm"
	"github.com/iamwavecut/upupa/internal/moderation"
	"github.com/iamwavecut/upupa/internal/personality"
	"github.com/iamwavecut/upupa/internal/picture"
	"github.com/iamwavecut/upupa/internal/quiz"
	"github.com/iamwavecut/upupa/internal/reactions"
	"github.com/iamwavecut/upupa/internal/storage"
)

type Describer interface {
	Describe(ctx context.Context, system, prompt string, image []byte, mimeType string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Deps are the services the handlers dispatch to. Speaker, Describer, Embedder
// and Transcriber may be nil when the matching provider is not configured.
type Deps struct {
	Config        config.Config
	Telegram      *Telegram
	Me            *tg.User
	Router        *llm.Router
	Personalities *personality.Catalog
	Store         *storage.Store
	Stats         *storage.Stats
	Log           *chatlog.Log
	Dispatcher    *reactions.Dispatcher
	Reactor       *reactions.Reactor
	Quizzes       *quiz.Service
	Birthdays     *birthday.Service
	Adventure     *adventure.Service
	Pictures      *picture.Generator
	Broadcaster   *broadcast.Broadcaster
	Filter        *moderation.Filter
	Tracker       *moderation.Tracker
	Limiter       *rate.Limiter

	Speaker     reactions.Speaker
	Describer   Describer
	Embedder    chatlog.Embedder
	Transcriber Transcriber
}

type Bot struct {
	Deps
	names []string
}

func New(deps Deps) *Bot {
	names := []string{strings.ToLower(deps.Me.FirstName)}
	if deps.Me.Username != "" {
		names = append(names, "@"+strings.ToLower(string(deps.Me.Username)))
	}
	return &Bot{Deps: deps, names: names}
}

// Routes registers every command and the catch-all message pipelines.
func (b *Bot) Routes() *tgb.Router {
	private := tgb.ChatType(tg.ChatTypePrivate)
	group := tgb.ChatType(tg.ChatTypeGroup, tg.ChatTypeSupergroup)

	return tgb.NewRouter().
		Message(b.counted(b.Start), tgb.Command("start", tgb.WithCommandAlias("help"))).
		Message(b.counted(b.Reset), tgb.Command("reset")).
		Message(b.counted(b.Persona), tgb.Command("persona")).
		Message(b.counted(b.Model), tgb.Command("model")).
		Message(b.counted(b.Chance), tgb.Command("chance")).
		Message(b.counted(b.Settings), tgb.Command("settings")).
		Message(b.counted(b.Quiz), tgb.Command("quiz")).
		Message(b.counted(b.QuizTop), tgb.Command("quiztop")).
		Message(b.counted(b.SetBirthday), tgb.Command("birthday")).
		Message(b.counted(b.ListBirthdays), tgb.Command("birthdays")).
		Message(b.counted(b.AdventureStart), tgb.Command("dnd")).
		Message(b.counted(b.AdventureAct), tgb.Command("act")).
		Message(b.counted(b.AdventureEnd), tgb.Command("dndend")).
		Message(b.counted(b.Picture), tgb.Command("pic")).
		Message(b.counted(b.Distort), tgb.Command("distort")).
		Message(b.counted(b.Say), tgb.Command("say")).
		Message(b.counted(b.Lexicon), tgb.Command("lexicon")).
		Message(b.counted(b.Search), tgb.Command("search")).
		Message(b.counted(b.SmartSearch), tgb.Command("smartsearch")).
		Message(b.counted(b.Summary), tgb.Command("summary")).
		Message(b.counted(b.ChatStats), tgb.Command("stats")).
		Message(b.counted(b.Broadcast), tgb.Command("broadcast"), private).
		Message(b.Private, private).
		Message(b.Public, group).
		CallbackQuery(b.QuizAnswer)
}

// counted lets the quiet counter see group commands that never reach the dispatcher.
func (b *Bot) counted(h tgb.MessageHandler) tgb.MessageHandler {
	return func(ctx context.Context, msg *tgb.MessageUpdate) error {
		if msg.Chat.Type != tg.ChatTypePrivate {
			b.Dispatcher.Observe(int64(msg.Chat.ID))
		}
		return h(ctx, msg)
	}
}

func (b *Bot) settings(chatID tg.ChatID) storage.ChatSettings {
	return b.Store.Settings(int64(chatID))
}

// lang prefers the chat setting, then the user's client language.
func (b *Bot) lang(s storage.ChatSettings, user *tg.User) string {
	if s.Language != "" {
		return s.Language
	}
	var userLang string
	if user != nil {
		userLang = user.LanguageCode
	}
	return tool.NonZero(userLang, b.Config.DefaultLanguage)
}

func (b *Bot) personality(s storage.ChatSettings) personality.Personality {
	return b.Personalities.Resolve(s.Personality)
}

func (b *Bot) answer(ctx context.Context, msg *tgb.MessageUpdate, text string) error {
	return b.Telegram.Reply(ctx, int64(msg.Chat.ID), msg.ID, text)
}

// fail logs err and answers with a localized apology; the poller never sees the error.
func (b *Bot) fail(ctx context.Context, msg *tgb.MessageUpdate, lang, key string, err error) error {
	log.WithError(err).WithFields(log.Fields{"chat": msg.Chat.ID, "component": "handlers"}).Warn("request failed")
	if sendErr := b.answer(ctx, msg, i18n.Get(key, lang)); sendErr != nil {
		log.WithError(sendErr).Warn("cant send apology")
	}
	return nil
}

func (b *Bot) isAdmin(user *tg.User) bool {
	return user != nil && b.Config.IsAdmin(int64(user.ID))
}

func (b *Bot) isMe(user *tg.User) bool {
	return user != nil && user.ID == b.Me.ID
}

// commandArgs returns the text after the command word.
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	if i := strings.IndexAny(text, " \n"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return ""
}

func fullName(user *tg.User) string {
	if user == nil {
		return ""
	}
	userName := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if len(userName) == 0 {
		userName = user.Username.PeerID()
	}
	if len(userName) == 0 || userName == "@" {
		userName = user.ID.PeerID()
	}
	return userName
}

// addressed reports whether text calls the bot by one of its names.
// addressed reports whether one of names occurs in text as a whole word.
func addressed(text string, names ...string) bool {
	lower := strings.ToLower(text)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		for from := 0; from < len(lower); {
			i := strings.Index(lower[from:], name)
			if i < 0 {
				break
			}
			start, end := from+i, from+i+len(name)
			before, _ := utf8.DecodeLastRuneInString(lower[:start])
			after, _ := utf8.DecodeRuneInString(lower[end:])
			if !isWordRune(before) && !isWordRune(after) {
				return true
			}
			from = start + 1
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func messageText(msg *tg.Message) string {
	return tool.NonZero(msg.Text, msg.Caption)
}
