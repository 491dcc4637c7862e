package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/upupa/internal/adventure"
	"github.com/iamwavecut/upupa/internal/birthday"
	"github.com/iamwavecut/upupa/internal/html"
	"github.com/iamwavecut/upupa/internal/i18n"
	"github.com/iamwavecut/upupa/internal/quiz"
	"github.com/iamwavecut/upupa/resources/consts"
)

func (b *Bot) Quiz(ctx context.Context, msg *tgb.MessageUpdate) error {
	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)
	s.Language = lang

	ctx, cancel := context.WithTimeout(ctx, consts.DurationReplyTimeout)
	defer cancel()
	b.Telegram.Typing(ctx, int64(msg.Chat.ID), tg.ChatActionTyping)
	if _, err := b.Quizzes.Start(ctx, int64(msg.Chat.ID), commandArgs(msg.Text), s); err != nil {
		return b.fail(ctx, msg, lang, "I could not come up with a question, try again later.", err)
	}
	return nil
}

func (b *Bot) QuizTop(ctx context.Context, msg *tgb.MessageUpdate) error {
	lang := b.lang(b.settings(msg.Chat.ID), msg.From)
	scores, err := b.Quizzes.Leaderboard(int64(msg.Chat.ID), consts.IntLeaderboardSize)
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	return b.answer(ctx, msg, quiz.FormatLeaderboard(scores, lang))
}

// QuizAnswer handles the answer buttons of quiz questions.
func (b *Bot) QuizAnswer(ctx context.Context, cbq *tgb.CallbackQueryUpdate) error {
	if !quiz.IsCallback(cbq.Data) {
		return cbq.Answer().DoVoid(ctx)
	}
	chatID, quizID, option, ok := quiz.ParseCallback(cbq.Data)
	if !ok {
		return cbq.Answer().DoVoid(ctx)
	}
	s := b.Store.Settings(chatID)
	lang := b.lang(s, &cbq.From)
	name := fullName(&cbq.From)

	outcome, err := b.Quizzes.Answer(chatID, quizID, int64(cbq.From.ID), name, option)
	switch {
	case errors.Is(err, quiz.ErrQuizNotFound):
		return cbq.Answer().Text(i18n.Get("This quiz is over.", lang)).DoVoid(ctx)
	case err != nil:
		log.WithError(err).WithField("chat", chatID).Warn("cant record quiz answer")
		return cbq.Answer().Text(i18n.Get(consts.StrRequestError, lang)).DoVoid(ctx)
	case outcome.Already:
		return cbq.Answer().Text(i18n.Get("You have already answered.", lang)).DoVoid(ctx)
	}

	if err := cbq.Answer().DoVoid(ctx); err != nil {
		log.WithError(err).Debug("cant answer callback")
	}
	return b.Telegram.Send(ctx, chatID, quiz.FormatOutcome(name, outcome, lang))
}

// SetBirthday stores the sender's birthday; "/birthday -" removes it.
func (b *Bot) SetBirthday(ctx context.Context, msg *tgb.MessageUpdate) error {
	lang := b.lang(b.settings(msg.Chat.ID), msg.From)
	arg := commandArgs(msg.Text)
	chatID, userID := int64(msg.Chat.ID), int64(msg.From.ID)

	switch arg {
	case "":
		return b.answer(ctx, msg, i18n.Get("Usage: /birthday DD.MM, or /birthday - to forget it", lang))
	case "-", "off", "remove":
		found, err := b.Birthdays.Remove(chatID, userID)
		if err != nil {
			return b.fail(ctx, msg, lang, consts.StrRequestError, err)
		}
		if !found {
			return b.answer(ctx, msg, i18n.Get("I did not know your birthday anyway.", lang))
		}
		return b.answer(ctx, msg, i18n.Get("Forgotten.", lang))
	}

	day, month, err := birthday.ParseDate(arg)
	if err != nil {
		return b.answer(ctx, msg, i18n.Get("Usage: /birthday DD.MM, or /birthday - to forget it", lang))
	}
	if err := b.Birthdays.Set(chatID, userID, fullName(msg.From), day, month); err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	return b.answer(ctx, msg, i18n.Getf("Got it, I will congratulate you on %02d.%02d 🎂", lang, day, month))
}

func (b *Bot) ListBirthdays(ctx context.Context, msg *tgb.MessageUpdate) error {
	lang := b.lang(b.settings(msg.Chat.ID), msg.From)
	list, err := b.Birthdays.Upcoming(int64(msg.Chat.ID))
	if err != nil {
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	return b.answer(ctx, msg, birthday.FormatList(list, lang))
}

func (b *Bot) AdventureStart(ctx context.Context, msg *tgb.MessageUpdate) error {
	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)

	ctx, cancel := context.WithTimeout(ctx, consts.DurationReplyTimeout)
	defer cancel()
	b.Telegram.Typing(ctx, int64(msg.Chat.ID), tg.ChatActionTyping)
	scene, err := b.Adventure.Start(ctx, int64(msg.Chat.ID), commandArgs(msg.Text), s)
	switch {
	case errors.Is(err, adventure.ErrSessionRunning):
		return b.answer(ctx, msg, i18n.Get("An adventure is already running. Act with /act or stop it with /dndend.", lang))
	case err != nil:
		return b.fail(ctx, msg, lang, "The game master is silent, try again later.", err)
	}
	return b.answer(ctx, msg, "🎲 "+html.Render(scene))
}

func (b *Bot) AdventureAct(ctx context.Context, msg *tgb.MessageUpdate) error {
	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)

	ctx, cancel := context.WithTimeout(ctx, consts.DurationReplyTimeout)
	defer cancel()
	b.Telegram.Typing(ctx, int64(msg.Chat.ID), tg.ChatActionTyping)
	scene, err := b.Adventure.Act(ctx, int64(msg.Chat.ID), fullName(msg.From), commandArgs(msg.Text), s)
	switch {
	case errors.Is(err, adventure.ErrNoSession):
		return b.answer(ctx, msg, i18n.Get("No adventure yet. Start one with /dnd [setting].", lang))
	case errors.Is(err, adventure.ErrEmptyAction):
		return b.answer(ctx, msg, i18n.Get("What do you do? /act <action>", lang))
	case err != nil:
		return b.fail(ctx, msg, lang, "The game master is silent, try again later.", err)
	}
	return b.answer(ctx, msg, html.Render(scene))
}

func (b *Bot) AdventureEnd(ctx context.Context, msg *tgb.MessageUpdate) error {
	lang := b.lang(b.settings(msg.Chat.ID), msg.From)
	ended, err := b.Adventure.End(int64(msg.Chat.ID))
	switch {
	case errors.Is(err, adventure.ErrNoSession):
		return b.answer(ctx, msg, i18n.Get("No adventure yet. Start one with /dnd [setting].", lang))
	case err != nil:
		return b.fail(ctx, msg, lang, consts.StrRequestError, err)
	}
	setting := strings.TrimSpace(ended.Setting)
	return b.answer(ctx, msg, i18n.Getf("The adventure «%s» is over after %d turns.", lang, html.Escape(setting), ended.Turns))
}
