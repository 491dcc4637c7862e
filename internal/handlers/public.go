package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/upupa/internal/chatlog"
	"github.com/iamwavecut/upupa/internal/moderation"
	"github.com/iamwavecut/upupa/internal/personality"
	"github.com/iamwavecut/upupa/internal/reactions"
	"github.com/iamwavecut/upupa/resources/consts"
)

func chatlogEntry(chatID, userID int64, name, text string) chatlog.Entry {
	return chatlog.Entry{Time: time.Now(), ChatID: chatID, UserID: userID, Name: name, Text: text}
}

// Public is the group pipeline: membership events, logging, counting, spam
// checks and finally the random reaction dispatcher.
func (b *Bot) Public(ctx context.Context, msg *tgb.MessageUpdate) error {
	chatID := int64(msg.Chat.ID)
	logger := log.WithFields(log.Fields{"component": "handlers", "chat": chatID})
	if err := b.Store.Touch(chatID, msg.Chat.Title); err != nil {
		logger.WithError(err).Warn("cant touch chat")
	}
	now := time.Now()

	if len(msg.NewChatMembers) > 0 {
		return b.joined(ctx, msg, now)
	}
	if left := msg.LeftChatMember; left != nil {
		if b.isMe(left) {
			return nil
		}
		if err := b.Tracker.Left(chatID, int64(left.ID), now); err != nil {
			logger.WithError(err).Warn("cant record departure")
		}
		return nil
	}
	if msg.From == nil || msg.From.IsBot {
		b.Dispatcher.Observe(chatID)
		return nil
	}

	s := b.settings(msg.Chat.ID)
	lang := b.lang(s, msg.From)
	name := fullName(msg.From)
	userID := int64(msg.From.ID)

	member, err := b.Tracker.Seen(ctx, chatID, userID, name, now)
	if err != nil {
		logger.WithError(err).Warn("cant count message")
	}
	raw := messageText(msg.Message)
	if s.SpamFilter {
		verdict := b.Filter.Check(moderation.Message{
			ChatID:    chatID,
			UserID:    userID,
			Text:      raw,
			Forwarded: msg.ForwardDate != 0 || msg.ForwardFrom != nil || msg.ForwardFromChat != nil,
			At:        now,
		}, member)
		if verdict.Spam {
			logger.WithFields(log.Fields{"user": userID, "reason": verdict.Reason}).Info("spam removed")
			if err := b.Telegram.Delete(ctx, chatID, msg.ID); err != nil {
				logger.WithError(err).Warn("cant delete spam")
			}
			return nil
		}
	}

	text := b.incomingText(ctx, msg.Message)
	b.remember(chatID, userID, name, text)

	p := b.personality(s)
	decision := b.Dispatcher.Decide(chatID, reactions.Input{
		Text:      text,
		FromBot:   msg.From.IsBot,
		IsCommand: strings.HasPrefix(raw, "/"),
		Addressed: b.isAddressed(msg.Message, text, p),
		At:        now,
	}, s, p)
	if decision.Kind == reactions.None {
		return nil
	}
	logger.WithFields(log.Fields{"kind": decision.Kind.String(), "forced": decision.Forced}).Debug("reacting")

	ctx, cancel := context.WithTimeout(ctx, b.reactionTimeout(decision))
	defer cancel()
	if decision.Kind == reactions.Text || decision.Kind == reactions.Voice {
		b.Telegram.Typing(ctx, chatID, tg.ChatActionTyping)
	}
	err = b.Reactor.Execute(ctx, reactions.Event{
		ChatID:    chatID,
		MessageID: msg.ID,
		ChatTitle: msg.Chat.Title,
		Lang:      lang,
		Text:      text,
	}, decision, s, p)
	if err != nil {
		logger.WithError(err).Warn("reaction failed")
	}
	return nil
}

func (b *Bot) joined(ctx context.Context, msg *tgb.MessageUpdate, at time.Time) error {
	chatID := int64(msg.Chat.ID)
	for i := range msg.NewChatMembers {
		user := &msg.NewChatMembers[i]
		if b.isMe(user) {
			s := b.settings(msg.Chat.ID)
			if greeting := b.personality(s).Greeting; greeting != "" {
				if err := b.Telegram.Send(ctx, chatID, tg.HTML.Escape(greeting)); err != nil {
					log.WithError(err).Warn("cant greet new chat")
				}
			}
			continue
		}
		if user.IsBot {
			continue
		}
		if err := b.Tracker.Joined(chatID, int64(user.ID), fullName(user), at); err != nil {
			log.WithError(err).WithField("chat", chatID).Warn("cant record join")
		}
	}
	return nil
}

// isAddressed reports a reply to the bot or a mention of the bot or its active personality.
func (b *Bot) isAddressed(msg *tg.Message, text string, p personality.Personality) bool {
	if msg.ReplyToMessage != nil && b.isMe(msg.ReplyToMessage.From) {
		return true
	}
	return addressed(text, append([]string{p.Name}, b.names...)...)
}

func (b *Bot) reactionTimeout(d reactions.Decision) time.Duration {
	switch d.Kind {
	case reactions.Voice, reactions.Image:
		return consts.DurationMediaTimeout
	}
	return consts.DurationReplyTimeout
}
