// Package broadcast delivers an admin announcement to every known chat.
package broadcast

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iamwavecut/upupa/internal/storage"
)

var ErrEmptyText = errors.New("nothing to broadcast")

type Store interface {
	ChatIDs() []int64
	Chat(chatID int64) (storage.ChatRecord, error)
	UpdateChat(chatID int64, fn func(*storage.ChatRecord) error) error
}

type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type Report struct {
	Sent        int
	Failed      int
	Deactivated int
}

type Broadcaster struct {
	store   Store
	out     Sender
	limiter *rate.Limiter
}

// New paces deliveries with limiter; Telegram allows about 30 messages per second.
func New(store Store, out Sender, limiter *rate.Limiter) *Broadcaster {
	return &Broadcaster{store: store, out: out, limiter: limiter}
}

// Send posts text to every active chat. Chats that blocked or removed the bot are
// marked inactive and skipped from then on.
func (b *Broadcaster) Send(ctx context.Context, text string) (Report, error) {
	var report Report
	if strings.TrimSpace(text) == "" {
		return report, ErrEmptyText
	}
	for _, chatID := range b.store.ChatIDs() {
		rec, err := b.store.Chat(chatID)
		if err != nil || !rec.Active {
			continue
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return report, err
		}
		err = b.out.Send(ctx, chatID, text)
		if err == nil {
			report.Sent++
			continue
		}
		report.Failed++
		logger := log.WithError(err).WithField("chat", chatID)
		if !IsGone(err) {
			logger.Warn("broadcast delivery failed")
			continue
		}
		logger.Info("chat is gone, deactivating")
		if err := Deactivate(b.store, chatID); err != nil {
			logger.WithError(err).Warn("cant deactivate chat")
			continue
		}
		report.Deactivated++
	}
	return report, nil
}

func Deactivate(store Store, chatID int64) error {
	return store.UpdateChat(chatID, func(rec *storage.ChatRecord) error {
		rec.Active = false
		return nil
	})
}

// IsGone reports whether a Telegram error means the bot can no longer post to the chat.
func IsGone(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"bot was blocked", "bot was kicked", "chat not found", "user is deactivated",
		"not enough rights", "have no rights", "group chat was upgraded", "bot is not a member",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
