package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iamwavecut/upupa/internal/html"
	"github.com/iamwavecut/upupa/internal/i18n"
	"github.com/iamwavecut/upupa/internal/storage"
)

type Store interface {
	UpdateChat(chatID int64, fn func(*storage.ChatRecord) error) error
}

type Counter interface {
	Record(ctx context.Context, chatID, userID int64, username string, at time.Time) error
}

// Tracker records joins, departures and message counts of chat members.
type Tracker struct {
	store Store
	stats Counter
}

func NewTracker(store Store, stats Counter) *Tracker {
	return &Tracker{store: store, stats: stats}
}

func (t *Tracker) Joined(chatID, userID int64, name string, at time.Time) error {
	return t.store.UpdateChat(chatID, func(rec *storage.ChatRecord) error {
		key := storage.UserKey(userID)
		m := rec.Members[key]
		m.UserID, m.Name, m.JoinedAt, m.LeftAt, m.Messages = userID, name, at, time.Time{}, 0
		rec.Members[key] = m
		return nil
	})
}

func (t *Tracker) Left(chatID, userID int64, at time.Time) error {
	return t.store.UpdateChat(chatID, func(rec *storage.ChatRecord) error {
		key := storage.UserKey(userID)
		m, ok := rec.Members[key]
		if !ok {
			m.UserID = userID
		}
		m.LeftAt = at
		rec.Members[key] = m
		return nil
	})
}

// Seen counts a message of the member and returns the updated member record.
func (t *Tracker) Seen(ctx context.Context, chatID, userID int64, name string, at time.Time) (storage.Member, error) {
	var member storage.Member
	err := t.store.UpdateChat(chatID, func(rec *storage.ChatRecord) error {
		key := storage.UserKey(userID)
		m := rec.Members[key]
		m.UserID = userID
		if name != "" {
			m.Name = name
		}
		m.Messages++
		rec.Members[key] = m
		member = m
		return nil
	})
	if err != nil {
		return member, err
	}
	if t.stats != nil {
		if err := t.stats.Record(ctx, chatID, userID, name, at); err != nil {
			return member, fmt.Errorf("record stats: %w", err)
		}
	}
	return member, nil
}

func FormatStats(messages, users int, top []storage.UserCount, lang string) string {
	var b strings.Builder
	b.WriteString("📊 <b>" + i18n.Get("Chat statistics", lang) + "</b>\n\n")
	b.WriteString(i18n.Getf("Messages: %d", lang, messages) + "\n")
	b.WriteString(i18n.Getf("Active members: %d", lang, users) + "\n")
	if len(top) > 0 {
		b.WriteString("\n<b>" + i18n.Get("Top posters for 30 days", lang) + "</b>\n")
		for i, uc := range top {
			fmt.Fprintf(&b, "%d. %s: %d\n", i+1, html.Escape(uc.Username), uc.Count)
		}
	}
	return b.String()
}
