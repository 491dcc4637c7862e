package handlers

import (
	"context"
	"errors"

	"github.com/mr-linch/go-tg/tgb"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/upupa/internal/broadcast"
	"github.com/iamwavecut/upupa/internal/i18n"
	"github.com/iamwavecut/upupa/resources/consts"
)

// Broadcast sends the text after the command to every active chat.
func (b *Bot) Broadcast(ctx context.Context, msg *tgb.MessageUpdate) error {
	lang := b.lang(b.settings(msg.Chat.ID), msg.From)
	if !b.isAdmin(msg.From) {
		return b.answer(ctx, msg, i18n.Get(consts.StrAdminOnly, lang))
	}
	report, err := b.Broadcaster.Send(ctx, commandArgs(msg.Text))
	switch {
	case errors.Is(err, broadcast.ErrEmptyText):
		return b.answer(ctx, msg, i18n.Get("Usage: /broadcast <text>", lang))
	case err != nil:
		log.WithError(err).Warn("broadcast interrupted")
	}
	log.WithFields(log.Fields{
		"sent":        report.Sent,
		"failed":      report.Failed,
		"deactivated": report.Deactivated,
	}).Info("broadcast done")
	return b.answer(ctx, msg, i18n.Getf("Sent: %d, failed: %d, deactivated chats: %d", lang, report.Sent, report.Failed, report.Deactivated))
}
