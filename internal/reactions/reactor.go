package reactions

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/upupa/internal/chatlog"
	"github.com/iamwavecut/upupa/internal/html"
	"github.com/iamwavecut/upupa/internal/llm"
	"github.com/iamwavecut/upupa/internal/personality"
	"github.com/iamwavecut/upupa/internal/storage"
)

const (
	historySize   = 40
	historyBudget = 3000
	replyTokens   = 700
)

type Sender interface {
	React(ctx context.Context, chatID int64, messageID int, emoji string) error
	Reply(ctx context.Context, chatID int64, replyTo int, text string) error
	ReplyVoice(ctx context.Context, chatID int64, replyTo int, wav []byte) error
	ReplyPhoto(ctx context.Context, chatID int64, replyTo int, image []byte, caption string) error
}

type History interface {
	Tail(chatID int64, n int) ([]chatlog.Entry, error)
	Append(e chatlog.Entry) error
}

type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

type Imager interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

// Event is the message a decision is executed for.
type Event struct {
	ChatID    int64
	MessageID int
	ChatTitle string
	Lang      string
	Text      string
}

type Reactor struct {
	gen      llm.Generator
	history  History
	speaker  Speaker
	imager   Imager
	out      Sender
	dispatch *Dispatcher
	botID    int64
	botName  string
	now      func() time.Time
}

type ReactorOptions struct {
	Generator llm.Generator
	History   History
	// Speaker and Imager are optional.
	Speaker    Speaker
	Imager     Imager
	Sender     Sender
	Dispatcher *Dispatcher
	BotID      int64
	BotName    string
}

func NewReactor(opts ReactorOptions) *Reactor {
	r := &Reactor{
		gen:      opts.Generator,
		history:  opts.History,
		speaker:  opts.Speaker,
		imager:   opts.Imager,
		out:      opts.Sender,
		dispatch: opts.Dispatcher,
		botID:    opts.BotID,
		botName:  opts.BotName,
		now:      time.Now,
	}
	if r.dispatch == nil {
		r.dispatch = NewDispatcher(nil)
	}
	return r
}

// Execute carries the decision out, degrading voice to text, text to a canned
// phrase and images to an emoji when a provider fails.
func (r *Reactor) Execute(ctx context.Context, ev Event, d Decision, s storage.ChatSettings, p personality.Personality) error {
	logger := log.WithFields(log.Fields{"component": "reactions", "chat": ev.ChatID, "kind": d.Kind.String()})

	switch d.Kind {
	case None:
		return nil
	case Emoji:
		return r.react(ctx, ev, d.Emoji)
	case Trigger:
		return r.sendText(ctx, ev, d.Reply)
	case Text:
		return r.sendText(ctx, ev, r.Compose(ctx, ev, s, p))
	case Voice:
		text := r.Compose(ctx, ev, s, p)
		if r.speaker == nil {
			return r.sendText(ctx, ev, text)
		}
		wav, err := r.speaker.Speak(ctx, text)
		if err != nil {
			logger.WithError(err).Warn("speech failed, sending text")
			return r.sendText(ctx, ev, text)
		}
		if err := r.out.ReplyVoice(ctx, ev.ChatID, ev.MessageID, wav); err != nil {
			logger.WithError(err).Warn("voice send failed, sending text")
			return r.sendText(ctx, ev, text)
		}
		r.remember(ev, text)
		return nil
	case Image:
		if r.imager == nil {
			return r.react(ctx, ev, r.dispatch.Emoji(p))
		}
		img, _, err := r.imager.GenerateImage(ctx, imagePrompt(ev.Text))
		if err != nil {
			logger.WithError(err).Warn("image failed, reacting with emoji")
			return r.react(ctx, ev, r.dispatch.Emoji(p))
		}
		return r.out.ReplyPhoto(ctx, ev.ChatID, ev.MessageID, img, "")
	}
	return fmt.Errorf("unknown reaction kind %d", d.Kind)
}

// Compose asks the router for an in-character reply to the recent chat history.
// A canned fallback phrase is returned when every provider fails.
func (r *Reactor) Compose(ctx context.Context, ev Event, s storage.ChatSettings, p personality.Personality) string {
	req := llm.Request{
		System:      p.SystemPrompt(ev.ChatTitle, ev.Lang),
		Temperature: p.Temperature,
		MaxTokens:   replyTokens,
	}
	entries, err := r.history.Tail(ev.ChatID, historySize)
	if err != nil {
		log.WithError(err).WithField("component", "reactions").Warn("history unavailable")
	}
	req.Messages = llm.TrimToBudget(chatlog.ToMessages(entries, r.botID), historyBudget)
	if len(req.Messages) == 0 {
		req.Messages = []llm.Message{{Role: llm.RoleUser, Content: ev.Text}}
	}

	res, err := r.gen.Generate(ctx, s.Provider, req)
	if err != nil {
		log.WithError(err).WithField("chat", ev.ChatID).Warn("reply generation failed, using fallback phrase")
		return r.dispatch.Fallback(p)
	}
	log.WithFields(log.Fields{"chat": ev.ChatID, "provider": res.Provider}).Debug("reply generated")
	return res.Text
}

func (r *Reactor) react(ctx context.Context, ev Event, emoji string) error {
	if err := r.out.React(ctx, ev.ChatID, ev.MessageID, emoji); err != nil {
		return fmt.Errorf("set reaction: %w", err)
	}
	return nil
}

func (r *Reactor) sendText(ctx context.Context, ev Event, text string) error {
	if err := r.out.Reply(ctx, ev.ChatID, ev.MessageID, html.Render(text)); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	r.remember(ev, text)
	return nil
}

func (r *Reactor) remember(ev Event, text string) {
	err := r.history.Append(chatlog.Entry{
		Time:   r.now(),
		ChatID: ev.ChatID,
		UserID: r.botID,
		Name:   r.botName,
		Text:   text,
	})
	if err != nil {
		log.WithError(err).Warn("cant log own reply")
	}
}

func imagePrompt(text string) string {
	return "Нарисуй яркую смешную иллюстрацию к реплике из чата, без текста на картинке: " + text
}
