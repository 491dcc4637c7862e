// Package llm hides the hosted model providers behind one text interface and
// routes requests across them in a fixed fallback order.
package llm

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	maxReplyRunes = 3800
)

var (
	ErrNoProviders        = errors.New("no llm providers configured")
	ErrAllProvidersFailed = errors.New("all llm providers failed")
	ErrUnknownProvider    = errors.New("unknown llm provider")
	ErrEmptyResponse      = errors.New("empty llm response")
	ErrNoImage            = errors.New("model returned no image")
	ErrNoAudio            = errors.New("model returned no audio")
)

type Message struct {
	Role    string
	Name    string
	Content string
}

type Request struct {
	System      string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Prompt builds a single-turn request.
func Prompt(system, user string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: user}},
	}
}

type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Generator is what feature code depends on; *Router implements it.
type Generator interface {
	Generate(ctx context.Context, preferred string, req Request) (Result, error)
}

type Result struct {
	Text     string
	Provider string
}

var reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)

// CleanReply strips reasoning blocks and wrapping quotes and caps the length.
func CleanReply(reply string) string {
	reply = strings.TrimSpace(reply)
	reply = reThink.ReplaceAllString(reply, "")
	reply = strings.TrimSpace(reply)

	if len(reply) >= 2 {
		quotes := []struct{ open, close string }{
			{`"`, `"`}, {`'`, `'`}, {"«", "»"}, {"“", "”"}, {"‘", "’"},
		}
		for _, q := range quotes {
			if strings.HasPrefix(reply, q.open) && strings.HasSuffix(reply, q.close) &&
				!strings.Contains(strings.TrimSuffix(strings.TrimPrefix(reply, q.open), q.close), q.open) {
				reply = strings.TrimSuffix(strings.TrimPrefix(reply, q.open), q.close)
				reply = strings.TrimSpace(reply)
				break
			}
		}
	}

	if runes := []rune(reply); len(runes) > maxReplyRunes {
		reply = string(runes[:maxReplyRunes]) + "…"
	}
	return reply
}

// isRetryable reports whether another model or provider might succeed where this one failed.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "resource_exhausted", "quota", "rate limit",
		"500", "502", "503", "504", "unavailable", "overloaded", "internal",
		"404", "not_found", "not found", "deadline",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
