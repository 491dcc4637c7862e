// Package moderation filters spam from newcomers and tracks chat membership.
package moderation

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/iamwavecut/upupa/internal/storage"
)

const (
	DefaultNewcomerWindow = 24 * time.Hour
	DefaultMinMessages    = 5

	floodWindow  = time.Minute
	floodRepeats = 3
	floodMinLen  = 5
)

var (
	reLink    = regexp.MustCompile(`(?i)(https?://|www\.|t\.me/|telegram\.me/|\b[a-z0-9-]+\.(com|ru|net|org|io|me|xyz|top|info|biz|link|click|site|online|shop)\b)`)
	reMention = regexp.MustCompile(`(^|\s)@[A-Za-z][A-Za-z0-9_]{3,}`)

	DefaultBlacklist = []string{
		"крипт", "заработ", "казино", "ставк", "инвестиц", "доход от", "пассивный доход",
		"интим", "18+", "usdt", "airdrop", "бесплатно раздаю", "пиши в лс", "пишите в лс",
	}
)

type Reason string

const (
	ReasonNone      Reason = ""
	ReasonLink      Reason = "link"
	ReasonMention   Reason = "mention"
	ReasonForward   Reason = "forward"
	ReasonBlacklist Reason = "blacklist"
	ReasonFlood     Reason = "flood"
)

// Message is the part of an incoming message the filter looks at.
type Message struct {
	ChatID    int64
	UserID    int64
	Text      string
	HasLink   bool
	Forwarded bool
	At        time.Time
}

type Verdict struct {
	Spam   bool
	Reason Reason
}

type seen struct {
	text string
	at   time.Time
}

type Filter struct {
	window      time.Duration
	minMessages int
	blacklist   []string

	mu     sync.Mutex
	recent map[int64][]seen
}

func NewFilter(window time.Duration, minMessages int, blacklist []string) *Filter {
	lower := make([]string, 0, len(blacklist))
	for _, w := range blacklist {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			lower = append(lower, w)
		}
	}
	return &Filter{window: window, minMessages: minMessages, blacklist: lower, recent: map[int64][]seen{}}
}

// IsNewcomer reports whether a member whose join the bot saw is still on probation.
func (f *Filter) IsNewcomer(m storage.Member, at time.Time) bool {
	if m.JoinedAt.IsZero() {
		return false
	}
	return at.Sub(m.JoinedAt) < f.window || m.Messages < f.minMessages
}

// Check judges a message. Flood detection applies to everyone; content rules only to newcomers.
func (f *Filter) Check(msg Message, member storage.Member) Verdict {
	if f.flood(msg) {
		return Verdict{Spam: true, Reason: ReasonFlood}
	}
	if !f.IsNewcomer(member, msg.At) {
		return Verdict{}
	}
	switch {
	case msg.Forwarded:
		return Verdict{Spam: true, Reason: ReasonForward}
	case msg.HasLink || reLink.MatchString(msg.Text):
		return Verdict{Spam: true, Reason: ReasonLink}
	case reMention.MatchString(msg.Text):
		return Verdict{Spam: true, Reason: ReasonMention}
	}
	lower := strings.ToLower(msg.Text)
	for _, w := range f.blacklist {
		if strings.Contains(lower, w) {
			return Verdict{Spam: true, Reason: ReasonBlacklist}
		}
	}
	return Verdict{}
}

func (f *Filter) flood(msg Message) bool {
	text := strings.Join(strings.Fields(strings.ToLower(msg.Text)), " ")
	if len([]rune(text)) < floodMinLen {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.recent[msg.ChatID][:0]
	repeats := 1
	for _, s := range f.recent[msg.ChatID] {
		if msg.At.Sub(s.at) > floodWindow {
			continue
		}
		kept = append(kept, s)
		if s.text == text {
			repeats++
		}
	}
	f.recent[msg.ChatID] = append(kept, seen{text: text, at: msg.At})
	return repeats >= floodRepeats
}
