// Package reactions decides how the bot reacts to ordinary group messages and
// carries the decision out.
package reactions

import (
	"math/rand"
	"sync"
	"time"

	"github.com/iamwavecut/upupa/internal/personality"
	"github.com/iamwavecut/upupa/internal/storage"
)

type Kind int

const (
	None Kind = iota
	Emoji
	Text
	Trigger
	Voice
	Image
)

func (k Kind) String() string {
	switch k {
	case Emoji:
		return "emoji"
	case Text:
		return "text"
	case Trigger:
		return "trigger"
	case Voice:
		return "voice"
	case Image:
		return "image"
	default:
		return "none"
	}
}

// Input describes an incoming group message as seen by the dispatcher.
type Input struct {
	Text      string
	FromBot   bool
	IsCommand bool
	Addressed bool
	At        time.Time
}

type Decision struct {
	Kind  Kind
	Emoji string
	Reply string
	// Forced is set when the reply was triggered by a long quiet streak.
	Forced bool
}

type chatState struct {
	quiet      int
	lastRandom time.Time
}

// Dispatcher keeps per-chat counters and runs the decision cascade.
type Dispatcher struct {
	mu     sync.Mutex
	rng    *rand.Rand
	states map[int64]*chatState
}

func NewDispatcher(rng *rand.Rand) *Dispatcher {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
	return &Dispatcher{rng: rng, states: map[int64]*chatState{}}
}

// Decide picks a reaction for the message; the first matching rule wins.
func (d *Dispatcher) Decide(chatID int64, in Input, s storage.ChatSettings, p personality.Personality) Decision {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.state(chatID)
	st.quiet++

	dec := d.cascade(st, in, s, p)
	if dec.Kind != None {
		st.quiet = 0
		if !in.Addressed {
			st.lastRandom = in.At
		}
	}
	return dec
}

func (d *Dispatcher) cascade(st *chatState, in Input, s storage.ChatSettings, p personality.Personality) Decision {
	if in.IsCommand || in.FromBot || in.Text == "" {
		return Decision{}
	}
	if in.Addressed {
		return Decision{Kind: Text}
	}
	if !s.RandomEnabled {
		return Decision{}
	}
	if reply, ok := p.MatchTrigger(in.Text, d.rng); ok && d.rng.Float64() < s.TriggerChance {
		return Decision{Kind: Trigger, Reply: reply}
	}
	if !st.lastRandom.IsZero() && in.At.Sub(st.lastRandom) < s.Cooldown() {
		return Decision{}
	}
	switch {
	case d.rng.Float64() < s.ReactionChance:
		return Decision{Kind: Emoji, Emoji: p.RandomEmoji(d.rng)}
	case d.rng.Float64() < s.ReplyChance:
		return Decision{Kind: Text}
	case d.rng.Float64() < s.VoiceChance:
		return Decision{Kind: Voice}
	case d.rng.Float64() < s.ImageChance:
		return Decision{Kind: Image}
	}
	if s.QuietThreshold > 0 && st.quiet >= s.QuietThreshold {
		return Decision{Kind: Text, Forced: true}
	}
	return Decision{}
}

// Observe counts a message that is not a candidate for a reaction.
func (d *Dispatcher) Observe(chatID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state(chatID).quiet++
}

func (d *Dispatcher) state(chatID int64) *chatState {
	st, ok := d.states[chatID]
	if !ok {
		st = &chatState{}
		d.states[chatID] = st
	}
	return st
}

// Quiet returns how many messages passed in the chat since the last reaction.
func (d *Dispatcher) Quiet(chatID int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.states[chatID]; ok {
		return st.quiet
	}
	return 0
}

// Fallback picks a canned phrase or emoji with the dispatcher's random source.
func (d *Dispatcher) Fallback(p personality.Personality) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return p.RandomFallback(d.rng)
}

func (d *Dispatcher) Emoji(p personality.Personality) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return p.RandomEmoji(d.rng)
}
