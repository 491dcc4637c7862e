package reactions

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamwavecut/upupa/internal/chatlog"
	"github.com/iamwavecut/upupa/internal/llm"
	"github.com/iamwavecut/upupa/internal/personality"
	"github.com/iamwavecut/upupa/internal/storage"
)

var hoopoe = personality.Personality{
	ID:       "upupa",
	Name:     "Удод",
	System:   "Ты удод.",
	Emojis:   []string{"🔥"},
	Fallback: []string{"ку-ку"},
	Triggers: []personality.Trigger{{Words: []string{"удод"}, Replies: []string{"я тут"}}},
}

func quietSettings() storage.ChatSettings {
	return storage.ChatSettings{RandomEnabled: true}
}

func newDispatcher() *Dispatcher {
	return NewDispatcher(rand.New(rand.NewSource(1)))
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestDecideAddressedAlwaysReplies(t *testing.T) {
	d := newDispatcher()
	s := quietSettings()
	s.RandomEnabled = false
	dec := d.Decide(1, Input{Text: "эй", Addressed: true, At: t0}, s, hoopoe)
	assert.Equal(t, Text, dec.Kind)
	assert.False(t, dec.Forced)
}

func TestDecideSkipsCommandsButCounts(t *testing.T) {
	d := newDispatcher()
	s := quietSettings()
	s.ReactionChance = 1
	assert.Equal(t, None, d.Decide(1, Input{Text: "/quiz", IsCommand: true, At: t0}, s, hoopoe).Kind)
	assert.Equal(t, None, d.Decide(1, Input{Text: "hi", FromBot: true, At: t0}, s, hoopoe).Kind)
	assert.Equal(t, None, d.Decide(1, Input{At: t0}, s, hoopoe).Kind)
	assert.Equal(t, 3, d.Quiet(1))
}

func TestObservedMessagesForceQuietReply(t *testing.T) {
	d := newDispatcher()
	s := quietSettings()
	s.QuietThreshold = 3
	d.Observe(1)
	d.Observe(1)
	assert.Equal(t, 2, d.Quiet(1))
	assert.Equal(t, 0, d.Quiet(2))

	dec := d.Decide(1, Input{Text: "ну и ладно", At: t0}, s, hoopoe)
	assert.Equal(t, Text, dec.Kind)
	assert.True(t, dec.Forced)
	assert.Equal(t, 0, d.Quiet(1))
}

func TestDecideTrigger(t *testing.T) {
	d := newDispatcher()
	s := quietSettings()
	s.TriggerChance = 1
	dec := d.Decide(1, Input{Text: "Где наш УДОД?", At: t0}, s, hoopoe)
	assert.Equal(t, Trigger, dec.Kind)
	assert.Equal(t, "я тут", dec.Reply)

	s.TriggerChance = 0
	assert.Equal(t, None, d.Decide(1, Input{Text: "удод", At: t0}, s, hoopoe).Kind)
}

func TestDecideCooldown(t *testing.T) {
	d := newDispatcher()
	s := quietSettings()
	s.ReactionChance = 1
	s.CooldownSeconds = 60

	dec := d.Decide(1, Input{Text: "a", At: t0}, s, hoopoe)
	assert.Equal(t, Emoji, dec.Kind)
	assert.Equal(t, "🔥", dec.Emoji)
	assert.Equal(t, 0, d.Quiet(1))

	assert.Equal(t, None, d.Decide(1, Input{Text: "b", At: t0.Add(10 * time.Second)}, s, hoopoe).Kind)
	assert.Equal(t, Text, d.Decide(1, Input{Text: "c", Addressed: true, At: t0.Add(20 * time.Second)}, s, hoopoe).Kind,
		"addressing ignores the cooldown")
	assert.Equal(t, Emoji, d.Decide(1, Input{Text: "d", At: t0.Add(61 * time.Second)}, s, hoopoe).Kind)
	assert.Equal(t, Emoji, d.Decide(2, Input{Text: "e", At: t0.Add(10 * time.Second)}, s, hoopoe).Kind,
		"chats are independent")
}

func TestDecidePriority(t *testing.T) {
	s := quietSettings()
	s.ReplyChance = 1
	s.VoiceChance = 1
	assert.Equal(t, Text, newDispatcher().Decide(1, Input{Text: "x", At: t0}, s, hoopoe).Kind)

	s = quietSettings()
	s.VoiceChance = 1
	s.ImageChance = 1
	assert.Equal(t, Voice, newDispatcher().Decide(1, Input{Text: "x", At: t0}, s, hoopoe).Kind)

	s = quietSettings()
	s.ImageChance = 1
	assert.Equal(t, Image, newDispatcher().Decide(1, Input{Text: "x", At: t0}, s, hoopoe).Kind)
}

func TestDecideQuietStreak(t *testing.T) {
	d := newDispatcher()
	s := quietSettings()
	s.QuietThreshold = 3

	assert.Equal(t, None, d.Decide(1, Input{Text: "1", At: t0}, s, hoopoe).Kind)
	assert.Equal(t, None, d.Decide(1, Input{Text: "2", At: t0}, s, hoopoe).Kind)
	dec := d.Decide(1, Input{Text: "3", At: t0}, s, hoopoe)
	assert.Equal(t, Text, dec.Kind)
	assert.True(t, dec.Forced)
	assert.Equal(t, 0, d.Quiet(1))

	s.RandomEnabled = false
	for i := 0; i < 5; i++ {
		assert.Equal(t, None, d.Decide(1, Input{Text: "z", At: t0}, s, hoopoe).Kind)
	}
}

type fakeGen struct {
	text string
	err  error
	req  llm.Request
	pref string
}

func (f *fakeGen) Generate(_ context.Context, preferred string, req llm.Request) (llm.Result, error) {
	f.req, f.pref = req, preferred
	if f.err != nil {
		return llm.Result{}, f.err
	}
	return llm.Result{Text: f.text, Provider: "fake"}, nil
}

type sent struct {
	kind    string
	text    string
	payload []byte
}

type fakeSender struct {
	sent     []sent
	voiceErr error
}

func (f *fakeSender) React(_ context.Context, _ int64, _ int, emoji string) error {
	f.sent = append(f.sent, sent{kind: "react", text: emoji})
	return nil
}

func (f *fakeSender) Reply(_ context.Context, _ int64, _ int, text string) error {
	f.sent = append(f.sent, sent{kind: "text", text: text})
	return nil
}

func (f *fakeSender) ReplyVoice(_ context.Context, _ int64, _ int, wav []byte) error {
	if f.voiceErr != nil {
		return f.voiceErr
	}
	f.sent = append(f.sent, sent{kind: "voice", payload: wav})
	return nil
}

func (f *fakeSender) ReplyPhoto(_ context.Context, _ int64, _ int, image []byte, caption string) error {
	f.sent = append(f.sent, sent{kind: "photo", text: caption, payload: image})
	return nil
}

type fakeHistory struct {
	entries []chatlog.Entry
}

func (f *fakeHistory) Tail(int64, int) ([]chatlog.Entry, error) { return f.entries, nil }

func (f *fakeHistory) Append(e chatlog.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

type fakeSpeaker struct{ err error }

func (f fakeSpeaker) Speak(context.Context, string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("RIFF"), nil
}

type fakeImager struct{ err error }

func (f fakeImager) GenerateImage(context.Context, string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("png"), "image/png", nil
}

func newReactor(gen *fakeGen, out *fakeSender, hist *fakeHistory, speaker Speaker, imager Imager) *Reactor {
	return NewReactor(ReactorOptions{
		Generator:  gen,
		History:    hist,
		Speaker:    speaker,
		Imager:     imager,
		Sender:     out,
		Dispatcher: newDispatcher(),
		BotID:      99,
		BotName:    "Upupa",
	})
}

var ev = Event{ChatID: 1, MessageID: 10, ChatTitle: "Чат", Lang: "ru", Text: "как дела?"}

func TestExecuteTextUsesHistoryAndProvider(t *testing.T) {
	gen := &fakeGen{text: "**отлично**"}
	out := &fakeSender{}
	hist := &fakeHistory{entries: []chatlog.Entry{
		{UserID: 5, Name: "Ann", Text: "как дела?"},
	}}
	r := newReactor(gen, out, hist, nil, nil)

	s := quietSettings()
	s.Provider = "groq"
	require.NoError(t, r.Execute(context.Background(), ev, Decision{Kind: Text}, s, hoopoe))

	assert.Equal(t, "groq", gen.pref)
	assert.Contains(t, gen.req.System, "Ты удод.")
	require.Len(t, gen.req.Messages, 1)
	assert.Equal(t, "Ann", gen.req.Messages[0].Name)

	require.Len(t, out.sent, 1)
	assert.Equal(t, "<b>отлично</b>", out.sent[0].text)
	require.Len(t, hist.entries, 2)
	assert.Equal(t, int64(99), hist.entries[1].UserID)
}

func TestExecuteTextFallsBackToPhrase(t *testing.T) {
	out := &fakeSender{}
	r := newReactor(&fakeGen{err: llm.ErrAllProvidersFailed}, out, &fakeHistory{}, nil, nil)
	require.NoError(t, r.Execute(context.Background(), ev, Decision{Kind: Text}, quietSettings(), hoopoe))
	require.Len(t, out.sent, 1)
	assert.Equal(t, "ку-ку", out.sent[0].text)
}

func TestExecuteVoiceFallbacks(t *testing.T) {
	out := &fakeSender{}
	r := newReactor(&fakeGen{text: "привет"}, out, &fakeHistory{}, fakeSpeaker{}, nil)
	require.NoError(t, r.Execute(context.Background(), ev, Decision{Kind: Voice}, quietSettings(), hoopoe))
	require.Len(t, out.sent, 1)
	assert.Equal(t, "voice", out.sent[0].kind)

	out = &fakeSender{}
	r = newReactor(&fakeGen{text: "привет"}, out, &fakeHistory{}, fakeSpeaker{err: errors.New("quota")}, nil)
	require.NoError(t, r.Execute(context.Background(), ev, Decision{Kind: Voice}, quietSettings(), hoopoe))
	require.Len(t, out.sent, 1)
	assert.Equal(t, sent{kind: "text", text: "привет"}, out.sent[0])

	out = &fakeSender{voiceErr: errors.New("voice forbidden")}
	r = newReactor(&fakeGen{text: "привет"}, out, &fakeHistory{}, fakeSpeaker{}, nil)
	require.NoError(t, r.Execute(context.Background(), ev, Decision{Kind: Voice}, quietSettings(), hoopoe))
	require.Len(t, out.sent, 1)
	assert.Equal(t, "text", out.sent[0].kind)
}

func TestExecuteImageFallsBackToEmoji(t *testing.T) {
	out := &fakeSender{}
	r := newReactor(&fakeGen{}, out, &fakeHistory{}, nil, fakeImager{})
	require.NoError(t, r.Execute(context.Background(), ev, Decision{Kind: Image}, quietSettings(), hoopoe))
	assert.Equal(t, "photo", out.sent[0].kind)

	out = &fakeSender{}
	r = newReactor(&fakeGen{}, out, &fakeHistory{}, nil, fakeImager{err: llm.ErrNoImage})
	require.NoError(t, r.Execute(context.Background(), ev, Decision{Kind: Image}, quietSettings(), hoopoe))
	assert.Equal(t, sent{kind: "react", text: "🔥"}, out.sent[0])

	out = &fakeSender{}
	r = newReactor(&fakeGen{}, out, &fakeHistory{}, nil, nil)
	require.NoError(t, r.Execute(context.Background(), ev, Decision{Kind: Image}, quietSettings(), hoopoe))
	assert.Equal(t, "react", out.sent[0].kind)
}

func TestExecuteTriggerAndNone(t *testing.T) {
	out := &fakeSender{}
	r := newReactor(&fakeGen{}, out, &fakeHistory{}, nil, nil)
	require.NoError(t, r.Execute(context.Background(), ev, Decision{}, quietSettings(), hoopoe))
	assert.Empty(t, out.sent)
	require.NoError(t, r.Execute(context.Background(), ev, Decision{Kind: Trigger, Reply: "я тут"}, quietSettings(), hoopoe))
	assert.Equal(t, sent{kind: "text", text: "я тут"}, out.sent[0])
}
