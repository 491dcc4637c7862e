package handlers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamwavecut/upupa/internal/chatlog"
	"github.com/iamwavecut/upupa/internal/config"
	"github.com/iamwavecut/upupa/internal/llm"
	"github.com/iamwavecut/upupa/internal/personality"
	"github.com/iamwavecut/upupa/internal/reactions"
	"github.com/iamwavecut/upupa/internal/storage"
	"github.com/iamwavecut/upupa/resources/consts"
)

func TestCommandArgs(t *testing.T) {
	cases := map[string]string{
		"/pic a red fox":        "a red fox",
		"/pic@upupa_bot  sunny": "sunny",
		"/quiz":                 "",
		"/act\nopen the door":   "open the door",
		"plain text":            "plain text",
	}
	for in, want := range cases {
		assert.Equal(t, want, commandArgs(in), in)
	}
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Ann Lee", fullName(&tg.User{ID: 1, FirstName: "Ann", LastName: "Lee"}))
	assert.Equal(t, "Ann", fullName(&tg.User{ID: 1, FirstName: " Ann "}))
	assert.Equal(t, "@ann", fullName(&tg.User{ID: 1, Username: "ann"}))
	assert.Equal(t, "42", fullName(&tg.User{ID: 42}))
	assert.Empty(t, fullName(nil))
}

func TestAddressed(t *testing.T) {
	names := []string{"Упупа", "@upupa_bot", ""}
	assert.True(t, addressed("Упупа, как дела?", names...))
	assert.True(t, addressed("спроси @Upupa_Bot", names...))
	assert.True(t, addressed("ну что, упупа?", names...))
	assert.False(t, addressed("просто болтаем", names...))
	assert.False(t, addressed("упупами не рождаются", names...))
	assert.False(t, addressed("пиши @upupa_bot_fan", names...))
}

func TestAddressedOnlyActivePersonality(t *testing.T) {
	b := &Bot{names: []string{"upupa", "@upupa_bot"}}
	grandma := personality.Personality{ID: "grandma", Name: "Бабушка"}
	critic := personality.Personality{ID: "critic", Name: "Критик"}
	msg := &tg.Message{}

	assert.False(t, b.isAddressed(msg, "моя бабушка пекла пироги", critic))
	assert.False(t, b.isAddressed(msg, "кинокритики опять ругают фильм", critic))
	assert.True(t, b.isAddressed(msg, "Критик, что скажешь?", critic))
	assert.True(t, b.isAddressed(msg, "бабушка, расскажи сказку", grandma))
	assert.True(t, b.isAddressed(msg, "upupa, hi", critic))
}

func TestMayConfigure(t *testing.T) {
	b := &Bot{Deps: Deps{Config: config.Config{AdminIDs: []int64{7}}}}
	update := func(chatType tg.ChatType, userID tg.UserID) *tgb.MessageUpdate {
		return &tgb.MessageUpdate{Message: &tg.Message{
			Chat: tg.Chat{ID: -100, Type: chatType},
			From: &tg.User{ID: userID},
		}}
	}
	assert.True(t, b.mayConfigure(update(tg.ChatTypePrivate, 1)))
	assert.True(t, b.mayConfigure(update(tg.ChatTypeSupergroup, 7)))
	assert.False(t, b.mayConfigure(update(tg.ChatTypeSupergroup, 1)))
	assert.False(t, b.mayConfigure(update(tg.ChatTypeGroup, 1)))
}

func TestParseChance(t *testing.T) {
	for in, want := range map[string]float64{"0.05": 0.05, "0,5": 0.5, "5%": 0.05, "1": 1, "0": 0} {
		got, err := parseChance(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}
	for _, in := range []string{"1.5", "-0.1", "abc", "200%", "nan", "NaN%", "inf", "-Inf"} {
		_, err := parseChance(in)
		assert.ErrorIs(t, err, errBadValue, in)
	}
}

func TestSettingsChanges(t *testing.T) {
	var s storage.ChatSettings
	require.NoError(t, setChance(&s, "reaction", 0.1))
	require.NoError(t, setChance(&s, "Voice", 0.2))
	require.NoError(t, setChance(&s, "trigger", 0.3))
	assert.ErrorIs(t, setChance(&s, "dance", 0.3), errBadValue)
	assert.Equal(t, 0.1, s.ReactionChance)
	assert.Equal(t, 0.2, s.VoiceChance)
	assert.Equal(t, 0.3, s.TriggerChance)

	require.NoError(t, applySetting(&s, "random", "on"))
	require.NoError(t, applySetting(&s, "spam", "вкл"))
	require.NoError(t, applySetting(&s, "quiet", "40"))
	require.NoError(t, applySetting(&s, "cooldown", "15"))
	require.NoError(t, applySetting(&s, "lang", "EN"))
	assert.True(t, s.RandomEnabled)
	assert.True(t, s.SpamFilter)
	assert.Equal(t, 40, s.QuietThreshold)
	assert.Equal(t, 15*time.Second, s.Cooldown())
	assert.Equal(t, "en", s.Language)

	require.NoError(t, applySetting(&s, "lang", "auto"))
	assert.Empty(t, s.Language)
	assert.ErrorIs(t, applySetting(&s, "random", "maybe"), errBadValue)
	assert.ErrorIs(t, applySetting(&s, "quiet", "-1"), errBadValue)
	assert.ErrorIs(t, applySetting(&s, "volume", "11"), errBadValue)
	assert.ErrorIs(t, applySetting(&s, "lang", "xx"), errBadValue)

	text := formatSettings(s, "Упупа", "en")
	assert.Contains(t, text, "Personality: Упупа")
	assert.Contains(t, text, "Provider: auto")
	assert.Contains(t, text, "reaction: 10.0%")
	assert.Contains(t, text, "quiet: 40")
}

func TestFormatFound(t *testing.T) {
	assert.Equal(t, "Nothing found.", formatFound(nil, "en"))

	at := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	text := formatFound([]chatlog.Entry{{Time: at, Name: "Ann <3", Text: "про <котов>"}}, "en")
	assert.Contains(t, text, "01.06.24 12:30")
	assert.Contains(t, text, "Ann &lt;3")
	assert.Contains(t, text, "про &lt;котов&gt;")
}

func TestSamples(t *testing.T) {
	texts := []string{"first", "/cmd", " ", "second", "third"}
	assert.Equal(t, []string{"third", "second"}, samples(texts, 2))
	assert.Equal(t, []string{"third", "second", "first"}, samples(texts, 10))
}

func TestCapHistory(t *testing.T) {
	var h []llm.Message
	for i := 0; i < consts.IntPrivateHistory+5; i++ {
		h = append(h, llm.Message{Role: llm.RoleUser, Content: fmt.Sprint(i)})
	}
	h = capHistory(h)
	require.Len(t, h, consts.IntPrivateHistory)
	assert.Equal(t, "5", h[0].Content)
}

func TestCountedCommandsFeedQuietCounter(t *testing.T) {
	b := &Bot{Deps: Deps{Dispatcher: reactions.NewDispatcher(nil)}}
	calls := 0
	h := b.counted(func(context.Context, *tgb.MessageUpdate) error {
		calls++
		return nil
	})
	group := &tgb.MessageUpdate{Message: &tg.Message{Chat: tg.Chat{ID: -5, Type: tg.ChatTypeSupergroup}}}
	private := &tgb.MessageUpdate{Message: &tg.Message{Chat: tg.Chat{ID: 5, Type: tg.ChatTypePrivate}}}

	require.NoError(t, h(context.Background(), group))
	require.NoError(t, h(context.Background(), group))
	require.NoError(t, h(context.Background(), private))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, b.Dispatcher.Quiet(-5))
	assert.Equal(t, 0, b.Dispatcher.Quiet(5))
}
