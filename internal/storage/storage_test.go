package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore() *Store {
	return NewMemory(ChatSettings{Personality: "upupa", ReplyChance: 0.1})
}

func TestChatDefaults(t *testing.T) {
	s := newMemStore()
	rec, err := s.Chat(42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, "upupa", rec.Settings.Personality)
	assert.NotNil(t, rec.Birthdays)
	assert.Empty(t, s.ChatIDs(), "reading does not register a chat")
}

func TestUpdateChatPersists(t *testing.T) {
	s := newMemStore()
	require.NoError(t, s.UpdateChat(-100, func(rec *ChatRecord) error {
		rec.Settings.Provider = "groq"
		rec.Birthdays[UserKey(7)] = Birthday{UserID: 7, Day: 1, Month: 2}
		return nil
	}))
	require.NoError(t, s.Touch(5, "five"))
	require.NoError(t, s.Touch(-100, ""))

	rec, err := s.Chat(-100)
	require.NoError(t, err)
	assert.Equal(t, "groq", rec.Settings.Provider)
	assert.Equal(t, 2, rec.Birthdays["7"].Month)
	assert.Equal(t, []int64{-100, 5}, s.ChatIDs())

	title, err := s.Chat(5)
	require.NoError(t, err)
	assert.Equal(t, "five", title.Title)
}

func TestUpdateChatDiscardsOnError(t *testing.T) {
	s := newMemStore()
	boom := errors.New("boom")
	err := s.UpdateChat(1, func(rec *ChatRecord) error {
		rec.Title = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)
	rec, _ := s.Chat(1)
	assert.Empty(t, rec.Title)
	assert.Empty(t, s.ChatIDs())
}

func TestUnencodableSettingsAreRefused(t *testing.T) {
	s := newMemStore()
	require.NoError(t, s.Touch(42, "chat"))

	err := s.UpdateChat(42, func(rec *ChatRecord) error {
		rec.Settings.ReplyChance = math.NaN()
		return nil
	})
	require.Error(t, err)

	rec, err := s.Chat(42)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, rec.Settings.ReplyChance, 1e-9)
	require.NoError(t, s.Touch(42, "renamed"))
}

func TestStoreOnDatastoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := New(ctx, path, ChatSettings{Personality: "upupa"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateChat(3, func(rec *ChatRecord) error {
		rec.Adventure = &AdventureSession{Setting: "cave", Turns: 2}
		return nil
	}))
	require.NoError(t, s.Close())

	reopened, err := New(ctx, path, ChatSettings{})
	require.NoError(t, err)
	defer reopened.Close()

	rec, err := reopened.Chat(3)
	require.NoError(t, err)
	require.NotNil(t, rec.Adventure)
	assert.Equal(t, "cave", rec.Adventure.Setting)
	assert.Equal(t, []int64{3}, reopened.ChatIDs())
}

func TestBirthdayDates(t *testing.T) {
	leap := Birthday{Day: 29, Month: 2}
	assert.True(t, leap.IsOn(time.Date(2023, 2, 28, 10, 0, 0, 0, time.UTC)))
	assert.False(t, leap.IsOn(time.Date(2024, 2, 28, 10, 0, 0, 0, time.UTC)))
	assert.True(t, leap.IsOn(time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC)))

	b := Birthday{Day: 5, Month: 1}
	from := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), b.Next(from))
	today := time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), b.Next(today))
}

func TestStats(t *testing.T) {
	stats, err := OpenStats(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer stats.Close()

	ctx := context.Background()
	day1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	for i := 0; i < 3; i++ {
		require.NoError(t, stats.Record(ctx, 1, 10, "alice", day1))
	}
	require.NoError(t, stats.Record(ctx, 1, 10, "alice_new", day2))
	require.NoError(t, stats.Record(ctx, 1, 20, "bob", day2))
	require.NoError(t, stats.Record(ctx, 1, 20, "bob", day2))
	require.NoError(t, stats.Record(ctx, 2, 30, "carol", day2))

	top, err := stats.Top(ctx, 1, day1, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, UserCount{UserID: 10, Username: "alice_new", Count: 4}, top[0])
	assert.Equal(t, UserCount{UserID: 20, Username: "bob", Count: 2}, top[1])

	top, err = stats.Top(ctx, 1, day2, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(20), top[0].UserID)

	messages, users, err := stats.Total(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, messages)
	assert.Equal(t, 2, users)
}
