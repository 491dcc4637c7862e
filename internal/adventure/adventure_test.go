package adventure

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamwavecut/upupa/internal/llm"
	"github.com/iamwavecut/upupa/internal/storage"
)

type scriptedGen struct {
	replies []string
	err     error
	last    llm.Request
}

func (g *scriptedGen) Generate(_ context.Context, _ string, req llm.Request) (llm.Result, error) {
	g.last = req
	if g.err != nil {
		return llm.Result{}, g.err
	}
	reply := g.replies[0]
	g.replies = g.replies[1:]
	return llm.Result{Text: reply, Provider: "fake"}, nil
}

type echoGen struct{}

func (echoGen) Generate(context.Context, string, llm.Request) (llm.Result, error) {
	return llm.Result{Text: "Начинаем.", Provider: "fake"}, nil
}

func TestRandomSettingsAcrossChats(t *testing.T) {
	store := storage.NewMemory(storage.ChatSettings{})
	s := New(echoGen{}, store)

	var wg sync.WaitGroup
	for chat := int64(1); chat <= 16; chat++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			_, err := s.Start(context.Background(), chatID, "", storage.ChatSettings{})
			assert.NoError(t, err)
		}(chat)
	}
	wg.Wait()

	for chat := int64(1); chat <= 16; chat++ {
		rec, err := store.Chat(chat)
		require.NoError(t, err)
		require.NotNil(t, rec.Adventure)
		assert.Contains(t, settings, rec.Adventure.Setting)
	}
}

func TestAdventureLifecycle(t *testing.T) {
	gen := &scriptedGen{replies: []string{"Вы у ворот замка.", "Ворота скрипят."}}
	store := storage.NewMemory(storage.ChatSettings{})
	s := New(gen, store)
	ctx := context.Background()

	_, err := s.Act(ctx, 1, "Ann", "открыть ворота", storage.ChatSettings{})
	assert.ErrorIs(t, err, ErrNoSession)

	scene, err := s.Start(ctx, 1, "замок", storage.ChatSettings{})
	require.NoError(t, err)
	assert.Equal(t, "Вы у ворот замка.", scene)
	assert.Contains(t, gen.last.System, "замок")

	_, err = s.Start(ctx, 1, "", storage.ChatSettings{})
	assert.ErrorIs(t, err, ErrSessionRunning)

	_, err = s.Act(ctx, 1, "Ann", "  ", storage.ChatSettings{})
	assert.ErrorIs(t, err, ErrEmptyAction)

	scene, err = s.Act(ctx, 1, "Ann", "открыть ворота", storage.ChatSettings{})
	require.NoError(t, err)
	assert.Equal(t, "Ворота скрипят.", scene)
	require.Len(t, gen.last.Messages, 3)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Name: "Ann", Content: "открыть ворота"}, gen.last.Messages[2])

	rec, _ := store.Chat(1)
	require.NotNil(t, rec.Adventure)
	assert.Equal(t, 1, rec.Adventure.Turns)
	assert.Len(t, rec.Adventure.History, 4)

	ended, err := s.End(1)
	require.NoError(t, err)
	assert.Equal(t, "замок", ended.Setting)
	_, err = s.End(1)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestActFailureKeepsSession(t *testing.T) {
	gen := &scriptedGen{replies: []string{"Начало."}}
	store := storage.NewMemory(storage.ChatSettings{})
	s := New(gen, store)
	ctx := context.Background()

	_, err := s.Start(ctx, 1, "", storage.ChatSettings{})
	require.NoError(t, err)

	gen.err = errors.New("overloaded")
	_, err = s.Act(ctx, 1, "Bob", "бежать", storage.ChatSettings{})
	require.Error(t, err)

	rec, _ := store.Chat(1)
	assert.Len(t, rec.Adventure.History, 2)
	assert.Zero(t, rec.Adventure.Turns)
	assert.NotEmpty(t, rec.Adventure.Setting, "a random setting is chosen")
}
