// Package adventure runs a chat-wide text adventure with the bot as game master.
package adventure

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/iamwavecut/upupa/internal/llm"
	"github.com/iamwavecut/upupa/internal/storage"
)

const (
	historyBudget = 2500
	maxStoredTurn = 60
	sceneTokens   = 900
)

var (
	ErrNoSession      = errors.New("no adventure in progress")
	ErrSessionRunning = errors.New("adventure already in progress")
	ErrEmptyAction    = errors.New("empty action")

	settings = []string{
		"тёмное фэнтези: проклятый замок на болотах",
		"киберпанк: неоновый мегаполис и пропавший андроид",
		"космическая опера: дрейфующая станция без экипажа",
		"славянское фэнтези: деревня, где пропадают коровы и люди",
		"нуар: дождливый город и кража века",
	}
)

type Store interface {
	Chat(chatID int64) (storage.ChatRecord, error)
	UpdateChat(chatID int64, fn func(*storage.ChatRecord) error) error
}

type Service struct {
	gen   llm.Generator
	store Store
	now   func() time.Time
	rng   *rand.Rand

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(gen llm.Generator, store Store) *Service {
	return &Service{
		gen:   gen,
		store: store,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec
		locks: map[int64]*sync.Mutex{},
	}
}

// lock serialises turns within one chat while the model is thinking.
func (s *Service) lock(chatID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[chatID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// randomSetting draws under s.mu since the source is shared by all chats.
func (s *Service) randomSetting() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return settings[s.rng.Intn(len(settings))]
}

func masterPrompt(setting string) string {
	return "Ты ведущий настольной ролевой игры в групповом чате. Сеттинг: " + setting + ".\n" +
		"Описывай сцены живо и кратко (до 120 слов), реагируй на действия игроков по именам, " +
		"вводи неожиданные повороты и последствия, иногда проси бросок кубика и сам объявляй результат. " +
		"Заканчивай каждый ответ вопросом «Что делаете?» или вариантами действий. Не действуй за игроков."
}

// Start opens a new adventure in the chat and returns the opening scene.
func (s *Service) Start(ctx context.Context, chatID int64, setting string, cs storage.ChatSettings) (string, error) {
	unlock := s.lock(chatID)
	defer unlock()

	rec, err := s.store.Chat(chatID)
	if err != nil {
		return "", err
	}
	if rec.Adventure != nil {
		return "", ErrSessionRunning
	}

	setting = strings.TrimSpace(setting)
	if setting == "" {
		setting = s.randomSetting()
	}
	opening := llm.Message{Role: llm.RoleUser, Content: "Начни новое приключение: опиши место, завязку и первую развилку."}
	res, err := s.gen.Generate(ctx, cs.Provider, llm.Request{
		System:      masterPrompt(setting),
		Messages:    []llm.Message{opening},
		Temperature: 1,
		MaxTokens:   sceneTokens,
	})
	if err != nil {
		return "", fmt.Errorf("opening scene: %w", err)
	}

	now := s.now()
	err = s.store.UpdateChat(chatID, func(rec *storage.ChatRecord) error {
		rec.Adventure = &storage.AdventureSession{
			Setting: setting,
			History: []storage.Turn{
				{Role: opening.Role, Content: opening.Content},
				{Role: llm.RoleAssistant, Content: res.Text},
			},
			StartedAt: now,
			UpdatedAt: now,
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Act applies a player's action and returns the game master's answer. A failed
// generation leaves the session untouched.
func (s *Service) Act(ctx context.Context, chatID int64, player, action string, cs storage.ChatSettings) (string, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return "", ErrEmptyAction
	}
	unlock := s.lock(chatID)
	defer unlock()

	rec, err := s.store.Chat(chatID)
	if err != nil {
		return "", err
	}
	if rec.Adventure == nil {
		return "", ErrNoSession
	}
	turn := storage.Turn{Role: llm.RoleUser, Name: player, Content: action}

	history := make([]llm.Message, 0, len(rec.Adventure.History)+1)
	for _, t := range append(rec.Adventure.History, turn) {
		history = append(history, llm.Message{Role: t.Role, Name: t.Name, Content: t.Content})
	}
	res, err := s.gen.Generate(ctx, cs.Provider, llm.Request{
		System:      masterPrompt(rec.Adventure.Setting),
		Messages:    llm.TrimToBudget(history, historyBudget),
		Temperature: 1,
		MaxTokens:   sceneTokens,
	})
	if err != nil {
		return "", fmt.Errorf("next scene: %w", err)
	}

	err = s.store.UpdateChat(chatID, func(rec *storage.ChatRecord) error {
		if rec.Adventure == nil {
			return ErrNoSession
		}
		a := rec.Adventure
		a.History = append(a.History, turn, storage.Turn{Role: llm.RoleAssistant, Content: res.Text})
		if len(a.History) > maxStoredTurn {
			a.History = a.History[len(a.History)-maxStoredTurn:]
		}
		a.Turns++
		a.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// End closes the chat's adventure and returns it.
func (s *Service) End(chatID int64) (storage.AdventureSession, error) {
	unlock := s.lock(chatID)
	defer unlock()

	var ended storage.AdventureSession
	err := s.store.UpdateChat(chatID, func(rec *storage.ChatRecord) error {
		if rec.Adventure == nil {
			return ErrNoSession
		}
		ended = *rec.Adventure
		rec.Adventure = nil
		return nil
	})
	return ended, err
}
