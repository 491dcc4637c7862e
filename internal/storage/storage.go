package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/keshon/datastore"
)

const (
	chatKeyPrefix = "chat:"
	chatIndexKey  = "chats"
)

type kv interface {
	Get(key string, dest any) (bool, error)
	Set(key string, value any) error
	Close() error
}

// Store keeps per-chat state in a JSON file.
type Store struct {
	ds       kv
	mu       sync.Mutex
	defaults ChatSettings
	now      func() time.Time
}

// New opens the state file. The background autosave stops with ctx or on Close.
func New(ctx context.Context, filePath string, defaults ChatSettings) (*Store, error) {
	ctx, cancel := context.WithCancel(ctx)
	ds, err := datastore.New(ctx, filePath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open datastore: %w", err)
	}
	return newStore(&fileKV{DataStore: ds, cancel: cancel}, defaults), nil
}

// NewMemory returns a Store that keeps everything in memory, for tests and dry runs.
func NewMemory(defaults ChatSettings) *Store {
	return newStore(&memoryKV{data: map[string]json.RawMessage{}}, defaults)
}

func newStore(ds kv, defaults ChatSettings) *Store {
	return &Store{ds: ds, defaults: defaults, now: time.Now}
}

func (s *Store) Close() error {
	return s.ds.Close()
}

func (s *Store) Defaults() ChatSettings {
	return s.defaults
}

// Chat returns the record for chatID, or a fresh one with default settings.
func (s *Store) Chat(chatID int64) (ChatRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(chatID)
}

func (s *Store) Settings(chatID int64) ChatSettings {
	rec, err := s.Chat(chatID)
	if err != nil {
		return s.defaults
	}
	return rec.Settings
}

// UpdateChat loads, mutates and stores the record atomically with respect to other updates.
// Returning an error from fn discards the mutation.
func (s *Store) UpdateChat(chatID int64, fn func(*ChatRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(chatID)
	if err != nil {
		return err
	}
	if err := fn(&rec); err != nil {
		return err
	}
	rec.UpdatedAt = s.now()
	if err := s.ds.Set(chatKey(chatID), rec); err != nil {
		return fmt.Errorf("store chat %d: %w", chatID, err)
	}
	return s.index(chatID)
}

// Touch registers the chat as known and active, refreshing its title.
func (s *Store) Touch(chatID int64, title string) error {
	return s.UpdateChat(chatID, func(rec *ChatRecord) error {
		if title != "" {
			rec.Title = title
		}
		rec.Active = true
		return nil
	})
}

func (s *Store) ChatIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatIDs()
}

func (s *Store) load(chatID int64) (ChatRecord, error) {
	var rec ChatRecord
	ok, err := s.ds.Get(chatKey(chatID), &rec)
	if err != nil {
		return ChatRecord{}, fmt.Errorf("decode chat %d: %w", chatID, err)
	}
	if !ok {
		rec = ChatRecord{ID: chatID, Active: true, Settings: s.defaults}
	}
	rec.ensureMaps()
	return rec, nil
}

func (s *Store) chatIDs() []int64 {
	var ids []int64
	if _, err := s.ds.Get(chatIndexKey, &ids); err != nil {
		return nil
	}
	return ids
}

func (s *Store) index(chatID int64) error {
	ids := s.chatIDs()
	for _, id := range ids {
		if id == chatID {
			return nil
		}
	}
	ids = append(ids, chatID)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return s.ds.Set(chatIndexKey, ids)
}

func chatKey(chatID int64) string {
	return chatKeyPrefix + strconv.FormatInt(chatID, 10)
}

// fileKV stops the autosave loop before the final save, since
// DataStore.Close waits for that loop to exit.
type fileKV struct {
	*datastore.DataStore
	cancel context.CancelFunc
}

func (f *fileKV) Close() error {
	f.cancel()
	return f.DataStore.Close()
}

// memoryKV mirrors the datastore contract: values are marshalled on Set.
type memoryKV struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func (m *memoryKV) Get(key string, dest any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memoryKV) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memoryKV) Close() error { return nil }
