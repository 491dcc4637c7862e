package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/iamwavecut/upupa/internal/storage"
)

type fakeSender struct {
	fail map[int64]error
	got  []int64
}

func (f *fakeSender) Send(_ context.Context, chatID int64, _ string) error {
	if err := f.fail[chatID]; err != nil {
		return err
	}
	f.got = append(f.got, chatID)
	return nil
}

func TestBroadcast(t *testing.T) {
	store := storage.NewMemory(storage.ChatSettings{})
	for _, id := range []int64{1, 2, 3, 4} {
		require.NoError(t, store.Touch(id, ""))
	}
	require.NoError(t, Deactivate(store, 4))

	out := &fakeSender{fail: map[int64]error{
		2: errors.New("Forbidden: bot was blocked by the user"),
		3: errors.New("Too Many Requests: retry after 5"),
	}}
	b := New(store, out, rate.NewLimiter(rate.Inf, 1))

	report, err := b.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, Report{Sent: 1, Failed: 2, Deactivated: 1}, report)
	assert.Equal(t, []int64{1}, out.got)

	rec, _ := store.Chat(2)
	assert.False(t, rec.Active)
	rec, _ = store.Chat(3)
	assert.True(t, rec.Active)

	_, err = b.Send(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestBroadcastStopsOnCancel(t *testing.T) {
	store := storage.NewMemory(storage.ChatSettings{})
	require.NoError(t, store.Touch(1, ""))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(store, &fakeSender{}, rate.NewLimiter(1, 1)).Send(ctx, "x")
	assert.Error(t, err)
}

func TestIsGone(t *testing.T) {
	assert.True(t, IsGone(errors.New("Bad Request: chat not found")))
	assert.True(t, IsGone(errors.New("Forbidden: bot was kicked from the supergroup chat")))
	assert.False(t, IsGone(errors.New("Bad Request: message is too long")))
	assert.False(t, IsGone(nil))
}
