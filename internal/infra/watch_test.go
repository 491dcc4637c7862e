package infra

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEveryKeepsRunningAfterErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		Every(ctx, "test", 5*time.Millisecond, func(context.Context) error {
			if runs.Add(1) >= 3 {
				cancel()
			}
			return errors.New("fail")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestMonitorExecutableStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := MonitorExecutable(ctx)
	cancel()
	select {
	case <-ch:
		t.Fatal("unexpected change signal")
	case <-time.After(20 * time.Millisecond):
	}
}
