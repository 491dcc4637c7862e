package infra

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

const checkExecInterval = 5 * time.Second

// MonitorExecutable signals once the running binary is replaced on disk, so a
// supervisor can restart the bot with the new build.
func MonitorExecutable(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	exeFilename, err := os.Executable()
	if err != nil {
		log.WithError(err).Warn("executable watch disabled")
		return ch
	}
	stat, err := os.Stat(exeFilename)
	if err != nil {
		log.WithError(err).Warn("executable watch disabled")
		return ch
	}
	originalTime := stat.ModTime()
	log.WithField("path", exeFilename).Debug("watching executable")

	go func() {
		ticker := time.NewTicker(checkExecInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			stat, err := os.Stat(exeFilename)
			if err != nil {
				continue
			}
			if !originalTime.Equal(stat.ModTime()) {
				ch <- struct{}{}
				return
			}
		}
	}()
	return ch
}

// Every runs fn on each tick until ctx is done. A failing run is logged and
// does not stop the loop.
func Every(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				log.WithError(err).WithField("job", name).Warn("scheduled job failed")
			}
		}
	}
}
