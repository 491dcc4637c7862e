package llm

import (
	"sort"
	"sync"
	"time"
)

const DefaultModelCooldown = 10 * time.Minute

// ModelFallback orders a fixed model list, pushing recently failed models out of
// rotation until their cooldown expires.
type ModelFallback struct {
	mu       sync.Mutex
	models   []string
	failedAt map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

func NewModelFallback(models []string, cooldown time.Duration) *ModelFallback {
	if cooldown <= 0 {
		cooldown = DefaultModelCooldown
	}
	return &ModelFallback{
		models:   append([]string(nil), models...),
		failedAt: map[string]time.Time{},
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Queue returns the models to try, in order. When every model is cooling down the
// whole list is returned, oldest failure first.
func (f *ModelFallback) Queue() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	var ready []string
	for _, m := range f.models {
		if at, failed := f.failedAt[m]; !failed || now.Sub(at) >= f.cooldown {
			ready = append(ready, m)
		}
	}
	if len(ready) > 0 {
		return ready
	}

	cooling := append([]string(nil), f.models...)
	sort.SliceStable(cooling, func(i, j int) bool {
		return f.failedAt[cooling[i]].Before(f.failedAt[cooling[j]])
	})
	return cooling
}

func (f *ModelFallback) MarkFailed(model string) {
	f.mu.Lock()
	f.failedAt[model] = f.now()
	f.mu.Unlock()
}

func (f *ModelFallback) MarkOK(model string) {
	f.mu.Lock()
	delete(f.failedAt, model)
	f.mu.Unlock()
}

func (f *ModelFallback) Models() []string {
	return append([]string(nil), f.models...)
}
