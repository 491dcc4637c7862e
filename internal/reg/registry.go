package reg

import (
	"sync"
)

type (
	registry map[string]any
)

var (
	instance = registry{}
	mu       sync.RWMutex
)

// Get returns the stored value for key, storing defaults first when the key is absent
// or holds a value of another type.
func Get[T any](key string, defaults T) T {
	mu.RLock()
	v, ok := instance[key]
	mu.RUnlock()
	if ok {
		if typed, ok := v.(T); ok {
			return typed
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if v, ok := instance[key]; ok {
		if typed, ok := v.(T); ok {
			return typed
		}
	}
	instance[key] = defaults
	return defaults
}

func Set(key string, value any) {
	mu.Lock()
	instance[key] = value
	mu.Unlock()
}

// Update applies fn to the current value under the write lock and stores the result.
func Update[T any](key string, defaults T, fn func(T) T) T {
	mu.Lock()
	defer mu.Unlock()
	current := defaults
	if v, ok := instance[key]; ok {
		if typed, ok := v.(T); ok {
			current = typed
		}
	}
	next := fn(current)
	instance[key] = next
	return next
}

func Delete(key string) {
	mu.Lock()
	delete(instance, key)
	mu.Unlock()
}
