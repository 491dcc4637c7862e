package reg

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetStoresDefaults(t *testing.T) {
	key := "test_defaults"
	defer Delete(key)

	assert.Equal(t, 5, Get(key, 5))
	assert.Equal(t, 5, Get(key, 7))

	Set(key, 9)
	assert.Equal(t, 9, Get(key, 7))
}

func TestGetReplacesMismatchedType(t *testing.T) {
	key := "test_mismatch"
	defer Delete(key)

	Set(key, "text")
	assert.Equal(t, 3, Get(key, 3))
}

func TestUpdateIsAtomic(t *testing.T) {
	key := "test_update"
	defer Delete(key)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Update(key, 0, func(n int) int { return n + 1 })
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, Get(key, 0))
}
