package syncutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMutex_SerializesWriters(t *testing.T) {
	t.Parallel()

	var mu Mutex
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			counter++
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestRWMutex_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	var mu RWMutex
	value := 0
	mu.Lock()
	value = 7
	mu.Unlock()

	var wg sync.WaitGroup
	seen := make([]int, 4)
	for i := range seen {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mu.RLock()
			defer mu.RUnlock()
			seen[i] = value
		}(i)
	}
	wg.Wait()
	assert.Equal(t, []int{7, 7, 7, 7}, seen)
}
