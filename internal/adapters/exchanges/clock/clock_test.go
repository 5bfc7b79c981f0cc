package clock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonotonicNeverRepeats(t *testing.T) {
	c := Fixed(1000)
	assert.Equal(t, int64(1000), c.Milliseconds())
	assert.Equal(t, int64(1001), c.Milliseconds())
	c.Reset()
	assert.Equal(t, int64(1000), c.Milliseconds())
}

func TestMonotonicConcurrent(t *testing.T) {
	c := NewMonotonic()
	const n = 200

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := c.Milliseconds()
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
