package stm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_NewClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, uint64(0), c.Current(), "new clock should start at 0")
}

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt(100)
	assert.Equal(t, uint64(100), c.Current())
}

func TestClock_Next_Incrementing(t *testing.T) {
	c := NewClock()

	assert.Equal(t, uint64(1), c.Next())
	assert.Equal(t, uint64(2), c.Next())
	assert.Equal(t, uint64(3), c.Next())
	assert.Equal(t, uint64(3), c.Current())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	const goroutines = 50
	const callsPerGoroutine = 100

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint64, 0, callsPerGoroutine)
			for j := 0; j < callsPerGoroutine; j++ {
				local = append(local, c.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, stamp := range local {
				seen[stamp] = true
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*callsPerGoroutine, "every stamp should be unique")
	assert.Equal(t, uint64(goroutines*callsPerGoroutine), c.Current())
}
