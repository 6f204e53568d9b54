package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_StartsAtGivenTime(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewClock(start)
	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())
}

func TestClock_Advance(t *testing.T) {
	clock := NewClockMillis(1000)

	assert.Equal(t, int64(1500), clock.Advance(500*time.Millisecond).UnixMilli())
	assert.Equal(t, int64(1500), clock.Now().UnixMilli())
}

func TestClock_Set(t *testing.T) {
	clock := NewClockMillis(0)
	clock.Set(time.UnixMilli(42))
	assert.Equal(t, int64(42), clock.Now().UnixMilli())
}

func TestClock_ThreadSafe(t *testing.T) {
	clock := NewClockMillis(0)
	const goroutines = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines), clock.Now().UnixMilli())
}
