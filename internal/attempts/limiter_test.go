// ABOUTME: Tests for the confirmation attempt limiter
// ABOUTME: Validates limits, refill over the window, reset, eviction, and concurrency safety

package attempts

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(t *testing.T, maxAttempts, maxKeys int) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := New(Config{MaxAttempts: maxAttempts, Window: 15 * time.Minute, MaxKeys: maxKeys, Now: clock.Now})
	t.Cleanup(l.Close)
	return l, clock
}

func TestLimiter_AllowsUpToMax(t *testing.T) {
	l, _ := newTestLimiter(t, 5, 100)

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("ident-1"), "attempt %d", i+1)
	}
	assert.False(t, l.Allow("ident-1"))
	assert.True(t, l.Allow("ident-2"), "keys are independent")
}

func TestLimiter_RefillsOverWindow(t *testing.T) {
	l, clock := newTestLimiter(t, 5, 100)

	for i := 0; i < 5; i++ {
		l.Allow("ident-1")
	}
	assert.False(t, l.Allow("ident-1"))

	// One attempt comes back every window/max.
	clock.Advance(3*time.Minute + time.Second)
	assert.True(t, l.Allow("ident-1"))
	assert.False(t, l.Allow("ident-1"))

	clock.Advance(15 * time.Minute)
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("ident-1"))
	}
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(t, 2, 100)

	l.Allow("ident-1")
	l.Allow("ident-1")
	assert.False(t, l.Allow("ident-1"))

	l.Reset("ident-1")
	assert.True(t, l.Allow("ident-1"))
	l.Reset("never-seen")
}

func TestLimiter_EvictsLeastRecentlyUsed(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 2)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("a"), "touch a so b is least recent")
	assert.True(t, l.Allow("c"))
	assert.Equal(t, 2, l.Len())

	assert.True(t, l.Allow("b"), "b was evicted and starts fresh")
}

func TestLimiter_Cleanup(t *testing.T) {
	l, clock := newTestLimiter(t, 3, 100)

	l.Allow("idle")
	clock.Advance(10 * time.Minute)
	l.Allow("recent")
	clock.Advance(6 * time.Minute)

	l.runCleanup()
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, 50, 1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
			l.Allow(fmt.Sprintf("key-%d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
	assert.Equal(t, 101, l.Len())
}

func TestLimiter_CloseIsIdempotent(t *testing.T) {
	l := New(Config{MaxAttempts: 1, Window: time.Minute})
	l.Close()
	l.Close()
}
