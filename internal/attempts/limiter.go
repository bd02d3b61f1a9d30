// ABOUTME: Per-key limiter for verification code confirmation attempts
// ABOUTME: Size-bounded LRU of token buckets with background cleanup of idle keys

package attempts

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// entry stores the bucket and list element for a tracked key.
type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	element  *list.Element
}

// Limiter allows at most maxAttempts attempts per key per window. Spent
// attempts refill continuously over the window.
type Limiter struct {
	mu       sync.Mutex
	keys     map[string]*entry
	order    *list.List // keys by last use, least recent at front
	every    rate.Limit
	burst    int
	window   time.Duration
	maxKeys  int
	now      func() time.Time
	done     chan struct{}
	closed   bool
	interval time.Duration
}

// Config contains configuration options for the Limiter.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	MaxKeys     int              // defaults to 10000
	Now         func() time.Time // defaults to time.Now
}

// New creates a Limiter and starts its cleanup goroutine. Call Close to stop it.
func New(cfg Config) *Limiter {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &Limiter{
		keys:     make(map[string]*entry),
		order:    list.New(),
		every:    rate.Every(cfg.Window / time.Duration(cfg.MaxAttempts)),
		burst:    cfg.MaxAttempts,
		window:   cfg.Window,
		maxKeys:  cfg.MaxKeys,
		now:      cfg.Now,
		done:     make(chan struct{}),
		interval: time.Minute,
	}
	go l.cleanup()
	return l
}

// Allow records an attempt for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.keys[key]
	if !ok {
		if len(l.keys) >= l.maxKeys {
			l.evictOldest()
		}
		e = &entry{
			limiter: rate.NewLimiter(l.every, l.burst),
			element: l.order.PushBack(key),
		}
		l.keys[key] = e
	} else {
		l.order.MoveToBack(e.element)
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Reset forgets every attempt recorded for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.keys[key]; ok {
		l.order.Remove(e.element)
		delete(l.keys, key)
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// evictOldest removes the least recently used key. Must be called with mu held.
func (l *Limiter) evictOldest() {
	front := l.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	l.order.Remove(front)
	delete(l.keys, key)
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.runCleanup()
		case <-l.done:
			return
		}
	}
}

// runCleanup drops keys idle for a full window; their buckets are full again.
func (l *Limiter) runCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, e := range l.keys {
		if now.Sub(e.lastSeen) >= l.window {
			l.order.Remove(e.element)
			delete(l.keys, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		close(l.done)
		l.closed = true
	}
}
