// Package ratelimit implements C1: a per-key fixed-window admission
// limiter with a bounded entry count.
package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

// Limiter is a per-key fixed-window counter, grounded on the mutex-protected
// map + periodic cleanup shape of the teacher's token-bucket limiter
// (internal/httpapi/ratelimit.go), adapted to the fixed-window algorithm
// spec.md §4.1 requires.
type Limiter struct {
	mu         sync.Mutex
	max        int
	window     time.Duration
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List // front = oldest insertion
}

type entry struct {
	key       string
	count     int
	expiresAt time.Time
}

// New creates a rate limiter admitting at most max requests per key within
// window, retaining at most maxEntries keys at once.
func New(max int, window time.Duration, maxEntries int) *Limiter {
	return &Limiter{
		max:        max,
		window:     window,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Check admits or denies a request for key. If no entry exists, or the
// existing entry's window has elapsed, a fresh window is installed.
func (l *Limiter) Check(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	if el, ok := l.entries[key]; ok {
		e := el.Value.(*entry)
		if now.After(e.expiresAt) {
			e.count = 1
			e.expiresAt = now.Add(l.window)
			return true
		}
		if e.count < l.max {
			e.count++
			return true
		}
		return false
	}

	l.evictIfFull()

	e := &entry{key: key, count: 1, expiresAt: now.Add(l.window)}
	el := l.order.PushBack(e)
	l.entries[key] = el
	return true
}

// evictIfFull drops the oldest entry by insertion order when at capacity.
// Must be called with l.mu held.
func (l *Limiter) evictIfFull() {
	if l.maxEntries <= 0 || len(l.entries) < l.maxEntries {
		return
	}
	oldest := l.order.Front()
	if oldest == nil {
		return
	}
	l.order.Remove(oldest)
	delete(l.entries, oldest.Value.(*entry).key)
}

// Cleanup discards entries whose window has already elapsed. Intended to be
// called periodically by the sweeper (C9).
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	var next *list.Element
	for el := l.order.Front(); el != nil; el = next {
		next = el.Next()
		e := el.Value.(*entry)
		if now.After(e.expiresAt) {
			l.order.Remove(el)
			delete(l.entries, e.key)
		}
	}
}

// Len reports the number of tracked keys (test helper).
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
