package common

import (
	"sync"
	"time"
)

// ChangeEvent describes a committed change in the ledger or one of the caches.
type ChangeEvent struct {
	Source string    `json:"source"` // ledger, quote, dividend, news
	Symbol string    `json:"symbol"`
	At     time.Time `json:"at"`
}

// Broadcaster fans change events out to registered callbacks.
// Callbacks run synchronously on the publishing goroutine and must not block.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(ChangeEvent)
}

// Subscribe registers fn and returns a function that removes it.
func (b *Broadcaster) Subscribe(fn func(ChangeEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(ChangeEvent))
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers ev to every subscriber.
func (b *Broadcaster) Publish(ev ChangeEvent) {
	b.mu.RLock()
	subs := make([]func(ChangeEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
