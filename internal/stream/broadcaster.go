package stream

import (
	"sync"
)

// Broadcaster fans JPEG frames out to any number of viewers. Publish never
// blocks: a subscriber that falls behind misses frames.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan []byte
	nextID int
	latest []byte
	count  uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan []byte)}
}

func (b *Broadcaster) Publish(frame []byte) {
	if len(frame) == 0 {
		return
	}
	b.mu.Lock()
	b.latest = frame
	b.count++
	subs := make([]chan []byte, 0, len(b.subs))
	for _, ch := range b.subs {
		subs = append(subs, ch)
	}
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Subscribe returns a channel that first yields the latest frame, if any, and
// then every subsequent one. cancel must be called to release it.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 2)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.latest != nil {
		ch <- b.latest
	}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

func (b *Broadcaster) Latest() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) Published() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
