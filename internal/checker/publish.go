package checker

import "sync"

// publisher fans values out to subscribers. Each subscriber holds only the
// latest value: a slow reader misses intermediate values, never the newest.
// Publishing a value equal to the current one is a no-op.
type publisher[T comparable] struct {
	mu     sync.Mutex
	latest T
	has    bool
	subs   map[int]chan T
	nextID int
}

func newPublisher[T comparable]() *publisher[T] {
	return &publisher[T]{subs: make(map[int]chan T)}
}

// Publish replaces the current value and reports whether it changed.
func (p *publisher[T]) Publish(v T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.has && p.latest == v {
		return false
	}
	p.latest = v
	p.has = true

	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
	return true
}

// Latest returns the current value.
func (p *publisher[T]) Latest() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// Subscribe returns a channel that receives the current value immediately
// and every change after it. cancel closes the channel.
func (p *publisher[T]) Subscribe() (<-chan T, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan T, 1)
	if p.has {
		ch <- p.latest
	}
	id := p.nextID
	p.nextID++
	p.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}
