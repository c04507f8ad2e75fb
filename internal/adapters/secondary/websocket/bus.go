package websocket

import (
	"sync"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
)

type eventSub struct {
	id int
	h  ports.EventHandler
}

type stateSub struct {
	id int
	h  ports.StateHandler
}

// Bus fans push events and lifecycle transitions out to listeners. It lives
// as long as the supervisor, so listeners survive handle replacement.
type Bus struct {
	mu     sync.RWMutex
	next   int
	events map[domain.EventKind][]eventSub
	states []stateSub
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{events: make(map[domain.EventKind][]eventSub)}
}

// Subscribe registers h for one event kind.
func (b *Bus) Subscribe(kind domain.EventKind, h ports.EventHandler) (dispose func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.events[kind] = append(b.events[kind], eventSub{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.events[kind]
			for i, s := range subs {
				if s.id == id {
					b.events[kind] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// OnState registers h for lifecycle transitions.
func (b *Bus) OnState(h ports.StateHandler) (dispose func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.states = append(b.states, stateSub{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.states {
				if s.id == id {
					b.states = append(b.states[:i:i], b.states[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *Bus) publish(ch ports.Channel, e domain.InboundEvent) {
	b.mu.RLock()
	subs := append([]eventSub(nil), b.events[e.Kind()]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.h(ch, e)
	}
}

func (b *Bus) publishState(ch ports.Channel, state domain.ConnectionState) {
	b.mu.RLock()
	subs := append([]stateSub(nil), b.states...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.h(ch, state)
	}
}
