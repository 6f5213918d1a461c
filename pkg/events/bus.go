// Package events carries change notifications from the core to any
// front end (CLI output, status API, menu-bar shortcut), so the core
// never depends on a UI event loop.
package events

import (
	"sync"
)

type EventType string

const (
	SitesUpdated      EventType = "sites:updated"
	ProxyStateChanged EventType = "proxy:state"
	SiteProbed        EventType = "site:probed"
	AccessLogEntry    EventType = "log:access"
)

type Event struct {
	Type    EventType
	Payload interface{}
}

type Handler func(Event)

type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

func (b *Bus) Subscribe(topic EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish runs handlers synchronously so callers observe a consistent
// order of notifications.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, h := range b.handlers[event.Type] {
		h(event)
	}
}
