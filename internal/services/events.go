package services

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventName identifies a notification published by the services
type EventName string

const (
	EventConnectionOnline  EventName = "connection:online"
	EventConnectionOffline EventName = "connection:offline"
	EventSyncStarted       EventName = "sync:started"
	EventSyncProgress      EventName = "sync:progress"
	EventSyncCompleted     EventName = "sync:completed"
	EventSyncFailed        EventName = "sync:failed"
)

// Event is a single published notification
type Event struct {
	Name      EventName   `json:"name"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SyncStartedPayload accompanies sync:started
type SyncStartedPayload struct {
	Trigger Trigger `json:"trigger"`
}

// ProgressPayload accompanies sync:progress
type ProgressPayload struct {
	Type       string `json:"type"`
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// NewProgress computes the rounded percentage. An empty total is complete.
func NewProgress(kind string, current, total int) ProgressPayload {
	percentage := 100
	if total > 0 {
		percentage = int(math.Round(float64(current) / float64(total) * 100))
	}
	return ProgressPayload{Type: kind, Current: current, Total: total, Percentage: percentage}
}

// SyncCompletedPayload accompanies sync:completed
type SyncCompletedPayload struct {
	Errors []string `json:"errors"`
}

// SyncFailedPayload accompanies sync:failed
type SyncFailedPayload struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors"`
}

// Handler receives published events
type Handler func(Event)

// EventBus dispatches events synchronously to subscribers
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventName]map[uint64]Handler
	all      map[uint64]Handler
	nextID   uint64
	logger   *logrus.Logger
}

// NewEventBus creates an empty bus
func NewEventBus(logger *logrus.Logger) *EventBus {
	if logger == nil {
		logger = logrus.New()
	}
	return &EventBus{
		handlers: make(map[EventName]map[uint64]Handler),
		all:      make(map[uint64]Handler),
		logger:   logger,
	}
}

// Subscribe registers handler for one event and returns its unsubscribe func
func (b *EventBus) Subscribe(name EventName, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[name] == nil {
		b.handlers[name] = make(map[uint64]Handler)
	}
	b.handlers[name][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[name], id)
	}
}

// SubscribeAll registers handler for every event
func (b *EventBus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all[id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.all, id)
	}
}

// Publish delivers the event to every matching handler in the caller's goroutine
func (b *EventBus) Publish(name EventName, payload interface{}) {
	event := Event{Name: name, Payload: payload, Timestamp: time.Now().UTC()}

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.handlers[name])+len(b.all))
	for _, h := range b.handlers[name] {
		targets = append(targets, h)
	}
	for _, h := range b.all {
		targets = append(targets, h)
	}
	b.mu.RUnlock()

	for _, h := range targets {
		b.dispatch(h, event)
	}
}

func (b *EventBus) dispatch(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{
				"event": event.Name,
				"panic": r,
			}).Error("Event handler panicked")
		}
	}()
	h(event)
}
