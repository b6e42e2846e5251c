package blackboard

import "sync"

// ModuleDataEvent tells consumers that new artifacts of a type exist.
type ModuleDataEvent struct {
	Module       string
	ArtifactType ArtifactType
}

// DataEventSink receives new-data notifications. Fire and forget.
type DataEventSink interface {
	FireModuleDataEvent(module string, artifactType ArtifactType)
}

// EventBus fans data events out to subscribers synchronously.
// Safe for concurrent use.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []func(ModuleDataEvent)
}

var _ DataEventSink = (*EventBus)(nil)

// NewEventBus creates an event bus with no subscribers.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers fn for every subsequent event.
func (b *EventBus) Subscribe(fn func(ModuleDataEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// FireModuleDataEvent delivers the event to every subscriber.
func (b *EventBus) FireModuleDataEvent(module string, artifactType ArtifactType) {
	b.mu.RLock()
	subscribers := append([]func(ModuleDataEvent){}, b.subscribers...)
	b.mu.RUnlock()

	event := ModuleDataEvent{Module: module, ArtifactType: artifactType}
	for _, fn := range subscribers {
		fn(event)
	}
}
