// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package events

import (
	"fmt"

	"github.com/square/writeproxy/logging"
)

type EventType int

const (
	EVENT_WRITE_ADMITTED EventType = iota
	EVENT_WRITE_DEFERRED
	EVENT_WRITE_FAILED
	EVENT_DEAD_LETTERED
	EVENT_RECORD_REPLAYED
)

var eventNames = []string{
	EVENT_WRITE_ADMITTED:  "EVENT_WRITE_ADMITTED",
	EVENT_WRITE_DEFERRED:  "EVENT_WRITE_DEFERRED",
	EVENT_WRITE_FAILED:    "EVENT_WRITE_FAILED",
	EVENT_DEAD_LETTERED:   "EVENT_DEAD_LETTERED",
	EVENT_RECORD_REPLAYED: "EVENT_RECORD_REPLAYED"}

func (et EventType) String() string {
	name := eventNames[et]
	if name == "" {
		panic(fmt.Sprintf("Don't know event %d", et))
	}

	return name
}

// Event describes one admission decision, failure or replay on the proxy's
// write path.
type Event interface {
	EventType() EventType
	Tenant() string
	Operation() string
	Path() string
	// NumOps is the operation count the event covers; 1 except for batches.
	NumOps() int64
}

// EventProducer is a hook into the notification system, to inform listeners
// that certain events take place.
type EventProducer struct {
	c chan Event
}

func (e *EventProducer) Emit(event Event) {
	select {
	case e.c <- event:
	// OK
	default:
		logging.Println("Event buffer full; dropping event.")
	}
}

func (e *EventProducer) notifyListeners(l Listener) {
	for event := range e.c {
		l(event)
	}
}

// Listener is a function that consumes an Event
type Listener func(details Event)

// RegisterListener takes a Listener and a buffer size and returns an
// EventProducer that consumes events and notifies listeners
func RegisterListener(listener Listener, bufsize int) *EventProducer {
	if listener == nil {
		panic("Cannot register a nil listener")
	}

	ep := &EventProducer{make(chan Event, bufsize)}

	go ep.notifyListeners(listener)

	return ep
}

type opEvent struct {
	eventType EventType
	tenant    string
	operation string
	path      string
	numOps    int64
}

func (e *opEvent) String() string {
	return fmt.Sprintf("opEvent{type: %v, tenant: %v, operation: %v, path: %v, numOps: %v}",
		e.eventType, e.tenant, e.operation, e.path, e.numOps)
}

func (e *opEvent) EventType() EventType {
	return e.eventType
}

func (e *opEvent) Tenant() string {
	return e.tenant
}

func (e *opEvent) Operation() string {
	return e.operation
}

func (e *opEvent) Path() string {
	return e.path
}

func (e *opEvent) NumOps() int64 {
	return e.numOps
}

// NewWriteAdmittedEvent creates a new event with the type EVENT_WRITE_ADMITTED
func NewWriteAdmittedEvent(tenant, operation, path string, numOps int64) Event {
	return newOpEvent(EVENT_WRITE_ADMITTED, tenant, operation, path, numOps)
}

// NewWriteDeferredEvent creates a new event with the type EVENT_WRITE_DEFERRED
func NewWriteDeferredEvent(tenant, operation, path string, numOps int64) Event {
	return newOpEvent(EVENT_WRITE_DEFERRED, tenant, operation, path, numOps)
}

// NewWriteFailedEvent creates a new event with the type EVENT_WRITE_FAILED
func NewWriteFailedEvent(tenant, operation, path string) Event {
	return newOpEvent(EVENT_WRITE_FAILED, tenant, operation, path, 1)
}

// NewDeadLetteredEvent creates a new event with the type EVENT_DEAD_LETTERED
func NewDeadLetteredEvent(tenant, operation, path string) Event {
	return newOpEvent(EVENT_DEAD_LETTERED, tenant, operation, path, 1)
}

// NewRecordReplayedEvent creates a new event with the type EVENT_RECORD_REPLAYED
func NewRecordReplayedEvent(tenant, operation, path string) Event {
	return newOpEvent(EVENT_RECORD_REPLAYED, tenant, operation, path, 1)
}

func newOpEvent(eventType EventType, tenant, operation, path string, numOps int64) *opEvent {
	return &opEvent{
		eventType: eventType,
		tenant:    tenant,
		operation: operation,
		path:      path,
		numOps:    numOps}
}
