// Package events is a small synchronous pub-sub used to publish relay and
// game outcomes to interested subscribers.
package events

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// EventData is whatever a publisher attaches to an event.
type EventData interface{}

// EventCallback is invoked synchronously for every fired event a listener
// subscribed to. A returned error is reported back to the publisher.
type EventCallback func(data EventData) error

// Fireable is the interface that wraps the FireEvent method.
type Fireable interface {
	FireEvent(event string, data EventData) error
}

// EventSwitch dispatches fired events to listeners in ascending listener ID
// order, so replays of the same history notify in the same order.
type EventSwitch interface {
	Fireable
	AddListenerForEvent(listenerID, event string, cb EventCallback) error
	RemoveListener(listenerID string)
}

// ErrListenerExists is returned when a listener subscribes twice to one event.
var ErrListenerExists = errors.New("listener already registered for event")

type eventSwitch struct {
	mtx       sync.RWMutex
	listeners map[string]map[string]EventCallback // event -> listener -> cb
}

// NewEventSwitch returns an empty EventSwitch.
func NewEventSwitch() EventSwitch {
	return &eventSwitch{
		listeners: make(map[string]map[string]EventCallback),
	}
}

func (evsw *eventSwitch) AddListenerForEvent(listenerID, event string, cb EventCallback) error {
	evsw.mtx.Lock()
	defer evsw.mtx.Unlock()

	cell, ok := evsw.listeners[event]
	if !ok {
		cell = make(map[string]EventCallback)
		evsw.listeners[event] = cell
	}
	if _, ok := cell[listenerID]; ok {
		return fmt.Errorf("%w: %s/%s", ErrListenerExists, listenerID, event)
	}
	cell[listenerID] = cb
	return nil
}

func (evsw *eventSwitch) RemoveListener(listenerID string) {
	evsw.mtx.Lock()
	defer evsw.mtx.Unlock()

	for event, cell := range evsw.listeners {
		delete(cell, listenerID)
		if len(cell) == 0 {
			delete(evsw.listeners, event)
		}
	}
}

// FireEvent calls every listener of event even if some of them fail, and
// returns the first error seen.
func (evsw *eventSwitch) FireEvent(event string, data EventData) error {
	evsw.mtx.RLock()
	cell := evsw.listeners[event]
	ids := make([]string, 0, len(cell))
	for id := range cell {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	cbs := make([]EventCallback, len(ids))
	for i, id := range ids {
		cbs[i] = cell[id]
	}
	evsw.mtx.RUnlock()

	var firstErr error
	for i, cb := range cbs {
		if err := cb(data); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("listener %s: %w", ids[i], err)
		}
	}
	return firstErr
}
