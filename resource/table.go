package resource

import (
	"sync"
)

// Table maps handles to host values and notifies observers of lifecycle
// changes. The wazero backend stores externref elements here.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates a new table with a LocalBackend.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Insert stores value with refs references and returns its handle.
// It returns 0 when refs is zero or the table is closed.
func (t *Table) Insert(value any, refs uint32) Handle {
	handle, err := t.backend.Create(value, refs)
	if err != nil {
		return 0
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		Refs:   refs,
		Value:  value,
	})

	return handle
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// Release drops one reference. It returns (value, true) when the value was
// freed.
func (t *Table) Release(handle Handle) (any, bool) {
	value, freed := t.backend.Release(handle)
	if !freed {
		return nil, false
	}

	t.notify(Event{
		Type:   EventReleased,
		Handle: handle,
		Value:  value,
	})

	return value, true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Close releases all values and stops accepting inserts.
func (t *Table) Close() error {
	return t.backend.Close()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
