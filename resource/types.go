package resource

// Handle is an opaque reference to a host value in a table.
// Handle 0 is reserved: it is the null reference and never names a value.
type Handle uint32

// Event types for handle lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Refs   uint32
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Backend provides the underlying storage for handles.
type Backend interface {
	// Create stores a value with an initial reference count and returns its handle.
	Create(value any, refs uint32) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Release drops one reference. It returns (value, true) when the last
	// reference is gone and the handle slot was freed.
	Release(handle Handle) (any, bool)

	// Close releases all values held by the backend.
	Close() error
}
