// Package event implements a tap-graph publish/subscribe bus:
// Observables accept Event submissions and fan them out to registered
// Observers, with delivery to each observer dispatched as its own
// Operation on an engine so it participates in the runtime's
// admission and interruption model. A companion Daemon reschedules
// event templates at a fixed interval.
package event


// ID identifies an event kind. Reserved field names below give an
// Event its shape; anything else is caller-defined payload.
type ID uint64

// Event is an untyped, schemaless map, mirroring the Message shape
// used elsewhere in the runtime. Producers set ID and Details;
// Observable fills in SequenceID at schedule time.
type Event map[string]any

const (
	fieldID       = "id"
	fieldSeq      = "sequenceId"
	fieldSerial   = "serial"
	fieldParallel = "parallel"
	fieldDetails  = "details"
)

// NewEvent builds an Event with the given id and user details already
// populated. SequenceID is left zero until Schedule assigns it.
func NewEvent(id ID, details any) Event {
	return Event{
		fieldID:      id,
		fieldDetails: details,
	}
}

// ID returns the event's reserved id field, or 0 if absent/wrong type.
func (e Event) ID() ID {
	v, _ := e[fieldID].(ID)
	return v
}

// SequenceID returns the per-Observable monotonic counter value
// assigned when the event was scheduled.
func (e Event) SequenceID() uint64 {
	v, _ := e[fieldSeq].(uint64)
	return v
}

// Serial reports whether the event must drain before any event
// scheduled after it.
func (e Event) Serial() bool {
	v, _ := e[fieldSerial].(bool)
	return v
}

// WithSerial returns a copy of e marked serial.
func (e Event) WithSerial() Event {
	c := e.clone()
	c[fieldSerial] = true
	return c
}

// Parallel reports whether the event may be dispatched regardless of
// ordering relative to its neighbors. This is the default when
// neither Serial nor Parallel is set.
func (e Event) Parallel() bool {
	v, _ := e[fieldParallel].(bool)
	return v || !e.Serial()
}

// Details returns the user payload attached to the event.
func (e Event) Details() any { return e[fieldDetails] }

func (e Event) clone() Event {
	c := make(Event, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

func (e Event) withID(id ID) Event {
	c := e.clone()
	c[fieldID] = id
	return c
}

func (e Event) withSequence(seq uint64) Event {
	c := e.clone()
	c[fieldSeq] = seq
	return c
}

// Observer receives events it is registered for.
type Observer interface {
	HandleEvent(e Event)
}

// ObserverFunc adapts a plain function to an Observer.
type ObserverFunc func(e Event)

// HandleEvent implements Observer.
func (f ObserverFunc) HandleEvent(e Event) { f(e) }
